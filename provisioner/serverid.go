package provisioner

import (
	"strings"

	"github.com/google/uuid"
)

const serverIDLength = 4

// NewServerID returns a short uppercase identifier cut from a random UUID.
// Collisions are not checked here; the registry write is conditional.
func NewServerID() string {
	return strings.ToUpper(uuid.NewString()[:serverIDLength])
}
