package queues

import (
	"context"
	"fmt"
	"strings"
)

// ProvisionRequest is the invocation payload of the provision stage.
// All fields are required; InteractionToken and ApplicationID are only
// forwarded to the notification service.
type ProvisionRequest struct {
	Game             string `json:"game"`
	Name             string `json:"name"`
	Region           string `json:"region"`
	UserID           string `json:"user_id"`
	Username         string `json:"username"`
	Password         string `json:"password"`
	Service          string `json:"service"`
	InteractionToken string `json:"interaction_token"`
	ApplicationID    string `json:"application_id"`
	ExecutionName    string `json:"execution_name"`
}

// Validate reports every missing key in one error.
func (r *ProvisionRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("provision request is nil")
	}
	var missing []string
	for _, f := range []struct {
		key, val string
	}{
		{"game", r.Game},
		{"name", r.Name},
		{"region", r.Region},
		{"user_id", r.UserID},
		{"username", r.Username},
		{"password", r.Password},
		{"service", r.Service},
		{"interaction_token", r.InteractionToken},
		{"application_id", r.ApplicationID},
		{"execution_name", r.ExecutionName},
	} {
		if strings.TrimSpace(f.val) == "" {
			missing = append(missing, f.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required keys: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ProvisionResult is handed to the next workflow stage. The embedded request
// flattens into the same JSON object, so the payload is the inbound mapping
// plus the fields below.
type ProvisionResult struct {
	ProvisionRequest

	ServerID   string `json:"server_id"`
	AccountID  string `json:"account_id"`
	WaitTime   int    `json:"wait_time"`
	ServerPort int    `json:"server_port"`
	InstanceID string `json:"instance_id"`
	InstanceIP string `json:"instance_ip,omitempty"`
}

type Subscriber interface {
	Start(ctx context.Context, handler func(context.Context, *ProvisionRequest) error) error
}

type Publisher interface {
	PublishResult(ctx context.Context, res *ProvisionResult) error
}
