package provisioner

import (
	"sync"
	"testing"

	"serverboi-provisioner/queues"

	"github.com/stretchr/testify/assert"
)

func TestInFlight_BeginDone(t *testing.T) {
	f := NewInFlight()
	a := &queues.ProvisionRequest{ExecutionName: "exec-a", Game: "valheim"}
	b := &queues.ProvisionRequest{ExecutionName: "exec-b", Game: "valheim"}
	c := &queues.ProvisionRequest{ExecutionName: "exec-c", Game: "minecraft"}

	assert.True(t, f.Begin(a))
	assert.False(t, f.Begin(a), "same execution claimed twice")
	assert.True(t, f.Begin(b))
	assert.True(t, f.Begin(c))
	assert.Equal(t, 3, f.Len())
	assert.Equal(t, map[string]int{"valheim": 2, "minecraft": 1}, f.ByGame())

	f.Done("exec-a")
	assert.Equal(t, 2, f.Len())
	assert.True(t, f.Begin(a), "released execution can be claimed again")

	f.Done("missing")
	assert.Equal(t, 3, f.Len())
}

func TestInFlight_ConcurrentClaims(t *testing.T) {
	f := NewInFlight()
	req := &queues.ProvisionRequest{ExecutionName: "exec-1", Game: "valheim"}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.Begin(req) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
