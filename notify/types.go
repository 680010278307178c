// Package notify reports workflow status back to the user who started it.
package notify

import "context"

// State is a workflow status label.
type State string

const (
	StateRunning State = "running"
	StateFailed  State = "failed"
)

// Discord palette values for the two states.
const (
	ColorGreen = 0x2ecc71
	ColorRed   = 0xe74c3c
)

// Target identifies the interactive response to edit.
type Target struct {
	ApplicationID    string
	InteractionToken string
}

// Status is one workflow status report.
type Status struct {
	Workflow    string
	Description string
	State       State
	Stage       string
	Color       int
}

// Notifier delivers a status report to target.
type Notifier interface {
	Notify(ctx context.Context, target Target, status Status) error
}

// ColorFor maps a state to its embed color.
func ColorFor(s State) int {
	if s == StateFailed {
		return ColorRed
	}
	return ColorGreen
}
