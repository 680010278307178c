// Package cloud defines the compute primitives used to provision a game server
// inside a user's delegated account.
package cloud

import (
	"context"
	"errors"

	"serverboi-provisioner/network"
)

// ErrNoImage is returned when the image filter matches nothing.
var ErrNoImage = errors.New("no machine image matched filter")

const (
	// ManagedByKey/ManagedByValue mark resources for discovery by cleanup tooling.
	ManagedByKey   = "ManagedBy"
	ManagedByValue = "ServerBoi"
)

// ImageFilter selects a machine image from a trusted publisher.
type ImageFilter struct {
	Owner              string
	Description        string
	Architecture       string
	VirtualizationType string
}

// DebianImage is the image every game server boots from.
var DebianImage = ImageFilter{
	Owner:              "136693071363",
	Description:        "Debian 10 (20210329-591)",
	Architecture:       "x86_64",
	VirtualizationType: "hvm",
}

// InstanceSpec describes exactly one instance to launch.
type InstanceSpec struct {
	ImageID         string
	InstanceType    string
	SecurityGroupID string
	UserData        string
	Tags            map[string]string
}

// Instance is what is known about an instance right after launch.
// PublicIP may be empty; it is not polled for.
type Instance struct {
	ID       string
	PublicIP string
}

// Compute is the set of calls made with delegated credentials in one region.
type Compute interface {
	CreateSecurityGroup(ctx context.Context, name, description string, tags map[string]string) (string, error)
	AuthorizeEgress(ctx context.Context, groupID string, rules []network.Rule) error
	AuthorizeIngress(ctx context.Context, groupID string, rules []network.Rule) error
	DeleteSecurityGroup(ctx context.Context, groupID string) error
	FindImage(ctx context.Context, filter ImageFilter) (string, error)
	RunInstance(ctx context.Context, spec InstanceSpec) (*Instance, error)
	TerminateInstance(ctx context.Context, instanceID string) error
}

// Delegator obtains short-lived credentials for accountID and returns a
// Compute bound to them in region.
type Delegator interface {
	Delegate(ctx context.Context, accountID, region string) (Compute, error)
}
