// Package network derives the access-control rules for a game server.
package network

import (
	"fmt"

	"serverboi-provisioner/catalog"
)

const (
	ProtocolTCP = "tcp"
	ProtocolUDP = "udp"

	AnyIPv4 = "0.0.0.0/0"

	MinPort = 0
	MaxPort = 65535
)

// Rule allows one protocol over an inclusive port range from/to a CIDR.
type Rule struct {
	Protocol string
	FromPort int
	ToPort   int
	CIDR     string
}

// RuleSet is the egress and ingress rules for one access-control group.
type RuleSet struct {
	Egress  []Rule
	Ingress []Rule
}

// Derive opens all outbound TCP/UDP and inbound TCP/UDP over exactly the
// profile's port range, from any source.
func Derive(profile catalog.BuildProfile) RuleSet {
	return RuleSet{
		Egress:  bothProtocols(MinPort, MaxPort),
		Ingress: bothProtocols(profile.Ports.Low, profile.Ports.High),
	}
}

func bothProtocols(from, to int) []Rule {
	return []Rule{
		{Protocol: ProtocolTCP, FromPort: from, ToPort: to, CIDR: AnyIPv4},
		{Protocol: ProtocolUDP, FromPort: from, ToPort: to, CIDR: AnyIPv4},
	}
}

// GroupName names the access-control group so resources trace back to the
// request without a registry lookup.
func GroupName(game, serverName, serverID string) string {
	return fmt.Sprintf("ServerBoi-Resource-%s-%s-%s", game, serverName, serverID)
}

// GroupDescription is the human-readable group description.
func GroupDescription(game, serverName string) string {
	return fmt.Sprintf("Sec group for %s server: %s", game, serverName)
}
