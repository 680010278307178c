package network

import (
	"testing"

	"serverboi-provisioner/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive_AllCatalogGames(t *testing.T) {
	c, err := catalog.Default()
	require.NoError(t, err)

	for _, game := range c.Games() {
		t.Run(game, func(t *testing.T) {
			p, err := c.Lookup(game)
			require.NoError(t, err)

			rs := Derive(p)
			require.Len(t, rs.Ingress, 2)
			require.Len(t, rs.Egress, 2)

			protos := map[string]bool{}
			for _, r := range rs.Ingress {
				assert.Equal(t, p.Ports.Low, r.FromPort)
				assert.Equal(t, p.Ports.High, r.ToPort)
				assert.Equal(t, AnyIPv4, r.CIDR)
				protos[r.Protocol] = true
			}
			assert.Equal(t, map[string]bool{ProtocolTCP: true, ProtocolUDP: true}, protos)

			for _, r := range rs.Egress {
				assert.Equal(t, MinPort, r.FromPort)
				assert.Equal(t, MaxPort, r.ToPort)
				assert.Equal(t, AnyIPv4, r.CIDR)
			}
		})
	}
}

func TestGroupName(t *testing.T) {
	tests := []struct {
		name               string
		game, server, id   string
		wantName, wantDesc string
	}{
		{name: "valheim", game: "valheim", server: "box1", id: "AB12", wantName: "ServerBoi-Resource-valheim-box1-AB12", wantDesc: "Sec group for valheim server: box1"},
		{name: "minecraft", game: "minecraft", server: "creative", id: "9F0E", wantName: "ServerBoi-Resource-minecraft-creative-9F0E", wantDesc: "Sec group for minecraft server: creative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantName, GroupName(tt.game, tt.server, tt.id))
			assert.Equal(t, tt.wantDesc, GroupDescription(tt.game, tt.server))
		})
	}
}
