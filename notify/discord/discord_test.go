package discord

import (
	"context"
	"errors"
	"testing"

	"serverboi-provisioner/notify"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEditor struct {
	interaction *discordgo.Interaction
	edit        *discordgo.WebhookEdit
	err         error
}

func (f *fakeEditor) InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.interaction = interaction
	f.edit = newresp
	return &discordgo.Message{}, f.err
}

func TestEmbed(t *testing.T) {
	tests := []struct {
		name       string
		state      notify.State
		wantStatus string
	}{
		{name: "running", state: notify.StateRunning, wantStatus: "🟢 running"},
		{name: "failed", state: notify.StateFailed, wantStatus: "❌ failed"},
		{name: "other", state: notify.State("paused"), wantStatus: "paused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Embed(notify.Status{
				Workflow:    "Provision-Server",
				Description: "Workflow ID: exec-1",
				State:       tt.state,
				Stage:       "Provision",
				Color:       notify.ColorFor(tt.state),
			})
			assert.Equal(t, "Provision-Server", e.Title)
			assert.Equal(t, "Workflow ID: exec-1", e.Description)
			require.Len(t, e.Fields, 2)
			assert.Equal(t, tt.wantStatus, e.Fields[0].Value)
			assert.Equal(t, "Provision", e.Fields[1].Value)
		})
	}
}

func TestNotifier_Notify(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "delivered", err: nil},
		{name: "unknown interaction", err: errors.New("HTTP 404 Not Found"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeEditor{err: tt.err}
			n := &Notifier{session: f}
			err := n.Notify(context.Background(),
				notify.Target{ApplicationID: "app", InteractionToken: "tok"},
				notify.Status{Workflow: "Provision-Server", State: notify.StateFailed, Stage: "Provision", Color: notify.ColorRed},
			)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, "app", f.interaction.AppID)
			assert.Equal(t, "tok", f.interaction.Token)
			require.NotNil(t, f.edit.Embeds)
			require.Len(t, *f.edit.Embeds, 1)
			assert.Equal(t, notify.ColorRed, (*f.edit.Embeds)[0].Color)
		})
	}
}

func TestNew(t *testing.T) {
	n, err := New("")
	require.NoError(t, err)
	assert.NotNil(t, n.session)
}

func TestColorFor(t *testing.T) {
	assert.Equal(t, notify.ColorGreen, notify.ColorFor(notify.StateRunning))
	assert.Equal(t, notify.ColorRed, notify.ColorFor(notify.StateFailed))
}
