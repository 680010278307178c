// Package discord edits the original interaction response with a workflow
// status embed.
package discord

import (
	"context"
	"fmt"

	"serverboi-provisioner/notify"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

type interactionEditor interface {
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier implements notify.Notifier over the Discord interaction webhook.
type Notifier struct {
	session interactionEditor
}

var _ notify.Notifier = (*Notifier)(nil)

// New builds a Notifier. botToken may be empty: interaction webhooks are
// authorized by the interaction token alone.
func New(botToken string) (*Notifier, error) {
	if botToken != "" {
		botToken = "Bot " + botToken
	}
	s, err := discordgo.New(botToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &Notifier{session: s}, nil
}

func (n *Notifier) Notify(ctx context.Context, target notify.Target, status notify.Status) error {
	embeds := []*discordgo.MessageEmbed{Embed(status)}
	_, err := n.session.InteractionResponseEdit(
		&discordgo.Interaction{AppID: target.ApplicationID, Token: target.InteractionToken},
		&discordgo.WebhookEdit{Embeds: &embeds},
		discordgo.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("edit interaction response: %w", err)
	}
	log.Debug().Str("workflow", status.Workflow).Str("state", string(status.State)).Msg("discord: status delivered")
	return nil
}

// Embed renders a workflow status as a Discord embed.
func Embed(status notify.Status) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       status.Workflow,
		Description: status.Description,
		Color:       status.Color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Status", Value: label(status.State), Inline: true},
			{Name: "Stage", Value: status.Stage, Inline: true},
		},
	}
}

func label(s notify.State) string {
	switch s {
	case notify.StateRunning:
		return "🟢 running"
	case notify.StateFailed:
		return "❌ failed"
	default:
		return string(s)
	}
}
