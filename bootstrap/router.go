package bootstrap

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"serverboi-provisioner/catalog"
	"serverboi-provisioner/queues"

	"al.essio.dev/pkg/shellescape"
)

// Router turns a game and its request context into a shell command that
// starts the game server process.
type Router interface {
	Route(game string, params LaunchParams) (string, error)
}

// LaunchParams is the request context available to launch templates.
type LaunchParams struct {
	queues.ProvisionRequest
	ServerID string
	Port     int
}

var funcs = template.FuncMap{
	"quote": shellescape.Quote,
}

// TemplateRouter renders the launch_command template of each catalog profile.
type TemplateRouter struct {
	templates map[string]*template.Template
}

// NewTemplateRouter parses every launch template up front so a broken
// template fails at startup, not mid-provision.
func NewTemplateRouter(c *catalog.Catalog) (*TemplateRouter, error) {
	r := &TemplateRouter{templates: map[string]*template.Template{}}
	for _, game := range c.Games() {
		p, err := c.Lookup(game)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.LaunchCommand) == "" {
			return nil, fmt.Errorf("game %q: launch_command is empty", game)
		}
		tmpl, err := template.New(game).Funcs(funcs).Option("missingkey=error").Parse(p.LaunchCommand)
		if err != nil {
			return nil, fmt.Errorf("game %q: parse launch_command: %w", game, err)
		}
		r.templates[game] = tmpl
	}
	return r, nil
}

func (r *TemplateRouter) Route(game string, params LaunchParams) (string, error) {
	tmpl, ok := r.templates[game]
	if !ok {
		return "", fmt.Errorf("%w: no launch command for %q", catalog.ErrUnknownGame, game)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("render launch command for %q: %w", game, err)
	}
	cmd := strings.TrimSpace(buf.String())
	if cmd == "" {
		return "", fmt.Errorf("game %q: %w", game, ErrEmptyLaunchCommand)
	}
	return cmd, nil
}
