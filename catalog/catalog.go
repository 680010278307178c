// Package catalog holds the static per-game build profiles.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed builds.yaml
var defaultBuilds []byte

// ErrUnknownGame is returned by Lookup for a game with no profile.
var ErrUnknownGame = errors.New("unknown game")

// PortRange is an inclusive [Low, High] range.
type PortRange struct {
	Low  int
	High int
}

func (p *PortRange) UnmarshalYAML(value *yaml.Node) error {
	var pair []int
	if err := value.Decode(&pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("line %d: port range needs exactly two values, got %d", value.Line, len(pair))
	}
	p.Low, p.High = pair[0], pair[1]
	return nil
}

func (p PortRange) MarshalYAML() (any, error) {
	return []int{p.Low, p.High}, nil
}

// BuildProfile is the static configuration for one game.
type BuildProfile struct {
	Game string `yaml:"-"`
	// BuildTime is the expected time in seconds until the server accepts players.
	BuildTime int       `yaml:"build_time"`
	Ports     PortRange `yaml:"ports"`
	AWS       struct {
		InstanceType string `yaml:"instance_type"`
	} `yaml:"aws"`
	// LaunchCommand is a text/template rendered by the command router.
	LaunchCommand string `yaml:"launch_command"`
}

// BuildDuration returns BuildTime as a time.Duration.
func (b BuildProfile) BuildDuration() time.Duration {
	return time.Duration(b.BuildTime) * time.Second
}

// Catalog maps game identifiers to build profiles. It is read-only after load.
type Catalog struct {
	profiles map[string]BuildProfile
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultBuilds)
}

// Load reads a catalog from path, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read build catalog: %w", err)
	}
	return Parse(b)
}

// Parse decodes and validates a YAML catalog keyed by game identifier.
func Parse(b []byte) (*Catalog, error) {
	raw := map[string]BuildProfile{}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode build catalog: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("build catalog is empty")
	}
	profiles := make(map[string]BuildProfile, len(raw))
	for game, p := range raw {
		p.Game = game
		if err := p.validate(); err != nil {
			return nil, err
		}
		profiles[game] = p
	}
	return &Catalog{profiles: profiles}, nil
}

func (b BuildProfile) validate() error {
	switch {
	case b.Ports.Low < 1 || b.Ports.High > 65535:
		return fmt.Errorf("game %q: ports %d-%d outside 1-65535", b.Game, b.Ports.Low, b.Ports.High)
	case b.Ports.Low > b.Ports.High:
		return fmt.Errorf("game %q: port range low %d above high %d", b.Game, b.Ports.Low, b.Ports.High)
	case b.AWS.InstanceType == "":
		return fmt.Errorf("game %q: aws.instance_type is required", b.Game)
	case b.BuildTime < 0:
		return fmt.Errorf("game %q: negative build_time", b.Game)
	}
	return nil
}

// Lookup returns the profile for game. An unknown game wraps ErrUnknownGame.
func (c *Catalog) Lookup(game string) (BuildProfile, error) {
	p, ok := c.profiles[game]
	if !ok {
		return BuildProfile{}, fmt.Errorf("%w: %q", ErrUnknownGame, game)
	}
	return p, nil
}

// Games lists the configured game identifiers in sorted order.
func (c *Catalog) Games() []string {
	games := make([]string, 0, len(c.profiles))
	for g := range c.profiles {
		games = append(games, g)
	}
	sort.Strings(games)
	return games
}
