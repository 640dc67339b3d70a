package ragdoll

import (
	"github.com/normanking/ragdoll/internal/expression"
	"github.com/normanking/ragdoll/internal/idle"
	"github.com/normanking/ragdoll/internal/motion"
	"github.com/normanking/ragdoll/internal/state"
	"github.com/normanking/ragdoll/internal/tasks"
	"github.com/normanking/ragdoll/internal/timer"
)

// Palette holds the renderer colours as hex strings.
type Palette struct {
	Background string `json:"background" yaml:"background"`
	Body       string `json:"body" yaml:"body"`
	Outline    string `json:"outline" yaml:"outline"`
	Eye        string `json:"eye" yaml:"eye"`
	Cheek      string `json:"cheek" yaml:"cheek"`
	Bubble     string `json:"bubble" yaml:"bubble"`
	BubbleText string `json:"bubbleText" yaml:"bubbleText"`
}

// merge returns p with every non-empty field of over applied.
func (p Palette) merge(over Palette) Palette {
	pick := func(base, o string) string {
		if o != "" {
			return o
		}
		return base
	}
	return Palette{
		Background: pick(p.Background, over.Background),
		Body:       pick(p.Body, over.Body),
		Outline:    pick(p.Outline, over.Outline),
		Eye:        pick(p.Eye, over.Eye),
		Cheek:      pick(p.Cheek, over.Cheek),
		Bubble:     pick(p.Bubble, over.Bubble),
		BubbleText: pick(p.BubbleText, over.BubbleText),
	}
}

// Variant adjusts a theme for a host surface.
type Variant struct {
	Name      string  `json:"name"`
	Scale     float64 `json:"scale"`
	ShowTasks bool    `json:"showTasks"`
	ShowTimer bool    `json:"showTimer"`
	Palette   Palette `json:"-"`
}

var themes = map[string]Palette{
	"classic": {
		Background: "#fdf6e3",
		Body:       "#f4d9b5",
		Outline:    "#3b2f2f",
		Eye:        "#1d1d1d",
		Cheek:      "#f29e8e",
		Bubble:     "#ffffff",
		BubbleText: "#222222",
	},
	"midnight": {
		Background: "#0f1420",
		Body:       "#c9b8e8",
		Outline:    "#e6e1f5",
		Eye:        "#0b0b12",
		Cheek:      "#e37fa6",
		Bubble:     "#1d2435",
		BubbleText: "#e6e1f5",
	},
}

var variants = map[string]Variant{
	"default": {Name: "default", Scale: 1, ShowTasks: true, ShowTimer: true},
	"compact": {Name: "compact", Scale: 0.6, ShowTimer: true, Palette: Palette{Background: "transparent"}},
}

// DefaultTheme and DefaultVariant are used for unknown names.
const (
	DefaultTheme   = "classic"
	DefaultVariant = "default"
)

// Themes lists the built-in theme names.
func Themes() []string { return []string{"classic", "midnight"} }

// Variants lists the built-in variant names.
func Variants() []string { return []string{"default", "compact"} }

// Frame is everything a renderer needs for one frame.
type Frame struct {
	Theme       string               `json:"theme"`
	Palette     Palette              `json:"palette"`
	Variant     Variant              `json:"variant"`
	State       state.CharacterState `json:"state"`
	Expression  expression.Config    `json:"expression"`
	DisplayPose motion.HeadPose      `json:"displayPose"`
	Idle        idle.State           `json:"idle"`
	Timer       *timer.Snapshot      `json:"timer,omitempty"`
	Tasks       *tasks.Snapshot      `json:"tasks,omitempty"`
}

func resolveTheme(name string) (string, Palette) {
	if p, ok := themes[name]; ok {
		return name, p
	}
	return DefaultTheme, themes[DefaultTheme]
}

func resolveVariant(name string) Variant {
	if v, ok := variants[name]; ok {
		return v
	}
	return variants[DefaultVariant]
}
