// Package script loads and plays YAML choreography: timed lists of
// commands for demos and canned reactions.
//
//	name: greeting
//	steps:
//	  - do: setMood
//	    mood: smile
//	  - wait: 400ms
//	    do: setSpeechBubble
//	    text: Hello there!
//	  - wait: 2s
//	    do: triggerAction
//	    action: wink
package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/normanking/ragdoll/internal/ragdoll"
)

// ErrEmptyScript is returned for a script without steps.
var ErrEmptyScript = errors.New("script has no steps")

// Step is one entry as written in the file. Keys other than wait and do are
// the command arguments.
type Step struct {
	Wait time.Duration  `yaml:"wait,omitempty"`
	Do   string         `yaml:"do"`
	Args map[string]any `yaml:",inline"`
}

// Cue is a decoded step: wait, then run Command.
type Cue struct {
	Wait    time.Duration
	Command ragdoll.Command
}

// Script is a parsed choreography.
type Script struct {
	Name  string `yaml:"name"`
	Loop  bool   `yaml:"loop"`
	Steps []Step `yaml:"steps"`

	Cues []Cue `yaml:"-"`
}

// Submitter runs a command. engine.Loop satisfies it.
type Submitter interface {
	Submit(ctx context.Context, cmd ragdoll.Command) error
}

// Parse decodes and validates a script.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if len(s.Steps) == 0 {
		return nil, ErrEmptyScript
	}

	s.Cues = make([]Cue, 0, len(s.Steps))
	for i, step := range s.Steps {
		if step.Wait < 0 {
			return nil, fmt.Errorf("step %d: negative wait %s", i+1, step.Wait)
		}
		cmd, err := ragdoll.CommandFromArgs(step.Do, step.Args)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		s.Cues = append(s.Cues, Cue{Wait: step.Wait, Command: cmd})
	}
	return &s, nil
}

// Load reads and parses a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Duration is the total wait time of one pass.
func (s *Script) Duration() time.Duration {
	var d time.Duration
	for _, c := range s.Cues {
		d += c.Wait
	}
	return d
}

// Play runs the cues in order, repeating while Loop is set, until the script
// ends or ctx is cancelled. A command the submitter rejects stops playback.
func Play(ctx context.Context, s *Script, sub Submitter, log zerolog.Logger) error {
	if len(s.Cues) == 0 {
		return ErrEmptyScript
	}
	log.Info().Str("script", s.Name).Int("steps", len(s.Cues)).Bool("loop", s.Loop).Msg("script started")

	for pass := 1; ; pass++ {
		for i, cue := range s.Cues {
			if err := wait(ctx, cue.Wait); err != nil {
				return err
			}
			if err := sub.Submit(ctx, cue.Command); err != nil {
				return fmt.Errorf("step %d (%s): %w", i+1, cue.Command.Kind(), err)
			}
			log.Debug().Int("step", i+1).Str("command", cue.Command.Kind()).Msg("cue played")
		}
		if !s.Loop {
			log.Info().Str("script", s.Name).Msg("script finished")
			return nil
		}
		log.Debug().Int("pass", pass).Msg("script looping")
		// A loop of zero-wait cues would spin; yield a frame.
		if s.Duration() == 0 {
			if err := wait(ctx, time.Second/60); err != nil {
				return err
			}
		}
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
