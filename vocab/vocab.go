// Package vocab holds the bot's categorized response templates and picks
// one uniformly at random per request. Templates are loaded from a YAML
// file mapping category names to lists of strings; a built-in set covers
// every required category so the bot can always answer, even when the
// file is missing or broken.
package vocab

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"

	"gopkg.in/yaml.v3"
)

// Required categories. The loader guarantees each has at least one
// template after merging the file over the built-ins.
var required = []string{
	"help", "empty_log", "gossips", "greetings",
	"insults", "uptime", "welcome", "refusals",
}

var builtin = map[string][]string{
	"help":      {"Need a hand, {nick}? Say my name followed by: log (replay what you missed), uptime, or help."},
	"empty_log": {"Not a single message since you left, {nick}. Satisfied?"},
	"gossips":   {"{nick} is catching up on the backlog, pretend you said nothing."},
	"greetings": {"Hello everyone, I'm back and I'm listening."},
	"insults":   {"Say my name properly and maybe I'll answer, {nick}."},
	"uptime":    {"I've been holding this room together for {uptime}."},
	"welcome":   {"Welcome back {nick}! Last time I saw you was {date}."},
	"refusals":  {"I don't talk to strangers outside my room."},
}

// Picker selects one template for a category.
type Picker interface {
	Pick(category string) string
}

// Vocabulary is the resolved category -> templates mapping.
type Vocabulary struct {
	sets map[string][]string
	sel  func(n int) int
}

// New builds a Vocabulary with uniform-random selection.
func New(sets map[string][]string) *Vocabulary {
	return NewWithSelector(sets, rand.IntN)
}

// NewWithSelector builds a Vocabulary with an injected selector. sel is
// called with the number of templates in the category and must return an
// index in [0, n). Tests use this for deterministic picks.
func NewWithSelector(sets map[string][]string, sel func(n int) int) *Vocabulary {
	return &Vocabulary{sets: sets, sel: sel}
}

// Pick returns one template from the category, or the empty string when
// the category has none. The loader keeps required categories non-empty,
// so an empty result only happens for names outside the fixed set.
func (v *Vocabulary) Pick(category string) string {
	ts := v.sets[category]
	if len(ts) == 0 {
		return ""
	}
	return ts[v.sel(len(ts))]
}

// Load reads the vocabulary file at path and merges it over the built-in
// set, so categories absent from the file keep their defaults. Any read
// or parse failure falls back to the built-ins entirely; the bot never
// starts without a full vocabulary.
func Load(path string) *Vocabulary {
	sets := make(map[string][]string, len(builtin))
	for k, v := range builtin {
		sets[k] = v
	}
	loaded, err := parseFile(path)
	if err != nil {
		slog.Warn("vocabulary file unusable, using built-in templates", slog.String("path", path), slog.Any("err", err))
		return New(sets)
	}
	for k, v := range loaded {
		if len(v) > 0 {
			sets[k] = v
		}
	}
	slog.Info("vocabulary loaded", slog.String("path", path), slog.Int("categories", len(sets)))
	return New(sets)
}

func parseFile(path string) (map[string][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sets map[string][]string
	if err := yaml.Unmarshal(raw, &sets); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	return sets, nil
}

// Required returns the category names every vocabulary must cover.
func Required() []string {
	out := make([]string, len(required))
	copy(out, required)
	return out
}
