// internal/game/settings.go
package game

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jason-s-yu/spyfall/internal/locations"
)

var (
	// ErrUnknownSetting is returned for a key Settings does not recognise.
	ErrUnknownSetting = errors.New("unknown setting")
	// ErrInvalidSetting is returned for a value of the wrong type or range.
	ErrInvalidSetting = errors.New("invalid setting value")
)

// Settings is the host-configurable part of a room.
type Settings struct {
	RoundDurationSec  int      `json:"roundDurationSec"`
	TotalRounds       int      `json:"totalRounds"`
	Themes            []string `json:"themes"`
	VoteDurationSec   int      `json:"voteDurationSec"`
	BountyHuntEnabled bool     `json:"bountyHuntEnabled"`
}

// DefaultSettings returns the settings a new room starts with.
func DefaultSettings() Settings {
	return Settings{
		RoundDurationSec:  480,
		TotalRounds:       5,
		Themes:            []string{locations.DefaultTheme},
		VoteDurationSec:   60,
		BountyHuntEnabled: false,
	}
}

type intRange struct{ min, max int }

var settingRanges = map[string]intRange{
	"roundDurationSec": {30, 1800},
	"totalRounds":      {1, 20},
	"voteDurationSec":  {10, 300},
}

func (s Settings) clone() Settings {
	s.Themes = append([]string(nil), s.Themes...)
	return s
}

// With returns a copy of s with one key changed. knownTheme reports whether a
// theme exists in the dataset.
func (s Settings) With(key string, value interface{}, knownTheme func(string) bool) (Settings, error) {
	out := s.clone()
	switch key {
	case "roundDurationSec", "totalRounds", "voteDurationSec":
		n, err := toInt(value)
		if err != nil {
			return s, fmt.Errorf("%s: %w", key, err)
		}
		r := settingRanges[key]
		if n < r.min || n > r.max {
			return s, fmt.Errorf("%s must be between %d and %d: %w", key, r.min, r.max, ErrInvalidSetting)
		}
		switch key {
		case "roundDurationSec":
			out.RoundDurationSec = n
		case "totalRounds":
			out.TotalRounds = n
		default:
			out.VoteDurationSec = n
		}
	case "themes":
		themes, err := toThemes(value, knownTheme)
		if err != nil {
			return s, fmt.Errorf("themes: %w", err)
		}
		out.Themes = themes
	case "bountyHuntEnabled":
		b, ok := value.(bool)
		if !ok {
			return s, fmt.Errorf("bountyHuntEnabled must be a boolean: %w", ErrInvalidSetting)
		}
		out.BountyHuntEnabled = b
	default:
		return s, fmt.Errorf("%q: %w", key, ErrUnknownSetting)
	}
	return out, nil
}

// Patch applies every key of patch, failing on the first bad one.
func (s Settings) Patch(patch map[string]interface{}, knownTheme func(string) bool) (Settings, error) {
	out := s.clone()
	for k, v := range patch {
		var err error
		if out, err = out.With(k, v, knownTheme); err != nil {
			return s, err
		}
	}
	return out, nil
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("must be a whole number: %w", ErrInvalidSetting)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("must be a number: %w", ErrInvalidSetting)
	}
}

func toThemes(v interface{}, knownTheme func(string) bool) ([]string, error) {
	var raw []string
	switch t := v.(type) {
	case []string:
		raw = t
	case []interface{}:
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("must be a list of strings: %w", ErrInvalidSetting)
			}
			raw = append(raw, s)
		}
	default:
		return nil, fmt.Errorf("must be a list of strings: %w", ErrInvalidSetting)
	}

	seen := make(map[string]bool, len(raw))
	themes := make([]string, 0, len(raw))
	for _, th := range raw {
		th = strings.ToLower(strings.TrimSpace(th))
		if th == "" || seen[th] {
			continue
		}
		if knownTheme != nil && !knownTheme(th) {
			return nil, fmt.Errorf("unknown theme %q: %w", th, ErrInvalidSetting)
		}
		seen[th] = true
		themes = append(themes, th)
	}
	if len(themes) == 0 {
		return nil, fmt.Errorf("at least one theme is required: %w", ErrInvalidSetting)
	}
	return themes, nil
}
