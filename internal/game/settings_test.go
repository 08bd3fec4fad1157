// internal/game/settings_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func known(th string) bool { return th == "default" || th == "fantasy" }

func TestSettingsWithNumbers(t *testing.T) {
	s := DefaultSettings()

	out, err := s.With("roundDurationSec", float64(120), known)
	require.NoError(t, err)
	assert.Equal(t, 120, out.RoundDurationSec)
	assert.Equal(t, 480, s.RoundDurationSec, "receiver is not mutated")

	out, err = s.With("totalRounds", 20, known)
	require.NoError(t, err)
	assert.Equal(t, 20, out.TotalRounds)

	cases := []struct {
		key   string
		value interface{}
	}{
		{"roundDurationSec", float64(29)},
		{"roundDurationSec", float64(1801)},
		{"totalRounds", float64(0)},
		{"voteDurationSec", float64(301)},
		{"voteDurationSec", 12.5},
		{"voteDurationSec", "60"},
	}
	for _, c := range cases {
		_, err := s.With(c.key, c.value, known)
		assert.ErrorIs(t, err, ErrInvalidSetting, "%s=%v", c.key, c.value)
	}
}

func TestSettingsUnknownKey(t *testing.T) {
	_, err := DefaultSettings().With("spyCount", float64(2), known)
	assert.ErrorIs(t, err, ErrUnknownSetting)
}

func TestSettingsThemes(t *testing.T) {
	s := DefaultSettings()

	out, err := s.With("themes", []interface{}{" Fantasy", "default", "fantasy", ""}, known)
	require.NoError(t, err)
	assert.Equal(t, []string{"fantasy", "default"}, out.Themes)

	_, err = s.With("themes", []interface{}{"space"}, known)
	assert.ErrorIs(t, err, ErrInvalidSetting)

	_, err = s.With("themes", []interface{}{}, known)
	assert.ErrorIs(t, err, ErrInvalidSetting, "at least one theme")

	_, err = s.With("themes", []interface{}{"default", 3}, known)
	assert.ErrorIs(t, err, ErrInvalidSetting)
}

func TestSettingsBounty(t *testing.T) {
	out, err := DefaultSettings().With("bountyHuntEnabled", true, known)
	require.NoError(t, err)
	assert.True(t, out.BountyHuntEnabled)

	_, err = DefaultSettings().With("bountyHuntEnabled", "yes", known)
	assert.ErrorIs(t, err, ErrInvalidSetting)
}

func TestSettingsPatchIsAllOrNothing(t *testing.T) {
	s := DefaultSettings()
	out, err := s.Patch(map[string]interface{}{
		"totalRounds":     float64(3),
		"voteDurationSec": float64(5),
	}, known)
	assert.ErrorIs(t, err, ErrInvalidSetting)
	assert.Equal(t, s, out)

	out, err = s.Patch(map[string]interface{}{
		"totalRounds": float64(3),
		"themes":      []interface{}{"fantasy"},
	}, known)
	require.NoError(t, err)
	assert.Equal(t, 3, out.TotalRounds)
	assert.Equal(t, []string{"fantasy"}, out.Themes)
}
