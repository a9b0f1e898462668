package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePreference(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Preference
		wantErr error
	}{
		{name: "light", raw: "light", want: PreferenceLight},
		{name: "dark", raw: "dark", want: PreferenceDark},
		{name: "auto", raw: "auto", want: PreferenceAuto},
		{name: "case and whitespace", raw: "  Dark ", want: PreferenceDark},
		{name: "empty", raw: "", wantErr: ErrInvalidPreference},
		{name: "unknown value", raw: "purple", wantErr: ErrInvalidPreference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePreference(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, PreferenceUnset, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPreferencePredicates(t *testing.T) {
	assert.False(t, PreferenceUnset.IsSet())
	assert.True(t, PreferenceAuto.IsSet())

	assert.True(t, PreferenceLight.IsExplicit())
	assert.True(t, PreferenceDark.IsExplicit())
	assert.False(t, PreferenceAuto.IsExplicit())
	assert.False(t, PreferenceUnset.IsExplicit())

	assert.True(t, PreferenceUnset.FollowsSystem())
	assert.True(t, PreferenceAuto.FollowsSystem())
	assert.False(t, PreferenceLight.FollowsSystem())

	assert.Equal(t, "unset", PreferenceUnset.String())
	assert.Equal(t, []Preference{PreferenceLight, PreferenceDark, PreferenceAuto}, Preferences())
}

func TestParseSystemPreference(t *testing.T) {
	assert.Equal(t, SystemLight, ParseSystemPreference("light"))
	assert.Equal(t, SystemDark, ParseSystemPreference("DARK"))
	assert.Equal(t, SystemUnknown, ParseSystemPreference(""))
	assert.Equal(t, SystemUnknown, ParseSystemPreference("no-preference"))

	got, err := ParseSystemPreferenceStrict("unknown")
	require.NoError(t, err)
	assert.Equal(t, SystemUnknown, got)

	_, err = ParseSystemPreferenceStrict("sepia")
	assert.ErrorIs(t, err, ErrInvalidSystemPreference)
}

func TestPreferred(t *testing.T) {
	tests := []struct {
		name   string
		stored Preference
		system SystemPreference
		want   Preference
	}{
		{"unset follows light system", PreferenceUnset, SystemLight, PreferenceLight},
		{"unset follows dark system", PreferenceUnset, SystemDark, PreferenceDark},
		{"unset with unknown system defaults to dark", PreferenceUnset, SystemUnknown, PreferenceDark},
		{"stored light wins over dark system", PreferenceLight, SystemDark, PreferenceLight},
		{"stored dark wins over light system", PreferenceDark, SystemLight, PreferenceDark},
		{"stored auto is returned as is", PreferenceAuto, SystemLight, PreferenceAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Preferred(tt.stored, tt.system))
		})
	}
}

func TestResolve(t *testing.T) {
	systems := []SystemPreference{SystemLight, SystemDark, SystemUnknown}

	for _, system := range systems {
		assert.Equal(t, EffectiveLight, Resolve(PreferenceLight, system), "light ignores %s", system)
		assert.Equal(t, EffectiveDark, Resolve(PreferenceDark, system), "dark ignores %s", system)
	}

	assert.Equal(t, EffectiveDark, Resolve(PreferenceAuto, SystemDark))
	assert.Equal(t, EffectiveLight, Resolve(PreferenceAuto, SystemLight))
	// auto only asks whether dark is preferred
	assert.Equal(t, EffectiveLight, Resolve(PreferenceAuto, SystemUnknown))
}
