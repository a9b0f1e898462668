// Package theme contains the display-theme domain: the persisted preference,
// the effective theme applied to a document and the system colour signal.
package theme

import (
	"strings"
)

// StorageKey is the key under which the preference is persisted
const StorageKey = "theme"

// Preference is the user's persisted theme choice.
// The zero value means no preference has been stored.
type Preference string

const (
	PreferenceUnset Preference = ""
	PreferenceLight Preference = "light"
	PreferenceDark  Preference = "dark"
	PreferenceAuto  Preference = "auto"
)

// Preferences lists the selectable preferences in selector order
func Preferences() []Preference {
	return []Preference{PreferenceLight, PreferenceDark, PreferenceAuto}
}

// ParsePreference validates a raw preference value
func ParsePreference(raw string) (Preference, error) {
	p := Preference(strings.ToLower(strings.TrimSpace(raw)))
	if !p.IsValid() {
		return PreferenceUnset, ErrInvalidPreference
	}
	return p, nil
}

// IsValid reports whether p is one of light, dark or auto
func (p Preference) IsValid() bool {
	switch p {
	case PreferenceLight, PreferenceDark, PreferenceAuto:
		return true
	}
	return false
}

// IsSet reports whether a preference has been stored
func (p Preference) IsSet() bool {
	return p != PreferenceUnset
}

// IsExplicit reports whether p pins the theme regardless of the system signal
func (p Preference) IsExplicit() bool {
	return p == PreferenceLight || p == PreferenceDark
}

// FollowsSystem reports whether system changes should re-resolve the theme
func (p Preference) FollowsSystem() bool {
	return !p.IsExplicit()
}

func (p Preference) String() string {
	if p == PreferenceUnset {
		return "unset"
	}
	return string(p)
}

// Effective is the concrete theme written to the presentation layer. Never auto.
type Effective string

const (
	EffectiveLight Effective = "light"
	EffectiveDark  Effective = "dark"
)

func (e Effective) String() string {
	return string(e)
}

// SystemPreference is the host environment's colour-scheme signal
type SystemPreference string

const (
	SystemUnknown SystemPreference = ""
	SystemLight   SystemPreference = "light"
	SystemDark    SystemPreference = "dark"
)

// ParseSystemPreference is lenient: anything other than light or dark is unknown.
// The strict form is ParseSystemPreferenceStrict.
func ParseSystemPreference(raw string) SystemPreference {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "light":
		return SystemLight
	case "dark":
		return SystemDark
	}
	return SystemUnknown
}

// ParseSystemPreferenceStrict accepts light, dark, unknown and the empty string
func ParseSystemPreferenceStrict(raw string) (SystemPreference, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "light":
		return SystemLight, nil
	case "dark":
		return SystemDark, nil
	case "", "unknown", "no-preference":
		return SystemUnknown, nil
	}
	return SystemUnknown, ErrInvalidSystemPreference
}

// PrefersLight reports whether the system positively reports a light preference
func (s SystemPreference) PrefersLight() bool {
	return s == SystemLight
}

// PrefersDark reports whether the system positively reports a dark preference
func (s SystemPreference) PrefersDark() bool {
	return s == SystemDark
}

func (s SystemPreference) String() string {
	if s == SystemUnknown {
		return "unknown"
	}
	return string(s)
}

// Preferred returns the preference to use for a document.
// A stored value wins. Otherwise the system decides, and anything short of a
// confirmed light preference falls back to dark.
func Preferred(stored Preference, system SystemPreference) Preference {
	if stored.IsSet() {
		return stored
	}
	if system.PrefersLight() {
		return PreferenceLight
	}
	return PreferenceDark
}

// Resolve turns a requested preference into the theme to apply.
// auto asks the system whether dark is preferred; an unknown signal resolves to light.
func Resolve(requested Preference, system SystemPreference) Effective {
	switch requested {
	case PreferenceLight:
		return EffectiveLight
	case PreferenceDark:
		return EffectiveDark
	}
	if system.PrefersDark() {
		return EffectiveDark
	}
	return EffectiveLight
}
