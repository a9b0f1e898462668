package theme

import (
	"time"
)

// Domain Events - Events that occur while a document's theme is maintained

// Trigger identifies what caused a theme to be applied
type Trigger string

const (
	TriggerLoad   Trigger = "load"
	TriggerSelect Trigger = "select"
	TriggerSystem Trigger = "system"
	TriggerReset  Trigger = "reset"
	TriggerApply  Trigger = "apply"
)

// SystemOutcome records whether a system change was acted upon
type SystemOutcome string

const (
	SystemOutcomeApplied SystemOutcome = "applied"
	SystemOutcomeIgnored SystemOutcome = "ignored"
)

// ThemeAppliedEvent is raised whenever the presentation attribute is written
type ThemeAppliedEvent struct {
	DocumentID string
	Requested  Preference
	Effective  Effective
	Trigger    Trigger
	AppliedAt  time.Time
}

func (e ThemeAppliedEvent) EventName() string {
	return "theme.applied"
}

func (e ThemeAppliedEvent) OccurredAt() time.Time {
	return e.AppliedAt
}

// ThemeSelectedEvent is raised when the user explicitly picks a theme
type ThemeSelectedEvent struct {
	DocumentID string
	Preference Preference
	SelectedAt time.Time
}

func (e ThemeSelectedEvent) EventName() string {
	return "theme.selected"
}

func (e ThemeSelectedEvent) OccurredAt() time.Time {
	return e.SelectedAt
}

// SystemPreferenceChangedEvent is raised for every system change notification
type SystemPreferenceChangedEvent struct {
	DocumentID string
	System     SystemPreference
	Stored     Preference
	Outcome    SystemOutcome
	ChangedAt  time.Time
}

func (e SystemPreferenceChangedEvent) EventName() string {
	return "theme.system.changed"
}

func (e SystemPreferenceChangedEvent) OccurredAt() time.Time {
	return e.ChangedAt
}
