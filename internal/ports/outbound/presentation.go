package outbound

import (
	"github.com/alchemorsel/kitchen/internal/domain/shared"
	"github.com/alchemorsel/kitchen/internal/domain/theme"
)

// Presentation is the document-level attribute consumed by the stylesheet
type Presentation interface {
	SetThemeAttribute(effective theme.Effective)
	ThemeAttribute() theme.Effective
}

// SelectorOption is one entry of the theme picker, tagged with a preference
type SelectorOption interface {
	Value() theme.Preference
	Icon() string
	Active() bool
	SetActive(active bool)
}

// ThemeSelector is the optional theme picker control.
// The controller drives its state but never creates it.
type ThemeSelector interface {
	Options() []SelectorOption
	Text() string
	SetLabel(label string)
	SetActiveIcon(icon string)
	Focus()
}

// SelectorLocator finds the selector in the presentation layer, if present
type SelectorLocator interface {
	Selector() (ThemeSelector, bool)
}

// SystemSignal reports the environment's colour-scheme preference and its changes
type SystemSignal interface {
	Current() theme.SystemPreference
	// Subscribe registers fn for change notifications. The returned func cancels it.
	Subscribe(fn func(theme.SystemPreference)) (cancel func())
}

// EventPublisher receives domain events raised by the application layer
type EventPublisher interface {
	Dispatch(event shared.DomainEvent) error
}

// DocumentPorts groups the presentation-side collaborators of one document
type DocumentPorts struct {
	Presentation Presentation
	// Selectors may be nil when the document never renders a picker
	Selectors SelectorLocator
	Signal    SystemSignal
}
