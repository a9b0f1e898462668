package webserver

import (
	"sync"

	"github.com/alchemorsel/kitchen/internal/domain/theme"
	"github.com/alchemorsel/kitchen/internal/ports/outbound"
)

// Document is the server-side model of one rendered page: the theme attribute
// on <html> and, when shown, the theme picker in the navbar.
type Document struct {
	mu        sync.Mutex
	attribute theme.Effective
	selector  *Selector
}

var (
	_ outbound.Presentation    = (*Document)(nil)
	_ outbound.SelectorLocator = (*Document)(nil)
)

// NewDocument creates a page model, with the picker when showSelector is set
func NewDocument(showSelector bool) *Document {
	d := &Document{}
	if showSelector {
		d.selector = newSelector(&d.mu)
	}
	return d
}

func (d *Document) SetThemeAttribute(effective theme.Effective) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attribute = effective
}

func (d *Document) ThemeAttribute() theme.Effective {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attribute
}

func (d *Document) Selector() (outbound.ThemeSelector, bool) {
	if d.selector == nil {
		return nil, false
	}
	return d.selector, true
}

// Selector is the dropdown picker
type Selector struct {
	mu         *sync.Mutex
	options    []*Option
	text       string
	label      string
	activeIcon string
	focused    bool
}

func newSelector(mu *sync.Mutex) *Selector {
	s := &Selector{
		mu:         mu,
		text:       "Toggle theme",
		activeIcon: "#circle-half",
	}
	s.options = []*Option{
		{mu: mu, value: theme.PreferenceLight, name: "Light", icon: "#sun-fill"},
		{mu: mu, value: theme.PreferenceDark, name: "Dark", icon: "#moon-stars-fill"},
		{mu: mu, value: theme.PreferenceAuto, name: "Auto", icon: "#circle-half"},
	}
	s.label = s.text
	return s
}

func (s *Selector) Options() []outbound.SelectorOption {
	out := make([]outbound.SelectorOption, len(s.options))
	for i, o := range s.options {
		out[i] = o
	}
	return out
}

func (s *Selector) Text() string {
	return s.text
}

func (s *Selector) SetLabel(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.label = label
}

func (s *Selector) SetActiveIcon(icon string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeIcon = icon
}

func (s *Selector) Focus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focused = true
}

// Option is one dropdown item
type Option struct {
	mu     *sync.Mutex
	value  theme.Preference
	name   string
	icon   string
	active bool
}

func (o *Option) Value() theme.Preference { return o.value }
func (o *Option) Icon() string            { return o.icon }

func (o *Option) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

func (o *Option) SetActive(active bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active = active
}

// DocumentView is what the templates render
type DocumentView struct {
	Theme    string
	Selector *SelectorView
}

// SelectorView is the rendered state of the picker
type SelectorView struct {
	Label      string
	ActiveIcon string
	Focused    bool
	Options    []OptionView
}

// OptionView is the rendered state of one picker item
type OptionView struct {
	Value  string
	Name   string
	Icon   string
	Active bool
}

// View takes a consistent snapshot of the page state. Focus is a one-shot
// request: only the first render after Focus carries it.
func (d *Document) View() DocumentView {
	d.mu.Lock()
	defer d.mu.Unlock()

	view := DocumentView{Theme: string(d.attribute)}
	if d.selector == nil {
		return view
	}

	s := d.selector
	sv := &SelectorView{
		Label:      s.label,
		ActiveIcon: s.activeIcon,
		Focused:    s.focused,
		Options:    make([]OptionView, len(s.options)),
	}
	s.focused = false
	for i, o := range s.options {
		sv.Options[i] = OptionView{
			Value:  string(o.value),
			Name:   o.name,
			Icon:   o.icon,
			Active: o.active,
		}
	}
	view.Selector = sv
	return view
}
