// Package outboundtest provides fake and mock implementations of the outbound ports for testing
package outboundtest

import (
	"context"
	"errors"
	"sync"

	"github.com/alchemorsel/kitchen/internal/domain/shared"
	"github.com/alchemorsel/kitchen/internal/domain/theme"
	"github.com/alchemorsel/kitchen/internal/ports/outbound"
	"github.com/stretchr/testify/mock"
)

// ErrUnavailable is returned by a Store switched into failure mode
var ErrUnavailable = errors.New("storage unavailable")

// CallLog records the order of calls made on the fakes that share it.
// A nil log records nothing.
type CallLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *CallLog) record(call string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

// Calls returns the recorded calls in order
func (l *CallLog) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// Index returns the position of the first recorded call, or -1
func (l *CallLog) Index(call string) int {
	for i, c := range l.Calls() {
		if c == call {
			return i
		}
	}
	return -1
}

// Store is an in-memory PreferenceStore with switchable failures
type Store struct {
	mu      sync.Mutex
	data    map[string]string
	FailGet bool
	FailSet bool
	Log     *CallLog
	Gets    int
	Sets    int
	Deletes int
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{data: make(map[string]string)}
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Gets++
	if s.FailGet {
		return "", false, ErrUnavailable
	}
	value, ok := s.data[key]
	return value, ok, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sets++
	s.Log.record("store.Set")
	if s.FailSet {
		return ErrUnavailable
	}
	s.data[key] = value
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deletes++
	s.Log.record("store.Delete")
	if s.FailSet {
		return ErrUnavailable
	}
	delete(s.data, key)
	return nil
}

// Value returns the raw stored value for key
func (s *Store) Value(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.data[key]
	return value, ok
}

// Keys returns every stored key
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// MockPreferenceStore provides a testify mock of PreferenceStore
type MockPreferenceStore struct {
	mock.Mock
}

func (m *MockPreferenceStore) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockPreferenceStore) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockPreferenceStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// Option is a recorded selector option
type Option struct {
	value  theme.Preference
	icon   string
	active bool
	log    *CallLog
}

func (o *Option) Value() theme.Preference { return o.value }
func (o *Option) Icon() string            { return o.icon }
func (o *Option) Active() bool            { return o.active }
func (o *Option) SetActive(active bool) {
	o.active = active
	o.log.record("option.SetActive")
}

// Selector records what the controller does to the picker
type Selector struct {
	options    []*Option
	text       string
	Label      string
	ActiveIcon string
	Focused    int
	log        *CallLog
}

func (s *Selector) Options() []outbound.SelectorOption {
	out := make([]outbound.SelectorOption, len(s.options))
	for i, o := range s.options {
		out[i] = o
	}
	return out
}

func (s *Selector) Text() string              { return s.text }
func (s *Selector) SetLabel(label string) {
	s.Label = label
	s.log.record("selector.SetLabel")
}

func (s *Selector) SetActiveIcon(icon string) {
	s.ActiveIcon = icon
	s.log.record("selector.SetActiveIcon")
}

func (s *Selector) Focus() {
	s.Focused++
	s.log.record("selector.Focus")
}

// ActiveValues returns the values of every active option
func (s *Selector) ActiveValues() []theme.Preference {
	var active []theme.Preference
	for _, o := range s.options {
		if o.active {
			active = append(active, o.value)
		}
	}
	return active
}

// Document is a fake presentation layer with an optional selector
type Document struct {
	mu        sync.Mutex
	attribute theme.Effective
	writes    int
	selector  *Selector
	log       *CallLog
}

// NewDocument creates a document with the standard light, dark and auto picker
func NewDocument() *Document {
	return &Document{selector: NewSelector()}
}

// NewBareDocument creates a document without any selector
func NewBareDocument() *Document {
	return &Document{}
}

// NewSelector creates the standard three-option picker
func NewSelector() *Selector {
	return &Selector{
		text: "Toggle theme",
		options: []*Option{
			{value: theme.PreferenceLight, icon: "#sun-fill"},
			{value: theme.PreferenceDark, icon: "#moon-stars-fill"},
			{value: theme.PreferenceAuto, icon: "#circle-half"},
		},
	}
}

// Trace records the document's calls, and its selector's, into log
func (d *Document) Trace(log *CallLog) {
	d.mu.Lock()
	d.log = log
	d.mu.Unlock()
	if d.selector == nil {
		return
	}
	d.selector.log = log
	for _, o := range d.selector.options {
		o.log = log
	}
}

func (d *Document) SetThemeAttribute(effective theme.Effective) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attribute = effective
	d.writes++
	d.log.record("document.SetThemeAttribute")
}

func (d *Document) ThemeAttribute() theme.Effective {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attribute
}

// Writes returns how many times the attribute was written
func (d *Document) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

func (d *Document) Selector() (outbound.ThemeSelector, bool) {
	if d.selector == nil {
		return nil, false
	}
	return d.selector, true
}

// FakeSelector exposes the recorded selector, nil when absent
func (d *Document) FakeSelector() *Selector {
	return d.selector
}

// Signal is a settable SystemSignal
type Signal struct {
	mu          sync.Mutex
	current     theme.SystemPreference
	subscribers map[int]func(theme.SystemPreference)
	nextID      int
}

// NewSignal creates a signal reporting initial
func NewSignal(initial theme.SystemPreference) *Signal {
	return &Signal{
		current:     initial,
		subscribers: make(map[int]func(theme.SystemPreference)),
	}
}

func (s *Signal) Current() theme.SystemPreference {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Signal) Subscribe(fn func(theme.SystemPreference)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// Set changes the signal and notifies subscribers outside the lock
func (s *Signal) Set(pref theme.SystemPreference) {
	s.mu.Lock()
	s.current = pref
	subscribers := make([]func(theme.SystemPreference), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subscribers = append(subscribers, fn)
	}
	s.mu.Unlock()

	for _, fn := range subscribers {
		fn(pref)
	}
}

// Subscribers returns the number of live subscriptions
func (s *Signal) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// Events records dispatched domain events
type Events struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	Err    error
}

func (e *Events) Dispatch(event shared.DomainEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return e.Err
}

// Named returns recorded events with the given name
func (e *Events) Named(name string) []shared.DomainEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []shared.DomainEvent
	for _, ev := range e.events {
		if ev.EventName() == name {
			out = append(out, ev)
		}
	}
	return out
}
