package shared

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type testEvent struct {
	name string
}

func (e testEvent) EventName() string    { return e.name }
func (e testEvent) OccurredAt() time.Time { return time.Time{} }

func TestDispatcher_RoutesByNameAndWildcard(t *testing.T) {
	d := NewDispatcher()

	var named, all []string
	d.Register("theme.applied", func(event DomainEvent) error {
		named = append(named, event.EventName())
		return nil
	})
	d.Register(WildcardEvent, func(event DomainEvent) error {
		all = append(all, event.EventName())
		return nil
	})

	assert.NoError(t, d.Dispatch(testEvent{name: "theme.applied"}))
	assert.NoError(t, d.Dispatch(testEvent{name: "theme.selected"}))

	assert.Equal(t, []string{"theme.applied"}, named)
	assert.Equal(t, []string{"theme.applied", "theme.selected"}, all)
}

func TestDispatcher_RunsEveryHandlerAndJoinsErrors(t *testing.T) {
	d := NewDispatcher()
	errFirst := errors.New("first")
	errSecond := errors.New("second")

	calls := 0
	d.Register("x", func(DomainEvent) error { calls++; return errFirst })
	d.Register("x", func(DomainEvent) error { calls++; return nil })
	d.Register(WildcardEvent, func(DomainEvent) error { calls++; return errSecond })

	err := d.Dispatch(testEvent{name: "x"})
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, errFirst)
	assert.ErrorIs(t, err, errSecond)
}

func TestDispatcher_NoHandlers(t *testing.T) {
	assert.NoError(t, NewDispatcher().Dispatch(testEvent{name: "nobody.listens"}))
}
