// Package theme implements the display-theme use cases: resolving, persisting,
// applying and displaying a document's colour mode.
package theme

import (
	"context"
	"fmt"
	"time"

	"github.com/alchemorsel/kitchen/internal/domain/shared"
	"github.com/alchemorsel/kitchen/internal/domain/theme"
	"github.com/alchemorsel/kitchen/internal/ports/outbound"
	"go.uber.org/zap"
)

// Collaborators are the document-side ports a controller drives
type Collaborators = outbound.DocumentPorts

// Controller keeps one document's applied theme consistent with the stored
// preference and the system signal. All real state lives in the store and the
// document; the controller only remembers whether the ready event has fired.
//
// A Controller is not safe for concurrent use. Session runs it on a Loop.
type Controller struct {
	documentID   string
	store        outbound.PreferenceStore
	presentation outbound.Presentation
	selectors    outbound.SelectorLocator
	signal       outbound.SystemSignal
	events       outbound.EventPublisher
	logger       *zap.Logger
	now          func() time.Time
	ready        bool
}

// NewController creates a controller for a single document
func NewController(
	documentID string,
	store outbound.PreferenceStore,
	collab Collaborators,
	events outbound.EventPublisher,
	logger *zap.Logger,
) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		documentID:   documentID,
		store:        store,
		presentation: collab.Presentation,
		selectors:    collab.Selectors,
		signal:       collab.Signal,
		events:       events,
		logger:       logger.With(zap.String("component", "theme_controller"), zap.String("document_id", documentID)),
		now:          time.Now,
	}
}

// StoredPreference reads the persisted preference. A failed or invalid read is unset.
func (c *Controller) StoredPreference(ctx context.Context) theme.Preference {
	raw, found, err := c.store.Get(ctx, theme.StorageKey)
	if err != nil {
		c.logger.Warn("Failed to read theme preference, treating as unset", zap.Error(err))
		return theme.PreferenceUnset
	}
	if !found {
		return theme.PreferenceUnset
	}

	pref, err := theme.ParsePreference(raw)
	if err != nil {
		c.logger.Warn("Ignoring invalid stored theme preference", zap.String("value", raw))
		return theme.PreferenceUnset
	}
	return pref
}

// PreferredTheme returns the stored preference, or a system-derived one
func (c *Controller) PreferredTheme(ctx context.Context) theme.Preference {
	return theme.Preferred(c.StoredPreference(ctx), c.signal.Current())
}

// ApplyTheme resolves requested against the live system signal and writes the result
func (c *Controller) ApplyTheme(requested theme.Preference) theme.Effective {
	return c.apply(requested, theme.TriggerApply)
}

// SetStoredPreference overwrites the persisted preference. Failures are logged only.
func (c *Controller) SetStoredPreference(ctx context.Context, pref theme.Preference) {
	if err := c.store.Set(ctx, theme.StorageKey, string(pref)); err != nil {
		c.logger.Warn("Failed to persist theme preference",
			zap.String("theme", pref.String()),
			zap.Error(err),
		)
	}
}

// RefreshSelector marks pref as the active picker option.
// It does nothing when the document has no selector.
func (c *Controller) RefreshSelector(pref theme.Preference, focus bool) {
	if c.selectors == nil {
		return
	}
	selector, ok := c.selectors.Selector()
	if !ok || selector == nil {
		return
	}

	var match outbound.SelectorOption
	for _, option := range selector.Options() {
		option.SetActive(false)
		if match == nil && option.Value() == pref {
			match = option
		}
	}
	if match == nil {
		c.logger.Debug("No selector option for theme", zap.String("theme", pref.String()))
		return
	}

	match.SetActive(true)
	selector.SetActiveIcon(match.Icon())
	selector.SetLabel(fmt.Sprintf("%s (%s)", selector.Text(), match.Value()))

	if focus {
		selector.Focus()
	}
}

// Load applies the preferred theme before the document becomes interactive.
// The selector is not touched; it may not exist yet.
func (c *Controller) Load(ctx context.Context) theme.Effective {
	return c.apply(c.PreferredTheme(ctx), theme.TriggerLoad)
}

// Ready synchronises the selector once the document has rendered it.
// Only the first call has an effect.
func (c *Controller) Ready(ctx context.Context) {
	if c.ready {
		return
	}
	c.ready = true
	c.RefreshSelector(c.PreferredTheme(ctx), false)
}

// Select handles an explicit user choice: persist, apply, then refresh the selector
func (c *Controller) Select(ctx context.Context, pref theme.Preference) (theme.Effective, error) {
	if !pref.IsValid() {
		return "", theme.ErrInvalidPreference
	}

	c.SetStoredPreference(ctx, pref)
	effective := c.apply(pref, theme.TriggerSelect)
	c.RefreshSelector(pref, true)

	c.publish(theme.ThemeSelectedEvent{
		DocumentID: c.documentID,
		Preference: pref,
		SelectedAt: c.now(),
	})
	return effective, nil
}

// SystemChanged reacts to a system colour-scheme notification.
// Explicit light or dark preferences ignore it.
func (c *Controller) SystemChanged(ctx context.Context) theme.SystemOutcome {
	stored := c.StoredPreference(ctx)
	outcome := theme.SystemOutcomeIgnored
	if stored.FollowsSystem() {
		c.apply(theme.Preferred(stored, c.signal.Current()), theme.TriggerSystem)
		outcome = theme.SystemOutcomeApplied
	}

	c.publish(theme.SystemPreferenceChangedEvent{
		DocumentID: c.documentID,
		System:     c.signal.Current(),
		Stored:     stored,
		Outcome:    outcome,
		ChangedAt:  c.now(),
	})
	return outcome
}

// Reset removes the stored preference and re-resolves as on load
func (c *Controller) Reset(ctx context.Context) theme.Effective {
	if err := c.store.Delete(ctx, theme.StorageKey); err != nil {
		c.logger.Warn("Failed to clear theme preference", zap.Error(err))
	}
	pref := c.PreferredTheme(ctx)
	effective := c.apply(pref, theme.TriggerReset)
	c.RefreshSelector(pref, false)
	return effective
}

// Snapshot reports the document's current theme state
func (c *Controller) Snapshot(ctx context.Context) theme.Snapshot {
	stored := c.StoredPreference(ctx)
	system := c.signal.Current()
	return theme.Snapshot{
		Stored:    stored,
		Preferred: theme.Preferred(stored, system),
		Effective: c.presentation.ThemeAttribute(),
		System:    system,
	}
}

func (c *Controller) apply(requested theme.Preference, trigger theme.Trigger) theme.Effective {
	effective := theme.Resolve(requested, c.signal.Current())
	c.presentation.SetThemeAttribute(effective)

	c.logger.Debug("Applied theme",
		zap.String("requested", requested.String()),
		zap.String("effective", effective.String()),
		zap.String("trigger", string(trigger)),
	)

	c.publish(theme.ThemeAppliedEvent{
		DocumentID: c.documentID,
		Requested:  requested,
		Effective:  effective,
		Trigger:    trigger,
		AppliedAt:  c.now(),
	})
	return effective
}

func (c *Controller) publish(event shared.DomainEvent) {
	if c.events == nil {
		return
	}
	if err := c.events.Dispatch(event); err != nil {
		c.logger.Warn("Theme event handler failed",
			zap.String("event", event.EventName()),
			zap.Error(err),
		)
	}
}
