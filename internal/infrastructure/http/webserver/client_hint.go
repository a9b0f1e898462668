package webserver

import (
	"net/http"
	"sync"

	"github.com/alchemorsel/kitchen/internal/domain/theme"
	"github.com/alchemorsel/kitchen/internal/ports/outbound"
)

// ClientHintHeader is the user-agent client hint carrying prefers-color-scheme
const ClientHintHeader = "Sec-CH-Prefers-Color-Scheme"

// ClientHintSignal is a browser's colour-scheme preference as last reported,
// first by the client hint header and then by the page's matchMedia listener.
type ClientHintSignal struct {
	mu          sync.Mutex
	current     theme.SystemPreference
	subscribers map[int]func(theme.SystemPreference)
	nextID      int
}

var _ outbound.SystemSignal = (*ClientHintSignal)(nil)

// NewClientHintSignal creates a signal reporting initial
func NewClientHintSignal(initial theme.SystemPreference) *ClientHintSignal {
	return &ClientHintSignal{
		current:     initial,
		subscribers: make(map[int]func(theme.SystemPreference)),
	}
}

// SignalFromRequest seeds a signal from the request's client hint
func SignalFromRequest(r *http.Request) *ClientHintSignal {
	return NewClientHintSignal(theme.ParseSystemPreference(r.Header.Get(ClientHintHeader)))
}

func (s *ClientHintSignal) Current() theme.SystemPreference {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *ClientHintSignal) Subscribe(fn func(theme.SystemPreference)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subscribers, id)
		})
	}
}

// Set records a report from the browser. Subscribers are notified only when
// the preference actually changed; it reports whether it did.
func (s *ClientHintSignal) Set(pref theme.SystemPreference) bool {
	s.mu.Lock()
	if s.current == pref {
		s.mu.Unlock()
		return false
	}
	s.current = pref
	subscribers := make([]func(theme.SystemPreference), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subscribers = append(subscribers, fn)
	}
	s.mu.Unlock()

	for _, fn := range subscribers {
		fn(pref)
	}
	return true
}

// ClientHints asks the browser to send the colour-scheme hint on every
// request, retrying the first navigation if it was missing.
func ClientHints(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-CH", ClientHintHeader)
		w.Header().Set("Critical-CH", ClientHintHeader)
		w.Header().Add("Vary", ClientHintHeader)
		next.ServeHTTP(w, r)
	})
}
