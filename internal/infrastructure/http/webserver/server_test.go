package webserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	apptheme "github.com/alchemorsel/kitchen/internal/application/theme"
	"github.com/alchemorsel/kitchen/internal/domain/shared"
	"github.com/alchemorsel/kitchen/internal/domain/theme"
	"github.com/alchemorsel/kitchen/internal/infrastructure/config"
	"github.com/alchemorsel/kitchen/internal/infrastructure/monitoring"
	"github.com/alchemorsel/kitchen/internal/infrastructure/persistence/memory"
	"github.com/alchemorsel/kitchen/pkg/healthcheck"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	web    *WebServer
	http   *httptest.Server
	store  *memory.PreferenceStore
	themes   *apptheme.Service
	sessions *SessionStore
	hub      *Hub
}

func newTestServer(t *testing.T, configure func(*config.Config)) *testServer {
	t.Helper()

	cfg := &config.Config{
		App: config.AppConfig{Environment: "test"},
		Theme: config.ThemeConfig{
			CookieName:   "kitchen-session",
			ShowSelector: true,
			KeyPrefix:    "kitchen",
			QueueSize:    16,
			SessionTTL:   time.Hour,
		},
		RateLimit: config.RateLimitConfig{
			Enable:         true,
			RequestsPerMin: 60,
			BurstSize:      3,
		},
	}
	if configure != nil {
		configure(cfg)
	}

	logger := zap.NewNop()
	dispatcher := shared.NewDispatcher()
	store := memory.NewPreferenceStore()
	themes := apptheme.NewService(store, dispatcher, apptheme.ServiceConfig{
		KeyPrefix: cfg.Theme.KeyPrefix,
		QueueSize: cfg.Theme.QueueSize,
	}, logger)

	hub := NewHub(nil, logger)
	hub.Register(dispatcher)
	metrics := monitoring.NewMetricsCollector(logger)
	metrics.Register(dispatcher)

	sessions := NewSessionStore(cfg, logger)
	web, err := NewWebServer(cfg, logger, themes, sessions, hub,
		healthcheck.New("test", logger), metrics, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(web.Handler())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
		_ = themes.Shutdown(context.Background())
	})

	return &testServer{web: web, http: srv, store: store, themes: themes, sessions: sessions, hub: hub}
}

func (ts *testServer) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar:     jar,
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (ts *testServer) home(t *testing.T, client *http.Client, hint string) string {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.http.URL+"/", nil)
	require.NoError(t, err)
	if hint != "" {
		req.Header.Set(ClientHintHeader, hint)
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func (ts *testServer) postForm(t *testing.T, client *http.Client, path string, form url.Values, htmx bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.http.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func (ts *testServer) reportSystem(t *testing.T, client *http.Client, scheme string) theme.Snapshot {
	t.Helper()
	resp := ts.postForm(t, client, "/theme/system", url.Values{"scheme": {scheme}}, false)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snapshot theme.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	return snapshot
}

func TestHome_DefaultsToDark(t *testing.T) {
	ts := newTestServer(t, nil)
	client := ts.client(t)

	body := ts.home(t, client, "")
	assert.Contains(t, body, `data-bs-theme="dark"`)
	assert.Contains(t, body, `aria-label="Toggle theme (dark)"`)
	assert.Contains(t, body, `href="#moon-stars-fill"`)

	u, _ := url.Parse(ts.http.URL)
	cookies := client.Jar.Cookies(u)
	require.Len(t, cookies, 1)
	assert.Equal(t, "kitchen-session", cookies[0].Name)
	assert.Equal(t, 1, ts.themes.ActiveSessions())
}

func TestHome_FollowsLightClientHint(t *testing.T) {
	ts := newTestServer(t, nil)

	body := ts.home(t, ts.client(t), "light")
	assert.Contains(t, body, `data-bs-theme="light"`)
	assert.Contains(t, body, `aria-label="Toggle theme (light)"`)
}

func TestHome_WithoutSelector(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) { cfg.Theme.ShowSelector = false })

	body := ts.home(t, ts.client(t), "")
	assert.Contains(t, body, `data-bs-theme="dark"`)
	assert.NotContains(t, body, `id="theme-selector"`)

	ts.web.SetShowSelector(true)
	body = ts.home(t, ts.client(t), "")
	assert.Contains(t, body, `id="theme-selector"`)
}

func TestSelect_HTMX(t *testing.T) {
	ts := newTestServer(t, nil)
	client := ts.client(t)
	ts.home(t, client, "")

	resp := ts.postForm(t, client, "/theme", url.Values{"theme": {"light"}}, true)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"themeChanged":{"theme":"light"}}`, resp.Header.Get("HX-Trigger"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `aria-label="Toggle theme (light)"`)
	assert.Contains(t, string(body), "autofocus")
	assert.Contains(t, string(body), `href="#sun-fill"`)

	// the stored value is scoped to the document
	assert.Equal(t, 1, ts.store.Len())
}

func TestSelect_RedirectsWithoutHTMX(t *testing.T) {
	ts := newTestServer(t, nil)
	client := ts.client(t)
	ts.home(t, client, "")

	resp := ts.postForm(t, client, "/theme", url.Values{"theme": {"auto"}}, false)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	// auto with an unknown system signal resolves to light
	body := ts.home(t, client, "")
	assert.Contains(t, body, `data-bs-theme="light"`)
	assert.Contains(t, body, `aria-label="Toggle theme (auto)"`)
}

func TestSelect_InvalidTheme(t *testing.T) {
	ts := newTestServer(t, nil)
	client := ts.client(t)
	ts.home(t, client, "")

	resp := ts.postForm(t, client, "/theme", url.Values{"theme": {"sepia"}}, true)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "INVALID_THEME", body["error"]["code"])
	assert.Equal(t, 0, ts.store.Len())
}

func TestSystem_StoredChoiceWins(t *testing.T) {
	ts := newTestServer(t, nil)
	client := ts.client(t)

	assert.Contains(t, ts.home(t, client, ""), `data-bs-theme="dark"`)

	snapshot := ts.reportSystem(t, client, "light")
	assert.Equal(t, theme.EffectiveLight, snapshot.Effective)
	assert.Equal(t, theme.PreferenceUnset, snapshot.Stored)

	resp := ts.postForm(t, client, "/theme", url.Values{"theme": {"light"}}, true)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	snapshot = ts.reportSystem(t, client, "dark")
	assert.Equal(t, theme.PreferenceLight, snapshot.Stored)
	assert.Equal(t, theme.SystemDark, snapshot.System)
	assert.Equal(t, theme.EffectiveLight, snapshot.Effective)
}

func TestSystem_InvalidScheme(t *testing.T) {
	ts := newTestServer(t, nil)
	client := ts.client(t)
	ts.home(t, client, "")

	resp := ts.postForm(t, client, "/theme/system", url.Values{"scheme": {"purple"}}, false)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSystem_RateLimited(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.RequestsPerMin = 1
		cfg.RateLimit.BurstSize = 2
	})
	client := ts.client(t)
	ts.home(t, client, "")

	ts.reportSystem(t, client, "light")
	ts.reportSystem(t, client, "dark")

	resp := ts.postForm(t, client, "/theme/system", url.Values{"scheme": {"light"}}, false)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
}

func TestSystem_ReopensMissingSession(t *testing.T) {
	ts := newTestServer(t, nil)
	client := ts.client(t)
	ts.home(t, client, "")

	u, _ := url.Parse(ts.http.URL)
	ts.themes.Close(client.Jar.Cookies(u)[0].Value)
	require.Equal(t, 0, ts.themes.ActiveSessions())

	snapshot := ts.reportSystem(t, client, "light")
	assert.Equal(t, theme.EffectiveLight, snapshot.Effective)
	assert.Equal(t, 1, ts.themes.ActiveSessions())
}

func TestUseSystemSignal(t *testing.T) {
	ts := newTestServer(t, nil)
	host := NewClientHintSignal(theme.SystemLight)
	ts.web.UseSystemSignal(host)
	client := ts.client(t)

	assert.Contains(t, ts.home(t, client, "dark"), `data-bs-theme="light"`)

	// browser reports are ignored while the host signal is in charge
	snapshot := ts.reportSystem(t, client, "dark")
	assert.Equal(t, theme.SystemLight, snapshot.System)
	assert.Equal(t, theme.EffectiveLight, snapshot.Effective)

	host.Set(theme.SystemDark)
	snapshot = ts.reportSystem(t, client, "dark")
	assert.Equal(t, theme.EffectiveDark, snapshot.Effective)
}

// dial opens the page's websocket and waits until the hub has it
func (ts *testServer) dial(t *testing.T, client *http.Client) (*websocket.Conn, string) {
	t.Helper()
	u, _ := url.Parse(ts.http.URL)
	header := http.Header{}
	for _, c := range client.Jar.Cookies(u) {
		header.Add("Cookie", c.String())
	}
	wsURL := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/theme/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	documentID := client.Jar.Cookies(u)[0].Value
	require.Eventually(t, func() bool { return ts.hub.Clients(documentID) == 1 }, 2*time.Second, 10*time.Millisecond)
	return conn, documentID
}

func TestWebSocket_PushesAppliedTheme(t *testing.T) {
	ts := newTestServer(t, nil)
	client := ts.client(t)
	ts.home(t, client, "")
	conn, _ := ts.dial(t, client)

	require.NoError(t, conn.WriteJSON(Message{Type: MessageSystem, Scheme: "light"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageThemeApplied, msg.Type)
	assert.Equal(t, "light", msg.Theme)
	assert.Equal(t, string(theme.TriggerSystem), msg.Trigger)

	require.NoError(t, conn.WriteJSON(Message{Type: MessageSystem, Scheme: "purple"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageError, msg.Type)
	assert.NotEmpty(t, msg.Error)
}

func TestWebSocket_ReopensSweptSession(t *testing.T) {
	ts := newTestServer(t, nil)
	client := ts.client(t)
	ts.home(t, client, "")
	conn, documentID := ts.dial(t, client)

	// both sweeps ran while the page stayed open
	ts.themes.Close(documentID)
	require.Len(t, ts.sessions.Cleanup(time.Now().Add(2*time.Hour)), 1)
	require.Equal(t, 0, ts.themes.ActiveSessions())

	require.NoError(t, conn.WriteJSON(Message{Type: MessageSystem, Scheme: "light"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg Message
	for msg.Trigger != string(theme.TriggerSystem) {
		require.NoError(t, conn.ReadJSON(&msg))
		require.Equal(t, MessageThemeApplied, msg.Type)
	}
	assert.Equal(t, "light", msg.Theme)
	assert.Equal(t, 1, ts.themes.ActiveSessions())
	assert.Equal(t, 1, ts.sessions.Len())

	// the cookie still names the kept session
	ts.home(t, client, "")
	assert.Equal(t, 1, ts.sessions.Len())
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.home(t, ts.client(t), "")

	resp, err := http.Get(ts.http.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.http.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `kitchen_theme_applied_total{effective="dark",trigger="load"} 1`)
}
