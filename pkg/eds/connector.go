// Package eds is a headless client for the e-Distribución private area, a
// Salesforce Lightning site with no public API. It drives the browser login
// handshake, keeps the resulting session alive and exposes the portal's
// internal "aura" actions as typed queries.
package eds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/edsmon/edsmon/pkg/common"
	"github.com/edsmon/edsmon/pkg/log"
	"github.com/edsmon/edsmon/pkg/storage"
)

const (
	defaultBaseURL = "https://zonaprivada.edistribucion.com"

	auraPath    = "/areaprivada/s/sfsites/aura"
	landingPath = "/areaprivada/s/"
	loginPath   = "/areaprivada/s/login?ec=302&startURL=%2Fareaprivada%2Fs%2F"

	// pageURI values the portal expects on authenticated and login posts.
	actionPageURI = "/areaprivada/s/wp-online-access"
	loginPageURI  = "/areaprivada/s/login/?language=es&startURL=%2Fareaprivada%2Fs%2F&ec=302"
)

// Connector talks to the portal for a single account. It owns the session
// state and the cookie-bearing HTTP client; callers run queries through the
// typed methods in queries.go.
type Connector struct {
	client   *http.Client
	baseURL  *url.URL
	username string
	password string
	store    storage.Store

	freshness time.Duration
	now       func() time.Time

	mu       sync.Mutex
	sess     session
	restored bool
}

// Opts configures a Connector.
type Opts struct {
	Username string
	Password string

	// Store persists session state between runs. Defaults to
	// storage.Discard when nil.
	Store storage.Store

	// BaseURL overrides the portal origin, primarily for tests.
	BaseURL string

	// Freshness overrides how long a token is trusted after issuance.
	Freshness time.Duration

	// Client overrides the HTTP client. It must carry a cookie jar.
	Client *http.Client
}

// New creates a Connector for the given account.
func New(opts Opts) (*Connector, error) {
	c := &Connector{}
	if err := c.init(opts); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Connector) init(opts Opts) error {
	if opts.Username == "" {
		return fmt.Errorf("missing username")
	}
	if opts.Password == "" {
		return fmt.Errorf("missing password")
	}
	base := opts.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("bad base url %q: %w", base, err)
	}
	c.client = opts.Client
	if c.client == nil {
		c.client = common.HTTPClient(time.Minute)
	}
	c.store = opts.Store
	if c.store == nil {
		c.store = storage.Discard{}
	}
	c.freshness = opts.Freshness
	if c.freshness == 0 {
		c.freshness = defaultFreshness
	}
	c.baseURL = u
	c.username = opts.Username
	c.password = opts.Password
	c.now = time.Now
	return nil
}

// fetch runs one HTTP round-trip. rawURL may be relative to the portal
// origin. A status >= 400 is a TransportError.
func (c *Connector) fetch(ctx context.Context, method, rawURL string, form url.Values) ([]byte, string, error) {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("bad url %q: %w", rawURL, err)
	}
	u := c.baseURL.ResolveReference(ref)

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, "", err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode >= 400 {
		log.Ctx(ctx).DebugContext(ctx, "portal request failed",
			slog.String("url", u.String()),
			slog.Int("status", resp.StatusCode))
		return nil, "", &TransportError{StatusCode: resp.StatusCode, URL: u.String()}
	}
	return b, resp.Header.Get("Content-Type"), nil
}

// action is one aura action in the request envelope.
type action struct {
	ID                string         `json:"id"`
	Descriptor        string         `json:"descriptor"`
	CallingDescriptor string         `json:"callingDescriptor"`
	Params            map[string]any `json:"params"`
	LongRunning       bool           `json:"longRunning,omitempty"`
}

type auraEnvelope struct {
	Actions []action `json:"actions"`
}

type auraActionResult struct {
	State       string          `json:"state"`
	ReturnValue json.RawMessage `json:"returnValue"`
	Error       []struct {
		Message struct {
			Message string `json:"message"`
		} `json:"message"`
	} `json:"error"`
}

func (r *auraActionResult) errorMessage() string {
	if len(r.Error) > 0 {
		return r.Error[0].Message.Message
	}
	return "unknown error"
}

// dispatch posts one action to the aura endpoint without any retry or login
// handling. marker is the portal's per-action query-string tag.
func (c *Connector) dispatch(ctx context.Context, marker string, act action, pageURI, token string) ([]byte, string, error) {
	msg, err := json.Marshal(auraEnvelope{Actions: []action{act}})
	if err != nil {
		return nil, "", err
	}
	form := url.Values{}
	form.Set("message", string(msg))
	form.Set("aura.context", string(c.sess.context))
	form.Set("aura.pageURI", pageURI)
	form.Set("aura.token", token)
	return c.fetch(ctx, http.MethodPost, auraPath+"?"+marker, form)
}

// sessionDeathMarkers appear in responses when the portal has invalidated
// the session server-side.
var sessionDeathMarkers = [][]byte{
	[]byte("window.location.href"),
	[]byte("clientOutOfSync"),
}

func sessionDied(body []byte) bool {
	for _, m := range sessionDeathMarkers {
		if bytes.Contains(body, m) {
			return true
		}
	}
	return false
}

// execute runs one authenticated action. If the portal signals session death
// or a non-success state, it forces a re-login and retries exactly once;
// a second failure aborts.
func (c *Connector) execute(ctx context.Context, marker string, act action) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.login(ctx); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			log.Ctx(ctx).DebugContext(ctx, "session invalidated, forcing re-login",
				slog.String("marker", marker))
			c.resetCookies()
			c.sess.reset()
			if err := c.forceLogin(ctx, false); err != nil {
				return nil, err
			}
		}

		body, contentType, err := c.dispatch(ctx, marker, act, actionPageURI, c.sess.token)
		if err != nil {
			return nil, err
		}

		if sessionDied(body) {
			if attempt > 0 {
				return nil, ErrSessionExpired
			}
			continue
		}

		if !strings.Contains(contentType, "json") {
			// binary/file download path
			return json.RawMessage(body), nil
		}

		var env struct {
			Actions []auraActionResult `json:"actions"`
		}
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, &ProtocolError{Reason: "bad action envelope: " + err.Error()}
		}
		if len(env.Actions) == 0 {
			return nil, &ProtocolError{Reason: "empty action envelope"}
		}
		if env.Actions[0].State != "SUCCESS" {
			if attempt > 0 {
				return nil, &CommandError{Message: env.Actions[0].errorMessage()}
			}
			continue
		}
		return env.Actions[0].ReturnValue, nil
	}
	return nil, ErrSessionExpired
}
