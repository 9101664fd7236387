package eds

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/edsmon/edsmon/pkg/log"
	"github.com/edsmon/edsmon/pkg/storage"
)

// defaultFreshness is how long a token is trusted after issuance before a
// login is forced.
const defaultFreshness = 10 * time.Minute

// session holds the authenticated state for one account. Only the login
// handshake mutates it.
type session struct {
	token      string
	context    json.RawMessage
	identities map[string]string
	issuedAt   time.Time
}

// fresh reports whether the token can still be used without logging in.
func (s *session) fresh(now time.Time, window time.Duration) bool {
	return s.token != "" && now.Before(s.issuedAt.Add(window))
}

func (s *session) accountID() string {
	return s.identities["account_id"]
}

func (s *session) reset() {
	*s = session{}
}

// restoreSession loads previously saved session state and cookies for the
// account. A missing cache is not an error; the next login will rebuild it.
func (c *Connector) restoreSession(ctx context.Context) {
	access, err := c.store.LoadAccess(ctx, c.username)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Ctx(ctx).WarnContext(ctx, "failed to load saved access", slog.Any("error", err))
		}
		return
	}
	c.sess = session{
		token:      access.Token,
		context:    access.Context,
		identities: access.Identities,
		issuedAt:   access.SavedAt,
	}

	cookies, err := c.store.LoadCookies(ctx, c.username)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Ctx(ctx).WarnContext(ctx, "failed to load saved cookies", slog.Any("error", err))
		}
		return
	}
	restored := make([]*http.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		restored = append(restored, &http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	c.client.Jar.SetCookies(c.baseURL, restored)
	log.Ctx(ctx).DebugContext(ctx, "restored saved session",
		slog.Int("cookies", len(cookies)),
		slog.Time("issuedAt", c.sess.issuedAt))
}

// saveSession persists the session state and the portal cookies after a
// successful login. Failures are logged but do not fail the login.
func (c *Connector) saveSession(ctx context.Context) {
	err := c.store.SaveAccess(ctx, c.username, storage.Access{
		Token:      c.sess.token,
		Identities: c.sess.identities,
		Context:    c.sess.context,
		SavedAt:    c.sess.issuedAt,
	})
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to save access", slog.Any("error", err))
	}

	var cookies []storage.Cookie
	for _, ck := range c.client.Jar.Cookies(c.baseURL) {
		cookies = append(cookies, storage.Cookie{Name: ck.Name, Value: ck.Value})
	}
	if err := c.store.SaveCookies(ctx, c.username, cookies); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to save cookies", slog.Any("error", err))
	}
}

// resetCookies discards the portal cookies ahead of a fresh login.
func (c *Connector) resetCookies() {
	existing := c.client.Jar.Cookies(c.baseURL)
	expired := make([]*http.Cookie, 0, len(existing))
	for _, ck := range existing {
		expired = append(expired, &http.Cookie{Name: ck.Name, Value: "", MaxAge: -1})
	}
	c.client.Jar.SetCookies(c.baseURL, expired)
}
