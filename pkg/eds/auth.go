package eds

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/edsmon/edsmon/pkg/log"
)

// Login makes sure the connector holds a fresh session, running the full
// handshake when it does not. It is a no-op while the current token is
// inside the freshness window.
func (c *Connector) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.login(ctx)
}

// login must be called with c.mu held.
func (c *Connector) login(ctx context.Context) error {
	if !c.restored {
		c.restoreSession(ctx)
		c.restored = true
	}
	if c.sess.fresh(c.now(), c.freshness) {
		return nil
	}
	log.Ctx(ctx).DebugContext(ctx, "session stale, logging in")
	c.resetCookies()
	c.sess.reset()
	return c.forceLogin(ctx, false)
}

// forceLogin runs the full browser handshake: login page, context scrape,
// credential post, frontdoor redirect, landing page token scrape, identity
// lookup. retried guards the single "invalidSession" recovery so a broken
// portal cannot loop us.
func (c *Connector) forceLogin(ctx context.Context, retried bool) error {
	page, _, err := c.fetch(ctx, http.MethodGet, loginPath, nil)
	if err != nil {
		return err
	}
	if !hasAuraConfig(string(page)) {
		return &ProtocolError{Reason: "login page has no auraConfig"}
	}

	// Walk the login page scripts. The resources.js src carries the aura
	// context; the rest are fetched anyway because the portal expects a
	// browser-shaped request sequence.
	for _, src := range scriptSrcs(string(page)) {
		if _, _, err := c.fetch(ctx, http.MethodGet, src, nil); err != nil {
			log.Ctx(ctx).DebugContext(ctx, "failed to fetch login script",
				slog.String("src", src), slog.Any("error", err))
			continue
		}
		if strings.Contains(src, "resources.js") {
			cctx, err := contextFromResourceSrc(src)
			if err != nil {
				return err
			}
			c.sess.context = cctx
		}
	}
	if c.sess.context == nil {
		// Known fragility: the portal has shipped login pages without a
		// resources.js script. The credential post may still succeed with
		// an empty context.
		log.Ctx(ctx).WarnContext(ctx, "no resources.js script on login page, proceeding without context")
	}

	log.Ctx(ctx).DebugContext(ctx, "posting credentials")
	body, _, err := c.dispatch(ctx, "other.LightningLoginForm.login=1", action{
		ID:                "91;a",
		Descriptor:        "apex://LightningLoginFormController/ACTION$login",
		CallingDescriptor: "markup://c:WP_LoginForm",
		Params: map[string]any{
			"username": c.username,
			"password": c.password,
			"startUrl": landingPath,
		},
	}, loginPageURI, "undefined")
	if err != nil {
		return err
	}
	if strings.Contains(string(body), "/*ERROR*/") {
		if strings.Contains(string(body), "invalidSession") && !retried {
			log.Ctx(ctx).DebugContext(ctx, "invalid session during login, retrying once")
			c.resetCookies()
			c.sess.context = nil
			return c.forceLogin(ctx, true)
		}
		return &ProtocolError{Reason: "login form returned an error"}
	}

	var loginResp struct {
		Events []struct {
			Attributes struct {
				Values struct {
					URL string `json:"url"`
				} `json:"values"`
			} `json:"attributes"`
		} `json:"events"`
	}
	if err := json.Unmarshal(body, &loginResp); err != nil {
		return &ProtocolError{Reason: "bad login response: " + err.Error()}
	}
	if len(loginResp.Events) == 0 {
		return &ProtocolError{Reason: "login response has no redirect event"}
	}

	// Follow the frontdoor URL to complete SSO, then pull the token off the
	// authenticated landing page.
	if _, _, err := c.fetch(ctx, http.MethodGet, loginResp.Events[0].Attributes.Values.URL, nil); err != nil {
		return err
	}
	landing, _, err := c.fetch(ctx, http.MethodGet, landingPath, nil)
	if err != nil {
		return err
	}
	config, err := extractAuraConfig(string(landing))
	if err != nil {
		return err
	}
	var auraConfig struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(config, &auraConfig); err != nil {
		return &ProtocolError{Reason: "bad auraConfig: " + err.Error()}
	}
	if auraConfig.Token == "" {
		return &ProtocolError{Reason: "auraConfig has no token"}
	}
	c.sess.token = auraConfig.Token
	c.sess.issuedAt = c.now()

	info, err := c.getLoginInfo(ctx)
	if err != nil {
		return err
	}
	c.sess.identities = map[string]string{
		"account_id": info.Visibility.ID,
		"name":       info.Name,
	}
	log.Ctx(ctx).InfoContext(ctx, "logged in",
		slog.String("name", info.Name),
		slog.String("accountID", info.Visibility.ID))

	c.saveSession(ctx)
	return nil
}

type loginInfo struct {
	Name       string `json:"Name"`
	Visibility struct {
		ID string `json:"Id"`
	} `json:"visibility"`
}

// getLoginInfo fetches the logged-in identity. It runs as a bare dispatch
// because it is part of the login handshake itself.
func (c *Connector) getLoginInfo(ctx context.Context) (loginInfo, error) {
	body, contentType, err := c.dispatch(ctx, "other.WP_Monitor_CTRL.getLoginInfo=1", action{
		ID:                "215;a",
		Descriptor:        "apex://WP_Monitor_CTRL/ACTION$getLoginInfo",
		CallingDescriptor: "markup://c:WP_Monitor",
		Params:            map[string]any{"serviceNumber": "S011"},
	}, actionPageURI, c.sess.token)
	if err != nil {
		return loginInfo{}, err
	}
	if !strings.Contains(contentType, "json") {
		return loginInfo{}, &ProtocolError{Reason: "login info response is not json"}
	}
	var env struct {
		Actions []auraActionResult `json:"actions"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return loginInfo{}, &ProtocolError{Reason: "bad login info envelope: " + err.Error()}
	}
	if len(env.Actions) == 0 || env.Actions[0].State != "SUCCESS" {
		return loginInfo{}, &ProtocolError{Reason: "login info action failed"}
	}
	var info loginInfo
	if err := json.Unmarshal(env.Actions[0].ReturnValue, &info); err != nil {
		return loginInfo{}, &ProtocolError{Reason: "bad login info: " + err.Error()}
	}
	return info, nil
}
