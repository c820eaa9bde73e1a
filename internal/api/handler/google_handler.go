package handler

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/innkeep/hotel-system/internal/core/domain"
	"github.com/innkeep/hotel-system/internal/core/ports"
	"github.com/innkeep/hotel-system/internal/infrastructure/oauth"
)

const (
	stateCookieName = "oauth_state"
	stateCookiePath = "/auth/google"
	stateCookieTTL  = 10 * time.Minute
)

// IdentityProvider runs an OAuth authorization-code flow.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (ports.SocialIdentity, error)
}

// StateStore keeps single-use OAuth state values.
type StateStore interface {
	Save(ctx context.Context, state, returnTo string) error
	Consume(ctx context.Context, state string) (returnTo string, ok bool, err error)
}

// GoogleHandler serves the Google sign-in redirect and callback. Outcomes are
// reported by redirecting back to the web app, never as JSON.
type GoogleHandler struct {
	provider   IdentityProvider
	states     StateStore
	auth       ports.AuthService
	appBaseURL string
	log        zerolog.Logger
}

func NewGoogleHandler(provider IdentityProvider, states StateStore, auth ports.AuthService, appBaseURL string, log zerolog.Logger) *GoogleHandler {
	return &GoogleHandler{
		provider:   provider,
		states:     states,
		auth:       auth,
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
		log:        log,
	}
}

// Start redirects the browser to Google's consent screen. The state is also set
// in a cookie so the callback only completes in the browser that started it.
//
// @Summary      Start Google sign-in
// @Tags         auth
// @Param        return_to  query  string  false  "App path to land on after sign-in"
// @Success      307
// @Router       /auth/google [get]
func (h *GoogleHandler) Start(c echo.Context) error {
	state, err := generateState()
	if err != nil {
		return err
	}
	if err := h.states.Save(c.Request().Context(), state, safeReturnPath(c.QueryParam("return_to"))); err != nil {
		return err
	}
	c.SetCookie(h.stateCookie(c, state, int(stateCookieTTL.Seconds())))
	return c.Redirect(http.StatusTemporaryRedirect, h.provider.AuthCodeURL(state))
}

// Callback completes Google sign-in and hands the session token to the web app
// in the URL fragment.
//
// @Summary      Google sign-in callback
// @Tags         auth
// @Param        state  query  string  true  "OAuth state"
// @Param        code   query  string  true  "Authorization code"
// @Success      303
// @Router       /auth/google/callback [get]
func (h *GoogleHandler) Callback(c echo.Context) error {
	ctx := c.Request().Context()

	if c.QueryParam("error") != "" {
		return h.fail(c, "google_denied")
	}

	state := c.QueryParam("state")
	bound, err := c.Cookie(stateCookieName)
	c.SetCookie(h.stateCookie(c, "", -1))
	if state == "" || err != nil || subtle.ConstantTimeCompare([]byte(bound.Value), []byte(state)) != 1 {
		return h.fail(c, "invalid_state")
	}
	returnTo, ok, err := h.states.Consume(ctx, state)
	if err != nil {
		h.log.Error().Err(err).Msg("oauth state lookup failed")
		return h.fail(c, "internal")
	}
	if !ok {
		return h.fail(c, "invalid_state")
	}

	code := c.QueryParam("code")
	if code == "" {
		return h.fail(c, "invalid_code")
	}

	identity, err := h.provider.Exchange(ctx, code)
	if err != nil {
		if errors.Is(err, oauth.ErrUnverifiedEmail) {
			return h.fail(c, "email_unverified")
		}
		h.log.Warn().Err(err).Msg("google token exchange failed")
		return h.fail(c, "token_exchange")
	}

	session, err := h.auth.SocialLogin(ctx, identity, loginMeta(c))
	if err != nil {
		reason := domain.CodeOf(err)
		if reason == "" {
			h.log.Error().Err(err).Msg("social login failed")
			reason = "internal"
		}
		return h.fail(c, reason)
	}

	fragment := url.Values{}
	fragment.Set("token", session.Token)
	fragment.Set("expires_at", strconv.FormatInt(session.ExpiresAt.Unix(), 10))
	fragment.Set("return_to", returnTo)
	return c.Redirect(http.StatusSeeOther, h.appBaseURL+"/auth/callback#"+fragment.Encode())
}

// stateCookie is Lax so it survives the top-level redirect back from Google.
func (h *GoogleHandler) stateCookie(c echo.Context, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     stateCookieName,
		Value:    value,
		Path:     stateCookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *GoogleHandler) fail(c echo.Context, reason string) error {
	return c.Redirect(http.StatusSeeOther, h.appBaseURL+"/login?error="+url.QueryEscape(reason))
}

// safeReturnPath keeps only same-origin absolute paths.
func safeReturnPath(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, "\\") {
		return "/"
	}
	return p
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
