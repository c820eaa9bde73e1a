package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/innkeep/hotel-system/internal/core/ports"
)

const (
	ProviderGoogle    = "google"
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// ErrUnverifiedEmail is returned when the provider has not verified the
// address; such identities must never be linked by email.
var ErrUnverifiedEmail = errors.New("oauth: provider email not verified")

// GoogleProvider runs the authorization-code flow against Google and turns the
// result into a SocialIdentity.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewGoogleProvider returns a provider for the given OAuth client.
func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"openid",
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: endpoints.Google,
		},
		userInfoURL: googleUserInfoURL,
	}
}

// AuthCodeURL returns the consent-screen URL carrying state.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
}

// Exchange trades an authorization code for the caller's verified identity.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (ports.SocialIdentity, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return ports.SocialIdentity{}, fmt.Errorf("exchange code: %w", err)
	}

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	resp, err := client.Get(p.userInfoURL)
	if err != nil {
		return ports.SocialIdentity{}, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ports.SocialIdentity{}, fmt.Errorf("fetch user info: unexpected status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return ports.SocialIdentity{}, fmt.Errorf("decode user info: %w", err)
	}
	if !info.EmailVerified {
		return ports.SocialIdentity{}, ErrUnverifiedEmail
	}

	return ports.SocialIdentity{
		Provider:    ProviderGoogle,
		ProviderID:  info.ID,
		Email:       info.Email,
		DisplayName: info.Name,
	}, nil
}
