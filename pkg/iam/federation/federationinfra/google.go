package federationinfra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aibles/iam/pkg/config"
	"github.com/aibles/iam/pkg/iam/federation"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleProvider implements federation.IdentityProvider against Google's
// OAuth2 / OIDC endpoints.
type GoogleProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
}

func NewGoogleProvider(cfg *config.GoogleConfig) *GoogleProvider {
	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
	}
}

// AuthURL builds the consent URL for the given state value.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// googleUserInfo is the subset of the OIDC userinfo response we consume.
type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// Exchange redeems the authorization code and fetches the userinfo
// document with the resulting token.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*federation.ExternalIdentity, error) {
	oauthToken, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, federation.ErrExchangeFailed().WithDetail("error", err.Error())
	}

	client := p.oauth.Client(ctx, oauthToken)
	resp, err := client.Get(p.userInfoURL)
	if err != nil {
		return nil, federation.ErrExchangeFailed().WithDetail("error", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, federation.ErrExchangeFailed().
			WithDetail("error", fmt.Sprintf("userinfo returned status %d", resp.StatusCode))
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, federation.ErrExchangeFailed().WithDetail("error", err.Error())
	}
	if info.Sub == "" || info.Email == "" {
		return nil, federation.ErrExchangeFailed().WithDetail("error", "userinfo missing subject or email")
	}

	return &federation.ExternalIdentity{
		Subject:     "google:" + info.Sub,
		Email:       info.Email,
		DisplayName: info.Name,
	}, nil
}
