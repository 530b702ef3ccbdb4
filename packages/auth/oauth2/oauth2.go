// Package oauth2 provides OAuth2 authentication for outgoing test requests.
//
// Tokens are obtained with golang.org/x/oauth2 and cached by the returned
// TokenSource until shortly before they expire.
package oauth2

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// GrantType represents the OAuth2 grant type
type GrantType string

const (
	ClientCredentials GrantType = "client_credentials"
	Password          GrantType = "password"
)

// Config holds OAuth2 configuration
type Config struct {
	TokenURL     string   `json:"tokenUrl" yaml:"tokenUrl" toml:"tokenUrl"`
	ClientID     string   `json:"clientId" yaml:"clientId" toml:"clientId"`
	ClientSecret string   `json:"clientSecret" yaml:"clientSecret" toml:"clientSecret"`
	Scopes       []string `json:"scopes,omitempty" yaml:"scopes,omitempty" toml:"scopes"`
	// Username and Password are used by the password grant only.
	Username  string    `json:"username,omitempty" yaml:"username,omitempty" toml:"username"`
	Password  string    `json:"password,omitempty" yaml:"password,omitempty" toml:"password"`
	GrantType GrantType `json:"grantType,omitempty" yaml:"grantType,omitempty" toml:"grantType"`
}

var ErrMissingTokenURL = errors.New("oauth2: token URL is required")

func (c *Config) Validate() error {
	if c.TokenURL == "" {
		return ErrMissingTokenURL
	}
	switch c.grantType() {
	case ClientCredentials:
		if c.ClientID == "" {
			return fmt.Errorf("oauth2: client id is required for %s grant", ClientCredentials)
		}
	case Password:
		if c.Username == "" {
			return fmt.Errorf("oauth2: username is required for %s grant", Password)
		}
	default:
		return fmt.Errorf("oauth2: unsupported grant type %q", c.GrantType)
	}
	return nil
}

func (c *Config) grantType() GrantType {
	if c.GrantType == "" {
		return ClientCredentials
	}
	return c.GrantType
}

// TokenSource returns a caching token source. Token requests are sent through
// base, so proxy and TLS settings of the caller apply to them as well.
func (c *Config) TokenSource(ctx context.Context, base *http.Client) (oauth2.TokenSource, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}

	switch c.grantType() {
	case Password:
		cfg := &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			Scopes:       c.Scopes,
			Endpoint:     oauth2.Endpoint{TokenURL: c.TokenURL},
		}
		tok, err := cfg.PasswordCredentialsToken(ctx, c.Username, c.Password)
		if err != nil {
			return nil, fmt.Errorf("oauth2: password grant: %w", err)
		}
		return cfg.TokenSource(ctx, tok), nil
	default:
		cfg := &clientcredentials.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			TokenURL:     c.TokenURL,
			Scopes:       c.Scopes,
		}
		return cfg.TokenSource(ctx), nil
	}
}

// Transport wraps base so every request carries a bearer token from src.
func Transport(src oauth2.TokenSource, base http.RoundTripper) http.RoundTripper {
	return &oauth2.Transport{Source: src, Base: base}
}
