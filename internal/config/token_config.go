package config

import "time"

type TokenConfig interface {
	GetTokenSecret() string
	GetSigningKeyID() string
	GetSigningKeyPEM() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetSSOIssuerURL() string
	GetSSOClientID() string
	GetSSOClientSecret() string
	GetSSORedirectURL() string
	GetOIDCTimeout() time.Duration
}

type Token struct {
	Secret          string        `env:"TOKEN_SECRET,required,notEmpty"`
	SigningKeyID    string        `env:"TOKEN_SIGNING_KEY_ID" envDefault:"workspark-1"`
	SigningKeyPEM   string        `env:"TOKEN_SIGNING_KEY_PEM"`
	AccessExpiry    time.Duration `env:"TOKEN_ACCESS_TTL" envDefault:"15m"`
	RefreshExpiry   time.Duration `env:"TOKEN_REFRESH_TTL" envDefault:"168h"`
	SSOIssuerURL    string        `env:"SSO_ISSUER_URL"`
	SSOClientID     string        `env:"SSO_CLIENT_ID"`
	SSOClientSecret string        `env:"SSO_CLIENT_SECRET"`
	SSORedirectURL  string        `env:"SSO_REDIRECT_URL"`
	OIDCTimeout     time.Duration `env:"OIDC_HTTP_TIMEOUT" envDefault:"10s"`
}

var _ TokenConfig = Token{}

func (t Token) GetTokenSecret() string {
	return t.Secret
}

// GetSigningKeyPEM returns an RSA or EC private key. When empty tokens are signed with the HMAC secret.
func (t Token) GetSigningKeyPEM() string {
	return t.SigningKeyPEM
}

func (t Token) GetSigningKeyID() string {
	return t.SigningKeyID
}

func (t Token) GetAccessTokenExpiry() time.Duration {
	return t.AccessExpiry
}

func (t Token) GetRefreshTokenExpiry() time.Duration {
	return t.RefreshExpiry
}

func (t Token) GetSSOIssuerURL() string {
	return t.SSOIssuerURL
}

func (t Token) GetSSOClientID() string {
	return t.SSOClientID
}

func (t Token) GetSSOClientSecret() string {
	return t.SSOClientSecret
}

func (t Token) GetSSORedirectURL() string {
	return t.SSORedirectURL
}

func (t Token) GetOIDCTimeout() time.Duration {
	return t.OIDCTimeout
}
