package service

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/AnTengye/quotepo/config"
	"github.com/AnTengye/quotepo/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// OAuthService drives the authorization-code flow against the Xero identity
// provider. Tokens are never refreshed.
type OAuthService struct {
	config *oauth2.Config
	xero   *XeroService
}

// CallbackParams are the query parameters delivered to the redirect URI
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// Authorization is the outcome of a successful callback
type Authorization struct {
	AccessToken string
	TenantID    string
	TenantName  string
}

func NewOAuthService(cfg *config.XeroConfig, xero *XeroService) *OAuthService {
	return &OAuthService{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.ScopeList(),
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		xero: xero,
	}
}

// NewState returns a fresh anti-forgery state value
func (s *OAuthService) NewState() string {
	return uuid.New().String()
}

// AuthCodeURL returns the identity provider URL the user agent is sent to
func (s *OAuthService) AuthCodeURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// Complete validates the callback, exchanges the code and adopts the first
// connected tenant
func (s *OAuthService) Complete(ctx context.Context, params CallbackParams, expectedState string) (*Authorization, error) {
	if params.Error != "" {
		if params.ErrorDescription != "" {
			return nil, fmt.Errorf("%w: %s (%s)", ErrAuthorization, params.Error, params.ErrorDescription)
		}
		return nil, fmt.Errorf("%w: %s", ErrAuthorization, params.Error)
	}
	if params.Code == "" {
		return nil, fmt.Errorf("%w: no authorization code received", ErrAuthorization)
	}
	if expectedState == "" || subtle.ConstantTimeCompare([]byte(params.State), []byte(expectedState)) != 1 {
		return nil, fmt.Errorf("%w: state mismatch", ErrAuthorization)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.xero.HTTPClient())
	token, err := s.config.Exchange(ctx, params.Code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: response contained no access token", ErrTokenExchange)
	}

	logger.Info(ctx, "access token obtained",
		"token", logger.MaskToken(token.AccessToken),
		"expiry", token.Expiry,
	)

	tenant, err := s.xero.FirstTenant(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	return &Authorization{
		AccessToken: token.AccessToken,
		TenantID:    tenant.TenantID,
		TenantName:  tenant.TenantName,
	}, nil
}
