// Package oidc verifies the two kinds of credentials this service accepts:
// end-user bearer tokens from the customer identity provider, and delivery
// tokens minted by the dispatch queue's service identity.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"

	"github.com/AliNMackie/cofound-platform/internal/domain/auth"
)

type Config struct {
	// End-user tokens.
	UserIssuer   string
	UserAudience string

	// Delivery tokens from the dispatch queue.
	DeliveryIssuer   string
	DeliveryAudience string
	// DeliveryServiceAccount is the only signer identity accepted on the
	// callback path.
	DeliveryServiceAccount string

	HTTPClient *http.Client // optional
}

type Verifier struct {
	user            *gooidc.IDTokenVerifier
	delivery        *gooidc.IDTokenVerifier
	deliveryAccount string
}

// NewVerifier performs discovery against both issuers once and builds the
// token verifiers.
func NewVerifier(ctx context.Context, cfg Config) (*Verifier, error) {
	if cfg.UserIssuer == "" || cfg.UserAudience == "" {
		return nil, errors.New("user issuer and audience are required")
	}
	if cfg.DeliveryIssuer == "" || cfg.DeliveryAudience == "" || cfg.DeliveryServiceAccount == "" {
		return nil, errors.New("delivery issuer, audience and service account are required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	ctx = gooidc.ClientContext(ctx, httpClient)

	userProvider, err := gooidc.NewProvider(ctx, cfg.UserIssuer)
	if err != nil {
		return nil, fmt.Errorf("oidc user provider: %w", err)
	}
	deliveryProvider := userProvider
	if cfg.DeliveryIssuer != cfg.UserIssuer {
		deliveryProvider, err = gooidc.NewProvider(ctx, cfg.DeliveryIssuer)
		if err != nil {
			return nil, fmt.Errorf("oidc delivery provider: %w", err)
		}
	}

	return &Verifier{
		user:            userProvider.Verifier(&gooidc.Config{ClientID: cfg.UserAudience}),
		delivery:        deliveryProvider.Verifier(&gooidc.Config{ClientID: cfg.DeliveryAudience}),
		deliveryAccount: cfg.DeliveryServiceAccount,
	}, nil
}

// VerifyUser checks signature, expiry and audience, then extracts the tenant
// claim. A token without a tenant is invalid: no request runs unscoped.
func (v *Verifier) VerifyUser(ctx context.Context, rawToken string) (auth.Claims, error) {
	tok, err := v.user.Verify(ctx, rawToken)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("%w: %v", auth.ErrAuthInvalid, err)
	}
	var claims struct {
		TenantID string `json:"tenant_id"`
	}
	if err := tok.Claims(&claims); err != nil {
		return auth.Claims{}, fmt.Errorf("%w: %v", auth.ErrAuthInvalid, err)
	}
	if claims.TenantID == "" {
		return auth.Claims{}, fmt.Errorf("%w: token missing tenant_id claim", auth.ErrAuthInvalid)
	}
	return auth.Claims{Subject: tok.Subject, Tenant: auth.TenantScope(claims.TenantID)}, nil
}

// VerifyDelivery checks that a callback token was signed by the delivery
// issuer for this service's audience, and that it belongs to the configured
// queue service account. Anything else is untrusted.
func (v *Verifier) VerifyDelivery(ctx context.Context, rawToken string) (auth.DeliveryClaims, error) {
	tok, err := v.delivery.Verify(ctx, rawToken)
	if err != nil {
		return auth.DeliveryClaims{}, fmt.Errorf("%w: %v", auth.ErrDeliveryUntrusted, err)
	}
	var claims struct {
		Email string `json:"email"`
	}
	if err := tok.Claims(&claims); err != nil {
		return auth.DeliveryClaims{}, fmt.Errorf("%w: %v", auth.ErrDeliveryUntrusted, err)
	}
	if claims.Email != v.deliveryAccount {
		return auth.DeliveryClaims{}, fmt.Errorf("%w: unexpected signer identity", auth.ErrDeliveryUntrusted)
	}
	aud := ""
	if len(tok.Audience) > 0 {
		aud = tok.Audience[0]
	}
	return auth.DeliveryClaims{Email: claims.Email, Audience: aud}, nil
}
