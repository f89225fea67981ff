// Package devkeys is a static-credential verifier for local development.
// Tokens are plain API keys mapped to tenants in config; the delivery path
// accepts a single shared key standing in for the queue identity. Wired only
// when dev mode is explicitly enabled.
package devkeys

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/AliNMackie/cofound-platform/internal/domain/auth"
)

type Verifier struct {
	keys        map[string]string // tenant -> key
	deliveryKey string
}

func New(keys map[string]string, deliveryKey string) *Verifier {
	return &Verifier{keys: keys, deliveryKey: deliveryKey}
}

func (v *Verifier) VerifyUser(_ context.Context, rawToken string) (auth.Claims, error) {
	// Constant-time comparison to keep timing from leaking key material.
	for tenant, key := range v.keys {
		if subtle.ConstantTimeCompare([]byte(rawToken), []byte(key)) == 1 {
			return auth.Claims{Subject: "dev:" + tenant, Tenant: auth.TenantScope(tenant)}, nil
		}
	}
	return auth.Claims{}, auth.ErrAuthInvalid
}

func (v *Verifier) VerifyDelivery(_ context.Context, rawToken string) (auth.DeliveryClaims, error) {
	if v.deliveryKey == "" {
		return auth.DeliveryClaims{}, fmt.Errorf("%w: no delivery key configured", auth.ErrDeliveryUntrusted)
	}
	if subtle.ConstantTimeCompare([]byte(rawToken), []byte(v.deliveryKey)) != 1 {
		return auth.DeliveryClaims{}, auth.ErrDeliveryUntrusted
	}
	return auth.DeliveryClaims{Email: "dev-queue@localhost"}, nil
}
