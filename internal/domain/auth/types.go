package auth

import "context"

// TenantScope identifies the customer account that owns a request and
// everything created while handling it. It is resolved from a verified
// credential, never from request body content.
type TenantScope string

func (s TenantScope) String() string { return string(s) }

// Claims carries the verified identity of an end-user request.
type Claims struct {
	Subject string
	Tenant  TenantScope
}

// DeliveryClaims carries the verified identity of a dispatch-queue callback.
type DeliveryClaims struct {
	// Email is the service-account identity the delivery token was issued to.
	Email    string
	Audience string
}

// Verifier validates inbound credentials.
type Verifier interface {
	// VerifyUser checks an end-user bearer token and extracts its tenant claim.
	VerifyUser(ctx context.Context, rawToken string) (Claims, error)
	// VerifyDelivery checks a dispatch-queue delivery token: issuer, audience
	// and the authorized signer identity must all match configuration.
	VerifyDelivery(ctx context.Context, rawToken string) (DeliveryClaims, error)
}
