package auth

import "errors"

var (
	// ErrAuthMissing indicates the request carried no credential.
	ErrAuthMissing = errors.New("authorization missing")
	// ErrAuthInvalid indicates a malformed, expired or unverifiable credential,
	// or one without a tenant claim.
	ErrAuthInvalid = errors.New("authorization invalid")
	// ErrDeliveryUntrusted indicates a delivery callback whose credential was
	// not issued to the dispatch queue's trusted identity.
	ErrDeliveryUntrusted = errors.New("delivery identity untrusted")
)
