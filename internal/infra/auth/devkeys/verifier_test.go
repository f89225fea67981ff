package devkeys

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AliNMackie/cofound-platform/internal/domain/auth"
)

func TestVerifyUser(t *testing.T) {
	v := New(map[string]string{"acme": "key-a", "globex": "key-b"}, "delivery-key")

	claims, err := v.VerifyUser(context.Background(), "key-a")
	require.NoError(t, err)
	assert.Equal(t, auth.TenantScope("acme"), claims.Tenant)

	claims, err = v.VerifyUser(context.Background(), "key-b")
	require.NoError(t, err)
	assert.Equal(t, auth.TenantScope("globex"), claims.Tenant)

	_, err = v.VerifyUser(context.Background(), "wrong")
	assert.True(t, errors.Is(err, auth.ErrAuthInvalid))

	_, err = v.VerifyUser(context.Background(), "")
	assert.True(t, errors.Is(err, auth.ErrAuthInvalid))
}

func TestVerifyDelivery(t *testing.T) {
	v := New(nil, "delivery-key")

	_, err := v.VerifyDelivery(context.Background(), "delivery-key")
	assert.NoError(t, err)

	_, err = v.VerifyDelivery(context.Background(), "wrong")
	assert.True(t, errors.Is(err, auth.ErrDeliveryUntrusted))
}

func TestVerifyDeliveryWithoutConfiguredKey(t *testing.T) {
	v := New(map[string]string{"acme": "key-a"}, "")

	// A user key must never pass on the delivery path.
	_, err := v.VerifyDelivery(context.Background(), "key-a")
	assert.True(t, errors.Is(err, auth.ErrDeliveryUntrusted))

	_, err = v.VerifyDelivery(context.Background(), "")
	assert.True(t, errors.Is(err, auth.ErrDeliveryUntrusted))
}
