package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomToken(t *testing.T) {
	a, err := RandomToken(32)
	require.NoError(t, err)
	b, err := RandomToken(32)
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestWebhookSignature(t *testing.T) {
	body := []byte(`{"type":"verification","email":"a@b.c","token":"x"}`)
	sig, err := SignWebhook("s3cret", body, time.Minute)
	require.NoError(t, err)

	assert.NoError(t, VerifyWebhook("s3cret", sig, body))
	assert.ErrorIs(t, VerifyWebhook("other", sig, body), ErrBadSignature)
	assert.ErrorIs(t, VerifyWebhook("s3cret", sig, []byte(`{}`)), ErrBadSignature)
	assert.ErrorIs(t, VerifyWebhook("s3cret", "not-a-jwt", body), ErrBadSignature)

	expired, err := SignWebhook("s3cret", body, -time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, VerifyWebhook("s3cret", expired, body), ErrBadSignature)
}
