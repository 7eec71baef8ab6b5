package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupTier(t *testing.T) {
	p, err := LookupTier(TierPro)
	require.NoError(t, err)
	assert.Equal(t, "Pro", p.Name)
	assert.Equal(t, "1000", p.MonthlyPrice.String())
	assert.False(t, p.Free())

	free, err := LookupTier(TierFree)
	require.NoError(t, err)
	assert.True(t, free.Free())

	_, err = LookupTier("platinum")
	assert.Error(t, err)
}

func TestEveryListedTierHasAPlan(t *testing.T) {
	for _, tier := range Tiers() {
		_, err := LookupTier(tier)
		assert.NoError(t, err, tier)
	}
}

func TestPaymentStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, PaymentStatus("processing").Terminal())
}

func TestPaymentRequestNormalized(t *testing.T) {
	req := PaymentRequest{Tier: " basic ", Method: "till\n", PhoneNumber: " 0712345678 "}.Normalized()
	assert.Equal(t, PaymentRequest{Tier: TierBasic, Method: MethodTill, PhoneNumber: "0712345678"}, req)
}
