package idempotency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateKeyDeterministic(t *testing.T) {
	g := NewGenerator()

	params := map[string]interface{}{
		"subscription_id": "subs_123",
		"invoice_id":      "inv_456",
		"date":            "2026-09-01",
	}

	first := g.GenerateKey(ScopeBillingCycle, params)
	second := g.GenerateKey(ScopeBillingCycle, params)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestGenerateKeyParamOrderIndependent(t *testing.T) {
	g := NewGenerator()

	a := g.GenerateKey(ScopeBillingCycle, map[string]interface{}{
		"subscription_id": "subs_123",
		"invoice_id":      "inv_456",
	})
	b := g.GenerateKey(ScopeBillingCycle, map[string]interface{}{
		"invoice_id":      "inv_456",
		"subscription_id": "subs_123",
	})
	assert.Equal(t, a, b)
}

func TestGenerateKeyScopeSeparation(t *testing.T) {
	g := NewGenerator()

	params := map[string]interface{}{"subscription_id": "subs_123"}
	assert.NotEqual(t,
		g.GenerateKey(ScopeBillingCycle, params),
		g.GenerateKey(ScopeSignupCharge, params),
	)
}

func TestGenerateBillingKeyDayGranularity(t *testing.T) {
	g := NewGenerator()

	morning := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 9, 1, 23, 59, 59, 0, time.UTC)
	nextDay := time.Date(2026, 9, 2, 0, 0, 1, 0, time.UTC)

	keyMorning := g.GenerateBillingKey(ScopeBillingCycle, "subs_123", "inv_456", morning)
	keyEvening := g.GenerateBillingKey(ScopeBillingCycle, "subs_123", "inv_456", evening)
	keyNextDay := g.GenerateBillingKey(ScopeBillingCycle, "subs_123", "inv_456", nextDay)

	assert.Equal(t, keyMorning, keyEvening)
	assert.NotEqual(t, keyMorning, keyNextDay)
}

func TestGenerateBillingKeyTimezoneNormalized(t *testing.T) {
	g := NewGenerator()

	est := time.FixedZone("EST", -5*60*60)
	// 2026-09-01 22:00 EST is 2026-09-02 03:00 UTC
	local := time.Date(2026, 9, 1, 22, 0, 0, 0, est)
	utc := time.Date(2026, 9, 2, 3, 0, 0, 0, time.UTC)

	assert.Equal(t,
		g.GenerateBillingKey(ScopeBillingCycle, "subs_123", "inv_456", local),
		g.GenerateBillingKey(ScopeBillingCycle, "subs_123", "inv_456", utc),
	)
}

func TestGenerateBillingKeyDistinctInvoices(t *testing.T) {
	g := NewGenerator()

	date := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	assert.NotEqual(t,
		g.GenerateBillingKey(ScopeBillingCycle, "subs_123", "inv_1", date),
		g.GenerateBillingKey(ScopeBillingCycle, "subs_123", "inv_2", date),
	)
}

func TestValidateKey(t *testing.T) {
	g := NewGenerator()

	params := map[string]interface{}{"subscription_id": "subs_123"}
	key := g.GenerateKey(ScopeBillingCycle, params)

	assert.True(t, g.ValidateKey(ScopeBillingCycle, params, key))
	assert.False(t, g.ValidateKey(ScopeSignupCharge, params, key))
	assert.False(t, g.ValidateKey(ScopeBillingCycle, map[string]interface{}{"subscription_id": "subs_999"}, key))
}
