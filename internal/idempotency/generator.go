package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Scope represents the scope of idempotency
type Scope string

const (
	// ScopeBillingCycle guards the recurring charge of a subscription
	// invoice: one effective charge per (subscription, invoice, calendar day)
	ScopeBillingCycle Scope = "billing_cycle"
	// ScopeSignupCharge guards the immediate charge attempted at
	// subscription creation
	ScopeSignupCharge Scope = "signup_charge"
)

// Generator generates idempotency keys
type Generator struct{}

// NewGenerator creates a new idempotency key generator
func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateKey generates an idempotency key from a scope and parameters.
// Same scope and parameters always yield the same key.
func (g *Generator) GenerateKey(scope Scope, params map[string]interface{}) string {
	// Sort params for consistent hashing
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(scope))
	for _, k := range keys {
		b.WriteString(fmt.Sprintf(":%s=%v", k, params[k]))
	}

	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}

// GenerateBillingKey derives the deterministic key guarding one billing
// attempt. The date component is UTC calendar-day granular, so billing the
// same invoice twice within one day collapses onto a single payment.
// A retry that crosses midnight produces a different key; callers defend
// against that by reusing any unresolved payment already attached to the
// invoice before deriving a fresh key.
func (g *Generator) GenerateBillingKey(scope Scope, subscriptionID, invoiceID string, date time.Time) string {
	return g.GenerateKey(scope, map[string]interface{}{
		"subscription_id": subscriptionID,
		"invoice_id":      invoiceID,
		"date":            date.UTC().Format("2006-01-02"),
	})
}

// ValidateKey validates if an idempotency key matches expected parameters
func (g *Generator) ValidateKey(scope Scope, params map[string]interface{}, key string) bool {
	return g.GenerateKey(scope, params) == key
}
