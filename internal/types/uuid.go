package types

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex inv_0ujsswThIGTUYm2K8FjOOfXtY1K
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

const (
	// Prefixes for all domains and entities

	UUID_PREFIX_PLAN           = "plan"
	UUID_PREFIX_SUBSCRIPTION   = "subs"
	UUID_PREFIX_INVOICE        = "inv"
	UUID_PREFIX_PAYMENT        = "pay"
	UUID_PREFIX_TRANSACTION    = "txn"
	UUID_PREFIX_PAYMENT_METHOD = "pm"
	UUID_PREFIX_USER           = "user"
	UUID_PREFIX_WEBHOOK_EVENT  = "webhook"
)
