package dto

import "time"

// BillingCycleResponse reports the outcome of one billing cycle pass.
// Processed counts fully successful charges; Failed counts declined,
// errored and ambiguous attempts; Canceled counts subscriptions closed at
// period end via the cancel-at-period-end flag.
type BillingCycleResponse struct {
	Processed int       `json:"processed"`
	Failed    int       `json:"failed"`
	Canceled  int       `json:"canceled"`
	Total     int       `json:"total"`
	StartedAt time.Time `json:"started_at"`
}

// RetryResponse reports the outcome of one failed-payment retry pass.
// Retried counts only transitions to SUCCEEDED; Total counts FAILED
// payments considered in this run regardless of outcome.
type RetryResponse struct {
	Retried int `json:"retried"`
	Total   int `json:"total"`
}

// ReconcileResponse reports the outcome of a stale-payment reconciliation
// pass over payments stuck in PENDING beyond the grace period.
type ReconcileResponse struct {
	Examined int `json:"examined"`
	Resolved int `json:"resolved"`
}

// CleanupResponse reports how many payments had their raw gateway
// payloads purged by the retention job.
type CleanupResponse struct {
	Purged int `json:"purged"`
}
