package models

import "time"

// PendingActivation is a profile mutation that could not be applied when its
// settlement callback arrived. The callback was already acknowledged to stop
// gateway retry storms, so the activation is parked on a queue and re-applied
// out-of-band.
type PendingActivation struct {
	UserID         string       `json:"user_id"`
	Tier           Tier         `json:"tier"`
	BillingCycle   BillingCycle `json:"billing_cycle"`
	EndDate        time.Time    `json:"end_date"`
	CustomerRef    string       `json:"customer_ref"`
	TransactionRef string       `json:"transaction_ref"`
}
