package constants

// DispatchStatus is the outcome recorded for a document in the ledger.
type DispatchStatus string

// Stable values (store these exact strings in the ledger).
const (
	DispatchStatusSent     DispatchStatus = "SENT"     // delivered to the trigger endpoint
	DispatchStatusLogged   DispatchStatus = "LOGGED"   // no endpoint configured, payload logged only
	DispatchStatusDegraded DispatchStatus = "DEGRADED" // delivered, but the NF-e parse hit total failure
)
