// Package orchestrator drives a migration job through the four-phase
// state machine described in spec §4.G: Ingest → Validate → Apply →
// Reconcile, with idempotent restart from the last successful phase and
// per-phase progress persisted through internal/staging.
//
// The orchestrator is generic over the application's row type T (spec
// §1's "the core is parameterized over a row type"); a caller wires in how
// to turn T into a master-table write via Target.
package orchestrator
