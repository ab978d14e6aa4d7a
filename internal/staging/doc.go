// Package staging implements the Staging Store (component F): the
// staging_raw, staging_valid, staging_error, and job tables, and the bulk
// write/read operations the Orchestrator drives each phase through.
//
// Domain row columns are intentionally opaque here (stored as jsonb) since
// the target schema of any given migration is out of scope for this
// system (spec §1's Non-goals) — BulkInsert is generic over the row type,
// and phase handlers are responsible for shaping T into a domain table's
// own columns, if the Apply phase writes anywhere other than staging.
package staging
