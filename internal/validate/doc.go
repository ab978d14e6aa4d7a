// Package validate implements the Row Validator (component D): an ordered
// list of declarative rules run against every bound row. All rules run
// regardless of earlier failures — a row with three problems reports all
// three, comma-joined error codes and semicolon-joined messages, and
// validation never aborts ingestion (spec §4.D).
package validate
