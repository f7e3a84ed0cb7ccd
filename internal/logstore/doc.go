// Package logstore provides SQLite-backed durable storage for order audit rows.
//
// The store is append-only. A row is identified by its log id, and writing
// the same id twice is a no-op, so re-importing an export is safe.
//
// # Ordering
//
// Every listing query orders by ts_ms ASC, log_id COLLATE BINARY ASC.
// The change-log builder re-sorts newest first; the store only guarantees
// that identical contents list identically.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: 5-second wait on locks
//
// Raw before/after blobs are stored verbatim as TEXT. They are decoded only
// when a change log is built, so a malformed blob never blocks an import.
package logstore
