// Package sqlite stores both index layers, the proposal queue and the
// scheduler's bookkeeping in one SQLite file, by default
// ~/.memex/data/memex.db.
//
// The driver is modernc.org/sqlite, so the binary builds without cgo. One
// Store hands out the archive, node, proposal, keyword, vector and scheduler
// stores; they share the connection pool.
//
// Keyword search is FTS5 with bm25 ranking. One external-content table
// covers node text and one covers archive text; search only consults the
// latter for archives that have no nodes yet. Triggers keep both in step
// with their source rows. Vector search is an
// exact cosine scan over little-endian float32 blobs, which is fast enough
// for a personal corpus and needs no extension.
//
// Schema changes ship as numbered .up.sql/.down.sql pairs under
// migrations/. The database runs in WAL mode; writers open IMMEDIATE
// transactions so a proposal resolution never deadlocks against a reader
// upgrading its lock.
package sqlite
