// Package domain holds the types the rest of memex is written in terms of.
//
// Two layers make up the index. An Archive is an ingested parent document:
// its text never changes after ingest, only its processing state does. A
// VectorNode is a retrievable child chunk cut from an archive, carrying
// its own embedding and a pointer back to the parent. Nodes are never
// written directly. A Proposal describes a split, an enrichment or a
// dedup; it sits PENDING until a human approves or rejects it, and only
// approval turns it into nodes.
//
// Retrieval filters by TimeRange before ranking, and scores from the
// dense and keyword paths are merged by reciprocal rank.
//
// The package imports nothing outside the standard library.
package domain
