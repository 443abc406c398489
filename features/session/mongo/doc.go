// Package mongo provides the MongoDB-backed implementation of
// session.Store. Mutations rely on single-document atomic updates so
// concurrent deltas to the same session never interleave partially.
package mongo
