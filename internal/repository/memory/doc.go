// Package memory provides the in-memory reference implementation of
// repository.Repository.
//
// # Overview
//
// [Repository] keeps every record in a map keyed by identifier and indexes
// the envelopes of their geometries in an R-tree. It is the correctness
// oracle for every other engine: a durable engine is expected to return the
// same results for the same sequence of operations.
//
// # Concurrency
//
// One sync.RWMutex guards all the state. Reads share the lock, writes are
// exclusive. Every selection holds the lock for its whole traversal and
// returns a materialized slice, so a caller never observes a partially
// applied write.
//
// # Extent cache
//
// The extent is computed lazily. Inserting one record grows a cached extent
// in place. Any other change invalidates it; the next call to
// [Repository.Extents] recomputes it from the indexed envelopes.
//
// # Malformed geometries
//
// A record whose geometry fails geom.Validate is stored and visible to
// predicate selections, but it is excluded from the R-tree and the extent.
// It is reported through [Options.OnAnomaly] instead of failing the write.
//
// # Secondary indexes
//
// [UniqueIndex] and [Index] observe a repository through [Observer] and stay
// in sync with it.
package memory
