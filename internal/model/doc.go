// Package model is the in-memory object graph of a Java heap dump.
//
// A loader feeds classes, instances, arrays and GC roots into a Snapshot
// while it walks the dump. Heap objects keep only the byte offset of their
// record; their payload is decoded from the backing buffer when asked for.
// Snapshot.Resolve links everything in two passes (classes first, then
// everything else), optionally computes referrer lists, and afterwards the
// snapshot answers lookup and reachability queries.
package model
