/*
Package docstore implements the per-shard execution layer of a distributed
document database on top of an ordered key-value store (Bolt, Pebble, or an
in-memory backend).

We implement:

1. Point operations: get/set/delete of msgpack-encoded documents keyed by
opaque ordered byte keys, with write outcomes (Stored/Duplicate,
Deleted/Missing) reported to the replication layer.

2. Range erase: bulk removal of a key range refined by an exact key tester,
leaving behind an erased-range marker for replication.

3. Backfill: replay of deletions and value changes since a logical timestamp
(Recency) within a bounded key range, for replica catch-up.

4. Range scans (rget): ordered traversal threading each document through a
transform pipeline (Filter/Map/ConcatMap/RangeFilter) and an optional terminal
reducer (Count/Reduce/GroupedReduce/ForEach), under a response-size/count
budget with truncation reporting.

# Technical Details

**Buckets.**
We rely on scoped namespaces for keys called buckets. Bolt supports them
natively; the Pebble backend simulates them with key prefixes. Two buckets are
used: "data" for documents and "erased" for range-erasure markers.

**Value encoding.**
Each stored value is a header of uvarints (flags carrying a format version and
a tombstone bit, then the recency), followed by the msgpack encoding of the
document. A point deletion writes a tombstone, a header-only value, so that
backfill can observe the deletion; tombstones read as absent and are swept by
range erases.

**Key encoding.**
Keys are opaque ordered byte strings chosen by the caller. Documents used as
range boundaries or grouping keys are converted through a canonical encoding
whose lexicographic order is null < false < true < numbers < strings < arrays
< objects.

**Erased-range markers.**
erase_range records {range, max erased recency} in the "erased" bucket.
Backfill reports these as wholesale deletions and re-sends live entries inside
them, so a replica that acts on the deletion first always converges.
*/
package docstore
