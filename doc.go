/*
Package docdb implements an embedded document store with secondary indexes
on top of an ordered key-value store (Bolt, or an in-memory store for tests).

We implement:

1. Collections of schemaless records (Record, a map of field values) keyed by
string ids.

2. Indexes on declared fields. Each index has a kind (string, number,
boolean, stringNum, object) that turns field values into strings whose
byte order matches the value order, see package sortable.

3. Queries with per-field filters (eq, ranges, prefix, in/out, array
emptiness and containment), multi-field ordering, offset and limit.

4. Singleton records, storing a typed value under a fixed key.

# Technical Details

**Keys.**
All data lives in one flat key space. \x03 separates key parts; \x04 is the
byte right after it and bounds ranges; \x06 marks array sentinels. None of
these may appear in names, ids or indexed strings.

**Index entries.** A record with field f holding value v gets the entry
collection \x03 f \x03 encode(v) \x03 id, whose value is the id. Missing
and null fields are indexed as \x00. An array gets one entry per distinct
element plus a sentinel telling whether it is empty. Every record also has
an entry in the "id" pseudo-index, so walking it lists all records in id
order. Ordering by an array field places a record at its first element in
the sort direction; empty arrays sort right after nulls.

**Value.** Flags (uvarint), then msgpack of the record, optionally lz4
compressed with the raw size (uvarint) in front.

## Queries

A query is answered two ways at once. The sorted path walks the index of
the first sort field and checks every record against the filters, so it
can stream results right away. The crawled path intersects scans of the
filter indexes, which avoids loading non-matching records, then sorts and
pages the result in memory. Sorted results are returned as they come; if
the crawled path finishes first, it supplies the rest.

Scans take hints: a consumer can tell a scanner to skip ahead to a given id,
which makes intersections cheap when one side is much more selective.

## Concurrency

Writes hold an exclusive lock; reads and whole queries share it. A query
holds the lock until its iteration ends, so avoid calling other collection
methods from inside a query loop.
*/
package docdb
