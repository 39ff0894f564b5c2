// Package history defines the input data model consumed by the
// Polygraph Builder: sessions, transactions, and read/write events
// over a key-value store, plus the synthetic initial transaction that
// seeds every read-touched key with value 0.
//
// A History is immutable after Validate succeeds — nothing in this
// package mutates a History once built. Parsers for the external wire
// formats (dbcop, cobra, elle, text) are collaborators out of this
// package's scope (spec.md §1); this package only defines the shape
// they must produce and the invariant checks PB relies on
// (MalformedHistory detection lives here because it is purely a
// property of the History, not of the graph built from it).
package history
