// Package polygraph implements the Polygraph Builder (PB): it derives
// the known graph (edges forced by session order and reads-from) and
// the constraint set (pairs of mutually exclusive edge bundles
// representing unresolved write-write order and its induced
// read-write dependencies) from a parsed history.
//
// Build is the only entry point. Everything else in this package is
// in service of it: Constraint/Bundle/WRCP are the output shapes, and
// indexWriters (build.go) builds the (key, value) -> writer lookup PB
// needs to resolve both WR edges and MalformedHistory.
package polygraph
