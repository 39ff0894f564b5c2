// Package engine orchestrates the Polygraph Builder, Deterministic
// Pruner, and SMT Core into the single Check entry point spec.md §6
// describes. An Engine is constructed once (a config.Config plus a
// *slog.Logger) and reused across calls; it holds no mutable state of
// its own besides those two fields (spec.md §9 "Global state: None;
// the engine is a single owned object with explicit lifecycle
// {construct, run, drop}").
package engine
