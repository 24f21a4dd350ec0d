// Package diagram holds the in-memory node-link graph that the command
// language edits.
//
// # Core Types
//
//   - [Node]: a labelled box with a position and an optional color
//   - [Edge]: a directed relation between two node ids, optionally labelled
//   - [Graph]: an ordered snapshot of nodes and edges
//   - [Store]: the single owner of the canonical sequences
//
// # Ownership
//
// The [Store] owns both sequences for the lifetime of an editing session.
// Everything else works on copies: [Store.Snapshot] returns a deep copy, and
// [Store.ReplaceNodes] / [Store.ReplaceEdges] hand a private copy to a pure
// transform and install its result atomically. No caller ever holds a
// reference into the store's internals.
//
//	s := diagram.NewStore()
//	s.ReplaceNodes(func(ns []diagram.Node) []diagram.Node {
//	    return append(ns, diagram.Node{ID: "0", Label: "hello"})
//	})
//	g := s.Snapshot()
//
// # Ordering
//
// Insertion order is significant. The last node is the one the placement
// heuristic stacks new nodes under, and the one the `col` and `ll` commands
// address. Edges keep insertion order too, which keeps serialization stable.
//
// # Referential Integrity
//
// Edges may name node ids that do not exist. The store does not enforce
// referential integrity; layout and rendering skip dangling endpoints.
//
// # Change Notification
//
// Every successful replace bumps [Store.Version] and notifies subscribers
// registered with [Store.Subscribe]. Renderers (the REPL view, WebSocket
// streams, NATS publishing) hang off this hook; the store itself knows
// nothing about them.
package diagram
