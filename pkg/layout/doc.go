// Package layout coordinates layout engines with the diagram store.
//
// # Overview
//
// The command interpreter asks for a layout through the [Requester]
// interface after structural edits. The [Orchestrator] implements it: it
// turns the current store snapshot into engine input, runs the selected
// engine, and writes the resulting positions back through
// [diagram.Store.ReplaceNodes]. Engines never touch the store.
//
// # Engines
//
// Two engine shapes are substitutable behind the orchestrator:
//
//   - [Arranger]: one synchronous pass returning every placement at once
//     (the hierarchical engine in package hierarchy)
//   - [Simulator]: an iterative process that emits placements on every step
//     until it converges or its context is cancelled (the force-directed
//     engine in package force)
//
// # Modes
//
// [Full] lets every node move. [Incremental] pins every node except the
// most recently inserted ones (two by default), so a freshly added node
// settles into an otherwise frozen diagram.
//
// # Process Discipline
//
// At most one layout process is active. [Orchestrator.Request] always stops
// the active process before starting another, and [Orchestrator.Stop]
// returns only after the process goroutine has exited, so no position from
// a cancelled process can overwrite a later edit.
//
// # Dangling Edges
//
// Edges whose source or target no longer exists are left out of the engine
// input and logged with the DANGLING_EDGE code. They stay in the store until
// explicitly unlinked.
package layout
