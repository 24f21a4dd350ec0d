// Package pkg holds the flowsketch libraries.
//
// # Overview
//
// flowsketch edits node-link diagrams through a line-oriented command
// language. A session owns one diagram; commands mutate it, layout engines
// move its nodes, and renderers turn it into pictures.
//
//	command text
//	     ↓
//	[command] interpreter ──→ [diagram] store ←── [layout] engines
//	                               ↓
//	          [io] scripts/JSON, [render] SVG/PNG/PDF, [notify] NATS
//
// # Packages
//
//   - [diagram]: nodes, edges, the store, id allocation, placement, palette
//   - [command]: the interpreter and the script serializer
//   - [layout]: the orchestrator plus the force and hierarchy engines
//   - [session]: a diagram with its interpreter and layout, and a manager
//     for many of them
//   - [io]: script and JSON import/export
//   - [render]: Graphviz node-link rendering and format conversion
//   - [cache]: rendered artifact storage
//   - [clipboard]: copy and paste backends
//   - [notify]: change publication over NATS
//   - [config]: TOML configuration
//   - [errors]: coded errors and input validation
//   - [observability]: command and layout hooks
//   - [httputil]: JSON and error helpers for the HTTP API
//
// # Quick Start
//
//	sess, _ := session.New("demo", session.Options{})
//	defer sess.Close()
//
//	rep := sess.Execute(ctx, "add Client\nadd Server\nll\ncolor 1 b")
//	for _, d := range rep.Diagnostics() {
//	    fmt.Printf("line %d: %s\n", d.Line, d.Message)
//	}
//	_ = sess.Layout.Wait(ctx)
//
//	dot := nodelink.ToDOT(sess.Snapshot(), nodelink.Options{Measure: sess.Measure()})
//	svg, _ := nodelink.RenderSVG(ctx, dot)
//
// [diagram]: github.com/matzehuels/flowsketch/pkg/diagram
// [command]: github.com/matzehuels/flowsketch/pkg/command
// [layout]: github.com/matzehuels/flowsketch/pkg/layout
// [session]: github.com/matzehuels/flowsketch/pkg/session
// [io]: github.com/matzehuels/flowsketch/pkg/io
// [render]: github.com/matzehuels/flowsketch/pkg/render
// [cache]: github.com/matzehuels/flowsketch/pkg/cache
// [clipboard]: github.com/matzehuels/flowsketch/pkg/clipboard
// [notify]: github.com/matzehuels/flowsketch/pkg/notify
// [config]: github.com/matzehuels/flowsketch/pkg/config
// [errors]: github.com/matzehuels/flowsketch/pkg/errors
// [observability]: github.com/matzehuels/flowsketch/pkg/observability
// [httputil]: github.com/matzehuels/flowsketch/pkg/httputil
package pkg
