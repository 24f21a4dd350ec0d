// Package io provides script and JSON import and export for diagrams.
//
// # Overview
//
// A diagram has two external forms:
//
//   - The command script: the canonical text produced by
//     [command.Serialize]. Importing a script means executing it, so the
//     interpreter stays the only way data enters a store.
//   - JSON: a structural snapshot for external tools and the HTTP API.
//
// # Script Format
//
//	awi 0 A
//	move 0 0 0
//	awi 1 B
//	move 1 0 100
//	link 0 1 calls
//	color 0 #e6b8af
//
// Use [WriteScript] / [ExportScript] to write a snapshot and [ReadScript] /
// [ImportScript] to execute a script through an [Executor]. Import validates
// the whole script first (size limit, UTF-8, no control characters) and then
// reports per-line diagnostics in a [command.Report].
//
// # JSON Format
//
//	{
//	  "nodes": [
//	    {"id": "0", "label": "A", "x": 0, "y": 0, "color": "#e6b8af"},
//	    {"id": "1", "label": "B", "x": 0, "y": 100}
//	  ],
//	  "edges": [
//	    {"from": "0", "to": "1", "label": "calls"}
//	  ]
//	}
//
// Use [WriteJSON] / [ExportJSON] to write and [ReadJSON] / [ImportJSON] to
// read. [LoadJSON] decodes a JSON diagram and replays it through an
// [Executor] as a script.
//
// [command.Serialize]: github.com/matzehuels/flowsketch/pkg/command.Serialize
// [command.Report]: github.com/matzehuels/flowsketch/pkg/command.Report
package io
