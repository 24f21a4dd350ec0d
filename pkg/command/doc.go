// Package command implements the flowsketch command language.
//
// # Overview
//
// A script is a sequence of newline-separated statements. Each statement
// starts with a keyword; arguments follow, separated by whitespace. The last
// argument of add, awi, append, edit and link is free text: it is everything
// after one separating space, kept verbatim, and may contain spaces.
//
//	add Hello world       node "0" labelled "Hello world"
//	awi db Database       node "db" labelled "Database"
//	append db (primary)   label becomes "Database\n(primary)"
//	link 0 db reads       edge "0-db" labelled "reads"
//	color db b            quick color blue
//	move db 300 40        position (300, 40)
//
// # Execution
//
// [Interpreter.Execute] runs each line in order. Lines that fail validation
// produce a coded diagnostic in the returned [Report] and are skipped; the
// batch never aborts. Unknown keywords are ignored silently (logged at debug
// level only).
//
// Structural commands request a layout pass: add and awi an incremental pass
// that leaves existing nodes pinned, ll and link a full reflow. Every command
// that writes to the store stops the running layout process first.
//
// # Round Trip
//
// [Serialize] renders a diagram as a script of awi, append, move, link and
// color statements. Executing that script on an empty store reproduces the
// diagram, which is how copy and paste work.
package command
