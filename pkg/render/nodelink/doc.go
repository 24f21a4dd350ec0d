// Package nodelink draws a diagram as boxes and arrows.
//
// Layout is not this package's concern. [ToDOT] pins every node at its
// stored position (pos="x,y!" with inputscale=72, y flipped for Graphviz's
// bottom-left origin) and [RenderSVG] runs neato, which respects pins, so
// the export matches what the editor shows. Boxes are sized with the same
// measure function the layout engines use.
//
//	dot := nodelink.ToDOT(sess.Snapshot(), nodelink.Options{Measure: sess.Measure()})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// Edges whose endpoints are missing are skipped. PNG and PDF go through
// the converters in the parent render package.
package nodelink
