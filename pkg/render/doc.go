// Package render turns flowsketch diagrams into files.
//
// Graphviz produces SVG in-process through the [nodelink] subpackage. The
// raster and print formats are derived from that SVG by [ToPNG] and
// [ToPDF], which shell out to rsvg-convert from librsvg:
//
//	svg, err := nodelink.RenderSVG(ctx, nodelink.ToDOT(g, nodelink.Options{}))
//	png, err := render.ToPNG(ctx, svg, 2)
//
// Set FLOWSKETCH_RSVG_CONVERT to use a binary outside PATH. When the tool
// cannot be found the conversion fails with code UNSUPPORTED.
//
// [nodelink]: github.com/matzehuels/flowsketch/pkg/render/nodelink
package render
