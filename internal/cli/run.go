package cli

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/matzehuels/flowsketch/pkg/cache"
	"github.com/matzehuels/flowsketch/pkg/clipboard"
	"github.com/matzehuels/flowsketch/pkg/command"
	"github.com/matzehuels/flowsketch/pkg/diagram"
	"github.com/matzehuels/flowsketch/pkg/errors"
	fsio "github.com/matzehuels/flowsketch/pkg/io"
	"github.com/matzehuels/flowsketch/pkg/layout"
	"github.com/matzehuels/flowsketch/pkg/render/nodelink"
	"github.com/matzehuels/flowsketch/pkg/session"
)

// Output formats for flowsketch run.
const (
	formatScript = "script"
	formatJSON   = "json"
	formatSVG    = "svg"
	formatPNG    = "png"
	formatPDF    = "pdf"
)

var outputFormats = []string{formatScript, formatJSON, formatSVG, formatPNG, formatPDF}

type runOpts struct {
	format  string
	output  string
	engine  string
	timeout time.Duration
	scale   float64
	noCache bool
	keep    bool
}

func (c *CLI) runCommand() *cobra.Command {
	opts := runOpts{timeout: 30 * time.Second, scale: 2}

	cmd := &cobra.Command{
		Use:   "run [script...]",
		Short: "Execute scripts and export the resulting diagram",
		Long: `Execute command scripts in order, wait for the layout to settle and
export the diagram. With no arguments, or "-", the script is read from stdin.

The format defaults to the extension of --output, or script on stdout.`,
		Example: `  flowsketch run flow.fs -o flow.svg
  echo "add A
add B
ll" | flowsketch run --format json
  flowsketch run flow.fs --engine hierarchy -o flow.png
  flowsketch run copied.fs --keep-positions -o copied.svg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: "+strings.Join(outputFormats, ", "))
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&opts.engine, "engine", "", "run a full layout with this engine before exporting")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", opts.timeout, "how long to wait for the layout to settle")
	cmd.Flags().Float64Var(&opts.scale, "scale", opts.scale, "PNG scale factor")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "render without the artifact cache")
	cmd.Flags().BoolVar(&opts.keep, "keep-positions", false, "replay scripts without automatic layouts, keeping the positions their move lines set")
	_ = cmd.RegisterFlagCompletionFunc("format", cobra.FixedCompletions(outputFormats, cobra.ShellCompDirectiveNoFileComp))

	return cmd
}

func (c *CLI) run(ctx context.Context, stdin io.Reader, stdout io.Writer, scripts []string, opts runOpts) error {
	logger := loggerFromContext(ctx)

	format, err := resolveFormat(opts.format, opts.output)
	if err != nil {
		return err
	}
	if opts.output != "" {
		if err := errors.ValidatePath(opts.output); err != nil {
			return err
		}
	}

	clip, err := clipboard.New(c.cfg.ClipboardOptions())
	if err != nil {
		return err
	}
	defer clip.Close()

	sess, err := session.New(uuid.NewString(), c.sessionOptions(logger, clip))
	if err != nil {
		return err
	}
	defer sess.Close()

	if len(scripts) == 0 {
		scripts = []string{"-"}
	}
	prog := newProgress(logger)
	var failed int
	for _, path := range scripts {
		rep, err := execScript(ctx, sess, path, stdin, opts.keep)
		if err != nil {
			return err
		}
		logger.Debug("script executed", "path", path, "executed", rep.Executed(), "ignored", rep.Ignored())
		if d := rep.Diagnostics(); len(d) > 0 {
			failed += len(d)
			printWarning("%s: %s", scriptName(path), plural(len(d), "diagnostic"))
			printDiagnostics(rep)
		}
	}

	if opts.engine != "" {
		if err := sess.RequestLayout(layout.Full, opts.engine); err != nil {
			return err
		}
	}
	if err := settle(ctx, sess, opts.timeout); err != nil {
		return err
	}
	prog.done("Diagram ready")

	renders, err := c.renderCache(logger, opts.noCache)
	if err != nil {
		return err
	}
	defer renders.Close()

	g := sess.Snapshot()
	data, err := renderFormat(ctx, renders, g, format, sess.Measure(), opts.scale)
	if err != nil {
		return err
	}

	if opts.output == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(opts.output, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", opts.output)
	}
	printSuccess("Exported %s %s", format, summary(len(g.Nodes), len(g.Edges), sess.Store.Version()))
	printFile(opts.output)
	if failed > 0 {
		logger.Warn("some lines were not applied", "count", failed)
	}
	return nil
}

// execScript runs one script. With keep, serialized positions survive
// because no layout is requested along the way.
func execScript(ctx context.Context, sess *session.Session, path string, stdin io.Reader, keep bool) (command.Report, error) {
	var ex fsio.Executor = sess
	if keep {
		ex = fsio.Replaying(sess)
	}
	if path == "-" {
		return fsio.ReadScript(ctx, stdin, ex)
	}
	return fsio.ImportScript(ctx, path, ex)
}

func scriptName(path string) string {
	if path == "-" {
		return "stdin"
	}
	return path
}

// settle waits for the running layout. A layout that outlives timeout is
// stopped and the current positions are kept.
func settle(ctx context.Context, sess *session.Session, timeout time.Duration) error {
	if !sess.Layout.Active() {
		return nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	spin := newSpinner(waitCtx, status, "Settling layout...")
	spin.Start()
	err := sess.Layout.Wait(waitCtx)
	switch {
	case err == nil:
		spin.Stop()
		return nil
	case ctx.Err() != nil:
		spin.Stop()
		return ctx.Err()
	case stderrors.Is(err, context.DeadlineExceeded):
		sess.Layout.Stop()
		spin.Fail("Layout did not settle within %s, exporting current positions", timeout)
		return nil
	default:
		spin.Stop()
		return err
	}
}

// resolveFormat picks the explicit format, else the output extension, else
// script.
func resolveFormat(format, output string) (string, error) {
	if format == "" {
		switch ext := strings.ToLower(filepath.Ext(output)); ext {
		case ".json", ".svg", ".png", ".pdf":
			format = ext[1:]
		default:
			format = formatScript
		}
	}
	format = strings.ToLower(format)
	if !slices.Contains(outputFormats, format) {
		return "", errors.New(errors.ErrCodeInvalidInput, "unknown format %q (valid: %s)", format, strings.Join(outputFormats, ", "))
	}
	return format, nil
}

// renderFormat encodes g. Graphviz output goes through renders, keyed by
// the DOT source and render settings.
func renderFormat(ctx context.Context, renders *cache.Memo, g diagram.Graph, format string, measure layout.MeasureFunc, scale float64) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case formatScript:
		if err := fsio.WriteScript(g, &buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case formatJSON:
		if err := fsio.WriteJSON(g, &buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	dot := nodelink.ToDOT(g, nodelink.Options{Measure: measure})
	key := cache.Key(format, dot, strconv.FormatFloat(scale, 'f', -1, 64))
	return renders.Do(ctx, key, func(ctx context.Context) ([]byte, error) {
		switch format {
		case formatSVG:
			return nodelink.RenderSVG(ctx, dot)
		case formatPNG:
			return nodelink.RenderPNG(ctx, dot, scale)
		case formatPDF:
			return nodelink.RenderPDF(ctx, dot)
		}
		return nil, fmt.Errorf("unhandled format %q", format)
	})
}
