package render

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/matzehuels/flowsketch/pkg/errors"
)

// rsvgEnv overrides the rsvg-convert binary location.
const rsvgEnv = "FLOWSKETCH_RSVG_CONVERT"

// ToPDF converts SVG to PDF with rsvg-convert (librsvg).
func ToPDF(ctx context.Context, svg []byte) ([]byte, error) {
	return rsvgConvert(ctx, svg, "pdf")
}

// ToPNG converts SVG to PNG with rsvg-convert. A scale of 2 doubles the
// resolution; non-positive scales mean 1.
func ToPNG(ctx context.Context, svg []byte, scale float64) ([]byte, error) {
	if scale <= 0 {
		scale = 1
	}
	return rsvgConvert(ctx, svg, "png", "--zoom", strconv.FormatFloat(scale, 'f', 2, 64))
}

func rsvgConvert(ctx context.Context, svg []byte, format string, args ...string) ([]byte, error) {
	bin := os.Getenv(rsvgEnv)
	if bin == "" {
		bin = "rsvg-convert"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnsupported, err,
			"%s export needs rsvg-convert (brew install librsvg, apt install librsvg2-bin)", format)
	}

	var out, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, append([]string{"--format", format}, args...)...)
	cmd.Stdin = bytes.NewReader(svg)
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "rsvg-convert: %s", msg)
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "rsvg-convert")
	}
	return out.Bytes(), nil
}
