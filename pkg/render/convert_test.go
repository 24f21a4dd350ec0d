package render

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/matzehuels/flowsketch/pkg/errors"
)

const tinySVG = `<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><rect width="10" height="10"/></svg>`

func TestConvert_MissingTool(t *testing.T) {
	t.Setenv(rsvgEnv, filepath.Join(t.TempDir(), "no-such-rsvg"))

	_, err := ToPDF(context.Background(), []byte(tinySVG))
	if !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("ToPDF without rsvg-convert = %v, want UNSUPPORTED", err)
	}
}

func TestConvert(t *testing.T) {
	if _, err := exec.LookPath("rsvg-convert"); err != nil {
		t.Skip("rsvg-convert not installed")
	}
	ctx := context.Background()

	pdf, err := ToPDF(ctx, []byte(tinySVG))
	if err != nil {
		t.Fatalf("ToPDF: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Errorf("ToPDF output is not a PDF")
	}

	png, err := ToPNG(ctx, []byte(tinySVG), 0)
	if err != nil {
		t.Fatalf("ToPNG: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Errorf("ToPNG output is not a PNG")
	}
}
