package overlay

import (
	"errors"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/sugiura/kamishibai/internal/types"
)

func newTestPainter(t *testing.T) *Painter {
	t.Helper()
	p, err := NewPainter(Options{
		CanvasW:   1280,
		CanvasH:   720,
		FontSize:  36,
		TitleSize: 75,
		TextColor: color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		BandColor: color.NRGBA{A: 0xF0},
		Dir:       filepath.Join(t.TempDir(), "overlays"),
	})
	if err != nil {
		var fe *types.FontUnavailableError
		if errors.As(err, &fe) {
			t.Skipf("no usable font on this host: %v", err)
		}
		t.Fatal(err)
	}
	return p
}

func TestResolveFont_AllCandidatesFail(t *testing.T) {
	// A bogus configured path plus a working directory without bundled fonts
	// exhausts the chain on hosts that lack DejaVu; otherwise resolution
	// succeeds and the configured path shows up in neither.
	f, err := ResolveFont(filepath.Join(t.TempDir(), "missing.ttf"), false)
	if err != nil {
		var fe *types.FontUnavailableError
		if !errors.As(err, &fe) {
			t.Fatalf("err = %v, want FontUnavailableError", err)
		}
		if len(fe.Tried) == 0 {
			t.Fatalf("error does not list attempted paths")
		}
		return
	}
	if f.Path == "" {
		t.Fatalf("resolved font has no path")
	}
}

func TestSegmentBand_BandDimensionsAndCache(t *testing.T) {
	p := newTestPainter(t)
	seg := types.Segment{Index: 0, Lines: []string{"caption line"}}

	path, layout, err := p.SegmentBand("S002", seg, false)
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 1280 || img.Bounds().Dy() != layout.BandHeight {
		t.Fatalf("band image %v, want 1280x%d", img.Bounds(), layout.BandHeight)
	}

	// Outside the rounded rect stays transparent; inside carries band alpha.
	_, _, _, a := img.At(0, 0).RGBA()
	if a != 0 {
		t.Fatalf("corner not transparent")
	}
	_, _, _, a = img.At(640, (layout.RectTop+layout.RectBottom)/2).RGBA()
	if a == 0 {
		t.Fatalf("band centre transparent")
	}

	again, _, err := p.SegmentBand("S002", seg, false)
	if err != nil {
		t.Fatal(err)
	}
	if again != path {
		t.Fatalf("cache missed: %s vs %s", again, path)
	}
}

func TestSegmentBand_TypingOmitsGlyphs(t *testing.T) {
	p := newTestPainter(t)
	seg := types.Segment{Index: 1, Lines: []string{"W W W W W"}}

	staticPath, layout, err := p.SegmentBand("S003", seg, false)
	if err != nil {
		t.Fatal(err)
	}
	typingPath, _, err := p.SegmentBand("S004", seg, true)
	if err != nil {
		t.Fatal(err)
	}

	readPNG := func(path string) [][]uint32 {
		f, err := os.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		img, err := png.Decode(f)
		if err != nil {
			t.Fatal(err)
		}
		row := layout.TextTop + layout.TextBlockHeight/2
		var rows [][]uint32
		var px []uint32
		for x := 0; x < img.Bounds().Dx(); x++ {
			r, _, _, _ := img.At(x, row).RGBA()
			px = append(px, r)
		}
		rows = append(rows, px)
		return rows
	}

	staticRow := readPNG(staticPath)[0]
	typingRow := readPNG(typingPath)[0]
	same := true
	for i := range staticRow {
		if staticRow[i] != typingRow[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("typing band should not contain painted glyphs")
	}
}

func TestOpeningTitle_CanvasSized(t *testing.T) {
	p := newTestPainter(t)
	path, err := p.OpeningTitle("S001", []string{"Hello"})
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 1280 || img.Bounds().Dy() != 720 {
		t.Fatalf("opening image %v, want canvas size", img.Bounds())
	}
}

func TestLayout_SharedWithSubtitlePositioner(t *testing.T) {
	p := newTestPainter(t)
	l1, err := p.Layout([]string{"line one", "line two"})
	if err != nil {
		t.Fatal(err)
	}
	l2, err := p.Layout([]string{"line one", "line two"})
	if err != nil {
		t.Fatal(err)
	}
	if l1.BandHeight != l2.BandHeight || l1.TextTop != l2.TextTop {
		t.Fatalf("layout not deterministic: %+v vs %+v", l1, l2)
	}
	tops := l1.CanvasLineTops(720)
	if tops[0] != 720-l1.BandHeight+l1.TextTop {
		t.Fatalf("canvas tops misanchored: %v", tops)
	}
}
