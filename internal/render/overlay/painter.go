// Package overlay paints the caption-band and title PNGs composited over
// each scene.
package overlay

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/sugiura/kamishibai/internal/domain/band"
	"github.com/sugiura/kamishibai/internal/types"
)

type Painter struct {
	CanvasW int
	CanvasH int

	fontSize  int
	titleSize int
	textColor color.NRGBA
	bandColor color.NRGBA

	body  *Font
	title *Font

	dir   string
	mu    sync.Mutex
	cache map[string]string
}

type Options struct {
	CanvasW   int
	CanvasH   int
	FontSize  int
	TitleSize int
	TextColor color.NRGBA
	BandColor color.NRGBA
	FontPath  string
	Dir       string
}

func NewPainter(opts Options) (*Painter, error) {
	body, err := ResolveFont(opts.FontPath, false)
	if err != nil {
		return nil, err
	}
	// Opening titles prefer the heavier cut; fall back to the body face when
	// only one weight ships.
	title, err := ResolveFont(opts.FontPath, true)
	if err != nil {
		title = body
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, err
	}
	return &Painter{
		CanvasW:   opts.CanvasW,
		CanvasH:   opts.CanvasH,
		fontSize:  opts.FontSize,
		titleSize: opts.TitleSize,
		textColor: opts.TextColor,
		bandColor: opts.BandColor,
		body:      body,
		title:     title,
		dir:       opts.Dir,
		cache:     make(map[string]string),
	}, nil
}

// BodyFont exposes the resolved face for the subtitle styler.
func (p *Painter) BodyFont() *Font { return p.body }

// Layout measures the display rows and returns the band geometry used both
// here and by the subtitle positioner.
func (p *Painter) Layout(lines []string) (band.Layout, error) {
	face, err := p.body.Face(p.fontSize)
	if err != nil {
		return band.Layout{}, err
	}
	heights := make([]int, len(lines))
	lineHeight := faceHeight(face)
	for i := range lines {
		heights[i] = lineHeight
	}
	m := band.Compute(p.fontSize, p.CanvasW, len(lines) > 1)
	return band.ComputeLayout(m, heights), nil
}

// SegmentBand renders one caption band PNG. With typing enabled the band is
// painted empty; glyphs come from the subtitle layer instead.
func (p *Painter) SegmentBand(sceneID string, seg types.Segment, typing bool) (string, band.Layout, error) {
	layout, err := p.Layout(seg.Lines)
	if err != nil {
		return "", band.Layout{}, err
	}

	name := fmt.Sprintf("%s_seg%02d.png", sceneID, seg.Index)
	key := p.cacheKey("band", seg.Lines, typing)
	if path, ok := p.lookup(key); ok {
		return path, layout, nil
	}

	img := image.NewRGBA(image.Rect(0, 0, p.CanvasW, layout.BandHeight))
	fillRoundedRect(img,
		image.Rect(layout.HorizontalMargin, layout.RectTop, p.CanvasW-layout.HorizontalMargin, layout.RectBottom),
		layout.CornerRadius, p.bandColor)

	if !typing {
		face, err := p.body.Face(p.fontSize)
		if err != nil {
			return "", band.Layout{}, err
		}
		tops := layout.LineTops()
		contentWidth := p.CanvasW - 2*layout.HorizontalMargin
		for i, line := range seg.Lines {
			w := textWidth(face, line)
			x := layout.HorizontalMargin + max((contentWidth-w)/2, 0)
			drawText(img, face, line, x, tops[i], p.textColor)
		}
	}

	path, err := p.store(key, name, img)
	return path, layout, err
}

// OpeningTitle renders the centred title card on a transparent full canvas.
func (p *Painter) OpeningTitle(sceneID string, lines []string) (string, error) {
	key := p.cacheKey("opening", lines, false)
	if path, ok := p.lookup(key); ok {
		return path, nil
	}

	face, err := p.title.Face(p.titleSize)
	if err != nil {
		return "", err
	}
	img := image.NewRGBA(image.Rect(0, 0, p.CanvasW, p.CanvasH))

	lineHeight := faceHeight(face)
	leading := int(float64(p.titleSize) * 0.6)
	total := lineHeight * len(lines)
	if len(lines) > 1 {
		total += leading * (len(lines) - 1)
	}

	y := (p.CanvasH - total) / 2
	for _, line := range lines {
		w := textWidth(face, line)
		drawText(img, face, line, (p.CanvasW-w)/2, y, p.textColor)
		y += lineHeight + leading
	}

	return p.store(key, sceneID+"_opening.png", img)
}

func (p *Painter) cacheKey(kind string, lines []string, typing bool) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%dx%d|%d|%d|%v|%v|%s|%t|",
		kind, p.CanvasW, p.CanvasH, p.fontSize, p.titleSize, p.textColor, p.bandColor, p.body.Path, typing)
	h.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func (p *Painter) lookup(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	path, ok := p.cache[key]
	return path, ok
}

// store writes the PNG via create-then-rename so concurrent scene workers
// hitting the same key never read a half-written file.
func (p *Painter) store(key, name string, img image.Image) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if path, ok := p.cache[key]; ok {
		return path, nil
	}
	path := filepath.Join(p.dir, name)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", err
	}
	p.cache[key] = path
	return path, nil
}

func faceHeight(face font.Face) int {
	m := face.Metrics()
	return (m.Ascent + m.Descent).Ceil()
}

func textWidth(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

func drawText(dst *image.RGBA, face font.Face, s string, x, top int, col color.NRGBA) {
	ascent := face.Metrics().Ascent.Ceil()
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, top+ascent),
	}
	d.DrawString(s)
}

// fillRoundedRect paints an axis-aligned rounded rectangle. Corners are cut
// by circle containment per pixel; the band is small enough that the direct
// scan stays cheap.
func fillRoundedRect(dst *image.RGBA, r image.Rectangle, radius int, col color.NRGBA) {
	pm := color.RGBAModel.Convert(col).(color.RGBA)
	if radius <= 0 {
		draw.Draw(dst, r, image.NewUniform(pm), image.Point{}, draw.Over)
		return
	}
	maxR := min(r.Dx(), r.Dy()) / 2
	if radius > maxR {
		radius = maxR
	}
	src := image.NewUniform(pm)

	// Three full slabs cover everything but the corner squares.
	draw.Draw(dst, image.Rect(r.Min.X+radius, r.Min.Y, r.Max.X-radius, r.Max.Y), src, image.Point{}, draw.Over)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y+radius, r.Min.X+radius, r.Max.Y-radius), src, image.Point{}, draw.Over)
	draw.Draw(dst, image.Rect(r.Max.X-radius, r.Min.Y+radius, r.Max.X, r.Max.Y-radius), src, image.Point{}, draw.Over)

	centers := []image.Point{
		{r.Min.X + radius, r.Min.Y + radius},
		{r.Max.X - radius - 1, r.Min.Y + radius},
		{r.Min.X + radius, r.Max.Y - radius - 1},
		{r.Max.X - radius - 1, r.Max.Y - radius - 1},
	}
	corners := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+radius, r.Min.Y+radius),
		image.Rect(r.Max.X-radius, r.Min.Y, r.Max.X, r.Min.Y+radius),
		image.Rect(r.Min.X, r.Max.Y-radius, r.Min.X+radius, r.Max.Y),
		image.Rect(r.Max.X-radius, r.Max.Y-radius, r.Max.X, r.Max.Y),
	}
	rr := radius * radius
	for i, c := range corners {
		cx, cy := centers[i].X, centers[i].Y
		for y := c.Min.Y; y < c.Max.Y; y++ {
			for x := c.Min.X; x < c.Max.X; x++ {
				dx, dy := x-cx, y-cy
				if dx*dx+dy*dy <= rr {
					dst.SetRGBA(x, y, blendOver(dst.RGBAAt(x, y), pm))
				}
			}
		}
	}
}

// blendOver composites a premultiplied src over dst.
func blendOver(dst, src color.RGBA) color.RGBA {
	if src.A == 0xFF {
		return src
	}
	inv := uint32(255 - src.A)
	return color.RGBA{
		R: uint8(uint32(src.R) + uint32(dst.R)*inv/255),
		G: uint8(uint32(src.G) + uint32(dst.G)*inv/255),
		B: uint8(uint32(src.B) + uint32(dst.B)*inv/255),
		A: uint8(uint32(src.A) + uint32(dst.A)*inv/255),
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
