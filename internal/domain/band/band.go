// Package band holds the caption-band geometry shared by the PNG painter and
// the subtitle positioner. Both must agree to the pixel, so the formulas live
// here and nowhere else.
package band

// Metrics are the size-derived constants for one font size and canvas width.
type Metrics struct {
	LineLeading      int
	OuterMarginTop   int
	OuterMarginBot   int
	InnerPaddingTop  int
	InnerPaddingBot  int
	HorizontalMargin int
	CornerRadius     int
}

// Compute derives the band constants from the font size and canvas width.
func Compute(fontSize, canvasWidth int, multiLine bool) Metrics {
	leadFactor := 0.25
	if multiLine {
		leadFactor = 0.42
	}
	return Metrics{
		LineLeading:      int(float64(fontSize) * leadFactor),
		OuterMarginTop:   atLeast(int(float64(fontSize)*0.12), 6),
		OuterMarginBot:   atLeast(int(float64(fontSize)*0.35), 18),
		InnerPaddingTop:  atLeast(int(float64(fontSize)*0.45), 20),
		InnerPaddingBot:  atLeast(int(float64(fontSize)*0.7), 28),
		HorizontalMargin: atLeast(int(float64(canvasWidth)*0.018), 18),
		CornerRadius:     atLeast(int(float64(fontSize)*0.42), 18),
	}
}

// Layout positions a measured text block inside the band. All ordinates are
// band-image local; AnchorY converts to canvas space.
type Layout struct {
	Metrics
	LineHeights     []int
	TextBlockHeight int
	BandHeight      int
	RectTop         int
	RectBottom      int
	TextTop         int
}

// ComputeLayout stacks the measured line heights with leading and padding.
func ComputeLayout(m Metrics, lineHeights []int) Layout {
	block := 0
	for _, h := range lineHeights {
		block += h
	}
	if len(lineHeights) > 1 {
		block += m.LineLeading * (len(lineHeights) - 1)
	}

	bandHeight := block + m.InnerPaddingTop + m.InnerPaddingBot + m.OuterMarginTop + m.OuterMarginBot
	rectTop := m.OuterMarginTop
	rectBottom := bandHeight - m.OuterMarginBot

	innerTop := rectTop + m.InnerPaddingTop
	innerBottom := rectBottom - m.InnerPaddingBot
	available := innerBottom - innerTop
	if available < 0 {
		available = 0
	}
	pad := (available - block) / 2
	if pad < 0 {
		pad = 0
	}

	return Layout{
		Metrics:         m,
		LineHeights:     append([]int(nil), lineHeights...),
		TextBlockHeight: block,
		BandHeight:      bandHeight,
		RectTop:         rectTop,
		RectBottom:      rectBottom,
		TextTop:         innerTop + pad,
	}
}

// AnchorY is the canvas-space y where the band image is overlaid (y = H - h).
func (l Layout) AnchorY(canvasHeight int) int {
	return canvasHeight - l.BandHeight
}

// LineTops returns each text row's top ordinate, band-image local.
func (l Layout) LineTops() []int {
	tops := make([]int, len(l.LineHeights))
	y := l.TextTop
	for i, h := range l.LineHeights {
		tops[i] = y
		y += h
		if i < len(l.LineHeights)-1 {
			y += l.LineLeading
		}
	}
	return tops
}

// CanvasLineTops returns each row's top ordinate in canvas space, as used by
// the subtitle positioner.
func (l Layout) CanvasLineTops(canvasHeight int) []int {
	anchor := l.AnchorY(canvasHeight)
	tops := l.LineTops()
	for i := range tops {
		tops[i] += anchor
	}
	return tops
}

func atLeast(v, floor int) int {
	if v < floor {
		return floor
	}
	return v
}
