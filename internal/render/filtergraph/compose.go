package filtergraph

import (
	"fmt"

	"github.com/sugiura/kamishibai/internal/config"
	"github.com/sugiura/kamishibai/internal/types"
)

// OverlaySpec gates one caption band input on its segment interval.
type OverlaySpec struct {
	Start float64
	End   float64
}

// Subtitles configures the optional typing layer.
type Subtitles struct {
	Path       string
	FontsDir   string
	ForceStyle string
}

// Opening composes the title scene: a black lavfi source under the centred
// title PNG. Input 0 is the colour source, input 1 the title overlay.
func Opening(fps int) string {
	var g Graph
	g.Add([]string{"[0:v]", "[1:v]"},
		fmt.Sprintf("overlay=x=(W-w)/2:y=(H-h)/2:eval=init:format=auto,fps=%d,format=yuv420p", fps),
		"[vout]")
	return g.String()
}

// ContentParams carries everything the content graph needs. Overlay inputs
// are numbered 1..len(Overlays); input 0 is the base image.
type ContentParams struct {
	KenBurns config.KenBurns
	Motion   types.Direction
	Pan      PanMotion
	Duration float64
	OutW     int
	OutH     int
	FPS      int
	Overlays []OverlaySpec
	Subs     *Subtitles
}

// Content composes the Ken-Burns base, the gated caption bands, and the
// optional subtitle layer, ending in yuv420p.
func Content(p ContentParams) string {
	var g Graph

	var last string
	if p.KenBurns.Mode == config.ModeZoomPan {
		last = zoomStages(&g, "[0:v]", p.KenBurns, p.Motion, p.Pan, p.Duration, p.OutW, p.OutH, p.FPS)
	} else {
		last = panStages(&g, "[0:v]", p.Pan, p.Duration, p.OutW, p.OutH, p.FPS)
	}

	for i, ov := range p.Overlays {
		label := fmt.Sprintf("[v%d]", i)
		filter := fmt.Sprintf("overlay=x=0:y=H-h:enable='between(t,%.3f,%.3f)'", ov.Start, ov.End)
		last = g.Add([]string{last, fmt.Sprintf("[%d:v]", i+1)}, filter, label)
	}

	final := "format=yuv420p"
	if p.Subs != nil {
		subs := fmt.Sprintf("subtitles=filename='%s'", escapeFilterPath(p.Subs.Path))
		if p.Subs.FontsDir != "" {
			subs += fmt.Sprintf(":fontsdir='%s'", escapeFilterPath(p.Subs.FontsDir))
		}
		if p.Subs.ForceStyle != "" {
			subs += fmt.Sprintf(":force_style='%s'", p.Subs.ForceStyle)
		}
		final = subs + "," + final
	}
	g.Add([]string{last}, final, "[vout]")
	return g.String()
}
