package filtergraph

import (
	"fmt"
	"math"

	"github.com/sugiura/kamishibai/internal/config"
	"github.com/sugiura/kamishibai/internal/types"
)

// minZoom keeps zoompan strictly increasing even when the configured zoom is
// zero or negative; a constant z of exactly 1.0 makes some builds emit a
// single frame.
const minZoom = 0.015

// PanMotion is the numeric Ken-Burns solution for one scene, computed from
// the source image size so crop bounds can be verified without running the
// tool.
type PanMotion struct {
	ScaledW int
	ScaledH int
	TravelX float64
	TravelY float64
	OriginX float64
	OriginY float64
	// ReliefX/Y is the extra edge guard active at t=0; it decays linearly to
	// zero across IntroSeconds.
	ReliefX      float64
	ReliefY      float64
	IntroSeconds float64
}

// SolvePan derives the scale and travel numbers for pan_only mode.
func SolvePan(kb config.KenBurns, dir types.Direction, imgW, imgH, outW, outH int) PanMotion {
	cover := math.Max(float64(outW)/float64(imgW), float64(outH)/float64(imgH))

	m := math.Max(kb.Margin, 0)
	mRelief := m
	if kb.IntroSeconds > 0 {
		mRelief = math.Min(m*(1+kb.IntroRelief), kb.MaxMargin)
		if mRelief < m {
			mRelief = m
		}
	}

	sw := int(math.Ceil(float64(imgW) * cover * (1 + mRelief)))
	sh := int(math.Ceil(float64(imgH) * cover * (1 + mRelief)))
	swBase := int(math.Ceil(float64(imgW) * cover * (1 + m)))
	shBase := int(math.Ceil(float64(imgH) * cover * (1 + m)))

	slackX := float64(sw - outW)
	slackY := float64(sh - outH)

	extent := kb.PanExtent * kb.MotionScale
	if kb.FullTravel || extent > 1 {
		extent = 1
	}
	if extent < 0 {
		extent = 0
	}

	travelX := extent * slackX * float64(abs(dir.DX))
	travelY := extent * slackY * float64(abs(dir.DY))

	pm := PanMotion{
		ScaledW:      sw,
		ScaledH:      sh,
		TravelX:      travelX * float64(sign(dir.DX)),
		TravelY:      travelY * float64(sign(dir.DY)),
		OriginX:      (slackX - travelX*float64(sign(dir.DX))) / 2,
		OriginY:      (slackY - travelY*float64(sign(dir.DY))) / 2,
		IntroSeconds: kb.IntroSeconds,
	}
	if kb.IntroSeconds > 0 {
		pm.ReliefX = float64(sw-swBase) / 2
		pm.ReliefY = float64(sh-shBase) / 2
	}
	return pm
}

// CropX returns the crop origin at time t, mirroring the emitted expression.
// Used by tests to check the crop rectangle stays inside the scaled frame.
func (p PanMotion) CropX(t, duration float64, outW int) float64 {
	return p.cropAt(t, duration, p.OriginX, p.TravelX, p.ReliefX, float64(p.ScaledW-outW))
}

func (p PanMotion) CropY(t, duration float64, outH int) float64 {
	return p.cropAt(t, duration, p.OriginY, p.TravelY, p.ReliefY, float64(p.ScaledH-outH))
}

func (p PanMotion) cropAt(t, duration, origin, travel, relief, slack float64) float64 {
	prog := 0.0
	if duration > 0 {
		prog = math.Min(t/duration, 1)
	}
	x := origin + travel*prog
	guard := 0.0
	if p.IntroSeconds > 0 {
		guard = relief * math.Max(1-t/p.IntroSeconds, 0)
	}
	lo, hi := guard, slack-guard
	if hi < lo {
		lo, hi = slack/2, slack/2
	}
	return math.Min(math.Max(x, lo), hi)
}

func (p PanMotion) cropExpr(duration float64, origin, travel, relief, slack float64) string {
	lin := fmt.Sprintf("%.3f", origin)
	if travel != 0 {
		lin = fmt.Sprintf("%.3f+%.3f*min(t/%.3f\\,1)", origin, travel, duration)
	}
	if p.IntroSeconds > 0 && relief > 0 {
		guard := fmt.Sprintf("%.3f*max(1-t/%.3f\\,0)", relief, p.IntroSeconds)
		return fmt.Sprintf("clip(%s\\,%s\\,%.3f-%s)", lin, guard, slack, guard)
	}
	return fmt.Sprintf("clip(%s\\,0\\,%.3f)", lin, slack)
}

// panStages emits the scale+crop chain for pan_only mode.
func panStages(g *Graph, input string, pm PanMotion, duration float64, outW, outH, fps int) string {
	scaled := g.Add([]string{input}, fmt.Sprintf("scale=%d:%d", pm.ScaledW, pm.ScaledH), "[scaled]")
	x := pm.cropExpr(duration, pm.OriginX, pm.TravelX, pm.ReliefX, float64(pm.ScaledW-outW))
	y := pm.cropExpr(duration, pm.OriginY, pm.TravelY, pm.ReliefY, float64(pm.ScaledH-outH))
	crop := fmt.Sprintf("crop=%d:%d:x='%s':y='%s',fps=%d", outW, outH, x, y, fps)
	return g.Add([]string{scaled}, crop, "[base]")
}

// zoomStages emits the zoompan chain. The input is a single frame; zoompan's
// d expands it to the scene's frame count.
func zoomStages(g *Graph, input string, kb config.KenBurns, dir types.Direction, pm PanMotion, duration float64, outW, outH, fps int) string {
	nframes := int(math.Round(duration * float64(fps)))
	if nframes < 1 {
		nframes = 1
	}
	zoom := kb.Zoom
	if zoom <= 0 {
		zoom = minZoom
	}
	zmax := 1.0 + zoom
	step := zoom / float64(nframes)

	off := kb.Offset * kb.Margin
	z := fmt.Sprintf("min(max(zoom\\,pzoom)+%.7f\\,%.6f)", step, zmax)
	x := fmt.Sprintf("iw/2-(iw/zoom/2)-(iw/zoom)*%.6f*(on/%d)", off*float64(dir.DX), nframes)
	y := fmt.Sprintf("ih/2-(ih/zoom/2)-(ih/zoom)*%.6f*(on/%d)", off*float64(dir.DY), nframes)

	scaled := g.Add([]string{input}, fmt.Sprintf("scale=%d:%d", pm.ScaledW, pm.ScaledH), "[scaled]")
	zp := fmt.Sprintf("zoompan=z='%s':x='%s':y='%s':d=%d:s=%dx%d:fps=%d", z, x, y, nframes, outW, outH, fps)
	return g.Add([]string{scaled}, zp, "[base]")
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
