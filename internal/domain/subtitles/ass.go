// Package subtitles emits ASS timelines for the typing caption animation.
// Geometry comes from the band module via precomputed per-line positions; the
// builders here only deal with timing and escaping.
package subtitles

import (
	"fmt"
	"strings"
)

// Line is one display row with its canvas-space anchor. CX is the canvas
// horizontal centre, TopY the row's top ordinate (band inner-top derived).
type Line struct {
	Text string
	CX   int
	TopY int
}

// Segment is one caption interval, scene-local seconds.
type Segment struct {
	Start    float64
	Duration float64
	Lines    []Line
}

// Style carries the forced font identity. FontName should be the face's
// PostScript name when it is known so libass picks the exact file from the
// fonts directory.
type Style struct {
	FontName string
	FontSize int
	Bold     bool
}

const (
	primaryColour = "&H00FFFFFF"
	outlineColour = "&H00222222"
	backColour    = "&H64000000"
)

// BuildKaraoke renders the default typing variant: one event per line, with
// per-character {\kf} ticks. The reveal rate is derived from the segment's
// total character count so the last character lands at the segment end when
// speed is 1.0.
func BuildKaraoke(width, height int, style Style, speed float64, segments []Segment) string {
	var b strings.Builder
	b.WriteString(header(width, height, style, 8))

	if speed <= 0 {
		speed = 1.0
	}
	for _, seg := range segments {
		if seg.Duration <= 0 {
			continue
		}
		total := segmentRuneCount(seg)
		if total == 0 {
			continue
		}
		cps := float64(total) / maxf(seg.Duration, 0.01) * speed
		if cps < 1.0 {
			cps = 1.0
		}

		segEnd := seg.Start + seg.Duration
		elapsed := 0.0
		for _, line := range seg.Lines {
			txt := Escape(line.Text)
			runes := []rune(txt)
			if len(runes) == 0 {
				continue
			}
			t0 := seg.Start + elapsed
			highlight := minf(float64(len(runes))/cps, maxf(segEnd-t0, 0.01))
			ticks := distributeTicks(highlight, len(runes))

			var ev strings.Builder
			fmt.Fprintf(&ev, `{\an8\pos(%d,%d)\q2\2a&HFF&}`, line.CX, line.TopY)
			for i, r := range runes {
				fmt.Fprintf(&ev, `{\kf%d}%c`, ticks[i], r)
			}
			b.WriteString(dialogue(t0, segEnd, ev.String()))
			elapsed += float64(len(runes)) / cps
		}
	}
	return b.String()
}

// BuildPerChar renders one absolutely positioned event per character. Higher
// event count; only used when the renderer cannot rely on karaoke timing.
func BuildPerChar(width, height int, style Style, speed float64, segments []Segment) string {
	var b strings.Builder
	b.WriteString(header(width, height, style, 7))

	if speed <= 0 {
		speed = 1.0
	}
	for _, seg := range segments {
		if seg.Duration <= 0 {
			continue
		}
		total := segmentRuneCount(seg)
		if total == 0 {
			continue
		}
		cps := float64(total) / maxf(seg.Duration, 0.01) * speed
		if cps < 1.0 {
			cps = 1.0
		}

		segEnd := seg.Start + seg.Duration
		elapsed := 0.0
		for _, line := range seg.Lines {
			txt := Escape(line.Text)
			runes := []rune(txt)
			if len(runes) == 0 {
				continue
			}
			pos := fmt.Sprintf(`{\pos(%d,%d)}`, line.CX, line.TopY)
			for i := 1; i <= len(runes); i++ {
				t0 := seg.Start + elapsed + float64(i-1)/cps
				t1 := seg.Start + elapsed + float64(i)/cps
				if i == len(runes) {
					t1 = segEnd
				}
				b.WriteString(dialogue(t0, t1, pos+string(runes[:i])))
			}
			elapsed += float64(len(runes)) / cps
		}
	}
	return b.String()
}

// distributeTicks splits a highlight duration into per-character centisecond
// ticks, residue to the leading characters. Every character gets at least one
// tick so the reveal never stalls.
func distributeTicks(highlightSec float64, n int) []int {
	total := int(highlightSec*100 + 0.5)
	if total < n {
		total = n
	}
	base := total / n
	if base < 1 {
		base = 1
	}
	ticks := make([]int, n)
	for i := range ticks {
		ticks[i] = base
	}
	for i := 0; i < total-base*n; i++ {
		ticks[i]++
	}
	return ticks
}

func segmentRuneCount(seg Segment) int {
	total := 0
	for _, line := range seg.Lines {
		total += len([]rune(Escape(line.Text)))
	}
	return total
}

func header(width, height int, style Style, alignment int) string {
	bold := 0
	if style.Bold {
		bold = 1
	}
	name := style.FontName
	if name == "" {
		name = "Sans"
	}
	return fmt.Sprintf(
		"[Script Info]\n"+
			"ScriptType: v4.00+\n"+
			"PlayResX: %d\n"+
			"PlayResY: %d\n"+
			"ScaledBorderAndShadow: yes\n"+
			"[V4+ Styles]\n"+
			"Format: Name,Fontname,Fontsize,PrimaryColour,SecondaryColour,OutlineColour,BackColour,"+
			"Bold,Italic,Underline,StrikeOut,ScaleX,ScaleY,Spacing,Angle,BorderStyle,Outline,Shadow,"+
			"Alignment,MarginL,MarginR,MarginV,Encoding\n"+
			"Style: Typing,%s,%d,%s,&H00FFFFFF,%s,%s,%d,0,0,0,100,100,0,0,1,3,0,%d,0,0,0,1\n"+
			"[Events]\n"+
			"Format: Layer,Start,End,Style,Name,MarginL,MarginR,MarginV,Effect,Text\n",
		width, height, name, style.FontSize, primaryColour, outlineColour, backColour, bold, alignment,
	)
}

func dialogue(start, end float64, text string) string {
	return fmt.Sprintf("Dialogue: 0,%s,%s,Typing,,0,0,0,,%s\n", FormatTime(start), FormatTime(end), text)
}

// FormatTime renders ASS H:MM:SS.CC.
func FormatTime(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	cs := int(sec*100 + 0.5)
	h := cs / 360000
	cs -= h * 360000
	m := cs / 6000
	cs -= m * 6000
	s := cs / 100
	cs -= s * 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

var escaper = strings.NewReplacer(
	// ASS has no escape for braces or backslashes; full-width stand-ins keep
	// override tags unforgeable from script text.
	"{", "｛",
	"}", "｝",
	`\`, "＼",
	"\t", "    ",
	"\r", "",
	"\n", `\N`,
)

// Escape must be the only path from script text into an ASS event.
func Escape(s string) string {
	return escaper.Replace(s)
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
