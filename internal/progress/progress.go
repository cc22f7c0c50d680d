// Package progress renders a single-line console bar fed by the media tool's
// -progress key/value stream.
package progress

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const barWidth = 24

// Bar is a rate-limited console progress line. Safe for concurrent Update
// calls; redraws are capped at 10 Hz.
type Bar struct {
	mu       sync.Mutex
	total    float64
	label    string
	out      io.Writer
	start    time.Time
	lastDraw time.Time
	now      func() time.Time
}

func NewBar(totalSeconds float64, label string) *Bar {
	b := &Bar{total: totalSeconds, label: label, out: os.Stderr, now: time.Now}
	b.start = b.now()
	b.draw(0)
	return b
}

func (b *Bar) Update(currentSeconds float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.now().Sub(b.lastDraw) < 100*time.Millisecond {
		return
	}
	b.draw(currentSeconds)
}

// Finish draws the full bar and terminates the line.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.draw(b.total)
	fmt.Fprintln(b.out)
}

func (b *Bar) draw(current float64) {
	b.lastDraw = b.now()
	total := b.total
	if total <= 0 {
		total = 0.001
	}
	cur := current
	if cur < 0 {
		cur = 0
	}
	if cur > total {
		cur = total
	}
	frac := cur / total
	filled := int(float64(barWidth)*frac + 0.5)
	bar := strings.Repeat("█", filled) + strings.Repeat("·", barWidth-filled)
	elapsed := b.now().Sub(b.start).Seconds()
	eta := 0.0
	if frac > 0.0001 {
		eta = elapsed * (1.0/frac - 1.0)
	}
	fmt.Fprintf(b.out, "\r[%s] %3d%% | %s / %s | ETA %s | %s",
		bar, int(frac*100), formatHMS(elapsed), formatHMS(total), formatHMS(eta), b.label)
}

func formatHMS(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	s := int(seconds + 0.5)
	h := s / 3600
	s -= h * 3600
	m := s / 60
	s -= m * 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// Parser consumes the tool's key=value progress stream and reports output
// time in seconds. out_time_ms carries microseconds despite its name.
type Parser struct {
	OnTime func(seconds float64)
}

func (p *Parser) FeedLine(line string) {
	line = strings.TrimSpace(line)
	key, value, ok := strings.Cut(line, "=")
	if !ok || key != "out_time_ms" {
		return
	}
	us, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return
	}
	if p.OnTime != nil {
		p.OnTime(float64(us) / 1e6)
	}
}

// Aggregator reduces per-scene progress streams into one bar. Each scene's
// contribution is weighted by its duration share; the bar total is the sum of
// all registered durations.
type Aggregator struct {
	mu      sync.Mutex
	bar     *Bar
	current map[int]float64
	limits  map[int]float64
}

func NewAggregator(bar *Bar, durations []float64) *Aggregator {
	a := &Aggregator{bar: bar, current: make(map[int]float64), limits: make(map[int]float64)}
	for i, d := range durations {
		a.limits[i] = d
	}
	return a
}

// Report records scene-local progress and redraws the joined bar.
func (a *Aggregator) Report(sceneIndex int, seconds float64) {
	a.mu.Lock()
	limit := a.limits[sceneIndex]
	if seconds > limit {
		seconds = limit
	}
	if seconds > a.current[sceneIndex] {
		a.current[sceneIndex] = seconds
	}
	var sum float64
	for _, v := range a.current {
		sum += v
	}
	a.mu.Unlock()
	a.bar.Update(sum)
}

// Done marks a scene fully rendered regardless of its last report.
func (a *Aggregator) Done(sceneIndex int) {
	a.mu.Lock()
	a.current[sceneIndex] = a.limits[sceneIndex]
	var sum float64
	for _, v := range a.current {
		sum += v
	}
	a.mu.Unlock()
	a.bar.Update(sum)
}
