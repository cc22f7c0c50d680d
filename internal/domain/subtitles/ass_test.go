package subtitles

import (
	"strings"
	"testing"
)

func TestBuildKaraoke_UniformTicks(t *testing.T) {
	// Four characters over two seconds at speed 1.0: 50 cs per character,
	// fully revealed at the segment end.
	segs := []Segment{{
		Start:    0,
		Duration: 2.0,
		Lines:    []Line{{Text: "ABCD", CX: 640, TopY: 600}},
	}}
	ass := BuildKaraoke(1280, 720, Style{FontName: "NotoSansJP-Bold", FontSize: 36}, 1.0, segs)

	if n := strings.Count(ass, "Dialogue:"); n != 1 {
		t.Fatalf("events = %d, want 1\n%s", n, ass)
	}
	if strings.Count(ass, `{\kf50}`) != 4 {
		t.Fatalf("expected four 50cs ticks:\n%s", ass)
	}
	if !strings.Contains(ass, `{\an8\pos(640,600)\q2\2a&HFF&}`) {
		t.Fatalf("missing position prefix:\n%s", ass)
	}
	if !strings.Contains(ass, "Dialogue: 0,0:00:00.00,0:00:02.00,Typing") {
		t.Fatalf("event does not span the segment:\n%s", ass)
	}
}

func TestBuildKaraoke_ResidueToLeadingChars(t *testing.T) {
	// 3 characters over 1 second: 100 ticks -> 34, 33, 33.
	segs := []Segment{{
		Start:    0,
		Duration: 1.0,
		Lines:    []Line{{Text: "abc", CX: 10, TopY: 10}},
	}}
	ass := BuildKaraoke(100, 100, Style{FontSize: 20}, 1.0, segs)
	if !strings.Contains(ass, `{\kf34}a{\kf33}b{\kf33}c`) {
		t.Fatalf("residue not distributed to leading chars:\n%s", ass)
	}
}

func TestBuildKaraoke_MultiLineSequencing(t *testing.T) {
	segs := []Segment{{
		Start:    1.0,
		Duration: 2.0,
		Lines: []Line{
			{Text: "ab", CX: 50, TopY: 10},
			{Text: "cd", CX: 50, TopY: 40},
		},
	}}
	ass := BuildKaraoke(100, 100, Style{FontSize: 20}, 1.0, segs)
	// 4 runes over 2 s -> cps 2; the second line starts one second in.
	if !strings.Contains(ass, "Dialogue: 0,0:00:01.00,0:00:03.00,Typing") {
		t.Fatalf("first line timing wrong:\n%s", ass)
	}
	if !strings.Contains(ass, "Dialogue: 0,0:00:02.00,0:00:03.00,Typing") {
		t.Fatalf("second line timing wrong:\n%s", ass)
	}
}

func TestBuildPerChar_EventPerCharacter(t *testing.T) {
	segs := []Segment{{
		Start:    0,
		Duration: 1.0,
		Lines:    []Line{{Text: "xyz", CX: 20, TopY: 30}},
	}}
	ass := BuildPerChar(100, 100, Style{FontSize: 20}, 1.0, segs)
	if n := strings.Count(ass, "Dialogue:"); n != 3 {
		t.Fatalf("events = %d, want 3\n%s", n, ass)
	}
	if !strings.Contains(ass, `{\pos(20,30)}x`) || !strings.Contains(ass, `{\pos(20,30)}xyz`) {
		t.Fatalf("snippets not cumulative:\n%s", ass)
	}
}

func TestEscape(t *testing.T) {
	tests := map[string]string{
		"{tag}":   "｛tag｝",
		`back\sl`: "back＼sl",
		"a\nb":    `a\Nb`,
		"a\tb":    "a    b",
		"a\rb":    "ab",
	}
	for in, want := range tests {
		if got := Escape(in); got != want {
			t.Fatalf("Escape(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatTime(t *testing.T) {
	tests := map[float64]string{
		0:       "0:00:00.00",
		61.234:  "0:01:01.23",
		3723.5:  "1:02:03.50",
		-5:      "0:00:00.00",
		0.005:   "0:00:00.01",
		59.999:  "0:01:00.00",
		7200.00: "2:00:00.00",
	}
	for in, want := range tests {
		if got := FormatTime(in); got != want {
			t.Fatalf("FormatTime(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestHeader_StyleAndPlayRes(t *testing.T) {
	ass := BuildKaraoke(1920, 1080, Style{FontName: "Custom", FontSize: 48, Bold: true}, 1.0, nil)
	for _, want := range []string{
		"ScriptType: v4.00+",
		"PlayResX: 1920",
		"PlayResY: 1080",
		"ScaledBorderAndShadow: yes",
		"Style: Typing,Custom,48,",
	} {
		if !strings.Contains(ass, want) {
			t.Fatalf("header missing %q:\n%s", want, ass)
		}
	}
}
