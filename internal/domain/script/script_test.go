package script

import (
	"errors"
	"testing"

	"github.com/sugiura/kamishibai/internal/types"
)

func TestParse_TitleAndSections(t *testing.T) {
	raw := "s\"My Video\"\nOpening line one.\nOpening line two.\n\nSecond block.\n\nThird block line A.\nThird block line B.\n"
	doc, err := Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "My Video" {
		t.Fatalf("title = %q", doc.Title)
	}
	if len(doc.Sections) != 3 {
		t.Fatalf("sections = %d, want 3", len(doc.Sections))
	}
	if doc.Sections[0].Index != 1 || len(doc.Sections[0].Lines) != 2 {
		t.Fatalf("unexpected first section: %+v", doc.Sections[0])
	}
	if doc.Sections[2].Lines[1] != "Third block line B." {
		t.Fatalf("unexpected third section: %+v", doc.Sections[2])
	}
}

func TestParse_NoTitleLine(t *testing.T) {
	doc, err := Parse("Just a block.\n\nAnother block.")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "" {
		t.Fatalf("title = %q, want empty", doc.Title)
	}
	if len(doc.Sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(doc.Sections))
	}
}

func TestParse_Empty(t *testing.T) {
	for _, raw := range []string{"", "   \n\n  "} {
		if _, err := Parse(raw); !errors.Is(err, types.ErrEmptyScript) {
			t.Fatalf("Parse(%q) err = %v, want ErrEmptyScript", raw, err)
		}
	}
}

func TestSection_WordCount(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  int
	}{
		{"whitespace words", []string{"one two three four"}, 4},
		{"empty", []string{}, 0},
		// 9 runes of unspaced text estimate to 3 words.
		{"cjk estimate", []string{"こんにちは世界です"}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Section{Lines: tt.lines}
			if got := s.WordCount(); got != tt.want {
				t.Fatalf("WordCount() = %d, want %d", got, tt.want)
			}
		})
	}
}
