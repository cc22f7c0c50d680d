// Package script parses long-form narration scripts into titled sections.
package script

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/sugiura/kamishibai/internal/types"
)

type Section struct {
	Index   int
	RawText string
	Lines   []string
}

// WordCount estimates spoken length. Scripts without whitespace (Japanese and
// similar) count roughly three characters per word.
func (s Section) WordCount() int {
	wordBased := 0
	for _, line := range s.Lines {
		wordBased += len(strings.Fields(line))
	}
	if wordBased >= 3 {
		return wordBased
	}

	var joined strings.Builder
	for _, line := range s.Lines {
		joined.WriteString(strings.TrimSpace(line))
	}
	chars := len([]rune(joined.String()))
	if chars == 0 {
		return 0
	}
	estimated := int(math.Ceil(float64(chars) / 3))
	if estimated > wordBased {
		return estimated
	}
	return wordBased
}

type Document struct {
	Title    string
	Sections []Section
}

// ParseFile reads and parses a script file.
func ParseFile(path string) (Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read script: %w", err)
	}
	return Parse(string(b))
}

// Parse splits a script into blank-line separated sections. The first line
// may carry the video title in s"..." form.
func Parse(raw string) (Document, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
	if raw == "" {
		return Document{}, types.ErrEmptyScript
	}

	lines := strings.Split(raw, "\n")
	var title string
	if len(lines) > 0 && strings.HasPrefix(lines[0], `s"`) && strings.HasSuffix(lines[0], `"`) {
		title = strings.TrimSpace(lines[0][2 : len(lines[0])-1])
		lines = lines[1:]
	}

	var blocks [][]string
	var current []string
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			current = append(current, strings.TrimRight(line, " \t"))
			continue
		}
		if len(current) > 0 {
			blocks = append(blocks, current)
			current = nil
		}
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	if len(blocks) == 0 {
		return Document{}, types.ErrEmptyScript
	}

	doc := Document{Title: title}
	for i, block := range blocks {
		var trimmed []string
		for _, line := range block {
			line = strings.TrimSpace(line)
			if line != "" {
				trimmed = append(trimmed, line)
			}
		}
		doc.Sections = append(doc.Sections, Section{
			Index:   i + 1,
			RawText: strings.Join(block, "\n"),
			Lines:   trimmed,
		})
	}
	return doc, nil
}
