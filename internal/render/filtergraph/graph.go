// Package filtergraph assembles filter_complex strings for the media tool.
// Graphs are built as explicit stages with declared labels and serialised in
// one place, so overlay ordering and subtitle insertion stay visible.
package filtergraph

import "strings"

type Stage struct {
	Inputs []string
	Filter string
	Output string
}

type Graph struct {
	stages []Stage
}

// Add appends a stage and returns its output label for chaining.
func (g *Graph) Add(inputs []string, filter, output string) string {
	g.stages = append(g.stages, Stage{Inputs: inputs, Filter: filter, Output: output})
	return output
}

func (g *Graph) String() string {
	parts := make([]string, 0, len(g.stages))
	for _, st := range g.stages {
		var b strings.Builder
		for _, in := range st.Inputs {
			b.WriteString(in)
		}
		b.WriteString(st.Filter)
		if st.Output != "" {
			b.WriteString(st.Output)
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, ";")
}

// escapeFilterPath quotes a file path for use inside a filter option.
func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, `\`, `\\`)
	p = strings.ReplaceAll(p, ":", `\:`)
	p = strings.ReplaceAll(p, "'", `\'`)
	return p
}
