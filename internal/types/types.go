package types

// SceneKind discriminates how a scene is composed: opening scenes render a
// centred title over a black canvas, content scenes animate a still image.
type SceneKind string

const (
	SceneOpening SceneKind = "opening"
	SceneContent SceneKind = "content"
)

// Direction is a unit motion vector for the Ken-Burns pan. Components are
// restricted to {-1, 0, 1}.
type Direction struct {
	DX int
	DY int
}

// Chunk is one narration unit inside a scene. Duration and AudioPath are
// filled by the asset stage; before that only the text fields are set.
type Chunk struct {
	SectionIndex int
	Lines        []string
	Text         string
	Duration     float64
	AudioPath    string
}

// Segment is a visible caption interval within a scene. Offsets are
// scene-local seconds.
type Segment struct {
	Index       int
	Lines       []string
	StartOffset float64
	Duration    float64
	TypingText  string
}

// Scene is one rendered output segment. Segments are derived from chunk
// durations once the asset stage has resolved them; until then the slice is
// empty.
type Scene struct {
	ID            string
	Kind          SceneKind
	StartTime     float64
	Duration      float64
	BaseImagePath string
	NarrationPath string
	ImagePrompt   string
	Chunks        []Chunk
	Segments      []Segment
	Motion        Direction
	IntroRelief   float64
}

// Timeline is the full scene plan for one run.
type Timeline struct {
	Scenes []Scene
}

// TotalDuration returns the programme length in seconds.
func (t Timeline) TotalDuration() float64 {
	var sum float64
	for _, s := range t.Scenes {
		sum += s.Duration
	}
	return sum
}

type Manifest struct {
	RunID  string          `json:"run_id"`
	Script string          `json:"script"`
	Output string          `json:"output"`
	Scenes []ManifestScene `json:"scenes"`
}

type ManifestScene struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	StartSec    float64 `json:"start_sec"`
	DurationSec float64 `json:"duration_sec"`
	File        string  `json:"file"`
	Image       string  `json:"image,omitempty"`
	Narration   string  `json:"narration"`
	Subtitles   string  `json:"subtitles,omitempty"`
}
