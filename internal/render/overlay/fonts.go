package overlay

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"

	"github.com/sugiura/kamishibai/internal/types"
)

// Font is a parsed face source plus a per-size face cache.
type Font struct {
	Path string

	sfnt  *sfnt.Font
	mu    sync.Mutex
	faces map[int]font.Face
}

// ResolveFont walks the fallback chain: configured path, bundled Noto,
// system DejaVu. Bold selects the heavier weight for the bundled and system
// steps; the configured path is used as given for both weights.
func ResolveFont(configured string, bold bool) (*Font, error) {
	var candidates []string
	if configured != "" {
		candidates = append(candidates, configured)
	}
	if bold {
		candidates = append(candidates,
			filepath.Join("fonts", "NotoSansJP-ExtraBold.ttf"),
			"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
			"/usr/share/fonts/TTF/DejaVuSans-Bold.ttf",
		)
	} else {
		candidates = append(candidates,
			filepath.Join("fonts", "NotoSansJP-Bold.ttf"),
			"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/TTF/DejaVuSans.ttf",
		)
	}

	var tried []string
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			tried = append(tried, path)
			continue
		}
		parsed, err := opentype.Parse(data)
		if err != nil {
			tried = append(tried, fmt.Sprintf("%s (%v)", path, err))
			continue
		}
		return &Font{Path: path, sfnt: parsed, faces: make(map[int]font.Face)}, nil
	}
	return nil, &types.FontUnavailableError{Tried: tried}
}

// Face returns a pixel-sized face, cached per size.
func (f *Font) Face(size int) (font.Face, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if face, ok := f.faces[size]; ok {
		return face, nil
	}
	face, err := opentype.NewFace(f.sfnt, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72, // 1pt == 1px so band geometry stays in pixel units
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("face %s@%d: %w", f.Path, size, err)
	}
	f.faces[size] = face
	return face, nil
}

// PostScriptName reports the face's PostScript name for the subtitle style
// override, or "" when the name table lacks one.
func (f *Font) PostScriptName() string {
	name, err := f.sfnt.Name(nil, sfnt.NameIDPostScript)
	if err != nil {
		return ""
	}
	return name
}

// Dir is the fontsdir hint handed to the subtitle filter.
func (f *Font) Dir() string {
	return filepath.Dir(f.Path)
}
