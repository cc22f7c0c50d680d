package timeline

import (
	"hash/fnv"

	"github.com/sugiura/kamishibai/internal/types"
)

// The eight pan directions, cardinal then diagonal, indexed by the scene-ID
// hash. Order is part of the reproducibility contract: reordering changes
// every existing video.
var directions = [8]types.Direction{
	{DX: 1, DY: 0},
	{DX: 0, DY: 1},
	{DX: -1, DY: 0},
	{DX: 0, DY: -1},
	{DX: 1, DY: 1},
	{DX: -1, DY: 1},
	{DX: -1, DY: -1},
	{DX: 1, DY: -1},
}

// MotionFor picks the Ken-Burns direction for a scene. FNV-1a keeps the
// mapping a pure function of the scene ID across runs and platforms.
func MotionFor(sceneID string) types.Direction {
	h := fnv.New32a()
	h.Write([]byte(sceneID))
	return directions[h.Sum32()%8]
}
