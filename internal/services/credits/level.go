package credits

import (
	"fmt"

	"github.com/mentorhub/backend/internal/config"
)

// LevelInfo is the derivation of a point total against the level table
type LevelInfo struct {
	Level        int `json:"level"`
	Progress     int `json:"progress"`
	PointsToNext int `json:"points_to_next"`
}

// LevelTable maps cumulative points to level and level-up bonus. It is
// immutable after construction and safe for concurrent use.
type LevelTable struct {
	rows []config.LevelThreshold
}

// NewLevelTable validates and builds a level table. Levels must be
// numbered 1..N with strictly increasing points_required starting at 0.
func NewLevelTable(rows []config.LevelThreshold) (*LevelTable, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("level table is empty")
	}
	if rows[0].Level != 1 || rows[0].PointsRequired != 0 {
		return nil, fmt.Errorf("level table must start at level 1 with 0 points required")
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].Level != rows[i-1].Level+1 {
			return nil, fmt.Errorf("level table is not contiguous at level %d", rows[i].Level)
		}
		if rows[i].PointsRequired <= rows[i-1].PointsRequired {
			return nil, fmt.Errorf("points_required must be strictly increasing at level %d", rows[i].Level)
		}
	}

	table := make([]config.LevelThreshold, len(rows))
	copy(table, rows)
	return &LevelTable{rows: table}, nil
}

// LevelFor computes level, progress percentage and points remaining for a
// cumulative point total. Totals beyond the highest threshold pin to the
// max configured level with progress 100 and nothing left to earn.
func (t *LevelTable) LevelFor(points int) LevelInfo {
	if points < 0 {
		points = 0
	}

	idx := 0
	for i, row := range t.rows {
		if points >= row.PointsRequired {
			idx = i
		} else {
			break
		}
	}

	if idx == len(t.rows)-1 {
		return LevelInfo{Level: t.rows[idx].Level, Progress: 100, PointsToNext: 0}
	}

	cur := t.rows[idx].PointsRequired
	next := t.rows[idx+1].PointsRequired
	return LevelInfo{
		Level:        t.rows[idx].Level,
		Progress:     (points - cur) * 100 / (next - cur),
		PointsToNext: next - points,
	}
}

// BonusFor returns the configured bonus for reaching the given level
func (t *LevelTable) BonusFor(level int) int {
	if level < 1 || level > len(t.rows) {
		return 0
	}
	return t.rows[level-1].BonusPoints
}

// MaxLevel returns the highest configured level
func (t *LevelTable) MaxLevel() int {
	return t.rows[len(t.rows)-1].Level
}
