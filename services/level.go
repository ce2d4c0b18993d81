package services

import (
	"math"

	"github.com/padeliga/matchday/models"
)

// LevelsCompatible reports whether two skill levels are within tolerance of
// each other. It is used both player-to-player (grouping) and
// player-to-match-average (joining, replacement); callers pick the tolerance
// and the escalation order.
func LevelsCompatible(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func levelDistance(a, b float64) float64 {
	return math.Abs(a - b)
}

func averageLevel(players []*models.Player) float64 {
	if len(players) == 0 {
		return 0
	}
	var sum float64
	for _, p := range players {
		sum += p.Level
	}
	return sum / float64(len(players))
}

func memberLevels(players []*models.Player) []float64 {
	levels := make([]float64, 0, len(players))
	for _, p := range players {
		levels = append(levels, p.Level)
	}
	return levels
}
