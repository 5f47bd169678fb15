// Package level derives a user's level from the number of goals they have
// completed on time.
package level

// XPPerGoal is the XP granted for each goal completed on time.
const XPPerGoal = 100

// thresholds[i] is the cumulative number of on-time goals needed to reach level i.
var thresholds = []int{0, 1, 2, 4, 6, 8, 10, 12, 14, 16, 18, 20}

// goalsPerLevelPastTable is the band width once the threshold table runs out.
const goalsPerLevelPastTable = 2

// Progress describes where a goal count sits within the level bands.
type Progress struct {
	Level             int `json:"level"`
	GoalsIntoLevel    int `json:"goals_into_level"`
	GoalsForNextLevel int `json:"goals_for_next_level"`
	Percent           int `json:"percent"`
	CurrentXP         int `json:"current_xp"`
	RequiredXP        int `json:"required_xp"`
}

// MaxTableLevel is the highest level covered by the threshold table.
func MaxTableLevel() int {
	return len(thresholds) - 1
}

// Threshold returns the cumulative on-time goal count at which lvl begins.
func Threshold(lvl int) int {
	if lvl <= 0 {
		return 0
	}
	last := len(thresholds) - 1
	if lvl <= last {
		return thresholds[lvl]
	}
	return thresholds[last] + (lvl-last)*goalsPerLevelPastTable
}

// For returns the level reached with the given number of on-time goals.
func For(goals int) int {
	if goals <= 0 {
		return 0
	}
	last := len(thresholds) - 1
	if goals >= thresholds[last] {
		return last + (goals-thresholds[last])/goalsPerLevelPastTable
	}
	lvl := 0
	for i, t := range thresholds {
		if goals >= t {
			lvl = i
		}
	}
	return lvl
}

// ForGoals computes level and progress toward the next level. It is the one
// place level and XP are derived; login and pushed stat updates both go
// through it.
func ForGoals(goals int) Progress {
	if goals < 0 {
		goals = 0
	}
	lvl := For(goals)
	start := Threshold(lvl)
	band := Threshold(lvl+1) - start
	into := goals - start

	percent := 0
	if band > 0 {
		percent = into * 100 / band
	}
	percent = clamp(percent, 0, 100)

	return Progress{
		Level:             lvl,
		GoalsIntoLevel:    into,
		GoalsForNextLevel: band,
		Percent:           percent,
		CurrentXP:         into * XPPerGoal,
		RequiredXP:        band * XPPerGoal,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
