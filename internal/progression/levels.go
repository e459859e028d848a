// Package progression gates perk activation on team level, cooldowns and
// stacking, and expires perks once their time is up.
package progression

// levelThresholds[i] is the XP needed to reach level i+1.
var levelThresholds = [...]int64{0, 100, 300, 600, 1000, 1500, 2200, 3000, 4000, 5500}

// MaxLevel is the highest reachable level.
func MaxLevel() int {
	return len(levelThresholds)
}

// LevelForXP derives a level from XP. Anything below the first threshold is level 1.
func LevelForXP(xp int64) int {
	for i := len(levelThresholds) - 1; i >= 0; i-- {
		if xp >= levelThresholds[i] {
			return i + 1
		}
	}
	return 1
}

// XPForNextLevel returns how much XP is still missing for the next level, or 0 at max level.
func XPForNextLevel(xp int64) int64 {
	level := LevelForXP(xp)
	if level >= MaxLevel() {
		return 0
	}
	return levelThresholds[level] - xp
}

// XPRequiredForLevel returns the XP threshold of level, or 0 for levels outside the table.
func XPRequiredForLevel(level int) int64 {
	if level < 1 || level > MaxLevel() {
		return 0
	}
	return levelThresholds[level-1]
}
