package gamification

import (
	"math"
	"time"
)

// LevelProgress is the progress of a profile towards its next level.
type LevelProgress struct {
	Level             int `json:"level"`
	CurrentPoints     int `json:"current_points"`
	PointsToNextLevel int `json:"points_to_next_level"`
	Percent           int `json:"percent"`
}

// TierProgress is the progress of a profile towards its next tier. Next is empty at the top tier.
type TierProgress struct {
	Current      Tier `json:"current"`
	Next         Tier `json:"next"`
	PointsNeeded int  `json:"points_needed"`
	Percent      int  `json:"percent"`
}

// Level computes the level reached with totalEarned lifetime points.
func Level(totalEarned, pointsPerLevel int) int {
	if pointsPerLevel <= 0 {
		pointsPerLevel = DefaultPointsPerLevel
	}
	if totalEarned < 0 {
		totalEarned = 0
	}
	return totalEarned/pointsPerLevel + 1
}

func NewLevelProgress(totalEarned, pointsPerLevel int) LevelProgress {
	if pointsPerLevel <= 0 {
		pointsPerLevel = DefaultPointsPerLevel
	}
	if totalEarned < 0 {
		totalEarned = 0
	}
	current := totalEarned % pointsPerLevel
	return LevelProgress{
		Level:             Level(totalEarned, pointsPerLevel),
		CurrentPoints:     current,
		PointsToNextLevel: pointsPerLevel - current,
		Percent:           current * 100 / pointsPerLevel,
	}
}

// TierFor returns the highest tier whose threshold is reached by totalEarned.
func TierFor(totalEarned int, thresholds TierThresholds) Tier {
	if len(thresholds) == 0 {
		thresholds = DefaultTierThresholds()
	}
	tier := TierBronze
	for _, t := range Tiers {
		if min, ok := thresholds[t]; ok && totalEarned >= min {
			tier = t
		}
	}
	return tier
}

func NewTierProgress(totalEarned int, thresholds TierThresholds) TierProgress {
	if len(thresholds) == 0 {
		thresholds = DefaultTierThresholds()
	}
	current := TierFor(totalEarned, thresholds)
	prog := TierProgress{Current: current, Percent: 100}

	rank := current.Rank()
	if rank == len(Tiers)-1 {
		return prog
	}
	next := Tiers[rank+1]
	prog.Next = next

	floor, ceil := thresholds[current], thresholds[next]
	prog.PointsNeeded = ceil - totalEarned
	if ceil > floor {
		prog.Percent = (totalEarned - floor) * 100 / (ceil - floor)
	}
	if prog.Percent > 100 {
		prog.Percent = 100
	}
	return prog
}

// ApplyMultiplier scales points by m, rounding to the nearest integer.
func ApplyMultiplier(points int, m float64) int {
	if m <= 0 {
		return points
	}
	return int(math.Round(float64(points) * m))
}

// WorkoutPoints computes the points earned by a workout of duration minutes.
func WorkoutPoints(s Settings, exercises, duration int) int {
	points := s.PointsPerWorkout + exercises*s.PointsPerExercise
	if duration > 30 {
		points += (duration - 30) / 5
	}
	return ApplyMultiplier(points, s.PointsMultiplier)
}

// Day truncates t to its UTC date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// GraceAvailable reports whether a grace day may be used today.
func GraceAvailable(p Profile, today time.Time) bool {
	return p.GraceUsedAt.IsZero() || DaysBetween(p.GraceUsedAt, today) >= GraceWindowDays
}

// NextStreak computes the streak of p after a workout today, and whether a grace day is consumed.
func NextStreak(p Profile, today time.Time) (days int, graceUsed bool) {
	if p.LastActivityDate.IsZero() || p.StreakDays <= 0 {
		return 1, false
	}
	switch gap := DaysBetween(p.LastActivityDate, today); {
	case gap <= 0:
		return p.StreakDays, false
	case gap == 1:
		return p.StreakDays + 1, false
	case gap == 2 && GraceAvailable(p, today):
		return p.StreakDays + 1, true
	default:
		return 1, false
	}
}

// StreakBonus returns the bonus earned on reaching streak days.
func StreakBonus(s Settings, days int) int {
	if days <= 0 || days%StreakBonusInterval != 0 {
		return 0
	}
	return s.PointsPerStreak
}

// Progress returns the completion percentage of a for profile p.
// Special achievements are awarded manually & always report 0.
func (a Achievement) Progress(p Profile) int {
	var current int
	switch a.RequirementType {
	case RequirementWorkoutCount, RequirementSessionCount:
		current = p.TotalWorkouts
	case RequirementExerciseCount:
		current = p.TotalExercises
	case RequirementPointsEarned:
		current = p.TotalEarned
	case RequirementStreakDays:
		current = p.StreakDays
	case RequirementSpecificExercise:
		current = p.ExerciseCounts[a.ExerciseID]
	case RequirementLevelReached:
		current = p.Level
	case RequirementTierReached:
		if a.Tier.IsValid() && p.Tier.Rank() >= a.Tier.Rank() {
			return 100
		}
		return 0
	default:
		return 0
	}

	if a.RequirementValue <= 0 {
		return 100
	}
	pct := current * 100 / a.RequirementValue
	if pct > 100 {
		pct = 100
	}
	return pct
}

// IsUnlocked reports whether p satisfies the requirement of a.
func (a Achievement) IsUnlocked(p Profile) bool {
	return a.RequirementType != RequirementSpecial && a.Progress(p) >= 100
}

// ClampProgress bounds progress to 0-100.
func ClampProgress(progress int) int {
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}

// ValidThresholds reports whether th covers all tiers, starts at 0 for bronze & is strictly ascending.
func ValidThresholds(th TierThresholds) bool {
	if len(th) != len(Tiers) {
		return false
	}
	prev := -1
	for i, t := range Tiers {
		v, ok := th[t]
		if !ok || (i == 0 && v != 0) || v <= prev {
			return false
		}
		prev = v
	}
	return true
}
