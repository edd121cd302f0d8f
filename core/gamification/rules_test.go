package gamification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		name           string
		totalEarned    int
		pointsPerLevel int
		want           int
	}{
		{name: "no points", totalEarned: 0, pointsPerLevel: 100, want: 1},
		{name: "below first step", totalEarned: 99, pointsPerLevel: 100, want: 1},
		{name: "exact step", totalEarned: 100, pointsPerLevel: 100, want: 2},
		{name: "many levels", totalEarned: 1250, pointsPerLevel: 100, want: 13},
		{name: "negative points", totalEarned: -50, pointsPerLevel: 100, want: 1},
		{name: "invalid step uses default", totalEarned: 250, pointsPerLevel: 0, want: 3},
		{name: "custom step", totalEarned: 250, pointsPerLevel: 50, want: 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Level(tt.totalEarned, tt.pointsPerLevel))
		})
	}
}

func TestNewLevelProgress(t *testing.T) {
	assert.Equal(t, LevelProgress{Level: 3, CurrentPoints: 40, PointsToNextLevel: 60, Percent: 40}, NewLevelProgress(240, 100))
	assert.Equal(t, LevelProgress{Level: 1, CurrentPoints: 0, PointsToNextLevel: 100, Percent: 0}, NewLevelProgress(0, 100))
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		totalEarned int
		want        Tier
	}{
		{totalEarned: 0, want: TierBronze},
		{totalEarned: 999, want: TierBronze},
		{totalEarned: 1000, want: TierSilver},
		{totalEarned: 4999, want: TierSilver},
		{totalEarned: 5000, want: TierGold},
		{totalEarned: 20000, want: TierPlatinum},
		{totalEarned: 1000000, want: TierPlatinum},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierFor(tt.totalEarned, nil), "TierFor(%d)", tt.totalEarned)
	}

	custom := TierThresholds{TierBronze: 0, TierSilver: 10, TierGold: 20, TierPlatinum: 30}
	assert.Equal(t, TierGold, TierFor(25, custom))
}

func TestNewTierProgress(t *testing.T) {
	assert.Equal(t, TierProgress{Current: TierBronze, Next: TierSilver, PointsNeeded: 750, Percent: 25}, NewTierProgress(250, nil))
	assert.Equal(t, TierProgress{Current: TierGold, Next: TierPlatinum, PointsNeeded: 7500, Percent: 50}, NewTierProgress(12500, nil))
	assert.Equal(t, TierProgress{Current: TierPlatinum, Percent: 100}, NewTierProgress(25000, nil))
}

func TestWorkoutPoints(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, 50, WorkoutPoints(s, 0, 20))
	assert.Equal(t, 80, WorkoutPoints(s, 3, 30))
	assert.Equal(t, 86, WorkoutPoints(s, 3, 60)) // 6 bonus points for 30 extra minutes

	s.PointsMultiplier = 1.5
	assert.Equal(t, 120, WorkoutPoints(s, 3, 30))
	assert.Equal(t, 3, ApplyMultiplier(2, 1.25))
	assert.Equal(t, 10, ApplyMultiplier(10, 0))
}

func TestNextStreak(t *testing.T) {
	today := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)
	day := func(offset int) time.Time { return today.AddDate(0, 0, offset) }

	tests := []struct {
		name      string
		profile   Profile
		wantDays  int
		wantGrace bool
	}{
		{name: "first workout", profile: Profile{}, wantDays: 1},
		{name: "same day", profile: Profile{StreakDays: 4, LastActivityDate: day(0).Add(-6 * time.Hour)}, wantDays: 4},
		{name: "consecutive day", profile: Profile{StreakDays: 4, LastActivityDate: day(-1)}, wantDays: 5},
		{name: "one missed day uses grace", profile: Profile{StreakDays: 4, LastActivityDate: day(-2)}, wantDays: 5, wantGrace: true},
		{
			name:     "grace already used this window",
			profile:  Profile{StreakDays: 4, LastActivityDate: day(-2), GraceUsedAt: day(-10)},
			wantDays: 1,
		},
		{
			name:      "grace window elapsed",
			profile:   Profile{StreakDays: 4, LastActivityDate: day(-2), GraceUsedAt: day(-GraceWindowDays)},
			wantDays:  5,
			wantGrace: true,
		},
		{name: "two missed days", profile: Profile{StreakDays: 9, LastActivityDate: day(-3)}, wantDays: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days, grace := NextStreak(tt.profile, today)
			assert.Equal(t, tt.wantDays, days)
			assert.Equal(t, tt.wantGrace, grace)
		})
	}
}

func TestStreakBonus(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, 0, StreakBonus(s, 0))
	assert.Equal(t, 0, StreakBonus(s, 6))
	assert.Equal(t, s.PointsPerStreak, StreakBonus(s, StreakBonusInterval))
	assert.Equal(t, s.PointsPerStreak, StreakBonus(s, 2*StreakBonusInterval))
}

func TestAchievement_Progress(t *testing.T) {
	profile := Profile{
		TotalWorkouts:  5,
		TotalExercises: 40,
		TotalEarned:    1500,
		StreakDays:     3,
		Level:          16,
		Tier:           TierSilver,
		ExerciseCounts: map[string]int{"squat": 12},
	}

	tests := []struct {
		name         string
		achievement  Achievement
		wantProgress int
		wantUnlocked bool
	}{
		{name: "workouts halfway", achievement: Achievement{RequirementType: RequirementWorkoutCount, RequirementValue: 10}, wantProgress: 50},
		{name: "sessions reached", achievement: Achievement{RequirementType: RequirementSessionCount, RequirementValue: 5}, wantProgress: 100, wantUnlocked: true},
		{name: "exercises capped", achievement: Achievement{RequirementType: RequirementExerciseCount, RequirementValue: 20}, wantProgress: 100, wantUnlocked: true},
		{name: "points", achievement: Achievement{RequirementType: RequirementPointsEarned, RequirementValue: 3000}, wantProgress: 50},
		{name: "streak", achievement: Achievement{RequirementType: RequirementStreakDays, RequirementValue: 7}, wantProgress: 42},
		{name: "specific exercise", achievement: Achievement{RequirementType: RequirementSpecificExercise, ExerciseID: "squat", RequirementValue: 12}, wantProgress: 100, wantUnlocked: true},
		{name: "other exercise", achievement: Achievement{RequirementType: RequirementSpecificExercise, ExerciseID: "deadlift", RequirementValue: 12}, wantProgress: 0},
		{name: "level", achievement: Achievement{RequirementType: RequirementLevelReached, RequirementValue: 10}, wantProgress: 100, wantUnlocked: true},
		{name: "tier reached", achievement: Achievement{RequirementType: RequirementTierReached, Tier: TierSilver}, wantProgress: 100, wantUnlocked: true},
		{name: "tier not reached", achievement: Achievement{RequirementType: RequirementTierReached, Tier: TierGold}, wantProgress: 0},
		{name: "special", achievement: Achievement{RequirementType: RequirementSpecial, RequirementValue: 1}, wantProgress: 0},
		{name: "zero requirement", achievement: Achievement{RequirementType: RequirementWorkoutCount}, wantProgress: 100, wantUnlocked: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantProgress, tt.achievement.Progress(profile))
			assert.Equal(t, tt.wantUnlocked, tt.achievement.IsUnlocked(profile))
		})
	}
}

func TestValidThresholds(t *testing.T) {
	assert.True(t, ValidThresholds(DefaultTierThresholds()))
	assert.False(t, ValidThresholds(TierThresholds{TierBronze: 0, TierSilver: 10}))
	assert.False(t, ValidThresholds(TierThresholds{TierBronze: 5, TierSilver: 10, TierGold: 20, TierPlatinum: 30}))
	assert.False(t, ValidThresholds(TierThresholds{TierBronze: 0, TierSilver: 20, TierGold: 20, TierPlatinum: 30}))
}

func TestClampProgress(t *testing.T) {
	assert.Equal(t, 0, ClampProgress(-3))
	assert.Equal(t, 55, ClampProgress(55))
	assert.Equal(t, 100, ClampProgress(140))
}
