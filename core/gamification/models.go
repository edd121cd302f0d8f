package gamification

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/swanstudios/studio/core"
)

// Tier is a loyalty tier, reached by accumulating points.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Tiers in ascending order.
var Tiers = []Tier{TierBronze, TierSilver, TierGold, TierPlatinum}

// Rank is the position of the tier in Tiers, -1 if unknown.
func (t Tier) Rank() int {
	for i, tier := range Tiers {
		if tier == t {
			return i
		}
	}
	return -1
}

func (t Tier) IsValid() bool { return t.Rank() >= 0 }

// TierThresholds maps every tier to the lifetime points needed to reach it.
type TierThresholds map[Tier]int

func DefaultTierThresholds() TierThresholds {
	return TierThresholds{
		TierBronze:   0,
		TierSilver:   1000,
		TierGold:     5000,
		TierPlatinum: 20000,
	}
}

func (t TierThresholds) Equal(other TierThresholds) bool {
	if len(t) != len(other) {
		return false
	}
	for tier, min := range t {
		if m, ok := other[tier]; !ok || m != min {
			return false
		}
	}
	return true
}

type TransactionType string

const (
	TransactionEarn       TransactionType = "earn"
	TransactionSpend      TransactionType = "spend"
	TransactionBonus      TransactionType = "bonus"
	TransactionAdjustment TransactionType = "adjustment"
	TransactionExpire     TransactionType = "expire"
)

// IsDebit reports whether the transaction takes points from the balance.
func (tt TransactionType) IsDebit() bool {
	return tt == TransactionSpend || tt == TransactionExpire
}

// IsCredit reports whether the transaction counts towards lifetime points.
func (tt TransactionType) IsCredit() bool {
	return tt == TransactionEarn || tt == TransactionBonus
}

type Source string

const (
	SourceWorkout          Source = "workout_completion"
	SourceStreakBonus      Source = "streak_bonus"
	SourceAchievement      Source = "achievement_earned"
	SourceMilestone        Source = "milestone_reached"
	SourceRewardRedemption Source = "reward_redemption"
	SourceRewardRefund     Source = "reward_refund"
	SourceAdminAward       Source = "admin_award"
)

type RequirementType string

const (
	RequirementWorkoutCount     RequirementType = "workout_count"
	RequirementSessionCount     RequirementType = "session_count"
	RequirementExerciseCount    RequirementType = "exercise_count"
	RequirementPointsEarned     RequirementType = "points_earned"
	RequirementStreakDays       RequirementType = "streak_days"
	RequirementSpecificExercise RequirementType = "specific_exercise"
	RequirementTierReached      RequirementType = "tier_reached"
	RequirementLevelReached     RequirementType = "level_reached"
	RequirementSpecial          RequirementType = "special" // awarded manually
)

var RequirementTypes = []RequirementType{
	RequirementWorkoutCount, RequirementSessionCount, RequirementExerciseCount, RequirementPointsEarned,
	RequirementStreakDays, RequirementSpecificExercise, RequirementTierReached, RequirementLevelReached,
	RequirementSpecial,
}

type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "pending"
	RedemptionFulfilled RedemptionStatus = "fulfilled"
	RedemptionCancelled RedemptionStatus = "cancelled"
)

const (
	DefaultPointsPerWorkout  = 50
	DefaultPointsPerExercise = 10
	DefaultPointsPerStreak   = 20
	DefaultPointsPerLevel    = 100

	// StreakBonusInterval is the number of consecutive days earning a streak bonus.
	StreakBonusInterval = 7
	// GraceWindowDays is the rolling window in which a single missed day does not break a streak.
	GraceWindowDays = 30

	MaxPointsPerAction = 1000
	MaxMultiplier      = 3.0
)

// Settings is the system wide gamification configuration.
type Settings struct {
	IsEnabled             bool           `json:"is_enabled"`
	PointsPerWorkout      int            `json:"points_per_workout"`
	PointsPerExercise     int            `json:"points_per_exercise"`
	PointsPerStreak       int            `json:"points_per_streak"`
	PointsPerLevel        int            `json:"points_per_level"`
	PointsMultiplier      float64        `json:"points_multiplier"`
	TierThresholds        TierThresholds `json:"tier_thresholds"`
	EnableLeaderboards    bool           `json:"enable_leaderboards"`
	EnableNotifications   bool           `json:"enable_notifications"`
	AutoAwardAchievements bool           `json:"auto_award_achievements"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

func DefaultSettings() Settings {
	return Settings{
		IsEnabled:             true,
		PointsPerWorkout:      DefaultPointsPerWorkout,
		PointsPerExercise:     DefaultPointsPerExercise,
		PointsPerStreak:       DefaultPointsPerStreak,
		PointsPerLevel:        DefaultPointsPerLevel,
		PointsMultiplier:      1.0,
		TierThresholds:        DefaultTierThresholds(),
		EnableLeaderboards:    true,
		EnableNotifications:   true,
		AutoAwardAchievements: true,
	}
}

// UpdateSettings defines what may be changed in Settings. Nil fields are left untouched.
type UpdateSettings struct {
	IsEnabled             *bool          `json:"is_enabled"`
	PointsPerWorkout      *int           `json:"points_per_workout" validate:"omitempty,gte=0,lte=1000"`
	PointsPerExercise     *int           `json:"points_per_exercise" validate:"omitempty,gte=0,lte=1000"`
	PointsPerStreak       *int           `json:"points_per_streak" validate:"omitempty,gte=0,lte=1000"`
	PointsPerLevel        *int           `json:"points_per_level" validate:"omitempty,gte=1,lte=1000"`
	PointsMultiplier      *float64       `json:"points_multiplier" validate:"omitempty,gt=0,lte=3"`
	TierThresholds        TierThresholds `json:"tier_thresholds" validate:"omitempty,tierthresholds"`
	EnableLeaderboards    *bool          `json:"enable_leaderboards"`
	EnableNotifications   *bool          `json:"enable_notifications"`
	AutoAwardAchievements *bool          `json:"auto_award_achievements"`
}

func (us *UpdateSettings) Validate(validate *validator.Validate) error {
	return validate.Struct(us)
}

// Apply returns a copy of s with the set fields of us.
func (us UpdateSettings) Apply(s Settings) Settings {
	if us.IsEnabled != nil {
		s.IsEnabled = *us.IsEnabled
	}
	if us.PointsPerWorkout != nil {
		s.PointsPerWorkout = *us.PointsPerWorkout
	}
	if us.PointsPerExercise != nil {
		s.PointsPerExercise = *us.PointsPerExercise
	}
	if us.PointsPerStreak != nil {
		s.PointsPerStreak = *us.PointsPerStreak
	}
	if us.PointsPerLevel != nil {
		s.PointsPerLevel = *us.PointsPerLevel
	}
	if us.PointsMultiplier != nil {
		s.PointsMultiplier = *us.PointsMultiplier
	}
	if us.TierThresholds != nil {
		s.TierThresholds = us.TierThresholds
	}
	if us.EnableLeaderboards != nil {
		s.EnableLeaderboards = *us.EnableLeaderboards
	}
	if us.EnableNotifications != nil {
		s.EnableNotifications = *us.EnableNotifications
	}
	if us.AutoAwardAchievements != nil {
		s.AutoAwardAchievements = *us.AutoAwardAchievements
	}
	return s
}

// Profile is the gamification state of a user.
// Points is the spendable balance, TotalEarned the lifetime points which drive Level & Tier.
type Profile struct {
	UserID           string         `json:"user_id"`
	Points           int            `json:"points"`
	TotalEarned      int            `json:"total_earned"`
	Level            int            `json:"level"`
	Tier             Tier           `json:"tier"`
	StreakDays       int            `json:"streak_days"`
	TotalWorkouts    int            `json:"total_workouts"`
	TotalExercises   int            `json:"total_exercises"`
	LastActivityDate time.Time      `json:"last_activity_date"`
	GraceUsedAt      time.Time      `json:"grace_used_at"`
	PrimaryBadgeID   string         `json:"primary_badge_id"`
	ExerciseCounts   map[string]int `json:"exercise_counts"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func NewProfile(userID string) Profile {
	now := time.Now().UTC()
	return Profile{
		UserID:         userID,
		Level:          1,
		Tier:           TierBronze,
		ExerciseCounts: make(map[string]int),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// PointTransaction is an entry of the points ledger.
// Points is signed: debits are negative. Balance is the user's balance right after the transaction.
type PointTransaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Points      int             `json:"points"`
	Balance     int             `json:"balance"`
	Type        TransactionType `json:"transaction_type"`
	Source      Source          `json:"source"`
	SourceID    string          `json:"source_id"`
	Description string          `json:"description"`
	AwardedBy   string          `json:"awarded_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

type TransactionFilter struct {
	Type   TransactionType `query:"type"`
	Source Source          `query:"source"`
	core.Pagination
}

type TransactionPage struct {
	Transactions []PointTransaction `json:"transactions"`
	core.PageInfo
}

// AwardPoints is a manual points operation by staff.
type AwardPoints struct {
	Points      int             `json:"points" validate:"required"`
	Type        TransactionType `json:"transaction_type" validate:"required,transactiontype"`
	Source      Source          `json:"source"`
	SourceID    string          `json:"source_id"`
	Description string          `json:"description" validate:"max=500"`
}

func (ap *AwardPoints) Validate(validate *validator.Validate) error {
	ap.Description = core.CleanString(ap.Description)
	ap.SourceID = core.CleanString(ap.SourceID)
	if ap.Type == "" {
		ap.Type = TransactionEarn
	}
	if ap.Source == "" {
		ap.Source = SourceAdminAward
	}
	if err := validate.Struct(ap); err != nil {
		return err
	}
	if ap.Type != TransactionAdjustment && ap.Points < 0 {
		return core.NewFieldError("points", ErrPointsNotPositive)
	}
	return nil
}

// WorkoutLog is a completed workout session.
type WorkoutLog struct {
	UserID             string   `json:"user_id" validate:"required"`
	WorkoutID          string   `json:"workout_id"`
	Duration           int      `json:"duration" validate:"gte=0,lte=1440"` // minutes
	ExercisesCompleted int      `json:"exercises_completed" validate:"gte=0,lte=500"`
	ExerciseIDs        []string `json:"exercise_ids" validate:"omitempty,dive,notblank"`
}

func (wl *WorkoutLog) Validate(validate *validator.Validate) error {
	wl.UserID = core.CleanString(wl.UserID)
	wl.WorkoutID = core.CleanString(wl.WorkoutID)
	for i := range wl.ExerciseIDs {
		wl.ExerciseIDs[i] = core.CleanString(wl.ExerciseIDs[i])
	}
	return validate.Struct(wl)
}

type Achievement struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Icon             string          `json:"icon"`
	PointValue       int             `json:"point_value"`
	RequirementType  RequirementType `json:"requirement_type"`
	RequirementValue int             `json:"requirement_value"`
	Tier             Tier            `json:"tier"`
	ExerciseID       string          `json:"exercise_id"`
	BadgeImageURL    string          `json:"badge_image_url"`
	IsActive         bool            `json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type NewAchievement struct {
	Name             string          `json:"name" validate:"required,max=100"`
	Description      string          `json:"description" validate:"max=1000"`
	Icon             string          `json:"icon" validate:"max=50"`
	PointValue       *int            `json:"point_value" validate:"omitempty,gte=0,lte=1000"`
	RequirementType  RequirementType `json:"requirement_type" validate:"required,requirementtype"`
	RequirementValue *int            `json:"requirement_value" validate:"omitempty,gte=0"`
	Tier             Tier            `json:"tier" validate:"omitempty,tier"`
	ExerciseID       string          `json:"exercise_id" validate:"required_if=RequirementType specific_exercise"`
	BadgeImageURL    string          `json:"badge_image_url" validate:"omitempty,url"`
	IsActive         *bool           `json:"is_active"`
}

func (na *NewAchievement) Validate(validate *validator.Validate) error {
	na.Name = core.CleanString(na.Name)
	na.Description = core.CleanString(na.Description)
	na.Icon = core.CleanString(na.Icon)
	na.ExerciseID = core.CleanString(na.ExerciseID)
	na.BadgeImageURL = core.CleanString(na.BadgeImageURL)
	return validate.Struct(na)
}

type UpdateAchievement struct {
	Name             *string          `json:"name" validate:"omitempty,notblank,max=100"`
	Description      *string          `json:"description" validate:"omitempty,max=1000"`
	Icon             *string          `json:"icon" validate:"omitempty,max=50"`
	PointValue       *int             `json:"point_value" validate:"omitempty,gte=0,lte=1000"`
	RequirementType  *RequirementType `json:"requirement_type" validate:"omitempty,requirementtype"`
	RequirementValue *int             `json:"requirement_value" validate:"omitempty,gte=0"`
	Tier             *Tier            `json:"tier" validate:"omitempty,tier"`
	ExerciseID       *string          `json:"exercise_id"`
	BadgeImageURL    *string          `json:"badge_image_url" validate:"omitempty,url"`
	IsActive         *bool            `json:"is_active"`
}

func (ua *UpdateAchievement) Validate(validate *validator.Validate) error {
	return validate.Struct(ua)
}

type AchievementFilter struct {
	IsActive *bool `query:"is_active"`
	Tier     Tier  `query:"tier"`
}

type UserAchievement struct {
	ID            string       `json:"id"`
	UserID        string       `json:"user_id"`
	AchievementID string       `json:"achievement_id"`
	Progress      int          `json:"progress"`
	IsCompleted   bool         `json:"is_completed"`
	EarnedAt      time.Time    `json:"earned_at"`
	PointsAwarded int          `json:"points_awarded"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	Achievement   *Achievement `json:"achievement,omitempty"`
}

type AchievementProgress struct {
	UserAchievement *UserAchievement `json:"user_achievement,omitempty"`
	Progress        int              `json:"progress"`
	IsCompleted     bool             `json:"is_completed"`
	Achievement     Achievement      `json:"achievement"`
}

type UpdateProgress struct {
	Progress int `json:"progress"`
}

type Reward struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Icon            string    `json:"icon"`
	PointCost       int       `json:"point_cost"`
	Tier            Tier      `json:"tier"` // minimum tier allowed to redeem
	Stock           int       `json:"stock"`
	RedemptionCount int       `json:"redemption_count"`
	IsActive        bool      `json:"is_active"`
	ExpiresAt       time.Time `json:"expires_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsExpired reports whether the reward expired at t.
func (r Reward) IsExpired(t time.Time) bool {
	return !r.ExpiresAt.IsZero() && t.After(r.ExpiresAt)
}

type NewReward struct {
	Name        string    `json:"name" validate:"required,max=100"`
	Description string    `json:"description" validate:"max=1000"`
	Icon        string    `json:"icon" validate:"max=50"`
	PointCost   int       `json:"point_cost" validate:"required,gt=0"`
	Tier        Tier      `json:"tier" validate:"omitempty,tier"`
	Stock       *int      `json:"stock" validate:"omitempty,gte=0"`
	IsActive    *bool     `json:"is_active"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (nr *NewReward) Validate(validate *validator.Validate) error {
	nr.Name = core.CleanString(nr.Name)
	nr.Description = core.CleanString(nr.Description)
	nr.Icon = core.CleanString(nr.Icon)
	return validate.Struct(nr)
}

type UpdateReward struct {
	Name        *string    `json:"name" validate:"omitempty,notblank,max=100"`
	Description *string    `json:"description" validate:"omitempty,max=1000"`
	Icon        *string    `json:"icon" validate:"omitempty,max=50"`
	PointCost   *int       `json:"point_cost" validate:"omitempty,gt=0"`
	Tier        *Tier      `json:"tier" validate:"omitempty,tier"`
	Stock       *int       `json:"stock" validate:"omitempty,gte=0"`
	IsActive    *bool      `json:"is_active"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

func (ur *UpdateReward) Validate(validate *validator.Validate) error {
	return validate.Struct(ur)
}

type RewardFilter struct {
	IsActive  *bool `query:"is_active"`
	Tier      Tier  `query:"tier"`
	Available bool  `query:"available"` // active, in stock & not expired
}

type UserReward struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id"`
	RewardID   string           `json:"reward_id"`
	PointsCost int              `json:"points_cost"`
	Status     RedemptionStatus `json:"status"`
	RedeemedAt time.Time        `json:"redeemed_at"`
	ExpiresAt  time.Time        `json:"expires_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
	Reward     *Reward          `json:"reward,omitempty"`
}

type UpdateRedemption struct {
	Status RedemptionStatus `json:"status" validate:"required,oneof=fulfilled cancelled"`
}

func (ur *UpdateRedemption) Validate(validate *validator.Validate) error {
	return validate.Struct(ur)
}

type Redemption struct {
	Redemption UserReward `json:"redemption"`
	Reward     Reward     `json:"reward"`
	Profile    Profile    `json:"profile"`
}

type Milestone struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	TargetPoints int       `json:"target_points"`
	BonusPoints  int       `json:"bonus_points"`
	Tier         Tier      `json:"tier"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type NewMilestone struct {
	Name         string `json:"name" validate:"required,max=100"`
	Description  string `json:"description" validate:"max=1000"`
	TargetPoints int    `json:"target_points" validate:"required,gt=0"`
	BonusPoints  int    `json:"bonus_points" validate:"gte=0,lte=1000"`
	Tier         Tier   `json:"tier" validate:"omitempty,tier"`
	IsActive     *bool  `json:"is_active"`
}

func (nm *NewMilestone) Validate(validate *validator.Validate) error {
	nm.Name = core.CleanString(nm.Name)
	nm.Description = core.CleanString(nm.Description)
	return validate.Struct(nm)
}

type UpdateMilestone struct {
	Name         *string `json:"name" validate:"omitempty,notblank,max=100"`
	Description  *string `json:"description" validate:"omitempty,max=1000"`
	TargetPoints *int    `json:"target_points" validate:"omitempty,gt=0"`
	BonusPoints  *int    `json:"bonus_points" validate:"omitempty,gte=0,lte=1000"`
	Tier         *Tier   `json:"tier" validate:"omitempty,tier"`
	IsActive     *bool   `json:"is_active"`
}

func (um *UpdateMilestone) Validate(validate *validator.Validate) error {
	return validate.Struct(um)
}

type MilestoneFilter struct {
	IsActive *bool `query:"is_active"`
	Tier     Tier  `query:"tier"`
}

type UserMilestone struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	MilestoneID        string     `json:"milestone_id"`
	ReachedAt          time.Time  `json:"reached_at"`
	BonusPointsAwarded int        `json:"bonus_points_awarded"`
	Milestone          *Milestone `json:"milestone,omitempty"`
}

type LeaderboardFilter struct {
	Tier Tier `query:"tier"`
	core.Pagination
}

type LeaderboardEntry struct {
	Rank           int    `json:"rank"`
	UserID         string `json:"user_id"`
	Name           string `json:"name"`
	Username       string `json:"username"`
	Points         int    `json:"points"`
	TotalEarned    int    `json:"total_earned"`
	Level          int    `json:"level"`
	Tier           Tier   `json:"tier"`
	StreakDays     int    `json:"streak_days"`
	PrimaryBadgeID string `json:"primary_badge_id"`
}

type Leaderboard struct {
	Entries []LeaderboardEntry `json:"entries"`
	core.PageInfo
}

// Outcome summarizes the effects of a points operation on a profile.
type Outcome struct {
	Profile      Profile            `json:"profile"`
	Transactions []PointTransaction `json:"transactions"`
	PointsEarned int                `json:"points_earned"`
	LeveledUp    bool               `json:"leveled_up"`
	TierChanged  bool               `json:"tier_changed"`
	PreviousTier Tier               `json:"previous_tier"`
	Achievements []Achievement      `json:"achievements_unlocked"`
	Milestones   []Milestone        `json:"milestones_reached"`
	StreakDays   int                `json:"streak_days,omitempty"`
	GraceDayUsed bool               `json:"grace_day_used,omitempty"`
}

type ProgressResult struct {
	UserAchievement UserAchievement `json:"user_achievement"`
	Outcome         *Outcome        `json:"outcome,omitempty"`
}

type ProfileSummary struct {
	Profile            Profile               `json:"profile"`
	Level              LevelProgress         `json:"level"`
	Tier               TierProgress          `json:"tier"`
	Rank               int                   `json:"rank"`
	RecentTransactions []PointTransaction    `json:"recent_transactions"`
	NextMilestone      *Milestone            `json:"next_milestone"`
	Achievements       []AchievementProgress `json:"achievements"`
	Redemptions        []UserReward          `json:"redemptions"`
	Milestones         []UserMilestone       `json:"milestones"`
}

type Stats struct {
	Profiles              int     `json:"profiles"`
	TotalPointsEarned     int     `json:"total_points_earned"`
	TotalRedemptions      int     `json:"total_redemptions"`
	AverageStreak         float64 `json:"average_streak"`
	AchievementsCompleted int     `json:"achievements_completed"`
	ActiveAchievements    int     `json:"active_achievements"`
	ActiveRewards         int     `json:"active_rewards"`
}
