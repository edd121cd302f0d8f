package sqlxrepos

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/core/gamification"
)

type gamificationRepository struct {
	base
}

var _ gamification.Repository = (*gamificationRepository)(nil) // interface compliance check

func NewGamificationRepository(db *sqlx.DB) gamification.Repository {
	return &gamificationRepository{base{db: db}}
}

// Settings

var settingsColumns = []string{
	"is_enabled", "points_per_workout", "points_per_exercise", "points_per_streak", "points_per_level", "points_multiplier",
	"tier_thresholds", "enable_leaderboards", "enable_notifications", "auto_award_achievements", "updated_at",
}

type settingsRow struct {
	IsEnabled             bool      `db:"is_enabled"`
	PointsPerWorkout      int       `db:"points_per_workout"`
	PointsPerExercise     int       `db:"points_per_exercise"`
	PointsPerStreak       int       `db:"points_per_streak"`
	PointsPerLevel        int       `db:"points_per_level"`
	PointsMultiplier      float64   `db:"points_multiplier"`
	TierThresholds        null.JSON `db:"tier_thresholds"`
	EnableLeaderboards    bool      `db:"enable_leaderboards"`
	EnableNotifications   bool      `db:"enable_notifications"`
	AutoAwardAchievements bool      `db:"auto_award_achievements"`
	UpdatedAt             time.Time `db:"updated_at"`
}

func (r settingsRow) toSettings() (gamification.Settings, error) {
	s := gamification.Settings{
		IsEnabled:             r.IsEnabled,
		PointsPerWorkout:      r.PointsPerWorkout,
		PointsPerExercise:     r.PointsPerExercise,
		PointsPerStreak:       r.PointsPerStreak,
		PointsPerLevel:        r.PointsPerLevel,
		PointsMultiplier:      r.PointsMultiplier,
		EnableLeaderboards:    r.EnableLeaderboards,
		EnableNotifications:   r.EnableNotifications,
		AutoAwardAchievements: r.AutoAwardAchievements,
		UpdatedAt:             r.UpdatedAt.UTC(),
	}
	if r.TierThresholds.Valid {
		if err := r.TierThresholds.Unmarshal(&s.TierThresholds); err != nil {
			return gamification.Settings{}, errors.Wrap(err, "decoding tier thresholds")
		}
	}
	return s, nil
}

func (repo *gamificationRepository) GetSettings(ctx context.Context, exec ...core.DBExecutor) (gamification.Settings, error) {
	var row settingsRow
	query := psql.Select(settingsColumns...).From("gamification_settings").Where(sq.Eq{"id": 1})
	if err := repo.get(ctx, exec, &row, query); err != nil {
		return gamification.Settings{}, trapNoRowsErr(err, gamification.ErrSettingsNotFound)
	}
	return row.toSettings()
}

func (repo *gamificationRepository) SaveSettings(ctx context.Context, s gamification.Settings, exec ...core.DBExecutor) (gamification.Settings, error) {
	thresholds, err := json.Marshal(s.TierThresholds)
	if err != nil {
		return gamification.Settings{}, errors.Wrap(err, "encoding tier thresholds")
	}

	updates := make([]string, 0, len(settingsColumns))
	for _, c := range settingsColumns {
		updates = append(updates, c+" = EXCLUDED."+c)
	}
	stmt := psql.Insert("gamification_settings").
		Columns(append([]string{"id"}, settingsColumns...)...).
		Values(1, s.IsEnabled, s.PointsPerWorkout, s.PointsPerExercise, s.PointsPerStreak, s.PointsPerLevel, s.PointsMultiplier,
			null.JSONFrom(thresholds), s.EnableLeaderboards, s.EnableNotifications, s.AutoAwardAchievements, s.UpdatedAt.UTC()).
		Suffix("ON CONFLICT (id) DO UPDATE SET " + strings.Join(updates, ", "))

	if _, err = repo.exec(ctx, exec, stmt); err != nil {
		return gamification.Settings{}, errors.Wrap(err, "saving settings")
	}
	return s, nil
}

// Profiles

var profileColumns = []string{
	"user_id", "points", "total_earned", "level", "tier", "streak_days", "total_workouts", "total_exercises",
	"last_activity_date", "grace_used_at", "primary_badge_id", "created_at", "updated_at",
}

type profileRow struct {
	UserID           string            `db:"user_id"`
	Points           int               `db:"points"`
	TotalEarned      int               `db:"total_earned"`
	Level            int               `db:"level"`
	Tier             gamification.Tier `db:"tier"`
	StreakDays       int               `db:"streak_days"`
	TotalWorkouts    int               `db:"total_workouts"`
	TotalExercises   int               `db:"total_exercises"`
	LastActivityDate null.Time         `db:"last_activity_date"`
	GraceUsedAt      null.Time         `db:"grace_used_at"`
	PrimaryBadgeID   null.String       `db:"primary_badge_id"`
	CreatedAt        time.Time         `db:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at"`
}

func newProfileRow(p gamification.Profile) profileRow {
	return profileRow{
		UserID:           p.UserID,
		Points:           p.Points,
		TotalEarned:      p.TotalEarned,
		Level:            p.Level,
		Tier:             p.Tier,
		StreakDays:       p.StreakDays,
		TotalWorkouts:    p.TotalWorkouts,
		TotalExercises:   p.TotalExercises,
		LastActivityDate: nullTime(p.LastActivityDate),
		GraceUsedAt:      nullTime(p.GraceUsedAt),
		PrimaryBadgeID:   nullString(p.PrimaryBadgeID),
		CreatedAt:        p.CreatedAt.UTC(),
		UpdatedAt:        p.UpdatedAt.UTC(),
	}
}

func (r profileRow) toProfile() gamification.Profile {
	return gamification.Profile{
		UserID:           r.UserID,
		Points:           r.Points,
		TotalEarned:      r.TotalEarned,
		Level:            r.Level,
		Tier:             r.Tier,
		StreakDays:       r.StreakDays,
		TotalWorkouts:    r.TotalWorkouts,
		TotalExercises:   r.TotalExercises,
		LastActivityDate: timeOrZero(r.LastActivityDate),
		GraceUsedAt:      timeOrZero(r.GraceUsedAt),
		PrimaryBadgeID:   r.PrimaryBadgeID.String,
		ExerciseCounts:   make(map[string]int),
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

func (repo *gamificationRepository) GetProfile(ctx context.Context, userID string, forUpdate bool, exec ...core.DBExecutor) (gamification.Profile, error) {
	query := psql.Select(profileColumns...).From("gamification_profiles").Where(sq.Eq{"user_id": userID})
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	var row profileRow
	if err := repo.get(ctx, exec, &row, query); err != nil {
		return gamification.Profile{}, trapNoRowsErr(err, gamification.ErrProfileNotFound)
	}
	p := row.toProfile()

	var counts []struct {
		ExerciseID string `db:"exercise_id"`
		Count      int    `db:"count"`
	}
	countsQuery := psql.Select("exercise_id", "count").From("exercise_counts").Where(sq.Eq{"user_id": userID})
	if err := repo.selectRows(ctx, exec, &counts, countsQuery); err != nil {
		return gamification.Profile{}, errors.Wrap(err, "selecting exercise counts")
	}
	for _, c := range counts {
		p.ExerciseCounts[c.ExerciseID] = c.Count
	}
	return p, nil
}

func (repo *gamificationRepository) CreateProfile(ctx context.Context, p gamification.Profile, exec ...core.DBExecutor) (gamification.Profile, error) {
	row := newProfileRow(p)
	stmt := psql.Insert("gamification_profiles").
		Columns(profileColumns...).
		Values(row.UserID, row.Points, row.TotalEarned, row.Level, row.Tier, row.StreakDays, row.TotalWorkouts, row.TotalExercises,
			row.LastActivityDate, row.GraceUsedAt, row.PrimaryBadgeID, row.CreatedAt, row.UpdatedAt).
		Suffix("ON CONFLICT (user_id) DO NOTHING")

	if _, err := repo.exec(ctx, exec, stmt); err != nil {
		return gamification.Profile{}, errors.Wrap(err, "inserting profile")
	}
	return repo.GetProfile(ctx, p.UserID, false, exec...)
}

func (repo *gamificationRepository) UpdateProfile(ctx context.Context, p gamification.Profile, exec ...core.DBExecutor) (gamification.Profile, error) {
	row := newProfileRow(p)
	stmt := psql.Update("gamification_profiles").
		SetMap(map[string]interface{}{
			"points":             row.Points,
			"total_earned":       row.TotalEarned,
			"level":              row.Level,
			"tier":               row.Tier,
			"streak_days":        row.StreakDays,
			"total_workouts":     row.TotalWorkouts,
			"total_exercises":    row.TotalExercises,
			"last_activity_date": row.LastActivityDate,
			"grace_used_at":      row.GraceUsedAt,
			"primary_badge_id":   row.PrimaryBadgeID,
			"updated_at":         row.UpdatedAt,
		}).
		Where(sq.Eq{"user_id": p.UserID})

	n, err := repo.exec(ctx, exec, stmt)
	if err != nil {
		return gamification.Profile{}, errors.Wrap(err, "updating profile")
	}
	if n == 0 {
		return gamification.Profile{}, gamification.ErrProfileNotFound
	}
	return p, nil
}

func (repo *gamificationRepository) IncrementExerciseCounts(ctx context.Context, userID string, counts map[string]int, exec ...core.DBExecutor) error {
	if len(counts) == 0 {
		return nil
	}
	stmt := psql.Insert("exercise_counts").
		Columns("user_id", "exercise_id", "count").
		Suffix("ON CONFLICT (user_id, exercise_id) DO UPDATE SET count = exercise_counts.count + EXCLUDED.count")
	for id, n := range counts {
		stmt = stmt.Values(userID, id, n)
	}
	if _, err := repo.exec(ctx, exec, stmt); err != nil {
		return errors.Wrap(err, "incrementing exercise counts")
	}
	return nil
}

type leaderboardRow struct {
	Rank           int               `db:"rank"`
	UserID         string            `db:"user_id"`
	Name           string            `db:"name"`
	Username       string            `db:"username"`
	Points         int               `db:"points"`
	TotalEarned    int               `db:"total_earned"`
	Level          int               `db:"level"`
	Tier           gamification.Tier `db:"tier"`
	StreakDays     int               `db:"streak_days"`
	PrimaryBadgeID null.String       `db:"primary_badge_id"`
}

func (repo *gamificationRepository) Leaderboard(ctx context.Context, filter gamification.LeaderboardFilter, exec ...core.DBExecutor) ([]gamification.LeaderboardEntry, int, error) {
	// ranks are computed over all active users, then filtered by tier
	ranked := sq.Select(
		"RANK() OVER (ORDER BY p.total_earned DESC) AS rank",
		"p.user_id", "u.name", "COALESCE(u.username, '') AS username",
		"p.points", "p.total_earned", "p.level", "p.tier", "p.streak_days", "p.primary_badge_id",
	).
		From("gamification_profiles p").
		Join("users u ON u.id = p.user_id").
		Where("u.is_active")

	query := psql.Select("*").FromSelect(ranked, "ranked")
	count := psql.Select("COUNT(*)").From("gamification_profiles p").Join("users u ON u.id = p.user_id").Where("u.is_active")
	if filter.Tier != "" {
		query = query.Where(sq.Eq{"tier": filter.Tier})
		count = count.Where(sq.Eq{"p.tier": filter.Tier})
	}
	query = paginate(query.OrderBy("rank ASC", "username ASC"), filter.Pagination)

	var total int
	if err := repo.get(ctx, exec, &total, count); err != nil {
		return nil, 0, errors.Wrap(err, "counting leaderboard")
	}
	var rows []leaderboardRow
	if err := repo.selectRows(ctx, exec, &rows, query); err != nil {
		return nil, 0, errors.Wrap(err, "selecting leaderboard")
	}

	entries := make([]gamification.LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, gamification.LeaderboardEntry{
			Rank:           r.Rank,
			UserID:         r.UserID,
			Name:           r.Name,
			Username:       r.Username,
			Points:         r.Points,
			TotalEarned:    r.TotalEarned,
			Level:          r.Level,
			Tier:           r.Tier,
			StreakDays:     r.StreakDays,
			PrimaryBadgeID: r.PrimaryBadgeID.String,
		})
	}
	return entries, total, nil
}

func (repo *gamificationRepository) CountProfilesAbove(ctx context.Context, totalEarned int, exec ...core.DBExecutor) (int, error) {
	var n int
	query := psql.Select("COUNT(*)").From("gamification_profiles p").
		Join("users u ON u.id = p.user_id").
		Where("u.is_active").
		Where(sq.Gt{"p.total_earned": totalEarned})
	if err := repo.get(ctx, exec, &n, query); err != nil {
		return 0, errors.Wrap(err, "counting profiles")
	}
	return n, nil
}

func (repo *gamificationRepository) RecomputeProgress(ctx context.Context, pointsPerLevel int, thresholds gamification.TierThresholds, exec ...core.DBExecutor) error {
	if pointsPerLevel <= 0 {
		pointsPerLevel = gamification.DefaultPointsPerLevel
	}
	if len(thresholds) == 0 {
		thresholds = gamification.DefaultTierThresholds()
	}
	// highest tier first, mirroring gamification.TierFor
	var (
		tier  = sq.Case()
		whens int
	)
	for i := len(gamification.Tiers) - 1; i >= 0; i-- {
		t := gamification.Tiers[i]
		if min, ok := thresholds[t]; ok {
			tier = tier.When(sq.Expr("total_earned >= ?", min), sq.Expr("?", string(t)))
			whens++
		}
	}

	stmt := psql.Update("gamification_profiles").
		Set("level", sq.Expr("GREATEST(total_earned, 0) / ? + 1", pointsPerLevel))
	if whens > 0 {
		stmt = stmt.Set("tier", tier.Else(sq.Expr("?", string(gamification.TierBronze))))
	} else {
		stmt = stmt.Set("tier", gamification.TierBronze)
	}
	if _, err := repo.exec(ctx, exec, stmt); err != nil {
		return errors.Wrap(err, "recomputing progress")
	}
	return nil
}

func (repo *gamificationRepository) ClearPrimaryBadge(ctx context.Context, achievementID string, exec ...core.DBExecutor) error {
	stmt := psql.Update("gamification_profiles").Set("primary_badge_id", nil).Where(sq.Eq{"primary_badge_id": achievementID})
	if _, err := repo.exec(ctx, exec, stmt); err != nil {
		return errors.Wrap(err, "clearing primary badge")
	}
	return nil
}

func (repo *gamificationRepository) Stats(ctx context.Context, exec ...core.DBExecutor) (gamification.Stats, error) {
	var row struct {
		Profiles              int     `db:"profiles"`
		TotalPointsEarned     int     `db:"total_points_earned"`
		TotalRedemptions      int     `db:"total_redemptions"`
		AverageStreak         float64 `db:"average_streak"`
		AchievementsCompleted int     `db:"achievements_completed"`
		ActiveAchievements    int     `db:"active_achievements"`
		ActiveRewards         int     `db:"active_rewards"`
	}
	query := psql.Select(
		"(SELECT COUNT(*) FROM gamification_profiles) AS profiles",
		"(SELECT COALESCE(SUM(total_earned), 0) FROM gamification_profiles) AS total_points_earned",
		"(SELECT COUNT(*) FROM user_rewards WHERE status <> 'cancelled') AS total_redemptions",
		"(SELECT COALESCE(AVG(streak_days), 0)::float8 FROM gamification_profiles) AS average_streak",
		"(SELECT COUNT(*) FROM user_achievements WHERE is_completed) AS achievements_completed",
		"(SELECT COUNT(*) FROM achievements WHERE is_active) AS active_achievements",
		"(SELECT COUNT(*) FROM rewards WHERE is_active) AS active_rewards",
	)
	if err := repo.get(ctx, exec, &row, query); err != nil {
		return gamification.Stats{}, errors.Wrap(err, "selecting stats")
	}
	return gamification.Stats{
		Profiles:              row.Profiles,
		TotalPointsEarned:     row.TotalPointsEarned,
		TotalRedemptions:      row.TotalRedemptions,
		AverageStreak:         row.AverageStreak,
		AchievementsCompleted: row.AchievementsCompleted,
		ActiveAchievements:    row.ActiveAchievements,
		ActiveRewards:         row.ActiveRewards,
	}, nil
}

// Transactions

var transactionColumns = []string{
	"id", "user_id", "points", "balance", "transaction_type", "source", "source_id", "description", "awarded_by", "created_at",
}

type transactionRow struct {
	ID          string                       `db:"id"`
	UserID      string                       `db:"user_id"`
	Points      int                          `db:"points"`
	Balance     int                          `db:"balance"`
	Type        gamification.TransactionType `db:"transaction_type"`
	Source      gamification.Source          `db:"source"`
	SourceID    null.String                  `db:"source_id"`
	Description string                       `db:"description"`
	AwardedBy   null.String                  `db:"awarded_by"`
	CreatedAt   time.Time                    `db:"created_at"`
}

func (r transactionRow) toTransaction() gamification.PointTransaction {
	return gamification.PointTransaction{
		ID:          r.ID,
		UserID:      r.UserID,
		Points:      r.Points,
		Balance:     r.Balance,
		Type:        r.Type,
		Source:      r.Source,
		SourceID:    r.SourceID.String,
		Description: r.Description,
		AwardedBy:   r.AwardedBy.String,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func (repo *gamificationRepository) CreateTransaction(ctx context.Context, t gamification.PointTransaction, exec ...core.DBExecutor) (gamification.PointTransaction, error) {
	t.ID = newID()
	stmt := psql.Insert("point_transactions").
		Columns(transactionColumns...).
		Values(t.ID, t.UserID, t.Points, t.Balance, t.Type, t.Source, nullString(t.SourceID), t.Description, nullString(t.AwardedBy), t.CreatedAt.UTC())
	if _, err := repo.exec(ctx, exec, stmt); err != nil {
		return gamification.PointTransaction{}, errors.Wrap(err, "inserting transaction")
	}
	return t, nil
}

func (repo *gamificationRepository) QueryTransactions(ctx context.Context, userID string, filter gamification.TransactionFilter, exec ...core.DBExecutor) ([]gamification.PointTransaction, int, error) {
	where := sq.Eq{"user_id": userID}
	if filter.Type != "" {
		where["transaction_type"] = filter.Type
	}
	if filter.Source != "" {
		where["source"] = filter.Source
	}

	var total int
	if err := repo.get(ctx, exec, &total, psql.Select("COUNT(*)").From("point_transactions").Where(where)); err != nil {
		return nil, 0, errors.Wrap(err, "counting transactions")
	}

	query := psql.Select(transactionColumns...).From("point_transactions").Where(where).OrderBy("created_at DESC", "id DESC")
	var rows []transactionRow
	if err := repo.selectRows(ctx, exec, &rows, paginate(query, filter.Pagination)); err != nil {
		return nil, 0, errors.Wrap(err, "selecting transactions")
	}
	txs := make([]gamification.PointTransaction, 0, len(rows))
	for _, r := range rows {
		txs = append(txs, r.toTransaction())
	}
	return txs, total, nil
}

// Achievements

var achievementColumns = []string{
	"id", "name", "description", "icon", "point_value", "requirement_type", "requirement_value", "tier", "exercise_id",
	"badge_image_url", "is_active", "created_at", "updated_at",
}

type achievementRow struct {
	ID               string                       `db:"id"`
	Name             string                       `db:"name"`
	Description      string                       `db:"description"`
	Icon             string                       `db:"icon"`
	PointValue       int                          `db:"point_value"`
	RequirementType  gamification.RequirementType `db:"requirement_type"`
	RequirementValue int                          `db:"requirement_value"`
	Tier             gamification.Tier            `db:"tier"`
	ExerciseID       null.String                  `db:"exercise_id"`
	BadgeImageURL    null.String                  `db:"badge_image_url"`
	IsActive         bool                         `db:"is_active"`
	CreatedAt        time.Time                    `db:"created_at"`
	UpdatedAt        time.Time                    `db:"updated_at"`
}

func (r achievementRow) toAchievement() gamification.Achievement {
	return gamification.Achievement{
		ID:               r.ID,
		Name:             r.Name,
		Description:      r.Description,
		Icon:             r.Icon,
		PointValue:       r.PointValue,
		RequirementType:  r.RequirementType,
		RequirementValue: r.RequirementValue,
		Tier:             r.Tier,
		ExerciseID:       r.ExerciseID.String,
		BadgeImageURL:    r.BadgeImageURL.String,
		IsActive:         r.IsActive,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

func achievementValues(a gamification.Achievement) map[string]interface{} {
	return map[string]interface{}{
		"name":              a.Name,
		"description":       a.Description,
		"icon":              a.Icon,
		"point_value":       a.PointValue,
		"requirement_type":  a.RequirementType,
		"requirement_value": a.RequirementValue,
		"tier":              a.Tier,
		"exercise_id":       nullString(a.ExerciseID),
		"badge_image_url":   nullString(a.BadgeImageURL),
		"is_active":         a.IsActive,
		"updated_at":        a.UpdatedAt.UTC(),
	}
}

// tierOrder sorts by tier rank.
const tierOrder = "CASE tier WHEN 'bronze' THEN 0 WHEN 'silver' THEN 1 WHEN 'gold' THEN 2 ELSE 3 END"

func (repo *gamificationRepository) QueryAchievements(ctx context.Context, filter gamification.AchievementFilter, exec ...core.DBExecutor) ([]gamification.Achievement, error) {
	query := psql.Select(achievementColumns...).From("achievements").OrderBy(tierOrder, "name ASC")
	if filter.IsActive != nil {
		query = query.Where(sq.Eq{"is_active": *filter.IsActive})
	}
	if filter.Tier != "" {
		query = query.Where(sq.Eq{"tier": filter.Tier})
	}

	var rows []achievementRow
	if err := repo.selectRows(ctx, exec, &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting achievements")
	}
	res := make([]gamification.Achievement, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.toAchievement())
	}
	return res, nil
}

func (repo *gamificationRepository) GetAchievement(ctx context.Context, id string, exec ...core.DBExecutor) (gamification.Achievement, error) {
	var row achievementRow
	query := psql.Select(achievementColumns...).From("achievements").Where(sq.Eq{"id": id})
	if err := repo.get(ctx, exec, &row, query); err != nil {
		return gamification.Achievement{}, trapNoRowsErr(err, gamification.ErrAchievementNotFound)
	}
	return row.toAchievement(), nil
}

func (repo *gamificationRepository) CreateAchievement(ctx context.Context, a gamification.Achievement, exec ...core.DBExecutor) (gamification.Achievement, error) {
	a.ID = newID()
	values := achievementValues(a)
	values["id"] = a.ID
	values["created_at"] = a.CreatedAt.UTC()
	if _, err := repo.exec(ctx, exec, psql.Insert("achievements").SetMap(values)); err != nil {
		return gamification.Achievement{}, errors.Wrap(err, "inserting achievement")
	}
	return a, nil
}

func (repo *gamificationRepository) UpdateAchievement(ctx context.Context, a gamification.Achievement, exec ...core.DBExecutor) (gamification.Achievement, error) {
	n, err := repo.exec(ctx, exec, psql.Update("achievements").SetMap(achievementValues(a)).Where(sq.Eq{"id": a.ID}))
	if err != nil {
		return gamification.Achievement{}, errors.Wrap(err, "updating achievement")
	}
	if n == 0 {
		return gamification.Achievement{}, gamification.ErrAchievementNotFound
	}
	return a, nil
}

func (repo *gamificationRepository) DeleteAchievement(ctx context.Context, id string, exec ...core.DBExecutor) error {
	// user_achievements cascade
	n, err := repo.exec(ctx, exec, psql.Delete("achievements").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting achievement")
	}
	if n == 0 {
		return gamification.ErrAchievementNotFound
	}
	return nil
}

var userAchievementColumns = []string{
	"id", "user_id", "achievement_id", "progress", "is_completed", "earned_at", "points_awarded", "created_at", "updated_at",
}

type userAchievementRow struct {
	ID            string         `db:"id"`
	UserID        string         `db:"user_id"`
	AchievementID string         `db:"achievement_id"`
	Progress      int            `db:"progress"`
	IsCompleted   bool           `db:"is_completed"`
	EarnedAt      null.Time      `db:"earned_at"`
	PointsAwarded int            `db:"points_awarded"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
	Achievement   achievementRow `db:"a"`
}

func (r userAchievementRow) toUserAchievement() gamification.UserAchievement {
	a := r.Achievement.toAchievement()
	return gamification.UserAchievement{
		ID:            r.ID,
		UserID:        r.UserID,
		AchievementID: r.AchievementID,
		Progress:      r.Progress,
		IsCompleted:   r.IsCompleted,
		EarnedAt:      timeOrZero(r.EarnedAt),
		PointsAwarded: r.PointsAwarded,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
		Achievement:   &a,
	}
}

func (repo *gamificationRepository) selectUserAchievements() sq.SelectBuilder {
	cols := append(qualified("ua", "", userAchievementColumns), qualified("a", "a", achievementColumns)...)
	return psql.Select(cols...).From("user_achievements ua").Join("achievements a ON a.id = ua.achievement_id")
}

func (repo *gamificationRepository) GetUserAchievement(ctx context.Context, userID, achievementID string, exec ...core.DBExecutor) (gamification.UserAchievement, error) {
	var row userAchievementRow
	query := repo.selectUserAchievements().Where(sq.Eq{"ua.user_id": userID, "ua.achievement_id": achievementID})
	if err := repo.get(ctx, exec, &row, query); err != nil {
		return gamification.UserAchievement{}, trapNoRowsErr(err, gamification.ErrUserAchievementNotFound)
	}
	return row.toUserAchievement(), nil
}

func (repo *gamificationRepository) QueryUserAchievements(ctx context.Context, userID string, exec ...core.DBExecutor) ([]gamification.UserAchievement, error) {
	var rows []userAchievementRow
	query := repo.selectUserAchievements().Where(sq.Eq{"ua.user_id": userID}).OrderBy("ua.created_at ASC")
	if err := repo.selectRows(ctx, exec, &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting user achievements")
	}
	res := make([]gamification.UserAchievement, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.toUserAchievement())
	}
	return res, nil
}

func (repo *gamificationRepository) SaveUserAchievement(ctx context.Context, ua gamification.UserAchievement, exec ...core.DBExecutor) (gamification.UserAchievement, error) {
	if ua.ID == "" {
		ua.ID = newID()
	}
	stmt := psql.Insert("user_achievements").
		Columns(userAchievementColumns...).
		Values(ua.ID, ua.UserID, ua.AchievementID, ua.Progress, ua.IsCompleted, nullTime(ua.EarnedAt), ua.PointsAwarded,
			ua.CreatedAt.UTC(), ua.UpdatedAt.UTC()).
		Suffix("ON CONFLICT (user_id, achievement_id) DO UPDATE SET " +
			"progress = EXCLUDED.progress, is_completed = EXCLUDED.is_completed, earned_at = EXCLUDED.earned_at, " +
			"points_awarded = EXCLUDED.points_awarded, updated_at = EXCLUDED.updated_at")
	if _, err := repo.exec(ctx, exec, stmt); err != nil {
		return gamification.UserAchievement{}, errors.Wrap(err, "saving user achievement")
	}
	return repo.GetUserAchievement(ctx, ua.UserID, ua.AchievementID, exec...)
}

// Rewards

var rewardColumns = []string{
	"id", "name", "description", "icon", "point_cost", "tier", "stock", "redemption_count", "is_active", "expires_at",
	"created_at", "updated_at",
}

type rewardRow struct {
	ID              string            `db:"id"`
	Name            string            `db:"name"`
	Description     string            `db:"description"`
	Icon            string            `db:"icon"`
	PointCost       int               `db:"point_cost"`
	Tier            gamification.Tier `db:"tier"`
	Stock           int               `db:"stock"`
	RedemptionCount int               `db:"redemption_count"`
	IsActive        bool              `db:"is_active"`
	ExpiresAt       null.Time         `db:"expires_at"`
	CreatedAt       time.Time         `db:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at"`
}

func (r rewardRow) toReward() gamification.Reward {
	return gamification.Reward{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description,
		Icon:            r.Icon,
		PointCost:       r.PointCost,
		Tier:            r.Tier,
		Stock:           r.Stock,
		RedemptionCount: r.RedemptionCount,
		IsActive:        r.IsActive,
		ExpiresAt:       timeOrZero(r.ExpiresAt),
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

func rewardValues(r gamification.Reward) map[string]interface{} {
	return map[string]interface{}{
		"name":             r.Name,
		"description":      r.Description,
		"icon":             r.Icon,
		"point_cost":       r.PointCost,
		"tier":             r.Tier,
		"stock":            r.Stock,
		"redemption_count": r.RedemptionCount,
		"is_active":        r.IsActive,
		"expires_at":       nullTime(r.ExpiresAt),
		"updated_at":       r.UpdatedAt.UTC(),
	}
}

func (repo *gamificationRepository) QueryRewards(ctx context.Context, filter gamification.RewardFilter, exec ...core.DBExecutor) ([]gamification.Reward, error) {
	query := psql.Select(rewardColumns...).From("rewards").OrderBy("point_cost ASC", "name ASC")
	if filter.IsActive != nil {
		query = query.Where(sq.Eq{"is_active": *filter.IsActive})
	}
	if filter.Tier != "" {
		query = query.Where(sq.Eq{"tier": filter.Tier})
	}
	if filter.Available {
		query = query.
			Where(sq.Eq{"is_active": true}).
			Where(sq.Gt{"stock": 0}).
			Where(sq.Or{sq.Eq{"expires_at": nil}, sq.GtOrEq{"expires_at": gamification.NowFunc().UTC()}})
	}

	var rows []rewardRow
	if err := repo.selectRows(ctx, exec, &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting rewards")
	}
	res := make([]gamification.Reward, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.toReward())
	}
	return res, nil
}

func (repo *gamificationRepository) GetReward(ctx context.Context, id string, forUpdate bool, exec ...core.DBExecutor) (gamification.Reward, error) {
	query := psql.Select(rewardColumns...).From("rewards").Where(sq.Eq{"id": id})
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}
	var row rewardRow
	if err := repo.get(ctx, exec, &row, query); err != nil {
		return gamification.Reward{}, trapNoRowsErr(err, gamification.ErrRewardNotFound)
	}
	return row.toReward(), nil
}

func (repo *gamificationRepository) CreateReward(ctx context.Context, r gamification.Reward, exec ...core.DBExecutor) (gamification.Reward, error) {
	r.ID = newID()
	values := rewardValues(r)
	values["id"] = r.ID
	values["created_at"] = r.CreatedAt.UTC()
	if _, err := repo.exec(ctx, exec, psql.Insert("rewards").SetMap(values)); err != nil {
		return gamification.Reward{}, errors.Wrap(err, "inserting reward")
	}
	return r, nil
}

func (repo *gamificationRepository) UpdateReward(ctx context.Context, r gamification.Reward, exec ...core.DBExecutor) (gamification.Reward, error) {
	n, err := repo.exec(ctx, exec, psql.Update("rewards").SetMap(rewardValues(r)).Where(sq.Eq{"id": r.ID}))
	if err != nil {
		return gamification.Reward{}, errors.Wrap(err, "updating reward")
	}
	if n == 0 {
		return gamification.Reward{}, gamification.ErrRewardNotFound
	}
	return r, nil
}

func (repo *gamificationRepository) DeleteReward(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := repo.exec(ctx, exec, psql.Delete("rewards").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting reward")
	}
	if n == 0 {
		return gamification.ErrRewardNotFound
	}
	return nil
}

func (repo *gamificationRepository) RewardHasRedemptions(ctx context.Context, rewardID string, exec ...core.DBExecutor) (bool, error) {
	var redeemed bool
	query := psql.Select().Column("EXISTS (SELECT 1 FROM user_rewards WHERE reward_id = ?)", rewardID)
	if err := repo.get(ctx, exec, &redeemed, query); err != nil {
		return false, errors.Wrap(err, "checking reward redemptions")
	}
	return redeemed, nil
}

var userRewardColumns = []string{"id", "user_id", "reward_id", "points_cost", "status", "redeemed_at", "expires_at", "updated_at"}

type userRewardRow struct {
	ID         string                        `db:"id"`
	UserID     string                        `db:"user_id"`
	RewardID   string                        `db:"reward_id"`
	PointsCost int                           `db:"points_cost"`
	Status     gamification.RedemptionStatus `db:"status"`
	RedeemedAt time.Time                     `db:"redeemed_at"`
	ExpiresAt  null.Time                     `db:"expires_at"`
	UpdatedAt  time.Time                     `db:"updated_at"`
	Reward     rewardRow                     `db:"r"`
}

func (r userRewardRow) toUserReward() gamification.UserReward {
	reward := r.Reward.toReward()
	return gamification.UserReward{
		ID:         r.ID,
		UserID:     r.UserID,
		RewardID:   r.RewardID,
		PointsCost: r.PointsCost,
		Status:     r.Status,
		RedeemedAt: r.RedeemedAt.UTC(),
		ExpiresAt:  timeOrZero(r.ExpiresAt),
		UpdatedAt:  r.UpdatedAt.UTC(),
		Reward:     &reward,
	}
}

func (repo *gamificationRepository) selectUserRewards() sq.SelectBuilder {
	cols := append(qualified("ur", "", userRewardColumns), qualified("r", "r", rewardColumns)...)
	return psql.Select(cols...).From("user_rewards ur").Join("rewards r ON r.id = ur.reward_id")
}

func (repo *gamificationRepository) CreateUserReward(ctx context.Context, ur gamification.UserReward, exec ...core.DBExecutor) (gamification.UserReward, error) {
	ur.ID = newID()
	stmt := psql.Insert("user_rewards").
		Columns(userRewardColumns...).
		Values(ur.ID, ur.UserID, ur.RewardID, ur.PointsCost, ur.Status, ur.RedeemedAt.UTC(), nullTime(ur.ExpiresAt), ur.UpdatedAt.UTC())
	if _, err := repo.exec(ctx, exec, stmt); err != nil {
		return gamification.UserReward{}, errors.Wrap(err, "inserting user reward")
	}
	return repo.GetUserReward(ctx, ur.ID, false, exec...)
}

func (repo *gamificationRepository) GetUserReward(ctx context.Context, id string, forUpdate bool, exec ...core.DBExecutor) (gamification.UserReward, error) {
	query := repo.selectUserRewards().Where(sq.Eq{"ur.id": id})
	if forUpdate {
		query = query.Suffix("FOR UPDATE OF ur")
	}
	var row userRewardRow
	if err := repo.get(ctx, exec, &row, query); err != nil {
		return gamification.UserReward{}, trapNoRowsErr(err, gamification.ErrRedemptionNotFound)
	}
	return row.toUserReward(), nil
}

func (repo *gamificationRepository) UpdateUserReward(ctx context.Context, ur gamification.UserReward, exec ...core.DBExecutor) (gamification.UserReward, error) {
	stmt := psql.Update("user_rewards").
		SetMap(map[string]interface{}{
			"status":     ur.Status,
			"expires_at": nullTime(ur.ExpiresAt),
			"updated_at": ur.UpdatedAt.UTC(),
		}).
		Where(sq.Eq{"id": ur.ID})
	n, err := repo.exec(ctx, exec, stmt)
	if err != nil {
		return gamification.UserReward{}, errors.Wrap(err, "updating user reward")
	}
	if n == 0 {
		return gamification.UserReward{}, gamification.ErrRedemptionNotFound
	}
	return repo.GetUserReward(ctx, ur.ID, false, exec...)
}

func (repo *gamificationRepository) QueryUserRewards(ctx context.Context, userID string, exec ...core.DBExecutor) ([]gamification.UserReward, error) {
	var rows []userRewardRow
	query := repo.selectUserRewards().Where(sq.Eq{"ur.user_id": userID}).OrderBy("ur.redeemed_at DESC")
	if err := repo.selectRows(ctx, exec, &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting user rewards")
	}
	res := make([]gamification.UserReward, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.toUserReward())
	}
	return res, nil
}

// Milestones

var milestoneColumns = []string{
	"id", "name", "description", "target_points", "bonus_points", "tier", "is_active", "created_at", "updated_at",
}

type milestoneRow struct {
	ID           string            `db:"id"`
	Name         string            `db:"name"`
	Description  string            `db:"description"`
	TargetPoints int               `db:"target_points"`
	BonusPoints  int               `db:"bonus_points"`
	Tier         gamification.Tier `db:"tier"`
	IsActive     bool              `db:"is_active"`
	CreatedAt    time.Time         `db:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at"`
}

func (r milestoneRow) toMilestone() gamification.Milestone {
	return gamification.Milestone{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		TargetPoints: r.TargetPoints,
		BonusPoints:  r.BonusPoints,
		Tier:         r.Tier,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func milestoneValues(m gamification.Milestone) map[string]interface{} {
	return map[string]interface{}{
		"name":          m.Name,
		"description":   m.Description,
		"target_points": m.TargetPoints,
		"bonus_points":  m.BonusPoints,
		"tier":          m.Tier,
		"is_active":     m.IsActive,
		"updated_at":    m.UpdatedAt.UTC(),
	}
}

func (repo *gamificationRepository) QueryMilestones(ctx context.Context, filter gamification.MilestoneFilter, exec ...core.DBExecutor) ([]gamification.Milestone, error) {
	query := psql.Select(milestoneColumns...).From("milestones").OrderBy("target_points ASC", "name ASC")
	if filter.IsActive != nil {
		query = query.Where(sq.Eq{"is_active": *filter.IsActive})
	}
	if filter.Tier != "" {
		query = query.Where(sq.Eq{"tier": filter.Tier})
	}

	var rows []milestoneRow
	if err := repo.selectRows(ctx, exec, &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting milestones")
	}
	res := make([]gamification.Milestone, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.toMilestone())
	}
	return res, nil
}

func (repo *gamificationRepository) GetMilestone(ctx context.Context, id string, exec ...core.DBExecutor) (gamification.Milestone, error) {
	var row milestoneRow
	query := psql.Select(milestoneColumns...).From("milestones").Where(sq.Eq{"id": id})
	if err := repo.get(ctx, exec, &row, query); err != nil {
		return gamification.Milestone{}, trapNoRowsErr(err, gamification.ErrMilestoneNotFound)
	}
	return row.toMilestone(), nil
}

func (repo *gamificationRepository) CreateMilestone(ctx context.Context, m gamification.Milestone, exec ...core.DBExecutor) (gamification.Milestone, error) {
	m.ID = newID()
	values := milestoneValues(m)
	values["id"] = m.ID
	values["created_at"] = m.CreatedAt.UTC()
	if _, err := repo.exec(ctx, exec, psql.Insert("milestones").SetMap(values)); err != nil {
		return gamification.Milestone{}, errors.Wrap(err, "inserting milestone")
	}
	return m, nil
}

func (repo *gamificationRepository) UpdateMilestone(ctx context.Context, m gamification.Milestone, exec ...core.DBExecutor) (gamification.Milestone, error) {
	n, err := repo.exec(ctx, exec, psql.Update("milestones").SetMap(milestoneValues(m)).Where(sq.Eq{"id": m.ID}))
	if err != nil {
		return gamification.Milestone{}, errors.Wrap(err, "updating milestone")
	}
	if n == 0 {
		return gamification.Milestone{}, gamification.ErrMilestoneNotFound
	}
	return m, nil
}

func (repo *gamificationRepository) DeleteMilestone(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := repo.exec(ctx, exec, psql.Delete("milestones").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting milestone")
	}
	if n == 0 {
		return gamification.ErrMilestoneNotFound
	}
	return nil
}

var userMilestoneColumns = []string{"id", "user_id", "milestone_id", "reached_at", "bonus_points_awarded"}

type userMilestoneRow struct {
	ID                 string       `db:"id"`
	UserID             string       `db:"user_id"`
	MilestoneID        string       `db:"milestone_id"`
	ReachedAt          time.Time    `db:"reached_at"`
	BonusPointsAwarded int          `db:"bonus_points_awarded"`
	Milestone          milestoneRow `db:"m"`
}

func (r userMilestoneRow) toUserMilestone() gamification.UserMilestone {
	m := r.Milestone.toMilestone()
	return gamification.UserMilestone{
		ID:                 r.ID,
		UserID:             r.UserID,
		MilestoneID:        r.MilestoneID,
		ReachedAt:          r.ReachedAt.UTC(),
		BonusPointsAwarded: r.BonusPointsAwarded,
		Milestone:          &m,
	}
}

func (repo *gamificationRepository) selectUserMilestones() sq.SelectBuilder {
	cols := append(qualified("um", "", userMilestoneColumns), qualified("m", "m", milestoneColumns)...)
	return psql.Select(cols...).From("user_milestones um").Join("milestones m ON m.id = um.milestone_id")
}

func (repo *gamificationRepository) QueryUserMilestones(ctx context.Context, userID string, exec ...core.DBExecutor) ([]gamification.UserMilestone, error) {
	var rows []userMilestoneRow
	query := repo.selectUserMilestones().Where(sq.Eq{"um.user_id": userID}).OrderBy("um.reached_at ASC")
	if err := repo.selectRows(ctx, exec, &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting user milestones")
	}
	res := make([]gamification.UserMilestone, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.toUserMilestone())
	}
	return res, nil
}

func (repo *gamificationRepository) CreateUserMilestone(ctx context.Context, um gamification.UserMilestone, exec ...core.DBExecutor) (gamification.UserMilestone, error) {
	stmt := psql.Insert("user_milestones").
		Columns(userMilestoneColumns...).
		Values(newID(), um.UserID, um.MilestoneID, um.ReachedAt.UTC(), um.BonusPointsAwarded).
		Suffix("ON CONFLICT (user_id, milestone_id) DO NOTHING")
	if _, err := repo.exec(ctx, exec, stmt); err != nil {
		return gamification.UserMilestone{}, errors.Wrap(err, "inserting user milestone")
	}

	var row userMilestoneRow
	query := repo.selectUserMilestones().Where(sq.Eq{"um.user_id": um.UserID, "um.milestone_id": um.MilestoneID})
	if err := repo.get(ctx, exec, &row, query); err != nil {
		return gamification.UserMilestone{}, errors.Wrap(err, "selecting user milestone")
	}
	return row.toUserMilestone(), nil
}
