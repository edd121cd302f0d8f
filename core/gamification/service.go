package gamification

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/core/user"
)

var (
	// not found errors
	ErrProfileNotFound         = errors.New("profile not found")
	ErrSettingsNotFound        = errors.New("settings not found")
	ErrAchievementNotFound     = errors.New("achievement not found")
	ErrUserAchievementNotFound = errors.New("user achievement not found")
	ErrRewardNotFound          = errors.New("reward not found")
	ErrRedemptionNotFound      = errors.New("redemption not found")
	ErrMilestoneNotFound       = errors.New("milestone not found")

	// business errors, returned wrapped in a *core.ValidationError
	ErrDisabled                 = errors.New("gamification is disabled")
	ErrLeaderboardDisabled      = errors.New("leaderboards are disabled")
	ErrInsufficientPoints       = errors.New("insufficient points")
	ErrPointsNotPositive        = errors.New("points must be positive")
	ErrRewardOutOfStock         = errors.New("reward is out of stock")
	ErrRewardExpired            = errors.New("reward has expired")
	ErrTierTooLow               = errors.New("tier too low for this reward")
	ErrAchievementAlreadyEarned = errors.New("achievement already earned")
	ErrAchievementNotEarned     = errors.New("achievement not earned")
	ErrRedemptionNotPending     = errors.New("only pending redemptions can be updated")

	// ErrWorkoutAlreadyRecorded is returned when a workout was already recorded today.
	ErrWorkoutAlreadyRecorded = errors.New("workout already recorded today")

	NowFunc = time.Now // mockable

	recentTransactionsCount = 10
)

type (
	Repository interface {
		GetSettings(ctx context.Context, exec ...core.DBExecutor) (Settings, error)
		SaveSettings(ctx context.Context, s Settings, exec ...core.DBExecutor) (Settings, error)

		// GetProfile loads the profile & its exercise counts. forUpdate locks the profile row.
		GetProfile(ctx context.Context, userID string, forUpdate bool, exec ...core.DBExecutor) (Profile, error)
		// CreateProfile is a no-op when the profile already exists. It returns the stored profile.
		CreateProfile(ctx context.Context, p Profile, exec ...core.DBExecutor) (Profile, error)
		UpdateProfile(ctx context.Context, p Profile, exec ...core.DBExecutor) (Profile, error)
		IncrementExerciseCounts(ctx context.Context, userID string, counts map[string]int, exec ...core.DBExecutor) error
		// Leaderboard returns a page of ranked profiles of active users & the total count.
		Leaderboard(ctx context.Context, filter LeaderboardFilter, exec ...core.DBExecutor) ([]LeaderboardEntry, int, error)
		CountProfilesAbove(ctx context.Context, totalEarned int, exec ...core.DBExecutor) (int, error)
		// RecomputeProgress sets the level & tier of every profile from its lifetime points.
		RecomputeProgress(ctx context.Context, pointsPerLevel int, thresholds TierThresholds, exec ...core.DBExecutor) error
		ClearPrimaryBadge(ctx context.Context, achievementID string, exec ...core.DBExecutor) error
		Stats(ctx context.Context, exec ...core.DBExecutor) (Stats, error)

		CreateTransaction(ctx context.Context, tx PointTransaction, exec ...core.DBExecutor) (PointTransaction, error)
		// QueryTransactions returns a page of the user's transactions, newest first, & the total count.
		QueryTransactions(ctx context.Context, userID string, filter TransactionFilter, exec ...core.DBExecutor) ([]PointTransaction, int, error)

		QueryAchievements(ctx context.Context, filter AchievementFilter, exec ...core.DBExecutor) ([]Achievement, error)
		GetAchievement(ctx context.Context, id string, exec ...core.DBExecutor) (Achievement, error)
		CreateAchievement(ctx context.Context, a Achievement, exec ...core.DBExecutor) (Achievement, error)
		UpdateAchievement(ctx context.Context, a Achievement, exec ...core.DBExecutor) (Achievement, error)
		// DeleteAchievement deletes the achievement & the matching user achievements.
		DeleteAchievement(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetUserAchievement(ctx context.Context, userID, achievementID string, exec ...core.DBExecutor) (UserAchievement, error)
		QueryUserAchievements(ctx context.Context, userID string, exec ...core.DBExecutor) ([]UserAchievement, error)
		// SaveUserAchievement inserts or updates on (user, achievement).
		SaveUserAchievement(ctx context.Context, ua UserAchievement, exec ...core.DBExecutor) (UserAchievement, error)

		QueryRewards(ctx context.Context, filter RewardFilter, exec ...core.DBExecutor) ([]Reward, error)
		GetReward(ctx context.Context, id string, forUpdate bool, exec ...core.DBExecutor) (Reward, error)
		CreateReward(ctx context.Context, r Reward, exec ...core.DBExecutor) (Reward, error)
		UpdateReward(ctx context.Context, r Reward, exec ...core.DBExecutor) (Reward, error)
		DeleteReward(ctx context.Context, id string, exec ...core.DBExecutor) error
		// RewardHasRedemptions reports whether the reward was ever redeemed, cancelled redemptions included.
		RewardHasRedemptions(ctx context.Context, rewardID string, exec ...core.DBExecutor) (bool, error)
		CreateUserReward(ctx context.Context, ur UserReward, exec ...core.DBExecutor) (UserReward, error)
		GetUserReward(ctx context.Context, id string, forUpdate bool, exec ...core.DBExecutor) (UserReward, error)
		UpdateUserReward(ctx context.Context, ur UserReward, exec ...core.DBExecutor) (UserReward, error)
		QueryUserRewards(ctx context.Context, userID string, exec ...core.DBExecutor) ([]UserReward, error)

		QueryMilestones(ctx context.Context, filter MilestoneFilter, exec ...core.DBExecutor) ([]Milestone, error)
		GetMilestone(ctx context.Context, id string, exec ...core.DBExecutor) (Milestone, error)
		CreateMilestone(ctx context.Context, m Milestone, exec ...core.DBExecutor) (Milestone, error)
		UpdateMilestone(ctx context.Context, m Milestone, exec ...core.DBExecutor) (Milestone, error)
		DeleteMilestone(ctx context.Context, id string, exec ...core.DBExecutor) error
		QueryUserMilestones(ctx context.Context, userID string, exec ...core.DBExecutor) ([]UserMilestone, error)
		CreateUserMilestone(ctx context.Context, um UserMilestone, exec ...core.DBExecutor) (UserMilestone, error)
	}

	Service interface {
		GetSettings(ctx context.Context) (Settings, error)
		UpdateSettings(ctx context.Context, us UpdateSettings) (Settings, error)

		GetProfile(ctx context.Context, userID string) (ProfileSummary, error)
		Leaderboard(ctx context.Context, filter LeaderboardFilter) (Leaderboard, error)
		Transactions(ctx context.Context, userID string, filter TransactionFilter) (TransactionPage, error)
		AwardPoints(ctx context.Context, userID string, data AwardPoints, awardedBy string) (Outcome, error)
		RecordWorkout(ctx context.Context, wl WorkoutLog) (Outcome, error)
		CheckMilestones(ctx context.Context, userID string) (Outcome, error)
		Stats(ctx context.Context) (Stats, error)

		QueryAchievements(ctx context.Context, filter AchievementFilter) ([]Achievement, error)
		GetAchievement(ctx context.Context, id string) (Achievement, error)
		CreateAchievement(ctx context.Context, na NewAchievement) (Achievement, error)
		UpdateAchievement(ctx context.Context, id string, ua UpdateAchievement) (Achievement, error)
		DeleteAchievement(ctx context.Context, id string) error
		AwardAchievement(ctx context.Context, userID, achievementID string) (Outcome, error)
		UpdateAchievementProgress(ctx context.Context, userID, achievementID string, progress int) (ProgressResult, error)
		SetPrimaryBadge(ctx context.Context, userID, achievementID string) (Profile, error)

		QueryRewards(ctx context.Context, filter RewardFilter) ([]Reward, error)
		GetReward(ctx context.Context, id string) (Reward, error)
		CreateReward(ctx context.Context, nr NewReward) (Reward, error)
		UpdateReward(ctx context.Context, id string, ur UpdateReward) (Reward, error)
		// DeleteReward deactivates the reward instead when it was already redeemed.
		DeleteReward(ctx context.Context, id string) error
		RedeemReward(ctx context.Context, userID, rewardID string) (Redemption, error)
		UpdateRedemptionStatus(ctx context.Context, redemptionID string, status RedemptionStatus) (UserReward, error)

		QueryMilestones(ctx context.Context, filter MilestoneFilter) ([]Milestone, error)
		GetMilestone(ctx context.Context, id string) (Milestone, error)
		CreateMilestone(ctx context.Context, nm NewMilestone) (Milestone, error)
		UpdateMilestone(ctx context.Context, id string, um UpdateMilestone) (Milestone, error)
		DeleteMilestone(ctx context.Context, id string) error
	}

	// UserGetter finds the users owning profiles.
	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	service struct {
		repo    Repository
		db      core.Transactor
		users   UserGetter
		mailSvc core.EmailService
		metrics core.Metrics
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, db core.Transactor, users UserGetter, mailSvc core.EmailService, metrics core.Metrics, logger core.Logger) Service {
	if metrics == nil {
		metrics = core.NopMetrics
	}
	return &service{
		repo:    repo,
		db:      db,
		users:   users,
		mailSvc: mailSvc,
		metrics: metrics,
		logger:  logger,
	}
}

func (svc *service) loadSettings(ctx context.Context, exec ...core.DBExecutor) (Settings, error) {
	s, err := svc.repo.GetSettings(ctx, exec...)
	if err != nil {
		if errors.Cause(err) == ErrSettingsNotFound {
			return DefaultSettings(), nil
		}
		return Settings{}, errors.Wrap(err, "loading settings")
	}
	return s, nil
}

// loadProfile returns the profile of the user, creating it on first access.
func (svc *service) loadProfile(ctx context.Context, exec core.DBExecutor, userID string, forUpdate bool) (Profile, error) {
	p, err := svc.repo.GetProfile(ctx, userID, forUpdate, exec)
	if err == nil {
		return p, nil
	}
	if errors.Cause(err) != ErrProfileNotFound {
		return Profile{}, errors.Wrap(err, "loading profile")
	}

	if _, err = svc.users.GetByID(ctx, userID); err != nil {
		return Profile{}, err
	}
	if _, err = svc.repo.CreateProfile(ctx, NewProfile(userID), exec); err != nil {
		return Profile{}, errors.Wrap(err, "creating profile")
	}
	p, err = svc.repo.GetProfile(ctx, userID, forUpdate, exec)
	if err != nil {
		return Profile{}, errors.Wrap(err, "loading profile")
	}
	return p, nil
}

func (svc *service) GetSettings(ctx context.Context) (Settings, error) {
	var s Settings
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		s, err = svc.repo.GetSettings(ctx, exec)
		if errors.Cause(err) == ErrSettingsNotFound {
			s = DefaultSettings()
			s.UpdatedAt = NowFunc().UTC()
			s, err = svc.repo.SaveSettings(ctx, s, exec)
		}
		return err
	})
	return s, err
}

func (svc *service) UpdateSettings(ctx context.Context, us UpdateSettings) (Settings, error) {
	var s Settings
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		current, err := svc.loadSettings(ctx, exec)
		if err != nil {
			return err
		}
		s = us.Apply(current)
		s.UpdatedAt = NowFunc().UTC()
		if s, err = svc.repo.SaveSettings(ctx, s, exec); err != nil {
			return err
		}
		if s.PointsPerLevel != current.PointsPerLevel || !s.TierThresholds.Equal(current.TierThresholds) {
			if err = svc.repo.RecomputeProgress(ctx, s.PointsPerLevel, s.TierThresholds, exec); err != nil {
				return errors.Wrap(err, "recomputing levels & tiers")
			}
		}
		return nil
	})
	return s, err
}

func (svc *service) GetProfile(ctx context.Context, userID string) (ProfileSummary, error) {
	var sum ProfileSummary
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		settings, err := svc.loadSettings(ctx, exec)
		if err != nil {
			return err
		}
		p, err := svc.loadProfile(ctx, exec, userID, false)
		if err != nil {
			return err
		}
		sum.Profile = p
		sum.Level = NewLevelProgress(p.TotalEarned, settings.PointsPerLevel)
		sum.Tier = NewTierProgress(p.TotalEarned, settings.TierThresholds)

		above, err := svc.repo.CountProfilesAbove(ctx, p.TotalEarned, exec)
		if err != nil {
			return errors.Wrap(err, "computing rank")
		}
		sum.Rank = above + 1

		filter := TransactionFilter{Pagination: core.Pagination{Page: 1, Limit: recentTransactionsCount}}
		if sum.RecentTransactions, _, err = svc.repo.QueryTransactions(ctx, userID, filter, exec); err != nil {
			return errors.Wrap(err, "querying transactions")
		}

		active := true
		achievements, err := svc.repo.QueryAchievements(ctx, AchievementFilter{IsActive: &active}, exec)
		if err != nil {
			return errors.Wrap(err, "querying achievements")
		}
		userAchievements, err := svc.repo.QueryUserAchievements(ctx, userID, exec)
		if err != nil {
			return errors.Wrap(err, "querying user achievements")
		}
		sum.Achievements = achievementsProgress(p, achievements, userAchievements)

		milestones, err := svc.repo.QueryMilestones(ctx, MilestoneFilter{IsActive: &active}, exec)
		if err != nil {
			return errors.Wrap(err, "querying milestones")
		}
		if sum.Milestones, err = svc.repo.QueryUserMilestones(ctx, userID, exec); err != nil {
			return errors.Wrap(err, "querying user milestones")
		}
		sum.NextMilestone = nextMilestone(p, milestones, sum.Milestones)

		if sum.Redemptions, err = svc.repo.QueryUserRewards(ctx, userID, exec); err != nil {
			return errors.Wrap(err, "querying redemptions")
		}
		return nil
	})
	return sum, err
}

func achievementsProgress(p Profile, achievements []Achievement, userAchievements []UserAchievement) []AchievementProgress {
	byID := make(map[string]UserAchievement, len(userAchievements))
	for _, ua := range userAchievements {
		byID[ua.AchievementID] = ua
	}

	res := make([]AchievementProgress, 0, len(achievements))
	for _, a := range achievements {
		ap := AchievementProgress{Achievement: a, Progress: a.Progress(p)}
		if ua, ok := byID[a.ID]; ok {
			ua := ua
			ap.UserAchievement = &ua
			ap.IsCompleted = ua.IsCompleted
			if ua.IsCompleted {
				ap.Progress = 100
			} else if ua.Progress > ap.Progress {
				ap.Progress = ua.Progress
			}
		}
		res = append(res, ap)
	}
	return res
}

// nextMilestone returns the unreached milestone with the lowest target.
func nextMilestone(p Profile, milestones []Milestone, reached []UserMilestone) *Milestone {
	done := make(map[string]bool, len(reached))
	for _, um := range reached {
		done[um.MilestoneID] = true
	}
	var next *Milestone
	for i := range milestones {
		m := milestones[i]
		if done[m.ID] || m.TargetPoints <= p.TotalEarned {
			continue
		}
		if next == nil || m.TargetPoints < next.TargetPoints {
			next = &m
		}
	}
	return next
}

func (svc *service) Leaderboard(ctx context.Context, filter LeaderboardFilter) (Leaderboard, error) {
	var lb Leaderboard
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		settings, err := svc.loadSettings(ctx, exec)
		if err != nil {
			return err
		}
		if !settings.EnableLeaderboards {
			return core.NewValidationError(ErrLeaderboardDisabled)
		}

		filter.Clean()
		entries, total, err := svc.repo.Leaderboard(ctx, filter, exec)
		if err != nil {
			return errors.Wrap(err, "querying leaderboard")
		}
		lb = Leaderboard{Entries: entries, PageInfo: core.NewPageInfo(filter.Pagination, total)}
		return nil
	})
	return lb, err
}

func (svc *service) Transactions(ctx context.Context, userID string, filter TransactionFilter) (TransactionPage, error) {
	filter.Clean()
	txs, total, err := svc.repo.QueryTransactions(ctx, userID, filter)
	if err != nil {
		return TransactionPage{}, errors.Wrap(err, "querying transactions")
	}
	return TransactionPage{Transactions: txs, PageInfo: core.NewPageInfo(filter.Pagination, total)}, nil
}

func (svc *service) AwardPoints(ctx context.Context, userID string, data AwardPoints, awardedBy string) (Outcome, error) {
	var out Outcome
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		settings, err := svc.loadSettings(ctx, exec)
		if err != nil {
			return err
		}
		l, err := svc.newLedger(ctx, exec, settings, userID)
		if err != nil {
			return err
		}
		l.awardedBy = awardedBy

		points := data.Points
		if data.Type.IsCredit() && settings.IsEnabled {
			points = ApplyMultiplier(points, settings.PointsMultiplier)
		}
		desc := data.Description
		if desc == "" {
			desc = fmt.Sprintf("Manual %s of %d points", data.Type, data.Points)
		}
		if err = l.post(points, data.Type, data.Source, data.SourceID, desc); err != nil {
			return err
		}
		if err = l.settle(); err != nil {
			return err
		}
		out, err = l.finish()
		return err
	})
	if err != nil {
		return Outcome{}, err
	}
	svc.notify(ctx, out)
	return out, nil
}

func (svc *service) RecordWorkout(ctx context.Context, wl WorkoutLog) (Outcome, error) {
	var out Outcome
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		settings, err := svc.loadSettings(ctx, exec)
		if err != nil {
			return err
		}
		if !settings.IsEnabled {
			return core.NewValidationError(ErrDisabled)
		}
		l, err := svc.newLedger(ctx, exec, settings, wl.UserID)
		if err != nil {
			return err
		}

		today := Day(NowFunc())
		p := &l.profile
		if !p.LastActivityDate.IsZero() && !Day(p.LastActivityDate).Before(today) {
			return ErrWorkoutAlreadyRecorded
		}

		days, graceUsed := NextStreak(*p, today)
		p.StreakDays = days
		p.LastActivityDate = today
		if graceUsed {
			p.GraceUsedAt = today
		}

		exercises := wl.ExercisesCompleted
		if exercises == 0 {
			exercises = len(wl.ExerciseIDs)
		}
		p.TotalWorkouts++
		p.TotalExercises += exercises

		if counts := countIDs(wl.ExerciseIDs); len(counts) > 0 {
			if err = svc.repo.IncrementExerciseCounts(ctx, p.UserID, counts, exec); err != nil {
				return errors.Wrap(err, "incrementing exercise counts")
			}
			if p.ExerciseCounts == nil {
				p.ExerciseCounts = make(map[string]int, len(counts))
			}
			for id, n := range counts {
				p.ExerciseCounts[id] += n
			}
		}

		points := WorkoutPoints(settings, exercises, wl.Duration)
		desc := fmt.Sprintf("Workout completed: %d exercises in %d minutes", exercises, wl.Duration)
		if err = l.post(points, TransactionEarn, SourceWorkout, wl.WorkoutID, desc); err != nil {
			return err
		}
		if bonus := StreakBonus(settings, days); bonus > 0 {
			desc = fmt.Sprintf("%d day streak bonus", days)
			if err = l.post(bonus, TransactionBonus, SourceStreakBonus, "", desc); err != nil {
				return err
			}
		}

		if err = l.settle(); err != nil {
			return err
		}
		if out, err = l.finish(); err != nil {
			return err
		}
		out.StreakDays = days
		out.GraceDayUsed = graceUsed
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	svc.metrics.WorkoutRecorded()
	svc.notify(ctx, out)
	return out, nil
}

func countIDs(ids []string) map[string]int {
	counts := make(map[string]int, len(ids))
	for _, id := range ids {
		if id != "" {
			counts[id]++
		}
	}
	return counts
}

func (svc *service) CheckMilestones(ctx context.Context, userID string) (Outcome, error) {
	var out Outcome
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		settings, err := svc.loadSettings(ctx, exec)
		if err != nil {
			return err
		}
		l, err := svc.newLedger(ctx, exec, settings, userID)
		if err != nil {
			return err
		}
		if err = l.settle(); err != nil {
			return err
		}
		out, err = l.finish()
		return err
	})
	if err != nil {
		return Outcome{}, err
	}
	svc.notify(ctx, out)
	return out, nil
}

func (svc *service) Stats(ctx context.Context) (Stats, error) {
	return svc.repo.Stats(ctx)
}

func (svc *service) SetPrimaryBadge(ctx context.Context, userID, achievementID string) (Profile, error) {
	var p Profile
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if p, err = svc.loadProfile(ctx, exec, userID, true); err != nil {
			return err
		}
		ua, err := svc.repo.GetUserAchievement(ctx, userID, achievementID, exec)
		if err != nil && errors.Cause(err) != ErrUserAchievementNotFound {
			return errors.Wrap(err, "loading user achievement")
		}
		if err != nil || !ua.IsCompleted {
			return core.NewValidationError(ErrAchievementNotEarned)
		}
		p.PrimaryBadgeID = achievementID
		p.UpdatedAt = NowFunc().UTC()
		p, err = svc.repo.UpdateProfile(ctx, p, exec)
		return err
	})
	return p, err
}

func (svc *service) RedeemReward(ctx context.Context, userID, rewardID string) (Redemption, error) {
	var res Redemption
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		settings, err := svc.loadSettings(ctx, exec)
		if err != nil {
			return err
		}
		if !settings.IsEnabled {
			return core.NewValidationError(ErrDisabled)
		}
		l, err := svc.newLedger(ctx, exec, settings, userID)
		if err != nil {
			return err
		}

		reward, err := svc.repo.GetReward(ctx, rewardID, true, exec)
		if err != nil {
			return err
		}
		now := NowFunc().UTC()
		switch {
		case !reward.IsActive:
			return ErrRewardNotFound
		case reward.IsExpired(now):
			return core.NewValidationError(ErrRewardExpired)
		case reward.Stock <= 0:
			return core.NewValidationError(ErrRewardOutOfStock)
		case l.profile.Tier.Rank() < reward.Tier.Rank():
			return core.NewValidationError(ErrTierTooLow)
		case l.profile.Points < reward.PointCost:
			return core.NewValidationError(ErrInsufficientPoints)
		}

		ur, err := svc.repo.CreateUserReward(ctx, UserReward{
			UserID:     userID,
			RewardID:   reward.ID,
			PointsCost: reward.PointCost,
			Status:     RedemptionPending,
			RedeemedAt: now,
			ExpiresAt:  reward.ExpiresAt,
			UpdatedAt:  now,
		}, exec)
		if err != nil {
			return errors.Wrap(err, "creating redemption")
		}
		desc := fmt.Sprintf("Redeemed reward: %s", reward.Name)
		if err = l.post(reward.PointCost, TransactionSpend, SourceRewardRedemption, ur.ID, desc); err != nil {
			return err
		}

		reward.Stock--
		reward.RedemptionCount++
		reward.UpdatedAt = now
		if reward, err = svc.repo.UpdateReward(ctx, reward, exec); err != nil {
			return errors.Wrap(err, "updating reward")
		}

		out, err := l.finish()
		if err != nil {
			return err
		}
		ur.Reward = &reward
		res = Redemption{Redemption: ur, Reward: reward, Profile: out.Profile}
		return nil
	})
	if err != nil {
		return Redemption{}, err
	}
	svc.metrics.RewardRedeemed(rewardID)
	return res, nil
}

func (svc *service) UpdateRedemptionStatus(ctx context.Context, redemptionID string, status RedemptionStatus) (UserReward, error) {
	var ur UserReward
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if ur, err = svc.repo.GetUserReward(ctx, redemptionID, true, exec); err != nil {
			return err
		}
		if ur.Status != RedemptionPending {
			return core.NewValidationError(ErrRedemptionNotPending)
		}

		now := NowFunc().UTC()
		switch status {
		case RedemptionFulfilled:
		case RedemptionCancelled:
			settings, err := svc.loadSettings(ctx, exec)
			if err != nil {
				return err
			}
			l, err := svc.newLedger(ctx, exec, settings, ur.UserID)
			if err != nil {
				return err
			}
			reward, err := svc.repo.GetReward(ctx, ur.RewardID, true, exec)
			if err != nil {
				return errors.Wrap(err, "loading reward")
			}
			desc := fmt.Sprintf("Refund of cancelled reward: %s", reward.Name)
			if err = l.post(ur.PointsCost, TransactionAdjustment, SourceRewardRefund, ur.ID, desc); err != nil {
				return err
			}
			if _, err = l.finish(); err != nil {
				return err
			}

			reward.Stock++
			if reward.RedemptionCount > 0 {
				reward.RedemptionCount--
			}
			reward.UpdatedAt = now
			if _, err = svc.repo.UpdateReward(ctx, reward, exec); err != nil {
				return errors.Wrap(err, "restocking reward")
			}
		default:
			return core.NewFieldError("status", errors.New("invalid value"))
		}

		ur.Status = status
		ur.UpdatedAt = now
		ur, err = svc.repo.UpdateUserReward(ctx, ur, exec)
		return err
	})
	return ur, err
}

// notify emails the user about achievements unlocked by a committed outcome.
func (svc *service) notify(ctx context.Context, out Outcome) {
	if len(out.Achievements) == 0 || svc.mailSvc == nil {
		return
	}
	settings, err := svc.loadSettings(ctx)
	if err != nil || !settings.EnableNotifications {
		return
	}
	usr, err := svc.users.GetByID(ctx, out.Profile.UserID)
	if err != nil || usr.Email == "" {
		return
	}

	msgs := make([]*core.EmailMessage, 0, len(out.Achievements))
	for _, a := range out.Achievements {
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      fmt.Sprintf("Achievement unlocked: %s", a.Name),
			TemplateName: "achievement_unlocked",
			TemplateData: map[string]interface{}{
				"Name":        usr.Name,
				"Achievement": a.Name,
				"Points":      a.PointValue,
			},
		})
	}
	svc.mailSvc.SendMessages(msgs...)
}
