package gamification

import (
	"context"

	"github.com/pkg/errors"

	"github.com/swanstudios/studio/core"
)

const (
	defaultPointValue       = 100
	defaultRequirementValue = 1
	defaultRewardStock      = 10
)

// Achievements

func (svc *service) QueryAchievements(ctx context.Context, filter AchievementFilter) ([]Achievement, error) {
	return svc.repo.QueryAchievements(ctx, filter)
}

func (svc *service) GetAchievement(ctx context.Context, id string) (Achievement, error) {
	return svc.repo.GetAchievement(ctx, id)
}

func (svc *service) CreateAchievement(ctx context.Context, na NewAchievement) (Achievement, error) {
	now := NowFunc().UTC()
	a := Achievement{
		Name:             na.Name,
		Description:      na.Description,
		Icon:             na.Icon,
		PointValue:       defaultPointValue,
		RequirementType:  na.RequirementType,
		RequirementValue: defaultRequirementValue,
		Tier:             na.Tier,
		ExerciseID:       na.ExerciseID,
		BadgeImageURL:    na.BadgeImageURL,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if na.PointValue != nil {
		a.PointValue = *na.PointValue
	}
	if na.RequirementValue != nil {
		a.RequirementValue = *na.RequirementValue
	}
	if na.IsActive != nil {
		a.IsActive = *na.IsActive
	}
	if a.Tier == "" {
		a.Tier = TierBronze
	}
	return svc.repo.CreateAchievement(ctx, a)
}

func (svc *service) UpdateAchievement(ctx context.Context, id string, ua UpdateAchievement) (Achievement, error) {
	a, err := svc.repo.GetAchievement(ctx, id)
	if err != nil {
		return Achievement{}, err
	}
	if ua.Name != nil {
		a.Name = core.CleanString(*ua.Name)
	}
	if ua.Description != nil {
		a.Description = core.CleanString(*ua.Description)
	}
	if ua.Icon != nil {
		a.Icon = core.CleanString(*ua.Icon)
	}
	if ua.PointValue != nil {
		a.PointValue = *ua.PointValue
	}
	if ua.RequirementType != nil {
		a.RequirementType = *ua.RequirementType
	}
	if ua.RequirementValue != nil {
		a.RequirementValue = *ua.RequirementValue
	}
	if ua.Tier != nil {
		a.Tier = *ua.Tier
	}
	if ua.ExerciseID != nil {
		a.ExerciseID = core.CleanString(*ua.ExerciseID)
	}
	if ua.BadgeImageURL != nil {
		a.BadgeImageURL = core.CleanString(*ua.BadgeImageURL)
	}
	if ua.IsActive != nil {
		a.IsActive = *ua.IsActive
	}
	if a.RequirementType == RequirementSpecificExercise && a.ExerciseID == "" {
		return Achievement{}, core.NewFieldError("exercise_id", errors.New("this field is required"))
	}
	a.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateAchievement(ctx, a)
}

func (svc *service) DeleteAchievement(ctx context.Context, id string) error {
	return svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.repo.GetAchievement(ctx, id, exec); err != nil {
			return err
		}
		if err := svc.repo.ClearPrimaryBadge(ctx, id, exec); err != nil {
			return errors.Wrap(err, "clearing primary badges")
		}
		return svc.repo.DeleteAchievement(ctx, id, exec)
	})
}

func (svc *service) AwardAchievement(ctx context.Context, userID, achievementID string) (Outcome, error) {
	var out Outcome
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		settings, err := svc.loadSettings(ctx, exec)
		if err != nil {
			return err
		}
		a, err := svc.repo.GetAchievement(ctx, achievementID, exec)
		if err != nil {
			return err
		}
		l, err := svc.newLedger(ctx, exec, settings, userID)
		if err != nil {
			return err
		}

		existing, err := svc.userAchievement(ctx, exec, userID, achievementID)
		if err != nil {
			return err
		}
		if existing != nil && existing.IsCompleted {
			return core.NewValidationError(ErrAchievementAlreadyEarned)
		}
		if _, err = l.completeAchievement(a, existing); err != nil {
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

func (svc *service) UpdateAchievementProgress(ctx context.Context, userID, achievementID string, progress int) (ProgressResult, error) {
	var res ProgressResult
	progress = ClampProgress(progress)
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		a, err := svc.repo.GetAchievement(ctx, achievementID, exec)
		if err != nil {
			return err
		}
		existing, err := svc.userAchievement(ctx, exec, userID, achievementID)
		if err != nil {
			return err
		}
		if existing != nil && existing.IsCompleted {
			res.UserAchievement = *existing
			return nil
		}

		if progress < 100 {
			if _, err = svc.loadProfile(ctx, exec, userID, false); err != nil {
				return err
			}
			now := NowFunc().UTC()
			ua := UserAchievement{UserID: userID, AchievementID: achievementID, CreatedAt: now}
			if existing != nil {
				ua = *existing
			}
			ua.Progress = progress
			ua.UpdatedAt = now
			res.UserAchievement, err = svc.repo.SaveUserAchievement(ctx, ua, exec)
			return err
		}

		settings, err := svc.loadSettings(ctx, exec)
		if err != nil {
			return err
		}
		l, err := svc.newLedger(ctx, exec, settings, userID)
		if err != nil {
			return err
		}
		if res.UserAchievement, err = l.completeAchievement(a, existing); err != nil {
			return err
		}
		if err = l.settle(); err != nil {
			return err
		}
		out, err := l.finish()
		if err != nil {
			return err
		}
		res.Outcome = &out
		return nil
	})
	if err != nil {
		return ProgressResult{}, err
	}
	if res.Outcome != nil {
		svc.notify(ctx, *res.Outcome)
	}
	return res, nil
}

// userAchievement returns the user achievement, nil if the user has no progress on it yet.
func (svc *service) userAchievement(ctx context.Context, exec core.DBExecutor, userID, achievementID string) (*UserAchievement, error) {
	ua, err := svc.repo.GetUserAchievement(ctx, userID, achievementID, exec)
	if err != nil {
		if errors.Cause(err) == ErrUserAchievementNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "loading user achievement")
	}
	return &ua, nil
}

// Rewards

func (svc *service) QueryRewards(ctx context.Context, filter RewardFilter) ([]Reward, error) {
	return svc.repo.QueryRewards(ctx, filter)
}

func (svc *service) GetReward(ctx context.Context, id string) (Reward, error) {
	return svc.repo.GetReward(ctx, id, false)
}

func (svc *service) CreateReward(ctx context.Context, nr NewReward) (Reward, error) {
	now := NowFunc().UTC()
	r := Reward{
		Name:        nr.Name,
		Description: nr.Description,
		Icon:        nr.Icon,
		PointCost:   nr.PointCost,
		Tier:        nr.Tier,
		Stock:       defaultRewardStock,
		IsActive:    true,
		ExpiresAt:   nr.ExpiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if nr.Stock != nil {
		r.Stock = *nr.Stock
	}
	if nr.IsActive != nil {
		r.IsActive = *nr.IsActive
	}
	if r.Tier == "" {
		r.Tier = TierBronze
	}
	return svc.repo.CreateReward(ctx, r)
}

func (svc *service) UpdateReward(ctx context.Context, id string, ur UpdateReward) (Reward, error) {
	var r Reward
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if r, err = svc.repo.GetReward(ctx, id, true, exec); err != nil {
			return err
		}
		if ur.Name != nil {
			r.Name = core.CleanString(*ur.Name)
		}
		if ur.Description != nil {
			r.Description = core.CleanString(*ur.Description)
		}
		if ur.Icon != nil {
			r.Icon = core.CleanString(*ur.Icon)
		}
		if ur.PointCost != nil {
			r.PointCost = *ur.PointCost
		}
		if ur.Tier != nil {
			r.Tier = *ur.Tier
		}
		if ur.Stock != nil {
			r.Stock = *ur.Stock
		}
		if ur.IsActive != nil {
			r.IsActive = *ur.IsActive
		}
		if ur.ExpiresAt != nil {
			r.ExpiresAt = *ur.ExpiresAt
		}
		r.UpdatedAt = NowFunc().UTC()
		r, err = svc.repo.UpdateReward(ctx, r, exec)
		return err
	})
	return r, err
}

func (svc *service) DeleteReward(ctx context.Context, id string) error {
	return svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		r, err := svc.repo.GetReward(ctx, id, true, exec)
		if err != nil {
			return err
		}
		redeemed, err := svc.repo.RewardHasRedemptions(ctx, r.ID, exec)
		if err != nil {
			return errors.Wrap(err, "checking reward redemptions")
		}
		if !redeemed {
			return svc.repo.DeleteReward(ctx, id, exec)
		}
		r.IsActive = false
		r.UpdatedAt = NowFunc().UTC()
		_, err = svc.repo.UpdateReward(ctx, r, exec)
		return err
	})
}

// Milestones

func (svc *service) QueryMilestones(ctx context.Context, filter MilestoneFilter) ([]Milestone, error) {
	return svc.repo.QueryMilestones(ctx, filter)
}

func (svc *service) GetMilestone(ctx context.Context, id string) (Milestone, error) {
	return svc.repo.GetMilestone(ctx, id)
}

func (svc *service) CreateMilestone(ctx context.Context, nm NewMilestone) (Milestone, error) {
	now := NowFunc().UTC()
	m := Milestone{
		Name:         nm.Name,
		Description:  nm.Description,
		TargetPoints: nm.TargetPoints,
		BonusPoints:  nm.BonusPoints,
		Tier:         nm.Tier,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if nm.IsActive != nil {
		m.IsActive = *nm.IsActive
	}
	if m.Tier == "" {
		m.Tier = TierBronze
	}
	return svc.repo.CreateMilestone(ctx, m)
}

func (svc *service) UpdateMilestone(ctx context.Context, id string, um UpdateMilestone) (Milestone, error) {
	m, err := svc.repo.GetMilestone(ctx, id)
	if err != nil {
		return Milestone{}, err
	}
	if um.Name != nil {
		m.Name = core.CleanString(*um.Name)
	}
	if um.Description != nil {
		m.Description = core.CleanString(*um.Description)
	}
	if um.TargetPoints != nil {
		m.TargetPoints = *um.TargetPoints
	}
	if um.BonusPoints != nil {
		m.BonusPoints = *um.BonusPoints
	}
	if um.Tier != nil {
		m.Tier = *um.Tier
	}
	if um.IsActive != nil {
		m.IsActive = *um.IsActive
	}
	m.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateMilestone(ctx, m)
}

func (svc *service) DeleteMilestone(ctx context.Context, id string) error {
	if _, err := svc.repo.GetMilestone(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteMilestone(ctx, id)
}
