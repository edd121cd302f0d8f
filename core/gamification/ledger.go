package gamification

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/swanstudios/studio/core"
)

// ledger applies points operations to a locked profile within a single transaction.
type ledger struct {
	svc       *service
	ctx       context.Context
	exec      core.DBExecutor
	settings  Settings
	profile   Profile
	awardedBy string

	startLevel int
	startTier  Tier
	out        Outcome
}

func (svc *service) newLedger(ctx context.Context, exec core.DBExecutor, settings Settings, userID string) (*ledger, error) {
	p, err := svc.loadProfile(ctx, exec, userID, true)
	if err != nil {
		return nil, err
	}
	return &ledger{
		svc:        svc,
		ctx:        ctx,
		exec:       exec,
		settings:   settings,
		profile:    p,
		startLevel: p.Level,
		startTier:  p.Tier,
	}, nil
}

// post writes a ledger entry & applies it to the profile balance.
// points is the absolute amount for debits and credits, and signed for adjustments.
func (l *ledger) post(points int, typ TransactionType, src Source, srcID, desc string) error {
	p := &l.profile
	signed := points
	switch {
	case typ.IsCredit():
		if points < 0 {
			return core.NewFieldError("points", ErrPointsNotPositive)
		}
		if points == 0 {
			return nil
		}
		p.Points += points
		p.TotalEarned += points
	case typ.IsDebit():
		if points <= 0 {
			return core.NewFieldError("points", ErrPointsNotPositive)
		}
		if p.Points < points {
			return core.NewValidationError(ErrInsufficientPoints)
		}
		p.Points -= points
		signed = -points
	case typ == TransactionAdjustment:
		if points == 0 {
			return nil
		}
		if p.Points+points < 0 {
			return core.NewValidationError(ErrInsufficientPoints)
		}
		p.Points += points
	default:
		return errors.Errorf("unknown transaction type %q", typ)
	}
	l.refresh()

	tx, err := l.svc.repo.CreateTransaction(l.ctx, PointTransaction{
		UserID:      p.UserID,
		Points:      signed,
		Balance:     p.Points,
		Type:        typ,
		Source:      src,
		SourceID:    srcID,
		Description: desc,
		AwardedBy:   l.awardedBy,
		CreatedAt:   NowFunc().UTC(),
	}, l.exec)
	if err != nil {
		return errors.Wrap(err, "creating transaction")
	}
	l.out.Transactions = append(l.out.Transactions, tx)
	if signed > 0 && typ != TransactionAdjustment {
		l.out.PointsEarned += signed
		l.svc.metrics.PointsAwarded(string(src), signed)
	}
	return nil
}

// refresh recomputes the derived level & tier.
func (l *ledger) refresh() {
	l.profile.Level = Level(l.profile.TotalEarned, l.settings.PointsPerLevel)
	l.profile.Tier = TierFor(l.profile.TotalEarned, l.settings.TierThresholds)
}

// settle awards the milestones & achievements unlocked by the profile until nothing changes.
func (l *ledger) settle() error {
	uid := l.profile.UserID
	active := true

	milestones, err := l.svc.repo.QueryMilestones(l.ctx, MilestoneFilter{IsActive: &active}, l.exec)
	if err != nil {
		return errors.Wrap(err, "querying milestones")
	}
	reached, err := l.svc.repo.QueryUserMilestones(l.ctx, uid, l.exec)
	if err != nil {
		return errors.Wrap(err, "querying user milestones")
	}
	reachedIDs := make(map[string]bool, len(reached))
	for _, um := range reached {
		reachedIDs[um.MilestoneID] = true
	}

	var (
		achievements []Achievement
		userAchs     = make(map[string]UserAchievement)
	)
	if l.settings.AutoAwardAchievements {
		if achievements, err = l.svc.repo.QueryAchievements(l.ctx, AchievementFilter{IsActive: &active}, l.exec); err != nil {
			return errors.Wrap(err, "querying achievements")
		}
		uas, err := l.svc.repo.QueryUserAchievements(l.ctx, uid, l.exec)
		if err != nil {
			return errors.Wrap(err, "querying user achievements")
		}
		for _, ua := range uas {
			userAchs[ua.AchievementID] = ua
		}
	}

	l.refresh()
	for changed := true; changed; {
		changed = false

		for _, m := range milestones {
			if reachedIDs[m.ID] || l.profile.TotalEarned < m.TargetPoints {
				continue
			}
			if err = l.reachMilestone(m); err != nil {
				return err
			}
			reachedIDs[m.ID] = true
			changed = true
		}

		for _, a := range achievements {
			ua, ok := userAchs[a.ID]
			if (ok && ua.IsCompleted) || !a.IsUnlocked(l.profile) {
				continue
			}
			var existing *UserAchievement
			if ok {
				existing = &ua
			}
			if ua, err = l.completeAchievement(a, existing); err != nil {
				return err
			}
			userAchs[a.ID] = ua
			changed = true
		}
	}
	return nil
}

func (l *ledger) reachMilestone(m Milestone) error {
	_, err := l.svc.repo.CreateUserMilestone(l.ctx, UserMilestone{
		UserID:             l.profile.UserID,
		MilestoneID:        m.ID,
		ReachedAt:          NowFunc().UTC(),
		BonusPointsAwarded: m.BonusPoints,
	}, l.exec)
	if err != nil {
		return errors.Wrap(err, "creating user milestone")
	}
	if m.BonusPoints > 0 {
		desc := fmt.Sprintf("Milestone reached: %s", m.Name)
		if err = l.post(m.BonusPoints, TransactionBonus, SourceMilestone, m.ID, desc); err != nil {
			return err
		}
	}
	l.out.Milestones = append(l.out.Milestones, m)
	return nil
}

// completeAchievement marks the achievement as completed & earns its points.
func (l *ledger) completeAchievement(a Achievement, existing *UserAchievement) (UserAchievement, error) {
	now := NowFunc().UTC()
	ua := UserAchievement{UserID: l.profile.UserID, AchievementID: a.ID, CreatedAt: now}
	if existing != nil {
		ua = *existing
	}
	ua.Progress = 100
	ua.IsCompleted = true
	ua.EarnedAt = now
	ua.PointsAwarded = a.PointValue
	ua.UpdatedAt = now

	ua, err := l.svc.repo.SaveUserAchievement(l.ctx, ua, l.exec)
	if err != nil {
		return UserAchievement{}, errors.Wrap(err, "saving user achievement")
	}
	if a.PointValue > 0 {
		desc := fmt.Sprintf("Achievement unlocked: %s", a.Name)
		if err = l.post(a.PointValue, TransactionEarn, SourceAchievement, a.ID, desc); err != nil {
			return UserAchievement{}, err
		}
	}
	l.out.Achievements = append(l.out.Achievements, a)
	l.svc.metrics.AchievementEarned(a.ID)
	return ua, nil
}

// finish saves the profile & returns the outcome of the operations.
func (l *ledger) finish() (Outcome, error) {
	l.refresh()
	l.profile.UpdatedAt = NowFunc().UTC()
	p, err := l.svc.repo.UpdateProfile(l.ctx, l.profile, l.exec)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "updating profile")
	}
	if p.ExerciseCounts == nil {
		p.ExerciseCounts = l.profile.ExerciseCounts
	}
	l.profile = p

	out := l.out
	out.Profile = p
	out.LeveledUp = p.Level > l.startLevel
	out.TierChanged = p.Tier != l.startTier
	out.PreviousTier = l.startTier
	return out, nil
}
