package dummydb

import (
	"context"
	"sort"

	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/core/gamification"
)

type gamificationRepository struct {
	db *DB
}

var _ gamification.Repository = (*gamificationRepository)(nil) // interface compliance check

func NewGamificationRepository(db *DB) gamification.Repository {
	return &gamificationRepository{db: db}
}

// Settings

func (repo *gamificationRepository) GetSettings(ctx context.Context, exec ...core.DBExecutor) (gamification.Settings, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if repo.db.data.settings == nil {
		return gamification.Settings{}, gamification.ErrSettingsNotFound
	}
	s := *repo.db.data.settings
	s.TierThresholds = copyThresholds(s.TierThresholds)
	return s, nil
}

func (repo *gamificationRepository) SaveSettings(ctx context.Context, s gamification.Settings, exec ...core.DBExecutor) (gamification.Settings, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	s.TierThresholds = copyThresholds(s.TierThresholds)
	repo.db.data.settings = &s
	return s, nil
}

func copyThresholds(th gamification.TierThresholds) gamification.TierThresholds {
	if th == nil {
		return nil
	}
	c := make(gamification.TierThresholds, len(th))
	for k, v := range th {
		c[k] = v
	}
	return c
}

// Profiles

func (repo *gamificationRepository) profile(userID string) (gamification.Profile, bool) {
	p, ok := repo.db.data.profiles[userID]
	if !ok {
		return gamification.Profile{}, false
	}
	counts := repo.db.data.exerciseCounts[userID]
	p.ExerciseCounts = make(map[string]int, len(counts))
	for k, v := range counts {
		p.ExerciseCounts[k] = v
	}
	return p, true
}

func (repo *gamificationRepository) GetProfile(ctx context.Context, userID string, forUpdate bool, exec ...core.DBExecutor) (gamification.Profile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.profile(userID); ok {
		return p, nil
	}
	return gamification.Profile{}, gamification.ErrProfileNotFound
}

func (repo *gamificationRepository) CreateProfile(ctx context.Context, p gamification.Profile, exec ...core.DBExecutor) (gamification.Profile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if existing, ok := repo.profile(p.UserID); ok {
		return existing, nil
	}
	p.ExerciseCounts = nil
	repo.db.data.profiles[p.UserID] = p
	p.ExerciseCounts = map[string]int{}
	return p, nil
}

func (repo *gamificationRepository) UpdateProfile(ctx context.Context, p gamification.Profile, exec ...core.DBExecutor) (gamification.Profile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.data.profiles[p.UserID]; !ok {
		return gamification.Profile{}, gamification.ErrProfileNotFound
	}
	counts := p.ExerciseCounts
	p.ExerciseCounts = nil
	repo.db.data.profiles[p.UserID] = p
	p.ExerciseCounts = counts
	return p, nil
}

func (repo *gamificationRepository) IncrementExerciseCounts(ctx context.Context, userID string, counts map[string]int, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	current, ok := repo.db.data.exerciseCounts[userID]
	if !ok {
		current = make(map[string]int, len(counts))
		repo.db.data.exerciseCounts[userID] = current
	}
	for id, n := range counts {
		current[id] += n
	}
	return nil
}

func (repo *gamificationRepository) Leaderboard(ctx context.Context, filter gamification.LeaderboardFilter, exec ...core.DBExecutor) ([]gamification.LeaderboardEntry, int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	entries := make([]gamification.LeaderboardEntry, 0, len(repo.db.data.profiles))
	for _, p := range repo.db.data.profiles {
		usr, ok := repo.db.data.users[p.UserID]
		if !ok || !usr.IsActive {
			continue
		}
		entries = append(entries, gamification.LeaderboardEntry{
			UserID:         p.UserID,
			Name:           usr.Name,
			Username:       usr.Username,
			Points:         p.Points,
			TotalEarned:    p.TotalEarned,
			Level:          p.Level,
			Tier:           p.Tier,
			StreakDays:     p.StreakDays,
			PrimaryBadgeID: p.PrimaryBadgeID,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TotalEarned != entries[j].TotalEarned {
			return entries[i].TotalEarned > entries[j].TotalEarned
		}
		return entries[i].Username < entries[j].Username
	})

	// competition ranking: ties share a rank
	ranked := make([]gamification.LeaderboardEntry, 0, len(entries))
	for i := range entries {
		if i > 0 && entries[i].TotalEarned == entries[i-1].TotalEarned {
			entries[i].Rank = entries[i-1].Rank
		} else {
			entries[i].Rank = i + 1
		}
		if filter.Tier == "" || entries[i].Tier == filter.Tier {
			ranked = append(ranked, entries[i])
		}
	}

	start, end := page(filter.Pagination, len(ranked))
	return ranked[start:end], len(ranked), nil
}

func (repo *gamificationRepository) CountProfilesAbove(ctx context.Context, totalEarned int, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var n int
	for _, p := range repo.db.data.profiles {
		if usr, ok := repo.db.data.users[p.UserID]; ok && usr.IsActive && p.TotalEarned > totalEarned {
			n++
		}
	}
	return n, nil
}

func (repo *gamificationRepository) RecomputeProgress(ctx context.Context, pointsPerLevel int, thresholds gamification.TierThresholds, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, p := range repo.db.data.profiles {
		p.Level = gamification.Level(p.TotalEarned, pointsPerLevel)
		p.Tier = gamification.TierFor(p.TotalEarned, thresholds)
		repo.db.data.profiles[id] = p
	}
	return nil
}

func (repo *gamificationRepository) ClearPrimaryBadge(ctx context.Context, achievementID string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, p := range repo.db.data.profiles {
		if p.PrimaryBadgeID == achievementID {
			p.PrimaryBadgeID = ""
			repo.db.data.profiles[id] = p
		}
	}
	return nil
}

func (repo *gamificationRepository) Stats(ctx context.Context, exec ...core.DBExecutor) (gamification.Stats, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var (
		stats  gamification.Stats
		streak int
	)
	for _, p := range repo.db.data.profiles {
		stats.Profiles++
		stats.TotalPointsEarned += p.TotalEarned
		streak += p.StreakDays
	}
	if stats.Profiles > 0 {
		stats.AverageStreak = float64(streak) / float64(stats.Profiles)
	}
	for _, ur := range repo.db.data.userRewards {
		if ur.Status != gamification.RedemptionCancelled {
			stats.TotalRedemptions++
		}
	}
	for _, ua := range repo.db.data.userAchievements {
		if ua.IsCompleted {
			stats.AchievementsCompleted++
		}
	}
	for _, a := range repo.db.data.achievements {
		if a.IsActive {
			stats.ActiveAchievements++
		}
	}
	for _, r := range repo.db.data.rewards {
		if r.IsActive {
			stats.ActiveRewards++
		}
	}
	return stats, nil
}

// Transactions

func (repo *gamificationRepository) CreateTransaction(ctx context.Context, t gamification.PointTransaction, exec ...core.DBExecutor) (gamification.PointTransaction, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	t.ID = newID()
	repo.db.data.transactions = append(repo.db.data.transactions, t)
	return t, nil
}

func (repo *gamificationRepository) QueryTransactions(ctx context.Context, userID string, filter gamification.TransactionFilter, exec ...core.DBExecutor) ([]gamification.PointTransaction, int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	// newest first: transactions are stored in insertion order
	all := repo.db.data.transactions
	txs := make([]gamification.PointTransaction, 0)
	for i := len(all) - 1; i >= 0; i-- {
		t := all[i]
		if t.UserID != userID ||
			(filter.Type != "" && t.Type != filter.Type) ||
			(filter.Source != "" && t.Source != filter.Source) {
			continue
		}
		txs = append(txs, t)
	}
	start, end := page(filter.Pagination, len(txs))
	return txs[start:end], len(txs), nil
}

// Achievements

func (repo *gamificationRepository) QueryAchievements(ctx context.Context, filter gamification.AchievementFilter, exec ...core.DBExecutor) ([]gamification.Achievement, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	res := make([]gamification.Achievement, 0, len(repo.db.data.achievements))
	for _, a := range repo.db.data.achievements {
		if (filter.IsActive != nil && a.IsActive != *filter.IsActive) || (filter.Tier != "" && a.Tier != filter.Tier) {
			continue
		}
		res = append(res, a)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Tier.Rank() != res[j].Tier.Rank() {
			return res[i].Tier.Rank() < res[j].Tier.Rank()
		}
		return res[i].Name < res[j].Name
	})
	return res, nil
}

func (repo *gamificationRepository) GetAchievement(ctx context.Context, id string, exec ...core.DBExecutor) (gamification.Achievement, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if a, ok := repo.db.data.achievements[id]; ok {
		return a, nil
	}
	return gamification.Achievement{}, gamification.ErrAchievementNotFound
}

func (repo *gamificationRepository) CreateAchievement(ctx context.Context, a gamification.Achievement, exec ...core.DBExecutor) (gamification.Achievement, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a.ID = newID()
	repo.db.data.achievements[a.ID] = a
	return a, nil
}

func (repo *gamificationRepository) UpdateAchievement(ctx context.Context, a gamification.Achievement, exec ...core.DBExecutor) (gamification.Achievement, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.data.achievements[a.ID]; !ok {
		return gamification.Achievement{}, gamification.ErrAchievementNotFound
	}
	repo.db.data.achievements[a.ID] = a
	return a, nil
}

func (repo *gamificationRepository) DeleteAchievement(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.data.achievements[id]; !ok {
		return gamification.ErrAchievementNotFound
	}
	delete(repo.db.data.achievements, id)
	for uaID, ua := range repo.db.data.userAchievements {
		if ua.AchievementID == id {
			delete(repo.db.data.userAchievements, uaID)
		}
	}
	return nil
}

func (repo *gamificationRepository) GetUserAchievement(ctx context.Context, userID, achievementID string, exec ...core.DBExecutor) (gamification.UserAchievement, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, ua := range repo.db.data.userAchievements {
		if ua.UserID == userID && ua.AchievementID == achievementID {
			return repo.withAchievement(ua), nil
		}
	}
	return gamification.UserAchievement{}, gamification.ErrUserAchievementNotFound
}

func (repo *gamificationRepository) withAchievement(ua gamification.UserAchievement) gamification.UserAchievement {
	if a, ok := repo.db.data.achievements[ua.AchievementID]; ok {
		ua.Achievement = &a
	}
	return ua
}

func (repo *gamificationRepository) QueryUserAchievements(ctx context.Context, userID string, exec ...core.DBExecutor) ([]gamification.UserAchievement, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	res := make([]gamification.UserAchievement, 0)
	for _, ua := range repo.db.data.userAchievements {
		if ua.UserID == userID {
			res = append(res, repo.withAchievement(ua))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (repo *gamificationRepository) SaveUserAchievement(ctx context.Context, ua gamification.UserAchievement, exec ...core.DBExecutor) (gamification.UserAchievement, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, existing := range repo.db.data.userAchievements {
		if existing.UserID == ua.UserID && existing.AchievementID == ua.AchievementID {
			ua.ID = id
			ua.CreatedAt = existing.CreatedAt
			break
		}
	}
	if ua.ID == "" {
		ua.ID = newID()
	}
	ua.Achievement = nil
	repo.db.data.userAchievements[ua.ID] = ua
	return repo.withAchievement(ua), nil
}

// Rewards

func (repo *gamificationRepository) QueryRewards(ctx context.Context, filter gamification.RewardFilter, exec ...core.DBExecutor) ([]gamification.Reward, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	now := gamification.NowFunc()
	res := make([]gamification.Reward, 0, len(repo.db.data.rewards))
	for _, r := range repo.db.data.rewards {
		if (filter.IsActive != nil && r.IsActive != *filter.IsActive) || (filter.Tier != "" && r.Tier != filter.Tier) {
			continue
		}
		if filter.Available && (!r.IsActive || r.Stock <= 0 || r.IsExpired(now)) {
			continue
		}
		res = append(res, r)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].PointCost != res[j].PointCost {
			return res[i].PointCost < res[j].PointCost
		}
		return res[i].Name < res[j].Name
	})
	return res, nil
}

func (repo *gamificationRepository) GetReward(ctx context.Context, id string, forUpdate bool, exec ...core.DBExecutor) (gamification.Reward, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if r, ok := repo.db.data.rewards[id]; ok {
		return r, nil
	}
	return gamification.Reward{}, gamification.ErrRewardNotFound
}

func (repo *gamificationRepository) CreateReward(ctx context.Context, r gamification.Reward, exec ...core.DBExecutor) (gamification.Reward, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	r.ID = newID()
	repo.db.data.rewards[r.ID] = r
	return r, nil
}

func (repo *gamificationRepository) UpdateReward(ctx context.Context, r gamification.Reward, exec ...core.DBExecutor) (gamification.Reward, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.data.rewards[r.ID]; !ok {
		return gamification.Reward{}, gamification.ErrRewardNotFound
	}
	repo.db.data.rewards[r.ID] = r
	return r, nil
}

func (repo *gamificationRepository) RewardHasRedemptions(ctx context.Context, rewardID string, exec ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, ur := range repo.db.data.userRewards {
		if ur.RewardID == rewardID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *gamificationRepository) DeleteReward(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.data.rewards[id]; !ok {
		return gamification.ErrRewardNotFound
	}
	delete(repo.db.data.rewards, id)
	for urID, ur := range repo.db.data.userRewards {
		if ur.RewardID == id {
			delete(repo.db.data.userRewards, urID)
		}
	}
	return nil
}

func (repo *gamificationRepository) CreateUserReward(ctx context.Context, ur gamification.UserReward, exec ...core.DBExecutor) (gamification.UserReward, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	ur.ID = newID()
	ur.Reward = nil
	repo.db.data.userRewards[ur.ID] = ur
	return repo.withReward(ur), nil
}

func (repo *gamificationRepository) withReward(ur gamification.UserReward) gamification.UserReward {
	if r, ok := repo.db.data.rewards[ur.RewardID]; ok {
		ur.Reward = &r
	}
	return ur
}

func (repo *gamificationRepository) GetUserReward(ctx context.Context, id string, forUpdate bool, exec ...core.DBExecutor) (gamification.UserReward, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if ur, ok := repo.db.data.userRewards[id]; ok {
		return repo.withReward(ur), nil
	}
	return gamification.UserReward{}, gamification.ErrRedemptionNotFound
}

func (repo *gamificationRepository) UpdateUserReward(ctx context.Context, ur gamification.UserReward, exec ...core.DBExecutor) (gamification.UserReward, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.data.userRewards[ur.ID]; !ok {
		return gamification.UserReward{}, gamification.ErrRedemptionNotFound
	}
	ur.Reward = nil
	repo.db.data.userRewards[ur.ID] = ur
	return repo.withReward(ur), nil
}

func (repo *gamificationRepository) QueryUserRewards(ctx context.Context, userID string, exec ...core.DBExecutor) ([]gamification.UserReward, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	res := make([]gamification.UserReward, 0)
	for _, ur := range repo.db.data.userRewards {
		if ur.UserID == userID {
			res = append(res, repo.withReward(ur))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].RedeemedAt.After(res[j].RedeemedAt) })
	return res, nil
}

// Milestones

func (repo *gamificationRepository) QueryMilestones(ctx context.Context, filter gamification.MilestoneFilter, exec ...core.DBExecutor) ([]gamification.Milestone, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	res := make([]gamification.Milestone, 0, len(repo.db.data.milestones))
	for _, m := range repo.db.data.milestones {
		if (filter.IsActive != nil && m.IsActive != *filter.IsActive) || (filter.Tier != "" && m.Tier != filter.Tier) {
			continue
		}
		res = append(res, m)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].TargetPoints != res[j].TargetPoints {
			return res[i].TargetPoints < res[j].TargetPoints
		}
		return res[i].Name < res[j].Name
	})
	return res, nil
}

func (repo *gamificationRepository) GetMilestone(ctx context.Context, id string, exec ...core.DBExecutor) (gamification.Milestone, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if m, ok := repo.db.data.milestones[id]; ok {
		return m, nil
	}
	return gamification.Milestone{}, gamification.ErrMilestoneNotFound
}

func (repo *gamificationRepository) CreateMilestone(ctx context.Context, m gamification.Milestone, exec ...core.DBExecutor) (gamification.Milestone, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	m.ID = newID()
	repo.db.data.milestones[m.ID] = m
	return m, nil
}

func (repo *gamificationRepository) UpdateMilestone(ctx context.Context, m gamification.Milestone, exec ...core.DBExecutor) (gamification.Milestone, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.data.milestones[m.ID]; !ok {
		return gamification.Milestone{}, gamification.ErrMilestoneNotFound
	}
	repo.db.data.milestones[m.ID] = m
	return m, nil
}

func (repo *gamificationRepository) DeleteMilestone(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.data.milestones[id]; !ok {
		return gamification.ErrMilestoneNotFound
	}
	delete(repo.db.data.milestones, id)
	for umID, um := range repo.db.data.userMilestones {
		if um.MilestoneID == id {
			delete(repo.db.data.userMilestones, umID)
		}
	}
	return nil
}

func (repo *gamificationRepository) QueryUserMilestones(ctx context.Context, userID string, exec ...core.DBExecutor) ([]gamification.UserMilestone, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	res := make([]gamification.UserMilestone, 0)
	for _, um := range repo.db.data.userMilestones {
		if um.UserID != userID {
			continue
		}
		if m, ok := repo.db.data.milestones[um.MilestoneID]; ok {
			um.Milestone = &m
		}
		res = append(res, um)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ReachedAt.Before(res[j].ReachedAt) })
	return res, nil
}

func (repo *gamificationRepository) CreateUserMilestone(ctx context.Context, um gamification.UserMilestone, exec ...core.DBExecutor) (gamification.UserMilestone, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.data.userMilestones {
		if existing.UserID == um.UserID && existing.MilestoneID == um.MilestoneID {
			return existing, nil
		}
	}
	um.ID = newID()
	um.Milestone = nil
	repo.db.data.userMilestones[um.ID] = um
	return um, nil
}
