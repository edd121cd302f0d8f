package sqlxrepos_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/core/gamification"
	"github.com/swanstudios/studio/core/user"
	"github.com/swanstudios/studio/storage/database"
	sqlxrepos "github.com/swanstudios/studio/storage/database/sqlx"
)

func createUser(t *testing.T, db *sqlx.DB, username string, active bool) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr, err := sqlxrepos.NewUserRepository(db).CreateUser(context.Background(), user.User{
		Name:      username,
		Username:  username,
		Email:     username + "@swan.test",
		IsActive:  active,
		Roles:     []string{"client"},
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
	return usr
}

func createProfile(t *testing.T, repo gamification.Repository, userID string, totalEarned int) gamification.Profile {
	t.Helper()
	ctx := context.Background()
	p, err := repo.CreateProfile(ctx, gamification.NewProfile(userID))
	require.NoError(t, err)
	p.Points, p.TotalEarned = totalEarned, totalEarned
	p.Level = gamification.Level(totalEarned, gamification.DefaultPointsPerLevel)
	p.Tier = gamification.TierFor(totalEarned, nil)
	p, err = repo.UpdateProfile(ctx, p)
	require.NoError(t, err)
	return p
}

func TestGamificationRepository_Leaderboard(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	repo := sqlxrepos.NewGamificationRepository(db)

	ann := createUser(t, db, "ann", true)
	bob := createUser(t, db, "bob", true)
	cid := createUser(t, db, "cid", true)
	dan := createUser(t, db, "dan", false)
	createProfile(t, repo, ann.ID, 1500)
	createProfile(t, repo, bob.ID, 1500)
	createProfile(t, repo, cid.ID, 300)
	createProfile(t, repo, dan.ID, 9000)

	t.Run("ties share a rank", func(t *testing.T) {
		entries, total, err := repo.Leaderboard(ctx, gamification.LeaderboardFilter{})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, entries, 3)

		assert.Equal(t, []int{1, 1, 3}, []int{entries[0].Rank, entries[1].Rank, entries[2].Rank})
		assert.Equal(t, "ann", entries[0].Username)
		assert.Equal(t, "bob", entries[1].Username)
		assert.Equal(t, "cid", entries[2].Username)
	})

	t.Run("tier filter keeps the global rank", func(t *testing.T) {
		entries, total, err := repo.Leaderboard(ctx, gamification.LeaderboardFilter{Tier: gamification.TierBronze})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, entries, 1)
		assert.Equal(t, cid.ID, entries[0].UserID)
		assert.Equal(t, 3, entries[0].Rank)
	})

	t.Run("pagination", func(t *testing.T) {
		entries, total, err := repo.Leaderboard(ctx, gamification.LeaderboardFilter{
			Pagination: core.Pagination{Page: 3, Limit: 1},
		})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, entries, 1)
		assert.Equal(t, cid.ID, entries[0].UserID)
	})

	tests := []struct {
		name        string
		totalEarned int
		want        int
	}{
		{"inactive users are not counted", 1000, 2},
		{"ties are not above", 1500, 0},
		{"lowest", 0, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n, err := repo.CountProfilesAbove(ctx, tc.totalEarned)
			require.NoError(t, err)
			assert.Equal(t, tc.want, n)
		})
	}
}

func TestGamificationRepository_GetProfile_forUpdate(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	repo := sqlxrepos.NewGamificationRepository(db)
	tx := database.NewTransactor(db)

	usr := createUser(t, db, "ann", true)
	createProfile(t, repo, usr.ID, 0)

	const workers, increments = 4, 10
	var wg sync.WaitGroup
	errs := make(chan error, workers*increments)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < increments; i++ {
				errs <- tx.RunInTx(ctx, func(exec core.DBExecutor) error {
					p, err := repo.GetProfile(ctx, usr.ID, true, exec)
					if err != nil {
						return err
					}
					p.Points += 10
					p.TotalEarned += 10
					_, err = repo.UpdateProfile(ctx, p, exec)
					return err
				})
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	p, err := repo.GetProfile(ctx, usr.ID, false)
	require.NoError(t, err)
	assert.Equal(t, workers*increments*10, p.Points)
	assert.Equal(t, workers*increments*10, p.TotalEarned)

	_, err = repo.GetProfile(ctx, createUser(t, db, "bob", true).ID, false)
	assert.ErrorIs(t, err, gamification.ErrProfileNotFound)
}

func TestGamificationRepository_Profile(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	repo := sqlxrepos.NewGamificationRepository(db)
	usr := createUser(t, db, "ann", true)

	t.Run("create is idempotent", func(t *testing.T) {
		p := createProfile(t, repo, usr.ID, 400)
		again, err := repo.CreateProfile(ctx, gamification.NewProfile(usr.ID))
		require.NoError(t, err)
		assert.Equal(t, p.TotalEarned, again.TotalEarned)
	})

	t.Run("nullable columns", func(t *testing.T) {
		p, err := repo.GetProfile(ctx, usr.ID, false)
		require.NoError(t, err)
		assert.True(t, p.LastActivityDate.IsZero())
		assert.True(t, p.GraceUsedAt.IsZero())
		assert.Empty(t, p.PrimaryBadgeID)

		ach, err := repo.CreateAchievement(ctx, gamification.Achievement{
			Name:            "First Steps",
			RequirementType: gamification.RequirementWorkoutCount,
			Tier:            gamification.TierBronze,
			IsActive:        true,
			CreatedAt:       time.Now().UTC(),
			UpdatedAt:       time.Now().UTC(),
		})
		require.NoError(t, err)

		p.PrimaryBadgeID = ach.ID
		p.LastActivityDate = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
		_, err = repo.UpdateProfile(ctx, p)
		require.NoError(t, err)

		p, err = repo.GetProfile(ctx, usr.ID, false)
		require.NoError(t, err)
		assert.Equal(t, ach.ID, p.PrimaryBadgeID)
		assert.Equal(t, "2026-03-02", p.LastActivityDate.Format(time.DateOnly))

		require.NoError(t, repo.ClearPrimaryBadge(ctx, ach.ID))
		p, err = repo.GetProfile(ctx, usr.ID, false)
		require.NoError(t, err)
		assert.Empty(t, p.PrimaryBadgeID)
	})

	t.Run("exercise counts accumulate", func(t *testing.T) {
		require.NoError(t, repo.IncrementExerciseCounts(ctx, usr.ID, map[string]int{"squat": 3, "lunge": 1}))
		require.NoError(t, repo.IncrementExerciseCounts(ctx, usr.ID, map[string]int{"squat": 2}))

		p, err := repo.GetProfile(ctx, usr.ID, false)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"squat": 5, "lunge": 1}, p.ExerciseCounts)
	})
}

func TestGamificationRepository_RecomputeProgress(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	repo := sqlxrepos.NewGamificationRepository(db)

	totals := []int{0, 250, 1200, 6000}
	ids := make([]string, 0, len(totals))
	for i, total := range totals {
		usr := createUser(t, db, fmt.Sprintf("user%d", i), true)
		createProfile(t, repo, usr.ID, total)
		ids = append(ids, usr.ID)
	}

	tests := []struct {
		name           string
		pointsPerLevel int
		thresholds     gamification.TierThresholds
		levels         []int
		tiers          []gamification.Tier
	}{
		{
			name:           "custom",
			pointsPerLevel: 500,
			thresholds: gamification.TierThresholds{
				gamification.TierSilver:   200,
				gamification.TierGold:     1000,
				gamification.TierPlatinum: 5000,
			},
			levels: []int{1, 1, 3, 13},
			tiers:  []gamification.Tier{gamification.TierBronze, gamification.TierSilver, gamification.TierGold, gamification.TierPlatinum},
		},
		{
			name:           "defaults",
			pointsPerLevel: 0,
			levels:         []int{1, 3, 13, 61},
			tiers: []gamification.Tier{
				gamification.TierFor(0, nil), gamification.TierFor(250, nil),
				gamification.TierFor(1200, nil), gamification.TierFor(6000, nil),
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, repo.RecomputeProgress(ctx, tc.pointsPerLevel, tc.thresholds))
			for i, id := range ids {
				p, err := repo.GetProfile(ctx, id, false)
				require.NoError(t, err)
				assert.Equal(t, tc.levels[i], p.Level, "total %d", totals[i])
				assert.Equal(t, tc.tiers[i], p.Tier, "total %d", totals[i])
				assert.Equal(t, gamification.Level(totals[i], tc.pointsPerLevel), p.Level)
			}
		})
	}
}

func TestGamificationRepository_UserAchievements(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	repo := sqlxrepos.NewGamificationRepository(db)
	usr := createUser(t, db, "ann", true)
	now := time.Now().UTC()

	ach, err := repo.CreateAchievement(ctx, gamification.Achievement{
		Name:             "Ten Workouts",
		RequirementType:  gamification.RequirementWorkoutCount,
		RequirementValue: 10,
		PointValue:       100,
		Tier:             gamification.TierSilver,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	require.NoError(t, err)

	first, err := repo.SaveUserAchievement(ctx, gamification.UserAchievement{
		UserID:        usr.ID,
		AchievementID: ach.ID,
		Progress:      40,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	require.NoError(t, err)

	ua, err := repo.GetUserAchievement(ctx, usr.ID, ach.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, ua.Progress)
	assert.True(t, ua.EarnedAt.IsZero())

	_, err = repo.SaveUserAchievement(ctx, gamification.UserAchievement{
		UserID:        usr.ID,
		AchievementID: ach.ID,
		Progress:      100,
		IsCompleted:   true,
		EarnedAt:      now,
		PointsAwarded: 100,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	require.NoError(t, err)

	all, err := repo.QueryUserAchievements(ctx, usr.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, 100, all[0].Progress)
	assert.True(t, all[0].IsCompleted)
	assert.False(t, all[0].EarnedAt.IsZero())
	assert.Equal(t, 100, all[0].PointsAwarded)

	require.NoError(t, repo.DeleteAchievement(ctx, ach.ID))
	_, err = repo.GetUserAchievement(ctx, usr.ID, ach.ID)
	assert.ErrorIs(t, err, gamification.ErrUserAchievementNotFound)
}

func TestGamificationRepository_CreateUserMilestone(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	repo := sqlxrepos.NewGamificationRepository(db)
	usr := createUser(t, db, "ann", true)
	now := time.Now().UTC()

	m, err := repo.CreateMilestone(ctx, gamification.Milestone{
		Name:         "1K Club",
		TargetPoints: 1000,
		BonusPoints:  50,
		Tier:         gamification.TierSilver,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)

	first, err := repo.CreateUserMilestone(ctx, gamification.UserMilestone{
		UserID: usr.ID, MilestoneID: m.ID, ReachedAt: now, BonusPointsAwarded: 50,
	})
	require.NoError(t, err)

	again, err := repo.CreateUserMilestone(ctx, gamification.UserMilestone{
		UserID: usr.ID, MilestoneID: m.ID, ReachedAt: now.Add(time.Hour), BonusPointsAwarded: 999,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 50, again.BonusPointsAwarded)

	reached, err := repo.QueryUserMilestones(ctx, usr.ID)
	require.NoError(t, err)
	assert.Len(t, reached, 1)
}

func TestGamificationRepository_RewardHasRedemptions(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	repo := sqlxrepos.NewGamificationRepository(db)
	usr := createUser(t, db, "ann", true)
	now := time.Now().UTC()

	reward, err := repo.CreateReward(ctx, gamification.Reward{
		Name:      "Free Session",
		PointCost: 500,
		Tier:      gamification.TierBronze,
		Stock:     5,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)

	has, err := repo.RewardHasRedemptions(ctx, reward.ID)
	require.NoError(t, err)
	assert.False(t, has)

	ur, err := repo.CreateUserReward(ctx, gamification.UserReward{
		UserID:     usr.ID,
		RewardID:   reward.ID,
		PointsCost: 500,
		Status:     gamification.RedemptionPending,
		RedeemedAt: now,
		UpdatedAt:  now,
	})
	require.NoError(t, err)

	ur.Status = gamification.RedemptionCancelled
	_, err = repo.UpdateUserReward(ctx, ur)
	require.NoError(t, err)

	has, err = repo.RewardHasRedemptions(ctx, reward.ID)
	require.NoError(t, err)
	assert.True(t, has, "cancelled redemptions still count")
}
