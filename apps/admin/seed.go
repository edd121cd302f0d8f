package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/swanstudios/studio/core/gamification"
	"github.com/swanstudios/studio/core/store"
)

func intPtr(i int) *int { return &i }

var (
	seedAchievements = []gamification.NewAchievement{
		{Name: "First Steps", Description: "Complete your first workout", Icon: "footprints", PointValue: intPtr(50), RequirementType: gamification.RequirementWorkoutCount, RequirementValue: intPtr(1)},
		{Name: "Dedicated", Description: "Complete 25 workouts", Icon: "dumbbell", PointValue: intPtr(200), RequirementType: gamification.RequirementWorkoutCount, RequirementValue: intPtr(25), Tier: gamification.TierSilver},
		{Name: "On Fire", Description: "Train 7 days in a row", Icon: "flame", PointValue: intPtr(150), RequirementType: gamification.RequirementStreakDays, RequirementValue: intPtr(7)},
		{Name: "Unstoppable", Description: "Train 30 days in a row", Icon: "rocket", PointValue: intPtr(500), RequirementType: gamification.RequirementStreakDays, RequirementValue: intPtr(30), Tier: gamification.TierGold},
		{Name: "Golden Swan", Description: "Reach the gold tier", Icon: "crown", PointValue: intPtr(250), RequirementType: gamification.RequirementTierReached, Tier: gamification.TierGold},
	}

	seedRewards = []gamification.NewReward{
		{Name: "SwanStudios Water Bottle", Description: "Branded insulated bottle", Icon: "bottle", PointCost: 500, Stock: intPtr(50)},
		{Name: "Free 30min Session", Description: "One complimentary half-hour session", Icon: "calendar", PointCost: 1500, Stock: intPtr(20), Tier: gamification.TierSilver},
		{Name: "Nutrition Consultation", Description: "One hour with our nutrition coach", Icon: "apple", PointCost: 4000, Stock: intPtr(10), Tier: gamification.TierGold},
	}

	seedMilestones = []gamification.NewMilestone{
		{Name: "Warming Up", TargetPoints: 500, BonusPoints: 50},
		{Name: "Silver Lining", TargetPoints: 1000, BonusPoints: 100, Tier: gamification.TierSilver},
		{Name: "Gold Rush", TargetPoints: 5000, BonusPoints: 250, Tier: gamification.TierGold},
		{Name: "Platinum Swan", TargetPoints: 20000, BonusPoints: 1000, Tier: gamification.TierPlatinum},
	}

	seedItems = []store.NewItem{
		{Name: "Single Session", Description: "One personal training session", ItemType: store.ItemFixedPackage, Sessions: 1, PricePerSession: 17500, DisplayOrder: 1},
		{Name: "8 Session Pack", Description: "Eight personal training sessions", ItemType: store.ItemFixedPackage, Sessions: 8, PricePerSession: 16000, DisplayOrder: 2},
		{Name: "Monthly Plan", Description: "Twelve sessions per month", ItemType: store.ItemMonthlyPackage, Sessions: 12, PricePerSession: 15000, DisplayOrder: 3},
		{Name: "Resistance Bands", Description: "Set of 5 bands", ItemType: store.ItemProduct, Price: 3500, DisplayOrder: 10},
	}
)

// seed creates the default settings & fills every empty catalog. Catalogs with entries are left untouched.
func (cli *commandLine) seed(ctx context.Context) error {
	if _, err := cli.gamSvc.GetSettings(ctx); err != nil {
		return errors.Wrap(err, "seeding settings")
	}

	achievements, err := cli.gamSvc.QueryAchievements(ctx, gamification.AchievementFilter{})
	if err != nil {
		return errors.Wrap(err, "querying achievements")
	}
	if len(achievements) == 0 {
		for _, na := range seedAchievements {
			if _, err = cli.gamSvc.CreateAchievement(ctx, na); err != nil {
				return errors.Wrapf(err, "creating achievement %q", na.Name)
			}
		}
		cli.printf("%d achievements created\n", len(seedAchievements))
	}

	rewards, err := cli.gamSvc.QueryRewards(ctx, gamification.RewardFilter{})
	if err != nil {
		return errors.Wrap(err, "querying rewards")
	}
	if len(rewards) == 0 {
		for _, nr := range seedRewards {
			if _, err = cli.gamSvc.CreateReward(ctx, nr); err != nil {
				return errors.Wrapf(err, "creating reward %q", nr.Name)
			}
		}
		cli.printf("%d rewards created\n", len(seedRewards))
	}

	milestones, err := cli.gamSvc.QueryMilestones(ctx, gamification.MilestoneFilter{})
	if err != nil {
		return errors.Wrap(err, "querying milestones")
	}
	if len(milestones) == 0 {
		for _, nm := range seedMilestones {
			if _, err = cli.gamSvc.CreateMilestone(ctx, nm); err != nil {
				return errors.Wrapf(err, "creating milestone %q", nm.Name)
			}
		}
		cli.printf("%d milestones created\n", len(seedMilestones))
	}

	items, err := cli.storeSvc.QueryItems(ctx, store.ItemFilter{})
	if err != nil {
		return errors.Wrap(err, "querying items")
	}
	if len(items) == 0 {
		for _, ni := range seedItems {
			if _, err = cli.storeSvc.CreateItem(ctx, ni); err != nil {
				return errors.Wrapf(err, "creating item %q", ni.Name)
			}
		}
		cli.printf("%d storefront items created\n", len(seedItems))
	}
	return nil
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	fmt.Fprintf(cli.stdout(), format, args...)
}
