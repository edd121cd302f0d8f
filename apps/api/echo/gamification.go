package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/core/gamification"
	"github.com/swanstudios/studio/core/user"
)

type gamificationApi struct {
	svc      gamification.Service
	users    user.Service
	validate *validator.Validate
}

func registerGamificationAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc gamification.Service,
	users user.Service,
	validate *validator.Validate,
) {
	api := gamificationApi{
		svc:      svc,
		users:    users,
		validate: validate,
	}

	gg := g.Group("/gamification", jwt)
	gg.GET("/settings", api.getSettings)
	gg.PUT("/settings", api.updateSettings, adminMiddleware())
	gg.GET("/leaderboard", api.leaderboard)
	gg.GET("/stats", api.stats, adminMiddleware())
	gg.POST("/workouts", api.recordWorkout)
	gg.PUT("/redemptions/:id", api.updateRedemption, adminMiddleware())

	// per user endpoints
	ug := gg.Group("/users/:id")
	ug.GET("/profile", api.profile, ctxUserOrAdminMiddleware(users, true /* staff */))
	ug.GET("/transactions", api.transactions, ctxUserOrAdminMiddleware(users, true /* staff */))
	ug.POST("/points", api.awardPoints, adminMiddleware())
	ug.POST("/achievements/:achievementId", api.awardAchievement, adminMiddleware())
	ug.PUT("/achievements/:achievementId/progress", api.updateProgress, staffMiddleware())
	ug.PUT("/badge", api.setPrimaryBadge, selfMiddleware(users))
	ug.POST("/rewards/:rewardId/redeem", api.redeemReward, selfMiddleware(users))
	ug.POST("/milestones/check", api.checkMilestones, ctxUserOrAdminMiddleware(users))

	// catalog
	ag := gg.Group("/achievements")
	ag.GET("", api.queryAchievements)
	ag.POST("", api.createAchievement, adminMiddleware())
	ag.GET("/:id", api.retrieveAchievement)
	ag.PUT("/:id", api.updateAchievement, adminMiddleware())
	ag.DELETE("/:id", api.destroyAchievement, adminMiddleware())

	rg := gg.Group("/rewards")
	rg.GET("", api.queryRewards)
	rg.POST("", api.createReward, adminMiddleware())
	rg.GET("/:id", api.retrieveReward)
	rg.PUT("/:id", api.updateReward, adminMiddleware())
	rg.DELETE("/:id", api.destroyReward, adminMiddleware())

	mg := gg.Group("/milestones")
	mg.GET("", api.queryMilestones)
	mg.POST("", api.createMilestone, adminMiddleware())
	mg.GET("/:id", api.retrieveMilestone)
	mg.PUT("/:id", api.updateMilestone, adminMiddleware())
	mg.DELETE("/:id", api.destroyMilestone, adminMiddleware())
}

// Settings & stats

func (api *gamificationApi) getSettings(ctx echo.Context) error {
	settings, err := api.svc.GetSettings(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting settings")
	}
	return ctx.JSON(http.StatusOK, settings)
}

func (api *gamificationApi) updateSettings(ctx echo.Context) error {
	var data gamification.UpdateSettings
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSettings")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	settings, err := api.svc.UpdateSettings(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "updating settings")
	}
	return ctx.JSON(http.StatusOK, settings)
}

func (api *gamificationApi) leaderboard(ctx echo.Context) error {
	var filter gamification.LeaderboardFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to LeaderboardFilter")
	}

	lb, err := api.svc.Leaderboard(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "getting leaderboard")
	}
	return ctx.JSON(http.StatusOK, lb)
}

func (api *gamificationApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

// Points

func (api *gamificationApi) profile(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	summary, err := api.svc.GetProfile(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "getting profile")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *gamificationApi) transactions(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	var filter gamification.TransactionFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to TransactionFilter")
	}

	page, err := api.svc.Transactions(ctx.Request().Context(), usr.ID, filter)
	if err != nil {
		return errors.Wrap(err, "querying transactions")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *gamificationApi) awardPoints(ctx echo.Context) error {
	var data gamification.AwardPoints
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AwardPoints")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	out, err := api.svc.AwardPoints(ctx.Request().Context(), ctx.Param("id"), data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "awarding points")
	}
	return ctx.JSON(http.StatusOK, out)
}

func (api *gamificationApi) recordWorkout(ctx echo.Context) error {
	var data gamification.WorkoutLog
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to WorkoutLog")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if data.UserID == "" {
		data.UserID = claims.Subject
	}
	// only staff may log workouts of other users
	if data.UserID != claims.Subject && !claims.IsStaff() {
		return errHttpForbidden
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	out, err := api.svc.RecordWorkout(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording workout")
	}
	return ctx.JSON(http.StatusCreated, out)
}

func (api *gamificationApi) checkMilestones(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	out, err := api.svc.CheckMilestones(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "checking milestones")
	}
	return ctx.JSON(http.StatusOK, out)
}

// Achievements

func (api *gamificationApi) queryAchievements(ctx echo.Context) error {
	var filter gamification.AchievementFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to AchievementFilter")
	}

	achievements, err := api.svc.QueryAchievements(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying achievements")
	}
	if achievements == nil {
		achievements = []gamification.Achievement{}
	}
	return ctx.JSON(http.StatusOK, achievements)
}

func (api *gamificationApi) retrieveAchievement(ctx echo.Context) error {
	a, err := api.svc.GetAchievement(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting achievement")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *gamificationApi) createAchievement(ctx echo.Context) error {
	var data gamification.NewAchievement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAchievement")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.CreateAchievement(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating achievement")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *gamificationApi) updateAchievement(ctx echo.Context) error {
	var data gamification.UpdateAchievement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAchievement")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.UpdateAchievement(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating achievement")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *gamificationApi) destroyAchievement(ctx echo.Context) error {
	if err := api.svc.DeleteAchievement(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting achievement")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *gamificationApi) awardAchievement(ctx echo.Context) error {
	out, err := api.svc.AwardAchievement(ctx.Request().Context(), ctx.Param("id"), ctx.Param("achievementId"))
	if err != nil {
		return errors.Wrap(err, "awarding achievement")
	}
	return ctx.JSON(http.StatusOK, out)
}

func (api *gamificationApi) updateProgress(ctx echo.Context) error {
	var data gamification.UpdateProgress
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProgress")
	}

	res, err := api.svc.UpdateAchievementProgress(ctx.Request().Context(), ctx.Param("id"), ctx.Param("achievementId"), data.Progress)
	if err != nil {
		return errors.Wrap(err, "updating achievement progress")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *gamificationApi) setPrimaryBadge(ctx echo.Context) error {
	var data SetBadgeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetBadgeRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.SetPrimaryBadge(ctx.Request().Context(), ctx.Param("id"), data.AchievementID)
	if err != nil {
		return errors.Wrap(err, "setting primary badge")
	}
	return ctx.JSON(http.StatusOK, p)
}

// Rewards

func (api *gamificationApi) queryRewards(ctx echo.Context) error {
	var filter gamification.RewardFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to RewardFilter")
	}

	rewards, err := api.svc.QueryRewards(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying rewards")
	}
	if rewards == nil {
		rewards = []gamification.Reward{}
	}
	return ctx.JSON(http.StatusOK, rewards)
}

func (api *gamificationApi) retrieveReward(ctx echo.Context) error {
	r, err := api.svc.GetReward(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting reward")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *gamificationApi) createReward(ctx echo.Context) error {
	var data gamification.NewReward
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReward")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	r, err := api.svc.CreateReward(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating reward")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *gamificationApi) updateReward(ctx echo.Context) error {
	var data gamification.UpdateReward
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateReward")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	r, err := api.svc.UpdateReward(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating reward")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *gamificationApi) destroyReward(ctx echo.Context) error {
	if err := api.svc.DeleteReward(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting reward")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *gamificationApi) redeemReward(ctx echo.Context) error {
	res, err := api.svc.RedeemReward(ctx.Request().Context(), ctx.Param("id"), ctx.Param("rewardId"))
	if err != nil {
		return errors.Wrap(err, "redeeming reward")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *gamificationApi) updateRedemption(ctx echo.Context) error {
	var data gamification.UpdateRedemption
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRedemption")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ur, err := api.svc.UpdateRedemptionStatus(ctx.Request().Context(), ctx.Param("id"), data.Status)
	if err != nil {
		return errors.Wrap(err, "updating redemption")
	}
	return ctx.JSON(http.StatusOK, ur)
}

// Milestones

func (api *gamificationApi) queryMilestones(ctx echo.Context) error {
	var filter gamification.MilestoneFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to MilestoneFilter")
	}

	milestones, err := api.svc.QueryMilestones(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying milestones")
	}
	if milestones == nil {
		milestones = []gamification.Milestone{}
	}
	return ctx.JSON(http.StatusOK, milestones)
}

func (api *gamificationApi) retrieveMilestone(ctx echo.Context) error {
	m, err := api.svc.GetMilestone(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting milestone")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *gamificationApi) createMilestone(ctx echo.Context) error {
	var data gamification.NewMilestone
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMilestone")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.CreateMilestone(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating milestone")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *gamificationApi) updateMilestone(ctx echo.Context) error {
	var data gamification.UpdateMilestone
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMilestone")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.UpdateMilestone(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating milestone")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *gamificationApi) destroyMilestone(ctx echo.Context) error {
	if err := api.svc.DeleteMilestone(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting milestone")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type SetBadgeRequest struct {
	AchievementID string `json:"achievement_id" validate:"required"`
}

func (sb *SetBadgeRequest) Validate(validate *validator.Validate) error {
	sb.AchievementID = core.CleanString(sb.AchievementID)
	return validate.Struct(sb)
}
