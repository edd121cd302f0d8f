package core

// Metrics records business events.
type Metrics interface {
	PointsAwarded(source string, points int)
	AchievementEarned(achievementID string)
	RewardRedeemed(rewardID string)
	WorkoutRecorded()
	OrderCompleted(totalCents int64)
	ContactSubmitted(priority string)
}

type nopMetrics struct{}

// NopMetrics discards all events.
var NopMetrics Metrics = nopMetrics{}

func (nopMetrics) PointsAwarded(string, int) {}
func (nopMetrics) AchievementEarned(string) {}
func (nopMetrics) RewardRedeemed(string) {}
func (nopMetrics) WorkoutRecorded() {}
func (nopMetrics) OrderCompleted(int64) {}
func (nopMetrics) ContactSubmitted(string) {}
