package metricsvc

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/swanstudios/studio/core"
)

const namespace = "swanstudios"

// Prometheus records business events & HTTP requests into its own registry.
type Prometheus struct {
	registry *prometheus.Registry
	logger   core.Logger

	pointsAwarded      *prometheus.CounterVec
	achievementsEarned *prometheus.CounterVec
	rewardsRedeemed    *prometheus.CounterVec
	workoutsRecorded   prometheus.Counter
	ordersCompleted    prometheus.Counter
	revenueCents       prometheus.Counter
	contactsSubmitted  *prometheus.CounterVec

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

var _ core.Metrics = (*Prometheus)(nil)

func NewPrometheus(logger core.Logger) *Prometheus {
	m := &Prometheus{
		registry: prometheus.NewRegistry(),
		logger:   logger,
		pointsAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gamification",
			Name:      "points_awarded_total",
			Help:      "Points credited to user profiles, by source.",
		}, []string{"source"}),
		achievementsEarned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gamification",
			Name:      "achievements_earned_total",
			Help:      "Achievements unlocked.",
		}, []string{"achievement_id"}),
		rewardsRedeemed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gamification",
			Name:      "rewards_redeemed_total",
			Help:      "Rewards redeemed.",
		}, []string{"reward_id"}),
		workoutsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gamification",
			Name:      "workouts_recorded_total",
			Help:      "Workouts recorded.",
		}),
		ordersCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "orders_completed_total",
			Help:      "Paid orders.",
		}),
		revenueCents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "revenue_cents_total",
			Help:      "Revenue of paid orders, in cents.",
		}),
		contactsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "contact",
			Name:      "submissions_total",
			Help:      "Contact form submissions, by priority.",
		}, []string{"priority"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests, by method, route & status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latencies.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.pointsAwarded,
		m.achievementsEarned,
		m.rewardsRedeemed,
		m.workoutsRecorded,
		m.ordersCompleted,
		m.revenueCents,
		m.contactsSubmitted,
		m.requests,
		m.requestDuration,
	)
	return m
}

func (m *Prometheus) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Prometheus) PointsAwarded(source string, points int) {
	if points > 0 {
		m.pointsAwarded.WithLabelValues(source).Add(float64(points))
	}
}

func (m *Prometheus) AchievementEarned(achievementID string) {
	m.achievementsEarned.WithLabelValues(achievementID).Inc()
}

func (m *Prometheus) RewardRedeemed(rewardID string) {
	m.rewardsRedeemed.WithLabelValues(rewardID).Inc()
}

func (m *Prometheus) WorkoutRecorded() {
	m.workoutsRecorded.Inc()
}

func (m *Prometheus) OrderCompleted(totalCents int64) {
	m.ordersCompleted.Inc()
	if totalCents > 0 {
		m.revenueCents.Add(float64(totalCents))
	}
}

func (m *Prometheus) ContactSubmitted(priority string) {
	m.contactsSubmitted.WithLabelValues(priority).Inc()
}

// Middleware counts & times requests by route template.
func (m *Prometheus) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			status := ctx.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if status < http.StatusBadRequest {
					status = http.StatusInternalServerError
				}
			}
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			m.requests.WithLabelValues(ctx.Request().Method, route, strconv.Itoa(status)).Inc()
			m.requestDuration.WithLabelValues(ctx.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      m,
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Println implements promhttp.Logger.
func (m *Prometheus) Println(v ...interface{}) {
	m.logger.Error(fmt.Sprint(v...))
}
