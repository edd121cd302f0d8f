package dummydb

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/core/contact"
	"github.com/swanstudios/studio/core/gamification"
	"github.com/swanstudios/studio/core/store"
	"github.com/swanstudios/studio/core/user"
)

type (
	// DB is an in-memory database.
	// Transactions are serialized & rolled back by restoring a snapshot of the tables.
	DB struct {
		txMu sync.Mutex
		mu   sync.RWMutex
		data *tables
	}

	tables struct {
		users map[string]user.User

		settings         *gamification.Settings
		profiles         map[string]gamification.Profile
		exerciseCounts   map[string]map[string]int
		transactions     []gamification.PointTransaction
		achievements     map[string]gamification.Achievement
		userAchievements map[string]gamification.UserAchievement
		rewards          map[string]gamification.Reward
		userRewards      map[string]gamification.UserReward
		milestones       map[string]gamification.Milestone
		userMilestones   map[string]gamification.UserMilestone

		items     map[string]store.Item
		carts     map[string]store.Cart
		cartItems map[string]store.CartItem
		orders    map[string]store.Order

		contacts map[string]contact.Contact
	}

	// tx marks repository calls made within a transaction.
	tx struct {
		sqlx.ExtContext
	}
)

var _ core.Transactor = (*DB)(nil) // interface compliance check

func Open() *DB {
	return &DB{data: newTables()}
}

func newTables() *tables {
	return &tables{
		users:            make(map[string]user.User),
		profiles:         make(map[string]gamification.Profile),
		exerciseCounts:   make(map[string]map[string]int),
		achievements:     make(map[string]gamification.Achievement),
		userAchievements: make(map[string]gamification.UserAchievement),
		rewards:          make(map[string]gamification.Reward),
		userRewards:      make(map[string]gamification.UserReward),
		milestones:       make(map[string]gamification.Milestone),
		userMilestones:   make(map[string]gamification.UserMilestone),
		items:            make(map[string]store.Item),
		carts:            make(map[string]store.Cart),
		cartItems:        make(map[string]store.CartItem),
		orders:           make(map[string]store.Order),
		contacts:         make(map[string]contact.Contact),
	}
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.users {
		c.users[k] = v
	}
	if t.settings != nil {
		s := *t.settings
		c.settings = &s
	}
	for k, v := range t.profiles {
		c.profiles[k] = v
	}
	for k, v := range t.exerciseCounts {
		counts := make(map[string]int, len(v))
		for ex, n := range v {
			counts[ex] = n
		}
		c.exerciseCounts[k] = counts
	}
	c.transactions = append([]gamification.PointTransaction(nil), t.transactions...)
	for k, v := range t.achievements {
		c.achievements[k] = v
	}
	for k, v := range t.userAchievements {
		c.userAchievements[k] = v
	}
	for k, v := range t.rewards {
		c.rewards[k] = v
	}
	for k, v := range t.userRewards {
		c.userRewards[k] = v
	}
	for k, v := range t.milestones {
		c.milestones[k] = v
	}
	for k, v := range t.userMilestones {
		c.userMilestones[k] = v
	}
	for k, v := range t.items {
		c.items[k] = v
	}
	for k, v := range t.carts {
		c.carts[k] = v
	}
	for k, v := range t.cartItems {
		c.cartItems[k] = v
	}
	for k, v := range t.orders {
		c.orders[k] = v
	}
	for k, v := range t.contacts {
		c.contacts[k] = v
	}
	return c
}

// RunInTx runs fn in a transaction. On error, the changes made since the transaction started are discarded.
func (db *DB) RunInTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	backup := db.data.clone()
	db.mu.RUnlock()

	if err := fn(tx{}); err != nil {
		db.mu.Lock()
		db.data = backup
		db.mu.Unlock()
		return err
	}
	return nil
}

// Flush empties all tables.
func (db *DB) Flush() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data = newTables()
}

func newID() string {
	return uuid.New().String()
}

// page returns the bounds of a page of n results.
func page(p core.Pagination, n int) (int, int) {
	start := p.Offset()
	if start > n {
		start = n
	}
	end := n
	if p.Limit > 0 && start+p.Limit < n {
		end = start + p.Limit
	}
	return start, end
}
