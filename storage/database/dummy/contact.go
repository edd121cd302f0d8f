package dummydb

import (
	"context"
	"sort"

	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/core/contact"
)

type contactRepository struct {
	db *DB
}

var _ contact.Repository = (*contactRepository)(nil) // interface compliance check

func NewContactRepository(db *DB) contact.Repository {
	return &contactRepository{db: db}
}

func (repo *contactRepository) CreateContact(ctx context.Context, c contact.Contact, exec ...core.DBExecutor) (contact.Contact, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c.ID = newID()
	repo.db.data.contacts[c.ID] = c
	return c, nil
}

func (repo *contactRepository) QueryContacts(ctx context.Context, filter contact.QueryFilter, exec ...core.DBExecutor) ([]contact.Contact, int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	res := make([]contact.Contact, 0)
	for _, c := range repo.db.data.contacts {
		if filter.Viewed != nil && c.ViewedAt.IsZero() == *filter.Viewed {
			continue
		}
		if filter.Priority != "" && c.Priority != filter.Priority {
			continue
		}
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })

	start, end := page(filter.Pagination, len(res))
	return res[start:end], len(res), nil
}

func (repo *contactRepository) GetContact(ctx context.Context, id string, exec ...core.DBExecutor) (contact.Contact, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.data.contacts[id]; ok {
		return c, nil
	}
	return contact.Contact{}, contact.ErrNotFound
}

func (repo *contactRepository) UpdateContact(ctx context.Context, c contact.Contact, exec ...core.DBExecutor) (contact.Contact, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.data.contacts[c.ID]; !ok {
		return contact.Contact{}, contact.ErrNotFound
	}
	repo.db.data.contacts[c.ID] = c
	return c, nil
}
