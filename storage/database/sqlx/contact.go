package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/core/contact"
)

var contactColumns = []string{"id", "name", "email", "phone", "message", "priority", "created_at", "viewed_at"}

type contactRow struct {
	ID        string           `db:"id"`
	Name      string           `db:"name"`
	Email     string           `db:"email"`
	Phone     null.String      `db:"phone"`
	Message   string           `db:"message"`
	Priority  contact.Priority `db:"priority"`
	CreatedAt time.Time        `db:"created_at"`
	ViewedAt  null.Time        `db:"viewed_at"`
}

func (r contactRow) toContact() contact.Contact {
	return contact.Contact{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Phone:     r.Phone.String,
		Message:   r.Message,
		Priority:  r.Priority,
		CreatedAt: r.CreatedAt.UTC(),
		ViewedAt:  timeOrZero(r.ViewedAt),
	}
}

type contactRepository struct {
	base
}

var _ contact.Repository = (*contactRepository)(nil) // interface compliance check

func NewContactRepository(db *sqlx.DB) contact.Repository {
	return &contactRepository{base{db: db}}
}

func (repo *contactRepository) CreateContact(ctx context.Context, c contact.Contact, exec ...core.DBExecutor) (contact.Contact, error) {
	c.ID = newID()
	stmt := psql.Insert("contacts").
		Columns(contactColumns...).
		Values(c.ID, c.Name, c.Email, nullString(c.Phone), c.Message, c.Priority, c.CreatedAt.UTC(), nullTime(c.ViewedAt))
	if _, err := repo.exec(ctx, exec, stmt); err != nil {
		return contact.Contact{}, errors.Wrap(err, "inserting contact")
	}
	return c, nil
}

func (repo *contactRepository) QueryContacts(ctx context.Context, filter contact.QueryFilter, exec ...core.DBExecutor) ([]contact.Contact, int, error) {
	where := sq.And{}
	if filter.Viewed != nil {
		if *filter.Viewed {
			where = append(where, sq.NotEq{"viewed_at": nil})
		} else {
			where = append(where, sq.Eq{"viewed_at": nil})
		}
	}
	if filter.Priority != "" {
		where = append(where, sq.Eq{"priority": filter.Priority})
	}

	var total int
	if err := repo.get(ctx, exec, &total, psql.Select("COUNT(*)").From("contacts").Where(where)); err != nil {
		return nil, 0, errors.Wrap(err, "counting contacts")
	}

	var rows []contactRow
	query := psql.Select(contactColumns...).From("contacts").Where(where).OrderBy("created_at DESC", "id DESC")
	if err := repo.selectRows(ctx, exec, &rows, paginate(query, filter.Pagination)); err != nil {
		return nil, 0, errors.Wrap(err, "selecting contacts")
	}
	res := make([]contact.Contact, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.toContact())
	}
	return res, total, nil
}

func (repo *contactRepository) GetContact(ctx context.Context, id string, exec ...core.DBExecutor) (contact.Contact, error) {
	var row contactRow
	query := psql.Select(contactColumns...).From("contacts").Where(sq.Eq{"id": id})
	if err := repo.get(ctx, exec, &row, query); err != nil {
		return contact.Contact{}, trapNoRowsErr(err, contact.ErrNotFound)
	}
	return row.toContact(), nil
}

func (repo *contactRepository) UpdateContact(ctx context.Context, c contact.Contact, exec ...core.DBExecutor) (contact.Contact, error) {
	stmt := psql.Update("contacts").
		SetMap(map[string]interface{}{
			"name":      c.Name,
			"email":     c.Email,
			"phone":     nullString(c.Phone),
			"message":   c.Message,
			"priority":  c.Priority,
			"viewed_at": nullTime(c.ViewedAt),
		}).
		Where(sq.Eq{"id": c.ID})
	n, err := repo.exec(ctx, exec, stmt)
	if err != nil {
		return contact.Contact{}, errors.Wrap(err, "updating contact")
	}
	if n == 0 {
		return contact.Contact{}, contact.ErrNotFound
	}
	return c, nil
}
