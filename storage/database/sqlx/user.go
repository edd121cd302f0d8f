package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/core/user"
)

var userColumns = []string{
	"id", "name", "username", "email", "phone", "is_active", "roles", "password_hash", "created_at", "updated_at", "last_login",
}

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	Phone        null.String    `db:"phone"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash null.Bytes     `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func newUserRow(u user.User) userRow {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return userRow{
		ID:           u.ID,
		Name:         u.Name,
		Username:     nullString(u.Username),
		Email:        nullString(u.Email),
		Phone:        nullString(u.Phone),
		IsActive:     u.IsActive,
		Roles:        roles,
		PasswordHash: null.NewBytes(u.PasswordHash, len(u.PasswordHash) > 0),
		CreatedAt:    u.CreatedAt.UTC(),
		UpdatedAt:    u.UpdatedAt.UTC(),
		LastLogin:    nullTime(u.LastLogin),
	}
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username.String,
		Email:        r.Email.String,
		Phone:        r.Phone.String,
		IsActive:     r.IsActive,
		Roles:        []string(r.Roles),
		PasswordHash: r.PasswordHash.Bytes,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    timeOrZero(r.LastLogin),
	}
}

func (r userRow) values() []interface{} {
	return []interface{}{
		r.ID, r.Name, r.Username, r.Email, r.Phone, r.IsActive, r.Roles, r.PasswordHash, r.CreatedAt, r.UpdatedAt, r.LastLogin,
	}
}

type userRepository struct {
	base
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{base{db: db}}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	// SELECT username, email FROM users WHERE (username = $1 OR email = $2) AND id NOT IN ($3,$4) LIMIT 1;
	match := sq.Or{}
	if username != "" {
		match = append(match, sq.Eq{"username": username})
	}
	if email != "" {
		match = append(match, sq.Eq{"email": email})
	}
	if len(match) == 0 {
		return nil
	}

	query := psql.Select("username", "email").From("users").Where(match).Limit(1)
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		query = query.Where(sq.NotEq{"id": ids})
	}

	var row struct {
		Username null.String `db:"username"`
		Email    null.String `db:"email"`
	}
	if err := repo.get(ctx, exec, &row, query); err != nil {
		if trapNoRowsErr(err, user.ErrNotFound) == user.ErrNotFound {
			return nil
		}
		return errors.Wrap(err, "checking username uniqueness")
	}
	if username != "" && row.Username.String == username {
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = newID()
	row := newUserRow(usr)
	stmt := psql.Insert("users").Columns(userColumns...).Values(row.values()...)
	if _, err := repo.exec(ctx, exec, stmt); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	query := psql.Select(userColumns...).From("users")
	if filter != nil && !filter.IsEmpty() {
		if filter.Search != "" {
			pattern := "%" + filter.Search + "%"
			query = query.Where(sq.Or{
				sq.ILike{"name": pattern},
				sq.ILike{"username": pattern},
				sq.ILike{"email": pattern},
			})
		}
		if len(filter.Roles) > 0 {
			roles := sq.Or{}
			for _, r := range filter.Roles {
				roles = append(roles, sq.Expr("EXISTS (SELECT 1 FROM unnest(roles) AS r WHERE r LIKE ?)", r+"%"))
			}
			query = query.Where(roles)
		}
		if filter.IsActive != nil {
			query = query.Where(sq.Eq{"is_active": *filter.IsActive})
		}
		if !filter.CreatedFrom.IsZero() {
			query = query.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
		}
		if !filter.CreatedTo.IsZero() {
			query = query.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
		}
	}
	for _, ord := range ordering {
		query = query.OrderBy(ord.String())
	}
	query = query.OrderBy("id ASC")

	var rows []userRow
	if err := repo.selectRows(ctx, exec, &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	query := psql.Select(userColumns...).From("users").Limit(1)
	switch {
	case filter.ID != "":
		query = query.Where(sq.Eq{"id": filter.ID})
	case filter.Username != "":
		query = query.Where(sq.Eq{"username": filter.Username})
	case filter.Email != "":
		query = query.Where(sq.Eq{"email": filter.Email})
	case filter.UsernameOrEmail != "":
		query = query.Where(sq.Or{sq.Eq{"username": filter.UsernameOrEmail}, sq.Eq{"email": filter.UsernameOrEmail}})
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := repo.get(ctx, exec, &row, query); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound)
	}
	return row.toUser(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row := newUserRow(usr)
	stmt := psql.Update("users").
		SetMap(map[string]interface{}{
			"name":          row.Name,
			"username":      row.Username,
			"email":         row.Email,
			"phone":         row.Phone,
			"is_active":     row.IsActive,
			"roles":         row.Roles,
			"password_hash": row.PasswordHash,
			"updated_at":    row.UpdatedAt,
			"last_login":    row.LastLogin,
		}).
		Where(sq.Eq{"id": usr.ID})

	n, err := repo.exec(ctx, exec, stmt)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return row.toUser(), nil
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		existing, err := repo.GetUser(ctx, user.GetFilter{Username: usr.Username}, exec...)
		if errors.Cause(err) == user.ErrNotFound && usr.Email != "" {
			existing, err = repo.GetUser(ctx, user.GetFilter{Email: usr.Email}, exec...)
		}
		switch errors.Cause(err) {
		case nil:
			usr.ID = existing.ID
			usr.CreatedAt = existing.CreatedAt
			return repo.UpdateUser(ctx, usr, exec...)
		case user.ErrNotFound:
			return repo.CreateUser(ctx, usr, exec...)
		default:
			return user.User{}, err
		}
	}
	return repo.UpdateUser(ctx, usr, exec...)
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := repo.exec(ctx, exec, psql.Delete("users").Where(sq.Eq{"id": ids}))
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return int(n), nil
}
