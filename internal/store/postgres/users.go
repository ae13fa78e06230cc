// Package postgres is the relational UserStore backend. Collections live in
// jsonb columns so the replace-all update semantics stay single-row atomic.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rohanmainali/sharelytics/internal/domain/user"
	"github.com/rohanmainali/sharelytics/internal/store"
)

const uniqueViolation = "23505"

type UsersRepo struct {
	pool *pgxpool.Pool
}

func NewUsersRepo(pool *pgxpool.Pool) *UsersRepo {
	return &UsersRepo{pool: pool}
}

const userColumns = `id, email, password_hash, name, portfolio, watchlist, notifications, created_at, updated_at`

func (r *UsersRepo) FindByEmail(ctx context.Context, email string) (user.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	)

	return scanUser(row)
}

func (r *UsersRepo) FindByID(ctx context.Context, id string) (user.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)

	return scanUser(row)
}

func (r *UsersRepo) Create(ctx context.Context, email, passwordHash, name string) (user.User, error) {
	now := time.Now().UTC()

	u := user.User{
		ID:            uuid.NewString(),
		Email:         email,
		PasswordHash:  passwordHash,
		Name:          name,
		Portfolio:     []user.PortfolioEntry{},
		Watchlist:     []string{},
		Notifications: []user.Notification{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, name, portfolio, watchlist, notifications, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,'[]','[]','[]',$5,$6)`,
		u.ID, u.Email, u.PasswordHash, u.Name, u.CreatedAt, u.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, store.ErrEmailTaken
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) UpdateFields(ctx context.Context, id string, f store.Fields) (user.User, error) {
	sets := []string{"updated_at = $1"}
	args := []interface{}{time.Now().UTC()}
	pos := 2

	appendSet := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, pos))
		args = append(args, value)
		pos++
	}

	if f.Name != nil {
		appendSet("name", *f.Name)
	}
	if f.Email != nil {
		appendSet("email", *f.Email)
	}
	if f.Watchlist != nil {
		b, err := json.Marshal(*f.Watchlist)
		if err != nil {
			return user.User{}, err
		}
		appendSet("watchlist", b)
	}
	if f.Portfolio != nil {
		b, err := json.Marshal(*f.Portfolio)
		if err != nil {
			return user.User{}, err
		}
		appendSet("portfolio", b)
	}

	query := fmt.Sprintf(
		`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), pos, userColumns,
	)
	args = append(args, id)

	u, err := scanUser(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, store.ErrEmailTaken
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) Save(ctx context.Context, u user.User) error {
	portfolio, err := json.Marshal(u.Portfolio)
	if err != nil {
		return err
	}
	watchlist, err := json.Marshal(u.Watchlist)
	if err != nil {
		return err
	}
	notifications, err := json.Marshal(u.Notifications)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET email = $2, password_hash = $3, name = $4,
		     portfolio = $5, watchlist = $6, notifications = $7,
		     updated_at = $8
		 WHERE id = $1`,
		u.ID, u.Email, u.PasswordHash, u.Name,
		portfolio, watchlist, notifications,
		time.Now().UTC(),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrEmailTaken
		}
		return err
	}

	if tag.RowsAffected() == 0 {
		return store.ErrUserNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (user.User, error) {
	var (
		u             user.User
		portfolio     []byte
		watchlist     []byte
		notifications []byte
	)

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&portfolio,
		&watchlist,
		&notifications,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, store.ErrUserNotFound
		}
		return user.User{}, err
	}

	if err := json.Unmarshal(portfolio, &u.Portfolio); err != nil {
		return user.User{}, err
	}
	if err := json.Unmarshal(watchlist, &u.Watchlist); err != nil {
		return user.User{}, err
	}
	if err := json.Unmarshal(notifications, &u.Notifications); err != nil {
		return user.User{}, err
	}

	if u.Portfolio == nil {
		u.Portfolio = []user.PortfolioEntry{}
	}
	if u.Watchlist == nil {
		u.Watchlist = []string{}
	}
	if u.Notifications == nil {
		u.Notifications = []user.Notification{}
	}

	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
