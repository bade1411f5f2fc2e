package internal

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrBadCredentials = errors.New("bad creds")
	ErrUserNotFound   = errors.New("user not found")
)

// UserProvider is the session provider: it authenticates a login and
// supplies the user's record. The record is read-only to this service.
type UserProvider interface {
	Authenticate(ctx context.Context, login, password string) (*User, error)
	Lookup(ctx context.Context, login string) (*User, error)
}

type PostgresUsers struct {
	postgres *pgxpool.Pool
}

var _ UserProvider = (*PostgresUsers)(nil)

func NewPostgresUsers(postgres *pgxpool.Pool) *PostgresUsers {
	return &PostgresUsers{postgres: postgres}
}

func (p *PostgresUsers) Authenticate(ctx context.Context, login, password string) (*User, error) {
	var hashedPassword string
	err := p.postgres.QueryRow(ctx, "select password from users where username = $1", login).Scan(&hashedPassword)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}

	return p.Lookup(ctx, login)
}

func (p *PostgresUsers) Lookup(ctx context.Context, login string) (*User, error) {
	user := User{Username: login}
	err := p.postgres.QueryRow(
		ctx,
		`select balance, coalesce(exhibits, '{}'), coalesce(text_to_image, '{}')
			from users
			where username = $1`,
		login,
	).Scan(&user.Balance, &user.Exhibits, &user.TextToImage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &user, nil
}
