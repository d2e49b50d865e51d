package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
)

const uniqueViolation = "23505"

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type Profile struct {
	UserID     string `json:"user_id"`
	Location   string `json:"location"`
	Allergies  string `json:"allergies"`
	Preference string `json:"preference"`
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Register(ctx context.Context, email, username, password string, role Role) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	u := User{ID: uuid.NewString(), Email: email, Username: username, Role: role}
	err = r.DB.QueryRow(ctx, `
		INSERT INTO users(id, email, username, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		u.ID, email, username, string(hash), role).Scan(&u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	_, err = r.DB.Exec(ctx, `INSERT INTO profiles(user_id) VALUES ($1)`, u.ID)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (r *Repo) Authenticate(ctx context.Context, email, password string) (User, error) {
	var u User
	var hash string
	err := r.DB.QueryRow(ctx, `
		SELECT id, email, username, password_hash, role, created_at
		FROM users WHERE email=$1`, email).
		Scan(&u.ID, &u.Email, &u.Username, &hash, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (r *Repo) GetProfile(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	err := r.DB.QueryRow(ctx, `
		SELECT user_id, location, allergies, preference
		FROM profiles WHERE user_id=$1`, userID).
		Scan(&p.UserID, &p.Location, &p.Allergies, &p.Preference)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrUserNotFound
	}
	return p, err
}

func (r *Repo) UpdateProfile(ctx context.Context, p Profile) (Profile, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE profiles SET location=$2, allergies=$3, preference=$4
		WHERE user_id=$1`,
		p.UserID, p.Location, p.Allergies, p.Preference)
	if err != nil {
		return Profile{}, err
	}
	if ct.RowsAffected() != 1 {
		return Profile{}, ErrUserNotFound
	}
	return r.GetProfile(ctx, p.UserID)
}
