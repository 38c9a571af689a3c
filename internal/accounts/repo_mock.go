package accounts

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// unique violation, same as postgres would report for a taken username
var errUsernameTakenMock = &pgconn.PgError{
	Code:    "23505",
	Message: "duplicate key value violates unique constraint",
}

type repoMock struct {
	users    map[int]*User
	profiles map[int]*Profile
	nextID   int
}

func NewMockAccountsRepo() *repoMock {
	return &repoMock{
		users:    make(map[int]*User),
		profiles: make(map[int]*Profile),
		nextID:   1,
	}
}

func (r *repoMock) CreateUser(_ context.Context, username string, email *string, passwordHash string) (*User, error) {
	for _, u := range r.users {
		if u.Username == username {
			return nil, errUsernameTakenMock
		}
	}
	user := &User{
		ID:           r.nextID,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	r.nextID++
	r.users[user.ID] = user
	r.profiles[user.ID] = &Profile{UserID: user.ID}
	return user, nil
}

func (r *repoMock) GetUserByUsername(_ context.Context, username string) (*User, error) {
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *repoMock) GetProfile(_ context.Context, userID int) (*Profile, error) {
	profile, ok := r.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	profileCopy := *profile
	return &profileCopy, nil
}

func (r *repoMock) UpdateProfile(_ context.Context, profile Profile) error {
	if _, ok := r.profiles[profile.UserID]; !ok {
		return ErrProfileNotFound
	}
	r.profiles[profile.UserID] = &profile
	return nil
}

func (r *repoMock) WeightOf(ctx context.Context, userID int) (float64, error) {
	profile, err := r.GetProfile(ctx, userID)
	if err != nil {
		return 0, err
	}
	if profile.Weight == nil {
		return FallbackWeight, nil
	}
	return *profile.Weight, nil
}
