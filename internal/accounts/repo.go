package accounts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fitstride/fitstride/internal/telemetry/tracing"

	"github.com/coocood/freecache"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

const (
	weightCacheSize       = 256 * 1024
	weightCacheTTLSeconds = 5 * 60

	// weight used for calorie estimations when the user never set one
	FallbackWeight = 1
)

type Repo struct {
	db          *pgxpool.Pool
	weightCache *freecache.Cache
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db:          db,
		weightCache: freecache.NewCache(weightCacheSize),
	}
}

// CreateUser stores a new user together with an empty profile.
func (r *Repo) CreateUser(ctx context.Context, username string, email *string, passwordHash string) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.accounts.createUser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	createdAt := time.Now()
	var id int
	if err = tx.QueryRow(
		ctx,
		`INSERT INTO users (username, email, password_hash, created_at) VALUES ($1, $2, $3, $4) RETURNING id;`,
		username, email, passwordHash, createdAt,
	).Scan(&id); err != nil {
		return nil, err
	}

	if _, err = tx.Exec(
		ctx,
		`INSERT INTO profile (user_id) VALUES ($1);`,
		id,
	); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	span.SetAttributes(attribute.Int("user.id", id))

	return &User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    createdAt,
	}, nil
}

func (r *Repo) GetUserByUsername(ctx context.Context, username string) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.accounts.getUserByUsername")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var user User
	err = r.db.QueryRow(
		ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE username = $1;`,
		username,
	).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &user, nil
}

func (r *Repo) GetProfile(ctx context.Context, userID int) (_ *Profile, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.accounts.getProfile")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	var profile Profile
	err = r.db.QueryRow(
		ctx,
		`SELECT user_id, age, weight FROM profile WHERE user_id = $1;`,
		userID,
	).Scan(&profile.UserID, &profile.Age, &profile.Weight)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	return &profile, nil
}

func (r *Repo) UpdateProfile(ctx context.Context, profile Profile) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.accounts.updateProfile")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", profile.UserID))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE profile SET age = $1, weight = $2 WHERE user_id = $3;`,
		profile.Age, profile.Weight, profile.UserID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}

	// stored weight changed, drop the cached value
	r.weightCache.Del(weightCacheKey(profile.UserID))

	return nil
}

// WeightOf returns the user's weight in kilograms, falling back
// to FallbackWeight when the profile has no weight set.
func (r *Repo) WeightOf(ctx context.Context, userID int) (_ float64, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.accounts.weightOf")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	if cached, err := r.weightCache.Get(weightCacheKey(userID)); err == nil {
		if weight, err := strconv.ParseFloat(string(cached), 64); err == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return weight, nil
		}
	}

	profile, err := r.GetProfile(ctx, userID)
	if err != nil {
		return 0, err
	}

	weight := float64(FallbackWeight)
	if profile.Weight != nil {
		weight = *profile.Weight
	}

	cacheValue := strconv.FormatFloat(weight, 'f', -1, 64)
	if err := r.weightCache.Set(weightCacheKey(userID), []byte(cacheValue), weightCacheTTLSeconds); err != nil {
		span.SetAttributes(attribute.String("cache.set.error", err.Error()))
	}

	return weight, nil
}

func weightCacheKey(userID int) []byte {
	return []byte("weight::" + strconv.Itoa(userID))
}
