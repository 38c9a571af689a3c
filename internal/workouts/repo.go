package workouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fitstride/fitstride/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

type ListParams struct {
	UserID       int
	ActivityType ActivityType
	// exact duration match, in whole seconds; 0 means no filter
	DurationSeconds int64
	From            *time.Time
	To              *time.Time
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, workout Workout) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO workout
				(user_id, activity_type, start_time, end_time, duration_seconds, distance, calories_burned, date)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id;`,
		workout.UserID, workout.ActivityType, workout.StartTime, workout.EndTime,
		durationToSeconds(workout.Duration), workout.DistanceMeters, workout.CaloriesBurned, workout.Date,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, errors.New("unexpected error [no rows next]")
	}

	var id int
	if err := rows.Scan(&id); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	span.SetAttributes(attribute.Int("workout.id", id))

	workout.ID = id
	return &workout, nil
}

func (r *Repo) Get(ctx context.Context, userID, workoutID int) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", workoutID))

	row := r.db.QueryRow(
		ctx,
		`SELECT id, user_id, activity_type, start_time, end_time, duration_seconds, distance, calories_burned, date
			FROM workout
			WHERE id = $1 AND user_id = $2;`,
		workoutID, userID,
	)

	workout, err := scanWorkout(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}

	return workout, nil
}

func (r *Repo) List(ctx context.Context, params ListParams) (_ []Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", params.UserID))

	from := time.Time{}
	if params.From != nil {
		from = *params.From
	}
	// zero "to" means no upper bound
	to := time.Time{}
	if params.To != nil {
		to = *params.To
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, activity_type, start_time, end_time, duration_seconds, distance, calories_burned, date
			FROM workout
			WHERE
				user_id = $1
				AND ($2::text = '' OR activity_type = $2)
				AND ($3::bigint = 0 OR duration_seconds = $3)
				AND ($4::timestamptz = '0001-01-01 00:00:00+00' OR date >= $4)
				AND ($5::timestamptz = '0001-01-01 00:00:00+00' OR date < $5)
			ORDER BY date DESC, id DESC;`,
		params.UserID, string(params.ActivityType), params.DurationSeconds, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workouts []Workout
	for rows.Next() {
		workout, err := scanWorkout(rows)
		if err != nil {
			return nil, err
		}
		workouts = append(workouts, *workout)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("workouts.count", len(workouts)))

	return workouts, nil
}

func (r *Repo) Update(ctx context.Context, workout *Workout) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", workout.ID))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE workout
			SET activity_type = $1, end_time = $2, duration_seconds = $3, distance = $4, calories_burned = $5
			WHERE id = $6 AND user_id = $7;`,
		workout.ActivityType, workout.EndTime, durationToSeconds(workout.Duration),
		workout.DistanceMeters, workout.CaloriesBurned, workout.ID, workout.UserID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrWorkoutNotFound
	}

	return nil
}

func (r *Repo) Delete(ctx context.Context, userID, workoutID int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", workoutID))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM workout WHERE id = $1 AND user_id = $2;`,
		workoutID, userID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrWorkoutNotFound
	}

	return nil
}

func scanWorkout(row pgx.Row) (*Workout, error) {
	var workout Workout
	var durationSeconds *int64
	if err := row.Scan(
		&workout.ID, &workout.UserID, &workout.ActivityType, &workout.StartTime, &workout.EndTime,
		&durationSeconds, &workout.DistanceMeters, &workout.CaloriesBurned, &workout.Date,
	); err != nil {
		return nil, err
	}
	workout.Duration = secondsToDuration(durationSeconds)
	return &workout, nil
}

func durationToSeconds(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	seconds := int64(d.Seconds())
	return &seconds
}

func secondsToDuration(seconds *int64) *time.Duration {
	if seconds == nil {
		return nil
	}
	d := time.Duration(*seconds) * time.Second
	return &d
}
