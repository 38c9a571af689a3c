package workouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fitstride/fitstride/internal/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

// ErrPendingWorkouts means the requested range contains workouts
// that were never closed out, so totals cannot be computed.
var ErrPendingWorkouts = errors.New("pending workouts in range")

//go:generate mockgen -source=$GOFILE -destination=analyzer_mocks_test.go -package=workouts_test

type workoutsLister interface {
	List(ctx context.Context, params ListParams) ([]Workout, error)
}

// MetricsSummary totals a user's closed workouts over a date range.
// Distance and calories stay nil when the range holds no workouts.
type MetricsSummary struct {
	StartDate           *string  `json:"start_date"`
	EndDate             *string  `json:"end_date"`
	TotalDuration       string   `json:"total_duration"`
	TotalDistance       *float64 `json:"total_distance"`
	TotalCaloriesBurned *float64 `json:"total_calories_burned"`
}

type Analyzer struct {
	repo workoutsLister
}

func NewAnalyzer(repo workoutsLister) *Analyzer {
	return &Analyzer{
		repo: repo,
	}
}

// Summary aggregates all workouts of the user in [from, to).
// A single in-progress workout in the range fails the whole request,
// partial sums would be misleading.
func (a *Analyzer) Summary(ctx context.Context, userID int, from, to *time.Time) (_ *MetricsSummary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analyzer.workouts.summary")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	workouts, err := a.repo.List(ctx, ListParams{
		UserID: userID,
		From:   from,
		To:     to,
	})
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}

	span.SetAttributes(attribute.Int("workouts.count", len(workouts)))

	for _, workout := range workouts {
		if workout.Duration == nil {
			return nil, ErrPendingWorkouts
		}
	}

	summary := &MetricsSummary{}
	var totalDuration time.Duration
	for _, workout := range workouts {
		totalDuration += *workout.Duration
		if workout.DistanceMeters != nil {
			if summary.TotalDistance == nil {
				summary.TotalDistance = new(float64)
			}
			*summary.TotalDistance += *workout.DistanceMeters
		}
		if workout.CaloriesBurned != nil {
			if summary.TotalCaloriesBurned == nil {
				summary.TotalCaloriesBurned = new(float64)
			}
			*summary.TotalCaloriesBurned += *workout.CaloriesBurned
		}
	}

	summary.TotalDuration = FormatHHMMSS(totalDuration)

	return summary, nil
}

// FormatHHMMSS renders a duration as HH:MM:SS, with hours
// going over 24 unwrapped (90 hours gives "90:00:00").
// Negative durations render as "00:00:00".
func FormatHHMMSS(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	totalSeconds := int64(d.Seconds())
	hours := totalSeconds / 3600
	remainder := totalSeconds % 3600
	return fmt.Sprintf("%02d:%02d:%02d", hours, remainder/60, remainder%60)
}
