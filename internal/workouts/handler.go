package workouts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fitstride/fitstride/internal/auth"
	"github.com/fitstride/fitstride/internal/telemetry/metrics"
	"github.com/fitstride/fitstride/internal/telemetry/tracing"
	"github.com/fitstride/fitstride/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=workouts_mocks_test.go -package=workouts_test

type workoutsRepo interface {
	Add(ctx context.Context, workout Workout) (*Workout, error)
	Get(ctx context.Context, userID, workoutID int) (*Workout, error)
	List(ctx context.Context, params ListParams) ([]Workout, error)
	Update(ctx context.Context, workout *Workout) error
	Delete(ctx context.Context, userID, workoutID int) error
}

type weightProvider interface {
	WeightOf(ctx context.Context, userID int) (float64, error)
}

type metricsSummarizer interface {
	Summary(ctx context.Context, userID int, from, to *time.Time) (*MetricsSummary, error)
}

type Handler struct {
	repo     workoutsRepo
	weights  weightProvider
	analyzer metricsSummarizer
	metrics  *metrics.Manager
}

func NewHandler(
	repo workoutsRepo,
	weights weightProvider,
	analyzer metricsSummarizer,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		repo:     repo,
		weights:  weights,
		analyzer: analyzer,
		metrics:  metricsManager,
	}
}

func (handler *Handler) HandleNew(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "workoutsHandler.new")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var newReq struct {
		ActivityType ActivityType `json:"activity_type"`
		Distance     *float64     `json:"distance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&newReq); err != nil {
		log.Errorf("add new workout, unmarshal json params: %s", err)
		http.Error(w, "add workout failed", http.StatusBadRequest)
		return
	}

	if !newReq.ActivityType.IsValid() {
		http.Error(w, "error, invalid activity type", http.StatusBadRequest)
		return
	}

	now := time.Now()
	workout := Workout{
		UserID:         userID,
		ActivityType:   newReq.ActivityType,
		StartTime:      now,
		Date:           now,
		DistanceMeters: newReq.Distance,
	}

	added, err := handler.repo.Add(ctx, workout)
	if err != nil {
		log.Errorf("failed to add new workout: %s", err)
		http.Error(w, "error, workout not added", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterWorkoutsCreated.Inc()

	addedJson, err := json.Marshal(added)
	if err != nil {
		log.Errorf("add new workout, marshal: %s", err)
		http.Error(w, "error, workout not added", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, addedJson, http.StatusCreated)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "workoutsHandler.list")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	params := ListParams{UserID: userID}

	if activityType := r.URL.Query().Get("activity_type"); activityType != "" {
		if !ActivityType(activityType).IsValid() {
			http.Error(w, "error, invalid activity type", http.StatusBadRequest)
			return
		}
		params.ActivityType = ActivityType(activityType)
	}

	if duration := r.URL.Query().Get("duration"); duration != "" {
		durationSeconds, err := strconv.ParseInt(duration, 10, 64)
		if err != nil || durationSeconds <= 0 {
			http.Error(w, "error, invalid duration", http.StatusBadRequest)
			return
		}
		params.DurationSeconds = durationSeconds
	}

	from, to, err := parseDateRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	params.From = from
	params.To = to

	workouts, err := handler.repo.List(ctx, params)
	if err != nil {
		log.Errorf("list workouts: %s", err)
		http.Error(w, "error, failed to list workouts", http.StatusInternalServerError)
		return
	}
	if workouts == nil {
		workouts = []Workout{}
	}

	workoutsJson, err := json.Marshal(workouts)
	if err != nil {
		log.Errorf("list workouts, marshal: %s", err)
		http.Error(w, "error, failed to list workouts", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, workoutsJson)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "workoutsHandler.get")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	workoutID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, workout id invalid", http.StatusBadRequest)
		return
	}

	workout, err := handler.repo.Get(ctx, userID, workoutID)
	if err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "error, workout not found", http.StatusNotFound)
			return
		}
		log.Errorf("get workout %d: %s", workoutID, err)
		http.Error(w, "error, failed to get workout", http.StatusInternalServerError)
		return
	}

	workoutJson, err := json.Marshal(workout)
	if err != nil {
		log.Errorf("get workout, marshal: %s", err)
		http.Error(w, "error, failed to get workout", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, workoutJson)
}

// HandleClose closes out an in-progress workout: end time is set to now,
// duration derived from it, and calories computed off the user's weight.
// Duration, calories and end time are never taken from the request.
func (handler *Handler) HandleClose(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "workoutsHandler.close")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	workoutID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, workout id invalid", http.StatusBadRequest)
		return
	}

	var closeReq struct {
		ActivityType ActivityType `json:"activity_type"`
		Distance     *float64     `json:"distance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&closeReq); err != nil {
		log.Errorf("close workout, unmarshal json params: %s", err)
		http.Error(w, "close workout failed", http.StatusBadRequest)
		return
	}

	if !closeReq.ActivityType.IsValid() {
		http.Error(w, "error, invalid activity type", http.StatusBadRequest)
		return
	}

	workout, err := handler.repo.Get(ctx, userID, workoutID)
	if err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "error, workout not found", http.StatusNotFound)
			return
		}
		log.Errorf("close workout %d, get: %s", workoutID, err)
		http.Error(w, "close workout failed", http.StatusInternalServerError)
		return
	}

	weight, err := handler.weights.WeightOf(ctx, userID)
	if err != nil {
		log.Errorf("close workout %d, get weight: %s", workoutID, err)
		http.Error(w, "close workout failed", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	duration := now.Sub(workout.StartTime)
	calories := CaloriesFor(closeReq.ActivityType, weight, duration)

	workout.ActivityType = closeReq.ActivityType
	workout.EndTime = &now
	workout.Duration = &duration
	workout.CaloriesBurned = &calories
	if closeReq.Distance != nil {
		workout.DistanceMeters = closeReq.Distance
	}

	if err := handler.repo.Update(ctx, workout); err != nil {
		log.Errorf("close workout %d, update: %s", workoutID, err)
		http.Error(w, "close workout failed", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterWorkoutsClosed.Inc()

	workoutJson, err := json.Marshal(workout)
	if err != nil {
		log.Errorf("close workout, marshal: %s", err)
		http.Error(w, "close workout failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, workoutJson)
}

// HandleEdit changes activity type and distance only, derived
// fields stay as they are.
func (handler *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "workoutsHandler.edit")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	workoutID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, workout id invalid", http.StatusBadRequest)
		return
	}

	var editReq struct {
		ActivityType *ActivityType `json:"activity_type"`
		Distance     *float64      `json:"distance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&editReq); err != nil {
		log.Errorf("edit workout, unmarshal json params: %s", err)
		http.Error(w, "edit workout failed", http.StatusBadRequest)
		return
	}

	if editReq.ActivityType != nil && !editReq.ActivityType.IsValid() {
		http.Error(w, "error, invalid activity type", http.StatusBadRequest)
		return
	}

	workout, err := handler.repo.Get(ctx, userID, workoutID)
	if err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "error, workout not found", http.StatusNotFound)
			return
		}
		log.Errorf("edit workout %d, get: %s", workoutID, err)
		http.Error(w, "edit workout failed", http.StatusInternalServerError)
		return
	}

	if editReq.ActivityType != nil {
		workout.ActivityType = *editReq.ActivityType
	}
	if editReq.Distance != nil {
		workout.DistanceMeters = editReq.Distance
	}

	if err := handler.repo.Update(ctx, workout); err != nil {
		log.Errorf("edit workout %d, update: %s", workoutID, err)
		http.Error(w, "edit workout failed", http.StatusInternalServerError)
		return
	}

	workoutJson, err := json.Marshal(workout)
	if err != nil {
		log.Errorf("edit workout, marshal: %s", err)
		http.Error(w, "edit workout failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, workoutJson)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "workoutsHandler.delete")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	workoutID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, workout id invalid", http.StatusBadRequest)
		return
	}

	if err := handler.repo.Delete(ctx, userID, workoutID); err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "error, workout not found", http.StatusNotFound)
			return
		}
		log.Errorf("delete workout %d: %s", workoutID, err)
		http.Error(w, "error, workout not deleted", http.StatusInternalServerError)
		return
	}

	pkg.WriteTextResponseOK(w, fmt.Sprintf("deleted:%d", workoutID))
}

func (handler *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "workoutsHandler.metrics")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	startDate := r.URL.Query().Get("start_date")
	endDate := r.URL.Query().Get("end_date")

	from, to, err := parseDateRange(startDate, endDate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := handler.analyzer.Summary(ctx, userID, from, to)
	if err != nil {
		if errors.Is(err, ErrPendingWorkouts) {
			http.Error(w, "error, please update all pending workouts before running metrics", http.StatusBadRequest)
			return
		}
		log.Errorf("workout metrics: %s", err)
		http.Error(w, "error, failed to get workout metrics", http.StatusInternalServerError)
		return
	}

	if startDate != "" {
		summary.StartDate = &startDate
	}
	if endDate != "" {
		summary.EndDate = &endDate
	}

	summaryJson, err := json.Marshal(summary)
	if err != nil {
		log.Errorf("workout metrics, marshal: %s", err)
		http.Error(w, "error, failed to get workout metrics", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, summaryJson)
}

// parseDateRange turns YYYY-MM-DD date strings into time bounds,
// the end date covering its whole day. Empty strings mean no bound.
func parseDateRange(startDate, endDate string) (from, to *time.Time, err error) {
	if startDate != "" {
		parsed, err := time.Parse(DateLayout, startDate)
		if err != nil {
			return nil, nil, errors.New("error, invalid start date format")
		}
		from = &parsed
	}
	if endDate != "" {
		parsed, err := time.Parse(DateLayout, endDate)
		if err != nil {
			return nil, nil, errors.New("error, invalid end date format")
		}
		endOfDay := parsed.Add(24 * time.Hour)
		to = &endOfDay
	}
	return from, to, nil
}
