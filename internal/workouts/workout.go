package workouts

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrWorkoutNotFound = errors.New("workout not found")

const DateLayout = "2006-01-02"

type ActivityType string

const (
	ActivityWalking       ActivityType = "Walking"
	ActivitySkipping      ActivityType = "Skipping"
	ActivityRunning       ActivityType = "Running"
	ActivityCycling       ActivityType = "Cycling"
	ActivityWeightlifting ActivityType = "Weightlifting"
)

func (at ActivityType) IsValid() bool {
	switch at {
	case ActivityWalking, ActivitySkipping, ActivityRunning, ActivityCycling, ActivityWeightlifting:
		return true
	}
	return false
}

// MET returns the metabolic equivalent of the activity.
// Unrecognized activities get the resting value 1.
func (at ActivityType) MET() float64 {
	switch at {
	case ActivityWalking:
		return 3.0
	case ActivitySkipping:
		return 10.0
	case ActivityRunning:
		return 9.8
	case ActivityCycling:
		return 6.0
	case ActivityWeightlifting:
		return 4.7
	default:
		return 1.0
	}
}

type Workout struct {
	ID             int
	UserID         int
	ActivityType   ActivityType
	StartTime      time.Time
	EndTime        *time.Time
	Duration       *time.Duration
	DistanceMeters *float64
	CaloriesBurned *float64
	Date           time.Time
}

// InProgress reports whether the workout was never closed out.
func (w Workout) InProgress() bool {
	return w.EndTime == nil
}

func (w Workout) MarshalJSON() ([]byte, error) {
	var durationSeconds *int64
	if w.Duration != nil {
		seconds := int64(w.Duration.Seconds())
		durationSeconds = &seconds
	}
	return json.Marshal(struct {
		ID              int          `json:"id"`
		ActivityType    ActivityType `json:"activity_type"`
		StartTime       time.Time    `json:"start_time"`
		EndTime         *time.Time   `json:"end_time"`
		DurationSeconds *int64       `json:"duration_seconds"`
		Distance        *float64     `json:"distance"`
		CaloriesBurned  *float64     `json:"calories_burned"`
		Date            string       `json:"date"`
	}{
		ID:              w.ID,
		ActivityType:    w.ActivityType,
		StartTime:       w.StartTime,
		EndTime:         w.EndTime,
		DurationSeconds: durationSeconds,
		Distance:        w.DistanceMeters,
		CaloriesBurned:  w.CaloriesBurned,
		Date:            w.Date.Format(DateLayout),
	})
}

// CaloriesFor estimates the calories burned during an activity
// with the MET formula: MET * 3.5 * weight[kg] * minutes / 200.
func CaloriesFor(activityType ActivityType, weightKg float64, duration time.Duration) float64 {
	return activityType.MET() * 3.5 * weightKg * duration.Minutes() / 200
}
