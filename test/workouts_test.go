package test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) doWorkoutsReq(
	ctx context.Context, t *testing.T,
	method, path, token, body string,
) (int, []byte) {
	t.Helper()

	req, err := http.NewRequestWithContext(ctx, method, serverEndpoint+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-FITSTRIDE-TOKEN", token)

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, respBytes
}

func (s *IntegrationTestSuite) TestWorkouts() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registerUser(ctx, t, s.httpClient, "workoutsuser", testPassword)
	token := doLogin(ctx, t, s.httpClient, "workoutsuser", testPassword)

	// the calorie numbers below assume this weight
	status, _ := s.doWorkoutsReq(ctx, t, "PUT", "/profile", token, `{"weight": 70}`)
	require.Equal(t, http.StatusOK, status)

	var workoutID int
	var closedDurationSeconds int64

	t.Run("create workout", func(t *testing.T) {
		status, respBytes := s.doWorkoutsReq(ctx, t, "POST", "/workouts", token, `{"activity_type": "Running", "distance": 5000}`)
		require.Equal(t, http.StatusCreated, status)

		var created map[string]interface{}
		require.NoError(t, json.Unmarshal(respBytes, &created))
		assert.Equal(t, "Running", created["activity_type"])
		assert.NotNil(t, created["start_time"])
		assert.Nil(t, created["end_time"])
		assert.Nil(t, created["duration_seconds"])
		assert.Nil(t, created["calories_burned"])
		assert.Equal(t, float64(5000), created["distance"])

		workoutID = int(created["id"].(float64))
		require.NotZero(t, workoutID)
	})

	t.Run("create workout invalid activity", func(t *testing.T) {
		status, _ := s.doWorkoutsReq(ctx, t, "POST", "/workouts", token, `{"activity_type": "Swimming"}`)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("list workouts", func(t *testing.T) {
		status, respBytes := s.doWorkoutsReq(ctx, t, "GET", "/workouts", token, "")
		require.Equal(t, http.StatusOK, status)

		var listed []map[string]interface{}
		require.NoError(t, json.Unmarshal(respBytes, &listed))
		require.Len(t, listed, 1)
		assert.Equal(t, float64(workoutID), listed[0]["id"])
	})

	t.Run("metrics with pending workout", func(t *testing.T) {
		status, respBytes := s.doWorkoutsReq(ctx, t, "GET", "/workouts/metrics", token, "")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, string(respBytes), "pending workouts")
	})

	t.Run("close workout", func(t *testing.T) {
		status, respBytes := s.doWorkoutsReq(ctx, t, "PUT", fmt.Sprintf("/workouts/%d", workoutID), token, `{"activity_type": "Running"}`)
		require.Equal(t, http.StatusOK, status)

		var closed map[string]interface{}
		require.NoError(t, json.Unmarshal(respBytes, &closed))
		assert.NotNil(t, closed["end_time"])
		require.NotNil(t, closed["duration_seconds"])
		closedDurationSeconds = int64(closed["duration_seconds"].(float64))
		require.NotNil(t, closed["calories_burned"])
		assert.Greater(t, closed["calories_burned"].(float64), float64(0))
	})

	t.Run("list with duration filter", func(t *testing.T) {
		status, respBytes := s.doWorkoutsReq(ctx, t, "GET", fmt.Sprintf("/workouts?duration=%d", closedDurationSeconds), token, "")
		require.Equal(t, http.StatusOK, status)

		var listed []map[string]interface{}
		require.NoError(t, json.Unmarshal(respBytes, &listed))
		require.Len(t, listed, 1)
		assert.Equal(t, float64(workoutID), listed[0]["id"])

		// no workout lasted this long
		status, respBytes = s.doWorkoutsReq(ctx, t, "GET", "/workouts?duration=999999", token, "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "[]", strings.TrimSpace(string(respBytes)))
	})

	t.Run("edit workout distance", func(t *testing.T) {
		status, respBytes := s.doWorkoutsReq(ctx, t, "PATCH", fmt.Sprintf("/workouts/%d", workoutID), token, `{"distance": 4200}`)
		require.Equal(t, http.StatusOK, status)

		var edited map[string]interface{}
		require.NoError(t, json.Unmarshal(respBytes, &edited))
		assert.Equal(t, float64(4200), edited["distance"])
		// closing results stay untouched
		assert.NotNil(t, edited["duration_seconds"])
		assert.NotNil(t, edited["calories_burned"])
	})

	t.Run("metrics", func(t *testing.T) {
		today := time.Now().Format("2006-01-02")
		status, respBytes := s.doWorkoutsReq(
			ctx, t, "GET",
			fmt.Sprintf("/workouts/metrics?start_date=%s&end_date=%s", today, today),
			token, "",
		)
		require.Equal(t, http.StatusOK, status)

		var summary map[string]interface{}
		require.NoError(t, json.Unmarshal(respBytes, &summary))
		assert.Equal(t, today, summary["start_date"])
		assert.Equal(t, today, summary["end_date"])
		assert.NotEmpty(t, summary["total_duration"])
		assert.Equal(t, float64(4200), summary["total_distance"])
		assert.NotNil(t, summary["total_calories_burned"])
	})

	t.Run("metrics invalid date", func(t *testing.T) {
		status, respBytes := s.doWorkoutsReq(ctx, t, "GET", "/workouts/metrics?start_date=31-12-2025", token, "")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, string(respBytes), "invalid start date")
	})

	t.Run("other user cannot see the workout", func(t *testing.T) {
		registerUser(ctx, t, s.httpClient, "otheruser", testPassword)
		otherToken := doLogin(ctx, t, s.httpClient, "otheruser", testPassword)

		status, _ := s.doWorkoutsReq(ctx, t, "GET", fmt.Sprintf("/workouts/%d", workoutID), otherToken, "")
		assert.Equal(t, http.StatusNotFound, status)

		status, _ = s.doWorkoutsReq(ctx, t, "DELETE", fmt.Sprintf("/workouts/%d", workoutID), otherToken, "")
		assert.Equal(t, http.StatusNotFound, status)

		status, respBytes := s.doWorkoutsReq(ctx, t, "GET", "/workouts", otherToken, "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "[]", strings.TrimSpace(string(respBytes)))
	})

	t.Run("close with no weight set", func(t *testing.T) {
		registerUser(ctx, t, s.httpClient, "fallbackuser", testPassword)
		fbToken := doLogin(ctx, t, s.httpClient, "fallbackuser", testPassword)

		status, respBytes := s.doWorkoutsReq(ctx, t, "POST", "/workouts", fbToken, `{"activity_type": "Walking"}`)
		require.Equal(t, http.StatusCreated, status)
		var created map[string]interface{}
		require.NoError(t, json.Unmarshal(respBytes, &created))
		fbWorkoutID := int(created["id"].(float64))

		status, respBytes = s.doWorkoutsReq(ctx, t, "PUT", fmt.Sprintf("/workouts/%d", fbWorkoutID), fbToken, `{"activity_type": "Walking"}`)
		require.Equal(t, http.StatusOK, status)

		var closed map[string]interface{}
		require.NoError(t, json.Unmarshal(respBytes, &closed))
		require.NotNil(t, closed["duration_seconds"])
		require.NotNil(t, closed["calories_burned"])

		// profile weight never set, so calories come out with the fallback weight of 1
		minutes := closed["duration_seconds"].(float64) / 60
		expectedCalories := 3.0 * 3.5 * 1 * minutes / 200
		assert.InDelta(t, expectedCalories, closed["calories_burned"].(float64), 0.01)
	})

	t.Run("delete workout", func(t *testing.T) {
		status, respBytes := s.doWorkoutsReq(ctx, t, "DELETE", fmt.Sprintf("/workouts/%d", workoutID), token, "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, fmt.Sprintf("deleted:%d", workoutID), strings.TrimSpace(string(respBytes)))

		status, _ = s.doWorkoutsReq(ctx, t, "GET", fmt.Sprintf("/workouts/%d", workoutID), token, "")
		assert.Equal(t, http.StatusNotFound, status)
	})
}
