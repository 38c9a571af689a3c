package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestLogin() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registerUser(ctx, t, s.httpClient, testUsername, testPassword)

	t.Run("register duplicate username", func(t *testing.T) {
		regReqJson, err := json.Marshal(credentials{
			Username:  testUsername,
			Password:  testPassword,
			Password2: testPassword,
		})
		require.NoError(t, err)

		req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/register", serverEndpoint), bytes.NewBuffer(regReqJson))
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("good creds", func(t *testing.T) {
		token := doLogin(ctx, t, s.httpClient, testUsername, testPassword)
		assert.NotEmpty(t, token)
	})

	t.Run("good creds, then logout", func(t *testing.T) {
		token := doLogin(ctx, t, s.httpClient, testUsername, testPassword)

		req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/a/logout", serverEndpoint), nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("X-FITSTRIDE-TOKEN", token)

		logoutResp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		defer logoutResp.Body.Close()
		assert.Equal(t, http.StatusOK, logoutResp.StatusCode)

		// the session is gone now
		profileReq, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/profile", serverEndpoint), nil)
		require.NoError(t, err)
		profileReq.Header.Set("User-Agent", "test-agent")
		profileReq.Header.Set("X-FITSTRIDE-TOKEN", token)

		profileResp, err := s.httpClient.Do(profileReq)
		require.NoError(t, err)
		defer profileResp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, profileResp.StatusCode)
	})

	t.Run("bad password", func(t *testing.T) {
		loginReqJson, err := json.Marshal(credentials{
			Username: testUsername,
			Password: "bad-password",
		})
		require.NoError(t, err)

		req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/a/login", serverEndpoint), bytes.NewBuffer(loginReqJson))
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		respBytes, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "error, wrong credentials", strings.TrimSpace(string(respBytes)))
	})

	t.Run("bad username", func(t *testing.T) {
		loginReqJson, err := json.Marshal(credentials{
			Username: "bad-username",
			Password: testPassword,
		})
		require.NoError(t, err)

		req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/a/login", serverEndpoint), bytes.NewBuffer(loginReqJson))
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rate limiting", func(t *testing.T) {
		// simulate login requests brute force attack
		loginReqJson, err := json.Marshal(credentials{
			Username: "brute-force-user",
			Password: "brute-force-pass",
		})
		require.NoError(t, err)

		// start with a clean rate limit counter
		require.NoError(t, s.redisDataCleanup(ctx))

		for i := 1; i <= loginRateLimitAllowedPerMin+5; i++ {
			req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/a/login", serverEndpoint), bytes.NewBuffer(loginReqJson))
			require.NoError(t, err)
			req.Header.Set("User-Agent", "test-agent")
			req.Header.Set("Content-Type", "application/json")

			resp, err := s.httpClient.Do(req)
			require.NoError(t, err)

			if i <= loginRateLimitAllowedPerMin {
				require.Equal(t, http.StatusBadRequest, resp.StatusCode, "iteration: %d", i)
			} else {
				require.Equal(t, http.StatusTooEarly, resp.StatusCode, "iteration: %d", i)
			}

			assert.NoError(t, resp.Body.Close())
		}

		require.NoError(t, s.redisDataCleanup(ctx))
	})
}

func (s *IntegrationTestSuite) TestProfile() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registerUser(ctx, t, s.httpClient, "profileuser", testPassword)
	token := doLogin(ctx, t, s.httpClient, "profileuser", testPassword)

	doProfileReq := func(t *testing.T, method, body string) (int, map[string]interface{}) {
		t.Helper()
		req, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("%s/profile", serverEndpoint), strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-FITSTRIDE-TOKEN", token)

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		respBytes, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		var decoded map[string]interface{}
		if resp.StatusCode == http.StatusOK {
			require.NoError(t, json.Unmarshal(respBytes, &decoded))
		}
		return resp.StatusCode, decoded
	}

	t.Run("fresh profile is empty", func(t *testing.T) {
		status, profile := doProfileReq(t, "GET", "")
		require.Equal(t, http.StatusOK, status)
		assert.Nil(t, profile["age"])
		assert.Nil(t, profile["weight"])
	})

	t.Run("update profile", func(t *testing.T) {
		status, profile := doProfileReq(t, "PUT", `{"age": 34, "weight": 72.5}`)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(34), profile["age"])
		assert.Equal(t, 72.5, profile["weight"])
	})

	t.Run("patch keeps other fields", func(t *testing.T) {
		status, profile := doProfileReq(t, "PATCH", `{"weight": 70}`)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(34), profile["age"])
		assert.Equal(t, float64(70), profile["weight"])
	})
}
