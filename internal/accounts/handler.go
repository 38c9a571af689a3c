package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fitstride/fitstride/internal/auth"
	"github.com/fitstride/fitstride/internal/middleware"
	"github.com/fitstride/fitstride/internal/telemetry/metrics"
	"github.com/fitstride/fitstride/internal/telemetry/tracing"
	"github.com/fitstride/fitstride/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const minPasswordLength = 8

type accountsRepo interface {
	CreateUser(ctx context.Context, username string, email *string, passwordHash string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetProfile(ctx context.Context, userID int) (*Profile, error)
	UpdateProfile(ctx context.Context, profile Profile) error
}

type loginService interface {
	Login(ctx context.Context, userID int, createdAt time.Time) (string, error)
	Logout(ctx context.Context, token string) (bool, error)
}

type Handler struct {
	repo        accountsRepo
	authService loginService
	metrics     *metrics.Manager
}

func NewHandler(repo accountsRepo, authService loginService, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:        repo,
		authService: authService,
		metrics:     metricsManager,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	loginRateLimitAllowedPerMin int,
) {
	mainRouter.HandleFunc("/register", handler.HandleRegister).Methods("POST", "OPTIONS").Name("register")

	mainRouter.HandleFunc("/profile", handler.HandleGetProfile).Methods("GET", "OPTIONS").Name("get-profile")
	mainRouter.HandleFunc("/profile", handler.HandleUpdateProfile).Methods("PUT", "OPTIONS").Name("update-profile")
	mainRouter.HandleFunc("/profile", handler.HandlePatchProfile).Methods("PATCH", "OPTIONS").Name("patch-profile")

	loginSubrouter := mainRouter.PathPrefix("/a").Subrouter()
	loginSubrouter.
		HandleFunc("/login", handler.HandleLogin).
		Methods("POST", "OPTIONS").Name("login")
	loginSubrouter.
		HandleFunc("/logout", handler.HandleLogout).
		Methods("POST", "OPTIONS").Name("logout")

	// rate limit the /login and /logout endpoints to prevent abuse
	loginSubrouter.Use(middleware.RateLimit(rateLimiter, "login", loginRateLimitAllowedPerMin, handler.metrics))
	loginSubrouter.Use(middleware.Cors())
}

func (handler *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "accountsHandler.register")
	defer span.End()

	type registerRequest struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		Password2 string `json:"password2"`
	}

	var regReq registerRequest
	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&regReq); err != nil {
			log.Errorf("register, unmarshal json params: %s", err)
			http.Error(w, "register failed", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Errorf("register failed, parse form error: %s", err)
			http.Error(w, "parse form error", http.StatusInternalServerError)
			return
		}
		regReq = registerRequest{
			Username:  r.Form.Get("username"),
			Email:     r.Form.Get("email"),
			Password:  r.Form.Get("password"),
			Password2: r.Form.Get("password2"),
		}
	}

	if regReq.Username == "" {
		http.Error(w, "error, username empty", http.StatusBadRequest)
		return
	}
	if regReq.Password == "" {
		http.Error(w, "error, password empty", http.StatusBadRequest)
		return
	}
	if len(regReq.Password) < minPasswordLength {
		http.Error(w, "error, password too short", http.StatusBadRequest)
		return
	}
	if regReq.Password != regReq.Password2 {
		http.Error(w, "error, passwords do not match", http.StatusBadRequest)
		return
	}

	passwordHash, err := pkg.HashPassword(regReq.Password)
	if err != nil {
		log.Errorf("register failed, hash password: %s", err)
		http.Error(w, "register failed", http.StatusInternalServerError)
		return
	}

	var email *string
	if regReq.Email != "" {
		email = &regReq.Email
	}

	user, err := handler.repo.CreateUser(ctx, regReq.Username, email, passwordHash)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			http.Error(w, "error, username taken", http.StatusConflict)
			return
		}
		log.Errorf("register failed, create user: %s", err)
		http.Error(w, "register failed", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterRegisteredUsers.Inc()
	log.Tracef("new user registered: %s", user.Username)

	userJson, err := json.Marshal(user)
	if err != nil {
		log.Errorf("register, marshal user: %s", err)
		http.Error(w, "register failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, userJson, http.StatusCreated)
}

func (handler *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "accountsHandler.login")
	defer span.End()

	type loginRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	var loginReq loginRequest
	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&loginReq); err != nil {
			log.Errorf("login, unmarshal json params: %s", err)
			http.Error(w, "login failed", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Errorf("login failed, parse form error: %s", err)
			http.Error(w, "parse form error", http.StatusInternalServerError)
			return
		}
		loginReq = loginRequest{
			Username: r.Form.Get("username"),
			Password: r.Form.Get("password"),
		}
	}

	if loginReq.Username == "" {
		http.Error(w, "error, username empty", http.StatusBadRequest)
		return
	}
	if loginReq.Password == "" {
		http.Error(w, "error, password empty", http.StatusBadRequest)
		return
	}

	user, err := handler.repo.GetUserByUsername(ctx, loginReq.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			log.Tracef("[username] failed login attempt for user: %s", loginReq.Username)
			http.Error(w, "error, wrong credentials", http.StatusBadRequest)
			return
		}
		log.Errorf("login failed, get user: %s", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	if !pkg.CheckPasswordHash(loginReq.Password, user.PasswordHash) {
		log.Tracef("[password] failed login attempt for user: %s", loginReq.Username)
		http.Error(w, "error, wrong credentials", http.StatusBadRequest)
		return
	}

	token, err := handler.authService.Login(ctx, user.ID, time.Now())
	if err != nil {
		log.Errorf("login failed, generate token error: %s", err)
		http.Error(w, "generate token error", http.StatusInternalServerError)
		return
	}

	log.Tracef("new login success: %s", user.Username)
	pkg.WriteJSONResponseOK(w, fmt.Sprintf(`{"token": "%s"}`, token))
}

func (handler *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "accountsHandler.logout")
	defer span.End()

	authToken := r.Header.Get("X-FITSTRIDE-TOKEN")
	if authToken == "" {
		http.Error(w, "error, no token", http.StatusBadRequest)
		return
	}

	loggedOut, err := handler.authService.Logout(ctx, authToken)
	if err != nil {
		log.Errorf("logout failed: %s", err)
		http.Error(w, "logout failed", http.StatusInternalServerError)
		return
	}
	if !loggedOut {
		http.Error(w, "error, not logged in", http.StatusBadRequest)
		return
	}

	pkg.WriteTextResponseOK(w, "logged-out")
}

func (handler *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "accountsHandler.getProfile")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	profile, err := handler.repo.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			http.Error(w, "profile not found", http.StatusNotFound)
			return
		}
		log.Errorf("get profile failed: %s", err)
		http.Error(w, "get profile failed", http.StatusInternalServerError)
		return
	}

	profileJson, err := json.Marshal(profile)
	if err != nil {
		log.Errorf("get profile, marshal: %s", err)
		http.Error(w, "get profile failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, profileJson)
}

// HandleUpdateProfile replaces the profile values with the given ones.
// Fields absent from the request clear the stored value.
func (handler *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "accountsHandler.updateProfile")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var updateReq struct {
		Age    *int     `json:"age"`
		Weight *float64 `json:"weight"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateReq); err != nil {
		log.Errorf("update profile, unmarshal json params: %s", err)
		http.Error(w, "update profile failed", http.StatusBadRequest)
		return
	}

	profile := Profile{
		UserID: userID,
		Age:    updateReq.Age,
		Weight: updateReq.Weight,
	}
	if err := handler.repo.UpdateProfile(ctx, profile); err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			http.Error(w, "profile not found", http.StatusNotFound)
			return
		}
		log.Errorf("update profile failed: %s", err)
		http.Error(w, "update profile failed", http.StatusInternalServerError)
		return
	}

	profileJson, err := json.Marshal(profile)
	if err != nil {
		log.Errorf("update profile, marshal: %s", err)
		http.Error(w, "update profile failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, profileJson)
}

// HandlePatchProfile updates only the fields present in the request.
func (handler *Handler) HandlePatchProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "accountsHandler.patchProfile")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var patchReq struct {
		Age    *int     `json:"age"`
		Weight *float64 `json:"weight"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patchReq); err != nil {
		log.Errorf("patch profile, unmarshal json params: %s", err)
		http.Error(w, "patch profile failed", http.StatusBadRequest)
		return
	}

	profile, err := handler.repo.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			http.Error(w, "profile not found", http.StatusNotFound)
			return
		}
		log.Errorf("patch profile, get profile: %s", err)
		http.Error(w, "patch profile failed", http.StatusInternalServerError)
		return
	}

	if patchReq.Age != nil {
		profile.Age = patchReq.Age
	}
	if patchReq.Weight != nil {
		profile.Weight = patchReq.Weight
	}

	if err := handler.repo.UpdateProfile(ctx, *profile); err != nil {
		log.Errorf("patch profile failed: %s", err)
		http.Error(w, "patch profile failed", http.StatusInternalServerError)
		return
	}

	profileJson, err := json.Marshal(profile)
	if err != nil {
		log.Errorf("patch profile, marshal: %s", err)
		http.Error(w, "patch profile failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, profileJson)
}
