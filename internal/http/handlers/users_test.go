package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/geocoder89/userhub/internal/http/handlers"
	"github.com/geocoder89/userhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fake implementation of handlers.UsersService

type fakeUsersService struct {
	createFn func(ctx context.Context, req user.CreateUserRequest) (user.Public, error)
	listFn   func(ctx context.Context, skip, limit int) ([]user.Public, error)
	countFn  func(ctx context.Context) (int64, error)
	getFn    func(ctx context.Context, id string) (user.Public, error)
	updateFn func(ctx context.Context, id string, req user.UpdateUserRequest) (user.Public, error)
	deleteFn func(ctx context.Context, id string) (bool, error)
}

func (f *fakeUsersService) CreateUser(ctx context.Context, req user.CreateUserRequest) (user.Public, error) {
	if f.createFn != nil {
		return f.createFn(ctx, req)
	}
	return user.Public{}, nil
}

func (f *fakeUsersService) GetUsers(ctx context.Context, skip, limit int) ([]user.Public, error) {
	if f.listFn != nil {
		return f.listFn(ctx, skip, limit)
	}
	return []user.Public{}, nil
}

func (f *fakeUsersService) GetUserCount(ctx context.Context) (int64, error) {
	if f.countFn != nil {
		return f.countFn(ctx)
	}
	return 0, nil
}

func (f *fakeUsersService) GetUserByID(ctx context.Context, id string) (user.Public, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return user.Public{}, nil
}

func (f *fakeUsersService) UpdateUser(ctx context.Context, id string, req user.UpdateUserRequest) (user.Public, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, req)
	}
	return user.Public{}, nil
}

func (f *fakeUsersService) DeleteUser(ctx context.Context, id string) (bool, error) {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return false, nil
}

// mounts one handler per test
func setupRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Handle(method, path, h)
	return r
}

func samplePublic(now time.Time) user.Public {
	return user.Public{
		ID:        uuid.NewString(),
		Name:      "Ada",
		Email:     "ada@example.com",
		IsActive:  true,
		CreatedAt: now,
	}
}

func TestCreateUserHandler(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name           string
		body           string
		svcSetup       func(*fakeUsersService)
		wantStatusCode int
		wantErrCode    string
	}{
		{
			name: "success",
			body: `{"name":"Ada","email":"ada@example.com","password":"pw"}`,
			svcSetup: func(f *fakeUsersService) {
				f.createFn = func(ctx context.Context, req user.CreateUserRequest) (user.Public, error) {
					p := samplePublic(now)
					p.Name, p.Email, p.IsAdmin = req.Name, req.Email, req.IsAdmin
					return p, nil
				}
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			// the service must not be reached
			name:           "missing_fields",
			body:           `{"name":"Ada"}`,
			wantStatusCode: http.StatusUnprocessableEntity,
			wantErrCode:    "validation_error",
		},
		{
			name:           "bad_email",
			body:           `{"name":"Ada","email":"nope","password":"pw"}`,
			wantStatusCode: http.StatusUnprocessableEntity,
			wantErrCode:    "validation_error",
		},
		{
			name: "email_taken",
			body: `{"name":"Ada","email":"ada@example.com","password":"pw"}`,
			svcSetup: func(f *fakeUsersService) {
				f.createFn = func(ctx context.Context, req user.CreateUserRequest) (user.Public, error) {
					return user.Public{}, user.ErrEmailTaken
				}
			},
			wantStatusCode: http.StatusBadRequest,
			wantErrCode:    "email_taken",
		},
		{
			name: "password_too_long",
			body: `{"name":"Ada","email":"ada@example.com","password":"pw"}`,
			svcSetup: func(f *fakeUsersService) {
				f.createFn = func(ctx context.Context, req user.CreateUserRequest) (user.Public, error) {
					return user.Public{}, user.ErrPasswordTooLong
				}
			},
			wantStatusCode: http.StatusBadRequest,
			wantErrCode:    "password_too_long",
		},
		{
			name: "service_error",
			body: `{"name":"Ada","email":"ada@example.com","password":"pw"}`,
			svcSetup: func(f *fakeUsersService) {
				f.createFn = func(ctx context.Context, req user.CreateUserRequest) (user.Public, error) {
					return user.Public{}, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
			wantErrCode:    "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeUsersService{
				createFn: func(ctx context.Context, req user.CreateUserRequest) (user.Public, error) {
					t.Fatalf("service should not be called")
					return user.Public{}, nil
				},
			}
			if tt.svcSetup != nil {
				tt.svcSetup(svc)
			}

			h := handlers.NewUsersHandler(svc, nil)
			r := setupRouter(http.MethodPost, "/users", h.CreateUser)

			req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantErrCode != "" {
				if got := errorCode(t, w); got != tt.wantErrCode {
					t.Fatalf("got error code %q, want %q", got, tt.wantErrCode)
				}
				return
			}

			var got map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if _, leaked := got["password"]; leaked {
				t.Fatalf("response must not carry the password: %s", w.Body.String())
			}
			if got["email"] != "ada@example.com" {
				t.Fatalf("unexpected body: %s", w.Body.String())
			}
		})
	}
}

func TestListUsersHandler(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name           string
		url            string
		wantSkip       int
		wantLimit      int
		wantStatusCode int
	}{
		{name: "defaults", url: "/users", wantSkip: 0, wantLimit: 100, wantStatusCode: http.StatusOK},
		{name: "explicit", url: "/users?skip=10&limit=5", wantSkip: 10, wantLimit: 5, wantStatusCode: http.StatusOK},
		{name: "limit_too_large", url: "/users?limit=500", wantStatusCode: http.StatusUnprocessableEntity},
		{name: "limit_zero", url: "/users?limit=0", wantStatusCode: http.StatusUnprocessableEntity},
		{name: "negative_skip", url: "/users?skip=-3", wantStatusCode: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false

			svc := &fakeUsersService{
				listFn: func(ctx context.Context, skip, limit int) ([]user.Public, error) {
					called = true
					if skip != tt.wantSkip || limit != tt.wantLimit {
						t.Fatalf("got skip=%d limit=%d, want skip=%d limit=%d", skip, limit, tt.wantSkip, tt.wantLimit)
					}
					return []user.Public{samplePublic(now)}, nil
				},
			}

			h := handlers.NewUsersHandler(svc, nil)
			r := setupRouter(http.MethodGet, "/users", h.ListUsers)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.url, nil))

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode != http.StatusOK {
				if called {
					t.Fatalf("service should not be called on invalid query")
				}
				return
			}

			var got []user.Public
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("got %d users, want 1", len(got))
			}
		})
	}
}

func TestListUsersHandler_NotModified(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	u := samplePublic(now)

	svc := &fakeUsersService{
		listFn: func(ctx context.Context, skip, limit int) ([]user.Public, error) {
			return []user.Public{u}, nil
		},
	}

	r := setupRouter(http.MethodGet, "/users", handlers.NewUsersHandler(svc, nil).ListUsers)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users", nil))

	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("expected an ETag header")
	}

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("If-None-Match", "W/"+etag)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotModified {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusNotModified)
	}
}

func TestCountUsersHandler(t *testing.T) {
	svc := &fakeUsersService{
		countFn: func(ctx context.Context) (int64, error) { return 42, nil },
	}

	r := setupRouter(http.MethodGet, "/users/count", handlers.NewUsersHandler(svc, nil).CountUsers)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/count", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "42" {
		t.Fatalf("got body %q, want 42", w.Body.String())
	}
}

func TestGetUserByIDHandler(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name           string
		getFn          func(ctx context.Context, id string) (user.Public, error)
		wantStatusCode int
	}{
		{
			name: "found",
			getFn: func(ctx context.Context, id string) (user.Public, error) {
				p := samplePublic(now)
				p.ID = id
				return p, nil
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "not_found",
			getFn: func(ctx context.Context, id string) (user.Public, error) {
				return user.Public{}, user.ErrNotFound
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name: "service_error",
			getFn: func(ctx context.Context, id string) (user.Public, error) {
				return user.Public{}, errors.New("boom")
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewUsersHandler(&fakeUsersService{getFn: tt.getFn}, nil)
			r := setupRouter(http.MethodGet, "/users/:id", h.GetUserByID)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/abc", nil))

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestUpdateUserHandler(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name           string
		body           string
		updateFn       func(ctx context.Context, id string, req user.UpdateUserRequest) (user.Public, error)
		wantStatusCode int
		wantErrCode    string
	}{
		{
			name: "name_only",
			body: `{"name":"Grace"}`,
			updateFn: func(ctx context.Context, id string, req user.UpdateUserRequest) (user.Public, error) {
				if req.Name == nil || *req.Name != "Grace" {
					return user.Public{}, errors.New("name not passed")
				}
				if req.Email != nil || req.IsActive != nil || req.IsAdmin != nil {
					return user.Public{}, errors.New("unexpected fields set")
				}
				p := samplePublic(now)
				p.Name = *req.Name
				return p, nil
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "empty_body_object",
			body: `{}`,
			updateFn: func(ctx context.Context, id string, req user.UpdateUserRequest) (user.Public, error) {
				return samplePublic(now), nil
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "bad_email",
			body:           `{"email":"nope"}`,
			wantStatusCode: http.StatusUnprocessableEntity,
			wantErrCode:    "validation_error",
		},
		{
			name: "not_found",
			body: `{"name":"Grace"}`,
			updateFn: func(ctx context.Context, id string, req user.UpdateUserRequest) (user.Public, error) {
				return user.Public{}, user.ErrNotFound
			},
			wantStatusCode: http.StatusNotFound,
			wantErrCode:    "not_found",
		},
		{
			name: "email_taken",
			body: `{"email":"taken@example.com"}`,
			updateFn: func(ctx context.Context, id string, req user.UpdateUserRequest) (user.Public, error) {
				return user.Public{}, user.ErrEmailTaken
			},
			wantStatusCode: http.StatusBadRequest,
			wantErrCode:    "email_taken",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewUsersHandler(&fakeUsersService{updateFn: tt.updateFn}, nil)
			r := setupRouter(http.MethodPut, "/users/:id", h.UpdateUser)

			req := httptest.NewRequest(http.MethodPut, "/users/abc", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
			if tt.wantErrCode != "" {
				if got := errorCode(t, w); got != tt.wantErrCode {
					t.Fatalf("got error code %q, want %q", got, tt.wantErrCode)
				}
			}
		})
	}
}

func TestDeleteUserHandler(t *testing.T) {
	tests := []struct {
		name           string
		deleteFn       func(ctx context.Context, id string) (bool, error)
		wantStatusCode int
	}{
		{
			name:           "deleted",
			deleteFn:       func(ctx context.Context, id string) (bool, error) { return true, nil },
			wantStatusCode: http.StatusNoContent,
		},
		{
			name:           "not_found",
			deleteFn:       func(ctx context.Context, id string) (bool, error) { return false, nil },
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:           "service_error",
			deleteFn:       func(ctx context.Context, id string) (bool, error) { return false, errors.New("boom") },
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewUsersHandler(&fakeUsersService{deleteFn: tt.deleteFn}, nil)
			r := setupRouter(http.MethodDelete, "/users/:id", h.DeleteUser)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/users/abc", nil))

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
			if tt.wantStatusCode == http.StatusNoContent && w.Body.Len() != 0 {
				t.Fatalf("expected empty body, got %q", w.Body.String())
			}
		})
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var resp struct {
		Error handlers.APIError `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid error body: %v body=%s", err, w.Body.String())
	}

	return resp.Error.Code
}

func TestUsersHandlerLogsInternalErrors(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	svc := &fakeUsersService{
		countFn: func(ctx context.Context) (int64, error) { return 0, errors.New("store down") },
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middlewares.CtxRequestID, "req-1")
		c.Next()
	})
	r.GET("/users/count", handlers.NewUsersHandler(svc, log).CountUsers)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/count", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusInternalServerError)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected one json log line from the injected logger: %v (%q)", err, buf.String())
	}
	if line["err"] != "store down" || line["request_id"] != "req-1" {
		t.Fatalf("unexpected log line: %v", line)
	}
}
