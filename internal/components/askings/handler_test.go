package askings_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/askings-go/internal/components/api"
	"github.com/MahdiBaghbani/askings-go/internal/components/askings"
	"github.com/MahdiBaghbani/askings-go/internal/components/identity"
	"github.com/MahdiBaghbani/askings-go/internal/platform/http/auth"
)

type tokenResolver map[string]*identity.Caller

func (r tokenResolver) Resolve(_ context.Context, token string) (*identity.Caller, error) {
	if token == "" {
		return nil, identity.ErrUnauthenticated
	}
	if c, ok := r[token]; ok {
		return c, nil
	}
	return nil, identity.ErrInvalidToken
}

func newRouter(svc *askings.Service) http.Handler {
	h := askings.NewHandler(svc, nil)
	require := auth.RequireCaller(tokenResolver{
		"t-alice": alice, "t-bob": bob, "t-carol": carol, "t-admin": admin,
	}, nil)

	r := chi.NewRouter()
	r.Get("/asking", h.ListAll)
	r.Group(func(r chi.Router) {
		r.Use(require)
		r.Post("/asking", h.Create)
		r.Get("/asking/{id}", h.Get)
		r.Patch("/asking/{id}", h.Update)
		r.Delete("/asking/{id}", h.Delete)
		r.Patch("/accept-asking/{id}", h.Transition)
		r.Get("/askings/mentor/{mentor_id}", h.ListByMentor)
		r.Get("/askings/user/{user_id}", h.ListByUser)
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func envelope(t *testing.T, rec *httptest.ResponseRecorder) api.ErrorEnvelope {
	t.Helper()
	var env api.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	return env
}

func TestHandler_Lifecycle(t *testing.T) {
	router := newRouter(newService(t, askings.Options{}))

	rec := do(t, router, http.MethodGet, "/asking", "", "")
	if rec.Code != http.StatusNotFound || envelope(t, rec).Msg != "No askings found" {
		t.Fatalf("empty ListAll = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodPost, "/asking", "t-alice",
		`{"title":"Go","description":"help","start_date":"2024-01-01T10:00:00Z","mentor_id":"bob"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
	var created askings.Asking
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.EndDate.Format("2006-01-02T15:04:05Z07:00") != "2024-01-01T11:00:00Z" {
		t.Errorf("end_date = %v", created.EndDate)
	}
	if created.UserID != "alice" || created.State != "pending" {
		t.Errorf("created = %+v", created)
	}

	rec = do(t, router, http.MethodPatch, "/accept-asking/"+created.ID, "t-carol", `{"state":"accepted"}`)
	if rec.Code != http.StatusForbidden || envelope(t, rec).Msg != "Unauthorized" {
		t.Errorf("foreign mentor transition = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodPatch, "/accept-asking/"+created.ID, "t-bob", `{"state":"accepted"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"state":"accepted"`) {
		t.Errorf("mentor transition = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodGet, "/asking/"+created.ID, "t-carol", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get = %d %s", rec.Code, rec.Body.String())
	}
	var detail askings.Detail
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.User.Pseudo != "Alice" || detail.Mentor.Pseudo != "Bob" {
		t.Errorf("detail parties = %+v %+v", detail.User, detail.Mentor)
	}

	rec = do(t, router, http.MethodPatch, "/asking/"+created.ID, "t-carol", `{"state":"anything"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"state":"anything"`) {
		t.Errorf("update = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodDelete, "/asking/"+created.ID, "t-carol", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Asking deleted successfully") {
		t.Errorf("delete = %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, router, http.MethodDelete, "/asking/"+created.ID, "t-carol", "")
	if rec.Code != http.StatusNotFound || envelope(t, rec).Msg != "Asking not found" {
		t.Errorf("second delete = %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_Unauthenticated(t *testing.T) {
	router := newRouter(newService(t, askings.Options{}))

	routes := []struct{ method, path string }{
		{http.MethodPost, "/asking"},
		{http.MethodGet, "/asking/x"},
		{http.MethodPatch, "/asking/x"},
		{http.MethodDelete, "/asking/x"},
		{http.MethodPatch, "/accept-asking/x"},
		{http.MethodGet, "/askings/mentor/bob"},
		{http.MethodGet, "/askings/user/alice"},
	}
	for _, rt := range routes {
		rec := do(t, router, rt.method, rt.path, "", "")
		if rec.Code != http.StatusUnauthorized || envelope(t, rec).Msg != "No token provided" {
			t.Errorf("%s %s = %d %s", rt.method, rt.path, rec.Code, rec.Body.String())
		}
		rec = do(t, router, rt.method, rt.path, "bogus", "")
		if rec.Code != http.StatusUnauthorized || envelope(t, rec).Msg != "Invalid token" {
			t.Errorf("%s %s bogus token = %d", rt.method, rt.path, rec.Code)
		}
	}
}

func TestHandler_ListingForbidden(t *testing.T) {
	router := newRouter(newService(t, askings.Options{}))

	rec := do(t, router, http.MethodGet, "/askings/mentor/bob", "t-bob", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("self listing = %d, want 403", rec.Code)
	}
	env := envelope(t, rec)
	if env.Msg != "Logged user has no permissions" || env.Error.ReasonCode != api.ReasonForbidden {
		t.Errorf("envelope = %+v", env)
	}

	rec = do(t, router, http.MethodGet, "/askings/user/alice", "t-admin", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("admin listing = %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_BadInput(t *testing.T) {
	router := newRouter(newService(t, askings.Options{}))

	tests := []struct {
		name, method, path, body, reason string
	}{
		{"malformed json", http.MethodPost, "/asking", `{"title":`, api.ReasonBadRequest},
		{"missing start", http.MethodPost, "/asking", `{"title":"x"}`, api.ReasonMissingField},
		{"bad start", http.MethodPost, "/asking", `{"start_date":"soon"}`, api.ReasonInvalidField},
		{"missing state", http.MethodPatch, "/accept-asking/x", `{}`, api.ReasonMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, tt.method, tt.path, "t-alice", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (%s)", rec.Code, rec.Body.String())
			}
			if got := envelope(t, rec).Error.ReasonCode; got != tt.reason {
				t.Errorf("reason = %q, want %q", got, tt.reason)
			}
		})
	}
}

func TestHandler_StoreFailure(t *testing.T) {
	svc := askings.NewService(brokenRepo{err: errors.New("connection refused")}, nil, askings.Options{}, nil)
	router := newRouter(svc)

	rec := do(t, router, http.MethodGet, "/asking", "", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	env := envelope(t, rec)
	if env.Msg != "Error fetching asking details" || env.Error.ReasonCode != api.ReasonPersistenceError {
		t.Errorf("envelope = %+v", env)
	}
	if env.Error.Detail != "connection refused" {
		t.Errorf("detail = %q", env.Error.Detail)
	}

	rec = do(t, router, http.MethodGet, "/askings/mentor/bob", "t-alice", "")
	if rec.Code != http.StatusInternalServerError || envelope(t, rec).Msg != "Error user" {
		t.Errorf("listing failure = %d %s", rec.Code, rec.Body.String())
	}
}
