package booking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bandspace/internal/api"
)

func testRouter(f *fixture) http.Handler {
	h := Handlers{Engine: f.engine, Queries: NewQueries(f.store)}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := &api.Session{UserID: r.Header.Get("X-Test-User")}
			next.ServeHTTP(w, r.WithContext(api.WithSession(r.Context(), s)))
		})
	})
	r.Post("/bookings", h.Create)
	r.Get("/bookings/{id}", h.Get)
	r.Get("/bookings/{id}/approvals", h.Approvals)
	r.Get("/bookings/{id}/events", h.Timeline)
	r.Delete("/bookings/{id}", h.Cancel)
	r.Put("/approvals/{id}", h.Respond)
	r.Get("/users/{userId}/approvals/pending", h.PendingForUser)
	return r
}

func do(t *testing.T, h http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-Test-User", user)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env api.ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env.Error.Code
}

func TestHandlers_CreateAndRespond(t *testing.T) {
	f := newBareFixture("u1", "u2")
	h := testRouter(f)

	rec := do(t, h, http.MethodPost, "/bookings", "u1",
		`{"venueId":"venue-1","type":"rehearsal","startsAt":"2025-03-14T00:00:00Z","endsAt":"2025-03-15T00:00:00Z","fullDay":true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, StatePendingApprovals, created.Booking.State)
	require.Len(t, created.Approvals, 1)

	rec = do(t, h, http.MethodGet, "/users/u2/approvals/pending", "u2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/users/u2/approvals/pending", "u1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPut, "/approvals/"+created.Approvals[0].ID, "u1", `{"approved":true}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPut, "/approvals/"+created.Approvals[0].ID, "u2", `{"approved":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var responded Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&responded))
	assert.Equal(t, StateConfirmed, responded.Booking.State)

	rec = do(t, h, http.MethodPut, "/approvals/"+created.Approvals[0].ID, "u2", `{"approved":false}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_STATE", errorCode(t, rec))
}

func TestHandlers_ValidationAndNotFound(t *testing.T) {
	f := newBareFixture("u1", "u2")
	h := testRouter(f)

	rec := do(t, h, http.MethodPost, "/bookings", "u1",
		`{"venueId":"venue-1","type":"REHEARSAL","startsAt":"2025-03-14T10:00:00Z","endsAt":"2025-03-14T09:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, rec))

	rec = do(t, h, http.MethodPut, "/approvals/missing", "u2", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPut, "/approvals/missing", "u2", `{"approved":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/bookings/missing", "u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlers_Cancel(t *testing.T) {
	f := newBareFixture("u1", "u2")
	h := testRouter(f)

	res, err := f.engine.CreateBooking(context.Background(), fullDay("u1"))
	require.NoError(t, err)

	rec := do(t, h, http.MethodDelete, "/bookings/"+res.Booking.ID, "u2", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodDelete, "/bookings/"+res.Booking.ID, "u1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHandlers_ReadsNeedVenueAccess(t *testing.T) {
	f := newBareFixture("u1", "u2")
	h := testRouter(f)

	res, err := f.engine.CreateBooking(context.Background(), fullDay("u1"))
	require.NoError(t, err)

	for _, suffix := range []string{"", "/approvals", "/events"} {
		path := "/bookings/" + res.Booking.ID + suffix

		rec := do(t, h, http.MethodGet, path, "stranger", "")
		assert.Equal(t, http.StatusForbidden, rec.Code, path)

		rec = do(t, h, http.MethodGet, path, "u2", "")
		assert.Equal(t, http.StatusOK, rec.Code, path)

		rec = do(t, h, http.MethodGet, path, "u1", "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	// A requester who has since left the venue keeps read access.
	f.engine.members = fakeMembership{
		venueID: {VenueID: venueID, AdminID: "u2", Members: []string{"u2"}},
	}
	rec := do(t, h, http.MethodGet, "/bookings/"+res.Booking.ID, "u1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/bookings/missing/events", "u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
