package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ds124wfegd/gymbooker/internal/database/memory"
	"github.com/ds124wfegd/gymbooker/internal/entity"
	"github.com/ds124wfegd/gymbooker/internal/service"
	"github.com/ds124wfegd/gymbooker/internal/transport/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLocation = time.FixedZone("CEST", 2*3600)

var testNow = time.Date(2024, 5, 10, 8, 0, 0, 0, testLocation)

type testAPI struct {
	router  *gin.Engine
	auth    *middleware.Authenticator
	store   *memory.Store
	classID string
}

func newTestAPI(t *testing.T, capacity int) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	clock := func() time.Time { return testNow }
	store.SetClock(clock)
	horizon := entity.Horizon{Days: 5, Location: testLocation}

	scheduler := service.NewNotificationScheduler(store.Notifications(), testLocation, 30*time.Minute, clock)
	bookingService := service.NewBookingService(store, scheduler, nil, service.BookingOptions{
		Horizon:        horizon,
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
		Now:            clock,
	})
	classService := service.NewClassService(store, horizon, clock)
	userService := service.NewUserService(store.Users())

	auth := middleware.NewAuthenticator("test-secret", "gymbooker")
	router := InitRoutes(Handlers{
		Booking: NewBookingHandler(bookingService),
		Class:   NewClassHandler(classService, userService),
		User:    NewUserHandler(userService),
	}, RouterOptions{Auth: auth, RequestTimeout: time.Second, Metrics: true})

	ctx := context.Background()
	for _, u := range []*entity.User{
		{ID: "admin", Name: "Ana", Role: entity.RoleAdmin},
		{ID: "u1", Name: "Luis", Surname: "Pérez", DNI: "123", Role: entity.RoleUser, DeviceToken: "42"},
		{ID: "u2", Name: "Eva", Role: entity.RoleUser},
	} {
		require.NoError(t, store.Users().Upsert(ctx, u))
	}

	class, err := classService.CreateClass(ctx, &service.ClassRequest{
		Name:        "Boxeo",
		MaxCapacity: capacity,
		Schedule:    entity.Schedule{"2024-05-10": {"18:00", "19:00"}},
	})
	require.NoError(t, err)

	return &testAPI{router: router, auth: auth, store: store, classID: class.ID}
}

func (a *testAPI) do(t *testing.T, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		token, err := a.auth.Sign(user, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) book(t *testing.T, user, slotTime string) *httptest.ResponseRecorder {
	return a.do(t, http.MethodPost, "/api/v1/bookings", user, gin.H{
		"class_id": a.classID,
		"date":     "2024-05-10",
		"time":     slotTime,
	})
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, 2)
	rec := api.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t, 2)

	rec := api.do(t, http.MethodGet, "/api/v1/classes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/classes", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWrongIssuerRejected(t *testing.T) {
	api := newTestAPI(t, 2)
	other := middleware.NewAuthenticator("test-secret", "someone-else")
	token, err := other.Sign("u1", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/classes", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBookFlow(t *testing.T) {
	api := newTestAPI(t, 1)

	rec := api.book(t, "u1", "18:00")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result service.BookingResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "Reserva exitosa", result.Message)
	assert.NotEmpty(t, result.NotificationID)

	rec = api.book(t, "u1", "18:00")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.book(t, "u2", "18:00")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/users/me/bookings", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []*entity.Reservation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	require.Len(t, mine, 1)

	rec = api.do(t, http.MethodDelete, "/api/v1/bookings/"+result.Reservation.ID, "u1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.book(t, "u2", "18:00")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestBookValidation(t *testing.T) {
	api := newTestAPI(t, 2)

	tests := []struct {
		name string
		user string
		body gin.H
		want int
	}{
		{"missing fields", "u1", gin.H{"class_id": api.classID}, http.StatusBadRequest},
		{"bad time", "u1", gin.H{"class_id": api.classID, "date": "2024-05-10", "time": "25:00"}, http.StatusBadRequest},
		{"outside horizon", "u1", gin.H{"class_id": api.classID, "date": "2024-05-20", "time": "18:00"}, http.StatusUnprocessableEntity},
		{"not scheduled", "u1", gin.H{"class_id": api.classID, "date": "2024-05-10", "time": "07:00"}, http.StatusUnprocessableEntity},
		{"unknown class", "u1", gin.H{"class_id": "nope", "date": "2024-05-10", "time": "18:00"}, http.StatusNotFound},
		{"admin", "admin", gin.H{"class_id": api.classID, "date": "2024-05-10", "time": "18:00"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/v1/bookings", tt.user, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestAvailabilityHidesFullSlots(t *testing.T) {
	api := newTestAPI(t, 1)
	require.Equal(t, http.StatusCreated, api.book(t, "u1", "18:00").Code)

	path := fmt.Sprintf("/api/v1/classes/%s/availability", api.classID)

	var forUser entity.ClassAvailability
	rec := api.do(t, http.MethodGet, path, "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &forUser))
	require.Len(t, forUser.Slots, 1)
	assert.Equal(t, "19:00", forUser.Slots[0].Time)

	var forAdmin entity.ClassAvailability
	rec = api.do(t, http.MethodGet, path, "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &forAdmin))
	assert.Len(t, forAdmin.Slots, 2)
}

func TestAdminRoutes(t *testing.T) {
	api := newTestAPI(t, 3)
	require.Equal(t, http.StatusCreated, api.book(t, "u1", "18:00").Code)

	rec := api.do(t, http.MethodPost, "/api/v1/admin/classes", "u1", gin.H{"name": "Yoga"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/admin/classes", "admin", gin.H{
		"name":     "Yoga",
		"schedule": gin.H{"2024-05-11": []string{"09:00"}},
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rosterPath := fmt.Sprintf("/api/v1/admin/classes/%s/roster?date=2024-05-10&time=18:00", api.classID)
	rec = api.do(t, http.MethodGet, rosterPath, "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
	assert.Contains(t, rec.Body.String(), "Luis")

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/admin/classes/%s/roster?date=bad", api.classID), "admin", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/admin/classes/%s/roster.xlsx?from=2024-05-10&to=2024-05-10", api.classID), "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/admin/classes/%s/audit", api.classID), "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"drift":[]`)

	rec = api.do(t, http.MethodDelete, "/api/v1/admin/classes/"+api.classID, "admin", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestProfileAndDeviceToken(t *testing.T) {
	api := newTestAPI(t, 2)

	rec := api.do(t, http.MethodPut, "/api/v1/users/me", "u3", gin.H{"name": "Marta", "dni": "999"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPut, "/api/v1/users/me/device-token", "u3", gin.H{"token": "77"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/users/me", "u3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var user entity.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "77", user.DeviceToken)
	assert.Equal(t, entity.RoleUser, user.Role)

	rec = api.do(t, http.MethodPut, "/api/v1/users/me", "u3", gin.H{"surname": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", entity.ErrTransientStorage), http.StatusServiceUnavailable},
		{entity.ErrDuplicateBooking, http.StatusConflict},
		{entity.ErrCapacityExceeded, http.StatusConflict},
		{entity.ErrReservationNotFound, http.StatusNotFound},
		{entity.ErrAdminCannotBook, http.StatusForbidden},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
