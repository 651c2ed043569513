package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_Routes(t *testing.T) {
	srv := New(Config{
		Log:        zerolog.Nop(),
		CalendarDB: newTestDB(t),
		Service:    newTestService(t),
		Port:       0,
		DevMode:    true,
	})

	tests := []struct {
		name           string
		method         string
		target         string
		expectedStatus int
	}{
		{"health", http.MethodGet, "/health", http.StatusOK},
		{"markets", http.MethodGet, "/api/markets", http.StatusOK},
		{"day", http.MethodGet, "/api/markets/XNYS/days/2024-07-04", http.StatusOK},
		{"unknown market", http.MethodGet, "/api/markets/XXXX/status", http.StatusNotFound},
		{"unknown route", http.MethodGet, "/api/nothing", http.StatusNotFound},
		{"wrong method", http.MethodPut, "/api/markets/XNYS/cache", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.Router().ServeHTTP(w, httptest.NewRequest(tt.method, tt.target, nil))
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestServer_Health(t *testing.T) {
	srv := New(Config{Log: zerolog.Nop(), CalendarDB: newTestDB(t), Service: newTestService(t), DevMode: true})

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
	assert.Equal(t, "ok", response["database"])
	assert.Equal(t, float64(5), response["markets"])
}

func TestServer_HealthWithClosedDatabase(t *testing.T) {
	db := newTestDB(t)
	srv := New(Config{Log: zerolog.Nop(), CalendarDB: db, Service: newTestService(t), DevMode: true})
	require.NoError(t, db.Close())

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
