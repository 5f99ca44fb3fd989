package web

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kozaktomas/facelog/internal/config"
	"github.com/kozaktomas/facelog/internal/database/mock"
	"github.com/kozaktomas/facelog/internal/facematch"
	"github.com/kozaktomas/facelog/internal/metrics"
	"github.com/kozaktomas/facelog/internal/recognition"
	"github.com/kozaktomas/facelog/internal/storage"
)

type centerClassifier struct{}

func (centerClassifier) Classify(_ []uint8, rows, cols, _ int, _ float64) []facematch.Detection {
	out := make([]facematch.Detection, 5)
	for i := range out {
		out[i] = facematch.Detection{Row: rows / 2, Col: cols / 2, Scale: min(rows, cols) * 3 / 5, Q: float32(10 - i)}
	}
	return out
}

func gradientDataURL(t *testing.T) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 100, 100))
	for x := range 100 {
		for y := range 100 {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 255 / 100)})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func newTestServer(t *testing.T) (*Server, *mock.MockSessionStore) {
	t.Helper()
	images, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	m := metrics.NewManager()
	svc := recognition.New(mock.NewMockIdentityWriter(), images, facematch.NewDetector(centerClassifier{}, nil),
		recognition.WithRecognitionLog(mock.NewMockRecognitionLogWriter()),
		recognition.WithMetrics(m),
	)

	cfg := &config.Config{Web: config.WebConfig{
		Host:           "127.0.0.1",
		Port:           0,
		SessionSecret:  "test-secret",
		EnrollToken:    "admin-token",
		AllowedOrigins: []string{"https://app.example.com"},
	}}
	sessions := mock.NewMockSessionStore()
	s := NewServer(cfg, svc, sessions, m, zap.NewNop())
	t.Cleanup(s.sessionManager.Stop)
	return s, sessions
}

func doJSON(t *testing.T, s *Server, method, path, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", "Bearer "+auth)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthRoute(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{"/api/v1/identities", "/api/v1/recognition-logs"} {
		rec := doJSON(t, s, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := doJSON(t, s, http.MethodPost, "/api/v1/faces/enroll", "", map[string]string{"image": gradientDataURL(t), "id": "alice"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDetectRouteIsPublic(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/faces/detect", "", map[string]string{"image": gradientDataURL(t)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}

func TestEnrollThenFaceLogin(t *testing.T) {
	s, sessions := newTestServer(t)
	img := gradientDataURL(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/faces/enroll", "admin-token", map[string]string{"image": img, "id": "alice", "name": "Alice"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, s, http.MethodPost, "/api/v1/auth/face-login", "", map[string]string{"image": img})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var login struct {
		Success    bool   `json:"success"`
		IdentityID string `json:"identity_id"`
		SessionID  string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.True(t, login.Success)
	assert.Equal(t, "alice", login.IdentityID)
	assert.Equal(t, 1, sessions.Len(), "session is persisted")

	rec = doJSON(t, s, http.MethodGet, "/api/v1/identities", login.SessionID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"alice"`)

	rec = doJSON(t, s, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `facelog_match_attempts_total{reason="accepted"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/auth/face-login", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
