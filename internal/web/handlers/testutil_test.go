package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/kozaktomas/facelog/internal/database/mock"
	"github.com/kozaktomas/facelog/internal/facematch"
	"github.com/kozaktomas/facelog/internal/recognition"
	"github.com/kozaktomas/facelog/internal/storage"
	"github.com/kozaktomas/facelog/internal/web/middleware"
)

// centerClassifier reports one face in the middle of every image, or none.
type centerClassifier struct {
	none bool
}

func (c centerClassifier) Classify(_ []uint8, rows, cols, _ int, _ float64) []facematch.Detection {
	if c.none {
		return nil
	}
	out := make([]facematch.Detection, 5)
	for i := range out {
		out[i] = facematch.Detection{Row: rows / 2, Col: cols / 2, Scale: min(rows, cols) * 3 / 5, Q: float32(10 - i)}
	}
	return out
}

// testService builds a recognition service backed by in-memory mocks
func testService(t *testing.T, classifier facematch.Classifier) (*recognition.Service, *mock.MockIdentityWriter, *mock.MockRecognitionLogWriter) {
	t.Helper()
	images, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}
	identities := mock.NewMockIdentityWriter()
	logs := mock.NewMockRecognitionLogWriter()
	svc := recognition.New(identities, images, facematch.NewDetector(classifier, nil),
		recognition.WithRecognitionLog(logs),
		recognition.WithLogger(zap.NewNop()),
	)
	return svc, identities, logs
}

var errTest = errors.New("database down")

func testLogger() *zap.Logger {
	return zap.NewNop()
}

// testSessionManager creates a session manager without persistence
func testSessionManager() *middleware.SessionManager {
	return middleware.NewSessionManager("test-secret", nil, zap.NewNop())
}

// gradientPNG is a horizontal luma ramp
func gradientPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 100, 100))
	for x := range 100 {
		for y := range 100 {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 255 / 100)})
		}
	}
	return encodePNG(t, img)
}

// stripesPNG alternates dark and bright rows
func stripesPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 100, 100))
	for x := range 100 {
		for y := range 100 {
			v := uint8(40)
			if (y/5)%2 == 0 {
				v = 220
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return encodePNG(t, img)
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// dataURL wraps image bytes the way a browser camera capture does
func dataURL(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

// jsonImageRequest creates a JSON request carrying an image data URL
func jsonImageRequest(t *testing.T, path string, body imageRequest) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// multipartImageRequest creates a multipart upload with an "image" file and extra fields
func multipartImageRequest(t *testing.T, path, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	fw, err := mw.CreateFormFile("image", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// enrollIdentity stores a reference face directly through the service
func enrollIdentity(t *testing.T, svc *recognition.Service, id, name string, data []byte) {
	t.Helper()
	_, err := svc.Enroll(context.Background(), recognition.EnrollRequest{
		IdentityID: id,
		Name:       name,
		Image:      data,
		Format:     "png",
	})
	if err != nil {
		t.Fatalf("failed to enroll %s: %v", id, err)
	}
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%v'", expectedMessage, result["error"])
	}
}
