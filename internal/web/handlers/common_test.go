package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRespondJSON_SetsStatusAndContentType(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"OK", http.StatusOK},
		{"Created", http.StatusCreated},
		{"Unauthorized", http.StatusUnauthorized},
		{"UnprocessableEntity", http.StatusUnprocessableEntity},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondJSON(recorder, tc.statusCode, map[string]string{"status": "ok"})

			assertStatusCode(t, recorder, tc.statusCode)
			assertContentType(t, recorder, "application/json")
		})
	}
}

func TestRespondJSON_NilData(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusNoContent, nil)

	if recorder.Body.Len() != 0 {
		t.Errorf("expected empty body, got '%s'", recorder.Body.String())
	}
}

func TestRespondError_ContainsErrorKey(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondError(recorder, http.StatusBadRequest, "image is required")

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "image is required")
}

func TestHealthCheck_ReturnsStatusOk(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	recorder := httptest.NewRecorder()

	HealthCheck(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result map[string]string
	parseJSONResponse(t, recorder, &result)
	if result["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%s'", result["status"])
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("alice\r\nINFO forged entry"); got != "aliceINFO forged entry" {
		t.Errorf("expected newlines to be removed, got %q", got)
	}
}

func TestReadImage_DataURL(t *testing.T) {
	data := gradientPNG(t)
	req := jsonImageRequest(t, "/", imageRequest{Image: dataURL(data), ID: "alice", Name: "Alice"})
	recorder := httptest.NewRecorder()

	img, err := readImage(recorder, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(img.Data, data) {
		t.Error("expected decoded payload to match the original bytes")
	}
	if img.Format != "png" {
		t.Errorf("expected format png, got %q", img.Format)
	}
	if img.ID != "alice" || img.Name != "Alice" {
		t.Errorf("expected id and name to be passed through, got %q %q", img.ID, img.Name)
	}
}

func TestReadImage_Multipart(t *testing.T) {
	data := gradientPNG(t)
	req := multipartImageRequest(t, "/", "face.PNG", data, map[string]string{"id": "bob", "name": "Bob"})
	recorder := httptest.NewRecorder()

	img, err := readImage(recorder, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(img.Data, data) {
		t.Error("expected uploaded bytes to match")
	}
	if img.Format != "png" {
		t.Errorf("expected format png, got %q", img.Format)
	}
	if img.ID != "bob" || img.Name != "Bob" {
		t.Errorf("expected form fields to be read, got %q %q", img.ID, img.Name)
	}
}

func TestReadImage_MultipartSniffsFormat(t *testing.T) {
	req := multipartImageRequest(t, "/", "capture", gradientPNG(t), nil)
	recorder := httptest.NewRecorder()

	img, err := readImage(recorder, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Format != "png" {
		t.Errorf("expected sniffed format png, got %q", img.Format)
	}
}

func TestReadImage_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"invalid json", `not json`, errInvalidRequestBody},
		{"missing image", `{"id": "alice"}`, "image is required"},
		{"missing delimiter", `{"image": "data:image/png,abc"}`, "malformed image envelope"},
		{"missing prefix", `{"image": "image/png;base64,abc"}`, "malformed image envelope"},
		{"bad base64", `{"image": "data:image/png;base64,***"}`, "invalid base64 image payload"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			recorder := httptest.NewRecorder()

			_, err := readImage(recorder, req)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %q", tc.wantErr, err.Error())
			}
		})
	}
}

func TestReadImage_TooLarge(t *testing.T) {
	payload, err := json.Marshal(imageRequest{Image: "data:image/png;base64," + strings.Repeat("A", maxImageSize+4)})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	req := httptest.NewRequest("POST", "/", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()

	if _, err := readImage(recorder, req); err == nil {
		t.Fatal("expected oversized body to be rejected")
	}
}

func TestReadImage_MultipartMissingFile(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("--boundary\r\nContent-Disposition: form-data; name=\"id\"\r\n\r\nalice\r\n--boundary--\r\n")
	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=boundary")
	recorder := httptest.NewRecorder()

	_, err := readImage(recorder, req)
	if err == nil || err.Error() != "image is required" {
		t.Errorf("expected 'image is required', got %v", err)
	}
}
