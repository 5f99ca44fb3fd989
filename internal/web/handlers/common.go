// Package handlers implements the HTTP API for face login and enrollment.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/kozaktomas/facelog/internal/database"
	"github.com/kozaktomas/facelog/internal/facematch"
	"github.com/kozaktomas/facelog/internal/fingerprint"
	"github.com/kozaktomas/facelog/internal/recognition"
)

const (
	// errInvalidRequestBody is a shared error message for invalid request bodies.
	errInvalidRequestBody = "invalid request body"

	maxImageSize = 10 << 20
)

// FaceService is what the handlers need from the recognition service.
type FaceService interface {
	Authenticate(ctx context.Context, probe []byte) (facematch.MatchResult, error)
	Enroll(ctx context.Context, req recognition.EnrollRequest) (*recognition.EnrollResult, error)
	Detect(image []byte) (facematch.DetectionResult, error)
	ListIdentities(ctx context.Context) ([]database.StoredIdentity, error)
	RecognitionLogs(ctx context.Context, limit int) ([]database.RecognitionLog, error)
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// imageRequest is the JSON form of an image upload: a data URL from a camera
// capture plus optional enrollment fields.
type imageRequest struct {
	Image string `json:"image"`
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
}

// uploadedImage is an image read from either a multipart upload or a JSON data URL.
type uploadedImage struct {
	Data   []byte
	Format string
	ID     string
	Name   string
}

// readImage accepts a multipart form with an "image" file or a JSON body whose
// "image" field is a data URL.
func readImage(w http.ResponseWriter, r *http.Request) (*uploadedImage, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return readMultipartImage(r)
	}

	var req imageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.New(errInvalidRequestBody)
	}
	if req.Image == "" {
		return nil, errors.New("image is required")
	}
	data, format, err := fingerprint.ParseDataURL(req.Image)
	if err != nil {
		return nil, err
	}
	return &uploadedImage{Data: data, Format: format, ID: req.ID, Name: req.Name}, nil
}

func readMultipartImage(r *http.Request) (*uploadedImage, error) {
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		return nil, errors.New(errInvalidRequestBody)
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, errors.New("image is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	if format == "" {
		_, format, _ = strings.Cut(http.DetectContentType(data), "/")
	}
	return &uploadedImage{
		Data:   data,
		Format: format,
		ID:     r.FormValue("id"),
		Name:   r.FormValue("name"),
	}, nil
}
