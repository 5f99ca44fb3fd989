package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/facelog/internal/database"
	"github.com/kozaktomas/facelog/internal/facematch"
	"github.com/kozaktomas/facelog/internal/fingerprint"
	"github.com/kozaktomas/facelog/internal/recognition"
	"github.com/kozaktomas/facelog/internal/web/middleware"
)

// FacesHandler handles enrollment, detection and identity listings
type FacesHandler struct {
	faces  FaceService
	logger *zap.Logger
}

// NewFacesHandler creates a new faces handler
func NewFacesHandler(faces FaceService, logger *zap.Logger) *FacesHandler {
	return &FacesHandler{faces: faces, logger: logger}
}

// EnrollResponse represents a completed enrollment
type EnrollResponse struct {
	IdentityID string                    `json:"identity_id"`
	Name       string                    `json:"name"`
	Replaced   bool                      `json:"replaced"`
	Profile    string                    `json:"profile"`
	Region     fingerprint.Region        `json:"region"`
	Similar    *database.SimilarIdentity `json:"similar,omitempty"`
}

// Enroll stores a reference face. A logged-in user can only enroll their own
// identity; requests admitted by the administrative token name the identity.
func (h *FacesHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	img, err := readImage(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var identityID string
	if session := middleware.GetSessionFromContext(r.Context()); session != nil {
		if img.ID != "" && img.ID != session.IdentityID {
			respondError(w, http.StatusForbidden, "you can only enroll your own face")
			return
		}
		identityID = session.IdentityID
	} else if middleware.IsTokenAuthenticated(r.Context()) {
		identityID = img.ID
	}
	if identityID == "" {
		respondError(w, http.StatusBadRequest, "identity id is required")
		return
	}

	result, err := h.faces.Enroll(r.Context(), recognition.EnrollRequest{
		IdentityID: identityID,
		Name:       img.Name,
		Image:      img.Data,
		Format:     img.Format,
	})
	var decodeErr *fingerprint.DecodeError
	switch {
	case errors.Is(err, facematch.ErrNoFaceDetected):
		respondError(w, http.StatusUnprocessableEntity, "No face detected in the image. Please ensure your face is clearly visible, well-lit, and try again.")
		return
	case errors.As(err, &decodeErr):
		respondError(w, http.StatusBadRequest, decodeErr.Error())
		return
	case err != nil:
		h.logger.Error("enrollment failed", zap.String("identity_id", sanitizeForLog(identityID)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "enrollment failed")
		return
	}

	status := http.StatusCreated
	if result.Replaced {
		status = http.StatusOK
	}
	respondJSON(w, status, EnrollResponse{
		IdentityID: result.Identity.ID,
		Name:       result.Identity.Name,
		Replaced:   result.Replaced,
		Profile:    result.Profile,
		Region:     result.Region,
		Similar:    result.Similar,
	})
}

// DetectResponse lists the faces found in an image
type DetectResponse struct {
	Profile string               `json:"profile"`
	Count   int                  `json:"count"`
	Faces   []fingerprint.Region `json:"faces"`
	Largest *fingerprint.Region  `json:"largest,omitempty"`
}

// Detect runs face detection on an uploaded image
func (h *FacesHandler) Detect(w http.ResponseWriter, r *http.Request) {
	img, err := readImage(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.faces.Detect(img.Data)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := DetectResponse{
		Profile: result.Profile,
		Count:   len(result.Regions),
		Faces:   result.Regions,
	}
	if largest, ok := facematch.Largest(result.Regions); ok {
		resp.Largest = &largest
	}
	respondJSON(w, http.StatusOK, resp)
}

// IdentityResponse is an enrolled identity without its image data
type IdentityResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	HasSignature bool      `json:"has_signature"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ListIdentities lists enrolled identities
func (h *FacesHandler) ListIdentities(w http.ResponseWriter, r *http.Request) {
	identities, err := h.faces.ListIdentities(r.Context())
	if err != nil {
		h.logger.Error("failed to list identities", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list identities")
		return
	}

	resp := make([]IdentityResponse, 0, len(identities))
	for _, identity := range identities {
		resp = append(resp, IdentityResponse{
			ID:           identity.ID,
			Name:         identity.Name,
			HasSignature: identity.HasSignature(),
			UpdatedAt:    identity.UpdatedAt,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// RecognitionLogResponse is one face login attempt
type RecognitionLogResponse struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id,omitempty"`
	Accepted   bool      `json:"accepted"`
	Reason     string    `json:"reason"`
	Score      *float64  `json:"score"`
	Compared   int       `json:"compared"`
	Skipped    int       `json:"skipped"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListRecognitionLogs lists the newest face login attempts
func (h *FacesHandler) ListRecognitionLogs(w http.ResponseWriter, r *http.Request) {
	limit := database.DefaultRecognitionLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, 500)
	}

	entries, err := h.faces.RecognitionLogs(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list recognition logs", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list recognition logs")
		return
	}

	resp := make([]RecognitionLogResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, RecognitionLogResponse{
			ID:         e.ID,
			IdentityID: e.IdentityID,
			Accepted:   e.Accepted,
			Reason:     e.Reason,
			Score:      e.Score,
			Compared:   e.Compared,
			Skipped:    e.Skipped,
			CreatedAt:  e.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}
