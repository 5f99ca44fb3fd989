package handlers

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/facelog/internal/facematch"
	"github.com/kozaktomas/facelog/internal/web/middleware"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	faces          FaceService
	sessionManager *middleware.SessionManager
	logger         *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(faces FaceService, sm *middleware.SessionManager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		faces:          faces,
		sessionManager: sm,
		logger:         logger,
	}
}

// LoginResponse represents a face login response
type LoginResponse struct {
	Success    bool     `json:"success"`
	IdentityID string   `json:"identity_id,omitempty"`
	Name       string   `json:"name,omitempty"`
	Score      *float64 `json:"score,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	SessionID  string   `json:"session_id,omitempty"`
	ExpiresAt  string   `json:"expires_at,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// rejectionMessage tells the user why face login failed and offers the password fallback.
func rejectionMessage(result facematch.MatchResult) string {
	switch result.Reason {
	case facematch.ReasonNoFaceDetected, facematch.ReasonInvalidRegion:
		return "No face detected in the image. Please ensure your face is clearly visible, well-lit, and try again."
	case facematch.ReasonNoEnrolledIdentities:
		return "No face records found in the system. Please register your face first."
	case facematch.ReasonBelowThreshold:
		return fmt.Sprintf("Face not recognized. Please try again or use password login. (Best match score: %.2f)", result.Score.Value)
	default:
		return "Face not recognized. Please try again or use password login."
	}
}

// FaceLogin authenticates with a captured or uploaded face image
func (h *AuthHandler) FaceLogin(w http.ResponseWriter, r *http.Request) {
	img, err := readImage(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.faces.Authenticate(r.Context(), img.Data)
	if err != nil {
		h.logger.Error("face login failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "face login failed")
		return
	}

	if !result.Accepted {
		respondJSON(w, http.StatusUnauthorized, LoginResponse{
			Success: false,
			Score:   result.Score.Ptr(),
			Reason:  string(result.Reason),
			Error:   rejectionMessage(result),
		})
		return
	}

	session, err := h.sessionManager.CreateSession(r.Context(), result.IdentityID)
	if err != nil {
		h.logger.Error("failed to create session", zap.String("identity_id", sanitizeForLog(result.IdentityID)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	h.sessionManager.SetSessionCookie(w, r, session)

	respondJSON(w, http.StatusOK, LoginResponse{
		Success:    true,
		IdentityID: result.IdentityID,
		Name:       result.Name,
		Score:      result.Score.Ptr(),
		Reason:     string(result.Reason),
		SessionID:  session.ID,
		ExpiresAt:  session.ExpiresAt.Format(time.RFC3339),
	})
}

// Logout handles user logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if session := h.sessionManager.GetSessionFromRequest(r); session != nil {
		h.sessionManager.DeleteSession(r.Context(), session.ID)
	}

	h.sessionManager.ClearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// StatusResponse represents the auth status response
type StatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	IdentityID    string `json:"identity_id,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

// Status checks if the user is authenticated by validating the session.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	session := h.sessionManager.GetSessionFromRequest(r)
	if session == nil {
		respondJSON(w, http.StatusOK, StatusResponse{Authenticated: false})
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{
		Authenticated: true,
		IdentityID:    session.IdentityID,
		ExpiresAt:     session.ExpiresAt.Format(time.RFC3339),
	})
}
