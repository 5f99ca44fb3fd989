// Package facematch finds faces in decoded images and matches a probe face
// against enrolled identities.
package facematch

import (
	"errors"

	"github.com/kozaktomas/facelog/internal/fingerprint"
)

var (
	ErrNoFaceDetected       = errors.New("no face detected")
	ErrNoEnrolledIdentities = errors.New("no enrolled identities")
)

// MatchReason explains a match decision
type MatchReason string

const (
	ReasonAccepted             MatchReason = "accepted"
	ReasonNoFaceDetected       MatchReason = "no_face_detected"       // probe has no detectable face, nothing compared
	ReasonInvalidRegion        MatchReason = "invalid_region"         // detector returned a degenerate rectangle
	ReasonNoEnrolledIdentities MatchReason = "no_enrolled_identities" // store is empty
	ReasonBelowThreshold       MatchReason = "below_threshold"        // best score did not exceed the threshold
	ReasonNoValidComparison    MatchReason = "no_valid_comparison"    // every reference was skipped or unscorable
)

// Reference is an enrolled identity as seen by the matcher.
type Reference struct {
	IdentityID  string
	Name        string
	Locator     string
	ImageSHA256 string
	Signature   *fingerprint.Signature // cached signature, nil when it must be recomputed
}

// MatchResult is the decision for one login attempt.
type MatchResult struct {
	IdentityID string            `json:"identity_id,omitempty"` // best candidate, set even when rejected
	Name       string            `json:"name,omitempty"`
	Score      fingerprint.Score `json:"-"`
	Accepted   bool              `json:"accepted"`
	Reason     MatchReason       `json:"reason"`
	Compared   int               `json:"compared"`
	Skipped    int               `json:"skipped"`
}

// HasCandidate reports whether any reference produced a valid score.
func (r MatchResult) HasCandidate() bool {
	return r.IdentityID != ""
}
