package recognition

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kozaktomas/facelog/internal/database"
	"github.com/kozaktomas/facelog/internal/facematch"
	"github.com/kozaktomas/facelog/internal/fingerprint"
)

// Enrollment metric results.
const (
	enrollCreated  = "created"
	enrollReplaced = "replaced"
	enrollNoFace   = "no_face"
	enrollFailed   = "failed"
)

// EnrollRequest is a reference image for an identity.
type EnrollRequest struct {
	IdentityID string
	Name       string // kept from the existing identity when empty
	Image      []byte
	Format     string // file extension for the stored image, e.g. "jpeg"
}

// EnrollResult describes a completed enrollment.
type EnrollResult struct {
	Identity database.StoredIdentity
	Region   fingerprint.Region
	Profile  string
	Replaced bool
	Similar  *database.SimilarIdentity // another identity correlating above the duplicate threshold
}

// Enroll stores img as the reference face of an identity, replacing any previous
// reference wholesale. Enrollments are serialized.
func (s *Service) Enroll(ctx context.Context, req EnrollRequest) (*EnrollResult, error) {
	id := strings.TrimSpace(req.IdentityID)
	if id == "" {
		return nil, errors.New("identity ID is required")
	}

	s.enrollMu.Lock()
	defer s.enrollMu.Unlock()

	grid, err := fingerprint.Decode(req.Image)
	if err != nil {
		s.metrics.RecordEnrollment(enrollFailed)
		return nil, err
	}
	detection := s.detector.DetectAll(grid)
	region, ok := facematch.Largest(detection.Regions)
	if !ok {
		s.metrics.RecordEnrollment(enrollNoFace)
		return nil, facematch.ErrNoFaceDetected
	}
	sig, err := fingerprint.Extract(grid, region)
	if err != nil {
		s.metrics.RecordEnrollment(enrollFailed)
		return nil, fmt.Errorf("failed to extract signature: %w", err)
	}

	existing, err := s.identities.GetIdentity(ctx, id)
	if err != nil && !errors.Is(err, database.ErrIdentityNotFound) {
		s.metrics.RecordEnrollment(enrollFailed)
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" && existing != nil {
		name = existing.Name
	}
	if name == "" {
		name = id
	}

	locator, err := s.images.Put(req.Image, req.Format)
	if err != nil {
		s.metrics.RecordEnrollment(enrollFailed)
		return nil, fmt.Errorf("failed to store reference image: %w", err)
	}

	identity := database.StoredIdentity{
		ID:           id,
		Name:         name,
		NameKey:      facematch.NormalizePersonName(name),
		ImageLocator: locator,
		ImageSHA256:  fingerprint.Digest(req.Image),
		Signature:    sig.Weights(),
	}
	if err := s.identities.SaveIdentity(ctx, identity); err != nil {
		if delErr := s.images.Delete(locator); delErr != nil {
			s.logger.Warn("failed to remove orphaned reference image", zap.String("locator", locator), zap.Error(delErr))
		}
		s.metrics.RecordEnrollment(enrollFailed)
		return nil, fmt.Errorf("failed to save identity: %w", err)
	}

	result := &EnrollResult{
		Identity: identity,
		Region:   region,
		Profile:  detection.Profile,
		Replaced: existing != nil,
	}

	if existing != nil && existing.ImageLocator != locator {
		if err := s.images.Delete(existing.ImageLocator); err != nil {
			s.logger.Warn("failed to remove previous reference image",
				zap.String("identity_id", id),
				zap.String("locator", existing.ImageLocator),
				zap.Error(err),
			)
		}
	}

	s.index.Upsert(id, identity.Signature)
	if similar := s.index.Nearest(identity.Signature, 1, id); len(similar) > 0 && similar[0].Correlation > s.duplicateThreshold {
		result.Similar = &similar[0]
		s.logger.Warn("enrolled face resembles another identity",
			zap.String("identity_id", id),
			zap.String("similar_identity_id", similar[0].IdentityID),
			zap.Float64("correlation", similar[0].Correlation),
		)
	}

	if result.Replaced {
		s.metrics.RecordEnrollment(enrollReplaced)
	} else {
		s.metrics.RecordEnrollment(enrollCreated)
	}
	if n, err := s.identities.CountIdentities(ctx); err == nil {
		s.metrics.SetIdentities(n)
	}

	s.logger.Info("identity enrolled",
		zap.String("identity_id", id),
		zap.String("profile", detection.Profile),
		zap.Bool("replaced", result.Replaced),
	)
	return result, nil
}

// Remove deletes an identity together with its reference image.
func (s *Service) Remove(ctx context.Context, id string) error {
	s.enrollMu.Lock()
	defer s.enrollMu.Unlock()

	identity, err := s.identities.GetIdentity(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to look up identity: %w", err)
	}
	if err := s.identities.DeleteIdentity(ctx, id); err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	if err := s.images.Delete(identity.ImageLocator); err != nil {
		s.logger.Warn("failed to remove reference image", zap.String("locator", identity.ImageLocator), zap.Error(err))
	}
	s.index.Remove(id)

	if n, err := s.identities.CountIdentities(ctx); err == nil {
		s.metrics.SetIdentities(n)
	}
	return nil
}
