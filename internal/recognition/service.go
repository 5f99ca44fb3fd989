// Package recognition ties face matching to the identity store: it authenticates
// probe images, enrolls reference faces and keeps cached signatures fresh.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/facelog/internal/database"
	"github.com/kozaktomas/facelog/internal/facematch"
	"github.com/kozaktomas/facelog/internal/fingerprint"
	"github.com/kozaktomas/facelog/internal/metrics"
	"github.com/kozaktomas/facelog/internal/storage"
)

// DefaultDuplicateThreshold is the correlation above which a new enrollment is
// reported as resembling another identity.
const DefaultDuplicateThreshold = 0.95

// ErrReferenceChanged is returned when a stored reference image no longer has the
// hash recorded on its identity.
var ErrReferenceChanged = errors.New("reference image does not match its recorded hash")

// Service authenticates and enrolls faces.
type Service struct {
	identities  database.IdentityWriter
	logs        database.RecognitionLogWriter
	images      *storage.FileStore
	detector    *facematch.Detector
	matcher     *facematch.Matcher
	index       *database.SignatureIndex
	indexPath   string
	metrics     *metrics.Manager
	logger      *zap.Logger
	matcherOpts []facematch.MatcherOption

	duplicateThreshold float64

	enrollMu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithRecognitionLog records every authentication attempt in w.
func WithRecognitionLog(w database.RecognitionLogWriter) Option {
	return func(s *Service) {
		s.logs = w
	}
}

// WithIndex sets the nearest-identity index used for duplicate warnings.
func WithIndex(index *database.SignatureIndex) Option {
	return func(s *Service) {
		if index != nil {
			s.index = index
		}
	}
}

// WithIndexPath makes LoadIndex reuse the index saved at path while it is fresh.
func WithIndexPath(path string) Option {
	return func(s *Service) {
		s.indexPath = path
	}
}

// WithMetrics sets the metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDuplicateThreshold sets the correlation that triggers a duplicate warning.
func WithDuplicateThreshold(threshold float64) Option {
	return func(s *Service) {
		s.duplicateThreshold = threshold
	}
}

// WithMatcherOptions passes options through to the matcher.
func WithMatcherOptions(opts ...facematch.MatcherOption) Option {
	return func(s *Service) {
		s.matcherOpts = append(s.matcherOpts, opts...)
	}
}

// New creates a recognition service.
func New(identities database.IdentityWriter, images *storage.FileStore, detector *facematch.Detector, opts ...Option) *Service {
	s := &Service{
		identities:         identities,
		images:             images,
		detector:           detector,
		index:              database.NewSignatureIndex(),
		logger:             zap.NewNop(),
		duplicateThreshold: DefaultDuplicateThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}

	matcherOpts := append([]facematch.MatcherOption{facematch.WithLogger(s.logger)}, s.matcherOpts...)
	s.matcher = facematch.NewMatcher(detector, s, matcherOpts...)
	return s
}

// Matcher returns the matcher used for authentication.
func (s *Service) Matcher() *facematch.Matcher {
	return s.matcher
}

// Index returns the nearest-identity index.
func (s *Service) Index() *database.SignatureIndex {
	return s.index
}

// LoadIndex fills the nearest-identity index. A saved index that still matches
// the cached signatures in the store is reused, otherwise the index is rebuilt.
func (s *Service) LoadIndex(ctx context.Context) error {
	identities, err := s.identities.ListIdentities(ctx)
	if err != nil {
		return fmt.Errorf("failed to list identities: %w", err)
	}
	s.metrics.SetIdentities(len(identities))

	source := "store"
	if s.indexPath != "" {
		loaded, err := s.index.LoadWithMetadata(s.indexPath, identities)
		if err != nil {
			s.logger.Warn("failed to load saved signature index, rebuilding",
				zap.String("path", s.indexPath), zap.Error(err))
		}
		if loaded {
			source = "file"
		}
	}
	if source == "store" {
		s.index.Build(identities)
	}

	s.logger.Info("signature index loaded",
		zap.String("source", source),
		zap.Int("identities", len(identities)),
		zap.Int("indexed", s.index.Count()),
	)
	return nil
}

// Authenticate decides which enrolled identity, if any, the face in probe belongs to.
// Undecodable probes are rejected like probes without a face. The attempt is
// recorded in the recognition log when one is configured.
func (s *Service) Authenticate(ctx context.Context, probe []byte) (facematch.MatchResult, error) {
	start := time.Now()

	result, err := s.authenticate(ctx, probe)
	if err != nil {
		return facematch.MatchResult{}, err
	}

	s.metrics.RecordMatch(string(result.Reason), time.Since(start), result.Score.Ptr(), result.Skipped)
	s.record(ctx, result)

	if result.Accepted {
		s.logger.Info("face login accepted",
			zap.String("identity_id", result.IdentityID),
			zap.Stringer("score", result.Score),
		)
	} else {
		s.logger.Info("face login rejected",
			zap.String("reason", string(result.Reason)),
			zap.String("best_candidate", result.IdentityID),
			zap.Stringer("score", result.Score),
		)
	}
	return result, nil
}

func (s *Service) authenticate(ctx context.Context, probe []byte) (facematch.MatchResult, error) {
	grid, err := fingerprint.Decode(probe)
	if err != nil {
		s.logger.Debug("probe not decodable", zap.Error(err))
		return facematch.MatchResult{Reason: facematch.ReasonNoFaceDetected, Score: fingerprint.NoScore()}, nil
	}

	refs, err := s.references(ctx)
	if err != nil {
		return facematch.MatchResult{}, err
	}

	result, err := s.matcher.Match(ctx, grid, refs)
	if err != nil {
		return facematch.MatchResult{}, fmt.Errorf("failed to match face: %w", err)
	}
	return result, nil
}

// references takes a snapshot of the enrolled identities in enrollment order.
func (s *Service) references(ctx context.Context) ([]facematch.Reference, error) {
	identities, err := s.identities.ListIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}

	refs := make([]facematch.Reference, 0, len(identities))
	for _, identity := range identities {
		ref := facematch.Reference{
			IdentityID:  identity.ID,
			Name:        identity.Name,
			Locator:     identity.ImageLocator,
			ImageSHA256: identity.ImageSHA256,
		}
		if identity.HasSignature() {
			if sig, err := fingerprint.SignatureFromWeights(identity.Signature); err == nil {
				ref.Signature = &sig
			} else {
				s.logger.Warn("ignoring cached signature", zap.String("identity_id", identity.ID), zap.Error(err))
			}
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (s *Service) record(ctx context.Context, result facematch.MatchResult) {
	if s.logs == nil {
		return
	}
	entry := database.RecognitionLog{
		IdentityID: result.IdentityID,
		Accepted:   result.Accepted,
		Reason:     string(result.Reason),
		Score:      result.Score.Ptr(),
		Compared:   result.Compared,
		Skipped:    result.Skipped,
		CreatedAt:  time.Now(),
	}
	if err := s.logs.SaveRecognitionLog(ctx, entry); err != nil {
		s.logger.Error("failed to save recognition log", zap.Error(err))
	}
}

// ReferenceSignature returns the cached signature of ref, or recomputes it from the
// stored reference image and caches it while the image is unchanged.
func (s *Service) ReferenceSignature(ctx context.Context, ref facematch.Reference) (fingerprint.Signature, error) {
	if ref.Signature != nil {
		return *ref.Signature, nil
	}

	sig, err := s.computeSignature(ref.Locator, ref.ImageSHA256)
	if err != nil {
		return fingerprint.Signature{}, err
	}

	stored, err := s.identities.SaveSignature(ctx, ref.IdentityID, ref.ImageSHA256, sig.Weights())
	switch {
	case err != nil:
		s.logger.Warn("failed to cache signature", zap.String("identity_id", ref.IdentityID), zap.Error(err))
	case !stored:
		s.logger.Debug("identity re-enrolled, signature not cached", zap.String("identity_id", ref.IdentityID))
	default:
		s.index.Upsert(ref.IdentityID, sig.Weights())
	}
	return sig, nil
}

// computeSignature runs decode, detection and extraction on a stored reference image.
func (s *Service) computeSignature(locator, sha string) (fingerprint.Signature, error) {
	data, err := s.images.Get(locator)
	if err != nil {
		return fingerprint.Signature{}, fmt.Errorf("failed to load reference image: %w", err)
	}
	if sha != "" && fingerprint.Digest(data) != sha {
		return fingerprint.Signature{}, fmt.Errorf("%w: %s", ErrReferenceChanged, locator)
	}

	grid, err := fingerprint.Decode(data)
	if err != nil {
		return fingerprint.Signature{}, err
	}
	sig, _, err := s.detector.FaceSignature(grid)
	if err != nil {
		return fingerprint.Signature{}, fmt.Errorf("reference %s: %w", locator, err)
	}
	return sig, nil
}

// Detect runs face detection on an image.
func (s *Service) Detect(image []byte) (facematch.DetectionResult, error) {
	grid, err := fingerprint.Decode(image)
	if err != nil {
		return facematch.DetectionResult{}, err
	}
	return s.detector.DetectAll(grid), nil
}

// ListIdentities returns the enrolled identities in enrollment order.
func (s *Service) ListIdentities(ctx context.Context) ([]database.StoredIdentity, error) {
	identities, err := s.identities.ListIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	return identities, nil
}

// RecognitionLogs returns the newest authentication attempts.
func (s *Service) RecognitionLogs(ctx context.Context, limit int) ([]database.RecognitionLog, error) {
	if s.logs == nil {
		return nil, nil
	}
	entries, err := s.logs.ListRecognitionLogs(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recognition logs: %w", err)
	}
	return entries, nil
}
