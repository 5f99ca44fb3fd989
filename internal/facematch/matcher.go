package facematch

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/kozaktomas/facelog/internal/fingerprint"
)

// DefaultAcceptThreshold is the correlation a match has to exceed to be accepted.
const DefaultAcceptThreshold = 0.7

// SignatureSource provides the signature of an enrolled reference, from cache or
// by recomputing it from the stored image.
type SignatureSource interface {
	ReferenceSignature(ctx context.Context, ref Reference) (fingerprint.Signature, error)
}

// Matcher compares a probe face against enrolled references.
type Matcher struct {
	detector  *Detector
	source    SignatureSource
	threshold float64
	workers   int
	score     func(a, b fingerprint.Signature) fingerprint.Score
	logger    *zap.Logger
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithThreshold sets the acceptance threshold.
func WithThreshold(threshold float64) MatcherOption {
	return func(m *Matcher) {
		m.threshold = threshold
	}
}

// WithWorkers sets how many references are scored in parallel.
func WithWorkers(workers int) MatcherOption {
	return func(m *Matcher) {
		if workers > 0 {
			m.workers = workers
		}
	}
}

// WithScorer replaces the similarity function.
func WithScorer(score func(a, b fingerprint.Signature) fingerprint.Score) MatcherOption {
	return func(m *Matcher) {
		if score != nil {
			m.score = score
		}
	}
}

// WithLogger sets the logger used for skipped references.
func WithLogger(logger *zap.Logger) MatcherOption {
	return func(m *Matcher) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMatcher creates a matcher.
func NewMatcher(detector *Detector, source SignatureSource, opts ...MatcherOption) *Matcher {
	m := &Matcher{
		detector:  detector,
		source:    source,
		threshold: DefaultAcceptThreshold,
		workers:   1,
		score:     fingerprint.Correlate,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Threshold returns the acceptance threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Detector returns the detector used for probes.
func (m *Matcher) Detector() *Detector {
	return m.detector
}

type comparison struct {
	score fingerprint.Score
	ok    bool
}

// Match decides which reference, if any, the probe face belongs to. The scan checks
// ctx before every reference and returns ctx.Err() when cancelled.
func (m *Matcher) Match(ctx context.Context, probe *fingerprint.Grid, refs []Reference) (MatchResult, error) {
	probeSig, _, err := m.detector.FaceSignature(probe)
	switch {
	case errors.Is(err, ErrNoFaceDetected):
		return MatchResult{Reason: ReasonNoFaceDetected}, nil
	case err != nil:
		return MatchResult{Reason: ReasonInvalidRegion}, nil
	}

	if len(refs) == 0 {
		return MatchResult{Reason: ReasonNoEnrolledIdentities}, nil
	}

	comparisons := make([]comparison, len(refs))
	if m.workers > 1 && len(refs) > 1 {
		m.compareParallel(ctx, probeSig, refs, comparisons)
	} else {
		for i := range refs {
			if ctx.Err() != nil {
				break
			}
			comparisons[i] = m.compare(ctx, probeSig, refs[i])
		}
	}
	if err := ctx.Err(); err != nil {
		return MatchResult{}, err
	}

	// Reduce in reference order so ties keep the earliest reference regardless of scheduling.
	result := MatchResult{Score: fingerprint.NoScore()}
	best := -1
	for i, c := range comparisons {
		if !c.ok {
			result.Skipped++
			continue
		}
		result.Compared++
		if c.score.Beats(result.Score) {
			result.Score = c.score
			best = i
		}
	}

	if best < 0 {
		result.Reason = ReasonNoValidComparison
		return result, nil
	}

	result.IdentityID = refs[best].IdentityID
	result.Name = refs[best].Name
	if result.Score.Exceeds(m.threshold) {
		result.Accepted = true
		result.Reason = ReasonAccepted
	} else {
		result.Reason = ReasonBelowThreshold
	}
	return result, nil
}

func (m *Matcher) compareParallel(ctx context.Context, probe fingerprint.Signature, refs []Reference, out []comparison) {
	indexes := make(chan int)
	var wg sync.WaitGroup

	for range min(m.workers, len(refs)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				out[i] = m.compare(ctx, probe, refs[i])
			}
		}()
	}

	for i := range refs {
		if ctx.Err() != nil {
			break
		}
		indexes <- i
	}
	close(indexes)
	wg.Wait()
}

func (m *Matcher) compare(ctx context.Context, probe fingerprint.Signature, ref Reference) comparison {
	sig, err := m.source.ReferenceSignature(ctx, ref)
	if err != nil {
		m.logger.Warn("skipping reference",
			zap.String("identity_id", ref.IdentityID),
			zap.String("locator", ref.Locator),
			zap.Error(err),
		)
		return comparison{}
	}

	score := m.score(probe, sig)
	if !score.Valid {
		m.logger.Warn("reference produced no score", zap.String("identity_id", ref.IdentityID))
		return comparison{}
	}
	return comparison{score: score, ok: true}
}
