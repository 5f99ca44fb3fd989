package recognition

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kozaktomas/facelog/internal/database"
)

// RebuildFailure is an identity whose signature could not be recomputed.
type RebuildFailure struct {
	IdentityID string
	Err        error
}

// RebuildReport summarizes a signature rebuild.
type RebuildReport struct {
	Total    int
	Updated  int
	Stale    int // re-enrolled while the rebuild ran
	Failures []RebuildFailure
}

// RebuildSignatures recomputes every cached signature from the stored reference
// images. Missing or corrupt references are reported and skipped. progress, when
// set, is called after each identity.
func (s *Service) RebuildSignatures(ctx context.Context, progress func(done, total int)) (*RebuildReport, error) {
	identities, err := s.identities.ListIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}

	report := &RebuildReport{Total: len(identities)}
	for i, identity := range identities {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		s.rebuildOne(ctx, identity, report)
		if progress != nil {
			progress(i+1, len(identities))
		}
	}

	if err := s.LoadIndex(ctx); err != nil {
		return report, err
	}
	return report, nil
}

func (s *Service) rebuildOne(ctx context.Context, identity database.StoredIdentity, report *RebuildReport) {
	sig, err := s.computeSignature(identity.ImageLocator, identity.ImageSHA256)
	if err != nil {
		s.logger.Warn("skipping identity", zap.String("identity_id", identity.ID), zap.Error(err))
		report.Failures = append(report.Failures, RebuildFailure{IdentityID: identity.ID, Err: err})
		return
	}

	stored, err := s.identities.SaveSignature(ctx, identity.ID, identity.ImageSHA256, sig.Weights())
	switch {
	case err != nil:
		report.Failures = append(report.Failures, RebuildFailure{IdentityID: identity.ID, Err: err})
	case !stored:
		report.Stale++
	default:
		report.Updated++
	}
}
