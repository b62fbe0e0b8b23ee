package service

import (
	"context"

	"regcore/internal/registry/models"
	dErrors "regcore/pkg/domain-errors"
	pstrings "regcore/pkg/platform/strings"
	"regcore/pkg/requestcontext"
)

const maxCheckNames = 50

// Check answers availability for a batch of names. Checks are purely
// informational: they read the cache or the replica-backed store, never
// open a transaction, and tolerate slightly stale answers. Only a create
// attempt gives an authoritative verdict.
func (s *Service) Check(ctx context.Context, names []string) ([]CheckResult, error) {
	names = pstrings.DedupeAndTrimLower(names)
	if len(names) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "at least one name is required")
	}
	if len(names) > maxCheckNames {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "at most %d names per check", maxCheckNames)
	}
	now := requestcontext.Now(ctx)

	results := make([]CheckResult, 0, len(names))
	for _, raw := range names {
		name, _, err := models.ParseDomainName(raw)
		if err != nil {
			results = append(results, CheckResult{Name: raw, Available: false, Reason: "invalid domain name"})
			continue
		}

		if s.cache != nil {
			available, ok, err := s.cache.Get(ctx, name)
			if err != nil {
				s.logger.WarnContext(ctx, "check cache read failed", "domain", name, "error", err)
			} else if ok {
				if s.metrics != nil {
					s.metrics.CheckCacheHits.Inc()
				}
				results = append(results, checkResult(name, available))
				continue
			}
		}
		if s.metrics != nil {
			s.metrics.CheckCacheMisses.Inc()
		}

		exists, err := s.readDomains.ExistsLive(ctx, name, now)
		if err != nil {
			return nil, err
		}
		available := !exists
		if s.cache != nil {
			if err := s.cache.Set(ctx, name, available); err != nil {
				s.logger.WarnContext(ctx, "check cache write failed", "domain", name, "error", err)
			}
		}
		results = append(results, checkResult(name, available))
	}
	return results, nil
}

func checkResult(name string, available bool) CheckResult {
	res := CheckResult{Name: name, Available: available}
	if !available {
		res.Reason = "in use"
	}
	return res
}
