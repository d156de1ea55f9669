package valuation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	domain "github.com/JohanRGustafsson/valuation-model/internal/domain/valuation"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/logging"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/prometheus"
	"github.com/JohanRGustafsson/valuation-model/pkg/errors"
)

const resultKeyPrefix = "result:"

// cacheKey is everything a calculation depends on. The entry schedule is
// part of it so a settings reload never serves stale results.
type cacheKey struct {
	Inputs   domain.ValuationInputs `json:"inputs"`
	Schedule domain.EntrySchedule   `json:"schedule"`
	Extra    interface{}            `json:"extra,omitempty"`
}

func (k cacheKey) hash(kind string) (string, bool) {
	data, err := json.Marshal(k)
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(data)
	return resultKeyPrefix + kind + ":" + hex.EncodeToString(sum[:16]), true
}

// cached serves compute through the result cache when one is configured.
// A failing cache degrades to computing directly; engine errors are never
// cached.
func cached[T any](ctx context.Context, s *serviceImpl, kind string, key cacheKey, compute func() (T, error)) (T, bool, error) {
	if s.cache == nil {
		out, err := compute()
		return out, false, err
	}
	k, ok := key.hash(kind)
	if !ok {
		out, err := compute()
		return out, false, err
	}

	var (
		out        T
		loaded     bool
		computeErr error
	)
	err := s.cache.GetOrSet(ctx, k, &out, s.cacheTTL, func(context.Context) (interface{}, error) {
		loaded = true
		v, err := compute()
		if err != nil {
			computeErr = err
			return nil, err
		}
		return v, nil
	})
	if computeErr != nil {
		return out, false, computeErr
	}
	if err != nil {
		if _, isInput := domain.AsInvalidInput(err); isInput {
			// another caller's load failed on the same inputs
			return out, false, err
		}
		s.logger.Warn("result cache failed, computing directly",
			logging.String("kind", kind), logging.Err(err))
		out, err = compute()
		return out, false, err
	}

	hit := !loaded
	if s.metrics != nil {
		prometheus.RecordCacheAccess(s.metrics, kind, hit)
	}
	return out, hit, nil
}

func errorCode(err error) errors.ErrorCode {
	if iv, ok := domain.AsInvalidInput(err); ok {
		return iv.Code()
	}
	return errors.GetCode(err)
}
