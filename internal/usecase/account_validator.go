package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain"
)

const (
	defaultAccountCacheTTL = 15 * time.Minute
	accountValidPrefix     = "valid"
	accountInvalidPrefix   = "invalid:"
)

// AccountValidator probes a brand's network account before a job fetches from it.
// Definitive verdicts are cached; transport failures are not.
type AccountValidator struct {
	cache  domain.CacheRepository
	ttl    time.Duration
	logger *zap.Logger
}

// NewAccountValidator creates a validator caching verdicts for ttl
func NewAccountValidator(cache domain.CacheRepository, ttl time.Duration, logger *zap.Logger) *AccountValidator {
	if ttl <= 0 {
		ttl = defaultAccountCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountValidator{cache: cache, ttl: ttl, logger: logger}
}

// Validate returns nil when the account is usable and an error wrapping
// domain.ErrAccountInvalid when the provider rejected it.
func (v *AccountValidator) Validate(ctx context.Context, adapter domain.NetworkAdapter, accountID string) error {
	key := accountKey(adapter.Network(), accountID)

	if cached, err := v.cache.Get(ctx, key); err == nil {
		if verdict, ok := cached.(string); ok {
			if verdict == accountValidPrefix {
				return nil
			}
			if reason, found := strings.CutPrefix(verdict, accountInvalidPrefix); found {
				return &invalidAccountError{msg: reason}
			}
		}
	} else if !errors.Is(err, domain.ErrCacheMiss) {
		v.logger.Warn("account cache read failed", zap.String("key", key), zap.Error(err))
	}

	err := adapter.ValidateAccount(ctx, accountID)
	switch {
	case err == nil:
		v.store(ctx, key, accountValidPrefix)
		return nil
	case errors.Is(err, domain.ErrAccountInvalid):
		v.store(ctx, key, accountInvalidPrefix+err.Error())
		return err
	default:
		return err
	}
}

// Forget drops the cached verdict so the next Validate probes the network again
func (v *AccountValidator) Forget(ctx context.Context, network domain.Network, accountID string) {
	key := accountKey(network, accountID)
	if err := v.cache.Delete(ctx, key); err != nil {
		v.logger.Warn("account cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

func accountKey(network domain.Network, accountID string) string {
	return fmt.Sprintf("account:%s:%s", network, accountID)
}

func (v *AccountValidator) store(ctx context.Context, key, verdict string) {
	if err := v.cache.Set(ctx, key, verdict, v.ttl); err != nil {
		v.logger.Warn("account cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// invalidAccountError replays a cached rejection
type invalidAccountError struct {
	msg string
}

func (e *invalidAccountError) Error() string { return e.msg }

func (e *invalidAccountError) Unwrap() error { return domain.ErrAccountInvalid }
