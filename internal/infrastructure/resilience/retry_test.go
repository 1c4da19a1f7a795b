package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"plantcare-http-service/internal/error/apperror"
)

func fastPolicy() Policy {
	return Policy{Timeout: 50 * time.Millisecond, Attempts: 2, Backoff: time.Millisecond}
}

func TestRetriesTransientOnce(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), func(ctx context.Context) error {
		calls++
		return apperror.Transient(errors.New("502 bad gateway"))
	})
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestSecondAttemptSucceeds(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return apperror.Transient(errors.New("connection reset"))
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestSemanticErrorNotRetried(t *testing.T) {
	calls := 0
	denied := errors.New("quota exhausted")
	err := Do(context.Background(), fastPolicy(), func(ctx context.Context) error {
		calls++
		return denied
	})
	assert.ErrorIs(t, err, denied)
	assert.Equal(t, 1, calls)
}

func TestAttemptTimeoutIsRetried(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})
	assert.True(t, apperror.IsTransient(err))
	assert.Equal(t, 2, calls)
}

func TestParentCancellationStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, fastPolicy(), func(ctx context.Context) error {
		calls++
		cancel()
		return apperror.Transient(errors.New("network"))
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
