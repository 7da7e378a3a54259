package errs_test

import (
	"context"
	"testing"
	"time"

	"github.com/masc-mcp/masc/internal/errs"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsAfterRecoverableFailures(t *testing.T) {
	attempts := 0
	err := errs.Retry(context.Background(), errs.RetryPolicy{
		MaxRetries: 5,
		BaseDelay:  time.Millisecond,
		MaxDelay:   10 * time.Millisecond,
	}, func() error {
		attempts++
		if attempts < 3 {
			return errs.New(errs.KindTaskAlreadyClaimed, "still claimed")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestRetryStopsImmediatelyOnTerminalError(t *testing.T) {
	attempts := 0
	err := errs.Retry(context.Background(), errs.RetryPolicy{
		MaxRetries: 5,
		BaseDelay:  time.Millisecond,
		MaxDelay:   10 * time.Millisecond,
	}, func() error {
		attempts++
		return errs.New(errs.KindTaskNotFound, "gone")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)

	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.KindTaskNotFound, e.Kind)
}

func TestRetryExhaustsMaxRetriesOnPersistentRecoverableError(t *testing.T) {
	attempts := 0
	err := errs.Retry(context.Background(), errs.RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   2 * time.Millisecond,
	}, func() error {
		attempts++
		return errs.New(errs.KindFileLocked, "still locked")
	})
	require.Error(t, err)
	require.Equal(t, 3, attempts) // initial attempt + 2 retries
}
