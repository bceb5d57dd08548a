package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterAllowsBurst(t *testing.T) {
	l := New("test", 3)
	require.Equal(t, "test", l.Name())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for range 3 {
		require.NoError(t, l.Wait(ctx))
	}
}

func TestLimiterWaitHonorsContext(t *testing.T) {
	l := NewEvery("wordnik", time.Hour, 1)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	require.ErrorContains(t, err, "rate limit wait for wordnik")
}

func TestNewEveryMinimumBurst(t *testing.T) {
	l := NewEvery("books", time.Minute, 0)
	require.NoError(t, l.Wait(context.Background()))
}
