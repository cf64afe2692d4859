// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fanout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_PreservesOrder(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	results := Map(context.Background(), items, Options{}, func(_ context.Context, i int, s string) (string, error) {
		// Finish in reverse order.
		time.Sleep(time.Duration(len(items)-i) * time.Millisecond)
		return strings.ToUpper(s), nil
	})

	require.Len(t, results, 4)
	for i, r := range results {
		assert.True(t, r.OK())
		assert.Equal(t, strings.ToUpper(items[i]), r.Value)
	}
}

func TestMap_IsolatesFailures(t *testing.T) {
	boom := errors.New("boom")
	results := Map(context.Background(), []int{1, 2, 3}, Options{}, func(_ context.Context, _ int, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n * 10, nil
	})

	assert.Equal(t, 10, results[0].Value)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.Equal(t, 30, results[2].Value)
	assert.Len(t, Errors(results), 1)
}

func TestMap_BoundsConcurrency(t *testing.T) {
	var inFlight, peak int32
	items := make([]int, 20)
	Map(context.Background(), items, Options{Concurrency: 3}, func(_ context.Context, _ int, _ int) (struct{}, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return struct{}{}, nil
	})
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestMap_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	results := Map(ctx, []int{1, 2, 3}, Options{Concurrency: 1}, func(ctx context.Context, _ int, n int) (int, error) {
		atomic.AddInt32(&calls, 1)
		return n, ctx.Err()
	})
	for i, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled, fmt.Sprintf("item %d", i))
	}
}

func TestMap_Empty(t *testing.T) {
	results := Map(context.Background(), []int(nil), Options{}, func(context.Context, int, int) (int, error) {
		t.Fatal("fn must not be called")
		return 0, nil
	})
	assert.Empty(t, results)
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, NewLimiter(0))
	l := NewLimiter(0.5)
	require.NotNil(t, l)
	assert.Equal(t, 1, l.Burst())
	assert.Equal(t, 5, NewLimiter(5).Burst())
}

func TestMap_WithLimiter(t *testing.T) {
	results := Map(context.Background(), []int{1, 2}, Options{Limiter: NewLimiter(1000)}, func(_ context.Context, _ int, n int) (int, error) {
		return n, nil
	})
	assert.Equal(t, 1, results[0].Value)
	assert.Equal(t, 2, results[1].Value)
}
