package authflow

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestOutcome_ResolveOnce(t *testing.T) {
	t.Parallel()

	o := NewOutcome()
	_, err := o.Result()
	assert.ErrorIs(t, err, ErrOutcomePending)
	assert.False(t, o.Settled())

	first := mustParse(t, "homeassistant://auth-callback?code=first")
	assert.True(t, o.Resolve(first))
	assert.False(t, o.Resolve(mustParse(t, "homeassistant://auth-callback?code=second")))
	assert.False(t, o.Reject(errors.New("too late")))
	assert.True(t, o.Settled())

	got, err := o.Result()
	require.NoError(t, err)
	assert.Equal(t, first.String(), got.String())

	// The stored URL is a copy
	first.RawQuery = "code=mutated"
	got, err = o.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "code=first", got.RawQuery)
}

func TestOutcome_RejectOnce(t *testing.T) {
	t.Parallel()

	o := NewOutcome()
	assert.False(t, o.Reject(nil), "nil errors do not settle the outcome")
	assert.False(t, o.Resolve(nil), "nil URLs do not settle the outcome")

	assert.True(t, o.Reject(ErrCancelled))
	assert.False(t, o.Resolve(mustParse(t, "homeassistant://auth-callback")))

	select {
	case <-o.Done():
	default:
		assert.Fail(t, "Done should be closed after Reject")
	}

	_, err := o.Wait(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestOutcome_WaitHonoursContext(t *testing.T) {
	t.Parallel()

	o := NewOutcome()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := o.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, o.Settled(), "an abandoned wait leaves the outcome pending")
}

func TestOutcome_ConcurrentSettlement(t *testing.T) {
	t.Parallel()

	o := NewOutcome()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var settled bool
			if i%2 == 0 {
				settled = o.Resolve(&url.URL{Scheme: "homeassistant", Host: "auth-callback"})
			} else {
				settled = o.Reject(errors.New("failure"))
			}
			if settled {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.True(t, o.Settled())
}
