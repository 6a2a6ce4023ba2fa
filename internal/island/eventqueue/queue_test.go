package eventqueue

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/island-mesh/island/internal/testutil"
)

func TestQueue_DeliversToEverySubscriber(t *testing.T) {
	q := New(context.Background(), testutil.NewTestLogger(t))

	var mu sync.Mutex
	got := map[string]any{}
	for _, name := range []string{"a", "b", "c"} {
		q.Subscribe(TopicSetIslandMode, name, func(_ context.Context, event any) error {
			mu.Lock()
			defer mu.Unlock()
			got[name] = event
			return nil
		})
	}
	q.Subscribe(TopicTerminateAgents, "other", func(context.Context, any) error {
		t.Error("subscriber of another topic must not be called")
		return nil
	})

	q.Publish(TopicSetIslandMode, "ransomware")
	q.Wait()

	assert.Equal(t, map[string]any{"a": "ransomware", "b": "ransomware", "c": "ransomware"}, got)
}

func TestQueue_PublishWithoutSubscribers(t *testing.T) {
	q := New(context.Background(), testutil.NewTestLogger(t))

	assert.NotPanics(t, func() {
		q.Publish(TopicClearSimulationData, nil)
		q.Wait()
	})
}

func TestQueue_PublishDoesNotBlockOnSlowSubscriber(t *testing.T) {
	q := New(context.Background(), testutil.NewTestLogger(t))
	release := make(chan struct{})
	q.Subscribe(TopicTerminateAgents, "slow", func(context.Context, any) error {
		<-release
		return nil
	})

	q.Publish(TopicTerminateAgents, nil)
	close(release)
	q.Wait()
}

func TestQueue_FailuresAreContained(t *testing.T) {
	var buf bytes.Buffer
	q := New(context.Background(), zerolog.New(&buf))

	var healthy atomic.Int32
	q.Subscribe(TopicResetAgentConfiguration, "panics", func(context.Context, any) error {
		panic("boom")
	})
	q.Subscribe(TopicResetAgentConfiguration, "errors", func(context.Context, any) error {
		return errors.New("nope")
	})
	q.Subscribe(TopicResetAgentConfiguration, "healthy", func(context.Context, any) error {
		healthy.Add(1)
		return nil
	})

	q.Publish(TopicResetAgentConfiguration, nil)
	q.Wait()

	assert.Equal(t, int32(1), healthy.Load())
	assert.Contains(t, buf.String(), "Subscriber panicked")
	assert.Contains(t, buf.String(), "Subscriber failed")
}

func TestQueue_PassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "island")
	q := New(ctx, testutil.NewTestLogger(t))

	var seen any
	q.Subscribe(TopicClearSimulationData, "ctx", func(ctx context.Context, _ any) error {
		seen = ctx.Value(key{})
		return nil
	})
	q.Publish(TopicClearSimulationData, nil)
	q.Wait()

	require.NotNil(t, seen)
	assert.Equal(t, "island", seen)
}
