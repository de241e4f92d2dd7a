package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"concept-review-be/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type finishTrigger struct {
	name string
	fire func(ctx context.Context, h *harness, key string, ids []uuid.UUID)
}

func finishTriggers() []finishTrigger {
	return []finishTrigger{
		{"all_voted", func(ctx context.Context, h *harness, key string, ids []uuid.UUID) {
			for _, id := range ids {
				// Rejected once another trigger already finished the session.
				_ = h.ctrl.SetVote(ctx, id, entity.VoteDislike)
			}
		}},
		{"threshold", func(ctx context.Context, h *harness, key string, ids []uuid.UUID) {
			_ = h.store.IncrementCounter(ctx, ids[1], entity.VoteLike)
			_ = h.store.IncrementCounter(ctx, ids[1], entity.VoteLike)
		}},
		{"winner", func(ctx context.Context, h *harness, key string, ids []uuid.UUID) {
			_, _ = h.store.SetWinnerIfUnset(ctx, key, ids[0])
		}},
		{"completion", func(ctx context.Context, h *harness, key string, ids []uuid.UUID) {
			_, _ = h.store.UpsertCompletion(ctx, &entity.CompletionRecord{
				UserId:      h.userId,
				WorkItemKey: key,
				CompletedAt: time.Now(),
			})
		}},
	}
}

// orderings lists every ordered selection of at least one of n items.
func orderings(n int) [][]int {
	var out [][]int
	var walk func(prefix []int, used uint)
	walk = func(prefix []int, used uint) {
		if len(prefix) > 0 {
			out = append(out, append([]int(nil), prefix...))
		}
		for i := 0; i < n; i++ {
			if used&(1<<i) == 0 {
				walk(append(prefix, i), used|1<<i)
			}
		}
	}
	walk(nil, 0)
	return out
}

func TestAnyFinishTriggerCompletesOnce(t *testing.T) {
	triggers := finishTriggers()
	for _, order := range orderings(len(triggers)) {
		names := make([]string, len(order))
		for i, idx := range order {
			names[i] = triggers[idx].name
		}
		order := order
		t.Run(strings.Join(names, "+"), func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, testConfig())
			ids := h.store.AddWorkItem("B0FIN", 2)
			ctx := context.Background()
			require.NoError(t, h.ctrl.Mount(ctx, "B0FIN", false))

			for _, idx := range order {
				triggers[idx].fire(ctx, h, "B0FIN", ids)
			}

			assert.Eventually(t, func() bool { return h.state() == StateFinished }, waitFor, tick)
			h.assertCompletedOnce(t)
			assert.LessOrEqual(t, h.store.CompletionCount(), 1)
		})
	}
}

func TestConcurrentFinishTriggersCompleteOnce(t *testing.T) {
	for i := 0; i < 10; i++ {
		h := newHarness(t, testConfig())
		ids := h.store.AddWorkItem("B0RACE", 2)
		ctx := context.Background()
		require.NoError(t, h.ctrl.Mount(ctx, "B0RACE", false))

		start := make(chan struct{})
		var wg sync.WaitGroup
		for _, trig := range finishTriggers() {
			wg.Add(1)
			go func(trig finishTrigger) {
				defer wg.Done()
				<-start
				trig.fire(ctx, h, "B0RACE", ids)
			}(trig)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_ = h.ctrl.SetVote(ctx, ids[0], entity.VoteLove)
		}()
		close(start)
		wg.Wait()

		require.Eventually(t, func() bool { return h.state() == StateFinished }, waitFor, tick)
		h.assertCompletedOnce(t)
		assert.LessOrEqual(t, h.store.CompletionCount(), 1)
	}
}
