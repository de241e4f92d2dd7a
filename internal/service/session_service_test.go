package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"concept-review-be/internal/dto"
	"concept-review-be/internal/entity"
	"concept-review-be/internal/pkg/logger"
	"concept-review-be/internal/pkg/serverutils"
	"concept-review-be/internal/repository/memory"
	"concept-review-be/pkg/review"
	"concept-review-be/pkg/review/fetcher"
	"concept-review-be/pkg/review/session"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "session-service-secret"

type pushed struct {
	userId  uuid.UUID
	msgType string
	data    interface{}
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []pushed
}

func (n *fakeNotifier) SendToUser(userId uuid.UUID, msgType string, data interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, pushed{userId: userId, msgType: msgType, data: data})
}

func (n *fakeNotifier) count(msgType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, m := range n.msgs {
		if m.msgType == msgType {
			total++
		}
	}
	return total
}

func signToken(t *testing.T, userId uuid.UUID, ttl time.Duration) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userId.String(),
		"exp":     time.Now().Add(ttl).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

type sessionHarness struct {
	store    IReviewStoreService
	svc      ISessionService
	notifier *fakeNotifier
	registry *memory.SessionRepository
	userId   uuid.UUID
	token    string
}

func newSessionHarness(t *testing.T) *sessionHarness {
	t.Helper()
	t.Setenv("JWT_SECRET", testSecret)
	store, bus := newTestStore(t)
	notifier := &fakeNotifier{}
	registry := memory.NewSessionRepository(time.Minute)
	svc := NewSessionService(store, bus, registry, notifier, session.Config{
		Fetch:           fetcher.Config{LoadingFallback: time.Second, DefaultTitle: "Untitled", DefaultImageURL: "/placeholder.png"},
		CompletionDelay: 50 * time.Millisecond,
		CountdownTick:   25 * time.Millisecond,
		SafetyTimeout:   time.Second,
	}, false, logger.NewNopLogger())
	t.Cleanup(svc.Shutdown)

	userId := uuid.New()
	return &sessionHarness{
		store:    store,
		svc:      svc,
		notifier: notifier,
		registry: registry,
		userId:   userId,
		token:    signToken(t, userId, time.Hour),
	}
}

func TestSessionVotesToCompletion(t *testing.T) {
	h := newSessionHarness(t)
	ctx := context.Background()
	concepts := seedItem(t, h.store, "S0001", 2)

	res, err := h.svc.Open(ctx, h.userId, h.token, "S0001", &dto.OpenSessionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "voting", res.State)
	assert.Len(t, res.ConceptImages, 2)
	assert.Equal(t, "/img/original.png", res.OriginalImage.URL)

	res, err = h.svc.Vote(ctx, h.userId, h.token, "S0001", &dto.VoteRequest{ConceptId: concepts[0].Id, Kind: "like"})
	require.NoError(t, err)
	assert.Equal(t, "like", res.VotedImages[concepts[0].Id])
	assert.Equal(t, "voting", res.State)

	res, err = h.svc.Vote(ctx, h.userId, h.token, "S0001", &dto.VoteRequest{ConceptId: concepts[1].Id, Kind: "dislike"})
	require.NoError(t, err)
	assert.Equal(t, "finished", res.State)

	require.Eventually(t, func() bool { return h.notifier.count(MessageCompleted) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Positive(t, h.notifier.count(MessageSnapshot))

	require.Eventually(t, func() bool {
		progress, err := h.svc.Progress(ctx, h.userId)
		return err == nil && progress.Completed == 1
	}, 2*time.Second, 10*time.Millisecond)

	c, err := h.store.GetConcept(ctx, concepts[1].Id)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Down)
}

func TestSessionNotReadyThenRetry(t *testing.T) {
	h := newSessionHarness(t)
	ctx := context.Background()

	res, err := h.svc.Open(ctx, h.userId, h.token, "S0002", nil)
	require.NoError(t, err)
	assert.Equal(t, "error", res.State)
	assert.Equal(t, "not_ready", res.ErrorCode)

	item, err := h.store.GetWorkItem(ctx, "S0002")
	require.NoError(t, err)
	require.NotNil(t, item, "work item is created lazily")

	_, err = h.store.ReplaceConcepts(ctx, "S0002", []string{"/a.png", "/b.png"})
	require.NoError(t, err)
	require.NoError(t, h.store.SetReady(ctx, "S0002", true))

	res, err = h.svc.Retry(ctx, h.userId, h.token, "S0002")
	require.NoError(t, err)
	assert.Equal(t, "voting", res.State)
	assert.Len(t, res.ConceptImages, 2)
}

func TestSessionRejectsExpiredToken(t *testing.T) {
	h := newSessionHarness(t)
	seedItem(t, h.store, "S0003", 1)

	expired := signToken(t, h.userId, -time.Minute)
	res, err := h.svc.Open(context.Background(), h.userId, expired, "S0003", nil)
	require.NoError(t, err)
	assert.Equal(t, "error", res.State)
	assert.Equal(t, "auth_required", res.ErrorCode)

	res, err = h.svc.Retry(context.Background(), h.userId, h.token, "S0003")
	require.NoError(t, err)
	assert.Equal(t, "voting", res.State)
}

func TestSessionRemoteThresholdFinishes(t *testing.T) {
	h := newSessionHarness(t)
	ctx := context.Background()
	concepts := seedItem(t, h.store, "S0004", 3)

	_, err := h.svc.Open(ctx, h.userId, h.token, "S0004", nil)
	require.NoError(t, err)

	// Another reviewer's likes arrive only through the change bus.
	require.NoError(t, h.store.IncrementCounter(ctx, concepts[2].Id, entity.VoteLike))
	require.NoError(t, h.store.IncrementCounter(ctx, concepts[2].Id, entity.VoteLike))

	require.Eventually(t, func() bool {
		res, err := h.svc.Get(ctx, h.userId, h.token, "S0004")
		return err == nil && res.State == "finished"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionEditPrompt(t *testing.T) {
	h := newSessionHarness(t)
	ctx := context.Background()
	seedItem(t, h.store, "S0005", 1)

	_, err := h.svc.Open(ctx, h.userId, h.token, "S0005", nil)
	require.NoError(t, err)

	res, err := h.svc.EditPrompt(ctx, h.userId, h.token, "S0005", &dto.EditPromptRequest{Prompt: "  brighter  "})
	require.NoError(t, err)
	assert.Equal(t, "brighter", res.PromptText)

	item, err := h.store.GetWorkItem(ctx, "S0005")
	require.NoError(t, err)
	assert.Equal(t, "brighter", item.Prompt)
}

func TestSessionErrors(t *testing.T) {
	h := newSessionHarness(t)
	ctx := context.Background()
	concepts := seedItem(t, h.store, "S0006", 1)

	_, err := h.svc.Get(ctx, h.userId, h.token, "S0006")
	assert.ErrorIs(t, err, ErrSessionNotOpen)
	assert.True(t, errors.Is(err, serverutils.ErrNotFound))

	_, err = h.svc.Open(ctx, h.userId, h.token, "   ", nil)
	assert.ErrorIs(t, err, review.ErrInvalidKey)

	_, err = h.svc.Open(ctx, h.userId, h.token, "S0006", nil)
	require.NoError(t, err)

	_, err = h.svc.Vote(ctx, h.userId, h.token, "S0006", &dto.VoteRequest{ConceptId: concepts[0].Id, Kind: "meh"})
	assert.ErrorIs(t, err, review.ErrInvalidVoteKind)

	_, err = h.svc.Vote(ctx, h.userId, h.token, "S0006", &dto.VoteRequest{ConceptId: uuid.New(), Kind: "like"})
	assert.ErrorIs(t, err, review.ErrUnknownConcept)

	other := uuid.New()
	_, err = h.svc.Get(ctx, other, signToken(t, other, time.Hour), "S0006")
	assert.ErrorIs(t, err, ErrSessionNotOpen)
}

func TestSessionCloseAndShutdown(t *testing.T) {
	h := newSessionHarness(t)
	ctx := context.Background()
	seedItem(t, h.store, "S0007", 1)
	seedItem(t, h.store, "S0008", 1)

	_, err := h.svc.Open(ctx, h.userId, h.token, "S0007", nil)
	require.NoError(t, err)
	_, err = h.svc.Open(ctx, h.userId, h.token, "S0008", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, h.registry.Count())

	require.NoError(t, h.svc.Close(ctx, h.userId, "S0007"))
	assert.ErrorIs(t, h.svc.Close(ctx, h.userId, "S0007"), ErrSessionNotOpen)
	assert.Equal(t, 1, h.registry.Count())

	h.svc.Shutdown()
	assert.Equal(t, 0, h.registry.Count())
	_, err = h.svc.Get(ctx, h.userId, h.token, "S0008")
	assert.ErrorIs(t, err, ErrSessionNotOpen)
}

func TestSessionTestDataMode(t *testing.T) {
	h := newSessionHarness(t)
	ctx := context.Background()

	res, err := h.svc.Open(ctx, h.userId, h.token, "ANYKEY", &dto.OpenSessionRequest{UseTestData: true})
	require.NoError(t, err)
	assert.Equal(t, "voting", res.State)
	assert.True(t, res.TestData)
	require.NotEmpty(t, res.ConceptImages)

	item, err := h.store.GetWorkItem(ctx, "ANYKEY")
	require.NoError(t, err)
	assert.Nil(t, item, "test data never touches the store")
}

func TestConcurrentOpenSharesController(t *testing.T) {
	h := newSessionHarness(t)
	ctx := context.Background()
	concepts := seedItem(t, h.store, "S0009", 2)

	const n = 6
	errs := make(chan error, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := h.svc.Open(ctx, h.userId, h.token, "S0009", nil)
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, h.registry.Count())
	require.Eventually(t, func() bool {
		res, err := h.svc.Get(ctx, h.userId, h.token, "S0009")
		return err == nil && res.State == "voting"
	}, 2*time.Second, 10*time.Millisecond)

	res, err := h.svc.Vote(ctx, h.userId, h.token, "S0009", &dto.VoteRequest{ConceptId: concepts[0].Id, Kind: "like"})
	require.NoError(t, err)
	assert.Equal(t, "like", res.VotedImages[concepts[0].Id])
}
