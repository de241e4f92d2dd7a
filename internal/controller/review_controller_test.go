package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"concept-review-be/internal/dto"
	"concept-review-be/internal/pkg/serverutils"
	"concept-review-be/internal/service"
	"concept-review-be/pkg/review"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessionService struct {
	lastUser  uuid.UUID
	lastToken string
	lastKey   string
	lastVote  *dto.VoteRequest
	lastOpen  *dto.OpenSessionRequest
	prompt    string
	closed    bool
	voteErr   error
}

func (f *fakeSessionService) snapshot(key string) *dto.SessionResponse {
	return &dto.SessionResponse{WorkItemKey: key, State: "voting", VotedImages: map[uuid.UUID]string{}}
}

func (f *fakeSessionService) record(userId uuid.UUID, token, key string) {
	f.lastUser, f.lastToken, f.lastKey = userId, token, key
}

func (f *fakeSessionService) Open(ctx context.Context, userId uuid.UUID, token, key string, req *dto.OpenSessionRequest) (*dto.SessionResponse, error) {
	f.record(userId, token, key)
	f.lastOpen = req
	return f.snapshot(key), nil
}

func (f *fakeSessionService) Get(ctx context.Context, userId uuid.UUID, token, key string) (*dto.SessionResponse, error) {
	f.record(userId, token, key)
	if key == "missing" {
		return nil, service.ErrSessionNotOpen
	}
	return f.snapshot(key), nil
}

func (f *fakeSessionService) Vote(ctx context.Context, userId uuid.UUID, token, key string, req *dto.VoteRequest) (*dto.SessionResponse, error) {
	f.record(userId, token, key)
	f.lastVote = req
	if f.voteErr != nil {
		return nil, f.voteErr
	}
	res := f.snapshot(key)
	res.VotedImages[req.ConceptId] = req.Kind
	return res, nil
}

func (f *fakeSessionService) Retry(ctx context.Context, userId uuid.UUID, token, key string) (*dto.SessionResponse, error) {
	f.record(userId, token, key)
	return f.snapshot(key), nil
}

func (f *fakeSessionService) EditPrompt(ctx context.Context, userId uuid.UUID, token, key string, req *dto.EditPromptRequest) (*dto.SessionResponse, error) {
	f.record(userId, token, key)
	f.prompt = req.Prompt
	res := f.snapshot(key)
	res.PromptText = req.Prompt
	return res, nil
}

func (f *fakeSessionService) Close(ctx context.Context, userId uuid.UUID, key string) error {
	f.record(userId, "", key)
	f.closed = true
	return nil
}

func (f *fakeSessionService) Progress(ctx context.Context, userId uuid.UUID) (*dto.ProgressResponse, error) {
	f.record(userId, "", "")
	return &dto.ProgressResponse{Completed: 3}, nil
}

func (f *fakeSessionService) Shutdown() {}

type harness struct {
	app    *fiber.App
	svc    *fakeSessionService
	userId uuid.UUID
	token  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("JWT_SECRET", "controller-secret")
	userId := uuid.New()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userId.String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("controller-secret"))
	require.NoError(t, err)

	svc := &fakeSessionService{}
	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	NewReviewController(svc).RegisterRoutes(app.Group("/api"))
	return &harness{app: app, svc: svc, userId: userId, token: signed}
}

type body struct {
	Success   bool                `json:"success"`
	ErrorCode string              `json:"error_code"`
	Data      dto.SessionResponse `json:"data"`
}

func (h *harness) do(t *testing.T, method, path, payload string) (int, body) {
	t.Helper()
	var reader io.Reader
	if payload != "" {
		reader = strings.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+h.token)
	if payload != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := h.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out body
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestOpenPassesCallerAndFlags(t *testing.T) {
	h := newHarness(t)

	status, out := h.do(t, "POST", "/api/review/v1/sessions/K1", `{"use_test_data":true}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, out.Success)
	assert.Equal(t, "K1", out.Data.WorkItemKey)
	assert.Equal(t, h.userId, h.svc.lastUser)
	assert.Equal(t, h.token, h.svc.lastToken)
	require.NotNil(t, h.svc.lastOpen)
	assert.True(t, h.svc.lastOpen.UseTestData)

	status, _ = h.do(t, "POST", "/api/review/v1/sessions/K2", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.False(t, h.svc.lastOpen.UseTestData)
}

func TestVoteValidatesBody(t *testing.T) {
	h := newHarness(t)
	conceptId := uuid.New()

	status, out := h.do(t, "POST", "/api/review/v1/sessions/K1/votes", `{"concept_id":"`+conceptId.String()+`","kind":"love"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "love", out.Data.VotedImages[conceptId])

	h.svc.lastVote = nil
	status, out = h.do(t, "POST", "/api/review/v1/sessions/K1/votes", `{"concept_id":"`+conceptId.String()+`","kind":"meh"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "validation_failed", out.ErrorCode)
	assert.Nil(t, h.svc.lastVote)

	status, _ = h.do(t, "POST", "/api/review/v1/sessions/K1/votes", `{not json`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestVoteMapsSessionErrors(t *testing.T) {
	h := newHarness(t)
	h.svc.voteErr = review.NewError(review.ErrRegenerating, "vote", nil)

	status, out := h.do(t, "POST", "/api/review/v1/sessions/K1/votes", `{"concept_id":"`+uuid.NewString()+`","kind":"like"}`)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "regenerating", out.ErrorCode)
}

func TestShowUnknownSessionIsNotFound(t *testing.T) {
	h := newHarness(t)

	status, out := h.do(t, "GET", "/api/review/v1/sessions/missing", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.False(t, out.Success)
}

func TestEditPromptRetryCloseAndProgress(t *testing.T) {
	h := newHarness(t)

	status, out := h.do(t, "PUT", "/api/review/v1/sessions/K1/prompt", `{"prompt":"brighter"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "brighter", out.Data.PromptText)

	status, _ = h.do(t, "PUT", "/api/review/v1/sessions/K1/prompt", `{"prompt":""}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = h.do(t, "POST", "/api/review/v1/sessions/K1/retry", "")
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = h.do(t, "DELETE", "/api/review/v1/sessions/K1", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, h.svc.closed)

	req := httptest.NewRequest("GET", "/api/review/v1/progress", nil)
	req.Header.Set("Authorization", "Bearer "+h.token)
	resp, err := h.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var progress struct {
		Data dto.ProgressResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&progress))
	assert.Equal(t, int64(3), progress.Data.Completed)
}

func TestRoutesRequireToken(t *testing.T) {
	h := newHarness(t)
	h.token = "bogus"

	status, _ := h.do(t, "GET", "/api/review/v1/sessions/K1", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}
