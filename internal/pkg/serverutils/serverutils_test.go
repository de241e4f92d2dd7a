package serverutils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"concept-review-be/pkg/review"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "serverutils-secret"

func sign(t *testing.T, userId string, ttl time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userId,
		"exp":     time.Now().Add(ttl).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type envelope struct {
	Success   bool              `json:"success"`
	Code      int               `json:"code"`
	Message   string            `json:"message"`
	ErrorCode string            `json:"error_code"`
	Data      map[string]string `json:"data"`
}

func call(t *testing.T, app *fiber.App, path string, header string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body envelope
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fiber.NewError(fiber.StatusTeapot, "teapot"), fiber.StatusTeapot},
		{&ValidationError{Fields: map[string]string{"Kind": "oneof"}}, fiber.StatusBadRequest},
		{fmt.Errorf("session: %w", ErrNotFound), fiber.StatusNotFound},
		{review.NewError(review.ErrAuthRequired, "op", nil), fiber.StatusUnauthorized},
		{review.NewError(review.ErrRegenerating, "op", nil), fiber.StatusConflict},
		{review.NewError(review.ErrPersistFailed, "op", errors.New("db down")), fiber.StatusBadGateway},
		{review.NewError(review.ErrUnknownConcept, "op", nil), fiber.StatusBadRequest},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusOf(tc.err), tc.err.Error())
	}
}

func TestErrorHandlerEnvelope(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/kind", func(ctx *fiber.Ctx) error {
		return review.NewError(review.ErrNotVoting, "vote", nil)
	})
	app.Get("/invalid", func(ctx *fiber.Ctx) error {
		return ValidateRequest(&struct {
			Kind string `validate:"required,oneof=like dislike love"`
		}{Kind: "meh"})
	})
	app.Get("/panicky", func(ctx *fiber.Ctx) error {
		return errors.New("connection string leaked")
	})

	status, body := call(t, app, "/kind", "")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.False(t, body.Success)
	assert.Equal(t, "not_voting", body.ErrorCode)

	status, body = call(t, app, "/invalid", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "validation_failed", body.ErrorCode)
	assert.Equal(t, "oneof", body.Data["Kind"])

	status, body = call(t, app, "/panicky", "")
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", body.Message)
	assert.Empty(t, body.ErrorCode)
}

func TestValidateRequestPassesValidInput(t *testing.T) {
	req := &struct {
		Prompt string `validate:"required,max=10"`
	}{Prompt: "ok"}
	assert.NoError(t, ValidateRequest(req))
}

func TestJwtMiddleware(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	userId := uuid.New()

	app := fiber.New()
	app.Get("/me", JwtMiddleware, func(ctx *fiber.Ctx) error {
		return ctx.JSON(SuccessResponse("ok", map[string]string{
			"user_id": ctx.Locals("user_id").(string),
		}))
	})

	status, _ := call(t, app, "/me", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = call(t, app, "/me", "Bearer not-a-jwt")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = call(t, app, "/me", "Bearer "+sign(t, userId.String(), -time.Minute))
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body := call(t, app, "/me", "Bearer "+sign(t, userId.String(), time.Hour))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, userId.String(), body.Data["user_id"])

	status, body = call(t, app, "/me?token="+sign(t, userId.String(), time.Hour), "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, userId.String(), body.Data["user_id"])
}

func TestTokenIdentity(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	ctx := context.Background()
	userId := uuid.New()

	id := NewTokenIdentity(sign(t, userId.String(), -time.Minute))
	_, err := id.CurrentUser(ctx)
	assert.ErrorIs(t, err, review.ErrAuthRequired)
	assert.ErrorIs(t, id.Refresh(ctx), review.ErrAuthRequired)

	fresh := sign(t, userId.String(), time.Hour)
	id.SetToken(fresh)
	id.SetToken("")

	got, err := id.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, userId, got)
	assert.NoError(t, id.Refresh(ctx))

	sess, err := id.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, userId, sess.UserId)
	assert.Equal(t, fresh, sess.Token)
}

func TestParseUserTokenRejectsMissingClaim(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = ParseUserToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
