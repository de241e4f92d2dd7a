package integration

import (
	"context"
	"encoding/json"
	"log"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"concept-review-be/internal/bootstrap"
	"concept-review-be/internal/config"
	"concept-review-be/internal/dto"
	"concept-review-be/internal/entity"
	"concept-review-be/internal/server"
	"concept-review-be/pkg/database"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool                `json:"success"`
	Data    dto.SessionResponse `json:"data"`
}

func TestReviewFlowAgainstPostgres(t *testing.T) {
	if err := godotenv.Load("../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("REALTIME_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "integration-secret")
	t.Setenv("REVIEW_COMPLETION_DELAY", "100ms")
	t.Setenv("REVIEW_COUNTDOWN_TICK", "50ms")
	t.Setenv("LOG_FILE_PATH", t.TempDir()+"/app.log")
	t.Setenv("SESSION_LOG_FILE_PATH", t.TempDir()+"/session.log")
	cfg := config.Load()

	db, err := database.Open(cfg.Database.Driver, cfg.Database.Connection, database.PoolConfig{MaxOpenConns: 5, MaxIdleConns: 2})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	container := bootstrap.NewContainer(db, cfg)
	defer container.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go container.WebSocketHub.Run(ctx)
	require.NoError(t, container.ThresholdTrigger.Start(ctx))

	app := server.New(cfg, container).GetApp()

	key := "IT-" + strings.ToUpper(uuid.NewString()[:8])
	require.NoError(t, container.ReviewStore.CreateWorkItem(ctx, &entity.WorkItem{
		Key:              key,
		Title:            "Integration bottle",
		OriginalImageURL: "/static/original.png",
		Prompt:           "studio shot",
		Status:           entity.ProcessingCompleted,
		Ready:            true,
	}))
	concepts, err := container.ReviewStore.ReplaceConcepts(ctx, key, []string{"/static/a.png", "/static/b.png", "/static/c.png"})
	require.NoError(t, err)

	userId := uuid.New()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userId.String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("integration-secret"))
	require.NoError(t, err)

	call := func(method, path, body string) (int, envelope) {
		req := httptest.NewRequest(method, path, nil)
		if body != "" {
			req = httptest.NewRequest(method, path, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req, 5000)
		require.NoError(t, err)
		defer resp.Body.Close()
		var out envelope
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return resp.StatusCode, out
	}

	status, out := call("POST", "/api/review/v1/sessions/"+key, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "voting", out.Data.State)
	assert.Len(t, out.Data.ConceptImages, 3)

	status, out = call("POST", "/api/review/v1/sessions/"+key+"/votes", `{"concept_id":"`+concepts[0].Id.String()+`","kind":"love"}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "love", out.Data.VotedImages[concepts[0].Id])

	require.Eventually(t, func() bool {
		_, out := call("GET", "/api/review/v1/sessions/"+key, "")
		return out.Data.State == "finished"
	}, 5*time.Second, 50*time.Millisecond)

	item, err := container.ReviewStore.GetWorkItem(ctx, key)
	require.NoError(t, err)
	require.True(t, item.HasWinner())
	assert.Equal(t, concepts[0].Id, *item.WinningConceptId)

	status, _ = call("DELETE", "/api/review/v1/sessions/"+key, "")
	assert.Equal(t, fiber.StatusOK, status)

	// The love vote recorded one completion; voting on every concept records another.
	second := key + "-2"
	require.NoError(t, container.ReviewStore.CreateWorkItem(ctx, &entity.WorkItem{
		Key:    second,
		Title:  "Integration mug",
		Status: entity.ProcessingCompleted,
		Ready:  true,
	}))
	others, err := container.ReviewStore.ReplaceConcepts(ctx, second, []string{"/static/d.png", "/static/e.png"})
	require.NoError(t, err)

	status, _ = call("POST", "/api/review/v1/sessions/"+second, "")
	require.Equal(t, fiber.StatusOK, status)
	for _, c := range others {
		status, _ = call("POST", "/api/review/v1/sessions/"+second+"/votes", `{"concept_id":"`+c.Id.String()+`","kind":"dislike"}`)
		require.Equal(t, fiber.StatusOK, status)
	}

	require.Eventually(t, func() bool {
		n, err := container.ReviewStore.CountCompletions(ctx, userId)
		return err == nil && n == 2
	}, 5*time.Second, 50*time.Millisecond)
}
