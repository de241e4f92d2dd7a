package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"concept-review-be/internal/dto"
	"concept-review-be/internal/entity"
	"concept-review-be/internal/mapper"
	"concept-review-be/internal/pkg/logger"
	"concept-review-be/internal/pkg/serverutils"
	"concept-review-be/internal/repository/memory"
	"concept-review-be/pkg/review"
	"concept-review-be/pkg/review/session"

	"github.com/google/uuid"
)

var ErrSessionNotOpen = fmt.Errorf("review session is not open: %w", serverutils.ErrNotFound)

const (
	MessageSnapshot  = "snapshot"
	MessageCompleted = "completed"
)

// SessionNotifier pushes session updates to the reviewer's connected clients.
type SessionNotifier interface {
	SendToUser(userId uuid.UUID, msgType string, data interface{})
}

type ISessionService interface {
	Open(ctx context.Context, userId uuid.UUID, token, key string, req *dto.OpenSessionRequest) (*dto.SessionResponse, error)
	Get(ctx context.Context, userId uuid.UUID, token, key string) (*dto.SessionResponse, error)
	Vote(ctx context.Context, userId uuid.UUID, token, key string, req *dto.VoteRequest) (*dto.SessionResponse, error)
	Retry(ctx context.Context, userId uuid.UUID, token, key string) (*dto.SessionResponse, error)
	EditPrompt(ctx context.Context, userId uuid.UUID, token, key string, req *dto.EditPromptRequest) (*dto.SessionResponse, error)
	Close(ctx context.Context, userId uuid.UUID, key string) error
	Progress(ctx context.Context, userId uuid.UUID) (*dto.ProgressResponse, error)
	Shutdown()
}

type sessionService struct {
	store       IReviewStoreService
	changes     review.ChangeSource
	registry    *memory.SessionRepository
	notifier    SessionNotifier
	cfg         session.Config
	useTestData bool
	mapper      *mapper.SessionMapper
	logger      logger.ILogger
}

func NewSessionService(
	store IReviewStoreService,
	changes review.ChangeSource,
	registry *memory.SessionRepository,
	notifier SessionNotifier,
	cfg session.Config,
	useTestData bool,
	log logger.ILogger,
) ISessionService {
	return &sessionService{
		store:       store,
		changes:     changes,
		registry:    registry,
		notifier:    notifier,
		cfg:         cfg,
		useTestData: useTestData,
		mapper:      mapper.NewSessionMapper(),
		logger:      log,
	}
}

func (s *sessionService) newEntry(userId uuid.UUID, token string) *memory.SessionEntry {
	identity := serverutils.NewTokenIdentity(token)
	ctrl := session.New(session.Deps{
		Store:    s.store,
		Identity: identity,
		Changes:  s.changes,
		Logger:   s.logger,
	}, s.cfg, session.Callbacks{
		OnChange: func(snap session.Snapshot) {
			if s.notifier != nil {
				s.notifier.SendToUser(userId, MessageSnapshot, s.mapper.ToResponse(snap))
			}
		},
		OnCompleted: func(key string) {
			s.logger.Info("SessionService", "Review completed", map[string]interface{}{"user_id": userId, "item_key": key})
			if s.notifier != nil {
				s.notifier.SendToUser(userId, MessageCompleted, &dto.SessionCompletedResponse{WorkItemKey: key})
			}
		},
	})
	return &memory.SessionEntry{UserId: userId, Controller: ctrl, Tokens: identity}
}

// Open mounts key for the user, reusing the user's controller for that key when one is live.
func (s *sessionService) Open(ctx context.Context, userId uuid.UUID, token, key string, req *dto.OpenSessionRequest) (*dto.SessionResponse, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, review.NewError(review.ErrInvalidKey, "open", nil)
	}

	entry, ok := s.registry.Get(userId, key)
	if ok {
		entry.Tokens.SetToken(token)
	} else {
		fresh := s.newEntry(userId, token)
		var added bool
		if entry, added = s.registry.Add(key, fresh); !added {
			// A concurrent open won the slot.
			fresh.Controller.Close()
			entry.Tokens.SetToken(token)
		}
	}

	useTestData := s.useTestData || (req != nil && req.UseTestData)
	err := entry.Controller.Mount(ctx, key, useTestData)
	return s.respond(entry.Controller, err)
}

func (s *sessionService) Get(ctx context.Context, userId uuid.UUID, token, key string) (*dto.SessionResponse, error) {
	entry, err := s.lookup(userId, token, key)
	if err != nil {
		return nil, err
	}
	return s.mapper.ToResponse(entry.Controller.Snapshot()), nil
}

func (s *sessionService) Vote(ctx context.Context, userId uuid.UUID, token, key string, req *dto.VoteRequest) (*dto.SessionResponse, error) {
	entry, err := s.lookup(userId, token, key)
	if err != nil {
		return nil, err
	}
	kind, err := entity.ParseVoteKind(req.Kind)
	if err != nil {
		return nil, review.NewError(review.ErrInvalidVoteKind, "vote", err)
	}
	if err := entry.Controller.SetVote(ctx, req.ConceptId, kind); err != nil {
		return nil, err
	}
	return s.mapper.ToResponse(entry.Controller.Snapshot()), nil
}

func (s *sessionService) Retry(ctx context.Context, userId uuid.UUID, token, key string) (*dto.SessionResponse, error) {
	entry, err := s.lookup(userId, token, key)
	if err != nil {
		return nil, err
	}
	err = entry.Controller.Retry(ctx)
	return s.respond(entry.Controller, err)
}

func (s *sessionService) EditPrompt(ctx context.Context, userId uuid.UUID, token, key string, req *dto.EditPromptRequest) (*dto.SessionResponse, error) {
	entry, err := s.lookup(userId, token, key)
	if err != nil {
		return nil, err
	}
	if err := entry.Controller.EditPrompt(ctx, req.Prompt); err != nil {
		return nil, err
	}
	return s.mapper.ToResponse(entry.Controller.Snapshot()), nil
}

func (s *sessionService) Close(ctx context.Context, userId uuid.UUID, key string) error {
	if _, ok := s.registry.Get(userId, key); !ok {
		return ErrSessionNotOpen
	}
	s.registry.Delete(userId, key)
	s.logger.Info("SessionService", "Session closed", map[string]interface{}{"user_id": userId, "item_key": key})
	return nil
}

func (s *sessionService) Progress(ctx context.Context, userId uuid.UUID) (*dto.ProgressResponse, error) {
	count, err := s.store.CountCompletions(ctx, userId)
	if err != nil {
		return nil, err
	}
	return &dto.ProgressResponse{Completed: count}, nil
}

// Shutdown closes every live session.
func (s *sessionService) Shutdown() {
	n := s.registry.Count()
	s.registry.Flush()
	s.logger.Info("SessionService", "Closed live sessions", map[string]interface{}{"count": n})
}

func (s *sessionService) lookup(userId uuid.UUID, token, key string) (*memory.SessionEntry, error) {
	entry, ok := s.registry.Get(userId, strings.TrimSpace(key))
	if !ok {
		return nil, ErrSessionNotOpen
	}
	entry.Tokens.SetToken(token)
	return entry, nil
}

// respond reports load failures through the snapshot: once the session sits
// in Error the caller renders it and offers a retry.
func (s *sessionService) respond(ctrl *session.Controller, err error) (*dto.SessionResponse, error) {
	snap := ctrl.Snapshot()
	if err != nil && !(snap.State == session.StateError && review.KindOf(err) != nil) {
		if errors.Is(err, session.ErrClosed) {
			return nil, ErrSessionNotOpen
		}
		return nil, err
	}
	return s.mapper.ToResponse(snap), nil
}
