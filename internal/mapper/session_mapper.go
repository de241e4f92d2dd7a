package mapper

import (
	"concept-review-be/internal/dto"
	"concept-review-be/pkg/review/session"

	"github.com/google/uuid"
)

type SessionMapper struct{}

func NewSessionMapper() *SessionMapper {
	return &SessionMapper{}
}

func (m *SessionMapper) ToResponse(s session.Snapshot) *dto.SessionResponse {
	res := &dto.SessionResponse{
		WorkItemKey:   s.WorkItemKey,
		State:         string(s.State),
		VotedImages:   make(map[uuid.UUID]string, len(s.VotedImages)),
		ConceptImages: make([]dto.ConceptImageResponse, 0, len(s.ConceptImages)),
		PromptText:    s.PromptText,
		Error:         s.Error,
		ErrorCode:     s.ErrorCode,
		Winner:        s.Winner,
		Countdown:     s.Countdown,
		TestData:      s.TestData,
	}
	for id, kind := range s.VotedImages {
		res.VotedImages[id] = string(kind)
	}
	if s.OriginalImage != nil {
		res.OriginalImage = &dto.ArtifactResponse{
			Id:  s.OriginalImage.Id,
			URL: s.OriginalImage.URL,
		}
	}
	for _, c := range s.ConceptImages {
		res.ConceptImages = append(res.ConceptImages, dto.ConceptImageResponse{
			Id:       c.Id,
			ImageURL: c.ImageURL,
			Up:       c.Up,
			Down:     c.Down,
			Hearts:   c.Hearts,
		})
	}
	return res
}
