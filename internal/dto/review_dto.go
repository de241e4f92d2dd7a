package dto

import (
	"github.com/google/uuid"
)

type OpenSessionRequest struct {
	UseTestData bool `json:"use_test_data"`
}

type VoteRequest struct {
	ConceptId uuid.UUID `json:"concept_id" validate:"required"`
	Kind      string    `json:"kind" validate:"required,oneof=like dislike love"`
}

type EditPromptRequest struct {
	Prompt string `json:"prompt" validate:"required,max=4000"`
}

type ArtifactResponse struct {
	Id  string `json:"id"`
	URL string `json:"url"`
}

type ConceptImageResponse struct {
	Id       uuid.UUID `json:"id"`
	ImageURL string    `json:"image_url"`
	Up       int       `json:"up"`
	Down     int       `json:"down"`
	Hearts   int       `json:"hearts"`
}

type SessionResponse struct {
	WorkItemKey   string                 `json:"work_item_key"`
	State         string                 `json:"state"`
	VotedImages   map[uuid.UUID]string   `json:"voted_images"`
	OriginalImage *ArtifactResponse      `json:"original_image,omitempty"`
	ConceptImages []ConceptImageResponse `json:"concept_images"`
	PromptText    string                 `json:"prompt_text"`
	Error         string                 `json:"error,omitempty"`
	ErrorCode     string                 `json:"error_code,omitempty"`
	Winner        *uuid.UUID             `json:"winner,omitempty"`
	Countdown     int                    `json:"countdown,omitempty"`
	TestData      bool                   `json:"test_data,omitempty"`
}

type SessionCompletedResponse struct {
	WorkItemKey string `json:"work_item_key"`
}

type ProgressResponse struct {
	Completed int64 `json:"completed"`
}
