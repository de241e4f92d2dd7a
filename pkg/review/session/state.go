package session

import (
	"concept-review-be/internal/entity"
	"concept-review-be/pkg/review/fetcher"

	"github.com/google/uuid"
)

type State string

const (
	StateLoading      State = "loading"
	StateError        State = "error"
	StateVoting       State = "voting"
	StateRegenerating State = "regenerating"
	StateFinished     State = "finished"
)

// ConceptImage is one votable concept as shown to the reviewer.
type ConceptImage struct {
	Id       uuid.UUID `json:"id"`
	ImageURL string    `json:"image_url"`
	Up       int       `json:"up"`
	Down     int       `json:"down"`
	Hearts   int       `json:"hearts"`
}

// Snapshot is what the presentation layer renders.
type Snapshot struct {
	WorkItemKey   string             `json:"work_item_key"`
	State         State              `json:"state"`
	VotedImages   entity.VotedImages `json:"voted_images"`
	OriginalImage *fetcher.Artifact  `json:"original_image,omitempty"`
	ConceptImages []ConceptImage     `json:"concept_images"`
	PromptText    string             `json:"prompt_text"`
	Error         string             `json:"error,omitempty"`
	ErrorCode     string             `json:"error_code,omitempty"`
	Winner        *uuid.UUID         `json:"winner,omitempty"`
	// Countdown is the number of ticks left before the completion callback.
	Countdown int  `json:"countdown,omitempty"`
	TestData  bool `json:"test_data,omitempty"`
}
