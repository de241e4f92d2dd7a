// Package events defines the row-change events carried by the realtime bus.
//
// Each table has its own change type. Decoding is strict: an unknown table,
// an unknown event kind or a row with unexpected fields is rejected instead
// of yielding zero values.
package events

import (
	"time"

	"concept-review-be/internal/entity"

	"github.com/google/uuid"
)

type Table string

const (
	TableWorkItems   Table = "work_items"
	TableConcepts    Table = "concepts"
	TableVotes       Table = "votes"
	TableCompletions Table = "completion_records"
)

func (t Table) Valid() bool {
	switch t {
	case TableWorkItems, TableConcepts, TableVotes, TableCompletions:
		return true
	}
	return false
}

type Kind string

const (
	Insert Kind = "INSERT"
	Update Kind = "UPDATE"
	Delete Kind = "DELETE"
)

func (k Kind) Valid() bool {
	switch k {
	case Insert, Update, Delete:
		return true
	}
	return false
}

// Change is implemented only by the four per-table change types in this package.
type Change interface {
	Table() Table
	Kind() Kind
	// Field returns the string form of a column on the row the change is about
	// (new row, or old row for deletes). Used for subscription filters.
	Field(column string) (string, bool)
	OccurredAt() time.Time
	isChange()
}

type WorkItemRow struct {
	Key              string     `json:"item_key"`
	Title            string     `json:"title"`
	OriginalImageURL string     `json:"original_image_url"`
	Prompt           string     `json:"prompt"`
	Regenerating     bool       `json:"regenerating"`
	Status           string     `json:"status"`
	Ready            bool       `json:"ready"`
	WinningConceptId *uuid.UUID `json:"winning_concept_id"`
}

type ConceptRow struct {
	Id              uuid.UUID `json:"id"`
	WorkItemKey     string    `json:"work_item_key"`
	ImageURL        string    `json:"image_url"`
	Up              int       `json:"up"`
	Down            int       `json:"down"`
	Hearts          int       `json:"hearts"`
	Status          string    `json:"status"`
	RepairRequested bool      `json:"repair_requested"`
}

type VoteRow struct {
	UserId      uuid.UUID `json:"user_id"`
	ConceptId   uuid.UUID `json:"concept_id"`
	WorkItemKey string    `json:"work_item_key"`
	Kind        string    `json:"kind"`
}

type CompletionRow struct {
	UserId      uuid.UUID `json:"user_id"`
	WorkItemKey string    `json:"work_item_key"`
	CompletedAt time.Time `json:"completed_at"`
}

type WorkItemChange struct {
	Type Kind
	Old  *WorkItemRow
	New  *WorkItemRow
	At   time.Time
}

type ConceptChange struct {
	Type Kind
	Old  *ConceptRow
	New  *ConceptRow
	At   time.Time
}

type VoteChange struct {
	Type Kind
	Old  *VoteRow
	New  *VoteRow
	At   time.Time
}

type CompletionChange struct {
	Type Kind
	Old  *CompletionRow
	New  *CompletionRow
	At   time.Time
}

func (c WorkItemChange) Table() Table { return TableWorkItems }
func (c WorkItemChange) Kind() Kind { return c.Type }
func (c WorkItemChange) OccurredAt() time.Time { return c.At }
func (WorkItemChange) isChange() {}

func (c WorkItemChange) Field(column string) (string, bool) {
	row := c.New
	if row == nil {
		row = c.Old
	}
	if row == nil {
		return "", false
	}
	switch column {
	case "item_key":
		return row.Key, true
	case "status":
		return row.Status, true
	}
	return "", false
}

func (c ConceptChange) Table() Table { return TableConcepts }
func (c ConceptChange) Kind() Kind { return c.Type }
func (c ConceptChange) OccurredAt() time.Time { return c.At }
func (ConceptChange) isChange() {}

func (c ConceptChange) Field(column string) (string, bool) {
	row := c.New
	if row == nil {
		row = c.Old
	}
	if row == nil {
		return "", false
	}
	switch column {
	case "id":
		return row.Id.String(), true
	case "work_item_key":
		return row.WorkItemKey, true
	case "status":
		return row.Status, true
	}
	return "", false
}

func (c VoteChange) Table() Table { return TableVotes }
func (c VoteChange) Kind() Kind { return c.Type }
func (c VoteChange) OccurredAt() time.Time { return c.At }
func (VoteChange) isChange() {}

func (c VoteChange) Field(column string) (string, bool) {
	row := c.New
	if row == nil {
		row = c.Old
	}
	if row == nil {
		return "", false
	}
	switch column {
	case "user_id":
		return row.UserId.String(), true
	case "concept_id":
		return row.ConceptId.String(), true
	case "work_item_key":
		return row.WorkItemKey, true
	case "kind":
		return row.Kind, true
	}
	return "", false
}

func (c CompletionChange) Table() Table { return TableCompletions }
func (c CompletionChange) Kind() Kind { return c.Type }
func (c CompletionChange) OccurredAt() time.Time { return c.At }
func (CompletionChange) isChange() {}

func (c CompletionChange) Field(column string) (string, bool) {
	row := c.New
	if row == nil {
		row = c.Old
	}
	if row == nil {
		return "", false
	}
	switch column {
	case "user_id":
		return row.UserId.String(), true
	case "work_item_key":
		return row.WorkItemKey, true
	}
	return "", false
}

func WorkItemRowFrom(w *entity.WorkItem) *WorkItemRow {
	if w == nil {
		return nil
	}
	return &WorkItemRow{
		Key:              w.Key,
		Title:            w.Title,
		OriginalImageURL: w.OriginalImageURL,
		Prompt:           w.Prompt,
		Regenerating:     w.Regenerating,
		Status:           string(w.Status),
		Ready:            w.Ready,
		WinningConceptId: w.WinningConceptId,
	}
}

func ConceptRowFrom(c *entity.Concept) *ConceptRow {
	if c == nil {
		return nil
	}
	return &ConceptRow{
		Id:              c.Id,
		WorkItemKey:     c.WorkItemKey,
		ImageURL:        c.ImageURL,
		Up:              c.Up,
		Down:            c.Down,
		Hearts:          c.Hearts,
		Status:          string(c.Status),
		RepairRequested: c.RepairRequested,
	}
}

func VoteRowFrom(v *entity.Vote) *VoteRow {
	if v == nil {
		return nil
	}
	return &VoteRow{
		UserId:      v.UserId,
		ConceptId:   v.ConceptId,
		WorkItemKey: v.WorkItemKey,
		Kind:        string(v.Kind),
	}
}

func CompletionRowFrom(r *entity.CompletionRecord) *CompletionRow {
	if r == nil {
		return nil
	}
	return &CompletionRow{
		UserId:      r.UserId,
		WorkItemKey: r.WorkItemKey,
		CompletedAt: r.CompletedAt,
	}
}
