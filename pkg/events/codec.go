package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownTable = errors.New("unknown change table")
	ErrUnknownKind  = errors.New("unknown change kind")
	ErrMalformed    = errors.New("malformed change payload")
)

// Envelope is the wire shape of a change on every bus transport.
type Envelope struct {
	Table           Table           `json:"table"`
	Type            Kind            `json:"type"`
	Old             json.RawMessage `json:"old"`
	New             json.RawMessage `json:"new"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
}

func Encode(c Change) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil change", ErrMalformed)
	}
	var oldRow, newRow interface{}
	switch v := c.(type) {
	case WorkItemChange:
		oldRow, newRow = v.Old, v.New
	case ConceptChange:
		oldRow, newRow = v.Old, v.New
	case VoteChange:
		oldRow, newRow = v.Old, v.New
	case CompletionChange:
		oldRow, newRow = v.Old, v.New
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownTable, c)
	}

	oldRaw, err := json.Marshal(oldRow)
	if err != nil {
		return nil, err
	}
	newRaw, err := json.Marshal(newRow)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Table:           c.Table(),
		Type:            c.Kind(),
		Old:             oldRaw,
		New:             newRaw,
		CommitTimestamp: c.OccurredAt(),
	})
}

func Decode(data []byte) (Change, error) {
	var env Envelope
	if err := strictUnmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !env.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}

	switch env.Table {
	case TableWorkItems:
		c := WorkItemChange{Type: env.Type, At: env.CommitTimestamp}
		if err := decodeRows(env, &c.Old, &c.New); err != nil {
			return nil, err
		}
		return c, nil
	case TableConcepts:
		c := ConceptChange{Type: env.Type, At: env.CommitTimestamp}
		if err := decodeRows(env, &c.Old, &c.New); err != nil {
			return nil, err
		}
		return c, nil
	case TableVotes:
		c := VoteChange{Type: env.Type, At: env.CommitTimestamp}
		if err := decodeRows(env, &c.Old, &c.New); err != nil {
			return nil, err
		}
		return c, nil
	case TableCompletions:
		c := CompletionChange{Type: env.Type, At: env.CommitTimestamp}
		if err := decodeRows(env, &c.Old, &c.New); err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTable, env.Table)
}

// decodeRows fills old/new and enforces which side each kind must carry.
func decodeRows[T any](env Envelope, oldRow, newRow **T) error {
	var err error
	if *oldRow, err = decodeRow[T](env.Old); err != nil {
		return fmt.Errorf("%w: %s old row: %v", ErrMalformed, env.Table, err)
	}
	if *newRow, err = decodeRow[T](env.New); err != nil {
		return fmt.Errorf("%w: %s new row: %v", ErrMalformed, env.Table, err)
	}
	switch env.Type {
	case Insert, Update:
		if *newRow == nil {
			return fmt.Errorf("%w: %s %s without new row", ErrMalformed, env.Table, env.Type)
		}
	case Delete:
		if *oldRow == nil {
			return fmt.Errorf("%w: %s DELETE without old row", ErrMalformed, env.Table)
		}
	}
	return nil
}

func decodeRow[T any](raw json.RawMessage) (*T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var row T
	if err := strictUnmarshal(trimmed, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func strictUnmarshal(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
