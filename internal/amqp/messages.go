package amqp

import (
	"encoding/json"
	"time"
)

// Event is the lightweight message published after a ledger mutation
// commits. Consumers fetch whatever state they need from the database;
// the event only says what changed and where.
type Event struct {
	Kind       string    `json:"kind"`
	ProjectID  int64     `json:"project_id"`
	EntityID   int64     `json:"entity_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewEvent(kind string, projectID, entityID int64) *Event {
	return &Event{
		Kind:       kind,
		ProjectID:  projectID,
		EntityID:   entityID,
		OccurredAt: time.Now(),
	}
}

func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
