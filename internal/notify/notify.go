// Package notify carries row-change events from the service layer to
// websocket subscribers, either in-process or across instances via Redis.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tableside/api/internal/enum"
)

// Change is one row-change event. New carries the full row image for
// INSERT and UPDATE; Old carries at least the primary key for DELETE.
type Change struct {
	Type  string          `json:"type"`
	Table string          `json:"table"`
	New   json.RawMessage `json:"new,omitempty"`
	Old   json.RawMessage `json:"old,omitempty"`
}

// Broker publishes changes to subscribers of Change.Table.
type Broker interface {
	Publish(ctx context.Context, c Change) error
}

// Sink receives encoded changes for a topic. Satisfied by *ws.Hub.
type Sink interface {
	Broadcast(topic string, message []byte)
}

// Insert builds an INSERT change with row as the new image.
func Insert(table string, row any) (Change, error) {
	return build(enum.ChangeInsert, table, row, nil)
}

// Update builds an UPDATE change with row as the new image.
func Update(table string, row any) (Change, error) {
	return build(enum.ChangeUpdate, table, row, nil)
}

// Delete builds a DELETE change; old should at least carry the row's id.
func Delete(table string, old any) (Change, error) {
	return build(enum.ChangeDelete, table, nil, old)
}

func build(typ, table string, newRow, oldRow any) (Change, error) {
	c := Change{Type: typ, Table: table}
	if newRow != nil {
		b, err := json.Marshal(newRow)
		if err != nil {
			return Change{}, fmt.Errorf("marshal %s row: %w", table, err)
		}
		c.New = b
	}
	if oldRow != nil {
		b, err := json.Marshal(oldRow)
		if err != nil {
			return Change{}, fmt.Errorf("marshal %s row: %w", table, err)
		}
		c.Old = b
	}
	return c, nil
}

// Local delivers changes straight to an in-process sink.
type Local struct {
	sink Sink
}

func NewLocal(sink Sink) *Local {
	return &Local{sink: sink}
}

func (l *Local) Publish(_ context.Context, c Change) error {
	msg, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	l.sink.Broadcast(c.Table, msg)
	return nil
}
