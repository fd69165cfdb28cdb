package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tableside/api/internal/database"
	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/notify"
)

const (
	defaultSeats = 4

	// MaxTables caps SetCount.
	MaxTables = 500
)

var (
	// ErrInvalidSeats is returned when a table is given fewer than one seat.
	ErrInvalidSeats = errors.New("seats must be > 0")
	// ErrTooManyTables is returned when SetCount asks for more than MaxTables.
	ErrTooManyTables = errors.New("count must be <= 500")
)

// TableStore defines the DB methods needed by the table service.
// Satisfied by *database.Queries (and its WithTx variant).
type TableStore interface {
	ListTables(ctx context.Context) ([]database.Table, error)
	GetTable(ctx context.Context, id int32) (database.Table, error)
	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.Table, error)
	UpdateTable(ctx context.Context, arg database.UpdateTableParams) (database.Table, error)
	DeleteTablesByIDs(ctx context.Context, ids []int32) ([]database.Table, error)
	ReconcileTableStatuses(ctx context.Context) ([]database.Table, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
}

// NewTableStore creates a TableStore from a DBTX (pool or tx).
type NewTableStore func(db database.DBTX) TableStore

// TableService manages the dining tables.
type TableService struct {
	pool     TxBeginner
	queries  TableStore
	newStore NewTableStore
	pub      publisher
}

// NewTableService creates a new TableService. broker may be nil.
func NewTableService(pool TxBeginner, queries TableStore, newStore NewTableStore, broker notify.Broker) *TableService {
	return &TableService{
		pool:     pool,
		queries:  queries,
		newStore: newStore,
		pub:      publisher{broker: broker},
	}
}

// DefaultTableName is the name given to tables created by SetCount.
func DefaultTableName(id int32) string {
	return fmt.Sprintf("桌號 %d", id)
}

func (s *TableService) ListTables(ctx context.Context) ([]database.Table, error) {
	tables, err := s.queries.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

func (s *TableService) GetTable(ctx context.Context, id int32) (*database.Table, error) {
	t, err := s.queries.GetTable(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get table: %w", err)
	}
	return &t, nil
}

// UpdateTable changes a table's display name and seat count.
func (s *TableService) UpdateTable(ctx context.Context, id int32, name string, seats int32) (*database.Table, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if seats <= 0 {
		return nil, ErrInvalidSeats
	}

	t, err := s.queries.UpdateTable(ctx, database.UpdateTableParams{ID: id, Name: name, Seats: seats})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("update table: %w", err)
	}

	s.pub.publish(ctx, []event{{typ: enum.ChangeUpdate, topic: enum.TopicTables, row: t}})
	return &t, nil
}

// SetCount grows or shrinks the set of tables to count. New tables take ids
// after the current highest; shrinking removes the highest ids together with
// their orders. Negative counts are treated as zero.
func (s *TableService) SetCount(ctx context.Context, count int) ([]database.Table, error) {
	if count < 0 {
		count = 0
	}
	if count > MaxTables {
		return nil, ErrTooManyTables
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	tables, err := store.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	var events []event

	switch {
	case count > len(tables):
		var maxID int32
		for _, t := range tables {
			maxID = max(maxID, t.ID)
		}
		for i := 0; i < count-len(tables); i++ {
			id := maxID + int32(i) + 1
			t, err := store.CreateTable(ctx, database.CreateTableParams{
				ID:    id,
				Name:  DefaultTableName(id),
				Seats: defaultSeats,
			})
			if err != nil {
				return nil, fmt.Errorf("create table %d: %w", id, err)
			}
			tables = append(tables, t)
			events = append(events, event{typ: enum.ChangeInsert, topic: enum.TopicTables, row: t})
		}

	case count < len(tables):
		// tables is sorted by id, so the surplus is at the tail
		surplus := tables[count:]
		ids := make([]int32, 0, len(surplus))
		for _, t := range surplus {
			ids = append(ids, t.ID)

			orders, err := store.ListOrders(ctx, database.ListOrdersParams{
				TableID: pgtype.Int4{Int32: t.ID, Valid: true},
			})
			if err != nil {
				return nil, fmt.Errorf("list orders of table %d: %w", t.ID, err)
			}
			for _, row := range orders {
				view, err := toOrder(row)
				if err != nil {
					return nil, err
				}
				events = append(events, event{typ: enum.ChangeDelete, topic: enum.TopicOrders, row: view})
			}
		}

		deleted, err := store.DeleteTablesByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("delete tables: %w", err)
		}
		for _, t := range deleted {
			events = append(events, event{typ: enum.ChangeDelete, topic: enum.TopicTables, row: t})
		}
		tables = tables[:count]
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.pub.publish(ctx, events)
	return tables, nil
}

// Reconcile re-derives every table's occupancy from its unpaid orders and
// returns the tables that were out of sync.
func (s *TableService) Reconcile(ctx context.Context) ([]database.Table, error) {
	changed, err := s.queries.ReconcileTableStatuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile table statuses: %w", err)
	}

	events := make([]event, 0, len(changed))
	for _, t := range changed {
		events = append(events, event{typ: enum.ChangeUpdate, topic: enum.TopicTables, row: t})
	}
	s.pub.publish(ctx, events)
	return changed, nil
}
