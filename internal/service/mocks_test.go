package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tableside/api/internal/database"
	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/notify"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr error
	commits   int
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.commits++
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return nil }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// recordingBroker keeps every published change.
type recordingBroker struct {
	changes []notify.Change
}

func (b *recordingBroker) Publish(_ context.Context, c notify.Change) error {
	b.changes = append(b.changes, c)
	return nil
}

func (b *recordingBroker) kinds() []string {
	out := make([]string, len(b.changes))
	for i, c := range b.changes {
		out[i] = c.Type + " " + c.Table
	}
	return out
}

// fakeStore is an in-memory stand-in for *database.Queries. Writes apply
// immediately; mockTx does not roll anything back.
type fakeStore struct {
	tables     map[int32]database.Table
	menu       map[uuid.UUID]database.MenuItem
	categories map[uuid.UUID]database.Category
	orders     map[uuid.UUID]database.Order

	// casFailures makes the next N UpdateOrderSnapshot calls report a
	// version mismatch.
	casFailures    int
	snapshotWrites int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tables:     make(map[int32]database.Table),
		menu:       make(map[uuid.UUID]database.MenuItem),
		categories: make(map[uuid.UUID]database.Category),
		orders:     make(map[uuid.UUID]database.Order),
	}
}

func (f *fakeStore) addTable(id int32) {
	f.tables[id] = database.Table{ID: id, Name: DefaultTableName(id), Seats: 4, Status: enum.TableStatusAvailable}
}

func (f *fakeStore) addMenuItem(name string, price int64) database.MenuItem {
	m := database.MenuItem{ID: uuid.New(), CategoryID: uuid.New(), Name: name, Price: price}
	f.menu[m.ID] = m
	return m
}

// -- tables --

func (f *fakeStore) ListTables(_ context.Context) ([]database.Table, error) {
	out := make([]database.Table, 0, len(f.tables))
	for _, t := range f.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetTable(_ context.Context, id int32) (database.Table, error) {
	t, ok := f.tables[id]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	return t, nil
}

func (f *fakeStore) GetTableForUpdate(ctx context.Context, id int32) (database.Table, error) {
	return f.GetTable(ctx, id)
}

func (f *fakeStore) CreateTable(_ context.Context, arg database.CreateTableParams) (database.Table, error) {
	t := database.Table{ID: arg.ID, Name: arg.Name, Seats: arg.Seats, Status: enum.TableStatusAvailable}
	f.tables[t.ID] = t
	return t, nil
}

func (f *fakeStore) UpdateTable(_ context.Context, arg database.UpdateTableParams) (database.Table, error) {
	t, ok := f.tables[arg.ID]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	t.Name, t.Seats = arg.Name, arg.Seats
	f.tables[t.ID] = t
	return t, nil
}

func (f *fakeStore) UpdateTableStatus(_ context.Context, arg database.UpdateTableStatusParams) (database.Table, error) {
	t, ok := f.tables[arg.ID]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	t.Status = arg.Status
	f.tables[t.ID] = t
	return t, nil
}

func (f *fakeStore) DeleteTablesByIDs(_ context.Context, ids []int32) ([]database.Table, error) {
	var out []database.Table
	for _, id := range ids {
		t, ok := f.tables[id]
		if !ok {
			continue
		}
		delete(f.tables, id)
		for oid, o := range f.orders {
			if o.TableID == id {
				delete(f.orders, oid)
			}
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeStore) derive(id int32) string {
	for _, o := range f.orders {
		if o.TableID == id && o.PaymentStatus == enum.PaymentStatusUnpaid {
			return enum.TableStatusOccupied
		}
	}
	return enum.TableStatusAvailable
}

func (f *fakeStore) SyncTableStatus(_ context.Context, id int32) (database.Table, error) {
	t, ok := f.tables[id]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	t.Status = f.derive(id)
	f.tables[id] = t
	return t, nil
}

func (f *fakeStore) ReconcileTableStatuses(ctx context.Context) ([]database.Table, error) {
	tables, _ := f.ListTables(ctx)
	var changed []database.Table
	for _, t := range tables {
		if s := f.derive(t.ID); s != t.Status {
			t.Status = s
			f.tables[t.ID] = t
			changed = append(changed, t)
		}
	}
	return changed, nil
}

// -- menu --

func (f *fakeStore) ListMenuItemsByIDs(_ context.Context, ids []uuid.UUID) ([]database.MenuItem, error) {
	var out []database.MenuItem
	for _, id := range ids {
		if m, ok := f.menu[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) ListMenuItems(_ context.Context) ([]database.MenuItem, error) {
	out := make([]database.MenuItem, 0, len(f.menu))
	for _, m := range f.menu {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeStore) GetMenuItem(_ context.Context, id uuid.UUID) (database.MenuItem, error) {
	m, ok := f.menu[id]
	if !ok {
		return database.MenuItem{}, pgx.ErrNoRows
	}
	return m, nil
}

func (f *fakeStore) CreateMenuItem(_ context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error) {
	m := database.MenuItem{
		ID:          uuid.New(),
		CategoryID:  arg.CategoryID,
		Name:        arg.Name,
		Price:       arg.Price,
		Image:       arg.Image,
		Description: arg.Description,
	}
	f.menu[m.ID] = m
	return m, nil
}

func (f *fakeStore) UpdateMenuItem(_ context.Context, arg database.UpdateMenuItemParams) (database.MenuItem, error) {
	m, ok := f.menu[arg.ID]
	if !ok {
		return database.MenuItem{}, pgx.ErrNoRows
	}
	m.CategoryID, m.Name, m.Price, m.Image, m.Description = arg.CategoryID, arg.Name, arg.Price, arg.Image, arg.Description
	f.menu[m.ID] = m
	return m, nil
}

func (f *fakeStore) DeleteMenuItem(_ context.Context, id uuid.UUID) (database.MenuItem, error) {
	m, ok := f.menu[id]
	if !ok {
		return database.MenuItem{}, pgx.ErrNoRows
	}
	delete(f.menu, id)
	return m, nil
}

func (f *fakeStore) ListCategories(_ context.Context) ([]database.Category, error) {
	out := make([]database.Category, 0, len(f.categories))
	for _, c := range f.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (f *fakeStore) GetCategory(_ context.Context, id uuid.UUID) (database.Category, error) {
	c, ok := f.categories[id]
	if !ok {
		return database.Category{}, pgx.ErrNoRows
	}
	return c, nil
}

func (f *fakeStore) GetMaxCategoryOrderIndex(_ context.Context) (int32, error) {
	var m int32
	for _, c := range f.categories {
		m = max(m, c.OrderIndex)
	}
	return m, nil
}

func (f *fakeStore) CreateCategory(_ context.Context, arg database.CreateCategoryParams) (database.Category, error) {
	c := database.Category{ID: uuid.New(), Name: arg.Name, OrderIndex: arg.OrderIndex, CreatedAt: time.Now()}
	f.categories[c.ID] = c
	return c, nil
}

func (f *fakeStore) UpdateCategoryName(_ context.Context, arg database.UpdateCategoryNameParams) (database.Category, error) {
	c, ok := f.categories[arg.ID]
	if !ok {
		return database.Category{}, pgx.ErrNoRows
	}
	c.Name = arg.Name
	f.categories[c.ID] = c
	return c, nil
}

func (f *fakeStore) UpdateCategoryOrderIndex(_ context.Context, arg database.UpdateCategoryOrderIndexParams) (database.Category, error) {
	c, ok := f.categories[arg.ID]
	if !ok {
		return database.Category{}, pgx.ErrNoRows
	}
	c.OrderIndex = arg.OrderIndex
	f.categories[c.ID] = c
	return c, nil
}

func (f *fakeStore) DeleteCategory(_ context.Context, id uuid.UUID) (database.Category, error) {
	c, ok := f.categories[id]
	if !ok {
		return database.Category{}, pgx.ErrNoRows
	}
	delete(f.categories, id)
	return c, nil
}

func (f *fakeStore) CountMenuItemsByCategory(_ context.Context, categoryID uuid.UUID) (int64, error) {
	var n int64
	for _, m := range f.menu {
		if m.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

// -- orders --

func (f *fakeStore) sortedOrders(keep func(database.Order) bool) []database.Order {
	var out []database.Order
	for _, o := range f.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (f *fakeStore) GetOrder(_ context.Context, id uuid.UUID) (database.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (f *fakeStore) GetLatestUnpaidOrderByTable(_ context.Context, tableID int32) (database.Order, error) {
	unpaid := f.sortedOrders(func(o database.Order) bool {
		return o.TableID == tableID && o.PaymentStatus == enum.PaymentStatusUnpaid
	})
	if len(unpaid) == 0 {
		return database.Order{}, pgx.ErrNoRows
	}
	return unpaid[len(unpaid)-1], nil
}

func (f *fakeStore) ListOrders(_ context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	return f.sortedOrders(func(o database.Order) bool {
		if arg.TableID.Valid && o.TableID != arg.TableID.Int32 {
			return false
		}
		if arg.PaymentStatus.Valid && o.PaymentStatus != arg.PaymentStatus.String {
			return false
		}
		if arg.Status.Valid && o.Status != arg.Status.String {
			return false
		}
		return true
	}), nil
}

func (f *fakeStore) ListUnpaidOrdersByTableForUpdate(ctx context.Context, tableID int32) ([]database.Order, error) {
	return f.ListOrders(ctx, database.ListOrdersParams{
		TableID:       pgtype.Int4{Int32: tableID, Valid: true},
		PaymentStatus: pgtype.Text{String: enum.PaymentStatusUnpaid, Valid: true},
	})
}

func (f *fakeStore) CreateOrder(_ context.Context, arg database.CreateOrderParams) (database.Order, error) {
	o := database.Order{
		ID:            arg.ID,
		TableID:       arg.TableID,
		Items:         arg.Items,
		TotalPrice:    arg.TotalPrice,
		Status:        arg.Status,
		PaymentStatus: arg.PaymentStatus,
		Version:       1,
		CreatedAt:     arg.CreatedAt,
		UpdatedAt:     arg.CreatedAt,
	}
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeStore) UpdateOrderSnapshot(_ context.Context, arg database.UpdateOrderSnapshotParams) (database.Order, error) {
	if f.casFailures > 0 {
		f.casFailures--
		return database.Order{}, pgx.ErrNoRows
	}
	o, ok := f.orders[arg.ID]
	if !ok || o.Version != arg.Version {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Items, o.TotalPrice, o.Status = arg.Items, arg.TotalPrice, arg.Status
	o.Version++
	f.orders[o.ID] = o
	f.snapshotWrites++
	return o, nil
}

func (f *fakeStore) MarkOrdersPaid(_ context.Context, arg database.MarkOrdersPaidParams) ([]database.Order, error) {
	var out []database.Order
	for _, id := range arg.IDs {
		o, ok := f.orders[id]
		if !ok || o.PaymentStatus != enum.PaymentStatusUnpaid {
			continue
		}
		o.PaymentStatus = enum.PaymentStatusPaid
		o.PaymentMethod = pgtype.Text{String: arg.PaymentMethod, Valid: true}
		o.Version++
		f.orders[id] = o
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeStore) DeleteOrder(_ context.Context, arg database.DeleteOrderParams) (database.Order, error) {
	o, ok := f.orders[arg.ID]
	if !ok || o.Version != arg.Version {
		return database.Order{}, pgx.ErrNoRows
	}
	delete(f.orders, arg.ID)
	return o, nil
}
