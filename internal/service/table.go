package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/qr-efficient/api/internal/database"
	"github.com/qr-efficient/api/internal/enum"
)

// TableStore defines the DB methods the table state machine needs.
type TableStore interface {
	GetTable(ctx context.Context, id uuid.UUID) (database.RestaurantTable, error)
	GetTableByNumber(ctx context.Context, arg database.GetTableByNumberParams) (database.RestaurantTable, error)
	GetActiveVisitByTable(ctx context.Context, tableID uuid.UUID) (database.TableVisit, error)
	GetVisit(ctx context.Context, id uuid.UUID) (database.TableVisit, error)
	CreateVisit(ctx context.Context, arg database.CreateVisitParams) (database.TableVisit, error)
	UpdateVisitStatus(ctx context.Context, arg database.UpdateVisitStatusParams) (database.TableVisit, error)
	CreateAuditEntry(ctx context.Context, arg database.CreateAuditEntryParams) (database.AuditEntry, error)
}

// NewTableStore creates a TableStore from a DBTX (pool or tx).
type NewTableStore func(db database.DBTX) TableStore

// VisitResult is a visit transition outcome with routing info.
type VisitResult struct {
	Visit        database.TableVisit
	RestaurantID uuid.UUID
}

// serviceRequestTargets maps a client request kind to the visit status it
// raises.
var serviceRequestTargets = map[string]string{
	enum.ServiceKindBill:   enum.TableStatusBillRequested,
	enum.ServiceKindWaiter: enum.TableStatusWaiterRequested,
}

// acknowledgeable are the flag states staff clear back to OCCUPIED.
var acknowledgeable = map[string]bool{
	enum.TableStatusBillRequested:   true,
	enum.TableStatusWaiterRequested: true,
	enum.TableStatusNewOrder:        true,
}

// TableService owns the table visit lifecycle.
type TableService struct {
	pool     TxBeginner
	newStore NewTableStore
}

func NewTableService(pool TxBeginner, newStore NewTableStore) *TableService {
	return &TableService{pool: pool, newStore: newStore}
}

// AssignWaiter opens a fresh visit for a free (or previously closed)
// table. A table with an active visit must be closed first; the partial
// unique index on table_visits backs this check against races.
func (s *TableService) AssignWaiter(ctx context.Context, tableID, waiterID uuid.UUID, actorID uuid.UUID) (*VisitResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	table, err := store.GetTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get table: %w", err)
	}

	if _, err := store.GetActiveVisitByTable(ctx, tableID); err == nil {
		return nil, ErrTableBusy
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get active visit: %w", err)
	}

	visit, err := store.CreateVisit(ctx, database.CreateVisitParams{
		TableID:  tableID,
		WaiterID: pgtype.UUID{Bytes: waiterID, Valid: true},
		Status:   enum.TableStatusOccupied,
	})
	if err != nil {
		if isActiveVisitConflict(err) {
			return nil, ErrTableBusy
		}
		return nil, fmt.Errorf("create visit: %w", err)
	}

	_, err = store.CreateAuditEntry(ctx, database.CreateAuditEntryParams{
		RestaurantID: table.RestaurantID,
		Entity:       "visit",
		EntityID:     visit.ID,
		Action:       enum.AuditVisitOpened,
		Detail:       fmt.Sprintf("table %d", table.Number),
		ActorID:      pgtype.UUID{Bytes: actorID, Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("audit visit opened: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &VisitResult{Visit: visit, RestaurantID: table.RestaurantID}, nil
}

// isActiveVisitConflict checks for a unique violation on the one-active-
// visit-per-table index (pgconn error code 23505).
func isActiveVisitConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "idx_table_visits_one_active"
	}
	return false
}

// RequestService raises the bill or waiter flag on an occupied table.
// Any other current status, a closed visit included, is rejected as an
// invalid transition.
func (s *TableService) RequestService(ctx context.Context, visitID uuid.UUID, kind string) (*VisitResult, error) {
	target, ok := serviceRequestTargets[kind]
	if !ok {
		return nil, ErrInvalidServiceKind
	}
	return s.transition(ctx, visitID, target, enum.TableStatusOccupied, uuid.Nil)
}

// Acknowledge clears a raised flag back to OCCUPIED.
func (s *TableService) Acknowledge(ctx context.Context, visitID uuid.UUID, actorID uuid.UUID) (*VisitResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	visit, err := store.GetVisit(ctx, visitID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVisitNotFound
		}
		return nil, fmt.Errorf("get visit: %w", err)
	}
	if !acknowledgeable[visit.Status] {
		return nil, &InvalidTransitionError{Entity: "visit", From: visit.Status, To: enum.TableStatusOccupied}
	}

	return s.finishTransition(ctx, tx, store, visit, enum.TableStatusOccupied, actorID)
}

// transition CASes the visit from expected to target inside a tx,
// writing the audit row.
func (s *TableService) transition(ctx context.Context, visitID uuid.UUID, target, expected string, actorID uuid.UUID) (*VisitResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	visit, err := store.GetVisit(ctx, visitID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVisitNotFound
		}
		return nil, fmt.Errorf("get visit: %w", err)
	}
	if visit.Status != expected {
		return nil, &InvalidTransitionError{Entity: "visit", From: visit.Status, To: target}
	}

	return s.finishTransition(ctx, tx, store, visit, target, actorID)
}

func (s *TableService) finishTransition(ctx context.Context, tx pgx.Tx, store TableStore, visit database.TableVisit, target string, actorID uuid.UUID) (*VisitResult, error) {
	updated, err := store.UpdateVisitStatus(ctx, database.UpdateVisitStatusParams{
		ID:       visit.ID,
		Status:   target,
		Expected: visit.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &InvalidTransitionError{Entity: "visit", From: visit.Status, To: target}
		}
		return nil, fmt.Errorf("update visit status: %w", err)
	}

	table, err := store.GetTable(ctx, updated.TableID)
	if err != nil {
		return nil, fmt.Errorf("get table: %w", err)
	}

	actor := pgtype.UUID{}
	if actorID != uuid.Nil {
		actor = pgtype.UUID{Bytes: actorID, Valid: true}
	}
	_, err = store.CreateAuditEntry(ctx, database.CreateAuditEntryParams{
		RestaurantID: table.RestaurantID,
		Entity:       "visit",
		EntityID:     updated.ID,
		Action:       enum.AuditVisitTransitioned,
		Detail:       fmt.Sprintf("%s -> %s", visit.Status, target),
		ActorID:      actor,
	})
	if err != nil {
		return nil, fmt.Errorf("audit visit transition: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &VisitResult{Visit: updated, RestaurantID: table.RestaurantID}, nil
}

// ResolveScan finds the active visit for a scanned table ID. It never
// creates a visit: a table without one is simply not open for ordering.
func (s *TableService) ResolveScan(ctx context.Context, store TableStore, tableID uuid.UUID) (database.RestaurantTable, database.TableVisit, error) {
	table, err := store.GetTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.RestaurantTable{}, database.TableVisit{}, ErrTableNotFound
		}
		return database.RestaurantTable{}, database.TableVisit{}, fmt.Errorf("get table: %w", err)
	}

	visit, err := store.GetActiveVisitByTable(ctx, table.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return table, database.TableVisit{}, ErrVisitNotFound
		}
		return table, database.TableVisit{}, fmt.Errorf("get active visit: %w", err)
	}

	return table, visit, nil
}

// Resolve finds the active visit by table number, for staff tooling that
// works off the printed number rather than a scan.
func (s *TableService) Resolve(ctx context.Context, store TableStore, restaurantID uuid.UUID, tableNumber int32) (database.RestaurantTable, database.TableVisit, error) {
	table, err := store.GetTableByNumber(ctx, database.GetTableByNumberParams{
		RestaurantID: restaurantID,
		Number:       tableNumber,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.RestaurantTable{}, database.TableVisit{}, ErrTableNotFound
		}
		return database.RestaurantTable{}, database.TableVisit{}, fmt.Errorf("get table by number: %w", err)
	}

	visit, err := store.GetActiveVisitByTable(ctx, table.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return table, database.TableVisit{}, ErrVisitNotFound
		}
		return table, database.TableVisit{}, fmt.Errorf("get active visit: %w", err)
	}

	return table, visit, nil
}
