package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Restaurant struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

type User struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Email        string
	PasswordHash string
	FullName     string
	Role         string
	Active       bool
	CreatedAt    time.Time
}

type Category struct {
	ID   uuid.UUID
	Name string
}

type MenuItem struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	CategoryID   uuid.UUID
	Description  string
	Price        pgtype.Numeric
	PhotoURL     pgtype.Text
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type RestaurantTable struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Number       int32
	Label        string
}

type TableVisit struct {
	ID       uuid.UUID
	TableID  uuid.UUID
	WaiterID pgtype.UUID
	Status   string
	OpenedAt time.Time
	ClosedAt pgtype.Timestamptz
}

type Order struct {
	ID        uuid.UUID
	VisitID   uuid.UUID
	PersonID  uuid.UUID
	Status    string
	Notes     pgtype.Text
	Total     pgtype.Numeric
	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrderLine struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Quantity   int32
	UnitPrice  pgtype.Numeric
}

type Bill struct {
	ID      uuid.UUID
	VisitID uuid.UUID
	Total   pgtype.Numeric
	PaidAt  time.Time
}

type AuditEntry struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Entity       string
	EntityID     uuid.UUID
	Action       string
	Detail       string
	ActorID      pgtype.UUID
	CreatedAt    time.Time
}
