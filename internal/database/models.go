package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Category struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	OrderIndex int32     `json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
}

type MenuItem struct {
	ID          uuid.UUID `json:"id"`
	CategoryID  uuid.UUID `json:"category_id"`
	Name        string    `json:"name"`
	Price       int64     `json:"price"`
	Image       string    `json:"image"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Order struct {
	ID            uuid.UUID   `json:"id"`
	TableID       int32       `json:"table_id"`
	Items         []byte      `json:"items"`
	TotalPrice    int64       `json:"total_price"`
	Status        string      `json:"status"`
	PaymentStatus string      `json:"payment_status"`
	PaymentMethod pgtype.Text `json:"payment_method"`
	Version       int32       `json:"version"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

type Table struct {
	ID        int32     `json:"id"`
	Name      string    `json:"name"`
	Seats     int32     `json:"seats"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"hashed_password"`
	FullName       string    `json:"full_name"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}
