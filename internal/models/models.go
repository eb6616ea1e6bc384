package models

import "time"

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

type Appointment struct {
	ID          string            `db:"id"`
	Date        string            `db:"appointment_date"` // YYYY-MM-DD
	Time        string            `db:"appointment_time"` // HH:MM
	ShopID      string            `db:"shop_id"`
	PersonnelID string            `db:"personnel_id"`
	CustomerID  string            `db:"customer_id"`
	ServiceIDs  []string          `db:"service_ids"`
	Status      AppointmentStatus `db:"status"`
	Notes       string            `db:"notes"`
	CreatedAt   time.Time         `db:"created_at"`
}

type Service struct {
	ID              string  `db:"id"`
	ShopID          string  `db:"shop_id"`
	CategoryID      *string `db:"category_id"`
	Name            string  `db:"name"`
	Price           float64 `db:"price"`
	DurationMinutes int     `db:"duration_minutes"`
	Points          int     `db:"points"`
}

type Personnel struct {
	ID            string   `db:"id"`
	ShopID        string   `db:"shop_id"`
	Name          string   `db:"name"`
	Phone         string   `db:"phone"`
	Email         string   `db:"email"`
	CommissionPct float64  `db:"commission_pct"`
	FixedSalary   *float64 `db:"fixed_salary"`
}

type Customer struct {
	ID        string `db:"id"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	Phone     string `db:"phone"`
}

type Shop struct {
	ID      string `db:"id"`
	Name    string `db:"name"`
	OwnerID string `db:"owner_id"`
}

// WorkingHour is a per-weekday opening definition for a shop.
// Weekday follows time.Weekday (0 = Sunday).
type WorkingHour struct {
	ShopID    string `db:"shop_id"`
	Weekday   int    `db:"weekday"`
	OpenTime  string `db:"open_time"`  // HH:MM
	CloseTime string `db:"close_time"` // HH:MM, exclusive
	Closed    bool   `db:"closed"`
}

// Operation is one commission-bearing record of a service rendered by
// a staff member. At most one exists per (appointment, service,
// personnel) triple; the operations table carries a unique index on it.
type Operation struct {
	ID             string    `db:"id"`
	AppointmentID  *string   `db:"appointment_id"`
	ServiceID      string    `db:"service_id"`
	PersonnelID    string    `db:"personnel_id"`
	CustomerID     string    `db:"customer_id"`
	Amount         float64   `db:"amount"`
	CommissionPct  float64   `db:"commission_pct"`
	CommissionPaid float64   `db:"commission_paid"`
	Points         int       `db:"points"`
	Description    string    `db:"description"`
	Notes          string    `db:"notes"`
	Photos         []string  `db:"photos"`
	CreatedAt      time.Time `db:"created_at"`
}

// AppointmentFilters narrows ListAppointments; nil fields are ignored.
type AppointmentFilters struct {
	Date        *string
	ShopID      *string
	PersonnelID *string
	CustomerID  *string
	Status      *string
}

type OperationFilters struct {
	PersonnelID   *string
	CustomerID    *string
	AppointmentID *string
}

type ShopStats struct {
	ShopID          string    `db:"shop_id"`
	TotalRevenue    float64   `db:"total_revenue"`
	TotalCommission float64   `db:"total_commission"`
	TotalPoints     int       `db:"total_points"`
	OperationCount  int       `db:"operation_count"`
	UpdatedAt       time.Time `db:"updated_at"`
}
