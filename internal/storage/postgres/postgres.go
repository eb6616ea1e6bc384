package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"salon-service/internal/models"
	"salon-service/pkg/response"

	"github.com/lib/pq"
)

type Storage struct {
	db *sql.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

// #### appointments ####

func (s *Storage) CreateAppointment(ctx context.Context, a *models.Appointment) error {
	const op = "storage.postgres.CreateAppointment"

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO appointments
		(id, appointment_date, appointment_time, shop_id, personnel_id, customer_id, service_ids, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID,
		a.Date,
		a.Time,
		a.ShopID,
		a.PersonnelID,
		a.CustomerID,
		pq.Array(a.ServiceIDs),
		string(a.Status),
		a.Notes,
	)
	if err != nil {
		sqlErr, ok := err.(*pq.Error)
		if ok && sqlErr.Code == "23505" {
			return fmt.Errorf("%s: %w", op, response.ErrConflict)
		}
		if ok && sqlErr.Code == "23503" {
			return fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	const op = "storage.postgres.GetAppointment"

	var a models.Appointment
	var status string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, to_char(appointment_date, 'YYYY-MM-DD'), appointment_time, shop_id, personnel_id, customer_id, service_ids, status, notes, created_at
		FROM appointments WHERE id=$1`, id).
		Scan(
			&a.ID,
			&a.Date,
			&a.Time,
			&a.ShopID,
			&a.PersonnelID,
			&a.CustomerID,
			pq.Array(&a.ServiceIDs),
			&status,
			&a.Notes,
			&a.CreatedAt,
		)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.Status = models.AppointmentStatus(status)

	return &a, nil
}

func (s *Storage) ListAppointments(ctx context.Context, filters *models.AppointmentFilters) ([]*models.Appointment, error) {
	const op = "storage.postgres.ListAppointments"

	query := `SELECT id, to_char(appointment_date, 'YYYY-MM-DD'), appointment_time, shop_id, personnel_id, customer_id, service_ids, status, notes, created_at
		FROM appointments`

	var conds []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, column+"=$"+strconv.Itoa(len(args)))
	}

	if filters != nil {
		if filters.Date != nil {
			add("appointment_date", *filters.Date)
		}
		if filters.ShopID != nil {
			add("shop_id", *filters.ShopID)
		}
		if filters.PersonnelID != nil {
			add("personnel_id", *filters.PersonnelID)
		}
		if filters.CustomerID != nil {
			add("customer_id", *filters.CustomerID)
		}
		if filters.Status != nil {
			add("status", *filters.Status)
		}
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY appointment_date, appointment_time"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var result []*models.Appointment
	for rows.Next() {
		var a models.Appointment
		var status string

		err := rows.Scan(
			&a.ID,
			&a.Date,
			&a.Time,
			&a.ShopID,
			&a.PersonnelID,
			&a.CustomerID,
			pq.Array(&a.ServiceIDs),
			&status,
			&a.Notes,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		a.Status = models.AppointmentStatus(status)
		result = append(result, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

func (s *Storage) UpdateAppointmentStatus(ctx context.Context, id string, status models.AppointmentStatus) error {
	const op = "storage.postgres.UpdateAppointmentStatus"

	res, err := s.db.ExecContext(ctx,
		`UPDATE appointments SET status=$1 WHERE id=$2`, string(status), id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

// #### services / personnel / customers ####

func (s *Storage) GetServicesByIDs(ctx context.Context, ids []string) ([]*models.Service, error) {
	const op = "storage.postgres.GetServicesByIDs"

	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, shop_id, category_id, name, price, duration_minutes, points
		FROM services WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var result []*models.Service
	for rows.Next() {
		var svc models.Service

		err := rows.Scan(&svc.ID, &svc.ShopID, &svc.CategoryID, &svc.Name, &svc.Price, &svc.DurationMinutes, &svc.Points)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		result = append(result, &svc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

func (s *Storage) GetPersonnel(ctx context.Context, id string) (*models.Personnel, error) {
	const op = "storage.postgres.GetPersonnel"

	var p models.Personnel

	err := s.db.QueryRowContext(ctx,
		`SELECT id, shop_id, name, phone, email, COALESCE(commission_pct, 0), fixed_salary
		FROM personnel WHERE id=$1`, id).
		Scan(&p.ID, &p.ShopID, &p.Name, &p.Phone, &p.Email, &p.CommissionPct, &p.FixedSalary)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &p, nil
}

func (s *Storage) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	const op = "storage.postgres.GetCustomer"

	var c models.Customer

	err := s.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, phone FROM customers WHERE id=$1`, id).
		Scan(&c.ID, &c.FirstName, &c.LastName, &c.Phone)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &c, nil
}

// #### working hours ####

func (s *Storage) GetWorkingHour(ctx context.Context, shopID string, weekday int) (*models.WorkingHour, error) {
	const op = "storage.postgres.GetWorkingHour"

	var wh models.WorkingHour

	err := s.db.QueryRowContext(ctx,
		`SELECT shop_id, weekday, open_time, close_time, closed
		FROM working_hours WHERE shop_id=$1 AND weekday=$2`, shopID, weekday).
		Scan(&wh.ShopID, &wh.Weekday, &wh.OpenTime, &wh.CloseTime, &wh.Closed)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &wh, nil
}

// #### operations ####

// UpsertOperation inserts or, when the (appointment_id, service_id,
// personnel_id) triple already exists, updates the row in place. The
// triple has a unique index, so concurrent completions of the same
// appointment cannot produce duplicates.
func (s *Storage) UpsertOperation(ctx context.Context, o *models.Operation) (*models.Operation, error) {
	const op = "storage.postgres.UpsertOperation"

	var out models.Operation

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO operations
		(id, appointment_id, service_id, personnel_id, customer_id, amount, commission_pct, commission_paid, points, description, notes, photos)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (appointment_id, service_id, personnel_id)
		DO UPDATE
		SET amount = EXCLUDED.amount,
			commission_pct = EXCLUDED.commission_pct,
			commission_paid = EXCLUDED.commission_paid,
			points = EXCLUDED.points,
			description = EXCLUDED.description,
			notes = EXCLUDED.notes
		RETURNING id, appointment_id, service_id, personnel_id, customer_id, amount, commission_pct, commission_paid, points, description, notes, photos, created_at`,
		o.ID,
		o.AppointmentID,
		o.ServiceID,
		o.PersonnelID,
		o.CustomerID,
		o.Amount,
		o.CommissionPct,
		o.CommissionPaid,
		o.Points,
		o.Description,
		o.Notes,
		pq.Array(o.Photos),
	).Scan(
		&out.ID,
		&out.AppointmentID,
		&out.ServiceID,
		&out.PersonnelID,
		&out.CustomerID,
		&out.Amount,
		&out.CommissionPct,
		&out.CommissionPaid,
		&out.Points,
		&out.Description,
		&out.Notes,
		pq.Array(&out.Photos),
		&out.CreatedAt,
	)
	if err != nil {
		sqlErr, ok := err.(*pq.Error)
		if ok && sqlErr.Code == "23503" {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &out, nil
}

// InsertOperation is the manual-logging path: no idempotence triple,
// every call creates a row.
func (s *Storage) InsertOperation(ctx context.Context, o *models.Operation) (*models.Operation, error) {
	const op = "storage.postgres.InsertOperation"

	var out models.Operation

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO operations
		(id, appointment_id, service_id, personnel_id, customer_id, amount, commission_pct, commission_paid, points, description, notes, photos)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, appointment_id, service_id, personnel_id, customer_id, amount, commission_pct, commission_paid, points, description, notes, photos, created_at`,
		o.ID,
		o.AppointmentID,
		o.ServiceID,
		o.PersonnelID,
		o.CustomerID,
		o.Amount,
		o.CommissionPct,
		o.CommissionPaid,
		o.Points,
		o.Description,
		o.Notes,
		pq.Array(o.Photos),
	).Scan(
		&out.ID,
		&out.AppointmentID,
		&out.ServiceID,
		&out.PersonnelID,
		&out.CustomerID,
		&out.Amount,
		&out.CommissionPct,
		&out.CommissionPaid,
		&out.Points,
		&out.Description,
		&out.Notes,
		pq.Array(&out.Photos),
		&out.CreatedAt,
	)
	if err != nil {
		sqlErr, ok := err.(*pq.Error)
		if ok && sqlErr.Code == "23503" {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &out, nil
}

func (s *Storage) GetOperation(ctx context.Context, id string) (*models.Operation, error) {
	const op = "storage.postgres.GetOperation"

	var o models.Operation

	err := s.db.QueryRowContext(ctx,
		`SELECT id, appointment_id, service_id, personnel_id, customer_id, amount, commission_pct, commission_paid, points, description, notes, photos, created_at
		FROM operations WHERE id=$1`, id).
		Scan(
			&o.ID,
			&o.AppointmentID,
			&o.ServiceID,
			&o.PersonnelID,
			&o.CustomerID,
			&o.Amount,
			&o.CommissionPct,
			&o.CommissionPaid,
			&o.Points,
			&o.Description,
			&o.Notes,
			pq.Array(&o.Photos),
			&o.CreatedAt,
		)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &o, nil
}

func (s *Storage) ListOperations(ctx context.Context, filters *models.OperationFilters) ([]*models.Operation, error) {
	const op = "storage.postgres.ListOperations"

	query := `SELECT id, appointment_id, service_id, personnel_id, customer_id, amount, commission_pct, commission_paid, points, description, notes, photos, created_at
		FROM operations`

	var conds []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, column+"=$"+strconv.Itoa(len(args)))
	}

	if filters != nil {
		if filters.PersonnelID != nil {
			add("personnel_id", *filters.PersonnelID)
		}
		if filters.CustomerID != nil {
			add("customer_id", *filters.CustomerID)
		}
		if filters.AppointmentID != nil {
			add("appointment_id", *filters.AppointmentID)
		}
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var result []*models.Operation
	for rows.Next() {
		var o models.Operation

		err := rows.Scan(
			&o.ID,
			&o.AppointmentID,
			&o.ServiceID,
			&o.PersonnelID,
			&o.CustomerID,
			&o.Amount,
			&o.CommissionPct,
			&o.CommissionPaid,
			&o.Points,
			&o.Description,
			&o.Notes,
			pq.Array(&o.Photos),
			&o.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		result = append(result, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

// #### shop stats ####

// RecomputeShopStats rebuilds the shop's aggregate row from its
// operations. Operations join through personnel because manual
// operations carry no shop reference of their own.
func (s *Storage) RecomputeShopStats(ctx context.Context, shopID string) error {
	const op = "storage.postgres.RecomputeShopStats"

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO shop_stats (shop_id, total_revenue, total_commission, total_points, operation_count, updated_at)
		SELECT $1,
			COALESCE(SUM(o.amount), 0),
			COALESCE(SUM(o.commission_paid), 0),
			COALESCE(SUM(o.points), 0),
			COUNT(o.id),
			now()
		FROM operations o
		JOIN personnel p ON p.id = o.personnel_id
		WHERE p.shop_id = $1
		ON CONFLICT (shop_id)
		DO UPDATE
		SET total_revenue = EXCLUDED.total_revenue,
			total_commission = EXCLUDED.total_commission,
			total_points = EXCLUDED.total_points,
			operation_count = EXCLUDED.operation_count,
			updated_at = EXCLUDED.updated_at`,
		shopID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) GetShopStats(ctx context.Context, shopID string) (*models.ShopStats, error) {
	const op = "storage.postgres.GetShopStats"

	var st models.ShopStats

	err := s.db.QueryRowContext(ctx,
		`SELECT shop_id, total_revenue, total_commission, total_points, operation_count, updated_at
		FROM shop_stats WHERE shop_id=$1`, shopID).
		Scan(&st.ShopID, &st.TotalRevenue, &st.TotalCommission, &st.TotalPoints, &st.OperationCount, &st.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &st, nil
}
