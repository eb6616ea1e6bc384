package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"salon-service/api"
	"salon-service/internal/availability"
	"salon-service/internal/config"
	"salon-service/internal/lock"
	"salon-service/internal/models"
	"salon-service/pkg/response"

	"github.com/google/uuid"
)

type Service struct {
	store  Store
	locker lock.Locker
	sched  config.Schedule
	now    func() time.Time
}

func NewService(store Store, locker lock.Locker, sched config.Schedule) *Service {
	return &Service{
		store:  store,
		locker: locker,
		sched:  sched,
		now:    time.Now,
	}
}

type Store interface {
	// Appointments
	CreateAppointment(ctx context.Context, a *models.Appointment) error
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	ListAppointments(ctx context.Context, filters *models.AppointmentFilters) ([]*models.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id string, status models.AppointmentStatus) error

	// Reference data
	GetServicesByIDs(ctx context.Context, ids []string) ([]*models.Service, error)
	GetPersonnel(ctx context.Context, id string) (*models.Personnel, error)
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	GetWorkingHour(ctx context.Context, shopID string, weekday int) (*models.WorkingHour, error)

	// Operations
	UpsertOperation(ctx context.Context, o *models.Operation) (*models.Operation, error)
	InsertOperation(ctx context.Context, o *models.Operation) (*models.Operation, error)
	GetOperation(ctx context.Context, id string) (*models.Operation, error)
	ListOperations(ctx context.Context, filters *models.OperationFilters) ([]*models.Operation, error)

	// Stats
	RecomputeShopStats(ctx context.Context, shopID string) error
	GetShopStats(ctx context.Context, shopID string) (*models.ShopStats, error)
}

const dateLayout = "2006-01-02"
const timeLayout = "15:04"

// commissionPaid is the commission formula used everywhere an
// operation is written: amount * percentage / 100.
func commissionPaid(amount, pct float64) float64 {
	return amount * pct / 100
}

// Slots

// AvailableSlots returns the bookable HH:MM marks for a date. The grid
// comes from the shop's working hours when configured (a closed day
// has no slots) and falls back to the default schedule otherwise.
func (s *Service) AvailableSlots(ctx context.Context, req *api.AvailableSlotsRequest) ([]string, error) {
	const op = "service.AvailableSlots"

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid date: %w", op, response.ErrBadRequest)
	}

	open, close := s.sched.OpenTime, s.sched.CloseTime

	if req.ShopID != nil {
		wh, err := s.store.GetWorkingHour(ctx, *req.ShopID, int(date.Weekday()))
		if err != nil && !errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if wh != nil {
			if wh.Closed {
				return []string{}, nil
			}
			open, close = wh.OpenTime, wh.CloseTime
		}
	}

	grid, err := availability.Grid(open, close, s.sched.SlotStep)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	filters := &models.AppointmentFilters{
		Date:        &req.Date,
		ShopID:      req.ShopID,
		PersonnelID: req.PersonnelID,
	}

	appointments, err := s.store.ListAppointments(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	booked := make(map[string]struct{}, len(appointments))
	for _, a := range appointments {
		if a.Status == models.AppointmentCancelled {
			continue
		}
		booked[normalizeMark(a.Time)] = struct{}{}
	}

	var cutoff string
	now := s.now()
	if date.Format(dateLayout) == now.Format(dateLayout) {
		cutoff = now.Format(timeLayout)
	}

	return availability.Filter(grid, booked, cutoff), nil
}

func normalizeMark(t string) string {
	if len(t) > 5 {
		return t[:5]
	}
	return t
}

// Appointments

func (s *Service) CreateAppointment(ctx context.Context, req *api.AppointmentRequest) (*api.AppointmentResponse, error) {
	const op = "service.CreateAppointment"

	if _, err := time.Parse(dateLayout, req.Date); err != nil {
		return nil, fmt.Errorf("%s: invalid date: %w", op, response.ErrBadRequest)
	}
	if _, err := time.Parse(timeLayout, req.Time); err != nil {
		return nil, fmt.Errorf("%s: invalid time: %w", op, response.ErrBadRequest)
	}
	if len(req.ServiceIDs) == 0 {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNoServices)
	}

	lockKey := fmt.Sprintf("slot:%s:%s:%s", req.ShopID, req.Date, req.Time)

	locked, err := s.locker.Lock(ctx, lockKey, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: lock error: %w", op, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", op, response.ErrLocked)
	}
	defer func() {
		_ = s.locker.Unlock(ctx, lockKey)
	}()

	existing, err := s.store.ListAppointments(ctx, &models.AppointmentFilters{
		Date:        &req.Date,
		ShopID:      &req.ShopID,
		PersonnelID: &req.PersonnelID,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, a := range existing {
		if a.Status != models.AppointmentCancelled && normalizeMark(a.Time) == req.Time {
			return nil, fmt.Errorf("%s: %w", op, response.ErrSlotNotAvailable)
		}
	}

	appointment := &models.Appointment{
		ID:          uuid.NewString(),
		Date:        req.Date,
		Time:        req.Time,
		ShopID:      req.ShopID,
		PersonnelID: req.PersonnelID,
		CustomerID:  req.CustomerID,
		ServiceIDs:  req.ServiceIDs,
		Status:      models.AppointmentPending,
		Notes:       req.Notes,
	}

	if err := s.store.CreateAppointment(ctx, appointment); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.GetAppointment(ctx, appointment.ID)
}

func (s *Service) GetAppointment(ctx context.Context, id string) (*api.AppointmentResponse, error) {
	const op = "service.GetAppointment"

	appointment, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return toAppointmentResponse(appointment), nil
}

func (s *Service) ListAppointments(ctx context.Context, filters *models.AppointmentFilters) ([]*api.AppointmentResponse, error) {
	const op = "service.ListAppointments"

	appointments, err := s.store.ListAppointments(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]*api.AppointmentResponse, 0, len(appointments))
	for _, a := range appointments {
		result = append(result, toAppointmentResponse(a))
	}

	return result, nil
}

func (s *Service) ConfirmAppointment(ctx context.Context, id string) (*api.AppointmentResponse, error) {
	const op = "service.ConfirmAppointment"

	appointment, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if appointment.Status != models.AppointmentPending {
		return nil, fmt.Errorf("%s: %w", op, response.ErrInvalidTransition)
	}

	if err := s.store.UpdateAppointmentStatus(ctx, id, models.AppointmentConfirmed); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.GetAppointment(ctx, id)
}

func (s *Service) CancelAppointment(ctx context.Context, id string) (*api.AppointmentResponse, error) {
	const op = "service.CancelAppointment"

	appointment, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if appointment.Status != models.AppointmentPending && appointment.Status != models.AppointmentConfirmed {
		return nil, fmt.Errorf("%s: %w", op, response.ErrInvalidTransition)
	}

	if err := s.store.UpdateAppointmentStatus(ctx, id, models.AppointmentCancelled); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.GetAppointment(ctx, id)
}

// Completion

// CompletionResult carries every operation touched plus the services
// that failed individually. A partial failure does not abort the rest.
type CompletionResult struct {
	Operations []*api.OperationResponse
	Failed     []api.OperationItemError
}

// CompleteAppointment marks the appointment completed and upserts one
// commission operation per service line item. The redis lock keeps
// concurrent completions of the same appointment from interleaving;
// the unique (appointment, service, personnel) index in storage makes
// the fan-out idempotent even without it.
func (s *Service) CompleteAppointment(ctx context.Context, appointmentID string) (*CompletionResult, error) {
	const op = "service.CompleteAppointment"

	lockKey := fmt.Sprintf("appointment:%s", appointmentID)

	locked, err := s.locker.Lock(ctx, lockKey, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: lock error: %w", op, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", op, response.ErrLocked)
	}
	defer func() {
		_ = s.locker.Unlock(ctx, lockKey)
	}()

	appointment, err := s.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if appointment.Status == models.AppointmentCancelled {
		return nil, fmt.Errorf("%s: %w", op, response.ErrInvalidTransition)
	}

	if len(appointment.ServiceIDs) == 0 {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNoServices)
	}

	if appointment.Status != models.AppointmentCompleted {
		if err := s.store.UpdateAppointmentStatus(ctx, appointmentID, models.AppointmentCompleted); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	services, err := s.store.GetServicesByIDs(ctx, appointment.ServiceIDs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	byID := make(map[string]*models.Service, len(services))
	for _, svc := range services {
		byID[svc.ID] = svc
	}

	pct := 0.0
	personnel, err := s.store.GetPersonnel(ctx, appointment.PersonnelID)
	if err != nil && !errors.Is(err, response.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if personnel != nil {
		pct = personnel.CommissionPct
	}

	customerName := appointment.CustomerID
	if customer, err := s.store.GetCustomer(ctx, appointment.CustomerID); err == nil {
		customerName = customer.FirstName + " " + customer.LastName
	}

	result := &CompletionResult{}

	for _, serviceID := range appointment.ServiceIDs {
		svc, ok := byID[serviceID]
		if !ok {
			result.Failed = append(result.Failed, api.OperationItemError{
				ServiceID: serviceID,
				Error:     "service not found",
			})
			continue
		}

		operation := &models.Operation{
			ID:             uuid.NewString(),
			AppointmentID:  &appointment.ID,
			ServiceID:      svc.ID,
			PersonnelID:    appointment.PersonnelID,
			CustomerID:     appointment.CustomerID,
			Amount:         svc.Price,
			CommissionPct:  pct,
			CommissionPaid: commissionPaid(svc.Price, pct),
			Points:         svc.Points,
			Description:    fmt.Sprintf("%s - %s (randevu %s)", svc.Name, customerName, appointment.ID),
			Notes:          appointment.Notes,
		}

		saved, err := s.store.UpsertOperation(ctx, operation)
		if err != nil {
			result.Failed = append(result.Failed, api.OperationItemError{
				ServiceID: serviceID,
				Error:     err.Error(),
			})
			continue
		}

		result.Operations = append(result.Operations, toOperationResponse(saved))
	}

	if err := s.store.RecomputeShopStats(ctx, appointment.ShopID); err != nil {
		log.Printf("[service] WARN: failed to recompute shop stats shop=%s: %v", appointment.ShopID, err)
	}

	return result, nil
}

// Operations

// CreateOperation logs a one-off service rendered outside the
// appointment flow. Omitted monetary fields are recomputed from the
// service and personnel records; every call inserts a new row.
func (s *Service) CreateOperation(ctx context.Context, req *api.OperationCreateRequest) (*api.OperationResponse, error) {
	const op = "service.CreateOperation"

	personnel, err := s.store.GetPersonnel(ctx, req.PersonnelID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	customer, err := s.store.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	services, err := s.store.GetServicesByIDs(ctx, []string{req.ServiceID})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}
	svc := services[0]

	amount := svc.Price
	if req.Amount != nil {
		amount = *req.Amount
	}

	points := svc.Points
	if req.Points != nil {
		points = *req.Points
	}

	pct := personnel.CommissionPct
	if req.CommissionPct != nil {
		pct = *req.CommissionPct
	}

	paid := commissionPaid(amount, pct)
	if req.CommissionPaid != nil {
		paid = *req.CommissionPaid
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("%s - %s %s", svc.Name, customer.FirstName, customer.LastName)
	}

	operation := &models.Operation{
		ID:             uuid.NewString(),
		ServiceID:      svc.ID,
		PersonnelID:    personnel.ID,
		CustomerID:     customer.ID,
		Amount:         amount,
		CommissionPct:  pct,
		CommissionPaid: paid,
		Points:         points,
		Description:    description,
		Notes:          req.Notes,
		Photos:         req.Photos,
	}

	created, err := s.store.InsertOperation(ctx, operation)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.RecomputeShopStats(ctx, personnel.ShopID); err != nil {
		log.Printf("[service] WARN: failed to recompute shop stats shop=%s: %v", personnel.ShopID, err)
	}

	return toOperationResponse(created), nil
}

func (s *Service) GetOperation(ctx context.Context, id string) (*api.OperationResponse, error) {
	const op = "service.GetOperation"

	operation, err := s.store.GetOperation(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return toOperationResponse(operation), nil
}

func (s *Service) ListOperations(ctx context.Context, filters *models.OperationFilters) ([]*api.OperationResponse, error) {
	const op = "service.ListOperations"

	operations, err := s.store.ListOperations(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]*api.OperationResponse, 0, len(operations))
	for _, o := range operations {
		result = append(result, toOperationResponse(o))
	}

	return result, nil
}

// Stats

func (s *Service) GetShopStats(ctx context.Context, shopID string) (*api.ShopStatsResponse, error) {
	const op = "service.GetShopStats"

	stats, err := s.store.GetShopStats(ctx, shopID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &api.ShopStatsResponse{
		ShopID:          stats.ShopID,
		TotalRevenue:    stats.TotalRevenue,
		TotalCommission: stats.TotalCommission,
		TotalPoints:     stats.TotalPoints,
		OperationCount:  stats.OperationCount,
		UpdatedAt:       stats.UpdatedAt,
	}, nil
}

func toAppointmentResponse(a *models.Appointment) *api.AppointmentResponse {
	return &api.AppointmentResponse{
		ID:          a.ID,
		Date:        a.Date,
		Time:        normalizeMark(a.Time),
		ShopID:      a.ShopID,
		PersonnelID: a.PersonnelID,
		CustomerID:  a.CustomerID,
		ServiceIDs:  a.ServiceIDs,
		Status:      string(a.Status),
		Notes:       a.Notes,
		CreatedAt:   a.CreatedAt,
	}
}

func toOperationResponse(o *models.Operation) *api.OperationResponse {
	return &api.OperationResponse{
		ID:             o.ID,
		AppointmentID:  o.AppointmentID,
		ServiceID:      o.ServiceID,
		PersonnelID:    o.PersonnelID,
		CustomerID:     o.CustomerID,
		Amount:         o.Amount,
		CommissionPct:  o.CommissionPct,
		CommissionPaid: o.CommissionPaid,
		Points:         o.Points,
		Description:    o.Description,
		Notes:          o.Notes,
		Photos:         o.Photos,
		CreatedAt:      o.CreatedAt,
	}
}
