package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"salon-service/api"
	"salon-service/internal/config"
	"salon-service/internal/models"
	"salon-service/pkg/response"
)

type noopLocker struct{}

func (noopLocker) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, nil
}

func (noopLocker) Unlock(ctx context.Context, key string) error { return nil }

func whKey(shopID string, weekday int) string {
	return fmt.Sprintf("%s/%d", shopID, weekday)
}

type memStore struct {
	appointments map[string]*models.Appointment
	services     map[string]*models.Service
	personnel    map[string]*models.Personnel
	customers    map[string]*models.Customer
	workingHours map[string]*models.WorkingHour
	operations   []*models.Operation

	statsRecomputed []string
	failUpsertFor   map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		appointments: map[string]*models.Appointment{},
		services:     map[string]*models.Service{},
		personnel:    map[string]*models.Personnel{},
		customers:    map[string]*models.Customer{},
		workingHours: map[string]*models.WorkingHour{},
	}
}

func (m *memStore) CreateAppointment(_ context.Context, a *models.Appointment) error {
	cp := *a
	m.appointments[a.ID] = &cp
	return nil
}

func (m *memStore) GetAppointment(_ context.Context, id string) (*models.Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return nil, response.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) ListAppointments(_ context.Context, filters *models.AppointmentFilters) ([]*models.Appointment, error) {
	var result []*models.Appointment
	for _, a := range m.appointments {
		if filters != nil {
			if filters.Date != nil && a.Date != *filters.Date {
				continue
			}
			if filters.ShopID != nil && a.ShopID != *filters.ShopID {
				continue
			}
			if filters.PersonnelID != nil && a.PersonnelID != *filters.PersonnelID {
				continue
			}
			if filters.CustomerID != nil && a.CustomerID != *filters.CustomerID {
				continue
			}
			if filters.Status != nil && string(a.Status) != *filters.Status {
				continue
			}
		}
		cp := *a
		result = append(result, &cp)
	}
	return result, nil
}

func (m *memStore) UpdateAppointmentStatus(_ context.Context, id string, status models.AppointmentStatus) error {
	a, ok := m.appointments[id]
	if !ok {
		return response.ErrNotFound
	}
	a.Status = status
	return nil
}

func (m *memStore) GetServicesByIDs(_ context.Context, ids []string) ([]*models.Service, error) {
	var result []*models.Service
	for _, id := range ids {
		if svc, ok := m.services[id]; ok {
			cp := *svc
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *memStore) GetPersonnel(_ context.Context, id string) (*models.Personnel, error) {
	p, ok := m.personnel[id]
	if !ok {
		return nil, response.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetCustomer(_ context.Context, id string) (*models.Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return nil, response.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) GetWorkingHour(_ context.Context, shopID string, weekday int) (*models.WorkingHour, error) {
	wh, ok := m.workingHours[whKey(shopID, weekday)]
	if !ok {
		return nil, response.ErrNotFound
	}
	cp := *wh
	return &cp, nil
}

func (m *memStore) UpsertOperation(_ context.Context, o *models.Operation) (*models.Operation, error) {
	if err, ok := m.failUpsertFor[o.ServiceID]; ok {
		return nil, err
	}
	for _, existing := range m.operations {
		if existing.AppointmentID != nil && o.AppointmentID != nil &&
			*existing.AppointmentID == *o.AppointmentID &&
			existing.ServiceID == o.ServiceID &&
			existing.PersonnelID == o.PersonnelID {
			existing.Amount = o.Amount
			existing.CommissionPct = o.CommissionPct
			existing.CommissionPaid = o.CommissionPaid
			existing.Points = o.Points
			existing.Description = o.Description
			existing.Notes = o.Notes
			cp := *existing
			return &cp, nil
		}
	}
	cp := *o
	cp.CreatedAt = time.Now()
	m.operations = append(m.operations, &cp)
	out := cp
	return &out, nil
}

func (m *memStore) InsertOperation(_ context.Context, o *models.Operation) (*models.Operation, error) {
	cp := *o
	cp.CreatedAt = time.Now()
	m.operations = append(m.operations, &cp)
	out := cp
	return &out, nil
}

func (m *memStore) GetOperation(_ context.Context, id string) (*models.Operation, error) {
	for _, o := range m.operations {
		if o.ID == id {
			cp := *o
			return &cp, nil
		}
	}
	return nil, response.ErrNotFound
}

func (m *memStore) ListOperations(_ context.Context, filters *models.OperationFilters) ([]*models.Operation, error) {
	var result []*models.Operation
	for _, o := range m.operations {
		if filters != nil {
			if filters.PersonnelID != nil && o.PersonnelID != *filters.PersonnelID {
				continue
			}
			if filters.CustomerID != nil && o.CustomerID != *filters.CustomerID {
				continue
			}
			if filters.AppointmentID != nil && (o.AppointmentID == nil || *o.AppointmentID != *filters.AppointmentID) {
				continue
			}
		}
		cp := *o
		result = append(result, &cp)
	}
	return result, nil
}

func (m *memStore) RecomputeShopStats(_ context.Context, shopID string) error {
	m.statsRecomputed = append(m.statsRecomputed, shopID)
	return nil
}

func (m *memStore) GetShopStats(_ context.Context, shopID string) (*models.ShopStats, error) {
	return nil, response.ErrNotFound
}

func defaultSchedule() config.Schedule {
	return config.Schedule{
		OpenTime:  "09:00",
		CloseTime: "19:00",
		SlotStep:  30 * time.Minute,
	}
}

func newTestService(store *memStore) *Service {
	return NewService(store, noopLocker{}, defaultSchedule())
}

func seedShop(store *memStore) {
	store.personnel["P1"] = &models.Personnel{
		ID:            "P1",
		ShopID:        "D1",
		Name:          "Ayse",
		CommissionPct: 30,
	}
	store.customers["C1"] = &models.Customer{
		ID:        "C1",
		FirstName: "Mehmet",
		LastName:  "Yilmaz",
	}
	store.services["S1"] = &models.Service{
		ID:     "S1",
		ShopID: "D1",
		Name:   "Haircut",
		Price:  150,
		Points: 5,
	}
	store.services["S2"] = &models.Service{
		ID:     "S2",
		ShopID: "D1",
		Name:   "Beard trim",
		Price:  80,
		Points: 2,
	}
}

func seedAppointment(store *memStore, id string, services []string, status models.AppointmentStatus) {
	store.appointments[id] = &models.Appointment{
		ID:          id,
		Date:        "2025-03-10",
		Time:        "10:00",
		ShopID:      "D1",
		PersonnelID: "P1",
		CustomerID:  "C1",
		ServiceIDs:  services,
		Status:      status,
	}
}

// Slots

func TestAvailableSlots_EmptyDayIsCanonicalGrid(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	slots, err := svc.AvailableSlots(context.Background(), &api.AvailableSlotsRequest{Date: "2025-03-10"})
	if err != nil {
		t.Fatalf("available slots failed: %v", err)
	}
	if len(slots) != 20 {
		t.Fatalf("expected 20 slots, got %d", len(slots))
	}
	if slots[0] != "09:00" || slots[19] != "18:30" {
		t.Fatalf("expected 09:00..18:30, got %s..%s", slots[0], slots[len(slots)-1])
	}
}

func TestAvailableSlots_BookedExcludedCancelledKept(t *testing.T) {
	store := newMemStore()
	seedShop(store)
	seedAppointment(store, "A1", []string{"S1"}, models.AppointmentConfirmed)
	store.appointments["A2"] = &models.Appointment{
		ID: "A2", Date: "2025-03-10", Time: "11:00",
		ShopID: "D1", PersonnelID: "P1", CustomerID: "C1",
		ServiceIDs: []string{"S2"}, Status: models.AppointmentCancelled,
	}
	svc := newTestService(store)

	shop := "D1"
	slots, err := svc.AvailableSlots(context.Background(), &api.AvailableSlotsRequest{Date: "2025-03-10", ShopID: &shop})
	if err != nil {
		t.Fatalf("available slots failed: %v", err)
	}
	if len(slots) != 19 {
		t.Fatalf("expected 19 slots, got %d", len(slots))
	}
	for _, mark := range slots {
		if mark == "10:00" {
			t.Fatal("booked slot 10:00 still offered")
		}
	}
	found := false
	for _, mark := range slots {
		if mark == "11:00" {
			found = true
		}
	}
	if !found {
		t.Fatal("cancelled appointment should free its slot")
	}
}

func TestAvailableSlots_TodayDropsPastMarks(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	svc.now = func() time.Time {
		return time.Date(2025, 3, 10, 14, 5, 0, 0, time.UTC)
	}

	slots, err := svc.AvailableSlots(context.Background(), &api.AvailableSlotsRequest{Date: "2025-03-10"})
	if err != nil {
		t.Fatalf("available slots failed: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("expected remaining slots")
	}
	if slots[0] != "14:30" {
		t.Fatalf("expected first slot 14:30, got %s", slots[0])
	}
}

func TestAvailableSlots_InvalidDate(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	_, err := svc.AvailableSlots(context.Background(), &api.AvailableSlotsRequest{Date: ""})
	if !errors.Is(err, response.ErrBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestAvailableSlots_WorkingHours(t *testing.T) {
	store := newMemStore()
	// 2025-03-10 is a Monday.
	store.workingHours[whKey("D1", int(time.Monday))] = &models.WorkingHour{
		ShopID: "D1", Weekday: int(time.Monday), OpenTime: "10:00", CloseTime: "12:00",
	}
	store.workingHours[whKey("D1", int(time.Tuesday))] = &models.WorkingHour{
		ShopID: "D1", Weekday: int(time.Tuesday), Closed: true,
	}
	svc := newTestService(store)
	shop := "D1"

	slots, err := svc.AvailableSlots(context.Background(), &api.AvailableSlotsRequest{Date: "2025-03-10", ShopID: &shop})
	if err != nil {
		t.Fatalf("available slots failed: %v", err)
	}
	want := []string{"10:00", "10:30", "11:00", "11:30"}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d (%v)", len(want), len(slots), slots)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("expected slot %s at %d, got %s", want[i], i, slots[i])
		}
	}

	slots, err = svc.AvailableSlots(context.Background(), &api.AvailableSlotsRequest{Date: "2025-03-11", ShopID: &shop})
	if err != nil {
		t.Fatalf("available slots failed: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots on a closed day, got %d", len(slots))
	}
}

// Completion

func TestCompleteAppointment_CommissionFanOut(t *testing.T) {
	store := newMemStore()
	seedShop(store)
	seedAppointment(store, "A1", []string{"S1", "S2"}, models.AppointmentConfirmed)
	svc := newTestService(store)

	result, err := svc.CompleteAppointment(context.Background(), "A1")
	if err != nil {
		t.Fatalf("completion failed: %v", err)
	}
	if len(result.Failed) != 0 {
		t.Fatalf("expected no per-item failures, got %v", result.Failed)
	}
	if len(result.Operations) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(result.Operations))
	}

	byService := map[string]*api.OperationResponse{}
	for _, o := range result.Operations {
		byService[o.ServiceID] = o
	}

	s1 := byService["S1"]
	if s1 == nil || s1.Amount != 150 || s1.Points != 5 || s1.CommissionPaid != 45 {
		t.Fatalf("unexpected S1 operation: %+v", s1)
	}
	s2 := byService["S2"]
	if s2 == nil || s2.Amount != 80 || s2.Points != 2 || s2.CommissionPaid != 24 {
		t.Fatalf("unexpected S2 operation: %+v", s2)
	}

	if store.appointments["A1"].Status != models.AppointmentCompleted {
		t.Fatalf("expected appointment completed, got %s", store.appointments["A1"].Status)
	}
	if len(store.statsRecomputed) != 1 || store.statsRecomputed[0] != "D1" {
		t.Fatalf("expected shop stats recompute for D1, got %v", store.statsRecomputed)
	}
}

func TestCompleteAppointment_RerunUpdatesInPlace(t *testing.T) {
	store := newMemStore()
	seedShop(store)
	seedAppointment(store, "A1", []string{"S1", "S2"}, models.AppointmentConfirmed)
	svc := newTestService(store)

	if _, err := svc.CompleteAppointment(context.Background(), "A1"); err != nil {
		t.Fatalf("first completion failed: %v", err)
	}

	// Price change between runs must land on the existing rows.
	store.services["S1"].Price = 200

	result, err := svc.CompleteAppointment(context.Background(), "A1")
	if err != nil {
		t.Fatalf("second completion failed: %v", err)
	}
	if len(result.Operations) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(result.Operations))
	}
	if len(store.operations) != 2 {
		t.Fatalf("expected 2 stored operations after rerun, got %d", len(store.operations))
	}
	for _, o := range store.operations {
		if o.ServiceID == "S1" && o.CommissionPaid != 60 {
			t.Fatalf("expected updated commission 60, got %v", o.CommissionPaid)
		}
	}
}

func TestCompleteAppointment_EmptyServices(t *testing.T) {
	store := newMemStore()
	seedShop(store)
	seedAppointment(store, "A1", nil, models.AppointmentConfirmed)
	svc := newTestService(store)

	_, err := svc.CompleteAppointment(context.Background(), "A1")
	if !errors.Is(err, response.ErrNoServices) {
		t.Fatalf("expected no-services error, got %v", err)
	}
	if len(store.operations) != 0 {
		t.Fatalf("expected zero operations, got %d", len(store.operations))
	}
}

func TestCompleteAppointment_PartialFailureContinues(t *testing.T) {
	store := newMemStore()
	seedShop(store)
	seedAppointment(store, "A1", []string{"S1", "S2"}, models.AppointmentConfirmed)
	store.failUpsertFor = map[string]error{"S1": errors.New("write failed")}
	svc := newTestService(store)

	result, err := svc.CompleteAppointment(context.Background(), "A1")
	if err != nil {
		t.Fatalf("completion failed: %v", err)
	}
	if len(result.Failed) != 1 || result.Failed[0].ServiceID != "S1" {
		t.Fatalf("expected S1 failure reported, got %v", result.Failed)
	}
	if len(result.Operations) != 1 || result.Operations[0].ServiceID != "S2" {
		t.Fatalf("expected S2 still processed, got %v", result.Operations)
	}
}

func TestCompleteAppointment_CancelledRejected(t *testing.T) {
	store := newMemStore()
	seedShop(store)
	seedAppointment(store, "A1", []string{"S1"}, models.AppointmentCancelled)
	svc := newTestService(store)

	_, err := svc.CompleteAppointment(context.Background(), "A1")
	if !errors.Is(err, response.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

// Manual operations

func TestCreateOperation_DefaultsFromRecords(t *testing.T) {
	store := newMemStore()
	seedShop(store)
	svc := newTestService(store)

	created, err := svc.CreateOperation(context.Background(), &api.OperationCreateRequest{
		PersonnelID: "P1",
		CustomerID:  "C1",
		ServiceID:   "S1",
	})
	if err != nil {
		t.Fatalf("create operation failed: %v", err)
	}
	if created.Amount != 150 || created.Points != 5 {
		t.Fatalf("expected amount/points from service record, got %+v", created)
	}
	if created.CommissionPct != 30 || created.CommissionPaid != 45 {
		t.Fatalf("expected commission from personnel record, got %+v", created)
	}
	if created.Description == "" {
		t.Fatal("expected generated description")
	}

	// No idempotence on the manual path: a second call inserts again.
	if _, err := svc.CreateOperation(context.Background(), &api.OperationCreateRequest{
		PersonnelID: "P1",
		CustomerID:  "C1",
		ServiceID:   "S1",
	}); err != nil {
		t.Fatalf("second create operation failed: %v", err)
	}
	if len(store.operations) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(store.operations))
	}
}

func TestCreateOperation_CallerOverrides(t *testing.T) {
	store := newMemStore()
	seedShop(store)
	svc := newTestService(store)

	amount := 200.0
	pct := 40.0
	created, err := svc.CreateOperation(context.Background(), &api.OperationCreateRequest{
		PersonnelID:   "P1",
		CustomerID:    "C1",
		ServiceID:     "S1",
		Amount:        &amount,
		CommissionPct: &pct,
	})
	if err != nil {
		t.Fatalf("create operation failed: %v", err)
	}
	if created.CommissionPaid != 80 {
		t.Fatalf("expected commission 80 for 200 at 40%%, got %v", created.CommissionPaid)
	}
}

// Appointments

func TestCreateAppointment_SlotConflict(t *testing.T) {
	store := newMemStore()
	seedShop(store)
	svc := newTestService(store)

	req := &api.AppointmentRequest{
		Date:        "2025-03-10",
		Time:        "10:00",
		ShopID:      "D1",
		PersonnelID: "P1",
		CustomerID:  "C1",
		ServiceIDs:  []string{"S1"},
	}

	first, err := svc.CreateAppointment(context.Background(), req)
	if err != nil {
		t.Fatalf("create appointment failed: %v", err)
	}
	if first.Status != string(models.AppointmentPending) {
		t.Fatalf("expected pending status, got %s", first.Status)
	}

	_, err = svc.CreateAppointment(context.Background(), req)
	if !errors.Is(err, response.ErrSlotNotAvailable) {
		t.Fatalf("expected slot conflict, got %v", err)
	}

	// Cancelling frees the slot for rebooking.
	if _, err := svc.CancelAppointment(context.Background(), first.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := svc.CreateAppointment(context.Background(), req); err != nil {
		t.Fatalf("rebooking a freed slot failed: %v", err)
	}
}

func TestAppointmentTransitions(t *testing.T) {
	store := newMemStore()
	seedShop(store)
	seedAppointment(store, "A1", []string{"S1"}, models.AppointmentPending)
	svc := newTestService(store)

	confirmed, err := svc.ConfirmAppointment(context.Background(), "A1")
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if confirmed.Status != string(models.AppointmentConfirmed) {
		t.Fatalf("expected confirmed, got %s", confirmed.Status)
	}

	if _, err := svc.ConfirmAppointment(context.Background(), "A1"); !errors.Is(err, response.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition on double confirm, got %v", err)
	}

	if _, err := svc.CompleteAppointment(context.Background(), "A1"); err != nil {
		t.Fatalf("completion failed: %v", err)
	}

	if _, err := svc.CancelAppointment(context.Background(), "A1"); !errors.Is(err, response.ErrInvalidTransition) {
		t.Fatalf("expected completed appointment to be uncancellable, got %v", err)
	}
}
