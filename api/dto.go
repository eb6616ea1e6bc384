package api

import "time"

// AvailableSlotsRequest matches the booking frontend's payload.
// dukkanId / personelId keys are kept for wire compatibility.
type AvailableSlotsRequest struct {
	Date        string  `json:"date"`
	ShopID      *string `json:"dukkanId,omitempty"`
	PersonnelID *string `json:"personelId,omitempty"`
}

type AppointmentRequest struct {
	Date        string   `json:"date"`
	Time        string   `json:"time"`
	ShopID      string   `json:"dukkan_id"`
	PersonnelID string   `json:"personel_id"`
	CustomerID  string   `json:"musteri_id"`
	ServiceIDs  []string `json:"islemler"`
	Notes       string   `json:"notlar,omitempty"`
}

type AppointmentResponse struct {
	ID          string    `json:"id"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	ShopID      string    `json:"dukkan_id"`
	PersonnelID string    `json:"personel_id"`
	CustomerID  string    `json:"musteri_id"`
	ServiceIDs  []string  `json:"islemler"`
	Status      string    `json:"status"`
	Notes       string    `json:"notlar,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type CompleteAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type OperationResponse struct {
	ID             string    `json:"id"`
	AppointmentID  *string   `json:"randevu_id,omitempty"`
	ServiceID      string    `json:"islem_id"`
	PersonnelID    string    `json:"personel_id"`
	CustomerID     string    `json:"musteri_id"`
	Amount         float64   `json:"tutar"`
	CommissionPct  float64   `json:"prim_yuzdesi"`
	CommissionPaid float64   `json:"odenen"`
	Points         int       `json:"puan"`
	Description    string    `json:"aciklama"`
	Notes          string    `json:"notlar,omitempty"`
	Photos         []string  `json:"photos,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// OperationItemError reports one failed service inside appointment
// completion. The rest of the services are still processed.
type OperationItemError struct {
	ServiceID string `json:"islem_id"`
	Error     string `json:"error"`
}

// OperationCreateRequest is the manual logging payload. Everything
// beyond the three IDs may be precomputed by the caller; omitted
// fields are recomputed server-side from the service and personnel
// records.
type OperationCreateRequest struct {
	PersonnelID    string   `json:"personel_id"`
	CustomerID     string   `json:"musteri_id"`
	ServiceID      string   `json:"islem_id"`
	Amount         *float64 `json:"tutar,omitempty"`
	Points         *int     `json:"puan,omitempty"`
	CommissionPct  *float64 `json:"prim_yuzdesi,omitempty"`
	CommissionPaid *float64 `json:"odenen,omitempty"`
	Description    string   `json:"aciklama,omitempty"`
	Notes          string   `json:"notlar,omitempty"`
	Photos         []string `json:"photos,omitempty"`
}

type ShopStatsResponse struct {
	ShopID          string    `json:"dukkan_id"`
	TotalRevenue    float64   `json:"toplam_ciro"`
	TotalCommission float64   `json:"toplam_prim"`
	TotalPoints     int       `json:"toplam_puan"`
	OperationCount  int       `json:"islem_sayisi"`
	UpdatedAt       time.Time `json:"updated_at"`
}
