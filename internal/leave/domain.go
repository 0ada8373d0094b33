// Package leave handles vacation, tijd-voor-tijd and sick-leave requests.
// These requests are stored only as their creating audit row; newValues holds
// the whole record including its status.
package leave

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/workforce-hq/workforce/internal/audit"
)

// Vacation types accepted on POST /vacations.
const (
	TypeVacation     = "vacation"
	TypeTijdVoorTijd = "tijd-voor-tijd"
)

// StatusPending is the status every new request starts in.
const StatusPending = "pending"

const dateLayout = "2006-01-02"

// VacationRecord is the newValues payload of a vacation-family row.
type VacationRecord struct {
	Type         string `json:"type"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	TotalDays    int    `json:"totalDays"`
	Description  string `json:"description"`
	Status       string `json:"status"`
	EmployeeID   string `json:"employeeId"`
	EmployeeName string `json:"employeeName,omitempty"`
}

// SickLeaveRecord is the newValues payload of a SICK_LEAVE_REQUEST row.
type SickLeaveRecord struct {
	StartDate          string  `json:"startDate"`
	EndDate            *string `json:"endDate,omitempty"`
	TotalDays          *int    `json:"totalDays,omitempty"`
	Reason             string  `json:"reason"`
	MedicalNote        string  `json:"medicalNote"`
	UWVReported        bool    `json:"uwvReported"`
	ExpectedReturnDate *string `json:"expectedReturnDate,omitempty"`
	Status             string  `json:"status"`
	EmployeeID         string  `json:"employeeId"`
	EmployeeName       string  `json:"employeeName,omitempty"`
}

// ActionForType maps a vacation type to its audit action.
func ActionForType(kind string) (string, error) {
	switch kind {
	case TypeVacation:
		return audit.ActionVacationRequest, nil
	case TypeTijdVoorTijd:
		return audit.ActionTijdVoorTijdRequest, nil
	}
	return "", fmt.Errorf("leave: unknown vacation type %q", kind)
}

const secondsPerDay = 24 * 60 * 60

// TotalDays counts calendar days from start to end, both included.
func TotalDays(start, end time.Time) int {
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	if end.Before(start) {
		return 0
	}
	// Unix seconds do not overflow for any four-digit year, unlike Duration.
	return int((end.Unix()-start.Unix())/secondsPerDay) + 1
}

// DecodeVacation reads the record embedded in a vacation-family row.
func DecodeVacation(e audit.Entry) (VacationRecord, error) {
	var rec VacationRecord
	if len(e.NewValues) > 0 {
		if err := json.Unmarshal(e.NewValues, &rec); err != nil {
			return VacationRecord{}, fmt.Errorf("leave: decode vacation %s: %w", e.ID, err)
		}
	}
	if rec.Type == "" && e.Action == audit.ActionTijdVoorTijdRequest {
		rec.Type = TypeTijdVoorTijd
	}
	if rec.Type == "" {
		rec.Type = TypeVacation
	}
	if rec.EmployeeID == "" {
		rec.EmployeeID = e.UserID
	}
	return rec, nil
}

// DecodeSickLeave reads the record embedded in a SICK_LEAVE_REQUEST row.
func DecodeSickLeave(e audit.Entry) (SickLeaveRecord, error) {
	var rec SickLeaveRecord
	if len(e.NewValues) > 0 {
		if err := json.Unmarshal(e.NewValues, &rec); err != nil {
			return SickLeaveRecord{}, fmt.Errorf("leave: decode sick leave %s: %w", e.ID, err)
		}
	}
	if rec.EmployeeID == "" {
		rec.EmployeeID = e.UserID
	}
	return rec, nil
}
