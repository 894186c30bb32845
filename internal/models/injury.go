package models

import "time"

// Date and time layouts of the recorded history, matching what the mobile
// app stores (en-US locale).
const (
	DateLayout = "1/2/2006"
	TimeLayout = "3:04:05 PM"
)

// InjuryRecord is one detected high-acceleration event
type InjuryRecord struct {
	ID          string    `json:"id"`
	DeviceID    string    `json:"device_id"`
	Date        string    `json:"date"` // 1/2/2006
	Time        string    `json:"time"` // 3:04:05 PM
	InjuryCount int       `json:"injury_count"`
	Direction   string    `json:"direction"`
	X           float64   `json:"x"` // corrected sample
	Y           float64   `json:"y"`
	Z           float64   `json:"z"`
	Magnitude   float64   `json:"magnitude"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// ManualInjury is an injury entered by hand on the head model, scored with
// the Glasgow Coma Scale.
type ManualInjury struct {
	ID          string    `json:"id"`
	Region      string    `json:"region"`
	MeshName    string    `json:"mesh_name"`
	X           float64   `json:"x"` // point on the head model
	Y           float64   `json:"y"`
	Z           float64   `json:"z"`
	Eye         int       `json:"eye"`
	Verbal      int       `json:"verbal"`
	Motor       int       `json:"motor"`
	Total       int       `json:"total"`
	Severity    string    `json:"severity"`
	InjuryDate  string    `json:"injury_date"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// NotificationType labels live feed messages
type NotificationType string

const (
	NotificationInjury      NotificationType = "injury"
	NotificationCalibration NotificationType = "calibration"
	NotificationError       NotificationType = "error"
	NotificationStatus      NotificationType = "status"
)

// Notification is pushed to live feed subscribers
type Notification struct {
	Type      NotificationType `json:"type"`
	DeviceID  string           `json:"device_id"`
	Message   string           `json:"message"`
	Record    *InjuryRecord    `json:"record,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}
