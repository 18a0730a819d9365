package notify

import "time"

type Type string

const (
	TypeRouteUpdate        Type = "route_update"
	TypeWeatherAlert       Type = "weather_alert"
	TypeDriverStatus       Type = "driver_status"
	TypeVehicleMaintenance Type = "vehicle_maintenance"
	TypeCargoUpdate        Type = "cargo_update"
	TypeRTOCompliance      Type = "rto_compliance"
	TypeSystem             Type = "system"
)

// Types lists every notification type in a stable order.
var Types = []Type{
	TypeRouteUpdate,
	TypeWeatherAlert,
	TypeDriverStatus,
	TypeVehicleMaintenance,
	TypeCargoUpdate,
	TypeRTOCompliance,
	TypeSystem,
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Notification is one real-time event shown in the notification centre.
type Notification struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Priority  Priority       `json:"priority"`
	Read      bool           `json:"read"`
	Data      map[string]any `json:"data,omitempty"`
}

// Toast is a transient banner raised for a high-priority arrival.
type Toast struct {
	Notification Notification `json:"notification"`
	ExpiresAt    time.Time    `json:"expiresAt"`
}
