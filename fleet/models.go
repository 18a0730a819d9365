package fleet

import "time"

// Location is a point on the map. Address is optional.
type Location struct {
	Lat     float64 `json:"lat" validate:"latitude"`
	Lng     float64 `json:"lng" validate:"longitude"`
	Address string  `json:"address,omitempty"`
}

const (
	RouteStatusPlanned   = "planned"
	RouteStatusActive    = "active"
	RouteStatusCompleted = "completed"
	RouteStatusCancelled = "cancelled"
)

type Route struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Status               string     `json:"status"`
	Origin               Location   `json:"origin"`
	Destination          Location   `json:"destination"`
	Waypoints            []Location `json:"waypoints,omitempty"`
	DriverID             string     `json:"driverId,omitempty"`
	VehicleID            string     `json:"vehicleId,omitempty"`
	CargoIDs             []string   `json:"cargoIds,omitempty"`
	DistanceKm           float64    `json:"distanceKm"`
	EstimatedDurationMin int        `json:"estimatedDurationMin"`
	RiskScore            float64    `json:"riskScore"`
	RTOCompliant         bool       `json:"rtoCompliant"`
	ScheduledStart       *time.Time `json:"scheduledStart,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

type RouteFilter struct {
	Status   string `json:"status,omitempty" validate:"omitempty,oneof=planned active completed cancelled"`
	DriverID string `json:"driverId,omitempty"`
}

type RouteInput struct {
	Name           string     `json:"name" validate:"required,min=1,max=200"`
	Origin         Location   `json:"origin" validate:"required"`
	Destination    Location   `json:"destination" validate:"required"`
	Waypoints      []Location `json:"waypoints,omitempty" validate:"omitempty,dive"`
	DriverID       string     `json:"driverId,omitempty"`
	VehicleID      string     `json:"vehicleId,omitempty"`
	CargoIDs       []string   `json:"cargoIds,omitempty"`
	ScheduledStart *time.Time `json:"scheduledStart,omitempty"`
}

// RouteUpdate carries only the fields being changed.
type RouteUpdate struct {
	ID        string  `json:"-" validate:"required"`
	Name      *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Status    *string `json:"status,omitempty" validate:"omitempty,oneof=planned active completed cancelled"`
	DriverID  *string `json:"driverId,omitempty"`
	VehicleID *string `json:"vehicleId,omitempty"`
}

type RouteCalculationRequest struct {
	Origin      Location   `json:"origin" validate:"required"`
	Destination Location   `json:"destination" validate:"required"`
	Waypoints   []Location `json:"waypoints,omitempty" validate:"omitempty,dive"`
	VehicleID   string     `json:"vehicleId,omitempty"`
	AvoidTolls  bool       `json:"avoidTolls,omitempty"`
}

// RoutePlan is the backend's planning answer. Risk and compliance values are
// computed server side and treated as opaque.
type RoutePlan struct {
	DistanceKm   float64    `json:"distanceKm"`
	DurationMin  int        `json:"durationMin"`
	Polyline     string     `json:"polyline,omitempty"`
	Path         []Location `json:"path,omitempty"`
	RiskScore    float64    `json:"riskScore"`
	RTOCompliant bool       `json:"rtoCompliant"`
	Warnings     []string   `json:"warnings,omitempty"`
}

type RouteAnalytics struct {
	RouteID         string    `json:"routeId"`
	TotalDistanceKm float64   `json:"totalDistanceKm"`
	AvgSpeedKmh     float64   `json:"avgSpeedKmh"`
	FuelUsedLitres  float64   `json:"fuelUsedLitres"`
	OnTimeRate      float64   `json:"onTimeRate"`
	Incidents       int       `json:"incidents"`
	GeneratedAt     time.Time `json:"generatedAt"`
}

const (
	DriverStatusAvailable = "available"
	DriverStatusOnRoute   = "on_route"
	DriverStatusOffDuty   = "off_duty"
	DriverStatusOnBreak   = "on_break"
)

type Driver struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Phone            string    `json:"phone,omitempty"`
	LicenseNumber    string    `json:"licenseNumber"`
	Status           string    `json:"status"`
	CurrentRouteID   string    `json:"currentRouteId,omitempty"`
	VehicleID        string    `json:"vehicleId,omitempty"`
	Location         *Location `json:"location,omitempty"`
	HoursDrivenToday float64   `json:"hoursDrivenToday"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type DriverFilter struct {
	Status string `json:"status,omitempty" validate:"omitempty,oneof=available on_route off_duty on_break"`
}

type DriverStatusUpdate struct {
	DriverID string    `json:"-" validate:"required"`
	Status   string    `json:"status" validate:"required,oneof=available on_route off_duty on_break"`
	Location *Location `json:"location,omitempty"`
}

const (
	VehicleStatusActive      = "active"
	VehicleStatusMaintenance = "maintenance"
	VehicleStatusInactive    = "inactive"
)

type Vehicle struct {
	ID            string    `json:"id"`
	Registration  string    `json:"registration"`
	Make          string    `json:"make"`
	Model         string    `json:"model"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	FuelLevel     float64   `json:"fuelLevel"`
	OdometerKm    float64   `json:"odometerKm"`
	CapacityKg    float64   `json:"capacityKg"`
	DriverID      string    `json:"driverId,omitempty"`
	NextServiceKm float64   `json:"nextServiceKm"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type VehicleFilter struct {
	Status string `json:"status,omitempty" validate:"omitempty,oneof=active maintenance inactive"`
}

type FuelUpdate struct {
	VehicleID string  `json:"-" validate:"required"`
	FuelLevel float64 `json:"fuelLevel" validate:"gte=0,lte=100"`
}

type OdometerUpdate struct {
	VehicleID  string  `json:"-" validate:"required"`
	OdometerKm float64 `json:"odometerKm" validate:"gte=0"`
}

const (
	CargoStatusPending   = "pending"
	CargoStatusLoaded    = "loaded"
	CargoStatusInTransit = "in_transit"
	CargoStatusDelivered = "delivered"
)

type Cargo struct {
	ID              string    `json:"id"`
	Description     string    `json:"description"`
	WeightKg        float64   `json:"weightKg"`
	VolumeM3        float64   `json:"volumeM3"`
	Status          string    `json:"status"`
	RouteID         string    `json:"routeId,omitempty"`
	Hazardous       bool      `json:"hazardous"`
	DeliveryAddress string    `json:"deliveryAddress"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type CargoFilter struct {
	Status  string `json:"status,omitempty" validate:"omitempty,oneof=pending loaded in_transit delivered"`
	RouteID string `json:"routeId,omitempty"`
}

type CargoInput struct {
	Description     string  `json:"description" validate:"required,max=500"`
	WeightKg        float64 `json:"weightKg" validate:"gt=0"`
	VolumeM3        float64 `json:"volumeM3" validate:"gte=0"`
	Hazardous       bool    `json:"hazardous"`
	DeliveryAddress string  `json:"deliveryAddress" validate:"required"`
	RouteID         string  `json:"routeId,omitempty"`
}

type CargoUpdate struct {
	ID       string   `json:"-" validate:"required"`
	Status   *string  `json:"status,omitempty" validate:"omitempty,oneof=pending loaded in_transit delivered"`
	RouteID  *string  `json:"routeId,omitempty"`
	WeightKg *float64 `json:"weightKg,omitempty" validate:"omitempty,gt=0"`
}

type Weather struct {
	Location        Location  `json:"location"`
	TemperatureC    float64   `json:"temperatureC"`
	Conditions      string    `json:"conditions"`
	WindSpeedKmh    float64   `json:"windSpeedKmh"`
	PrecipitationMm float64   `json:"precipitationMm"`
	VisibilityKm    float64   `json:"visibilityKm"`
	ObservedAt      time.Time `json:"observedAt"`
}

type ForecastDay struct {
	Date                string  `json:"date"`
	MinC                float64 `json:"minC"`
	MaxC                float64 `json:"maxC"`
	Conditions          string  `json:"conditions"`
	PrecipitationChance float64 `json:"precipitationChance"`
}

type Forecast struct {
	Location Location      `json:"location"`
	Days     []ForecastDay `json:"days"`
}

type RouteWeatherSegment struct {
	Location Location  `json:"location"`
	ETA      time.Time `json:"eta"`
	Weather  Weather   `json:"weather"`
}

type RouteForecast struct {
	RouteID  string                `json:"routeId"`
	Segments []RouteWeatherSegment `json:"segments"`
}

type HazardWarning struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Severity    string    `json:"severity"`
	Description string    `json:"description"`
	Area        Location  `json:"area"`
	RadiusKm    float64   `json:"radiusKm"`
	ValidUntil  time.Time `json:"validUntil"`
}

type WeatherQuery struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

type ForecastQuery struct {
	Lat  float64 `json:"lat" validate:"latitude"`
	Lng  float64 `json:"lng" validate:"longitude"`
	Days int     `json:"days" validate:"gte=1,lte=14"`
}

type HazardQuery struct {
	Lat      float64 `json:"lat" validate:"latitude"`
	Lng      float64 `json:"lng" validate:"longitude"`
	RadiusKm float64 `json:"radiusKm" validate:"gt=0,lte=500"`
}

type GeocodeResult struct {
	Address    string   `json:"address"`
	Location   Location `json:"location"`
	PlaceID    string   `json:"placeId,omitempty"`
	Confidence float64  `json:"confidence"`
}

type GeocodeQuery struct {
	Query string `json:"q" validate:"required,min=2,max=200"`
	Limit int    `json:"limit,omitempty" validate:"omitempty,gte=1,lte=50"`
}

type ReverseGeocodeQuery struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}
