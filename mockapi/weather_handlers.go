package mockapi

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/fleet-console/fleet"
)

const (
	earthRadiusKm  = 6371.0
	avgSpeedKmh    = 75.0
	maxForecastDay = 14
)

var conditions = []string{"clear", "partly cloudy", "overcast", "light rain", "showers", "windy"}

// places backs the geocoding answers.
var places = []fleet.GeocodeResult{
	{Address: "Sydney NSW", Location: fleet.Location{Lat: -33.8688, Lng: 151.2093, Address: "Sydney NSW"}, PlaceID: "place-syd"},
	{Address: "Newcastle NSW", Location: fleet.Location{Lat: -32.9283, Lng: 151.7817, Address: "Newcastle NSW"}, PlaceID: "place-ntl"},
	{Address: "Wollongong NSW", Location: fleet.Location{Lat: -34.4278, Lng: 150.8931, Address: "Wollongong NSW"}, PlaceID: "place-wol"},
	{Address: "Canberra ACT", Location: fleet.Location{Lat: -35.2809, Lng: 149.1300, Address: "Canberra ACT"}, PlaceID: "place-cbr"},
	{Address: "Newcastle Port NSW", Location: fleet.Location{Lat: -32.9170, Lng: 151.7900, Address: "Newcastle Port NSW"}, PlaceID: "place-ntp"},
}

func distanceKm(a, b fleet.Location) float64 {
	rad := math.Pi / 180
	dLat := (b.Lat - a.Lat) * rad
	dLng := (b.Lng - a.Lng) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*rad)*math.Cos(b.Lat*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// planRoute derives a plan from the straight-line legs. Risk grows with
// distance and the plan is compliant while a single shift covers it.
func planRoute(origin, destination fleet.Location, waypoints []fleet.Location) fleet.RoutePlan {
	path := append(append([]fleet.Location{origin}, waypoints...), destination)
	var km float64
	for i := 1; i < len(path); i++ {
		km += distanceKm(path[i-1], path[i])
	}
	km = math.Round(km*10) / 10
	duration := int(math.Ceil(km / avgSpeedKmh * 60))
	plan := fleet.RoutePlan{
		DistanceKm:   km,
		DurationMin:  duration,
		Path:         path,
		RiskScore:    math.Round(math.Min(1, km/1000+0.1)*100) / 100,
		RTOCompliant: duration <= 12*60,
	}
	if duration > 5*60 {
		plan.Warnings = append(plan.Warnings, "Journey exceeds 5 hours; a rest break is required.")
	}
	if !plan.RTOCompliant {
		plan.Warnings = append(plan.Warnings, "Journey exceeds the maximum work period for a single shift.")
	}
	return plan
}

// weatherAt is deterministic for a location and day so repeated reads agree.
func weatherAt(loc fleet.Location, at time.Time) fleet.Weather {
	seed := int(math.Abs(loc.Lat*100)+math.Abs(loc.Lng*100)) + at.YearDay()
	return fleet.Weather{
		Location:        loc,
		TemperatureC:    float64(12 + seed%18),
		Conditions:      conditions[seed%len(conditions)],
		WindSpeedKmh:    float64(5 + seed%40),
		PrecipitationMm: float64(seed%7) / 2,
		VisibilityKm:    float64(4 + seed%16),
		ObservedAt:      at.Truncate(time.Minute),
	}
}

// coordsQuery reads lat and lng, answering 400 when either is missing or out
// of range.
func coordsQuery(w http.ResponseWriter, r *http.Request) (fleet.Location, bool) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if errLat != nil || errLng != nil || math.Abs(lat) > 90 || math.Abs(lng) > 180 {
		writeMessage(w, http.StatusBadRequest, "lat and lng are required")
		return fleet.Location{}, false
	}
	return fleet.Location{Lat: lat, Lng: lng}, true
}

func (s *Server) CurrentWeatherHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loc, ok := coordsQuery(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, weatherAt(loc, s.nowFunc()))
	}
}

func (s *Server) ForecastHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loc, ok := coordsQuery(w, r)
		if !ok {
			return
		}
		days, err := strconv.Atoi(r.URL.Query().Get("days"))
		if err != nil || days < 1 || days > maxForecastDay {
			days = 5
		}
		now := s.nowFunc()
		forecast := fleet.Forecast{Location: loc}
		for i := 0; i < days; i++ {
			day := now.AddDate(0, 0, i)
			wx := weatherAt(loc, day)
			forecast.Days = append(forecast.Days, fleet.ForecastDay{
				Date:                day.Format(time.DateOnly),
				MinC:                wx.TemperatureC - 6,
				MaxC:                wx.TemperatureC + 4,
				Conditions:          wx.Conditions,
				PrecipitationChance: math.Min(1, wx.PrecipitationMm/3),
			})
		}
		writeJSON(w, http.StatusOK, forecast)
	}
}

func (s *Server) RouteForecastHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		route, err := s.data.routes.Get(r.PathValue("id"))
		if err != nil {
			writeMessage(w, http.StatusNotFound, "not found")
			return
		}
		start := s.nowFunc()
		if route.ScheduledStart != nil {
			start = *route.ScheduledStart
		}
		plan := planRoute(route.Origin, route.Destination, route.Waypoints)
		forecast := fleet.RouteForecast{RouteID: route.ID}
		var travelled float64
		for i, loc := range plan.Path {
			if i > 0 {
				travelled += distanceKm(plan.Path[i-1], loc)
			}
			eta := start.Add(time.Duration(travelled / avgSpeedKmh * float64(time.Hour)))
			forecast.Segments = append(forecast.Segments, fleet.RouteWeatherSegment{
				Location: loc,
				ETA:      eta.Truncate(time.Minute),
				Weather:  weatherAt(loc, eta),
			})
		}
		writeJSON(w, http.StatusOK, forecast)
	}
}

func (s *Server) HazardsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loc, ok := coordsQuery(w, r)
		if !ok {
			return
		}
		radius, err := strconv.ParseFloat(r.URL.Query().Get("radiusKm"), 64)
		if err != nil || radius <= 0 {
			radius = 50
		}
		now := s.nowFunc()
		hazards := []fleet.HazardWarning{}
		for i, p := range places {
			if distanceKm(loc, p.Location) > radius {
				continue
			}
			wx := weatherAt(p.Location, now)
			if wx.WindSpeedKmh < 30 && wx.PrecipitationMm < 2 {
				continue
			}
			kind, severity := "wind", "moderate"
			if wx.PrecipitationMm >= 2 {
				kind = "heavy_rain"
			}
			if wx.WindSpeedKmh >= 40 {
				severity = "severe"
			}
			hazards = append(hazards, fleet.HazardWarning{
				ID:          fmt.Sprintf("hazard-%d-%d", i, now.YearDay()),
				Type:        kind,
				Severity:    severity,
				Description: fmt.Sprintf("%s near %s", strings.ReplaceAll(kind, "_", " "), p.Address),
				Area:        p.Location,
				RadiusKm:    20,
				ValidUntil:  now.Add(6 * time.Hour).Truncate(time.Hour),
			})
		}
		writeJSON(w, http.StatusOK, hazards)
	}
}

func (s *Server) GeocodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
		if len(q) < 2 {
			writeMessage(w, http.StatusBadRequest, "q must be at least 2 characters")
			return
		}
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil || limit < 1 {
			limit = 10
		}
		results := []fleet.GeocodeResult{}
		for _, p := range places {
			if !strings.Contains(strings.ToLower(p.Address), q) {
				continue
			}
			p.Confidence = math.Round(float64(len(q))/float64(len(p.Address))*100) / 100
			results = append(results, p)
			if len(results) == limit {
				break
			}
		}
		writeJSON(w, http.StatusOK, results)
	}
}

func (s *Server) ReverseGeocodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loc, ok := coordsQuery(w, r)
		if !ok {
			return
		}
		nearest, best := places[0], math.MaxFloat64
		for _, p := range places {
			if d := distanceKm(loc, p.Location); d < best {
				nearest, best = p, d
			}
		}
		nearest.Confidence = math.Round(math.Max(0, 1-best/100)*100) / 100
		writeJSON(w, http.StatusOK, nearest)
	}
}

func (s *Server) CalculateRouteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req fleet.RouteCalculationRequest
		if !validBody(w, r, &req) {
			return
		}
		writeJSON(w, http.StatusOK, planRoute(req.Origin, req.Destination, req.Waypoints))
	}
}

func (s *Server) RouteAnalyticsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		route, err := s.data.routes.Get(r.PathValue("id"))
		if err != nil {
			writeMessage(w, http.StatusNotFound, "not found")
			return
		}
		analytics := fleet.RouteAnalytics{
			RouteID:         route.ID,
			TotalDistanceKm: route.DistanceKm,
			FuelUsedLitres:  math.Round(route.DistanceKm*0.28*10) / 10,
			OnTimeRate:      math.Round((1-route.RiskScore/2)*100) / 100,
			GeneratedAt:     s.nowFunc(),
		}
		if route.EstimatedDurationMin > 0 {
			analytics.AvgSpeedKmh = math.Round(route.DistanceKm/(float64(route.EstimatedDurationMin)/60)*10) / 10
		}
		if route.RiskScore > 0.5 {
			analytics.Incidents = 1
		}
		writeJSON(w, http.StatusOK, analytics)
	}
}
