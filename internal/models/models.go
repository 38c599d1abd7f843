package models

// Coord is a WGS84 point. Payloads carry lat/lon as a JSON object.
type Coord struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lon float64 `json:"lon" validate:"longitude"`
}

type StopType string

const (
	StopPickup  StopType = "PICKUP"
	StopDropoff StopType = "DROPOFF"
)

type StopStatus string

const (
	StopUpcoming  StopStatus = "UPCOMING"
	StopCurrent   StopStatus = "CURRENT"
	StopCompleted StopStatus = "COMPLETED"
)

// Stop is one pickup or drop-off inside a driver's consolidated itinerary.
// Coordinates may be absent; such stops stay in the list but are never
// rendered on the map.
type Stop struct {
	StopID         string     `json:"stopId"`
	BookingID      string     `json:"bookingId"`
	Type           StopType   `json:"type"`
	Status         StopStatus `json:"status"`
	Coordinates    *Coord     `json:"coordinates,omitempty"`
	PassengerName  string     `json:"passengerName"`
	PassengerCount int        `json:"passengerCount"`
	Address        string     `json:"address"`
	Note           string     `json:"note,omitempty"`
}

// RouteSegment is one geometric piece of the full route. Precise means real
// road geometry; otherwise the points are a straight-line approximation for
// this segment only.
type RouteSegment struct {
	Type    StopType `json:"type"`
	Points  []Coord  `json:"points" validate:"dive"`
	Precise bool     `json:"precise"`
}

// TripSnapshot is the server-authoritative view of one in-progress trip.
// Each poll response produces a fresh snapshot that fully replaces the
// previous one; there is no merging.
type TripSnapshot struct {
	Stops              []Stop         `json:"stops" validate:"dive"`
	CurrentStopIndex   int            `json:"currentStopIndex"`
	DriverPosition     *Coord         `json:"driverStartCoordinate,omitempty"`
	FullRouteSegments  []RouteSegment `json:"fullRouteSegments,omitempty" validate:"dive"`
	FullRoutePolyline  []Coord        `json:"fullRoutePolyline,omitempty" validate:"dive"`
	FullRouteIsPrecise bool           `json:"fullRouteIsPrecise"`

	// Aggregates, rendered as-is.
	TotalBookings   int     `json:"totalBookings"`
	CurrentCapacity int     `json:"currentCapacity"`
	MaxCapacity     int     `json:"maxCapacity"`
	TotalEarnings   float64 `json:"totalEarnings"`
}

// Active reports whether the snapshot carries an itinerary at all. A
// snapshot with zero stops means every overlay must be cleared.
func (s *TripSnapshot) Active() bool {
	return s != nil && len(s.Stops) > 0
}

// Normalize clamps fields the server may send out of range. The status
// sequence across stops is deliberately not enforced; the client tolerates
// server-side violations.
func (s *TripSnapshot) Normalize() {
	if s == nil {
		return
	}
	if s.CurrentStopIndex < 0 {
		s.CurrentStopIndex = 0
	}
	if n := len(s.Stops); n > 0 && s.CurrentStopIndex > n-1 {
		s.CurrentStopIndex = n - 1
	}
	for i := range s.Stops {
		if s.Stops[i].PassengerCount < 1 {
			s.Stops[i].PassengerCount = 1
		}
	}
}

// CurrentStop returns the stop at the clamped current index, or nil when
// the itinerary is empty.
func (s *TripSnapshot) CurrentStop() *Stop {
	if !s.Active() {
		return nil
	}
	idx := s.CurrentStopIndex
	if idx < 0 {
		idx = 0
	}
	if idx > len(s.Stops)-1 {
		idx = len(s.Stops) - 1
	}
	return &s.Stops[idx]
}

// BookingIDs returns the distinct booking IDs across stops, in first-seen
// order.
func (s *TripSnapshot) BookingIDs() []string {
	if s == nil {
		return nil
	}
	seen := make(map[string]bool, len(s.Stops))
	out := make([]string, 0, len(s.Stops))
	for _, st := range s.Stops {
		if st.BookingID == "" || seen[st.BookingID] {
			continue
		}
		seen[st.BookingID] = true
		out = append(out, st.BookingID)
	}
	return out
}
