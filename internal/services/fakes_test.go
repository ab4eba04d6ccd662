package services

import (
	"context"
	"errors"
	"route-validation-service/internal/adapters/repositories"
	"route-validation-service/internal/domain"
	"sync"
	"time"
)

var tripStart = time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)

const (
	tripVehicle = "GT-4411-19"
	tripRun     = "RUN-001"
	tripRoute   = "TEMA-KUMASI"
	tripLon     = -0.20
	tripLat0    = 5.70
	tripLatStep = 0.05 // about 5.56 km
)

// straightTrip returns n reports heading due north, one every step.
// With a five minute step the vehicle travels at roughly 67 km/h.
func straightTrip(n int, step time.Duration) []domain.PositionReport {
	out := make([]domain.PositionReport, n)
	for i := range out {
		out[i] = domain.PositionReport{
			VehicleID: tripVehicle,
			Latitude:  tripLat0 + float64(i)*tripLatStep,
			Longitude: tripLon,
			Timestamp: tripStart.Add(time.Duration(i) * step),
		}
	}
	return out
}

func tripRouteFor(n int) domain.PlannedRoute {
	return domain.PlannedRoute{
		RouteID: tripRoute,
		Waypoints: []domain.Coordinates{
			{Lat: tripLat0, Lon: tripLon},
			{Lat: tripLat0 + float64(n-1)*tripLatStep, Lon: tripLon},
		},
	}
}

func at(lat, lon float64, offset time.Duration) domain.PositionReport {
	return domain.PositionReport{VehicleID: tripVehicle, Latitude: lat, Longitude: lon, Timestamp: tripStart.Add(offset)}
}

// fakeRegistry is an in-memory ReferenceDataProvider with switchable failures.
type fakeRegistry struct {
	mu     sync.Mutex
	runs   map[string]domain.DeliveryRun
	routes map[string]domain.PlannedRoute
	eq     map[string]domain.EqualisationPoint
	stops  []domain.AuthorizedStop
	zones  []domain.RestrictedZone

	activeErr error
	routeErr  error
	stopErr   error
	zoneErr   error

	stopCalls int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		runs:   map[string]domain.DeliveryRun{},
		routes: map[string]domain.PlannedRoute{},
		eq:     map[string]domain.EqualisationPoint{},
	}
}

// withTrip registers an IN_TRANSIT run for the straight trip of n reports.
func (f *fakeRegistry) withTrip(n int, kmThreshold float64) *fakeRegistry {
	f.runs[tripRun] = domain.DeliveryRun{ID: tripRun, VehicleID: tripVehicle, RouteID: tripRoute, Status: domain.RunInTransit}
	f.routes[tripRoute] = tripRouteFor(n)
	f.eq[tripRoute] = domain.EqualisationPoint{RouteID: tripRoute, KmThreshold: kmThreshold}
	return f
}

func (f *fakeRegistry) setStatus(runID string, s domain.RunStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.runs[runID]
	r.Status = s
	f.runs[runID] = r
}

func (f *fakeRegistry) GetRun(_ context.Context, runID string) (domain.DeliveryRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[runID]
	if !ok {
		return domain.DeliveryRun{}, domain.ErrRunNotFound
	}
	return r, nil
}

func (f *fakeRegistry) setActiveErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activeErr = err
}

func (f *fakeRegistry) FindActiveRun(_ context.Context, vehicleID string) (domain.DeliveryRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activeErr != nil {
		return domain.DeliveryRun{}, f.activeErr
	}
	for _, r := range f.runs {
		if r.VehicleID == vehicleID && r.Status == domain.RunInTransit {
			return r, nil
		}
	}
	return domain.DeliveryRun{}, domain.ErrRunNotFound
}

func (f *fakeRegistry) GetPlannedRoute(_ context.Context, routeID string) (domain.PlannedRoute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.routeErr != nil {
		return domain.PlannedRoute{}, f.routeErr
	}
	r, ok := f.routes[routeID]
	if !ok {
		return domain.PlannedRoute{}, domain.ErrRouteNotFound
	}
	return r, nil
}

func (f *fakeRegistry) GetEqualisationPoint(_ context.Context, routeID string) (domain.EqualisationPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	eq, ok := f.eq[routeID]
	if !ok {
		return domain.EqualisationPoint{}, domain.ErrEqualisationPointNotFound
	}
	return eq, nil
}

func (f *fakeRegistry) IsAuthorizedStop(_ context.Context, loc domain.Coordinates, routeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	if f.stopErr != nil {
		return false, f.stopErr
	}
	for _, s := range f.stops {
		if (s.RouteID == "" || s.RouteID == routeID) && s.Contains(loc) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRegistry) IsRestrictedArea(_ context.Context, p domain.Coordinates) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.zoneErr != nil {
		return "", false, f.zoneErr
	}
	for _, z := range f.zones {
		if z.Contains(p) {
			return z.Name, true, nil
		}
	}
	return "", false, nil
}

// recordingSink collects alerts and results.
type recordingSink struct {
	mu      sync.Mutex
	alerts  []domain.Alert
	results []*domain.ValidationResult
}

func (s *recordingSink) Publish(_ context.Context, a domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *recordingSink) PublishResult(_ context.Context, res *domain.ValidationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
	return nil
}

func (s *recordingSink) alertTypes() []domain.AlertType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AlertType, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, a.Type)
	}
	return out
}

func (s *recordingSink) resultCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

var errStoreDown = errors.New("store down")

// flakyStore fails the first failures appends and counts every attempt.
type flakyStore struct {
	*repositories.MemoryTraceStore

	mu       sync.Mutex
	failures int
	attempts int
}

func (s *flakyStore) AppendReport(ctx context.Context, runID string, r domain.PositionReport) (*domain.Trace, error) {
	s.mu.Lock()
	s.attempts++
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()

	if fail {
		return nil, errStoreDown
	}
	return s.MemoryTraceStore.AppendReport(ctx, runID, r)
}

func (s *flakyStore) setFailures(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
}

func (s *flakyStore) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func loadTrace(store *repositories.MemoryTraceStore, runID string, reports []domain.PositionReport) {
	for _, r := range reports {
		if _, err := store.AppendReport(context.Background(), runID, r); err != nil {
			panic(err)
		}
	}
}
