package services

import (
	"context"
	"errors"
	"fmt"
	"route-validation-service/internal/domain"
	"route-validation-service/internal/platform/obs"
	"route-validation-service/internal/ports"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type MonitorConfig struct {
	QueueCapacity int
	RetryAttempts int
	RetryBackoff  time.Duration
	// Upper bound for the pause between passes while the store or the
	// registry stays unavailable.
	MaxBackoff      time.Duration
	RegistryTimeout time.Duration
	// A vehicle's queue and worker are released after this long without
	// reports. Zero keeps them forever.
	IdleTimeout time.Duration
}

func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		QueueCapacity:   256,
		RetryAttempts:   3,
		RetryBackoff:    100 * time.Millisecond,
		MaxBackoff:      30 * time.Second,
		RegistryTimeout: 2 * time.Second,
		IdleTimeout:     10 * time.Minute,
	}
}

// Monitor consumes position reports as they arrive. Each vehicle gets its
// own bounded queue drained by a single worker, so reports of one vehicle
// are appended in arrival order while vehicles progress independently.
//
// Alerts raised here are advisory and never influence a validation verdict.
type Monitor struct {
	store ports.TraceStore
	ref   ports.ReferenceDataProvider
	sink  ports.AlertSink
	th    Thresholds
	cfg   MonitorConfig
	log   zerolog.Logger

	mu      sync.Mutex
	queues  map[string]*reportQueue
	runCtx  context.Context
	stopped bool
	wg      sync.WaitGroup

	// Vehicle ID -> run ID currently flagged stationary, so the alert fires
	// once per stop.
	stationaryMu sync.Mutex
	stationary   map[string]string

	now func() time.Time
}

func NewMonitor(
	store ports.TraceStore,
	ref ports.ReferenceDataProvider,
	sink ports.AlertSink,
	th Thresholds,
	cfg MonitorConfig,
	log zerolog.Logger,
) *Monitor {
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if cfg.MaxBackoff < cfg.RetryBackoff {
		cfg.MaxBackoff = cfg.RetryBackoff
	}
	return &Monitor{
		store:      store,
		ref:        ref,
		sink:       sink,
		th:         th,
		cfg:        cfg,
		log:        log.With().Str("component", "monitor").Logger(),
		queues:     make(map[string]*reportQueue),
		stationary: make(map[string]string),
		now:        time.Now,
	}
}

// Submit enqueues r on its vehicle's queue and reports whether an older
// buffered report had to be dropped to make room.
func (m *Monitor) Submit(r domain.PositionReport) (dropped bool) {
	m.mu.Lock()
	q := m.queueFor(r.VehicleID)
	old := q.push(r)
	m.mu.Unlock()

	if old == nil {
		return false
	}
	m.overflowed(context.Background(), r.VehicleID, *old)
	return true
}

// Pending returns the number of buffered reports across all vehicles.
func (m *Monitor) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, q := range m.queues {
		n += q.len()
	}
	return n
}

// Run starts the per-vehicle workers and blocks until ctx is cancelled and
// every worker has returned. Reports still buffered at shutdown are lost.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.runCtx != nil {
		m.mu.Unlock()
		return errors.New("monitor: already running")
	}
	m.runCtx = ctx
	for vehicleID, q := range m.queues {
		m.startWorker(ctx, vehicleID, q)
	}
	m.mu.Unlock()

	<-ctx.Done()

	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()

	m.wg.Wait()
	m.log.Info().Int("pending", m.Pending()).Msg("monitor stopped")
	return nil
}

// queueFor must be called with m.mu held.
func (m *Monitor) queueFor(vehicleID string) *reportQueue {
	q, ok := m.queues[vehicleID]
	if ok {
		return q
	}
	q = newReportQueue(m.cfg.QueueCapacity)
	m.queues[vehicleID] = q
	if m.runCtx != nil && !m.stopped {
		m.startWorker(m.runCtx, vehicleID, q)
	}
	return q
}

// startWorker must be called with m.mu held.
func (m *Monitor) startWorker(ctx context.Context, vehicleID string, q *reportQueue) {
	w := &ingestWorker{
		vehicleID: vehicleID,
		q:         q,
		log:       m.log.With().Str("vehicle_id", vehicleID).Logger(),
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.drain(ctx, w)
	}()
}

// evict releases an idle vehicle. It fails when a report arrived meanwhile.
func (m *Monitor) evict(w *ingestWorker) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w.q.len() > 0 || m.queues[w.vehicleID] != w.q {
		return false
	}
	delete(m.queues, w.vehicleID)
	m.clearStationary(w.vehicleID)
	w.log.Debug().Msg("idle vehicle released")
	return true
}

// ingestWorker is the state of one vehicle's drain loop.
type ingestWorker struct {
	vehicleID string
	q         *reportQueue
	log       zerolog.Logger

	// Alert type of the ongoing outage, empty when healthy.
	failing domain.AlertType
	backoff time.Duration
}

func (w *ingestWorker) recovered() {
	if w.failing != "" {
		w.log.Info().Str("outage", string(w.failing)).Msg("ingestion recovered")
		w.failing = ""
	}
}

func (m *Monitor) drain(ctx context.Context, w *ingestWorker) {
	for {
		for {
			r, ok := w.q.pop()
			if !ok {
				break
			}
			if !m.process(ctx, w, r) {
				break
			}
		}

		if m.wait(ctx, w) {
			return
		}
	}
}

// wait blocks until more reports may be queued and returns true when the
// worker should exit.
func (m *Monitor) wait(ctx context.Context, w *ingestWorker) bool {
	var idle <-chan time.Time
	if m.cfg.IdleTimeout > 0 && w.failing == "" {
		timer := time.NewTimer(m.cfg.IdleTimeout)
		defer timer.Stop()
		idle = timer.C
	}

	select {
	case <-ctx.Done():
		return true
	case <-w.q.notify:
		return false
	case <-idle:
		return m.evict(w)
	}
}

// process handles one report and returns false when the worker should
// pause before touching the queue again.
func (m *Monitor) process(ctx context.Context, w *ingestWorker, r domain.PositionReport) bool {
	_, err := m.CheckRealTime(ctx, r)
	switch {
	case err == nil:
		w.recovered()
		return true
	case ctx.Err() != nil:
		return false
	case errors.Is(err, domain.ErrRunNotInTransit), errors.Is(err, domain.ErrTraceClosed):
		w.recovered()
		w.log.Debug().Err(err).Time("ts", r.Timestamp).Msg("report discarded")
		return true
	case errors.Is(err, domain.ErrTraceStore):
		return m.retryLater(ctx, w, r, domain.AlertStoreFailure, err)
	case errors.Is(err, domain.ErrRegistryUnavailable):
		return m.retryLater(ctx, w, r, domain.AlertRegistryUnavailable, err)
	}

	w.log.Error().Err(err).Time("ts", r.Timestamp).Msg("report rejected")
	m.raise(ctx, domain.Alert{
		Type:      domain.AlertReportRejected,
		VehicleID: r.VehicleID,
		Location:  r.Coordinates(),
		Message:   fmt.Sprintf("report from %s rejected: %v", r.Timestamp.UTC().Format(time.RFC3339), err),
	})
	return true
}

// retryLater puts r back at the head of the queue and pauses the worker.
// The alert fires when an outage starts; while it lasts the pause doubles
// up to cfg.MaxBackoff.
func (m *Monitor) retryLater(ctx context.Context, w *ingestWorker, r domain.PositionReport, kind domain.AlertType, err error) bool {
	if w.failing != kind {
		w.failing = kind
		w.backoff = m.cfg.RetryBackoff
		m.raise(ctx, domain.Alert{
			Type:      kind,
			VehicleID: r.VehicleID,
			Location:  r.Coordinates(),
			Message:   fmt.Sprintf("report not persisted: %v", err),
		})
	} else {
		w.backoff = min(2*w.backoff, m.cfg.MaxBackoff)
	}

	w.log.Error().Err(err).Time("ts", r.Timestamp).Dur("backoff", w.backoff).Msg("report not persisted; requeued")
	if lost := w.q.pushFront(r); lost != nil {
		m.overflowed(ctx, w.vehicleID, *lost)
	}

	timer := time.NewTimer(w.backoff)
	select {
	case <-ctx.Done():
		timer.Stop()
		return false
	case <-timer.C:
	}
	w.q.signal()
	return false
}

func (m *Monitor) overflowed(ctx context.Context, vehicleID string, lost domain.PositionReport) {
	m.log.Warn().
		Str("vehicle_id", vehicleID).
		Time("dropped_ts", lost.Timestamp).
		Msg("ingest queue full; dropped oldest report")
	m.raise(ctx, domain.Alert{
		Type:      domain.AlertQueueOverflow,
		VehicleID: vehicleID,
		Location:  lost.Coordinates(),
		Message:   fmt.Sprintf("ingest queue full; dropped report from %s", lost.Timestamp.UTC().Format(time.RFC3339)),
	})
}

// CheckRealTime appends r to the trace of the vehicle's IN_TRANSIT run and
// runs the cheap speed, geofence and stationary checks on the result.
// Raised alerts are published to the sink and also returned.
func (m *Monitor) CheckRealTime(ctx context.Context, r domain.PositionReport) (_ []domain.Alert, err error) {
	defer obs.Time(ctx, m.log, "monitor.CheckRealTime")(&err)

	if r.VehicleID == "" {
		return nil, errors.New("check real time: vehicle id must not be empty")
	}

	run, err := m.activeRun(ctx, r.VehicleID)
	if err != nil {
		return nil, err
	}

	trace, err := m.appendWithRetry(ctx, run.ID, r)
	if err != nil {
		if errors.Is(err, domain.ErrTraceClosed) {
			m.clearStationary(r.VehicleID)
		}
		return nil, err
	}

	var alerts []domain.Alert

	if speed, ok := instantSpeedKmh(trace.Reports); ok && speed > m.th.RealtimeSpeedKmh {
		alerts = append(alerts, domain.Alert{
			Type:     domain.AlertSpeedViolation,
			Message:  fmt.Sprintf("speed %.1f km/h exceeds %g km/h limit", speed, m.th.RealtimeSpeedKmh),
			Location: r.Coordinates(),
		})
	}

	if zone, inside := m.restrictedZone(ctx, r); inside {
		alerts = append(alerts, domain.Alert{
			Type:     domain.AlertGeofence,
			Message:  fmt.Sprintf("entered restricted zone %s", zone),
			Location: r.Coordinates(),
		})
	}

	if m.enteredStationary(r.VehicleID, run.ID, trace.Reports) {
		alerts = append(alerts, domain.Alert{
			Type:     domain.AlertProlongedStationary,
			Message:  fmt.Sprintf("last %d reports within %g m", m.th.StationaryWindow, m.th.StationaryRadiusMeters),
			Location: r.Coordinates(),
		})
	}

	for i := range alerts {
		alerts[i].VehicleID = r.VehicleID
		alerts[i].DeliveryRunID = run.ID
		alerts[i] = m.stamp(alerts[i])
		m.raise(ctx, alerts[i])
	}
	return alerts, nil
}

func (m *Monitor) activeRun(ctx context.Context, vehicleID string) (domain.DeliveryRun, error) {
	callCtx, cancel := withRegistryTimeout(ctx, m.cfg.RegistryTimeout)
	defer cancel()

	run, err := m.ref.FindActiveRun(callCtx, vehicleID)
	if errors.Is(err, domain.ErrRunNotFound) {
		return domain.DeliveryRun{}, fmt.Errorf("check real time: vehicle %q: %w", vehicleID, domain.ErrRunNotInTransit)
	}
	if err != nil {
		if !errors.Is(err, domain.ErrRegistryUnavailable) && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", domain.ErrRegistryUnavailable, err)
		}
		return domain.DeliveryRun{}, fmt.Errorf("check real time: find active run for %q: %w", vehicleID, err)
	}
	if run.Status != domain.RunInTransit {
		return domain.DeliveryRun{}, fmt.Errorf("check real time: run %q is %s: %w", run.ID, run.Status, domain.ErrRunNotInTransit)
	}
	return run, nil
}

// appendWithRetry retries transient store failures with exponential backoff.
// A closed trace is permanent and returned at once. Exhausted retries are
// reported as domain.ErrTraceStore.
func (m *Monitor) appendWithRetry(ctx context.Context, runID string, r domain.PositionReport) (*domain.Trace, error) {
	backoff := m.cfg.RetryBackoff
	var lastErr error

	for attempt := 1; attempt <= m.cfg.RetryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		trace, err := m.store.AppendReport(ctx, runID, r)
		if err == nil {
			return trace, nil
		}
		lastErr = err

		if errors.Is(err, domain.ErrTraceClosed) || attempt == m.cfg.RetryAttempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
	}

	if errors.Is(lastErr, domain.ErrTraceClosed) {
		return nil, fmt.Errorf("append report to run %q: %w", runID, lastErr)
	}
	return nil, fmt.Errorf("append report to run %q: %w: %w", runID, domain.ErrTraceStore, lastErr)
}

// restrictedZone is advisory: a registry failure is logged and ignored.
func (m *Monitor) restrictedZone(ctx context.Context, r domain.PositionReport) (string, bool) {
	callCtx, cancel := withRegistryTimeout(ctx, m.cfg.RegistryTimeout)
	defer cancel()

	zone, inside, err := m.ref.IsRestrictedArea(callCtx, r.Coordinates())
	if err != nil {
		m.log.Warn().Err(err).Str("vehicle_id", r.VehicleID).Msg("restricted area lookup failed")
		return "", false
	}
	return zone, inside
}

// enteredStationary reports true only on the transition into the
// stationary state so a long stop raises a single alert.
func (m *Monitor) enteredStationary(vehicleID, runID string, reports []domain.PositionReport) bool {
	now := isStationary(reports, m.th.StationaryWindow, m.th.StationaryRadiusMeters)

	m.stationaryMu.Lock()
	defer m.stationaryMu.Unlock()

	was := m.stationary[vehicleID] == runID
	if now {
		m.stationary[vehicleID] = runID
	} else {
		delete(m.stationary, vehicleID)
	}
	return now && !was
}

func (m *Monitor) clearStationary(vehicleID string) {
	m.stationaryMu.Lock()
	delete(m.stationary, vehicleID)
	m.stationaryMu.Unlock()
}

func (m *Monitor) raise(ctx context.Context, a domain.Alert) {
	a = m.stamp(a)
	if m.sink == nil {
		return
	}
	if err := m.sink.Publish(ctx, a); err != nil {
		m.log.Warn().Err(err).Str("alert_type", string(a.Type)).Msg("publish alert failed")
	}
}

// stamp gives a an ID and raise time if it has none yet.
func (m *Monitor) stamp(a domain.Alert) domain.Alert {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.RaisedAt.IsZero() {
		a.RaisedAt = m.now().UTC()
	}
	return a
}

// instantSpeedKmh prefers the device-reported speed of the last report and
// otherwise infers it from the last two reports.
func instantSpeedKmh(reports []domain.PositionReport) (float64, bool) {
	n := len(reports)
	if n == 0 {
		return 0, false
	}
	last := reports[n-1]
	if last.SpeedKmh != nil {
		return *last.SpeedKmh, true
	}
	if n < 2 {
		return 0, false
	}

	prev := reports[n-2]
	hours := last.Timestamp.Sub(prev.Timestamp).Hours()
	if hours <= 0 {
		return 0, false
	}
	return domain.HaversineKm(prev.Coordinates(), last.Coordinates()) / hours, true
}

// isStationary reports whether the last window reports all lie within
// radius meters of each other.
func isStationary(reports []domain.PositionReport, window int, radius float64) bool {
	if window < 2 || len(reports) < window {
		return false
	}
	tail := reports[len(reports)-window:]
	for i := range tail {
		for j := i + 1; j < len(tail); j++ {
			if domain.HaversineMeters(tail[i].Coordinates(), tail[j].Coordinates()) > radius {
				return false
			}
		}
	}
	return true
}
