package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"route-validation-service/internal/domain"
	"route-validation-service/internal/platform/obs"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SQL-backed implementation of the TraceStore port for sqlite and postgres.
//
// Running aggregates live on the traces row and are updated in the same
// transaction as the report insert. Appends to one run are additionally
// serialized in-process so sequence numbers stay gap free.
type SQLTraceStore struct {
	DB     *sql.DB
	Driver string
	Log    zerolog.Logger

	locks sync.Map // open run ID -> *sync.Mutex
}

func NewSQLTraceStore(db *sql.DB, driver string, log zerolog.Logger) *SQLTraceStore {
	return &SQLTraceStore{DB: db, Driver: driver, Log: log}
}

func (s *SQLTraceStore) FindTrace(ctx context.Context, runID string) (_ *domain.Trace, err error) {
	defer obs.Time(ctx, s.Log, "traces.FindTrace")(&err)

	if s.DB == nil {
		return nil, errors.New("sql trace store: DB is nil")
	}
	return s.load(ctx, s.DB, runID)
}

func (s *SQLTraceStore) AppendReport(ctx context.Context, runID string, r domain.PositionReport) (_ *domain.Trace, err error) {
	defer obs.Time(ctx, s.Log, "traces.AppendReport")(&err)

	if s.DB == nil {
		return nil, errors.New("sql trace store: DB is nil")
	}
	if runID == "" {
		return nil, errors.New("append report: run id must not be empty")
	}

	mu := s.lockFor(runID)
	mu.Lock()
	defer mu.Unlock()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("append report: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	head, lastSeq, err := s.head(ctx, tx, runID)
	switch {
	case errors.Is(err, domain.ErrTraceNotFound):
		head = domain.NewTrace(runID, r)
		if err := s.insertTrace(ctx, tx, head); err != nil {
			return nil, err
		}
		lastSeq = -1
	case err != nil:
		return nil, err
	case head.Closed:
		s.locks.Delete(runID)
		return nil, fmt.Errorf("append report to %q: %w", runID, domain.ErrTraceClosed)
	default:
		head.Append(r)
		if err := s.updateAggregates(ctx, tx, head); err != nil {
			return nil, err
		}
	}

	if err := s.insertReport(ctx, tx, runID, lastSeq+1, r); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("append report: commit tx: %w", err)
	}

	return s.load(ctx, s.DB, runID)
}

// CloseTrace is idempotent.
func (s *SQLTraceStore) CloseTrace(ctx context.Context, runID string) error {
	if s.DB == nil {
		return errors.New("sql trace store: DB is nil")
	}

	mu := s.lockFor(runID)
	mu.Lock()
	defer mu.Unlock()

	res, err := s.DB.ExecContext(ctx, rebind(s.Driver, `UPDATE traces SET closed = 1 WHERE run_id = ?;`), runID)
	if err != nil {
		return fmt.Errorf("close trace %q: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close trace %q: rows affected: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("close trace %q: %w", runID, domain.ErrTraceNotFound)
	}

	// A closed trace takes no more appends, so its lock can go. Goroutines
	// already waiting on it will find the trace closed.
	s.locks.Delete(runID)
	return nil
}

func (s *SQLTraceStore) ListOpenTraces(ctx context.Context) ([]string, error) {
	if s.DB == nil {
		return nil, errors.New("sql trace store: DB is nil")
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT run_id FROM traces WHERE closed = 0 ORDER BY run_id;`)
	if err != nil {
		return nil, fmt.Errorf("list open traces: query traces table: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 16)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list open traces: scan row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list open traces: row iteration: %w", err)
	}
	return ids, nil
}

func (s *SQLTraceStore) lockFor(runID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(runID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// head loads the trace row plus its most recent report, which is all an
// append needs to roll the aggregates forward.
func (s *SQLTraceStore) head(ctx context.Context, q queryer, runID string) (*domain.Trace, int, error) {
	t, err := s.traceRow(ctx, q, runID)
	if err != nil {
		return nil, 0, err
	}

	row := q.QueryRowContext(ctx, rebind(s.Driver, `
	SELECT seq, vehicle_id, lat, lon, ts, speed_kmh, accuracy_meters
	FROM reports
	WHERE run_id = ?
	ORDER BY seq DESC
	LIMIT 1;
	`), runID)

	var seq int
	r, err := scanReport(row.Scan, &seq)
	if errors.Is(err, sql.ErrNoRows) {
		return t, -1, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("append report: load last report of %q: %w", runID, err)
	}
	t.Reports = []domain.PositionReport{r}
	return t, seq, nil
}

func (s *SQLTraceStore) load(ctx context.Context, q queryer, runID string) (*domain.Trace, error) {
	t, err := s.traceRow(ctx, q, runID)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, rebind(s.Driver, `
	SELECT seq, vehicle_id, lat, lon, ts, speed_kmh, accuracy_meters
	FROM reports
	WHERE run_id = ?
	ORDER BY seq;
	`), runID)
	if err != nil {
		return nil, fmt.Errorf("find trace %q: query reports table: %w", runID, err)
	}
	defer rows.Close()

	t.Reports = make([]domain.PositionReport, 0, 64)
	for rows.Next() {
		var seq int
		r, err := scanReport(rows.Scan, &seq)
		if err != nil {
			return nil, fmt.Errorf("find trace %q: scan report: %w", runID, err)
		}
		t.Reports = append(t.Reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find trace %q: row iteration: %w", runID, err)
	}
	return t, nil
}

func (s *SQLTraceStore) traceRow(ctx context.Context, q queryer, runID string) (*domain.Trace, error) {
	row := q.QueryRowContext(ctx, rebind(s.Driver, `
	SELECT vehicle_id, start_time, end_time, total_km, average_speed_kmh, max_speed_kmh, closed
	FROM traces
	WHERE run_id = ?;
	`), runID)

	var (
		t          = domain.Trace{DeliveryRunID: runID}
		start, end int64
		closed     int
	)
	err := row.Scan(&t.VehicleID, &start, &end, &t.TotalKm, &t.AverageSpeedKmh, &t.MaxSpeedKmh, &closed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find trace %q: %w", runID, domain.ErrTraceNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find trace %q: query traces table: %w", runID, err)
	}

	t.StartTime = time.Unix(0, start).UTC()
	t.EndTime = time.Unix(0, end).UTC()
	t.Closed = closed != 0
	return &t, nil
}

func (s *SQLTraceStore) insertTrace(ctx context.Context, tx *sql.Tx, t *domain.Trace) error {
	_, err := tx.ExecContext(ctx, rebind(s.Driver, `
	INSERT INTO traces (run_id, vehicle_id, start_time, end_time, total_km, average_speed_kmh, max_speed_kmh, closed)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?);
	`),
		t.DeliveryRunID, t.VehicleID, t.StartTime.UnixNano(), t.EndTime.UnixNano(),
		t.TotalKm, t.AverageSpeedKmh, t.MaxSpeedKmh, boolToInt(t.Closed),
	)
	if err != nil {
		return fmt.Errorf("append report: insert trace %q: %w", t.DeliveryRunID, err)
	}
	return nil
}

func (s *SQLTraceStore) updateAggregates(ctx context.Context, tx *sql.Tx, t *domain.Trace) error {
	_, err := tx.ExecContext(ctx, rebind(s.Driver, `
	UPDATE traces
	SET end_time = ?, total_km = ?, average_speed_kmh = ?, max_speed_kmh = ?
	WHERE run_id = ?;
	`), t.EndTime.UnixNano(), t.TotalKm, t.AverageSpeedKmh, t.MaxSpeedKmh, t.DeliveryRunID)
	if err != nil {
		return fmt.Errorf("append report: update trace %q: %w", t.DeliveryRunID, err)
	}
	return nil
}

func (s *SQLTraceStore) insertReport(ctx context.Context, tx *sql.Tx, runID string, seq int, r domain.PositionReport) error {
	_, err := tx.ExecContext(ctx, rebind(s.Driver, `
	INSERT INTO reports (run_id, seq, vehicle_id, lat, lon, ts, speed_kmh, accuracy_meters)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?);
	`), runID, seq, r.VehicleID, r.Latitude, r.Longitude, r.Timestamp.UnixNano(), r.SpeedKmh, r.AccuracyMeters)
	if err != nil {
		return fmt.Errorf("append report: insert report %d of %q: %w", seq, runID, err)
	}
	return nil
}

func scanReport(scan func(dest ...any) error, seq *int) (domain.PositionReport, error) {
	var (
		r        domain.PositionReport
		ts       int64
		speed    sql.NullFloat64
		accuracy sql.NullFloat64
	)
	if err := scan(seq, &r.VehicleID, &r.Latitude, &r.Longitude, &ts, &speed, &accuracy); err != nil {
		return domain.PositionReport{}, err
	}

	r.Timestamp = time.Unix(0, ts).UTC()
	if speed.Valid {
		v := speed.Float64
		r.SpeedKmh = &v
	}
	if accuracy.Valid {
		v := accuracy.Float64
		r.AccuracyMeters = &v
	}
	return r, nil
}
