package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/recon/internal/output"
)

// insertBatchSize bounds the rows per INSERT; postgres caps bind parameters
// at 65535.
const insertBatchSize = 1000

// Scan describes one run of the engine.
type Scan struct {
	ID      uuid.UUID `db:"id"`
	Method  string    `db:"method"`
	Targets string    `db:"targets"`
	Ports   string    `db:"ports"`
}

// NewScan returns a Scan with a fresh ID.
func NewScan(method string, targets []string, ports string) Scan {
	return Scan{
		ID:      uuid.New(),
		Method:  method,
		Targets: strings.Join(targets, ","),
		Ports:   ports,
	}
}

type resultRow struct {
	ScanID    uuid.UUID `db:"scan_id"`
	IP        string    `db:"ip"`
	Port      int       `db:"port"`
	State     string    `db:"state"`
	Method    string    `db:"method"`
	Detail    string    `db:"detail"`
	Error     string    `db:"error"`
	LatencyMS float64   `db:"latency_ms"`
}

// BeginScan records the start of a scan.
func (db *DB) BeginScan(ctx context.Context, scan Scan) error {
	query := `
		INSERT INTO scans (id, method, targets, ports)
		VALUES (:id, :method, :targets, :ports)`

	if _, err := db.NamedExecContext(ctx, query, scan); err != nil {
		return sanitizeDBError("begin scan", err)
	}
	return nil
}

// FinishScan stamps the scan with its completion time and result count.
func (db *DB) FinishScan(ctx context.Context, id uuid.UUID, results int) error {
	query := `UPDATE scans SET finished_at = $1, results = $2 WHERE id = $3`

	if _, err := db.ExecContext(ctx, query, time.Now().UTC(), results, id); err != nil {
		return sanitizeDBError("finish scan", err)
	}
	return nil
}

// SaveBatch inserts records for scanID in one transaction.
func (db *DB) SaveBatch(ctx context.Context, scanID uuid.UUID, records []output.Record) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]resultRow, len(records))
	for i := range records {
		r := &records[i]
		rows[i] = resultRow{
			ScanID:    scanID,
			IP:        r.Addr.String(),
			Port:      int(r.Port),
			State:     r.State,
			Method:    r.Method,
			Detail:    r.Detail,
			Error:     r.Error,
			LatencyMS: float64(r.Latency) / float64(time.Millisecond),
		}
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return sanitizeDBError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO probe_results (scan_id, ip, port, state, method, detail, error, latency_ms)
		VALUES (:scan_id, :ip, :port, :state, :method, :detail, :error, :latency_ms)`

	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))
		if _, err := tx.NamedExecContext(ctx, query, rows[start:end]); err != nil {
			return sanitizeDBError("save results", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return sanitizeDBError("commit results", err)
	}

	db.logger.Debug("Saved results", "scan_id", scanID, "count", len(rows))
	return nil
}
