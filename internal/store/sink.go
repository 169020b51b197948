package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/recon/internal/logging"
	"github.com/anstrom/recon/internal/output"
)

const writeTimeout = 30 * time.Second

// Sink adapts a DB to output.Sink for a single scan.
type Sink struct {
	db     *DB
	scanID uuid.UUID
	ctx    context.Context
	count  int
	logger *logging.Logger
}

var _ output.Sink = (*Sink)(nil)

// NewSink records scan as started and returns a sink writing its results.
// ctx bounds every write; it is typically the process lifetime rather than
// the scan's, so results flushed after a cancel still land.
func NewSink(ctx context.Context, db *DB, scan Scan) (*Sink, error) {
	if err := db.BeginScan(ctx, scan); err != nil {
		return nil, err
	}
	logger := db.logger.WithScanID(scan.ID.String())
	logger.Info("Recording scan", "method", scan.Method)
	return &Sink{db: db, scanID: scan.ID, ctx: ctx, logger: logger}, nil
}

// ScanID returns the ID results are stored under.
func (s *Sink) ScanID() uuid.UUID {
	return s.scanID
}

func (s *Sink) Write(records []output.Record) error {
	ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
	defer cancel()

	if err := s.db.SaveBatch(ctx, s.scanID, records); err != nil {
		s.logger.WithError(err).Error("Failed to store results", "rows", len(records))
		return err
	}
	s.count += len(records)
	return nil
}

// Close marks the scan finished. It does not close the DB.
func (s *Sink) Close() error {
	ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
	defer cancel()
	if err := s.db.FinishScan(ctx, s.scanID, s.count); err != nil {
		return err
	}
	s.logger.Info("Scan recorded", "results", s.count)
	return nil
}
