package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/devwatch/internal/confirmers"
	"github.com/linnemanlabs/devwatch/internal/evidence"
	"github.com/linnemanlabs/devwatch/internal/tracker"
)

// DefaultMaxDevices caps the number of records accepted in one scan.
const DefaultMaxDevices = 1024

const tracerName = "github.com/linnemanlabs/devwatch/internal/scan"

var (
	// ErrEmptyScan is returned for a scan with no device records.
	ErrEmptyScan = errors.New("scan contains no devices")

	// ErrScanTooLarge is returned when a scan exceeds the configured device cap.
	ErrScanTooLarge = errors.New("scan exceeds maximum device count")
)

// Notifier announces devices the tracker had not seen before.
type Notifier interface {
	NotifyNewDevice(ctx context.Context, scanID string, d *evidence.Dossier) error
}

// Options configures a Service. Zero values select defaults.
type Options struct {
	// Normalizer defaults to evidence.DefaultThresholds.
	Normalizer *evidence.Normalizer
	// Tracker receives every dossier. Nil disables tracking.
	Tracker *tracker.Tracker
	// Notifier is optional.
	Notifier Notifier
	// Metrics is optional.
	Metrics *Metrics
	// MaxDevices defaults to DefaultMaxDevices.
	MaxDevices int
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Service is the business boundary for scan processing.
type Service struct {
	normalizer *evidence.Normalizer
	tracker    *tracker.Tracker
	notifier   Notifier
	metrics    *Metrics
	maxDevices int
	tracer     trace.Tracer
	logger     log.Logger

	// in-flight notifications
	wg sync.WaitGroup
}

// NewService creates a new scan service.
func NewService(logger log.Logger, opts Options) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	if opts.Normalizer == nil {
		opts.Normalizer = evidence.NewNormalizer(evidence.DefaultThresholds)
	}
	if opts.MaxDevices <= 0 {
		opts.MaxDevices = DefaultMaxDevices
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	return &Service{
		normalizer: opts.Normalizer,
		tracker:    opts.Tracker,
		notifier:   opts.Notifier,
		metrics:    opts.Metrics,
		maxDevices: opts.MaxDevices,
		tracer:     opts.TracerProvider.Tracer(tracerName),
		logger:     logger,
	}
}

// Tracker returns the tracker this service feeds, or nil.
func (s *Service) Tracker() *tracker.Tracker {
	return s.tracker
}

// Process classifies one scan and, when tracking is enabled, merges every
// dossier into the tracker. The scan is rejected only for being empty or
// oversized; individual records never fail.
func (s *Service) Process(ctx context.Context, req *Request) (*Report, error) {
	ctx, span := s.tracer.Start(ctx, "scan.Process")
	defer span.End()

	n := 0
	if req != nil {
		n = len(req.Devices)
	}
	span.SetAttributes(attribute.Int("devwatch.scan.devices", n))

	switch {
	case n == 0:
		s.metrics.observeRejected("empty")
		span.SetStatus(codes.Error, ErrEmptyScan.Error())
		return nil, ErrEmptyScan
	case n > s.maxDevices:
		s.metrics.observeRejected("too_large")
		err := fmt.Errorf("%w: %d > %d", ErrScanTooLarge, n, s.maxDevices)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	start := time.Now()
	report := &Report{
		ID:        ulid.Make().String(),
		StartedAt: start,
	}
	span.SetAttributes(attribute.String("devwatch.scan.id", report.ID))

	L := s.logger.With("scan_id", report.ID)

	records := req.Devices
	if req.Bridges != nil {
		records, report.BridgeNotes = confirmers.Parse(*req.Bridges).CorrelateAll(records)
		if len(report.BridgeNotes) == 0 {
			report.BridgeNotes = nil
		}
	}

	report.Dossiers, report.Summary = s.normalizer.Normalize(records)

	if s.tracker != nil {
		report.Tracked = true
		for i := range report.Dossiers {
			d := &report.Dossiers[i]
			if s.tracker.UpdateDevice(d.ID, tracker.FieldsFromDossier(d)) {
				report.NewDevices = append(report.NewDevices, d.ID)
				s.notify(ctx, report.ID, d)
			}
		}
	}

	report.Duration = time.Since(start).Seconds()

	span.SetAttributes(
		attribute.Int("devwatch.scan.correlated", report.Summary.Correlated),
		attribute.Int("devwatch.scan.system_confirmed", report.Summary.SystemConfirmed),
		attribute.Int("devwatch.scan.unconfirmed", report.Summary.Unconfirmed),
		attribute.Int("devwatch.scan.new_devices", len(report.NewDevices)),
	)
	s.metrics.observe(report)

	L.Info(ctx, "scan processed",
		"devices", report.Summary.Total,
		"correlated", report.Summary.Correlated,
		"system_confirmed", report.Summary.SystemConfirmed,
		"unconfirmed", report.Summary.Unconfirmed,
		"new_devices", len(report.NewDevices),
		"tracked", report.Tracked,
		"duration", report.Duration,
	)

	return report, nil
}

// Wait blocks until every pending notification has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// notify sends asynchronously so a slow webhook never holds up a scan. The
// dossier is copied; the report may be handed to the caller before the send.
func (s *Service) notify(ctx context.Context, scanID string, d *evidence.Dossier) {
	if s.notifier == nil {
		return
	}
	cp := *d
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.notifier.NotifyNewDevice(context.WithoutCancel(ctx), scanID, &cp)
		s.metrics.observeNotify(err)
		if err != nil {
			s.logger.Error(ctx, err, "new device notification failed", "scan_id", scanID, "device_id", cp.ID)
		}
	}()
}
