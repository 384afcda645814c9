package scan

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/devwatch/internal/confirmers"
	"github.com/linnemanlabs/devwatch/internal/evidence"
	"github.com/linnemanlabs/devwatch/internal/tracker"
)

// mockNotifier records every notification it receives.
type mockNotifier struct {
	mu    sync.Mutex
	ids   []string
	scans []string
	err   error
}

func (m *mockNotifier) NotifyNewDevice(_ context.Context, scanID string, d *evidence.Dossier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append(m.ids, d.ID)
	m.scans = append(m.scans, scanID)
	return m.err
}

func (m *mockNotifier) got() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]string(nil), m.ids...)
	return out
}

func strPtr(s string) *string { return &s }

func testRequest() *Request {
	return &Request{Devices: []evidence.RawDeviceRecord{
		{ID: "pixel", Serial: strPtr("R58M"), VendorID: 0x18d1, ProductID: 0x4ee7, Platform: evidence.PlatformAndroid, Mode: evidence.ModeConfirmedAndroid, Confidence: 0.95, MatchedToolIDs: []string{"R58M"}},
		{ID: "iphone", VendorID: 0x05ac, ProductID: 0x12a8, Platform: evidence.PlatformIOS, Mode: evidence.ModeConfirmedIOS, Confidence: 0.93},
		{ID: "mystery", VendorID: 0x1234, ProductID: 0x5678, Platform: evidence.PlatformUnknown, Mode: evidence.ModeUnconfirmed, Confidence: 0.3},
	}}
}

func TestProcess_ClassifiesAndTracks(t *testing.T) {
	t.Parallel()

	tr := tracker.New(tracker.Hooks{})
	notifier := &mockNotifier{}
	svc := NewService(log.Nop(), Options{Tracker: tr, Notifier: notifier})

	rep, err := svc.Process(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	svc.Wait()

	if rep.ID == "" {
		t.Error("expected scan id")
	}
	if !rep.Tracked {
		t.Error("Tracked = false, want true")
	}
	want := evidence.Summary{Total: 3, Correlated: 1, SystemConfirmed: 1, Unconfirmed: 1}
	if rep.Summary != want {
		t.Errorf("summary = %+v, want %+v", rep.Summary, want)
	}
	if !reflect.DeepEqual(rep.NewDevices, []string{"pixel", "iphone", "mystery"}) {
		t.Errorf("NewDevices = %v", rep.NewDevices)
	}
	if tr.Len() != 3 {
		t.Errorf("tracker Len = %d, want 3", tr.Len())
	}
	if !tr.IsTracking() {
		t.Error("tracker IsTracking = false after scan")
	}

	pixel, ok := tr.GetDevice("pixel")
	if !ok {
		t.Fatal("pixel not tracked")
	}
	if pixel.Serial == nil || *pixel.Serial != "R58M" {
		t.Errorf("pixel serial = %v, want R58M", pixel.Serial)
	}
	if pixel.VendorID == nil || *pixel.VendorID != 0x18d1 {
		t.Errorf("pixel vendor = %v, want 0x18d1", pixel.VendorID)
	}
	if pixel.CorrelationBadge != evidence.BadgeCorrelated {
		t.Errorf("pixel badge = %q, want CORRELATED", pixel.CorrelationBadge)
	}

	got := notifier.got()
	if len(got) != 3 {
		t.Errorf("notifications = %v, want 3", got)
	}
}

func TestProcess_SecondScanMergesAndDoesNotRenotify(t *testing.T) {
	t.Parallel()

	tr := tracker.New(tracker.Hooks{})
	notifier := &mockNotifier{}
	svc := NewService(log.Nop(), Options{Tracker: tr, Notifier: notifier})

	if _, err := svc.Process(context.Background(), testRequest()); err != nil {
		t.Fatalf("first Process: %v", err)
	}

	// same pixel, now in fastboot and without a serial
	rep, err := svc.Process(context.Background(), &Request{Devices: []evidence.RawDeviceRecord{
		{ID: "pixel", VendorID: 0x18d1, ProductID: 0x4ee0, Platform: evidence.PlatformAndroid, Mode: evidence.ModeBootloader, Confidence: 0.8},
	}})
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}
	svc.Wait()

	if len(rep.NewDevices) != 0 {
		t.Errorf("NewDevices = %v, want none", rep.NewDevices)
	}
	if got := notifier.got(); len(got) != 3 {
		t.Errorf("notifications = %d, want 3", len(got))
	}

	pixel, _ := tr.GetDevice("pixel")
	if pixel.DeviceMode != evidence.ModeBootloader {
		t.Errorf("mode = %q, want bootloader", pixel.DeviceMode)
	}
	if pixel.CorrelationBadge != evidence.BadgeSystemConfirmed {
		t.Errorf("badge = %q, want SYSTEM_CONFIRMED", pixel.CorrelationBadge)
	}
	if pixel.Serial == nil || *pixel.Serial != "R58M" {
		t.Errorf("serial = %v, want R58M kept from first scan", pixel.Serial)
	}
	if pixel.ProductID == nil || *pixel.ProductID != 0x4ee0 {
		t.Errorf("product = %v, want 0x4ee0", pixel.ProductID)
	}
	if pixel.Updates != 1 {
		t.Errorf("Updates = %d, want 1", pixel.Updates)
	}
}

func TestProcess_WithoutTracker(t *testing.T) {
	t.Parallel()

	notifier := &mockNotifier{}
	svc := NewService(nil, Options{Notifier: notifier})

	rep, err := svc.Process(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	svc.Wait()

	if rep.Tracked {
		t.Error("Tracked = true without tracker")
	}
	if len(rep.NewDevices) != 0 || len(notifier.got()) != 0 {
		t.Error("expected no new devices or notifications without tracker")
	}
	if svc.Tracker() != nil {
		t.Error("Tracker() != nil")
	}
}

func TestProcess_Rejections(t *testing.T) {
	t.Parallel()

	svc := NewService(log.Nop(), Options{MaxDevices: 2})

	tests := []struct {
		name string
		req  *Request
		want error
	}{
		{"nil request", nil, ErrEmptyScan},
		{"no devices", &Request{}, ErrEmptyScan},
		{"too many", testRequest(), ErrScanTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rep, err := svc.Process(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if rep != nil {
				t.Errorf("report = %+v, want nil", rep)
			}
		})
	}
}

func TestProcess_BridgeEnrichment(t *testing.T) {
	t.Parallel()

	svc := NewService(log.Nop(), Options{})
	adb := "List of devices attached\nR58M\tdevice usb:1-1\n"

	rep, err := svc.Process(context.Background(), &Request{
		Devices: []evidence.RawDeviceRecord{
			{ID: "usb-1-1", Serial: strPtr("R58M"), VendorID: 0x04e8, ProductID: 0x6860, Mode: evidence.ModeLikelyAndroid, Confidence: 0.8},
		},
		Bridges: &confirmers.Output{ADB: &adb},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	d := rep.Dossiers[0]
	if d.CorrelationBadge != evidence.BadgeCorrelated {
		t.Errorf("badge = %q, want CORRELATED (notes %v)", d.CorrelationBadge, d.CorrelationNotes)
	}
	if len(rep.BridgeNotes["usb-1-1"]) != 1 {
		t.Errorf("BridgeNotes = %v, want one note", rep.BridgeNotes)
	}
}

func TestProcess_NotifierErrorDoesNotFailScan(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	notifier := &mockNotifier{err: errors.New("webhook down")}
	svc := NewService(log.Nop(), Options{Tracker: tracker.New(tracker.Hooks{}), Notifier: notifier, Metrics: m})

	if _, err := svc.Process(context.Background(), testRequest()); err != nil {
		t.Fatalf("Process: %v", err)
	}
	svc.Wait()

	if got := testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("error")); got != 3 {
		t.Errorf("notification errors = %v, want 3", got)
	}
}

func TestProcess_Metrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	svc := NewService(log.Nop(), Options{Tracker: tracker.New(tracker.Hooks{}), Metrics: m, MaxDevices: 3})

	if _, err := svc.Process(context.Background(), testRequest()); err != nil {
		t.Fatalf("Process: %v", err)
	}
	_, _ = svc.Process(context.Background(), &Request{})

	if got := testutil.ToFloat64(m.ScansTotal.WithLabelValues("accepted")); got != 1 {
		t.Errorf("accepted scans = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ScansTotal.WithLabelValues("rejected_empty")); got != 1 {
		t.Errorf("rejected scans = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.DossiersTotal.WithLabelValues(string(evidence.BadgeCorrelated))); got != 1 {
		t.Errorf("correlated dossiers = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.NewDevicesTotal); got != 3 {
		t.Errorf("new devices = %v, want 3", got)
	}
}

func TestProcess_Span(t *testing.T) {
	t.Parallel()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	svc := NewService(log.Nop(), Options{TracerProvider: tp})

	rep, err := svc.Process(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name() != "scan.Process" {
		t.Errorf("span name = %q, want scan.Process", spans[0].Name())
	}

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if got := attrs["devwatch.scan.id"].AsString(); got != rep.ID {
		t.Errorf("scan id attr = %q, want %q", got, rep.ID)
	}
	if got := attrs["devwatch.scan.devices"].AsInt64(); got != 3 {
		t.Errorf("devices attr = %d, want 3", got)
	}
	if got := attrs["devwatch.scan.correlated"].AsInt64(); got != 1 {
		t.Errorf("correlated attr = %d, want 1", got)
	}
}

func TestProcess_ConcurrentScans(t *testing.T) {
	t.Parallel()

	tr := tracker.New(tracker.Hooks{})
	svc := NewService(log.Nop(), Options{Tracker: tr})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Process(context.Background(), testRequest()); err != nil {
				t.Errorf("Process: %v", err)
			}
		}()
	}
	wg.Wait()

	if tr.Len() != 3 {
		t.Errorf("tracker Len = %d, want 3", tr.Len())
	}
	pixel, _ := tr.GetDevice("pixel")
	if pixel.Updates != 15 {
		t.Errorf("pixel Updates = %d, want 15", pixel.Updates)
	}
}
