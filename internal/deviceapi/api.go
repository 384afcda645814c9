// Package deviceapi exposes scan submission and the device tracker over HTTP.
package deviceapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/devwatch/internal/authmw"
	"github.com/linnemanlabs/devwatch/internal/scan"
	"github.com/linnemanlabs/devwatch/internal/tracker"
)

// ScanService defines the business operation the scan route needs.
type ScanService interface {
	Process(ctx context.Context, req *scan.Request) (*scan.Report, error)
}

// DeviceStore is the read and evict surface of the tracker.
type DeviceStore interface {
	IsTracking() bool
	Len() int
	GetDevice(id string) (tracker.TrackedDevice, bool)
	ListDevices(order tracker.Order) []tracker.TrackedDevice
	Evict(id string)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger  log.Logger
	scans   ScanService
	devices DeviceStore
	tokens  []string
}

// New creates a new API handler. When any non-empty token is given the write
// routes require one of them as a bearer token.
func New(logger log.Logger, scans ScanService, devices DeviceStore, tokens ...string) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if scans == nil {
		panic(xerrors.New("scan service is required"))
	}
	if devices == nil {
		panic(xerrors.New("device store is required"))
	}
	var set []string
	for _, t := range tokens {
		if t != "" {
			set = append(set, t)
		}
	}
	return &API{
		logger:  logger,
		scans:   scans,
		devices: devices,
		tokens:  set,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/devices", a.handleListDevices)
		r.Get("/devices/{id}", a.handleGetDevice)
		r.Get("/tracking", a.handleTracking)

		r.Group(func(r chi.Router) {
			if len(a.tokens) > 0 {
				r.Use(authmw.BearerToken(a.tokens...))
			}
			r.Post("/scans", a.handleSubmitScan)
			r.Delete("/devices/{id}", a.handleEvictDevice)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
