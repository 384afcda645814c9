package deviceapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/devwatch/internal/tracker"
)

type trackingStatus struct {
	Tracking bool `json:"tracking"`
	Devices  int  `json:"devices"`
}

func (a *API) handleListDevices(w http.ResponseWriter, r *http.Request) {
	order, err := tracker.ParseOrder(r.URL.Query().Get("order"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	devices := a.devices.ListDevices(order)
	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.String("devwatch.devices.order", string(order)),
		attribute.Int("devwatch.devices.count", len(devices)),
	)

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

func (a *API) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("devwatch.device.id", id))

	dev, ok := a.devices.GetDevice(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	span.SetAttributes(attribute.String("devwatch.device.badge", string(dev.CorrelationBadge)))

	writeJSON(w, http.StatusOK, dev)
}

func (a *API) handleEvictDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("devwatch.device.id", id))

	a.devices.Evict(id)
	a.logger.Info(r.Context(), "device evicted", "device_id", id)

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleTracking(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, trackingStatus{
		Tracking: a.devices.IsTracking(),
		Devices:  a.devices.Len(),
	})
}
