package deviceapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/devwatch/internal/scan"
)

func (a *API) handleSubmitScan(w http.ResponseWriter, r *http.Request) {
	var req scan.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	report, err := a.scans.Process(r.Context(), &req)
	switch {
	case errors.Is(err, scan.ErrEmptyScan):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, scan.ErrScanTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case err != nil:
		a.logger.Error(r.Context(), err, "failed to process scan", "devices", len(req.Devices))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.String("devwatch.scan.id", report.ID),
		attribute.Int("devwatch.scan.new_devices", len(report.NewDevices)),
	)

	writeJSON(w, http.StatusOK, report)
}
