// httpcontroller/predict_routes.go
package httpcontroller

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"
	"github.com/respireai/respire-web/internal/errors"
	"github.com/respireai/respire-web/internal/flow"
	"github.com/respireai/respire-web/internal/inference"
	"github.com/respireai/respire-web/internal/observability"
	"github.com/respireai/respire-web/internal/report"
)

// submitUpload runs one upload cycle for the request's flow and records
// the outcome metrics.
func (s *Server) submitUpload(c echo.Context) (flow.Snapshot, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return flow.Snapshot{}, errors.ValidationError("Please select an audio file")
	}
	src, err := fh.Open()
	if err != nil {
		return flow.Snapshot{}, errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryFileIO).
			Context("operation", "open-upload").
			Build()
	}
	defer src.Close()

	up := flow.Upload{
		FileName:    fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		FromDrop:    c.FormValue("source") == "drop",
		Audio:       src,
	}

	start := time.Now()
	snap, err := s.sessionFlow(c).Submit(c.Request().Context(), up)
	s.Metrics.PredictionDuration.Observe(time.Since(start).Seconds())
	s.Metrics.PredictionsTotal.WithLabelValues(uploadOutcome(err)).Inc()
	return snap, err
}

// uploadOutcome maps a submit error to its metric label.
func uploadOutcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case errors.Is(err, flow.ErrSuperseded):
		return observability.OutcomeSuperseded
	case errors.CategoryOf(err) == errors.CategoryValidation:
		return observability.OutcomeRejected
	default:
		return observability.OutcomeFailure
	}
}

// handlePredictForm handles the analysis page's upload form. The page is
// re-rendered with the flow outcome; a rejected or failed upload shows
// its message in place, keeping any prior result visible.
func (s *Server) handlePredictForm(c echo.Context) error {
	snap, err := s.submitUpload(c)
	if err != nil && !errors.Is(err, flow.ErrSuperseded) {
		s.LogError(c, err, "Prediction failed")
		if snap.Err == nil {
			// Errors raised before the flow ran still need to show on the page.
			snap.Err = err
		}
	}

	route := s.pageRoutes["/predict"]
	data := s.buildPageData(c, &route)
	data.Health = s.upstreamHealth(c.Request().Context())
	data.Flow = snap
	return c.Render(http.StatusOK, "index", data)
}

// handleAPIPredict handles JSON prediction requests.
func (s *Server) handleAPIPredict(c echo.Context) error {
	snap, err := s.submitUpload(c)
	if err != nil {
		s.LogError(c, err, "Prediction failed")
		return c.JSON(predictionErrorStatus(err), map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"result":        snap.Result,
		"file_name":     snap.FileName,
		"file_size":     snap.FileSize,
		"upload_time":   snap.UploadTime,
		"analysis_time": snap.AnalysisTime,
	})
}

// predictionErrorStatus maps a submit error to an HTTP status code.
func predictionErrorStatus(err error) int {
	switch {
	case errors.Is(err, flow.ErrSuperseded):
		return http.StatusConflict
	case errors.CategoryOf(err) == errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryOf(err) == errors.CategoryHTTP:
		return http.StatusBadGateway
	case errors.CategoryOf(err) == errors.CategoryNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleAPIHealth reports the inference service's health, cached briefly
// so polling clients do not hammer the upstream.
func (s *Server) handleAPIHealth(c echo.Context) error {
	const key = "health-status"
	if v, ok := s.healthCache.Get(key); ok {
		return c.JSON(http.StatusOK, v.(*inference.HealthStatus))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), healthProbeTimeout)
	defer cancel()

	status, err := s.Inference.Health(ctx)
	if err != nil {
		s.Metrics.UpstreamUp.Set(0)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":  "offline",
			"message": "inference service unreachable",
		})
	}
	s.Metrics.UpstreamUp.Set(1)
	s.healthCache.Set(key, status, cache.DefaultExpiration)
	return c.JSON(http.StatusOK, status)
}

// handleAPIReport exports the current result as a downloadable report.
// Format is selected with ?format=text|pdf, defaulting to text.
func (s *Server) handleAPIReport(c echo.Context) error {
	snap := s.sessionFlow(c).Snapshot()
	if snap.Result == nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "no prediction result to export",
		})
	}

	state, _ := s.Store.Get(c)
	data := &report.Data{
		Result:       snap.Result,
		FileName:     snap.FileName,
		FileSize:     snap.FileSize,
		UploadTime:   snap.UploadTime,
		AnalysisTime: snap.AnalysisTime,
		ClinicName:   s.Settings.Report.ClinicName,
	}
	if state != nil {
		data.Patient = state.Patient
	}

	format := c.QueryParam("format")
	if format == "" {
		format = "text"
	}

	var buf bytes.Buffer
	var contentType, ext string
	var err error
	switch format {
	case "pdf":
		contentType, ext = "application/pdf", "pdf"
		err = report.WritePDF(&buf, data)
	case "text":
		contentType, ext = "text/plain; charset=utf-8", "txt"
		err = report.WriteText(&buf, data)
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("unsupported report format %q", format),
		})
	}
	if err != nil {
		s.LogError(c, err, "Report export failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to download report",
		})
	}

	s.Metrics.ReportsTotal.WithLabelValues(format).Inc()

	filename := fmt.Sprintf("respireai-report-%s.%s", time.Now().Format("20060102-150405"), ext)
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, contentType, buf.Bytes())
}
