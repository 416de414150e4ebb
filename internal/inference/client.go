// Package inference wraps the remote respiratory-audio prediction service
// behind a typed client. Responses are schema-validated at this boundary
// so malformed upstream data surfaces as a decode error instead of failing
// somewhere downstream.
package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/respireai/respire-web/internal/conf"
	"github.com/respireai/respire-web/internal/diagnosis"
	"github.com/respireai/respire-web/internal/errors"
	"github.com/respireai/respire-web/internal/httpclient"
)

// PredictionResult is the classification returned by the service.
type PredictionResult struct {
	PredictedClass int       `json:"predicted_class"`
	Label          string    `json:"label"`
	Description    string    `json:"description"`
	Confidence     float64   `json:"confidence"`
	RawPredictions []float64 `json:"raw_predictions"`
}

// HealthStatus is the service health triple.
type HealthStatus struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	ModelStatus string `json:"model_status"`
}

// errorBody is the JSON error envelope the service returns on failure.
type errorBody struct {
	Error string `json:"error"`
}

// Client talks to the inference API. Each operation is a single
// fire-and-wait HTTP request bound to the caller's context; there are no
// retries.
type Client struct {
	http    *httpclient.Client
	baseURL string
	logger  *slog.Logger
}

// New creates an inference client from the configured settings. A nil
// logger falls back to the default slog logger.
func New(settings *conf.InferenceSettings, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http: httpclient.New(&httpclient.Config{
			DefaultTimeout: settings.Timeout,
		}),
		baseURL: strings.TrimRight(settings.BaseURL, "/"),
		logger:  logger,
	}
}

// Predict uploads an audio file as a multipart request and returns the
// validated classification result. The declared content type of the
// uploaded file is forwarded so the service can apply its own type check.
func (c *Client) Predict(ctx context.Context, filename, contentType string, audio io.Reader) (*PredictionResult, error) {
	body := &strings.Builder{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, errors.New(err).
			Component("inference").
			Category(errors.CategoryFileIO).
			Build()
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, errors.New(err).
			Component("inference").
			Category(errors.CategoryFileIO).
			Context("file", filename).
			Build()
	}
	if err := writer.Close(); err != nil {
		return nil, errors.New(err).
			Component("inference").
			Category(errors.CategoryFileIO).
			Build()
	}

	resp, err := c.http.Post(ctx, c.baseURL+"/predict", writer.FormDataContentType(), strings.NewReader(body.String()))
	if err != nil {
		return nil, c.networkError(err, "/predict")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.requestFailed(resp, "/predict")
	}

	var result PredictionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, c.decodeError(err, "/predict")
	}
	if err := validateResult(&result); err != nil {
		return nil, err
	}

	c.logger.Debug("prediction received",
		"file", filename,
		"predicted_class", result.PredictedClass,
		"confidence", result.Confidence)
	return &result, nil
}

// Health checks the service health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	resp, err := c.http.Get(ctx, c.baseURL+"/health")
	if err != nil {
		return nil, c.networkError(err, "/health")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.requestFailed(resp, "/health")
	}

	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, c.decodeError(err, "/health")
	}
	return &status, nil
}

// Info fetches the service metadata document. Its shape is not part of the
// contract, so it is returned as an opaque map.
func (c *Client) Info(ctx context.Context) (map[string]any, error) {
	resp, err := c.http.Get(ctx, c.baseURL+"/")
	if err != nil {
		return nil, c.networkError(err, "/")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.requestFailed(resp, "/")
	}

	var info map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, c.decodeError(err, "/")
	}
	return info, nil
}

// HTTPClient exposes the underlying http.Client for tests.
func (c *Client) HTTPClient() *http.Client {
	return c.http.HTTPClient()
}

// Close releases pooled connections.
func (c *Client) Close() {
	c.http.Close()
}

// requestFailed converts a non-2xx response into an error carrying the
// server-supplied message, falling back to the numeric status code when
// the body is unparseable.
func (c *Client) requestFailed(resp *http.Response, endpoint string) error {
	message := fmt.Sprintf("request failed with status %d", resp.StatusCode)

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err == nil {
		var body errorBody
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			message = body.Error
		}
	}

	c.logger.Warn("inference request failed",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"message", message)

	return errors.Newf("%s", message).
		Component("inference").
		Category(errors.CategoryHTTP).
		Context("endpoint", endpoint).
		Context("status_code", resp.StatusCode).
		Build()
}

func (c *Client) networkError(err error, endpoint string) error {
	return errors.New(err).
		Component("inference").
		Category(errors.CategoryNetwork).
		Context("endpoint", endpoint).
		Build()
}

func (c *Client) decodeError(err error, endpoint string) error {
	return errors.New(err).
		Component("inference").
		Category(errors.CategoryDecode).
		Context("endpoint", endpoint).
		Build()
}

// validateResult enforces the response schema: probabilities and
// confidence in [0,1], a probability per known class, and a predicted
// class that indexes the probability vector.
func validateResult(r *PredictionResult) error {
	fail := func(format string, args ...any) error {
		return errors.Newf(format, args...).
			Component("inference").
			Category(errors.CategoryDecode).
			Build()
	}

	if r.Confidence < 0 || r.Confidence > 1 {
		return fail("confidence %v outside [0,1]", r.Confidence)
	}
	if len(r.RawPredictions) != diagnosis.ClassCount {
		return fail("expected %d class probabilities, got %d", diagnosis.ClassCount, len(r.RawPredictions))
	}
	if r.PredictedClass < 0 || r.PredictedClass >= len(r.RawPredictions) {
		return fail("predicted class %d outside probability vector", r.PredictedClass)
	}
	for i, p := range r.RawPredictions {
		if p < 0 || p > 1 {
			return fail("probability %v for class %d outside [0,1]", p, i)
		}
	}
	return nil
}
