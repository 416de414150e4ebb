package httpcontroller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/labstack/echo/v4"
	"github.com/respireai/respire-web/internal/conf"
	"github.com/respireai/respire-web/internal/inference"
	"github.com/respireai/respire-web/internal/patient"
	"github.com/respireai/respire-web/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const testInferenceURL = "http://inference.test"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

func newTestServer(t *testing.T) (*Server, *session.MemoryStore) {
	t.Helper()

	settings := &conf.Settings{}
	settings.Main.Name = "RespireAI"
	settings.WebServer.Port = "8080"
	settings.Inference.BaseURL = testInferenceURL
	settings.Inference.Timeout = 5 * time.Second
	settings.Report.ClinicName = "RespireAI"

	store := session.NewMemoryStore()
	client := inference.New(&settings.Inference, nil)
	httpmock.ActivateNonDefault(client.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	t.Cleanup(client.Close)

	return New(settings, store, client), store
}

func healthyResponder() httpmock.Responder {
	return httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]string{
		"status":       "healthy",
		"message":      "API is running",
		"model_status": "loaded",
	})
}

func predictionResponder() httpmock.Responder {
	return httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
		"predicted_class": 0,
		"label":           "Healthy / Normal",
		"description":     "No significant respiratory abnormalities detected.",
		"confidence":      0.92,
		"raw_predictions": []float64{0.92, 0.02, 0.01, 0.01, 0.02, 0.01, 0.01},
	})
}

// uploadBody builds a multipart body with a file part and the source field.
func uploadBody(t *testing.T, filename, contentType, source string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)

	require.NoError(t, w.WriteField("source", source))
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func TestPublicPagesRender(t *testing.T) {
	s, _ := newTestServer(t)

	pages := map[string]string{
		"/":             "Respiratory analysis",
		"/about":        "About RespireAI",
		"/how-it-works": "How It Works",
		"/features":     "Features",
		"/contact":      "Contact",
	}
	for path, marker := range pages {
		req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
		rec := doRequest(s, req)

		assert.Equal(t, http.StatusOK, rec.Code, "page %s", path)
		assert.Contains(t, rec.Body.String(), marker, "page %s", path)
	}
}

func TestUnknownPathRendersNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/no-such-page", http.NoBody)
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page Not Found")
}

func TestPredictPageRequiresLogin(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/predict", http.NoBody)
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	// The guard must short-circuit before any upstream probe.
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestAPIPredictRequiresLogin(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", http.NoBody)
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"authentication required"}`, rec.Body.String())
}

func TestLoginRequiresBothFields(t *testing.T) {
	s, store := newTestServer(t)

	form := url.Values{"email": {"user@example.com"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, "application/x-www-form-urlencoded")
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please enter both email and password")

	state, err := store.Get(nil)
	require.NoError(t, err)
	assert.False(t, state.LoggedIn)
}

func TestLoginSignsInAndRedirects(t *testing.T) {
	s, store := newTestServer(t)

	form := url.Values{"email": {"user@example.com"}, "password": {"hunter2"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, "application/x-www-form-urlencoded")
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/predict", rec.Header().Get("Location"))

	state, err := store.Get(nil)
	require.NoError(t, err)
	assert.True(t, state.LoggedIn)
	assert.Equal(t, "user@example.com", state.Email)
}

func TestRegisterRejectsIncompleteProfile(t *testing.T) {
	s, store := newTestServer(t)

	form := url.Values{
		"name":  {"John Doe"},
		"age":   {"58"},
		"email": {"john@example.com"},
		// patientId missing
	}
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, "application/x-www-form-urlencoded")
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please fill in all required fields")

	state, err := store.Get(nil)
	require.NoError(t, err)
	assert.False(t, state.LoggedIn)
}

func TestRegisterStoresProfileAndRedirects(t *testing.T) {
	s, store := newTestServer(t)

	form := url.Values{
		"name":      {"John Doe"},
		"age":       {"58"},
		"gender":    {"male"},
		"patientId": {"P12345"},
		"email":     {"john@example.com"},
		"allergies": {"penicillin"},
	}
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, "application/x-www-form-urlencoded")
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/predict", rec.Header().Get("Location"))

	state, err := store.Get(nil)
	require.NoError(t, err)
	assert.True(t, state.LoggedIn)
	assert.Equal(t, "john@example.com", state.Email)
	require.NotNil(t, state.Patient)
	assert.Equal(t, "P12345", state.Patient.PatientID)
	assert.Equal(t, 58, state.Patient.Age)
}

func TestLogoutClearsSession(t *testing.T) {
	s, store := newTestServer(t)
	require.NoError(t, store.SignIn(nil, "user@example.com"))

	req := httptest.NewRequest(http.MethodPost, "/logout", http.NoBody)
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	state, err := store.Get(nil)
	require.NoError(t, err)
	assert.False(t, state.LoggedIn)
	assert.Empty(t, state.Email)
	assert.Nil(t, state.Patient)
}

func TestLoginPageRedirectsWhenLoggedIn(t *testing.T) {
	s, store := newTestServer(t)
	require.NoError(t, store.SignIn(nil, "user@example.com"))

	req := httptest.NewRequest(http.MethodGet, "/login", http.NoBody)
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/predict", rec.Header().Get("Location"))
}

func TestPredictPageShowsServiceHealth(t *testing.T) {
	s, store := newTestServer(t)
	require.NoError(t, store.SignIn(nil, "user@example.com"))
	httpmock.RegisterResponder(http.MethodGet, testInferenceURL+"/health", healthyResponder())

	req := httptest.NewRequest(http.MethodGet, "/predict", http.NoBody)
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "status-online")
	assert.NotContains(t, rec.Body.String(), "status-offline")
}

func TestPredictPageShowsOfflineService(t *testing.T) {
	s, store := newTestServer(t)
	require.NoError(t, store.SignIn(nil, "user@example.com"))
	// No /health responder registered: the probe fails.

	req := httptest.NewRequest(http.MethodGet, "/predict", http.NoBody)
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "offline")
}

func TestPredictFormRendersResult(t *testing.T) {
	s, store := newTestServer(t)
	require.NoError(t, store.SignIn(nil, "user@example.com"))
	httpmock.RegisterResponder(http.MethodGet, testInferenceURL+"/health", healthyResponder())
	httpmock.RegisterResponder(http.MethodPost, testInferenceURL+"/predict", predictionResponder())

	body, contentType := uploadBody(t, "breath.wav", "audio/wav", "picker", []byte("RIFFdata"))
	req := httptest.NewRequest(http.MethodPost, "/predict", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	assert.Contains(t, page, "Healthy / Normal")
	assert.Contains(t, page, "badge-green")
	assert.Contains(t, page, "92.0%")
	assert.Contains(t, page, "breath.wav")
	// All seven condition rows render.
	for _, label := range []string{
		"Asthma", "Bronchiectasis", "Bronchiolitis", "COPD",
		"LRTI (Lower Respiratory Tract Infection)", "Pneumonia",
	} {
		assert.Contains(t, page, label)
	}
}

func TestPredictFormRejectsNonAudioDrop(t *testing.T) {
	s, store := newTestServer(t)
	require.NoError(t, store.SignIn(nil, "user@example.com"))
	httpmock.RegisterResponder(http.MethodGet, testInferenceURL+"/health", healthyResponder())

	body, contentType := uploadBody(t, "notes.txt", "text/plain", "drop", []byte("not audio"))
	req := httptest.NewRequest(http.MethodPost, "/predict", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please select an audio file")

	// The rejected drop must not reach the upstream.
	info := httpmock.GetCallCountInfo()
	assert.Zero(t, info["POST "+testInferenceURL+"/predict"])
}

func TestAPIPredictReturnsResult(t *testing.T) {
	s, store := newTestServer(t)
	require.NoError(t, store.SignIn(nil, "user@example.com"))
	httpmock.RegisterResponder(http.MethodPost, testInferenceURL+"/predict", predictionResponder())

	body, contentType := uploadBody(t, "breath.wav", "audio/wav", "picker", []byte("RIFFdata"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := doRequest(s, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Result   *inference.PredictionResult `json:"result"`
		FileName string                      `json:"file_name"`
		FileSize string                      `json:"file_size"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.NotNil(t, payload.Result)
	assert.Equal(t, "Healthy / Normal", payload.Result.Label)
	assert.Equal(t, "breath.wav", payload.FileName)
	assert.Equal(t, "0.00 MB", payload.FileSize)
}

func TestAPIPredictMapsUpstreamErrors(t *testing.T) {
	s, store := newTestServer(t)
	require.NoError(t, store.SignIn(nil, "user@example.com"))
	httpmock.RegisterResponder(http.MethodPost, testInferenceURL+"/predict",
		httpmock.NewJsonResponderOrPanic(http.StatusInternalServerError, map[string]string{
			"error": "Error making prediction",
		}))

	body, contentType := uploadBody(t, "breath.wav", "audio/wav", "picker", []byte("RIFFdata"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"Error making prediction"}`, rec.Body.String())
}

func TestAPIPredictMissingFile(t *testing.T) {
	s, store := newTestServer(t)
	require.NoError(t, store.SignIn(nil, "user@example.com"))

	form := url.Values{"source": {"picker"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, "application/x-www-form-urlencoded")
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Please select an audio file"}`, rec.Body.String())
}

func TestAPIHealthPassesThrough(t *testing.T) {
	s, _ := newTestServer(t)
	httpmock.RegisterResponder(http.MethodGet, testInferenceURL+"/health", healthyResponder())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", http.NoBody)
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var status inference.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "loaded", status.ModelStatus)
}

func TestAPIHealthIsCached(t *testing.T) {
	s, _ := newTestServer(t)
	httpmock.RegisterResponder(http.MethodGet, testInferenceURL+"/health", healthyResponder())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", http.NoBody)
		rec := doRequest(s, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, info["GET "+testInferenceURL+"/health"])
}

func TestAPIHealthReportsOffline(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", http.NoBody)
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "offline")
}

func TestAPIReportWithoutResult(t *testing.T) {
	s, store := newTestServer(t)
	require.NoError(t, store.SignIn(nil, "user@example.com"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/report", http.NoBody)
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no prediction result")
}

func testProfile() *patient.Profile {
	return &patient.Profile{
		Name:      "John Doe",
		Age:       58,
		Gender:    patient.GenderMale,
		PatientID: "P12345",
		Email:     "john@example.com",
	}
}

// runPredictForm submits a successful upload and returns the flow cookie
// binding later requests to the same upload flow.
func runPredictForm(t *testing.T, s *Server) *http.Cookie {
	t.Helper()
	httpmock.RegisterResponder(http.MethodGet, testInferenceURL+"/health", healthyResponder())
	httpmock.RegisterResponder(http.MethodPost, testInferenceURL+"/predict", predictionResponder())

	body, contentType := uploadBody(t, "breath.wav", "audio/wav", "picker", []byte("RIFFdata"))
	req := httptest.NewRequest(http.MethodPost, "/predict", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := doRequest(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == flowCookieName {
			return cookie
		}
	}
	t.Fatal("flow cookie not set by upload")
	return nil
}

func TestAPIReportTextDownload(t *testing.T) {
	s, store := newTestServer(t)
	require.NoError(t, store.Register(nil, "john@example.com", testProfile()))
	cookie := runPredictForm(t, s)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/report?format=text", http.NoBody)
	req.AddCookie(cookie)
	rec := doRequest(s, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "attachment")
	text := rec.Body.String()
	assert.Contains(t, text, "RESPIREAI - RESPIRATORY ANALYSIS REPORT")
	assert.Contains(t, text, "breath.wav")
	assert.Contains(t, text, "John Doe")
}

func TestAPIReportPDFDownload(t *testing.T) {
	s, store := newTestServer(t)
	require.NoError(t, store.SignIn(nil, "user@example.com"))
	cookie := runPredictForm(t, s)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/report?format=pdf", http.NoBody)
	req.AddCookie(cookie)
	rec := doRequest(s, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get(echo.HeaderContentType))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
}

func TestAPIReportUnsupportedFormat(t *testing.T) {
	s, store := newTestServer(t)
	require.NoError(t, store.SignIn(nil, "user@example.com"))
	cookie := runPredictForm(t, s)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/report?format=docx", http.NoBody)
	req.AddCookie(cookie)
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, store := newTestServer(t)
	require.NoError(t, store.SignIn(nil, "user@example.com"))
	runPredictForm(t, s)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "respireai_predictions_total")
	assert.Contains(t, body, "respireai_inference_up")
}
