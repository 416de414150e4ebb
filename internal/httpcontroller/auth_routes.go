// httpcontroller/auth_routes.go
package httpcontroller

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/respireai/respire-web/internal/patient"
)

// loginRoute backs the standalone login page, which lives outside the
// page route table.
var loginRoute = routeConfig{Path: "/login", TemplateName: "login", Title: "Login"}

// handleLoginPage serves the combined login / patient registration page.
// An already logged-in visitor is sent straight to the analysis page.
func (s *Server) handleLoginPage(c echo.Context) error {
	state, _ := s.Store.Get(c)
	if state != nil && state.LoggedIn {
		return c.Redirect(http.StatusFound, "/predict")
	}
	return c.Render(http.StatusOK, "index", s.buildPageData(c, &loginRoute))
}

// handleLogin processes the mock login form. Any non-empty credential
// pair is accepted; only the email is retained.
func (s *Server) handleLogin(c echo.Context) error {
	email := c.FormValue("email")
	password := c.FormValue("password")

	if email == "" || password == "" {
		data := s.buildPageData(c, &loginRoute)
		data.FormError = "Please enter both email and password"
		return c.Render(http.StatusBadRequest, "index", data)
	}

	if err := s.Store.SignIn(c, email); err != nil {
		s.LogError(c, err, "Failed to save login session")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to log in")
	}
	return c.Redirect(http.StatusFound, "/predict")
}

// handleRegister processes the patient registration form and logs the
// visitor in with the registered profile attached.
func (s *Server) handleRegister(c echo.Context) error {
	age, _ := strconv.Atoi(c.FormValue("age"))
	profile := &patient.Profile{
		Name:               c.FormValue("name"),
		Age:                age,
		Gender:             c.FormValue("gender"),
		PatientID:          c.FormValue("patientId"),
		DateOfBirth:        c.FormValue("dateOfBirth"),
		ContactNumber:      c.FormValue("contactNumber"),
		Email:              c.FormValue("email"),
		Address:            c.FormValue("address"),
		MedicalHistory:     c.FormValue("medicalHistory"),
		CurrentMedications: c.FormValue("currentMedications"),
		Allergies:          c.FormValue("allergies"),
	}

	if err := profile.Validate(); err != nil {
		data := s.buildPageData(c, &loginRoute)
		data.FormError = err.Error()
		return c.Render(http.StatusBadRequest, "index", data)
	}

	if err := s.Store.Register(c, profile.Email, profile); err != nil {
		s.LogError(c, err, "Failed to save registration session")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to register")
	}
	return c.Redirect(http.StatusFound, "/predict")
}

// handleLogout clears the session and returns to the login page.
func (s *Server) handleLogout(c echo.Context) error {
	if err := s.Store.Clear(c); err != nil {
		s.LogError(c, err, "Failed to clear session")
	}
	return c.Redirect(http.StatusFound, "/login")
}
