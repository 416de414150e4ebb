// Package session holds the login state and optional patient profile for
// the current browser. The state lives in a signed cookie; handlers reach
// it only through the Store interface so tests can substitute a fake.
package session

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/respireai/respire-web/internal/conf"
	"github.com/respireai/respire-web/internal/errors"
	"github.com/respireai/respire-web/internal/patient"
)

// Cookie name for the session.
const SessionName = "respireai-session"

// Stored value keys. These mirror the three persisted fields of the
// session state and are always written and cleared together.
const (
	keyLoggedIn       = "isLoggedIn"
	keyUserEmail      = "userEmail"
	keyPatientDetails = "patientDetails"
)

// State is the session snapshot read at page entry.
type State struct {
	LoggedIn bool
	Email    string
	Patient  *patient.Profile
}

// Store abstracts session persistence. All three session fields are
// treated as one record: SignIn and Register replace it, Clear removes it
// entirely. Partial state is never a valid outcome.
type Store interface {
	// Get reads the current session state. A missing or undecodable
	// session reads as a logged-out state, not an error.
	Get(c echo.Context) (*State, error)

	// SignIn marks the session as logged in under the given email.
	// A previously registered patient profile is kept.
	SignIn(c echo.Context, email string) error

	// Register marks the session as logged in and stores the profile.
	Register(c echo.Context, email string, profile *patient.Profile) error

	// Clear removes the logged-in flag, email and patient profile in a
	// single operation.
	Clear(c echo.Context) error
}

// CookieStore persists the session state in a signed cookie.
type CookieStore struct {
	store *sessions.CookieStore
	name  string
}

// buildSessionOptions creates session options with standard security
// settings. The secure parameter controls whether cookies require HTTPS,
// maxAge is the session duration in seconds (zero yields a session cookie).
func buildSessionOptions(secure bool, maxAge int) *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// NewCookieStore creates a cookie-backed session store from the session
// settings. An empty secret gets a random one, which invalidates sessions
// across restarts.
func NewCookieStore(settings *conf.SessionSettings) *CookieStore {
	secret := settings.Secret
	if secret == "" {
		secret = conf.GenerateRandomSecret()
	}
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = buildSessionOptions(settings.Secure, settings.MaxAge)
	return &CookieStore{store: store, name: SessionName}
}

func (s *CookieStore) session(c echo.Context) *sessions.Session {
	// An undecodable cookie still yields a usable new session, so the
	// error is intentionally dropped: it reads as logged out.
	sess, _ := s.store.Get(c.Request(), s.name)
	return sess
}

func (s *CookieStore) Get(c echo.Context) (*State, error) {
	sess := s.session(c)

	state := &State{}
	if flag, ok := sess.Values[keyLoggedIn].(string); ok && flag == "true" {
		state.LoggedIn = true
	}
	if email, ok := sess.Values[keyUserEmail].(string); ok {
		state.Email = email
	}
	if raw, ok := sess.Values[keyPatientDetails].(string); ok {
		profile, err := patient.Unmarshal(raw)
		if err != nil {
			// A corrupt stored profile must not lock the user out of the
			// results page; it reads as no profile.
			return state, err
		}
		state.Patient = profile
	}
	return state, nil
}

func (s *CookieStore) SignIn(c echo.Context, email string) error {
	sess := s.session(c)
	sess.Values[keyLoggedIn] = "true"
	sess.Values[keyUserEmail] = email
	return s.save(c, sess)
}

func (s *CookieStore) Register(c echo.Context, email string, profile *patient.Profile) error {
	raw, err := profile.Marshal()
	if err != nil {
		return err
	}
	sess := s.session(c)
	sess.Values[keyLoggedIn] = "true"
	sess.Values[keyUserEmail] = email
	sess.Values[keyPatientDetails] = raw
	return s.save(c, sess)
}

func (s *CookieStore) Clear(c echo.Context) error {
	sess := s.session(c)
	delete(sess.Values, keyLoggedIn)
	delete(sess.Values, keyUserEmail)
	delete(sess.Values, keyPatientDetails)
	// MaxAge -1 expires the cookie immediately, removing all fields at once
	sess.Options.MaxAge = -1
	return s.save(c, sess)
}

func (s *CookieStore) save(c echo.Context, sess *sessions.Session) error {
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return errors.New(err).
			Component("session").
			Category(errors.CategorySession).
			Context("operation", "save-session").
			Build()
	}
	return nil
}
