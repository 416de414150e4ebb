package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/respireai/respire-web/internal/conf"
	"github.com/respireai/respire-web/internal/patient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *CookieStore {
	return NewCookieStore(&conf.SessionSettings{Secret: "test-secret"})
}

// newContext builds an echo context carrying the given cookies.
func newContext(e *echo.Echo, cookies []*http.Cookie) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestCookieStoreSignInRoundTrip(t *testing.T) {
	t.Parallel()

	e := echo.New()
	store := newTestStore()

	c, rec := newContext(e, nil)
	require.NoError(t, store.SignIn(c, "a@b.com"))

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	c2, _ := newContext(e, cookies)
	state, err := store.Get(c2)
	require.NoError(t, err)
	assert.True(t, state.LoggedIn)
	assert.Equal(t, "a@b.com", state.Email)
	assert.Nil(t, state.Patient)
}

func TestCookieStoreRegisterStoresProfile(t *testing.T) {
	t.Parallel()

	e := echo.New()
	store := newTestStore()

	profile := &patient.Profile{
		Name:      "Jane Doe",
		Age:       31,
		Gender:    patient.GenderFemale,
		PatientID: "P777",
		Email:     "jane@example.com",
	}

	c, rec := newContext(e, nil)
	require.NoError(t, store.Register(c, profile.Email, profile))

	c2, _ := newContext(e, rec.Result().Cookies())
	state, err := store.Get(c2)
	require.NoError(t, err)
	assert.True(t, state.LoggedIn)
	assert.Equal(t, "jane@example.com", state.Email)
	require.NotNil(t, state.Patient)
	assert.Equal(t, profile, state.Patient)
}

func TestCookieStoreClearRemovesAllFields(t *testing.T) {
	t.Parallel()

	e := echo.New()
	store := newTestStore()

	c, rec := newContext(e, nil)
	require.NoError(t, store.Register(c, "jane@example.com", &patient.Profile{
		Name: "Jane", Age: 31, PatientID: "P777", Email: "jane@example.com",
	}))

	// Clear against the signed-in session
	c2, rec2 := newContext(e, rec.Result().Cookies())
	require.NoError(t, store.Clear(c2))

	// The cleared cookie must read back as fully logged out
	c3, _ := newContext(e, rec2.Result().Cookies())
	state, err := store.Get(c3)
	require.NoError(t, err)
	assert.False(t, state.LoggedIn)
	assert.Empty(t, state.Email)
	assert.Nil(t, state.Patient)
}

func TestCookieStoreMissingSessionReadsLoggedOut(t *testing.T) {
	t.Parallel()

	e := echo.New()
	store := newTestStore()

	c, _ := newContext(e, nil)
	state, err := store.Get(c)
	require.NoError(t, err)
	assert.False(t, state.LoggedIn)
}

func TestCookieStoreUndecodableCookieReadsLoggedOut(t *testing.T) {
	t.Parallel()

	e := echo.New()
	store := newTestStore()

	c, _ := newContext(e, []*http.Cookie{{Name: SessionName, Value: "garbage"}})
	state, err := store.Get(c)
	require.NoError(t, err)
	assert.False(t, state.LoggedIn)
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	m := NewMemoryStore()

	require.NoError(t, m.SignIn(nil, "a@b.com"))
	state, err := m.Get(nil)
	require.NoError(t, err)
	assert.True(t, state.LoggedIn)

	require.NoError(t, m.Clear(nil))
	state, err = m.Get(nil)
	require.NoError(t, err)
	assert.Equal(t, &State{}, state)
}
