package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/logging"
	"finance-tracker/internal/models"
	"finance-tracker/internal/storage"
)

type HandlersTestSuite struct {
	suite.Suite
	ctx    context.Context
	db     *storage.DB
	auth   *auth.Service
	router http.Handler
}

func (s *HandlersTestSuite) SetupTest() {
	db, err := storage.NewDB(":memory:")
	require.NoError(s.T(), err, "failed to create test database")
	s.db = db
	s.ctx = context.Background()

	logger := logging.Discard()
	s.auth = auth.NewService(db, logger, time.Hour)
	h, err := NewHandlers(db, s.auth, logger, false)
	require.NoError(s.T(), err)
	h.now = func() time.Time { return time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC) }

	s.router, err = NewRouter(h, logger)
	require.NoError(s.T(), err)
}

func (s *HandlersTestSuite) TearDownTest() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *HandlersTestSuite) do(method, target string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, http.NoBody)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	return nil
}

// login registers username and returns its session cookie.
func (s *HandlersTestSuite) login(username string) (*models.User, *http.Cookie) {
	user, err := s.auth.Register(s.ctx, auth.RegisterInput{Username: username, Password: "secret"})
	require.NoError(s.T(), err)

	w := s.do(http.MethodPost, "/login", url.Values{"username": {username}, "password": {"secret"}}, nil)
	require.Equal(s.T(), http.StatusSeeOther, w.Code)
	cookie := sessionCookie(w)
	require.NotNil(s.T(), cookie)
	return user, cookie
}

func (s *HandlersTestSuite) addTransaction(userID int64, typ models.TransactionType, category, amount string, date time.Time) *models.Transaction {
	t := &models.Transaction{
		UserID:   userID,
		Type:     typ,
		Category: category,
		Amount:   decimal.RequireFromString(amount),
		Date:     date,
	}
	require.NoError(s.T(), s.db.CreateTransaction(s.ctx, t))
	return t
}

func (s *HandlersTestSuite) TestProtectedRoutesRedirectToLogin() {
	for _, path := range []string{"/dashboard", "/add_transaction", "/edit_transaction/1", "/delete_transaction/1", "/export/csv", "/export/pdf", "/logout"} {
		w := s.do(http.MethodGet, path, nil, nil)
		assert.Equal(s.T(), http.StatusFound, w.Code, path)
		assert.Equal(s.T(), "/login?next="+url.QueryEscape(path), w.Header().Get("Location"), path)
	}
}

func (s *HandlersTestSuite) TestInvalidCookieIsCleared() {
	w := s.do(http.MethodGet, "/dashboard", nil, &http.Cookie{Name: SessionCookieName, Value: "bogus"})
	assert.Equal(s.T(), http.StatusFound, w.Code)
	cookie := sessionCookie(w)
	require.NotNil(s.T(), cookie)
	assert.Equal(s.T(), -1, cookie.MaxAge)
}

func (s *HandlersTestSuite) TestSignupAndLogin() {
	w := s.do(http.MethodGet, "/signup", nil, nil)
	assert.Equal(s.T(), http.StatusOK, w.Code)

	form := url.Values{
		"username":         {"alice"},
		"email":            {"alice@example.com"},
		"password":         {"secret"},
		"confirm_password": {"secret"},
	}
	w = s.do(http.MethodPost, "/signup", form, nil)
	assert.Equal(s.T(), http.StatusSeeOther, w.Code)
	assert.Equal(s.T(), "/login?registered=1", w.Header().Get("Location"))

	w = s.do(http.MethodGet, "/login?registered=1", nil, nil)
	assert.Contains(s.T(), w.Body.String(), "Account created")

	// Duplicate signup is a conflict and keeps the entered values
	w = s.do(http.MethodPost, "/signup", form, nil)
	assert.Equal(s.T(), http.StatusConflict, w.Code)
	assert.Contains(s.T(), w.Body.String(), "already taken")

	w = s.do(http.MethodPost, "/login", url.Values{"username": {"alice"}, "password": {"secret"}, "next": {"/export/csv"}}, nil)
	assert.Equal(s.T(), http.StatusSeeOther, w.Code)
	assert.Equal(s.T(), "/export/csv", w.Header().Get("Location"))
	cookie := sessionCookie(w)
	require.NotNil(s.T(), cookie)
	assert.True(s.T(), cookie.HttpOnly)

	// Logged-in users skip the login page
	w = s.do(http.MethodGet, "/login", nil, cookie)
	assert.Equal(s.T(), http.StatusFound, w.Code)
	assert.Equal(s.T(), "/dashboard", w.Header().Get("Location"))
}

func (s *HandlersTestSuite) TestLoginPageRenewsAgingSession() {
	user, err := s.auth.Register(s.ctx, auth.RegisterInput{Username: "alice", Password: "secret"})
	require.NoError(s.T(), err)

	for token, path := range map[string]string{"aging-login": "/login", "aging-signup": "/signup"} {
		// Past half of the one-hour session lifetime
		require.NoError(s.T(), s.db.CreateSession(s.ctx, token, user.ID, time.Now().Add(10*time.Minute)))

		w := s.do(http.MethodGet, path, nil, &http.Cookie{Name: SessionCookieName, Value: token})
		assert.Equal(s.T(), http.StatusFound, w.Code, path)
		cookie := sessionCookie(w)
		require.NotNil(s.T(), cookie, path)
		assert.Equal(s.T(), token, cookie.Value)
		assert.Greater(s.T(), cookie.MaxAge, int((50 * time.Minute).Seconds()))

		info, err := s.db.ValidateSessionWithInfo(s.ctx, token)
		require.NoError(s.T(), err)
		assert.WithinDuration(s.T(), time.Now().Add(time.Hour), info.ExpiresAt, time.Minute)
	}
}

func (s *HandlersTestSuite) TestSignupValidation() {
	form := url.Values{"username": {"alice"}, "password": {"secret"}, "confirm_password": {"other"}}
	w := s.do(http.MethodPost, "/signup", form, nil)
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	assert.Contains(s.T(), w.Body.String(), "passwords do not match")

	long := strings.Repeat("p", auth.MaxPasswordBytes+1)
	form = url.Values{"username": {"alice"}, "password": {long}, "confirm_password": {long}}
	w = s.do(http.MethodPost, "/signup", form, nil)
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	assert.Contains(s.T(), w.Body.String(), "password must be at most 72 bytes")

	count, err := s.db.UserCount(s.ctx)
	require.NoError(s.T(), err)
	assert.Zero(s.T(), count)
}

func (s *HandlersTestSuite) TestLoginFailure() {
	_, err := s.auth.Register(s.ctx, auth.RegisterInput{Username: "alice", Password: "secret"})
	require.NoError(s.T(), err)

	for _, creds := range []url.Values{
		{"username": {"alice"}, "password": {"wrong"}},
		{"username": {"nobody"}, "password": {"secret"}},
	} {
		w := s.do(http.MethodPost, "/login", creds, nil)
		assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
		assert.Contains(s.T(), w.Body.String(), "Invalid username or password")
		assert.Nil(s.T(), sessionCookie(w))
	}
}

func (s *HandlersTestSuite) TestLoginIgnoresExternalNext() {
	_, err := s.auth.Register(s.ctx, auth.RegisterInput{Username: "alice", Password: "secret"})
	require.NoError(s.T(), err)

	w := s.do(http.MethodPost, "/login", url.Values{"username": {"alice"}, "password": {"secret"}, "next": {"//evil.example"}}, nil)
	assert.Equal(s.T(), "/dashboard", w.Header().Get("Location"))
}

func (s *HandlersTestSuite) TestLogout() {
	_, cookie := s.login("alice")

	w := s.do(http.MethodGet, "/logout", nil, cookie)
	assert.Equal(s.T(), http.StatusSeeOther, w.Code)
	assert.Equal(s.T(), "/login", w.Header().Get("Location"))

	w = s.do(http.MethodGet, "/dashboard", nil, cookie)
	assert.Equal(s.T(), http.StatusFound, w.Code, "old session must be dead")
}

func (s *HandlersTestSuite) TestRootRedirectsToDashboard() {
	_, cookie := s.login("alice")
	w := s.do(http.MethodGet, "/", nil, cookie)
	assert.Equal(s.T(), http.StatusFound, w.Code)
	assert.Equal(s.T(), "/dashboard", w.Header().Get("Location"))
}

func (s *HandlersTestSuite) TestAddTransaction() {
	user, cookie := s.login("alice")

	w := s.do(http.MethodGet, "/add_transaction", nil, cookie)
	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.Contains(s.T(), w.Body.String(), `id="transaction-form"`)

	form := url.Values{
		"type":            {"expense"},
		"category":        {"Other Expense"},
		"custom_category": {"Gifts"},
		"amount":          {"42.10"},
		"date":            {"2024-01-15T18:30"},
		"description":     {"Birthday"},
	}
	w = s.do(http.MethodPost, "/add_transaction", form, cookie)
	assert.Equal(s.T(), http.StatusSeeOther, w.Code)
	assert.Equal(s.T(), "/dashboard", w.Header().Get("Location"))

	txns, err := s.db.ListTransactions(s.ctx, user.ID, storage.TransactionFilter{})
	require.NoError(s.T(), err)
	require.Len(s.T(), txns, 1)
	assert.Equal(s.T(), "Gifts", txns[0].Category)
	assert.Equal(s.T(), "42.10", txns[0].Amount.StringFixed(2))
}

func (s *HandlersTestSuite) TestAddTransactionValidation() {
	user, cookie := s.login("alice")

	form := url.Values{"type": {"expense"}, "category": {"Food"}, "amount": {"-3"}, "description": {"kept"}}
	w := s.do(http.MethodPost, "/add_transaction", form, cookie)
	assert.Equal(s.T(), http.StatusUnprocessableEntity, w.Code)
	assert.Contains(s.T(), w.Body.String(), "amount must not be negative")
	assert.Contains(s.T(), w.Body.String(), `value="kept"`)

	txns, err := s.db.ListTransactions(s.ctx, user.ID, storage.TransactionFilter{})
	require.NoError(s.T(), err)
	assert.Empty(s.T(), txns)
}

func (s *HandlersTestSuite) TestEditTransaction() {
	user, cookie := s.login("alice")
	t := s.addTransaction(user.ID, models.TypeExpense, "Pets", "10", time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	path := "/edit_transaction/" + itoa(t.ID)

	w := s.do(http.MethodGet, path, nil, cookie)
	assert.Equal(s.T(), http.StatusOK, w.Code)
	body := w.Body.String()
	// Categories outside the catalogue come back as Other plus custom text
	assert.Contains(s.T(), body, `<option value="Other Expense" selected>`)
	assert.Contains(s.T(), body, `value="Pets"`)

	w = s.do(http.MethodPost, path, url.Values{"amount": {"12.5"}, "category": {"Food"}}, cookie)
	assert.Equal(s.T(), http.StatusSeeOther, w.Code)

	got, err := s.db.GetTransaction(s.ctx, user.ID, t.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "12.50", got.Amount.StringFixed(2))
	assert.Equal(s.T(), "Food", got.Category)
	assert.Equal(s.T(), time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), got.Date, "missing date field keeps the stored date")
}

func (s *HandlersTestSuite) TestForeignTransaction() {
	alice, _ := s.login("alice")
	_, bobCookie := s.login("bob")
	t := s.addTransaction(alice.ID, models.TypeIncome, "Salary", "1000", time.Now())
	id := itoa(t.ID)

	w := s.do(http.MethodGet, "/edit_transaction/"+id, nil, bobCookie)
	assert.Equal(s.T(), http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/edit_transaction/"+id, url.Values{"amount": {"1"}}, bobCookie)
	assert.Equal(s.T(), http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/delete_transaction/"+id, nil, bobCookie)
	assert.Equal(s.T(), http.StatusForbidden, w.Code)

	got, err := s.db.GetTransaction(s.ctx, alice.ID, t.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "1000.00", got.Amount.StringFixed(2))
}

func (s *HandlersTestSuite) TestDeleteTransaction() {
	user, cookie := s.login("alice")
	t := s.addTransaction(user.ID, models.TypeExpense, "Food", "10", time.Now())
	path := "/delete_transaction/" + itoa(t.ID)

	w := s.do(http.MethodGet, path, nil, cookie)
	assert.Equal(s.T(), http.StatusSeeOther, w.Code)

	w = s.do(http.MethodGet, path, nil, cookie)
	assert.Equal(s.T(), http.StatusNotFound, w.Code)
}

func (s *HandlersTestSuite) TestDashboard() {
	user, cookie := s.login("alice")
	s.addTransaction(user.ID, models.TypeIncome, "Salary", "1000.00", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	s.addTransaction(user.ID, models.TypeExpense, "Food", "250.50", time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC))
	s.addTransaction(user.ID, models.TypeExpense, "Housing", "900.00", time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC))

	w := s.do(http.MethodGet, "/dashboard?month=1&year=2024&type=all", nil, cookie)
	require.Equal(s.T(), http.StatusOK, w.Code)
	body := w.Body.String()

	assert.Contains(s.T(), body, `<strong id="total-income">$1,000.00</strong>`)
	assert.Contains(s.T(), body, `<strong id="total-expenses">$250.50</strong>`)
	assert.Contains(s.T(), body, `<strong id="balance">$749.50</strong>`)
	assert.Contains(s.T(), body, "January 2024, all types")
	assert.NotContains(s.T(), body, "Housing")
	assert.Contains(s.T(), body, `href="/export/csv?month=1&amp;type=all&amp;year=2024"`)
	// Period navigation lists months regardless of the filter
	assert.Contains(s.T(), body, "February 2024")
}

func (s *HandlersTestSuite) TestExportCSV() {
	user, cookie := s.login("alice")
	s.addTransaction(user.ID, models.TypeIncome, "Salary", "1000", time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC))
	s.addTransaction(user.ID, models.TypeExpense, "Food", "250.5", time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC))

	w := s.do(http.MethodGet, "/export/csv?month=1&year=2024&type=income", nil, cookie)
	require.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(s.T(), "attachment; filename=transactions_alice_Jan2024_income_20240201.csv", w.Header().Get("Content-Disposition"))
	assert.Equal(s.T(), "Date,Type,Category,Amount,Description\n2024-01-05 09:00:00,Income,Salary,1000.00,\n", w.Body.String())
}

func (s *HandlersTestSuite) TestExportPDF() {
	user, cookie := s.login("alice")
	s.addTransaction(user.ID, models.TypeExpense, "Food", "12", time.Now())

	w := s.do(http.MethodGet, "/export/pdf", nil, cookie)
	require.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(s.T(), w.Header().Get("Content-Disposition"), ".pdf")
	assert.True(s.T(), strings.HasPrefix(w.Body.String(), "%PDF-"))
}

func (s *HandlersTestSuite) TestHealth() {
	w := s.do(http.MethodGet, "/healthz", nil, nil)
	require.Equal(s.T(), http.StatusOK, w.Code)

	var resp healthResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "ok", resp.Status)
	assert.Equal(s.T(), "sqlite", resp.Database)
}

func (s *HandlersTestSuite) TestSecurityHeaders() {
	w := s.do(http.MethodGet, "/login", nil, nil)
	assert.Equal(s.T(), "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(s.T(), "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(s.T(), w.Header().Get(logging.RequestIDHeader))
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                     "/dashboard",
		"/export/csv?month=1":  "/export/csv?month=1",
		"https://evil.example": "/dashboard",
		"//evil.example":       "/dashboard",
		"/\\evil.example":      "/dashboard",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeNext(in), in)
	}
}
