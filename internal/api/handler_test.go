package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/microfinlabs/microfin-server/internal/models"
	"github.com/microfinlabs/microfin-server/internal/repository"
	"github.com/microfinlabs/microfin-server/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testJWTSecret = "handler-test-secret"

func newTestRouter() *gin.Engine {
	return newTestRouterWithRepo(repository.NewMemoryRepository())
}

func newTestRouterWithRepo(repo repository.Repository) *gin.Engine {
	gin.SetMode(gin.TestMode)

	svc := service.NewDefaultService(repo, testJWTSecret, zap.NewNop())
	handler := NewHandler(svc)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(testJWTSecret))
		c.Next()
	})
	handler.SetupRoutes(router)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

// registerAndLogin onboards an organization and returns an admin token.
func registerAndLogin(t *testing.T, router *gin.Engine) string {
	t.Helper()

	w := doJSON(t, router, http.MethodPost, "/api/auth/register-organization", "", gin.H{
		"organizationName": "Acme Microfinance",
		"subdomain":        "acme",
		"adminEmail":       "admin@acme.test",
		"adminPassword":    "supersecret",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "admin@acme.test",
		"password": "supersecret",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	auth := decode[models.AuthResponse](t, w)
	require.NotEmpty(t, auth.Token)
	return auth.Token
}

func TestRegisterOrganizationAndLoginFlow(t *testing.T) {
	router := newTestRouter()
	token := registerAndLogin(t, router)
	assert.NotEmpty(t, token)

	// Wrong password never leaks whether the account exists
	w := doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "admin@acme.test",
		"password": "wrongpassword",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	errResp := decode[models.ErrorResponse](t, w)
	assert.Equal(t, "UNAUTHORIZED", errResp.Code)
}

// brokenUserLookupRepo simulates storage failing underneath a login.
type brokenUserLookupRepo struct {
	repository.Repository
}

func (r *brokenUserLookupRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, errors.New("connection reset by peer")
}

func TestLoginInfrastructureFailureIsNotUnauthorized(t *testing.T) {
	router := newTestRouterWithRepo(&brokenUserLookupRepo{Repository: repository.NewMemoryRepository()})

	w := doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "admin@acme.test",
		"password": "supersecret",
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	errResp := decode[models.ErrorResponse](t, w)
	assert.Equal(t, "INTERNAL_ERROR", errResp.Code)
}

func TestTeamAndSettingsEndpoints(t *testing.T) {
	router := newTestRouter()
	adminToken := registerAndLogin(t, router)

	w := doJSON(t, router, http.MethodPost, "/api/team/members", adminToken, gin.H{
		"email":    "officer@acme.test",
		"password": "password123",
		"role":     "loan_officer",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	officer := decode[models.User](t, w)
	assert.Equal(t, models.RoleLoanOfficer, officer.Role)
	// Password hashes never leave the API
	assert.NotContains(t, w.Body.String(), "password")

	w = doJSON(t, router, http.MethodGet, "/api/team/members", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	team := decode[models.TeamMembersResponse](t, w)
	require.Len(t, team.Members, 2)

	w = doJSON(t, router, http.MethodPut, "/api/settings", adminToken, gin.H{
		"currency":       "UGX",
		"configurations": gin.H{"late_fee_grace_days": 5},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/api/settings", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	settings := decode[models.TenantSettingsResponse](t, w)
	require.NotNil(t, settings.Settings)
	assert.Equal(t, "UGX", settings.Settings.Currency)

	// Non-admins are shut out of both surfaces
	w = doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "officer@acme.test",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	officerToken := decode[models.AuthResponse](t, w).Token

	w = doJSON(t, router, http.MethodGet, "/api/settings", officerToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	forbidden := decode[models.ErrorResponse](t, w)
	assert.Equal(t, "FORBIDDEN", forbidden.Code)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	router := newTestRouter()

	w := doJSON(t, router, http.MethodGet, "/api/ledger/entries", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/ledger/entries", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusUnauthorized, w2.Code)
}

func TestLoanLifecycleOverHTTP(t *testing.T) {
	router := newTestRouter()
	adminToken := registerAndLogin(t, router)

	w := doJSON(t, router, http.MethodPost, "/api/loan-products", adminToken, gin.H{
		"name":            "Standard Loan",
		"interestRate":    "10",
		"maxTenureMonths": 24,
		"penaltyType":     "flat",
		"penaltyValue":    "5",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	product := decode[models.LoanProduct](t, w)

	w = doJSON(t, router, http.MethodPost, "/api/auth/register-client", "", gin.H{
		"subdomain": "acme",
		"firstName": "Wanja",
		"lastName":  "Kimani",
		"email":     "wanja@example.test",
		"password":  "clientpass1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	clientAuth := decode[models.AuthResponse](t, w)
	require.NotEmpty(t, clientAuth.Token)

	w = doJSON(t, router, http.MethodPost, "/api/loans/apply", clientAuth.Token, gin.H{
		"loanProductId":   product.ID,
		"amountRequested": "1000",
		"tenureMonths":    3,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	applied := decode[models.LoanResponse](t, w)
	require.NotNil(t, applied.Loan)
	assert.Equal(t, models.LoanStatusPending, applied.Loan.Status)
	loanID := applied.Loan.ID

	w = doJSON(t, router, http.MethodGet, "/api/loans", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	loanList := decode[models.LoanListResponse](t, w)
	require.Len(t, loanList.Loans, 1)

	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/loans/%s/approve", loanID), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Repeated approval reports the conflicting state
	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/loans/%s/approve", loanID), adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	conflict := decode[models.ErrorResponse](t, w)
	assert.Equal(t, "CONFLICT", conflict.Code)
	assert.Equal(t, string(models.LoanStatusApproved), conflict.CurrentState)

	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/loans/%s/disburse", loanID), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	disbursed := decode[models.LoanResponse](t, w)
	assert.Equal(t, models.LoanStatusDisbursed, disbursed.Loan.Status)

	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/loans/%s/schedule", loanID), clientAuth.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	schedule := decode[models.ScheduleResponse](t, w)
	require.Len(t, schedule.Schedule, 3)

	w = doJSON(t, router, http.MethodPost, "/api/repayments", adminToken, gin.H{
		"loanId":     loanID,
		"scheduleId": schedule.Schedule[0].ID,
		"amountPaid": schedule.Schedule[0].AmountDue.String(),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	repayment := decode[models.RepaymentResponse](t, w)
	require.NotNil(t, repayment.Transaction)

	// Disbursement and repayment each post two balanced ledger legs
	w = doJSON(t, router, http.MethodGet, "/api/ledger/entries", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ledger := decode[models.LedgerEntriesResponse](t, w)
	assert.Len(t, ledger.Entries, 4)
}

func TestLoanEndpointsErrorMapping(t *testing.T) {
	router := newTestRouter()
	adminToken := registerAndLogin(t, router)

	w := doJSON(t, router, http.MethodGet, "/api/loans/no-such-loan", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	notFound := decode[models.ErrorResponse](t, w)
	assert.Equal(t, "NOT_FOUND", notFound.Code)

	// Malformed payloads bounce before reaching the service
	w = doJSON(t, router, http.MethodPost, "/api/loans/apply", adminToken, gin.H{
		"loanProductId": "x",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	bad := decode[models.ErrorResponse](t, w)
	assert.Equal(t, "VALIDATION_ERROR", bad.Code)
}

func TestRegisterOrganizationBindValidation(t *testing.T) {
	router := newTestRouter()

	w := doJSON(t, router, http.MethodPost, "/api/auth/register-organization", "", gin.H{
		"organizationName": "Bad Subdomain Org",
		"subdomain":        "Has Spaces",
		"adminEmail":       "admin@bad.test",
		"adminPassword":    "supersecret",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
