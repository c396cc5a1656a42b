package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/services"
	"fintrack/internal/validator"
)

// --- mock services ---

type mockObligationService struct {
	createObligationFn   func(userID string, input services.ObligationInput) (*models.RecurringObligation, error)
	getUserObligationsFn func(userID string, page pagination.PageRequest, isActive *bool) (*pagination.PageResponse[models.RecurringObligation], error)
	getObligationByIDFn  func(userID, obligationID string) (*models.RecurringObligation, error)
	updateObligationFn   func(userID, obligationID string, update services.ObligationUpdate) (*models.RecurringObligation, error)
	deleteObligationFn   func(userID, obligationID string) error
	pauseFn              func(userID, obligationID string) (*models.RecurringObligation, error)
	resumeFn             func(userID, obligationID string) (*models.RecurringObligation, error)
	evaluateDueFn        func(ctx context.Context, userID string, now time.Time) ([]services.ProcessResult, error)
	processFn            func(userID, obligationID string, now time.Time) (*services.ProcessResult, error)
	upcomingRemindersFn  func(userID string, now time.Time) ([]models.Alert, error)
}

var _ services.ObligationServicer = (*mockObligationService)(nil)

func (m *mockObligationService) CreateObligation(userID string, input services.ObligationInput) (*models.RecurringObligation, error) {
	if m.createObligationFn != nil {
		return m.createObligationFn(userID, input)
	}
	return &models.RecurringObligation{}, nil
}

func (m *mockObligationService) GetUserObligations(userID string, page pagination.PageRequest, isActive *bool) (*pagination.PageResponse[models.RecurringObligation], error) {
	if m.getUserObligationsFn != nil {
		return m.getUserObligationsFn(userID, page, isActive)
	}
	return &pagination.PageResponse[models.RecurringObligation]{}, nil
}

func (m *mockObligationService) GetObligationByID(userID, obligationID string) (*models.RecurringObligation, error) {
	if m.getObligationByIDFn != nil {
		return m.getObligationByIDFn(userID, obligationID)
	}
	return &models.RecurringObligation{}, nil
}

func (m *mockObligationService) UpdateObligation(userID, obligationID string, update services.ObligationUpdate) (*models.RecurringObligation, error) {
	if m.updateObligationFn != nil {
		return m.updateObligationFn(userID, obligationID, update)
	}
	return &models.RecurringObligation{}, nil
}

func (m *mockObligationService) DeleteObligation(userID, obligationID string) error {
	if m.deleteObligationFn != nil {
		return m.deleteObligationFn(userID, obligationID)
	}
	return nil
}

func (m *mockObligationService) Pause(userID, obligationID string) (*models.RecurringObligation, error) {
	if m.pauseFn != nil {
		return m.pauseFn(userID, obligationID)
	}
	return &models.RecurringObligation{}, nil
}

func (m *mockObligationService) Resume(userID, obligationID string) (*models.RecurringObligation, error) {
	if m.resumeFn != nil {
		return m.resumeFn(userID, obligationID)
	}
	return &models.RecurringObligation{}, nil
}

func (m *mockObligationService) EvaluateDue(ctx context.Context, userID string, now time.Time) ([]services.ProcessResult, error) {
	if m.evaluateDueFn != nil {
		return m.evaluateDueFn(ctx, userID, now)
	}
	return nil, nil
}

func (m *mockObligationService) Process(userID, obligationID string, now time.Time) (*services.ProcessResult, error) {
	if m.processFn != nil {
		return m.processFn(userID, obligationID, now)
	}
	return &services.ProcessResult{}, nil
}

func (m *mockObligationService) UpcomingReminders(userID string, now time.Time) ([]models.Alert, error) {
	if m.upcomingRemindersFn != nil {
		return m.upcomingRemindersFn(userID, now)
	}
	return nil, nil
}

// --- test helpers ---

const (
	testUserID       = "0191c2f4-7d3a-7b1e-9f4a-2c8e6b5d3a10"
	testObligationID = "0191c2f4-7d3a-7b1e-9f4a-2c8e6b5d3a11"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

func injectUserID(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", uid)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

func setupObligationRouter(handler *ObligationHandler) *gin.Engine {
	r := gin.New()
	obligations := r.Group("/obligations", injectUserID(testUserID))
	obligations.POST("", handler.CreateObligation)
	obligations.GET("", handler.GetObligations)
	obligations.POST("/evaluate", handler.EvaluateObligations)
	obligations.GET("/reminders", handler.GetUpcomingReminders)
	obligations.GET("/:id", handler.GetObligation)
	obligations.PUT("/:id", handler.UpdateObligation)
	obligations.DELETE("/:id", handler.DeleteObligation)
	obligations.POST("/:id/pause", handler.PauseObligation)
	obligations.POST("/:id/resume", handler.ResumeObligation)
	obligations.POST("/:id/process", handler.ProcessObligation)
	return r
}

// --- tests ---

func TestObligationHandler_CreateObligation(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		svc := &mockObligationService{
			createObligationFn: func(userID string, input services.ObligationInput) (*models.RecurringObligation, error) {
				if userID != testUserID {
					t.Errorf("expected user ID %q, got %q", testUserID, userID)
				}
				if input.Frequency != models.FrequencyMonthly {
					t.Errorf("expected monthly frequency, got %q", input.Frequency)
				}
				return &models.RecurringObligation{
					Base:        models.Base{ID: testObligationID},
					UserID:      userID,
					Name:        input.Name,
					Kind:        input.Kind,
					Amount:      input.Amount,
					Frequency:   input.Frequency,
					StartDate:   input.StartDate,
					NextDueDate: input.StartDate,
					IsActive:    true,
				}, nil
			},
		}
		r := setupObligationRouter(NewObligationHandler(svc))

		rec := doRequest(r, http.MethodPost, "/obligations", `{
			"name": "Rent",
			"kind": "expense",
			"amount": 120000,
			"category_name": "Housing",
			"frequency": "monthly",
			"start_date": "2024-01-15T00:00:00Z",
			"day_of_month": 15,
			"auto_process": true
		}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		obligation, ok := result["obligation"].(map[string]interface{})
		if !ok {
			t.Fatalf("expected obligation object in response, got: %v", result)
		}
		if obligation["name"] != "Rent" {
			t.Errorf("expected name Rent, got %v", obligation["name"])
		}
	})

	t.Run("returns 400 for invalid frequency", func(t *testing.T) {
		r := setupObligationRouter(NewObligationHandler(&mockObligationService{}))

		rec := doRequest(r, http.MethodPost, "/obligations", `{
			"name": "Rent",
			"kind": "expense",
			"amount": 120000,
			"frequency": "fortnightly",
			"start_date": "2024-01-15T00:00:00Z"
		}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 400 for out of range day_of_month", func(t *testing.T) {
		r := setupObligationRouter(NewObligationHandler(&mockObligationService{}))

		rec := doRequest(r, http.MethodPost, "/obligations", `{
			"name": "Rent",
			"kind": "expense",
			"amount": 120000,
			"frequency": "monthly",
			"start_date": "2024-01-15T00:00:00Z",
			"day_of_month": 40
		}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("passes through service schedule errors", func(t *testing.T) {
		svc := &mockObligationService{
			createObligationFn: func(string, services.ObligationInput) (*models.RecurringObligation, error) {
				return nil, apperrors.ErrInvalidSchedule
			},
		}
		r := setupObligationRouter(NewObligationHandler(svc))

		rec := doRequest(r, http.MethodPost, "/obligations", `{
			"name": "Rent",
			"kind": "expense",
			"amount": 120000,
			"frequency": "weekly",
			"start_date": "2024-01-15T00:00:00Z",
			"day_of_month": 15
		}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_SCHEDULE")
	})

	t.Run("returns 401 without authentication", func(t *testing.T) {
		r := gin.New()
		handler := NewObligationHandler(&mockObligationService{})
		r.POST("/obligations", handler.CreateObligation)

		rec := doRequest(r, http.MethodPost, "/obligations", `{}`)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected status 401, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "UNAUTHORIZED")
	})
}

func TestObligationHandler_GetObligation(t *testing.T) {
	t.Run("returns 200 with obligation", func(t *testing.T) {
		svc := &mockObligationService{
			getObligationByIDFn: func(userID, obligationID string) (*models.RecurringObligation, error) {
				if obligationID != testObligationID {
					t.Errorf("expected obligation ID %q, got %q", testObligationID, obligationID)
				}
				return &models.RecurringObligation{
					Base:   models.Base{ID: obligationID},
					UserID: userID,
					Name:   "Rent",
				}, nil
			},
		}
		r := setupObligationRouter(NewObligationHandler(svc))

		rec := doRequest(r, http.MethodGet, "/obligations/"+testObligationID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("returns 400 for malformed ID", func(t *testing.T) {
		r := setupObligationRouter(NewObligationHandler(&mockObligationService{}))

		rec := doRequest(r, http.MethodGet, "/obligations/not-a-uuid", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 404 when not found", func(t *testing.T) {
		svc := &mockObligationService{
			getObligationByIDFn: func(string, string) (*models.RecurringObligation, error) {
				return nil, apperrors.ErrObligationNotFound
			},
		}
		r := setupObligationRouter(NewObligationHandler(svc))

		rec := doRequest(r, http.MethodGet, "/obligations/"+testObligationID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "OBLIGATION_NOT_FOUND")
	})
}

func TestObligationHandler_GetObligations(t *testing.T) {
	t.Run("forwards is_active filter", func(t *testing.T) {
		var gotActive *bool
		svc := &mockObligationService{
			getUserObligationsFn: func(_ string, _ pagination.PageRequest, isActive *bool) (*pagination.PageResponse[models.RecurringObligation], error) {
				gotActive = isActive
				return &pagination.PageResponse[models.RecurringObligation]{}, nil
			},
		}
		r := setupObligationRouter(NewObligationHandler(svc))

		rec := doRequest(r, http.MethodGet, "/obligations?is_active=true", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if gotActive == nil || !*gotActive {
			t.Errorf("expected is_active=true to be forwarded, got %v", gotActive)
		}
	})

	t.Run("returns 400 for invalid is_active value", func(t *testing.T) {
		r := setupObligationRouter(NewObligationHandler(&mockObligationService{}))

		rec := doRequest(r, http.MethodGet, "/obligations?is_active=maybe", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})
}

func TestObligationHandler_EvaluateObligations(t *testing.T) {
	t.Run("forwards as_of and returns results", func(t *testing.T) {
		asOf := time.Date(2024, 2, 20, 12, 0, 0, 0, time.UTC)
		svc := &mockObligationService{
			evaluateDueFn: func(_ context.Context, userID string, now time.Time) ([]services.ProcessResult, error) {
				if !now.Equal(asOf) {
					t.Errorf("expected as_of %v, got %v", asOf, now)
				}
				return []services.ProcessResult{
					{ObligationID: testObligationID, ObligationName: "Rent", Outcome: services.OutcomeProcessed},
				}, nil
			},
		}
		r := setupObligationRouter(NewObligationHandler(svc))

		rec := doRequest(r, http.MethodPost, "/obligations/evaluate?as_of=2024-02-20T12:00:00Z", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		results, ok := result["results"].([]interface{})
		if !ok || len(results) != 1 {
			t.Fatalf("expected one result, got: %v", result)
		}
		first := results[0].(map[string]interface{})
		if first["outcome"] != "processed" {
			t.Errorf("expected outcome processed, got %v", first["outcome"])
		}
	})

	t.Run("returns 400 for malformed as_of", func(t *testing.T) {
		r := setupObligationRouter(NewObligationHandler(&mockObligationService{}))

		rec := doRequest(r, http.MethodPost, "/obligations/evaluate?as_of=yesterday", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})
}

func TestObligationHandler_ProcessObligation(t *testing.T) {
	t.Run("returns processing result", func(t *testing.T) {
		svc := &mockObligationService{
			processFn: func(_, obligationID string, _ time.Time) (*services.ProcessResult, error) {
				return &services.ProcessResult{
					ObligationID: obligationID,
					Outcome:      services.OutcomeSkippedNotDue,
				}, nil
			},
		}
		r := setupObligationRouter(NewObligationHandler(svc))

		rec := doRequest(r, http.MethodPost, "/obligations/"+testObligationID+"/process", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		processResult, ok := result["result"].(map[string]interface{})
		if !ok {
			t.Fatalf("expected result object, got: %v", result)
		}
		if processResult["outcome"] != "skipped_not_due" {
			t.Errorf("expected outcome skipped_not_due, got %v", processResult["outcome"])
		}
	})

	t.Run("returns 404 when not found", func(t *testing.T) {
		svc := &mockObligationService{
			processFn: func(string, string, time.Time) (*services.ProcessResult, error) {
				return nil, apperrors.ErrObligationNotFound
			},
		}
		r := setupObligationRouter(NewObligationHandler(svc))

		rec := doRequest(r, http.MethodPost, "/obligations/"+testObligationID+"/process", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "OBLIGATION_NOT_FOUND")
	})
}

func TestObligationHandler_PauseResume(t *testing.T) {
	t.Run("pause returns paused obligation", func(t *testing.T) {
		svc := &mockObligationService{
			pauseFn: func(_, obligationID string) (*models.RecurringObligation, error) {
				return &models.RecurringObligation{
					Base:     models.Base{ID: obligationID},
					IsPaused: true,
				}, nil
			},
		}
		r := setupObligationRouter(NewObligationHandler(svc))

		rec := doRequest(r, http.MethodPost, "/obligations/"+testObligationID+"/pause", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		obligation := result["obligation"].(map[string]interface{})
		if obligation["is_paused"] != true {
			t.Errorf("expected is_paused true, got %v", obligation["is_paused"])
		}
	})

	t.Run("resume returns active obligation", func(t *testing.T) {
		svc := &mockObligationService{
			resumeFn: func(_, obligationID string) (*models.RecurringObligation, error) {
				return &models.RecurringObligation{
					Base:     models.Base{ID: obligationID},
					IsActive: true,
					IsPaused: false,
				}, nil
			},
		}
		r := setupObligationRouter(NewObligationHandler(svc))

		rec := doRequest(r, http.MethodPost, "/obligations/"+testObligationID+"/resume", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		obligation := result["obligation"].(map[string]interface{})
		if obligation["is_paused"] != false {
			t.Errorf("expected is_paused false, got %v", obligation["is_paused"])
		}
	})
}

func TestObligationHandler_UpdateObligation(t *testing.T) {
	t.Run("forwards partial update", func(t *testing.T) {
		svc := &mockObligationService{
			updateObligationFn: func(_, obligationID string, update services.ObligationUpdate) (*models.RecurringObligation, error) {
				if update.Amount == nil || *update.Amount != 130000 {
					t.Errorf("expected amount update 130000, got %v", update.Amount)
				}
				if update.Frequency != nil {
					t.Errorf("expected frequency untouched, got %v", *update.Frequency)
				}
				return &models.RecurringObligation{
					Base:   models.Base{ID: obligationID},
					Amount: *update.Amount,
				}, nil
			},
		}
		r := setupObligationRouter(NewObligationHandler(svc))

		rec := doRequest(r, http.MethodPut, "/obligations/"+testObligationID, `{"amount": 130000}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("returns 400 for non positive amount", func(t *testing.T) {
		r := setupObligationRouter(NewObligationHandler(&mockObligationService{}))

		rec := doRequest(r, http.MethodPut, "/obligations/"+testObligationID, `{"amount": -5}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})
}

func TestObligationHandler_DeleteObligation(t *testing.T) {
	t.Run("returns confirmation message", func(t *testing.T) {
		called := false
		svc := &mockObligationService{
			deleteObligationFn: func(_, obligationID string) error {
				called = true
				return nil
			},
		}
		r := setupObligationRouter(NewObligationHandler(svc))

		rec := doRequest(r, http.MethodDelete, "/obligations/"+testObligationID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if !called {
			t.Error("expected delete to be called")
		}
	})
}
