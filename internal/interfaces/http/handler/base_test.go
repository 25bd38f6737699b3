package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	appfinance "github.com/schoolfees/backend/internal/application/finance"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/schoolfees/backend/internal/infrastructure/payment"
	"github.com/schoolfees/backend/internal/interfaces/http/dto"
	"github.com/schoolfees/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "not found",
			err:        shared.NotFound("invoice"),
			wantStatus: http.StatusNotFound,
			wantCode:   dto.ErrCodeNotFound,
		},
		{
			name:       "wrapped forbidden",
			err:        fmt.Errorf("decide: %w", shared.Forbidden("school mismatch")),
			wantStatus: http.StatusForbidden,
			wantCode:   dto.ErrCodeForbidden,
		},
		{
			name:       "cancelled invoice",
			err:        shared.NewDomainError("INVOICE_CANCELLED", "Invoice is cancelled"),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   dto.ErrCodeInvoiceCancelled,
		},
		{
			name:       "unlisted invalid code",
			err:        shared.NewDomainError("INVALID_TERM", "term must be 1, 2 or 3"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "ERR_INVALID_TERM",
		},
		{
			name:       "bad phone",
			err:        fmt.Errorf("stk: %w", payment.ErrInvalidPhoneNumber),
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrCodeInvalidInput,
		},
		{
			name:       "gateway not configured",
			err:        appfinance.ErrGatewayUnavailable,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   dto.ErrCodeGatewayUnavailable,
		},
		{
			name:       "daraja down",
			err:        fmt.Errorf("token: %w", payment.ErrDarajaUnavailable),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   dto.ErrCodeGatewayUnavailable,
		},
		{
			name:       "stk rejected",
			err:        appfinance.ErrSTKPushRejected,
			wantStatus: http.StatusBadGateway,
			wantCode:   dto.ErrCodeGatewayRejected,
		},
		{
			name:       "unexpected",
			err:        errors.New("pq: connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   dto.ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			r := gin.New()
			r.GET("/echo", func(c *gin.Context) {
				c.Set(middleware.RequestIDKey, "req-42")
				h.HandleError(c, tt.err)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/echo", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, "req-42", resp.Error.RequestID)
			if tt.wantStatus == http.StatusInternalServerError {
				assert.NotContains(t, resp.Error.Message, "pq")
			}
		})
	}
}

func TestBaseHandler_HandleErrorNil(t *testing.T) {
	h := &BaseHandler{}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	h.HandleError(c, nil)

	assert.False(t, c.Writer.Written())
}

type bindProbe struct {
	Name string `json:"name" binding:"required"`
}

func TestBaseHandler_BindJSON(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantOK   bool
		wantCode string
	}{
		{name: "valid", body: `{"name":"Grade 4 tuition"}`, wantOK: true},
		{name: "missing field", body: `{}`, wantCode: dto.ErrCodeValidation},
		{name: "malformed", body: `{"name":`, wantCode: dto.ErrCodeInvalidJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			var ok bool
			r := gin.New()
			r.POST("/echo", func(c *gin.Context) {
				var req bindProbe
				ok = h.bindJSON(c, &req)
				if ok {
					h.Success(c, req)
				}
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, http.StatusOK, w.Code)
				return
			}
			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeResponse(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestBaseHandler_UUIDParam(t *testing.T) {
	h := &BaseHandler{}
	r := gin.New()
	r.GET("/invoices/:id", func(c *gin.Context) {
		if id, ok := h.uuidParam(c, "id"); ok {
			h.Success(c, id.String())
		}
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/invoices/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeBadRequest, decodeResponse(t, w).Error.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/invoices/7f1c1f4e-3a4b-4c55-9e0a-0f5e2b7f9a10", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBaseHandler_ActorRequired(t *testing.T) {
	h := &BaseHandler{}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := h.actor(c)

	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalUUID(t *testing.T) {
	id, err := optionalUUID("")
	require.NoError(t, err)
	assert.Nil(t, id)

	id, err = optionalUUID("7f1c1f4e-3a4b-4c55-9e0a-0f5e2b7f9a10")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "7f1c1f4e-3a4b-4c55-9e0a-0f5e2b7f9a10", id.String())

	_, err = optionalUUID("x")
	assert.Error(t, err)
}

func TestPageFilter(t *testing.T) {
	tests := []struct {
		name string
		req  dto.ListRequest
		want shared.Filter
	}{
		{
			name: "defaults",
			want: shared.DefaultFilter(),
		},
		{
			name: "overrides",
			req:  dto.ListRequest{Page: 3, PageSize: 50, OrderBy: "due_date", OrderDir: "asc"},
			want: shared.Filter{Page: 3, PageSize: 50, OrderBy: "due_date", OrderDir: "asc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pageFilter(tt.req)
			assert.Equal(t, tt.want.Page, got.Page)
			assert.Equal(t, tt.want.PageSize, got.PageSize)
			assert.Equal(t, tt.want.OrderBy, got.OrderBy)
			assert.Equal(t, tt.want.OrderDir, got.OrderDir)
		})
	}
}
