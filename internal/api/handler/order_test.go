package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/timmy/stickergen/internal/api/middleware"
	"github.com/timmy/stickergen/internal/domain"
)

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) PlaceOrder(ctx context.Context, userID, jobID string, quantity int) (*domain.PrintOrder, error) {
	args := m.Called(ctx, userID, jobID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PrintOrder), args.Error(1)
}

func TestOrderHandler_PlaceOrder(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		withSession    bool
		setup          func(*MockOrderService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:        "order placed",
			body:        `{"orderId": "job-1", "quantity": 4}`,
			withSession: true,
			setup: func(svc *MockOrderService) {
				svc.On("PlaceOrder", mock.Anything, "user-1", "job-1", 4).Return(&domain.PrintOrder{
					PrintPartnerOrderID: "PRINT_1700000000000",
					TotalCost:           10,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"success":true,"printPartnerOrderId":"PRINT_1700000000000","totalCost":10,"message":"Order placed successfully"}`,
		},
		{
			name:           "no session",
			body:           `{"orderId": "job-1", "quantity": 1}`,
			setup:          func(svc *MockOrderService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"Unauthorized"}`,
		},
		{
			name:           "missing order id",
			body:           `{"quantity": 1}`,
			withSession:    true,
			setup:          func(svc *MockOrderService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Invalid request body"}`,
		},
		{
			name:        "bad quantity",
			body:        `{"orderId": "job-1", "quantity": 0}`,
			withSession: true,
			setup: func(svc *MockOrderService) {
				svc.On("PlaceOrder", mock.Anything, "user-1", "job-1", 0).Return(nil, domain.ErrInvalidQuantity)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Quantity must be at least 1"}`,
		},
		{
			name:        "someone else's job",
			body:        `{"orderId": "job-2", "quantity": 1}`,
			withSession: true,
			setup: func(svc *MockOrderService) {
				svc.On("PlaceOrder", mock.Anything, "user-1", "job-2", 1).Return(nil, domain.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"error":"Order not found"}`,
		},
		{
			name:        "job still running",
			body:        `{"orderId": "job-3", "quantity": 1}`,
			withSession: true,
			setup: func(svc *MockOrderService) {
				svc.On("PlaceOrder", mock.Anything, "user-1", "job-3", 1).Return(nil, domain.ErrJobNotComplete)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `{"error":"Sticker is not ready yet"}`,
		},
		{
			name:        "store failure",
			body:        `{"orderId": "job-1", "quantity": 1}`,
			withSession: true,
			setup: func(svc *MockOrderService) {
				svc.On("PlaceOrder", mock.Anything, "user-1", "job-1", 1).Return(nil, errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"Failed to place order"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockOrderService{}
			tt.setup(svc)

			gin.SetMode(gin.TestMode)
			r := gin.New()
			r.POST("/api/order", middleware.NewAuthenticator(testSecret, "").Optional(), NewOrderHandler(svc).PlaceOrder)

			req := httptest.NewRequest(http.MethodPost, "/api/order", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.withSession {
				req.Header.Set("Authorization", bearer(t, "user-1"))
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			svc.AssertExpectations(t)
		})
	}
}
