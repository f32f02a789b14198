package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/malabook/mala/server/internal/api"
	"github.com/malabook/mala/server/internal/cache"
	"github.com/malabook/mala/server/internal/log"
	"github.com/malabook/mala/server/internal/models"
	"github.com/malabook/mala/server/internal/schemas"
)

const paymentsDefaultPageSize = 15

func (s *Server) paymentsGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	ctx := r.Context()
	skip, limit := pagination(r, paymentsDefaultPageSize)

	key := cache.ListKey("payments", skip, limit)
	var cached []schemas.Payment
	if cache.GetJSON(ctx, s.cache, key, &cached) {
		return cached, nil
	}

	var payments []models.Payment
	if err := s.db.WithContext(ctx).Offset(skip).Limit(limit).Find(&payments).Error; err != nil {
		return nil, err
	}

	resp := schemas.FromPayments(payments)
	cache.SetJSON(ctx, s.cache, key, resp, cache.PaymentsTTL)
	return resp, nil
}

func (s *Server) paymentGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	paymentID, err := pathUint(r, "payment_id")
	if err != nil {
		return nil, err
	}
	var payment models.Payment
	if err := s.db.WithContext(r.Context()).First(&payment, paymentID).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "Payment not Found"}
	}
	resp := schemas.FromPayment(payment)
	return &resp, nil
}

func (s *Server) paymentsPostHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	var body schemas.PaymentCreate
	if err := api.DecodeJSONBody(w, r, &body, true); err != nil {
		return nil, err
	}
	ctx := r.Context()

	// transaction_id carries a unique index, so absent ids get a
	// generated one instead of colliding on the empty string.
	transactionID := body.TransactionID
	if transactionID == "" {
		transactionID = uuid.NewString()
	}
	payment := models.Payment{
		AppointmentID: body.AppointmentID,
		Amount:        body.Amount,
		PaymentMethod: body.PaymentMethod,
		PaymentStatus: body.PaymentStatus,
		TransactionID: transactionID,
	}
	if err := s.db.WithContext(ctx).Create(&payment).Error; err != nil {
		return nil, err
	}
	s.invalidate(ctx, "payments")
	log.Info(ctx, "Payment recorded",
		"payment_id", payment.PaymentID, "appointment_id", payment.AppointmentID)

	resp := schemas.FromPayment(payment)
	return &resp, nil
}

func (s *Server) paymentDeleteHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	paymentID, err := pathUint(r, "payment_id")
	if err != nil {
		return nil, err
	}
	ctx := r.Context()

	var payment models.Payment
	if err := s.db.WithContext(ctx).First(&payment, paymentID).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "Payment not found"}
	}
	if err := s.db.WithContext(ctx).Delete(&payment).Error; err != nil {
		return nil, err
	}
	s.invalidate(ctx, "payments")
	log.Info(ctx, "Payment deleted", "payment_id", paymentID)

	return map[string]string{"message": "Payment successfully deleted"}, nil
}
