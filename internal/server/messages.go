package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/malabook/mala/server/internal/api"
	"github.com/malabook/mala/server/internal/cache"
	"github.com/malabook/mala/server/internal/log"
	"github.com/malabook/mala/server/internal/models"
	"github.com/malabook/mala/server/internal/schemas"
)

func (s *Server) messagesGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	appointmentID, err := pathUint(r, "appointment_id")
	if err != nil {
		return nil, err
	}
	if _, err := s.currentUser(r); err != nil {
		return nil, err
	}
	ctx := r.Context()

	var appointment models.Appointment
	if err := s.db.WithContext(ctx).First(&appointment, appointmentID).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "Appointment not found"}
	}

	key := cache.Key("messages", "appointment", fmt.Sprint(appointmentID))
	var cached []schemas.Message
	if cache.GetJSON(ctx, s.cache, key, &cached) {
		return cached, nil
	}

	var messages []models.Message
	if err := s.db.WithContext(ctx).
		Where("appointment_id = ?", appointmentID).Find(&messages).Error; err != nil {
		return nil, err
	}

	resp := schemas.FromMessages(messages)
	cache.SetJSON(ctx, s.cache, key, resp, cache.MessagesTTL)
	return resp, nil
}

func (s *Server) messagesPostHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	appointmentID, err := pathUint(r, "appointment_id")
	if err != nil {
		return nil, err
	}
	current, err := s.currentUser(r)
	if err != nil {
		return nil, err
	}
	var body schemas.MessageCreate
	if err := api.DecodeJSONBody(w, r, &body, true); err != nil {
		return nil, err
	}
	ctx := r.Context()

	var appointment models.Appointment
	if err := s.db.WithContext(ctx).First(&appointment, appointmentID).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "Appointment not found"}
	}

	message := models.Message{
		SenderID:      current.UserID,
		ReceiverID:    body.ReceiverID,
		AppointmentID: appointmentID,
		MessageText:   body.MessageText,
		SentTime:      time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return nil, err
	}
	s.invalidate(ctx, "messages")
	s.hub.Broadcast(fmt.Sprint(appointmentID), fmt.Sprintf("Appointment %d: %s", appointmentID, message.MessageText))
	log.Info(ctx, "Message sent",
		"appointment_id", appointmentID, "sender_id", current.UserID, "receiver_id", body.ReceiverID)

	resp := schemas.FromMessage(message)
	return &resp, nil
}
