package server

import (
	"net/http"

	"github.com/malabook/mala/server/internal/api"
	"github.com/malabook/mala/server/internal/cache"
	"github.com/malabook/mala/server/internal/log"
	"github.com/malabook/mala/server/internal/models"
	"github.com/malabook/mala/server/internal/schemas"
)

func (s *Server) appointmentsPostHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	var body schemas.AppointmentCreate
	if err := api.DecodeJSONBody(w, r, &body, true); err != nil {
		return nil, err
	}
	ctx := r.Context()

	appointment := models.Appointment{
		AppointmentTime: body.AppointmentTime,
		Duration:        body.Duration,
		Notes:           body.Notes,
		ClientID:        body.ClientID,
		ServiceID:       body.ServiceID,
		StaffID:         body.StaffID,
		ReminderTime:    body.ReminderTime,
		Status:          body.Status,
	}
	if err := s.db.WithContext(ctx).Create(&appointment).Error; err != nil {
		return nil, err
	}
	s.invalidate(ctx, "appointments")
	log.Info(ctx, "Appointment created",
		"appointment_id", appointment.AppointmentID, "client_id", appointment.ClientID)

	resp := schemas.FromAppointment(appointment)
	return &resp, nil
}

func (s *Server) appointmentsGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	ctx := r.Context()
	skip, limit := pagination(r, defaultPageSize)

	key := cache.ListKey("appointments", skip, limit)
	var cached []schemas.Appointment
	if cache.GetJSON(ctx, s.cache, key, &cached) {
		return cached, nil
	}

	var appointments []models.Appointment
	if err := s.db.WithContext(ctx).Offset(skip).Limit(limit).Find(&appointments).Error; err != nil {
		return nil, err
	}
	if len(appointments) == 0 {
		log.Warning(ctx, "No appointments found")
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "No appointments found"}
	}

	resp := schemas.FromAppointments(appointments)
	cache.SetJSON(ctx, s.cache, key, resp, cache.AppointmentsTTL)
	return resp, nil
}

func (s *Server) appointmentGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	appointmentID, err := pathUint(r, "appointment_id")
	if err != nil {
		return nil, err
	}
	var appointment models.Appointment
	if err := s.db.WithContext(r.Context()).First(&appointment, appointmentID).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "Appointment not Found"}
	}
	resp := schemas.FromAppointment(appointment)
	return &resp, nil
}

func (s *Server) appointmentPutHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	appointmentID, err := pathUint(r, "appointment_id")
	if err != nil {
		return nil, err
	}
	var body schemas.AppointmentUpdate
	if err := api.DecodeJSONBody(w, r, &body, true); err != nil {
		return nil, err
	}
	ctx := r.Context()

	var appointment models.Appointment
	if err := s.db.WithContext(ctx).First(&appointment, appointmentID).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "Appointment was not found"}
	}

	updates := map[string]interface{}{}
	if body.AppointmentTime != nil {
		updates["appointment_time"] = *body.AppointmentTime
	}
	if body.Duration != nil {
		updates["duration"] = *body.Duration
	}
	if body.Notes != nil {
		updates["notes"] = *body.Notes
	}
	if body.ReminderTime != nil {
		updates["reminder_time"] = *body.ReminderTime
	}
	if body.Status != nil {
		updates["status"] = *body.Status
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&appointment).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	s.invalidate(ctx, "appointments")

	if err := s.db.WithContext(ctx).First(&appointment, appointmentID).Error; err != nil {
		return nil, err
	}
	resp := schemas.FromAppointment(appointment)
	return &resp, nil
}

func (s *Server) appointmentDeleteHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	appointmentID, err := pathUint(r, "appointment_id")
	if err != nil {
		return nil, err
	}
	ctx := r.Context()

	var appointment models.Appointment
	if err := s.db.WithContext(ctx).First(&appointment, appointmentID).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "Appointment not found"}
	}
	if err := s.db.WithContext(ctx).Delete(&appointment).Error; err != nil {
		return nil, err
	}
	s.invalidate(ctx, "appointments")
	log.Info(ctx, "Appointment deleted", "appointment_id", appointmentID)

	return map[string]string{"message": "Appointment succesfully deleted"}, nil
}
