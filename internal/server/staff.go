package server

import (
	"fmt"
	"net/http"

	"github.com/malabook/mala/server/internal/api"
	"github.com/malabook/mala/server/internal/cache"
	"github.com/malabook/mala/server/internal/log"
	"github.com/malabook/mala/server/internal/models"
	"github.com/malabook/mala/server/internal/schemas"
)

// Staff listings default to a smaller page than the other resources.
const staffDefaultPageSize = 15

func (s *Server) staffListGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	ctx := r.Context()
	skip, limit := pagination(r, staffDefaultPageSize)

	key := cache.ListKey("staff", skip, limit)
	var cached []schemas.Staff
	if cache.GetJSON(ctx, s.cache, key, &cached) {
		return cached, nil
	}

	var staff []models.Staff
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").Offset(skip).Limit(limit).Find(&staff).Error; err != nil {
		return nil, err
	}
	if len(staff) == 0 {
		log.Warning(ctx, "No staff members found")
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "No staff members found"}
	}

	resp := schemas.FromStaffList(staff)
	cache.SetJSON(ctx, s.cache, key, resp, cache.StaffTTL)
	return resp, nil
}

func (s *Server) staffGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	staffID, err := pathUint(r, "staff_id")
	if err != nil {
		return nil, err
	}
	var staff models.Staff
	if err := s.db.WithContext(r.Context()).First(&staff, staffID).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "Staff not Found"}
	}
	resp := schemas.FromStaff(staff)
	return &resp, nil
}

func (s *Server) staffBySalonGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	salonID, err := pathUint(r, "salon_id")
	if err != nil {
		return nil, err
	}
	ctx := r.Context()

	key := cache.Key("staff", "salon", fmt.Sprint(salonID))
	var cached []schemas.Staff
	if cache.GetJSON(ctx, s.cache, key, &cached) {
		return cached, nil
	}

	var staff []models.Staff
	if err := s.db.WithContext(ctx).
		Where("salon_id = ?", salonID).Find(&staff).Error; err != nil {
		return nil, err
	}
	if len(staff) == 0 {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "Staff not Found for this salon"}
	}

	resp := schemas.FromStaffList(staff)
	cache.SetJSON(ctx, s.cache, key, resp, cache.StaffTTL)
	return resp, nil
}

func (s *Server) staffPostHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	var body schemas.StaffCreate
	if err := api.DecodeJSONBody(w, r, &body, true); err != nil {
		return nil, err
	}
	ctx := r.Context()

	staff := models.Staff{
		UserID:      body.UserID,
		SalonID:     body.SalonID,
		FirstName:   body.FirstName,
		LastName:    body.LastName,
		Email:       body.Email,
		PhoneNumber: body.PhoneNumber,
		Role:        body.Role,
	}
	if err := s.db.WithContext(ctx).Create(&staff).Error; err != nil {
		return nil, err
	}
	s.invalidate(ctx, "staff")
	log.Info(ctx, "Staff member created", "staff_id", staff.StaffID, "salon_id", staff.SalonID)

	resp := schemas.FromStaff(staff)
	return &api.Created{Body: &resp}, nil
}

func (s *Server) staffPutHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	staffID, err := pathUint(r, "staff_id")
	if err != nil {
		return nil, err
	}
	var body schemas.StaffUpdate
	if err := api.DecodeJSONBody(w, r, &body, true); err != nil {
		return nil, err
	}
	ctx := r.Context()

	var staff models.Staff
	if err := s.db.WithContext(ctx).First(&staff, staffID).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "Staff was not found"}
	}

	updates := map[string]interface{}{}
	if body.FirstName != nil {
		updates["first_name"] = *body.FirstName
	}
	if body.LastName != nil {
		updates["last_name"] = *body.LastName
	}
	if body.Email != nil {
		updates["email"] = *body.Email
	}
	if body.PhoneNumber != nil {
		updates["phone_number"] = *body.PhoneNumber
	}
	if body.Role != nil {
		updates["role"] = *body.Role
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&staff).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	s.invalidate(ctx, "staff")

	if err := s.db.WithContext(ctx).First(&staff, staffID).Error; err != nil {
		return nil, err
	}
	resp := schemas.FromStaff(staff)
	return &resp, nil
}

func (s *Server) staffDeleteHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	staffID, err := pathUint(r, "staff_id")
	if err != nil {
		return nil, err
	}
	ctx := r.Context()

	var staff models.Staff
	if err := s.db.WithContext(ctx).First(&staff, staffID).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "Staff Member not found"}
	}
	if err := s.db.WithContext(ctx).Delete(&staff).Error; err != nil {
		return nil, err
	}
	s.invalidate(ctx, "staff")
	log.Info(ctx, "Staff member deleted", "staff_id", staffID)

	return map[string]string{"message": "Staff Info succesfully deleted"}, nil
}

func (s *Server) staffBySalonDeleteHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	salonID, err := pathUint(r, "salon_id")
	if err != nil {
		return nil, err
	}
	ctx := r.Context()

	var staff []models.Staff
	if err := s.db.WithContext(ctx).Where("salon_id = ?", salonID).Find(&staff).Error; err != nil {
		return nil, err
	}
	if len(staff) == 0 {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "Salon's Staff Members not found"}
	}

	if err := s.db.WithContext(ctx).Where("salon_id = ?", salonID).Delete(&models.Staff{}).Error; err != nil {
		return nil, err
	}
	s.invalidate(ctx, "staff")
	log.Info(ctx, "Salon staff deleted", "salon_id", salonID, "count", len(staff))

	return map[string]string{"message": fmt.Sprintf("All Staff Members for salon %d successfully deleted", salonID)}, nil
}
