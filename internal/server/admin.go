package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/malabook/mala/server/consts"
	"github.com/malabook/mala/server/internal/api"
	"github.com/malabook/mala/server/internal/models"
	"github.com/malabook/mala/server/internal/schemas"
)

const adminDefaultPageSize = 50

func (s *Server) adminUsersGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	current, err := s.requireRoles(r, roleAdmin, roleSuperuser)
	if err != nil {
		return nil, err
	}
	ctx := r.Context()
	skip, limit := pagination(r, adminDefaultPageSize)
	role := r.URL.Query().Get("role")
	status := r.URL.Query().Get("status")
	search := r.URL.Query().Get("search")

	query := s.db.WithContext(ctx).Model(&models.User{}).
		Joins("JOIN profiles ON users.keycloak_id = profiles.keycloak_id")
	if role != "" {
		query = query.Where("profiles.user_type = ?", strings.ToUpper(role))
	}
	if status != "" {
		query = query.Where("profiles.status = ?", strings.ToUpper(status))
	}
	if search != "" {
		like := "%" + search + "%"
		query = query.Where(s.db.
			Where("users.first_name LIKE ?", like).
			Or("users.last_name LIKE ?", like).
			Or("users.email LIKE ?", like).
			Or("users.username LIKE ?", like))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []struct {
		models.User
		UserType         string
		ProfileFirstName string
		ProfileLastName  string
		ProfileStatus    string
		PhoneNumber      string
		Address          string
	}
	if err := query.
		Select("users.*, profiles.user_type, profiles.first_name AS profile_first_name, profiles.last_name AS profile_last_name, profiles.status AS profile_status, profiles.phone_number, profiles.address").
		Order("users.created_at DESC").
		Offset(skip).Limit(limit).Scan(&rows).Error; err != nil {
		return nil, err
	}

	users := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		users = append(users, map[string]interface{}{
			"user_id":    row.UserID,
			"username":   row.Username,
			"email":      row.Email,
			"first_name": row.FirstName,
			"last_name":  row.LastName,
			"role_id":    row.RoleID,
			"created_at": row.CreatedAt,
			"updated_at": row.UpdatedAt,
			"profile": map[string]interface{}{
				"userType":     row.UserType,
				"firstName":    row.ProfileFirstName,
				"lastName":     row.ProfileLastName,
				"status":       row.ProfileStatus,
				"phone_number": row.PhoneNumber,
				"address":      row.Address,
			},
		})
	}

	s.recordAudit(r, current.UserID, "VIEW", "USERS", "", models.JSONMap{
		"filters": map[string]interface{}{"role": role, "status": status, "search": search},
	})

	return api.SuccessResponse("Users retrieved successfully", map[string]interface{}{
		"users": users,
		"total": total,
		"skip":  skip,
		"limit": limit,
	}), nil
}

func (s *Server) adminUserGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	current, err := s.requireRoles(r, roleAdmin, roleSuperuser)
	if err != nil {
		return nil, err
	}
	userID, err := pathUint(r, "user_id")
	if err != nil {
		return nil, err
	}
	ctx := r.Context()

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "user_id = ?", userID).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "User not found"}
	}

	var profile interface{}
	var dbProfile models.Profile
	if err := s.db.WithContext(ctx).
		First(&dbProfile, "keycloak_id = ?", user.KeycloakID).Error; err == nil {
		profile = schemas.FromProfile(dbProfile)
	}

	var totalAppointments int64
	if err := s.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("client_id = ?", userID).Count(&totalAppointments).Error; err != nil {
		return nil, err
	}
	var salons []models.Salon
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", userID).Find(&salons).Error; err != nil {
		return nil, err
	}

	s.recordAudit(r, current.UserID, "VIEW", "USER", fmt.Sprint(userID), nil)

	detail := map[string]interface{}{
		"user_id":    user.UserID,
		"username":   user.Username,
		"email":      user.Email,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"role_id":    user.RoleID,
		"created_at": user.CreatedAt,
		"updated_at": user.UpdatedAt,
		"profile":    profile,
		"statistics": map[string]interface{}{
			"total_appointments": totalAppointments,
			"owned_salons":       schemas.FromSalons(salons, time.Now()),
		},
	}
	return api.SuccessResponse("User details retrieved successfully", detail), nil
}

func (s *Server) adminUserStatusPatchHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	current, err := s.requireRoles(r, roleAdmin, roleSuperuser)
	if err != nil {
		return nil, err
	}
	userID, err := pathUint(r, "user_id")
	if err != nil {
		return nil, err
	}
	status := strings.ToUpper(r.URL.Query().Get("status"))
	switch status {
	case "ACTIVE", "SUSPENDED", "DELETED":
	default:
		return nil, &api.Error{Status: http.StatusBadRequest, Msg: "Invalid status"}
	}
	ctx := r.Context()

	var profile models.Profile
	if err := s.db.WithContext(ctx).
		Joins("JOIN users ON users.keycloak_id = profiles.keycloak_id").
		Where("users.user_id = ?", userID).
		First(&profile).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "User profile not found"}
	}

	oldStatus := profile.Status
	if err := s.db.WithContext(ctx).Model(&profile).Update("status", status).Error; err != nil {
		return nil, err
	}
	s.invalidate(ctx, "profiles")

	s.recordAudit(r, current.UserID, "UPDATE", "USER", fmt.Sprint(userID), models.JSONMap{
		"field":     "status",
		"old_value": oldStatus,
		"new_value": status,
	})

	return api.SuccessResponse(fmt.Sprintf("User status updated to %s", status), map[string]interface{}{
		"user_id":    userID,
		"new_status": status,
	}), nil
}

func (s *Server) adminUserDeleteHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	current, err := s.requireRoles(r, roleSuperuser)
	if err != nil {
		return nil, err
	}
	userID, err := pathUint(r, "user_id")
	if err != nil {
		return nil, err
	}
	ctx := r.Context()

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "user_id = ?", userID).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "User not found"}
	}

	var profileType interface{}
	var profile models.Profile
	hasProfile := s.db.WithContext(ctx).
		First(&profile, "keycloak_id = ?", user.KeycloakID).Error == nil
	if hasProfile {
		profileType = profile.UserType
	}

	// Profile rows reference the user, so they go first.
	if hasProfile {
		if err := s.db.WithContext(ctx).Delete(&profile).Error; err != nil {
			return nil, err
		}
	}
	if err := s.db.WithContext(ctx).Delete(&user).Error; err != nil {
		return nil, err
	}
	s.invalidate(ctx, "users")
	s.invalidate(ctx, "profiles")

	s.recordAudit(r, current.UserID, "DELETE", "USER", fmt.Sprint(userID), models.JSONMap{
		"deleted_user": map[string]interface{}{
			"username":     user.Username,
			"email":        user.Email,
			"first_name":   user.FirstName,
			"last_name":    user.LastName,
			"profile_type": profileType,
		},
	})

	return api.SuccessResponse("User deleted successfully", map[string]interface{}{
		"deleted_user_id": userID,
	}), nil
}

func (s *Server) adminSalonsGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	current, err := s.requireRoles(r, roleAdmin, roleSuperuser)
	if err != nil {
		return nil, err
	}
	ctx := r.Context()
	skip, limit := pagination(r, adminDefaultPageSize)
	status := r.URL.Query().Get("status")
	city := r.URL.Query().Get("city")

	query := s.db.WithContext(ctx).Model(&models.Salon{}).
		Joins("JOIN users ON salons.owner_id = users.user_id")
	if status != "" {
		query = query.Where("salons.status = ?", strings.ToUpper(status))
	}
	if city != "" {
		query = query.Where("salons.city LIKE ?", "%"+city+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []struct {
		models.Salon
		OwnerUsername string
		OwnerEmail    string
	}
	if err := query.
		Select("salons.*, users.username AS owner_username, users.email AS owner_email").
		Order("salons.created_at DESC").
		Offset(skip).Limit(limit).Scan(&rows).Error; err != nil {
		return nil, err
	}

	type salonWithOwner struct {
		schemas.Salon
		OwnerInfo map[string]string `json:"owner_info"`
	}
	now := time.Now()
	salons := make([]salonWithOwner, 0, len(rows))
	for _, row := range rows {
		salons = append(salons, salonWithOwner{
			Salon: schemas.FromSalon(row.Salon, now),
			OwnerInfo: map[string]string{
				"username": row.OwnerUsername,
				"email":    row.OwnerEmail,
			},
		})
	}

	s.recordAudit(r, current.UserID, "VIEW", "SALONS", "", models.JSONMap{
		"filters": map[string]interface{}{"status": status, "city": city},
	})

	return api.SuccessResponse("Salons retrieved successfully", map[string]interface{}{
		"salons": salons,
		"total":  total,
		"skip":   skip,
		"limit":  limit,
	}), nil
}

func (s *Server) adminSalonStatusPatchHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	current, err := s.requireRoles(r, roleAdmin, roleSuperuser)
	if err != nil {
		return nil, err
	}
	salonID, err := pathUint(r, "salon_id")
	if err != nil {
		return nil, err
	}
	status := strings.ToUpper(r.URL.Query().Get("status"))
	switch status {
	case "ACTIVE", "INACTIVE":
	default:
		return nil, &api.Error{Status: http.StatusBadRequest, Msg: "Invalid status"}
	}
	ctx := r.Context()

	var salon models.Salon
	if err := s.db.WithContext(ctx).First(&salon, "salon_id = ?", salonID).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "Salon not found"}
	}

	oldStatus := salon.Status
	if err := s.db.WithContext(ctx).Model(&salon).Update("status", status).Error; err != nil {
		return nil, err
	}
	s.invalidate(ctx, "salons")

	s.recordAudit(r, current.UserID, "UPDATE", "SALON", fmt.Sprint(salonID), models.JSONMap{
		"field":     "status",
		"old_value": oldStatus,
		"new_value": status,
	})

	return api.SuccessResponse(fmt.Sprintf("Salon status updated to %s", status), map[string]interface{}{
		"salon_id":   salonID,
		"new_status": status,
	}), nil
}

func (s *Server) adminAppointmentsGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	current, err := s.requireRoles(r, roleAdmin, roleSuperuser)
	if err != nil {
		return nil, err
	}
	ctx := r.Context()
	skip, limit := pagination(r, adminDefaultPageSize)
	status := r.URL.Query().Get("status")
	salonID := r.URL.Query().Get("salon_id")
	clientID := r.URL.Query().Get("client_id")

	query := s.db.WithContext(ctx).Model(&models.Appointment{}).
		Joins("JOIN users ON appointments.client_id = users.user_id").
		Joins("JOIN services ON appointments.service_id = services.service_id").
		Joins("JOIN salons ON services.salon_id = salons.salon_id")
	if status != "" {
		query = query.Where("appointments.status = ?", strings.ToLower(status))
	}
	if v, err := strconv.Atoi(salonID); err == nil {
		query = query.Where("salons.salon_id = ?", v)
	}
	if v, err := strconv.Atoi(clientID); err == nil {
		query = query.Where("appointments.client_id = ?", v)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []struct {
		models.Appointment
		ClientFirstName string
		ClientLastName  string
		ServiceName     string
		SalonName       string
	}
	if err := query.
		Select("appointments.*, users.first_name AS client_first_name, users.last_name AS client_last_name, services.name AS service_name, salons.name AS salon_name").
		Order("appointments.appointment_time DESC").
		Offset(skip).Limit(limit).Scan(&rows).Error; err != nil {
		return nil, err
	}

	appointments := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		appointments = append(appointments, map[string]interface{}{
			"appointment_id":   row.AppointmentID,
			"appointment_time": row.AppointmentTime,
			"duration":         row.Duration,
			"status":           row.Status,
			"notes":            row.Notes,
			"client_info": map[string]interface{}{
				"id":   row.ClientID,
				"name": row.ClientFirstName + " " + row.ClientLastName,
			},
			"service_info": map[string]interface{}{
				"id":   row.ServiceID,
				"name": row.ServiceName,
			},
			"salon_info": map[string]interface{}{
				"name": row.SalonName,
			},
			"created_at": row.CreatedAt,
		})
	}

	s.recordAudit(r, current.UserID, "VIEW", "APPOINTMENTS", "", models.JSONMap{
		"filters": map[string]interface{}{"status": status, "salon_id": salonID, "client_id": clientID},
	})

	return api.SuccessResponse("Appointments retrieved successfully", map[string]interface{}{
		"appointments": appointments,
		"total":        total,
		"skip":         skip,
		"limit":        limit,
	}), nil
}

func (s *Server) adminAppointmentStatusPatchHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	current, err := s.requireRoles(r, roleAdmin, roleSuperuser)
	if err != nil {
		return nil, err
	}
	appointmentID, err := pathUint(r, "appointment_id")
	if err != nil {
		return nil, err
	}
	status := strings.ToLower(r.URL.Query().Get("status"))
	switch status {
	case consts.AppointmentPending, consts.AppointmentConfirmed, consts.AppointmentCompleted, consts.AppointmentCancelled:
	default:
		return nil, &api.Error{
			Status: http.StatusBadRequest,
			Msg:    "Invalid status. Must be one of: ['pending', 'confirmed', 'completed', 'cancelled']",
		}
	}
	ctx := r.Context()

	var appointment models.Appointment
	if err := s.db.WithContext(ctx).
		First(&appointment, "appointment_id = ?", appointmentID).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "Appointment not found"}
	}

	oldStatus := appointment.Status
	if err := s.db.WithContext(ctx).Model(&appointment).Update("status", status).Error; err != nil {
		return nil, err
	}
	s.invalidate(ctx, "appointments")

	s.recordAudit(r, current.UserID, "UPDATE", "APPOINTMENT", fmt.Sprint(appointmentID), models.JSONMap{
		"field":     "status",
		"old_value": oldStatus,
		"new_value": status,
	})

	return api.SuccessResponse(fmt.Sprintf("Appointment status updated to %s", status), map[string]interface{}{
		"appointment_id": appointmentID,
		"new_status":     status,
	}), nil
}
