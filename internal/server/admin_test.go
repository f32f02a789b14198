package server

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malabook/mala/server/internal/models"
)

func TestAdminUsersGet_RequiresAdmin(t *testing.T) {
	s := newTestServer(t)
	_, token := s.seedUser(t, "jane", "CUSTOMER")

	responseRecorder := s.do(t, http.MethodGet, "/v1/admin/users", nil, asUser(token))
	assert.Equal(t, http.StatusForbidden, responseRecorder.Code)
	assert.Contains(t, responseRecorder.Body.String(), "Insufficient permissions")

	responseRecorder = s.do(t, http.MethodGet, "/v1/admin/users", nil)
	assert.Equal(t, http.StatusUnauthorized, responseRecorder.Code)
}

func TestAdminUsersGet_ListsUsersWithProfiles(t *testing.T) {
	s := newTestServer(t)
	admin, token := s.seedUser(t, "ada", "ADMIN")
	jane, _ := s.seedUser(t, "jane", "CUSTOMER")
	s.seedProfile(t, admin, "ADMIN")
	s.seedProfile(t, jane, "CUSTOMER")

	responseRecorder := s.do(t, http.MethodGet, "/v1/admin/users", nil, asUser(token))
	require.Equal(t, http.StatusOK, responseRecorder.Code, responseRecorder.Body.String())

	body := decodeMap(t, responseRecorder)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Users retrieved successfully", body["message"])
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), data["total"])
	users, ok := data["users"].([]interface{})
	require.True(t, ok)
	require.Len(t, users, 2)
	first, ok := users[0].(map[string]interface{})
	require.True(t, ok)
	profile, ok := first["profile"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, profile["userType"])

	// Listing is an audited admin action.
	var audit models.AuditLog
	require.NoError(t, s.db.Where("action = ? AND resource_type = ?", "VIEW", "USERS").First(&audit).Error)
	assert.Equal(t, admin.UserID, audit.AdminID)
}

func TestAdminUsersGet_FiltersByRole(t *testing.T) {
	s := newTestServer(t)
	admin, token := s.seedUser(t, "ada", "ADMIN")
	jane, _ := s.seedUser(t, "jane", "CUSTOMER")
	s.seedProfile(t, admin, "ADMIN")
	s.seedProfile(t, jane, "CUSTOMER")

	responseRecorder := s.do(t, http.MethodGet, "/v1/admin/users?role=customer", nil, asUser(token))
	require.Equal(t, http.StatusOK, responseRecorder.Code)

	data, ok := decodeMap(t, responseRecorder)["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), data["total"])

	responseRecorder = s.do(t, http.MethodGet, "/v1/admin/users?search=jane", nil, asUser(token))
	require.Equal(t, http.StatusOK, responseRecorder.Code)
	data, ok = decodeMap(t, responseRecorder)["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), data["total"])
}

func TestAdminUserGet_Detail(t *testing.T) {
	s := newTestServer(t)
	_, token := s.seedUser(t, "ada", "ADMIN")
	jane, _ := s.seedUser(t, "jane", "CUSTOMER")
	s.seedProfile(t, jane, "CUSTOMER")
	salon := s.seedSalon(t, jane.UserID, "Glow Studio")
	service := s.seedService(t, salon.SalonID, "Haircut", 25)
	s.seedAppointment(t, jane.UserID, service.ServiceID, time.Now().Add(24*time.Hour), "pending")

	responseRecorder := s.do(t, http.MethodGet, fmt.Sprintf("/v1/admin/users/%d", jane.UserID), nil, asUser(token))
	require.Equal(t, http.StatusOK, responseRecorder.Code, responseRecorder.Body.String())

	body := decodeMap(t, responseRecorder)
	assert.Equal(t, "User details retrieved successfully", body["message"])
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "jane", data["username"])
	stats, ok := data["statistics"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), stats["total_appointments"])
	owned, ok := stats["owned_salons"].([]interface{})
	require.True(t, ok)
	assert.Len(t, owned, 1)
}

func TestAdminUserGet_NotFound(t *testing.T) {
	s := newTestServer(t)
	_, token := s.seedUser(t, "ada", "ADMIN")

	responseRecorder := s.do(t, http.MethodGet, "/v1/admin/users/999", nil, asUser(token))
	assert.Equal(t, http.StatusNotFound, responseRecorder.Code)
	assert.Contains(t, responseRecorder.Body.String(), "User not found")
}

func TestAdminUserStatusPatch_Suspends(t *testing.T) {
	s := newTestServer(t)
	admin, token := s.seedUser(t, "ada", "ADMIN")
	jane, _ := s.seedUser(t, "jane", "CUSTOMER")
	s.seedProfile(t, jane, "CUSTOMER")

	responseRecorder := s.do(t, http.MethodPatch,
		fmt.Sprintf("/v1/admin/users/%d/status?status=suspended", jane.UserID), nil, asUser(token))
	require.Equal(t, http.StatusOK, responseRecorder.Code, responseRecorder.Body.String())

	body := decodeMap(t, responseRecorder)
	assert.Equal(t, "User status updated to SUSPENDED", body["message"])

	var profile models.Profile
	require.NoError(t, s.db.First(&profile, "keycloak_id = ?", jane.KeycloakID).Error)
	assert.Equal(t, "SUSPENDED", profile.Status)

	var audit models.AuditLog
	require.NoError(t, s.db.Where("action = ? AND resource_type = ?", "UPDATE", "USER").First(&audit).Error)
	assert.Equal(t, admin.UserID, audit.AdminID)
	assert.Equal(t, fmt.Sprint(jane.UserID), audit.ResourceID)
}

func TestAdminUserStatusPatch_InvalidStatus(t *testing.T) {
	s := newTestServer(t)
	_, token := s.seedUser(t, "ada", "ADMIN")
	jane, _ := s.seedUser(t, "jane", "CUSTOMER")
	s.seedProfile(t, jane, "CUSTOMER")

	responseRecorder := s.do(t, http.MethodPatch,
		fmt.Sprintf("/v1/admin/users/%d/status?status=frozen", jane.UserID), nil, asUser(token))
	assert.Equal(t, http.StatusBadRequest, responseRecorder.Code)
	assert.Contains(t, responseRecorder.Body.String(), "Invalid status")
}

func TestAdminUserStatusPatch_ProfileNotFound(t *testing.T) {
	s := newTestServer(t)
	_, token := s.seedUser(t, "ada", "ADMIN")
	jane, _ := s.seedUser(t, "jane", "CUSTOMER")

	responseRecorder := s.do(t, http.MethodPatch,
		fmt.Sprintf("/v1/admin/users/%d/status?status=active", jane.UserID), nil, asUser(token))
	assert.Equal(t, http.StatusNotFound, responseRecorder.Code)
	assert.Contains(t, responseRecorder.Body.String(), "User profile not found")
}

func TestAdminUserDelete_RequiresSuperuser(t *testing.T) {
	s := newTestServer(t)
	_, adminToken := s.seedUser(t, "ada", "ADMIN")
	jane, _ := s.seedUser(t, "jane", "CUSTOMER")

	responseRecorder := s.do(t, http.MethodDelete,
		fmt.Sprintf("/v1/admin/users/%d", jane.UserID), nil, asUser(adminToken))
	assert.Equal(t, http.StatusForbidden, responseRecorder.Code)
}

func TestAdminUserDelete_RemovesUserAndProfile(t *testing.T) {
	s := newTestServer(t)
	_, token := s.seedUser(t, "root", "ADMIN", "superuser")
	jane, _ := s.seedUser(t, "jane", "CUSTOMER")
	s.seedProfile(t, jane, "CUSTOMER")

	responseRecorder := s.do(t, http.MethodDelete,
		fmt.Sprintf("/v1/admin/users/%d", jane.UserID), nil, asUser(token))
	require.Equal(t, http.StatusOK, responseRecorder.Code, responseRecorder.Body.String())

	body := decodeMap(t, responseRecorder)
	assert.Equal(t, "User deleted successfully", body["message"])

	var users int64
	require.NoError(t, s.db.Model(&models.User{}).Where("user_id = ?", jane.UserID).Count(&users).Error)
	assert.Zero(t, users)
	var profiles int64
	require.NoError(t, s.db.Model(&models.Profile{}).Where("keycloak_id = ?", jane.KeycloakID).Count(&profiles).Error)
	assert.Zero(t, profiles)

	var audit models.AuditLog
	require.NoError(t, s.db.Where("action = ? AND resource_type = ?", "DELETE", "USER").First(&audit).Error)
	assert.Equal(t, fmt.Sprint(jane.UserID), audit.ResourceID)
}

func TestAdminSalonsGet_IncludesOwnerInfo(t *testing.T) {
	s := newTestServer(t)
	_, token := s.seedUser(t, "ada", "ADMIN")
	owner, _ := s.seedUser(t, "vera", "VENDOR")
	s.seedSalon(t, owner.UserID, "Glow Studio")

	responseRecorder := s.do(t, http.MethodGet, "/v1/admin/salons", nil, asUser(token))
	require.Equal(t, http.StatusOK, responseRecorder.Code, responseRecorder.Body.String())

	body := decodeMap(t, responseRecorder)
	assert.Equal(t, "Salons retrieved successfully", body["message"])
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), data["total"])
	salons, ok := data["salons"].([]interface{})
	require.True(t, ok)
	require.Len(t, salons, 1)
	row, ok := salons[0].(map[string]interface{})
	require.True(t, ok)
	ownerInfo, ok := row["owner_info"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "vera", ownerInfo["username"])
	assert.Equal(t, "vera@example.com", ownerInfo["email"])
}

func TestAdminSalonsGet_FiltersByCity(t *testing.T) {
	s := newTestServer(t)
	_, token := s.seedUser(t, "ada", "ADMIN")
	owner, _ := s.seedUser(t, "vera", "VENDOR")
	s.seedSalon(t, owner.UserID, "Glow Studio")

	responseRecorder := s.do(t, http.MethodGet, "/v1/admin/salons?city=Lagos", nil, asUser(token))
	require.Equal(t, http.StatusOK, responseRecorder.Code)
	data, ok := decodeMap(t, responseRecorder)["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), data["total"])

	responseRecorder = s.do(t, http.MethodGet, "/v1/admin/salons?city=Nairobi", nil, asUser(token))
	require.Equal(t, http.StatusOK, responseRecorder.Code)
	data, ok = decodeMap(t, responseRecorder)["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(0), data["total"])
}

func TestAdminSalonStatusPatch(t *testing.T) {
	s := newTestServer(t)
	_, token := s.seedUser(t, "ada", "ADMIN")
	owner, _ := s.seedUser(t, "vera", "VENDOR")
	salon := s.seedSalon(t, owner.UserID, "Glow Studio")

	responseRecorder := s.do(t, http.MethodPatch,
		fmt.Sprintf("/v1/admin/salons/%d/status?status=inactive", salon.SalonID), nil, asUser(token))
	require.Equal(t, http.StatusOK, responseRecorder.Code, responseRecorder.Body.String())
	assert.Equal(t, "Salon status updated to INACTIVE", decodeMap(t, responseRecorder)["message"])

	var stored models.Salon
	require.NoError(t, s.db.First(&stored, salon.SalonID).Error)
	assert.Equal(t, "INACTIVE", stored.Status)
}

func TestAdminSalonStatusPatch_InvalidStatus(t *testing.T) {
	s := newTestServer(t)
	_, token := s.seedUser(t, "ada", "ADMIN")
	owner, _ := s.seedUser(t, "vera", "VENDOR")
	salon := s.seedSalon(t, owner.UserID, "Glow Studio")

	responseRecorder := s.do(t, http.MethodPatch,
		fmt.Sprintf("/v1/admin/salons/%d/status?status=closed", salon.SalonID), nil, asUser(token))
	assert.Equal(t, http.StatusBadRequest, responseRecorder.Code)
	assert.Contains(t, responseRecorder.Body.String(), "Invalid status")
}

func TestAdminSalonStatusPatch_NotFound(t *testing.T) {
	s := newTestServer(t)
	_, token := s.seedUser(t, "ada", "ADMIN")

	responseRecorder := s.do(t, http.MethodPatch, "/v1/admin/salons/999/status?status=active", nil, asUser(token))
	assert.Equal(t, http.StatusNotFound, responseRecorder.Code)
	assert.Contains(t, responseRecorder.Body.String(), "Salon not found")
}

func TestAdminAppointmentsGet_JoinedView(t *testing.T) {
	s := newTestServer(t)
	_, token := s.seedUser(t, "ada", "ADMIN")
	client, _ := s.seedUser(t, "jane", "CUSTOMER")
	owner, _ := s.seedUser(t, "vera", "VENDOR")
	salon := s.seedSalon(t, owner.UserID, "Glow Studio")
	service := s.seedService(t, salon.SalonID, "Haircut", 25)
	s.seedAppointment(t, client.UserID, service.ServiceID, time.Now().Add(24*time.Hour), "pending")

	responseRecorder := s.do(t, http.MethodGet, "/v1/admin/appointments", nil, asUser(token))
	require.Equal(t, http.StatusOK, responseRecorder.Code, responseRecorder.Body.String())

	body := decodeMap(t, responseRecorder)
	assert.Equal(t, "Appointments retrieved successfully", body["message"])
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), data["total"])
	appointments, ok := data["appointments"].([]interface{})
	require.True(t, ok)
	require.Len(t, appointments, 1)
	row, ok := appointments[0].(map[string]interface{})
	require.True(t, ok)
	clientInfo, ok := row["client_info"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "jane Tester", clientInfo["name"])
	serviceInfo, ok := row["service_info"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Haircut", serviceInfo["name"])
	salonInfo, ok := row["salon_info"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Glow Studio", salonInfo["name"])
}

func TestAdminAppointmentsGet_FiltersByStatus(t *testing.T) {
	s := newTestServer(t)
	_, token := s.seedUser(t, "ada", "ADMIN")
	client, _ := s.seedUser(t, "jane", "CUSTOMER")
	owner, _ := s.seedUser(t, "vera", "VENDOR")
	salon := s.seedSalon(t, owner.UserID, "Glow Studio")
	service := s.seedService(t, salon.SalonID, "Haircut", 25)
	s.seedAppointment(t, client.UserID, service.ServiceID, time.Now().Add(24*time.Hour), "pending")
	s.seedAppointment(t, client.UserID, service.ServiceID, time.Now().Add(48*time.Hour), "confirmed")

	responseRecorder := s.do(t, http.MethodGet, "/v1/admin/appointments?status=CONFIRMED", nil, asUser(token))
	require.Equal(t, http.StatusOK, responseRecorder.Code)
	data, ok := decodeMap(t, responseRecorder)["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), data["total"])
}

func TestAdminAppointmentStatusPatch(t *testing.T) {
	s := newTestServer(t)
	admin, token := s.seedUser(t, "ada", "ADMIN")
	client, _ := s.seedUser(t, "jane", "CUSTOMER")
	owner, _ := s.seedUser(t, "vera", "VENDOR")
	salon := s.seedSalon(t, owner.UserID, "Glow Studio")
	service := s.seedService(t, salon.SalonID, "Haircut", 25)
	appointment := s.seedAppointment(t, client.UserID, service.ServiceID, time.Now().Add(24*time.Hour), "pending")

	responseRecorder := s.do(t, http.MethodPatch,
		fmt.Sprintf("/v1/admin/appointments/%d/status?status=COMPLETED", appointment.AppointmentID), nil, asUser(token))
	require.Equal(t, http.StatusOK, responseRecorder.Code, responseRecorder.Body.String())
	assert.Equal(t, "Appointment status updated to completed", decodeMap(t, responseRecorder)["message"])

	var stored models.Appointment
	require.NoError(t, s.db.First(&stored, appointment.AppointmentID).Error)
	assert.Equal(t, "completed", stored.Status)

	var audit models.AuditLog
	require.NoError(t, s.db.Where("action = ? AND resource_type = ?", "UPDATE", "APPOINTMENT").First(&audit).Error)
	assert.Equal(t, admin.UserID, audit.AdminID)
}

func TestAdminAppointmentStatusPatch_InvalidStatus(t *testing.T) {
	s := newTestServer(t)
	_, token := s.seedUser(t, "ada", "ADMIN")
	appointment := s.seedBookedService(t)

	responseRecorder := s.do(t, http.MethodPatch,
		fmt.Sprintf("/v1/admin/appointments/%d/status?status=paused", appointment.AppointmentID), nil, asUser(token))
	assert.Equal(t, http.StatusBadRequest, responseRecorder.Code)
	assert.Contains(t, responseRecorder.Body.String(),
		"Invalid status. Must be one of: ['pending', 'confirmed', 'completed', 'cancelled']")
}
