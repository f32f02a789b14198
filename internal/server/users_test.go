package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malabook/mala/server/internal/models"
	"github.com/malabook/mala/server/internal/schemas"
)

func TestUsersPost_CreatesUser(t *testing.T) {
	s := newTestServer(t)

	responseRecorder := s.do(t, http.MethodPost, "/v1/users", signupBody("mark", "mark@example.com"))
	require.Equal(t, http.StatusOK, responseRecorder.Code, responseRecorder.Body.String())

	var resp schemas.SignupResponse
	decodeJSON(t, responseRecorder, &resp)
	assert.Equal(t, "mark", resp.Username)
	assert.Equal(t, "CUSTOMER", resp.Role)
	assert.Equal(t, "User created successfully!", resp.Message)
}

func TestUsersPost_Duplicate(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "mark", "CUSTOMER")

	responseRecorder := s.do(t, http.MethodPost, "/v1/users", signupBody("mark", "new@example.com"))
	assert.Equal(t, http.StatusBadRequest, responseRecorder.Code)
	assert.Contains(t, responseRecorder.Body.String(), "Email or username already registered")
}

func TestUsersPost_RoleNotFound(t *testing.T) {
	s := newTestServer(t)

	body := signupBody("mark", "mark@example.com")
	body["role"] = "NOPE"
	responseRecorder := s.do(t, http.MethodPost, "/v1/users", body)
	assert.Equal(t, http.StatusBadRequest, responseRecorder.Code)
	assert.Contains(t, responseRecorder.Body.String(), "Role not found")
}

func TestUsersGet_ListsUsers(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "mark", "CUSTOMER")
	s.seedUser(t, "lucy", "VENDOR")

	responseRecorder := s.do(t, http.MethodGet, "/v1/users", nil)
	require.Equal(t, http.StatusOK, responseRecorder.Code)

	var users []schemas.User
	decodeJSON(t, responseRecorder, &users)
	require.Len(t, users, 2)
	assert.Equal(t, "mark", users[0].Username)
	assert.Equal(t, "CUSTOMER", users[0].Role)
}

func TestUsersGet_Empty(t *testing.T) {
	s := newTestServer(t)

	responseRecorder := s.do(t, http.MethodGet, "/v1/users", nil)
	assert.Equal(t, http.StatusNotFound, responseRecorder.Code)
	assert.Contains(t, responseRecorder.Body.String(), "No users found")
}

func TestUsersGet_ServedFromCache(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "mark", "CUSTOMER")

	responseRecorder := s.do(t, http.MethodGet, "/v1/users", nil)
	require.Equal(t, http.StatusOK, responseRecorder.Code)

	// Rows added behind the cache are invisible until invalidation.
	s.seedUser(t, "lucy", "VENDOR")
	responseRecorder = s.do(t, http.MethodGet, "/v1/users", nil)
	var users []schemas.User
	decodeJSON(t, responseRecorder, &users)
	assert.Len(t, users, 1)
}

func TestUserGet_ByID(t *testing.T) {
	s := newTestServer(t)
	user, _ := s.seedUser(t, "mark", "CUSTOMER")

	responseRecorder := s.do(t, http.MethodGet, fmt.Sprintf("/v1/users/%d", user.UserID), nil)
	require.Equal(t, http.StatusOK, responseRecorder.Code)

	var resp schemas.User
	decodeJSON(t, responseRecorder, &resp)
	assert.Equal(t, user.UserID, resp.UserID)
	assert.Equal(t, "mark", resp.Username)
}

func TestUserGet_NotFound(t *testing.T) {
	s := newTestServer(t)

	responseRecorder := s.do(t, http.MethodGet, "/v1/users/999", nil)
	assert.Equal(t, http.StatusNotFound, responseRecorder.Code)
	assert.Contains(t, responseRecorder.Body.String(), "User not found")
}

func TestUserGet_InvalidID(t *testing.T) {
	s := newTestServer(t)

	responseRecorder := s.do(t, http.MethodGet, "/v1/users/abc", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, responseRecorder.Code)
	assert.Contains(t, responseRecorder.Body.String(), "Invalid user_id")
}

func TestUserPut_UpdatesOwnRecord(t *testing.T) {
	s := newTestServer(t)
	user, token := s.seedUser(t, "mark", "CUSTOMER")

	responseRecorder := s.do(t, http.MethodPut, fmt.Sprintf("/v1/users/%d", user.UserID), map[string]interface{}{
		"first_name": "Marcus",
	}, asUser(token))
	require.Equal(t, http.StatusOK, responseRecorder.Code, responseRecorder.Body.String())

	var resp schemas.User
	decodeJSON(t, responseRecorder, &resp)
	assert.Equal(t, "Marcus", resp.FirstName)

	var stored models.User
	require.NoError(t, s.db.First(&stored, user.UserID).Error)
	assert.Equal(t, "Marcus", stored.FirstName)
	// Untouched fields survive the partial update.
	assert.Equal(t, "mark", stored.Username)
}

func TestUserPut_OtherUserForbidden(t *testing.T) {
	s := newTestServer(t)
	target, _ := s.seedUser(t, "mark", "CUSTOMER")
	_, token := s.seedUser(t, "lucy", "CUSTOMER")

	responseRecorder := s.do(t, http.MethodPut, fmt.Sprintf("/v1/users/%d", target.UserID), map[string]interface{}{
		"first_name": "Hacked",
	}, asUser(token))
	assert.Equal(t, http.StatusForbidden, responseRecorder.Code)
	assert.Contains(t, responseRecorder.Body.String(), "Not authorized")
}

func TestUserPut_AdminCanUpdateAnyone(t *testing.T) {
	s := newTestServer(t)
	target, _ := s.seedUser(t, "mark", "CUSTOMER")
	_, token := s.seedUser(t, "boss", "ADMIN")

	responseRecorder := s.do(t, http.MethodPut, fmt.Sprintf("/v1/users/%d", target.UserID), map[string]interface{}{
		"last_name": "Renamed",
	}, asUser(token))
	require.Equal(t, http.StatusOK, responseRecorder.Code, responseRecorder.Body.String())

	var resp schemas.User
	decodeJSON(t, responseRecorder, &resp)
	assert.Equal(t, "Renamed", resp.LastName)
}

func TestUserPut_RequiresToken(t *testing.T) {
	s := newTestServer(t)
	user, _ := s.seedUser(t, "mark", "CUSTOMER")

	responseRecorder := s.do(t, http.MethodPut, fmt.Sprintf("/v1/users/%d", user.UserID), map[string]interface{}{
		"first_name": "X",
	})
	assert.Equal(t, http.StatusUnauthorized, responseRecorder.Code)
}

func TestUserDelete_RemovesUserAndKeycloakAccount(t *testing.T) {
	s := newTestServer(t)
	user, _ := s.seedUser(t, "mark", "CUSTOMER")

	responseRecorder := s.do(t, http.MethodDelete, fmt.Sprintf("/v1/users/%d", user.UserID), nil)
	require.Equal(t, http.StatusOK, responseRecorder.Code)
	assert.Equal(t, "User deleted successfully", decodeMap(t, responseRecorder)["message"])
	assert.Contains(t, s.identity.deletedIDs, user.KeycloakID)

	var count int64
	require.NoError(t, s.db.Model(&models.User{}).Where("user_id = ?", user.UserID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUserDelete_NotFound(t *testing.T) {
	s := newTestServer(t)

	responseRecorder := s.do(t, http.MethodDelete, "/v1/users/999", nil)
	assert.Equal(t, http.StatusNotFound, responseRecorder.Code)
	assert.Contains(t, responseRecorder.Body.String(), "User not found")
}
