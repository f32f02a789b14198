package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/malabook/mala/server/internal/api"
	"github.com/malabook/mala/server/internal/auth"
	"github.com/malabook/mala/server/internal/cache"
	"github.com/malabook/mala/server/internal/log"
	"github.com/malabook/mala/server/internal/models"
	"github.com/malabook/mala/server/internal/schemas"
)

func (s *Server) usersPostHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	var body schemas.SignupRequest
	if err := api.DecodeJSONBody(w, r, &body, true); err != nil {
		return nil, err
	}
	ctx := r.Context()

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ? OR username = ?", body.Email, body.Username).
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, &api.Error{Status: http.StatusBadRequest, Msg: "Email or username already registered"}
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		return nil, err
	}
	var role models.Role
	if err := s.db.WithContext(ctx).Where("name = ?", strings.ToUpper(body.Role)).First(&role).Error; err != nil {
		return nil, &api.Error{Status: http.StatusBadRequest, Msg: "Role not found"}
	}

	keycloakID, err := s.identity.CreateUser(ctx, auth.KeycloakUser{
		Username:  body.Username,
		Email:     body.Email,
		FirstName: body.FirstName,
		LastName:  body.LastName,
	}, body.Password)
	if err != nil {
		log.Error(ctx, "Keycloak user creation failed", "err", err)
		return nil, &api.Error{Status: http.StatusInternalServerError, Msg: "Failed to create user in Keycloak"}
	}

	user := models.User{
		KeycloakID:   keycloakID,
		Username:     body.Username,
		Email:        body.Email,
		PasswordHash: hash,
		FirstName:    body.FirstName,
		LastName:     body.LastName,
		RoleID:       role.ID,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	s.invalidate(ctx, "users")
	log.Info(ctx, "User created", "user_id", user.UserID, "username", user.Username)

	return &schemas.SignupResponse{
		UserID:     user.UserID,
		KeycloakID: user.KeycloakID,
		Email:      user.Email,
		Username:   user.Username,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Role:       role.Name,
		Message:    "User created successfully!",
	}, nil
}

func (s *Server) usersGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	ctx := r.Context()
	skip, limit := pagination(r, defaultPageSize)

	key := cache.ListKey("users", skip, limit)
	var cached []schemas.User
	if cache.GetJSON(ctx, s.cache, key, &cached) {
		return cached, nil
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Preload("Role").
		Offset(skip).Limit(limit).Find(&users).Error; err != nil {
		return nil, err
	}
	if len(users) == 0 {
		log.Warning(ctx, "No users found")
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "No users found"}
	}

	resp := schemas.FromUsers(users)
	cache.SetJSON(ctx, s.cache, key, resp, cache.UsersTTL)
	return resp, nil
}

func (s *Server) userGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	userID, err := pathUint(r, "user_id")
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := s.db.WithContext(r.Context()).Preload("Role").
		First(&user, userID).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "User not found"}
	}
	resp := schemas.FromUser(user)
	return &resp, nil
}

func (s *Server) userPutHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	userID, err := pathUint(r, "user_id")
	if err != nil {
		return nil, err
	}
	current, err := s.currentUser(r)
	if err != nil {
		return nil, err
	}
	var body schemas.UserUpdate
	if err := api.DecodeJSONBody(w, r, &body, true); err != nil {
		return nil, err
	}
	ctx := r.Context()

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "User not found"}
	}
	if current.UserID != userID && !current.hasAnyRole(roleAdmin) {
		return nil, &api.Error{Status: http.StatusForbidden, Msg: "Not authorized"}
	}

	updates := map[string]interface{}{}
	if body.Username != nil {
		updates["username"] = *body.Username
	}
	if body.Email != nil {
		updates["email"] = *body.Email
	}
	if body.FirstName != nil {
		updates["first_name"] = *body.FirstName
	}
	if body.LastName != nil {
		updates["last_name"] = *body.LastName
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	s.invalidate(ctx, "users")

	if err := s.db.WithContext(ctx).Preload("Role").First(&user, userID).Error; err != nil {
		return nil, err
	}
	resp := schemas.FromUser(user)
	return &resp, nil
}

func (s *Server) userDeleteHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	userID, err := pathUint(r, "user_id")
	if err != nil {
		return nil, err
	}
	ctx := r.Context()

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "User not found"}
	}

	if err := s.identity.DeleteUser(ctx, user.KeycloakID); err != nil {
		log.Error(ctx, "Keycloak user deletion failed", "keycloak_id", user.KeycloakID, "err", err)
		return nil, &api.Error{Status: http.StatusInternalServerError, Msg: "Failed to delete user from Keycloak"}
	}
	if err := s.db.WithContext(ctx).Delete(&user).Error; err != nil {
		return nil, err
	}
	s.invalidate(ctx, "users")
	log.Info(ctx, fmt.Sprintf("User %d deleted", user.UserID))

	return map[string]string{"message": "User deleted successfully"}, nil
}
