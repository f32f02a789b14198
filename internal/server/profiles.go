package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/malabook/mala/server/consts"
	"github.com/malabook/mala/server/internal/api"
	"github.com/malabook/mala/server/internal/auth"
	"github.com/malabook/mala/server/internal/cache"
	"github.com/malabook/mala/server/internal/log"
	"github.com/malabook/mala/server/internal/models"
	"github.com/malabook/mala/server/internal/schemas"
	"github.com/malabook/mala/server/internal/storage"
)

// Each profile endpoint words its lookup failure differently, kept
// per type so responses stay stable for existing clients.
var profileReadNotFound = map[string]string{
	profileTypeCustomer:  "Profile Not Found. Please create or update your profile",
	profileTypeVendor:    "Vendor profile not found.",
	profileTypeAdmin:     "Admin profile not found.",
	profileTypeFreelance: "Freelancer profile not found.",
}

var profileUpdateNotFound = map[string]string{
	profileTypeCustomer:  "Customer Profile was not found",
	profileTypeVendor:    "Vendor profile not found.",
	profileTypeAdmin:     "Admin profile not found.",
	profileTypeFreelance: "Freelancer profile not found.",
}

func (s *Server) profileSignupPostHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	var body schemas.ProfileCreate
	if err := api.DecodeJSONBody(w, r, &body, true); err != nil {
		return nil, err
	}
	ctx := r.Context()

	body.FirstName = strings.TrimSpace(body.FirstName)
	body.LastName = strings.TrimSpace(body.LastName)
	username := strings.ReplaceAll(strings.ToLower(body.FirstName+body.LastName), " ", "")
	userType := strings.ToUpper(body.UserType)
	if userType == "" {
		userType = consts.UserTypeCustomer
	}

	keycloakID, err := s.identity.CreateUser(ctx, auth.KeycloakUser{
		Username:  username,
		Email:     body.Email,
		FirstName: body.FirstName,
		LastName:  body.LastName,
	}, body.Password)
	if err != nil {
		log.Error(ctx, "Keycloak user creation failed", "err", err)
		if errors.Is(err, auth.ErrUserExists) {
			return nil, &api.Error{Status: http.StatusConflict, Msg: "Keycloak creation failed: User already exists"}
		}
		return nil, &api.Error{Status: http.StatusInternalServerError, Msg: "Keycloak creation failed: Failed to create user in Keycloak"}
	}
	log.Info(ctx, "Keycloak user created", "keycloak_id", keycloakID)

	var role models.Role
	if err := s.db.WithContext(ctx).Where("name = ?", userType).First(&role).Error; err != nil {
		log.Error(ctx, "Invalid profile role", "role", userType)
		if kcErr := s.identity.DeleteUser(ctx, keycloakID); kcErr != nil {
			log.Error(ctx, "Failed to roll back Keycloak user", "keycloak_id", keycloakID, "err", kcErr)
		}
		return nil, &api.Error{Status: http.StatusBadRequest, Msg: fmt.Sprintf("Invalid role: %s", body.UserType)}
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		return nil, err
	}
	user := models.User{
		KeycloakID:   keycloakID,
		Email:        body.Email,
		Username:     username,
		FirstName:    body.FirstName,
		LastName:     body.LastName,
		PasswordHash: hash,
		RoleID:       role.ID,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		log.Error(ctx, "Failed to save user", "err", err)
		if kcErr := s.identity.DeleteUser(ctx, keycloakID); kcErr != nil {
			log.Error(ctx, "Failed to roll back Keycloak user", "keycloak_id", keycloakID, "err", kcErr)
		}
		return nil, &api.Error{Status: http.StatusInternalServerError, Msg: "An error occured while saving the user to the database. "}
	}

	profile := models.Profile{
		UserID:         &user.UserID,
		KeycloakID:     keycloakID,
		UserType:       userType,
		FirstName:      body.FirstName,
		LastName:       body.LastName,
		Email:          body.Email,
		PhoneNumber:    body.PhoneNumber,
		Address:        body.Address,
		Bio:            body.Bio,
		AvatarURL:      body.AvatarURL,
		Status:         consts.ProfileActive,
		AdditionalData: body.AdditionalData,
	}
	if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
		log.Error(ctx, "Failed to save profile", "err", err)
		if kcErr := s.identity.DeleteUser(ctx, keycloakID); kcErr != nil {
			log.Error(ctx, "Failed to roll back Keycloak user", "keycloak_id", keycloakID, "err", kcErr)
		}
		s.db.WithContext(ctx).Delete(&user)
		return nil, &api.Error{Status: http.StatusInternalServerError, Msg: "An error occured while saving the profile to the database. "}
	}

	// Keycloak accepts the email as the login name.
	tokens, err := s.identity.Login(ctx, body.Email, body.Password)
	if err != nil {
		log.Error(ctx, "Post-signup login failed", "err", err)
		return nil, &api.Error{Status: http.StatusInternalServerError, Msg: "An error occured while logging the user in"}
	}
	s.invalidate(ctx, "profiles")
	log.Info(ctx, "Profile created", "keycloak_id", keycloakID, "user_type", userType)

	resp := schemas.FromProfile(profile)
	resp.Username = username
	resp.Tokens = loginResponseFromTokens(tokens, "")
	return &resp, nil
}

func (s *Server) profilesGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	if _, err := s.requireRoles(r, roleAdmin, roleSuperuser); err != nil {
		return nil, err
	}
	ctx := r.Context()
	skip, limit := pagination(r, defaultPageSize)

	key := cache.ListKey("profiles", skip, limit)
	var cached []schemas.Profile
	if cache.GetJSON(ctx, s.cache, key, &cached) {
		return cached, nil
	}

	var profiles []models.Profile
	if err := s.db.WithContext(ctx).Offset(skip).Limit(limit).Find(&profiles).Error; err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		log.Warning(ctx, "No profiles found")
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "No profiles found"}
	}

	resp := schemas.FromProfiles(profiles)
	cache.SetJSON(ctx, s.cache, key, resp, cache.ProfilesTTL)
	return resp, nil
}

func (s *Server) profileGetHandler(userType string) func(http.ResponseWriter, *http.Request) (interface{}, error) {
	return func(w http.ResponseWriter, r *http.Request) (interface{}, error) {
		keycloakID := r.PathValue("keycloak_id")
		current, err := s.currentUser(r)
		if err != nil {
			return nil, err
		}
		if !current.canAccessProfile(keycloakID) {
			return nil, &api.Error{Status: http.StatusForbidden, Msg: "You don't have permission to access this profile"}
		}
		ctx := r.Context()

		key := cache.Key("profiles", keycloakID)
		var cached schemas.Profile
		if cache.GetJSON(ctx, s.cache, key, &cached) && cached.UserType == userType {
			return &cached, nil
		}

		var profile models.Profile
		if err := s.db.WithContext(ctx).
			Where("keycloak_id = ? AND user_type = ?", keycloakID, userType).
			First(&profile).Error; err != nil {
			return nil, &api.Error{Status: http.StatusNotFound, Msg: profileReadNotFound[userType]}
		}

		resp := schemas.FromProfile(profile)
		cache.SetJSON(ctx, s.cache, key, resp, cache.ProfilesTTL)
		return &resp, nil
	}
}

func (s *Server) profilePutHandler(userType string) func(http.ResponseWriter, *http.Request) (interface{}, error) {
	return func(w http.ResponseWriter, r *http.Request) (interface{}, error) {
		keycloakID := r.PathValue("keycloak_id")
		current, err := s.currentUser(r)
		if err != nil {
			return nil, err
		}
		if !current.canAccessProfile(keycloakID) {
			return nil, &api.Error{Status: http.StatusForbidden, Msg: "You don't have permission to update this profile"}
		}
		var body schemas.ProfileUpdate
		if err := api.DecodeJSONBody(w, r, &body, true); err != nil {
			return nil, err
		}
		ctx := r.Context()

		var profile models.Profile
		if err := s.db.WithContext(ctx).
			Where("keycloak_id = ? AND user_type = ?", keycloakID, userType).
			First(&profile).Error; err != nil {
			return nil, &api.Error{Status: http.StatusNotFound, Msg: profileUpdateNotFound[userType]}
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
		if body.Address != nil {
			updates["address"] = *body.Address
		}
		if body.Bio != nil {
			updates["bio"] = *body.Bio
		}
		if body.AvatarURL != nil {
			updates["avatar_url"] = *body.AvatarURL
		}
		if body.Status != nil {
			updates["status"] = *body.Status
		}
		if body.AdditionalData != nil {
			updates["additional_data"] = models.JSONMap(body.AdditionalData)
		}
		if len(updates) > 0 {
			if err := s.db.WithContext(ctx).Model(&profile).Updates(updates).Error; err != nil {
				return nil, err
			}
		}
		s.invalidate(ctx, "profiles")

		if err := s.db.WithContext(ctx).
			Where("keycloak_id = ? AND user_type = ?", keycloakID, userType).
			First(&profile).Error; err != nil {
			return nil, err
		}
		resp := schemas.FromProfile(profile)
		return &resp, nil
	}
}

func (s *Server) profileDeleteHandler(userType string) func(http.ResponseWriter, *http.Request) (interface{}, error) {
	return func(w http.ResponseWriter, r *http.Request) (interface{}, error) {
		keycloakID := r.PathValue("keycloak_id")
		switch userType {
		case profileTypeCustomer:
			current, err := s.currentUser(r)
			if err != nil {
				return nil, err
			}
			if !current.canAccessProfile(keycloakID) {
				return nil, &api.Error{Status: http.StatusForbidden, Msg: "You don't have permission to delete this profile"}
			}
		case profileTypeAdmin:
			if _, err := s.requireRoles(r, roleSuperuser); err != nil {
				return nil, err
			}
		default:
			if _, err := s.requireRoles(r, roleAdmin, roleSuperuser); err != nil {
				return nil, err
			}
		}
		ctx := r.Context()

		var profile models.Profile
		if err := s.db.WithContext(ctx).
			Where("keycloak_id = ? AND user_type = ?", keycloakID, userType).
			First(&profile).Error; err != nil {
			if userType == profileTypeCustomer {
				return nil, &api.Error{Status: http.StatusNotFound, Msg: "User Profile was not found"}
			}
			return nil, &api.Error{Status: http.StatusNotFound, Msg: profileReadNotFound[userType]}
		}

		if err := s.db.WithContext(ctx).Delete(&profile).Error; err != nil {
			return nil, err
		}
		s.invalidate(ctx, "profiles")
		log.Info(ctx, "Profile deleted", "keycloak_id", keycloakID, "user_type", userType)

		var message string
		switch userType {
		case profileTypeCustomer:
			message = fmt.Sprintf("The profile for user %s was succesfully deleted", keycloakID)
		case profileTypeVendor:
			message = fmt.Sprintf("Vendor profile for %s has been deleted.", keycloakID)
		case profileTypeAdmin:
			message = fmt.Sprintf("Admin profile for %s has been deleted.", keycloakID)
		default:
			message = fmt.Sprintf("Freelancer profile for %s has been deleted.", keycloakID)
		}
		return map[string]string{"message": message}, nil
	}
}

// validAvatarTypes is the order the upload error lists them in.
var validAvatarTypes = []string{
	consts.UserTypeCustomer,
	consts.UserTypeVendor,
	consts.UserTypeAdmin,
	consts.UserTypeFreelance,
}

func validAvatarType(userType string) bool {
	for _, t := range validAvatarTypes {
		if t == userType {
			return true
		}
	}
	return false
}

// capitalize matches the human form used in profile errors:
// "CUSTOMER" reads as "Customer".
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func (s *Server) avatarPostHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	userType := strings.ToUpper(r.PathValue("user_type"))
	keycloakID := r.PathValue("keycloak_id")
	if !validAvatarType(userType) {
		return nil, &api.Error{
			Status: http.StatusBadRequest,
			Msg:    fmt.Sprintf("Invalid user type. Must be one of: %s", strings.Join(validAvatarTypes, ", ")),
		}
	}
	current, err := s.currentUser(r)
	if err != nil {
		return nil, err
	}
	if !current.canAccessProfile(keycloakID) {
		return nil, &api.Error{Status: http.StatusForbidden, Msg: "You don't have permission to upload avatar for this profile"}
	}
	ctx := r.Context()

	var profile models.Profile
	if err := s.db.WithContext(ctx).
		Where("keycloak_id = ? AND user_type = ?", keycloakID, userType).
		First(&profile).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: fmt.Sprintf("%s profile not found", capitalize(userType))}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, &api.Error{Status: http.StatusUnprocessableEntity, Msg: "No file provided for upload"}
	}
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(io.LimitReader(file, storage.MaxAvatarSize+1))
	if err != nil {
		return nil, err
	}
	ext, mime, err := storage.ValidateImage(header.Filename, data, storage.MaxAvatarSize)
	if err != nil {
		return nil, &api.Error{Status: http.StatusBadRequest, Err: err}
	}

	fileURL, err := s.store.Upload(ctx, storage.AvatarKey(userType, keycloakID, ext), data, mime)
	if err != nil {
		log.Error(ctx, "Avatar upload failed", "keycloak_id", keycloakID, "err", err)
		return nil, &api.Error{Status: http.StatusInternalServerError, Msg: "Failed to upload avatar to storage"}
	}

	if err := s.db.WithContext(ctx).Model(&profile).Update("avatar_url", fileURL).Error; err != nil {
		return nil, err
	}
	s.invalidate(ctx, "profiles")
	log.Info(ctx, "Avatar uploaded", "keycloak_id", keycloakID, "user_type", userType)

	return &schemas.AvatarUploadResponse{
		Message:    "Avatar uploaded successfully",
		FileURL:    fileURL,
		UploadedAt: time.Now(),
		UserType:   userType,
		KeycloakID: keycloakID,
	}, nil
}

func (s *Server) avatarDeleteHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	userType := strings.ToUpper(r.PathValue("user_type"))
	keycloakID := r.PathValue("keycloak_id")
	if !validAvatarType(userType) {
		return nil, &api.Error{
			Status: http.StatusBadRequest,
			Msg:    fmt.Sprintf("Invalid user type. Must be one of: %s", strings.Join(validAvatarTypes, ", ")),
		}
	}
	current, err := s.currentUser(r)
	if err != nil {
		return nil, err
	}
	if !current.canAccessProfile(keycloakID) {
		return nil, &api.Error{Status: http.StatusForbidden, Msg: "You don't have permission to delete avatar for this profile"}
	}
	ctx := r.Context()

	var profile models.Profile
	if err := s.db.WithContext(ctx).
		Where("keycloak_id = ? AND user_type = ?", keycloakID, userType).
		First(&profile).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: fmt.Sprintf("%s profile not found", capitalize(userType))}
	}
	if profile.AvatarURL == "" {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "No avatar found for this profile"}
	}

	key, ok := s.store.KeyFromURL(profile.AvatarURL)
	if !ok {
		return nil, &api.Error{Status: http.StatusInternalServerError, Msg: "Failed to delete avatar from storage"}
	}
	if err := s.store.Delete(ctx, key); err != nil {
		log.Error(ctx, "Avatar deletion failed", "keycloak_id", keycloakID, "err", err)
		return nil, &api.Error{Status: http.StatusInternalServerError, Msg: "Failed to delete avatar from storage"}
	}

	if err := s.db.WithContext(ctx).Model(&profile).Update("avatar_url", "").Error; err != nil {
		return nil, err
	}
	s.invalidate(ctx, "profiles")
	log.Info(ctx, "Avatar deleted", "keycloak_id", keycloakID, "user_type", userType)

	return map[string]string{"message": "Avatar deleted successfully"}, nil
}
