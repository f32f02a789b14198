package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"gorm.io/gorm"

	"github.com/malabook/mala/server/consts"
	"github.com/malabook/mala/server/internal/api"
	"github.com/malabook/mala/server/internal/auth"
	"github.com/malabook/mala/server/internal/log"
	"github.com/malabook/mala/server/internal/models"
)

const (
	profileTypeCustomer  = consts.UserTypeCustomer
	profileTypeVendor    = consts.UserTypeVendor
	profileTypeAdmin     = consts.UserTypeAdmin
	profileTypeFreelance = consts.UserTypeFreelance
)

// profileSegments maps profile user types to their path segment.
var profileSegments = map[string]string{
	profileTypeCustomer:  "customers",
	profileTypeVendor:    "vendors",
	profileTypeAdmin:     "admins",
	profileTypeFreelance: "freelancers",
}

// Privileged roles. superuser exists only as a realm role, so role
// checks consult both the local role and the token's realm roles.
const (
	roleAdmin     = "admin"
	roleSuperuser = "superuser"
)

const (
	defaultPageSize = 100
	maxPageSize     = 100
)

// authedUser is the verified caller: local identity plus token claims.
type authedUser struct {
	*auth.CurrentUser
	claims *auth.Claims
}

func (u *authedUser) hasAnyRole(roles ...string) bool {
	if u.CurrentUser.HasRole(roles...) {
		return true
	}
	if u.claims == nil {
		return false
	}
	for _, role := range roles {
		if u.claims.HasRole(role) {
			return true
		}
	}
	return false
}

// canAccessProfile allows the profile owner plus admin and superuser.
func (u *authedUser) canAccessProfile(keycloakID string) bool {
	if u.hasAnyRole(roleAdmin, roleSuperuser) {
		return true
	}
	return u.KeycloakID == keycloakID
}

// currentUser verifies the request token and resolves the caller
// against the users table.
func (s *Server) currentUser(r *http.Request) (*authedUser, error) {
	token := auth.TokenFromRequest(r)
	if token == "" {
		return nil, &api.Error{Status: http.StatusUnauthorized, Msg: "Invalid authentication credentials"}
	}
	claims, err := s.verifier.Verify(r.Context(), token)
	if err != nil {
		log.Warning(r.Context(), "Token verification failed", "err", err)
		return nil, &api.Error{Status: http.StatusUnauthorized, Msg: "Invalid or expired token"}
	}

	user := &auth.CurrentUser{
		KeycloakID: claims.KeycloakID(),
		Username:   claims.PreferredUsername,
		Email:      claims.Email,
		FirstName:  claims.GivenName,
		LastName:   claims.FamilyName,
	}
	var dbUser models.User
	err = s.db.WithContext(r.Context()).Preload("Role").
		Where("keycloak_id = ?", user.KeycloakID).First(&dbUser).Error
	switch {
	case err == nil:
		user.UserID = dbUser.UserID
		user.Username = dbUser.Username
		if dbUser.Role != nil {
			user.Role = dbUser.Role.Name
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Valid token without a local row. Role checks fall back to the
		// realm roles carried by the claims.
	default:
		return nil, err
	}
	return &authedUser{CurrentUser: user, claims: claims}, nil
}

func (s *Server) requireRoles(r *http.Request, roles ...string) (*authedUser, error) {
	user, err := s.currentUser(r)
	if err != nil {
		return nil, err
	}
	if !user.hasAnyRole(roles...) {
		return nil, &api.Error{Status: http.StatusForbidden, Msg: "Insufficient permissions"}
	}
	return user, nil
}

// pagination reads skip/limit with the usual clamps.
func pagination(r *http.Request, defaultLimit int) (skip, limit int) {
	skip, limit = 0, defaultLimit
	query := r.URL.Query()
	if v, err := strconv.Atoi(query.Get("skip")); err == nil {
		skip = v
	}
	if v, err := strconv.Atoi(query.Get("limit")); err == nil {
		limit = v
	}
	if skip < 0 {
		skip = 0
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if limit < 1 {
		limit = defaultLimit
	}
	return skip, limit
}

func pathUint(r *http.Request, name string) (uint, error) {
	value, err := strconv.ParseUint(r.PathValue(name), 10, 32)
	if err != nil {
		return 0, &api.Error{Status: http.StatusUnprocessableEntity, Msg: fmt.Sprintf("Invalid %s", name)}
	}
	return uint(value), nil
}

// setAuthCookies issues the login cookie trio: httponly access and
// refresh tokens plus a client-readable csrf token.
func setAuthCookies(w http.ResponseWriter, tokens *auth.TokenSet, csrfToken string) {
	accessMaxAge := tokens.ExpiresIn
	if accessMaxAge <= 0 {
		accessMaxAge = int(consts.DefaultAccessTokenTTL.Seconds())
	}
	http.SetCookie(w, &http.Cookie{
		Name:     consts.AccessTokenCookie,
		Value:    tokens.AccessToken,
		Path:     "/",
		MaxAge:   accessMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	if tokens.RefreshToken != "" {
		refreshMaxAge := tokens.RefreshExpiresIn
		if refreshMaxAge <= 0 {
			refreshMaxAge = int(consts.DefaultRefreshTokenTTL.Seconds())
		}
		http.SetCookie(w, &http.Cookie{
			Name:     consts.RefreshTokenCookie,
			Value:    tokens.RefreshToken,
			Path:     "/",
			MaxAge:   refreshMaxAge,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	if csrfToken != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     consts.CSRFTokenCookie,
			Value:    csrfToken,
			Path:     "/",
			MaxAge:   accessMaxAge,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func clearAuthCookies(w http.ResponseWriter) {
	names := []string{consts.AccessTokenCookie, consts.RefreshTokenCookie, "id_token", consts.CSRFTokenCookie}
	for _, name := range names {
		http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1})
	}
}

// recordAudit stores an audit trail row. Failures are logged and do not
// fail the admin action.
func (s *Server) recordAudit(r *http.Request, adminID uint, action, resourceType, resourceID string, details models.JSONMap) {
	entry := models.AuditLog{
		AdminID:      adminID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		IPAddress:    api.ClientIP(r),
		UserAgent:    r.UserAgent(),
	}
	if err := s.db.WithContext(r.Context()).Create(&entry).Error; err != nil {
		log.Error(r.Context(), "Failed to record audit entry",
			"action", action, "resource_type", resourceType, "err", err)
	}
}

// invalidate drops every cache entry of an entity, lists included.
func (s *Server) invalidate(ctx context.Context, entity string) {
	s.cache.DeletePrefix(ctx, entity+":")
}
