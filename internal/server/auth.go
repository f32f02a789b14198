package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/malabook/mala/server/consts"
	"github.com/malabook/mala/server/internal/api"
	"github.com/malabook/mala/server/internal/auth"
	"github.com/malabook/mala/server/internal/log"
	"github.com/malabook/mala/server/internal/models"
	"github.com/malabook/mala/server/internal/schemas"
)

func (s *Server) signupPostHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	var body schemas.SignupRequest
	if err := api.DecodeJSONBody(w, r, &body, true); err != nil {
		return nil, err
	}
	if body.Username == "" || body.Email == "" || body.Password == "" {
		return nil, &api.Error{Status: http.StatusUnprocessableEntity, Msg: "username, email and password are required"}
	}
	ctx := r.Context()
	log.Info(ctx, "Attempting to sign up user", "username", body.Username)

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ? OR username = ?", body.Email, body.Username).
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, &api.Error{Status: http.StatusBadRequest, Msg: "Email or Username already registered"}
	}

	var role models.Role
	if err := s.db.WithContext(ctx).Where("name = ?", strings.ToUpper(body.Role)).First(&role).Error; err != nil {
		return nil, &api.Error{Status: http.StatusBadRequest, Msg: "Invalid role specified"}
	}

	keycloakID, err := s.identity.CreateUser(ctx, auth.KeycloakUser{
		Username:  body.Username,
		Email:     body.Email,
		FirstName: body.FirstName,
		LastName:  body.LastName,
	}, body.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			return nil, &api.Error{Status: http.StatusBadRequest, Msg: "Email or Username already registered"}
		}
		log.Error(ctx, "Keycloak user creation failed", "err", err)
		return nil, &api.Error{Status: http.StatusInternalServerError, Msg: "Failed to create user in authentication service"}
	}
	log.Info(ctx, "User created in Keycloak", "keycloak_id", keycloakID)

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		return nil, err
	}
	user := models.User{
		KeycloakID:   keycloakID,
		Email:        body.Email,
		Username:     body.Username,
		PasswordHash: hash,
		FirstName:    body.FirstName,
		LastName:     body.LastName,
		RoleID:       role.ID,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if kcErr := s.identity.DeleteUser(ctx, keycloakID); kcErr != nil {
			log.Error(ctx, "Failed to roll back Keycloak user", "keycloak_id", keycloakID, "err", kcErr)
		}
		return nil, err
	}
	s.invalidate(ctx, "users")
	log.Info(ctx, "User created", "username", user.Username, "user_id", user.UserID)

	return &schemas.SignupResponse{
		UserID:     user.UserID,
		KeycloakID: user.KeycloakID,
		Email:      user.Email,
		Username:   user.Username,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Role:       role.Name,
		Message:    fmt.Sprintf("User %s was created succesfully!", user.Username),
	}, nil
}

func (s *Server) loginPostHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	var body schemas.LoginRequest
	if err := api.DecodeJSONBody(w, r, &body, true); err != nil {
		return nil, err
	}
	ctx := r.Context()

	tokens, err := s.identity.Login(ctx, body.Username, body.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return nil, &api.Error{Status: http.StatusUnauthorized, Msg: "Invalid credentials"}
		}
		log.Error(ctx, "Login failed", "err", err)
		return nil, &api.Error{Status: http.StatusInternalServerError, Msg: "Internal server error during login"}
	}

	var user models.User
	if err := s.db.WithContext(ctx).Preload("Role").
		Where("username = ?", body.Username).First(&user).Error; err != nil {
		log.Warning(ctx, "User authenticated with Keycloak but missing locally", "username", body.Username)
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "User not found in application database"}
	}
	roleName := "UNKOWN"
	if user.Role != nil {
		roleName = user.Role.Name
	}

	csrfToken, err := auth.NewCSRFToken()
	if err != nil {
		return nil, err
	}
	setAuthCookies(w, tokens, csrfToken)
	log.Info(ctx, "User logged in", "username", user.Username, "role", roleName)

	resp := loginResponseFromTokens(tokens, csrfToken)
	resp.UserInfo = &schemas.UserInfo{
		UserID:     user.UserID,
		KeycloakID: user.KeycloakID,
		Username:   user.Username,
		Email:      user.Email,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Role:       roleName,
	}
	return resp, nil
}

// loginResponseFromTokens fills the token payload, defaulting the
// lifetimes Keycloak occasionally leaves out.
func loginResponseFromTokens(tokens *auth.TokenSet, csrfToken string) *schemas.LoginResponse {
	expiresIn := tokens.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = int(consts.DefaultAccessTokenTTL.Seconds())
	}
	refreshExpiresIn := tokens.RefreshExpiresIn
	if refreshExpiresIn <= 0 {
		refreshExpiresIn = int(consts.DefaultRefreshTokenTTL.Seconds())
	}
	tokenType := tokens.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &schemas.LoginResponse{
		AccessToken:      tokens.AccessToken,
		RefreshToken:     tokens.RefreshToken,
		IDToken:          tokens.IDToken,
		TokenType:        tokenType,
		ExpiresIn:        expiresIn,
		RefreshExpiresIn: refreshExpiresIn,
		CSRFToken:        csrfToken,
	}
}

func (s *Server) refreshTokenPostHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	var body schemas.RefreshTokenRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := api.DecodeJSONBody(w, r, &body, true); err != nil {
			return nil, err
		}
	}
	refreshToken := body.RefreshToken
	if refreshToken == "" {
		if cookie, err := r.Cookie(consts.RefreshTokenCookie); err == nil {
			refreshToken = cookie.Value
		}
	}
	if refreshToken == "" {
		return nil, &api.Error{Status: http.StatusUnauthorized, Msg: "Refresh token missing"}
	}

	tokens, err := s.identity.Refresh(r.Context(), refreshToken)
	if err != nil {
		log.Warning(r.Context(), "Token refresh failed", "err", err)
		return nil, &api.Error{Status: http.StatusUnauthorized, Msg: "Invalid or expired refresh token"}
	}

	csrfToken, err := auth.NewCSRFToken()
	if err != nil {
		return nil, err
	}
	setAuthCookies(w, tokens, csrfToken)

	return loginResponseFromTokens(tokens, csrfToken), nil
}

// checkAuthGetHandler never fails: it reports how far the caller's
// session could be verified.
func (s *Server) checkAuthGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	cookie, err := r.Cookie(consts.AccessTokenCookie)
	if err != nil || cookie.Value == "" {
		return &schemas.CheckAuthResponse{Authenticated: false, Message: "No access token found"}, nil
	}

	claims, err := s.verifier.Verify(r.Context(), cookie.Value)
	if err != nil {
		log.Warning(r.Context(), "Authentication check failed", "err", err)
		return &schemas.CheckAuthResponse{Authenticated: false, Message: "Invalid or expired token"}, nil
	}

	var user models.User
	if err := s.db.WithContext(r.Context()).Preload("Role").
		Where("username = ?", claims.PreferredUsername).First(&user).Error; err != nil {
		return &schemas.CheckAuthResponse{
			Authenticated:    true,
			KeycloakVerified: true,
			DBVerified:       false,
			Message:          "User authenticated with Keycloak but not found in database",
		}, nil
	}
	roleName := "UNKNOWN"
	if user.Role != nil {
		roleName = user.Role.Name
	}

	return &schemas.CheckAuthResponse{
		Authenticated:    true,
		KeycloakVerified: true,
		DBVerified:       true,
		UserID:           user.UserID,
		KeycloakID:       user.KeycloakID,
		Username:         user.Username,
		Email:            user.Email,
		Role:             roleName,
	}, nil
}

// callbackGetHandler finishes the authorization-code flow and sends the
// browser back to the address carried in state.
func (s *Server) callbackGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	code := r.URL.Query().Get("code")
	if code == "" {
		return nil, &api.Error{Status: http.StatusBadRequest, Msg: "Authorization code not provided"}
	}

	tokens, err := s.identity.ExchangeCode(r.Context(), code, s.redirectURI(r))
	if err != nil {
		log.Error(r.Context(), "Token exchange failed", "err", err)
		return nil, &api.Error{Status: http.StatusBadRequest, Msg: "Failed to exchange code for token"}
	}
	if tokens.AccessToken == "" {
		return nil, &api.Error{Status: http.StatusBadRequest, Msg: "Access token not found in response"}
	}

	csrfToken, err := auth.NewCSRFToken()
	if err != nil {
		return nil, err
	}
	setAuthCookies(w, tokens, csrfToken)

	target := r.URL.Query().Get("state")
	if target == "" {
		target = "/"
	}
	separator := "?"
	if strings.Contains(target, "?") {
		separator = "&"
	}
	return &api.Redirect{URL: target + separator + "token=" + tokens.AccessToken, Status: http.StatusFound}, nil
}

func (s *Server) redirectURI(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.Path)
}

func (s *Server) protectedGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	user, err := s.currentUser(r)
	if err != nil {
		return nil, err
	}
	return map[string]string{"message": fmt.Sprintf("Welcome %s!", user.Username)}, nil
}

func (s *Server) resetPasswordPostHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	var body schemas.ResetPasswordRequest
	if err := api.DecodeJSONBody(w, r, &body, true); err != nil {
		return nil, err
	}
	ctx := r.Context()

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", body.Email).First(&user).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "User with the provided email does not exist"}
	}

	if err := s.identity.ResetPassword(ctx, user.KeycloakID, body.NewPassword); err != nil {
		log.Error(ctx, "Password reset failed", "err", err)
		return nil, &api.Error{Status: http.StatusInternalServerError, Msg: "An error occurred while resetting the password"}
	}

	hash, err := auth.HashPassword(body.NewPassword)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&user).Update("password_hash", hash).Error; err != nil {
		return nil, err
	}
	log.Info(ctx, "Password reset", "user_id", user.UserID)

	return map[string]string{"message": "Password reset successfully"}, nil
}

func (s *Server) logoutPostHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	if cookie, err := r.Cookie(consts.RefreshTokenCookie); err == nil && cookie.Value != "" {
		if err := s.identity.Logout(r.Context(), cookie.Value); err != nil {
			log.Warning(r.Context(), "Keycloak logout failed", "err", err)
		}
	}
	clearAuthCookies(w)
	return map[string]string{"message": "Logged out successfully"}, nil
}
