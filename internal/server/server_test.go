package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"

	"github.com/malabook/mala/server/internal/auth"
	"github.com/malabook/mala/server/internal/cache"
	"github.com/malabook/mala/server/internal/config"
	"github.com/malabook/mala/server/internal/db"
	"github.com/malabook/mala/server/internal/models"
)

// fakeIdentity satisfies Identity. Calls without a hook succeed with
// canned values so tests only wire up what they assert on.
type fakeIdentity struct {
	loginFunc         func(ctx context.Context, username, password string) (*auth.TokenSet, error)
	refreshFunc       func(ctx context.Context, refreshToken string) (*auth.TokenSet, error)
	logoutFunc        func(ctx context.Context, refreshToken string) error
	exchangeCodeFunc  func(ctx context.Context, code, redirectURI string) (*auth.TokenSet, error)
	createUserFunc    func(ctx context.Context, user auth.KeycloakUser, password string) (string, error)
	deleteUserFunc    func(ctx context.Context, keycloakID string) error
	resetPasswordFunc func(ctx context.Context, keycloakID, newPassword string) error

	mu           sync.Mutex
	createdUsers []auth.KeycloakUser
	deletedIDs   []string
}

func defaultTokenSet() *auth.TokenSet {
	return &auth.TokenSet{
		AccessToken:      "kc-access",
		RefreshToken:     "kc-refresh",
		IDToken:          "kc-id",
		TokenType:        "Bearer",
		ExpiresIn:        300,
		RefreshExpiresIn: 1800,
	}
}

func (f *fakeIdentity) Login(ctx context.Context, username, password string) (*auth.TokenSet, error) {
	if f.loginFunc != nil {
		return f.loginFunc(ctx, username, password)
	}
	return defaultTokenSet(), nil
}

func (f *fakeIdentity) Refresh(ctx context.Context, refreshToken string) (*auth.TokenSet, error) {
	if f.refreshFunc != nil {
		return f.refreshFunc(ctx, refreshToken)
	}
	return defaultTokenSet(), nil
}

func (f *fakeIdentity) Logout(ctx context.Context, refreshToken string) error {
	if f.logoutFunc != nil {
		return f.logoutFunc(ctx, refreshToken)
	}
	return nil
}

func (f *fakeIdentity) ExchangeCode(ctx context.Context, code, redirectURI string) (*auth.TokenSet, error) {
	if f.exchangeCodeFunc != nil {
		return f.exchangeCodeFunc(ctx, code, redirectURI)
	}
	return defaultTokenSet(), nil
}

func (f *fakeIdentity) CreateUser(ctx context.Context, user auth.KeycloakUser, password string) (string, error) {
	f.mu.Lock()
	f.createdUsers = append(f.createdUsers, user)
	f.mu.Unlock()
	if f.createUserFunc != nil {
		return f.createUserFunc(ctx, user, password)
	}
	return "kc-" + user.Username, nil
}

func (f *fakeIdentity) DeleteUser(ctx context.Context, keycloakID string) error {
	f.mu.Lock()
	f.deletedIDs = append(f.deletedIDs, keycloakID)
	f.mu.Unlock()
	if f.deleteUserFunc != nil {
		return f.deleteUserFunc(ctx, keycloakID)
	}
	return nil
}

func (f *fakeIdentity) ResetPassword(ctx context.Context, keycloakID, newPassword string) error {
	if f.resetPasswordFunc != nil {
		return f.resetPasswordFunc(ctx, keycloakID, newPassword)
	}
	return nil
}

// fakeVerifier accepts exactly the tokens registered with add.
type fakeVerifier struct {
	mu     sync.Mutex
	tokens map[string]*auth.Claims
}

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{tokens: make(map[string]*auth.Claims)}
}

func (v *fakeVerifier) add(token string, claims *auth.Claims) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokens[token] = claims
}

func (v *fakeVerifier) Verify(ctx context.Context, rawToken string) (*auth.Claims, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	claims, ok := v.tokens[rawToken]
	if !ok {
		return nil, errors.New("token is not recognized")
	}
	return claims, nil
}

// fakeStore keeps uploads in memory under stable public URLs.
type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	deleteErr error
}

const fakeStoreBaseURL = "https://cdn.test/"

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = append([]byte(nil), data...)
	return f.PublicURL(key), nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) DeletePrefix(ctx context.Context, prefix string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			delete(f.objects, key)
		}
	}
	return nil
}

func (f *fakeStore) PublicURL(key string) string {
	return fakeStoreBaseURL + key
}

func (f *fakeStore) KeyFromURL(rawURL string) (string, bool) {
	if !strings.HasPrefix(rawURL, fakeStoreBaseURL) {
		return "", false
	}
	return strings.TrimPrefix(rawURL, fakeStoreBaseURL), true
}

func (f *fakeStore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

type testServer struct {
	*Server
	identity *fakeIdentity
	verifier *fakeVerifier
	store    *fakeStore
}

// newTestServer builds a server on an in-memory database with fakes in
// place of Keycloak and S3. Requests go through the full middleware
// chain via do.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	database, err := db.Open(ctx, ":memory:", false)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := database.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	c := cache.NewMemory(time.Hour)
	t.Cleanup(func() { _ = c.Close() })

	identity := &fakeIdentity{}
	verifier := newFakeVerifier()
	store := newFakeStore()

	limits := config.LimitsConfig{
		Rate:        10000,
		RateWindow:  time.Minute,
		SlowRequest: 2 * time.Second,
		GzipMinSize: 1 << 20,
	}
	srv := NewServer("127.0.0.1:0", "test", database, c, identity, verifier, store, nil, limits)
	return &testServer{Server: srv, identity: identity, verifier: verifier, store: store}
}

type requestOption func(*http.Request)

func asUser(token string) requestOption {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func (s *testServer) do(t *testing.T, method, target string, body interface{}, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	request := httptest.NewRequest(method, target, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(request)
	}
	responseRecorder := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(responseRecorder, request)
	return responseRecorder
}

// doMultipart posts a single file field the way the upload endpoints
// expect it.
func (s *testServer) doMultipart(t *testing.T, method, target, filename string, data []byte, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	request := httptest.NewRequest(method, target, &buf)
	request.Header.Set("Content-Type", mw.FormDataContentType())
	for _, opt := range opts {
		opt(request)
	}
	responseRecorder := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(responseRecorder, request)
	return responseRecorder
}

func pngImage() []byte {
	return append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 24)...)
}

func decodeJSON(t *testing.T, responseRecorder *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(responseRecorder.Body.Bytes(), dst))
}

// decodeMap is for responses asserted field by field.
func decodeMap(t *testing.T, responseRecorder *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	decodeJSON(t, responseRecorder, &m)
	return m
}

// seedUser inserts a user under the named role and registers a bearer
// token for it. Realm roles only exist on the token.
func (s *testServer) seedUser(t *testing.T, username, roleName string, realmRoles ...string) (models.User, string) {
	t.Helper()
	var role models.Role
	require.NoError(t, s.db.Where("name = ?", roleName).First(&role).Error)

	user := models.User{
		KeycloakID:   "kc-" + username,
		Username:     username,
		Email:        username + "@example.com",
		FirstName:    username,
		LastName:     "Tester",
		PasswordHash: "not-a-real-hash",
		RoleID:       role.ID,
	}
	require.NoError(t, s.db.Create(&user).Error)

	token := "token-" + username
	claims := &auth.Claims{
		RegisteredClaims:  jwt.RegisteredClaims{Subject: user.KeycloakID},
		PreferredUsername: username,
		Email:             user.Email,
	}
	claims.RealmAccess.Roles = realmRoles
	s.verifier.add(token, claims)
	return user, token
}

func (s *testServer) seedProfile(t *testing.T, user models.User, userType string) models.Profile {
	t.Helper()
	profile := models.Profile{
		UserID:     &user.UserID,
		KeycloakID: user.KeycloakID,
		UserType:   userType,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Email:      user.Email,
		Status:     "ACTIVE",
	}
	require.NoError(t, s.db.Create(&profile).Error)
	return profile
}

func (s *testServer) seedSalon(t *testing.T, ownerID uint, name string) models.Salon {
	t.Helper()
	salon := models.Salon{
		Name:        name,
		Description: name + " description",
		OwnerID:     ownerID,
		City:        "Lagos",
		Status:      "ACTIVE",
	}
	require.NoError(t, s.db.Create(&salon).Error)
	return salon
}

func (s *testServer) seedService(t *testing.T, salonID uint, name string, price float64) models.Service {
	t.Helper()
	service := models.Service{
		Name:        name,
		Description: name + " description",
		Duration:    30,
		Price:       price,
		SalonID:     salonID,
	}
	require.NoError(t, s.db.Create(&service).Error)
	return service
}

func (s *testServer) seedAppointment(t *testing.T, clientID, serviceID uint, at time.Time, status string) models.Appointment {
	t.Helper()
	appointment := models.Appointment{
		AppointmentTime: at,
		Duration:        30,
		ClientID:        clientID,
		ServiceID:       serviceID,
		Status:          status,
	}
	require.NoError(t, s.db.Create(&appointment).Error)
	return appointment
}
