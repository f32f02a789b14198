package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"github.com/malabook/mala/server/internal/api"
	"github.com/malabook/mala/server/internal/auth"
	"github.com/malabook/mala/server/internal/cache"
	"github.com/malabook/mala/server/internal/config"
	"github.com/malabook/mala/server/internal/gerrors"
	"github.com/malabook/mala/server/internal/log"
	"github.com/malabook/mala/server/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

// Identity is the slice of the Keycloak client the handlers need.
type Identity interface {
	Login(ctx context.Context, username, password string) (*auth.TokenSet, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenSet, error)
	Logout(ctx context.Context, refreshToken string) error
	ExchangeCode(ctx context.Context, code, redirectURI string) (*auth.TokenSet, error)
	CreateUser(ctx context.Context, user auth.KeycloakUser, password string) (string, error)
	DeleteUser(ctx context.Context, keycloakID string) error
	ResetPassword(ctx context.Context, keycloakID, newPassword string) error
}

// TokenVerifier validates access tokens and returns their claims.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*auth.Claims, error)
}

// ObjectStore uploads and serves public assets.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	PublicURL(key string) string
	KeyFromURL(rawURL string) (string, bool)
}

type Server struct {
	srv        *http.Server
	router     *api.Router
	db         *gorm.DB
	cache      cache.Cache
	identity   Identity
	verifier   TokenVerifier
	store      ObjectStore
	collector  *metrics.Collector
	hub        *Hub
	version    string
	startedAt  time.Time
	shutdownCh chan struct{}
}

func NewServer(
	address string,
	version string,
	database *gorm.DB,
	c cache.Cache,
	identity Identity,
	verifier TokenVerifier,
	store ObjectStore,
	collector *metrics.Collector,
	limits config.LimitsConfig,
) *Server {
	middleware := []api.Middleware{
		api.Recovery(),
		api.RequestID(),
		api.PerformanceLogging(limits.SlowRequest),
		api.RateLimit(limits.Rate, limits.RateWindow),
		api.Gzip(limits.GzipMinSize),
		api.SecurityHeaders(),
		api.CSRFGuard(),
	}
	if collector != nil {
		middleware = append(middleware, metrics.Middleware(collector))
	}
	r := api.NewRouter(middleware...)

	s := &Server{
		router:     r,
		db:         database,
		cache:      c,
		identity:   identity,
		verifier:   verifier,
		store:      store,
		collector:  collector,
		hub:        NewHub(),
		version:    version,
		startedAt:  time.Now(),
		shutdownCh: make(chan struct{}),
	}

	r.AddHandler("GET", "/{$}", s.rootGetHandler)
	r.AddHandler("GET", "/health", s.healthcheckGetHandler)
	r.AddHandler("GET", "/v1/health", s.healthcheckGetHandler)

	r.AddHandler("POST", "/v1/auth/signup", s.signupPostHandler)
	r.AddHandler("POST", "/v1/auth/login", s.loginPostHandler)
	r.AddHandler("POST", "/v1/auth/refresh-token", s.refreshTokenPostHandler)
	r.AddHandler("GET", "/v1/auth/check-auth", s.checkAuthGetHandler)
	r.AddHandler("GET", "/v1/auth/callback", s.callbackGetHandler)
	r.AddHandler("GET", "/v1/auth/protected", s.protectedGetHandler)
	r.AddHandler("POST", "/v1/auth/reset-password", s.resetPasswordPostHandler)
	r.AddHandler("POST", "/v1/auth/logout", s.logoutPostHandler)

	r.AddHandler("POST", "/v1/users", s.usersPostHandler)
	r.AddHandler("GET", "/v1/users", s.usersGetHandler)
	r.AddHandler("GET", "/v1/users/{user_id}", s.userGetHandler)
	r.AddHandler("PUT", "/v1/users/{user_id}", s.userPutHandler)
	r.AddHandler("DELETE", "/v1/users/{user_id}", s.userDeleteHandler)

	r.AddHandler("POST", "/v1/profiles/signup", s.profileSignupPostHandler)
	r.AddHandler("GET", "/v1/profiles", s.profilesGetHandler)
	r.AddHandler("GET", "/v1/profiles/admins/analytics", s.adminAnalyticsGetHandler)
	for userType, segment := range profileSegments {
		r.AddHandler("GET", "/v1/profiles/"+segment+"/{keycloak_id}", s.profileGetHandler(userType))
		r.AddHandler("PUT", "/v1/profiles/"+segment+"/{keycloak_id}", s.profilePutHandler(userType))
		r.AddHandler("DELETE", "/v1/profiles/"+segment+"/{keycloak_id}", s.profileDeleteHandler(userType))
	}
	r.AddHandler("PATCH", "/v1/profiles/customers/{keycloak_id}", s.profilePutHandler(profileTypeCustomer))
	r.AddHandler("PATCH", "/v1/profiles/freelancers/{keycloak_id}", s.profilePutHandler(profileTypeFreelance))
	r.AddHandler("POST", "/v1/profiles/{user_type}/{keycloak_id}/avatar", s.avatarPostHandler)
	r.AddHandler("DELETE", "/v1/profiles/{user_type}/{keycloak_id}/avatar", s.avatarDeleteHandler)

	r.AddHandler("POST", "/v1/salons", s.salonsPostHandler)
	r.AddHandler("GET", "/v1/salons", s.salonsGetHandler)
	r.AddHandler("GET", "/v1/salons/{salon_id}", s.salonGetHandler)
	r.AddHandler("PUT", "/v1/salons/{salon_id}", s.salonPutHandler)
	r.AddHandler("DELETE", "/v1/salons/{salon_id}", s.salonDeleteHandler)
	r.AddHandler("POST", "/v1/salons/{salon_id}/image", s.salonImagePostHandler)

	r.AddHandler("POST", "/v1/services", s.servicesPostHandler)
	r.AddHandler("GET", "/v1/services", s.servicesGetHandler)
	r.AddHandler("GET", "/v1/services/{service_id}", s.serviceGetHandler)
	r.AddHandler("PUT", "/v1/services/{service_id}", s.servicePutHandler)
	r.AddHandler("DELETE", "/v1/services/{service_id}", s.serviceDeleteHandler)

	r.AddHandler("GET", "/v1/staff", s.staffListGetHandler)
	r.AddHandler("GET", "/v1/staff/{staff_id}", s.staffGetHandler)
	r.AddHandler("GET", "/v1/staff/salon/{salon_id}", s.staffBySalonGetHandler)
	r.AddHandler("POST", "/v1/staff", s.staffPostHandler)
	r.AddHandler("PUT", "/v1/staff/{staff_id}", s.staffPutHandler)
	r.AddHandler("DELETE", "/v1/staff/{staff_id}", s.staffDeleteHandler)
	r.AddHandler("DELETE", "/v1/staff/salon/{salon_id}", s.staffBySalonDeleteHandler)

	r.AddHandler("POST", "/v1/appointments", s.appointmentsPostHandler)
	r.AddHandler("GET", "/v1/appointments", s.appointmentsGetHandler)
	r.AddHandler("GET", "/v1/appointments/{appointment_id}", s.appointmentGetHandler)
	r.AddHandler("PUT", "/v1/appointments/{appointment_id}", s.appointmentPutHandler)
	r.AddHandler("DELETE", "/v1/appointments/{appointment_id}", s.appointmentDeleteHandler)

	r.AddHandler("GET", "/v1/payments", s.paymentsGetHandler)
	r.AddHandler("GET", "/v1/payments/{payment_id}", s.paymentGetHandler)
	r.AddHandler("POST", "/v1/payments", s.paymentsPostHandler)
	r.AddHandler("DELETE", "/v1/payments/{payment_id}", s.paymentDeleteHandler)

	r.AddHandler("GET", "/v1/appointments/{appointment_id}/messages", s.messagesGetHandler)
	r.AddHandler("POST", "/v1/appointments/{appointment_id}/messages", s.messagesPostHandler)

	r.AddHandler("GET", "/v1/analytics/general", s.analyticsGeneralGetHandler)
	r.AddHandler("GET", "/v1/analytics/unique-visitors", s.analyticsVisitorsGetHandler)
	r.AddHandler("GET", "/v1/analytics/customers", s.analyticsCustomersGetHandler)
	r.AddHandler("GET", "/v1/analytics/campaign-monitor", s.analyticsCampaignsGetHandler)
	r.AddHandler("GET", "/v1/analytics/appointments-by-status", s.analyticsAppointmentsGetHandler)
	r.AddHandler("GET", "/v1/analytics/popular-services", s.analyticsPopularServicesGetHandler)
	r.AddHandler("GET", "/v1/analytics/messages-per-appointment", s.analyticsMessagesGetHandler)
	r.AddHandler("GET", "/v1/analytics/revenue-analytics", s.analyticsRevenueGetHandler)

	r.AddHandler("GET", "/v1/admin/users", s.adminUsersGetHandler)
	r.AddHandler("GET", "/v1/admin/users/{user_id}", s.adminUserGetHandler)
	r.AddHandler("PATCH", "/v1/admin/users/{user_id}/status", s.adminUserStatusPatchHandler)
	r.AddHandler("DELETE", "/v1/admin/users/{user_id}", s.adminUserDeleteHandler)
	r.AddHandler("GET", "/v1/admin/salons", s.adminSalonsGetHandler)
	r.AddHandler("PATCH", "/v1/admin/salons/{salon_id}/status", s.adminSalonStatusPatchHandler)
	r.AddHandler("GET", "/v1/admin/appointments", s.adminAppointmentsGetHandler)
	r.AddHandler("PATCH", "/v1/admin/appointments/{appointment_id}/status", s.adminAppointmentStatusPatchHandler)

	r.AddHandler("GET", "/v1/audit/logs", s.auditLogsGetHandler)
	r.AddHandler("GET", "/v1/audit/summary", s.auditSummaryGetHandler)
	r.AddHandler("GET", "/v1/audit/actions", s.auditActionsGetHandler)

	r.HandleFunc("GET /ws/appointments/{appointment_id}", s.appointmentsWsHandler)

	s.srv = &http.Server{
		Addr:    address,
		Handler: r.Handler(),
	}
	return s
}

// Hub exposes the websocket hub so the message handlers and tests can
// broadcast through it.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run serves until the context is cancelled, a termination signal
// arrives or the listener fails, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()
	log.Info(ctx, "Server started", "address", s.srv.Addr, "version", s.version)

	select {
	case <-ctx.Done():
		log.Info(ctx, "Context cancelled, shutting down")
	case sig := <-signalCh:
		log.Info(ctx, "Received signal, shutting down", "signal", sig.String())
	case <-s.shutdownCh:
		log.Info(ctx, "Shutdown requested")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return gerrors.Wrap(err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.hub.CloseAll()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return gerrors.Wrap(err)
	}
	return nil
}

// Stop triggers the same graceful path as a termination signal.
func (s *Server) Stop() {
	close(s.shutdownCh)
}

func (s *Server) uptime() string {
	return time.Since(s.startedAt).Round(time.Second).String()
}
