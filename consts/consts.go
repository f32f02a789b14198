package consts

import "time"

const ServiceName = "mala-server"

// Default log filenames
const (
	ServerDefaultLogFileName = "server.log"
	AccessLogFileName        = "access.log"
)

const (
	DefaultHTTPPort  = 8000
	DefaultConfigDir = "/etc/mala"
)

// Cookie names set by the auth endpoints
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
	CSRFTokenCookie    = "csrf_token"
	CSRFHeader         = "X-CSRF-Token"
)

// Token lifetimes used when Keycloak doesn't report them
const (
	DefaultAccessTokenTTL  = 300 * time.Second
	DefaultRefreshTokenTTL = 1800 * time.Second
)

// Profile user types
const (
	UserTypeCustomer  = "CUSTOMER"
	UserTypeVendor    = "VENDOR"
	UserTypeAdmin     = "ADMIN"
	UserTypeFreelance = "FREELANCE"
)

// Profile statuses
const (
	ProfileActive    = "ACTIVE"
	ProfileInactive  = "INACTIVE"
	ProfileSuspended = "SUSPENDED"
	ProfileDeleted   = "DELETED"
)

// Appointment statuses
const (
	AppointmentPending   = "pending"
	AppointmentConfirmed = "confirmed"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
)

// Salon statuses
const (
	SalonActive   = "ACTIVE"
	SalonInactive = "INACTIVE"
)
