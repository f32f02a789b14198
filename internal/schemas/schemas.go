package schemas

import "time"

type HealthcheckResponse struct {
	Service string                 `json:"service"`
	Version string                 `json:"version"`
	Status  string                 `json:"status"`
	Uptime  string                 `json:"uptime,omitempty"`
	Checks  map[string]string      `json:"checks,omitempty"`
	Metrics map[string]interface{} `json:"metrics,omitempty"`
}

// Auth

type SignupRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

type SignupResponse struct {
	UserID     uint   `json:"user_id"`
	KeycloakID string `json:"keycloak_id"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Role       string `json:"role"`
	Message    string `json:"message"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	IDToken          string    `json:"id_token,omitempty"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int       `json:"expires_in"`
	RefreshExpiresIn int       `json:"refresh_expires_in"`
	CSRFToken        string    `json:"csrf_token,omitempty"`
	UserInfo         *UserInfo `json:"user_info,omitempty"`
}

type UserInfo struct {
	UserID     uint   `json:"user_id"`
	KeycloakID string `json:"keycloak_id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Role       string `json:"role"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"new_password"`
}

type CheckAuthResponse struct {
	Authenticated    bool   `json:"authenticated"`
	KeycloakVerified bool   `json:"keycloak_verified,omitempty"`
	DBVerified       bool   `json:"db_verified,omitempty"`
	UserID           uint   `json:"user_id,omitempty"`
	KeycloakID       string `json:"keycloak_id,omitempty"`
	Username         string `json:"username,omitempty"`
	Email            string `json:"email,omitempty"`
	Role             string `json:"role,omitempty"`
	Message          string `json:"message,omitempty"`
}

// Users

type User struct {
	UserID     uint   `json:"user_id"`
	KeycloakID string `json:"keycloak_id"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Role       string `json:"role,omitempty"`
}

type UserUpdate struct {
	Username  *string `json:"username,omitempty"`
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

// Profiles

type Profile struct {
	UserID         uint                   `json:"user_id"`
	KeycloakID     string                 `json:"keycloak_id"`
	Username       string                 `json:"username,omitempty"`
	FirstName      string                 `json:"firstName"`
	LastName       string                 `json:"lastName"`
	Email          string                 `json:"email"`
	PhoneNumber    string                 `json:"phoneNumber,omitempty"`
	Address        string                 `json:"address,omitempty"`
	Bio            string                 `json:"bio,omitempty"`
	AvatarURL      string                 `json:"avatar_url,omitempty"`
	Status         string                 `json:"status,omitempty"`
	UserType       string                 `json:"userType,omitempty"`
	AdditionalData map[string]interface{} `json:"additionalData,omitempty"`
	CreatedAt      *time.Time             `json:"created_at,omitempty"`
	UpdatedAt      *time.Time             `json:"updated_at,omitempty"`
	Tokens         *LoginResponse         `json:"tokens,omitempty"`
}

type ProfileCreate struct {
	FirstName      string                 `json:"firstName"`
	LastName       string                 `json:"lastName"`
	Email          string                 `json:"email"`
	Password       string                 `json:"password"`
	PhoneNumber    string                 `json:"phoneNumber,omitempty"`
	Address        string                 `json:"address,omitempty"`
	Bio            string                 `json:"bio,omitempty"`
	AvatarURL      string                 `json:"avatar_url,omitempty"`
	UserType       string                 `json:"userType,omitempty"`
	AdditionalData map[string]interface{} `json:"additionalData,omitempty"`
}

type ProfileUpdate struct {
	FirstName      *string                `json:"firstName,omitempty"`
	LastName       *string                `json:"lastName,omitempty"`
	Email          *string                `json:"email,omitempty"`
	PhoneNumber    *string                `json:"phoneNumber,omitempty"`
	Address        *string                `json:"address,omitempty"`
	Bio            *string                `json:"bio,omitempty"`
	AvatarURL      *string                `json:"avatar_url,omitempty"`
	Status         *string                `json:"status,omitempty"`
	AdditionalData map[string]interface{} `json:"additionalData,omitempty"`
}

type AvatarUploadResponse struct {
	Message    string    `json:"message"`
	FileURL    string    `json:"file_url"`
	UploadedAt time.Time `json:"uploaded_at"`
	UserType   string    `json:"user_type"`
	KeycloakID string    `json:"keycloak_id"`
}

// Salons

type SalonOwner struct {
	UserID    uint   `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type SalonService struct {
	ServiceID uint    `json:"service_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Duration  int     `json:"duration"`
}

type SalonReview struct {
	ReviewID uint   `json:"review_id"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment,omitempty"`
}

type SalonStaff struct {
	StaffID   uint   `json:"staff_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	Email     string `json:"email"`
}

type Salon struct {
	SalonID          uint                   `json:"salon_id"`
	Name             string                 `json:"name"`
	Description      string                 `json:"description,omitempty"`
	ImageURL         string                 `json:"image_url,omitempty"`
	Street           string                 `json:"street,omitempty"`
	City             string                 `json:"city,omitempty"`
	State            string                 `json:"state,omitempty"`
	ZipCode          string                 `json:"zip_code,omitempty"`
	Country          string                 `json:"country,omitempty"`
	Latitude         float64                `json:"latitude,omitempty"`
	Longitude        float64                `json:"longitude,omitempty"`
	PhoneNumber      string                 `json:"phone_number,omitempty"`
	Website          string                 `json:"website,omitempty"`
	SocialMediaLinks map[string]interface{} `json:"social_media_links,omitempty"`
	Status           string                 `json:"status,omitempty"`
	OpeningHours     map[string]interface{} `json:"opening_hours,omitempty"`
	IsOpen           bool                   `json:"is_open"`
	Owner            *SalonOwner            `json:"owner,omitempty"`
	Services         []SalonService         `json:"services,omitempty"`
	Reviews          []SalonReview          `json:"reviews,omitempty"`
	Staff            []SalonStaff           `json:"staff_member,omitempty"`
	CreatedAt        *time.Time             `json:"created_at,omitempty"`
	UpdatedAt        *time.Time             `json:"updated_at,omitempty"`
}

type SalonCreate struct {
	Name             string                 `json:"name"`
	Description      string                 `json:"description"`
	ImageURL         string                 `json:"image_url,omitempty"`
	OwnerID          uint                   `json:"owner_id"`
	Street           string                 `json:"street,omitempty"`
	City             string                 `json:"city,omitempty"`
	State            string                 `json:"state,omitempty"`
	ZipCode          string                 `json:"zip_code,omitempty"`
	Country          string                 `json:"country,omitempty"`
	Latitude         float64                `json:"latitude,omitempty"`
	Longitude        float64                `json:"longitude,omitempty"`
	PhoneNumber      string                 `json:"phone_number,omitempty"`
	Website          string                 `json:"website,omitempty"`
	SocialMediaLinks map[string]interface{} `json:"social_media_links,omitempty"`
	Status           string                 `json:"status,omitempty"`
	OpeningHours     map[string]interface{} `json:"opening_hours,omitempty"`
}

type SalonUpdate struct {
	Name             *string                `json:"name,omitempty"`
	Description      *string                `json:"description,omitempty"`
	ImageURL         *string                `json:"image_url,omitempty"`
	Street           *string                `json:"street,omitempty"`
	City             *string                `json:"city,omitempty"`
	State            *string                `json:"state,omitempty"`
	ZipCode          *string                `json:"zip_code,omitempty"`
	Country          *string                `json:"country,omitempty"`
	PhoneNumber      *string                `json:"phone_number,omitempty"`
	Website          *string                `json:"website,omitempty"`
	SocialMediaLinks map[string]interface{} `json:"social_media_links,omitempty"`
	Status           *string                `json:"status,omitempty"`
	OpeningHours     map[string]interface{} `json:"opening_hours,omitempty"`
}

type SalonImageUploadResponse struct {
	Message    string    `json:"message"`
	FileURL    string    `json:"file_url"`
	Kind       string    `json:"kind"`
	SalonID    uint      `json:"salon_id"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Services

type Service struct {
	ServiceID   uint       `json:"service_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Duration    int        `json:"duration"`
	Price       float64    `json:"price"`
	SalonID     uint       `json:"salon_id"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

type ServiceCreate struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Duration    int     `json:"duration"`
	Price       float64 `json:"price"`
	SalonID     uint    `json:"salon_id"`
}

type ServiceUpdate struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Duration    *int     `json:"duration,omitempty"`
	Price       *float64 `json:"price,omitempty"`
}

// Staff

type Staff struct {
	StaffID     uint   `json:"staff_id"`
	UserID      uint   `json:"user_id"`
	SalonID     uint   `json:"salon_id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Role        string `json:"role"`
}

type StaffCreate struct {
	UserID      uint   `json:"user_id"`
	SalonID     uint   `json:"salon_id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Role        string `json:"role"`
}

type StaffUpdate struct {
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	Email       *string `json:"email,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	Role        *string `json:"role,omitempty"`
}

// Appointments

type Appointment struct {
	AppointmentID   uint       `json:"appointment_id"`
	AppointmentTime time.Time  `json:"appointment_time"`
	Duration        int        `json:"duration"`
	Notes           string     `json:"notes,omitempty"`
	ClientID        uint       `json:"client_id"`
	ServiceID       uint       `json:"service_id"`
	StaffID         *uint      `json:"staff_id,omitempty"`
	ReminderTime    *time.Time `json:"reminder_time,omitempty"`
	Status          string     `json:"status"`
}

type AppointmentCreate struct {
	AppointmentTime time.Time  `json:"appointment_time"`
	Duration        int        `json:"duration"`
	ClientID        uint       `json:"client_id"`
	ServiceID       uint       `json:"service_id"`
	StaffID         *uint      `json:"staff_id,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	ReminderTime    *time.Time `json:"reminder_time,omitempty"`
	Status          string     `json:"status,omitempty"`
}

type AppointmentUpdate struct {
	AppointmentTime *time.Time `json:"appointment_time,omitempty"`
	Duration        *int       `json:"duration,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	ReminderTime    *time.Time `json:"reminder_time,omitempty"`
	Status          *string    `json:"status,omitempty"`
}

// Payments

type Payment struct {
	PaymentID     uint    `json:"payment_id"`
	AppointmentID uint    `json:"appointment_id"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"payment_method"`
	PaymentStatus string  `json:"payment_status"`
	TransactionID string  `json:"transaction_id,omitempty"`
}

type PaymentCreate struct {
	AppointmentID uint    `json:"appointment_id"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"payment_method"`
	PaymentStatus string  `json:"payment_status,omitempty"`
	TransactionID string  `json:"transaction_id,omitempty"`
}

// Messages

type Message struct {
	ID            uint      `json:"id"`
	SenderID      uint      `json:"sender_id"`
	ReceiverID    uint      `json:"receiver_id"`
	AppointmentID uint      `json:"appointment_id"`
	MessageText   string    `json:"message_text"`
	SentTime      time.Time `json:"sent_time"`
}

type MessageCreate struct {
	ReceiverID  uint   `json:"receiver_id"`
	MessageText string `json:"message_text"`
}

type DeletedResponse struct {
	Message string `json:"message"`
}
