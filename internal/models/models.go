package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/malabook/mala/server/internal/gerrors"
)

// JSONMap stores a free-form JSON object in a text column.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, gerrors.Wrap(err)
	}
	return string(b), nil
}

func (m *JSONMap) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return gerrors.Newf("unsupported JSONMap source %T", src)
	}
	return gerrors.Wrap(json.Unmarshal(data, m))
}

type Role struct {
	ID          uint   `gorm:"primary_key"`
	Name        string `gorm:"uniqueIndex;not null"`
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type User struct {
	UserID       uint   `gorm:"primary_key"`
	KeycloakID   string `gorm:"uniqueIndex;not null"`
	Username     string `gorm:"uniqueIndex;not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	FirstName    string `gorm:"index:idx_user_search"`
	LastName     string `gorm:"index:idx_user_search"`
	RoleID       uint   `gorm:"index"`
	Role         *Role  `gorm:"foreignKey:RoleID"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Profile struct {
	ProfileID      uint   `gorm:"primary_key"`
	UserID         *uint  `gorm:"uniqueIndex"`
	KeycloakID     string `gorm:"uniqueIndex;not null"`
	UserType       string `gorm:"not null;index"`
	FirstName      string `gorm:"not null"`
	LastName       string `gorm:"not null"`
	Email          string `gorm:"not null"`
	PhoneNumber    string
	Address        string
	Bio            string
	AvatarURL      string
	Status         string `gorm:"not null;default:ACTIVE;index"`
	AdditionalData JSONMap
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Salon struct {
	SalonID          uint   `gorm:"primary_key"`
	Name             string `gorm:"not null;index"`
	Description      string
	ImageURL         string
	OwnerID          uint  `gorm:"index"`
	Owner            *User `gorm:"foreignKey:OwnerID"`
	Street           string
	City             string `gorm:"index"`
	State            string
	ZipCode          string
	Country          string
	Latitude         float64
	Longitude        float64
	PhoneNumber      string
	Website          string
	SocialMediaLinks JSONMap
	Status           string `gorm:"not null;default:ACTIVE;index"`
	OpeningHours     JSONMap
	Services         []Service `gorm:"foreignKey:SalonID"`
	Staff            []Staff   `gorm:"foreignKey:SalonID"`
	Reviews          []Review  `gorm:"foreignKey:SalonID"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Service struct {
	ServiceID   uint    `gorm:"primary_key"`
	Name        string  `gorm:"not null;index"`
	Description string  `gorm:"uniqueIndex"`
	Duration    int     `gorm:"not null"`
	Price       float64 `gorm:"type:decimal(10,2);not null"`
	SalonID     uint    `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Staff struct {
	StaffID     uint   `gorm:"primary_key"`
	UserID      uint   `gorm:"uniqueIndex"`
	User        *User  `gorm:"foreignKey:UserID"`
	SalonID     uint   `gorm:"index"`
	Salon       *Salon `gorm:"foreignKey:SalonID"`
	FirstName   string `gorm:"not null"`
	LastName    string `gorm:"not null"`
	Email       string `gorm:"uniqueIndex;not null"`
	PhoneNumber string
	Role        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Appointment struct {
	AppointmentID   uint      `gorm:"primary_key"`
	AppointmentTime time.Time `gorm:"not null;index"`
	Duration        int       `gorm:"not null"`
	Notes           string
	ClientID        uint     `gorm:"index"`
	Client          *User    `gorm:"foreignKey:ClientID"`
	ServiceID       uint     `gorm:"index"`
	Service         *Service `gorm:"foreignKey:ServiceID"`
	StaffID         *uint    `gorm:"index"`
	Staff           *Staff   `gorm:"foreignKey:StaffID"`
	ReminderTime    *time.Time
	Status          string `gorm:"not null;default:pending;index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Payment struct {
	PaymentID     uint    `gorm:"primary_key"`
	AppointmentID uint    `gorm:"index"`
	Amount        float64 `gorm:"type:decimal(10,2);not null"`
	PaymentMethod string  `gorm:"not null"`
	PaymentStatus string  `gorm:"not null;default:pending;index"`
	TransactionID string  `gorm:"uniqueIndex"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Message struct {
	ID            uint   `gorm:"primary_key"`
	SenderID      uint   `gorm:"index"`
	ReceiverID    uint   `gorm:"index"`
	AppointmentID uint   `gorm:"index"`
	MessageText   string `gorm:"not null"`
	SentTime      time.Time
}

type Review struct {
	ReviewID   uint `gorm:"primary_key"`
	Ratings    int  `gorm:"not null"`
	ReviewText string
	ClientID   uint  `gorm:"index"`
	SalonID    *uint `gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type AuditLog struct {
	ID           uint   `gorm:"primary_key"`
	AdminID      uint   `gorm:"index"`
	Admin        *User  `gorm:"foreignKey:AdminID"`
	Action       string `gorm:"not null;index"`
	ResourceType string `gorm:"not null;index"`
	ResourceID   string
	Details      JSONMap
	IPAddress    string
	UserAgent    string
	CreatedAt    time.Time `gorm:"index"`
}
