package schemas

import (
	"fmt"
	"strings"
	"time"

	"github.com/malabook/mala/server/internal/models"
)

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func FromUser(m models.User) User {
	u := User{
		UserID:     m.UserID,
		KeycloakID: m.KeycloakID,
		Email:      m.Email,
		Username:   m.Username,
		FirstName:  m.FirstName,
		LastName:   m.LastName,
	}
	if m.Role != nil {
		u.Role = m.Role.Name
	}
	return u
}

func FromUsers(ms []models.User) []User {
	users := make([]User, len(ms))
	for i, m := range ms {
		users[i] = FromUser(m)
	}
	return users
}

func FromProfile(m models.Profile) Profile {
	p := Profile{
		KeycloakID:     m.KeycloakID,
		FirstName:      m.FirstName,
		LastName:       m.LastName,
		Email:          m.Email,
		PhoneNumber:    m.PhoneNumber,
		Address:        m.Address,
		Bio:            m.Bio,
		AvatarURL:      m.AvatarURL,
		Status:         m.Status,
		UserType:       m.UserType,
		AdditionalData: m.AdditionalData,
		CreatedAt:      timePtr(m.CreatedAt),
		UpdatedAt:      timePtr(m.UpdatedAt),
	}
	if m.UserID != nil {
		p.UserID = *m.UserID
	}
	return p
}

func FromProfiles(ms []models.Profile) []Profile {
	profiles := make([]Profile, len(ms))
	for i, m := range ms {
		profiles[i] = FromProfile(m)
	}
	return profiles
}

func FromService(m models.Service) Service {
	return Service{
		ServiceID:   m.ServiceID,
		Name:        m.Name,
		Description: m.Description,
		Duration:    m.Duration,
		Price:       m.Price,
		SalonID:     m.SalonID,
		CreatedAt:   timePtr(m.CreatedAt),
		UpdatedAt:   timePtr(m.UpdatedAt),
	}
}

func FromServices(ms []models.Service) []Service {
	services := make([]Service, len(ms))
	for i, m := range ms {
		services[i] = FromService(m)
	}
	return services
}

func FromStaff(m models.Staff) Staff {
	return Staff{
		StaffID:     m.StaffID,
		UserID:      m.UserID,
		SalonID:     m.SalonID,
		FirstName:   m.FirstName,
		LastName:    m.LastName,
		Email:       m.Email,
		PhoneNumber: m.PhoneNumber,
		Role:        m.Role,
	}
}

func FromStaffList(ms []models.Staff) []Staff {
	staff := make([]Staff, len(ms))
	for i, m := range ms {
		staff[i] = FromStaff(m)
	}
	return staff
}

func FromAppointment(m models.Appointment) Appointment {
	return Appointment{
		AppointmentID:   m.AppointmentID,
		AppointmentTime: m.AppointmentTime,
		Duration:        m.Duration,
		Notes:           m.Notes,
		ClientID:        m.ClientID,
		ServiceID:       m.ServiceID,
		StaffID:         m.StaffID,
		ReminderTime:    m.ReminderTime,
		Status:          m.Status,
	}
}

func FromAppointments(ms []models.Appointment) []Appointment {
	appointments := make([]Appointment, len(ms))
	for i, m := range ms {
		appointments[i] = FromAppointment(m)
	}
	return appointments
}

func FromPayment(m models.Payment) Payment {
	return Payment{
		PaymentID:     m.PaymentID,
		AppointmentID: m.AppointmentID,
		Amount:        m.Amount,
		PaymentMethod: m.PaymentMethod,
		PaymentStatus: m.PaymentStatus,
		TransactionID: m.TransactionID,
	}
}

func FromPayments(ms []models.Payment) []Payment {
	payments := make([]Payment, len(ms))
	for i, m := range ms {
		payments[i] = FromPayment(m)
	}
	return payments
}

func FromMessage(m models.Message) Message {
	return Message{
		ID:            m.ID,
		SenderID:      m.SenderID,
		ReceiverID:    m.ReceiverID,
		AppointmentID: m.AppointmentID,
		MessageText:   m.MessageText,
		SentTime:      m.SentTime,
	}
}

func FromMessages(ms []models.Message) []Message {
	messages := make([]Message, len(ms))
	for i, m := range ms {
		messages[i] = FromMessage(m)
	}
	return messages
}

// FromSalon converts the model with its preloaded relations. is_open
// is evaluated against now, in the server's local time.
func FromSalon(m models.Salon, now time.Time) Salon {
	s := Salon{
		SalonID:          m.SalonID,
		Name:             m.Name,
		Description:      m.Description,
		ImageURL:         m.ImageURL,
		Street:           m.Street,
		City:             m.City,
		State:            m.State,
		ZipCode:          m.ZipCode,
		Country:          m.Country,
		Latitude:         m.Latitude,
		Longitude:        m.Longitude,
		PhoneNumber:      m.PhoneNumber,
		Website:          m.Website,
		SocialMediaLinks: m.SocialMediaLinks,
		Status:           m.Status,
		OpeningHours:     m.OpeningHours,
		IsOpen:           SalonOpenAt(m.OpeningHours, now),
		CreatedAt:        timePtr(m.CreatedAt),
		UpdatedAt:        timePtr(m.UpdatedAt),
	}
	if m.Owner != nil {
		s.Owner = &SalonOwner{
			UserID:    m.Owner.UserID,
			Email:     m.Owner.Email,
			FirstName: m.Owner.FirstName,
			LastName:  m.Owner.LastName,
		}
	}
	for _, service := range m.Services {
		s.Services = append(s.Services, SalonService{
			ServiceID: service.ServiceID,
			Name:      service.Name,
			Price:     service.Price,
			Duration:  service.Duration,
		})
	}
	for _, review := range m.Reviews {
		s.Reviews = append(s.Reviews, SalonReview{
			ReviewID: review.ReviewID,
			Rating:   review.Ratings,
			Comment:  review.ReviewText,
		})
	}
	for _, member := range m.Staff {
		s.Staff = append(s.Staff, SalonStaff{
			StaffID:   member.StaffID,
			FirstName: member.FirstName,
			LastName:  member.LastName,
			Role:      member.Role,
			Email:     member.Email,
		})
	}
	return s
}

func FromSalons(ms []models.Salon, now time.Time) []Salon {
	salons := make([]Salon, len(ms))
	for i, m := range ms {
		salons[i] = FromSalon(m, now)
	}
	return salons
}

// SalonOpenAt evaluates opening hours at t. Entries are keyed by
// weekday name and hold either "HH:MM-HH:MM" or
// {"open": "HH:MM", "close": "HH:MM"}; missing, "closed" or unparsable
// entries mean closed.
func SalonOpenAt(hours map[string]interface{}, t time.Time) bool {
	if len(hours) == 0 {
		return false
	}
	entry, ok := dayEntry(hours, t.Weekday())
	if !ok {
		return false
	}

	var openStr, closeStr string
	switch v := entry.(type) {
	case string:
		if strings.EqualFold(strings.TrimSpace(v), "closed") {
			return false
		}
		parts := strings.SplitN(v, "-", 2)
		if len(parts) != 2 {
			return false
		}
		openStr, closeStr = parts[0], parts[1]
	case map[string]interface{}:
		openStr, _ = v["open"].(string)
		closeStr, _ = v["close"].(string)
	default:
		return false
	}

	opensAt, ok := minutesOfDay(openStr)
	if !ok {
		return false
	}
	closesAt, ok := minutesOfDay(closeStr)
	if !ok {
		return false
	}
	now := t.Hour()*60 + t.Minute()
	if closesAt < opensAt {
		// Past-midnight closing, e.g. 18:00-02:00.
		return now >= opensAt || now < closesAt
	}
	return now >= opensAt && now < closesAt
}

func dayEntry(hours map[string]interface{}, day time.Weekday) (interface{}, bool) {
	name := strings.ToLower(day.String())
	for key, value := range hours {
		k := strings.ToLower(strings.TrimSpace(key))
		if k == name || (len(k) == 3 && strings.HasPrefix(name, k)) {
			return value, true
		}
	}
	return nil, false
}

func minutesOfDay(s string) (int, bool) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil {
		return 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
