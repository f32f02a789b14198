package schemas

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malabook/mala/server/internal/models"
)

// 2026-01-05 is a Monday.
func mondayAt(hour, min int) time.Time {
	return time.Date(2026, time.January, 5, hour, min, 0, 0, time.UTC)
}

func TestSalonOpenAt(t *testing.T) {
	rangeHours := map[string]interface{}{"monday": "09:00-18:00"}
	assert.True(t, SalonOpenAt(rangeHours, mondayAt(10, 30)))
	assert.False(t, SalonOpenAt(rangeHours, mondayAt(8, 59)))
	assert.False(t, SalonOpenAt(rangeHours, mondayAt(18, 0)))

	objectHours := map[string]interface{}{
		"mon": map[string]interface{}{"open": "09:00", "close": "17:00"},
	}
	assert.True(t, SalonOpenAt(objectHours, mondayAt(16, 59)))
	assert.False(t, SalonOpenAt(objectHours, mondayAt(17, 0)))

	// Closing after midnight.
	lateHours := map[string]interface{}{"monday": "18:00-02:00"}
	assert.True(t, SalonOpenAt(lateHours, mondayAt(23, 30)))
	assert.True(t, SalonOpenAt(lateHours, mondayAt(1, 30)))
	assert.False(t, SalonOpenAt(lateHours, mondayAt(12, 0)))

	assert.False(t, SalonOpenAt(map[string]interface{}{"monday": "closed"}, mondayAt(12, 0)))
	assert.False(t, SalonOpenAt(map[string]interface{}{"tuesday": "09:00-18:00"}, mondayAt(12, 0)))
	assert.False(t, SalonOpenAt(nil, mondayAt(12, 0)))
	assert.False(t, SalonOpenAt(map[string]interface{}{"monday": "garbage"}, mondayAt(12, 0)))
}

func TestFromSalon(t *testing.T) {
	ownerID := uint(3)
	m := models.Salon{
		SalonID:      7,
		Name:         "Glow Studio",
		City:         "Amsterdam",
		OwnerID:      ownerID,
		Owner:        &models.User{UserID: ownerID, Email: "owner@example.com", FirstName: "Mona", LastName: "Khan"},
		Status:       "ACTIVE",
		OpeningHours: models.JSONMap{"monday": "09:00-18:00"},
		Services: []models.Service{
			{ServiceID: 1, Name: "Henna", Price: 25, Duration: 30},
		},
		Reviews: []models.Review{
			{ReviewID: 9, Ratings: 5, ReviewText: "Great"},
		},
		Staff: []models.Staff{
			{StaffID: 4, FirstName: "Rita", LastName: "Miller", Role: "stylist", Email: "rita@example.com"},
		},
		CreatedAt: mondayAt(9, 0),
	}

	s := FromSalon(m, mondayAt(10, 0))
	assert.Equal(t, uint(7), s.SalonID)
	assert.True(t, s.IsOpen)
	require.NotNil(t, s.Owner)
	assert.Equal(t, "owner@example.com", s.Owner.Email)
	require.Len(t, s.Services, 1)
	assert.Equal(t, "Henna", s.Services[0].Name)
	require.Len(t, s.Reviews, 1)
	assert.Equal(t, 5, s.Reviews[0].Rating)
	require.Len(t, s.Staff, 1)
	assert.Equal(t, "stylist", s.Staff[0].Role)
	require.NotNil(t, s.CreatedAt)

	s = FromSalon(m, mondayAt(20, 0))
	assert.False(t, s.IsOpen)
}

func TestFromUser(t *testing.T) {
	m := models.User{
		UserID:     1,
		KeycloakID: "kc-1",
		Username:   "rita",
		Email:      "rita@example.com",
		FirstName:  "Rita",
		LastName:   "Miller",
		Role:       &models.Role{Name: "CUSTOMER"},
	}
	u := FromUser(m)
	assert.Equal(t, "CUSTOMER", u.Role)
	assert.Equal(t, "rita", u.Username)

	m.Role = nil
	assert.Empty(t, FromUser(m).Role)
}

func TestFromProfile(t *testing.T) {
	userID := uint(5)
	m := models.Profile{
		ProfileID:  2,
		UserID:     &userID,
		KeycloakID: "kc-5",
		UserType:   "VENDOR",
		FirstName:  "Mona",
		LastName:   "Khan",
		Email:      "mona@example.com",
		Status:     "ACTIVE",
	}
	p := FromProfile(m)
	assert.Equal(t, uint(5), p.UserID)
	assert.Equal(t, "VENDOR", p.UserType)

	m.UserID = nil
	assert.Zero(t, FromProfile(m).UserID)
}

func TestFromAppointment(t *testing.T) {
	staffID := uint(4)
	at := mondayAt(14, 0)
	m := models.Appointment{
		AppointmentID:   11,
		AppointmentTime: at,
		Duration:        45,
		ClientID:        1,
		ServiceID:       2,
		StaffID:         &staffID,
		Status:          "pending",
	}
	a := FromAppointment(m)
	assert.Equal(t, uint(11), a.AppointmentID)
	assert.Equal(t, at, a.AppointmentTime)
	require.NotNil(t, a.StaffID)
	assert.Equal(t, staffID, *a.StaffID)
	assert.Nil(t, a.ReminderTime)
}
