package server

import (
	"net/http"
	"strconv"

	"github.com/malabook/mala/server/consts"
	"github.com/malabook/mala/server/internal/api"
	"github.com/malabook/mala/server/internal/cache"
	"github.com/malabook/mala/server/internal/models"
)

func (s *Server) analyticsGeneralGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	ctx := r.Context()

	var totalOrders int64
	if err := s.db.WithContext(ctx).Model(&models.Appointment{}).Count(&totalOrders).Error; err != nil {
		return nil, err
	}
	var totalSales float64
	if err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Select("COALESCE(SUM(amount), 0)").Scan(&totalSales).Error; err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"total_orders":  totalOrders,
		"total_sales":   totalSales,
		"total_revenue": totalSales * 0.8,
		"total_profit":  totalSales * 0.2,
	}, nil
}

func (s *Server) analyticsVisitorsGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	return map[string]interface{}{
		"series":     []int{45, 52, 38, 24, 33, 26, 21},
		"categories": []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"},
	}, nil
}

func (s *Server) analyticsCustomersGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	ctx := r.Context()

	key := cache.Key("analytics", "customers")
	var cached map[string]float64
	if cache.GetJSON(ctx, s.cache, key, &cached) {
		return cached, nil
	}

	var totalCustomers int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Joins("JOIN roles ON roles.id = users.role_id").
		Where("roles.name = ?", consts.UserTypeCustomer).
		Count(&totalCustomers).Error; err != nil {
		return nil, err
	}

	resp := map[string]float64{
		"total_customers":     float64(totalCustomers),
		"new_customers":       float64(totalCustomers) * 0.8,
		"returning_customers": float64(totalCustomers) * 0.2,
	}
	cache.SetJSON(ctx, s.cache, key, resp, cache.AnalyticsTTL)
	return resp, nil
}

func (s *Server) analyticsCampaignsGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	return []map[string]interface{}{
		{"date": "08-11-2016", "click": 786, "cost": 485, "ctr": "45.3%", "arpu": "6.7%", "ecpi": "8.56", "roi": "10:55", "revenue": "33.8%"},
		{"date": "15-10-2016", "click": 786, "cost": 523, "ctr": "78.3%", "arpu": "6.6%", "ecpi": "7.56", "roi": "4:30", "revenue": "76.8%"},
		{"date": "08-08-2017", "click": 624, "cost": 436, "ctr": "78.3%", "arpu": "6.4%", "ecpi": "9.45", "roi": "9:05", "revenue": "8.63%"},
		{"date": "11-12-2017", "click": 423, "cost": 123, "ctr": "78.6%", "arpu": "45.6%", "ecpi": "6.85", "roi": "7:45", "revenue": "33.8%"},
	}, nil
}

func (s *Server) analyticsAppointmentsGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	if _, err := s.currentUser(r); err != nil {
		return nil, err
	}
	ctx := r.Context()

	var rows []struct {
		Status string
		Count  int64
	}
	if err := s.db.WithContext(ctx).Model(&models.Appointment{}).
		Select("status, COUNT(appointment_id) AS count").
		Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	result := map[string]int64{}
	for _, row := range rows {
		result[row.Status] = row.Count
	}
	return api.SuccessResponse("Appointments by status retrieved successfully", result), nil
}

func (s *Server) analyticsPopularServicesGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	if _, err := s.currentUser(r); err != nil {
		return nil, err
	}
	ctx := r.Context()

	limit := 10
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}

	var rows []struct {
		ServiceID    uint   `json:"service_id"`
		Name         string `json:"name"`
		BookingCount int64  `json:"booking_count"`
	}
	if err := s.db.WithContext(ctx).Model(&models.Service{}).
		Select("services.service_id, services.name, COUNT(appointments.appointment_id) AS booking_count").
		Joins("JOIN appointments ON services.service_id = appointments.service_id").
		Group("services.service_id, services.name").
		Order("booking_count DESC").
		Limit(limit).Scan(&rows).Error; err != nil {
		return nil, err
	}

	return api.SuccessResponse("Popular services retrieved successfully", rows), nil
}

func (s *Server) analyticsMessagesGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	if _, err := s.currentUser(r); err != nil {
		return nil, err
	}
	ctx := r.Context()

	var rows []struct {
		AppointmentID uint  `json:"appointment_id"`
		MessageCount  int64 `json:"message_count"`
	}
	if err := s.db.WithContext(ctx).Model(&models.Appointment{}).
		Select("appointments.appointment_id, COUNT(messages.id) AS message_count").
		Joins("JOIN messages ON appointments.appointment_id = messages.appointment_id").
		Group("appointments.appointment_id").Scan(&rows).Error; err != nil {
		return nil, err
	}

	return api.SuccessResponse("Message counts per appointment retrieved successfully", rows), nil
}

func (s *Server) analyticsRevenueGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	if _, err := s.currentUser(r); err != nil {
		return nil, err
	}
	ctx := r.Context()

	var totalRevenue float64
	if err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("payment_status = ?", "completed").
		Scan(&totalRevenue).Error; err != nil {
		return nil, err
	}

	var byMethod []struct {
		Method  string  `json:"method"`
		Revenue float64 `json:"revenue"`
	}
	if err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Select("payment_method AS method, SUM(amount) AS revenue").
		Where("payment_status = ?", "completed").
		Group("payment_method").Scan(&byMethod).Error; err != nil {
		return nil, err
	}

	var monthly []struct {
		Month   int     `json:"month"`
		Year    int     `json:"year"`
		Revenue float64 `json:"revenue"`
	}
	if err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Select("CAST(strftime('%m', created_at) AS INTEGER) AS month, CAST(strftime('%Y', created_at) AS INTEGER) AS year, SUM(amount) AS revenue").
		Where("payment_status = ?", "completed").
		Group("month, year").Order("year, month").Scan(&monthly).Error; err != nil {
		return nil, err
	}

	result := map[string]interface{}{
		"total_revenue":     totalRevenue,
		"revenue_by_method": byMethod,
		"monthly_revenue":   monthly,
	}
	return api.SuccessResponse("Revenue analytics retrieved successfully", result), nil
}

// adminAnalyticsGetHandler aggregates the dashboard totals shown on the
// admin home screen.
func (s *Server) adminAnalyticsGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	ctx := r.Context()

	counts := map[string]interface{}{}
	for name, model := range map[string]interface{}{
		"total_users":        &models.User{},
		"total_profiles":     &models.Profile{},
		"total_services":     &models.Service{},
		"total_appointments": &models.Appointment{},
		"total_messages":     &models.Message{},
		"total_salons":       &models.Salon{},
	} {
		var count int64
		if err := s.db.WithContext(ctx).Model(model).Count(&count).Error; err != nil {
			return nil, err
		}
		counts[name] = count
	}
	for name, userType := range map[string]string{
		"total_customers":   consts.UserTypeCustomer,
		"total_vendors":     consts.UserTypeVendor,
		"total_admins":      consts.UserTypeAdmin,
		"total_freelancers": consts.UserTypeFreelance,
	} {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Profile{}).
			Where("user_type = ?", userType).Count(&count).Error; err != nil {
			return nil, err
		}
		counts[name] = count
	}
	for name, status := range map[string]string{
		"total_active_salons":   consts.SalonActive,
		"total_inactive_salons": consts.SalonInactive,
	} {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Salon{}).
			Where("status = ?", status).Count(&count).Error; err != nil {
			return nil, err
		}
		counts[name] = count
	}

	var byCity []struct {
		City  string `json:"city"`
		Total int64  `json:"total"`
	}
	if err := s.db.WithContext(ctx).Model(&models.Salon{}).
		Select("city, COUNT(salon_id) AS total").
		Group("city").Scan(&byCity).Error; err != nil {
		return nil, err
	}
	counts["salons_by_location"] = byCity

	var popular []struct {
		ServiceName        string `json:"service_name"`
		AppointmentsBooked int64  `json:"appointments_booked"`
	}
	if err := s.db.WithContext(ctx).Model(&models.Service{}).
		Select("services.name AS service_name, COUNT(appointments.appointment_id) AS appointments_booked").
		Joins("JOIN appointments ON services.service_id = appointments.service_id").
		Group("services.name").
		Order("appointments_booked DESC").
		Limit(5).Scan(&popular).Error; err != nil {
		return nil, err
	}
	counts["popular_services"] = popular

	var byStatus []struct {
		Status string `json:"status"`
		Total  int64  `json:"total"`
	}
	if err := s.db.WithContext(ctx).Model(&models.Appointment{}).
		Select("status, COUNT(appointment_id) AS total").
		Group("status").Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	counts["appointments_by_status"] = byStatus

	var perAppointment []struct {
		AppointmentID uint  `json:"appointment_id"`
		TotalMessages int64 `json:"total_messages"`
	}
	if err := s.db.WithContext(ctx).Model(&models.Message{}).
		Select("appointment_id, COUNT(id) AS total_messages").
		Group("appointment_id").Scan(&perAppointment).Error; err != nil {
		return nil, err
	}
	counts["messages_per_appointment"] = perAppointment

	return counts, nil
}
