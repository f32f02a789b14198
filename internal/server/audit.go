package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/malabook/mala/server/internal/api"
	"github.com/malabook/mala/server/internal/models"
)

// parseQueryTime accepts the timestamp formats clients commonly send in
// query strings, with or without a zone or time part.
func parseQueryTime(value string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (s *Server) auditLogsGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	if _, err := s.requireRoles(r, roleAdmin, roleSuperuser); err != nil {
		return nil, err
	}
	ctx := r.Context()
	skip, limit := pagination(r, adminDefaultPageSize)
	queryParams := r.URL.Query()

	query := s.db.WithContext(ctx).Model(&models.AuditLog{}).
		Joins("JOIN users ON audit_logs.admin_id = users.user_id")
	if action := queryParams.Get("action"); action != "" {
		query = query.Where("audit_logs.action = ?", strings.ToUpper(action))
	}
	if resourceType := queryParams.Get("resource_type"); resourceType != "" {
		query = query.Where("audit_logs.resource_type = ?", strings.ToUpper(resourceType))
	}
	if adminID, err := strconv.Atoi(queryParams.Get("admin_id")); err == nil {
		query = query.Where("audit_logs.admin_id = ?", adminID)
	}
	if start, ok := parseQueryTime(queryParams.Get("start_date")); ok {
		query = query.Where("audit_logs.created_at >= ?", start)
	}
	if end, ok := parseQueryTime(queryParams.Get("end_date")); ok {
		query = query.Where("audit_logs.created_at <= ?", end)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []struct {
		models.AuditLog
		Username  string
		Email     string
		FirstName string
		LastName  string
	}
	if err := query.
		Select("audit_logs.*, users.username, users.email, users.first_name, users.last_name").
		Order("audit_logs.created_at DESC").
		Offset(skip).Limit(limit).Scan(&rows).Error; err != nil {
		return nil, err
	}

	logs := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, map[string]interface{}{
			"id":            row.ID,
			"admin_id":      row.AdminID,
			"action":        row.Action,
			"resource_type": row.ResourceType,
			"resource_id":   row.ResourceID,
			"details":       row.Details,
			"ip_address":    row.IPAddress,
			"user_agent":    row.UserAgent,
			"created_at":    row.CreatedAt,
			"admin_info": map[string]interface{}{
				"username":   row.Username,
				"email":      row.Email,
				"first_name": row.FirstName,
				"last_name":  row.LastName,
			},
		})
	}

	return api.SuccessResponse("Audit logs retrieved successfully", map[string]interface{}{
		"logs":  logs,
		"total": total,
		"skip":  skip,
		"limit": limit,
	}), nil
}

func (s *Server) auditSummaryGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	if _, err := s.requireRoles(r, roleAdmin, roleSuperuser); err != nil {
		return nil, err
	}
	ctx := r.Context()

	days := 30
	if v, err := strconv.Atoi(r.URL.Query().Get("days")); err == nil {
		days = v
	}
	if days < 1 {
		days = 1
	}
	if days > 365 {
		days = 365
	}
	start := time.Now().AddDate(0, 0, -days)

	var actions []struct {
		Action string `json:"action"`
		Count  int64  `json:"count"`
	}
	if err := s.db.WithContext(ctx).Model(&models.AuditLog{}).
		Select("action, COUNT(id) AS count").
		Where("created_at >= ?", start).
		Group("action").Scan(&actions).Error; err != nil {
		return nil, err
	}

	var resources []struct {
		ResourceType string `json:"resource_type"`
		Count        int64  `json:"count"`
	}
	if err := s.db.WithContext(ctx).Model(&models.AuditLog{}).
		Select("resource_type, COUNT(id) AS count").
		Where("created_at >= ?", start).
		Group("resource_type").Scan(&resources).Error; err != nil {
		return nil, err
	}

	var adminRows []struct {
		AdminID       uint
		Username      string
		FirstName     string
		LastName      string
		ActivityCount int64
	}
	if err := s.db.WithContext(ctx).Model(&models.AuditLog{}).
		Select("audit_logs.admin_id, users.username, users.first_name, users.last_name, COUNT(audit_logs.id) AS activity_count").
		Joins("JOIN users ON audit_logs.admin_id = users.user_id").
		Where("audit_logs.created_at >= ?", start).
		Group("audit_logs.admin_id, users.username, users.first_name, users.last_name").
		Order("activity_count DESC").
		Limit(10).Scan(&adminRows).Error; err != nil {
		return nil, err
	}
	topAdmins := make([]map[string]interface{}, 0, len(adminRows))
	for _, row := range adminRows {
		topAdmins = append(topAdmins, map[string]interface{}{
			"admin_id":       row.AdminID,
			"username":       row.Username,
			"full_name":      row.FirstName + " " + row.LastName,
			"activity_count": row.ActivityCount,
		})
	}

	var daily []struct {
		Date  string `json:"date"`
		Count int64  `json:"count"`
	}
	if err := s.db.WithContext(ctx).Model(&models.AuditLog{}).
		Select("date(created_at) AS date, COUNT(id) AS count").
		Where("created_at >= ?", start).
		Group("date(created_at)").
		Order("date(created_at)").Scan(&daily).Error; err != nil {
		return nil, err
	}

	return api.SuccessResponse("Audit summary retrieved successfully", map[string]interface{}{
		"period_days":    days,
		"actions":        actions,
		"resources":      resources,
		"top_admins":     topAdmins,
		"daily_activity": daily,
	}), nil
}

func (s *Server) auditActionsGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	if _, err := s.requireRoles(r, roleAdmin, roleSuperuser); err != nil {
		return nil, err
	}
	ctx := r.Context()

	var actions []string
	if err := s.db.WithContext(ctx).Model(&models.AuditLog{}).
		Distinct().Pluck("action", &actions).Error; err != nil {
		return nil, err
	}
	var resourceTypes []string
	if err := s.db.WithContext(ctx).Model(&models.AuditLog{}).
		Distinct().Pluck("resource_type", &resourceTypes).Error; err != nil {
		return nil, err
	}

	nonEmpty := func(values []string) []string {
		out := make([]string, 0, len(values))
		for _, v := range values {
			if v != "" {
				out = append(out, v)
			}
		}
		return out
	}

	return api.SuccessResponse("Available audit filters retrieved successfully", map[string]interface{}{
		"actions":        nonEmpty(actions),
		"resource_types": nonEmpty(resourceTypes),
	}), nil
}
