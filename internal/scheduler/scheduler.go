package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/malabook/mala/server/consts"
	"github.com/malabook/mala/server/internal/auth"
	"github.com/malabook/mala/server/internal/cache"
	"github.com/malabook/mala/server/internal/gerrors"
	"github.com/malabook/mala/server/internal/log"
	"github.com/malabook/mala/server/internal/metrics"
	"github.com/malabook/mala/server/internal/models"
	"github.com/malabook/mala/server/internal/schemas"
)

const (
	reminderWindow      = 24 * time.Hour
	idleProfileAge      = 180 * 24 * time.Hour
	auditRetention      = 365 * 24 * time.Hour
	warmListLimit       = 10
	metricsSlowDefault  = 2 * time.Second
	metricsSummaryEvery = "*/5 * * * *"
)

// Scheduler owns the periodic maintenance jobs. Jobs run on the cron
// goroutine one at a time per schedule and log their outcome.
type Scheduler struct {
	cron      *cron.Cron
	db        *gorm.DB
	cache     cache.Cache
	verifier  *auth.Verifier
	collector *metrics.Collector
	slow      time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

func New(db *gorm.DB, c cache.Cache, verifier *auth.Verifier, collector *metrics.Collector, slowThreshold time.Duration) *Scheduler {
	if slowThreshold <= 0 {
		slowThreshold = metricsSlowDefault
	}
	return &Scheduler{
		cron:      cron.New(),
		db:        db,
		cache:     c,
		verifier:  verifier,
		collector: collector,
		slow:      slowThreshold,
	}
}

// Start registers all jobs and launches the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	jobs := []struct {
		spec string
		name string
		run  func(context.Context) error
	}{
		{"0 */6 * * *", "cleanup-expired-sessions", s.CleanupExpiredSessions},
		{"0 * * * *", "appointment-reminders", s.SendAppointmentReminders},
		{"15 * * * *", "expire-stale-appointments", s.ExpireStaleAppointments},
		{"0 2 * * *", "deactivate-idle-profiles", s.DeactivateIdleProfiles},
		{"*/30 * * * *", "refresh-hot-caches", s.RefreshHotCaches},
		{"0 1 * * *", "daily-analytics-report", s.DailyAnalyticsReport},
		{"0 3 1 * *", "purge-audit-logs", s.PurgeOldAuditLogs},
	}
	for _, job := range jobs {
		if err := s.register(job.spec, job.name, job.run); err != nil {
			return err
		}
	}
	if s.collector != nil {
		if err := s.register(metricsSummaryEvery, "metrics-summary", func(ctx context.Context) error {
			s.collector.LogSummary(ctx, s.slow)
			return nil
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	log.Info(s.ctx, "Scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
	log.Info(context.Background(), "Scheduler stopped")
}

func (s *Scheduler) register(spec, name string, run func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx := s.ctx
		start := time.Now()
		log.Debug(ctx, "Job started", "job", name)
		if err := run(ctx); err != nil {
			log.Error(ctx, "Job failed", "job", name, "err", err)
			return
		}
		log.Debug(ctx, "Job finished", "job", name, "duration", time.Since(start).String())
	})
	if err != nil {
		return gerrors.Wrapf(err, "register job %s", name)
	}
	return nil
}

// CleanupExpiredSessions sweeps expired entries out of the verified
// claims cache.
func (s *Scheduler) CleanupExpiredSessions(ctx context.Context) error {
	removed := s.verifier.SweepExpired()
	log.Info(ctx, "Cleaned up expired sessions",
		"removed", removed, "remaining", s.verifier.CachedClaims())
	return nil
}

// SendAppointmentReminders marks confirmed appointments inside the
// reminder window. Marking reminder_time keeps the hourly run from
// re-notifying the same appointment.
func (s *Scheduler) SendAppointmentReminders(ctx context.Context) error {
	now := time.Now()
	var due []models.Appointment
	err := s.db.WithContext(ctx).
		Where("status = ?", consts.AppointmentConfirmed).
		Where("appointment_time BETWEEN ? AND ?", now, now.Add(reminderWindow)).
		Where("reminder_time IS NULL").
		Find(&due).Error
	if err != nil {
		return gerrors.Wrap(err)
	}
	if len(due) == 0 {
		return nil
	}

	ids := make([]uint, len(due))
	for i, appointment := range due {
		ids[i] = appointment.AppointmentID
		log.Info(ctx, "Appointment reminder",
			"appointment_id", appointment.AppointmentID,
			"client_id", appointment.ClientID,
			"at", appointment.AppointmentTime.Format(time.RFC3339))
	}
	err = s.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("appointment_id IN ?", ids).
		Update("reminder_time", now).Error
	if err != nil {
		return gerrors.Wrap(err)
	}
	s.cache.DeletePrefix(ctx, "appointments:")
	return nil
}

// ExpireStaleAppointments completes pending or confirmed appointments
// whose time has passed.
func (s *Scheduler) ExpireStaleAppointments(ctx context.Context) error {
	result := s.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("status IN ?", []string{consts.AppointmentPending, consts.AppointmentConfirmed}).
		Where("appointment_time < ?", time.Now()).
		Update("status", consts.AppointmentCompleted)
	if result.Error != nil {
		return gerrors.Wrap(result.Error)
	}
	if result.RowsAffected > 0 {
		log.Info(ctx, "Expired stale appointments", "count", result.RowsAffected)
		s.cache.DeletePrefix(ctx, "appointments:")
	}
	return nil
}

// DeactivateIdleProfiles flags ACTIVE profiles untouched for 180 days.
func (s *Scheduler) DeactivateIdleProfiles(ctx context.Context) error {
	cutoff := time.Now().Add(-idleProfileAge)
	result := s.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("status = ?", consts.ProfileActive).
		Where("updated_at < ?", cutoff).
		Update("status", consts.ProfileInactive)
	if result.Error != nil {
		return gerrors.Wrap(result.Error)
	}
	if result.RowsAffected > 0 {
		log.Info(ctx, "Deactivated idle profiles", "count", result.RowsAffected)
		s.cache.DeletePrefix(ctx, "profiles:")
	}
	return nil
}

// RefreshHotCaches re-primes the first page of the services and salons
// lists so peak-hour readers hit warm entries.
func (s *Scheduler) RefreshHotCaches(ctx context.Context) error {
	var services []models.Service
	if err := s.db.WithContext(ctx).Order("service_id").Limit(warmListLimit).Find(&services).Error; err != nil {
		return gerrors.Wrap(err)
	}
	if len(services) > 0 {
		cache.SetJSON(ctx, s.cache, cache.ListKey("services", 0, warmListLimit),
			schemas.FromServices(services), cache.ServicesTTL)
	}

	var salons []models.Salon
	err := s.db.WithContext(ctx).
		Preload("Owner").Preload("Services").Preload("Reviews").Preload("Staff").
		Order("salon_id").Limit(warmListLimit).Find(&salons).Error
	if err != nil {
		return gerrors.Wrap(err)
	}
	if len(salons) > 0 {
		cache.SetJSON(ctx, s.cache, cache.ListKey("salons", 0, warmListLimit),
			schemas.FromSalons(salons, time.Now()), cache.SalonsTTL)
	}

	log.Debug(ctx, "Refreshed hot caches", "services", len(services), "salons", len(salons))
	return nil
}

// DailyAnalyticsReport logs yesterday's headline numbers.
func (s *Scheduler) DailyAnalyticsReport(ctx context.Context) error {
	since := time.Now().Add(-24 * time.Hour)

	var newUsers, newAppointments int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("created_at >= ?", since).Count(&newUsers).Error; err != nil {
		return gerrors.Wrap(err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("created_at >= ?", since).Count(&newAppointments).Error; err != nil {
		return gerrors.Wrap(err)
	}

	var revenue float64
	err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("payment_status = ?", "completed").
		Where("created_at >= ?", since).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&revenue).Error
	if err != nil {
		return gerrors.Wrap(err)
	}

	log.Info(ctx, "Daily analytics",
		"new_users", newUsers,
		"new_appointments", newAppointments,
		"revenue", revenue)
	return nil
}

// PurgeOldAuditLogs deletes audit entries older than the retention
// window.
func (s *Scheduler) PurgeOldAuditLogs(ctx context.Context) error {
	cutoff := time.Now().Add(-auditRetention)
	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.AuditLog{})
	if result.Error != nil {
		return gerrors.Wrap(result.Error)
	}
	if result.RowsAffected > 0 {
		log.Info(ctx, "Purged old audit logs", "count", result.RowsAffected)
	}
	return nil
}
