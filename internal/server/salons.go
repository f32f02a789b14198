package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/malabook/mala/server/internal/api"
	"github.com/malabook/mala/server/internal/cache"
	"github.com/malabook/mala/server/internal/log"
	"github.com/malabook/mala/server/internal/models"
	"github.com/malabook/mala/server/internal/schemas"
	"github.com/malabook/mala/server/internal/storage"
)

func (s *Server) salonsPostHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	var body schemas.SalonCreate
	if err := api.DecodeJSONBody(w, r, &body, true); err != nil {
		return nil, err
	}
	ctx := r.Context()

	salon := models.Salon{
		Name:             body.Name,
		Description:      body.Description,
		ImageURL:         body.ImageURL,
		OwnerID:          body.OwnerID,
		Street:           body.Street,
		City:             body.City,
		State:            body.State,
		ZipCode:          body.ZipCode,
		Country:          body.Country,
		Latitude:         body.Latitude,
		Longitude:        body.Longitude,
		PhoneNumber:      body.PhoneNumber,
		Website:          body.Website,
		SocialMediaLinks: models.JSONMap(body.SocialMediaLinks),
		Status:           body.Status,
		OpeningHours:     models.JSONMap(body.OpeningHours),
	}
	if err := s.db.WithContext(ctx).Create(&salon).Error; err != nil {
		return nil, err
	}
	s.invalidate(ctx, "salons")
	log.Info(ctx, "Salon created", "salon_id", salon.SalonID, "name", salon.Name)

	resp := schemas.FromSalon(salon, time.Now())
	return &resp, nil
}

func (s *Server) salonsGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	ctx := r.Context()
	skip, limit := pagination(r, defaultPageSize)

	key := cache.ListKey("salons", skip, limit)
	var cached []schemas.Salon
	if cache.GetJSON(ctx, s.cache, key, &cached) {
		return cached, nil
	}

	var salons []models.Salon
	if err := s.db.WithContext(ctx).
		Preload("Owner").Preload("Services").Preload("Reviews").Preload("Staff").
		Offset(skip).Limit(limit).Find(&salons).Error; err != nil {
		return nil, err
	}
	if len(salons) == 0 {
		log.Warning(ctx, "No salons found")
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "No salons found"}
	}

	resp := schemas.FromSalons(salons, time.Now())
	cache.SetJSON(ctx, s.cache, key, resp, cache.SalonsTTL)
	return resp, nil
}

func (s *Server) salonGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	salonID, err := pathUint(r, "salon_id")
	if err != nil {
		return nil, err
	}
	var salon models.Salon
	if err := s.db.WithContext(r.Context()).
		Preload("Owner").Preload("Services").Preload("Reviews").Preload("Staff").
		First(&salon, salonID).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "Salon not found"}
	}
	resp := schemas.FromSalon(salon, time.Now())
	return &resp, nil
}

func (s *Server) salonPutHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	salonID, err := pathUint(r, "salon_id")
	if err != nil {
		return nil, err
	}
	var body schemas.SalonUpdate
	if err := api.DecodeJSONBody(w, r, &body, true); err != nil {
		return nil, err
	}
	ctx := r.Context()

	var salon models.Salon
	if err := s.db.WithContext(ctx).First(&salon, salonID).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "Salon was not found"}
	}

	updates := map[string]interface{}{}
	if body.Name != nil {
		updates["name"] = *body.Name
	}
	if body.Description != nil {
		updates["description"] = *body.Description
	}
	if body.ImageURL != nil {
		updates["image_url"] = *body.ImageURL
	}
	if body.Street != nil {
		updates["street"] = *body.Street
	}
	if body.City != nil {
		updates["city"] = *body.City
	}
	if body.State != nil {
		updates["state"] = *body.State
	}
	if body.ZipCode != nil {
		updates["zip_code"] = *body.ZipCode
	}
	if body.Country != nil {
		updates["country"] = *body.Country
	}
	if body.PhoneNumber != nil {
		updates["phone_number"] = *body.PhoneNumber
	}
	if body.Website != nil {
		updates["website"] = *body.Website
	}
	if body.SocialMediaLinks != nil {
		updates["social_media_links"] = models.JSONMap(body.SocialMediaLinks)
	}
	if body.Status != nil {
		updates["status"] = *body.Status
	}
	if body.OpeningHours != nil {
		updates["opening_hours"] = models.JSONMap(body.OpeningHours)
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&salon).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	s.invalidate(ctx, "salons")

	if err := s.db.WithContext(ctx).First(&salon, salonID).Error; err != nil {
		return nil, err
	}
	resp := schemas.FromSalon(salon, time.Now())
	return &resp, nil
}

func (s *Server) salonDeleteHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	salonID, err := pathUint(r, "salon_id")
	if err != nil {
		return nil, err
	}
	ctx := r.Context()

	var salon models.Salon
	if err := s.db.WithContext(ctx).First(&salon, salonID).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "Salon was not found"}
	}
	if err := s.db.WithContext(ctx).Delete(&salon).Error; err != nil {
		return nil, err
	}
	// Stored images are cleaned up best effort, the record is already gone.
	if err := s.store.DeletePrefix(ctx, fmt.Sprintf("marketplace/salons/%d/", salonID)); err != nil {
		log.Warning(ctx, "Failed to remove salon images", "salon_id", salonID, "err", err)
	}
	s.invalidate(ctx, "salons")
	log.Info(ctx, "Salon deleted", "salon_id", salonID)

	return map[string]string{"message": "Salon was succesfully deleted"}, nil
}

func (s *Server) salonImagePostHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	salonID, err := pathUint(r, "salon_id")
	if err != nil {
		return nil, err
	}
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = "cover"
	}
	if kind != "cover" && kind != "gallery" {
		return nil, &api.Error{Status: http.StatusBadRequest, Msg: "Invalid image kind. Must be one of: cover, gallery"}
	}
	ctx := r.Context()

	var salon models.Salon
	if err := s.db.WithContext(ctx).First(&salon, salonID).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "Salon not found"}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, &api.Error{Status: http.StatusUnprocessableEntity, Msg: "No file provided for upload"}
	}
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(io.LimitReader(file, storage.MaxSalonImageSize+1))
	if err != nil {
		return nil, err
	}
	ext, mime, err := storage.ValidateImage(header.Filename, data, storage.MaxSalonImageSize)
	if err != nil {
		return nil, &api.Error{Status: http.StatusBadRequest, Err: err}
	}

	key := storage.SalonCoverKey(salonID, ext)
	if kind == "gallery" {
		key = storage.SalonGalleryKey(salonID, time.Now().Unix(), ext)
	}
	fileURL, err := s.store.Upload(ctx, key, data, mime)
	if err != nil {
		log.Error(ctx, "Salon image upload failed", "salon_id", salonID, "err", err)
		return nil, &api.Error{Status: http.StatusInternalServerError, Msg: "Failed to upload salon image to storage"}
	}

	if kind == "cover" {
		if err := s.db.WithContext(ctx).Model(&salon).Update("image_url", fileURL).Error; err != nil {
			return nil, err
		}
	}
	s.invalidate(ctx, "salons")
	log.Info(ctx, "Salon image uploaded", "salon_id", salonID, "kind", kind)

	return &schemas.SalonImageUploadResponse{
		Message:    "Salon image uploaded successfully",
		FileURL:    fileURL,
		Kind:       kind,
		SalonID:    salonID,
		UploadedAt: time.Now(),
	}, nil
}
