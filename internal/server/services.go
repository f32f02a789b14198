package server

import (
	"net/http"

	"github.com/malabook/mala/server/internal/api"
	"github.com/malabook/mala/server/internal/cache"
	"github.com/malabook/mala/server/internal/log"
	"github.com/malabook/mala/server/internal/models"
	"github.com/malabook/mala/server/internal/schemas"
)

func (s *Server) servicesPostHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	var body schemas.ServiceCreate
	if err := api.DecodeJSONBody(w, r, &body, true); err != nil {
		return nil, err
	}
	ctx := r.Context()

	service := models.Service{
		Name:        body.Name,
		Description: body.Description,
		Duration:    body.Duration,
		Price:       body.Price,
		SalonID:     body.SalonID,
	}
	if err := s.db.WithContext(ctx).Create(&service).Error; err != nil {
		return nil, err
	}
	s.invalidate(ctx, "services")
	log.Info(ctx, "Service created", "service_id", service.ServiceID, "name", service.Name)

	resp := schemas.FromService(service)
	return &resp, nil
}

func (s *Server) servicesGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	ctx := r.Context()
	skip, limit := pagination(r, defaultPageSize)

	key := cache.ListKey("services", skip, limit)
	var cached []schemas.Service
	if cache.GetJSON(ctx, s.cache, key, &cached) {
		return cached, nil
	}

	var services []models.Service
	if err := s.db.WithContext(ctx).Offset(skip).Limit(limit).Find(&services).Error; err != nil {
		return nil, err
	}
	if len(services) == 0 {
		log.Warning(ctx, "No services found")
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "No Services Found"}
	}

	resp := schemas.FromServices(services)
	cache.SetJSON(ctx, s.cache, key, resp, cache.ServicesTTL)
	return resp, nil
}

func (s *Server) serviceGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	serviceID, err := pathUint(r, "service_id")
	if err != nil {
		return nil, err
	}
	var service models.Service
	if err := s.db.WithContext(r.Context()).First(&service, serviceID).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "Service not found"}
	}
	resp := schemas.FromService(service)
	return &resp, nil
}

func (s *Server) servicePutHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	serviceID, err := pathUint(r, "service_id")
	if err != nil {
		return nil, err
	}
	var body schemas.ServiceUpdate
	if err := api.DecodeJSONBody(w, r, &body, true); err != nil {
		return nil, err
	}
	ctx := r.Context()

	var service models.Service
	if err := s.db.WithContext(ctx).First(&service, serviceID).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "Service was not found"}
	}

	updates := map[string]interface{}{}
	if body.Name != nil {
		updates["name"] = *body.Name
	}
	if body.Description != nil {
		updates["description"] = *body.Description
	}
	if body.Duration != nil {
		updates["duration"] = *body.Duration
	}
	if body.Price != nil {
		updates["price"] = *body.Price
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&service).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	s.invalidate(ctx, "services")

	if err := s.db.WithContext(ctx).First(&service, serviceID).Error; err != nil {
		return nil, err
	}
	resp := schemas.FromService(service)
	return &resp, nil
}

func (s *Server) serviceDeleteHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	serviceID, err := pathUint(r, "service_id")
	if err != nil {
		return nil, err
	}
	ctx := r.Context()

	var service models.Service
	if err := s.db.WithContext(ctx).First(&service, serviceID).Error; err != nil {
		return nil, &api.Error{Status: http.StatusNotFound, Msg: "Service was not found"}
	}
	if err := s.db.WithContext(ctx).Delete(&service).Error; err != nil {
		return nil, err
	}
	s.invalidate(ctx, "services")
	log.Info(ctx, "Service deleted", "service_id", serviceID)

	return map[string]string{"message": "Service succesfully deleted"}, nil
}
