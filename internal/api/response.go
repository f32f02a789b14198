package api

import (
	"encoding/json"
	"net/http"
)

// Response is the envelope used by admin, audit, analytics and error
// replies. Resource CRUD endpoints return their DTOs directly.
type Response struct {
	Status  string      `json:"status"`
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

func SuccessResponse(message string, data interface{}) *Response {
	return &Response{
		Status:  "success",
		Code:    http.StatusOK,
		Message: message,
		Data:    data,
	}
}

func ErrorResponse(status int, message string) *Response {
	return &Response{
		Status:  "error",
		Code:    status,
		Message: message,
	}
}

func ErrorResponseDetails(status int, message string, details interface{}) *Response {
	return &Response{
		Status:  "error",
		Code:    status,
		Message: message,
		Details: details,
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	_ = json.NewEncoder(w).Encode(v)
}
