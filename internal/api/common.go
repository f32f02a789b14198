package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/golang/gddo/httputil/header"

	"github.com/malabook/mala/server/internal/log"
)

type Error struct {
	Status int
	Err    error
	Msg    string
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Status)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Router struct {
	*http.ServeMux
	middleware []Middleware
}

type Middleware func(http.Handler) http.Handler

func NewRouter(middleware ...Middleware) *Router {
	return &Router{ServeMux: http.NewServeMux(), middleware: middleware}
}

func (r *Router) AddHandler(method string, pattern string, handler func(http.ResponseWriter, *http.Request) (interface{}, error)) {
	r.HandleFunc(fmt.Sprintf("%s %s", method, pattern), JSONResponseHandler(handler))
}

// Handler returns the mux wrapped in the router's middleware chain,
// outermost first.
func (r *Router) Handler() http.Handler {
	var h http.Handler = r.ServeMux
	for i := len(r.middleware) - 1; i >= 0; i-- {
		h = r.middleware[i](h)
	}
	return h
}

func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}, allowUnknown bool) error {
	// From https://www.alexedwards.net/blog/how-to-properly-parse-a-json-request-body
	if r.Header.Get("Content-Type") != "" {
		value, _ := header.ParseValueAndParams(r.Header, "Content-Type")
		msg := "Content-Type header is not application/json"
		if value != "application/json" {
			return &Error{Status: http.StatusUnsupportedMediaType, Msg: msg}
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1*1024*1024)

	dec := json.NewDecoder(r.Body)
	if !allowUnknown {
		dec.DisallowUnknownFields()
	}

	err := dec.Decode(&dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError

		switch {
		case errors.As(err, &syntaxError):
			msg := fmt.Sprintf("Request body contains badly-formed JSON (at position %d)", syntaxError.Offset)
			return &Error{Status: http.StatusBadRequest, Msg: msg}

		case errors.Is(err, io.ErrUnexpectedEOF):
			msg := "Request body contains badly-formed JSON"
			return &Error{Status: http.StatusBadRequest, Msg: msg}

		case errors.As(err, &unmarshalTypeError):
			msg := fmt.Sprintf("Request body contains an invalid value for the %q field (at position %d)", unmarshalTypeError.Field, unmarshalTypeError.Offset)
			return &Error{Status: http.StatusBadRequest, Msg: msg}

		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			msg := fmt.Sprintf("Request body contains unknown field %s", fieldName)
			return &Error{Status: http.StatusBadRequest, Msg: msg}

		case errors.Is(err, io.EOF):
			msg := "Request body must not be empty"
			return &Error{Status: http.StatusBadRequest, Msg: msg}

		case err.Error() == "http: request body too large":
			msg := "Request body must not be larger than 1MB"
			return &Error{Status: http.StatusRequestEntityTooLarge, Msg: msg}

		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		msg := "Request body must only contain a single JSON object"
		return &Error{Status: http.StatusBadRequest, Msg: msg}
	}

	return nil
}

func JSONResponseHandler(handler func(http.ResponseWriter, *http.Request) (interface{}, error)) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		status := 200
		var apiErr *Error

		body, err := handler(w, r)
		switch {
		case errors.As(err, &apiErr):
			status = apiErr.Status
			log.Warning(r.Context(), "API error", "err", apiErr.Error(), "status", status)
			writeErrorBody(w, status, apiErr.Error())
		case err != nil:
			status = http.StatusInternalServerError
			log.Error(r.Context(), "Unexpected API error", "err", err, "status", status)
			writeErrorBody(w, status, "")
		case body == nil:
			status = http.StatusNoContent
			w.WriteHeader(status)
		default:
			if rd, ok := body.(*Redirect); ok {
				status = rd.Status
				http.Redirect(w, r, rd.URL, status)
				break
			}
			if c, ok := body.(*Created); ok {
				status = http.StatusCreated
				body = c.Body
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(body)
		}

		log.Debug(r.Context(), "", "method", r.Method, "endpoint", r.URL.Path, "status", status)
	}
}

// Created marks a response body so the handler wrapper replies 201.
type Created struct {
	Body interface{}
}

// Redirect makes the handler wrapper reply with a Location redirect
// instead of a JSON body.
type Redirect struct {
	URL    string
	Status int
}

func writeErrorBody(w http.ResponseWriter, status int, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse(status, msg))
}
