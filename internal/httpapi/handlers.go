package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"travel-booking/internal/auth"
	"travel-booking/internal/booking"
	"travel-booking/internal/store"
	"travel-booking/internal/token"
	"travel-booking/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	msgMissingCredentials = "User or password missing, or malformed request"
	msgBadCredentials     = "Bad Username or Password"
	msgUserExists         = "User already exists"
	msgInternal           = "Internal server error"
	msgWriteFailed        = "Booking could not be saved"

	// MsgBookForbidden and MsgCartForbidden are the only bodies a rejected
	// token, a foreign identity or an unknown user ever see.
	MsgBookForbidden = "Forbidden, you can't book for this user"
	MsgCartForbidden = "Forbidden, you don't have access to this cart"
)

type AuthService interface {
	Signup(ctx context.Context, tenant, username, password string, d store.Durability) (auth.UserRecord, error)
	Login(ctx context.Context, tenant, username, password string) (string, error)
	IssueToken(tenant, username string) (string, error)
}

type BookingService interface {
	RegisterFlights(ctx context.Context, caller auth.Caller, flights []store.Flight, d store.Durability) (booking.Registration, error)
	ListFlights(ctx context.Context, caller auth.Caller) ([]store.Booking, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth     AuthService
	Bookings BookingService

	// Durability applies to signup and to bookings that do not ask for a
	// level of their own.
	Durability store.Durability
}

// --- Users ---

type credentialsRequest struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

func bindCredentials(c *gin.Context) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.User == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, msgMissingCredentials, err)
		return credentialsRequest{}, false
	}
	return req, true
}

// Signup creates a user and returns a token for it.
func (h Handlers) Signup(c *gin.Context) {
	req, ok := bindCredentials(c)
	if !ok {
		return
	}
	tenant := c.Param("tenant")

	rec, err := h.Auth.Signup(c.Request.Context(), tenant, req.User, req.Password, h.Durability)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrConflict):
		fail(c, http.StatusConflict, msgUserExists, err)
		return
	case errors.Is(err, auth.ErrInvalidArgument):
		fail(c, http.StatusBadRequest, msgMissingCredentials, err)
		return
	default:
		fail(c, http.StatusInternalServerError, msgInternal, err)
		return
	}

	tok, err := h.Auth.IssueToken(tenant, rec.Username)
	if err != nil {
		fail(c, http.StatusInternalServerError, msgInternal, err)
		return
	}

	respond(c, http.StatusCreated,
		gin.H{"token": tok, "user": rec},
		narrate("insert", tenant, "users", rec.Username),
	)
}

// Login exchanges a username and password for a token.
func (h Handlers) Login(c *gin.Context) {
	req, ok := bindCredentials(c)
	if !ok {
		return
	}
	tenant := c.Param("tenant")

	tok, err := h.Auth.Login(c.Request.Context(), tenant, req.User, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrUnauthenticated):
		fail(c, http.StatusUnauthorized, msgBadCredentials, err)
		return
	case errors.Is(err, auth.ErrInvalidArgument):
		fail(c, http.StatusBadRequest, msgMissingCredentials, err)
		return
	default:
		fail(c, http.StatusInternalServerError, msgInternal, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"token": tok}, narrate("get", tenant, "users", req.User))
}

// --- Flights ---

type bookRequest struct {
	Flights []store.Flight `json:"flights"`
	// Durability is a level name or index; optional.
	Durability json.RawMessage `json:"durability,omitempty"`
}

func (h Handlers) durabilityFor(raw json.RawMessage) (store.Durability, error) {
	v := strings.TrimSpace(string(raw))
	if v == "" || v == "null" {
		return h.Durability, nil
	}
	return store.ParseDurability(strings.Trim(v, `"`))
}

// BookFlights appends flights to the caller's collection. Must run behind
// auth.RequireCaller.
func (h Handlers) BookFlights(c *gin.Context) {
	caller, ok := auth.CallerFrom(c.Request.Context())
	if !ok {
		fail(c, http.StatusForbidden, MsgBookForbidden, nil)
		return
	}

	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Malformed request body", err)
		return
	}
	if req.Flights == nil {
		fail(c, http.StatusBadRequest, "flights missing", nil)
		return
	}
	d, err := h.durabilityFor(req.Durability)
	if err != nil {
		fail(c, http.StatusBadRequest, "Unknown durability level", err)
		return
	}

	reg, err := h.Bookings.RegisterFlights(c.Request.Context(), caller, req.Flights, d)
	switch {
	case err == nil:
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, auth.ErrIdentityMismatch):
		fail(c, http.StatusForbidden, MsgBookForbidden, err)
		return
	case errors.Is(err, booking.ErrInvalidFlight):
		fail(c, http.StatusBadRequest, err.Error(), err)
		return
	case errors.Is(err, store.ErrInvalidDurability):
		fail(c, http.StatusBadRequest, "Unknown durability level", err)
		return
	case errors.Is(err, booking.ErrWriteFailed):
		fail(c, http.StatusInternalServerError, msgWriteFailed, err)
		return
	default:
		fail(c, http.StatusInternalServerError, msgInternal, err)
		return
	}

	ops := make([]string, 0, len(reg.Added)+1)
	for _, b := range reg.Added {
		ops = append(ops, narrate("insert", caller.Tenant(), "bookings", b.ID))
	}
	if len(reg.Added) > 0 {
		ops = append(ops, narrate("replace", caller.Tenant(), "users", caller.Username()))
	}
	respond(c, http.StatusOK, gin.H{"added": reg.Added}, ops...)
}

// ListFlights returns the caller's bookings. Must run behind
// auth.RequireCaller.
func (h Handlers) ListFlights(c *gin.Context) {
	caller, ok := auth.CallerFrom(c.Request.Context())
	if !ok {
		fail(c, http.StatusForbidden, MsgCartForbidden, nil)
		return
	}

	flights, err := h.Bookings.ListFlights(c.Request.Context(), caller)
	switch {
	case err == nil:
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, auth.ErrIdentityMismatch), errors.Is(err, token.ErrInvalidToken):
		fail(c, http.StatusForbidden, MsgCartForbidden, err)
		return
	default:
		fail(c, http.StatusInternalServerError, msgInternal, err)
		return
	}

	logger.FromGin(c).Debug("flights listed", "count", len(flights))
	respond(c, http.StatusOK, flights, narrate("get", caller.Tenant(), "users", caller.Username()))
}

// --- Misc ---

const indexPage = `<!DOCTYPE html>
<html>
<head><title>Travel booking API</title></head>
<body>
<h1>Travel booking API</h1>
<ul>
<li>POST /api/tenants/{tenant}/user/signup</li>
<li>POST /api/tenants/{tenant}/user/login</li>
<li>GET, PUT /api/tenants/{tenant}/user/{username}/flights</li>
</ul>
</body>
</html>
`

func Index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexPage))
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
