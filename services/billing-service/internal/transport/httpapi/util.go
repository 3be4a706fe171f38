package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/app/errmap"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/identity"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
)

const (
	headerPrincipalID   = "X-Principal-ID"
	headerPrincipalRole = "X-Principal-Role"
	headerTenantID      = "X-Tenant-ID"
	headerRenterID      = "X-Renter-ID"

	maxBodyBytes = 1 << 20
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code              string   `json:"code"`
	Message           string   `json:"message"`
	Reasons           []string `json:"reasons,omitempty"`
	RetryAfterSeconds int      `json:"retry_after_seconds,omitempty"`
}

var httpStatus = map[codes.Code]int{
	codes.InvalidArgument:    http.StatusBadRequest,
	codes.Unauthenticated:    http.StatusUnauthorized,
	codes.PermissionDenied:   http.StatusForbidden,
	codes.NotFound:           http.StatusNotFound,
	codes.AlreadyExists:      http.StatusConflict,
	codes.FailedPrecondition: http.StatusConflict,
	codes.ResourceExhausted:  http.StatusTooManyRequests,
	codes.DeadlineExceeded:   http.StatusGatewayTimeout,
	codes.Canceled:           http.StatusRequestTimeout,
}

// writeError sends the sanitized form of err and logs the full chain.
func (r *Router) writeError(w http.ResponseWriter, req *http.Request, err error) {
	st := errmap.Map(err)
	code, ok := httpStatus[st.Code()]
	if !ok {
		code = http.StatusInternalServerError
	}

	body := errorBody{Error: errorDetail{
		Code:    st.Code().String(),
		Message: st.Message(),
		Reasons: errmap.Reasons(err),
	}}
	if d, ok := errmap.RetryAfter(err); ok {
		secs := int(math.Ceil(d.Seconds()))
		body.Error.RetryAfterSeconds = secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", code),
		zap.Error(err),
	}
	if code >= http.StatusInternalServerError {
		r.logger.Error("request failed", fields...)
	} else {
		r.logger.Info("request rejected", fields...)
	}
	writeJSON(w, code, body)
}

// badRequest reports malformed input. msg must not echo raw input back.
func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Code: codes.InvalidArgument.String(), Message: msg}})
}

// principalFrom reads the caller identity set by the trusted front application.
func principalFrom(req *http.Request) (identity.Principal, error) {
	id, err := uuid.Parse(req.Header.Get(headerPrincipalID))
	if err != nil {
		return identity.Principal{}, fmt.Errorf("%w: bad %s header", identity.ErrInvalidPrincipal, headerPrincipalID)
	}
	role, err := identity.ParseRole(req.Header.Get(headerPrincipalRole))
	if err != nil {
		return identity.Principal{}, err
	}
	p := identity.Principal{ID: id, Role: role}
	if raw := req.Header.Get(headerTenantID); raw != "" {
		tenant, err := uuid.Parse(raw)
		if err != nil {
			return identity.Principal{}, fmt.Errorf("%w: bad %s header", identity.ErrInvalidPrincipal, headerTenantID)
		}
		p.TenantID = &tenant
	}
	if raw := req.Header.Get(headerRenterID); raw != "" {
		renter, err := uuid.Parse(raw)
		if err != nil {
			return identity.Principal{}, fmt.Errorf("%w: bad %s header", identity.ErrInvalidPrincipal, headerRenterID)
		}
		p.RenterID = &renter
	}
	if err := p.Validate(); err != nil {
		return identity.Principal{}, err
	}
	return p, nil
}

var errEmptyBody = errors.New("empty body")

func readBodyJSON(w http.ResponseWriter, req *http.Request, out any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errEmptyBody
	}
	return json.Unmarshal(body, out)
}

func pathID(req *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(req.PathValue(name))
	return id, err == nil
}

// parseTime accepts RFC 3339 timestamps or plain dates, which are taken as
// midnight in loc.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(time.DateOnly, s, loc)
}

func parseOptionalTime(s string, loc *time.Location) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseTime(s, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseOptionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseInt(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
