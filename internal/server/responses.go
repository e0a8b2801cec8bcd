package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
	"github.com/simonvc/ledgerbook/internal/ledger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func fail(w http.ResponseWriter, err error) {
	writeError(w, mapError(err), err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func mapError(err error) int {
	switch {
	case errors.Is(err, ledger.ErrConfiguration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound),
		errors.Is(err, ledger.ErrCalibrationNotFound),
		errors.Is(err, ledger.ErrIssueNotFound),
		errors.Is(err, ledger.ErrPlanNotFound),
		errors.Is(err, ledger.ErrPeriodNotFound),
		errors.Is(err, ledger.ErrRateNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrDuplicateAccount),
		errors.Is(err, ledger.ErrCurrencyLocked),
		errors.Is(err, ledger.ErrPlanNotActive):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidAccountID),
		errors.Is(err, ledger.ErrInvalidAccountClass),
		errors.Is(err, ledger.ErrInvalidAccountType),
		errors.Is(err, ledger.ErrClassTypeMismatch),
		errors.Is(err, ledger.ErrInvalidCurrency),
		errors.Is(err, ledger.ErrCurrencyRequired),
		errors.Is(err, ledger.ErrParentCycle),
		errors.Is(err, ledger.ErrGroupAccount),
		errors.Is(err, ledger.ErrInactiveAccount),
		errors.Is(err, ledger.ErrSameAccount),
		errors.Is(err, ledger.ErrNegativeAmount),
		errors.Is(err, ledger.ErrCrossCurrencyAmount),
		errors.Is(err, ledger.ErrMissingDate),
		errors.Is(err, ledger.ErrInvalidNature),
		errors.Is(err, ledger.ErrInvalidSource),
		errors.Is(err, ledger.ErrInvalidIssueStatus),
		errors.Is(err, ledger.ErrInvalidRate),
		errors.Is(err, ledger.ErrInvalidPlanType),
		errors.Is(err, ledger.ErrInvalidPeriodType),
		errors.Is(err, ledger.ErrInvalidFilterMode),
		errors.Is(err, ledger.ErrMissingCategory),
		errors.Is(err, ledger.ErrNegativeLimit),
		errors.Is(err, ledger.ErrSoftAboveHard),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrTreeCycle):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func pathID(r *http.Request) string {
	id, _ := url.PathUnescape(chi.URLParam(r, "id"))
	return id
}

// queryTime parses an RFC3339 query parameter; missing yields the zero time.
func queryTime(r *http.Request, key string) (time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", errBadRequest, key, err)
	}
	return t, nil
}

// queryDate parses a YYYY-MM-DD query parameter; missing yields def.
func queryDate(r *http.Request, key string, def civil.Date) (civil.Date, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	d, err := civil.ParseDate(v)
	if err != nil {
		return civil.Date{}, fmt.Errorf("%w: %s: %v", errBadRequest, key, err)
	}
	return d, nil
}

func queryBool(r *http.Request, key string, def bool) bool {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}
