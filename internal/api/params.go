package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/abkawan/personal-banking/internal/errors"
)

const dateLayout = "2006-01-02"

// queryInt reads a non-negative integer parameter; anything else reads as zero
// so the service default applies.
func queryInt(r *http.Request, name string) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func pagination(r *http.Request) (limit, offset int) {
	return queryInt(r, "limit"), queryInt(r, "offset")
}

// dateRange reads ?start and ?end. A bare end date covers that whole day.
func (h *Handler) dateRange(r *http.Request) (time.Time, time.Time, error) {
	start, err := h.parseDate(r.URL.Query().Get("start"), false)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewValidationError("start", err.Error())
	}
	end, err := h.parseDate(r.URL.Query().Get("end"), true)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewValidationError("end", err.Error())
	}
	return start, end, nil
}

func (h *Handler) parseDate(raw string, endOfDay bool) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}

	day, err := time.ParseInLocation(dateLayout, raw, h.deps.Location)
	if err != nil {
		return time.Time{}, errInvalidDate
	}
	if endOfDay {
		return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return day, nil
}

var errInvalidDate = errors.New("dates must be RFC3339 or YYYY-MM-DD")
