package list_appointments

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/m04kA/AppointmentService/internal/domain"
	"github.com/m04kA/AppointmentService/internal/service/appointments/models"
)

const maxLimit = 500

// ToServiceRequest разбирает query параметры from, to (YYYY-MM-DD), status (через запятую или повтором) и limit
func ToServiceRequest(query url.Values) (*models.ListRequest, error) {
	req := &models.ListRequest{}

	if v := query.Get("from"); v != "" {
		from, err := time.Parse(domain.DateFormat, v)
		if err != nil {
			return nil, err
		}
		req.From = &from
	}

	if v := query.Get("to"); v != "" {
		to, err := time.Parse(domain.DateFormat, v)
		if err != nil {
			return nil, err
		}
		req.To = &to
	}

	for _, raw := range query["status"] {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				req.Statuses = append(req.Statuses, s)
			}
		}
	}

	if v := query.Get("limit"); v != "" {
		limit, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, err
		}
		req.Limit = limit
	}
	if req.Limit == 0 || req.Limit > maxLimit {
		req.Limit = maxLimit
	}

	return req, nil
}
