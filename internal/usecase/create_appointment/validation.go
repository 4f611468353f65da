package create_appointment

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/m04kA/AppointmentService/internal/domain"
	"github.com/m04kA/AppointmentService/pkg/types"
)

var timePattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

// validatedRequest нормализованные данные после успешной валидации
type validatedRequest struct {
	date time.Time
	time types.TimeString
}

// validateRequest проверяет все поля и возвращает *ValidationError со списком всех ошибок
func validateRequest(req *Request) (*validatedRequest, error) {
	verr := &ValidationError{}
	out := &validatedRequest{}

	if req.ServiceID <= 0 {
		verr.add("serviceId", "must be a positive number")
	}

	if req.Date == "" {
		verr.add("appointmentDate", "is required")
	} else if date, err := time.Parse(domain.DateFormat, req.Date); err != nil {
		verr.add("appointmentDate", "must be a date in YYYY-MM-DD format")
	} else {
		out.date = date
	}

	if req.Time == "" {
		verr.add("appointmentTime", "is required")
	} else if !timePattern.MatchString(req.Time) {
		verr.add("appointmentTime", "must be a time in HH:MM format")
	} else if t, err := types.NewTimeStringFromString(req.Time); err != nil {
		verr.add("appointmentTime", "must be a time in HH:MM format")
	} else {
		out.time = t
	}

	validateClient(verr, &req.Client)

	if !req.TermsAccepted {
		verr.add("termsAccepted", "must be accepted")
	}

	if err := verr.orNil(); err != nil {
		return nil, err
	}
	return out, nil
}

func validateClient(verr *ValidationError, c *ClientInput) {
	name := strings.TrimSpace(c.Name)
	switch {
	case name == "":
		verr.add("clientInfo.name", "is required")
	case utf8.RuneCountInString(name) > domain.MaxNameLength:
		verr.add("clientInfo.name", "is too long")
	}

	email := strings.TrimSpace(c.Email)
	switch {
	case email == "":
		verr.add("clientInfo.email", "is required")
	case len(email) > domain.MaxEmailLength:
		verr.add("clientInfo.email", "is too long")
	default:
		if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
			verr.add("clientInfo.email", "must be a valid email address")
		}
	}

	phone := strings.TrimSpace(c.Phone)
	switch {
	case phone == "":
		verr.add("clientInfo.phone", "is required")
	case len(phone) > domain.MaxPhoneLength:
		verr.add("clientInfo.phone", "is too long")
	}

	if c.Age != nil && (*c.Age < domain.MinClientAge || *c.Age > domain.MaxClientAge) {
		verr.add("clientInfo.age", "is out of range")
	}

	if c.Gender != nil && utf8.RuneCountInString(*c.Gender) > domain.MaxGenderLength {
		verr.add("clientInfo.gender", "is too long")
	}

	if c.Problem != nil && utf8.RuneCountInString(*c.Problem) > domain.MaxProblemLength {
		verr.add("clientInfo.problem", "is too long")
	}

	if c.ReferralSource != nil && utf8.RuneCountInString(*c.ReferralSource) > domain.MaxReferralSourceLength {
		verr.add("clientInfo.referralSource", "is too long")
	}
}
