package create_appointment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/AppointmentService/internal/api/handlers"
	createAppointment "github.com/m04kA/AppointmentService/internal/usecase/create_appointment"
	"github.com/m04kA/AppointmentService/pkg/logger"
	"github.com/m04kA/AppointmentService/pkg/types"
)

type fakeUseCase struct {
	got  *createAppointment.Request
	resp *createAppointment.Response
	err  error
}

func (f *fakeUseCase) Execute(_ context.Context, req *createAppointment.Request) (*createAppointment.Response, error) {
	f.got = req
	return f.resp, f.err
}

func serve(uc CreateAppointmentUseCase, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	NewHandler(uc, logger.NewNop()).Handle(rec, req)
	return rec
}

const validBody = `{
	"serviceId": 7,
	"appointmentDate": "2025-03-10",
	"appointmentTime": "10:00",
	"clientInfo": {"name": "Ana", "email": "ana@example.com", "phone": "+40700000000", "age": 34, "emailReminders": false},
	"termsAccepted": true
}`

func TestHandle_Created(t *testing.T) {
	id := uuid.MustParse("3f2c1a9e-5b7d-4c8e-9f10-1a2b3c4d5e6f")
	uc := &fakeUseCase{resp: &createAppointment.Response{
		ID:              id,
		ServiceID:       7,
		Date:            time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Time:            types.MustTimeString("10:00"),
		DurationMinutes: 60,
		Price:           250,
		Currency:        "RON",
		Status:          "new",
		ClientName:      "Ana",
		ClientEmail:     "ana@example.com",
		CreatedAt:       time.Date(2025, 3, 7, 15, 0, 0, 0, time.UTC),
	}}

	rec := serve(uc, validBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NotNil(t, uc.got)
	assert.Equal(t, "2025-03-10", uc.got.Date)
	assert.Equal(t, "10:00", uc.got.Time)
	assert.True(t, uc.got.TermsAccepted)
	require.NotNil(t, uc.got.Client.Age)
	assert.Equal(t, 34, *uc.got.Client.Age)
	require.NotNil(t, uc.got.Client.EmailReminders)
	assert.False(t, *uc.got.Client.EmailReminders)
	assert.Nil(t, uc.got.Client.SMSReminders)

	var body AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, id.String(), body.ID)
	assert.Equal(t, "new", body.Status)
	assert.Equal(t, "2025-03-07T15:00:00Z", body.CreatedAt)
}

func TestHandle_ValidationErrorListsFields(t *testing.T) {
	uc := &fakeUseCase{err: &createAppointment.ValidationError{Fields: []createAppointment.FieldError{
		{Field: "clientInfo.email", Message: "invalid email"},
		{Field: "termsAccepted", Message: "terms must be accepted"},
	}}}

	rec := serve(uc, validBody)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error   string                         `json:"error"`
		Details []createAppointment.FieldError `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, msgValidationFailed, body.Error)
	assert.Len(t, body.Details, 2)
	assert.Equal(t, "termsAccepted", body.Details[1].Field)
}

func TestHandle_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"slot taken", createAppointment.ErrSlotUnavailable, http.StatusConflict, msgSlotNotAvailable},
		{"service unavailable", createAppointment.ErrServiceUnavailable, http.StatusUnprocessableEntity, msgServiceNotAvailable},
		{"internal", createAppointment.ErrInternal, http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(&fakeUseCase{err: tt.err}, validBody)
			assert.Equal(t, tt.code, rec.Code)

			var body handlers.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.msg != "" {
				assert.Equal(t, tt.msg, body.Error)
			}
		})
	}
}

func TestHandle_InvalidBody(t *testing.T) {
	uc := &fakeUseCase{}

	for _, body := range []string{"", "{", `{"serviceId": "seven"}`} {
		rec := serve(uc, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Nil(t, uc.got)
}
