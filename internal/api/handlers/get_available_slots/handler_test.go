package get_available_slots

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	getAvailableSlots "github.com/m04kA/AppointmentService/internal/usecase/get_available_slots"
	"github.com/m04kA/AppointmentService/pkg/logger"
	"github.com/m04kA/AppointmentService/pkg/types"
)

type fakeUseCase struct {
	got  *getAvailableSlots.Request
	resp *getAvailableSlots.Response
	err  error
}

func (f *fakeUseCase) Execute(_ context.Context, req *getAvailableSlots.Request) (*getAvailableSlots.Response, error) {
	f.got = req
	return f.resp, f.err
}

func serve(uc GetAvailableSlotsUseCase, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	NewHandler(uc, logger.NewNop()).Handle(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandle_Success(t *testing.T) {
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	uc := &fakeUseCase{resp: &getAvailableSlots.Response{
		Date:            date,
		ServiceID:       7,
		DurationMinutes: 60,
		Slots: []getAvailableSlots.Slot{
			{Time: types.MustTimeString("09:00"), Available: true},
			{Time: types.MustTimeString("09:30"), Available: false},
		},
	}}

	rec := serve(uc, "/api/v1/available-slots?serviceId=7&date=2025-03-10")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, int64(7), uc.got.ServiceID)
	assert.Equal(t, date, uc.got.Date)

	var body AvailableSlotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2025-03-10", body.Date)
	assert.Equal(t, []AvailableSlot{{Time: "09:00", Available: true}, {Time: "09:30", Available: false}}, body.Slots)
}

func TestHandle_ClosedDayReturnsEmptyList(t *testing.T) {
	uc := &fakeUseCase{resp: &getAvailableSlots.Response{
		Date:   time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC),
		Closed: true,
	}}

	rec := serve(uc, "/api/v1/available-slots?serviceId=7&date=2025-03-08")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"date":"2025-03-08","serviceId":0,"durationMinutes":0,"closed":true,"slots":[]}`, rec.Body.String())
}

func TestHandle_Errors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		code   int
	}{
		{"missing service", "/api/v1/available-slots?date=2025-03-10", nil, http.StatusBadRequest},
		{"bad service", "/api/v1/available-slots?serviceId=abc&date=2025-03-10", nil, http.StatusBadRequest},
		{"zero service", "/api/v1/available-slots?serviceId=0&date=2025-03-10", nil, http.StatusBadRequest},
		{"missing date", "/api/v1/available-slots?serviceId=7", nil, http.StatusBadRequest},
		{"bad date", "/api/v1/available-slots?serviceId=7&date=10.03.2025", nil, http.StatusBadRequest},
		{"service unavailable", "/api/v1/available-slots?serviceId=7&date=2025-03-10",
			fmt.Errorf("%w: not bookable", getAvailableSlots.ErrServiceUnavailable), http.StatusNotFound},
		{"past date", "/api/v1/available-slots?serviceId=7&date=2025-03-01", getAvailableSlots.ErrInvalidDate, http.StatusBadRequest},
		{"internal", "/api/v1/available-slots?serviceId=7&date=2025-03-10", getAvailableSlots.ErrInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(&fakeUseCase{err: tt.err}, tt.target)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}
