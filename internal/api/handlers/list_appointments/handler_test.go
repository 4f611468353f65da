package list_appointments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/AppointmentService/internal/service/appointments"
	"github.com/m04kA/AppointmentService/internal/service/appointments/models"
	"github.com/m04kA/AppointmentService/pkg/logger"
)

type fakeService struct {
	got *models.ListRequest
	err error
}

func (f *fakeService) List(_ context.Context, req *models.ListRequest) (*models.AppointmentListResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.AppointmentListResponse{Appointments: []models.AppointmentResponse{}}, nil
}

func serve(svc AppointmentService, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	NewHandler(svc, logger.NewNop()).Handle(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestToServiceRequest(t *testing.T) {
	query := url.Values{
		"from":   {"2025-03-10"},
		"to":     {"2025-03-14"},
		"status": {"new,confirmed", "waiting"},
		"limit":  {"20"},
	}

	req, err := ToServiceRequest(query)
	require.NoError(t, err)

	require.NotNil(t, req.From)
	require.NotNil(t, req.To)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), *req.From)
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), *req.To)
	assert.Equal(t, []string{"new", "confirmed", "waiting"}, req.Statuses)
	assert.Equal(t, uint64(20), req.Limit)
}

func TestToServiceRequest_DefaultsAndErrors(t *testing.T) {
	req, err := ToServiceRequest(url.Values{})
	require.NoError(t, err)
	assert.Nil(t, req.From)
	assert.Empty(t, req.Statuses)
	assert.Equal(t, uint64(maxLimit), req.Limit)

	_, err = ToServiceRequest(url.Values{"from": {"10.03.2025"}})
	assert.Error(t, err)

	_, err = ToServiceRequest(url.Values{"limit": {"-1"}})
	assert.Error(t, err)
}

func TestHandle(t *testing.T) {
	svc := &fakeService{}
	rec := serve(svc, "/api/v1/appointments?from=2025-03-10&status=new")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"appointments":[]}`, rec.Body.String())
	assert.Equal(t, []string{"new"}, svc.got.Statuses)

	assert.Equal(t, http.StatusBadRequest, serve(&fakeService{}, "/api/v1/appointments?to=tomorrow").Code)
	assert.Equal(t, http.StatusBadRequest, serve(&fakeService{err: appointments.ErrInvalidInput}, "/api/v1/appointments?status=archived").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(&fakeService{err: appointments.ErrInternal}, "/api/v1/appointments").Code)
}
