package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimeStringFromString(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeString
		wantErr bool
	}{
		{in: "09:30", want: "09:30"},
		{in: "9:30", want: "09:30"},
		{in: "23:59", want: "23:59"},
		{in: "24:00", want: "24:00"},
		{in: "24:01", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "+9:30", wantErr: true},
		{in: "0930", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NewTimeStringFromString(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTimeString)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeString_AddMinutes(t *testing.T) {
	got, err := MustTimeString("17:30").AddMinutes(30)
	require.NoError(t, err)
	assert.Equal(t, TimeString("18:00"), got)

	_, err = MustTimeString("23:30").AddMinutes(60)
	assert.ErrorIs(t, err, ErrTimeOverflow)
}

func TestTimeString_Compare(t *testing.T) {
	assert.True(t, MustTimeString("09:00").IsBefore("09:30"))
	assert.False(t, MustTimeString("09:30").IsBefore("09:30"))
	assert.True(t, MustTimeString("11:00").IsAfter("10:59"))
}

func TestTimeString_Scan(t *testing.T) {
	var ts TimeString
	require.NoError(t, ts.Scan("10:00:00"))
	assert.Equal(t, TimeString("10:00"), ts)

	require.NoError(t, ts.Scan([]byte("8:15")))
	assert.Equal(t, TimeString("08:15"), ts)

	assert.Error(t, ts.Scan(42))
}

func TestTimeString_On(t *testing.T) {
	loc := time.FixedZone("EET", 2*3600)
	date := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	got := MustTimeString("10:45").On(date, loc)
	assert.Equal(t, time.Date(2024, 6, 10, 10, 45, 0, 0, loc), got)
}
