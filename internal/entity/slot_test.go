package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewSlot проверяет нормализацию даты и времени
func TestNewSlot(t *testing.T) {
	tests := []struct {
		name    string
		date    string
		clock   string
		want    Slot
		wantErr bool
	}{
		{name: "canonical", date: "2024-05-10", clock: "18:00", want: Slot{Date: "2024-05-10", Time: "18:00"}},
		{name: "single digit hour", date: "2024-05-10", clock: "9:00", want: Slot{Date: "2024-05-10", Time: "09:00"}},
		{name: "surrounding spaces", date: " 2024-05-10 ", clock: " 07:30", want: Slot{Date: "2024-05-10", Time: "07:30"}},
		{name: "bad date", date: "10/05/2024", clock: "18:00", wantErr: true},
		{name: "bad time", date: "2024-05-10", clock: "25:00", wantErr: true},
		{name: "missing minutes", date: "2024-05-10", clock: "18", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewSlot(tt.date, tt.clock)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSlotKeyRoundTrip(t *testing.T) {
	slot := Slot{Date: "2024-05-10", Time: "18:00"}
	assert.Equal(t, "2024-05-10|18:00", slot.Key())

	parsed, err := ParseSlotKey(slot.Key())
	require.NoError(t, err)
	assert.Equal(t, slot, parsed)

	_, err = ParseSlotKey("2024-05-10 18:00")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSlotStartsAt(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	start, err := Slot{Date: "2024-05-10", Time: "18:00"}.StartsAt(loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 10, 17, 0, 0, 0, time.UTC), start.UTC())

	_, err = Slot{Date: "2024-05-10", Time: "late"}.StartsAt(loc)
	assert.ErrorIs(t, err, ErrTimeParse)
}

// TestHorizonContains проверяет окно бронирования [сегодня, сегодня+5]
func TestHorizonContains(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	h := Horizon{Days: 5, Location: loc}
	// 23:30 UTC is already the next day in CET
	now := time.Date(2024, 5, 9, 23, 30, 0, 0, time.UTC)

	assert.False(t, h.Contains("2024-05-09", now))
	assert.True(t, h.Contains("2024-05-10", now))
	assert.True(t, h.Contains("2024-05-15", now))
	assert.False(t, h.Contains("2024-05-16", now))
	assert.False(t, h.Contains("garbage", now))

	dates := h.Dates(now)
	require.Len(t, dates, 6)
	assert.Equal(t, "2024-05-10", dates[0])
	assert.Equal(t, "2024-05-15", dates[5])
}

func TestScheduleNormalize(t *testing.T) {
	s := Schedule{"2024-05-10": {"18:00", "9:00", "09:00"}, "2024-05-11": {}}

	norm, err := s.Normalize()
	require.NoError(t, err)
	assert.Equal(t, Schedule{"2024-05-10": {"09:00", "18:00"}}, norm)
	assert.True(t, norm.Has(Slot{Date: "2024-05-10", Time: "09:00"}))
	assert.False(t, norm.Has(Slot{Date: "2024-05-11", Time: "09:00"}))

	_, err = Schedule{"2024-05-10": {"noon"}}.Normalize()
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestScheduleRangeExpand(t *testing.T) {
	s := Schedule{}
	err := ScheduleRange{From: "2024-05-10", To: "2024-05-12", Times: []string{"18:00", "19:00"}}.Expand(s)
	require.NoError(t, err)
	assert.Len(t, s, 3)
	assert.Equal(t, []string{"18:00", "19:00"}, s["2024-05-11"])

	err = ScheduleRange{From: "2024-05-12", To: "2024-05-10", Times: []string{"18:00"}}.Expand(Schedule{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestScheduleScan(t *testing.T) {
	var s Schedule
	require.NoError(t, s.Scan([]byte(`{"2024-05-10":["18:00"]}`)))
	assert.Equal(t, Schedule{"2024-05-10": {"18:00"}}, s)

	require.NoError(t, s.Scan(nil))
	assert.Empty(t, s)

	assert.Error(t, s.Scan(42))
}

func TestDispatchPartialFailure(t *testing.T) {
	var err error = &DispatchPartialFailure{Sent: 2, Failed: 1}

	var pf *DispatchPartialFailure
	require.True(t, errors.As(err, &pf))
	assert.Equal(t, 1, pf.Failed)
	assert.Contains(t, err.Error(), "2 sent, 1 failed")
}
