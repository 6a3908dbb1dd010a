package session

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jakarta(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(DefaultTimezone)
	require.NoError(t, err)
	return loc
}

func TestDefaultGate(t *testing.T) {
	t.Parallel()

	g, err := NewGate("", jakarta(t))
	require.NoError(t, err)

	assert.Equal(t, []Window{{Start: 14 * 60, End: 28 * 60}}, g.Windows())

	tests := []struct {
		name string
		at   string
		want bool
	}{
		{"10:00 local", "2025-06-30T03:00:00Z", false},
		{"15:00 local", "2025-06-30T08:00:00Z", true},
		{"00:30 local", "2025-06-30T17:30:00Z", true},
		{"start inclusive", "2025-06-30T07:00:00Z", true},
		{"before start", "2025-06-30T06:59:00Z", false},
		{"last minute", "2025-06-30T20:59:00Z", true},
		{"end exclusive", "2025-06-30T21:00:00Z", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			at, err := time.Parse(time.RFC3339, tt.at)
			require.NoError(t, err)
			assert.Equal(t, tt.want, g.Contains(at))
		})
	}
}

func TestParseWindows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    []Window
		wantErr bool
	}{
		{"single", "09:00-10:30", []Window{{540, 630}}, false},
		{"wrap", "22:00-02:00", []Window{{1320, 1560}}, false},
		{"equal bounds wrap full day", "08:00-08:00", []Window{{480, 1920}}, false},
		{"spaces and empty parts", " 09:00 - 10:00 , ,", []Window{{540, 600}}, false},
		{"missing end", "09:00", nil, true},
		{"bad hour", "25:00-26:00", nil, true},
		{"bad minute", "09:75-10:00", nil, true},
		{"garbage", "nine-ten", nil, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseWindows(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMerge(t *testing.T) {
	t.Parallel()

	got := Merge([]Window{{1140, 1680}, {840, 1380}, {100, 200}, {200, 300}})
	assert.Equal(t, []Window{{100, 300}, {840, 1680}}, got)
	assert.Nil(t, Merge(nil))
}

func TestContainsEveryMinute(t *testing.T) {
	t.Parallel()

	raws := []string{
		"09:00-10:00,22:00-02:00",
		"14:00-23:00,19:00-04:00",
		"00:00-00:30",
		"23:30-00:15,06:00-07:00",
	}

	for _, raw := range raws {
		g, err := NewGate(raw, time.UTC)
		require.NoError(t, err)

		windows, err := ParseWindows(raw)
		require.NoError(t, err)

		day := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
		for m := 0; m < minutesPerDay; m++ {
			want := false
			for _, w := range windows {
				if (m >= w.Start && m < w.End) || (m+minutesPerDay >= w.Start && m+minutesPerDay < w.End) {
					want = true
				}
			}
			at := day.Add(time.Duration(m) * time.Minute)
			if !assert.Equal(t, want, g.Contains(at), "%s at %s", raw, clock(m)) {
				return
			}
		}
	}
}

func TestNewGateErrors(t *testing.T) {
	_, err := NewGate("bad", time.UTC)
	assert.Error(t, err)

	_, err = NewGate(" , ", time.UTC)
	assert.Error(t, err)
}

func TestSegmentAt(t *testing.T) {
	t.Parallel()

	loc := jakarta(t)
	tests := []struct {
		at   string
		want Segment
	}{
		{"2025-06-30T07:00:00Z", London},
		{"2025-06-30T11:59:00Z", London},
		{"2025-06-30T12:00:00Z", Overlap},
		{"2025-06-30T16:00:00Z", NYLate},
		{"2025-06-30T20:59:00Z", NYLate},
		{"2025-06-30T21:00:00Z", Out},
		{"2025-06-30T03:00:00Z", Out},
	}
	for _, tt := range tests {
		at, err := time.Parse(time.RFC3339, tt.at)
		require.NoError(t, err)
		assert.Equal(t, tt.want, SegmentAt(at, loc), tt.at)
	}
}
