package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		name      string
		expr      string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "last days start at midnight",
			expr:      "last7d",
			wantStart: time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
			wantEnd:   testNow,
		},
		{
			name:      "last hours are rolling",
			expr:      "last12h",
			wantStart: testNow.Add(-12 * time.Hour),
			wantEnd:   testNow,
		},
		{
			name:      "single month covers whole month",
			expr:      "2023-10",
			wantStart: time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond),
		},
		{
			name:      "single year",
			expr:      "2023",
			wantStart: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond),
		},
		{
			name:      "explicit bounds include end day",
			expr:      "2023-10-01~2023-12-31",
			wantStart: time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond),
		},
		{
			name:      "open ended",
			expr:      "2023-10-01~",
			wantStart: time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "case and whitespace",
			expr:      "  LAST1D ",
			wantStart: time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
			wantEnd:   testNow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseTimeRange(tt.expr, testNow)
			require.NoError(t, err)
			require.NotNil(t, r)
			assert.True(t, tt.wantStart.Equal(r.Start), "start %v", r.Start)
			assert.True(t, tt.wantEnd.Equal(r.End), "end %v", r.End)
		})
	}
}

func TestParseTimeRange_Empty(t *testing.T) {
	r, err := ParseTimeRange("", testNow)
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.True(t, r.Contains(testNow))
}

func TestParseTimeRange_Invalid(t *testing.T) {
	for _, expr := range []string{"yesterday", "last0d", "2023-13", "2024-01~2023-01"} {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseTimeRange(expr, testNow)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))
		})
	}
}

func TestTimeRange_Contains(t *testing.T) {
	r, err := ParseTimeRange("2023-10~2023-12", testNow)
	require.NoError(t, err)

	assert.True(t, r.Contains(time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, r.Contains(time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2023, 9, 30, 23, 59, 59, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}
