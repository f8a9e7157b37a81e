package calendar

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	d, err := Parse(" 2024-05-01 ")
	require.NoError(t, err)
	assert.Equal(t, New(2024, time.May, 1), d)

	for _, raw := range []string{"", "2024-5-1", "2024/05/01", "2024-02-30", "tomorrow"} {
		_, err := Parse(raw)
		assert.True(t, errors.Is(err, ErrMalformed), "expected ErrMalformed for %q", raw)
	}
}

func TestTodayUsesReferenceLocation(t *testing.T) {
	now := time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC)
	tokyo := time.FixedZone("UTC+9", 9*60*60)

	assert.Equal(t, New(2024, time.May, 1), Today(now, nil))
	assert.Equal(t, New(2024, time.May, 2), Today(now, tokyo))
}

func TestWeekdayStartsMonday(t *testing.T) {
	// 2024-05-06 是周一
	monday := New(2024, time.May, 6)
	assert.Equal(t, 0, monday.Weekday())
	assert.Equal(t, 6, monday.AddDays(6).Weekday())
	assert.Equal(t, monday, monday.AddDays(2).StartOfWeek())
	assert.Equal(t, monday, monday.AddDays(6).StartOfWeek())
	assert.Equal(t, monday.AddDays(7), monday.AddDays(7).StartOfWeek())
}

func TestAddDaysCrossesMonthAndYear(t *testing.T) {
	assert.Equal(t, New(2024, time.March, 1), New(2024, time.February, 29).AddDays(1))
	assert.Equal(t, New(2023, time.December, 31), New(2024, time.January, 1).AddDays(-1))
}

func TestCompare(t *testing.T) {
	a := New(2024, time.May, 1)
	b := New(2024, time.May, 2)
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.Equal(t, 0, a.Compare(New(2024, time.May, 1)))
	assert.True(t, New(2023, time.December, 31).Before(a))
}

func TestScan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan("2024-05-01"))
	assert.Equal(t, New(2024, time.May, 1), d)

	require.NoError(t, d.Scan([]byte("2024-05-02 00:00:00+00:00")))
	assert.Equal(t, New(2024, time.May, 2), d)

	require.NoError(t, d.Scan(time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, New(2024, time.May, 3), d)

	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())

	assert.Error(t, d.Scan(42))
}

func TestValueAndJSON(t *testing.T) {
	d := New(2024, time.January, 9)
	v, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-09", v)

	raw, err := json.Marshal(map[string]Date{"date": d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-01-09"}`, string(raw))

	var decoded struct {
		Date Date `json:"date"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, d, decoded.Date)
}

func TestWindowAndWeek(t *testing.T) {
	today := New(2024, time.May, 8)

	window := Window(today, 14)
	require.Len(t, window, 14)
	assert.Equal(t, today, window[0])
	assert.Equal(t, today.AddDays(-13), window[13])
	assert.Nil(t, Window(today, 0))

	week := Week(today)
	require.Len(t, week, 7)
	assert.Equal(t, New(2024, time.May, 6), week[0])
	assert.Equal(t, New(2024, time.May, 12), week[6])
}
