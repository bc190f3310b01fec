package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOfUsesLocation(t *testing.T) {
	taipei, err := time.LoadLocation("Asia/Taipei")
	require.NoError(t, err)

	// 23:30 UTC on Jan 9 is already Jan 10 in Taipei.
	instant := time.Date(2025, 1, 9, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, NewDate(2025, time.January, 9), DateOf(instant))
	assert.Equal(t, NewDate(2025, time.January, 10), DateOf(instant.In(taipei)))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-06-30")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2025, time.June, 30), d)

	_, err = ParseDate("30.06.2025")
	assert.Error(t, err)

	_, err = ParseDate("2025-13-01")
	assert.Error(t, err)
}

func TestAddDaysAcrossMonthEnd(t *testing.T) {
	d := NewDate(2025, time.January, 30)
	assert.Equal(t, NewDate(2025, time.February, 2), d.AddDays(3))
	assert.Equal(t, NewDate(2024, time.December, 31), d.AddDays(-30))
}

func TestSub(t *testing.T) {
	a := NewDate(2025, time.January, 10)
	b := NewDate(2025, time.February, 9)

	assert.Equal(t, 30, b.Sub(a))
	assert.Equal(t, -30, a.Sub(b))
	assert.Equal(t, 0, a.Sub(a))
}

func TestFixedClockAdvance(t *testing.T) {
	fixed := NewFixed(time.Date(2025, 1, 10, 15, 4, 0, 0, time.UTC))
	assert.Equal(t, NewDate(2025, time.January, 10), fixed.Today())

	fixed.Advance(5)
	assert.Equal(t, NewDate(2025, time.January, 15), fixed.Today())
}

func TestSystemClockToday(t *testing.T) {
	clk := NewSystem(time.UTC)
	assert.Equal(t, DateOf(time.Now().UTC()), clk.Today())
}
