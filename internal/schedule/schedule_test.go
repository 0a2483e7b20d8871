package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextFromLastRun(t *testing.T) {
	cases := []struct {
		name string
		last time.Time
		freq Frequency
		dom  int
		want time.Time
	}{
		{name: "year rollover", last: date(2024, time.December, 15), freq: FrequencyMonthly, dom: 20, want: date(2025, time.January, 20)},
		{name: "clamp to february", last: date(2023, time.January, 31), freq: FrequencyMonthly, dom: 31, want: date(2023, time.February, 28)},
		{name: "clamp to leap february", last: date(2024, time.January, 31), freq: FrequencyMonthly, dom: 31, want: date(2024, time.February, 29)},
		{name: "clamp to thirty day month", last: date(2024, time.March, 31), freq: FrequencyMonthly, dom: 31, want: date(2024, time.April, 30)},
		{name: "restores day after short month", last: date(2023, time.February, 28), freq: FrequencyMonthly, dom: 31, want: date(2023, time.March, 31)},
		{name: "quarterly across year", last: date(2024, time.November, 30), freq: FrequencyQuarterly, dom: 31, want: date(2025, time.February, 28)},
		{name: "yearly leap day", last: date(2024, time.February, 29), freq: FrequencyYearly, dom: 29, want: date(2025, time.February, 28)},
		{name: "yearly into leap year", last: date(2023, time.February, 28), freq: FrequencyYearly, dom: 29, want: date(2024, time.February, 29)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			last := tc.last
			got, err := NextFromLastRun(&last, date(2030, time.January, 1), tc.freq, tc.dom)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNextFromLastRunWithoutPriorRunUsesNow(t *testing.T) {
	now := time.Date(2025, time.May, 10, 14, 30, 0, 0, time.UTC)

	got, err := NextFromLastRun(nil, now, FrequencyMonthly, 5)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.June, 5, 14, 30, 0, 0, time.UTC), got)
}

func TestNextFromLastRunIsDeterministic(t *testing.T) {
	last := date(2025, time.January, 31)
	now := date(2025, time.February, 2)

	first, err := NextFromLastRun(&last, now, FrequencyMonthly, 31)
	require.NoError(t, err)
	second, err := NextFromLastRun(&last, now, FrequencyMonthly, 31)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, date(2025, time.January, 31), last)
}

func TestNextFromStart(t *testing.T) {
	cases := []struct {
		name  string
		start time.Time
		freq  Frequency
		dom   int
		want  time.Time
	}{
		{name: "day not reached bills same month", start: date(2025, time.January, 5), freq: FrequencyMonthly, dom: 10, want: date(2025, time.January, 10)},
		{name: "day reached waits a period", start: date(2025, time.January, 10), freq: FrequencyMonthly, dom: 10, want: date(2025, time.February, 10)},
		{name: "day passed waits a period", start: date(2025, time.January, 15), freq: FrequencyMonthly, dom: 10, want: date(2025, time.February, 10)},
		{name: "same month clamps", start: date(2025, time.February, 3), freq: FrequencyMonthly, dom: 31, want: date(2025, time.February, 28)},
		{name: "quarterly waits three months", start: date(2025, time.January, 20), freq: FrequencyQuarterly, dom: 1, want: date(2025, time.April, 1)},
		{name: "yearly same month when early", start: date(2025, time.March, 1), freq: FrequencyYearly, dom: 15, want: date(2025, time.March, 15)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NextFromStart(tc.start, tc.freq, tc.dom)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNextAfterSkipsMissedPeriods(t *testing.T) {
	got, err := NextAfter(date(2025, time.January, 20), date(2025, time.April, 25), FrequencyMonthly, 20)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.May, 20), got)

	got, err = NextAfter(date(2025, time.January, 20), date(2025, time.January, 21), FrequencyMonthly, 20)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.February, 20), got)
}

func TestBillingDate(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		dom  int
		want time.Time
	}{
		{name: "day passed this month", now: time.Date(2025, time.March, 25, 8, 0, 0, 0, time.UTC), dom: 20, want: date(2025, time.March, 20)},
		{name: "day is today", now: time.Date(2025, time.March, 20, 0, 0, 1, 0, time.UTC), dom: 20, want: date(2025, time.March, 20)},
		{name: "day not reached rolls back", now: time.Date(2025, time.March, 15, 8, 0, 0, 0, time.UTC), dom: 20, want: date(2025, time.February, 20)},
		{name: "roll back across year", now: date(2025, time.January, 5), dom: 20, want: date(2024, time.December, 20)},
		{name: "end of february", now: date(2023, time.February, 28), dom: 31, want: date(2023, time.February, 28)},
		{name: "end of april", now: date(2024, time.April, 30), dom: 31, want: date(2024, time.April, 30)},
		{name: "roll back into clamped month", now: date(2023, time.March, 1), dom: 31, want: date(2023, time.February, 28)},
		{name: "leap february", now: date(2024, time.February, 29), dom: 30, want: date(2024, time.February, 29)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, BillingDate(tc.now, tc.dom))
		})
	}
}

func TestInvalidInputs(t *testing.T) {
	_, err := ParseFrequency("weekly")
	assert.ErrorIs(t, err, ErrInvalidFrequency)

	f, err := ParseFrequency(" Quarterly ")
	require.NoError(t, err)
	assert.Equal(t, FrequencyQuarterly, f)

	_, err = NextFromStart(date(2025, time.January, 1), FrequencyMonthly, 0)
	assert.ErrorIs(t, err, ErrInvalidDayOfMonth)

	_, err = NextFromLastRun(nil, date(2025, time.January, 1), Frequency("daily"), 1)
	assert.ErrorIs(t, err, ErrInvalidFrequency)
}
