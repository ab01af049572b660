package gnsstime

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
)

func TestFromGPSWeek(t *testing.T) {
	cases := []struct {
		week, dow int
		want      civil.Date
	}{
		{0, 0, civil.Date{Year: 1980, Month: 1, Day: 6}},
		{2086, 3, civil.Date{Year: 2020, Month: 1, Day: 1}},
		{2086, 4, civil.Date{Year: 2020, Month: 1, Day: 2}},
		{1042, 5, civil.Date{Year: 1999, Month: 12, Day: 31}},
	}
	for _, tc := range cases {
		got := FromGPSWeek(tc.week, tc.dow)
		assert.Equal(t, tc.want, got, "week=%d dow=%d", tc.week, tc.dow)
		w, d := GPSWeek(got)
		assert.Equal(t, tc.week, w)
		assert.Equal(t, tc.dow, d)
	}
}

func TestFromMJD(t *testing.T) {
	assert.Equal(t, civil.Date{Year: 2020, Month: 1, Day: 1}, FromMJD(58849.0))
	assert.Equal(t, civil.Date{Year: 2020, Month: 1, Day: 1}, FromMJD(58849.5))
	assert.Equal(t, civil.Date{Year: 2020, Month: 1, Day: 2}, FromMJD(58850.0))
	assert.Equal(t, civil.Date{Year: 2000, Month: 1, Day: 1}, FromMJD(51544.5))
	assert.Equal(t, 58849, MJD(civil.Date{Year: 2020, Month: 1, Day: 1}))
}

func TestPivotYear(t *testing.T) {
	assert.Equal(t, 2000, PivotYear(0))
	assert.Equal(t, 2079, PivotYear(79))
	assert.Equal(t, 1980, PivotYear(80))
	assert.Equal(t, 1999, PivotYear(99))
	assert.Equal(t, 2020, PivotYear(2020))
}

func TestDate(t *testing.T) {
	if _, ok := Date(2020, 2, 30); ok {
		t.Fatalf("2 月 30 日应非法")
	}
	d, ok := Date(2020, 2, 29)
	assert.True(t, ok)
	assert.Equal(t, "2020-02-29", d.String())
}
