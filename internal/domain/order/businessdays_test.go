package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddBusinessDays(t *testing.T) {
	monday := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	friday := time.Date(2026, 3, 6, 9, 30, 0, 0, time.UTC)
	saturday := time.Date(2026, 3, 7, 9, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		from time.Time
		n    int
		want time.Time
	}{
		{"zero days", monday, 0, monday},
		{"within week", monday, 3, monday.AddDate(0, 0, 3)},
		{"skips weekend", friday, 1, monday.AddDate(0, 0, 7)},
		{"friday plus three", friday, 3, time.Date(2026, 3, 11, 9, 30, 0, 0, time.UTC)},
		{"starts on weekend", saturday, 1, monday.AddDate(0, 0, 7)},
		{"spans two weekends", monday, 10, monday.AddDate(0, 0, 14)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := addBusinessDays(tc.from, tc.n)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.from.Hour(), got.Hour(), "time of day preserved")
		})
	}
}
