package prober

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile("../../testdata/fixtures/" + name)
	if err != nil {
		t.Fatalf("failed to load test fixture: %v", err)
	}
	return string(data)
}

func TestFindAvailableCell(t *testing.T) {
	available := loadFixture(t, "calendar_available.html")
	unavailable := loadFixture(t, "calendar_unavailable.html")

	tests := []struct {
		name string
		html string
		date string
		want bool
	}{
		{name: "available date", html: available, date: "Thursday, July 4, 2024", want: true},
		{name: "another available date", html: available, date: "Tuesday, July 2, 2024", want: true},
		{name: "unavailable date", html: available, date: "Wednesday, July 3, 2024", want: false},
		{name: "date not on page", html: available, date: "Thursday, August 1, 2024", want: false},
		{name: "focusable cell does not match", html: available, date: "Saturday, July 6, 2024", want: false},
		{name: "cell without is-styled-day does not match", html: available, date: "Sunday, July 7, 2024", want: false},
		{name: "nothing available", html: unavailable, date: "Thursday, July 4, 2024", want: false},
		{name: "prefix of a label does not match", html: available, date: "Thursday, July 4", want: false},
		{name: "empty page", html: "", date: "Thursday, July 4, 2024", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindAvailableCell(tt.html, tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAvailableLabels(t *testing.T) {
	labels, err := AvailableLabels(loadFixture(t, "calendar_available.html"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Tuesday, July 2, 2024 - Available",
		"Thursday, July 4, 2024 - Available",
	}, labels)

	labels, err = AvailableLabels(loadFixture(t, "calendar_unavailable.html"))
	require.NoError(t, err)
	assert.Empty(t, labels)
}
