package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    Date
		wantErr bool
	}{
		{"2025-07-01", NewDate(2025, time.July, 1), false},
		{"2025-7-1", NewDate(2025, time.July, 1), false},
		{"2024-02-29T10:30:00Z", NewDate(2024, time.February, 29), false},
		{"01/07/2025", Date{}, true},
		{"", Date{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDate_AddMonthsClampsToMonthEnd(t *testing.T) {
	tests := []struct {
		start string
		n     int
		want  string
	}{
		{"2020-01-31", 1, "2020-02-29"},
		{"2021-01-31", 1, "2021-02-28"},
		{"2020-03-31", -1, "2020-02-29"},
		{"2020-11-15", 3, "2021-02-15"},
		{"2020-01-15", -13, "2018-12-15"},
		{"2020-05-31", 0, "2020-05-31"},
	}
	for _, tt := range tests {
		got := MustParseDate(tt.start).AddMonths(tt.n)
		assert.Equal(t, tt.want, got.String(), "%s %+d", tt.start, tt.n)
	}
}

func TestDate_MonthsSince(t *testing.T) {
	tests := []struct {
		start, end string
		want       int
	}{
		{"2020-01-01", "2020-01-01", 0},
		{"2020-01-01", "2020-01-31", 0},
		{"2020-01-01", "2020-02-01", 1},
		{"2020-01-15", "2020-02-14", 0},
		{"2019-01-01", "2020-01-01", 12},
		{"2020-01-31", "2020-02-29", 1},
		{"2020-03-01", "2020-01-01", -2},
	}
	for _, tt := range tests {
		got := MustParseDate(tt.end).MonthsSince(MustParseDate(tt.start))
		assert.Equal(t, tt.want, got, "%s -> %s", tt.start, tt.end)
	}
}

func TestDate_Compare(t *testing.T) {
	a := MustParseDate("2024-03-01")
	b := MustParseDate("2024-03-02")
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.Equal(t, 0, a.Compare(NewDate(2024, time.February, 30)))
}

func TestDate_Encoding(t *testing.T) {
	d := MustParseDate("2024-03-05")

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-03-05"`, string(data))

	var fromJSON Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-3-5"`), &fromJSON))
	assert.Equal(t, d, fromJSON)

	var doc struct {
		On Date `yaml:"date"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("date: 2024-03-05\n"), &doc))
	assert.Equal(t, d, doc.On)
}
