package ledger

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finance-tracker/internal/models"
)

func TestParseType(t *testing.T) {
	typ, err := ParseType(" Income ")
	require.NoError(t, err)
	assert.Equal(t, models.TypeIncome, typ)

	_, err = ParseType("")
	assert.True(t, models.IsValidation(err))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"10", "10.00", true},
		{" 0.1 ", "0.10", true},
		{"1234.567", "1234.57", true},
		{"0", "0.00", true},
		{"-0.01", "", false},
		{"ten", "", false},
		{"", "", false},
		{"999999999999.99", "999999999999.99", true},
		{"999999999999.995", "", false},
		{"1000000000000", "", false},
		{"1e3", "", false},
		{"1E10000000", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if !tt.ok {
				assert.True(t, models.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestParseAmount_HugeExponentIsCheap(t *testing.T) {
	start := time.Now()
	_, err := ParseAmount("1e10000000")
	assert.True(t, models.IsValidation(err))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestParseDate(t *testing.T) {
	now := time.Date(2024, 5, 20, 8, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	got, err := ParseDate("", now)
	require.NoError(t, err)
	assert.Equal(t, now.UTC(), got)
	assert.Equal(t, time.UTC, got.Location())

	tests := map[string]time.Time{
		"2024-01-15":                time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		"2024-01-15T13:45":          time.Date(2024, 1, 15, 13, 45, 0, 0, time.UTC),
		"2024-01-15 13:45:30":       time.Date(2024, 1, 15, 13, 45, 30, 0, time.UTC),
		"2024-01-15T13:45:30+02:00": time.Date(2024, 1, 15, 11, 45, 30, 0, time.UTC),
	}
	for in, want := range tests {
		got, err := ParseDate(in, now)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s: got %s", in, got)
	}

	_, err = ParseDate("yesterday", now)
	assert.True(t, models.IsValidation(err))
}

func TestResolveCategory(t *testing.T) {
	got, err := ResolveCategory(OtherIncome, "Lottery")
	require.NoError(t, err)
	assert.Equal(t, "Lottery", got)

	got, err = ResolveCategory("  Food ", "")
	require.NoError(t, err)
	assert.Equal(t, "Food", got)

	_, err = ResolveCategory(" ", "Custom")
	assert.True(t, models.IsValidation(err))

	_, err = ResolveCategory(strings.Repeat("x", 101), "")
	assert.True(t, models.IsValidation(err))
}

func TestCategories(t *testing.T) {
	assert.Contains(t, Categories(models.TypeIncome), OtherIncome)
	assert.Contains(t, Categories(models.TypeExpense), OtherExpense)
	assert.NotContains(t, Categories(models.TypeExpense), "Salary")
}
