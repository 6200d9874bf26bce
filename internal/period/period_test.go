package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"closeout/internal/core"
)

func fixedResolver(now time.Time) *Resolver {
	return &Resolver{Location: time.UTC, Now: func() time.Time { return now }}
}

func intPtr(v int) *int { return &v }

func TestResolve_DefaultsToPreviousMonth(t *testing.T) {
	r := fixedResolver(time.Date(2025, time.July, 15, 10, 0, 0, 0, time.UTC))

	got, err := r.Resolve(nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2025, got[0].Year)
	assert.Equal(t, time.June, got[0].Month)
}

func TestResolve_JanuaryRollsBackYear(t *testing.T) {
	r := fixedResolver(time.Date(2026, time.January, 3, 0, 0, 0, 0, time.UTC))

	got, err := r.Resolve(nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2025, got[0].Year)
	assert.Equal(t, time.December, got[0].Month)
}

func TestResolve_KeepsRequestOrderAndDuplicates(t *testing.T) {
	r := fixedResolver(time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC))

	got, err := r.Resolve(intPtr(2025), []int{7, 5, 7})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, time.July, got[0].Month)
	assert.Equal(t, time.May, got[1].Month)
	assert.Equal(t, time.July, got[2].Month)
	assert.True(t, got[0].End.Equal(time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)))
}

func TestResolve_InvalidMonth(t *testing.T) {
	r := fixedResolver(time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC))

	for _, months := range [][]int{{0}, {13}, {5, 6, 14}} {
		_, err := r.Resolve(intPtr(2025), months)
		assert.ErrorIs(t, err, core.ErrInvalidMonth, "months=%v", months)
	}
}

func TestResolve_InvalidYear(t *testing.T) {
	r := fixedResolver(time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC))

	for _, y := range []int{-1, 0, 1999, 2027} {
		_, err := r.Resolve(intPtr(y), []int{1})
		assert.ErrorIs(t, err, core.ErrInvalidYear, "year=%d", y)
	}

	_, err := r.Resolve(intPtr(2026), []int{1})
	assert.NoError(t, err, "next year is still accepted")
}

func TestParseMonths(t *testing.T) {
	got, err := ParseMonths("5, 6,7")
	require.NoError(t, err)
	assert.Equal(t, []int{5, 6, 7}, got)

	got, err = ParseMonths("")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseMonths("5,x")
	assert.ErrorIs(t, err, core.ErrInvalidMonth)
}
