package recur

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext_WeeklyMonday(t *testing.T) {
	p := NewParser()

	// 2026-03-01 is a Sunday.
	from := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	next, err := p.Next("0 9 * * 1", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), next)
}

func TestNext_DailyRollsToTomorrow(t *testing.T) {
	p := NewParser()

	from := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	next, err := p.Next("30 8 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC), next)
}

func TestNext_InvalidExpression(t *testing.T) {
	p := NewParser()

	_, err := p.Next("not a cron", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse recurrence")
}

func TestValidate(t *testing.T) {
	p := NewParser()
	assert.NoError(t, p.Validate("*/15 * * * *"))
	assert.Error(t, p.Validate("61 * * * *"))
}
