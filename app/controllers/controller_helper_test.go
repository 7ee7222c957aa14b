package controllers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTimeQuery(t *testing.T) {
	assert.Nil(t, parseTimeQuery(""))
	assert.Nil(t, parseTimeQuery("   "))
	assert.Nil(t, parseTimeQuery("not-a-date"))

	got := parseTimeQuery("2026-03-01T12:30:00Z")
	if assert.NotNil(t, got) {
		assert.Equal(t, time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC), got.UTC())
	}

	dateOnly := parseTimeQuery("2026-03-01")
	if assert.NotNil(t, dateOnly) {
		assert.Equal(t, 2026, dateOnly.Year())
		assert.Equal(t, time.March, dateOnly.Month())
		assert.Equal(t, 1, dateOnly.Day())
	}
}

func TestQueueKeyType(t *testing.T) {
	assert.Equal(t, "job", queueKeyType("job:abc-123"))
	assert.Equal(t, "job_queue", queueKeyType("job_queue"))
	assert.Equal(t, "job_processing", queueKeyType("job_processing"))
	assert.Equal(t, "job_stats", queueKeyType("job_stats"))
	assert.Equal(t, "unknown", queueKeyType("session:xyz"))
}
