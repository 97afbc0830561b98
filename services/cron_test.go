package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSweep(t *testing.T) {
	marker := &fakeMarker{n: 3}
	c := NewCronService(marker, "*/10 * * * *", 30*time.Minute)

	n, err := c.RunSweep(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, 30*time.Minute, marker.olderThan)

	marker.err = errors.New("boom")
	_, err = c.RunSweep(context.Background())
	assert.Error(t, err)
}

func TestCronServiceStart(t *testing.T) {
	c := NewCronService(&fakeMarker{}, "*/10 * * * *", time.Minute)
	require.NoError(t, c.Start())
	c.Stop()

	bad := NewCronService(&fakeMarker{}, "not a cron", time.Minute)
	assert.Error(t, bad.Start())
}
