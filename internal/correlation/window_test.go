package correlation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-correlator/internal/models"
)

func TestGroupBySourceIP(t *testing.T) {
	b := newEventBuilder("ds")
	late := b.loginFailure("10.0.0.2", 3*time.Minute)
	early := b.loginFailure("10.0.0.2", time.Minute)
	tieA := b.loginFailure("10.0.0.1", 0)
	tieB := b.loginFailure("10.0.0.1", 0)
	noIP := b.loginFailure("", 0)
	noTime := b.loginFailure("10.0.0.1", 0)
	noTime.EventTime = nil

	groups := groupBySourceIP([]*models.Event{late, tieB, noIP, early, noTime, tieA})
	require.Len(t, groups, 2)

	assert.Equal(t, "10.0.0.1", groups[0].ip)
	assert.Equal(t, []*models.Event{tieA, tieB}, groups[0].events)
	assert.Equal(t, "10.0.0.2", groups[1].ip)
	assert.Equal(t, []*models.Event{early, late}, groups[1].events)
}

func TestWindowFrom(t *testing.T) {
	b := newEventBuilder("ds")
	events := []*models.Event{
		b.loginFailure("10.0.0.1", 0),
		b.loginFailure("10.0.0.1", 2*time.Minute),
		b.loginFailure("10.0.0.1", 5*time.Minute),
		b.loginFailure("10.0.0.1", 5*time.Minute+time.Second),
	}

	assert.Len(t, windowFrom(events, 0, 5*time.Minute), 3)
	assert.Len(t, windowFrom(events, 1, 5*time.Minute), 3)
	assert.Len(t, windowFrom(events, 3, 5*time.Minute), 1)
	assert.Len(t, windowFrom(events, 0, 0), 1)
}
