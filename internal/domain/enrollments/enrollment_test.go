package enrollments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/apperror"
	"lms/internal/core/id"
)

func at(day, hour int) time.Time {
	return time.Date(2026, 4, day, hour, 0, 0, 0, time.UTC)
}

func TestEnrollment_IsAccessActive(t *testing.T) {
	start, end := at(1, 0), at(30, 0)

	tests := []struct {
		name   string
		status Status
		starts *time.Time
		ends   *time.Time
		now    time.Time
		want   bool
	}{
		{"active without window", StatusActive, nil, nil, at(15, 0), true},
		{"completed keeps access", StatusCompleted, nil, nil, at(15, 0), true},
		{"before start", StatusActive, &start, &end, start.Add(-time.Second), false},
		{"at start", StatusActive, &start, &end, start, true},
		{"at end", StatusActive, &start, &end, end, true},
		{"after end", StatusActive, &start, &end, end.Add(time.Second), false},
		{"suspended", StatusSuspended, nil, nil, at(15, 0), false},
		{"pending", StatusPending, nil, nil, at(15, 0), false},
		{"cancelled", StatusCancelled, nil, nil, at(15, 0), false},
		{"expired", StatusExpired, nil, nil, at(15, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEnrollment(id.New(), id.New(), SourceAdmin, at(1, 0))
			e.Status, e.AccessStartsAt, e.AccessEndsAt = tt.status, tt.starts, tt.ends
			assert.Equal(t, tt.want, e.IsAccessActive(tt.now))
		})
	}
}

func TestEnrollment_ExpireIfNeeded(t *testing.T) {
	end := at(10, 0)

	t.Run("expires once", func(t *testing.T) {
		e := NewEnrollment(id.New(), id.New(), SourceAdmin, at(1, 0))
		e.AccessType, e.AccessEndsAt = AccessFixed, &end

		assert.False(t, e.ExpireIfNeeded(end), "end is inclusive")
		assert.True(t, e.ExpireIfNeeded(end.Add(time.Second)))
		assert.Equal(t, StatusExpired, e.Status)
		assert.False(t, e.ExpireIfNeeded(end.Add(time.Hour)), "second call reports no change")
	})

	t.Run("cancelled and refunded are untouched", func(t *testing.T) {
		for _, s := range []Status{StatusCancelled, StatusRefunded} {
			e := NewEnrollment(id.New(), id.New(), SourceAdmin, at(1, 0))
			e.Status, e.AccessEndsAt = s, &end
			assert.False(t, e.ExpireIfNeeded(at(20, 0)))
			assert.Equal(t, s, e.Status)
		}
	})

	t.Run("no end date never expires", func(t *testing.T) {
		e := NewEnrollment(id.New(), id.New(), SourceAdmin, at(1, 0))
		assert.False(t, e.ExpireIfNeeded(at(30, 0)))
	})
}

func TestEnrollment_Transitions(t *testing.T) {
	now := at(5, 9)
	actor := id.New()

	e := NewEnrollment(id.New(), id.New(), SourceSelf, at(1, 0))
	require.NoError(t, e.Suspend("unpaid", now))
	assert.Equal(t, StatusSuspended, e.Status)
	assert.Equal(t, "unpaid", e.SuspendReason)

	err := e.Suspend("again", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))

	require.NoError(t, e.Resume(now))
	assert.Equal(t, StatusActive, e.Status)
	assert.Nil(t, e.SuspendedAt)

	require.NoError(t, e.Cancel(&actor, "requested", now))
	assert.Equal(t, StatusCancelled, e.Status)
	assert.Equal(t, &actor, e.CancelledBy)
	assert.Equal(t, &now, e.CancelledAt)

	assert.Error(t, e.Cancel(&actor, "twice", now))
	assert.Error(t, e.Refund(now))
	assert.Error(t, e.Extend(nil, now))
}

func TestEnrollment_ResumeAfterWindowClosed(t *testing.T) {
	end := at(10, 0)
	e := NewEnrollment(id.New(), id.New(), SourceAdmin, at(1, 0))
	e.AccessType, e.AccessEndsAt = AccessFixed, &end
	require.NoError(t, e.Suspend("", at(5, 0)))

	require.NoError(t, e.Resume(at(12, 0)))
	assert.Equal(t, StatusExpired, e.Status)
}

func TestEnrollment_ExtendReactivates(t *testing.T) {
	end := at(10, 0)
	e := NewEnrollment(id.New(), id.New(), SourceAdmin, at(1, 0))
	e.AccessType, e.AccessEndsAt = AccessFixed, &end
	require.True(t, e.ExpireIfNeeded(at(11, 0)))

	later := at(20, 0)
	require.NoError(t, e.Extend(&later, at(11, 0)))
	assert.Equal(t, StatusActive, e.Status)
	assert.True(t, e.IsAccessActive(at(15, 0)))

	require.NoError(t, e.Extend(nil, at(11, 0)))
	assert.Equal(t, AccessLifetime, e.AccessType)
	assert.Nil(t, e.AccessEndsAt)
}

func TestEnrollment_Validate(t *testing.T) {
	ctx := context.Background()
	e := NewEnrollment(id.New(), id.New(), SourceAdmin, at(1, 0))
	require.NoError(t, e.Validate(ctx))

	e.AccessType = AccessFixed
	assert.True(t, apperror.HasCode(e.Validate(ctx), apperror.CodeValidation))

	start, end := at(10, 0), at(5, 0)
	e.AccessStartsAt, e.AccessEndsAt = &start, &end
	assert.Error(t, e.Validate(ctx))
}
