package post

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/publora/publora/errors"
	publoratest "github.com/publora/publora/internal/testing"
)

func createPost(t *testing.T, store *Store, platforms []string, scheduledAt time.Time) *ScheduledPost {
	t.Helper()

	p, err := New("video.mp4", Metadata{Title: "t"}, platforms, scheduledAt)
	require.NoError(t, err)
	require.NoError(t, store.Create(p))
	return p
}

func TestCreateAndGet(t *testing.T) {
	store := NewStore(publoratest.CreateTestDB(t))
	scheduledAt := time.Now().Add(3 * time.Hour)

	p := createPost(t, store, []string{"youtube", "tiktok"}, scheduledAt)

	retrieved, err := store.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, retrieved.ID)
	assert.Equal(t, "video.mp4", retrieved.ArtifactPath)
	assert.Equal(t, []string{"youtube", "tiktok"}, retrieved.Platforms)
	assert.Equal(t, StatusPending, retrieved.Status)
	assert.Equal(t, 0, retrieved.RetryCount)
	assert.Nil(t, retrieved.ProcessedAt)
	assert.WithinDuration(t, scheduledAt, retrieved.ScheduledAt, time.Second)
}

func TestGetNotFound(t *testing.T) {
	store := NewStore(publoratest.CreateTestDB(t))

	_, err := store.Get("missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestGetDueGraceWindow(t *testing.T) {
	store := NewStore(publoratest.CreateTestDB(t))
	now := time.Now()
	grace := 30 * time.Minute

	dueNow := createPost(t, store, []string{"youtube"}, now)
	dueLate := createPost(t, store, []string{"youtube"}, now.Add(-20*time.Minute))
	// Older than the grace window: excluded from the ready set entirely
	tooOld := createPost(t, store, []string{"youtube"}, now.Add(-(grace + time.Minute)))
	future := createPost(t, store, []string{"youtube"}, now.Add(time.Hour))
	cancelled := createPost(t, store, []string{"youtube"}, now)
	require.NoError(t, store.Cancel(cancelled.ID))

	due, err := store.GetDue(now, grace)
	require.NoError(t, err)

	require.Len(t, due, 2)
	// Ordered by scheduled time, oldest first
	assert.Equal(t, dueLate.ID, due[0].ID)
	assert.Equal(t, dueNow.ID, due[1].ID)

	for _, p := range due {
		assert.NotEqual(t, tooOld.ID, p.ID)
		assert.NotEqual(t, future.ID, p.ID)
	}
}

func TestClaimProcessing(t *testing.T) {
	store := NewStore(publoratest.CreateTestDB(t))
	p := createPost(t, store, []string{"youtube"}, time.Now())

	claimed, err := store.ClaimProcessing(p.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	// Second claim loses: the post is no longer pending
	claimed, err = store.ClaimProcessing(p.ID)
	require.NoError(t, err)
	assert.False(t, claimed)

	retrieved, err := store.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, retrieved.Status)
}

func TestCancelOnlyPending(t *testing.T) {
	store := NewStore(publoratest.CreateTestDB(t))
	p := createPost(t, store, []string{"youtube"}, time.Now())

	require.NoError(t, store.Cancel(p.ID))

	retrieved, err := store.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, retrieved.Status)
	require.NotNil(t, retrieved.ProcessedAt)

	// Cancelling again is rejected
	err = store.Cancel(p.ID)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidStateError(err))

	// Cancelling a processing post is rejected
	processing := createPost(t, store, []string{"youtube"}, time.Now())
	claimed, err := store.ClaimProcessing(processing.ID)
	require.NoError(t, err)
	require.True(t, claimed)
	err = store.Cancel(processing.ID)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidStateError(err))

	// Cancelling an unknown post reports not found
	err = store.Cancel("missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestRescheduleOnlyPending(t *testing.T) {
	store := NewStore(publoratest.CreateTestDB(t))
	p := createPost(t, store, []string{"youtube"}, time.Now().Add(time.Hour))
	newTime := time.Now().Add(6 * time.Hour)

	require.NoError(t, store.Reschedule(p.ID, newTime))

	retrieved, err := store.Get(p.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, newTime, retrieved.ScheduledAt, time.Second)

	require.NoError(t, store.Cancel(p.ID))
	err = store.Reschedule(p.ID, newTime)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidStateError(err))
}

func TestResetForRetry(t *testing.T) {
	store := NewStore(publoratest.CreateTestDB(t))
	p := createPost(t, store, []string{"youtube"}, time.Now().Add(-time.Minute))

	claimed, err := store.ClaimProcessing(p.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	now := time.Now()
	require.NoError(t, store.ResetForRetry(p.ID, now, "youtube: connection refused"))

	retrieved, err := store.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, retrieved.Status)
	assert.Equal(t, 1, retrieved.RetryCount)
	assert.Equal(t, "youtube: connection refused", retrieved.ErrorMessage)
	assert.WithinDuration(t, now, retrieved.ScheduledAt, time.Second)

	// Only processing posts can be reset
	err = store.ResetForRetry(p.ID, now, "again")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidStateError(err))
}

func TestReleaseStuckProcessing(t *testing.T) {
	store := NewStore(publoratest.CreateTestDB(t))

	stuck := createPost(t, store, []string{"youtube"}, time.Now().Add(-time.Hour))
	claimed, err := store.ClaimProcessing(stuck.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	untouched := createPost(t, store, []string{"youtube"}, time.Now().Add(time.Hour))

	now := time.Now()
	released, err := store.ReleaseStuckProcessing(now)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	retrieved, err := store.Get(stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, retrieved.Status)
	// Crash recovery does not count against the retry bound
	assert.Equal(t, 0, retrieved.RetryCount)
	assert.WithinDuration(t, now, retrieved.ScheduledAt, time.Second)

	other, err := store.Get(untouched.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, other.Status)
}

func TestUpdateStatus(t *testing.T) {
	store := NewStore(publoratest.CreateTestDB(t))
	p := createPost(t, store, []string{"youtube"}, time.Now())

	now := time.Now()
	require.NoError(t, store.UpdateStatus(p.ID, StatusFailed, "artifact not found", &now, false))

	retrieved, err := store.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, retrieved.Status)
	assert.Equal(t, "artifact not found", retrieved.ErrorMessage)
	require.NotNil(t, retrieved.ProcessedAt)
	assert.WithinDuration(t, now, *retrieved.ProcessedAt, time.Second)

	err = store.UpdateStatus("missing", StatusFailed, "", nil, false)
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestListFilters(t *testing.T) {
	store := NewStore(publoratest.CreateTestDB(t))
	now := time.Now()

	yt := createPost(t, store, []string{"youtube"}, now.Add(time.Hour))
	tk := createPost(t, store, []string{"tiktok"}, now.Add(2*time.Hour))
	done := createPost(t, store, []string{"youtube", "tiktok"}, now.Add(3*time.Hour))
	require.NoError(t, store.UpdateStatus(done.ID, StatusCompleted, "", &now, false))

	pending := StatusPending
	posts, err := store.List(ListOptions{Status: &pending})
	require.NoError(t, err)
	assert.Len(t, posts, 2)

	posts, err = store.List(ListOptions{PlatformContains: "tiktok"})
	require.NoError(t, err)
	assert.Len(t, posts, 2)
	for _, p := range posts {
		assert.NotEqual(t, yt.ID, p.ID)
	}

	posts, err = store.List(ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	_ = tk
}

func TestStatusRollups(t *testing.T) {
	store := NewStore(publoratest.CreateTestDB(t))
	now := time.Now()

	createPost(t, store, []string{"youtube"}, now.Add(2*time.Hour))
	first := createPost(t, store, []string{"youtube"}, now.Add(time.Hour))
	done := createPost(t, store, []string{"youtube"}, now.Add(-time.Hour))
	require.NoError(t, store.UpdateStatus(done.ID, StatusCompleted, "", &now, false))

	counts, err := store.CountByStatus()
	require.NoError(t, err)
	assert.Equal(t, 2, counts[StatusPending])
	assert.Equal(t, 1, counts[StatusCompleted])

	upcoming, err := store.Upcoming(5)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, first.ID, upcoming[0].ID)

	recent, err := store.Recent(5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, done.ID, recent[0].ID)
}
