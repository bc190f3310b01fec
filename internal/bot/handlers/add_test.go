package handlers

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startDialog(t *testing.T, userID int64, expiresAt time.Time) {
	t.Helper()
	dialogMutex.Lock()
	dialogs[userID] = &addState{
		Step:      stepTitle,
		TypeID:    1,
		TypeName:  "Other",
		ExpiresAt: expiresAt,
	}
	dialogMutex.Unlock()
	t.Cleanup(func() {
		dialogMutex.Lock()
		delete(dialogs, userID)
		dialogMutex.Unlock()
	})
}

func dialogState(userID int64) *addState {
	dialogMutex.Lock()
	defer dialogMutex.Unlock()
	return dialogs[userID]
}

func TestDialogWalkthrough(t *testing.T) {
	userID := int64(101)
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	startDialog(t, userID, now.Add(10*time.Minute))

	reply, ok := applyDialogInput(userID, "  apartment lease  ", now)
	require.True(t, ok)
	assert.Contains(t, reply.text, "YYYY-MM-DD")

	state := dialogState(userID)
	assert.Equal(t, "apartment lease", state.Title)
	assert.Equal(t, stepEndDate, state.Step)

	reply, ok = applyDialogInput(userID, "not a date", now)
	require.True(t, ok)
	assert.Contains(t, reply.text, "can't read that date")
	assert.Equal(t, stepEndDate, dialogState(userID).Step)

	reply, ok = applyDialogInput(userID, "2025-06-30", now)
	require.True(t, ok)
	assert.Equal(t, "How urgent is it?", reply.text)
	require.NotNil(t, reply.keyboard)

	state = dialogState(userID)
	assert.Equal(t, stepPriority, state.Step)
	require.NotNil(t, state.EndDate)
	assert.Equal(t, "2025-06-30", state.EndDate.Format("2006-01-02"))
}

func TestDialogSkipEndDate(t *testing.T) {
	userID := int64(102)
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	startDialog(t, userID, now.Add(10*time.Minute))

	_, ok := applyDialogInput(userID, "open-ended retainer", now)
	require.True(t, ok)
	_, ok = applyDialogInput(userID, "-", now)
	require.True(t, ok)

	state := dialogState(userID)
	assert.Equal(t, stepPriority, state.Step)
	assert.Nil(t, state.EndDate)
}

func TestDialogExpiry(t *testing.T) {
	userID := int64(103)
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	startDialog(t, userID, now.Add(-time.Second))

	_, ok := applyDialogInput(userID, "too late", now)
	assert.False(t, ok)
	assert.Nil(t, dialogState(userID), "expired dialog is dropped")
}

func TestDialogNoneActive(t *testing.T) {
	_, ok := applyDialogInput(104, "hello", time.Now())
	assert.False(t, ok)
}

// Every update arrives on its own goroutine, so rapid-fire messages hit
// the same dialog concurrently. The state must stay consistent.
func TestDialogConcurrentMessages(t *testing.T) {
	userID := int64(105)
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	startDialog(t, userID, now.Add(10*time.Minute))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			applyDialogInput(userID, fmt.Sprintf("lease renewal %d", i), now)
		}(i)
	}
	wg.Wait()

	// The first message becomes the title; the rest fail date parsing.
	state := dialogState(userID)
	require.NotNil(t, state)
	assert.Equal(t, stepEndDate, state.Step)
	assert.Contains(t, state.Title, "lease renewal")
	assert.Nil(t, state.EndDate)
}
