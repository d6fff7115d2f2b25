package crawler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrontierDeduplicatesAcrossLifetime(t *testing.T) {
	t.Parallel()

	f := NewFrontier(NewBudget(0))

	require.True(t, f.Enqueue(Task{URL: "https://jobs.example.com/job/1", Kind: KindDetail}))
	assert.False(t, f.Enqueue(Task{URL: "https://jobs.example.com/job/1", Kind: KindDetail}))
	// Normalization makes these the same URL.
	assert.False(t, f.Enqueue(Task{URL: "HTTPS://JOBS.EXAMPLE.COM:443/job/1#x", Kind: KindDetail}))

	task, ok := f.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "https://jobs.example.com/job/1", task.URL)

	// Terminal resolution does not reopen the URL.
	f.TaskDone()
	assert.False(t, f.Enqueue(Task{URL: "https://jobs.example.com/job/1", Kind: KindDetail}))
	assert.Equal(t, 2, f.Stats().DupRejected)
}

func TestFrontierPrefersListings(t *testing.T) {
	t.Parallel()

	f := NewFrontier(NewBudget(0))
	require.True(t, f.Enqueue(Task{URL: "https://jobs.example.com/job/1", Kind: KindDetail}))
	require.True(t, f.Enqueue(Task{URL: "https://jobs.example.com/search?p=2", Kind: KindListing}))

	task, ok := f.Dequeue()
	require.True(t, ok)
	assert.Equal(t, KindListing, task.Kind)

	task, ok = f.Dequeue()
	require.True(t, ok)
	assert.Equal(t, KindDetail, task.Kind)
}

func TestFrontierBudgetRefusalLeavesURLUnseen(t *testing.T) {
	t.Parallel()

	budget := NewBudget(1)
	f := NewFrontier(budget)

	require.True(t, f.Enqueue(Task{URL: "https://jobs.example.com/job/1", Kind: KindDetail}))
	assert.False(t, f.Enqueue(Task{URL: "https://jobs.example.com/job/2", Kind: KindDetail}))
	assert.Equal(t, 1, f.Stats().BudgetRejected)

	// Listings are not item-budgeted.
	assert.True(t, f.Enqueue(Task{URL: "https://jobs.example.com/search?p=2", Kind: KindListing}))

	// The refused URL did not enter the seen set.
	assert.Equal(t, 2, f.Stats().Seen)
}

func TestFrontierClosesWhenLastTaskResolves(t *testing.T) {
	t.Parallel()

	f := NewFrontier(NewBudget(0))
	require.True(t, f.Enqueue(Task{URL: "https://jobs.example.com/search?p=1", Kind: KindListing}))

	_, ok := f.Dequeue()
	require.True(t, ok)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok := f.Dequeue()
		assert.False(t, ok, "dequeue must report closed")
	}()

	f.TaskDone()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dequeue did not unblock after the last task resolved")
	}
}

func TestFrontierRequeueKeepsTaskLive(t *testing.T) {
	t.Parallel()

	f := NewFrontier(NewBudget(0))
	require.True(t, f.Enqueue(Task{URL: "https://jobs.example.com/job/1", Kind: KindDetail}))

	task, ok := f.Dequeue()
	require.True(t, ok)

	task.Attempt++
	require.True(t, f.Requeue(task))

	again, ok := f.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 1, again.Attempt)
	assert.Equal(t, 1, f.Stats().Live)

	f.TaskDone()
	_, ok = f.Dequeue()
	assert.False(t, ok)
}

func TestFrontierCloseWakesAllWaiters(t *testing.T) {
	t.Parallel()

	f := NewFrontier(NewBudget(0))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := f.Dequeue()
			assert.False(t, ok)
		}()
	}

	f.Close()

	waited := make(chan struct{})
	go func() {
		wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("blocked waiters not woken by Close")
	}

	assert.False(t, f.Enqueue(Task{URL: "https://jobs.example.com/job/9", Kind: KindDetail}))
	assert.False(t, f.Requeue(Task{URL: "https://jobs.example.com/job/9", Kind: KindDetail}))
}

func TestFrontierConcurrentEnqueueAdmitsOnce(t *testing.T) {
	t.Parallel()

	f := NewFrontier(NewBudget(0))

	const workers = 16
	var mu sync.Mutex
	total := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.Enqueue(Task{URL: "https://jobs.example.com/job/contested", Kind: KindDetail}) {
				mu.Lock()
				total++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, total, "exactly one enqueue may win")
}

func TestFrontierRejectsUnparseableURL(t *testing.T) {
	t.Parallel()

	f := NewFrontier(NewBudget(0))
	assert.False(t, f.Enqueue(Task{URL: "/relative/only", Kind: KindDetail}))
	assert.Equal(t, 0, f.Stats().Seen)
}
