package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type progressFilters struct {
	SectionID string
	Status    string
}

func TestCollection_FilterChangeResetsRetry(t *testing.T) {
	var mu sync.Mutex
	var requests []progressFilters
	fetch := func(ctx context.Context, f progressFilters) ([]string, error) {
		mu.Lock()
		requests = append(requests, f)
		mu.Unlock()
		return nil, errors.New("boom")
	}

	c := NewCollection(fetch, progressFilters{}, WithRetryDelay(0))
	ctx := context.Background()
	c.Load(ctx)
	c.Retry(ctx)
	c.Retry(ctx)
	if st := c.State(); st.RetryCount != 2 {
		t.Fatalf("retry count=%d", st.RetryCount)
	}

	newFilters := progressFilters{SectionID: "s2", Status: "completed"}
	before := len(requests)
	c.SetFilters(ctx, newFilters)

	// filter changes are not retries
	if st := c.State(); st.RetryCount != 0 {
		t.Fatalf("retry count=%d after filter change", st.RetryCount)
	}
	if got := len(requests) - before; got != 1 {
		t.Fatalf("filter change issued %d requests", got)
	}
	if last := requests[len(requests)-1]; last != newFilters {
		t.Fatalf("request filters=%+v", last)
	}
	// the ceiling is re-armed
	c.Retry(ctx)
	if st := c.State(); st.RetryCount != 1 {
		t.Fatalf("retry count=%d after re-arm", st.RetryCount)
	}
}

func TestCollection_StaleFilteredResponseDiscarded(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	fetch := func(ctx context.Context, f progressFilters) ([]string, error) {
		if f.SectionID == "slow" {
			close(entered)
			<-release
			return []string{"stale"}, nil
		}
		return []string{"current"}, nil
	}

	c := NewCollection(fetch, progressFilters{SectionID: "slow"})
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Load(ctx)
	}()
	<-entered

	c.SetFilters(ctx, progressFilters{SectionID: "fast"})
	close(release)
	wg.Wait()

	st := c.State()
	if len(st.Data) != 1 || st.Data[0] != "current" {
		t.Fatalf("stale filtered data applied: %+v", st.Data)
	}
}

func TestCollection_ClearFilters(t *testing.T) {
	var last progressFilters
	fetch := func(ctx context.Context, f progressFilters) ([]string, error) {
		last = f
		return []string{"ok"}, nil
	}

	c := NewCollection(fetch, progressFilters{SectionID: "s1"})
	ctx := context.Background()
	c.Load(ctx)
	if last.SectionID != "s1" {
		t.Fatalf("initial filters=%+v", last)
	}

	c.ClearFilters(ctx)
	if last != (progressFilters{}) {
		t.Fatalf("filters after clear=%+v", last)
	}
	if got := c.Filters(); got != (progressFilters{}) {
		t.Fatalf("Filters()=%+v", got)
	}
}
