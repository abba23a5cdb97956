package controller

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mikol1980/aitutor/pkg/errmodel"
)

func TestResource_LoadSuccess(t *testing.T) {
	r := New(func(ctx context.Context) (string, error) { return "profile", nil })
	r.Load(context.Background())

	st := r.State()
	if st.Status != StatusSuccess || !st.HasData || st.Data != "profile" {
		t.Fatalf("state=%+v", st)
	}
	if st.Err != nil || st.RetryCount != 0 {
		t.Fatalf("err=%v retry=%d", st.Err, st.RetryCount)
	}
}

func TestResource_LoadError_ClearsData(t *testing.T) {
	calls := 0
	r := New(func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "first", nil
		}
		return "", errmodel.New("QUOTA", "limit")
	})
	ctx := context.Background()
	r.Load(ctx)
	r.Load(ctx)

	st := r.State()
	if st.Status != StatusError || st.HasData || st.Data != "" {
		t.Fatalf("state=%+v", st)
	}
	if st.Err == nil || st.Err.Code != "QUOTA" {
		t.Fatalf("err=%v", st.Err)
	}
}

func TestResource_RetryCeiling(t *testing.T) {
	calls := 0
	r := New(func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("boom")
	}, WithRetryDelay(0))

	ctx := context.Background()
	r.Load(ctx)
	for i := 0; i < DefaultMaxRetries; i++ {
		r.Retry(ctx)
	}
	if calls != 1+DefaultMaxRetries {
		t.Fatalf("calls=%d want %d", calls, 1+DefaultMaxRetries)
	}
	if st := r.State(); st.RetryCount != DefaultMaxRetries {
		t.Fatalf("retry count=%d", st.RetryCount)
	}

	// past the ceiling: no network call, state unchanged
	before := r.State()
	r.Retry(ctx)
	if calls != 1+DefaultMaxRetries {
		t.Fatalf("retry past ceiling issued a request: calls=%d", calls)
	}
	if after := r.State(); after.RetryCount != before.RetryCount || after.Status != before.Status {
		t.Fatalf("state changed: before=%+v after=%+v", before, after)
	}
}

func TestResource_SuccessResetsRetryCount(t *testing.T) {
	calls := 0
	r := New(func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("boom")
		}
		return 42, nil
	}, WithRetryDelay(0))

	ctx := context.Background()
	r.Load(ctx)
	r.Retry(ctx)
	r.Retry(ctx)

	st := r.State()
	if st.Status != StatusSuccess || st.Data != 42 {
		t.Fatalf("state=%+v", st)
	}
	if st.RetryCount != 0 {
		t.Fatalf("retry count=%d want 0 after success", st.RetryCount)
	}
}

func TestResource_StaleResponseDiscarded(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	slow := func(ctx context.Context) (string, error) {
		close(entered)
		<-release
		return "old-key", nil
	}
	fast := func(ctx context.Context) (string, error) { return "new-key", nil }

	r := New(slow)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.Load(ctx)
	}()
	<-entered

	// identifier change supersedes the in-flight load
	r.Rekey(ctx, fast)
	close(release)
	wg.Wait()

	if st := r.State(); st.Data != "new-key" {
		t.Fatalf("stale response applied: %+v", st)
	}
}

func TestResource_RekeyResetsRetryCount(t *testing.T) {
	r := New(func(ctx context.Context) (int, error) { return 0, errors.New("boom") },
		WithRetryDelay(0))
	ctx := context.Background()
	r.Load(ctx)
	r.Retry(ctx)
	if st := r.State(); st.RetryCount != 1 {
		t.Fatalf("retry count=%d", st.RetryCount)
	}

	r.Rekey(ctx, func(ctx context.Context) (int, error) { return 7, nil })
	st := r.State()
	if st.RetryCount != 0 || st.Data != 7 {
		t.Fatalf("state=%+v", st)
	}
}

func TestResource_Subscribe(t *testing.T) {
	r := New(func(ctx context.Context) (string, error) { return "x", nil })

	var seen []Status
	cancel := r.Subscribe(func(st State[string]) { seen = append(seen, st.Status) })
	r.Load(context.Background())

	if len(seen) != 2 || seen[0] != StatusLoading || seen[1] != StatusSuccess {
		t.Fatalf("seen=%v", seen)
	}

	cancel()
	r.Load(context.Background())
	if len(seen) != 2 {
		t.Fatalf("notified after cancel: %v", seen)
	}
}
