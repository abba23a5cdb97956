package controller

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mikol1980/aitutor/pkg/api"
	"github.com/mikol1980/aitutor/pkg/errmodel"
)

type fakeMessageAPI struct {
	mu          sync.Mutex
	listCalls   int
	createCalls int

	total     int
	listBlock chan struct{} // when set, list blocks until closed
	listEnter chan struct{} // closed when a blocked list call starts

	createErr   *errmodel.Error
	createBlock chan struct{}
	createEnter chan struct{}
}

func (f *fakeMessageAPI) SessionMessages(ctx context.Context, sessionID string, q api.PageQuery) (api.MessageListResponse, error) {
	f.mu.Lock()
	f.listCalls++
	block, enter := f.listBlock, f.listEnter
	total := f.total
	f.mu.Unlock()
	if block != nil {
		close(enter)
		<-block
	}

	n := q.Limit
	if q.Offset+n > total {
		n = total - q.Offset
	}
	msgs := make([]api.SessionMessage, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, api.SessionMessage{
			ID:        fmt.Sprintf("m%d", q.Offset+i),
			SessionID: sessionID,
			Sender:    api.SenderUser,
			Content:   api.MessageContent{Type: "text", Text: fmt.Sprintf("msg %d", q.Offset+i)},
			CreatedAt: time.Date(2025, 1, 1, 0, 0, q.Offset+i, 0, time.UTC),
		})
	}
	return api.MessageListResponse{
		Messages:   msgs,
		Pagination: api.Pagination{Total: total, Limit: q.Limit, Offset: q.Offset},
	}, nil
}

func (f *fakeMessageAPI) CreateSessionMessage(ctx context.Context, sessionID string, cmd api.CreateMessageCommand) (api.SessionMessage, error) {
	f.mu.Lock()
	f.createCalls++
	block, enter := f.createBlock, f.createEnter
	errOut := f.createErr
	f.mu.Unlock()
	if block != nil {
		close(enter)
		<-block
	}
	if errOut != nil {
		return api.SessionMessage{}, errOut
	}
	return api.SessionMessage{
		ID:        "srv-1",
		SessionID: sessionID,
		Sender:    cmd.Sender,
		Content:   cmd.Content,
		CreatedAt: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
	}, nil
}

func TestMessageStream_LoadAndPagination(t *testing.T) {
	f := &fakeMessageAPI{total: 5}
	s := NewMessageStream(f, "s1", WithPageLimit(2))
	ctx := context.Background()

	s.Load(ctx)
	st := s.State()
	if st.Status != StatusSuccess || len(st.Messages) != 2 || st.Total != 5 || !st.HasMore {
		t.Fatalf("state=%+v", st)
	}

	s.LoadMore(ctx)
	s.LoadMore(ctx)
	st = s.State()
	if len(st.Messages) != 5 || st.HasMore {
		t.Fatalf("after exhausting: len=%d hasMore=%v", len(st.Messages), st.HasMore)
	}
	if st.Messages[4].ID != "m4" {
		t.Fatalf("order broken: %+v", st.Messages[4])
	}

	// exhausted: no further request
	calls := f.listCalls
	s.LoadMore(ctx)
	if f.listCalls != calls {
		t.Fatalf("LoadMore past end issued a request")
	}
}

func TestMessageStream_LoadMoreSingleRequestWhilePending(t *testing.T) {
	f := &fakeMessageAPI{total: 10}
	s := NewMessageStream(f, "s1", WithPageLimit(2))
	ctx := context.Background()
	s.Load(ctx)

	f.mu.Lock()
	f.listBlock = make(chan struct{})
	f.listEnter = make(chan struct{})
	f.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.LoadMore(ctx)
	}()
	<-f.listEnter

	callsWhilePending := f.listCalls
	s.LoadMore(ctx) // must be a no-op: a load is already in flight
	if f.listCalls != callsWhilePending {
		t.Fatalf("duplicate LoadMore issued a request")
	}

	close(f.listBlock)
	wg.Wait()

	if st := s.State(); len(st.Messages) != 4 {
		t.Fatalf("page duplicated or lost: len=%d", len(st.Messages))
	}
}

func TestMessageStream_SendReconciliation(t *testing.T) {
	f := &fakeMessageAPI{total: 2}
	s := NewMessageStream(f, "s1", WithPageLimit(10))
	ctx := context.Background()
	s.Load(ctx)

	var afterSend StreamState
	cancel := s.Subscribe(func(st StreamState) {
		if len(st.Messages) == 3 && st.Messages[2].Optimistic {
			afterSend = st
		}
	})
	defer cancel()

	s.Send(ctx, "hello", api.SenderUser)

	if len(afterSend.Messages) != 3 {
		t.Fatal("optimistic message never observed")
	}
	opt := afterSend.Messages[2]
	if !opt.Optimistic || !strings.HasPrefix(opt.ID, "tmp-") || opt.CorrelationID == "" {
		t.Fatalf("optimistic record=%+v", opt)
	}
	if afterSend.Total != 3 {
		t.Fatalf("total=%d immediately after send", afterSend.Total)
	}

	st := s.State()
	if len(st.Messages) != len(afterSend.Messages) {
		t.Fatalf("reconciliation changed stream length: %d -> %d", len(afterSend.Messages), len(st.Messages))
	}
	got := st.Messages[2]
	if got.Optimistic {
		t.Fatal("record still optimistic after confirmation")
	}
	if got.ID != "srv-1" || got.Text != "hello" {
		t.Fatalf("reconciled record=%+v", got)
	}
	// earlier history untouched, order preserved
	if st.Messages[0].ID != "m0" || st.Messages[1].ID != "m1" {
		t.Fatalf("history reordered: %+v", st.Messages)
	}
}

func TestMessageStream_SendFailureRollsBack(t *testing.T) {
	f := &fakeMessageAPI{total: 2, createErr: errmodel.New("VALIDATION_FAILED", "too long")}
	s := NewMessageStream(f, "s1", WithPageLimit(10))
	ctx := context.Background()
	s.Load(ctx)

	s.Send(ctx, "oops", api.SenderUser)

	st := s.State()
	if len(st.Messages) != 2 || st.Total != 2 {
		t.Fatalf("rollback incomplete: len=%d total=%d", len(st.Messages), st.Total)
	}
	if st.SendErr == nil || st.SendErr.Code != "VALIDATION_FAILED" {
		t.Fatalf("send err=%v", st.SendErr)
	}
	// a failed send must not degrade the loaded stream
	if st.Status != StatusSuccess || st.Err != nil {
		t.Fatalf("load state disturbed: status=%s err=%v", st.Status, st.Err)
	}
	if s.Sending() {
		t.Fatal("sending flag leaked after failure")
	}
}

func TestMessageStream_SendErrClearedOnNextSend(t *testing.T) {
	f := &fakeMessageAPI{total: 0, createErr: errmodel.New("VALIDATION_FAILED", "too long")}
	s := NewMessageStream(f, "s1")
	ctx := context.Background()
	s.Load(ctx)

	s.Send(ctx, "bad", api.SenderUser)
	if st := s.State(); st.SendErr == nil {
		t.Fatal("first send should fail")
	}

	f.mu.Lock()
	f.createErr = nil
	f.mu.Unlock()

	s.Send(ctx, "good", api.SenderUser)
	st := s.State()
	if st.SendErr != nil {
		t.Fatalf("send err not cleared: %v", st.SendErr)
	}
	if len(st.Messages) != 1 || st.Messages[0].ID != "srv-1" {
		t.Fatalf("messages=%+v", st.Messages)
	}
}

func TestMessageStream_SendSingleFlight(t *testing.T) {
	f := &fakeMessageAPI{total: 0}
	f.createBlock = make(chan struct{})
	f.createEnter = make(chan struct{})
	s := NewMessageStream(f, "s1")
	ctx := context.Background()
	s.Load(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Send(ctx, "first", api.SenderUser)
	}()
	<-f.createEnter

	s.Send(ctx, "second", api.SenderUser) // rejected while first is outstanding
	if f.createCalls != 1 {
		t.Fatalf("createCalls=%d want 1", f.createCalls)
	}

	close(f.createBlock)
	wg.Wait()

	st := s.State()
	if len(st.Messages) != 1 || st.Messages[0].Text != "first" {
		t.Fatalf("messages=%+v", st.Messages)
	}
	if s.Sending() {
		t.Fatal("sending flag leaked after success")
	}
}

func TestMessageStream_RetryCeiling(t *testing.T) {
	f := &failingListAPI{}
	s := NewMessageStream(f, "s1", WithStreamOptions(WithRetryDelay(0)))
	ctx := context.Background()

	s.Load(ctx)
	for i := 0; i < DefaultMaxRetries; i++ {
		s.Retry(ctx)
	}
	if f.calls != 1+DefaultMaxRetries {
		t.Fatalf("calls=%d", f.calls)
	}
	s.Retry(ctx)
	if f.calls != 1+DefaultMaxRetries {
		t.Fatal("retry past ceiling issued a request")
	}
}

type failingListAPI struct{ calls int }

func (f *failingListAPI) SessionMessages(ctx context.Context, sessionID string, q api.PageQuery) (api.MessageListResponse, error) {
	f.calls++
	return api.MessageListResponse{}, errmodel.New(errmodel.CodeInternal, "down")
}

func (f *failingListAPI) CreateSessionMessage(ctx context.Context, sessionID string, cmd api.CreateMessageCommand) (api.SessionMessage, error) {
	return api.SessionMessage{}, errmodel.New(errmodel.CodeInternal, "down")
}
