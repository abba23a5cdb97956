package controller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mikol1980/aitutor/pkg/api"
	"github.com/mikol1980/aitutor/pkg/errmodel"
)

// DefaultPageLimit is the message page size when none is configured.
const DefaultPageLimit = 50

// Message is the stream's view of one session message. Optimistic records
// carry a client-generated CorrelationID until the server confirms them.
type Message struct {
	ID            string
	SessionID     string
	Sender        api.MessageSender
	Text          string
	AudioURL      string
	CreatedAt     time.Time
	Optimistic    bool
	CorrelationID string
}

// StreamState is the observable snapshot of a MessageStream. History
// load failures land in Err alongside StatusError; send failures land in
// SendErr and leave Status and the loaded history untouched, so a failed
// send never masks a successfully loaded stream.
type StreamState struct {
	Status     Status
	Messages   []Message
	Total      int
	HasMore    bool
	Err        *errmodel.Error
	SendErr    *errmodel.Error
	RetryCount int
}

// MessageAPI is the slice of the remote API the stream needs.
type MessageAPI interface {
	SessionMessages(ctx context.Context, sessionID string, q api.PageQuery) (api.MessageListResponse, error)
	CreateSessionMessage(ctx context.Context, sessionID string, cmd api.CreateMessageCommand) (api.SessionMessage, error)
}

// StreamOption configures a MessageStream.
type StreamOption func(*MessageStream)

// WithPageLimit sets the page size for history loads.
func WithPageLimit(n int) StreamOption {
	return func(s *MessageStream) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithOrder sets the sort order for history loads, "asc" or "desc" by
// creation time.
func WithOrder(order string) StreamOption {
	return func(s *MessageStream) {
		if order == "asc" || order == "desc" {
			s.order = order
		}
	}
}

// WithStreamOptions applies the shared controller options.
func WithStreamOptions(opts ...Option) StreamOption {
	return func(s *MessageStream) { s.opts = newOptions(opts) }
}

// MessageStream is the append-only, backward-paginated message collection
// with optimistic insertion. Sending is guarded single-flight: at most one
// outstanding send per stream.
type MessageStream struct {
	client    MessageAPI
	sessionID string
	limit     int
	order     string
	opts      options

	mu      sync.Mutex
	state   StreamState
	gen     uint64
	subs    map[int]func(StreamState)
	subID   int
	sending atomic.Bool
}

// NewMessageStream creates a stream over one session's message history.
func NewMessageStream(client MessageAPI, sessionID string, opts ...StreamOption) *MessageStream {
	s := &MessageStream{
		client:    client,
		sessionID: sessionID,
		limit:     DefaultPageLimit,
		order:     "asc",
		opts:      newOptions(nil),
		state:     StreamState{Status: StatusIdle},
		subs:      make(map[int]func(StreamState)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a snapshot of the stream. The message slice is copied so
// observers cannot alias internal state.
func (s *MessageStream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *MessageStream) snapshotLocked() StreamState {
	st := s.state
	st.Messages = make([]Message, len(s.state.Messages))
	copy(st.Messages, s.state.Messages)
	return st
}

// Subscribe registers fn to observe every state change. The returned
// function cancels the subscription.
func (s *MessageStream) Subscribe(fn func(StreamState)) (cancel func()) {
	s.mu.Lock()
	id := s.subID
	s.subID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Load replaces the stream with the first page of history.
func (s *MessageStream) Load(ctx context.Context) {
	s.load(ctx, 0, false)
}

// LoadMore appends the next page. It is a no-op while a load is already in
// flight or when the history is exhausted, so rapid repeated calls issue
// at most one request.
func (s *MessageStream) LoadMore(ctx context.Context) {
	s.mu.Lock()
	if s.state.Status == StatusLoading || !s.state.HasMore {
		s.mu.Unlock()
		return
	}
	offset := len(s.state.Messages)
	// Mark loading before releasing the lock so a concurrent LoadMore
	// observes it and backs off.
	s.state.Status = StatusLoading
	s.mu.Unlock()
	s.load(ctx, offset, true)
}

// Retry reloads the first page after the fixed delay, bounded by the retry
// ceiling.
func (s *MessageStream) Retry(ctx context.Context) {
	s.mu.Lock()
	if s.state.RetryCount >= s.opts.maxRetries {
		s.mu.Unlock()
		s.opts.logger.Warn("retry ceiling reached", "session_id", s.sessionID)
		return
	}
	s.state.RetryCount++
	s.mu.Unlock()

	if !s.opts.wait(ctx.Done()) {
		return
	}
	s.load(ctx, 0, false)
}

func (s *MessageStream) load(ctx context.Context, offset int, appendPage bool) {
	ctx, span := otel.Tracer("controller/messages").Start(ctx, "MessageStream.load")
	defer span.End()
	span.SetAttributes(attribute.Int("page.offset", offset), attribute.Bool("page.append", appendPage))

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.state.Status = StatusLoading
	s.state.Err = nil
	st := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(st)

	resp, err := s.client.SessionMessages(ctx, s.sessionID, api.PageQuery{
		Limit:  s.limit,
		Offset: offset,
		Order:  s.order,
	})

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.opts.logger.Debug("discarding stale message page", "generation", gen, "offset", offset)
		return
	}
	if err != nil {
		// Loaded history is kept; only the status and error change.
		s.state.Status = StatusError
		s.state.Err = errmodel.From(err)
		span.RecordError(err)
	} else {
		page := make([]Message, 0, len(resp.Messages))
		for _, m := range resp.Messages {
			page = append(page, fromDTO(m))
		}
		if appendPage {
			s.state.Messages = append(s.state.Messages, page...)
		} else {
			s.state.Messages = page
		}
		s.state.Total = resp.Pagination.Total
		s.state.HasMore = offset+len(page) < resp.Pagination.Total
		s.state.Status = StatusSuccess
		s.state.RetryCount = 0
	}
	st = s.snapshotLocked()
	s.mu.Unlock()
	s.notify(st)
}

// Send appends an optimistic message, issues the create request, and
// reconciles the record in place on confirmation. On failure the
// optimistic record is removed, the total restored and the error surfaced
// on SendErr, without discarding already-loaded history or changing the
// stream's load status. At most one send may be outstanding; overlapping
// calls are rejected.
func (s *MessageStream) Send(ctx context.Context, text string, sender api.MessageSender) {
	if !s.sending.CompareAndSwap(false, true) {
		s.opts.logger.Warn("send already in flight", "session_id", s.sessionID)
		return
	}
	defer s.sending.Store(false)

	ctx, span := otel.Tracer("controller/messages").Start(ctx, "MessageStream.Send")
	defer span.End()

	correlationID := uuid.NewString()
	span.SetAttributes(attribute.String("message.correlation_id", correlationID))
	optimistic := Message{
		ID:            "tmp-" + correlationID,
		SessionID:     s.sessionID,
		Sender:        sender,
		Text:          text,
		CreatedAt:     s.opts.now(),
		Optimistic:    true,
		CorrelationID: correlationID,
	}

	s.mu.Lock()
	s.state.Messages = append(s.state.Messages, optimistic)
	s.state.Total++
	s.state.SendErr = nil
	st := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(st)

	msg, err := s.client.CreateSessionMessage(ctx, s.sessionID, api.CreateMessageCommand{
		Sender:  sender,
		Content: api.MessageContent{Type: "text", Text: text},
	})

	s.mu.Lock()
	if err != nil {
		span.RecordError(err)
		kept := s.state.Messages[:0]
		for _, m := range s.state.Messages {
			if m.CorrelationID != correlationID {
				kept = append(kept, m)
			}
		}
		s.state.Messages = kept
		s.state.Total--
		s.state.SendErr = errmodel.From(err)
	} else {
		// Replace in place: position in the sequence is preserved, only
		// the content at the matching index is swapped.
		for i := range s.state.Messages {
			if s.state.Messages[i].CorrelationID == correlationID {
				s.state.Messages[i] = fromDTO(msg)
				break
			}
		}
	}
	st = s.snapshotLocked()
	s.mu.Unlock()
	s.notify(st)
}

// Sending reports whether a send is currently in flight.
func (s *MessageStream) Sending() bool { return s.sending.Load() }

func (s *MessageStream) notify(st StreamState) {
	s.mu.Lock()
	fns := make([]func(StreamState), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

func fromDTO(m api.SessionMessage) Message {
	return Message{
		ID:        m.ID,
		SessionID: m.SessionID,
		Sender:    m.Sender,
		Text:      m.Content.Text,
		AudioURL:  m.Content.AudioURL,
		CreatedAt: m.CreatedAt,
	}
}
