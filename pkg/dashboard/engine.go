// Package dashboard composes independent resource fetches into one
// aggregate view and derives the recommended next topic from progress
// records.
package dashboard

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/mikol1980/aitutor/pkg/api"
	"github.com/mikol1980/aitutor/pkg/controller"
	"github.com/mikol1980/aitutor/pkg/store"
)

// keyLastSession stores the cross-session "continue where you left off"
// reference inside the engine's storage scope.
const keyLastSession = "last_session_id"

// API is the slice of the remote API the engine needs.
type API interface {
	Sections(ctx context.Context) (api.SectionListResponse, error)
	UserProgress(ctx context.Context, f api.ProgressFilters) (api.ProgressOverviewResponse, error)
	Session(ctx context.Context, sessionID string) (api.SessionDetails, error)
}

// SectionProgress aggregates one section's topic counts.
type SectionProgress struct {
	Completed        int
	InProgress       int
	NotStarted       int
	PercentCompleted int
}

// SectionSummary is one catalog section merged with the user's progress.
type SectionSummary struct {
	ID          string
	Title       string
	Description *string
	Progress    SectionProgress
}

// LastSession is the validated cached session reference.
type LastSession struct {
	ID         string
	TopicTitle *string
	EndedAt    *time.Time
	IsActive   bool
}

// Data is the aggregate the dashboard renders. IsEmpty distinguishes a
// catalog with zero sections from an error and from a missing
// recommendation.
type Data struct {
	Sections    []SectionSummary
	LastSession *LastSession
	Recommended *RecommendedTopic
	IsEmpty     bool
}

// Engine loads the dashboard aggregate. Retry accounting and stale-response
// handling come from the embedded resource controller, so the dashboard
// behaves like every other fetchable surface.
type Engine struct {
	client API
	scope  store.Scope
	log    *slog.Logger
	res    *controller.Resource[Data]
}

// NewEngine creates an Engine persisting its session reference in scope.
func NewEngine(client API, scope store.Scope, opts ...controller.Option) *Engine {
	e := &Engine{client: client, scope: scope, log: slog.Default()}
	e.res = controller.New(e.fetch, opts...)
	return e
}

// Load fetches sections and progress in parallel and assembles the
// aggregate. Either fetch failing fails the whole load.
func (e *Engine) Load(ctx context.Context) { e.res.Load(ctx) }

// Retry re-issues the load, bounded by the shared retry ceiling.
func (e *Engine) Retry(ctx context.Context) { e.res.Retry(ctx) }

// State returns the engine's observable state.
func (e *Engine) State() controller.State[Data] { return e.res.State() }

// Subscribe registers fn to observe every state change.
func (e *Engine) Subscribe(fn func(controller.State[Data])) (cancel func()) {
	return e.res.Subscribe(fn)
}

// RememberSession persists id as the last visited session.
func (e *Engine) RememberSession(ctx context.Context, id string) {
	if err := e.scope.Set(ctx, keyLastSession, id); err != nil {
		e.log.Warn("could not persist last session", "error", err)
	}
}

func (e *Engine) fetch(ctx context.Context) (Data, error) {
	ctx, span := otel.Tracer("dashboard/engine").Start(ctx, "Engine.fetch")
	defer span.End()

	var (
		sections api.SectionListResponse
		overview api.ProgressOverviewResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sections, err = e.client.Sections(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		overview, err = e.client.UserProgress(gctx, api.ProgressFilters{})
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return Data{}, err
	}

	merged := mergeSections(sections.Sections, overview.Progress)
	return Data{
		Sections:    merged,
		LastSession: e.validateLastSession(ctx),
		Recommended: Recommend(overview.Progress),
		IsEmpty:     len(merged) == 0,
	}, nil
}

// validateLastSession resolves the stored session reference against the
// live API. Any failure — missing, malformed, not found, forbidden,
// transport — yields nil and purges the stored value so a broken pointer
// cannot keep failing on every dashboard load.
func (e *Engine) validateLastSession(ctx context.Context) *LastSession {
	id, err := e.scope.Get(ctx, keyLastSession)
	if err != nil {
		return nil
	}
	if _, err := uuid.Parse(id); err != nil {
		e.log.Warn("stored last session id is not a uuid, clearing", "value", id)
		e.clearLastSession(ctx)
		return nil
	}
	details, err := e.client.Session(ctx, id)
	if err != nil {
		e.log.Warn("could not validate last session, clearing", "session_id", id, "error", err)
		e.clearLastSession(ctx)
		return nil
	}
	return &LastSession{
		ID:         details.ID,
		TopicTitle: details.TopicTitle,
		EndedAt:    details.EndedAt,
		IsActive:   details.EndedAt == nil,
	}
}

func (e *Engine) clearLastSession(ctx context.Context) {
	if err := e.scope.Delete(ctx, keyLastSession); err != nil {
		e.log.Warn("could not clear last session", "error", err)
	}
}

// mergeSections joins catalog entries with progress entries by section id.
func mergeSections(sections []api.Section, progress []api.ProgressEntry) []SectionSummary {
	out := make([]SectionSummary, 0, len(sections))
	for _, s := range sections {
		var p SectionProgress
		total := 0
		for _, pr := range progress {
			if pr.SectionID != s.ID {
				continue
			}
			total++
			switch pr.Status {
			case api.StatusCompleted:
				p.Completed++
			case api.StatusInProgress:
				p.InProgress++
			case api.StatusNotStarted:
				p.NotStarted++
			}
		}
		if total > 0 {
			p.PercentCompleted = int(math.Round(float64(p.Completed) / float64(total) * 100))
		}
		out = append(out, SectionSummary{
			ID:          s.ID,
			Title:       s.Title,
			Description: s.Description,
			Progress:    p,
		})
	}
	return out
}
