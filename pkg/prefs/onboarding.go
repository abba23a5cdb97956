package prefs

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/mikol1980/aitutor/pkg/api"
	"github.com/mikol1980/aitutor/pkg/errmodel"
	"github.com/mikol1980/aitutor/pkg/store"
)

// Onboarding step bounds. Steps run 0 through TotalSteps-1; skipping
// unlocks from step skipFromStep onward.
const (
	TotalSteps   = 4
	maxStep      = TotalSteps - 1
	skipFromStep = 2
	keyStep      = "step"
)

// ErrSaveInFlight is returned when Finish is called while a previous
// Finish is still being saved.
var ErrSaveInFlight = errmodel.New("SAVE_IN_FLIGHT", "profile save already in progress")

// ProfileAPI is the slice of the remote API the onboarding flow needs.
type ProfileAPI interface {
	UpdateProfile(ctx context.Context, cmd api.UpdateProfileCommand) (api.Profile, error)
}

// Onboarding tracks the multi-step introduction flow. The current step is
// persisted so an interrupted flow resumes where it stopped; a stored
// value outside the valid range is ignored.
type Onboarding struct {
	scope  store.Scope
	client ProfileAPI
	log    *slog.Logger

	mu     sync.Mutex
	step   int
	saving bool
}

// NewOnboarding creates the tracker, resuming from the persisted step.
func NewOnboarding(ctx context.Context, scope store.Scope, client ProfileAPI) *Onboarding {
	o := &Onboarding{scope: scope, client: client, log: slog.Default()}
	if v, err := scope.Get(ctx, keyStep); err == nil {
		if n, perr := strconv.Atoi(v); perr == nil && n >= 0 && n <= maxStep {
			o.step = n
		} else {
			o.log.Warn("ignoring malformed stored onboarding step", "value", v)
		}
	}
	return o
}

// Step returns the current step index.
func (o *Onboarding) Step() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.step
}

// CanSkip reports whether the flow may be skipped at the current step.
func (o *Onboarding) CanSkip() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.step >= skipFromStep
}

// Saving reports whether a Finish save is in flight.
func (o *Onboarding) Saving() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.saving
}

// GoNext advances one step, persisting the new position. At the last step
// it does nothing.
func (o *Onboarding) GoNext(ctx context.Context) {
	o.move(ctx, 1)
}

// GoPrev moves one step back, persisting the new position. At the first
// step it does nothing.
func (o *Onboarding) GoPrev(ctx context.Context) {
	o.move(ctx, -1)
}

func (o *Onboarding) move(ctx context.Context, delta int) {
	o.mu.Lock()
	next := o.step + delta
	if next < 0 || next > maxStep {
		o.mu.Unlock()
		return
	}
	o.step = next
	o.mu.Unlock()
	if err := o.scope.Set(ctx, keyStep, strconv.Itoa(next)); err != nil {
		o.log.Warn("onboarding step not persisted", "error", err)
	}
}

// Skip abandons the flow without marking the tutorial complete, so the
// user can return to it later. The persisted step is cleared. Reports
// whether skipping was allowed.
func (o *Onboarding) Skip(ctx context.Context) bool {
	if !o.CanSkip() {
		return false
	}
	if err := o.scope.Delete(ctx, keyStep); err != nil {
		o.log.Warn("onboarding step not cleared", "error", err)
	}
	return true
}

// Finish marks the tutorial complete on the profile and clears the
// persisted step. At most one save may be outstanding.
func (o *Onboarding) Finish(ctx context.Context) error {
	o.mu.Lock()
	if o.saving {
		o.mu.Unlock()
		return ErrSaveInFlight
	}
	o.saving = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.saving = false
		o.mu.Unlock()
	}()

	if _, err := o.client.UpdateProfile(ctx, api.UpdateProfileCommand{HasCompletedTutorial: true}); err != nil {
		return err
	}
	if err := o.scope.Delete(ctx, keyStep); err != nil {
		o.log.Warn("onboarding step not cleared", "error", err)
	}
	return nil
}
