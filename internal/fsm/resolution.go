package fsm

import (
	"context"
	"sync"

	"github.com/looplab/fsm"
)

// TransitionFunc observes a stage change.
type TransitionFunc func(event, from, to string)

// Resolution tracks the stage of a single address resolution. Each
// resolution owns its own instance; nothing is shared between resolutions.
type Resolution struct {
	fsm *fsm.FSM
	mu  sync.Mutex

	// stage the resolution was in when it failed or was cancelled
	lastActive string
}

// NewResolution creates a resolution in StageIdle. onTransition, if non-nil,
// is called after every successful transition.
func NewResolution(onTransition TransitionFunc) *Resolution {
	r := &Resolution{}
	r.fsm = fsm.NewFSM(
		StageIdle,
		fsm.Events{
			{Name: EventParse, Src: []string{StageIdle}, Dst: StageParseAddress},
			{Name: EventDiscover, Src: []string{StageParseAddress}, Dst: StageFetchMetadata},
			{Name: EventValidate, Src: []string{StageFetchMetadata}, Dst: StageValidateAmount},
			{Name: EventRequest, Src: []string{StageValidateAmount}, Dst: StageRequestInvoice},
			{Name: EventBuild, Src: []string{StageRequestInvoice}, Dst: StageBuildDescriptor},
			// The callback-only path completes straight after discovery.
			{Name: EventComplete, Src: []string{StageBuildDescriptor, StageFetchMetadata}, Dst: StageDone},
			{Name: EventFail, Src: activeStages, Dst: StageFailed},
			{Name: EventCancel, Src: activeStages, Dst: StageCancelled},
		},
		fsm.Callbacks{
			"leave_state": func(_ context.Context, e *fsm.Event) {
				if e.Dst == StageFailed || e.Dst == StageCancelled {
					r.lastActive = e.Src
				}
			},
			"enter_state": func(_ context.Context, e *fsm.Event) {
				if onTransition != nil {
					onTransition(e.Event, e.Src, e.Dst)
				}
			},
		},
	)
	return r
}

// Current returns the current stage.
func (r *Resolution) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fsm.Current()
}

// Event fires event against the current stage. Stage tracking is not
// subject to ctx cancellation.
func (r *Resolution) Event(ctx context.Context, event string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fsm.Event(context.WithoutCancel(ctx), event)
}

// Can reports whether event is allowed from the current stage.
func (r *Resolution) Can(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fsm.Can(event)
}

// Fail moves the resolution to StageFailed and returns the stage it failed
// in. Failing an already terminal resolution returns its current stage.
func (r *Resolution) Fail(ctx context.Context) string {
	return r.terminate(ctx, EventFail)
}

// Cancel moves the resolution to StageCancelled and returns the stage it
// was cancelled in.
func (r *Resolution) Cancel(ctx context.Context) string {
	return r.terminate(ctx, EventCancel)
}

func (r *Resolution) terminate(ctx context.Context, event string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.fsm.Current()
	if !r.fsm.Can(event) {
		return current
	}
	// The resolution's own context may already be cancelled here.
	if err := r.fsm.Event(context.WithoutCancel(ctx), event); err != nil {
		return current
	}
	return r.lastActive
}

// FailedIn returns the stage the resolution failed or was cancelled in, or
// "" if it has not.
func (r *Resolution) FailedIn() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActive
}
