package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/ansel1/merry/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/cliproom/cliproom/clips"
	"github.com/cliproom/cliproom/dispatch"
	"github.com/cliproom/cliproom/services/processor"
)

var (
	ErrNoClip         = merry.Sentinel("no clip is loaded")
	ErrNoTrimRange    = merry.Sentinel("no trim range selected")
	ErrNotEnoughClips = merry.Sentinel("merging needs at least two clips")
	ErrBusy           = merry.Sentinel("an operation is already running")
)

// slot is one mode's operation record: the single outstanding operation for
// that mode, plus the last outcome still on display. settled closes once the
// outstanding operation's outcome has been applied or discarded.
type slot struct {
	busy       bool
	opID       string
	generation uint64
	result     *dispatch.Result
	errMessage string
	settled    chan struct{}
}

// Session composes the trim state and the merge list under one mode
// discriminator. Methods are safe for concurrent use; a dispatch is the only
// work that outlives its call, and its outcome flows back in through the
// task's continuation.
type Session struct {
	ID        string
	CreatedAt time.Time

	dispatcher *dispatch.Dispatcher
	spoolDir   string
	logger     zerolog.Logger

	mu        sync.Mutex
	closed    bool
	mode      Mode
	clip      *clips.Handle
	trim      TrimWindow
	list      *MergeList
	singleGen uint64
	mergeGen  uint64
	single    slot
	merge     slot
}

func NewSession(id string, dispatcher *dispatch.Dispatcher, spoolDir string, maxMergeClips int) *Session {
	return &Session{
		ID:         id,
		CreatedAt:  time.Now(),
		dispatcher: dispatcher,
		spoolDir:   spoolDir,
		logger:     log.With().Str("component", "session").Str("session", id).Logger(),
		mode:       ModeSingle,
		list:       NewMergeList(spoolDir, maxMergeClips),
	}
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches the editing mode. The inactive mode's state stays as it
// is; it is merely not rendered until the user switches back.
func (s *Session) SetMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}

// SelectClip validates and spools an uploaded file as the single-mode clip.
// A previous selection is released, the trim window resets, and any
// single-mode outcome still on display is dropped. A closed session refuses
// the clip and releases it again, so an upload racing the session's close
// never leaves a spooled file behind.
func (s *Session) SelectClip(d clips.Descriptor, r io.Reader) (*clips.Handle, error) {
	if err := clips.Validate(d); err != nil {
		return nil, err
	}
	handle, err := clips.Spool(s.spoolDir, d, r)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		handle.Release()
		return nil, merry.Wrap(ErrNotFound)
	}
	if s.clip != nil {
		s.clip.Release()
	}
	s.clip = handle
	s.trim.Reset()
	s.touchSingleLocked()
	return handle, nil
}

// ClearClip drops and releases the selection. A no-op without one.
func (s *Session) ClearClip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clip == nil {
		return
	}
	s.clip.Release()
	s.clip = nil
	s.trim.Reset()
	s.touchSingleLocked()
}

// SetClipDuration records the duration the presentation layer read from the
// clip's metadata, initializing the trim window to the full clip.
func (s *Session) SetClipDuration(d float64) (Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clip == nil {
		return Window{}, merry.Wrap(ErrNoClip)
	}
	return s.trim.SetDuration(d), nil
}

func (s *Session) SetTrimStart(v float64) (Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clip == nil {
		return Window{}, merry.Wrap(ErrNoClip)
	}
	return s.trim.SetStart(v), nil
}

func (s *Session) SetTrimEnd(v float64) (Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clip == nil {
		return Window{}, merry.Wrap(ErrNoClip)
	}
	return s.trim.SetEnd(v), nil
}

// AddMergeClips runs a batch add against the merge list. Accepting anything
// invalidates whatever merge outcome was on display. A closed session
// refuses the batch before anything is spooled.
func (s *Session) AddMergeClips(batch []Candidate) ([]*clips.Handle, []AddError, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil, merry.Wrap(ErrNotFound)
	}
	accepted, rejected := s.list.Add(batch)
	if len(accepted) > 0 {
		s.touchMergeLocked()
	}
	return accepted, rejected, nil
}

func (s *Session) RemoveMergeClip(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.list.Remove(index)
	if removed {
		s.touchMergeLocked()
	}
	return removed
}

func (s *Session) MoveMergeClip(from, to int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	moved := s.list.Move(from, to)
	if moved {
		s.touchMergeLocked()
	}
	return moved
}

func (s *Session) MoveMergeClipUp(index int) bool {
	return s.MoveMergeClip(index, index-1)
}

func (s *Session) MoveMergeClipDown(index int) bool {
	return s.MoveMergeClip(index, index+1)
}

// DispatchConvert ships the selected clip off for grayscale conversion. The
// trim window rides along only when it actually narrows the clip.
func (s *Session) DispatchConvert() (*dispatch.Task[*processor.ProcessResult], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clip == nil {
		return nil, merry.Wrap(ErrNoClip)
	}
	if s.single.busy {
		return nil, merry.Wrap(ErrBusy)
	}
	body, err := s.clip.Open()
	if err != nil {
		return nil, merry.Wrap(err)
	}

	task := s.dispatcher.StartConvert(dispatch.Source{Name: s.clip.Name, Body: body}, s.trim.NarrowedBounds())
	s.markBusyLocked(ModeSingle, task)
	return task, nil
}

// DispatchTrim ships the selected clip off to be cut to the window. Refused
// locally until the clip's duration is known.
func (s *Session) DispatchTrim() (*dispatch.Task[*processor.ProcessResult], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clip == nil {
		return nil, merry.Wrap(ErrNoClip)
	}
	if !s.trim.Initialized() {
		return nil, merry.Wrap(ErrNoTrimRange)
	}
	if s.single.busy {
		return nil, merry.Wrap(ErrBusy)
	}
	body, err := s.clip.Open()
	if err != nil {
		return nil, merry.Wrap(err)
	}

	task := s.dispatcher.StartTrim(dispatch.Source{Name: s.clip.Name, Body: body}, s.trim.Bounds())
	s.markBusyLocked(ModeSingle, task)
	return task, nil
}

// DispatchMerge ships the merge list off in order. Refused locally with
// fewer than two clips, before any stream is opened.
func (s *Session) DispatchMerge() (*dispatch.Task[*processor.ProcessResult], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.list.CanDispatch() {
		return nil, merry.Wrap(ErrNotEnoughClips)
	}
	if s.merge.busy {
		return nil, merry.Wrap(ErrBusy)
	}

	handles := s.list.Clips()
	sources := make([]dispatch.Source, 0, len(handles))
	for _, handle := range handles {
		body, err := handle.Open()
		if err != nil {
			for _, source := range sources {
				_ = source.Body.Close()
			}
			return nil, merry.Wrap(err)
		}
		sources = append(sources, dispatch.Source{Name: handle.Name, Body: body})
	}

	task := s.dispatcher.StartMerge(sources)
	s.markBusyLocked(ModeMerge, task)
	return task, nil
}

// Close releases everything the session holds. Idempotent; an in-flight
// operation keeps its already-opened streams and its outcome is discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.clip != nil {
		s.clip.Release()
		s.clip = nil
	}
	s.trim.Reset()
	s.list.Clear()
	s.singleGen++
	s.mergeGen++
}

// markBusyLocked flips the mode's slot to Busy for this task, snapshotting
// the mode's generation and optimistically clearing the displayed outcome.
func (s *Session) markBusyLocked(mode Mode, task *dispatch.Task[*processor.ProcessResult]) {
	sl := s.slotForLocked(mode)
	sl.busy = true
	sl.opID = task.ID
	sl.generation = s.generationLocked(mode)
	sl.result = nil
	sl.errMessage = ""
	settled := make(chan struct{})
	sl.settled = settled
	go func() {
		s.applyOutcome(mode, task)
		close(settled)
	}()
}

// AwaitSettled blocks until the mode's outstanding operation has flowed back
// into its slot, or ctx gives up. Returns right away when nothing is
// outstanding.
func (s *Session) AwaitSettled(ctx context.Context, mode Mode) error {
	s.mu.Lock()
	settled := s.slotForLocked(mode).settled
	s.mu.Unlock()
	if settled == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-settled:
		return nil
	}
}

// applyOutcome waits for the task and writes its outcome into the owning
// mode's slot, unless the mode's inputs changed underneath it, in which case
// the outcome is discarded entirely.
func (s *Session) applyOutcome(mode Mode, task *dispatch.Task[*processor.ProcessResult]) {
	result, err := task.Result(context.Background())

	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.slotForLocked(mode)
	if sl.opID != task.ID {
		return
	}
	sl.busy = false
	if sl.generation != s.generationLocked(mode) {
		s.logger.Debug().Str("op", task.ID).Msg("discarding stale operation outcome")
		return
	}
	if err != nil {
		sl.errMessage = displayMessage(err)
		return
	}
	sl.result = dispatch.NewResult(task.Kind, result)
}

func (s *Session) slotForLocked(mode Mode) *slot {
	if mode == ModeMerge {
		return &s.merge
	}
	return &s.single
}

func (s *Session) generationLocked(mode Mode) uint64 {
	if mode == ModeMerge {
		return s.mergeGen
	}
	return s.singleGen
}

// touchSingleLocked marks the single-mode inputs as changed: the generation
// moves on and the displayed outcome no longer applies.
func (s *Session) touchSingleLocked() {
	s.singleGen++
	s.single.result = nil
	s.single.errMessage = ""
}

func (s *Session) touchMergeLocked() {
	s.mergeGen++
	s.merge.result = nil
	s.merge.errMessage = ""
}

// displayMessage is what the presentation layer shows for a failed
// operation: the service's own words when it gave any, a generic line
// otherwise.
func displayMessage(err error) string {
	if msg := merry.UserMessage(err); msg != "" {
		return msg
	}
	if errors.Is(err, processor.ErrUnreachable) {
		return "processing service unreachable"
	}
	return "processing failed"
}

// ClipInfo is the wire shape of one held clip.
type ClipInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Mime string `json:"mime"`
}

// OperationState is the active mode's slot as the presentation layer sees
// it.
type OperationState struct {
	Busy   bool             `json:"busy"`
	OpID   string           `json:"opID,omitempty"`
	Result *dispatch.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// State is the full session DTO. Only the active mode's operation slot is
// rendered; the other mode keeps its state off-screen.
type State struct {
	ID        string         `json:"id"`
	Mode      Mode           `json:"mode"`
	Clip      *ClipInfo      `json:"clip,omitempty"`
	Trim      *Window        `json:"trim,omitempty"`
	MergeList []ClipInfo     `json:"mergeList"`
	Operation OperationState `json:"operation"`
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	state := State{
		ID:   s.ID,
		Mode: s.mode,
		MergeList: lo.Map(s.list.Clips(), func(handle *clips.Handle, _ int) ClipInfo {
			return clipInfo(handle)
		}),
	}
	if s.clip != nil {
		info := clipInfo(s.clip)
		state.Clip = &info
		if s.trim.Initialized() {
			window := s.trim.Window()
			state.Trim = &window
		}
	}
	active := s.slotForLocked(s.mode)
	state.Operation = OperationState{
		Busy:   active.busy,
		OpID:   active.opID,
		Result: active.result,
		Error:  active.errMessage,
	}
	return state
}

func clipInfo(handle *clips.Handle) ClipInfo {
	return ClipInfo{
		ID:   handle.ID,
		Name: handle.Name,
		Size: handle.Size,
		Mime: handle.Mime,
	}
}
