package session

import (
	"io"
	"slices"

	"github.com/ansel1/merry/v2"

	"github.com/cliproom/cliproom/clips"
)

// Candidate is one incoming file for a merge batch.
type Candidate struct {
	Descriptor clips.Descriptor
	Body       io.Reader
}

// AddError names a candidate that fell out of a batch and why.
type AddError struct {
	Name string
	Err  error
}

var ErrListFull = merry.Sentinel("the merge list is full")

// MergeList is the ordered batch for a merge. The slice order is the order
// the clips are concatenated in; positions are 0-based and contiguous.
type MergeList struct {
	spoolDir string
	max      int
	clips    []*clips.Handle
}

func NewMergeList(spoolDir string, max int) *MergeList {
	return &MergeList{
		spoolDir: spoolDir,
		max:      max,
	}
}

// Add validates and spools each candidate in presented order. Candidates
// that fail validation or would push the list past capacity are reported
// individually; one bad file never sinks the rest of the batch.
func (l *MergeList) Add(batch []Candidate) ([]*clips.Handle, []AddError) {
	var accepted []*clips.Handle
	var rejected []AddError
	for _, candidate := range batch {
		handle, err := l.add(candidate)
		if err != nil {
			rejected = append(rejected, AddError{Name: candidate.Descriptor.Name, Err: err})
			continue
		}
		accepted = append(accepted, handle)
	}
	return accepted, rejected
}

func (l *MergeList) add(candidate Candidate) (*clips.Handle, error) {
	if err := clips.Validate(candidate.Descriptor); err != nil {
		return nil, err
	}
	if len(l.clips) >= l.max {
		return nil, merry.Wrap(ErrListFull,
			merry.WithUserMessagef("%s: the merge list is limited to %d clips", candidate.Descriptor.Name, l.max))
	}
	handle, err := clips.Spool(l.spoolDir, candidate.Descriptor, candidate.Body)
	if err != nil {
		return nil, err
	}
	l.clips = append(l.clips, handle)
	return handle, nil
}

// Remove deletes the clip at index and releases its spooled file.
// Out-of-range indexes are a no-op.
func (l *MergeList) Remove(index int) bool {
	if index < 0 || index >= len(l.clips) {
		return false
	}
	l.clips[index].Release()
	l.clips = append(l.clips[:index], l.clips[index+1:]...)
	return true
}

// Move takes the clip at from and reinserts it at to, shifting the clips in
// between. Out-of-range indexes and moves that change nothing are no-ops.
func (l *MergeList) Move(from, to int) bool {
	if from < 0 || from >= len(l.clips) || to < 0 || to >= len(l.clips) || from == to {
		return false
	}
	moved := l.clips[from]
	l.clips = append(l.clips[:from], l.clips[from+1:]...)
	l.clips = slices.Insert(l.clips, to, moved)
	return true
}

// MoveUp moves the clip one position toward the front of the list.
func (l *MergeList) MoveUp(index int) bool {
	return l.Move(index, index-1)
}

// MoveDown moves the clip one position toward the back.
func (l *MergeList) MoveDown(index int) bool {
	return l.Move(index, index+1)
}

// CanDispatch reports whether the list is big enough to merge.
func (l *MergeList) CanDispatch() bool {
	return len(l.clips) >= 2
}

func (l *MergeList) Len() int {
	return len(l.clips)
}

// Clips returns the list in merge order.
func (l *MergeList) Clips() []*clips.Handle {
	return slices.Clone(l.clips)
}

// Clear releases every spooled file and empties the list.
func (l *MergeList) Clear() {
	for _, handle := range l.clips {
		handle.Release()
	}
	l.clips = nil
}
