package session

import (
	"bytes"
	"testing"

	"github.com/ansel1/merry/v2"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliproom/cliproom/clips"
	"github.com/cliproom/cliproom/utils/testutils"
)

func candidate(name string, size int) Candidate {
	return Candidate{
		Descriptor: clips.Descriptor{Name: name, Size: int64(size), Mime: clips.DetectType(name, "")},
		Body:       bytes.NewReader(testutils.Payload(size)),
	}
}

func listNames(l *MergeList) []string {
	return lo.Map(l.Clips(), func(h *clips.Handle, _ int) string {
		return h.Name
	})
}

func newList(t *testing.T, names ...string) *MergeList {
	l := NewMergeList(t.TempDir(), 20)
	batch := lo.Map(names, func(name string, _ int) Candidate {
		return candidate(name, 64)
	})
	accepted, rejected := l.Add(batch)
	require.Len(t, accepted, len(names))
	require.Empty(t, rejected)
	return l
}

func TestAddKeepsGoodCandidatesAroundABadOne(t *testing.T) {
	l := NewMergeList(t.TempDir(), 20)
	oversized := Candidate{
		Descriptor: clips.Descriptor{Name: "two.mp4", Size: clips.MaxClipSize + 1, Mime: "video/mp4"},
		Body:       bytes.NewReader(testutils.Payload(8)),
	}

	accepted, rejected := l.Add([]Candidate{
		candidate("one.mp4", 64),
		oversized,
		candidate("three.mp4", 64),
	})
	require.Len(t, accepted, 2)
	require.Len(t, rejected, 1)
	assert.Equal(t, "two.mp4", rejected[0].Name)
	assert.ErrorIs(t, rejected[0].Err, clips.ErrTooLarge)
	assert.Equal(t, []string{"one.mp4", "three.mp4"}, listNames(l))
}

func TestAddRejectsUnknownContainer(t *testing.T) {
	l := NewMergeList(t.TempDir(), 20)
	_, rejected := l.Add([]Candidate{{
		Descriptor: clips.Descriptor{Name: "notes.txt", Size: 10, Mime: "text/plain"},
		Body:       bytes.NewReader(testutils.Payload(10)),
	}})
	require.Len(t, rejected, 1)
	assert.ErrorIs(t, rejected[0].Err, clips.ErrInvalidType)
	assert.Equal(t, 0, l.Len())
}

func TestAddStopsAtCapacity(t *testing.T) {
	l := NewMergeList(t.TempDir(), 2)
	accepted, rejected := l.Add([]Candidate{
		candidate("a.mp4", 16),
		candidate("b.mp4", 16),
		candidate("c.mp4", 16),
	})
	assert.Len(t, accepted, 2)
	require.Len(t, rejected, 1)
	assert.ErrorIs(t, rejected[0].Err, ErrListFull)
	assert.Contains(t, merry.UserMessage(rejected[0].Err), "c.mp4")
}

func TestMoveReordersList(t *testing.T) {
	l := newList(t, "a.mp4", "b.mp4", "c.mp4", "d.mp4")
	assert.True(t, l.Move(2, 0))
	assert.Equal(t, []string{"c.mp4", "a.mp4", "b.mp4", "d.mp4"}, listNames(l))
}

func TestMoveUpAndDown(t *testing.T) {
	l := newList(t, "a.mp4", "b.mp4", "c.mp4")
	assert.True(t, l.MoveUp(1))
	assert.Equal(t, []string{"b.mp4", "a.mp4", "c.mp4"}, listNames(l))
	assert.True(t, l.MoveDown(1))
	assert.Equal(t, []string{"b.mp4", "c.mp4", "a.mp4"}, listNames(l))
}

func TestBoundaryMovesAreNoOps(t *testing.T) {
	l := newList(t, "a.mp4", "b.mp4")
	assert.False(t, l.MoveUp(0))
	assert.False(t, l.MoveDown(1))
	assert.False(t, l.Move(0, 5))
	assert.False(t, l.Move(-1, 0))
	assert.Equal(t, []string{"a.mp4", "b.mp4"}, listNames(l))
}

func TestRemoveReleasesSpooledFile(t *testing.T) {
	l := newList(t, "a.mp4", "b.mp4")
	removed := l.Clips()[0]
	require.True(t, removed.Spooled())

	assert.True(t, l.Remove(0))
	assert.False(t, removed.Spooled())
	assert.Equal(t, []string{"b.mp4"}, listNames(l))

	assert.False(t, l.Remove(7))
	assert.Equal(t, 1, l.Len())
}

func TestClearReleasesEverything(t *testing.T) {
	l := newList(t, "a.mp4", "b.mp4", "c.mp4")
	handles := l.Clips()

	l.Clear()
	assert.Equal(t, 0, l.Len())
	for _, h := range handles {
		assert.False(t, h.Spooled())
	}
}

func TestCanDispatchNeedsTwo(t *testing.T) {
	l := NewMergeList(t.TempDir(), 20)
	assert.False(t, l.CanDispatch())
	l.Add([]Candidate{candidate("a.mp4", 16)})
	assert.False(t, l.CanDispatch())
	l.Add([]Candidate{candidate("b.mp4", 16)})
	assert.True(t, l.CanDispatch())
}
