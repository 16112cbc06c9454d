// Package clips holds locally selected video files while a session works on
// them. Uploaded bytes are spooled to disk and addressed through opaque
// handles; a handle's spool file lives until the handle is released.
package clips

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ansel1/merry/v2"
	"github.com/google/uuid"
)

// Handle is an opaque reference to a selected clip. It is never mutated
// after creation; replacing a selection releases the old handle.
type Handle struct {
	ID   string
	Name string
	Size int64
	Mime string

	path string
}

// Spool writes the candidate's bytes to a fresh file under dir and returns
// the handle owning that file. Callers run Validate first; a stream that
// still exceeds the size ceiling aborts the spool.
func Spool(dir string, d Descriptor, r io.Reader) (*Handle, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	path := filepath.Join(dir, id+spoolExt(d.Name))

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	n, err := io.Copy(f, io.LimitReader(r, MaxClipSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > MaxClipSize {
		err = merry.Wrap(ErrTooLarge,
			merry.WithUserMessagef("%s: too large, the limit is 100 MiB per file", d.Name))
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	return &Handle{
		ID:   id,
		Name: d.Name,
		Size: n,
		Mime: DetectType(d.Name, d.Mime),
		path: path,
	}, nil
}

// Open returns a reader over the spooled bytes. The reader stays valid even
// if the handle is released while it is open.
func (h *Handle) Open() (io.ReadCloser, error) {
	return os.Open(h.path)
}

// Release deletes the spool file. Safe to call more than once; a reader
// opened before the release keeps working.
func (h *Handle) Release() {
	if h == nil {
		return
	}
	_ = os.Remove(h.path)
}

// Spooled reports whether the handle's file is still on disk.
func (h *Handle) Spooled() bool {
	if h == nil {
		return false
	}
	_, err := os.Stat(h.path)
	return err == nil
}

func spoolExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := extTypes[ext]; ok {
		return ext
	}
	return ".bin"
}
