package clips

import (
	"path/filepath"
	"strings"

	"github.com/ansel1/merry/v2"
	mapset "github.com/deckarep/golang-set/v2"
)

// MaxClipSize is the per-file ceiling enforced before any network call.
const MaxClipSize = 100 << 20 // 100 MiB

const acceptedLabel = "mp4, mov, avi, mkv, webm"

var (
	ErrInvalidType = merry.Sentinel("unsupported video container")
	ErrTooLarge    = merry.Sentinel("file exceeds size limit")
)

// allowedTypes mirrors the containers the processing service accepts.
var allowedTypes = mapset.NewSet(
	"video/mp4",
	"video/quicktime",
	"video/x-msvideo",
	"video/x-matroska",
	"video/webm",
)

var extTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
}

// Descriptor is what is known about a candidate file before its bytes are
// accepted: enough to validate without touching the stream.
type Descriptor struct {
	Name string
	Size int64
	Mime string
}

// DetectType resolves the effective container type for a candidate. The
// declared type wins when the uploader provided a usable one; otherwise the
// filename extension decides. Returns "" when neither identifies the file.
func DetectType(name, declared string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return extTypes[strings.ToLower(filepath.Ext(name))]
}

// Validate checks a candidate against the container allow-list and the size
// ceiling. The returned error carries a user message naming the file.
func Validate(d Descriptor) error {
	mime := DetectType(d.Name, d.Mime)
	if !allowedTypes.Contains(mime) {
		return merry.Wrap(ErrInvalidType,
			merry.WithUserMessagef("%s: invalid type, accepted containers are %s", d.Name, acceptedLabel))
	}
	if d.Size > MaxClipSize {
		return merry.Wrap(ErrTooLarge,
			merry.WithUserMessagef("%s: too large, the limit is 100 MiB per file", d.Name))
	}
	return nil
}
