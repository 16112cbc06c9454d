// Package session owns the editing state of one browser tab: the selected
// clip with its trim window, the ordered merge list, the per-mode operation
// slots, and the registry keeping live sessions around until they idle out.
package session

import (
	"encoding/json"

	"github.com/ansel1/merry/v2"
	"github.com/orsinium-labs/enum"
)

type Mode enum.Member[string]

//goland:noinspection GoMixedReceiverTypes
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Value)
}

//goland:noinspection GoMixedReceiverTypes
func (m *Mode) UnmarshalJSON(value []byte) error {
	var stringValue string
	err := json.Unmarshal(value, &stringValue)
	if err != nil {
		return err
	}
	mode := Modes.Parse(stringValue)
	if mode == nil {
		return ErrModeNotFound
	}
	*m = *mode
	return nil
}

var (
	ModeSingle      = Mode{Value: "single"}
	ModeMerge       = Mode{Value: "merge"}
	Modes           = enum.New(ModeSingle, ModeMerge)
	ErrModeNotFound = merry.Sentinel("editing mode not found")
)
