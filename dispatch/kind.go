// Package dispatch launches processing operations against the external
// service and hands back a future-style handle per operation. Exactly one
// goroutine owns each exchange; callers watch the task instead of the wire.
package dispatch

import (
	"encoding/json"

	"github.com/ansel1/merry/v2"
	"github.com/orsinium-labs/enum"
)

type Kind enum.Member[string]

//goland:noinspection GoMixedReceiverTypes
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.Value)
}

//goland:noinspection GoMixedReceiverTypes
func (k *Kind) UnmarshalJSON(value []byte) error {
	var stringValue string
	err := json.Unmarshal(value, &stringValue)
	if err != nil {
		return err
	}
	kind := Kinds.Parse(stringValue)
	if kind == nil {
		return ErrKindNotFound
	}
	*k = *kind
	return nil
}

var (
	KindConvert     = Kind{Value: "convert"}
	KindTrim        = Kind{Value: "trim"}
	KindMerge       = Kind{Value: "merge"}
	Kinds           = enum.New(KindConvert, KindTrim, KindMerge)
	ErrKindNotFound = merry.Sentinel("operation kind not found")
)
