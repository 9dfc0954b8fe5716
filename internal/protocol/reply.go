package protocol

import (
	"encoding/json"

	"github.com/nativebridge/engine/internal/bridgeerr"
)

// Reply is the decoded shape of a callback reply the host posts back in
// answer to a trampoline's intermediate response (spec.md §4.7 step 4):
// `{"id":funcID,"cbId":K,"values":[...]}`.
type Reply struct {
	ID      int32
	CbID    int32
	HasCbID bool
	Values  []json.RawMessage
}

type wireReply struct {
	ID     int32             `json:"id"`
	CbID   *int32            `json:"cbId,omitempty"`
	Values []json.RawMessage `json:"values"`
}

// ParseReply decodes raw as a callback reply. It does not require `cbId`
// to be present — a plain top-level request parses too, with HasCbID
// false, so trampoline.Pool.Invoke's dequeue loop can distinguish "this is
// not a reply at all" from "this is a reply for a different slot".
func ParseReply(raw []byte) (*Reply, error) {
	var w wireReply
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, bridgeerr.Wrap(bridgeerr.KindProtocolError, err, "malformed message")
	}
	r := &Reply{ID: w.ID, Values: w.Values}
	if w.CbID != nil {
		r.HasCbID = true
		r.CbID = *w.CbID
	}
	return r, nil
}
