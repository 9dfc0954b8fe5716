package protocol

import (
	"testing"

	"github.com/nativebridge/engine/internal/bridgeerr"
	"github.com/nativebridge/engine/internal/handle"
)

func TestParseBasicFunctionHandleRegistration(t *testing.T) {
	tbl := handle.New()
	req, err := Parse([]byte(`{"id":1,"set":{"1":["function",2]}}`), tbl)
	if err != nil {
		t.Fatal(err)
	}
	if req.ID != 1 {
		t.Fatalf("req.ID = %d, want 1", req.ID)
	}
	fid, err := tbl.GetFuncID(1)
	if err != nil || fid != 2 {
		t.Fatalf("handle 1 func id = %v, %v, want 2, nil", fid, err)
	}
}

func TestParseCommandsGetDestroy(t *testing.T) {
	tbl := handle.New()
	req, err := Parse([]byte(`{"id":1,"set":{"1":["function",2]},"commands":[{"id":0,"args":[1],"ret":2}],"get":[2],"destroy":[1,2]}`), tbl)
	if err != nil {
		t.Fatal(err)
	}
	if len(req.Commands) != 1 || req.Commands[0].ID != 0 || len(req.Commands[0].Args) != 1 || req.Commands[0].Args[0] != 1 {
		t.Fatalf("unexpected commands: %+v", req.Commands)
	}
	if req.Commands[0].Ret == nil || *req.Commands[0].Ret != 2 {
		t.Fatalf("unexpected ret: %+v", req.Commands[0].Ret)
	}
	if len(req.Get) != 1 || req.Get[0] != 2 {
		t.Fatalf("unexpected get: %v", req.Get)
	}
	if len(req.Destroy) != 2 {
		t.Fatalf("unexpected destroy: %v", req.Destroy)
	}
}

func TestParseRollsBackSetOnLaterFailure(t *testing.T) {
	tbl := handle.New()
	_, err := Parse([]byte(`{"id":1,"set":{"1":["int32",5],"2":["bogus",1]}}`), tbl)
	if err == nil {
		t.Fatal("expected parse error for unknown type tag")
	}
	if tbl.Len() != 0 {
		t.Fatalf("handle table has %d live handles after rollback, want 0", tbl.Len())
	}
}

func TestParseMissingIDFails(t *testing.T) {
	tbl := handle.New()
	_, err := Parse([]byte(`{"set":{}}`), tbl)
	if bridgeerr.KindOf(err) != bridgeerr.KindProtocolError {
		t.Fatalf("expected KindProtocolError, got %v", err)
	}
}

func TestParseOutOfRangeScalarFails(t *testing.T) {
	tbl := handle.New()
	_, err := Parse([]byte(`{"id":1,"set":{"1":["int8",500]}}`), tbl)
	if bridgeerr.KindOf(err) != bridgeerr.KindTypeMismatch {
		t.Fatalf("expected KindTypeMismatch for out-of-range int8, got %v", err)
	}
}

func TestEncodeHandleValueScalarsAndFunction(t *testing.T) {
	tbl := handle.New()
	tbl.RegisterInt32(1, 42)
	tbl.RegisterFuncID(2, 7)

	raw, err := EncodeHandleValue(tbl, 1)
	if err != nil || string(raw) != "42" {
		t.Fatalf("EncodeHandleValue(int32) = %s, %v, want 42, nil", raw, err)
	}

	raw, err = EncodeHandleValue(tbl, 2)
	if err != nil || string(raw) != `["function",7]` {
		t.Fatalf(`EncodeHandleValue(func) = %s, %v, want ["function",7], nil`, raw, err)
	}
}

func TestResponseEncodeNormalCallbackError(t *testing.T) {
	r := NewResponse(1)
	r.AddValue([]byte("21"))
	if got, want := string(r.Encode()), `{"id":1,"values":[21]}`; got != want {
		t.Fatalf("normal encode = %s, want %s", got, want)
	}

	cb := NewCallbackResponse(2, 1)
	cb.AddValue([]byte("10"))
	if got, want := string(cb.Encode()), `{"id":2,"cbId":1,"values":[10]}`; got != want {
		t.Fatalf("callback encode = %s, want %s", got, want)
	}

	errResp := NewResponse(1)
	errResp.SetError(bridgeerr.New(bridgeerr.KindTypeMismatch, "boom"))
	if got, want := string(errResp.Encode()), `{"id":1,"error":"boom"}`; got != want {
		t.Fatalf("error encode = %s, want %s", got, want)
	}
}
