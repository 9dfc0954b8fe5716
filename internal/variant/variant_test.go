package variant

import "testing"

func TestRefcountConservation(t *testing.T) {
	arr := NewArray()
	s1 := NewString([]byte("a"))
	s2 := NewString([]byte("b"))
	arr.ArraySet(0, s1)
	arr.ArraySet(1, s2)

	if got := s1.Refcount(); got != 1 {
		t.Fatalf("s1 refcount after ArraySet = %d, want 1 (ArraySet takes ownership, does not add)", got)
	}

	got, ok := arr.ArrayGet(0)
	if !ok {
		t.Fatal("ArrayGet(0) failed")
	}
	if got.Refcount() != 2 {
		t.Fatalf("refcount after ArrayGet = %d, want 2 (AddRef'd for caller)", got.Refcount())
	}
	Release(got)
	if s1.Refcount() != 1 {
		t.Fatalf("refcount after releasing the ArrayGet copy = %d, want 1", s1.Refcount())
	}

	Release(arr) // drops array's own ref, recursively releasing s1 and s2
	if s1.Refcount() != 0 {
		t.Fatalf("s1 refcount after array release = %d, want 0", s1.Refcount())
	}
}

func TestDictionaryOrderingAndDelete(t *testing.T) {
	d := NewDictionary()
	d.DictSet("b", NewInt32(2))
	d.DictSet("a", NewInt32(1))
	d.DictSet("c", NewInt32(3))

	keys := d.DictKeys()
	want := []string{"b", "a", "c"}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("DictKeys()[%d] = %q, want %q", i, keys[i], k)
		}
	}

	if !d.DictHasKey("a") {
		t.Fatal("expected key a to be present")
	}
	if !d.DictDelete("a") {
		t.Fatal("DictDelete(a) failed")
	}
	if d.DictHasKey("a") {
		t.Fatal("key a should be gone after delete")
	}
	keys = d.DictKeys()
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "c" {
		t.Fatalf("unexpected keys after delete: %v", keys)
	}
}

func TestMarshalRoundTripScalars(t *testing.T) {
	cases := []Variant{
		NewNull(),
		NewBool(true),
		NewInt32(-42),
		NewDouble(3.5),
		NewString([]byte("hello")),
	}
	for _, v := range cases {
		data, err := Marshal(v)
		if err != nil {
			t.Fatalf("Marshal(%v) error: %v", v.Kind(), err)
		}
		back, err := Unmarshal(data)
		if err != nil {
			t.Fatalf("Unmarshal(%s) error: %v", data, err)
		}
		if back.Kind() == String && v.Kind() == String {
			if string(back.Bytes()) != string(v.Bytes()) {
				t.Fatalf("string round trip mismatch: got %q want %q", back.Bytes(), v.Bytes())
			}
			continue
		}
		if back.Kind() != v.Kind() {
			t.Fatalf("round trip kind mismatch: got %s want %s", back.Kind(), v.Kind())
		}
	}
}

func TestMarshalInt64Tuple(t *testing.T) {
	v := NewInt64(1049600)
	data, err := Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `["long",1049600,0]` {
		t.Fatalf("got %s, want [\"long\",1049600,0]", data)
	}
	back, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if back.Int64() != 1049600 {
		t.Fatalf("round trip int64 = %d, want 1049600", back.Int64())
	}
}

func TestMarshalInt64NegativeHi(t *testing.T) {
	// A value whose upper 32 bits are sign-extended, per spec.md §6:
	// "hi is the sign-extended upper 32 bits".
	v := NewInt64(-1)
	data, err := Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `["long",-1,-1]` {
		t.Fatalf("got %s, want [\"long\",-1,-1]", data)
	}
	back, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if back.Int64() != -1 {
		t.Fatalf("round trip int64 = %d, want -1", back.Int64())
	}
}

func TestMarshalArrayBuffer(t *testing.T) {
	v := NewArrayBufferFromBytes([]byte{1, 2, 3})
	data, err := Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	back, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if back.Kind() != ArrayBuffer {
		t.Fatalf("round trip kind = %s, want arraybuffer", back.Kind())
	}
	gotBytes := back.Bytes()
	if len(gotBytes) != 3 || gotBytes[0] != 1 || gotBytes[1] != 2 || gotBytes[2] != 3 {
		t.Fatalf("round trip bytes = %v, want [1 2 3]", gotBytes)
	}
}
