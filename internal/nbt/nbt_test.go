package nbt

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// buildCompound encodes {foo: List[String("bar")], baz: Byte_Array([0])} as
// a full NBT document (root Compound named "").
func buildCompound(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteByte(tagCompound)
	writeName(&buf, "")

	// foo: List[String]
	buf.WriteByte(tagList)
	writeName(&buf, "foo")
	buf.WriteByte(tagString)
	writeU32(&buf, 1)
	writeName(&buf, "bar")

	// baz: Byte_Array([0])
	buf.WriteByte(tagByteArray)
	writeName(&buf, "baz")
	writeU32(&buf, 1)
	buf.WriteByte(0)

	buf.WriteByte(tagEnd)
	return buf.Bytes()
}

func writeName(buf *bytes.Buffer, s string) {
	writeU16(buf, len(s))
	buf.WriteString(s)
}

func writeU16(buf *bytes.Buffer, n int) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(n))
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, n int) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(n))
	buf.Write(b[:])
}

func TestParseRoundTrip(t *testing.T) {
	full := buildCompound(t)
	got, err := Parse(full, Unspecified)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := map[string]RawValue{
		"foo": []RawValue{[]byte("bar")},
		"baz": []byte{0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse(full) mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTruncationIsUnexpectedEof(t *testing.T) {
	full := buildCompound(t)
	for _, test := range []struct {
		desc string
		n    int
	}{
		{desc: "empty", n: 0},
		{desc: "only root tag id", n: 1},
		{desc: "cut mid name", n: 2},
		{desc: "cut before closing End", n: len(full) - 1},
	} {
		t.Run(test.desc, func(t *testing.T) {
			prefix := full[:test.n]
			_, err := Compare(prefix, full, false)
			var nerr *Error
			if !errorsAs(err, &nerr) {
				t.Fatalf("Compare(prefix[:%d], full) = %v, want *nbt.Error", test.n, err)
			}
			if nerr.Kind != UnexpectedEof {
				t.Errorf("Kind = %v, want UnexpectedEof", nerr.Kind)
			}
			if nerr.Side != LeftBlob {
				t.Errorf("Side = %v, want LeftBlob", nerr.Side)
			}
		})
	}
}

func errorsAs(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}

func TestCompareChunkIgnoresLastUpdate(t *testing.T) {
	for _, test := range []struct {
		desc  string
		left  map[string]RawValue
		right map[string]RawValue
		want  bool
	}{
		{
			desc:  "same LastUpdate",
			left:  map[string]RawValue{"LastUpdate": []byte{0, 0, 0, 1}, "hello": []byte("world")},
			right: map[string]RawValue{"LastUpdate": []byte{0, 0, 0, 1}, "hello": []byte("world")},
			want:  true,
		},
		{
			desc:  "different LastUpdate, same otherwise",
			left:  map[string]RawValue{"LastUpdate": []byte{0, 0, 0, 1}, "hello": []byte("world")},
			right: map[string]RawValue{"LastUpdate": []byte{0, 0, 0, 2}, "hello": []byte("world")},
			want:  true,
		},
		{
			desc:  "different content",
			left:  map[string]RawValue{"LastUpdate": []byte{0, 0, 0, 1}, "hello": []byte("world")},
			right: map[string]RawValue{"LastUpdate": []byte{0, 0, 0, 1}, "hello": []byte("there")},
			want:  false,
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			if got := CompareChunk(test.left, test.right); got != test.want {
				t.Errorf("CompareChunk() = %v, want %v", got, test.want)
			}
		})
	}
}
