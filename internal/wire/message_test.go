package wire

import (
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestParseAndFieldAccessors(t *testing.T) {
	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.VarintType)
	buf = protowire.AppendVarint(buf, 12345)
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendString(buf, "de_dust2")
	buf = protowire.AppendTag(buf, 3, protowire.Fixed32Type)
	buf = protowire.AppendFixed32(buf, 0x3F800000) // 1.0f
	buf = protowire.AppendTag(buf, 4, protowire.Fixed64Type)
	buf = protowire.AppendFixed64(buf, 0xDEADBEEF)
	buf = protowire.AppendTag(buf, 5, protowire.VarintType)
	buf = protowire.AppendVarint(buf, 1)

	m, err := Parse(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v, ok := m.Varint(1); !ok || v != 12345 {
		t.Fatalf("Varint(1): got %d, ok=%v", v, ok)
	}
	if s, ok := m.String(2); !ok || s != "de_dust2" {
		t.Fatalf("String(2): got %q, ok=%v", s, ok)
	}
	if f, ok := m.Float32(3); !ok || f != 1.0 {
		t.Fatalf("Float32(3): got %v, ok=%v", f, ok)
	}
	if v, ok := m.Fixed64(4); !ok || v != 0xDEADBEEF {
		t.Fatalf("Fixed64(4): got %x, ok=%v", v, ok)
	}
	if b, ok := m.Bool(5); !ok || !b {
		t.Fatalf("Bool(5): got %v, ok=%v", b, ok)
	}
	if _, ok := m.Varint(99); ok {
		t.Fatal("expected no match for an absent field number")
	}
}

func TestInt32NarrowsVarint(t *testing.T) {
	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(uint32(int32(-1))))

	m, err := Parse(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := m.Int32(1); !ok || v != -1 {
		t.Fatalf("got %d, ok=%v", v, ok)
	}
}

func TestRepeatedCollectsAllMatchingBytesFields(t *testing.T) {
	var buf []byte
	buf = protowire.AppendTag(buf, 7, protowire.BytesType)
	buf = protowire.AppendBytes(buf, []byte("a"))
	buf = protowire.AppendTag(buf, 7, protowire.BytesType)
	buf = protowire.AppendBytes(buf, []byte("b"))
	buf = protowire.AppendTag(buf, 7, protowire.BytesType)
	buf = protowire.AppendBytes(buf, []byte("c"))

	m, err := Parse(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := m.Repeated(7)
	if len(got) != 3 || string(got[0]) != "a" || string(got[1]) != "b" || string(got[2]) != "c" {
		t.Fatalf("got %v", got)
	}
}

func TestParseRejectsTruncatedTail(t *testing.T) {
	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.BytesType)
	buf = protowire.AppendVarint(buf, 10) // length prefix claims 10 bytes, none follow

	if _, err := Parse(buf); err == nil {
		t.Fatal("expected an error for a length-delimited field whose body is truncated")
	}
}

func TestOpcodeNameKnownAndUnknown(t *testing.T) {
	if got := OpcodeName(SvcPacketEntities); got != "svc_PacketEntities" {
		t.Fatalf("got %q", got)
	}
	if got := OpcodeName(999); got != "unknown" {
		t.Fatalf("got %q, want the fallback label", got)
	}
}
