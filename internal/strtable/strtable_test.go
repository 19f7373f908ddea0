package strtable

import (
	"testing"

	"github.com/icza/demo/internal/bitread"
	"github.com/icza/demo/internal/players"
)

// bitWriter packs bits LSB-first, matching bitread.Reader's convention.
type bitWriter struct {
	bits []byte
}

func (w *bitWriter) bit(v uint32) { w.bits = append(w.bits, byte(v&1)) }

func (w *bitWriter) ubits(v uint32, n int) {
	for i := 0; i < n; i++ {
		w.bit(v >> uint(i))
	}
}

func (w *bitWriter) str(s string) {
	for i := 0; i < len(s); i++ {
		w.ubits(uint32(s[i]), 8)
	}
	w.ubits(0, 8) // NUL terminator
}

func (w *bitWriter) bytes() []byte {
	out := make([]byte, (len(w.bits)+7)/8)
	for i, b := range w.bits {
		if b != 0 {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

func TestApplyUpdateRejectsDictionaryEncoded(t *testing.T) {
	w := &bitWriter{}
	w.bit(1) // dictionary-encoded flag set
	tab := NewTable("test", 16, false, 0, 0, false, nil)
	err := tab.ApplyUpdate(w.bytes(), 1)
	if err != ErrUnsupportedEncoding {
		t.Fatalf("got %v, want ErrUnsupportedEncoding", err)
	}
}

func TestApplyUpdateDecodesOneEntry(t *testing.T) {
	w := &bitWriter{}
	w.bit(0) // not dictionary-encoded
	w.bit(0) // index: not explicit, use lastIndex+1 (= 0)
	w.bit(1) // has string
	w.bit(0) // not a substring
	w.str("player_one")
	w.bit(0) // no user data

	tab := NewTable("test", 16, false, 0, 0, false, nil)
	if err := tab.ApplyUpdate(w.bytes(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries := tab.Entries()
	if len(entries) != 1 || entries[0] == nil {
		t.Fatalf("expected one entry, got %+v", entries)
	}
	if entries[0].Str != "player_one" {
		t.Fatalf("got %q, want %q", entries[0].Str, "player_one")
	}
}

func TestHistoryRingSubstringBackreference(t *testing.T) {
	w := &bitWriter{}
	w.bit(0) // not dictionary-encoded

	// Entry 0: literal string, pushed to history.
	w.bit(0) // index implicit (0)
	w.bit(1) // has string
	w.bit(0) // not substring
	w.str("de_dust2")
	w.bit(0) // no user data

	// Entry 1: references entry 0's history slot with a 0-byte prefix,
	// appending a literal suffix — this should reconstruct to the suffix
	// alone plus nothing from the prefix since prefixLen is 0.
	w.bit(0) // index implicit (1)
	w.bit(1) // has string
	w.bit(1) // is substring
	w.ubits(0, 5) // history index 0 (oldest, and so far the only entry)
	w.ubits(0, 5) // prefix length 0
	w.str("_suffix")
	w.bit(0) // no user data

	tab := NewTable("test", 16, false, 0, 0, false, nil)
	if err := tab.ApplyUpdate(w.bytes(), 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries := tab.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Str != "de_dust2" {
		t.Fatalf("entry 0: got %q", entries[0].Str)
	}
	if entries[1].Str != "_suffix" {
		t.Fatalf("entry 1: got %q, want %q", entries[1].Str, "_suffix")
	}
}

// TestHistoryRingAdvancesOnEntryWithNoString reproduces a has-string=0
// entry (e.g. a user-data-only update) sitting between two string
// entries: the ring must still advance for it with an empty slot, or the
// later substring back-reference resolves against the wrong history
// index.
func TestHistoryRingAdvancesOnEntryWithNoString(t *testing.T) {
	w := &bitWriter{}
	w.bit(0) // not dictionary-encoded

	// Entry 0: literal string, pushed to history.
	w.bit(0) // index implicit (0)
	w.bit(1) // has string
	w.bit(0) // not substring
	w.str("de_dust2")
	w.bit(0) // no user data

	// Entry 1: no string at all (has-string=0) and no user data — the
	// ring must still advance, pushing "" for this slot.
	w.bit(0) // index implicit (1)
	w.bit(0) // no string
	w.bit(0) // no user data

	// Entry 2: literal string; it lands in history index 2 only if entry
	// 1 advanced the ring.
	w.bit(0) // index implicit (2)
	w.bit(1) // has string
	w.bit(0) // not substring
	w.str("cs_office")
	w.bit(0) // no user data

	// Entry 3: substring referencing history index 2 (oldest-first: 0 is
	// entry 0's string, 1 is entry 1's "", 2 is entry 2's string).
	w.bit(0) // index implicit (3)
	w.bit(1) // has string
	w.bit(1) // is substring
	w.ubits(2, 5) // history index 2
	w.ubits(9, substringBits) // prefix length 9 ("cs_office")
	w.str("_new")
	w.bit(0) // no user data

	tab := NewTable("test", 16, false, 0, 0, false, nil)
	if err := tab.ApplyUpdate(w.bytes(), 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries := tab.Entries()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if entries[3].Str != "cs_office_new" {
		t.Fatalf("got %q, want %q", entries[3].Str, "cs_office_new")
	}
}

func TestUserInfoTablePopulatesPlayerRegistry(t *testing.T) {
	reg := players.New()
	tab := NewTable("userinfo", 16, false, 0, 0, true, reg)

	userData := make([]byte, 8+128+4+33+4+128+1+1)
	userData[0+7] = 1 // xuid low byte, big-endian
	copy(userData[8:], []byte("bob"))
	userData[8+128+3] = 42 // userID big-endian low byte

	w := &bitWriter{}
	w.bit(0)                             // index implicit (0)
	w.bit(0)                             // no string
	w.bit(1)                             // has user data
	w.ubits(uint32(len(userData)), 14)    // variable-size user data length
	for i := 0; i < len(userData); i++ {
		w.ubits(uint32(userData[i]), 8)
	}

	if err := tab.Update(bitread.New(w.bytes()), 1, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info, ok := reg.ByUserID(42)
	if !ok {
		t.Fatal("expected player to be registered by user id")
	}
	if info.Name != "bob" {
		t.Fatalf("got name %q, want %q", info.Name, "bob")
	}
	if info.Xuid != 1 {
		t.Fatalf("got xuid %d, want 1", info.Xuid)
	}
}
