// Package strtable implements C6: the named string-table engine shared by
// full creation and delta updates, plus the userinfo specialization that
// reinterprets a userinfo table's user-data as a byte-swapped player-info
// record.
package strtable

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"

	"github.com/icza/demo/internal/bitread"
	"github.com/icza/demo/internal/players"
)

// ErrUnsupportedEncoding is returned when a table block carries the
// dictionary-encoded flag: a variant this parser deliberately does not
// decode (spec Non-goal).
var ErrUnsupportedEncoding = fmt.Errorf("strtable: dictionary-encoded string table not supported")

const (
	historyCapacity  = 32
	substringBits    = 5 // history_index width and the matching truncation cap (2^5 = 32 bytes)
	maxUserdataBits  = 14
	maxUserdataSize  = 1 << maxUserdataBits
)

// Entry is one materialized string-table row.
type Entry struct {
	Index    int
	Str      string
	UserData []byte
}

// Table is one named string table's live state: its dense entry vector
// plus the substring-backreference history ring.
type Table struct {
	Name        string
	MaxEntries  int
	FixedSize   bool
	SizeBits    int
	UserDataFixedSize int
	IsUserInfo  bool

	entries    []*Entry
	lastIndex  int
	history    [historyCapacity]string
	historyLen int
	historyPos int

	Players *players.Registry
}

// NewTable creates a fresh table whose history ring starts empty —
// mirroring the engine's CreateStringTable behavior (UpdateStringTable
// keeps the ring of the existing table). playerReg is the shared registry the userinfo
// specialization populates; non-userinfo tables may pass nil.
func NewTable(name string, maxEntries int, fixedSize bool, sizeBits, userDataFixedSize int, isUserInfo bool, playerReg *players.Registry) *Table {
	t := &Table{
		Name:              name,
		MaxEntries:        maxEntries,
		FixedSize:         fixedSize,
		SizeBits:          sizeBits,
		UserDataFixedSize: userDataFixedSize,
		IsUserInfo:        isUserInfo,
		lastIndex:         -1,
		Players:           playerReg,
	}
	return t
}

// ResetHistory clears the substring-backreference ring. The decoder does
// not call it: each CreateStringTable builds a new Table through NewTable,
// and UpdateStringTable keeps the ring (§5 resource lifetimes).
func (t *Table) ResetHistory() {
	t.history = [historyCapacity]string{}
	t.historyLen = 0
	t.historyPos = 0
}

func (t *Table) pushHistory(s string) {
	if len(s) > (1 << substringBits) {
		s = s[:1<<substringBits]
	}
	t.history[t.historyPos] = s
	t.historyPos = (t.historyPos + 1) % historyCapacity
	if t.historyLen < historyCapacity {
		t.historyLen++
	}
}

func (t *Table) historyAt(idx int) string {
	// idx is the 5-bit index the wire carries; the engine addresses the
	// ring oldest-first: 0 is the oldest entry still held.
	if idx >= t.historyLen {
		return ""
	}
	start := 0
	if t.historyLen == historyCapacity {
		start = t.historyPos
	}
	return t.history[(start+idx)%historyCapacity]
}

// ApplyUpdate reads the leading dictionary-encoded bit off a raw
// string_data blob and, if clear, decodes entryCount entries from the
// rest of it (§4.5 step 1: the flag is carried as the first bit of the
// block itself, not as a message field).
func (t *Table) ApplyUpdate(stringData []byte, entryCount int) error {
	r := bitread.New(stringData)
	dictBit, err := r.ReadBit()
	if err != nil {
		return err
	}
	return t.Update(r, entryCount, dictBit != 0)
}

// Update decodes entryCount entries from r, applying them to the table.
// When dictionaryEncoded is set, Update reads nothing and returns
// ErrUnsupportedEncoding, aborting the whole update (§4.5 step 1);
// ApplyUpdate passes the block's leading bit straight through.
func (t *Table) Update(r *bitread.Reader, entryCount int, dictionaryEncoded bool) error {
	if dictionaryEncoded {
		return ErrUnsupportedEncoding
	}

	indexBits := ceilLog2(t.MaxEntries)

	for i := 0; i < entryCount; i++ {
		index := t.lastIndex + 1
		explicit, err := r.ReadBit()
		if err != nil {
			return err
		}
		if explicit != 0 {
			v, err := r.ReadUBits(indexBits)
			if err != nil {
				return err
			}
			index = int(v)
		}
		t.lastIndex = index

		hasString, err := r.ReadBit()
		if err != nil {
			return err
		}
		var str string
		if hasString != 0 {
			isSubstring, err := r.ReadBit()
			if err != nil {
				return err
			}
			if isSubstring != 0 {
				historyIdx, err := r.ReadUBits(5)
				if err != nil {
					return err
				}
				prefixLen, err := r.ReadUBits(substringBits)
				if err != nil {
					return err
				}
				prefix := t.historyAt(int(historyIdx))
				if int(prefixLen) < len(prefix) {
					prefix = prefix[:prefixLen]
				}
				suffix, err := r.ReadString(maxUserdataSize)
				if err != nil {
					return err
				}
				str = prefix + suffix
			} else {
				s, err := r.ReadString(maxUserdataSize)
				if err != nil {
					return err
				}
				str = s
			}
		}
		t.pushHistory(str)

		var userData []byte
		hasUserData, err := r.ReadBit()
		if err != nil {
			return err
		}
		if hasUserData != 0 {
			if t.FixedSize {
				userData = make([]byte, t.UserDataFixedSize)
				if err := r.ReadBits(userData, t.SizeBits); err != nil {
					return err
				}
			} else {
				length, err := r.ReadUBits(maxUserdataBits)
				if err != nil {
					return err
				}
				if int(length) > maxUserdataSize {
					return fmt.Errorf("strtable: user data length %d exceeds %d byte cap", length, maxUserdataSize)
				}
				userData = make([]byte, length)
				if err := r.ReadBytes(userData); err != nil {
					return err
				}
			}
		}

		t.setEntry(index, str, userData)

		if t.IsUserInfo && len(userData) > 0 {
			info, err := decodePlayerInfo(userData)
			if err != nil {
				return fmt.Errorf("strtable: userinfo entry %d: %w", index, err)
			}
			t.Players.Put(index, info)
		}
	}
	return nil
}

func (t *Table) setEntry(index int, str string, userData []byte) {
	for len(t.entries) <= index {
		t.entries = append(t.entries, nil)
	}
	existing := t.entries[index]
	if existing == nil {
		existing = &Entry{Index: index}
		t.entries[index] = existing
	}
	if str != "" {
		existing.Str = str
	}
	if userData != nil {
		existing.UserData = userData
	}
}

// Entries returns the dense entry vector (may contain nil holes).
func (t *Table) Entries() []*Entry { return t.entries }

func ceilLog2(n int) int {
	if n <= 1 {
		return 1
	}
	bits := 0
	v := n - 1
	for v > 0 {
		bits++
		v >>= 1
	}
	return bits
}

// Lengths of the fixed, zero padded character buffers in the engine's
// player_info_t wire layout, which decodePlayerInfo reads in order: a
// big-endian 64-bit xuid, name, big-endian 32-bit userID, guid, big-endian
// 32-bit friendsID, friendsName, then one fakeplayer and one ishltv byte.
// Offsets match original_source/src/demofiledump.cpp's
// LowLevelByteSwap calls against xuid/userID/friendsID.
const (
	nameLen        = 128
	guidLen        = 33
	friendsNameLen = 128
)

func decodePlayerInfo(buf []byte) (*players.Info, error) {
	const minLen = 8 + nameLen + 4 + guidLen + 4 + friendsNameLen + 1 + 1
	if len(buf) < minLen {
		return nil, fmt.Errorf("player-info record too short: %d bytes", len(buf))
	}
	off := 0
	xuid := binary.BigEndian.Uint64(buf[off:])
	off += 8
	name := decodeCString(buf[off : off+nameLen])
	off += nameLen
	userID := int32(binary.BigEndian.Uint32(buf[off:]))
	off += 4
	guid := decodeCString(buf[off : off+guidLen])
	off += guidLen
	friendsID := binary.BigEndian.Uint32(buf[off:])
	off += 4
	_ = decodeCString(buf[off : off+friendsNameLen]) // friendsName: carried but unused downstream
	off += friendsNameLen
	isBot := buf[off] != 0
	off++
	isHLTV := buf[off] != 0

	info := &players.Info{
		Xuid:      xuid,
		Name:      name,
		UserID:    userID,
		GUID:      guid,
		FriendsID: friendsID,
		IsBot:     isBot,
		IsHLTV:    isHLTV,
	}
	if !isBot && !isHLTV && xuid == 0 {
		if derived, ok := players.GUIDToXuid(guid); ok {
			info.Xuid = derived
		}
	}
	return info, nil
}

// decodeCString trims a zero-padded fixed buffer at the first NUL and
// falls back to a EUC-KR decode (this parser's one non-ASCII name
// encoding, matching the teacher's own cString/koreanString fallback) when
// the trimmed bytes don't validate as UTF-8.
func decodeCString(buf []byte) string {
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	raw := buf[:n]
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := korean.EUCKR.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
