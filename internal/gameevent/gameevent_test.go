package gameevent

import (
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func appendVarintField(buf []byte, num protowire.Number, v uint64) []byte {
	buf = protowire.AppendTag(buf, num, protowire.VarintType)
	return protowire.AppendVarint(buf, v)
}

func appendStringField(buf []byte, num protowire.Number, s string) []byte {
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	return protowire.AppendString(buf, s)
}

func appendBytesField(buf []byte, num protowire.Number, v []byte) []byte {
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	return protowire.AppendBytes(buf, v)
}

func buildKeyDescriptor(name string, typ KeyType) []byte {
	var kb []byte
	kb = appendVarintField(kb, keyFieldType, uint64(typ))
	kb = appendStringField(kb, keyFieldName, name)
	return kb
}

func buildEventDescriptor(id int32, name string, keys [][]byte) []byte {
	var db []byte
	db = appendVarintField(db, descFieldEventID, uint64(id))
	db = appendStringField(db, descFieldName, name)
	for _, k := range keys {
		db = appendBytesField(db, descFieldKeys, k)
	}
	return db
}

func TestIngestGameEventListAndBind(t *testing.T) {
	s := NewStore()

	keys := [][]byte{
		buildKeyDescriptor("userid", KeyShort),
		buildKeyDescriptor("weapon", KeyString),
	}
	descBytes := buildEventDescriptor(7, "player_death", keys)

	var listBuf []byte
	listBuf = appendBytesField(listBuf, fieldDescriptors, descBytes)

	if err := s.IngestGameEventList(listBuf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d, ok := s.Get(7)
	if !ok || d.Name != "player_death" || len(d.Keys) != 2 {
		t.Fatalf("got %+v, ok=%v", d, ok)
	}

	var useridKey []byte
	useridKey = appendVarintField(useridKey, valFieldShort, 42)
	var weaponKey []byte
	weaponKey = appendStringField(weaponKey, valFieldString, "ak47")

	var eventBuf []byte
	eventBuf = appendVarintField(eventBuf, eventFieldEventID, 7)
	eventBuf = appendBytesField(eventBuf, eventFieldKeys, useridKey)
	eventBuf = appendBytesField(eventBuf, eventFieldKeys, weaponKey)

	ev, err := s.Bind(eventBuf, 1234)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev == nil {
		t.Fatal("expected a bound event, got nil")
	}
	if ev.Type != "player_death" || ev.Tick != 1234 {
		t.Fatalf("got %+v", ev)
	}

	uv, ok := ev.Value("userid")
	if !ok || uv.Short != 42 {
		t.Fatalf("got %+v, ok=%v", uv, ok)
	}
	wv, ok := ev.Value("weapon")
	if !ok || wv.String != "ak47" {
		t.Fatalf("got %+v, ok=%v", wv, ok)
	}
}

func TestBindUnknownEventIDReturnsNil(t *testing.T) {
	s := NewStore()
	var eventBuf []byte
	eventBuf = appendVarintField(eventBuf, eventFieldEventID, 999)

	ev, err := s.Bind(eventBuf, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev != nil {
		t.Fatalf("expected nil for an unbound event id, got %+v", ev)
	}
}
