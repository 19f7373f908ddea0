package players

import "testing"

func TestGUIDToXuid(t *testing.T) {
	cases := []struct {
		name string
		guid string
		want uint64
		ok   bool
	}{
		{"y=0", "STEAM_0:0:12345", steam64Base + 2*12345, true},
		{"y=1", "STEAM_0:1:12345", steam64Base + 2*12345 + 1, true},
		{"malformed prefix", "NOT_A_GUID", 0, false},
		{"bad y digit", "STEAM_0:2:12345", 0, false},
		{"empty z", "STEAM_0:0:", 0, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := GUIDToXuid(c.guid)
			if ok != c.ok {
				t.Fatalf("ok: got %v, want %v", ok, c.ok)
			}
			if ok && got != c.want {
				t.Fatalf("got %d, want %d", got, c.want)
			}
		})
	}
}

func TestRegistryPutOverwritesSlot(t *testing.T) {
	r := New()
	first := &Info{Xuid: 1, UserID: 10, Name: "a"}
	r.Put(2, first)

	second := &Info{Xuid: 2, UserID: 20, Name: "b"}
	r.Put(2, second)

	if _, ok := r.ByUserID(10); ok {
		t.Fatal("old user id should have been evicted on overwrite")
	}
	if _, ok := r.ByXuid(1); ok {
		t.Fatal("old xuid should have been evicted on overwrite")
	}
	got, ok := r.ByUserID(20)
	if !ok || got.Name != "b" {
		t.Fatalf("got %+v, ok=%v", got, ok)
	}
	if len(r.Slots()) != 3 {
		t.Fatalf("expected slots to grow to index 2 (len 3), got len %d", len(r.Slots()))
	}
}

func TestXuidFallsBackToUserIDForBots(t *testing.T) {
	bot := &Info{IsBot: true, UserID: 7, Xuid: 0}
	if got := Xuid(bot); got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
	human := &Info{IsBot: false, UserID: 7, Xuid: 99}
	if got := Xuid(human); got != 99 {
		t.Fatalf("got %d, want 99", got)
	}
	if got := Xuid(nil); got != 0 {
		t.Fatalf("got %d, want 0 for nil", got)
	}
}
