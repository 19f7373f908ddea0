package output

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/icza/demo/internal/semantic"
)

// TextSink renders a line-per-event textual trace, suitable for diff-based
// debugging — the teacher's own textual mode ethos, generalized from a
// single replay-command dump to this domain's per-field event lines.
type TextSink struct {
	w io.Writer
}

// NewTextSink returns a TextSink writing to w.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

func (s *TextSink) Event(ev semantic.Event) error {
	keys := make([]string, 0, len(ev.Fields))
	for k := range ev.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(s.w, "%s tick=%d", ev.Type, ev.Tick)
	for _, k := range keys {
		fmt.Fprintf(s.w, " %s=%v", k, ev.Fields[k])
	}
	fmt.Fprintln(s.w)
	return nil
}

func (s *TextSink) Finish(meta MatchMeta) error {
	fmt.Fprintf(s.w, "-- map=%s servername=%s tickrate=%s --\n",
		meta.Map, meta.ServerName, humanize.FtoaWithDigits(float64(meta.TickRate), 2))
	fmt.Fprintf(s.w, "-- players=%s gotv_bots=%s --\n",
		humanize.Comma(int64(len(meta.PlayerNames))),
		humanize.Comma(int64(len(meta.GOTVBots))))
	return nil
}
