package demo

import (
	"errors"

	"github.com/icza/demo/internal/bitread"
	"github.com/icza/demo/internal/entities"
	"github.com/icza/demo/internal/framer"
	"github.com/icza/demo/internal/strtable"
)

var (
	// ErrNotDemoFile indicates the given file (or reader) doesn't start
	// with the HL2DEMO magic.
	ErrNotDemoFile = framer.ErrNotDemoFile

	// ErrCorruptFraming indicates a framed block's declared length runs
	// past the available input.
	ErrCorruptFraming = framer.ErrCorruptFraming

	// ErrTruncated indicates a bit-level read ran past the end of its
	// buffer.
	ErrTruncated = bitread.ErrTruncated

	// ErrRunawayFieldIndex indicates an entity's field-index loop exceeded
	// its step cap — almost certainly a desynced bit cursor rather than a
	// legitimately large entity.
	ErrRunawayFieldIndex = entities.ErrRunawayFieldIndex

	// ErrUnsupportedEncoding indicates a string table block carries the
	// dictionary-encoded variant this parser does not decode.
	ErrUnsupportedEncoding = strtable.ErrUnsupportedEncoding

	// ErrPropertyDecode indicates a decoded field index had no matching
	// property descriptor for its entity's class.
	ErrPropertyDecode = entities.ErrPropertyDecode

	// ErrParsing is returned by ParseFile/Parse whenever parsing panics;
	// the panic value is logged rather than propagated, mirroring the
	// teacher's own parseProtected recovery.
	ErrParsing = errors.New("demo: parsing")
)
