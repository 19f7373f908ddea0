package strtable

import (
	"fmt"

	"github.com/icza/demo/internal/wire"
)

// CSVCMsg_CreateStringTable field numbers.
const (
	createFieldName              = 1
	createFieldMaxEntries        = 2
	createFieldNumEntries        = 3
	createFieldUserDataFixedSize = 4
	createFieldUserDataSize      = 5
	createFieldUserDataSizeBits  = 6
	createFieldFlags             = 7
	createFieldStringData        = 8
)

// CreateStringTableMsg is the decoded shape of a CreateStringTable payload.
type CreateStringTableMsg struct {
	Name              string
	MaxEntries        int32
	NumEntries        int32
	UserDataFixedSize bool
	UserDataSize      int32
	UserDataSizeBits  int32
	Flags             int32
	StringData        []byte
}

// ParseCreateStringTable decodes a CreateStringTable message.
func ParseCreateStringTable(payload []byte) (*CreateStringTableMsg, error) {
	msg, err := wire.Parse(payload)
	if err != nil {
		return nil, fmt.Errorf("strtable: create: %w", err)
	}
	out := &CreateStringTableMsg{}
	out.Name, _ = msg.String(createFieldName)
	out.MaxEntries, _ = msg.Int32(createFieldMaxEntries)
	out.NumEntries, _ = msg.Int32(createFieldNumEntries)
	out.UserDataFixedSize, _ = msg.Bool(createFieldUserDataFixedSize)
	out.UserDataSize, _ = msg.Int32(createFieldUserDataSize)
	out.UserDataSizeBits, _ = msg.Int32(createFieldUserDataSizeBits)
	out.Flags, _ = msg.Int32(createFieldFlags)
	out.StringData, _ = msg.Bytes(createFieldStringData)
	return out, nil
}

// CSVCMsg_UpdateStringTable field numbers.
const (
	updateFieldTableID           = 1
	updateFieldNumChangedEntries = 2
	updateFieldStringData        = 3
)

// UpdateStringTableMsg is the decoded shape of an UpdateStringTable payload.
type UpdateStringTableMsg struct {
	TableID           int32
	NumChangedEntries int32
	StringData        []byte
}

// ParseUpdateStringTable decodes an UpdateStringTable message.
func ParseUpdateStringTable(payload []byte) (*UpdateStringTableMsg, error) {
	msg, err := wire.Parse(payload)
	if err != nil {
		return nil, fmt.Errorf("strtable: update: %w", err)
	}
	out := &UpdateStringTableMsg{}
	out.TableID, _ = msg.Int32(updateFieldTableID)
	out.NumChangedEntries, _ = msg.Int32(updateFieldNumChangedEntries)
	out.StringData, _ = msg.Bytes(updateFieldStringData)
	return out, nil
}
