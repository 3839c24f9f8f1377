// Package brain implements the command layer spoken by the robot brain
// on top of L0 endpoints: each payload starts with a 2-byte command id.
package brain

import (
	"encoding/binary"
	"fmt"

	"github.com/robotalks/vexlink/pkg/l0/comm"
)

// CommandID identifies the handler on the brain.
type CommandID uint16

// String implements fmt.Stringer.
func (c CommandID) String() string {
	return fmt.Sprintf("0x%04X", uint16(c))
}

// CmdDebug echoes the message back.
const CmdDebug CommandID = 0xABA0

// commandSize is the size of command id prefix.
const commandSize = 2

// MaxMessageSize is the max size of a message after the command id.
const MaxMessageSize = comm.MaxPayloadSize - commandSize

// Payload builds the frame payload for a command.
func Payload(cmd CommandID, msg []byte) ([]byte, error) {
	if len(msg) > MaxMessageSize {
		return nil, comm.ErrPayloadTooLarge
	}
	payload := make([]byte, commandSize, commandSize+len(msg))
	binary.BigEndian.PutUint16(payload, uint16(cmd))
	return append(payload, msg...), nil
}

// ParsePayload splits a payload into command id and message.
func ParsePayload(payload []byte) (CommandID, []byte, bool) {
	if len(payload) < commandSize {
		return 0, nil, false
	}
	return CommandID(binary.BigEndian.Uint16(payload)), payload[commandSize:], true
}

// FloatMessage encodes values with the numeric encoder, 8 bytes each.
func FloatMessage(vals ...float64) ([]byte, error) {
	msg := make([]byte, 0, len(vals)*8)
	for _, val := range vals {
		var err error
		if msg, err = comm.AppendFloat64(msg, val); err != nil {
			return nil, err
		}
	}
	return msg, nil
}
