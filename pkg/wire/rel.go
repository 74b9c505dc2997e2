package wire

import "time"

// RMessage is one unit of the reliable streams: a sequence number, a
// sub-type, and payload bytes. Last/Retx are transient bookkeeping the
// sender uses for retransmission timing; the receiver ignores them.
type RMessage struct {
	Seq     uint16
	SubType byte
	Payload []byte

	Last time.Time
	Retx int
}

// lenPrefixBit marks a sub-message whose payload is length-prefixed
// rather than running to the end of the packet.
const lenPrefixBit byte = 0x80

// DecodeRel splits a REL packet body into its base sequence number and
// the RMessages it carries, assigning consecutive sequence numbers
// starting at that base. A sub-message with the high bit of its
// sub-type set carries a 16-bit length prefix; otherwise its payload
// runs to the end of the packet and it must be the last sub-message.
// A truncated sub-message stops decoding early and discards the rest
// of the packet, per the protocol's "leave the receive loop and
// discard the remaining buffer" malformation handling.
func DecodeRel(body *Message) (base uint16, msgs []*RMessage, err error) {
	base, err = body.Uint16()
	if err != nil {
		return 0, nil, err
	}

	seq := base
	for !body.EOM() {
		subtype, err := body.Uint8()
		if err != nil {
			return base, msgs, nil
		}

		var payload []byte
		if subtype&lenPrefixBit != 0 {
			n, err := body.Uint16()
			if err != nil {
				return base, msgs, nil
			}
			payload, err = body.Bytes(int(n))
			if err != nil {
				return base, msgs, nil
			}
		} else {
			payload = body.BytesToEnd()
		}

		msgs = append(msgs, &RMessage{
			Seq:     seq,
			SubType: subtype &^ lenPrefixBit,
			Payload: payload,
		})
		seq++
	}
	return base, msgs, nil
}

// EncodeRelTransmission renders a single RMessage as one REL packet
// body: 16-bit seq, one-byte sub-type (without the length-prefix bit),
// then the payload verbatim to end of packet. This is always the
// unprefixed on-wire form — retransmissions never use the
// length-prefixed sub-message encoding, only the initial decode side
// needs to understand it (to support multiple sub-messages packed into
// one inbound REL packet from a peer that coalesces them).
func EncodeRelTransmission(msg *RMessage) *Message {
	return New(TypeRel).
		AddUint16(msg.Seq).
		AddUint8(msg.SubType).
		AddBytes(msg.Payload)
}
