package wire

import (
	"bytes"
	"testing"
)

func TestDecodeRelMultipleSubmessages(t *testing.T) {
	body := New(TypeRel).
		AddUint16(100).
		AddUint8(3 | lenPrefixBit).
		AddUint16(2).
		AddBytes([]byte{0xAA, 0xBB}).
		AddUint8(5 | lenPrefixBit).
		AddUint16(1).
		AddBytes([]byte{0xCC}).
		AddUint8(7). // unprefixed, runs to end of packet
		AddBytes([]byte{0x01, 0x02, 0x03})

	datagram, err := body.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(datagram)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	base, msgs, err := DecodeRel(decoded)
	if err != nil {
		t.Fatalf("DecodeRel: %v", err)
	}
	if base != 100 {
		t.Fatalf("base = %d, want 100", base)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d submessages, want 3", len(msgs))
	}

	wantSeqs := []uint16{100, 101, 102}
	wantTypes := []byte{3, 5, 7}
	wantPayloads := [][]byte{{0xAA, 0xBB}, {0xCC}, {0x01, 0x02, 0x03}}

	for i, m := range msgs {
		if m.Seq != wantSeqs[i] {
			t.Errorf("msg[%d].Seq = %d, want %d", i, m.Seq, wantSeqs[i])
		}
		if m.SubType != wantTypes[i] {
			t.Errorf("msg[%d].SubType = %d, want %d", i, m.SubType, wantTypes[i])
		}
		if !bytes.Equal(m.Payload, wantPayloads[i]) {
			t.Errorf("msg[%d].Payload = %v, want %v", i, m.Payload, wantPayloads[i])
		}
	}
}

func TestEncodeRelTransmissionIsUnprefixed(t *testing.T) {
	msg := &RMessage{Seq: 42, SubType: 5, Payload: []byte{1, 2, 3}}
	pkt := EncodeRelTransmission(msg)
	datagram, err := pkt.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, _ := Decode(datagram)
	base, msgs, err := DecodeRel(decoded)
	if err != nil {
		t.Fatalf("DecodeRel: %v", err)
	}
	if base != 42 || len(msgs) != 1 {
		t.Fatalf("base=%d msgs=%d, want base=42 len=1", base, len(msgs))
	}
	if msgs[0].SubType != 5 || !bytes.Equal(msgs[0].Payload, []byte{1, 2, 3}) {
		t.Errorf("unexpected round trip: %+v", msgs[0])
	}
}

func TestDecodeRelTruncatedSubmessageDiscardsRest(t *testing.T) {
	// A length-prefixed submessage claiming more bytes than are left
	// in the packet must stop decoding early without error, per the
	// malformation handling for truncated sub-messages.
	body := New(TypeRel).
		AddUint16(0).
		AddUint8(1 | lenPrefixBit).
		AddUint16(100) // claims 100 bytes, none present

	datagram, _ := body.Encode()
	decoded, _ := Decode(datagram)

	_, msgs, err := DecodeRel(decoded)
	if err != nil {
		t.Fatalf("expected no error on truncation, got %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected no submessages decoded, got %d", len(msgs))
	}
}
