package transport

import (
	"net"
	"testing"
	"time"

	"github.com/duskwright/rudpsession/pkg/wire"
)

func TestSendRecvRoundTrip(t *testing.T) {
	peer, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("failed to open peer socket: %v", err)
	}
	defer peer.Close()

	sock, err := Dial(peer.LocalAddr().(*net.UDPAddr), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer sock.Close()

	sock.Send(wire.New(wire.TypeBeat))

	peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, wire.MaxPayload)
	_, from, err := peer.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("peer did not receive the packet: %v", err)
	}
	if buf[0] != wire.TypeBeat {
		t.Fatalf("expected type byte %d, got %d", wire.TypeBeat, buf[0])
	}

	reply, _ := wire.New(wire.TypeClose).Encode()
	if _, err := peer.WriteToUDP(reply, from); err != nil {
		t.Fatalf("peer write failed: %v", err)
	}

	var msg *wire.Message
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ready, err := sock.Wait(50 * time.Millisecond)
		if err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
		if !ready {
			continue
		}
		msg, err = sock.Recv()
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		if msg != nil {
			break
		}
	}
	if msg == nil {
		t.Fatal("never received the reply packet")
	}
	if msg.Type != wire.TypeClose {
		t.Fatalf("expected TypeClose, got %d", msg.Type)
	}
}

func TestRecvAfterCloseReturnsErrClosed(t *testing.T) {
	peer, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("failed to open peer socket: %v", err)
	}
	defer peer.Close()

	sock, err := Dial(peer.LocalAddr().(*net.UDPAddr), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	if err := sock.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := sock.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}

	if _, err := sock.Recv(); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
