package session

import "github.com/duskwright/rudpsession/pkg/wire"

// MapCache receives opaque MAPDATA payloads. The real world/map cache
// that consumes these lives outside this core — see spec §6's external
// collaborators.
type MapCache interface {
	MapData(payload []byte) error
}

// ObjectCache receives OBJDATA records. body is the packet's read
// cursor, positioned right after the flags/id/frame header for this
// record; Receive must consume exactly the bytes belonging to this
// record's body (and no more) before returning, since the caller
// resumes decoding subsequent records from the same cursor.
type ObjectCache interface {
	Receive(flags byte, id uint32, frame int32, body *wire.Message) error
}

// RMessageHandler is the one true polymorphic boundary to the
// application: every contiguously-delivered reliable message is handed
// to Handle exactly once, in order. The default implementation is a
// no-op, mirroring the empty handlerel in the source — an application
// registers its own dispatcher via Config.Handler.
type RMessageHandler interface {
	Handle(msg *wire.RMessage)
}

// ArgListEncoder encodes the caller-supplied connect arguments into the
// opaque byte sequence appended to the SESS packet.
type ArgListEncoder interface {
	EncodeArgs(args []string) []byte
}

type noopMapCache struct{}

func (noopMapCache) MapData([]byte) error { return nil }

type noopObjectCache struct{}

func (noopObjectCache) Receive(byte, uint32, int32, *wire.Message) error { return nil }

type noopHandler struct{}

func (noopHandler) Handle(*wire.RMessage) {}

// DefaultArgEncoder encodes a string list the way the original client
// always does: each argument as a null-terminated string, concatenated
// in order.
type DefaultArgEncoder struct{}

func (DefaultArgEncoder) EncodeArgs(args []string) []byte {
	var out []byte
	for _, a := range args {
		out = append(out, []byte(a)...)
		out = append(out, 0)
	}
	return out
}
