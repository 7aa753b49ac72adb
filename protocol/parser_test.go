package protocol_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/momentics/exosphere-ws/message"
	"github.com/momentics/exosphere-ws/pool"
	"github.com/momentics/exosphere-ws/protocol"
	"github.com/momentics/exosphere-ws/wire"
)

const rfcKey = "dGhlIHNhbXBsZSBub25jZQ=="

func request(headers ...string) string {
	return protocol.RequestLine + strings.Join(headers, "\r\n") + "\r\n\r\n"
}

func validRequest() string {
	return request(
		"Host: localhost:8080",
		"Connection: keep-alive, Upgrade",
		"Upgrade: websocket",
		"Sec-WebSocket-Key: "+rfcKey,
		"Sec-WebSocket-Version: 13",
	)
}

func maskedFrame(op protocol.Opcode, payload []byte, key [4]byte) []byte {
	b := []byte{0x80 | byte(op)}
	switch n := len(payload); {
	case n < 126:
		b = append(b, 0x80|byte(n))
	case n <= 0xFFFF:
		b = append(b, 0x80|126)
		b = binary.BigEndian.AppendUint16(b, uint16(n))
	default:
		b = append(b, 0x80|127)
		b = binary.BigEndian.AppendUint64(b, uint64(n))
	}
	b = append(b, key[:]...)
	for i, c := range payload {
		b = append(b, c^key[i%4])
	}
	return b
}

func clientFrame(t *testing.T, m message.ClientMessage) []byte {
	t.Helper()
	payload, err := wire.Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return maskedFrame(protocol.OpBinary, payload, [4]byte{0x37, 0xfa, 0x21, 0x3d})
}

type harness[M any] struct {
	p       *protocol.Parser[M]
	in, out *pool.ByteRing
	events  []string
	msgs    []M
	err     error
}

func newHarness[M any](rules protocol.Rules, decode wire.DecodeFunc[M]) *harness[M] {
	return &harness[M]{
		p:   protocol.NewParser(rules, decode),
		in:  pool.NewByteRing(4096),
		out: pool.NewByteRing(4096),
	}
}

func newClientHarness() *harness[message.ClientMessage] {
	return newHarness(protocol.DefaultRules(), message.DecodeClient)
}

// feed pushes b and steps until the parser needs more input.
func (h *harness[M]) feed(t *testing.T, b []byte) {
	t.Helper()
	if !h.in.Push(b) {
		t.Fatalf("inbox overflow pushing %d bytes", len(b))
	}
	for h.err == nil {
		prog, m, err := h.p.Step(h.in, h.out)
		if err != nil {
			h.err = err
			h.events = append(h.events, "error")
			return
		}
		switch prog {
		case protocol.ProgressNone:
			return
		case protocol.ProgressUpgraded:
			h.events = append(h.events, "upgraded")
		case protocol.ProgressMessage:
			h.msgs = append(h.msgs, m)
			h.events = append(h.events, fmt.Sprintf("message %#v", m))
		}
	}
}

func (h *harness[M]) output() []byte {
	a, b := h.out.Segments()
	return append(append([]byte{}, a...), b...)
}

func TestComputeAcceptKey(t *testing.T) {
	if got := protocol.ComputeAcceptKey(rfcKey); got != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Fatalf("accept key %q", got)
	}
}

func TestHandshakeUpgrade(t *testing.T) {
	h := newClientHarness()
	h.feed(t, []byte(validRequest()))
	if h.err != nil {
		t.Fatalf("handshake failed: %v", h.err)
	}
	if !reflect.DeepEqual(h.events, []string{"upgraded"}) {
		t.Fatalf("events %v", h.events)
	}
	want := "HTTP/1.1 101 Switching Protocols\r\nConnection: upgrade\r\nUpgrade: websocket\r\n" +
		"Sec-Websocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n\r\n"
	if got := string(h.output()); got != want {
		t.Fatalf("response %q", got)
	}
	if !h.p.Upgraded() || h.p.State() != protocol.StateFirstTwo {
		t.Fatalf("state %v", h.p.State())
	}
	if h.in.Len() != 0 {
		t.Fatalf("%d handshake bytes left unconsumed", h.in.Len())
	}
}

func TestBadRequestLine(t *testing.T) {
	for _, line := range []string{
		"GET /other HTTP/1.1\r\n",
		"POST /game HTTP/1.1\r\n",
		"get /game HTTP/1.1\r\n",
		"GET /game HTTP/1.0\r\n",
		"GET /game HTTP/1.1\n",
	} {
		h := newClientHarness()
		h.feed(t, []byte(line+"Upgrade: websocket\r\n\r\n"))
		if !errors.Is(h.err, protocol.ErrBadRequestLine) {
			t.Fatalf("%q: got %v", line, h.err)
		}
		if !bytes.HasPrefix(h.output(), []byte("HTTP/1.1 400 Bad Request\r\n\r\n")) {
			t.Fatalf("%q: response %q", line, h.output())
		}
		if !h.p.Closed() || len(h.msgs) != 0 {
			t.Fatalf("%q: closed=%v msgs=%d", line, h.p.Closed(), len(h.msgs))
		}
	}
}

func TestPartialInputIsReentrant(t *testing.T) {
	h := newClientHarness()
	h.feed(t, []byte("GET /ga"))
	for i := 0; i < 3; i++ {
		prog, _, err := h.p.Step(h.in, h.out)
		if prog != protocol.ProgressNone || err != nil {
			t.Fatalf("step %d: %v %v", i, prog, err)
		}
	}
	if h.in.Len() != 7 || h.p.State() != protocol.StateHTTPFirstLine {
		t.Fatalf("partial line consumed: len=%d state=%v", h.in.Len(), h.p.State())
	}
	h.feed(t, []byte("me HTTP/1.1\r\nUpgr"))
	if h.p.State() != protocol.StateHTTPHeaderName || h.in.Len() != 4 {
		t.Fatalf("state %v len %d", h.p.State(), h.in.Len())
	}
}

func TestUpgradeRequirements(t *testing.T) {
	cases := []struct {
		name    string
		rules   func(*protocol.Rules)
		req     string
		upgrade bool
	}{
		{"valid", nil, validRequest(), true},
		{"missing upgrade", nil, request("Connection: keep-alive, Upgrade", "Sec-WebSocket-Key: "+rfcKey), false},
		{"missing key", nil, request("Connection: keep-alive, Upgrade", "Upgrade: websocket"), false},
		{"wrong upgrade", nil, request("Connection: keep-alive, Upgrade", "Upgrade: h2c", "Sec-WebSocket-Key: "+rfcKey), false},
		{"plain upgrade connection", nil, request("Connection: Upgrade", "Upgrade: websocket", "Sec-WebSocket-Key: "+rfcKey), false},
		{"configured connection value", func(r *protocol.Rules) {
			r.ConnectionValues = append(r.ConnectionValues, "Upgrade")
		}, request("Connection: Upgrade", "Upgrade: websocket", "Sec-WebSocket-Key: "+rfcKey), true},
		{"case-insensitive names", nil, request("CONNECTION: keep-alive, Upgrade", "upgrade: websocket", "sec-websocket-key: "+rfcKey), true},
		{"surrounding whitespace", nil, request("Connection:   keep-alive, Upgrade  ", "Upgrade:websocket", "Sec-WebSocket-Key:\t"+rfcKey), true},
		{"line without colon ignored", nil, request("garbage", "Connection: keep-alive, Upgrade", "Upgrade: websocket", "Sec-WebSocket-Key: "+rfcKey), true},
	}
	for _, tc := range cases {
		rules := protocol.DefaultRules()
		if tc.rules != nil {
			tc.rules(&rules)
		}
		h := newHarness(rules, message.DecodeClient)
		h.feed(t, []byte(tc.req))
		if tc.upgrade {
			if h.err != nil || !h.p.Upgraded() {
				t.Fatalf("%s: not upgraded: %v", tc.name, h.err)
			}
			continue
		}
		if !errors.Is(h.err, protocol.ErrUpgradeRejected) {
			t.Fatalf("%s: got %v", tc.name, h.err)
		}
		if !bytes.HasPrefix(h.output(), []byte("HTTP/1.1 400 Bad Request\r\n\r\n")) {
			t.Fatalf("%s: response %q", tc.name, h.output())
		}
	}
}

func TestHandshakeTooLarge(t *testing.T) {
	rules := protocol.DefaultRules()
	rules.MaxHandshakeSize = 128
	h := newHarness(rules, message.DecodeClient)
	h.feed(t, []byte(protocol.RequestLine+"X-Filler: "+strings.Repeat("a", 200)))
	if !errors.Is(h.err, protocol.ErrHandshakeTooLarge) {
		t.Fatalf("got %v", h.err)
	}
	if !bytes.HasPrefix(h.output(), []byte("HTTP/1.1 400 Bad Request")) {
		t.Fatalf("response %q", h.output())
	}
}

// raw collects unmasked binary payloads without decoding them.
func raw(b []byte) ([]byte, error) { return bytes.Clone(b), nil }

func upgradedRaw(t *testing.T, rules protocol.Rules) *harness[[]byte] {
	h := newHarness(rules, raw)
	h.feed(t, []byte(validRequest()))
	if h.err != nil {
		t.Fatalf("handshake: %v", h.err)
	}
	h.out.Clear()
	return h
}

func TestMasking(t *testing.T) {
	key := [4]byte{0x01, 0x02, 0x03, 0x04}
	payload := []byte{0x10, 0x20, 0x30, 0x40, 0x50, 0x60, 0x70}
	h := upgradedRaw(t, protocol.DefaultRules())
	frame := maskedFrame(protocol.OpBinary, payload, key)
	for i := 0; i < 7; i++ {
		if frame[6+i] != payload[i]^key[i%4] {
			t.Fatalf("test frame byte %d not masked", i)
		}
	}
	h.feed(t, frame)
	if h.err != nil || len(h.msgs) != 1 {
		t.Fatalf("err=%v msgs=%d", h.err, len(h.msgs))
	}
	if !bytes.Equal(h.msgs[0], payload) {
		t.Fatalf("unmasked % x, want % x", h.msgs[0], payload)
	}

	direct := bytes.Clone(frame[6:])
	protocol.Unmask(direct, key)
	if !bytes.Equal(direct, payload) {
		t.Fatalf("Unmask % x", direct)
	}
}

func TestOversizedFrameRejected(t *testing.T) {
	h := upgradedRaw(t, protocol.DefaultRules())
	hdr := []byte{0x82, 0x80 | 126}
	hdr = binary.BigEndian.AppendUint16(hdr, 2049)
	h.feed(t, hdr)
	if !errors.Is(h.err, protocol.ErrPayloadTooLarge) {
		t.Fatalf("got %v", h.err)
	}
	if !h.p.Closed() || len(h.msgs) != 0 || len(h.output()) != 0 {
		t.Fatalf("closed=%v msgs=%d out=%q", h.p.Closed(), len(h.msgs), h.output())
	}

	h = upgradedRaw(t, protocol.DefaultRules())
	hdr = []byte{0x82, 0x80 | 127}
	hdr = binary.BigEndian.AppendUint64(hdr, 1<<40)
	h.feed(t, hdr)
	if !errors.Is(h.err, protocol.ErrPayloadTooLarge) {
		t.Fatalf("64-bit length: got %v", h.err)
	}

	h = upgradedRaw(t, protocol.DefaultRules())
	h.feed(t, maskedFrame(protocol.OpBinary, make([]byte, 2048), [4]byte{9, 9, 9, 9}))
	if h.err != nil || len(h.msgs) != 1 || len(h.msgs[0]) != 2048 {
		t.Fatalf("frame at the cap: err=%v msgs=%d", h.err, len(h.msgs))
	}
}

func TestFrameViolations(t *testing.T) {
	key := [4]byte{1, 2, 3, 4}
	unmasked := []byte{0x82, 0x01, 0xAA}
	rsv := maskedFrame(protocol.OpBinary, []byte{1}, key)
	rsv[0] |= 0x40
	noFin := maskedFrame(protocol.OpBinary, []byte{1}, key)
	noFin[0] &^= 0x80
	cont := maskedFrame(protocol.OpContinuation, []byte{1}, key)

	cases := []struct {
		name  string
		frame []byte
		want  error
	}{
		{"unmasked", unmasked, protocol.ErrUnmaskedFrame},
		{"reserved bits", rsv, protocol.ErrReservedBits},
		{"fin clear", noFin, protocol.ErrFragmented},
		{"continuation", cont, protocol.ErrFragmented},
	}
	for _, tc := range cases {
		h := upgradedRaw(t, protocol.DefaultRules())
		h.feed(t, tc.frame)
		if !errors.Is(h.err, tc.want) {
			t.Fatalf("%s: got %v", tc.name, h.err)
		}
		if !h.p.Closed() {
			t.Fatalf("%s: parser still open", tc.name)
		}
	}
}

func TestControlFrames(t *testing.T) {
	key := [4]byte{5, 6, 7, 8}
	h := upgradedRaw(t, protocol.DefaultRules())
	h.feed(t, maskedFrame(protocol.OpPing, []byte("hi"), key))
	h.feed(t, maskedFrame(protocol.OpText, []byte("ignored"), key))
	h.feed(t, maskedFrame(protocol.OpPong, nil, key))
	if h.err != nil || len(h.msgs) != 0 {
		t.Fatalf("err=%v msgs=%d", h.err, len(h.msgs))
	}
	if got := h.output(); !bytes.Equal(got, []byte{0x8A, 0x00}) {
		t.Fatalf("pong % x", got)
	}
	h.out.Clear()

	h.feed(t, append(maskedFrame(protocol.OpClose, nil, key), maskedFrame(protocol.OpBinary, []byte{1}, key)...))
	if h.err != nil {
		t.Fatalf("close: %v", h.err)
	}
	if got := h.output(); !bytes.Equal(got, []byte{0x88, 0x00}) {
		t.Fatalf("close reply % x", got)
	}
	if !h.p.Closed() || len(h.msgs) != 0 {
		t.Fatalf("closed=%v msgs=%d", h.p.Closed(), len(h.msgs))
	}
	if prog, _, err := h.p.Step(h.in, h.out); prog != protocol.ProgressNone || err != nil {
		t.Fatalf("step after close: %v %v", prog, err)
	}
}

func TestDecodeFailureCloses(t *testing.T) {
	h := newClientHarness()
	h.feed(t, []byte(validRequest()))
	h.feed(t, maskedFrame(protocol.OpBinary, []byte{0xFF, 0, 0, 0}, [4]byte{1, 1, 1, 1}))
	if !errors.Is(h.err, protocol.ErrDecode) || !errors.Is(h.err, wire.ErrUnknownTag) {
		t.Fatalf("got %v", h.err)
	}
	if !h.p.Closed() || len(h.msgs) != 0 {
		t.Fatal("decode failure did not close")
	}
}

func TestMessagesInOrder(t *testing.T) {
	h := newClientHarness()
	first := message.Connect{Nickname: "first"}
	second := message.TryPassword{Password: "second"}
	stream := []byte(validRequest())
	stream = append(stream, clientFrame(t, first)...)
	stream = append(stream, clientFrame(t, second)...)
	h.feed(t, stream)
	if h.err != nil {
		t.Fatal(h.err)
	}
	want := []message.ClientMessage{first, second}
	if !reflect.DeepEqual(h.msgs, want) {
		t.Fatalf("messages %#v", h.msgs)
	}
}

func TestChunkInvariance(t *testing.T) {
	stream := []byte(validRequest())
	stream = append(stream, clientFrame(t, message.Probe())...)
	stream = append(stream, maskedFrame(protocol.OpPing, []byte("p"), [4]byte{4, 3, 2, 1})...)
	stream = append(stream, clientFrame(t, message.Connect{Nickname: strings.Repeat("n", 300)})...)
	stream = append(stream, clientFrame(t, message.PlacePiece{X: 1, Y: 2, Type: message.Seed})...)

	whole := newClientHarness()
	whole.feed(t, stream)
	if whole.err != nil || len(whole.msgs) != 3 {
		t.Fatalf("whole stream: err=%v msgs=%d", whole.err, len(whole.msgs))
	}

	for i := 0; i <= len(stream); i++ {
		h := newClientHarness()
		h.feed(t, stream[:i])
		h.feed(t, stream[i:])
		if !reflect.DeepEqual(h.events, whole.events) {
			t.Fatalf("split at %d: events %v, want %v", i, h.events, whole.events)
		}
		if !bytes.Equal(h.output(), whole.output()) {
			t.Fatalf("split at %d: output differs", i)
		}
	}

	bytewise := newClientHarness()
	for i := range stream {
		bytewise.feed(t, stream[i:i+1])
	}
	if !reflect.DeepEqual(bytewise.events, whole.events) {
		t.Fatalf("byte at a time: events %v", bytewise.events)
	}
}

func TestPutHeader(t *testing.T) {
	cases := []struct {
		n    int
		want []byte
	}{
		{0, []byte{0x82, 0}},
		{125, []byte{0x82, 125}},
		{126, []byte{0x82, 126, 0x00, 0x7E}},
		{65535, []byte{0x82, 126, 0xFF, 0xFF}},
		{65536, []byte{0x82, 127, 0, 0, 0, 0, 0, 1, 0, 0}},
	}
	for _, tc := range cases {
		if protocol.HeaderLen(tc.n) != len(tc.want) {
			t.Fatalf("HeaderLen(%d) = %d", tc.n, protocol.HeaderLen(tc.n))
		}
		buf := make([]byte, 10)
		h := protocol.PutHeader(buf, protocol.OpBinary, tc.n)
		if !bytes.Equal(buf[:h], tc.want) {
			t.Fatalf("PutHeader(%d) = % x", tc.n, buf[:h])
		}
	}
	f := protocol.AppendFrame(nil, protocol.OpBinary, []byte("abc"))
	if !bytes.Equal(f, []byte{0x82, 3, 'a', 'b', 'c'}) {
		t.Fatalf("AppendFrame % x", f)
	}
}

func TestStateStrings(t *testing.T) {
	if protocol.StateFirstTwo.String() != "ws-first-two" || protocol.ProgressUpgraded.String() != "upgraded" {
		t.Fatal("unexpected names")
	}
	if protocol.OpPing.String() != "ping" || protocol.Opcode(0x3).String() != "reserved" {
		t.Fatal("unexpected opcode names")
	}
}
