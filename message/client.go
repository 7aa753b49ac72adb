// File: message/client.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package message

import "github.com/momentics/exosphere-ws/wire"

// ClientMessage is sent from a browser client to the server.
type ClientMessage interface {
	wire.Marshaler
	isClientMessage()
}

// Connect asks to join with a nickname. The server answers with Metadata,
// PasswordChallenge or TeamChallenge.
type Connect struct{ Nickname string }

type TryPassword struct{ Password string }

// TryTeam answers a TeamChallenge. Team 0 asks to play as a free agent.
type TryTeam struct {
	Team     uint8
	Password string
}

type TrySpectate struct{}

type PlacePiece struct {
	X, Y float32
	Type PieceType
}

type Strategy struct{ Event StrategyPathModification }

type Special struct {
	Piece PieceID
	Event ObjectSpecialPropertySet
}

func (Connect) isClientMessage()     {}
func (TryPassword) isClientMessage() {}
func (TryTeam) isClientMessage()     {}
func (TrySpectate) isClientMessage() {}
func (PlacePiece) isClientMessage()  {}
func (Strategy) isClientMessage()    {}
func (Special) isClientMessage()     {}

func (m Connect) MarshalWire(w *wire.Writer) {
	w.Tag(1)
	w.String(m.Nickname)
}

func (m TryPassword) MarshalWire(w *wire.Writer) {
	w.Tag(2)
	w.String(m.Password)
}

func (m TryTeam) MarshalWire(w *wire.Writer) {
	w.Tag(3)
	w.U8(m.Team)
	w.String(m.Password)
}

func (TrySpectate) MarshalWire(w *wire.Writer) { w.Tag(4) }

func (m PlacePiece) MarshalWire(w *wire.Writer) {
	w.Tag(5)
	w.F32(m.X)
	w.F32(m.Y)
	m.Type.MarshalWire(w)
}

func (m Strategy) MarshalWire(w *wire.Writer) {
	w.Tag(6)
	if m.Event == nil {
		w.Fail("nil strategy event")
		return
	}
	m.Event.MarshalWire(w)
}

func (m Special) MarshalWire(w *wire.Writer) {
	w.Tag(7)
	w.U64(uint64(m.Piece))
	if m.Event == nil {
		w.Fail("nil special event")
		return
	}
	m.Event.MarshalWire(w)
}

// DecodeClient decodes one ClientMessage payload.
func DecodeClient(b []byte) (ClientMessage, error) {
	return wire.Decode(b, readClient)
}

func readClient(r *wire.Reader) ClientMessage {
	switch t := r.Tag(); t {
	case 0:
		return readTest(r)
	case 1:
		return Connect{Nickname: r.String()}
	case 2:
		return TryPassword{Password: r.String()}
	case 3:
		return TryTeam{Team: r.U8(), Password: r.String()}
	case 4:
		return TrySpectate{}
	case 5:
		return PlacePiece{X: r.F32(), Y: r.F32(), Type: readPieceType(r)}
	case 6:
		return Strategy{Event: readPathModification(r)}
	case 7:
		return Special{Piece: PieceID(r.U64()), Event: readSpecialProperty(r)}
	default:
		r.UnknownTag("ClientMessage", t)
		return nil
	}
}
