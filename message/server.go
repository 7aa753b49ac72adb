// File: message/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package message

import "github.com/momentics/exosphere-ws/wire"

// ServerMessage is sent from the server to a client.
type ServerMessage interface {
	wire.Marshaler
	isServerMessage()
}

type GameState struct {
	Stage         Stage
	StageDuration uint16
	TickInStage   uint16
}

// Metadata tells the client it was accepted and should show the board.
type Metadata struct {
	ID          PlayerID
	Slot        uint8
	BoardWidth  float32
	BoardHeight float32
}

type PasswordChallenge struct{}

type TeamChallenge struct{ Available []TeamSlot }

type Reject struct{}

type ObjectCreate struct {
	ID      PieceID
	X, Y, A float32
	Owner   PlayerID
	Type    PieceType
}

type ObjectMove struct {
	ID      PieceID
	X, Y, A float32
}

type DeleteObject struct{ ID PieceID }

// StrategyCompletion reports how many path nodes remain after one was fulfilled.
type StrategyCompletion struct {
	ID        PieceID
	Remaining uint16
}

type PlayerData struct {
	ID       PlayerID
	Nickname string
	Slot     uint8
}

type YouLose struct{}

// Winner announces the winner; SystemPlayer means a tie.
type Winner struct{ ID PlayerID }

type Territory struct {
	ID     PieceID
	Radius float32
}

type Fabber struct {
	ID     PieceID
	Radius float32
}

type Disconnect struct{}

type Money struct {
	ID     PlayerID
	Amount uint32
}

type Explosion struct {
	X, Y   float32
	Radius float32
	Damage float32
}

type Health struct {
	ID     PieceID
	Health float32
}

type LaserCast struct {
	Caster       PieceID
	FromX, FromY float32
	ToX, ToY     float32
}

func (GameState) isServerMessage()          {}
func (Metadata) isServerMessage()           {}
func (PasswordChallenge) isServerMessage()  {}
func (TeamChallenge) isServerMessage()      {}
func (Reject) isServerMessage()             {}
func (ObjectCreate) isServerMessage()       {}
func (ObjectMove) isServerMessage()         {}
func (DeleteObject) isServerMessage()       {}
func (StrategyCompletion) isServerMessage() {}
func (PlayerData) isServerMessage()         {}
func (YouLose) isServerMessage()            {}
func (Winner) isServerMessage()             {}
func (Territory) isServerMessage()          {}
func (Fabber) isServerMessage()             {}
func (Disconnect) isServerMessage()         {}
func (Money) isServerMessage()              {}
func (Explosion) isServerMessage()          {}
func (Health) isServerMessage()             {}
func (LaserCast) isServerMessage()          {}

func (m GameState) MarshalWire(w *wire.Writer) {
	w.Tag(1)
	m.Stage.MarshalWire(w)
	w.U16(m.StageDuration)
	w.U16(m.TickInStage)
}

func (m Metadata) MarshalWire(w *wire.Writer) {
	w.Tag(2)
	w.U64(uint64(m.ID))
	w.U8(m.Slot)
	w.F32(m.BoardWidth)
	w.F32(m.BoardHeight)
}

func (PasswordChallenge) MarshalWire(w *wire.Writer) { w.Tag(3) }

func (m TeamChallenge) MarshalWire(w *wire.Writer) {
	w.Tag(4)
	w.SeqLen(len(m.Available))
	for _, t := range m.Available {
		w.String(t.Name)
		w.U8(t.Slot)
	}
}

func (Reject) MarshalWire(w *wire.Writer) { w.Tag(5) }

func (m ObjectCreate) MarshalWire(w *wire.Writer) {
	w.Tag(6)
	w.U64(uint64(m.ID))
	w.F32(m.X)
	w.F32(m.Y)
	w.F32(m.A)
	w.U64(uint64(m.Owner))
	m.Type.MarshalWire(w)
}

func (m ObjectMove) MarshalWire(w *wire.Writer) {
	w.Tag(7)
	w.U64(uint64(m.ID))
	w.F32(m.X)
	w.F32(m.Y)
	w.F32(m.A)
}

func (m DeleteObject) MarshalWire(w *wire.Writer) {
	w.Tag(8)
	w.U64(uint64(m.ID))
}

func (m StrategyCompletion) MarshalWire(w *wire.Writer) {
	w.Tag(9)
	w.U64(uint64(m.ID))
	w.U16(m.Remaining)
}

func (m PlayerData) MarshalWire(w *wire.Writer) {
	w.Tag(10)
	w.U64(uint64(m.ID))
	w.String(m.Nickname)
	w.U8(m.Slot)
}

func (YouLose) MarshalWire(w *wire.Writer) { w.Tag(11) }

func (m Winner) MarshalWire(w *wire.Writer) {
	w.Tag(12)
	w.U64(uint64(m.ID))
}

func (m Territory) MarshalWire(w *wire.Writer) {
	w.Tag(13)
	w.U64(uint64(m.ID))
	w.F32(m.Radius)
}

func (m Fabber) MarshalWire(w *wire.Writer) {
	w.Tag(14)
	w.U64(uint64(m.ID))
	w.F32(m.Radius)
}

func (Disconnect) MarshalWire(w *wire.Writer) { w.Tag(15) }

func (m Money) MarshalWire(w *wire.Writer) {
	w.Tag(16)
	w.U64(uint64(m.ID))
	w.U32(m.Amount)
}

func (m Explosion) MarshalWire(w *wire.Writer) {
	w.Tag(17)
	w.F32(m.X)
	w.F32(m.Y)
	w.F32(m.Radius)
	w.F32(m.Damage)
}

func (m Health) MarshalWire(w *wire.Writer) {
	w.Tag(18)
	w.U64(uint64(m.ID))
	w.F32(m.Health)
}

func (m LaserCast) MarshalWire(w *wire.Writer) {
	w.Tag(19)
	w.U64(uint64(m.Caster))
	w.F32(m.FromX)
	w.F32(m.FromY)
	w.F32(m.ToX)
	w.F32(m.ToY)
}

// DecodeServer decodes one ServerMessage payload. Clients and tests use it.
func DecodeServer(b []byte) (ServerMessage, error) {
	return wire.Decode(b, readServer)
}

// teamSlotMin is the smallest encoding of a TeamSlot: empty name prefix + slot.
const teamSlotMin = 4 + 1

func readServer(r *wire.Reader) ServerMessage {
	switch t := r.Tag(); t {
	case 0:
		return readTest(r)
	case 1:
		return GameState{Stage: readStage(r), StageDuration: r.U16(), TickInStage: r.U16()}
	case 2:
		return Metadata{ID: PlayerID(r.U64()), Slot: r.U8(), BoardWidth: r.F32(), BoardHeight: r.F32()}
	case 3:
		return PasswordChallenge{}
	case 4:
		n := r.SeqLen(teamSlotMin)
		var slots []TeamSlot
		if n > 0 {
			slots = make([]TeamSlot, 0, n)
		}
		for i := 0; i < n && r.Err() == nil; i++ {
			slots = append(slots, TeamSlot{Name: r.String(), Slot: r.U8()})
		}
		return TeamChallenge{Available: slots}
	case 5:
		return Reject{}
	case 6:
		return ObjectCreate{ID: PieceID(r.U64()), X: r.F32(), Y: r.F32(), A: r.F32(), Owner: PlayerID(r.U64()), Type: readPieceType(r)}
	case 7:
		return ObjectMove{ID: PieceID(r.U64()), X: r.F32(), Y: r.F32(), A: r.F32()}
	case 8:
		return DeleteObject{ID: PieceID(r.U64())}
	case 9:
		return StrategyCompletion{ID: PieceID(r.U64()), Remaining: r.U16()}
	case 10:
		return PlayerData{ID: PlayerID(r.U64()), Nickname: r.String(), Slot: r.U8()}
	case 11:
		return YouLose{}
	case 12:
		return Winner{ID: PlayerID(r.U64())}
	case 13:
		return Territory{ID: PieceID(r.U64()), Radius: r.F32()}
	case 14:
		return Fabber{ID: PieceID(r.U64()), Radius: r.F32()}
	case 15:
		return Disconnect{}
	case 16:
		return Money{ID: PlayerID(r.U64()), Amount: r.U32()}
	case 17:
		return Explosion{X: r.F32(), Y: r.F32(), Radius: r.F32(), Damage: r.F32()}
	case 18:
		return Health{ID: PieceID(r.U64()), Health: r.F32()}
	case 19:
		return LaserCast{Caster: PieceID(r.U64()), FromX: r.F32(), FromY: r.F32(), ToX: r.F32(), ToY: r.F32()}
	default:
		r.UnknownTag("ServerMessage", t)
		return nil
	}
}
