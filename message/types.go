// File: message/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package message defines the game's wire messages as closed tagged unions.
// Every union is a sealed interface; variant tags are the declaration order
// of the variants and are written as u32 before the variant's fields.

package message

import "github.com/momentics/exosphere-ws/wire"

// Version is exchanged in the Test probe; mismatching peers are dropped.
const Version uint8 = 2

// PieceID identifies a piece on the board.
type PieceID uint64

// PlayerID identifies a player. SystemPlayer is used for ties and server-owned pieces.
type PlayerID uint64

const SystemPlayer PlayerID = 0

// PieceType is a unit-variant enum encoded as its u32 tag.
type PieceType uint32

const (
	BasicFighter PieceType = iota
	Castle
	Bullet
	TieFighter
	Sniper
	DemolitionCruiser
	Battleship
	SmallBomb
	Seed
	Chest
	Farmhouse
	BallisticMissile
	FleetDefenseShip
	SeekingMissile
	HypersonicMissile
	TrackingMissile
	CruiseMissile
	ScrapShip
	LaserNode
	BasicTurret
	LaserNodeLR
	SmartTurret
	BlastTurret
	LaserTurret
	EmpZone

	pieceTypeCount
)

func (p PieceType) MarshalWire(w *wire.Writer) { w.Tag(uint32(p)) }

func readPieceType(r *wire.Reader) PieceType {
	t := r.Tag()
	if r.Err() == nil && t >= uint32(pieceTypeCount) {
		r.UnknownTag("PieceType", t)
	}
	return PieceType(t)
}

// Stage is the phase of the game loop.
type Stage uint32

const (
	StagePlaying Stage = iota
	StageWaiting
	StageMoveShips

	stageCount
)

func (s Stage) String() string {
	switch s {
	case StagePlaying:
		return "PLAYING"
	case StageWaiting:
		return "WAITING"
	case StageMoveShips:
		return "MOVE SHIPS"
	default:
		return "UNKNOWN"
	}
}

func (s Stage) MarshalWire(w *wire.Writer) { w.Tag(uint32(s)) }

func readStage(r *wire.Reader) Stage {
	t := r.Tag()
	if r.Err() == nil && t >= uint32(stageCount) {
		r.UnknownTag("Stage", t)
	}
	return Stage(t)
}

// PathNode is one waypoint of a piece's strategy path.
type PathNode interface {
	wire.Marshaler
	isPathNode()
}

type StraightTo struct{ X, Y float32 }

type Target struct{ Piece PieceID }

type Rotation struct {
	Angle    float32
	Duration uint16
}

func (StraightTo) isPathNode() {}
func (Target) isPathNode()     {}
func (Rotation) isPathNode()   {}

func (n StraightTo) MarshalWire(w *wire.Writer) {
	w.Tag(0)
	w.F32(n.X)
	w.F32(n.Y)
}

func (n Target) MarshalWire(w *wire.Writer) {
	w.Tag(1)
	w.U64(uint64(n.Piece))
}

func (n Rotation) MarshalWire(w *wire.Writer) {
	w.Tag(2)
	w.F32(n.Angle)
	w.U16(n.Duration)
}

func readPathNode(r *wire.Reader) PathNode {
	switch t := r.Tag(); t {
	case 0:
		return StraightTo{X: r.F32(), Y: r.F32()}
	case 1:
		return Target{Piece: PieceID(r.U64())}
	case 2:
		return Rotation{Angle: r.F32(), Duration: r.U16()}
	default:
		r.UnknownTag("PathNode", t)
		return nil
	}
}

// StrategyPathModification edits a piece's strategy path.
type StrategyPathModification interface {
	wire.Marshaler
	isPathModification()
}

type PathInsert struct {
	Piece PieceID
	Index uint16
	Node  PathNode
}

type PathClear struct{ Piece PieceID }

type PathSet struct {
	Piece PieceID
	Index uint16
	Node  PathNode
}

type PathDelete struct {
	Piece PieceID
	Index uint16
}

func (PathInsert) isPathModification() {}
func (PathClear) isPathModification()  {}
func (PathSet) isPathModification()    {}
func (PathDelete) isPathModification() {}

func (m PathInsert) MarshalWire(w *wire.Writer) {
	w.Tag(0)
	w.U64(uint64(m.Piece))
	w.U16(m.Index)
	marshalNode(w, m.Node)
}

func (m PathClear) MarshalWire(w *wire.Writer) {
	w.Tag(1)
	w.U64(uint64(m.Piece))
}

func (m PathSet) MarshalWire(w *wire.Writer) {
	w.Tag(2)
	w.U64(uint64(m.Piece))
	w.U16(m.Index)
	marshalNode(w, m.Node)
}

func (m PathDelete) MarshalWire(w *wire.Writer) {
	w.Tag(3)
	w.U64(uint64(m.Piece))
	w.U16(m.Index)
}

func marshalNode(w *wire.Writer, n PathNode) {
	if n == nil {
		w.Fail("nil PathNode")
		return
	}
	n.MarshalWire(w)
}

func readPathModification(r *wire.Reader) StrategyPathModification {
	switch t := r.Tag(); t {
	case 0:
		return PathInsert{Piece: PieceID(r.U64()), Index: r.U16(), Node: readPathNode(r)}
	case 1:
		return PathClear{Piece: PieceID(r.U64())}
	case 2:
		return PathSet{Piece: PieceID(r.U64()), Index: r.U16(), Node: readPathNode(r)}
	case 3:
		return PathDelete{Piece: PieceID(r.U64()), Index: r.U16()}
	default:
		r.UnknownTag("StrategyPathModification", t)
		return nil
	}
}

// ObjectSpecialPropertySet toggles a piece-specific property.
type ObjectSpecialPropertySet interface {
	wire.Marshaler
	isSpecialProperty()
}

type GunState struct{ On bool }

func (GunState) isSpecialProperty() {}

func (g GunState) MarshalWire(w *wire.Writer) {
	w.Tag(0)
	w.Bool(g.On)
}

func readSpecialProperty(r *wire.Reader) ObjectSpecialPropertySet {
	switch t := r.Tag(); t {
	case 0:
		return GunState{On: r.Bool()}
	default:
		r.UnknownTag("ObjectSpecialPropertySet", t)
		return nil
	}
}

// TeamSlot is one joinable team offered by TeamChallenge.
type TeamSlot struct {
	Name string
	Slot uint8
}

// Test is the protocol verification probe. It is variant 0 of both unions
// and the client must echo it back unchanged.
type Test struct {
	Magic   string
	U8      uint8
	U16     uint16
	U32     uint32
	U64     uint64
	I8      int8
	I16     int16
	I32     int32
	I64     int64
	F32     float32
	F64     float64
	Version uint8
}

// Probe returns the canonical verification probe for this build.
func Probe() Test {
	return Test{
		Magic:   "EXOSPHERE",
		U8:      128,
		U16:     4096,
		U32:     115600,
		U64:     123456789012345,
		I8:      -64,
		I16:     -4096,
		I32:     -115600,
		I64:     -123456789012345,
		F32:     -4096.512,
		F64:     -8192.756,
		Version: Version,
	}
}

func (Test) isClientMessage() {}
func (Test) isServerMessage() {}

func (m Test) MarshalWire(w *wire.Writer) {
	w.Tag(0)
	w.String(m.Magic)
	w.U8(m.U8)
	w.U16(m.U16)
	w.U32(m.U32)
	w.U64(m.U64)
	w.I8(m.I8)
	w.I16(m.I16)
	w.I32(m.I32)
	w.I64(m.I64)
	w.F32(m.F32)
	w.F64(m.F64)
	w.U8(m.Version)
}

func readTest(r *wire.Reader) Test {
	return Test{
		Magic:   r.String(),
		U8:      r.U8(),
		U16:     r.U16(),
		U32:     r.U32(),
		U64:     r.U64(),
		I8:      r.I8(),
		I16:     r.I16(),
		I32:     r.I32(),
		I64:     r.I64(),
		F32:     r.F32(),
		F64:     r.F64(),
		Version: r.U8(),
	}
}
