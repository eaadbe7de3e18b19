// Package op defines the data model shared by the assembler, serializer,
// execution engine, and disassembler: Values, Instructions, and Programs.
package op

import (
	"encoding/binary"
	"math"
)

// NumRegisters is the size of both the register file and the snapshot bank.
const NumRegisters = 64

// Value is a tagged byte blob. IsReg and IsTable are never both true; an
// untagged Value is an immediate whose Data is read through the typed
// accessors below.
type Value struct {
	IsReg   bool
	IsTable bool
	Data    []byte
}

// RegisterValue builds a Value that denotes register idx. The caller is
// responsible for range-checking idx against NumRegisters; Value itself
// does not refuse an out-of-range index, since the blob is just a byte.
func RegisterValue(idx uint8) Value {
	return Value{IsReg: true, Data: []byte{idx}}
}

// TableValue builds a Value that denotes a symbolic reference to name in
// the tables map. name is stored verbatim; callers lowercase before
// calling this, matching the case-folding rule in §3.
func TableValue(name string) Value {
	return Value{IsTable: true, Data: []byte(name)}
}

// RegisterIndex returns the register index carried by a register Value.
// It is meaningless if IsReg is false.
func (v Value) RegisterIndex() uint8 {
	if len(v.Data) == 0 {
		return 0
	}
	return v.Data[0]
}

// TableName returns the name carried by a table Value, with any trailing
// NUL trimmed. It is meaningless if IsTable is false.
func (v Value) TableName() string {
	return trimTrailingNUL(v.Data)
}

// Int64 reads Data as a little-endian signed 64-bit integer. Missing high
// bytes read as zero; extra bytes beyond the 8th are ignored. This read
// never fails.
func (v Value) Int64() int64 {
	var buf [8]byte
	copy(buf[:], v.Data)
	return int64(binary.LittleEndian.Uint64(buf[:]))
}

// Double reinterprets the first 8 bytes of Data (zero-padded if shorter)
// as an IEEE-754 double.
func (v Value) Double() float64 {
	var buf [8]byte
	copy(buf[:], v.Data)
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[:]))
}

// String reads Data as a string: if the last byte is zero, the bytes up
// to (not including) that terminator; otherwise the whole buffer.
func (v Value) String() string {
	if len(v.Data) > 0 && v.Data[len(v.Data)-1] == 0 {
		return string(v.Data[:len(v.Data)-1])
	}
	return string(v.Data)
}

// Bytes returns Data verbatim.
func (v Value) Bytes() []byte {
	return v.Data
}

// SetInt64 overwrites Data with the little-endian encoding of n.
func (v *Value) SetInt64(n int64) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(n))
	v.Data = buf
}

// SetDouble overwrites Data with the little-endian encoding of f's bits.
func (v *Value) SetDouble(f float64) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(f))
	v.Data = buf
}

// SetUint8 overwrites Data with a single byte.
func (v *Value) SetUint8(b byte) {
	v.Data = []byte{b}
}

// SetString overwrites Data with s followed by a trailing NUL, so the
// value always reads back through the C-string path.
func (v *Value) SetString(s string) {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	v.Data = buf
}

// SetBytes overwrites Data with a copy of b.
func (v *Value) SetBytes(b []byte) {
	v.Data = append([]byte(nil), b...)
}

func trimTrailingNUL(b []byte) string {
	if len(b) > 0 && b[len(b)-1] == 0 {
		return string(b[:len(b)-1])
	}
	return string(b)
}
