// Package endian provides the byte order engines used by every sbs codec.
//
// An EndianEngine combines binary.ByteOrder and binary.AppendByteOrder so a
// codec can both patch fixed slots in place (PutUint32) and grow a buffer
// (AppendUint32) through one value.
//
// Templates default to the host byte order, mirroring how typed buffers are
// laid out in memory:
//
//	engine := endian.Native()
//	buf = engine.AppendUint16(buf, 0xBEEF)
//
// All functions in this package are safe for concurrent use; the returned
// engines are stateless.
package endian

import (
	"encoding/binary"
	"unsafe"
)

// EndianEngine combines ByteOrder and AppendByteOrder from encoding/binary.
//
// binary.LittleEndian and binary.BigEndian both satisfy it.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

var native EndianEngine = probe()

// probe inspects the in-memory layout of a fixed integer to find the host byte order.
func probe() EndianEngine {
	// 0x0100 stores 0x00 first on little-endian hosts and 0x01 first on big-endian ones.
	var i uint16 = 0x0100
	b := (*[2]byte)(unsafe.Pointer(&i))
	if b[0] == 0x01 {
		return binary.BigEndian
	}

	return binary.LittleEndian
}

// Native returns the engine matching the host byte order.
func Native() EndianEngine {
	return native
}

// IsNativeLittleEndian reports whether the host is little-endian.
func IsNativeLittleEndian() bool {
	return native == EndianEngine(binary.LittleEndian)
}

// Little returns the little-endian engine.
func Little() EndianEngine {
	return binary.LittleEndian
}

// Big returns the big-endian engine.
func Big() EndianEngine {
	return binary.BigEndian
}

// For returns the little-endian engine when littleEndian is true and the
// big-endian engine otherwise.
func For(littleEndian bool) EndianEngine {
	if littleEndian {
		return binary.LittleEndian
	}

	return binary.BigEndian
}

// IsLittle reports whether engine writes the least significant byte first.
//
// Engines other than the two from encoding/binary are classified by encoding
// a probe value, so wrappers around the standard engines work as well.
func IsLittle(engine EndianEngine) bool {
	switch engine {
	case EndianEngine(binary.LittleEndian):
		return true
	case EndianEngine(binary.BigEndian):
		return false
	}

	var b [2]byte
	engine.PutUint16(b[:], 0x0001)

	return b[0] == 0x01
}
