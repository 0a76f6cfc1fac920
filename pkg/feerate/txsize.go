package feerate

import (
	"github.com/btcsuite/btcd/blockchain"
)

// VByte defines a unit to express the transaction size. One virtual byte is
// four weight units. The size is recorded internally in weight units.
type VByte struct {
	wu uint64
}

// NewVByte creates a new VByte from a uint64 value.
func NewVByte(val uint64) VByte {
	return VByte{wu: val * blockchain.WitnessScaleFactor}
}
