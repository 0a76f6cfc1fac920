package prefstore

import (
	"bytes"
	"fmt"
	"time"

	"github.com/btcsuite/txengine/txengine"
	"github.com/lightningnetwork/lnd/tlv"
)

const (
	// levelType is the TLV type of the stored fee level.
	levelType tlv.Type = 0

	// updatedType is the TLV type of the unix time the level was stored.
	updatedType tlv.Type = 1
)

// levelRecord is the stored form of a fee level preference.
type levelRecord struct {
	level   uint8
	updated uint64
}

func (r *levelRecord) stream() (*tlv.Stream, error) {
	return tlv.NewStream(
		tlv.MakePrimitiveRecord(levelType, &r.level),
		tlv.MakePrimitiveRecord(updatedType, &r.updated),
	)
}

// encodeLevel serializes a fee level stored at the given time.
func encodeLevel(level txengine.FeeLevel, at time.Time) ([]byte, error) {
	r := &levelRecord{
		level:   uint8(level),
		updated: uint64(at.Unix()),
	}

	stream, err := r.stream()
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	if err := stream.Encode(&b); err != nil {
		return nil, newError(ErrDatabase, "encode fee level", err)
	}

	return b.Bytes(), nil
}

// decodeLevel deserializes a stored fee level.
func decodeLevel(data []byte) (txengine.FeeLevel, error) {
	var r levelRecord

	stream, err := r.stream()
	if err != nil {
		return 0, err
	}

	if err := stream.Decode(bytes.NewReader(data)); err != nil {
		return 0, newError(ErrCorruptRecord, "decode fee level", err)
	}

	return checkLevel(int64(r.level))
}

// checkLevel converts a stored integer into a known fee level.
func checkLevel(stored int64) (txengine.FeeLevel, error) {
	level := txengine.FeeLevel(stored)
	if stored < 0 || stored > 255 || !level.IsValid() {
		return 0, newError(ErrCorruptRecord,
			fmt.Sprintf("unknown fee level %d", stored), nil)
	}

	return level, nil
}
