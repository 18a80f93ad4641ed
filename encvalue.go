package docdb

import (
	"encoding/binary"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
)

type valueFlags uint64

const (
	vfVerBit0 = valueFlags(1 << iota)
	vfVerBit1
	vfVerBit2
	vfVerBit3
	vfCompressionBit0

	vfVerMask       = (vfVerBit0 | vfVerBit1 | vfVerBit2 | vfVerBit3)
	vfVer1          = vfVerBit0
	vfLZ4           = vfCompressionBit0
	vfSupportedMask = (vfVerMask | vfLZ4)
	vfDefault       = vfVer1

	maxDecompressedSize = 64 << 20
)

func (vf valueFlags) ver() valueFlags {
	return vf & vfVerMask
}

// Stored values: flags (uvarint), then for lz4-compressed values the raw
// size (uvarint), then msgpack data.
func encodeValue(v any, compressAbove int) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, err
	}

	flags := vfDefault
	if compressAbove > 0 && len(data) > compressAbove {
		compressed := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, compressed, nil)
		if err == nil && n > 0 && n < len(data) {
			buf := make([]byte, 0, 2*binary.MaxVarintLen64+n)
			buf = binary.AppendUvarint(buf, uint64(flags|vfLZ4))
			buf = binary.AppendUvarint(buf, uint64(len(data)))
			return append(buf, compressed[:n]...), nil
		}
	}

	buf := make([]byte, 0, binary.MaxVarintLen64+len(data))
	buf = binary.AppendUvarint(buf, uint64(flags))
	return append(buf, data...), nil
}

func decodeValue(raw []byte, v any) error {
	data, err := valueData(raw)
	if err != nil {
		return err
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return dataErrf(raw, 0, err, "msgpack")
	}
	return nil
}

func valueData(raw []byte) ([]byte, error) {
	f, n := binary.Uvarint(raw)
	if n <= 0 {
		return nil, dataErrf(raw, 0, nil, "invalid value header")
	}
	flags := valueFlags(f)
	if flags&^vfSupportedMask != 0 || flags.ver() != vfVer1 {
		return nil, dataErrf(raw, 0, nil, "unsupported value flags %x", uint64(flags))
	}
	data := raw[n:]
	if flags&vfLZ4 == 0 {
		return data, nil
	}

	size, m := binary.Uvarint(data)
	if m <= 0 || size > maxDecompressedSize {
		return nil, dataErrf(raw, n, nil, "invalid compressed size")
	}
	out := make([]byte, size)
	k, err := lz4.UncompressBlock(data[m:], out)
	if err != nil {
		return nil, dataErrf(raw, n+m, err, "lz4")
	}
	if uint64(k) != size {
		return nil, dataErrf(raw, n+m, nil, "decompressed %d bytes, wanted %d", k, size)
	}
	return out, nil
}
