package docstore

import (
	"github.com/vmihailenco/msgpack/v5"
)

// Stored value layout: flags (uvarint), recency (uvarint), then the msgpack
// encoding of the document. Tombstones carry the header only; they keep a
// deletion observable to Backfill until a range erase sweeps them away.

const (
	valueFormatVer1      = 1
	valueFormatVerLatest = valueFormatVer1
)

type valueFlags uint64

const (
	vfVerBit0 = valueFlags(1 << iota)
	vfVerBit1
	vfVerBit2
	vfVerBit3
	vfTombstoneBit

	vfVerMask       = (vfVerBit0 | vfVerBit1 | vfVerBit2 | vfVerBit3)
	vfVer1          = vfVerBit0
	vfTombstone     = vfTombstoneBit
	vfSupportedMask = (vfVer1 | vfTombstone)
	vfDefault       = vfVer1
)

func (vf valueFlags) ver() valueFlags {
	return vf & vfVerMask
}

type value struct {
	Flags   valueFlags
	Recency Recency
	Data    []byte
}

func (vle value) isTombstone() bool {
	return vle.Flags&vfTombstone != 0
}

// encodeLiveValue serializes doc into buf, which must be a fresh empty buffer;
// stale bytes from a previous record must never leak into the new encoding.
func encodeLiveValue(buf []byte, doc Document, rec Recency) ([]byte, error) {
	if len(buf) != 0 {
		panic("value must be written to an empty buffer")
	}
	buf = appendUvarint(buf, uint64(vfDefault))
	buf = appendUvarint(buf, uint64(rec))
	bb := bytesBuilder{Buf: buf}
	err := msgpack.NewEncoder(&bb).Encode(doc.Value())
	if err != nil {
		return nil, encodingErrf(err, "msgpack")
	}
	return bb.Buf, nil
}

func encodeTombstone(buf []byte, rec Recency) []byte {
	if len(buf) != 0 {
		panic("value must be written to an empty buffer")
	}
	buf = appendUvarint(buf, uint64(vfDefault|vfTombstone))
	buf = appendUvarint(buf, uint64(rec))
	return buf
}

func decodeValue(key Key, data []byte) (value, error) {
	var vle value
	d := makeByteDecoder(data)

	v, err := d.Uvarint()
	if err != nil {
		return vle, corruptErrf(key, data, d.Off(), err, "bad flags")
	}
	if (v & ^uint64(vfSupportedMask)) != 0 {
		return vle, corruptErrf(key, data, d.Off(), nil, "unsupported flags %x", v)
	}
	vle.Flags = valueFlags(v)
	if vle.Flags.ver() != vfVer1 {
		return vle, corruptErrf(key, data, d.Off(), nil, "unsupported format version %d", vle.Flags.ver())
	}

	v, err = d.Uvarint()
	if err != nil {
		return vle, corruptErrf(key, data, d.Off(), err, "bad recency")
	}
	vle.Recency = Recency(v)

	vle.Data = d.Buf
	if vle.isTombstone() && len(vle.Data) != 0 {
		return vle, corruptErrf(key, data, d.Off(), nil, "tombstone carries %d bytes of data", len(vle.Data))
	}
	return vle, nil
}

// decodeDocument materializes the document stored in a live value.
func decodeDocument(key Key, vle value) (Document, error) {
	if vle.isTombstone() {
		panic("attempted to decode a tombstone")
	}
	var v any
	err := msgpack.Unmarshal(vle.Data, &v)
	if err != nil {
		return Document{}, corruptErrf(key, vle.Data, 0, err, "msgpack")
	}
	return NewDocument(v), nil
}
