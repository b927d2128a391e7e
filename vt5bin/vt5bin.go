// Package vt5bin implements the VT5BIN10 binary container: a fixed 40-byte
// little-endian header, CRC32-checked, followed by an optionally
// GZIP-compressed payload. It is the on-disk format of the process-private
// index cache and the serverdata index; the optimized artefacts under
// binaries/ are plain gzip-compressed JSON.
package vt5bin

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/yvedd/voicetally-core/vterrors"
)

// Magic is the fixed 8-byte container signature.
var Magic = [8]byte{'V', 'T', '5', 'B', 'I', 'N', '1', '0'}

const (
	headerSize = 40

	// Codec values.
	CodecJSON Codec = 0
	CodecCBOR Codec = 1

	// Compression values.
	CompressionNone Compression = 0
	CompressionGzip Compression = 1
)

// Kind identifies the dataset carried by a container. The core only
// produces ALIAS_INDEX containers; the field exists so future dataset
// kinds can share the same codec without a format break.
type Kind uint16

// KindAliasIndex is the dataset kind written for alias-index artefacts.
const KindAliasIndex Kind = 100

// Codec identifies the payload's serialisation.
type Codec uint8

// Compression identifies the payload's compression scheme.
type Compression uint8

// HeaderVersion is the header layout version this package writes and the
// minimum version it will read.
const HeaderVersion uint16 = 1

// Header is the decoded form of a VT5BIN10 header.
type Header struct {
	Version           uint16
	Kind              Kind
	Codec             Codec
	Compression       Compression
	PayloadLength     uint64
	UncompressedLen   uint64
	RecordCount       uint32
	CRC32             uint32
}

// RecordCountUnknown marks a container whose record count was not tracked
// at write time.
const RecordCountUnknown uint32 = 0xFFFFFFFF

// Encode writes payload (already serialised, uncompressed) as a VT5BIN10
// container. When compress is true, the payload is GZIP-compressed and the
// Compression field is set accordingly; recordCount may be RecordCountUnknown.
func Encode(kind Kind, codec Codec, compress bool, recordCount uint32, payload []byte) ([]byte, error) {
	uncompressedLen := uint64(len(payload))
	body := payload
	compression := CompressionNone
	if compress {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(payload); err != nil {
			return nil, vterrors.Wrap(vterrors.KindIoFailed, "vt5bin.Encode", err)
		}
		if err := gw.Close(); err != nil {
			return nil, vterrors.Wrap(vterrors.KindIoFailed, "vt5bin.Encode", err)
		}
		body = buf.Bytes()
		compression = CompressionGzip
	}

	header := make([]byte, headerSize)
	copy(header[0:8], Magic[:])
	binary.LittleEndian.PutUint16(header[8:10], HeaderVersion)
	binary.LittleEndian.PutUint16(header[10:12], uint16(kind))
	header[12] = byte(codec)
	header[13] = byte(compression)
	binary.LittleEndian.PutUint16(header[14:16], 0)
	binary.LittleEndian.PutUint64(header[16:24], uint64(len(body)))
	binary.LittleEndian.PutUint64(header[24:32], uncompressedLen)
	binary.LittleEndian.PutUint32(header[32:36], recordCount)
	crc := crc32.ChecksumIEEE(header[0:36])
	binary.LittleEndian.PutUint32(header[36:40], crc)

	out := make([]byte, 0, headerSize+len(body))
	out = append(out, header...)
	out = append(out, body...)
	return out, nil
}

// Decode verifies a VT5BIN10 container and returns its header and
// decompressed payload. Verification failure (bad magic, unsupported
// header version, dataset kind mismatch, unrecognised codec/compression,
// or CRC mismatch) returns vterrors.KindDecodeFailed and a nil payload.
func Decode(data []byte, wantKind Kind) (Header, []byte, error) {
	var hdr Header
	if len(data) < headerSize {
		return hdr, nil, vterrors.New(vterrors.KindDecodeFailed, "vt5bin.Decode", "container shorter than header")
	}
	if !bytes.Equal(data[0:8], Magic[:]) {
		return hdr, nil, vterrors.New(vterrors.KindDecodeFailed, "vt5bin.Decode", "bad magic")
	}

	version := binary.LittleEndian.Uint16(data[8:10])
	if version < 1 {
		return hdr, nil, vterrors.New(vterrors.KindDecodeFailed, "vt5bin.Decode", "header version below 1")
	}
	kind := Kind(binary.LittleEndian.Uint16(data[10:12]))
	if kind != wantKind {
		return hdr, nil, vterrors.New(vterrors.KindDecodeFailed, "vt5bin.Decode", "dataset kind mismatch")
	}
	codec := Codec(data[12])
	if codec != CodecJSON && codec != CodecCBOR {
		return hdr, nil, vterrors.New(vterrors.KindDecodeFailed, "vt5bin.Decode", "unrecognised codec")
	}
	compression := Compression(data[13])
	if compression != CompressionNone && compression != CompressionGzip {
		return hdr, nil, vterrors.New(vterrors.KindDecodeFailed, "vt5bin.Decode", "unrecognised compression")
	}
	payloadLen := binary.LittleEndian.Uint64(data[16:24])
	uncompressedLen := binary.LittleEndian.Uint64(data[24:32])
	recordCount := binary.LittleEndian.Uint32(data[32:36])
	wantCRC := binary.LittleEndian.Uint32(data[36:40])
	gotCRC := crc32.ChecksumIEEE(data[0:36])
	if gotCRC != wantCRC {
		return hdr, nil, vterrors.New(vterrors.KindDecodeFailed, "vt5bin.Decode", "CRC32 mismatch")
	}

	body := data[headerSize:]
	if uint64(len(body)) < payloadLen {
		return hdr, nil, vterrors.New(vterrors.KindDecodeFailed, "vt5bin.Decode", "truncated payload")
	}
	body = body[:payloadLen]

	payload := body
	if compression == CompressionGzip {
		gr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return hdr, nil, vterrors.Wrap(vterrors.KindDecodeFailed, "vt5bin.Decode", err)
		}
		defer gr.Close()
		decompressed, err := io.ReadAll(gr)
		if err != nil {
			return hdr, nil, vterrors.Wrap(vterrors.KindDecodeFailed, "vt5bin.Decode", err)
		}
		payload = decompressed
	}
	if uint64(len(payload)) != uncompressedLen {
		return hdr, nil, vterrors.New(vterrors.KindDecodeFailed, "vt5bin.Decode", "uncompressed length mismatch")
	}

	hdr = Header{
		Version:         version,
		Kind:            kind,
		Codec:           codec,
		Compression:     compression,
		PayloadLength:   payloadLen,
		UncompressedLen: uncompressedLen,
		RecordCount:     recordCount,
		CRC32:           gotCRC,
	}
	return hdr, payload, nil
}
