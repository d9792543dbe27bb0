package snapshot

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"io"

	"github.com/jguida941/adaptive-hashmap-studio/engineerr"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/crypto/blake2b"
)

// checksumKey is the fixed key for the snapshot's BLAKE2b-keyed checksum.
// It is not a secret: its purpose is tamper/corruption detection, not
// authentication, so a fixed, published key is correct (spec §4.7 asks
// for "a BLAKE2b-keyed checksum over the payload", not a MAC against an
// operator-supplied key).
var checksumKey = []byte("adaptive-hashmap-studio-snapshot-v1")

func checksum(payload []byte) ([]byte, error) {
	h, err := blake2b.New256(checksumKey)
	if err != nil {
		return nil, err
	}
	h.Write(payload)
	return h.Sum(nil), nil
}

// WriteOptions controls container framing at write time.
type WriteOptions struct {
	Compress bool
}

// encode serializes p with gob, optionally gzip-compressing it, then wraps
// it in the fixed container: magic, version, compressed flag, payload
// length, checksum, payload.
func encode(p payload, opts WriteOptions) ([]byte, error) {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(p); err != nil {
		return nil, engineerr.Wrap(engineerr.IO, err, "encoding snapshot payload")
	}

	body := raw.Bytes()
	if opts.Compress {
		var compressed bytes.Buffer
		gw := gzip.NewWriter(&compressed)
		if _, err := gw.Write(body); err != nil {
			return nil, engineerr.Wrap(engineerr.IO, err, "compressing snapshot payload")
		}
		if err := gw.Close(); err != nil {
			return nil, engineerr.Wrap(engineerr.IO, err, "closing snapshot gzip stream")
		}
		body = compressed.Bytes()
	}

	sum, err := checksum(body)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.IO, err, "computing snapshot checksum")
	}

	var out bytes.Buffer
	out.Write(magic[:])
	binary.Write(&out, binary.BigEndian, version)
	var compressedFlag uint8
	if opts.Compress {
		compressedFlag = 1
	}
	out.WriteByte(compressedFlag)
	binary.Write(&out, binary.BigEndian, uint64(len(body)))
	out.Write(sum)
	out.Write(body)
	return out.Bytes(), nil
}

// decode validates the container framing and checksum, then decodes the
// payload. Checksum verification happens strictly before gob decoding, so
// a corrupted or tampered file never reaches the decoder (spec §4.7).
func decode(data []byte) (payload, error) {
	r := bytes.NewReader(data)

	var gotMagic [4]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil || gotMagic != magic {
		return payload{}, engineerr.Invariantf("snapshot: bad magic")
	}

	var gotVersion uint32
	if err := binary.Read(r, binary.BigEndian, &gotVersion); err != nil {
		return payload{}, engineerr.Invariantf("snapshot: truncated version field")
	}
	if gotVersion != version {
		return payload{}, engineerr.Invariantf("snapshot: unsupported version %d", gotVersion)
	}

	compressedFlag, err := r.ReadByte()
	if err != nil {
		return payload{}, engineerr.Invariantf("snapshot: truncated compression flag")
	}

	var length uint64
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return payload{}, engineerr.Invariantf("snapshot: truncated length field")
	}

	sum := make([]byte, blake2b.Size256)
	if _, err := io.ReadFull(r, sum); err != nil {
		return payload{}, engineerr.Invariantf("snapshot: truncated checksum field")
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return payload{}, engineerr.Invariantf("snapshot: truncated payload, expected %d bytes", length)
	}

	want, err := checksum(body)
	if err != nil {
		return payload{}, engineerr.Wrap(engineerr.IO, err, "computing snapshot checksum")
	}
	if !bytes.Equal(sum, want) {
		return payload{}, engineerr.Invariantf("snapshot: checksum mismatch")
	}

	if compressedFlag == 1 {
		gr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return payload{}, engineerr.Wrap(engineerr.Invariant, err, "snapshot: invalid gzip framing")
		}
		defer gr.Close()
		decompressed, err := io.ReadAll(gr)
		if err != nil {
			return payload{}, engineerr.Wrap(engineerr.Invariant, err, "snapshot: corrupt gzip stream")
		}
		body = decompressed
	}

	var p payload
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&p); err != nil {
		return payload{}, engineerr.Wrap(engineerr.Invariant, err, "snapshot: malformed payload")
	}
	return p, nil
}
