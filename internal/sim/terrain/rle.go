package terrain

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// EncodeRLE encodes cube kinds into base64(varint pairs) of (kind, run_len).
func EncodeRLE(kinds []Kind) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(kinds) {
		k := kinds[i]
		run := 1
		for j := i + 1; j < len(kinds) && kinds[j] == k; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(k))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func DecodeRLE(b64 string) ([]Kind, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []Kind
	for i := 0; i < len(raw); {
		k, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if k > uint64(Workshop) {
			return nil, fmt.Errorf("unknown cube kind: %d", k)
		}
		for j := uint64(0); j < run; j++ {
			out = append(out, Kind(k))
		}
	}
	return out, nil
}
