// Package canonical produces deterministic serializations and content hashes
// for structured records. Both the version store (entity checksums) and the
// audit ledger (chain hashes) depend on the encoding here being stable:
// object keys are sorted, numbers keep their JSON literal form, and top-level
// volatile hash fields are excluded before hashing.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/veritail/veritail/internal/models"
)

// volatileKeys are object keys excluded from the top level of a canonical
// encoding because they hold hashes derived from the value itself and would
// make hashing self-referential. Nested occurrences are ordinary content and
// are kept: a ledger entry's detail may legitimately record a checksum.
var volatileKeys = map[string]bool{
	"hash":      true,
	"checksum":  true,
	"prev_hash": true,
}

// Encode returns the canonical JSON encoding of v with top-level volatile
// keys excluded, the form that feeds checksums and chain hashes.
// Non-serializable input (channels, funcs, cyclic structures) returns an
// error wrapping models.ErrEncoding.
func Encode(v any) ([]byte, error) {
	return encode(v, true)
}

// EncodeContent is Encode without the volatile-key exclusion, for values
// that are stored or embedded as content rather than hashed as a whole
// record. It produces the same bytes a nested occurrence of v gets inside a
// hashed record, so stored text re-hashes identically on read.
func EncodeContent(v any) ([]byte, error) {
	return encode(v, false)
}

func encode(v any, top bool) ([]byte, error) {
	// Round-trip through encoding/json so arbitrary Go values collapse to
	// the JSON data model before normalization. Decoding with UseNumber
	// keeps numeric literals textually intact, which makes the encoding
	// idempotent for values that were already canonical.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEncoding, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEncoding, err)
	}

	var buf bytes.Buffer
	if err := encodeValue(&buf, decoded, top); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v any, top bool) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			if top && volatileKeys[k] {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, k)
			buf.WriteByte(':')
			if err := encodeValue(buf, val[k], false); err != nil {
				return err
			}
		}
		buf.WriteByte('}')

	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, item, false); err != nil {
				return err
			}
		}
		buf.WriteByte(']')

	case json.Number:
		buf.WriteString(val.String())

	case string:
		writeString(buf, val)

	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}

	case nil:
		buf.WriteString("null")

	default:
		return fmt.Errorf("%w: unexpected decoded type %T", models.ErrEncoding, v)
	}

	return nil
}

// writeString emits a JSON string. json.Marshal on a string cannot fail.
func writeString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s) //nolint:errcheck // marshalling a string cannot fail.
	buf.Write(b)
}

// Checksum returns the hex SHA-256 of the canonical encoding of v.
func Checksum(v any) (string, error) {
	b, err := Encode(v)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(b)

	return hex.EncodeToString(sum[:]), nil
}

// ChainHash computes the ledger chain hash: SHA-256 over the previous entry's
// hash concatenated with the canonical payload of the current entry.
func ChainHash(prevHash string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write(payload)

	return hex.EncodeToString(h.Sum(nil))
}

// Equal reports whether two values have identical canonical content
// encodings. No keys are excluded: the values compared are field content,
// not whole hashed records. Values that cannot be encoded are never equal
// to anything.
func Equal(a, b any) bool {
	ab, err := EncodeContent(a)
	if err != nil {
		return false
	}

	bb, err := EncodeContent(b)
	if err != nil {
		return false
	}

	return bytes.Equal(ab, bb)
}
