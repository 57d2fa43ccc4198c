// Package canon implements the canonical JSON encoding, content hashing,
// and UTC timestamp helpers shared by the event log, projector, and
// validator (spec §3, §4.2, §6 "Canonical JSON").
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the UTC ISO-8601 second-precision layout used for every
// event timestamp (spec §3).
const TimeLayout = "2006-01-02T15:04:05Z"

// NowUTC returns the current time formatted per TimeLayout.
func NowUTC() string {
	return time.Now().UTC().Format(TimeLayout)
}

// FormatUTC formats an arbitrary time per TimeLayout, converting to UTC
// first.
func FormatUTC(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// JSON marshals v as canonical JSON: UTF-8, recursively sorted object
// keys, minimal separators, and a single trailing newline (spec §6).
//
// Go's encoding/json sorts map keys when marshaling a map, but emits
// struct fields in declaration order. v is therefore marshaled once,
// decoded back into generic maps and slices (numbers kept verbatim via
// json.Number), and encoded again, so struct fields come out with sorted
// keys too, at every nesting level.
func JSON(v any) ([]byte, error) {
	first, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canon: encode: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(first))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canon: decode: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("canon: encode: %w", err)
	}
	// json.Encoder.Encode already appends exactly one trailing newline;
	// normalize in case a future caller feeds pre-serialized bytes through
	// here via a map[string]any round-trip that lost it.
	out := buf.Bytes()
	if !bytes.HasSuffix(out, []byte("\n")) {
		out = append(out, '\n')
	}
	return out, nil
}

// SHA256Hex returns the lowercase hex SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashJSON is JSON followed by SHA256Hex, the pair the projector uses to
// compute projection_hash_sha256 (spec §4.2).
func HashJSON(v any) (string, error) {
	data, err := JSON(v)
	if err != nil {
		return "", err
	}
	return SHA256Hex(data), nil
}

// SafeRelPath normalizes a file_updates path and rejects anything that
// could escape the project root (spec §4.4 boundary checks): backslashes
// are converted to forward slashes, a leading "./" is stripped, and empty,
// absolute, or ".."-containing paths are rejected.
func SafeRelPath(p string) (string, error) {
	norm := strings.ReplaceAll(p, "\\", "/")
	norm = strings.TrimPrefix(norm, "./")
	if norm == "" {
		return "", fmt.Errorf("canon: empty path")
	}
	if strings.HasPrefix(norm, "/") {
		return "", fmt.Errorf("canon: absolute path %q", p)
	}
	for _, seg := range strings.Split(norm, "/") {
		if seg == ".." {
			return "", fmt.Errorf("canon: path %q escapes root", p)
		}
	}
	return norm, nil
}
