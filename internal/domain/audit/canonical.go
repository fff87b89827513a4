package audit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

var sensitiveKeys = []string{
	"password", "passwd", "secret", "token", "apikey", "api_key", "authorization", "credential",
}

// Checksum returns the SHA-256 of the canonical JSON of a stored line,
// ignoring its checksum field.
func Checksum(line []byte) (string, error) {
	var doc map[string]any
	if err := decode(line, &doc); err != nil {
		return "", err
	}
	delete(doc, "checksum")
	canonical, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encoding canonical entry: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func seal(entry *Entry) ([]byte, error) {
	entry.Checksum = ""
	unsealed, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encoding entry: %w", err)
	}
	sum, err := Checksum(unsealed)
	if err != nil {
		return nil, err
	}
	entry.Checksum = sum
	return json.Marshal(entry)
}

func decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decoding audit line: %w", err)
	}
	return nil
}

// normalizeData converts any payload into a sanitised JSON object.
func normalizeData(data any) (map[string]any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding audit data: %w", err)
	}
	var value any
	if err := decode(raw, &value); err != nil {
		return nil, err
	}
	obj, ok := value.(map[string]any)
	if !ok {
		obj = map[string]any{"value": value}
	}
	return sanitize(obj).(map[string]any), nil
}

func sanitize(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, inner := range v {
			if isSensitive(key) {
				continue
			}
			out[key] = sanitize(inner)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = sanitize(inner)
		}
		return out
	default:
		return v
	}
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
