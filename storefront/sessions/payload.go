package sessions

import (
	"encoding/json"
)

// serializes a payload for storage; the store never interprets the result
func serializePayload(data map[string]any) (string, error) {
	if data == nil {
		data = map[string]any{}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return string(raw), nil
}

// deserializes a stored payload. Corrupt or empty input reads as an empty
// payload so one bad record cannot break session loads.
func deserializePayload(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return map[string]any{}
	}

	if data == nil {
		return map[string]any{}
	}

	return data
}
