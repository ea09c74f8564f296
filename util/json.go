package util

import "encoding/json"

// DeepCopy copies src into dest through a JSON round trip. Both arguments
// must be JSON-serializable; dest must be a pointer.
func DeepCopy(src, dest interface{}) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// DeepCopyMap returns an independent copy of a JSON-serializable map, so a
// caller can mutate the copy without touching the original (including nested
// maps and slices).
func DeepCopyMap(src map[string]interface{}) (map[string]interface{}, error) {
	if src == nil {
		return nil, nil
	}
	dest := map[string]interface{}{}
	if err := DeepCopy(src, &dest); err != nil {
		return nil, err
	}
	return dest, nil
}

// MarshalJSONString serializes a value to a compact JSON string.
func MarshalJSONString(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
