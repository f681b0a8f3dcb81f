package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
)

func ToRawMessage(v interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal struct to JSON: %w", err)
	}
	return json.RawMessage(data), nil
}

// DecodeStrict unmarshals data into v, rejecting unknown fields and trailing
// content.
func DecodeStrict(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("failed to unmarshal JSON: trailing data")
	}
	return nil
}
