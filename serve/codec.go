package serve

import (
	"bytes"
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// toStruct converts a JSON-object-shaped Go value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	st := &structpb.Struct{}
	if err := protojson.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("message is not a JSON object: %w", err)
	}
	return st, nil
}

// decodeRequest fills v from st and rejects unknown fields.
// A nil or empty Struct leaves v untouched.
func decodeRequest(st *structpb.Struct, v any) error {
	if len(st.GetFields()) == 0 {
		return nil
	}
	data, err := protojson.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal struct: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// decodeResponse fills v from st, ignoring fields v does not know.
func decodeResponse(st *structpb.Struct, v any) error {
	data, err := protojson.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal struct: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
