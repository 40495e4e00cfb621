// Package snapshot encodes store state as protobuf Struct values so it can
// cross process boundaries and be rendered as JSON.
package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/tailored-agentic-units/statebox/store"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Encode converts state into a Struct keyed by subtree name. Subtree values
// are opaque to the store, so they are normalized through their JSON form
// first: structs honor their json tags and numbers become float64.
func Encode(state store.State) (*structpb.Struct, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}

	var normalized map[string]any
	if err := json.Unmarshal(data, &normalized); err != nil {
		return nil, fmt.Errorf("failed to normalize state: %w", err)
	}

	s, err := structpb.NewStruct(normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return s, nil
}

// Decode converts a Struct produced by Encode back into a State of plain
// JSON-like values.
func Decode(s *structpb.Struct) store.State {
	state := make(store.State, len(s.GetFields()))
	for subtree, value := range s.GetFields() {
		st := make(store.SubtreeState)
		for property, v := range value.GetStructValue().GetFields() {
			st[property] = v.AsInterface()
		}
		state[subtree] = st
	}
	return state
}

// MarshalJSON renders state as indented JSON through protojson.
func MarshalJSON(state store.State) ([]byte, error) {
	s, err := Encode(state)
	if err != nil {
		return nil, err
	}
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
}
