package main

import (
	"encoding/json"
	"sync"

	"github.com/nerrad567/ciot-device-core/internal/tsl"
)

// shadow holds the properties written by thing.property.set so that
// thing.property.get can answer them.
type shadow struct {
	mu    sync.RWMutex
	props map[string]json.RawMessage
}

func newShadow() *shadow {
	return &shadow{props: make(map[string]json.RawMessage)}
}

// set merges a JSON object of properties.
func (s *shadow) set(_ tsl.Basic, req tsl.Request) tsl.Response {
	var in map[string]json.RawMessage
	if err := json.Unmarshal([]byte(req.Params), &in); err != nil {
		return tsl.Failure(tsl.ErrorDeserializeFail, "params must be a JSON object")
	}

	s.mu.Lock()
	for k, v := range in {
		s.props[k] = v
	}
	s.mu.Unlock()
	return tsl.Success("")
}

// get answers a JSON array of property names, or every property when the
// array is empty.
func (s *shadow) get(_ tsl.Basic, req tsl.Request) tsl.Response {
	var names []string
	if req.Params != "" {
		if err := json.Unmarshal([]byte(req.Params), &names); err != nil {
			return tsl.Failure(tsl.ErrorDeserializeFail, "params must be a JSON array of names")
		}
	}

	s.mu.RLock()
	out := make(map[string]json.RawMessage, len(names))
	if len(names) == 0 {
		for k, v := range s.props {
			out[k] = v
		}
	}
	for _, n := range names {
		if v, ok := s.props[n]; ok {
			out[n] = v
		}
	}
	s.mu.RUnlock()

	data, err := json.Marshal(out)
	if err != nil {
		return tsl.Failure(tsl.ErrorSerializeFail, err.Error())
	}
	return tsl.Success(string(data))
}
