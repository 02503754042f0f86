// Package jsoncodec is the single JSON entry point of the reporter. Message
// bodies, tag lists and bus payloads all go through sonic configured for
// encoding/json compatibility.
package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
)

var defaultConfig = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

// Decoder reads a stream of JSON values, one Decode call per value.
type Decoder interface {
	Decode(v any) error
	More() bool
}

// NewDecoder returns a streaming decoder over r.
func NewDecoder(r io.Reader) Decoder {
	return defaultConfig.NewDecoder(r)
}
