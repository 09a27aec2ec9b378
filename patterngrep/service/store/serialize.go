package store

import (
	"github.com/vmihailenco/msgpack/v5"
)

// Serialize encodes v with msgpack.
func Serialize(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Deserialize decodes msgpack data into v.
func Deserialize(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}
