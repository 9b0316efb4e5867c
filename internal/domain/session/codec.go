package session

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Marshal encodes a session record for byte-oriented stores.
func Marshal(sess *Session) ([]byte, error) {
	data, err := msgpack.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a record produced by Marshal.
func Unmarshal(data []byte) (*Session, error) {
	var sess Session
	if err := msgpack.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &sess, nil
}
