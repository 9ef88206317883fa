package process

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// The caller token is an audit-token style array of 32-bit words,
// the pid is the sixth word.
const (
	callerPIDOffset = 20
	callerTokenSize = callerPIDOffset + 4
)

var (
	ErrInvalidToken = errors.New("process: invalid caller token")
)

// PIDFromToken extracts the process id from an opaque caller token.
func PIDFromToken(token []byte) (int, error) {
	if len(token) < callerTokenSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrInvalidToken, len(token))
	}
	pid := binary.LittleEndian.Uint32(token[callerPIDOffset:callerTokenSize])
	if pid == 0 || pid > 1<<22 {
		return 0, fmt.Errorf("%w: pid %d", ErrInvalidToken, pid)
	}
	return int(pid), nil
}
