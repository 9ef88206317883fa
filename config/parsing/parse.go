package parsing

import (
	"fmt"
	"strings"

	"github.com/alecthomas/units"
	"github.com/go-gost/core/logger"
	xlogger "github.com/netwarden/warden/logger"
)

// Logger returns the default logger, a nop logger until one is set.
func Logger() logger.Logger {
	if l := logger.Default(); l != nil {
		return l
	}
	return xlogger.Nop()
}

// ParseSize parses a byte size such as 512KiB or 10MB. An empty string is zero.
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := units.ParseBase2Bytes(s)
	if err != nil {
		return 0, fmt.Errorf("size %q: %w", s, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("size %q: negative", s)
	}
	return uint64(v), nil
}
