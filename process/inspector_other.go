//go:build !linux

package process

// NewInspector is only implemented for Linux; other platforms plug in
// their own Inspector through the connection hook.
func NewInspector() (Inspector, error) {
	return nil, ErrUnsupported
}
