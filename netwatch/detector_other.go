//go:build !linux

package netwatch

import (
	"context"

	"github.com/netwarden/warden/network"
)

type Detector struct{}

// NewDetector is only implemented for Linux.
func NewDetector(opts ...Option) (*Detector, error) {
	return nil, ErrUnsupported
}

func (d *Detector) Detect(ctx context.Context) (*network.Network, error) {
	return nil, ErrUnsupported
}

func (d *Detector) Watch(ctx context.Context, fn func(*network.Network)) error {
	return ErrUnsupported
}

func (d *Detector) Close() error { return nil }
