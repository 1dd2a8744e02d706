//go:build !linux

package wifi

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

var errUnimplemented = fmt.Errorf("wifi: not implemented on %s", runtime.GOOS)

// A client is the no-op implementation for platforms without nl80211.
type client struct{}

func newClient(_ *config) (*client, error) { return nil, errUnimplemented }

func (*client) Close() error                                   { return errUnimplemented }
func (*client) Interfaces() ([]*Interface, error)              { return nil, errUnimplemented }
func (*client) BSS(_ *Interface) (*BSS, error)                 { return nil, errUnimplemented }
func (*client) AccessPoints(_ *Interface) ([]*BSS, error)      { return nil, errUnimplemented }
func (*client) Connect(_ *Interface, _ string, _ []byte) error { return errUnimplemented }
func (*client) Disconnect(_ *Interface) error                  { return errUnimplemented }

func (*client) PHYs() ([]*PHY, error)              { return nil, errUnimplemented }
func (*client) PHY(_ *Interface) (*PHY, error)     { return nil, errUnimplemented }
func (*client) SetDeadline(_ time.Time) error      { return errUnimplemented }
func (*client) SetReadDeadline(_ time.Time) error  { return errUnimplemented }
func (*client) SetWriteDeadline(_ time.Time) error { return errUnimplemented }

func (*client) ConnectWPAPSK(_ *Interface, _, _ string, _ []byte) error {
	return errUnimplemented
}

func (*client) Scan(_ context.Context, _ *Interface, _ []string, _ []byte) error {
	return errUnimplemented
}
