//go:build !linux

package engine

import "camsession/internal/domain"

// NewV4L2Driver reports that video4linux is only available on Linux.
func NewV4L2Driver() (Driver, error) {
	return nil, domain.NewDomainError("NewV4L2Driver", domain.ErrDeviceUnavailable, "v4l2 capture requires linux")
}
