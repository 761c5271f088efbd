package core

import (
	"github.com/cockroachdb/errors"
)

var (
	// Device refused to create an allocator, list, fence or committed resource.
	ErrDeviceResourceExhausted = errors.New("device resource exhausted")
	// A sub-allocation would run past the end of its buffer.
	ErrOutOfCapacity = errors.New("out of capacity")

	ErrParse = errors.New("parse error")
	ErrIO    = errors.New("io error")

	ErrInvalidArgument  = errors.New("invalid argument")
	ErrSurfaceResize    = errors.New("presentation surface resize failed")
	ErrNotReady         = errors.New("presentation surface not configured")
	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
)

// Wrap marks err with sentinel so errors.Is matches both the cause and the sentinel.
func Wrap(err error, sentinel error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, format, args...), sentinel)
}

// Fail builds a new error tagged with sentinel and logs it.
func Fail(sentinel error, format string, args ...interface{}) error {
	err := errors.Mark(errors.Newf(format, args...), sentinel)
	LogError(err.Error())
	return err
}
