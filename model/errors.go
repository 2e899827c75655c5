package model

import "golang.org/x/xerrors"

var (
	// ErrDeviceUnavailable means the capture device could not be acquired.
	ErrDeviceUnavailable = xerrors.New("device unavailable")
	// ErrEndOfStream is returned by a frame source that has no more frames.
	ErrEndOfStream = xerrors.New("end of stream")
	// ErrDecode means bytes could not be interpreted as an image.
	ErrDecode = xerrors.New("invalid image format")
	// ErrModelUnavailable means the detector was never loaded.
	ErrModelUnavailable = xerrors.New("model not loaded")
	// ErrStorage wraps archive read/write failures.
	ErrStorage = xerrors.New("storage error")
	// ErrInvalidReference rejects malformed or traversing archive names.
	ErrInvalidReference = xerrors.New("invalid reference")
	ErrNotFound         = xerrors.New("not found")
	ErrNotRunning       = xerrors.New("session not running")
)
