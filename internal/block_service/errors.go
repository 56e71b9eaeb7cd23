package block_service

import "errors"

var (
	ErrNoSpace          = errors.New("no free blocks")
	ErrInvalidGeometry  = errors.New("invalid block geometry")
	ErrGeometryMismatch = errors.New("image geometry does not match configuration")
	ErrImageOpenFailed  = errors.New("failed to open disk image")
	ErrImageSyncFailed  = errors.New("failed to sync disk image")
)
