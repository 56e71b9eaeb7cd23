package posix_server

// PosixServer exposes a storage service to remote callers.
type PosixServer interface {
	Start() error
	Stop() error
}
