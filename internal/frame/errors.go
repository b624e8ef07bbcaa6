package frame

import "errors"

var (
	// ErrContainerInvalid is returned when the container bytes do not
	// parse as a GIF or WebP image.
	ErrContainerInvalid = errors.New("frame: container bytes do not parse")

	// ErrNoValidFrames is returned when parsing succeeds but zero frames
	// meet minimum validity.
	ErrNoValidFrames = errors.New("frame: container has no valid frames")

	// ErrPosterDecodeFailed is returned when no candidate frame could be
	// decoded to serve as the poster image.
	ErrPosterDecodeFailed = errors.New("frame: poster frame could not be decoded")

	// ErrFrameDecodeFailed marks a background decode failure. The cache
	// never returns this to a playback caller; a failed decode simply
	// stays a miss and is retried on the next prefetch cycle.
	ErrFrameDecodeFailed = errors.New("frame: background decode failed")

	// ErrClosed is returned by operations attempted after Close.
	ErrClosed = errors.New("frame: source is closed")
)
