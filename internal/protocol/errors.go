package protocol

import "errors"

var (
	// ErrMalformedFrame marks notification bytes that cannot be decoded
	ErrMalformedFrame = errors.New("protocol: malformed frame")
	// ErrChecksum marks a FramedBinary frame whose checksum byte does not match
	ErrChecksum = errors.New("protocol: checksum mismatch")
	// ErrForeignCharacteristic marks bytes that arrived on a characteristic the decoder does not read
	ErrForeignCharacteristic = errors.New("protocol: unexpected characteristic")
	// ErrUnsupportedCommand is returned by Encode for commands the equipment cannot accept
	ErrUnsupportedCommand = errors.New("protocol: command not supported by profile")
	// ErrUnknownProfile is returned by ProfileByName
	ErrUnknownProfile = errors.New("protocol: unknown profile")
)
