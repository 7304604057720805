package protocol

import "errors"

var (
	ErrInvalidMagic       = errors.New("protocol: invalid magic")
	ErrUnsupportedVersion = errors.New("protocol: unsupported version")
	ErrShortHeader        = errors.New("protocol: short fixed header")
	ErrHeaderLenTooSmall  = errors.New("protocol: header_len smaller than fixed header")
	ErrPayloadTooLarge    = errors.New("protocol: payload too large")
	ErrShortFieldHeader   = errors.New("protocol: short field header")
	ErrShortFieldValue    = errors.New("protocol: short field value")
	ErrUnknownMessageType = errors.New("protocol: unknown message type")
	ErrMissingField       = errors.New("protocol: missing required field")
	ErrFieldTypeMismatch  = errors.New("protocol: field type mismatch")
)
