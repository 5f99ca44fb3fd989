package fingerprint

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedEnvelope is returned for data URLs without the data: prefix or the ;base64, delimiter.
	ErrMalformedEnvelope = errors.New("malformed image envelope")
	// ErrInvalidBase64 is returned when the envelope payload is not valid base64.
	ErrInvalidBase64 = errors.New("invalid base64 image payload")
)

const base64Delimiter = ";base64,"

// ParseDataURL splits a data:image/<fmt>;base64,<payload> envelope and decodes
// the payload. The returned format is the part after the last slash of the media type.
func ParseDataURL(s string) (data []byte, format string, err error) {
	s = strings.TrimSpace(s)
	header, payload, ok := strings.Cut(s, base64Delimiter)
	if !ok {
		return nil, "", fmt.Errorf("%w: missing %q", ErrMalformedEnvelope, base64Delimiter)
	}
	if !strings.HasPrefix(header, "data:") {
		return nil, "", fmt.Errorf("%w: missing data: prefix", ErrMalformedEnvelope)
	}
	if payload == "" {
		return nil, "", fmt.Errorf("%w: empty payload", ErrMalformedEnvelope)
	}

	mediaType := strings.TrimPrefix(header, "data:")
	if i := strings.LastIndex(mediaType, "/"); i >= 0 {
		format = mediaType[i+1:]
	}

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidBase64, err)
	}
	return data, strings.ToLower(format), nil
}
