package drive

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// File payloads are stored as data URLs: "data:<mime>;base64,<bytes>".
// The format is self-describing, so a record's content survives being
// copied between scopes without consulting the record's type field.

// EncodeContent encodes raw bytes as a data URL with the given MIME type.
func EncodeContent(data []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = octetStream
	}

	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeContent decodes a data URL into raw bytes and the embedded MIME
// type. A content string without the "data:...," header is rejected.
func DecodeContent(content string) ([]byte, string, error) {
	header, payload, found := strings.Cut(content, ",")
	if !found {
		return nil, "", fmt.Errorf("content is not a data URL")
	}

	if !strings.HasPrefix(header, "data:") {
		return nil, "", fmt.Errorf("content is not a data URL")
	}

	mimeType := strings.TrimPrefix(header, "data:")
	mimeType = strings.TrimSuffix(mimeType, ";base64")

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decoding content payload: %w", err)
	}

	return data, mimeType, nil
}
