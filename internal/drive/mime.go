package drive

import (
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"gopkg.in/yaml.v3"
)

const octetStream = "application/octet-stream"

// mimeByExt is the built-in extension fallback table, used when the
// browser supplies no type for a picked file.
var mimeByExt = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"pdf":  "application/pdf",
	"txt":  "text/plain",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"mp4":  "video/mp4",
	"mp3":  "audio/mpeg",
	"json": "application/json",
}

// MIMEResolver resolves a file's MIME type from, in order: the declared
// type, the extension override table, the built-in extension table, and
// finally content sniffing.
type MIMEResolver struct {
	overrides map[string]string
}

// NewMIMEResolver creates a resolver with optional extension overrides.
// Override keys are extensions without the leading dot.
func NewMIMEResolver(overrides map[string]string) *MIMEResolver {
	normalized := make(map[string]string, len(overrides))
	for ext, mime := range overrides {
		normalized[strings.ToLower(strings.TrimPrefix(ext, "."))] = mime
	}

	return &MIMEResolver{overrides: normalized}
}

// LoadMIMEOverrides reads an extension-to-MIME mapping from a YAML file.
func LoadMIMEOverrides(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading MIME overrides: %w", err)
	}

	overrides := map[string]string{}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parsing MIME overrides: %w", err)
	}

	return overrides, nil
}

// Resolve returns the MIME type for a file. declared wins when non-empty;
// data may be nil, in which case sniffing is skipped.
func (r *MIMEResolver) Resolve(name, declared string, data []byte) string {
	if declared != "" {
		return declared
	}

	if ext := extOf(name); ext != "" {
		if mime, ok := r.overrides[ext]; ok {
			return mime
		}

		if mime, ok := mimeByExt[ext]; ok {
			return mime
		}
	}

	if len(data) > 0 {
		return mimetype.Detect(data).String()
	}

	return octetStream
}

func extOf(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}

	return strings.ToLower(name[idx+1:])
}
