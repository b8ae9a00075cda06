package content

import (
	"bytes"
	"mime"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

var binaryMediaTypes = []string{
	"application/octet-stream",
	"application/pdf",
	"application/zip",
	"application/gzip",
}

var binaryMediaPrefixes = []string{"image/", "audio/", "video/", "font/"}

// checkText returns the payload as a string, or a non-empty reason when the
// payload is structured or binary data. The declared media type is checked
// first, then the body itself is sniffed.
func checkText(data []byte, mediaType string) (string, string) {
	if mediaType != "" {
		mt, _, err := mime.ParseMediaType(mediaType)
		if err != nil {
			return "", "unparseable media type " + mediaType
		}
		if reason := rejectMediaType(mt); reason != "" {
			return "", reason
		}
	}

	if bytes.IndexByte(data, 0) >= 0 {
		return "", "payload contains NUL bytes"
	}
	if !utf8.Valid(data) {
		return "", "payload is not valid UTF-8"
	}

	if len(data) > 0 {
		detected := mimetype.Detect(data)
		mt, _, _ := mime.ParseMediaType(detected.String())
		if reason := rejectMediaType(mt); reason != "" {
			return "", "sniffed " + reason
		}
		if !isText(detected) {
			return "", "sniffed non-text payload " + mt
		}
	}

	return string(data), ""
}

func rejectMediaType(mt string) string {
	if mt == "application/json" || strings.HasSuffix(mt, "+json") {
		return "structured payload " + mt
	}
	for _, b := range binaryMediaTypes {
		if mt == b {
			return "binary payload " + mt
		}
	}
	for _, p := range binaryMediaPrefixes {
		if strings.HasPrefix(mt, p) {
			return "binary payload " + mt
		}
	}
	return ""
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// validIdentifier rejects blank ids, path separators, control characters and
// the relative directory names.
func validIdentifier(id string) bool {
	if strings.TrimSpace(id) == "" || id == "." || id == ".." {
		return false
	}
	if strings.ContainsAny(id, `/\`) {
		return false
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
