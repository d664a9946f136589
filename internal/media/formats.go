package media

import "strings"

// PreferredFormats is the capture format preference order. The first entry
// the encoder supports wins.
var PreferredFormats = []string{
	"video/webm;codecs=vp9,opus",
	"video/webm;codecs=vp8,opus",
	"video/webm;codecs=h264,opus",
	"video/webm",
}

// Format splits a MIME type like "video/webm;codecs=vp9,opus" into its parts.
type Format struct {
	MIME       string
	Container  string
	VideoCodec string
	AudioCodec string
}

// ParseFormat decodes a capture MIME type. Missing codecs are left empty.
func ParseFormat(mime string) Format {
	f := Format{MIME: strings.TrimSpace(mime)}
	base, params, _ := strings.Cut(f.MIME, ";")
	base = strings.TrimSpace(base)
	if _, container, ok := strings.Cut(base, "/"); ok {
		f.Container = container
	}
	params = strings.TrimSpace(params)
	if codecs, ok := strings.CutPrefix(params, "codecs="); ok {
		list := strings.Split(strings.Trim(codecs, `"`), ",")
		if len(list) > 0 {
			f.VideoCodec = strings.TrimSpace(list[0])
		}
		if len(list) > 1 {
			f.AudioCodec = strings.TrimSpace(list[1])
		}
	}
	return f
}

// ContentType is the container MIME type without codec parameters.
func (f Format) ContentType() string {
	if f.Container == "" {
		return "application/octet-stream"
	}
	return "video/" + f.Container
}

// ExtensionFor maps a content type to a file extension.
func ExtensionFor(contentType string) string {
	base, _, _ := strings.Cut(contentType, ";")
	switch strings.TrimSpace(base) {
	case "video/webm":
		return ".webm"
	case "video/mp4":
		return ".mp4"
	case "video/x-matroska":
		return ".mkv"
	default:
		return ".bin"
	}
}
