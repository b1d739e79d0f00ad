package content

// contentTypes is the fixed extension lookup table. It is case-sensitive by
// contract: "site.JS" does not match "js" and falls through to the binary
// default, keeping classification identical on every platform regardless of
// the host's MIME database.
var contentTypes = map[string]string{
	"css":  "text/css",
	"js":   "application/javascript",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
	"ico":  "image/x-icon",
	"html": "text/html",
	"json": "application/json",
}

// defaultContentType is used for unmapped or missing extensions.
const defaultContentType = "application/octet-stream"

// TypeForName returns the content type for a file name based on its
// extension (the part after the last dot, exact case).
func TypeForName(name string) string {
	ext := ""
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			break
		}
		if name[i] == '.' {
			ext = name[i+1:]
			break
		}
	}
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return defaultContentType
}
