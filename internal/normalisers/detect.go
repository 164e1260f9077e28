package normalisers

import (
	"net/http"
	"path/filepath"
	"strings"
)

// extensionTypes covers formats the stdlib mime table misses or
// disagrees on across platforms.
var extensionTypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".mdx":      "text/markdown",
	".txt":      "text/plain",
	".text":     "text/plain",
	".log":      "text/plain",
	".rst":      "text/plain",
	".csv":      "text/csv",
	".json":     "application/json",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".go":       "text/x-go",
	".py":       "text/x-python",
	".rs":       "text/x-rust",
	".java":     "text/x-java",
	".c":        "text/x-c",
	".h":        "text/x-c",
	".cpp":      "text/x-c++",
	".rb":       "text/x-ruby",
	".sh":       "text/x-shellscript",
	".sql":      "text/x-sql",
	".js":       "text/javascript",
	".ts":       "text/typescript",
	".css":      "text/css",
	".xml":      "application/xml",
	".html":     "text/html",
	".htm":      "text/html",
	".xhtml":    "application/xhtml+xml",
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".eml":      "message/rfc822",
}

// DetectMIME guesses a media type from the file name, falling back to
// content sniffing.
func DetectMIME(name string, content []byte) string {
	if mt, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	return NormaliseMIME(http.DetectContentType(content))
}
