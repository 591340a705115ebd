// Package codegen turns an approved technical solution into generated
// source files: it extracts declared file names, orders them, and generates
// each file independently.
package codegen

import "regexp"

// Extensions is the allow-list of deployable file types.
var Extensions = []string{"cls", "trigger", "html", "js", "css", "page"}

// fileNamePattern matches a path-like token ending in an allow-listed
// extension. The trailing \b rejects longer extensions such as ".json".
var fileNamePattern = regexp.MustCompile(`\b\w[\w/.-]*\.(?:cls|trigger|html|js|css|page)\b`)

// ExtractFileNames returns the file names declared in text, deduplicated,
// in first-occurrence order.
//
// Any token with an allowed extension counts, wherever it appears, so prose
// such as "Node.js" is a false positive. Names using other extensions
// (".xml", ".json") are never returned.
func ExtractFileNames(text string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range fileNamePattern.FindAllString(text, -1) {
		if seen[m] {
			continue
		}
		seen[m] = true
		names = append(names, m)
	}
	return names
}
