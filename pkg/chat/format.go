package chat

import (
	"strings"
)

// ExtractJSON returns the JSON payload of a model response. Models often wrap
// JSON in a fenced block, optionally tagged ```json, or surround it with prose;
// the fence contents win, otherwise the outermost object is returned.
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)

	if start := strings.Index(content, "```"); start >= 0 {
		rest := content[start+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			tag := strings.TrimSpace(rest[:nl])
			if tag == "" || !strings.ContainsAny(tag, "{[") {
				rest = rest[nl+1:]
			}
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}

	open := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if open >= 0 && end > open {
		return content[open : end+1]
	}
	return content
}
