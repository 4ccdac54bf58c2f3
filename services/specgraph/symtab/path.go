// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package symtab

import "strings"

// Separator joins path segments.
const Separator = "."

// Join appends name to a parent path.
func Join(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + Separator + name
}

// ParentPath returns the path with its last segment removed, or "" for a root.
func ParentPath(path string) string {
	if i := strings.LastIndex(path, Separator); i >= 0 {
		return path[:i]
	}
	return ""
}

// IsDescendant reports whether path is nested strictly under ancestor.
//
// "auth" is an ancestor of "auth.login" but not of "authentication.x".
func IsDescendant(path, ancestor string) bool {
	return len(path) > len(ancestor)+len(Separator) &&
		strings.HasPrefix(path, ancestor) &&
		strings.HasPrefix(path[len(ancestor):], Separator)
}

// MatchesPrefix reports whether path equals prefix or is nested under it.
func MatchesPrefix(path, prefix string) bool {
	return path == prefix || IsDescendant(path, prefix)
}

// IsRelated reports whether a and b are equal or one is nested under the other.
func IsRelated(a, b string) bool {
	return a == b || IsDescendant(a, b) || IsDescendant(b, a)
}

// normalizeReference strips whitespace a grammar may leave inside a
// dotted reference ("auth . login").
func normalizeReference(text string) string {
	return strings.Join(strings.Fields(text), "")
}
