// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package ssr injects stored content into static HTML pages at serve time.
// Elements opt in through data-cms attributes; pages without stored content
// pass through byte-identical.
package ssr

import "strings"

// PageIDFromPath derives the content page id from a request path:
// "/programmes/sprints.html" -> "programmes/sprints", "/" -> "index".
func PageIDFromPath(requestPath string) string {
	id := strings.TrimPrefix(requestPath, "/")
	id = strings.TrimSuffix(id, ".html")
	id = strings.TrimSuffix(id, "/")
	if id == "" {
		return "index"
	}
	return id
}
