// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package ssr

import (
	"bytes"
	"fmt"
	"io"

	"golang.org/x/net/html"
)

// innerMarker tags an element whose inner HTML is replaced by a content field.
const innerMarker = "data-cms"

// attrMarkers map a marker attribute to the attribute it rewrites. The marker
// attributes themselves stay in the output so the editing overlay can find
// its targets.
var attrMarkers = map[string]string{
	"data-cms-href":    "href",
	"data-cms-src":     "src",
	"data-cms-alt":     "alt",
	"data-cms-content": "content",
}

// voidElements cannot carry inner HTML, so inner replacement never applies.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

type attribute struct {
	key string
	val string
}

// Rewrite streams page through a tokenizer, substituting content fields into
// marked elements. Field values for inner replacement are trusted markup and
// emitted verbatim; attribute values are escaped. Elements whose field has no
// stored value are left untouched. The returned flag reports whether any
// substitution occurred.
func Rewrite(page []byte, content map[string]string) ([]byte, bool, error) {
	if len(content) == 0 {
		return page, false, nil
	}

	var buf bytes.Buffer
	buf.Grow(len(page))
	modified := false

	z := html.NewTokenizer(bytes.NewReader(page))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return buf.Bytes(), modified, nil
			}
			return nil, false, fmt.Errorf("tokenizing page: %w", z.Err())

		case html.StartTagToken, html.SelfClosingTagToken:
			raw := z.Raw()
			name, attrs := tagAttributes(z)

			attrs, inner, hasInner, changed := applyContent(attrs, content)
			if !changed {
				buf.Write(raw)
				continue
			}
			modified = true

			writeTag(&buf, name, attrs, tt == html.SelfClosingTagToken)

			if hasInner && tt == html.StartTagToken && !voidElements[name] {
				buf.WriteString(inner)
				if err := skipInner(z); err != nil {
					return nil, false, err
				}
				buf.WriteString("</" + name + ">")
			}

		default:
			buf.Write(z.Raw())
		}
	}
}

// tagAttributes reads the current tag's name and attributes off the tokenizer.
func tagAttributes(z *html.Tokenizer) (string, []attribute) {
	name, hasAttr := z.TagName()
	var attrs []attribute
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		attrs = append(attrs, attribute{key: string(key), val: string(val)})
	}
	return string(name), attrs
}

// applyContent rewrites marker-targeted attribute values and returns the
// possibly-grown attribute list plus the inner replacement value, if any. An
// empty stored value is a valid replacement, so hasInner is reported
// separately.
func applyContent(attrs []attribute, content map[string]string) (out []attribute, inner string, hasInner, changed bool) {
	// Targets created by setAttribute land past n and are never markers
	n := len(attrs)
	for i := 0; i < n; i++ {
		a := attrs[i]
		if a.key == innerMarker {
			if value, ok := content[a.val]; ok {
				inner = value
				hasInner = true
				changed = true
			}
			continue
		}
		target, isMarker := attrMarkers[a.key]
		if !isMarker {
			continue
		}
		value, ok := content[a.val]
		if !ok {
			continue
		}
		attrs = setAttribute(attrs, target, value)
		changed = true
	}
	return attrs, inner, hasInner, changed
}

// setAttribute replaces the named attribute's value, creating the attribute
// when the element does not carry it yet.
func setAttribute(attrs []attribute, key, value string) []attribute {
	for i := range attrs {
		if attrs[i].key == key {
			attrs[i].val = value
			return attrs
		}
	}
	return append(attrs, attribute{key: key, val: value})
}

// writeTag renders a start tag with escaped attribute values.
func writeTag(buf *bytes.Buffer, name string, attrs []attribute, selfClosing bool) {
	buf.WriteByte('<')
	buf.WriteString(name)
	for _, a := range attrs {
		buf.WriteByte(' ')
		buf.WriteString(a.key)
		buf.WriteString(`="`)
		buf.WriteString(html.EscapeString(a.val))
		buf.WriteByte('"')
	}
	if selfClosing {
		buf.WriteString("/>")
	} else {
		buf.WriteByte('>')
	}
}

// skipInner consumes the original inner HTML of the element just opened,
// leaving the tokenizer positioned past its matching end tag.
func skipInner(z *html.Tokenizer) error {
	depth := 1
	for depth > 0 {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				// Unbalanced markup; nothing left to skip
				return nil
			}
			return fmt.Errorf("tokenizing page: %w", z.Err())
		case html.StartTagToken:
			name, _ := z.TagName()
			if !voidElements[string(name)] {
				depth++
			}
		case html.EndTagToken:
			depth--
		}
	}
	return nil
}
