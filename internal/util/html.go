package util

import (
	"strings"

	"golang.org/x/net/html"
)

// blockElements end a line of text when stripped
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "td": true, "th": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// StripHTML returns the text content of an HTML fragment. Plain text is
// returned unchanged apart from surrounding whitespace.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}

	var buf strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			buf.WriteString(n.Data)
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			buf.WriteString(" ")
		}
	}
	walk(doc)

	return strings.Join(strings.Fields(buf.String()), " ")
}

// Paragraph renders text as an escaped HTML paragraph
func Paragraph(text string) string {
	return "<p>" + html.EscapeString(text) + "</p>"
}

// Heading renders an escaped HTML heading of the given level (clamped to 1..6)
func Heading(level int, text string) string {
	level = min(max(level, 1), 6)
	tag := "h" + string(rune('0'+level))
	return "<" + tag + ">" + html.EscapeString(text) + "</" + tag + ">"
}
