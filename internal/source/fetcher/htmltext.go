package fetcher

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// blockElements start a new line in extracted text.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"pre": true, "blockquote": true, "section": true, "article": true,
}

// HTMLText returns the visible text of an HTML document, ignoring script,
// style and noscript content. Runs of whitespace collapse to one space and
// block elements end a line.
func HTMLText(body []byte) (string, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var skipDepth int
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		skipped := n.Type == html.ElementNode && isSkipped(n.Data)
		if skipped {
			skipDepth++
		}
		if skipDepth == 0 && n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				if b.Len() > 0 && !endsWithSpace(b.String()) {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if skipped {
			skipDepth--
		}
		if n.Type == html.ElementNode && blockElements[strings.ToLower(n.Data)] && b.Len() > 0 && !endsWithSpace(b.String()) {
			b.WriteByte('\n')
		}
	}
	walk(root)
	return strings.TrimSpace(b.String()), nil
}

func isSkipped(tag string) bool {
	return strings.EqualFold(tag, "script") || strings.EqualFold(tag, "style") || strings.EqualFold(tag, "noscript")
}

func endsWithSpace(s string) bool {
	last := s[len(s)-1]
	return last == ' ' || last == '\n'
}
