package mail

import (
	"encoding/base64"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"google.golang.org/api/gmail/v1"
)

var (
	spaceRuns = regexp.MustCompile(`\s+`)
	blankRuns = regexp.MustCompile(`[ \t\f\r]+`)
	lineRuns  = regexp.MustCompile(`\n\s*\n+`)
)

// HTMLToText renders an HTML mail body as readable plain text.
func HTMLToText(document string) string {
	root, err := html.Parse(strings.NewReader(document))
	if err != nil {
		return ""
	}
	var sb strings.Builder
	writeText(root, &sb, 0)
	return tidy(sb.String())
}

func writeText(n *html.Node, sb *strings.Builder, depth int) {
	if depth > 80 {
		return
	}

	switch n.Type {
	case html.TextNode:
		sb.WriteString(spaceRuns.ReplaceAllString(n.Data, " "))
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "head", "title", "svg":
			return
		case "br":
			sb.WriteString("\n")
		case "p", "div", "tr", "table", "h1", "h2", "h3", "h4", "li":
			sb.WriteString("\n")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(c, sb, depth+1)
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "p", "div", "tr", "table", "h1", "h2", "h3", "h4", "li":
			sb.WriteString("\n")
		}
	}
}

func tidy(text string) string {
	text = blankRuns.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = lineRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// collectBodies walks the MIME tree and returns the first text/html and
// text/plain payloads found, depth first.
func collectBodies(part *gmail.MessagePart) (htmlBody, plainBody string) {
	if part == nil {
		return "", ""
	}

	mimeType := strings.ToLower(part.MimeType)
	if part.Body != nil && part.Body.Data != "" {
		switch {
		case strings.HasPrefix(mimeType, "text/html"):
			htmlBody = decodeBody(part.Body.Data)
		case strings.HasPrefix(mimeType, "text/plain"):
			plainBody = decodeBody(part.Body.Data)
		}
	}

	for _, child := range part.Parts {
		childHTML, childPlain := collectBodies(child)
		if htmlBody == "" {
			htmlBody = childHTML
		}
		if plainBody == "" {
			plainBody = childPlain
		}
		if htmlBody != "" && plainBody != "" {
			break
		}
	}
	return htmlBody, plainBody
}

func decodeBody(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			return ""
		}
	}
	return string(decoded)
}

func header(part *gmail.MessagePart, name string) string {
	if part == nil {
		return ""
	}
	for _, h := range part.Headers {
		if strings.EqualFold(h.Name, name) {
			return strings.TrimSpace(h.Value)
		}
	}
	return ""
}
