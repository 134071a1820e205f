package gmail

import (
	"encoding/base64"
	"strings"

	gmailv1 "google.golang.org/api/gmail/v1"
)

// messageText prefers a text/plain part and falls back to stripped HTML
func messageText(part *gmailv1.MessagePart) string {
	if body := findPart(part, "text/plain"); body != "" {
		return body
	}
	if html := findPart(part, "text/html"); html != "" {
		return stripHTMLTags(html)
	}
	return ""
}

// findPart walks the MIME tree depth first and decodes the first part of mimeType
func findPart(part *gmailv1.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if strings.EqualFold(part.MimeType, mimeType) && part.Body != nil && part.Body.Data != "" {
		return decodeBase64URL(part.Body.Data)
	}
	for _, sub := range part.Parts {
		if body := findPart(sub, mimeType); body != "" {
			return body
		}
	}
	return ""
}

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", "\"",
	"&#39;", "'",
	"&apos;", "'",
	"&nbsp;", " ",
)

// stripHTMLTags drops tags, script and style content, and decodes common entities
func stripHTMLTags(html string) string {
	lower := lowerASCII(html)
	for _, tag := range []string{"script", "style"} {
		for {
			start := strings.Index(lower, "<"+tag)
			if start < 0 {
				break
			}
			end := strings.Index(lower[start:], "</"+tag+">")
			if end < 0 {
				html, lower = html[:start], lower[:start]
				break
			}
			end += start + len("</"+tag+">")
			html, lower = html[:start]+html[end:], lower[:start]+lower[end:]
		}
	}

	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteByte(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(entityReplacer.Replace(b.String())), " ")
}

// lowerASCII lowers ASCII letters only, keeping byte offsets aligned with s
func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func decodeBase64URL(data string) string {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		// Gmail uses unpadded base64url
		b, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(b)
}
