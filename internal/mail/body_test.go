package mail

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/gmail/v1"
)

func TestHTMLToTextDropsMarkupAndScripts(t *testing.T) {
	text := HTMLToText(`<div>Hello<br>World</div><script>var x = 1;</script><ul><li>one</li><li>two</li></ul>`)
	assert.Equal(t, "Hello\nWorld\n\none\n\ntwo", text)
}

func TestBodyTextFallsBackToSnippet(t *testing.T) {
	assert.Equal(t, "snippet text", FullMessage{Snippet: " snippet text "}.BodyText())
	assert.Equal(t, "plain", FullMessage{PlainBody: "plain", Snippet: "s"}.BodyText())
	assert.Equal(t, "s", FullMessage{HTMLBody: "<p> </p>", Snippet: "s"}.BodyText())
}

func TestCollectBodiesWalksNestedParts(t *testing.T) {
	encode := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }
	root := &gmail.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmail.MessagePart{
			{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					{MimeType: "text/plain; charset=utf-8", Body: &gmail.MessagePartBody{Data: encode("plain?")}},
					{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<p>rich</p>")}},
				},
			},
		},
	}

	htmlBody, plainBody := collectBodies(root)
	assert.Equal(t, "<p>rich</p>", htmlBody)
	assert.Equal(t, "plain?", plainBody)
}
