package template

import (
	"fmt"
	"html"
	htmltemplate "html/template"

	"github.com/microcosm-cc/bluemonday"

	"github.com/GriffinCanCode/widgetkit/internal/shared/types"
)

// chatPolicy allows exactly the markup the chat renderer produces
func chatPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowAttrs("data-type").OnElements("a", "img", "span")
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("data-emojiid", "src", "srcset").OnElements("img")
	p.AllowAttrs("data-userid").OnElements("span")
	p.AllowURLSchemes("http", "https")
	p.RequireParseableURLs(true)
	return p
}

type markupVisitor struct{}

func (markupVisitor) VisitText(n types.TextNode) string {
	return html.EscapeString(n.Text)
}

func (markupVisitor) VisitEmoji(n types.EmojiNode) string {
	return fmt.Sprintf(`<img data-type="emoji" data-emojiid="%s" src="%s" srcset="%s"/>`,
		html.EscapeString(n.ID), html.EscapeString(n.Src), html.EscapeString(n.SrcSet))
}

func (markupVisitor) VisitMention(n types.MentionNode) string {
	return fmt.Sprintf(`<span data-type="mention" data-userid="%s">%s</span>`,
		html.EscapeString(n.MentionedID), html.EscapeString(n.MentionedDisplayName))
}

func (v markupVisitor) VisitLink(n types.LinkNode) string {
	return fmt.Sprintf(`<a data-type="link" href="%s">%s</a>`,
		html.EscapeString(n.Href), types.RenderChat(n.Nodes, v))
}

// renderChat turns chat nodes into sanitized markup that the template
// inserts without further escaping.
func (e *Engine) renderChat(raw interface{}) (htmltemplate.HTML, error) {
	nodes, err := types.DecodeChatNodes(raw)
	if err != nil {
		return "", helperErr("renderChat", "received invalid chat nodes", err)
	}
	markup := types.RenderChat(nodes, markupVisitor{})
	return htmltemplate.HTML(e.policy.Sanitize(markup)), nil
}
