package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownChatNode is returned for chat nodes whose kind is not text,
// emoji, mention or link.
var ErrUnknownChatNode = errors.New("unknown chat node type")

// ChatNode is one segment of a chat message. The set of kinds is closed.
type ChatNode interface {
	Accept(v ChatNodeVisitor) string
	chatNode()
}

// ChatNodeVisitor renders each chat node kind to a string
type ChatNodeVisitor interface {
	VisitText(n TextNode) string
	VisitEmoji(n EmojiNode) string
	VisitMention(n MentionNode) string
	VisitLink(n LinkNode) string
}

// TextNode is plain text
type TextNode struct {
	Text string `json:"text"`
}

// EmojiNode is an emoji or custom emote
type EmojiNode struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	AuthorID string `json:"authorId,omitempty"`
	Src      string `json:"src,omitempty"`
	SrcSet   string `json:"srcSet,omitempty"`
}

// MentionNode references a user
type MentionNode struct {
	MentionedID          string `json:"mentionedId"`
	MentionedDisplayName string `json:"mentionedDisplayName"`
}

// LinkNode is a hyperlink whose label is made of text and emoji nodes
type LinkNode struct {
	Href  string     `json:"href"`
	Nodes []ChatNode `json:"nodes"`
}

func (TextNode) chatNode()    {}
func (EmojiNode) chatNode()   {}
func (MentionNode) chatNode() {}
func (LinkNode) chatNode()    {}

func (n TextNode) Accept(v ChatNodeVisitor) string    { return v.VisitText(n) }
func (n EmojiNode) Accept(v ChatNodeVisitor) string   { return v.VisitEmoji(n) }
func (n MentionNode) Accept(v ChatNodeVisitor) string { return v.VisitMention(n) }
func (n LinkNode) Accept(v ChatNodeVisitor) string    { return v.VisitLink(n) }

// RenderChat concatenates the visitor output for every node
func RenderChat(nodes []ChatNode, v ChatNodeVisitor) string {
	var b strings.Builder
	for _, n := range nodes {
		b.WriteString(n.Accept(v))
	}
	return b.String()
}

type textVisitor struct{}

func (textVisitor) VisitText(n TextNode) string       { return n.Text }
func (textVisitor) VisitEmoji(n EmojiNode) string     { return n.Code }
func (textVisitor) VisitMention(n MentionNode) string { return "@" + n.MentionedDisplayName }
func (v textVisitor) VisitLink(n LinkNode) string     { return RenderChat(n.Nodes, v) }

// ChatToText flattens chat nodes to plain text. Emojis become their code
// and mentions become @name.
func ChatToText(nodes []ChatNode) string {
	return RenderChat(nodes, textVisitor{})
}

// ============================================================================
// Decoding from generic values
// ============================================================================

// DecodeChatNodes converts a decoded JSON array (as produced by sonic or
// encoding/json into interface{}) into typed chat nodes.
func DecodeChatNodes(v interface{}) ([]ChatNode, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("chat nodes: expected array, got %T", v)
	}

	nodes := make([]ChatNode, 0, len(list))
	for i, item := range list {
		n, err := decodeChatNode(item, false)
		if err != nil {
			return nil, fmt.Errorf("chat node %d: %w", i, err)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func decodeChatNode(v interface{}, inLink bool) (ChatNode, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", v)
	}

	kind := str(m, "type")
	switch kind {
	case "text":
		return TextNode{Text: str(m, "text")}, nil
	case "emoji":
		return EmojiNode{
			ID:       str(m, "id"),
			Code:     str(m, "code"),
			AuthorID: str(m, "authorId"),
			Src:      str(m, "src"),
			SrcSet:   str(m, "srcSet"),
		}, nil
	case "mention":
		if inLink {
			break
		}
		return MentionNode{MentionedID: str(m, "mentionedId"), MentionedDisplayName: str(m, "mentionedDisplayName")}, nil
	case "link":
		if inLink {
			break
		}
		link := LinkNode{Href: str(m, "href")}
		children, _ := m["nodes"].([]interface{})
		for i, child := range children {
			n, err := decodeChatNode(child, true)
			if err != nil {
				return nil, fmt.Errorf("link node %d: %w", i, err)
			}
			link.Nodes = append(link.Nodes, n)
		}
		return link, nil
	}
	if inLink {
		return nil, fmt.Errorf("%w inside link: %q", ErrUnknownChatNode, kind)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownChatNode, kind)
}

// str reads a string field, treating null and missing as empty
func str(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}
