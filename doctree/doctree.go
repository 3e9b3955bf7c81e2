// Package doctree models the structured document trees produced by the
// note editor and provides plain-text extraction from them.
package doctree

import (
	"encoding/json"
	"strings"
)

// Node is one node of a document tree. A node is either a text leaf
// (Text set) or a container holding an ordered list of children.
type Node struct {
	Type     string
	Text     string
	Children []*Node
}

// nodeJSON is the wire shape: {type, text?, content?}.
type nodeJSON struct {
	Type    string            `json:"type"`
	Text    string            `json:"text,omitempty"`
	Content []json.RawMessage `json:"content,omitempty"`
}

// UnmarshalJSON decodes the editor's wire format. Unknown or malformed
// child nodes are skipped rather than failing the whole document.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	n.Type = raw.Type
	n.Text = raw.Text
	n.Children = nil
	for _, childData := range raw.Content {
		child := &Node{}
		if err := json.Unmarshal(childData, child); err != nil {
			continue
		}
		n.Children = append(n.Children, child)
	}
	return nil
}

// MarshalJSON encodes back to the editor's wire format.
func (n *Node) MarshalJSON() ([]byte, error) {
	raw := nodeJSON{Type: n.Type, Text: n.Text}
	for _, child := range n.Children {
		childData, err := json.Marshal(child)
		if err != nil {
			return nil, err
		}
		raw.Content = append(raw.Content, childData)
	}
	return json.Marshal(raw)
}

// TextNode returns a leaf node holding the given text.
func TextNode(text string) *Node {
	return &Node{Type: "text", Text: text}
}

// ContainerNode returns a container node with the given children.
func ContainerNode(nodeType string, children ...*Node) *Node {
	return &Node{Type: nodeType, Children: children}
}

// Extract flattens a document tree to plain text by pre-order traversal,
// joining leaf text with single spaces. Containers without text or
// children contribute nothing. A nil tree yields "".
func Extract(n *Node) string {
	var parts []string
	collect(n, &parts)
	return strings.Join(parts, " ")
}

func collect(n *Node, parts *[]string) {
	if n == nil {
		return
	}
	if t := strings.TrimSpace(n.Text); t != "" {
		*parts = append(*parts, t)
	}
	for _, child := range n.Children {
		collect(child, parts)
	}
}

// Parse decodes a JSON document tree. Malformed input is treated as an
// empty document rather than an error.
func Parse(data []byte) *Node {
	if len(data) == 0 {
		return &Node{}
	}
	n := &Node{}
	if err := json.Unmarshal(data, n); err != nil {
		return &Node{}
	}
	return n
}
