package token

import "strings"

// CommentKind distinguishes line vs block comments.
type CommentKind int

// Comment kinds.
const (
	LineComment  CommentKind = iota // -- comment
	BlockComment                    // /* comment */
)

// Comment represents a SQL comment with position.
type Comment struct {
	Kind CommentKind
	Text string // includes delimiters (-- or /* */)
	Span Span
}

// IsDoc reports whether the comment is a /** doc */ block attached to
// the labeled statement that follows it.
func (c *Comment) IsDoc() bool {
	return c.Kind == BlockComment && strings.HasPrefix(c.Text, "/**") && len(c.Text) > 4
}

// DocText strips the comment delimiters and leading asterisks.
func (c *Comment) DocText() string {
	body := strings.TrimSuffix(strings.TrimPrefix(c.Text, "/**"), "*/")
	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimPrefix(line, "*"))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
