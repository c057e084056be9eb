package parser

import (
	"testing"

	"github.com/leapstack-labs/leapquery/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, input string) []token.Token {
	t.Helper()
	l := NewLexer(input)
	var toks []token.Token
	for {
		tok := l.NextToken()
		if tok.Type == token.EOF {
			break
		}
		toks = append(toks, tok)
	}
	require.Empty(t, l.Errors)
	return toks
}

func TestLexer_Tokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		types []token.TokenType
		lits  []string
	}{
		{
			name:  "keywords are case insensitive",
			input: "select From wHeRe",
			types: []token.TokenType{token.SELECT, token.FROM, token.WHERE},
			lits:  []string{"select", "From", "wHeRe"},
		},
		{
			name:  "operators",
			input: "= == != <> <= >= << >> || | & ~",
			types: []token.TokenType{token.EQ, token.EQ, token.NE, token.NE, token.LE, token.GE,
				token.SHL, token.SHR, token.DPIPE, token.PIPE, token.AMP, token.TILDE},
			lits: []string{"=", "==", "!=", "<>", "<=", ">=", "<<", ">>", "||", "|", "&", "~"},
		},
		{
			name:  "numbers",
			input: "1 1.5 .5 1e10 2.5E-3 0x1F",
			types: []token.TokenType{token.NUMBER, token.NUMBER, token.NUMBER, token.NUMBER, token.NUMBER, token.NUMBER},
			lits:  []string{"1", "1.5", ".5", "1e10", "2.5E-3", "0x1F"},
		},
		{
			name:  "string with escaped quote",
			input: "'it''s'",
			types: []token.TokenType{token.STRING},
			lits:  []string{"it's"},
		},
		{
			name:  "quoted identifiers",
			input: "\"first name\" `order` [group]",
			types: []token.TokenType{token.IDENT, token.IDENT, token.IDENT},
			lits:  []string{"first name", "order", "group"},
		},
		{
			name:  "blob",
			input: "x'CAFE'",
			types: []token.TokenType{token.BLOB},
			lits:  []string{"CAFE"},
		},
		{
			name:  "bind parameters",
			input: "? ?12 :name @id $value",
			types: []token.TokenType{token.BIND, token.BIND, token.BIND, token.BIND, token.BIND},
			lits:  []string{"?", "?12", ":name", "@id", "$value"},
		},
		{
			name:  "label colon",
			input: "selectAll:\nSELECT",
			types: []token.TokenType{token.IDENT, token.COLON, token.SELECT},
			lits:  []string{"selectAll", ":", "SELECT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks := lexAll(t, tt.input)
			require.Len(t, toks, len(tt.types))
			for i, tok := range toks {
				assert.Equal(t, tt.types[i], tok.Type, "token %d", i)
				assert.Equal(t, tt.lits[i], tok.Literal, "token %d", i)
			}
		})
	}
}

func TestLexer_Positions(t *testing.T) {
	toks := lexAll(t, "SELECT\n  \"a b\"")
	require.Len(t, toks, 2)

	assert.Equal(t, token.Position{Line: 1, Column: 1, Offset: 0}, toks[0].Pos)
	assert.Equal(t, token.Position{Line: 2, Column: 3, Offset: 9}, toks[1].Pos)
	// End covers both quotes.
	assert.Equal(t, 14, toks[1].End.Offset)
}

func TestLexer_Comments(t *testing.T) {
	l := NewLexer("-- line\n/** doc\n * text */ SELECT /* block */ 1")
	for l.NextToken().Type != token.EOF {
	}
	require.Len(t, l.Comments, 3)
	assert.Equal(t, token.LineComment, l.Comments[0].Kind)
	assert.True(t, l.Comments[1].IsDoc())
	assert.Equal(t, "doc\ntext", l.Comments[1].DocText())
	assert.False(t, l.Comments[2].IsDoc())
}

func TestLexer_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unterminated string", "'abc", ErrUnterminatedString},
		{"unterminated identifier", "\"abc", ErrUnterminatedIdent},
		{"unterminated comment", "/* abc", ErrUnterminatedComment},
		{"odd blob", "x'ABC'", ErrInvalidBlob},
		{"illegal character", "!", "unexpected character !"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLexer(tt.input)
			for l.NextToken().Type != token.EOF {
			}
			require.NotEmpty(t, l.Errors)
			assert.Contains(t, l.Errors[0].Error(), tt.want)
		})
	}
}
