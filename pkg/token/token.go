// Package token defines the token types for leapquery's SQL lexer.
//
// The keyword set covers the SQLite grammar used by .sq and .sqm files:
// queries, mutations, DDL (tables, views, indexes, triggers) and upserts.
package token

import "fmt"

// TokenType represents the type of a lexical token.
//
//nolint:revive // Accept stutter as token.TokenType is clear and widely used
type TokenType int32

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Literals
	IDENT  // identifier or quoted identifier
	NUMBER // 123, 45.67, 1e10, 0x1F
	STRING // 'hello'
	BLOB   // x'CAFE'
	BIND   // ?, ?1, :name, @name, $name

	// Operators
	PLUS      // +
	MINUS     // -
	STAR      // *
	SLASH     // /
	PERCENT   // %
	DPIPE     // ||
	EQ        // = or ==
	NE        // != or <>
	LT        // <
	GT        // >
	LE        // <=
	GE        // >=
	AMP       // &
	PIPE      // |
	SHL       // <<
	SHR       // >>
	TILDE     // ~
	DOT       // .
	COMMA     // ,
	LPAREN    // (
	RPAREN    // )
	SEMICOLON // ;
	COLON     // : (statement labels)

	// Keywords (alphabetical)
	ABORT
	ACTION
	ADD
	AFTER
	ALL
	ALTER
	AND
	AS
	ASC
	AUTOINCREMENT
	BEFORE
	BEGIN
	BETWEEN
	BY
	CASCADE
	CASE
	CAST
	CHECK
	COLLATE
	COLUMN
	CONFLICT
	CONSTRAINT
	CREATE
	CROSS
	CURRENT_DATE
	CURRENT_TIME
	CURRENT_TIMESTAMP
	DEFAULT
	DEFERRABLE
	DEFERRED
	DELETE
	DESC
	DISTINCT
	DO
	DROP
	EACH
	ELSE
	END
	ESCAPE
	EXCEPT
	EXISTS
	FAIL
	FALSE
	FOR
	FOREIGN
	FROM
	FULL
	GLOB
	GROUP
	HAVING
	IF
	IGNORE
	IMMEDIATE
	IN
	INDEX
	INITIALLY
	INNER
	INSERT
	INSTEAD
	INTERSECT
	INTO
	IS
	ISNULL
	JOIN
	KEY
	LEFT
	LIKE
	LIMIT
	MATCH
	NATURAL
	NO
	NOT
	NOTHING
	NOTNULL
	NULL
	OF
	OFFSET
	ON
	OR
	ORDER
	OUTER
	PRIMARY
	RAISE
	RECURSIVE
	REFERENCES
	REGEXP
	RENAME
	REPLACE
	RESTRICT
	RETURNING
	RIGHT
	ROLLBACK
	ROW
	ROWID
	SELECT
	SET
	TABLE
	TEMP
	TEMPORARY
	THEN
	TO
	TRIGGER
	TRUE
	UNION
	UNIQUE
	UPDATE
	USING
	VALUES
	VIEW
	VIRTUAL
	WHEN
	WHERE
	WITH
	WITHOUT
)

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

var tokenNames = map[TokenType]string{
	EOF:     "EOF",
	ILLEGAL: "ILLEGAL",

	IDENT:  "IDENT",
	NUMBER: "NUMBER",
	STRING: "STRING",
	BLOB:   "BLOB",
	BIND:   "BIND",

	PLUS:      "+",
	MINUS:     "-",
	STAR:      "*",
	SLASH:     "/",
	PERCENT:   "%",
	DPIPE:     "||",
	EQ:        "=",
	NE:        "!=",
	LT:        "<",
	GT:        ">",
	LE:        "<=",
	GE:        ">=",
	AMP:       "&",
	PIPE:      "|",
	SHL:       "<<",
	SHR:       ">>",
	TILDE:     "~",
	DOT:       ".",
	COMMA:     ",",
	LPAREN:    "(",
	RPAREN:    ")",
	SEMICOLON: ";",
	COLON:     ":",
}

// keywords maps lowercase keyword strings to their token types.
var keywords = map[string]TokenType{
	"abort":             ABORT,
	"action":            ACTION,
	"add":               ADD,
	"after":             AFTER,
	"all":               ALL,
	"alter":             ALTER,
	"and":               AND,
	"as":                AS,
	"asc":               ASC,
	"autoincrement":     AUTOINCREMENT,
	"before":            BEFORE,
	"begin":             BEGIN,
	"between":           BETWEEN,
	"by":                BY,
	"cascade":           CASCADE,
	"case":              CASE,
	"cast":              CAST,
	"check":             CHECK,
	"collate":           COLLATE,
	"column":            COLUMN,
	"conflict":          CONFLICT,
	"constraint":        CONSTRAINT,
	"create":            CREATE,
	"cross":             CROSS,
	"current_date":      CURRENT_DATE,
	"current_time":      CURRENT_TIME,
	"current_timestamp": CURRENT_TIMESTAMP,
	"default":           DEFAULT,
	"deferrable":        DEFERRABLE,
	"deferred":          DEFERRED,
	"delete":            DELETE,
	"desc":              DESC,
	"distinct":          DISTINCT,
	"do":                DO,
	"drop":              DROP,
	"each":              EACH,
	"else":              ELSE,
	"end":               END,
	"escape":            ESCAPE,
	"except":            EXCEPT,
	"exists":            EXISTS,
	"fail":              FAIL,
	"false":             FALSE,
	"for":               FOR,
	"foreign":           FOREIGN,
	"from":              FROM,
	"full":              FULL,
	"glob":              GLOB,
	"group":             GROUP,
	"having":            HAVING,
	"if":                IF,
	"ignore":            IGNORE,
	"immediate":         IMMEDIATE,
	"in":                IN,
	"index":             INDEX,
	"initially":         INITIALLY,
	"inner":             INNER,
	"insert":            INSERT,
	"instead":           INSTEAD,
	"intersect":         INTERSECT,
	"into":              INTO,
	"is":                IS,
	"isnull":            ISNULL,
	"join":              JOIN,
	"key":               KEY,
	"left":              LEFT,
	"like":              LIKE,
	"limit":             LIMIT,
	"match":             MATCH,
	"natural":           NATURAL,
	"no":                NO,
	"not":               NOT,
	"nothing":           NOTHING,
	"notnull":           NOTNULL,
	"null":              NULL,
	"of":                OF,
	"offset":            OFFSET,
	"on":                ON,
	"or":                OR,
	"order":             ORDER,
	"outer":             OUTER,
	"primary":           PRIMARY,
	"raise":             RAISE,
	"recursive":         RECURSIVE,
	"references":        REFERENCES,
	"regexp":            REGEXP,
	"rename":            RENAME,
	"replace":           REPLACE,
	"restrict":          RESTRICT,
	"returning":         RETURNING,
	"right":             RIGHT,
	"rollback":          ROLLBACK,
	"row":               ROW,
	"rowid":             ROWID,
	"select":            SELECT,
	"set":               SET,
	"table":             TABLE,
	"temp":              TEMP,
	"temporary":         TEMPORARY,
	"then":              THEN,
	"to":                TO,
	"trigger":           TRIGGER,
	"true":              TRUE,
	"union":             UNION,
	"unique":            UNIQUE,
	"update":            UPDATE,
	"using":             USING,
	"values":            VALUES,
	"view":              VIEW,
	"virtual":           VIRTUAL,
	"when":              WHEN,
	"where":             WHERE,
	"with":              WITH,
	"without":           WITHOUT,
}

func init() {
	for word, tok := range keywords {
		tokenNames[tok] = upper(word)
	}
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

// softKeywords are keywords SQLite also accepts as identifiers
// (column names, function names, aliases).
var softKeywords = map[TokenType]bool{
	ABORT: true, ACTION: true, AFTER: true, ASC: true, BEFORE: true,
	CASCADE: true, COLUMN: true, CONFLICT: true, DEFERRED: true, DESC: true,
	DO: true, EACH: true, FAIL: true, GLOB: true, IF: true, IGNORE: true,
	IMMEDIATE: true, INITIALLY: true, INSTEAD: true, KEY: true, LIKE: true,
	MATCH: true, NO: true, OF: true, RAISE: true, RECURSIVE: true,
	REGEXP: true, RENAME: true, REPLACE: true, RESTRICT: true, ROW: true,
	ROWID: true, TEMP: true, TEMPORARY: true, TRIGGER: true, VIEW: true,
	VIRTUAL: true, WITHOUT: true,
}

// LookupIdent returns the token type for the given identifier.
// If the identifier is a keyword, the keyword token type is returned.
// Otherwise, IDENT is returned.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword returns true if the token type is a keyword.
func IsKeyword(t TokenType) bool {
	return t >= ABORT && t <= WITHOUT
}

// IsSoftKeyword reports whether a keyword may be used as an identifier.
func IsSoftKeyword(t TokenType) bool {
	return softKeywords[t]
}

// IsOperator returns true if the token type is an operator.
func IsOperator(t TokenType) bool {
	return t >= PLUS && t <= COLON
}

// Token represents a lexical token with position information.
// End points just past the token's last source byte, so quoted
// identifiers and strings keep an accurate span.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
	End     Position
}
