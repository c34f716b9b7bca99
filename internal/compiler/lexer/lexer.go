// Package lexer splits SCL source into code, strings and comments. It is used
// on include files to find the symbol blocks they declare, so that a
// "(* symbols:" inside a string or a line comment is never mistaken for one.
package lexer

import (
	"fmt"
	"strings"

	"github.com/arnavsurve/s7gen/internal/compiler/token"
)

type Lexer struct {
	input        string
	position     int  // current char index
	readPosition int  // next char index
	ch           byte // current char

	line   int // current line number (1-indexed)
	column int // current column number (1-indexed)

	lineStart bool // only whitespace since the last newline
}

func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0, lineStart: true}
	l.readChar()
	return l
}

// readChar advances the lexer's position and updates the current character
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0 // EOF
	} else {
		l.ch = l.input[l.readPosition]
	}

	l.position = l.readPosition
	l.readPosition++
	if l.ch != 0 {
		l.column++
	}
}

// Returns the next character without consuming it
func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) eof() bool {
	return l.position >= len(l.input)
}

func (l *Lexer) NextToken() token.Token {
	startLine := l.line
	startCol := l.column

	if l.eof() {
		return l.newToken(token.TokenEOF, "", startLine, startCol)
	}

	switch {
	case l.ch == '/' && l.peekChar() == '/':
		return l.readLineComment(startLine, startCol)
	case l.ch == '(' && l.peekChar() == '*':
		return l.readBlockComment(startLine, startCol)
	case l.ch == '{':
		return l.readDelimited(token.TokenBlockComment, "}", startLine, startCol)
	case l.ch == '\'':
		return l.readQuoted(token.TokenString, '\'', startLine, startCol)
	case l.ch == '"':
		return l.readQuoted(token.TokenQuoted, '"', startLine, startCol)
	}
	return l.readCode(startLine, startCol)
}

// newToken is a helper to create a token.Token struct
func (l *Lexer) newToken(tokenType token.TokenType, literal string, line, col int) token.Token {
	return token.Token{Type: tokenType, Literal: literal, Line: line, Column: col}
}

func (l *Lexer) readCode(startLine, startCol int) token.Token {
	start := l.position
	for !l.eof() {
		if (l.ch == '/' && l.peekChar() == '/') || (l.ch == '(' && l.peekChar() == '*') ||
			l.ch == '{' || l.ch == '\'' || l.ch == '"' {
			break
		}
		l.track()
		l.readChar()
	}
	return l.newToken(token.TokenCode, l.input[start:l.position], startLine, startCol)
}

// track keeps lineStart current for the char about to be consumed.
func (l *Lexer) track() {
	switch l.ch {
	case '\n':
		l.lineStart = true
	case ' ', '\t', '\r':
	default:
		l.lineStart = false
	}
}

func (l *Lexer) readLineComment(startLine, startCol int) token.Token {
	start := l.position
	for !l.eof() && l.ch != '\n' {
		l.readChar()
	}
	l.lineStart = false
	return l.newToken(token.TokenLineComment, l.input[start:l.position], startLine, startCol)
}

func (l *Lexer) readBlockComment(startLine, startCol int) token.Token {
	atLineStart := l.lineStart
	tok := l.readDelimited(token.TokenBlockComment, "*)", startLine, startCol)
	if tok.Type != token.TokenBlockComment || !atLineStart {
		return tok
	}
	body := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(tok.Literal, "(*"), "*)"))
	if strings.HasPrefix(body, token.SymbolsKeyword) && len(body) > len(token.SymbolsKeyword) &&
		isSpace(body[len(token.SymbolsKeyword)]) {
		tok.Type = token.TokenSymbols
	}
	return tok
}

func (l *Lexer) readDelimited(tokenType token.TokenType, end string, startLine, startCol int) token.Token {
	start := l.position
	l.readChar() // opening char
	for {
		if l.eof() {
			return l.newToken(token.TokenIllegal, l.input[start:l.position], startLine, startCol)
		}
		if strings.HasPrefix(l.input[l.position:], end) {
			for range end {
				l.readChar()
			}
			l.lineStart = false
			return l.newToken(tokenType, l.input[start:l.position], startLine, startCol)
		}
		l.readChar()
	}
}

func (l *Lexer) readQuoted(tokenType token.TokenType, quote byte, startLine, startCol int) token.Token {
	start := l.position
	l.readChar() // opening quote
	for !l.eof() && l.ch != quote && l.ch != '\n' {
		l.readChar()
	}
	if l.ch != quote {
		return l.newToken(token.TokenIllegal, l.input[start:l.position], startLine, startCol)
	}
	l.readChar() // closing quote
	l.lineStart = false
	return l.newToken(tokenType, l.input[start:l.position], startLine, startCol)
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\n' || ch == '\t' || ch == '\r'
}

// Tokenize returns every token of input up to EOF.
func Tokenize(input string) []token.Token {
	l := NewLexer(input)
	var tokens []token.Token
	for {
		tok := l.NextToken()
		if tok.Type == token.TokenEOF {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}

// SymbolBlock is the YAML body of a (* symbols: ... *) comment.
type SymbolBlock struct {
	YAML string
	Line int
}

// ExtractSymbols removes the symbol blocks from an SCL text and returns the
// remaining code together with the blocks in source order.
func ExtractSymbols(input string) (string, []SymbolBlock, error) {
	var code strings.Builder
	var blocks []SymbolBlock
	for _, tok := range Tokenize(input) {
		switch tok.Type {
		case token.TokenIllegal:
			return "", nil, fmt.Errorf("line %d: unterminated %q", tok.Line, firstLine(tok.Literal))
		case token.TokenSymbols:
			body := strings.TrimSuffix(strings.TrimPrefix(tok.Literal, "(*"), "*)")
			blocks = append(blocks, SymbolBlock{YAML: body, Line: tok.Line})
		default:
			code.WriteString(tok.Literal)
		}
	}
	return code.String(), blocks, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
