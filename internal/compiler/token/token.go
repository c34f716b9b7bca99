package token

type TokenType string

const (
	TokenCode         TokenType = "CODE"          // plain SCL text
	TokenString       TokenType = "STRING"        // '...'
	TokenQuoted       TokenType = "QUOTED"        // "symbol name"
	TokenLineComment  TokenType = "LINE_COMMENT"  // // ...
	TokenBlockComment TokenType = "BLOCK_COMMENT" // (* ... *) or { ... }
	TokenSymbols      TokenType = "SYMBOLS"       // (* symbols: ... *) starting a line

	// Special
	TokenEOF     TokenType = "EOF"
	TokenIllegal TokenType = "ILLEGAL" // unterminated string or comment
)

// SymbolsKeyword opens a symbol declaration block inside an SCL comment.
const SymbolsKeyword = "symbols:"

type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

// IsComment reports whether the token is ignored by the SCL compiler.
func (t Token) IsComment() bool {
	return t.Type == TokenLineComment || t.Type == TokenBlockComment || t.Type == TokenSymbols
}
