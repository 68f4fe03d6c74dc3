package frontend

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
)

// Parser wraps the built participle parser for Program, constructed once
// and reused across files (participle.Build is the expensive step).
type Parser struct {
	inner *participle.Parser[Program]
}

// NewParser builds the grammar. Grounded on
// kanso-lang-kanso/grammar/parser.go's participle.Build + Elide +
// UseLookahead combination; this grammar needs lookahead 2 to distinguish
// `name = expr` (Assignment) from a bare expression statement starting
// with the same Ident token, and `name(` (FunctionCall) from a bare
// Ident primary.
func NewParser() (*Parser, error) {
	inner, err := participle.Build[Program](
		participle.Lexer(MesonLexer),
		participle.Elide("Whitespace", "Comment"),
		participle.UseLookahead(2),
	)
	if err != nil {
		return nil, fmt.Errorf("frontend: failed to build grammar: %w", err)
	}
	return &Parser{inner: inner}, nil
}

// ParseString parses source text attributed to filename for diagnostics.
func (p *Parser) ParseString(filename, source string) (*Program, error) {
	prog, err := p.inner.ParseString(filename, source)
	if err != nil {
		return nil, fmt.Errorf("frontend: %w", err)
	}
	return prog, nil
}
