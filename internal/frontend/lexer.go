package frontend

import "github.com/alecthomas/participle/v2/lexer"

// MesonLexer tokenizes the DSL subset this frontend covers. Grounded on
// kanso-lang-kanso/grammar/lexer.go's single flat "Root" state with one
// regex per token class; the grammar matches keywords/operators by value.
// Keywords get their own token class ahead of Ident so a statement body
// never consumes `endif`/`elif`/`else` as a bare identifier expression.
var MesonLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "Comment", Pattern: `#[^\n]*`, Action: nil},
		{Name: "Keyword", Pattern: `(?:if|elif|else|endif|and|or|not|true|false)\b`, Action: nil},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`, Action: nil},
		{Name: "Number", Pattern: `[0-9]+`, Action: nil},
		{Name: "String", Pattern: `'(\\.|[^'\\])*'|"(\\.|[^"\\])*"`, Action: nil},
		{Name: "Operator", Pattern: `==|!=|<=|>=|[-+*/%<>=:,.()\[\]{}]`, Action: nil},
		{Name: "Whitespace", Pattern: `[ \t\r\n]+`, Action: nil},
	},
})
