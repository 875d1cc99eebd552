/*
Package scanner implements a tokenizer for Source programs, backed by
lexmachine (a DFA-based lexer generator).

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/
package scanner

import (
	"fmt"

	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/srceval"
)

// tracer traces with key 'srceval.scanner'.
func tracer() tracing.Trace {
	return tracing.Select("srceval.scanner")
}

// TokType is a category type for a Token.
type TokType int

// Token categories. Keywords and punctuation are further distinguished by
// their lexemes.
const (
	EOF TokType = iota
	Number
	String
	Ident
	Keyword
	Punct
)

var tokTypeNames = []string{"EOF", "Number", "String", "Ident", "Keyword", "Punct"}

func (t TokType) String() string {
	if int(t) < len(tokTypeNames) {
		return tokTypeNames[t]
	}
	return fmt.Sprintf("TokType(%d)", int(t))
}

// Token represents an input token. Value is a float64 for numbers and the
// unescaped text for strings.
type Token struct {
	Type   TokType
	Lexeme string
	Value  interface{}
	Loc    srceval.Location
}

// Is is a predicate: is t a keyword or punctuation token with the given lexeme?
func (t Token) Is(lexeme string) bool {
	return (t.Type == Keyword || t.Type == Punct) && t.Lexeme == lexeme
}

func (t Token) String() string {
	if t.Type == EOF {
		return "<EOF>"
	}
	return fmt.Sprintf("<%s %q %s>", t.Type, t.Lexeme, t.Loc)
}

// Tokenizer is a scanner interface.
type Tokenizer interface {
	NextToken() Token
	SetErrorHandler(func(error))
}

// Tokenize scans a complete source text. It stops at the first error.
func Tokenize(source string) ([]Token, error) {
	lm, err := Lexer()
	if err != nil {
		return nil, err
	}
	sc, err := lm.Scanner(source)
	if err != nil {
		return nil, err
	}
	var firstErr error
	sc.SetErrorHandler(func(e error) {
		if firstErr == nil {
			firstErr = e
		}
	})
	var toks []Token
	for {
		tok := sc.NextToken()
		if firstErr != nil {
			return nil, firstErr
		}
		toks = append(toks, tok)
		if tok.Type == EOF {
			break
		}
	}
	tracer().Debugf("scanned %d tokens", len(toks))
	return toks, nil
}
