package scanner

import (
	"strconv"
	"strings"
	"sync"

	"github.com/npillmayer/srceval"
	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

// The keyword tokens
var keywords = []string{"const", "let", "function", "return", "if", "else", "while",
	"for", "break", "continue", "true", "false", "null", "undefined", "debugger"}

// The operators and punctuation. Longer operators win over their prefixes,
// as lexmachine picks the longest match.
var literals = []string{"===", "!==", "<=", ">=", "&&", "||", "=>",
	"+", "-", "*", "/", "%", "<", ">", "!", "=", "?", ":", ";", ",", ".",
	"(", ")", "{", "}", "[", "]"}

// tokenIds will be set in initTokens()
var tokenIds map[string]int // A map from the token names to their token types

var initOnce sync.Once // monitors one-time initialization
func initTokens() {
	initOnce.Do(func() {
		tokenIds = make(map[string]int)
		tokenIds["NUM"] = int(Number)
		tokenIds["STRING"] = int(String)
		tokenIds["ID"] = int(Ident)
		for _, k := range keywords {
			tokenIds[k] = int(Keyword)
		}
		for _, lit := range literals {
			tokenIds[lit] = int(Punct)
		}
	})
}

var lexerOnce sync.Once
var sourceLexer *LMAdapter
var lexerErr error

// Lexer returns the lexmachine lexer for Source. The DFA is compiled once.
func Lexer() (*LMAdapter, error) {
	lexerOnce.Do(func() {
		initTokens()
		init := func(lexer *lexmachine.Lexer) {
			lexer.Add([]byte(`//[^\n]*\n?`), Skip) // skip comments
			lexer.Add([]byte(`/\*([^*]|\r|\n|(\*+([^*/]|\r|\n)))*\*+/`), Skip)
			lexer.Add([]byte(`( |\t|\n|\r)+`), Skip)
			lexer.Add([]byte(`\"([^"\\]|\\.)*\"`), makeString)
			lexer.Add([]byte(`'([^'\\]|\\.)*'`), makeString)
			lexer.Add([]byte(`[0-9]+(\.[0-9]+)?((e|E)(\+|\-)?[0-9]+)?`), makeNumber)
			// keywords have to precede identifiers: for matches of equal length
			// lexmachine prefers the pattern added first
			for _, k := range keywords {
				lexer.Add([]byte(k), MakeToken(k, tokenIds[k]))
			}
			lexer.Add([]byte(`([a-z]|[A-Z]|_)([a-z]|[A-Z]|[0-9]|_)*`), MakeToken("ID", tokenIds["ID"]))
		}
		sourceLexer, lexerErr = NewLMAdapter(init, literals, nil, tokenIds)
	})
	return sourceLexer, lexerErr
}

// --- lexmachine adapter ----------------------------------------------------

// LMAdapter is a lexmachine adapter to use lexmachine as a scanner.
type LMAdapter struct {
	Lexer *lexmachine.Lexer
}

// NewLMAdapter creates a new lexmachine adapter. It receives a list of
// literals ('[', ';', …), a list of keywords ("if", "for", …) and a
// map for translating token strings to their values.
//
// NewLMAdapter will return an error if compiling the DFA failed.
func NewLMAdapter(init func(*lexmachine.Lexer), literals []string, keywords []string, tokenIds map[string]int) (*LMAdapter, error) {
	adapter := &LMAdapter{}
	adapter.Lexer = lexmachine.NewLexer()
	init(adapter.Lexer)
	for _, lit := range literals {
		r := "\\" + strings.Join(strings.Split(lit, ""), "\\")
		adapter.Lexer.Add([]byte(r), MakeToken(lit, tokenIds[lit]))
	}
	for _, name := range keywords {
		adapter.Lexer.Add([]byte(strings.ToLower(name)), MakeToken(name, tokenIds[name]))
	}
	if err := adapter.Lexer.Compile(); err != nil {
		tracer().Errorf("Error compiling DFA: %v", err)
		return nil, err
	}
	return adapter, nil
}

// Scanner creates a scanner for a given input. The scanner will implement the
// Tokenizer interface.
func (lm *LMAdapter) Scanner(input string) (*LMScanner, error) {
	s, err := lm.Lexer.Scanner([]byte(input))
	if err != nil {
		return &LMScanner{}, err
	}
	return &LMScanner{scanner: s, Error: logError}, nil
}

// LMScanner is a scanner type for lexmachine scanners, implementing the
// Tokenizer interface.
type LMScanner struct {
	scanner *lexmachine.Scanner
	Error   func(error)
	last    srceval.Position
}

var _ Tokenizer = (*LMScanner)(nil)

// SetErrorHandler sets an error handler for the scanner.
func (lms *LMScanner) SetErrorHandler(h func(error)) {
	if h == nil {
		lms.Error = logError
		return
	}
	lms.Error = h
}

// Default error reporting function for lexmachine-based scanners
func logError(e error) {
	tracer().Errorf("scanner error: " + e.Error())
}

// NextToken is part of the Tokenizer interface. Unconsumable input is
// reported to the error handler and skipped.
func (lms *LMScanner) NextToken() Token {
	tok, err, eof := lms.scanner.Next()
	for err != nil {
		if ui, is := err.(*machines.UnconsumedInput); is {
			loc := srceval.At(ui.StartLine, ui.StartColumn)
			lms.Error(srceval.SyntaxError.New("unexpected character %q", firstRune(ui.Text)).
				WithProperty(srceval.PropLocation, loc))
			lms.scanner.TC = ui.FailTC
		} else {
			lms.Error(srceval.SyntaxError.Wrap(err, "scanner error"))
			return Token{Type: EOF, Loc: srceval.Location{Start: lms.last, End: lms.last}}
		}
		tok, err, eof = lms.scanner.Next()
	}
	if eof {
		return Token{Type: EOF, Loc: srceval.Location{Start: lms.last, End: lms.last}}
	}
	token := tok.(*lexmachine.Token)
	t := Token{
		Type:   TokType(token.Type),
		Lexeme: string(token.Lexeme),
		Value:  token.Value,
		Loc: srceval.Location{
			Start: srceval.Position{Line: token.StartLine, Column: token.StartColumn},
			End:   srceval.Position{Line: token.EndLine, Column: token.EndColumn},
		},
	}
	lms.last = t.Loc.End
	tracer().Debugf("token %v", t)
	return t
}

func firstRune(b []byte) string {
	for _, r := range string(b) {
		return string(r)
	}
	return ""
}

// ---------------------------------------------------------------------------

// Skip is a pre-defined action which ignores the scanned match.
func Skip(*lexmachine.Scanner, *machines.Match) (interface{}, error) {
	return nil, nil
}

// MakeToken is a pre-defined action which wraps a scanned match into a token.
func MakeToken(name string, id int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(id, string(m.Bytes), m), nil
	}
}

func makeNumber(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
	f, err := strconv.ParseFloat(string(m.Bytes), 64)
	if err != nil {
		return nil, srceval.SyntaxError.New("malformed number %q", string(m.Bytes)).
			WithProperty(srceval.PropLocation, srceval.At(m.StartLine, m.StartColumn))
	}
	return s.Token(tokenIds["NUM"], f, m), nil
}

func makeString(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
	lexeme := string(m.Bytes)
	return s.Token(tokenIds["STRING"], unescape(lexeme[1:len(lexeme)-1]), m), nil
}

func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
