/*
Package parser creates abstract syntax trees from Source programs.

The parser is a hand-written recursive descent parser with precedence
climbing for binary operators. It validates programs against a chapter of
the Source language: constructs of higher chapters are rejected with a
ChapterError before any back end gets to see them.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package parser

import (
	"github.com/joomcode/errorx"
	"github.com/npillmayer/schuko/gconf"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/srceval"
	"github.com/npillmayer/srceval/ast"
	"github.com/npillmayer/srceval/parser/scanner"
)

// tracer traces with key 'srceval.parser'.
func tracer() tracing.Trace {
	return tracing.Select("srceval.parser")
}

// MaxChapter is the most expressive chapter of Source.
const MaxChapter = 4

// Option configures a parser.
type Option func(p *Parser)

// Chapter sets the language chapter to validate against (1…4).
func Chapter(n int) Option {
	return func(p *Parser) {
		if n >= 1 && n <= MaxChapter {
			p.chapter = n
		}
	}
}

// DefaultChapter returns the configured chapter (key "srceval.chapter"),
// or MaxChapter.
func DefaultChapter() int {
	if n := gconf.GetInt("srceval.chapter"); n >= 1 && n <= MaxChapter {
		return n
	}
	return MaxChapter
}

// Parser is a recursive descent parser for Source.
type Parser struct {
	toks      []scanner.Token
	pos       int
	chapter   int
	fnDepth   int // nesting of function bodies
	loopDepth int // nesting of loops within the current function
}

// Parse parses a Source program.
func Parse(source string, opts ...Option) (prog *ast.Program, err error) {
	toks, err := scanner.Tokenize(source)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks, chapter: DefaultChapter()}
	for _, opt := range opts {
		opt(p)
	}
	defer func() {
		if r := recover(); r != nil {
			if e, ok := errorx.ErrorFromPanic(r); ok {
				prog, err = nil, e
				return
			}
			panic(r)
		}
	}()
	prog = p.program()
	tracer().Debugf("parsed program with %d statements (chapter %d)", len(prog.Body), p.chapter)
	return prog, nil
}

// --- Token handling --------------------------------------------------------

func (p *Parser) cur() scanner.Token {
	return p.toks[p.pos]
}

func (p *Parser) peek(n int) scanner.Token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return p.toks[len(p.toks)-1] // EOF
}

func (p *Parser) next() scanner.Token {
	t := p.toks[p.pos]
	if t.Type != scanner.EOF {
		p.pos++
	}
	return t
}

func (p *Parser) prev() scanner.Token {
	if p.pos == 0 {
		return p.toks[0]
	}
	return p.toks[p.pos-1]
}

func (p *Parser) at(lexeme string) bool {
	return p.cur().Is(lexeme)
}

func (p *Parser) match(lexeme string) bool {
	if p.at(lexeme) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) expect(lexeme string) scanner.Token {
	t := p.cur()
	if !t.Is(lexeme) {
		p.fail(t.Loc, "expected '%s', found %s", lexeme, describe(t))
	}
	return p.next()
}

func (p *Parser) ident() *ast.Identifier {
	t := p.cur()
	if t.Type != scanner.Ident {
		p.fail(t.Loc, "expected identifier, found %s", describe(t))
	}
	p.next()
	return &ast.Identifier{Pos: ast.Pos{Location: t.Loc}, Name: t.Lexeme}
}

// Source requires semicolons, but we are lenient before a closing brace
// and at the end of input.
func (p *Parser) semicolon() {
	if p.match(";") || p.at("}") || p.cur().Type == scanner.EOF {
		return
	}
	p.fail(p.cur().Loc, "missing semicolon before %s", describe(p.cur()))
}

func (p *Parser) from(start scanner.Token) ast.Pos {
	return ast.Pos{Location: start.Loc.Extend(p.prev().Loc)}
}

func (p *Parser) fail(loc srceval.Location, format string, args ...interface{}) {
	errorx.Panic(srceval.SyntaxError.New(format, args...).WithProperty(srceval.PropLocation, loc))
}

func (p *Parser) require(chapter int, loc srceval.Location, what string) {
	if p.chapter < chapter {
		errorx.Panic(srceval.ChapterError.New("%s not allowed in Source §%d", what, p.chapter).
			WithProperty(srceval.PropLocation, loc))
	}
}

func describe(t scanner.Token) string {
	if t.Type == scanner.EOF {
		return "end of input"
	}
	return "'" + t.Lexeme + "'"
}

// --- Statements ------------------------------------------------------------

func (p *Parser) program() *ast.Program {
	start := p.cur()
	var body []ast.Node
	for p.cur().Type != scanner.EOF {
		body = append(body, p.statement())
	}
	return &ast.Program{Pos: p.from(start), Body: body}
}

func (p *Parser) block() *ast.Block {
	start := p.expect("{")
	var body []ast.Node
	for !p.at("}") {
		if p.cur().Type == scanner.EOF {
			p.fail(p.cur().Loc, "missing '}' for block starting at %s", start.Loc.Start)
		}
		body = append(body, p.statement())
	}
	p.expect("}")
	return &ast.Block{Pos: p.from(start), Body: body}
}

func (p *Parser) statement() ast.Node {
	t := p.cur()
	switch {
	case t.Is("const") || t.Is("let"):
		d := p.declaration()
		p.semicolon()
		d.Location = t.Loc.Extend(p.prev().Loc)
		return d
	case t.Is("function"):
		if p.peek(1).Type == scanner.Ident {
			p.next()
			fn := p.functionRest(t, p.ident().Name)
			return &ast.FunctionDeclaration{Pos: p.from(t), Function: fn}
		}
	case t.Is("return"):
		p.next()
		if p.fnDepth == 0 {
			p.fail(t.Loc, "return not in function")
		}
		var arg ast.Node
		if !p.at(";") && !p.at("}") && p.cur().Type != scanner.EOF {
			arg = p.expression()
		}
		p.semicolon()
		return &ast.Return{Pos: p.from(t), Argument: arg}
	case t.Is("if"):
		return p.ifStatement()
	case t.Is("while"):
		p.require(3, t.Loc, "while loops")
		p.next()
		p.expect("(")
		test := p.expression()
		p.expect(")")
		body := p.loopBody()
		return &ast.While{Pos: p.from(t), Test: test, Body: body}
	case t.Is("for"):
		return p.forStatement()
	case t.Is("break") || t.Is("continue"):
		p.require(3, t.Loc, t.Lexeme+" statements")
		p.next()
		if p.loopDepth == 0 {
			p.fail(t.Loc, "%s not in loop", t.Lexeme)
		}
		p.semicolon()
		if t.Is("break") {
			return &ast.Break{Pos: p.from(t)}
		}
		return &ast.Continue{Pos: p.from(t)}
	case t.Is("debugger"):
		p.next()
		p.semicolon()
		return &ast.Debugger{Pos: p.from(t)}
	case t.Is("{"):
		return p.block()
	case t.Is(";"):
		p.fail(t.Loc, "empty statement")
	}
	expr := p.expression()
	p.semicolon()
	return &ast.ExpressionStatement{Pos: p.from(t), Expression: expr}
}

func (p *Parser) declaration() *ast.VariableDeclaration {
	t := p.next()
	kind := ast.Const
	if t.Is("let") {
		p.require(3, t.Loc, "let declarations")
		kind = ast.Let
	}
	name := p.ident()
	if !p.at("=") {
		p.fail(p.cur().Loc, "missing initializer in declaration of %s", name.Name)
	}
	p.next()
	init := p.expression()
	return &ast.VariableDeclaration{Pos: p.from(t), Kind: kind, Name: name, Init: init}
}

func (p *Parser) ifStatement() ast.Node {
	t := p.expect("if")
	p.expect("(")
	test := p.expression()
	p.expect(")")
	cons := p.block()
	var alt ast.Node
	if p.match("else") {
		if p.at("if") {
			alt = p.ifStatement()
		} else {
			alt = p.block()
		}
	}
	return &ast.If{Pos: p.from(t), Test: test, Consequent: cons, Alternate: alt}
}

func (p *Parser) forStatement() ast.Node {
	t := p.expect("for")
	p.require(3, t.Loc, "for loops")
	p.expect("(")
	var init, test, update ast.Node
	if p.at("let") || p.at("const") {
		init = p.declaration()
	} else if !p.at(";") {
		init = p.expression()
	}
	p.expect(";")
	if !p.at(";") {
		test = p.expression()
	}
	p.expect(";")
	if !p.at(")") {
		update = p.expression()
	}
	p.expect(")")
	body := p.loopBody()
	return &ast.For{Pos: p.from(t), Init: init, Test: test, Update: update, Body: body}
}

func (p *Parser) loopBody() *ast.Block {
	p.loopDepth++
	defer func() { p.loopDepth-- }()
	return p.block()
}

// functionRest parses parameters and body, after 'function' and the optional name.
func (p *Parser) functionRest(start scanner.Token, name string) *ast.Function {
	p.expect("(")
	params := p.params()
	body := p.functionBody()
	return &ast.Function{Pos: p.from(start), Name: name, Params: params, Body: body}
}

func (p *Parser) params() []*ast.Identifier {
	var params []*ast.Identifier
	seen := make(map[string]bool)
	for !p.at(")") {
		id := p.ident()
		if seen[id.Name] {
			p.fail(id.Location, "duplicate parameter %s", id.Name)
		}
		seen[id.Name] = true
		params = append(params, id)
		if !p.at(")") {
			p.expect(",")
		}
	}
	p.expect(")")
	return params
}

func (p *Parser) functionBody() *ast.Block {
	saved := p.loopDepth
	p.fnDepth++
	p.loopDepth = 0
	defer func() {
		p.fnDepth--
		p.loopDepth = saved
	}()
	return p.block()
}

// --- Expressions -----------------------------------------------------------

func (p *Parser) expression() ast.Node {
	if p.arrowAhead() {
		return p.arrow()
	}
	t := p.cur()
	left := p.conditional()
	if p.at("=") {
		p.require(3, p.cur().Loc, "assignment")
		switch l := left.(type) {
		case *ast.Identifier:
		case *ast.Member:
		default:
			p.fail(l.Loc(), "invalid assignment target")
		}
		p.next()
		value := p.expression()
		return &ast.Assignment{Pos: p.from(t), Target: left, Value: value}
	}
	return left
}

// arrowAhead checks for 'x =>' or '( … ) =>'.
func (p *Parser) arrowAhead() bool {
	if p.cur().Type == scanner.Ident {
		return p.peek(1).Is("=>")
	}
	if !p.at("(") {
		return false
	}
	depth := 0
	for i := p.pos; i < len(p.toks); i++ {
		t := p.toks[i]
		switch {
		case t.Is("("):
			depth++
		case t.Is(")"):
			depth--
			if depth == 0 {
				return i+1 < len(p.toks) && p.toks[i+1].Is("=>")
			}
		case t.Type == scanner.EOF:
			return false
		}
	}
	return false
}

func (p *Parser) arrow() ast.Node {
	start := p.cur()
	var params []*ast.Identifier
	if p.match("(") {
		params = p.params()
	} else {
		params = []*ast.Identifier{p.ident()}
	}
	p.expect("=>")
	var body *ast.Block
	if p.at("{") {
		body = p.functionBody()
	} else {
		p.fnDepth++
		saved := p.loopDepth
		p.loopDepth = 0
		bstart := p.cur()
		expr := p.expression()
		p.fnDepth--
		p.loopDepth = saved
		ret := &ast.Return{Pos: p.from(bstart), Argument: expr}
		body = &ast.Block{Pos: ret.Pos, Body: []ast.Node{ret}}
	}
	return &ast.Function{Pos: p.from(start), Params: params, Body: body, Arrow: true}
}

func (p *Parser) conditional() ast.Node {
	t := p.cur()
	test := p.binary(precOr)
	if !p.match("?") {
		return test
	}
	cons := p.expression()
	p.expect(":")
	alt := p.expression()
	return &ast.Conditional{Pos: p.from(t), Test: test, Consequent: cons, Alternate: alt}
}

// Precedence values (higher binds tighter)
const (
	precNone = iota
	precOr
	precAnd
	precEquality
	precRelational
	precAdditive
	precMultiplicative
)

func precedence(t scanner.Token) int {
	if t.Type != scanner.Punct {
		return precNone
	}
	switch t.Lexeme {
	case "||":
		return precOr
	case "&&":
		return precAnd
	case "===", "!==":
		return precEquality
	case "<", ">", "<=", ">=":
		return precRelational
	case "+", "-":
		return precAdditive
	case "*", "/", "%":
		return precMultiplicative
	}
	return precNone
}

func (p *Parser) binary(minPrec int) ast.Node {
	start := p.cur()
	left := p.unary()
	for {
		op := p.cur()
		prec := precedence(op)
		if prec == precNone || prec < minPrec {
			return left
		}
		p.next()
		right := p.binary(prec + 1) // all binary operators are left-associative
		pos := p.from(start)
		if op.Lexeme == "&&" || op.Lexeme == "||" {
			left = &ast.Logical{Pos: pos, Operator: op.Lexeme, Left: left, Right: right}
		} else {
			left = &ast.Binary{Pos: pos, Operator: op.Lexeme, Left: left, Right: right}
		}
	}
}

func (p *Parser) unary() ast.Node {
	t := p.cur()
	if t.Is("!") || t.Is("-") {
		p.next()
		arg := p.unary()
		return &ast.Unary{Pos: p.from(t), Operator: t.Lexeme, Argument: arg}
	}
	return p.postfix()
}

func (p *Parser) postfix() ast.Node {
	start := p.cur()
	expr := p.primary()
	for {
		switch {
		case p.at("("):
			p.next()
			var args []ast.Node
			for !p.at(")") {
				args = append(args, p.expression())
				if !p.at(")") {
					p.expect(",")
				}
			}
			p.expect(")")
			expr = &ast.Call{Pos: p.from(start), Callee: expr, Arguments: args}
		case p.at("["):
			p.require(3, p.cur().Loc, "member access")
			p.next()
			prop := p.expression()
			p.expect("]")
			expr = &ast.Member{Pos: p.from(start), Object: expr, Property: prop, Computed: true}
		case p.at("."):
			p.require(4, p.cur().Loc, "property access")
			p.next()
			name := p.ident()
			prop := &ast.Literal{Pos: name.Pos, Kind: ast.StringLiteral, String: name.Name}
			expr = &ast.Member{Pos: p.from(start), Object: expr, Property: prop}
		default:
			return expr
		}
	}
}

func (p *Parser) primary() ast.Node {
	t := p.cur()
	pos := ast.Pos{Location: t.Loc}
	switch t.Type {
	case scanner.Number:
		p.next()
		return &ast.Literal{Pos: pos, Kind: ast.NumberLiteral, Number: t.Value.(float64)}
	case scanner.String:
		p.next()
		return &ast.Literal{Pos: pos, Kind: ast.StringLiteral, String: t.Value.(string)}
	case scanner.Ident:
		return p.ident()
	case scanner.Keyword:
		switch t.Lexeme {
		case "true", "false":
			p.next()
			return &ast.Literal{Pos: pos, Kind: ast.BooleanLiteral, Bool: t.Lexeme == "true"}
		case "null":
			p.next()
			return &ast.Literal{Pos: pos, Kind: ast.NullLiteral}
		case "undefined":
			p.next()
			return &ast.Literal{Pos: pos, Kind: ast.UndefinedLiteral}
		case "function":
			p.next()
			name := ""
			if p.cur().Type == scanner.Ident {
				name = p.ident().Name
			}
			return p.functionRest(t, name)
		}
	case scanner.Punct:
		switch t.Lexeme {
		case "(":
			p.next()
			expr := p.expression()
			p.expect(")")
			return expr
		case "[":
			p.require(3, t.Loc, "array literals")
			p.next()
			var elems []ast.Node
			for !p.at("]") {
				elems = append(elems, p.expression())
				if !p.at("]") {
					p.expect(",")
				}
			}
			p.expect("]")
			return &ast.Array{Pos: p.from(t), Elements: elems}
		case "{":
			p.require(4, t.Loc, "object literals")
			return p.object()
		}
	}
	p.fail(t.Loc, "unexpected %s", describe(t))
	return nil
}

func (p *Parser) object() ast.Node {
	start := p.expect("{")
	var props []ast.Property
	seen := make(map[string]bool)
	for !p.at("}") {
		k := p.cur()
		var key string
		switch k.Type {
		case scanner.Ident, scanner.Keyword:
			key = k.Lexeme
		case scanner.String:
			key = k.Value.(string)
		default:
			p.fail(k.Loc, "expected property name, found %s", describe(k))
		}
		p.next()
		if seen[key] {
			p.fail(k.Loc, "duplicate property %s", key)
		}
		seen[key] = true
		p.expect(":")
		props = append(props, ast.Property{Key: key, Value: p.expression()})
		if !p.at("}") {
			p.expect(",")
		}
	}
	p.expect("}")
	return &ast.Object{Pos: p.from(start), Properties: props}
}
