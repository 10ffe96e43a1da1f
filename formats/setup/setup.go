// Package setup reads and writes setup.lol scripts: an optional module
// header naming the context followed by method calls with named parameters.
//
//	module((...), vehicle_setup_context)
//
//	PowerMultiplier{Value=1.5}
//	TorqueCurve{[1]=150,[2]=232}
//
// Parameter values are kept as text. Lines starting with "--" are comments.
package setup

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/timtadh/lexmachine"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/pipeline"
)

const contextSuffix = "_setup_context"

var info = pipeline.Info{
	CodecName: "Setup LOL",
	Exts:      []string{"setup.lol"},
	AssetKind: asset.KindDocument,
}

func init() {
	pipeline.RegisterImporter(&Importer{Info: info})
	pipeline.RegisterExporter(&Exporter{Info: info})
}

type parser struct {
	tokens []*lexmachine.Token
	pos    int
}

func (p *parser) eof() bool { return p.pos >= len(p.tokens) }

func (p *parser) peek() *lexmachine.Token {
	if p.eof() {
		return nil
	}
	return p.tokens[p.pos]
}

func (p *parser) expect(types ...int) (*lexmachine.Token, error) {
	tok := p.peek()
	if tok == nil {
		return nil, errors.Errorf("Unexpected end of script, expected %s", tokenNames[types[0]])
	}
	for _, t := range types {
		if tok.Type == t {
			p.pos++
			return tok, nil
		}
	}
	return nil, errors.Errorf("Unexpected %q on line %v, expected %s", tok.Lexeme, tok.StartLine, tokenNames[types[0]])
}

func (p *parser) module(s *asset.Setup) error {
	for _, t := range []int{TOKEN_LPAREN, TOKEN_LPAREN, TOKEN_ELLIPSIS, TOKEN_RPAREN, TOKEN_COMMA} {
		if _, err := p.expect(t); err != nil {
			return err
		}
	}
	tok, err := p.expect(TOKEN_IDENT)
	if err != nil {
		return err
	}
	s.Context = strings.TrimSuffix(string(tok.Lexeme), contextSuffix)
	_, err = p.expect(TOKEN_RPAREN)
	return err
}

func unquote(tok *lexmachine.Token) (string, error) {
	if tok.Type != TOKEN_STRING {
		return string(tok.Lexeme), nil
	}
	s, err := strconv.Unquote(string(tok.Lexeme))
	if err != nil {
		return "", errors.Errorf("Unknown string format on line %v (%q)", tok.StartLine, tok.Lexeme)
	}
	return s, nil
}

func (p *parser) param() (asset.SetupParam, error) {
	var param asset.SetupParam
	tok, err := p.expect(TOKEN_IDENT, TOKEN_LBRACKET)
	if err != nil {
		return param, err
	}
	if tok.Type == TOKEN_LBRACKET {
		if tok, err = p.expect(TOKEN_NUMBER, TOKEN_STRING); err != nil {
			return param, err
		}
		if param.Name, err = unquote(tok); err != nil {
			return param, err
		}
		if _, err := p.expect(TOKEN_RBRACKET); err != nil {
			return param, err
		}
	} else {
		param.Name = string(tok.Lexeme)
	}

	if _, err := p.expect(TOKEN_EQUALS); err != nil {
		return param, err
	}
	if tok, err = p.expect(TOKEN_NUMBER, TOKEN_STRING, TOKEN_IDENT); err != nil {
		return param, err
	}
	param.Value, err = unquote(tok)
	return param, err
}

func (p *parser) method(name string) (*asset.SetupMethod, error) {
	m := &asset.SetupMethod{Name: name}
	for {
		if tok := p.peek(); tok != nil && tok.Type == TOKEN_RBRACE {
			p.pos++
			return m, nil
		}
		param, err := p.param()
		if err != nil {
			return nil, errors.Wrapf(err, "method %q", name)
		}
		m.Params = append(m.Params, param)

		tok, err := p.expect(TOKEN_COMMA, TOKEN_RBRACE)
		if err != nil {
			return nil, errors.Wrapf(err, "method %q", name)
		}
		if tok.Type == TOKEN_RBRACE {
			return m, nil
		}
	}
}

// Parse reads a setup script. Repeated calls of one method are merged.
func Parse(text []byte) (*asset.Setup, error) {
	tokens, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	s := &asset.Setup{}
	for !p.eof() {
		tok, err := p.expect(TOKEN_IDENT)
		if err != nil {
			return nil, err
		}
		name := string(tok.Lexeme)
		if name == "module" {
			if err := p.module(s); err != nil {
				return nil, errors.Wrapf(err, "module header")
			}
			continue
		}
		if _, err := p.expect(TOKEN_LBRACE); err != nil {
			return nil, errors.Wrapf(err, "method %q", name)
		}
		m, err := p.method(name)
		if err != nil {
			return nil, err
		}
		if len(m.Params) == 0 && s.Method(name) == nil {
			s.Methods = append(s.Methods, m)
		}
		for _, param := range m.Params {
			s.SetParameter(name, param.Name, param.Value)
		}
	}
	return s, nil
}

var (
	identRe  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	numberRe = regexp.MustCompile(`^[\+\-]?[0-9]*\.?[0-9]+([eE][\+\-]?[0-9]+)?$`)
)

func formatKey(name string) string {
	switch {
	case identRe.MatchString(name):
		return name
	case numberRe.MatchString(name):
		return "[" + name + "]"
	default:
		return "[" + strconv.Quote(name) + "]"
	}
}

func formatValue(value string) string {
	if numberRe.MatchString(value) || value == "true" || value == "false" {
		return value
	}
	return strconv.Quote(value)
}

func Marshal(w io.Writer, s *asset.Setup) error {
	var err error
	printf := func(format string, args ...interface{}) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	if s.Context != "" {
		printf("module((...), %s%s)\n\n", s.Context, contextSuffix)
	}
	for _, m := range s.Methods {
		if !identRe.MatchString(m.Name) {
			return errors.Errorf("Invalid method name %q", m.Name)
		}
		params := make([]string, len(m.Params))
		for i, p := range m.Params {
			params[i] = formatKey(p.Name) + "=" + formatValue(p.Value)
		}
		printf("%s{%s}\n", m.Name, strings.Join(params, ","))
	}
	return err
}

type Importer struct {
	pipeline.Info
}

func (i *Importer) Import(ctx *pipeline.Context, path string) (asset.Asset, error) {
	data, err := pipeline.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(data)
	if err != nil {
		return nil, asset.NewFormatError(i.Name(), path, err)
	}
	return s, nil
}

type Exporter struct {
	pipeline.Info
}

func (e *Exporter) Export(ctx *pipeline.Context, a asset.Asset, path string, s *pipeline.Settings) error {
	setup, ok := a.(*asset.Setup)
	if !ok {
		return errors.Errorf("[setup] Cannot export %T", a)
	}
	if s != nil && s.Extras != nil {
		if context := s.Extras.StringOr("Context", ""); context != "" && context != setup.Context {
			copied := *setup
			copied.Context = context
			setup = &copied
		}
	}
	return pipeline.WriteFile(path, func(w io.Writer) error {
		return Marshal(w, setup)
	})
}
