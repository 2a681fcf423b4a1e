// Package schema parses operator schemas from their textual signature, like
//
//	aten::add.Tensor(Tensor self, Tensor other, *, Scalar alpha=1) -> Tensor
//
// and keeps a registry of them keyed by the literal signature.
//
// Only the structure needed for shape inference is kept: argument kinds (tensor, optional tensor,
// list of tensors or anything else), names, defaults, and the declared returns.
package schema

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ArgumentKind classifies the type of argument or return.
type ArgumentKind int

const (
	// OtherKind is any non-tensor type: int, int[], Scalar, bool, ScalarType, ...
	OtherKind ArgumentKind = iota
	TensorKind
	OptionalTensorKind
	TensorListKind
)

// String implements fmt.Stringer.
func (k ArgumentKind) String() string {
	switch k {
	case OtherKind:
		return "Other"
	case TensorKind:
		return "Tensor"
	case OptionalTensorKind:
		return "Tensor?"
	case TensorListKind:
		return "Tensor[]"
	}
	return fmt.Sprintf("ArgumentKind(%d)", int(k))
}

// IsTensor returns whether the kind holds one or more tensors.
func (k ArgumentKind) IsTensor() bool { return k != OtherKind }

// Argument of an operator schema, or one of its returns.
type Argument struct {
	// Name is empty for unnamed returns.
	Name string

	// Type is the declared type, with alias annotations stripped, e.g. "Tensor", "int[1]", "Scalar".
	Type string

	Kind ArgumentKind

	// Default is the literal default value, valid if HasDefault.
	Default    string
	HasDefault bool

	// KeywordOnly is set for arguments declared after the "*" marker.
	KeywordOnly bool
}

// FunctionSchema describes an operator.
type FunctionSchema struct {
	Namespace, Name, Overload string
	Arguments                 []Argument
	Returns                   []Argument

	// Literal is the signature this schema was parsed from.
	Literal string
}

// QualifiedName returns "namespace::name", without the overload.
func (s *FunctionSchema) QualifiedName() string {
	if s.Namespace == "" {
		return s.Name
	}
	return s.Namespace + "::" + s.Name
}

// String returns the literal signature.
func (s *FunctionSchema) String() string { return s.Literal }

// NumTensorArguments returns the number of arguments that hold tensors.
func (s *FunctionSchema) NumTensorArguments() (count int) {
	for _, arg := range s.Arguments {
		if arg.Kind.IsTensor() {
			count++
		}
	}
	return
}

// Parse a textual operator signature.
func Parse(literal string) (*FunctionSchema, error) {
	text := strings.TrimSpace(literal)
	open := strings.IndexByte(text, '(')
	if open <= 0 {
		return nil, errors.Errorf("schema %q: missing operator name or argument list", literal)
	}
	close, err := matchingParenthesis(text, open)
	if err != nil {
		return nil, errors.WithMessagef(err, "schema %q", literal)
	}
	s := &FunctionSchema{Literal: literal}
	if err := s.parseName(strings.TrimSpace(text[:open])); err != nil {
		return nil, errors.WithMessagef(err, "schema %q", literal)
	}
	s.Arguments, err = parseArguments(text[open+1:close], true)
	if err != nil {
		return nil, errors.WithMessagef(err, "schema %q arguments", literal)
	}

	rest := strings.TrimSpace(text[close+1:])
	if rest == "" {
		return nil, errors.Errorf("schema %q: missing \"->\" and returns", literal)
	}
	if !strings.HasPrefix(rest, "->") {
		return nil, errors.Errorf("schema %q: expected \"->\" after arguments, got %q", literal, rest)
	}
	rest = strings.TrimSpace(rest[2:])
	if strings.HasPrefix(rest, "(") {
		var end int
		end, err = matchingParenthesis(rest, 0)
		if err != nil {
			return nil, errors.WithMessagef(err, "schema %q returns", literal)
		}
		if strings.TrimSpace(rest[end+1:]) != "" {
			return nil, errors.Errorf("schema %q: unexpected text after returns %q", literal, rest[end+1:])
		}
		s.Returns, err = parseArguments(rest[1:end], false)
	} else {
		s.Returns, err = parseArguments(rest, false)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "schema %q returns", literal)
	}
	return s, nil
}

// MustParse is like Parse, but panics on error.
func MustParse(literal string) *FunctionSchema {
	s, err := Parse(literal)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *FunctionSchema) parseName(qualified string) error {
	if idx := strings.Index(qualified, "::"); idx >= 0 {
		s.Namespace = qualified[:idx]
		qualified = qualified[idx+2:]
		if s.Namespace == "" {
			return errors.New("empty namespace")
		}
	}
	if idx := strings.IndexByte(qualified, '.'); idx >= 0 {
		s.Overload = qualified[idx+1:]
		qualified = qualified[:idx]
	}
	if qualified == "" {
		return errors.New("empty operator name")
	}
	for _, r := range qualified {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return errors.Errorf("invalid character %q in operator name %q", r, qualified)
		}
	}
	s.Name = qualified
	return nil
}

// matchingParenthesis returns the index of the ')' closing the '(' at position open.
func matchingParenthesis(text string, open int) (int, error) {
	depth := 0
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return -1, errors.Errorf("unbalanced parenthesis starting at position %d", open)
}

// splitTopLevel splits by commas not nested in (), [] or {}.
func splitTopLevel(text string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, text[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, text[start:])
}

func parseArguments(text string, requireNames bool) ([]Argument, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var args []Argument
	keywordOnly := false
	for i, part := range splitTopLevel(text) {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, errors.Errorf("empty argument #%d", i)
		}
		if part == "*" {
			if !requireNames {
				return nil, errors.New("keyword-only marker \"*\" is not allowed in returns")
			}
			keywordOnly = true
			continue
		}
		arg, err := parseArgument(part, requireNames)
		if err != nil {
			return nil, errors.WithMessagef(err, "argument #%d", i)
		}
		arg.KeywordOnly = keywordOnly
		args = append(args, arg)
	}
	return args, nil
}

func parseArgument(text string, requireName bool) (arg Argument, err error) {
	if idx := strings.IndexByte(text, '='); idx >= 0 {
		arg.Default = strings.TrimSpace(text[idx+1:])
		arg.HasDefault = true
		text = strings.TrimSpace(text[:idx])
	}
	typ, name := text, ""
	if idx := lastTopLevelSpace(text); idx >= 0 {
		typ, name = strings.TrimSpace(text[:idx]), text[idx+1:]
	}
	if requireName && name == "" {
		return arg, errors.Errorf("argument %q has no name", text)
	}
	arg.Type = stripAliasAnnotation(typ)
	arg.Name = name
	if arg.Type == "" {
		return arg, errors.Errorf("argument %q has no type", text)
	}
	if strings.ContainsAny(arg.Type, " \t") {
		return arg, errors.Errorf("argument %q has an invalid type %q", text, arg.Type)
	}
	arg.Kind = kindOf(arg.Type)
	return arg, nil
}

// lastTopLevelSpace returns the index of the last space or tab not nested in parenthesis, or -1.
func lastTopLevelSpace(text string) int {
	depth := 0
	for i := len(text) - 1; i >= 0; i-- {
		switch text[i] {
		case ')':
			depth++
		case '(':
			depth--
		case ' ', '\t':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// stripAliasAnnotation removes alias sets like the "(a!)" in "Tensor(a!)" or "Tensor(a)[]".
func stripAliasAnnotation(typ string) string {
	open := strings.IndexByte(typ, '(')
	if open < 0 {
		return typ
	}
	close := strings.IndexByte(typ[open:], ')')
	if close < 0 {
		return typ
	}
	return typ[:open] + typ[open+close+1:]
}

func kindOf(typ string) ArgumentKind {
	switch typ {
	case "Tensor":
		return TensorKind
	case "Tensor?":
		return OptionalTensorKind
	case "Tensor[]", "Tensor?[]":
		return TensorListKind
	}
	if strings.HasPrefix(typ, "Tensor[") && strings.HasSuffix(typ, "]") {
		return TensorListKind
	}
	return OtherKind
}
