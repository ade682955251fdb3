package tools

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const calculatorChars = "0123456789+-*/()., "

// ErrInvalidExpression is returned for expressions that do not evaluate.
var ErrInvalidExpression = errors.New("invalid expression")

// Calculate evaluates an arithmetic expression. Characters other than
// digits, operators, parentheses, dots, commas and spaces are dropped
// first. Supported operators are + - * / // and **.
func Calculate(expression string) (float64, error) {
	var sb strings.Builder
	for _, r := range expression {
		if strings.ContainsRune(calculatorChars, r) {
			sb.WriteRune(r)
		}
	}
	p := &parser{src: strings.ReplaceAll(sb.String(), " ", "")}
	v, err := p.expr()
	if err == nil && p.pos < len(p.src) {
		err = fmt.Errorf("unexpected %q at %d", p.src[p.pos], p.pos)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidExpression, expression, err)
	}
	return v, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) peek(s string) bool {
	return strings.HasPrefix(p.src[p.pos:], s)
}

func (p *parser) expr() (float64, error) {
	v, err := p.term()
	if err != nil {
		return 0, err
	}
	for p.pos < len(p.src) {
		switch {
		case p.peek("+"):
			p.pos++
			r, err := p.term()
			if err != nil {
				return 0, err
			}
			v += r
		case p.peek("-"):
			p.pos++
			r, err := p.term()
			if err != nil {
				return 0, err
			}
			v -= r
		default:
			return v, nil
		}
	}
	return v, nil
}

func (p *parser) term() (float64, error) {
	v, err := p.unary()
	if err != nil {
		return 0, err
	}
	for p.pos < len(p.src) {
		var floor bool
		switch {
		case p.peek("**"):
			return v, nil
		case p.peek("*"):
			p.pos++
			r, err := p.unary()
			if err != nil {
				return 0, err
			}
			v *= r
			continue
		case p.peek("//"):
			p.pos += 2
			floor = true
		case p.peek("/"):
			p.pos++
		default:
			return v, nil
		}
		r, err := p.unary()
		if err != nil {
			return 0, err
		}
		if r == 0 {
			return 0, errors.New("division by zero")
		}
		v /= r
		if floor {
			v = math.Floor(v)
		}
	}
	return v, nil
}

func (p *parser) unary() (float64, error) {
	switch {
	case p.peek("-"):
		p.pos++
		v, err := p.unary()
		return -v, err
	case p.peek("+"):
		p.pos++
		return p.unary()
	}
	return p.power()
}

func (p *parser) power() (float64, error) {
	base, err := p.primary()
	if err != nil {
		return 0, err
	}
	if !p.peek("**") {
		return base, nil
	}
	p.pos += 2
	exp, err := p.unary()
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

func (p *parser) primary() (float64, error) {
	if p.pos >= len(p.src) {
		return 0, errors.New("unexpected end of expression")
	}
	if p.peek("(") {
		p.pos++
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if !p.peek(")") {
			return 0, errors.New("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	}
	start := p.pos
	for p.pos < len(p.src) && (p.src[p.pos] == '.' || (p.src[p.pos] >= '0' && p.src[p.pos] <= '9')) {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("unexpected %q at %d", p.src[p.pos], p.pos)
	}
	v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", p.src[start:p.pos])
	}
	return v, nil
}
