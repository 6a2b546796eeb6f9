package ccp4

import (
	"strconv"
	"strings"
	"unicode"
)

// SymmetryOp is a crystallographic symmetry operator expressed as a 4x4
// affine matrix over fractional coordinates: rows 0..2 are the linear part
// (exactly one of +1/-1 in the x/y/z columns) plus a translation in column
// 3; row 3 is always (0,0,0,1).
type SymmetryOp [4][4]float64

// ParseSymmetryOperator parses one 80-byte CCP4 symmetry record, e.g.
// "-x+1/2, y, z+1/4", into its affine matrix. Parsing is case-insensitive
// and ignores all whitespace. Each of the three comma-separated
// expressions becomes one matrix row: every term is either a signed
// x/y/z (contributing ±1 to that row's linear part) or a signed p/q
// fraction (contributing to that row's translation).
func ParseSymmetryOperator(record string) (SymmetryOp, error) {
	var m SymmetryOp

	cleaned := strings.ToLower(strings.Trim(record, " \x00"))
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, cleaned)

	exprs := strings.Split(cleaned, ",")
	if len(exprs) != 3 {
		return SymmetryOp{}, &BadSymmetryOperatorError{
			Record: record,
			Reason: "expected exactly three comma-separated expressions",
		}
	}

	for row, expr := range exprs {
		if expr == "" {
			return SymmetryOp{}, &BadSymmetryOperatorError{Record: record, Reason: "empty expression"}
		}
		for _, term := range splitSignedTerms(expr) {
			if err := applyTerm(term, &m[row]); err != nil {
				return SymmetryOp{}, &BadSymmetryOperatorError{Record: record, Reason: err.Error()}
			}
		}
	}
	m[3] = [4]float64{0, 0, 0, 1}

	return m, nil
}

// splitSignedTerms splits an expression like "-x+1/2" into ["-x", "+1/2"],
// and "y" (no leading sign) into ["y"], by cutting before every internal
// '+'/'-'.
func splitSignedTerms(expr string) []string {
	var terms []string
	start := 0
	for i := 1; i < len(expr); i++ {
		if expr[i] == '+' || expr[i] == '-' {
			terms = append(terms, expr[start:i])
			start = i
		}
	}
	terms = append(terms, expr[start:])
	return terms
}

// applyTerm interprets one signed term and accumulates its contribution
// into row (the 4-element destination: row[0..2] are x/y/z coefficients,
// row[3] is the translation).
func applyTerm(term string, row *[4]float64) error {
	sign := 1.0
	switch {
	case strings.HasPrefix(term, "+"):
		term = term[1:]
	case strings.HasPrefix(term, "-"):
		sign = -1
		term = term[1:]
	}
	if term == "" {
		return errMissingOperand
	}

	switch term {
	case "x":
		row[0] += sign
		return nil
	case "y":
		row[1] += sign
		return nil
	case "z":
		row[2] += sign
		return nil
	}

	parts := strings.SplitN(term, "/", 2)
	p, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return errUnrecognizedTerm
	}
	q := 1.0
	if len(parts) == 2 {
		q, err = strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return errUnrecognizedTerm
		}
		if q == 0 {
			return errDivisionByZero
		}
	}
	row[3] += sign * p / q
	return nil
}

type symmetryParseError string

func (e symmetryParseError) Error() string { return string(e) }

const (
	errMissingOperand   = symmetryParseError("term has a sign but no operand")
	errUnrecognizedTerm = symmetryParseError("unrecognized term, want x/y/z or p/q")
	errDivisionByZero   = symmetryParseError("division by zero in translation term")
)
