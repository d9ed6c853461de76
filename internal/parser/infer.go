package parser

import (
	"strconv"
	"strings"

	"rowexport/pkg/dataset"
)

// Kind is the inferred type of a text column.
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindFloat
	KindBool
)

// InferKind guesses the narrowest type every non-missing value satisfies:
// integer, then boolean, then float, else text. A column with no values is
// text.
func (o Options) InferKind(values []string) Kind {
	seen := false
	isInt, isBool, isFloat := true, true, true
	for _, v := range values {
		if o.IsNA(v) {
			continue
		}
		seen = true
		v = strings.TrimSpace(v)
		if isInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isInt = false
			}
		}
		if isBool {
			if _, ok := parseBool(v); !ok {
				isBool = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				isFloat = false
			}
		}
		if !isInt && !isBool && !isFloat {
			return KindText
		}
	}
	switch {
	case !seen:
		return KindText
	case isInt:
		return KindInt
	case isBool:
		return KindBool
	case isFloat:
		return KindFloat
	}
	return KindText
}

// Column converts raw cells into typed values. Missing cells become
// dataset.NA; the rest take the inferred kind (or stay strings when KeepText
// is set).
func (o Options) Column(values []string) []any {
	kind := KindText
	if !o.KeepText {
		kind = o.InferKind(values)
	}
	out := make([]any, len(values))
	for i, v := range values {
		if o.IsNA(v) {
			out[i] = dataset.NA
			continue
		}
		out[i] = convert(strings.TrimSpace(v), kind, v)
	}
	return out
}

func convert(v string, kind Kind, raw string) any {
	switch kind {
	case KindInt:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case KindFloat:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case KindBool:
		b, _ := parseBool(v)
		return b
	}
	return raw
}

// parseBool accepts the spellings of true and false only; 1/0 stay integers.
func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}
