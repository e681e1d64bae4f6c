// Copyright 2025 Pine Host Project
//
// Package expression defines the PineVM expression tree: the seven-variant
// tagged union that the evaluator reduces against an environment value.

package expression

import "github.com/pinehost/pine-host/pkg/value"

// Tag names the expression variant. These strings are also the tag names
// used by the expression/value codec (spec §4.3), so they must not change
// independently of the codec.
type Tag string

const (
	TagLiteral           Tag = "Literal"
	TagEnvironment       Tag = "Environment"
	TagList              Tag = "List"
	TagConditional       Tag = "Conditional"
	TagKernelApplication Tag = "KernelApplication"
	TagDecodeAndEvaluate Tag = "DecodeAndEvaluate"
	TagStringTag         Tag = "StringTag"
)

// Expression is the seven-variant tagged tree described in spec §3. Exactly
// one payload field is populated per Tag; Go has no native sum type, so the
// convention — mirrored from the teacher's CompositionEvent-style sum types —
// is a Tag discriminator plus variant-specific fields left zero elsewhere.
type Expression struct {
	Tag Tag

	// TagLiteral
	Literal value.Value

	// TagList
	Items []Expression

	// TagConditional
	Condition *Expression
	IfTrue    *Expression
	IfFalse   *Expression

	// TagKernelApplication
	FunctionName string
	Argument     *Expression

	// TagDecodeAndEvaluate
	DecodeExpr *Expression
	DecodeEnv  *Expression

	// TagStringTag
	StringTagName string
	Tagged        *Expression
}

// Literal builds a Literal expression.
func Literal(v value.Value) Expression {
	return Expression{Tag: TagLiteral, Literal: v}
}

// Environment builds an Environment expression.
func Environment() Expression {
	return Expression{Tag: TagEnvironment}
}

// List builds a List expression from its child expressions.
func List(items ...Expression) Expression {
	cp := make([]Expression, len(items))
	copy(cp, items)
	return Expression{Tag: TagList, Items: cp}
}

// Conditional builds a Conditional expression.
func Conditional(cond, ifTrue, ifFalse Expression) Expression {
	return Expression{Tag: TagConditional, Condition: &cond, IfTrue: &ifTrue, IfFalse: &ifFalse}
}

// KernelApplication builds a KernelApplication expression.
func KernelApplication(functionName string, argument Expression) Expression {
	return Expression{Tag: TagKernelApplication, FunctionName: functionName, Argument: &argument}
}

// DecodeAndEvaluate builds a DecodeAndEvaluate expression.
func DecodeAndEvaluate(expr, env Expression) Expression {
	return Expression{Tag: TagDecodeAndEvaluate, DecodeExpr: &expr, DecodeEnv: &env}
}

// StringTag builds a StringTag expression. The tag is informational only and
// does not affect evaluation (spec §3).
func StringTag(tag string, tagged Expression) Expression {
	return Expression{Tag: TagStringTag, StringTagName: tag, Tagged: &tagged}
}
