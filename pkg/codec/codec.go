// Copyright 2025 Pine Host Project
//
// Package codec implements the bijection between Expression and Value
// (spec §4.3): every expression encodes as a two-element list
// [tagNameAsStringValue, payload], where payload is an ordered record — a
// list of [nameValue, fieldValue] pairs — specific to the variant.
//
// This bijection is what makes DecodeAndEvaluate possible: a PineVM program
// can construct or receive a Value, decode it back into an Expression, and
// evaluate it, giving the language a meta-circular "decode and evaluate"
// primitive (spec §4.2).

package codec

import (
	"fmt"

	"github.com/pinehost/pine-host/pkg/expression"
	"github.com/pinehost/pine-host/pkg/value"
)

// Encode converts an Expression into its canonical Value representation.
func Encode(e expression.Expression) value.Value {
	switch e.Tag {
	case expression.TagLiteral:
		return wrap(e.Tag, record(field("value", e.Literal)))

	case expression.TagEnvironment:
		return wrap(e.Tag, value.NewList())

	case expression.TagList:
		items := make([]value.Value, len(e.Items))
		for i, item := range e.Items {
			items[i] = Encode(item)
		}
		return wrap(e.Tag, record(field("items", value.NewList(items...))))

	case expression.TagConditional:
		return wrap(e.Tag, record(
			field("condition", Encode(*e.Condition)),
			field("ifTrue", Encode(*e.IfTrue)),
			field("ifFalse", Encode(*e.IfFalse)),
		))

	case expression.TagKernelApplication:
		return wrap(e.Tag, record(
			field("functionName", value.EncodeString(e.FunctionName)),
			field("argument", Encode(*e.Argument)),
		))

	case expression.TagDecodeAndEvaluate:
		return wrap(e.Tag, record(
			field("expression", Encode(*e.DecodeExpr)),
			field("environment", Encode(*e.DecodeEnv)),
		))

	case expression.TagStringTag:
		return wrap(e.Tag, record(
			field("tag", value.EncodeString(e.StringTagName)),
			field("tagged", Encode(*e.Tagged)),
		))

	default:
		panic(fmt.Sprintf("codec: unhandled expression tag %q", e.Tag))
	}
}

func wrap(tag expression.Tag, payload value.Value) value.Value {
	return value.NewList(value.EncodeString(string(tag)), payload)
}

// namedField is a single [nameValue, fieldValue] pair prior to being packed
// into a record list.
type namedField struct {
	name string
	v    value.Value
}

func field(name string, v value.Value) namedField {
	return namedField{name: name, v: v}
}

func record(fields ...namedField) value.Value {
	items := make([]value.Value, len(fields))
	for i, f := range fields {
		items[i] = value.NewList(value.EncodeString(f.name), f.v)
	}
	return value.NewList(items...)
}

// Decode is the inverse of Encode. It is defensive: an unrecognized tag
// name, a payload with the wrong shape, a field with a non-string name, or a
// missing required field all produce a descriptive error rather than a
// panic (spec §4.3, §7).
func Decode(v value.Value) (expression.Expression, error) {
	outer, err := v.ListItems()
	if err != nil || len(outer) != 2 {
		return expression.Expression{}, fmt.Errorf("decode expression: expected a 2-element [tag, payload] list")
	}

	tagName, err := value.DecodeString(outer[0])
	if err != nil {
		return expression.Expression{}, fmt.Errorf("decode expression: tag is not a string: %w", err)
	}
	payload := outer[1]

	fields, err := decodeRecord(payload)
	if err != nil {
		return expression.Expression{}, fmt.Errorf("decode expression %q: %w", tagName, err)
	}

	switch expression.Tag(tagName) {
	case expression.TagLiteral:
		lit, ok := fields["value"]
		if !ok {
			return expression.Expression{}, fmt.Errorf("decode Literal: missing field %q", "value")
		}
		return expression.Literal(lit), nil

	case expression.TagEnvironment:
		return expression.Environment(), nil

	case expression.TagList:
		itemsField, ok := fields["items"]
		if !ok {
			return expression.Expression{}, fmt.Errorf("decode List: missing field %q", "items")
		}
		rawItems, err := itemsField.ListItems()
		if err != nil {
			return expression.Expression{}, fmt.Errorf("decode List: %q is not a list", "items")
		}
		decoded := make([]expression.Expression, len(rawItems))
		for i, raw := range rawItems {
			decoded[i], err = Decode(raw)
			if err != nil {
				return expression.Expression{}, fmt.Errorf("decode List: item %d: %w", i, err)
			}
		}
		return expression.List(decoded...), nil

	case expression.TagConditional:
		cond, ifTrue, ifFalse, err := decodeThree(fields, "condition", "ifTrue", "ifFalse")
		if err != nil {
			return expression.Expression{}, fmt.Errorf("decode Conditional: %w", err)
		}
		return expression.Conditional(cond, ifTrue, ifFalse), nil

	case expression.TagKernelApplication:
		nameField, ok := fields["functionName"]
		if !ok {
			return expression.Expression{}, fmt.Errorf("decode KernelApplication: missing field %q", "functionName")
		}
		name, err := value.DecodeString(nameField)
		if err != nil {
			return expression.Expression{}, fmt.Errorf("decode KernelApplication: functionName is not a string: %w", err)
		}
		argField, ok := fields["argument"]
		if !ok {
			return expression.Expression{}, fmt.Errorf("decode KernelApplication: missing field %q", "argument")
		}
		arg, err := Decode(argField)
		if err != nil {
			return expression.Expression{}, fmt.Errorf("decode KernelApplication: argument: %w", err)
		}
		return expression.KernelApplication(name, arg), nil

	case expression.TagDecodeAndEvaluate:
		exprField, envField, err := decodeTwo(fields, "expression", "environment")
		if err != nil {
			return expression.Expression{}, fmt.Errorf("decode DecodeAndEvaluate: %w", err)
		}
		return expression.DecodeAndEvaluate(exprField, envField), nil

	case expression.TagStringTag:
		tagField, ok := fields["tag"]
		if !ok {
			return expression.Expression{}, fmt.Errorf("decode StringTag: missing field %q", "tag")
		}
		tagStr, err := value.DecodeString(tagField)
		if err != nil {
			return expression.Expression{}, fmt.Errorf("decode StringTag: tag is not a string: %w", err)
		}
		taggedField, ok := fields["tagged"]
		if !ok {
			return expression.Expression{}, fmt.Errorf("decode StringTag: missing field %q", "tagged")
		}
		tagged, err := Decode(taggedField)
		if err != nil {
			return expression.Expression{}, fmt.Errorf("decode StringTag: tagged: %w", err)
		}
		return expression.StringTag(tagStr, tagged), nil

	default:
		return expression.Expression{}, fmt.Errorf("decode expression: unexpected tag name: %q", tagName)
	}
}

// decodeRecord parses a payload value as an ordered list of
// [nameValue, fieldValue] pairs into a name -> value map, rejecting any pair
// whose name is not a well-formed string.
func decodeRecord(payload value.Value) (map[string]value.Value, error) {
	pairs, err := payload.ListItems()
	if err != nil {
		return nil, fmt.Errorf("payload is not a list")
	}
	out := make(map[string]value.Value, len(pairs))
	for i, pair := range pairs {
		kv, err := pair.ListItems()
		if err != nil || len(kv) != 2 {
			return nil, fmt.Errorf("field %d is not a [name, value] pair", i)
		}
		name, err := value.DecodeString(kv[0])
		if err != nil {
			return nil, fmt.Errorf("field %d name is not a string: %w", i, err)
		}
		out[name] = kv[1]
	}
	return out, nil
}

func decodeSub(fields map[string]value.Value, name string) (expression.Expression, error) {
	v, ok := fields[name]
	if !ok {
		return expression.Expression{}, fmt.Errorf("missing field %q", name)
	}
	return Decode(v)
}

func decodeTwo(fields map[string]value.Value, a, b string) (expression.Expression, expression.Expression, error) {
	ea, err := decodeSub(fields, a)
	if err != nil {
		return expression.Expression{}, expression.Expression{}, err
	}
	eb, err := decodeSub(fields, b)
	if err != nil {
		return expression.Expression{}, expression.Expression{}, err
	}
	return ea, eb, nil
}

func decodeThree(fields map[string]value.Value, a, b, c string) (expression.Expression, expression.Expression, expression.Expression, error) {
	ea, eb, err := decodeTwo(fields, a, b)
	if err != nil {
		return expression.Expression{}, expression.Expression{}, expression.Expression{}, err
	}
	ec, err := decodeSub(fields, c)
	if err != nil {
		return expression.Expression{}, expression.Expression{}, expression.Expression{}, err
	}
	return ea, eb, ec, nil
}
