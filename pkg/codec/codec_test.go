package codec

import (
	"testing"

	"github.com/pinehost/pine-host/pkg/expression"
	"github.com/pinehost/pine-host/pkg/value"
)

func roundTrip(t *testing.T, e expression.Expression) expression.Expression {
	t.Helper()
	encoded := Encode(e)
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode(encode(e)): %v", err)
	}
	return decoded
}

func equalExpr(a, b expression.Expression) bool {
	return Encode(a).Equal(Encode(b))
}

func TestRoundTripLiteral(t *testing.T) {
	e := expression.Literal(value.EncodeInt64(42))
	got := roundTrip(t, e)
	if !equalExpr(got, e) {
		t.Fatalf("literal round trip mismatch")
	}
}

func TestRoundTripEnvironment(t *testing.T) {
	e := expression.Environment()
	got := roundTrip(t, e)
	if !equalExpr(got, e) {
		t.Fatalf("environment round trip mismatch")
	}
}

func TestRoundTripList(t *testing.T) {
	e := expression.List(
		expression.Literal(value.EncodeInt64(1)),
		expression.Environment(),
		expression.Literal(value.NewBlob([]byte("x"))),
	)
	got := roundTrip(t, e)
	if !equalExpr(got, e) {
		t.Fatalf("list round trip mismatch")
	}
}

func TestRoundTripConditional(t *testing.T) {
	e := expression.Conditional(
		expression.Literal(value.True),
		expression.Literal(value.EncodeInt64(1)),
		expression.Literal(value.EncodeInt64(2)),
	)
	got := roundTrip(t, e)
	if !equalExpr(got, e) {
		t.Fatalf("conditional round trip mismatch")
	}
}

func TestRoundTripKernelApplication(t *testing.T) {
	e := expression.KernelApplication("add_int", expression.Environment())
	got := roundTrip(t, e)
	if !equalExpr(got, e) {
		t.Fatalf("kernel application round trip mismatch")
	}
	if got.FunctionName != "add_int" {
		t.Fatalf("expected functionName to survive round trip, got %q", got.FunctionName)
	}
}

func TestRoundTripDecodeAndEvaluate(t *testing.T) {
	e := expression.DecodeAndEvaluate(expression.Environment(), expression.Literal(value.EmptyList))
	got := roundTrip(t, e)
	if !equalExpr(got, e) {
		t.Fatalf("decode-and-evaluate round trip mismatch")
	}
}

func TestRoundTripStringTag(t *testing.T) {
	e := expression.StringTag("my-debug-label", expression.Environment())
	got := roundTrip(t, e)
	if !equalExpr(got, e) {
		t.Fatalf("string tag round trip mismatch")
	}
	if got.StringTagName != "my-debug-label" {
		t.Fatalf("expected tag name to survive round trip, got %q", got.StringTagName)
	}
}

func TestRoundTripNested(t *testing.T) {
	e := expression.Conditional(
		expression.KernelApplication("equal", expression.List(
			expression.Literal(value.EncodeInt64(1)),
			expression.Literal(value.EncodeInt64(1)),
		)),
		expression.StringTag("then-branch", expression.Literal(value.EncodeInt64(100))),
		expression.DecodeAndEvaluate(expression.Environment(), expression.Environment()),
	)
	got := roundTrip(t, e)
	if !equalExpr(got, e) {
		t.Fatalf("nested round trip mismatch")
	}
}

func TestDecodeRejectsNonListValue(t *testing.T) {
	_, err := Decode(value.NewBlob([]byte("not a tagged expression")))
	if err == nil {
		t.Fatalf("expected an error decoding a bare blob as an expression")
	}
}

func TestDecodeRejectsWrongArityOuterList(t *testing.T) {
	_, err := Decode(value.NewList(value.EncodeString("Literal")))
	if err == nil {
		t.Fatalf("expected an error decoding a 1-element outer list")
	}
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	malformed := value.NewList(value.EncodeString("NotARealTag"), value.NewList())
	_, err := Decode(malformed)
	if err == nil {
		t.Fatalf("expected an error for an unrecognized tag name")
	}
}

func TestDecodeRejectsNonStringTag(t *testing.T) {
	malformed := value.NewList(value.EncodeInt64(7), value.NewList())
	_, err := Decode(malformed)
	if err == nil {
		t.Fatalf("expected an error when the tag slot is not a string")
	}
}

func TestDecodeRejectsMissingField(t *testing.T) {
	malformed := value.NewList(value.EncodeString(string(expression.TagKernelApplication)), value.NewList(
		value.NewList(value.EncodeString("functionName"), value.EncodeString("add_int")),
	))
	_, err := Decode(malformed)
	if err == nil {
		t.Fatalf("expected an error for a KernelApplication missing its argument field")
	}
}

func TestDecodeRejectsNonStringFieldName(t *testing.T) {
	malformed := value.NewList(value.EncodeString(string(expression.TagLiteral)), value.NewList(
		value.NewList(value.EncodeInt64(1), value.EncodeInt64(2)),
	))
	_, err := Decode(malformed)
	if err == nil {
		t.Fatalf("expected an error when a field name is not a string")
	}
}
