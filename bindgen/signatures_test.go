package bindgen

import (
	stderrors "errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/starbind/errors"
)

func TestParseSignatures(t *testing.T) {
	text := `
sqrt: func(x: f64) -> f64;
Square.grow: func(by: s64);
concat: func(a: string, b: list<u8>) -> string;
reset: func() -> ();
`
	got, err := parseSignatures(text)
	if err != nil {
		t.Fatalf("parseSignatures failed: %v", err)
	}
	want := map[string]signature{
		"sqrt":        {names: []string{"x"}, params: []string{"f64"}, result: "f64", hasResult: true},
		"Square.grow": {names: []string{"by"}, params: []string{"s64"}},
		"concat":      {names: []string{"a", "b"}, params: []string{"string", "list<u8>"}, result: "string", hasResult: true},
		"reset":       {},
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(signature{})); diff != "" {
		t.Errorf("signatures mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSignatures_Empty(t *testing.T) {
	got, err := parseSignatures("  \n")
	if err != nil || len(got) != 0 {
		t.Errorf("parseSignatures(blank) = %v, %v", got, err)
	}

	_, err = parseSignatures("not a signature")
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindInvalidInput {
		t.Errorf("error = %v, want invalid input", err)
	}
}

func TestScalarType(t *testing.T) {
	tests := map[string]string{
		"bool":   "bool",
		"s8":     "int",
		"s32":    "int",
		"s64":    "int",
		"u8":     "int",
		"u64":    "int",
		"f32":    "float64",
		"f64":    "float64",
		"string": "string",
		"char":   "string",
	}
	for in, want := range tests {
		got, err := scalarType(in)
		if err != nil {
			t.Errorf("scalarType(%q) failed: %v", in, err)
			continue
		}
		if got.Expr != want || !got.Native {
			t.Errorf("scalarType(%q) = %+v, want native %s", in, got, want)
		}
	}

	if _, err := scalarType("invalid-type-xyz"); err == nil {
		t.Error("expected error for invalid type")
	}
}
