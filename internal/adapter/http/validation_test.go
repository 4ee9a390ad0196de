package http

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type probe struct {
	LoanID  string  `validate:"omitempty,hex32"`
	Address string  `validate:"omitempty,addr"`
	Ltv     float64 `validate:"ltv"`
}

func TestCustomTags(t *testing.T) {
	cv := NewValidator()

	cases := []struct {
		name string
		in   probe
		ok   bool
	}{
		{"all empty", probe{}, true},
		{"good loan id", probe{LoanID: "0123456789abcdef0123456789abcdef"}, true},
		{"uppercase hex", probe{LoanID: "0123456789ABCDEF0123456789ABCDEF"}, false},
		{"short hex", probe{LoanID: "abc123"}, false},
		{"stellar address", probe{Address: "GBORROWER00000000000000000000001"}, true},
		{"substrate address", probe{Address: "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"}, true},
		{"address too short", probe{Address: "ab"}, false},
		{"address bad chars", probe{Address: "bad address!"}, false},
		{"ltv zero means tier cap", probe{Ltv: 0}, true},
		{"ltv fraction", probe{Ltv: 0.6}, true},
		{"ltv full", probe{Ltv: 1.0}, false},
		{"ltv negative", probe{Ltv: -0.1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := cv.Validate(&tc.in)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestToFieldErrors(t *testing.T) {
	cv := NewValidator()

	err := cv.Validate(&probe{LoanID: "nope", Ltv: 2})
	fields := ToFieldErrors(err)
	if len(fields) != 2 {
		t.Fatalf("fields = %+v, want 2 entries", fields)
	}
	byField := map[string]string{}
	for _, fe := range fields {
		byField[fe.Field] = fe.Message
	}
	if byField["LoanID"] != "must be 32-char lowercase hex" {
		t.Fatalf("LoanID message = %q", byField["LoanID"])
	}
	if byField["Ltv"] != "must be a fraction in [0,1)" {
		t.Fatalf("Ltv message = %q", byField["Ltv"])
	}

	if _, ok := err.(validator.ValidationErrors); !ok {
		t.Fatal("validator stopped returning ValidationErrors")
	}
}
