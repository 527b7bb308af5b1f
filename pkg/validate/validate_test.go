package validate

import (
	"errors"
	"testing"
)

func TestRequired(t *testing.T) {
	tests := []struct {
		name        string
		value       string
		expectError bool
	}{
		{name: "non-empty", value: "Y2lzY29zcGFyazovL3VzL1RFQU0", expectError: false},
		{name: "empty", value: "", expectError: true},
		{name: "whitespace", value: "   ", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Required("teamId", tt.value)
			if tt.expectError {
				var validationErr *Error
				if !errors.As(err, &validationErr) {
					t.Fatalf("Required() error = %v, want *Error", err)
				}
				if validationErr.Field != "teamId" {
					t.Errorf("Field = %q, want %q", validationErr.Field, "teamId")
				}
				return
			}
			if err != nil {
				t.Errorf("Required() unexpected error: %v", err)
			}
		})
	}
}

func TestNonNegative(t *testing.T) {
	if err := NonNegative("max", 0); err != nil {
		t.Errorf("NonNegative(0) error = %v, want nil", err)
	}
	if err := NonNegative("max", 100); err != nil {
		t.Errorf("NonNegative(100) error = %v, want nil", err)
	}

	err := NonNegative("max", -1)
	if err == nil {
		t.Fatal("NonNegative(-1) expected error")
	}
	if err.Error() != "invalid argument max: must be >= 0 (got -1)" {
		t.Errorf("Error message = %q", err.Error())
	}
}

func TestAtLeastOne(t *testing.T) {
	if err := AtLeastOne("personId", "", "personEmail", "a@example.com"); err != nil {
		t.Errorf("AtLeastOne() error = %v, want nil", err)
	}

	err := AtLeastOne("personId", "", "personEmail", "")
	var validationErr *Error
	if !errors.As(err, &validationErr) {
		t.Fatalf("AtLeastOne() error = %v, want *Error", err)
	}
	if validationErr.Field != "personId|personEmail" {
		t.Errorf("Field = %q, want %q", validationErr.Field, "personId|personEmail")
	}
}

func TestFirst(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")

	if err := First(nil, nil); err != nil {
		t.Errorf("First(nil, nil) = %v, want nil", err)
	}
	if err := First(nil, first, second); err != first {
		t.Errorf("First() = %v, want %v", err, first)
	}
}
