package validation

import (
	"errors"
	"testing"

	"github.com/gin-gonic/gin/binding"
)

type vatForm struct {
	Name      string `json:"name" binding:"required"`
	VATNumber string `json:"vat_number" binding:"omitempty,vatnumber"`
}

func TestRegisterBindings(t *testing.T) {
	if err := RegisterBindings(); err != nil {
		t.Fatalf("RegisterBindings: %v", err)
	}

	if err := binding.Validator.ValidateStruct(vatForm{Name: "a", VATNumber: "310122393500003"}); err != nil {
		t.Errorf("valid VAT number rejected: %v", err)
	}
	if err := binding.Validator.ValidateStruct(vatForm{Name: "a"}); err != nil {
		t.Errorf("empty VAT number should be allowed: %v", err)
	}

	err := binding.Validator.ValidateStruct(vatForm{VATNumber: "123"})
	if err == nil {
		t.Fatal("expected validation errors")
	}
	problems, ok := FromBindingError(err)
	if !ok {
		t.Fatalf("expected tag failures, got %v", err)
	}
	got := problems.Fields()
	if len(got) != 2 || got[0] != "name" || got[1] != "vat_number" {
		t.Errorf("fields = %v", got)
	}
}

func TestFromBindingError_OtherErrors(t *testing.T) {
	if _, ok := FromBindingError(errors.New("unexpected EOF")); ok {
		t.Error("plain errors are not tag failures")
	}
}
