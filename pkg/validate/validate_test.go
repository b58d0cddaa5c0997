package validate

import (
	"testing"

	pkgerrors "github.com/calebmorton/shelfline-backend/pkg/errors"
)

type sampleInput struct {
	Name string `json:"name" validate:"required"`
	Days int    `json:"days" validate:"min=1"`
}

func TestStructValid(t *testing.T) {
	if err := Struct(sampleInput{Name: "hold", Days: 3}); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}
}

func TestStructReportsFieldsByJSONTag(t *testing.T) {
	err := Struct(sampleInput{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	appErr := pkgerrors.As(err)
	if appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %s", appErr.Code())
	}
	details, ok := appErr.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected detail map, got %T", appErr.Details())
	}
	if details["name"] != "is required" {
		t.Fatalf("unexpected name detail: %q", details["name"])
	}
	if details["days"] != "must be at least 1" {
		t.Fatalf("unexpected days detail: %q", details["days"])
	}
}
