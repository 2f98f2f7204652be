package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	if meta := MetadataFor(CodeValidation); meta.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("validation should map to 400, got %d", meta.HTTPStatus)
	}
	if meta := MetadataFor(CodeConflict); meta.HTTPStatus != http.StatusConflict {
		t.Fatalf("conflict should map to 409, got %d", meta.HTTPStatus)
	}
	if meta := MetadataFor(CodeStateConflict); meta.HTTPStatus != http.StatusUnprocessableEntity {
		t.Fatalf("state conflict should map to 422, got %d", meta.HTTPStatus)
	}
	if meta := MetadataFor(Code("nope")); meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unknown codes should fall back to internal, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("disk on fire")
	err := Wrap(CodeDependency, cause, "load assignment")

	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to survive errors.Is")
	}
	if got := err.Error(); got != "DEPENDENCY_ERROR: load assignment" {
		t.Fatalf("unexpected error string: %s", got)
	}
}

func TestAsThroughWrapping(t *testing.T) {
	inner := New(CodeStateConflict, "window already resolved")
	outer := fmt.Errorf("resolve: %w", inner)

	typed := As(outer)
	if typed == nil {
		t.Fatal("expected typed error through fmt.Errorf wrapping")
	}
	if typed.Code() != CodeStateConflict {
		t.Fatalf("unexpected code: %s", typed.Code())
	}
	if !IsCode(outer, CodeStateConflict) {
		t.Fatal("IsCode should match through wrapping")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	err := Wrap(CodeInternal, stdErrors.New("root"), "top")
	dump := Dump(err)
	if dump.Code != CodeInternal {
		t.Fatalf("unexpected code: %s", dump.Code)
	}
	if len(dump.Chain) < 2 {
		t.Fatalf("expected full unwrap chain, got %v", dump.Chain)
	}
}
