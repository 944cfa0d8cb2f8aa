package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/buyback-backend/pkg/errors"
)

type sampleBody struct {
	Qty    int    `json:"qty" validate:"gt=0"`
	Reason string `json:"reason" validate:"required,max=8"`
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"qty":0,"reason":""}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", pkgerrors.As(err).Details())
	}
	if details["qty"] != "must be greater than 0" || details["reason"] != "is required" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"qty":1,"reason":"x","extra":true}`))
	var body sampleBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseQueryHelpers(t *testing.T) {
	req := httptest.NewRequest("GET", "/?item_id=42&limit=5&foil=true&bad=x", nil)

	id, err := ParseQueryInt64(req, "item_id")
	if err != nil || id != 42 {
		t.Fatalf("item_id: %d %v", id, err)
	}
	if _, err := ParseQueryInt64(req, "missing"); err == nil {
		t.Fatal("expected missing id to fail")
	}
	limit, err := ParseQueryInt(req, "limit", 100, 1, 1000)
	if err != nil || limit != 5 {
		t.Fatalf("limit: %d %v", limit, err)
	}
	if _, err := ParseQueryInt(req, "limit", 100, 10, 1000); err == nil {
		t.Fatal("expected out of range limit to fail")
	}
	foil, err := ParseQueryBool(req, "foil", false)
	if err != nil || !foil {
		t.Fatalf("foil: %v %v", foil, err)
	}
	if _, err := ParseQueryBool(req, "bad", false); err == nil {
		t.Fatal("expected invalid bool to fail")
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  received  ", 4); got != "rece" {
		t.Fatalf("unexpected %q", got)
	}
}
