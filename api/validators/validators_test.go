package validators

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/matcycle-backend/pkg/errors"
)

type allocateBody struct {
	Prefix string `json:"prefix" validate:"required,max=8"`
	Count  int    `json:"count" validate:"min=1"`
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"prefix":"MAT","count":1,"extra":true}`))
	var body allocateBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"prefix":"","count":0}`))
	var body allocateBody
	err := DecodeJSONBody(req, &body)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details %#v", typed.Details())
	}
	if details["prefix"] != "is required" || details["count"] != "must be at least 1" {
		t.Fatalf("unexpected details %v", details)
	}

	req = httptest.NewRequest("POST", "/", strings.NewReader(`{"prefix":"TOOLONGPREFIX","count":2}`))
	typed = pkgerrors.As(DecodeJSONBody(req, &body))
	if typed == nil {
		t.Fatalf("expected validation error")
	}
	details, _ = typed.Details().(map[string]string)
	if details["prefix"] != "must be at most 8 characters" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":      ``,
		"syntax":     `{"prefix":`,
		"wrong type": `{"prefix":"MAT","count":"two"}`,
		"trailing":   `{"prefix":"MAT","count":1}{"prefix":"X"}`,
		"oversized":  `{"prefix":"` + strings.Repeat("a", MaxBodyBytes) + `","count":1}`,
	}
	for name, raw := range cases {
		req := httptest.NewRequest("POST", "/", strings.NewReader(raw))
		var body allocateBody
		if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestDecodeJSONBodyNamesMistypedField(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"prefix":"MAT","count":"two"}`))
	var body allocateBody
	typed := pkgerrors.As(DecodeJSONBody(req, &body))
	if typed == nil {
		t.Fatalf("expected typed error")
	}
	details, ok := typed.Details().(map[string]string)
	if !ok || details["count"] != "must be int" {
		t.Fatalf("unexpected details %#v", typed.Details())
	}
}

func TestParseQueryInt(t *testing.T) {
	cases := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{query: "", want: 25},
		{query: "?limit=10", want: 10},
		{query: "?limit=abc", wantErr: true},
		{query: "?limit=0", wantErr: true},
		{query: "?limit=101", wantErr: true},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("GET", "/"+tc.query, nil)
		got, err := ParseQueryInt(req, "limit", 25, 1, 100)
		if tc.wantErr {
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("%q: expected validation error, got %v", tc.query, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %d, %v", tc.query, got, err)
		}
	}
}

func TestParseQueryUUID(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if id, err := ParseQueryUUID(req, "ownerId"); err != nil || id != nil {
		t.Fatalf("expected nil for absent key, got %v, %v", id, err)
	}

	req = httptest.NewRequest("GET", "/?ownerId=5b0e9a52-8d4c-4e3a-9f57-0c1f3d4a2b11", nil)
	id, err := ParseQueryUUID(req, "ownerId")
	if err != nil || id == nil || id.String() != "5b0e9a52-8d4c-4e3a-9f57-0c1f3d4a2b11" {
		t.Fatalf("unexpected result %v, %v", id, err)
	}

	req = httptest.NewRequest("GET", "/?ownerId=nope", nil)
	if _, err := ParseQueryUUID(req, "ownerId"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseQueryTimeAcceptsDatesAndTimestamps(t *testing.T) {
	req := httptest.NewRequest("GET", "/?from=2026-03-01", nil)
	got, err := ParseQueryTime(req, "from")
	if err != nil || got == nil || !got.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date %v, %v", got, err)
	}

	req = httptest.NewRequest("GET", "/?from=2026-03-01T10:00:00%2B02:00", nil)
	got, err = ParseQueryTime(req, "from")
	if err != nil || got == nil || got.Hour() != 8 || got.Location() != time.UTC {
		t.Fatalf("unexpected timestamp %v, %v", got, err)
	}

	req = httptest.NewRequest("GET", "/?from=yesterday", nil)
	if _, err := ParseQueryTime(req, "from"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  route 7 notes  ", 5); got != "route" {
		t.Fatalf("unexpected %q", got)
	}
	if got := SanitizeString(" plain ", 0); got != "plain" {
		t.Fatalf("unexpected %q", got)
	}
	if got := SanitizeString("dock\x00 B", 0); got != "dock B" {
		t.Fatalf("control characters kept: %q", got)
	}
	if got := SanitizeString("café", 4); got != "caf" {
		t.Fatalf("rune split: %q", got)
	}
}

func TestOptionalString(t *testing.T) {
	if OptionalString(nil, 10) != nil {
		t.Fatalf("expected nil for nil input")
	}
	blank := "   "
	if OptionalString(&blank, 10) != nil {
		t.Fatalf("expected nil for blank input")
	}
	note := " gate code 42 "
	if got := OptionalString(&note, 10); got == nil || *got != "gate code" {
		t.Fatalf("unexpected %v", got)
	}
}
