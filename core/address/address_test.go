package address

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/irsalhamdi/selfcrafted/core/fault"
)

func valid() Address {
	return Address{
		Name:    "Asha Raman",
		Line1:   "12 Gandhi Road, Adyar",
		City:    "Chennai",
		Pincode: "600020",
		State:   "tamil nadu",
		Phone:   "9876543210",
	}
}

func TestValidate(t *testing.T) {
	got, err := Validate(valid())
	if err != nil {
		t.Fatalf("valid address rejected: %v", err)
	}
	if got.State != "Tamil Nadu" {
		t.Fatalf("state should be canonicalised, got %q", got.State)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := map[string]struct {
		mut  func(*Address)
		want string
	}{
		"short name":    {func(a *Address) { a.Name = "Al" }, "name"},
		"short line1":   {func(a *Address) { a.Line1 = "12 Road" }, "line1"},
		"long line2":    {func(a *Address) { a.Line2 = strings.Repeat("x", 51) }, "line2"},
		"bad pincode":   {func(a *Address) { a.Pincode = "60002" }, "pincode"},
		"alpha pincode": {func(a *Address) { a.Pincode = "60002a" }, "pincode"},
		"bad state":     {func(a *Address) { a.State = "Atlantis" }, "state"},
		"short city":    {func(a *Address) { a.City = "C" }, "city"},
		"bad phone":     {func(a *Address) { a.Phone = "5876543210" }, "phone"},
		"short phone":   {func(a *Address) { a.Phone = "987654321" }, "phone"},
		"bad email":     {func(a *Address) { a.Email = "nope" }, "email"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			a := valid()
			tt.mut(&a)

			_, err := Validate(a)
			var ve *fault.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(ve.Message, tt.want) {
				t.Fatalf("expected message about %s, got %q", tt.want, ve.Message)
			}
		})
	}
}

func TestMatchState(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Kerala", []string{"Kerala"}},
		{"kerla", []string{"Kerala"}},
		{"Keralaa", []string{"Kerala"}},
		{"Krla", nil},
		{"", nil},
		{"GOA", []string{"Goa"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, MatchState(tt.in)); diff != "" {
			t.Fatalf("MatchState(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestLevenshtein(t *testing.T) {
	if d := levenshtein("kitten", "sitting"); d != 3 {
		t.Fatalf("expected 3, got %d", d)
	}
	if d := levenshtein("", "abc"); d != 3 {
		t.Fatalf("expected 3, got %d", d)
	}
}
