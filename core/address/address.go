// Package address validates Indian delivery addresses.
package address

import (
	"regexp"
	"strings"

	"github.com/irsalhamdi/selfcrafted/core/fault"
	"github.com/irsalhamdi/selfcrafted/validate"
)

type Address struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name" validate:"required,min=4,max=35"`
	Line1   string `json:"line1" validate:"required,min=10,max=80"`
	Line2   string `json:"line2,omitempty" validate:"omitempty,max=50"`
	City    string `json:"city" validate:"required,min=2"`
	Pincode string `json:"pincode" validate:"required,pincode"`
	State   string `json:"state" validate:"required,instate"`
	Phone   string `json:"phone" validate:"required,inphone"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
}

var (
	pincodeRe = regexp.MustCompile(`^\d{6}$`)
	phoneRe   = regexp.MustCompile(`^[6789]\d{9}$`)
)

func init() {
	validate.RegisterRule("pincode", pincodeRe.MatchString, "{0} should be a valid Indian pincode")
	validate.RegisterRule("inphone", phoneRe.MatchString, "{0} should be a valid Indian number")
	validate.RegisterRule("instate", func(s string) bool { return len(MatchState(s)) > 0 }, "{0} should be a valid Indian state")
}

// Validate checks a and returns it with trimmed fields and the canonical
// spelling of its state.
func Validate(a Address) (Address, error) {
	a.Name = strings.TrimSpace(a.Name)
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = strings.TrimSpace(a.Line2)
	a.City = strings.TrimSpace(a.City)
	a.Pincode = strings.TrimSpace(a.Pincode)
	a.State = strings.TrimSpace(a.State)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Email = strings.TrimSpace(a.Email)

	if err := validate.Check(a); err != nil {
		return Address{}, &fault.ValidationError{Message: err.Error()}
	}

	if m := MatchState(a.State); len(m) > 0 {
		a.State = m[0]
	}
	return a, nil
}

// States are the Indian states and union territories accepted for delivery.
var States = []string{
	"Andhra Pradesh",
	"Arunachal Pradesh",
	"Assam",
	"Bihar",
	"Chhattisgarh",
	"Goa",
	"Gujarat",
	"Haryana",
	"Himachal Pradesh",
	"Jharkhand",
	"Karnataka",
	"Kerala",
	"Madhya Pradesh",
	"Maharashtra",
	"Manipur",
	"Meghalaya",
	"Mizoram",
	"Nagaland",
	"Odisha",
	"Punjab",
	"Rajasthan",
	"Sikkim",
	"Tamil Nadu",
	"Telangana",
	"Tripura",
	"Uttar Pradesh",
	"Uttarakhand",
	"West Bengal",
	"Andaman and Nicobar Islands",
	"Chandigarh",
	"Dadra and Nagar Haveli and Daman and Diu",
	"Delhi",
	"Ladakh",
	"Lakshadweep",
	"Puducherry",
}

const stateThreshold = 1

// MatchState returns the states within one edit of s, ignoring case.
func MatchState(s string) []string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil
	}

	var out []string
	for _, st := range States {
		if levenshtein(strings.ToLower(st), s) <= stateThreshold {
			out = append(out, st)
		}
	}
	return out
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1]
				continue
			}
			cur[j] = 1 + min(prev[j-1], cur[j-1], prev[j])
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
