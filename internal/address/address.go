// Package address maps wallet contact shapes onto the storefront address
// schema.
//
// Wallets reveal contact details in stages: while the shopper browses
// shipping options only a coarse region is known, and the full name and
// street arrive with payment authorization. Normalize therefore supports a
// partial mode in which identity fields carry a placeholder, letting the
// backend create an address and quote delivery modes before they are known.
package address

import (
	"strings"

	"opf-quickbuy/internal/model"
)

// Source is a wallet-neutral contact. Either Name or GivenName/FamilyName is
// set, depending on the wallet.
type Source struct {
	Name               string
	GivenName          string
	FamilyName         string
	Lines              []string
	Locality           string
	AdministrativeArea string
	PostalCode         string
	CountryCode        string
	Country            string
	Phone              string
	Email              string
}

// Normalize converts src into a backend address.
//
// With partial set, firstName, lastName and line1 always equal
// model.DefaultFieldValue. Otherwise every available field is copied and the
// required fields fall back to the placeholder only when absent. Optional
// fields default to "".
func Normalize(src Source, partial bool) model.Address {
	addr := model.Address{
		Town:       src.Locality,
		District:   src.AdministrativeArea,
		PostalCode: src.PostalCode,
		Country: &model.Country{
			Isocode: src.CountryCode,
			Name:    src.Country,
		},
		Phone: src.Phone,
		Email: src.Email,
	}

	if partial {
		addr.FirstName = model.DefaultFieldValue
		addr.LastName = model.DefaultFieldValue
		addr.Line1 = model.DefaultFieldValue
		return addr
	}

	addr.FirstName, addr.LastName = names(src)
	addr.Line1, addr.Line2 = lines(src.Lines)

	addr.FirstName = withPlaceholder(addr.FirstName)
	addr.LastName = withPlaceholder(addr.LastName)
	addr.Line1 = withPlaceholder(addr.Line1)
	return addr
}

// FromAppleContact builds a Source from an Apple Pay contact.
func FromAppleContact(c *model.ApplePayPaymentContact) Source {
	if c == nil {
		return Source{}
	}
	return Source{
		GivenName:          c.GivenName,
		FamilyName:         c.FamilyName,
		Lines:              c.AddressLines,
		Locality:           c.Locality,
		AdministrativeArea: c.AdministrativeArea,
		PostalCode:         c.PostalCode,
		CountryCode:        c.CountryCode,
		Country:            c.Country,
		Phone:              c.PhoneNumber,
		Email:              c.EmailAddress,
	}
}

// FromGoogleAddress builds a Source from a Google Pay address.
func FromGoogleAddress(a *model.GoogleAddress) Source {
	if a == nil {
		return Source{}
	}
	return Source{
		Name:               a.Name,
		Lines:              []string{a.Address1, a.Address2, a.Address3},
		Locality:           a.Locality,
		AdministrativeArea: a.AdministrativeArea,
		PostalCode:         a.PostalCode,
		CountryCode:        a.CountryCode,
		Phone:              a.PhoneNumber,
	}
}

// SplitName splits a full name on the first space. A single word is used for
// both parts.
func SplitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}
	first, rest, _ := strings.Cut(name, " ")
	last = strings.TrimSpace(rest)
	if last == "" {
		last = first
	}
	return first, last
}

func names(src Source) (string, string) {
	if src.GivenName != "" || src.FamilyName != "" {
		return strings.TrimSpace(src.GivenName), strings.TrimSpace(src.FamilyName)
	}
	return SplitName(src.Name)
}

// lines keeps the first line as is and joins the rest into line2.
func lines(in []string) (string, string) {
	if len(in) == 0 {
		return "", ""
	}
	var rest []string
	for _, l := range in[1:] {
		if l = strings.TrimSpace(l); l != "" {
			rest = append(rest, l)
		}
	}
	return strings.TrimSpace(in[0]), strings.Join(rest, " ")
}

func withPlaceholder(s string) string {
	if s == "" {
		return model.DefaultFieldValue
	}
	return s
}
