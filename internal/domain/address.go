package domain

// Address holds billing details captured during checkout and on payment
// methods.
type Address struct {
	GivenName    string `json:"givenName,omitempty"`
	FamilyName   string `json:"familyName,omitempty"`
	Organization string `json:"organization,omitempty"`
	Line1        string `json:"line1,omitempty"`
	Line2        string `json:"line2,omitempty"`
	City         string `json:"city,omitempty"`
	PostalCode   string `json:"postalCode,omitempty"`
	Region       string `json:"region,omitempty"`
	CountryCode  string `json:"countryCode,omitempty"`
}

// IsEmpty reports whether no billing field has been captured.
func (a Address) IsEmpty() bool {
	return a == Address{}
}
