package types

import (
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/net/idna"
)

// EmailAddress is a single parsed email participant. AddrSpec is always a
// syntactically valid local@domain; construction fails otherwise. Immutable
// once constructed.
type EmailAddress struct {
	DisplayName string `json:"displayName,omitempty"`
	AddrSpec    string `json:"addrSpec"`
}

// ParseEmailAddress parses a free-form "Display Name <addr@domain>" string.
func ParseEmailAddress(input string) (EmailAddress, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(input))
	if err != nil {
		return EmailAddress{}, &AddressParseError{Input: input, Err: err}
	}
	return newEmailAddress(addr.Name, addr.Address, input)
}

// ParseEmailAddressList parses a comma separated address list.
func ParseEmailAddressList(input string) ([]EmailAddress, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &AddressParseError{Input: input, Err: ErrInvalidEmail}
	}
	addrs, err := mail.ParseAddressList(input)
	if err != nil {
		return nil, &AddressParseError{Input: input, Err: err}
	}
	emails := make([]EmailAddress, 0, len(addrs))
	for _, addr := range addrs {
		email, aErr := newEmailAddress(addr.Name, addr.Address, input)
		if aErr != nil {
			return nil, aErr
		}
		emails = append(emails, email)
	}
	return emails, nil
}

// NewEmailAddress constructs an address from an explicit (name, address) pair.
func NewEmailAddress(displayName, addrSpec string) (EmailAddress, error) {
	addr, err := mail.ParseAddress(addrSpec)
	if err != nil {
		return EmailAddress{}, &AddressParseError{Input: addrSpec, Err: err}
	}
	return newEmailAddress(displayName, addr.Address, addrSpec)
}

func newEmailAddress(displayName, addrSpec, input string) (EmailAddress, error) {
	if !strings.Contains(addrSpec, "@") {
		return EmailAddress{}, &AddressParseError{Input: input, Err: ErrInvalidEmail}
	}
	return EmailAddress{DisplayName: displayName, AddrSpec: addrSpec}, nil
}

// Username is the local part of the addr-spec (before the last "@").
func (e EmailAddress) Username() string {
	at := strings.LastIndex(e.AddrSpec, "@")
	return e.AddrSpec[:at]
}

// Domain is the domain part of the addr-spec (after the last "@").
func (e EmailAddress) Domain() string {
	at := strings.LastIndex(e.AddrSpec, "@")
	return e.AddrSpec[at+1:]
}

// IsZero reports whether the address is unset.
func (e EmailAddress) IsZero() bool {
	return e.AddrSpec == ""
}

// ASCIIAddrSpec returns the addr-spec with an internationalized domain encoded
// to punycode. Internationalized local parts need the SMTPUTF8 extension, which
// none of the wired ESPs advertise, so they fail as unsupported.
func (e EmailAddress) ASCIIAddrSpec() (string, error) {
	username := e.Username()
	if !isASCII(username) {
		return "", &UnsupportedFeatureError{Feature: fmt.Sprintf("non-ASCII email username (SMTPUTF8) in %q", e.AddrSpec)}
	}
	domain := e.Domain()
	if isASCII(domain) {
		return e.AddrSpec, nil
	}
	asciiDomain, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return "", &AddressParseError{Input: e.AddrSpec, Err: err}
	}
	return username + "@" + asciiDomain, nil
}

// String formats the address for an RFC 5322 header: display name encoded as a
// MIME encoded-word when needed, domain encoded to punycode.
func (e EmailAddress) String() string {
	spec, err := e.ASCIIAddrSpec()
	if err != nil {
		// no ASCII rendition of the local part exists; leave it unencoded
		spec = e.AddrSpec
	}
	if e.DisplayName == "" {
		return spec
	}
	// mail.Address applies RFC 2047 encoded-word encoding and quoting to the name
	return (&mail.Address{Name: e.DisplayName, Address: spec}).String()
}

// MailAddress converts to the stdlib representation.
func (e EmailAddress) MailAddress() mail.Address {
	return mail.Address{Name: e.DisplayName, Address: e.AddrSpec}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// AddrSpecs maps a recipient list to bare addr-specs, preserving order.
func AddrSpecs(emails []EmailAddress) []string {
	specs := make([]string, 0, len(emails))
	for _, e := range emails {
		specs = append(specs, e.AddrSpec)
	}
	return specs
}
