package router

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

// DefaultDomain is the domain implied by configuration keys written without
// one.
const DefaultDomain = "mailrise.xyz"

// ErrInvalidAddress is returned for recipient addresses that do not follow
// the Mailrise address grammar.
var ErrInvalidAddress = errors.New("not a valid Mailrise address")

// NotifyType is the severity attached to a notification.
type NotifyType string

const (
	NotifyInfo    NotifyType = "info"
	NotifySuccess NotifyType = "success"
	NotifyWarning NotifyType = "warning"
	NotifyFailure NotifyType = "failure"
)

// typeSuffix matches a local part ending in a notify type, e.g. "jobs.warning".
var typeSuffix = regexp.MustCompile(`(?i)^(.*)\.(info|success|warning|failure)$`)

// Key identifies a configured target. Keys are comparable and are used
// directly as registry map keys.
type Key struct {
	User   string
	Domain string
}

// String returns the full address form, user@domain.
func (k Key) String() string {
	return k.User + "@" + k.Domain
}

// AsConfigured returns the key the way it is written in the configuration
// file: the bare user for the default domain, the full address otherwise.
func (k Key) AsConfigured() string {
	if k.Domain == DefaultDomain {
		return k.User
	}
	return k.String()
}

// Recipient is a parsed recipient address.
type Recipient struct {
	Key  Key
	Type NotifyType
}

// ParseRecipient parses a recipient address of the form
// user[.type]@domain. The domain is lowercased; the user keeps its case.
// A missing type suffix means info. Only a bare addr-spec is accepted;
// display names and angle brackets are rejected.
func ParseRecipient(addr string) (Recipient, error) {
	if strings.ContainsAny(addr, "<>") {
		return Recipient{}, fmt.Errorf("%w: %s", ErrInvalidAddress, addr)
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Name != "" {
		return Recipient{}, fmt.Errorf("%w: %s", ErrInvalidAddress, addr)
	}

	at := strings.LastIndex(parsed.Address, "@")
	if at < 0 {
		return Recipient{}, fmt.Errorf("%w: %s", ErrInvalidAddress, addr)
	}
	user := parsed.Address[:at]
	domain := strings.ToLower(parsed.Address[at+1:])

	notifyType := NotifyInfo
	if m := typeSuffix.FindStringSubmatch(user); m != nil {
		user = m[1]
		notifyType = NotifyType(strings.ToLower(m[2]))
	}
	if user == "" || domain == "" {
		return Recipient{}, fmt.Errorf("%w: %s", ErrInvalidAddress, addr)
	}

	return Recipient{
		Key:  Key{User: user, Domain: domain},
		Type: notifyType,
	}, nil
}

// ParseKey parses a configuration key. Keys without a domain belong to
// DefaultDomain.
func ParseKey(s string) (Key, error) {
	addr := s
	if !strings.Contains(s, "@") {
		addr = s + "@" + DefaultDomain
	}
	rcpt, err := ParseRecipient(addr)
	if err != nil {
		return Key{}, fmt.Errorf("invalid config key %q: %w", s, err)
	}
	return rcpt.Key, nil
}
