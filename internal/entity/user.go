package entity

import (
	"errors"
	"strings"
)

var (
	ErrEmailNotSet = errors.New("email is not set")
	ErrPhoneNotSet = errors.New("phone is not set")
)

// NormalizeUserName folds a user name to its canonical lowercase form.
// Term filters in Elasticsearch are case sensitive, so stored keys and
// query terms must go through the same normalization.
func NormalizeUserName(name string) string {
	return strings.ToLower(name)
}

// Email is a contact channel holding an address and its confirmation state.
type Email struct {
	Address   string
	Confirmed bool
}

// Phone is a contact channel holding a number and its confirmation state.
type Phone struct {
	Number    string
	Confirmed bool
}

// Login identifies an account at an external provider. A login is unique
// by the (Provider, ProviderKey) pair.
type Login struct {
	Provider    string
	ProviderKey string
}

// User is the account aggregate. The user name doubles as the identifier
// and is kept normalized at all times; claims and roles behave as sets.
// A User lives in memory only; it becomes durable through the store.
// Instances are not safe for concurrent mutation.
type User struct {
	userName string

	PasswordHash     string
	SecurityStamp    string
	TwoFactorEnabled bool

	Email *Email
	Phone *Phone

	claims []Claim
	roles  []string
	logins []Login
}

func NewUser(userName string) *User {
	return &User{userName: NormalizeUserName(userName)}
}

// ID returns the canonical identifier, which is always the normalized
// user name. The store uses it as the document key.
func (u *User) ID() string {
	return u.userName
}

func (u *User) UserName() string {
	return u.userName
}

// SetUserName replaces the user name, re-normalizing it.
func (u *User) SetUserName(name string) {
	u.userName = NormalizeUserName(name)
}

func (u *User) Claims() []Claim {
	return append([]Claim(nil), u.claims...)
}

func (u *User) HasClaim(claim Claim) bool {
	for _, c := range u.claims {
		if c == claim {
			return true
		}
	}
	return false
}

// AddClaim adds a claim; adding an already-present claim is a no-op.
func (u *User) AddClaim(claim Claim) {
	if u.HasClaim(claim) {
		return
	}
	u.claims = append(u.claims, claim)
}

// RemoveClaim removes a claim; removing an absent claim is a no-op.
func (u *User) RemoveClaim(claim Claim) {
	for i, c := range u.claims {
		if c == claim {
			u.claims = append(u.claims[:i], u.claims[i+1:]...)
			return
		}
	}
}

func (u *User) Roles() []string {
	return append([]string(nil), u.roles...)
}

func (u *User) IsInRole(role string) bool {
	for _, r := range u.roles {
		if r == role {
			return true
		}
	}
	return false
}

// AddRole adds a role; adding an already-present role is a no-op.
func (u *User) AddRole(role string) {
	if u.IsInRole(role) {
		return
	}
	u.roles = append(u.roles, role)
}

// RemoveRole removes a role; removing an absent role is a no-op.
func (u *User) RemoveRole(role string) {
	for i, r := range u.roles {
		if r == role {
			u.roles = append(u.roles[:i], u.roles[i+1:]...)
			return
		}
	}
}

func (u *User) Logins() []Login {
	return append([]Login(nil), u.logins...)
}

// AddLogin appends an external login. Adding a (provider, key) pair that
// is already present is a no-op, so the list never holds duplicates.
func (u *User) AddLogin(login Login) {
	for _, l := range u.logins {
		if l == login {
			return
		}
	}
	u.logins = append(u.logins, login)
}

// RemoveLogin removes every login matching the (provider, key) pair.
func (u *User) RemoveLogin(login Login) {
	kept := u.logins[:0]
	for _, l := range u.logins {
		if l != login {
			kept = append(kept, l)
		}
	}
	u.logins = kept
}

// SetEmail replaces the email channel. The new channel starts unconfirmed.
func (u *User) SetEmail(address string) {
	u.Email = &Email{Address: address}
}

// ConfirmEmail marks the email as confirmed. Confirming an unset email
// is an error.
func (u *User) ConfirmEmail() error {
	if u.Email == nil {
		return ErrEmailNotSet
	}
	u.Email.Confirmed = true
	return nil
}

// SetPhone replaces the phone channel. The new channel starts unconfirmed.
func (u *User) SetPhone(number string) {
	u.Phone = &Phone{Number: number}
}

// ConfirmPhone marks the phone as confirmed. Confirming an unset phone
// is an error.
func (u *User) ConfirmPhone() error {
	if u.Phone == nil {
		return ErrPhoneNotSet
	}
	u.Phone.Confirmed = true
	return nil
}

func (u *User) String() string {
	return u.userName
}
