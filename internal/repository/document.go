package repository

import "github.com/castlegem/elasticidentity/internal/entity"

// userDocument is the persisted shape of a user. The document key in the
// index is the normalized user name.
type userDocument struct {
	UserName         string          `json:"userName"`
	PasswordHash     string          `json:"passwordHash,omitempty"`
	SecurityStamp    string          `json:"securityStamp,omitempty"`
	TwoFactorEnabled bool            `json:"twoFactorAuthenticationEnabled"`
	Email            *emailDocument  `json:"email,omitempty"`
	Phone            *phoneDocument  `json:"phone,omitempty"`
	Roles            []string        `json:"roles,omitempty"`
	Claims           []claimDocument `json:"claims,omitempty"`
	Logins           []loginDocument `json:"logins,omitempty"`
}

type emailDocument struct {
	Address   string `json:"address"`
	Confirmed bool   `json:"isConfirmed"`
}

type phoneDocument struct {
	Number    string `json:"number"`
	Confirmed bool   `json:"isConfirmed"`
}

type claimDocument struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type loginDocument struct {
	LoginProvider string `json:"loginProvider"`
	ProviderKey   string `json:"providerKey"`
}

func fromEntity(u *entity.User) *userDocument {
	doc := &userDocument{
		UserName:         u.UserName(),
		PasswordHash:     u.PasswordHash,
		SecurityStamp:    u.SecurityStamp,
		TwoFactorEnabled: u.TwoFactorEnabled,
		Roles:            u.Roles(),
	}
	if u.Email != nil {
		doc.Email = &emailDocument{Address: u.Email.Address, Confirmed: u.Email.Confirmed}
	}
	if u.Phone != nil {
		doc.Phone = &phoneDocument{Number: u.Phone.Number, Confirmed: u.Phone.Confirmed}
	}
	for _, c := range u.Claims() {
		doc.Claims = append(doc.Claims, claimDocument{Type: c.Type, Value: c.Value})
	}
	for _, l := range u.Logins() {
		doc.Logins = append(doc.Logins, loginDocument{LoginProvider: l.Provider, ProviderKey: l.ProviderKey})
	}
	return doc
}

func (d *userDocument) toEntity() *entity.User {
	u := entity.NewUser(d.UserName)
	u.PasswordHash = d.PasswordHash
	u.SecurityStamp = d.SecurityStamp
	u.TwoFactorEnabled = d.TwoFactorEnabled
	if d.Email != nil {
		u.Email = &entity.Email{Address: d.Email.Address, Confirmed: d.Email.Confirmed}
	}
	if d.Phone != nil {
		u.Phone = &entity.Phone{Number: d.Phone.Number, Confirmed: d.Phone.Confirmed}
	}
	for _, r := range d.Roles {
		u.AddRole(r)
	}
	for _, c := range d.Claims {
		u.AddClaim(entity.Claim{Type: c.Type, Value: c.Value})
	}
	for _, l := range d.Logins {
		u.AddLogin(entity.Login{Provider: l.LoginProvider, ProviderKey: l.ProviderKey})
	}
	return u
}
