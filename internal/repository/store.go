package repository

import (
	"context"
	"fmt"

	"github.com/castlegem/elasticidentity/internal/entity"
)

// An authentication framework rarely wants the whole store at once; it
// consumes narrow capability contracts. *UserStore satisfies all of them
// simultaneously, so a caller can hold whichever slice it needs.

// Store is the core persistence contract.
type Store interface {
	Create(ctx context.Context, user *entity.User) error
	Update(ctx context.Context, user *entity.User) error
	Delete(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByName(ctx context.Context, name string) (*entity.User, error)
	All(ctx context.Context) ([]*entity.User, error)
}

type PasswordStore interface {
	SetPasswordHash(user *entity.User, hash string) error
	PasswordHash(user *entity.User) (string, error)
	HasPassword(user *entity.User) (bool, error)
}

type SecurityStampStore interface {
	SetSecurityStamp(user *entity.User, stamp string) error
	SecurityStamp(user *entity.User) (string, error)
}

type ClaimStore interface {
	AddClaim(user *entity.User, claim entity.Claim) error
	RemoveClaim(user *entity.User, claim entity.Claim) error
	Claims(user *entity.User) ([]entity.Claim, error)
}

type RoleStore interface {
	AddToRole(user *entity.User, role string) error
	RemoveFromRole(user *entity.User, role string) error
	Roles(user *entity.User) ([]string, error)
	IsInRole(user *entity.User, role string) (bool, error)
}

type LoginStore interface {
	AddLogin(user *entity.User, login entity.Login) error
	RemoveLogin(user *entity.User, login entity.Login) error
	Logins(user *entity.User) ([]entity.Login, error)
	FindByLogin(ctx context.Context, login entity.Login) (*entity.User, error)
}

type EmailStore interface {
	SetEmail(user *entity.User, address string) error
	ConfirmEmail(user *entity.User) error
	FindByEmail(ctx context.Context, address string) (*entity.User, error)
}

type PhoneStore interface {
	SetPhone(user *entity.User, number string) error
	ConfirmPhone(user *entity.User) error
}

type TwoFactorStore interface {
	SetTwoFactorEnabled(user *entity.User, enabled bool) error
	TwoFactorEnabled(user *entity.User) (bool, error)
}

var (
	_ Store              = (*UserStore)(nil)
	_ PasswordStore      = (*UserStore)(nil)
	_ SecurityStampStore = (*UserStore)(nil)
	_ ClaimStore         = (*UserStore)(nil)
	_ RoleStore          = (*UserStore)(nil)
	_ LoginStore         = (*UserStore)(nil)
	_ EmailStore         = (*UserStore)(nil)
	_ PhoneStore         = (*UserStore)(nil)
	_ TwoFactorStore     = (*UserStore)(nil)
)

// The mutators below edit the in-memory user only; nothing is durable
// until Update is called. Each guards its required reference arguments
// before touching anything.

func nilUser(user *entity.User) error {
	if user == nil {
		return fmt.Errorf("%w: user is nil", ErrInvalidArgument)
	}
	return nil
}

func (s *UserStore) SetPasswordHash(user *entity.User, hash string) error {
	if err := nilUser(user); err != nil {
		return err
	}
	user.PasswordHash = hash
	return nil
}

func (s *UserStore) PasswordHash(user *entity.User) (string, error) {
	if err := nilUser(user); err != nil {
		return "", err
	}
	return user.PasswordHash, nil
}

func (s *UserStore) HasPassword(user *entity.User) (bool, error) {
	if err := nilUser(user); err != nil {
		return false, err
	}
	return user.PasswordHash != "", nil
}

func (s *UserStore) SetSecurityStamp(user *entity.User, stamp string) error {
	if err := nilUser(user); err != nil {
		return err
	}
	user.SecurityStamp = stamp
	return nil
}

func (s *UserStore) SecurityStamp(user *entity.User) (string, error) {
	if err := nilUser(user); err != nil {
		return "", err
	}
	return user.SecurityStamp, nil
}

func (s *UserStore) AddClaim(user *entity.User, claim entity.Claim) error {
	if err := nilUser(user); err != nil {
		return err
	}
	user.AddClaim(claim)
	return nil
}

func (s *UserStore) RemoveClaim(user *entity.User, claim entity.Claim) error {
	if err := nilUser(user); err != nil {
		return err
	}
	user.RemoveClaim(claim)
	return nil
}

func (s *UserStore) Claims(user *entity.User) ([]entity.Claim, error) {
	if err := nilUser(user); err != nil {
		return nil, err
	}
	return user.Claims(), nil
}

func (s *UserStore) AddToRole(user *entity.User, role string) error {
	if err := nilUser(user); err != nil {
		return err
	}
	user.AddRole(role)
	return nil
}

func (s *UserStore) RemoveFromRole(user *entity.User, role string) error {
	if err := nilUser(user); err != nil {
		return err
	}
	user.RemoveRole(role)
	return nil
}

func (s *UserStore) Roles(user *entity.User) ([]string, error) {
	if err := nilUser(user); err != nil {
		return nil, err
	}
	return user.Roles(), nil
}

func (s *UserStore) IsInRole(user *entity.User, role string) (bool, error) {
	if err := nilUser(user); err != nil {
		return false, err
	}
	return user.IsInRole(role), nil
}

func (s *UserStore) AddLogin(user *entity.User, login entity.Login) error {
	if err := nilUser(user); err != nil {
		return err
	}
	user.AddLogin(login)
	return nil
}

func (s *UserStore) RemoveLogin(user *entity.User, login entity.Login) error {
	if err := nilUser(user); err != nil {
		return err
	}
	user.RemoveLogin(login)
	return nil
}

func (s *UserStore) Logins(user *entity.User) ([]entity.Login, error) {
	if err := nilUser(user); err != nil {
		return nil, err
	}
	return user.Logins(), nil
}

func (s *UserStore) SetEmail(user *entity.User, address string) error {
	if err := nilUser(user); err != nil {
		return err
	}
	user.SetEmail(address)
	return nil
}

func (s *UserStore) ConfirmEmail(user *entity.User) error {
	if err := nilUser(user); err != nil {
		return err
	}
	return user.ConfirmEmail()
}

func (s *UserStore) SetPhone(user *entity.User, number string) error {
	if err := nilUser(user); err != nil {
		return err
	}
	user.SetPhone(number)
	return nil
}

func (s *UserStore) ConfirmPhone(user *entity.User) error {
	if err := nilUser(user); err != nil {
		return err
	}
	return user.ConfirmPhone()
}

func (s *UserStore) SetTwoFactorEnabled(user *entity.User, enabled bool) error {
	if err := nilUser(user); err != nil {
		return err
	}
	user.TwoFactorEnabled = enabled
	return nil
}

func (s *UserStore) TwoFactorEnabled(user *entity.User) (bool, error) {
	if err := nilUser(user); err != nil {
		return false, err
	}
	return user.TwoFactorEnabled, nil
}
