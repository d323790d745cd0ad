package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/castlegem/elasticidentity/internal/entity"
	"github.com/castlegem/elasticidentity/internal/mailer"
	"github.com/castlegem/elasticidentity/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCode        = errors.New("invalid confirmation code")
	ErrInvalidToken       = errors.New("invalid token")
)

const (
	defaultRole  = "customer"
	emailCodeTTL = 15 * time.Minute
)

// UserStore is the slice of the identity store the auth flows consume.
type UserStore interface {
	Create(ctx context.Context, user *entity.User) error
	Update(ctx context.Context, user *entity.User) error
	Delete(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByName(ctx context.Context, name string) (*entity.User, error)
	FindByEmail(ctx context.Context, address string) (*entity.User, error)
	All(ctx context.Context) ([]*entity.User, error)
}

// TokenStore keeps issued tokens and pending confirmation codes.
type TokenStore interface {
	CacheToken(ctx context.Context, userID, token string, ttl time.Duration) error
	GetToken(ctx context.Context, userID string) (string, error)
	InvalidateToken(ctx context.Context, userID string) error
	CacheEmailCode(ctx context.Context, userID, code string, ttl time.Duration) error
	GetEmailCode(ctx context.Context, userID string) (string, error)
	InvalidateEmailCode(ctx context.Context, userID string) error
}

type UserUsecase struct {
	store     UserStore
	tokens    TokenStore
	mail      mailer.Mailer
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    *zap.Logger
}

func NewUserUsecase(store UserStore, tokens TokenStore, mail mailer.Mailer, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *UserUsecase {
	return &UserUsecase{
		store:     store,
		tokens:    tokens,
		mail:      mail,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		logger:    logger.Named("UserUsecase"),
	}
}

// Register creates a new account with a hashed password, a fresh security
// stamp, and the default role.
func (u *UserUsecase) Register(ctx context.Context, username, email, password string) (*entity.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		u.logger.Error("failed to hash password", zap.String("username", username), zap.Error(err))
		return nil, err
	}

	user := entity.NewUser(username)
	user.PasswordHash = string(hash)
	user.SecurityStamp = newSecurityStamp()
	user.AddRole(defaultRole)
	if email != "" {
		user.SetEmail(email)
	}

	if err := u.store.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			u.logger.Warn("username already taken", zap.String("username", user.ID()))
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	u.logger.Info("user registered", zap.String("userID", user.ID()))
	return user, nil
}

// Login verifies credentials and returns a signed token. A token already
// cached for the user is reused until it expires.
func (u *UserUsecase) Login(ctx context.Context, username, password string) (string, error) {
	user, err := u.store.FindByName(ctx, username)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := u.tokens.GetToken(ctx, user.ID())
	if err != nil {
		return "", err
	}
	if token != "" {
		return token, nil
	}

	token, err = u.generateToken(user)
	if err != nil {
		return "", err
	}
	if err := u.tokens.CacheToken(ctx, user.ID(), token, u.tokenTTL); err != nil {
		return "", err
	}
	u.logger.Info("user logged in", zap.String("userID", user.ID()))
	return token, nil
}

// Logout drops the user's cached token.
func (u *UserUsecase) Logout(ctx context.Context, username string) error {
	return u.tokens.InvalidateToken(ctx, entity.NormalizeUserName(username))
}

// GetProfile returns the account for a username.
func (u *UserUsecase) GetProfile(ctx context.Context, username string) (*entity.User, error) {
	user, err := u.store.FindByName(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ChangePassword verifies the old password, stores a new hash, rotates
// the security stamp, and invalidates the cached token.
func (u *UserUsecase) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	user, err := u.store.FindByName(ctx, username)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hash)
	user.SecurityStamp = newSecurityStamp()
	if err := u.store.Update(ctx, user); err != nil {
		return err
	}
	if err := u.tokens.InvalidateToken(ctx, user.ID()); err != nil {
		u.logger.Warn("failed to invalidate token after password change",
			zap.String("userID", user.ID()), zap.Error(err))
	}
	u.logger.Info("password changed", zap.String("userID", user.ID()))
	return nil
}

// RequestEmailConfirmation issues a short-lived confirmation code and
// mails it to the account's email channel.
func (u *UserUsecase) RequestEmailConfirmation(ctx context.Context, username string) error {
	user, err := u.store.FindByName(ctx, username)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.Email == nil {
		return entity.ErrEmailNotSet
	}

	code, err := newConfirmationCode()
	if err != nil {
		return err
	}
	if err := u.tokens.CacheEmailCode(ctx, user.ID(), code, emailCodeTTL); err != nil {
		return err
	}
	if err := u.mail.SendEmailConfirmation(user.Email.Address, user.UserName(), code); err != nil {
		return err
	}
	u.logger.Info("email confirmation requested", zap.String("userID", user.ID()))
	return nil
}

// ConfirmEmail checks the pending code and marks the email channel
// confirmed.
func (u *UserUsecase) ConfirmEmail(ctx context.Context, username, code string) error {
	user, err := u.store.FindByName(ctx, username)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	pending, err := u.tokens.GetEmailCode(ctx, user.ID())
	if err != nil {
		return err
	}
	if pending == "" || pending != code {
		return ErrInvalidCode
	}
	if err := user.ConfirmEmail(); err != nil {
		return err
	}
	if err := u.store.Update(ctx, user); err != nil {
		return err
	}
	if err := u.tokens.InvalidateEmailCode(ctx, user.ID()); err != nil {
		u.logger.Warn("failed to drop used confirmation code",
			zap.String("userID", user.ID()), zap.Error(err))
	}
	u.logger.Info("email confirmed", zap.String("userID", user.ID()))
	return nil
}

// DeleteAccount removes the account document and any cached token.
func (u *UserUsecase) DeleteAccount(ctx context.Context, username string) error {
	user, err := u.store.FindByName(ctx, username)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if err := u.store.Delete(ctx, user); err != nil {
		return err
	}
	if err := u.tokens.InvalidateToken(ctx, user.ID()); err != nil {
		u.logger.Warn("failed to invalidate token during account deletion",
			zap.String("userID", user.ID()), zap.Error(err))
	}
	u.logger.Info("account deleted", zap.String("userID", user.ID()))
	return nil
}

// ListUsers enumerates every account. Intended for admin and test use.
func (u *UserUsecase) ListUsers(ctx context.Context) ([]*entity.User, error) {
	return u.store.All(ctx)
}

// VerifyToken parses a signed token and returns the subject username.
func (u *UserUsecase) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return u.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

func (u *UserUsecase) generateToken(user *entity.User) (string, error) {
	claims := ClaimsToMap(user.Claims())
	now := time.Now()
	claims["sub"] = user.ID()
	claims["roles"] = user.Roles()
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(u.tokenTTL).Unix()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(u.jwtSecret)
}

func newSecurityStamp() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand never fails on supported platforms
	}
	return hex.EncodeToString(buf)
}

func newConfirmationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
