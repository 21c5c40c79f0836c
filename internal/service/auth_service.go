package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"circle/internal/cache"
	"circle/internal/mail"
	"circle/internal/middleware"
	"circle/internal/models"
	"circle/internal/repository"
	"circle/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	TokenIssuer   = "circle-api"
	TokenAudience = "circle-client"
	TokenTTL      = 7 * 24 * time.Hour

	resetTokenBytes = 20
	resetTokenTTL   = 10 * time.Minute
)

// AuthService issues and revokes session tokens and runs the password flows.
type AuthService struct {
	users       repository.UserRepository
	redis       *redis.Client
	mailer      mail.Sender
	secret      []byte
	frontendURL string
	now         func() time.Time
}

type RegisterInput struct {
	FullName string
	Username string
	Email    string
	Password string
}

// AuthResult is returned by every flow that signs the user in.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// TokenClaims is the verified content of a session token.
type TokenClaims struct {
	UserID    uint
	Username  string
	JTI       string
	ExpiresAt time.Time
}

// NewAuthService returns an AuthService. Without a redis client logout cannot
// revoke tokens.
func NewAuthService(
	users repository.UserRepository,
	redisClient *redis.Client,
	mailer mail.Sender,
	secret string,
	frontendURL string,
) *AuthService {
	return &AuthService{
		users:       users,
		redis:       redisClient,
		mailer:      mailer,
		secret:      []byte(secret),
		frontendURL: strings.TrimRight(frontendURL, "/"),
		now:         time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = validation.NormalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)

	if in.FullName == "" || in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Full name, username, email, and password are required")
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		existing, err = s.users.GetByUsername(ctx, in.Username)
		if err != nil {
			return nil, err
		}
	}
	if existing != nil {
		return nil, models.NewValidationError("User already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		FullName: in.FullName,
		Username: in.Username,
		Email:    in.Email,
		Password: string(hashed),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.signIn(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid email or password")
	}
	return s.signIn(user)
}

func (s *AuthService) signIn(user *models.User) (*AuthResult, error) {
	token, err := s.IssueToken(user)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// IssueToken signs an HS256 session token for user.
func (s *AuthService) IssueToken(user *models.User) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("JWT secret not configured")
	}

	now := s.now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(user.ID), 10),
		"username": user.Username,
		"iss":      TokenIssuer,
		"aud":      TokenAudience,
		"exp":      now.Add(TokenTTL).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      generateJTI(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// generateJTI creates a unique token ID used as the revocation key.
func generateJTI(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.Unix(), uuid.New().String()[:8])
}

// ParseToken verifies signature, issuer, audience and expiry, then rejects
// revoked tokens.
func (s *AuthService) ParseToken(ctx context.Context, tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, models.NewUnauthorizedError("Invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, models.NewUnauthorizedError("Invalid subject claim")
	}
	jti, _ := claims["jti"].(string)
	username, _ := claims["username"].(string)
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, models.NewUnauthorizedError("Invalid token claims")
	}

	out := &TokenClaims{
		UserID:    uint(userID),
		Username:  username,
		JTI:       jti,
		ExpiresAt: exp.Time,
	}

	if s.isRevoked(ctx, jti) {
		return nil, models.NewUnauthorizedError("Token has been revoked")
	}
	return out, nil
}

// isRevoked fails open on Redis errors.
func (s *AuthService) isRevoked(ctx context.Context, jti string) bool {
	if s.redis == nil || jti == "" {
		return false
	}
	n, err := s.redis.Exists(ctx, cache.BlacklistKey(jti)).Result()
	if err != nil {
		middleware.Logger.WarnContext(ctx, "token revocation check failed", "error", err)
		return false
	}
	return n > 0
}

// Logout revokes the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims *TokenClaims) error {
	if claims == nil || claims.JTI == "" {
		return nil
	}
	if s.redis == nil {
		middleware.Logger.WarnContext(ctx, "logout without redis; token stays valid until expiry")
		return nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, cache.BlacklistKey(claims.JTI), claims.UserID, ttl).Err(); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ForgotPassword mails a reset link valid for ten minutes. Only the sha256 of
// the token is stored.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return models.NewNotFoundError("User", email)
	}

	raw := make([]byte, resetTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return models.NewInternalError(err)
	}
	token := hex.EncodeToString(raw)
	expire := s.now().Add(resetTokenTTL)

	user.ResetPasswordToken = hashResetToken(token)
	user.ResetPasswordExpire = &expire
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/reset-password/%s", s.frontendURL, token)
	body := fmt.Sprintf("You requested a password reset.\n\nClick the link below:\n\n%s\n\nThis link expires in 10 minutes.\n", resetURL)
	if err := s.mailer.Send(ctx, user.Email, "Password Reset", body); err != nil {
		middleware.Logger.ErrorContext(ctx, "password reset mail failed", "user_id", user.ID, "error", err)
		user.ResetPasswordToken = ""
		user.ResetPasswordExpire = nil
		if clearErr := s.users.Update(ctx, user); clearErr != nil {
			middleware.Logger.ErrorContext(ctx, "failed to clear reset token", "user_id", user.ID, "error", clearErr)
		}
		return &models.AppError{Code: models.CodeInternal, Message: "Email could not be sent", Err: err}
	}
	return nil
}

// ResetPassword sets a new password for the holder of a live reset token and
// signs them in.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) (*AuthResult, error) {
	user, err := s.users.GetByResetToken(ctx, hashResetToken(token), s.now())
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewValidationError("Invalid or expired token")
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user.Password = string(hashed)
	user.ResetPasswordToken = ""
	user.ResetPasswordExpire = nil
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return s.signIn(user)
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)); err != nil {
		return models.NewUnauthorizedError("Current password incorrect")
	}
	if err := validation.ValidatePassword(next); err != nil {
		return models.NewValidationError(err.Error())
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	user.Password = string(hashed)
	return s.users.Update(ctx, user)
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
