package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"merchpos/internal/domain"
	"merchpos/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 10

	// Token expiration times
	AccessTokenExpiration  = 15 * time.Minute
	RefreshTokenExpiration = 7 * 24 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
)

// StaffService defines terminal operator accounts and their tokens.
type StaffService interface {
	Register(ctx context.Context, email, password, name, role string) (*domain.Staff, error)
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, staff *domain.Staff, err error)
	Logout(ctx context.Context, refreshToken string) error
	RefreshToken(ctx context.Context, refreshToken string) (newAccessToken string, err error)
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims represents the JWT claims carried by a staff access token.
type Claims struct {
	StaffID uuid.UUID `json:"staff_id"`
	Role    string    `json:"role"`
	jwt.RegisteredClaims
}

type staffService struct {
	staffRepo        repository.StaffRepository
	refreshTokenRepo repository.RefreshTokenRepository
	jwtSecret        string
}

// NewStaffService creates a new instance of StaffService
func NewStaffService(
	staffRepo repository.StaffRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	jwtSecret string,
) StaffService {
	return &staffService{
		staffRepo:        staffRepo,
		refreshTokenRepo: refreshTokenRepo,
		jwtSecret:        jwtSecret,
	}
}

// Register creates a new staff account with a hashed password.
func (s *staffService) Register(ctx context.Context, email, password, name, role string) (*domain.Staff, error) {
	existing, err := s.staffRepo.FindByEmail(ctx, email)
	if err != nil && err != repository.ErrStaffNotFound {
		return nil, fmt.Errorf("failed to check existing staff member: %w", err)
	}
	if existing != nil {
		return nil, repository.ErrStaffAlreadyExists
	}

	if role != "admin" {
		role = "staff"
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	staff := &domain.Staff{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hashedBytes),
		Name:         name,
		Role:         role,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := s.staffRepo.Create(ctx, staff); err != nil {
		return nil, fmt.Errorf("failed to create staff member: %w", err)
	}

	return staff, nil
}

// Login authenticates a staff member and returns JWT tokens.
func (s *staffService) Login(ctx context.Context, email, password string) (accessToken, refreshToken string, staff *domain.Staff, err error) {
	staff, err = s.staffRepo.FindByEmail(ctx, email)
	if err != nil {
		if err == repository.ErrStaffNotFound {
			return "", "", nil, ErrInvalidCredentials
		}
		return "", "", nil, fmt.Errorf("failed to find staff member: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(staff.PasswordHash), []byte(password)); err != nil {
		return "", "", nil, ErrInvalidCredentials
	}

	accessToken, err = s.generateAccessToken(staff)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err = s.generateRefreshToken(ctx, staff)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return accessToken, refreshToken, staff, nil
}

// Logout invalidates the refresh token. An unknown token counts as already
// logged out.
func (s *staffService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.refreshTokenRepo.Revoke(ctx, refreshToken); err != nil {
		if err == repository.ErrRefreshTokenNotFound {
			return nil
		}
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RefreshToken exchanges a valid refresh token for a new access token.
func (s *staffService) RefreshToken(ctx context.Context, refreshTokenString string) (newAccessToken string, err error) {
	refreshToken, err := s.refreshTokenRepo.FindByToken(ctx, refreshTokenString)
	if err != nil {
		if err == repository.ErrRefreshTokenNotFound || err == repository.ErrRefreshTokenRevoked {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to find refresh token: %w", err)
	}

	if time.Now().After(refreshToken.ExpiresAt) {
		return "", ErrTokenExpired
	}

	staff, err := s.staffRepo.FindByID(ctx, refreshToken.StaffID)
	if err != nil {
		return "", fmt.Errorf("failed to find staff member: %w", err)
	}

	newAccessToken, err = s.generateAccessToken(staff)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return newAccessToken, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *staffService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (s *staffService) generateAccessToken(staff *domain.Staff) (string, error) {
	expirationTime := time.Now().Add(AccessTokenExpiration)
	claims := &Claims{
		StaffID: staff.ID,
		Role:    staff.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func (s *staffService) generateRefreshToken(ctx context.Context, staff *domain.Staff) (string, error) {
	tokenString := uuid.New().String()

	refreshToken := &domain.RefreshToken{
		ID:        uuid.New(),
		StaffID:   staff.ID,
		Token:     tokenString,
		ExpiresAt: time.Now().Add(RefreshTokenExpiration),
		CreatedAt: time.Now(),
		Revoked:   false,
	}

	if err := s.refreshTokenRepo.Create(ctx, refreshToken); err != nil {
		return "", err
	}

	return tokenString, nil
}
