package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/MKRushil/Pulse/internal/dto"
	"github.com/MKRushil/Pulse/internal/entity"
	"github.com/MKRushil/Pulse/internal/repository/specification"
	"github.com/MKRushil/Pulse/internal/repository/unitofwork"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type IAuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.RefreshTokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
}

type authService struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewAuthService(uowFactory unitofwork.RepositoryFactory) IAuthService {
	return &authService{uowFactory: uowFactory}
}

func signAccessToken(p *entity.Practitioner) (string, error) {
	claims := jwt.MapClaims{
		"practitioner_id": p.Id.String(),
		"role":            string(p.Role),
		"exp":             time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "default_secret"
	}
	return token.SignedString([]byte(secret))
}

func hashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Register creates a practitioner account. Accounts are created active;
// the admin controller guards who may call this.
func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	existing, _ := uow.PractitionerRepository().FindOne(ctx, specification.ByEmail{Email: req.Email})
	if existing != nil {
		return nil, errors.New("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	hashStr := string(hash)

	practitioner := &entity.Practitioner{
		Id:           uuid.New(),
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: &hashStr,
		Role:         entity.PractitionerRole(req.Role),
		Status:       entity.PractitionerStatusActive,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := uow.PractitionerRepository().Create(ctx, practitioner); err != nil {
		return nil, err
	}

	return &dto.RegisterResponse{Id: practitioner.Id, Email: practitioner.Email}, nil
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	practitioner, err := uow.PractitionerRepository().FindOne(ctx, specification.ByEmail{Email: req.Email})
	if err != nil {
		return nil, errors.New("invalid credentials")
	}
	if practitioner == nil {
		return nil, errors.New("invalid credentials")
	}
	if practitioner.PasswordHash == nil {
		return nil, errors.New("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*practitioner.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errors.New("invalid credentials")
	}

	if practitioner.Status == entity.PractitionerStatusBlocked {
		return nil, errors.New("account is blocked")
	}

	signedToken, err := signAccessToken(practitioner)
	if err != nil {
		return nil, err
	}

	var rawRefreshToken string
	if req.RememberMe {
		rawRefreshToken = uuid.New().String()

		refreshTokenEntity := &entity.PractitionerRefreshToken{
			Id:             uuid.New(),
			PractitionerId: practitioner.Id,
			TokenHash:      hashRefreshToken(rawRefreshToken),
			ExpiresAt:      time.Now().Add(30 * 24 * time.Hour),
			Revoked:        false,
			CreatedAt:      time.Now(),
		}

		if err := uow.PractitionerRepository().CreateRefreshToken(ctx, refreshTokenEntity); err != nil {
			return nil, fmt.Errorf("failed to create session: %v", err)
		}
	}

	return &dto.LoginResponse{
		AccessToken:  signedToken,
		RefreshToken: rawRefreshToken,
		Practitioner: dto.PractitionerDTO{
			Id:       practitioner.Id,
			Email:    practitioner.Email,
			FullName: practitioner.FullName,
			Role:     string(practitioner.Role),
		},
	}, nil
}

// Refresh rotates the refresh token: the presented token is revoked and a
// fresh one is issued alongside the new access token.
func (s *authService) Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.RefreshTokenResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	tokenHash := hashRefreshToken(req.RefreshToken)

	stored, err := uow.PractitionerRepository().FindRefreshToken(ctx,
		specification.ByTokenHash{Hash: tokenHash},
		specification.NotRevoked{},
	)
	if err != nil || stored == nil {
		return nil, errors.New("invalid refresh token")
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, errors.New("refresh token expired")
	}

	practitioner, err := uow.PractitionerRepository().FindOne(ctx, specification.ByID{ID: stored.PractitionerId})
	if err != nil || practitioner == nil {
		return nil, errors.New("invalid refresh token")
	}
	if practitioner.Status == entity.PractitionerStatusBlocked {
		return nil, errors.New("account is blocked")
	}

	signedToken, err := signAccessToken(practitioner)
	if err != nil {
		return nil, err
	}

	newRaw := uuid.New().String()
	replacement := &entity.PractitionerRefreshToken{
		Id:             uuid.New(),
		PractitionerId: practitioner.Id,
		TokenHash:      hashRefreshToken(newRaw),
		ExpiresAt:      stored.ExpiresAt,
		Revoked:        false,
		CreatedAt:      time.Now(),
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.PractitionerRepository().RevokeRefreshToken(ctx, tokenHash); err != nil {
		return nil, err
	}
	if err := uow.PractitionerRepository().CreateRefreshToken(ctx, replacement); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	return &dto.RefreshTokenResponse{
		AccessToken:  signedToken,
		RefreshToken: newRaw,
	}, nil
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.PractitionerRepository().RevokeRefreshToken(ctx, hashRefreshToken(refreshToken))
}
