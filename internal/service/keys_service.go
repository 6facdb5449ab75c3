package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/postdeck/postdeck/internal/models"
	"github.com/postdeck/postdeck/internal/repository"
	"github.com/postdeck/postdeck/pkg/utils"
)

type ApiKeyService interface {
	Create(ctx context.Context, clientID int64) error
	List(ctx context.Context, clientID int64) ([]*models.ApiKey, error)
	GetClientID(ctx context.Context, apiKey string) (int64, error)
}

type apiKeyService struct {
	k repository.ApiKeyRepository
}

func NewApiKeyService(k repository.ApiKeyRepository) ApiKeyService {
	return &apiKeyService{
		k: k,
	}
}

func (s *apiKeyService) Create(ctx context.Context, clientID int64) error {
	keys, err := s.k.GetByClientID(ctx, clientID)
	if err != nil {
		return err
	}

	if len(keys) > 4 {
		err = errors.New("Only 5 API Keys can be created.")
		slog.Info(err.Error())
		return err
	}

	key, err := utils.GenerateRandomKey(16)
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("Error generating API key")
	}

	apiKey := &models.ApiKey{
		ClientID: clientID,
		ApiKey:   key,
	}

	_, err = s.k.Create(ctx, apiKey)
	if err != nil {
		return fmt.Errorf("Error saving API key")
	}
	return nil
}

func (s *apiKeyService) GetClientID(ctx context.Context, apiKey string) (int64, error) {
	clientID, isExist, err := s.k.GetByKey(ctx, apiKey)
	if err != nil {
		return 0, err
	}

	if !isExist {
		err = errors.New("Key doesn't exist")
		return 0, err
	}

	return *clientID, nil
}

func (s *apiKeyService) List(ctx context.Context, clientID int64) ([]*models.ApiKey, error) {
	apiKeys, err := s.k.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("Error getting API keys")
	}
	return apiKeys, nil
}
