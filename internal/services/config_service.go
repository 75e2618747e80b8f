package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/sadaltman/hackiiit-bsr/internal/config"
	"github.com/sadaltman/hackiiit-bsr/internal/models"
)

// IConfigService serves the public, client-facing configuration.
type IConfigService interface {
	GetPublicConfig(ctx context.Context) (*models.PublicConfig, error)
}

const publicConfigCacheKey = "public_config"

type configService struct {
	config *config.Config
	redis  *redis.Client
}

// NewConfigService creates a new ConfigService. redisClient may be nil, in
// which case caching is skipped.
func NewConfigService(cfg *config.Config, redisClient *redis.Client) IConfigService {
	return &configService{config: cfg, redis: redisClient}
}

// GetPublicConfig returns the settings the SPA needs to behave correctly:
// the unread-count poll period and the image upload constraints. The result
// is cached in Redis since it only changes on redeploy.
func (s *configService) GetPublicConfig(ctx context.Context) (*models.PublicConfig, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, publicConfigCacheKey).Bytes()
		if err == nil {
			var cfg models.PublicConfig
			if err := json.Unmarshal(cached, &cfg); err == nil {
				return &cfg, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("WARNING: redis error reading public config cache: %v", err)
		}
	}

	cfg := &models.PublicConfig{
		AppName:               s.config.AppName,
		PollPeriodSeconds:     int(s.config.ClientPollPeriod.Seconds()),
		ImageMaxDimension:     s.config.ImageMaxDimension,
		ImageMaxSizeMB:        s.config.ImageMaxSizeMB,
		ImageBaseURL:          s.config.ImageBaseS3URL,
		AllowedEmailDomains:   s.config.AllowedEmailDomains,
		RegistrationEmailHint: registrationHint(s.config.AllowedEmailDomains),
	}

	if s.redis != nil {
		payload, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal public config: %w", err)
		}
		if err := s.redis.Set(ctx, publicConfigCacheKey, payload, s.config.GetCacheTTL).Err(); err != nil {
			log.Printf("WARNING: redis error writing public config cache: %v", err)
		}
	}
	return cfg, nil
}

func registrationHint(domains []string) string {
	if len(domains) == 0 {
		return ""
	}
	return fmt.Sprintf("Sign up with your campus email (%s)", domains[0])
}
