package services

import (
	"context"
	"errors"
	"time"

	"mizan2/internal/models"
	"mizan2/internal/repositories"

	"github.com/google/uuid"
)

// ErrTemplateAccessDenied marks a download attempt by a subscriber whose tier
// does not include the template library.
var ErrTemplateAccessDenied = errors.New("template downloads require an active paid subscription")

// TemplateService serves the legal template library. Listing is open to any
// authenticated user; downloading is a paid-tier feature.
type TemplateService interface {
	List(ctx context.Context, limit, offset int) ([]*models.LegalTemplate, error)
	DownloadURL(ctx context.Context, profile *models.SubscriberProfile, templateID uuid.UUID) (string, error)
}

type templateService struct {
	templateRepo repositories.TemplateRepository
	storage      DocumentStorage
	bucket       string
	now          func() time.Time
}

func NewTemplateService(templateRepo repositories.TemplateRepository, storage DocumentStorage, bucket string) TemplateService {
	return &templateService{
		templateRepo: templateRepo,
		storage:      storage,
		bucket:       bucket,
		now:          time.Now,
	}
}

func (s *templateService) List(ctx context.Context, limit, offset int) ([]*models.LegalTemplate, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.templateRepo.List(ctx, limit, offset)
}

func (s *templateService) DownloadURL(ctx context.Context, profile *models.SubscriberProfile, templateID uuid.UUID) (string, error) {
	if !canDownloadTemplates(profile, s.now()) {
		return "", ErrTemplateAccessDenied
	}
	template, err := s.templateRepo.GetByID(ctx, templateID)
	if err != nil {
		return "", err
	}
	return s.storage.PresignedDownloadURL(ctx, s.bucket, template.ObjectKey, 15*time.Minute)
}

func canDownloadTemplates(profile *models.SubscriberProfile, now time.Time) bool {
	if profile == nil || !profile.Tier.IsPaid() || profile.Status != models.StatusActive {
		return false
	}
	if profile.SubscriptionEndDate != nil && profile.SubscriptionEndDate.Before(now) {
		return false
	}
	return true
}
