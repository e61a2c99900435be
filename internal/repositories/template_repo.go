package repositories

import (
	"context"

	"mizan2/internal/models"

	"github.com/google/uuid"
)

// TemplateRepository reads the template catalog. Rows are seeded by the
// content pipeline, not through the API.
type TemplateRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.LegalTemplate, error)
	List(ctx context.Context, limit, offset int) ([]*models.LegalTemplate, error)
}

type templateRepo struct {
	db Database
}

func NewTemplateRepo(db Database) TemplateRepository {
	return &templateRepo{db: db}
}

func (r *templateRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.LegalTemplate, error) {
	template := &models.LegalTemplate{}
	query := `
		SELECT id, title_ar, title_en, category, object_key, content_type, size_bytes, created_at, updated_at
		FROM legal_templates
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(&template.ID, &template.TitleAr, &template.TitleEn, &template.Category, &template.ObjectKey, &template.ContentType, &template.SizeBytes, &template.CreatedAt, &template.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return template, nil
}

func (r *templateRepo) List(ctx context.Context, limit, offset int) ([]*models.LegalTemplate, error) {
	query := `
		SELECT id, title_ar, title_en, category, object_key, content_type, size_bytes, created_at, updated_at
		FROM legal_templates
		ORDER BY category, title_en
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*models.LegalTemplate
	for rows.Next() {
		template := &models.LegalTemplate{}
		if err := rows.Scan(&template.ID, &template.TitleAr, &template.TitleEn, &template.Category, &template.ObjectKey, &template.ContentType, &template.SizeBytes, &template.CreatedAt, &template.UpdatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, template)
	}
	return templates, rows.Err()
}
