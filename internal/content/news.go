package content

import (
	"bytes"
	"context"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/schoolhub-dev/schoolhub/internal/models"
)

// Raw HTML in article bodies is escaped; only markdown is rendered.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Linkify, extension.Table),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// RenderMarkdown renders article markdown to HTML
func RenderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

// NewsFilter narrows a news listing
type NewsFilter struct {
	IncludeDrafts bool
	Featured      bool
	Limit         int
}

// NewsPatch is a partial update; nil fields are left unchanged
type NewsPatch struct {
	Title       *string `json:"title"`
	Content     *string `json:"content"`
	Excerpt     *string `json:"excerpt"`
	IsPublished *bool   `json:"is_published"`
	IsFeatured  *bool   `json:"is_featured"`
}

func (p NewsPatch) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	setIf(cols, "title", p.Title)
	setIf(cols, "content", p.Content)
	setIf(cols, "excerpt", p.Excerpt)
	setIf(cols, "is_published", p.IsPublished)
	setIf(cols, "is_featured", p.IsFeatured)
	return cols
}

func (s *Service) render(articles ...*models.News) {
	for _, a := range articles {
		rendered, err := RenderMarkdown(a.Content)
		if err != nil {
			s.logger.Warn().Err(err).Str("news_id", a.ID).Msg("Failed to render article")
			continue
		}
		a.ContentHTML = rendered
	}
}

func (s *Service) renderAll(articles []models.News) {
	for i := range articles {
		s.render(&articles[i])
	}
}

// ListNews returns articles newest first. Drafts are excluded unless requested.
func (s *Service) ListNews(ctx context.Context, f NewsFilter) ([]models.News, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if !f.IncludeDrafts {
		q = q.Where("is_published = ?", true)
	}
	if f.Featured {
		q = q.Where("is_featured = ?", true)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var articles []models.News
	if err := q.Find(&articles).Error; err != nil {
		return nil, fmt.Errorf("failed to list news: %w", err)
	}
	s.renderAll(articles)
	return articles, nil
}

// GetNews returns one article with rendered HTML
func (s *Service) GetNews(ctx context.Context, id string) (*models.News, error) {
	var article models.News
	if err := models.FindByID(s.db.WithContext(ctx), id, &article); err != nil {
		return nil, notFound(err)
	}
	s.render(&article)
	return &article, nil
}

// RelatedNews returns other published articles, newest first
func (s *Service) RelatedNews(ctx context.Context, id string, limit int) ([]models.News, error) {
	if limit <= 0 {
		limit = 3
	}
	var articles []models.News
	err := s.db.WithContext(ctx).
		Where("is_published = ? AND id <> ?", true, id).
		Order("created_at DESC").
		Limit(limit).
		Find(&articles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list related news: %w", err)
	}
	s.renderAll(articles)
	return articles, nil
}

// CreateNews inserts an article
func (s *Service) CreateNews(ctx context.Context, article *models.News) error {
	article.ID = ""
	if err := s.db.WithContext(ctx).Create(article).Error; err != nil {
		return fmt.Errorf("failed to create news: %w", err)
	}
	s.render(article)
	return nil
}

// UpdateNews applies a partial update
func (s *Service) UpdateNews(ctx context.Context, id string, patch NewsPatch) (*models.News, error) {
	var article models.News
	if err := updateColumns(s.db.WithContext(ctx), id, patch.columns(), &article); err != nil {
		return nil, err
	}
	s.render(&article)
	return &article, nil
}

// DeleteNews removes an article
func (s *Service) DeleteNews(ctx context.Context, id string) error {
	return deleteByID[models.News](s.db.WithContext(ctx), id)
}

// SetNewsPublished sets the published flag
func (s *Service) SetNewsPublished(ctx context.Context, id string, published bool) (*models.News, error) {
	return s.UpdateNews(ctx, id, NewsPatch{IsPublished: &published})
}

// SetNewsFeatured sets the featured flag
func (s *Service) SetNewsFeatured(ctx context.Context, id string, featured bool) (*models.News, error) {
	return s.UpdateNews(ctx, id, NewsPatch{IsFeatured: &featured})
}
