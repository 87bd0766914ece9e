package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"bookuniverse/internal/cache"
	"bookuniverse/internal/docstore"
	"bookuniverse/internal/repo"
	"bookuniverse/pkg/domain"
)

// Admin-configured start-page content. These are low-churn, read-heavy
// documents, so list reads go through the cache when one is wired.

const bannerURLExpiry = 24 * time.Hour

// FilterOptions returns every filter option group.
func (s *Service) FilterOptions(ctx context.Context) ([]domain.FilterOptions, error) {
	if s.cache != nil {
		var options []domain.FilterOptions
		if hit, _ := s.cache.GetJSON(ctx, cache.KeyFilterOptions, &options); hit {
			return options, nil
		}
	}
	options, err := repo.ListFilterOptions(ctx, s.store.View())
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetJSON(ctx, cache.KeyFilterOptions, options)
	}
	return options, nil
}

// UpsertFilterOptions replaces the filter group with the same name, or
// creates it. Returns the group's id.
func (s *Service) UpsertFilterOptions(ctx context.Context, options domain.FilterOptions) (string, error) {
	var id string
	err := s.store.WithTransaction(ctx, func(tx docstore.Tx) error {
		existing, err := repo.GetFilterOptionsByName(ctx, tx, options.Name)
		switch {
		case errors.Is(err, docstore.ErrNotFound):
			id, err = repo.InsertFilterOptions(ctx, tx, options)
			return err
		case err != nil:
			return err
		default:
			options.ID = existing.ID
			id = existing.ID
			return repo.ReplaceFilterOptions(ctx, tx, options)
		}
	})
	if err != nil {
		return "", err
	}
	s.invalidate(ctx, cache.KeyFilterOptions)
	return id, nil
}

// DeleteFilterOptions removes a filter group.
func (s *Service) DeleteFilterOptions(ctx context.Context, id string) error {
	err := s.store.WithTransaction(ctx, func(tx docstore.Tx) error {
		return repo.DeleteFilterOptions(ctx, tx, id)
	})
	if err != nil {
		return notFound(err, "filter options", id)
	}
	s.invalidate(ctx, cache.KeyFilterOptions)
	return nil
}

// BannerImages returns every start-page banner.
func (s *Service) BannerImages(ctx context.Context) ([]domain.BannerImage, error) {
	if s.cache != nil {
		var banners []domain.BannerImage
		if hit, _ := s.cache.GetJSON(ctx, cache.KeyBannerImages, &banners); hit {
			return banners, nil
		}
	}
	banners, err := repo.ListBannerImages(ctx, s.store.View())
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetJSON(ctx, cache.KeyBannerImages, banners)
	}
	return banners, nil
}

// UploadBanner stores the image bytes and records a banner document pointing
// at a pre-signed URL. Requires an image store.
func (s *Service) UploadBanner(ctx context.Context, r io.Reader, size int64, contentType string) (string, error) {
	if s.images == nil {
		return "", errors.New("catalog: no image store configured")
	}
	var id string
	err := s.store.WithTransaction(ctx, func(tx docstore.Tx) error {
		var err error
		id, err = repo.InsertBannerImage(ctx, tx, domain.BannerImage{})
		return err
	})
	if err != nil {
		return "", err
	}
	key := "banners/" + id
	if err := s.images.Put(ctx, key, r, size, contentType); err != nil {
		s.deleteBannerDoc(ctx, id)
		return "", err
	}
	url, err := s.images.PresignGet(ctx, key, bannerURLExpiry)
	if err != nil {
		s.deleteBannerDoc(ctx, id)
		return "", err
	}
	err = s.store.WithTransaction(ctx, func(tx docstore.Tx) error {
		return repo.ReplaceBannerImage(ctx, tx, domain.BannerImage{ID: id, PictureURL: url})
	})
	if err != nil {
		return "", fmt.Errorf("record banner %s: %w", id, err)
	}
	s.invalidate(ctx, cache.KeyBannerImages)
	return id, nil
}

// DeleteBanner removes the banner document and, best effort, the stored
// image bytes.
func (s *Service) DeleteBanner(ctx context.Context, id string) error {
	err := s.store.WithTransaction(ctx, func(tx docstore.Tx) error {
		return repo.DeleteBannerImage(ctx, tx, id)
	})
	if err != nil {
		return notFound(err, "banner", id)
	}
	if s.images != nil {
		if err := s.images.Delete(ctx, "banners/"+id); err != nil {
			s.log.Warn("banner image delete failed", "banner", id, "error", err)
		}
	}
	s.invalidate(ctx, cache.KeyBannerImages)
	return nil
}

func (s *Service) deleteBannerDoc(ctx context.Context, id string) {
	err := s.store.WithTransaction(ctx, func(tx docstore.Tx) error {
		return repo.DeleteBannerImage(ctx, tx, id)
	})
	if err != nil {
		s.log.Warn("banner cleanup failed", "banner", id, "error", err)
	}
}
