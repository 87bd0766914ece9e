package repo

import (
	"context"

	"bookuniverse/internal/docstore"
	"bookuniverse/pkg/domain"
)

// Admin-configured content: filter option groups and start-page banners.

// ListFilterOptions returns every filter option group.
func ListFilterOptions(ctx context.Context, tx docstore.Tx) ([]domain.FilterOptions, error) {
	docs, err := tx.List(ctx, docstore.FilterOptions)
	if err != nil {
		return nil, err
	}
	options := make([]domain.FilterOptions, 0, len(docs))
	for _, doc := range docs {
		o, err := decode[domain.FilterOptions](doc)
		if err != nil {
			return nil, err
		}
		o.ID = doc.ID
		options = append(options, o)
	}
	return options, nil
}

// GetFilterOptionsByName returns the filter group with the given name, if any.
func GetFilterOptionsByName(ctx context.Context, tx docstore.Tx, name string) (domain.FilterOptions, error) {
	docs, err := tx.Find(ctx, docstore.FilterOptions, "name", name)
	if err != nil {
		return domain.FilterOptions{}, err
	}
	if len(docs) == 0 {
		return domain.FilterOptions{}, docstore.ErrNotFound
	}
	o, err := decode[domain.FilterOptions](docs[0])
	if err != nil {
		return domain.FilterOptions{}, err
	}
	o.ID = docs[0].ID
	return o, nil
}

// InsertFilterOptions stores a new filter group and returns its id.
func InsertFilterOptions(ctx context.Context, tx docstore.Tx, options domain.FilterOptions) (string, error) {
	options.ID = ""
	data, err := encode(options)
	if err != nil {
		return "", err
	}
	return tx.Insert(ctx, docstore.FilterOptions, data)
}

// ReplaceFilterOptions overwrites an existing filter group.
func ReplaceFilterOptions(ctx context.Context, tx docstore.Tx, options domain.FilterOptions) error {
	id := options.ID
	options.ID = ""
	data, err := encode(options)
	if err != nil {
		return err
	}
	return tx.Replace(ctx, docstore.FilterOptions, id, data)
}

// DeleteFilterOptions removes a filter group.
func DeleteFilterOptions(ctx context.Context, tx docstore.Tx, id string) error {
	return tx.Delete(ctx, docstore.FilterOptions, id)
}

// ListBannerImages returns every banner image.
func ListBannerImages(ctx context.Context, tx docstore.Tx) ([]domain.BannerImage, error) {
	docs, err := tx.List(ctx, docstore.BannerImages)
	if err != nil {
		return nil, err
	}
	banners := make([]domain.BannerImage, 0, len(docs))
	for _, doc := range docs {
		b, err := decode[domain.BannerImage](doc)
		if err != nil {
			return nil, err
		}
		b.ID = doc.ID
		banners = append(banners, b)
	}
	return banners, nil
}

// InsertBannerImage stores a new banner and returns its id.
func InsertBannerImage(ctx context.Context, tx docstore.Tx, banner domain.BannerImage) (string, error) {
	banner.ID = ""
	data, err := encode(banner)
	if err != nil {
		return "", err
	}
	return tx.Insert(ctx, docstore.BannerImages, data)
}

// ReplaceBannerImage overwrites an existing banner.
func ReplaceBannerImage(ctx context.Context, tx docstore.Tx, banner domain.BannerImage) error {
	id := banner.ID
	banner.ID = ""
	data, err := encode(banner)
	if err != nil {
		return err
	}
	return tx.Replace(ctx, docstore.BannerImages, id, data)
}

// DeleteBannerImage removes a banner.
func DeleteBannerImage(ctx context.Context, tx docstore.Tx, id string) error {
	return tx.Delete(ctx, docstore.BannerImages, id)
}
