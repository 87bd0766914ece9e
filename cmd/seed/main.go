// Command seed populates a fresh deployment with a demo catalog: a handful
// of authors with books, the default filter groups, and a demo user. Safe to
// run against an empty database only.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"bookuniverse/internal/cache"
	"bookuniverse/internal/catalog"
	"bookuniverse/internal/config"
	"bookuniverse/internal/coordinator"
	"bookuniverse/internal/docstore"
	"bookuniverse/internal/events"
	"bookuniverse/internal/users"
	"bookuniverse/internal/util"
	"bookuniverse/pkg/domain"
)

type seedAuthor struct {
	author domain.Author
	books  []domain.Book
}

var demoCatalog = []seedAuthor{
	{
		author: domain.Author{Name: "Ursula K. Le Guin", About: "American author of speculative fiction."},
		books: []domain.Book{
			{Title: "A Wizard of Earthsea", PublishedYear: 1968, Genres: []string{"Fantasy"}, Price: 1099, Inventory: 12, Language: "English", NumberOfPages: 183},
			{Title: "The Dispossessed", PublishedYear: 1974, Genres: []string{"Science Fiction"}, Price: 1299, Inventory: 8, Language: "English", NumberOfPages: 341},
		},
	},
	{
		author: domain.Author{Name: "Octavia E. Butler", About: "Pioneer of Afrofuturist science fiction."},
		books: []domain.Book{
			{Title: "Kindred", PublishedYear: 1979, Genres: []string{"Science Fiction"}, Price: 1199, Inventory: 10, Language: "English", NumberOfPages: 264},
			{Title: "Parable of the Sower", PublishedYear: 1993, Genres: []string{"Science Fiction", "Dystopia"}, Price: 1399, Inventory: 6, Language: "English", NumberOfPages: 345},
		},
	},
	{
		author: domain.Author{Name: "Stanisław Lem", About: "Polish writer of philosophical science fiction."},
		books: []domain.Book{
			{Title: "Solaris", PublishedYear: 1961, Genres: []string{"Science Fiction"}, Price: 999, Inventory: 15, Language: "Polish", NumberOfPages: 204},
		},
	},
}

var demoFilters = []domain.FilterOptions{
	{Name: "genres", Values: []string{"Fantasy", "Science Fiction", "Dystopia"}},
	{Name: "languages", Values: []string{"English", "Polish"}},
}

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	store, err := docstore.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}

	var pub events.Publisher = events.NopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(events.AMQPConfig{URL: cfg.AMQPURL, Exchange: cfg.EventsExchange})
		if err != nil {
			log.Fatalf("failed to connect to broker: %v", err)
		}
		defer amqpPub.Close()
		pub = amqpPub
	}

	coord := coordinator.New(store, logger)
	catalogOpts := []catalog.Option{}
	if cfg.RedisAddr != "" {
		ttl := time.Duration(cfg.CacheTTLSecs) * time.Second
		if ttl == 0 {
			ttl = 5 * time.Minute
		}
		catalogOpts = append(catalogOpts, catalog.WithCache(cache.New(cfg.RedisAddr, cfg.RedisPassword, ttl, logger)))
	}
	if cfg.MinioEndpoint != "" {
		images, err := catalog.NewMinioImageStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to connect to object storage: %v", err)
		}
		catalogOpts = append(catalogOpts, catalog.WithImageStore(images))
	}
	catalogSvc := catalog.NewService(store, coord, pub, logger, catalogOpts...)
	userSvc := users.NewService(store, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	existing, err := catalogSvc.ListAuthors(ctx)
	if err != nil {
		log.Fatalf("failed to inspect catalog: %v", err)
	}
	if len(existing) > 0 {
		log.Fatalf("catalog already holds %d authors, refusing to seed", len(existing))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, entry := range demoCatalog {
		entry := entry
		g.Go(func() error {
			authorID, err := catalogSvc.CreateAuthor(gctx, entry.author)
			if err != nil {
				return err
			}
			for _, book := range entry.books {
				if _, err := catalogSvc.CreateBook(gctx, book, authorID); err != nil {
					return err
				}
			}
			logger.Info("seeded author", "name", entry.author.Name, "books", len(entry.books))
			return nil
		})
	}
	for _, group := range demoFilters {
		group := group
		g.Go(func() error {
			_, err := catalogSvc.UpsertFilterOptions(gctx, group)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("seeding failed: %v", err)
	}

	demoUserID, err := userSvc.Create(ctx, domain.User{
		FirstName: "Demo",
		LastName:  "Reader",
		Email:     "demo@bookuniverse.test",
		Username:  "demo",
		City:      "Göteborg",
		Country:   "Sweden",
	})
	if err != nil {
		log.Fatalf("failed to create demo user: %v", err)
	}
	logger.Info("seed complete", "authors", len(demoCatalog), "demoUser", demoUserID)
}
