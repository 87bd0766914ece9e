// Package catalog is the read/write surface for authors, books and the
// admin-configured start-page content. Single-document writes go straight to
// the store; anything touching two collections is delegated to the
// coordinator.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"bookuniverse/internal/cache"
	"bookuniverse/internal/coordinator"
	"bookuniverse/internal/docstore"
	"bookuniverse/internal/events"
	"bookuniverse/internal/repo"
	"bookuniverse/pkg/domain"
)

// Service exposes catalog operations.
type Service struct {
	store  docstore.Store
	coord  *coordinator.Coordinator
	events events.Publisher
	log    *slog.Logger
	cache  *cache.Cache
	images ImageStore
}

// Option customizes a Service.
type Option func(*Service)

// WithCache enables read-through caching for hot catalog reads.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithImageStore enables banner image uploads.
func WithImageStore(images ImageStore) Option {
	return func(s *Service) { s.images = images }
}

// NewService builds a catalog service.
func NewService(store docstore.Store, coord *coordinator.Coordinator, pub events.Publisher, log *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, coord: coord, events: pub, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func notFound(err error, entity, id string) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return &coordinator.NotFoundError{Entity: entity, ID: id}
	}
	return err
}

// AuthorWithBooks is an author together with the resolved books it owns.
type AuthorWithBooks struct {
	Author domain.Author
	Books  []domain.Book
}

// GetAuthor returns one author.
func (s *Service) GetAuthor(ctx context.Context, id string) (domain.Author, error) {
	author, err := repo.GetAuthor(ctx, s.store.View(), id)
	if err != nil {
		return domain.Author{}, notFound(err, "author", id)
	}
	return author, nil
}

// GetAuthorWithBooks returns an author and its books. Book ids that no
// longer resolve are skipped rather than failing the page.
func (s *Service) GetAuthorWithBooks(ctx context.Context, id string) (AuthorWithBooks, error) {
	view := s.store.View()
	author, err := repo.GetAuthor(ctx, view, id)
	if err != nil {
		return AuthorWithBooks{}, notFound(err, "author", id)
	}
	books, err := repo.GetBooksByIDs(ctx, view, author.BooksIDs)
	if err != nil {
		return AuthorWithBooks{}, err
	}
	return AuthorWithBooks{Author: author, Books: books}, nil
}

// ListAuthors returns every author.
func (s *Service) ListAuthors(ctx context.Context) ([]domain.Author, error) {
	return repo.ListAuthors(ctx, s.store.View())
}

// AuthorNames returns the id -> name index, cached when a cache is wired.
func (s *Service) AuthorNames(ctx context.Context) (map[string]string, error) {
	if s.cache != nil {
		var names map[string]string
		if hit, _ := s.cache.GetJSON(ctx, cache.KeyAuthorNames, &names); hit {
			return names, nil
		}
	}
	names, err := repo.AuthorNames(ctx, s.store.View())
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetJSON(ctx, cache.KeyAuthorNames, names)
	}
	return names, nil
}

// CreateAuthor stores a new author. BooksIDs starts empty regardless of
// input; the coordinator is the only writer of that field.
func (s *Service) CreateAuthor(ctx context.Context, author domain.Author) (string, error) {
	author.BooksIDs = nil
	var id string
	err := s.store.WithTransaction(ctx, func(tx docstore.Tx) error {
		var err error
		id, err = repo.InsertAuthor(ctx, tx, author)
		return err
	})
	if err != nil {
		return "", err
	}
	s.invalidate(ctx, cache.KeyAuthorNames)
	return id, nil
}

// UpdateAuthor rewrites an author's profile fields. The stored BooksIDs are
// preserved.
func (s *Service) UpdateAuthor(ctx context.Context, author domain.Author) error {
	err := s.store.WithTransaction(ctx, func(tx docstore.Tx) error {
		current, err := repo.GetAuthor(ctx, tx, author.ID)
		if err != nil {
			return notFound(err, "author", author.ID)
		}
		author.BooksIDs = current.BooksIDs
		return repo.ReplaceAuthor(ctx, tx, author)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, cache.KeyAuthorNames)
	return nil
}

// DeleteAuthor removes an author and all of its books.
func (s *Service) DeleteAuthor(ctx context.Context, id string) error {
	if err := s.coord.DeleteAuthorCascade(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, cache.KeyAuthorNames)
	s.publish(ctx, events.Event{Key: events.KeyAuthorDeleted, AuthorID: id})
	return nil
}

// GetBook returns one book.
func (s *Service) GetBook(ctx context.Context, id string) (domain.Book, error) {
	book, err := repo.GetBook(ctx, s.store.View(), id)
	if err != nil {
		return domain.Book{}, notFound(err, "book", id)
	}
	return book, nil
}

// ListBooks returns every book.
func (s *Service) ListBooks(ctx context.Context) ([]domain.Book, error) {
	return repo.ListBooks(ctx, s.store.View())
}

// BooksByAuthor returns the books whose forward reference points at authorID.
func (s *Service) BooksByAuthor(ctx context.Context, authorID string) ([]domain.Book, error) {
	return repo.FindBooksByAuthor(ctx, s.store.View(), authorID)
}

// CreateBook creates a book under authorID. The author's display name is
// denormalized onto the book for listings.
func (s *Service) CreateBook(ctx context.Context, book domain.Book, authorID string) (string, error) {
	author, err := s.GetAuthor(ctx, authorID)
	if err != nil {
		return "", err
	}
	book.AuthorName = author.Name
	id, err := s.coord.LinkBookToAuthor(ctx, book, authorID)
	if err != nil {
		return "", err
	}
	s.publish(ctx, events.Event{Key: events.KeyBookCreated, BookID: id, AuthorID: authorID, Price: book.Price})
	return id, nil
}

// UpdateBook rewrites a book's fields and, when authorID differs from the
// stored forward reference, moves the book between authors.
func (s *Service) UpdateBook(ctx context.Context, book domain.Book, authorID string) error {
	author, err := s.GetAuthor(ctx, authorID)
	if err != nil {
		return err
	}
	book.AuthorName = author.Name
	return s.coord.ReassignBookAuthor(ctx, book, authorID)
}

// DeleteBook removes a book and unlinks it from its author.
func (s *Service) DeleteBook(ctx context.Context, id string) error {
	if err := s.coord.DeleteBookAndUnlink(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, events.Event{Key: events.KeyBookDeleted, BookID: id})
	return nil
}

// Comments returns a book's comments, newest first.
func (s *Service) Comments(ctx context.Context, bookID string) ([]domain.BookComment, error) {
	comments, err := repo.FindCommentsByBook(ctx, s.store.View(), bookID)
	if err != nil {
		return nil, err
	}
	sort.Slice(comments, func(i, j int) bool {
		return comments[i].TimePosted.After(comments[j].TimePosted)
	})
	return comments, nil
}

// AddComment attaches a comment to an existing book.
func (s *Service) AddComment(ctx context.Context, comment domain.BookComment) (string, error) {
	if comment.TimePosted.IsZero() {
		comment.TimePosted = time.Now().UTC()
	}
	var id string
	err := s.store.WithTransaction(ctx, func(tx docstore.Tx) error {
		if _, err := repo.GetBook(ctx, tx, comment.BookID); err != nil {
			return notFound(err, "book", comment.BookID)
		}
		var err error
		id, err = repo.InsertBookComment(ctx, tx, comment)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, keys...)
	}
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn("event publish failed", "key", event.Key, "error", err)
	}
}
