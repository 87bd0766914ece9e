package domain

import "time"

// Author owns a list of books. BooksIDs is the back-reference side of the
// Author<->Book link and is maintained by the coordinator, never directly.
type Author struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	About      string   `json:"about"`
	PictureURL string   `json:"pictureUrl"`
	BooksIDs   []string `json:"booksIds"`
}

// Book is a purchasable title. AuthorID is the forward reference to the
// owning author; Inventory counts purchasable units and never goes negative.
type Book struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	AuthorName    string   `json:"authorName"`
	PublishedYear int      `json:"publishedYear"`
	Genres        []string `json:"genres"`
	Price         int64    `json:"price"` // minor units (cents)
	NumberOfPages int      `json:"numberOfPages"`
	Inventory     int      `json:"inventory"`
	PictureURL    string   `json:"pictureUrl"`
	Language      string   `json:"language"`
	AuthorID      string   `json:"authorId"`
}

// CartItem is one line of a shopping cart or of an order snapshot.
type CartItem struct {
	BookID   string `json:"bookId"`
	Quantity int    `json:"quantity"`
}

// User holds profile data plus the cart and the order/favorite back-references.
type User struct {
	ID               string     `json:"id"`
	FirstName        string     `json:"firstName"`
	LastName         string     `json:"lastName"`
	Email            string     `json:"email"`
	Username         string     `json:"username"`
	Address          string     `json:"address"`
	City             string     `json:"city"`
	PostalCode       string     `json:"postalCode"`
	Country          string     `json:"country"`
	OrdersIDs        []string   `json:"ordersIds"`
	CartItems        []CartItem `json:"cartItems"`
	FavoriteBooksIDs []string   `json:"favoriteBooksIds"`
}

// Order is created once from a cart snapshot. Items is immutable after
// creation; only Sent may change, and only from false to true.
type Order struct {
	ID           string     `json:"id"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Email        string     `json:"email"`
	Address      string     `json:"address"`
	City         string     `json:"city"`
	PostalCode   string     `json:"postalCode"`
	Country      string     `json:"country"`
	Price        int64      `json:"price"` // minor units (cents)
	DateCreated  time.Time  `json:"dateCreated"`
	Sent         bool       `json:"sent"`
	Items        []CartItem `json:"items"`
	UserBoughtID string     `json:"userBoughtId"`
}

// FilterOptions is an admin-configured filter group (genres, languages, ...).
type FilterOptions struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// BannerImage is a start-page banner.
type BannerImage struct {
	ID         string `json:"id"`
	PictureURL string `json:"pictureUrl"`
}

// BookComment is a user comment attached to a book.
type BookComment struct {
	ID          string    `json:"id"`
	BookID      string    `json:"bookId"`
	CommentText string    `json:"commentText"`
	Username    string    `json:"username"`
	TimePosted  time.Time `json:"timePosted"`
	UserID      string    `json:"userId"`
}
