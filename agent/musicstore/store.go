// Package musicstore wraps the Chinook tables the agents read and update.
// Query shapes follow the Chinook schema (customers, invoices, invoice_items,
// albums, artists, tracks) with CamelCase column names.
package musicstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/uptrace/bun"
)

var (
	ErrNoUpdates     = errors.New("at least one update field is required")
	ErrInvalidColumn = errors.New("column is not updatable")
)

// UpdatableColumns are the customer columns the update tool may change.
var UpdatableColumns = []string{
	"FirstName", "LastName", "Company", "Address", "City", "State",
	"Country", "PostalCode", "Phone", "Fax", "Email",
}

var updatable = func() map[string]struct{} {
	m := make(map[string]struct{}, len(UpdatableColumns))
	for _, c := range UpdatableColumns {
		m[c] = struct{}{}
	}
	return m
}()

// Row is one result row keyed by column name.
type Row = map[string]any

// Artist and Track are the corpora the similarity index is built from.
type Artist struct {
	ArtistID int64  `bun:"artist_id" json:"ArtistId"`
	Name     string `bun:"name" json:"Name"`
}

type Track struct {
	TrackID  int64   `bun:"track_id" json:"TrackId"`
	Name     string  `bun:"name" json:"Name"`
	AlbumID  *int64  `bun:"album_id" json:"AlbumId,omitempty"`
	Composer *string `bun:"composer" json:"Composer,omitempty"`
}

// CustomerKey identifies a customer the way the tools require it.
type CustomerKey struct {
	ID        int64
	FirstName string
	LastName  string
}

type Store interface {
	GetCustomer(ctx context.Context, key CustomerKey) ([]Row, error)
	UpdateCustomer(ctx context.Context, key CustomerKey, updates map[string]string) (int64, error)
	InvoicesByCustomer(ctx context.Context, customerID int64) ([]Row, error)
	PurchasedAlbumsByCustomer(ctx context.Context, customerID int64) ([]Row, error)
	TopPurchasedArtistsByCustomer(ctx context.Context, customerID int64) ([]Row, error)
	AlbumsByArtists(ctx context.Context, artistIDs []int64) ([]Row, error)
	TracksByArtists(ctx context.Context, artistIDs []int64) ([]Row, error)
	Artists(ctx context.Context) ([]Artist, error)
	Tracks(ctx context.Context) ([]Track, error)
}

// Identifiers are quoted so Postgres keeps the CamelCase Chinook names
// instead of folding them to lower case.
const (
	queryCustomer = `SELECT * FROM "customers"
        WHERE "CustomerId" = ? AND "FirstName" = ? AND "LastName" = ?`

	queryInvoices = `SELECT * FROM "invoices" WHERE "CustomerId" = ?;`

	queryPurchasedAlbums = `SELECT * FROM "albums" WHERE "AlbumId" IN (SELECT "AlbumId" FROM "invoice_items" WHERE "InvoiceId" IN (SELECT "InvoiceId" FROM "invoices" WHERE "CustomerId" = ?)) LIMIT 10;`

	queryTopArtists = `SELECT "artists".*, COUNT("invoice_items"."TrackId") AS "PurchaseCount"
        FROM "artists"
        JOIN "albums" ON "artists"."ArtistId" = "albums"."ArtistId"
        JOIN "tracks" ON "albums"."AlbumId" = "tracks"."AlbumId"
        JOIN "invoice_items" ON "tracks"."TrackId" = "invoice_items"."TrackId"
        JOIN "invoices" ON "invoice_items"."InvoiceId" = "invoices"."InvoiceId"
        WHERE "invoices"."CustomerId" = ?
        GROUP BY "artists"."ArtistId"
        ORDER BY "PurchaseCount" DESC
        LIMIT 10;`

	queryAlbumsByArtists = `SELECT "Title", "Name" FROM "albums" LEFT JOIN "artists" ON "albums"."ArtistId" = "artists"."ArtistId" WHERE "albums"."ArtistId" IN (?);`

	queryTracksByArtists = `SELECT "tracks"."Name" AS "SongName", "artists"."Name" AS "ArtistName" FROM "albums" LEFT JOIN "artists" ON "albums"."ArtistId" = "artists"."ArtistId" LEFT JOIN "tracks" ON "tracks"."AlbumId" = "albums"."AlbumId" WHERE "albums"."ArtistId" IN (?);`

	queryArtists = `SELECT "ArtistId" AS artist_id, "Name" AS name FROM "artists"`
	queryTracks  = `SELECT "TrackId" AS track_id, "Name" AS name, "AlbumId" AS album_id, "Composer" AS composer FROM "tracks"`
)

// BunStore implements Store with raw queries over a bun connection.
type BunStore struct {
	db bun.IDB
}

var _ Store = (*BunStore)(nil)

func NewBunStore(db bun.IDB) *BunStore {
	return &BunStore{db: db}
}

func (s *BunStore) GetCustomer(ctx context.Context, key CustomerKey) ([]Row, error) {
	return s.rows(ctx, queryCustomer, key.ID, key.FirstName, key.LastName)
}

// CheckColumns validates an update set and returns its columns sorted.
func CheckColumns(updates map[string]string) ([]string, error) {
	if len(updates) == 0 {
		return nil, ErrNoUpdates
	}
	cols := make([]string, 0, len(updates))
	for col := range updates {
		if _, ok := updatable[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidColumn, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols, nil
}

// UpdateCustomer applies updates to the customer matching key and returns the
// number of rows changed. Every column must be one of UpdatableColumns.
func (s *BunStore) UpdateCustomer(ctx context.Context, key CustomerKey, updates map[string]string) (int64, error) {
	cols, err := CheckColumns(updates)
	if err != nil {
		return 0, err
	}

	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+3)
	for _, col := range cols {
		sets = append(sets, `"`+col+`" = ?`)
		args = append(args, updates[col])
	}
	args = append(args, key.ID, key.FirstName, key.LastName)

	query := `
        UPDATE "customers"
        SET ` + strings.Join(sets, ", ") + `
        WHERE "CustomerId" = ? AND "FirstName" = ? AND "LastName" = ?`

	res, err := s.db.NewRaw(query, args...).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("update customer %d: %w", key.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update customer %d: rows affected: %w", key.ID, err)
	}
	return n, nil
}

func (s *BunStore) InvoicesByCustomer(ctx context.Context, customerID int64) ([]Row, error) {
	return s.rows(ctx, queryInvoices, customerID)
}

func (s *BunStore) PurchasedAlbumsByCustomer(ctx context.Context, customerID int64) ([]Row, error) {
	return s.rows(ctx, queryPurchasedAlbums, customerID)
}

func (s *BunStore) TopPurchasedArtistsByCustomer(ctx context.Context, customerID int64) ([]Row, error) {
	return s.rows(ctx, queryTopArtists, customerID)
}

func (s *BunStore) AlbumsByArtists(ctx context.Context, artistIDs []int64) ([]Row, error) {
	if len(artistIDs) == 0 {
		return []Row{}, nil
	}
	return s.rows(ctx, queryAlbumsByArtists, bun.In(artistIDs))
}

func (s *BunStore) TracksByArtists(ctx context.Context, artistIDs []int64) ([]Row, error) {
	if len(artistIDs) == 0 {
		return []Row{}, nil
	}
	return s.rows(ctx, queryTracksByArtists, bun.In(artistIDs))
}

func (s *BunStore) Artists(ctx context.Context) ([]Artist, error) {
	var out []Artist
	if err := s.db.NewRaw(queryArtists).Scan(ctx, &out); err != nil {
		return nil, fmt.Errorf("select artists: %w", err)
	}
	return out, nil
}

func (s *BunStore) Tracks(ctx context.Context) ([]Track, error) {
	var out []Track
	if err := s.db.NewRaw(queryTracks).Scan(ctx, &out); err != nil {
		return nil, fmt.Errorf("select tracks: %w", err)
	}
	return out, nil
}

func (s *BunStore) rows(ctx context.Context, query string, args ...any) ([]Row, error) {
	out := make([]map[string]any, 0)
	if err := s.db.NewRaw(query, args...).Scan(ctx, &out); err != nil {
		return nil, err
	}
	for _, r := range out {
		normalizeRow(r)
	}
	return out, nil
}

// normalizeRow turns driver byte slices into strings so rows encode as readable JSON.
func normalizeRow(r Row) {
	for k, v := range r {
		if b, ok := v.([]byte); ok {
			r[k] = string(b)
		}
	}
}
