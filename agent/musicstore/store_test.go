package musicstore_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/tanpawarit/chinook-concierge/agent/musicstore"
	"github.com/tanpawarit/chinook-concierge/internal/testdb"
)

func TestGetCustomerMatchesAllThreeKeys(t *testing.T) {
	t.Parallel()

	store := musicstore.NewBunStore(testdb.Open(t))
	ctx := context.Background()

	rows, err := store.GetCustomer(ctx, musicstore.CustomerKey{ID: 7, FirstName: "Bob", LastName: "Smith"})
	if err != nil {
		t.Fatalf("GetCustomer() error = %v", err)
	}
	if len(rows) != 1 || rows[0]["Email"] != "bob.smith@example.com" {
		t.Fatalf("unexpected rows %+v", rows)
	}

	rows, err = store.GetCustomer(ctx, musicstore.CustomerKey{ID: 7, FirstName: "Bob", LastName: "Jones"})
	if err != nil {
		t.Fatalf("GetCustomer() error = %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("last name mismatch should return nothing, got %+v", rows)
	}
}

func TestGetCustomerIsIdempotent(t *testing.T) {
	t.Parallel()

	store := musicstore.NewBunStore(testdb.Open(t))
	key := musicstore.CustomerKey{ID: 1, FirstName: "Luís", LastName: "Gonçalves"}

	first, err := store.GetCustomer(context.Background(), key)
	if err != nil {
		t.Fatalf("GetCustomer() error = %v", err)
	}
	second, err := store.GetCustomer(context.Background(), key)
	if err != nil {
		t.Fatalf("GetCustomer() error = %v", err)
	}
	if len(first) != 1 || !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated reads differ: %+v vs %+v", first, second)
	}
}

func TestUpdateCustomer(t *testing.T) {
	t.Parallel()

	store := musicstore.NewBunStore(testdb.Open(t))
	ctx := context.Background()
	key := musicstore.CustomerKey{ID: 7, FirstName: "Bob", LastName: "Smith"}

	n, err := store.UpdateCustomer(ctx, key, map[string]string{"City": "Austin", "State": "TX"})
	if err != nil {
		t.Fatalf("UpdateCustomer() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one row updated, got %d", n)
	}

	rows, err := store.GetCustomer(ctx, key)
	if err != nil {
		t.Fatalf("GetCustomer() error = %v", err)
	}
	if rows[0]["City"] != "Austin" || rows[0]["State"] != "TX" {
		t.Fatalf("update not applied: %+v", rows[0])
	}

	n, err = store.UpdateCustomer(ctx, musicstore.CustomerKey{ID: 99, FirstName: "No", LastName: "One"}, map[string]string{"City": "Austin"})
	if err != nil {
		t.Fatalf("UpdateCustomer() error = %v", err)
	}
	if n != 0 {
		t.Fatalf("unknown customer should update nothing, got %d", n)
	}
}

func TestUpdateCustomerRejectsUnknownColumns(t *testing.T) {
	t.Parallel()

	store := musicstore.NewBunStore(testdb.Open(t))
	key := musicstore.CustomerKey{ID: 7, FirstName: "Bob", LastName: "Smith"}

	if _, err := store.UpdateCustomer(context.Background(), key, map[string]string{"SupportRepId": "3"}); !errors.Is(err, musicstore.ErrInvalidColumn) {
		t.Fatalf("expected ErrInvalidColumn, got %v", err)
	}
	if _, err := store.UpdateCustomer(context.Background(), key, nil); !errors.Is(err, musicstore.ErrNoUpdates) {
		t.Fatalf("expected ErrNoUpdates, got %v", err)
	}
}

func TestPurchaseQueries(t *testing.T) {
	t.Parallel()

	store := musicstore.NewBunStore(testdb.Open(t))
	ctx := context.Background()

	invoices, err := store.InvoicesByCustomer(ctx, 7)
	if err != nil {
		t.Fatalf("InvoicesByCustomer() error = %v", err)
	}
	if len(invoices) != 2 {
		t.Fatalf("expected 2 invoices, got %d", len(invoices))
	}

	// invoice_items has no AlbumId, so the inner select correlates to the
	// outer album and every album matches once the customer has any purchase.
	albums, err := store.PurchasedAlbumsByCustomer(ctx, 7)
	if err != nil {
		t.Fatalf("PurchasedAlbumsByCustomer() error = %v", err)
	}
	if len(albums) != 5 {
		t.Fatalf("expected 5 albums, got %d", len(albums))
	}

	top, err := store.TopPurchasedArtistsByCustomer(ctx, 7)
	if err != nil {
		t.Fatalf("TopPurchasedArtistsByCustomer() error = %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("expected 3 purchased artists, got %+v", top)
	}
	if top[0]["Name"] != "Queen" || fmt.Sprint(top[0]["PurchaseCount"]) != "2" {
		t.Fatalf("unexpected top artist %+v", top[0])
	}

	none, err := store.InvoicesByCustomer(ctx, 1)
	if err != nil {
		t.Fatalf("InvoicesByCustomer() error = %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("customer 1 has no invoices, got %+v", none)
	}

	noAlbums, err := store.PurchasedAlbumsByCustomer(ctx, 1)
	if err != nil {
		t.Fatalf("PurchasedAlbumsByCustomer() error = %v", err)
	}
	if len(noAlbums) != 0 {
		t.Fatalf("customer without purchases should have no albums, got %d", len(noAlbums))
	}
}

func TestArtistLookups(t *testing.T) {
	t.Parallel()

	store := musicstore.NewBunStore(testdb.Open(t))
	ctx := context.Background()

	albums, err := store.AlbumsByArtists(ctx, []int64{51})
	if err != nil {
		t.Fatalf("AlbumsByArtists() error = %v", err)
	}
	if len(albums) != 2 {
		t.Fatalf("expected 2 Queen albums, got %d", len(albums))
	}
	for _, a := range albums {
		if a["Name"] != "Queen" {
			t.Fatalf("unexpected artist %+v", a)
		}
	}

	tracks, err := store.TracksByArtists(ctx, []int64{51, 22})
	if err != nil {
		t.Fatalf("TracksByArtists() error = %v", err)
	}
	if len(tracks) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(tracks))
	}

	empty, err := store.AlbumsByArtists(ctx, nil)
	if err != nil {
		t.Fatalf("AlbumsByArtists(nil) error = %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no albums, got %+v", empty)
	}
}

func TestCorpora(t *testing.T) {
	t.Parallel()

	store := musicstore.NewBunStore(testdb.Open(t))
	ctx := context.Background()

	artists, err := store.Artists(ctx)
	if err != nil {
		t.Fatalf("Artists() error = %v", err)
	}
	if len(artists) != 4 {
		t.Fatalf("expected 4 artists, got %d", len(artists))
	}

	tracks, err := store.Tracks(ctx)
	if err != nil {
		t.Fatalf("Tracks() error = %v", err)
	}
	if len(tracks) != 5 {
		t.Fatalf("expected 5 tracks, got %d", len(tracks))
	}
}
