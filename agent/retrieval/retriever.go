package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tanpawarit/chinook-concierge/agent/musicstore"
)

const (
	ArtistIndex = "artists"
	TrackIndex  = "tracks"

	defaultTopK = 4
)

// Corpus is the read side of the music store the indexes are built from.
type Corpus interface {
	Artists(ctx context.Context) ([]musicstore.Artist, error)
	Tracks(ctx context.Context) ([]musicstore.Track, error)
}

// Retriever answers approximate name lookups for artists and songs.
type Retriever struct {
	artists *Index
	tracks  *Index
	topK    int
}

// Build loads both corpora and embeds them concurrently.
func Build(ctx context.Context, corpus Corpus, embedder Embedder, cfg EmbeddingConfig) (*Retriever, error) {
	if corpus == nil {
		return nil, errors.New("corpus is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}

	start := time.Now()
	r := &Retriever{topK: cfg.TopK}
	if r.topK <= 0 {
		r.topK = defaultTopK
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		artists, err := corpus.Artists(gctx)
		if err != nil {
			return fmt.Errorf("load artists: %w", err)
		}
		docs := make([]Document, 0, len(artists))
		for _, a := range artists {
			docs = append(docs, Document{
				Text:     a.Name,
				Metadata: map[string]any{"ArtistId": a.ArtistID, "Name": a.Name},
			})
		}
		idx, err := BuildIndex(gctx, ArtistIndex, embedder, docs, cfg.CacheSize)
		if err != nil {
			return err
		}
		r.artists = idx
		return nil
	})
	g.Go(func() error {
		tracks, err := corpus.Tracks(gctx)
		if err != nil {
			return fmt.Errorf("load tracks: %w", err)
		}
		docs := make([]Document, 0, len(tracks))
		for _, t := range tracks {
			meta := map[string]any{"TrackId": t.TrackID, "Name": t.Name}
			if t.AlbumID != nil {
				meta["AlbumId"] = *t.AlbumID
			}
			if t.Composer != nil {
				meta["Composer"] = *t.Composer
			}
			docs = append(docs, Document{Text: t.Name, Metadata: meta})
		}
		idx, err := BuildIndex(gctx, TrackIndex, embedder, docs, cfg.CacheSize)
		if err != nil {
			return err
		}
		r.tracks = idx
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info().
		Int("artists", r.artists.Len()).
		Int("tracks", r.tracks.Len()).
		Dur("took", time.Since(start)).
		Msg("retrieval indexes built")
	return r, nil
}

// NewRetriever wraps prebuilt indexes.
func NewRetriever(artists, tracks *Index, topK int) *Retriever {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Retriever{artists: artists, tracks: tracks, topK: topK}
}

func (r *Retriever) SimilarArtists(ctx context.Context, query string) ([]Match, error) {
	return r.artists.Search(ctx, query, r.topK)
}

func (r *Retriever) SimilarTracks(ctx context.Context, query string) ([]Match, error) {
	return r.tracks.Search(ctx, query, r.topK)
}

// ArtistIDs extracts the ArtistId metadata from artist matches.
func ArtistIDs(matches []Match) []int64 {
	ids := make([]int64, 0, len(matches))
	for _, m := range matches {
		if id, ok := m.Metadata["ArtistId"].(int64); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
