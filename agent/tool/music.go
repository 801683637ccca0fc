package tool

import (
	"context"

	contractx "github.com/tanpawarit/chinook-concierge/agent/contract"
	"github.com/tanpawarit/chinook-concierge/agent/musicstore"
	"github.com/tanpawarit/chinook-concierge/agent/retrieval"
)

// musicTools never report "no match": lookups resolve to the nearest
// artists or songs in the index.
type musicTools struct {
	store     musicstore.Store
	retriever Retriever
}

func (m musicTools) nearestArtists(ctx context.Context, args Args) ([]int64, *contractx.ToolError) {
	artist := args.String("artist")
	if artist == "" {
		return nil, contractx.NewToolError(contractx.ToolErrValidation, "artist is required.")
	}
	matches, err := m.retriever.SimilarArtists(ctx, artist)
	if err != nil {
		return nil, storeError("search artists", err)
	}
	return retrieval.ArtistIDs(matches), nil
}

func (m musicTools) getAlbumsByArtist(ctx context.Context, args Args) (any, *contractx.ToolError) {
	ids, terr := m.nearestArtists(ctx, args)
	if terr != nil {
		return nil, terr
	}
	rows, err := m.store.AlbumsByArtists(ctx, ids)
	if err != nil {
		return nil, storeError("get albums", err)
	}
	return rows, nil
}

func (m musicTools) getTracksByArtist(ctx context.Context, args Args) (any, *contractx.ToolError) {
	ids, terr := m.nearestArtists(ctx, args)
	if terr != nil {
		return nil, terr
	}
	rows, err := m.store.TracksByArtists(ctx, ids)
	if err != nil {
		return nil, storeError("get tracks", err)
	}
	return rows, nil
}

func (m musicTools) checkForSongs(ctx context.Context, args Args) (any, *contractx.ToolError) {
	title := args.String("song_title")
	if title == "" {
		return nil, contractx.NewToolError(contractx.ToolErrValidation, "song_title is required.")
	}
	matches, err := m.retriever.SimilarTracks(ctx, title)
	if err != nil {
		return nil, storeError("search songs", err)
	}
	return matches, nil
}
