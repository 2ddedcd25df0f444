package tasks

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/isrcx/internal/retry"
	"github.com/desertthunder/isrcx/internal/services"
)

// ItemAdder is the part of [services.Catalog] used by submission.
type ItemAdder interface {
	AddItems(ctx context.Context, playlistID string, uris []string) error
}

// Chunk splits items into consecutive slices of at most size elements.
// Sizes below 1 are treated as 1. The chunks share the backing array of items.
func Chunk[T any](items []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	if len(items) == 0 {
		return nil
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}

// BatchSubmitter adds matched items to a playlist in bounded chunks.
type BatchSubmitter struct {
	adder     ItemAdder
	invoker   *retry.Invoker
	chunkSize int
	observer  Observer
	logger    *log.Logger
}

// NewBatchSubmitter creates a submitter. chunkSize is clamped to (0, [services.MaxItemsPerRequest]].
func NewBatchSubmitter(adder ItemAdder, invoker *retry.Invoker, chunkSize int, observer Observer, logger *log.Logger) *BatchSubmitter {
	if chunkSize <= 0 || chunkSize > services.MaxItemsPerRequest {
		chunkSize = services.MaxItemsPerRequest
	}
	if invoker == nil {
		invoker = retry.New(retry.DefaultPolicy())
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &BatchSubmitter{
		adder:     adder,
		invoker:   invoker,
		chunkSize: chunkSize,
		observer:  observerOrNop(observer),
		logger:    logger,
	}
}

// ChunkSize returns the effective chunk size.
func (b *BatchSubmitter) ChunkSize() int {
	return b.chunkSize
}

// Submit adds items to playlistID in order, one invocation per chunk, and
// returns how many items were accepted.
//
// The first chunk that cannot be submitted aborts the call. Chunks already
// added stay in the playlist and are counted.
func (b *BatchSubmitter) Submit(ctx context.Context, playlistID string, items []MatchedItem) (int, error) {
	chunks := Chunk(items, b.chunkSize)
	added := 0

	for i, chunk := range chunks {
		uris := make([]string, len(chunk))
		for j, item := range chunk {
			uris[j] = string(item)
		}

		err := b.invoker.Do(ctx, func(ctx context.Context) error {
			return b.adder.AddItems(ctx, playlistID, uris)
		})
		if err != nil {
			return added, fmt.Errorf("failed to add chunk %d of %d (%d items): %w", i+1, len(chunks), len(chunk), err)
		}
		added += len(chunk)

		b.logger.Debugf("added chunk %d/%d (%d items)", i+1, len(chunks), len(chunk))
		b.observer.OnProgress(SubmitChunk, len(chunk))
	}

	return added, nil
}
