package ocr

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/cjs1301/lyric-extractor/internal/domain"
	"github.com/cjs1301/lyric-extractor/internal/observability"
)

// Batch annotates pages concurrently under a bounded worker limit and
// reassembles results in original page order. Page order is
// semantically significant downstream, so results are slotted by
// submission index, never by completion order.
type Batch struct {
	annotator   Annotator
	concurrency int
	logger      *observability.Logger
}

// NewBatch creates a batch runner. A non-positive concurrency selects
// a single worker.
func NewBatch(annotator Annotator, concurrency int, logger *observability.Logger) *Batch {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Batch{
		annotator:   annotator,
		concurrency: concurrency,
		logger:      logger.WithStage("ocr"),
	}
}

// Run annotates every page. The first failing page aborts the whole
// batch; a gap in OCR coverage would silently mislabel section
// boundaries downstream, so partial results are never returned.
func (b *Batch) Run(ctx context.Context, pages []domain.RasterPage) ([]domain.OCRPage, error) {
	results := make([]domain.OCRPage, len(pages))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, page := range pages {
		g.Go(func() error {
			res, err := b.annotator.Annotate(ctx, page)
			if err != nil {
				b.logger.Error().Int("page", page.Index).Err(err).Msg("page annotation failed")
				return err
			}
			b.logger.Debug().Int("page", page.Index).Int("blocks", len(res.Blocks)).Msg("page annotated")
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
