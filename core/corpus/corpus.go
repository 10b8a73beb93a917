/*
This pkg loads the candidate-image corpus into a tilemap index. The
pipeline is: enumerate keys from a Source, fetch+decode+normalize them in
parallel workers, then feed the results over a channel to the one
goroutine that inserts into the index (the index itself is strictly
single-threaded during load). Undecodable or unfetchable candidates are
skipped and counted, never fatal.

Tiles can optionally go through a TileCache (see cache.go) so repeated
runs against the same corpus skip the fetch+normalize work.
*/
package corpus

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/bokononistmonkey/Mosaic/pkg/colorutils"
	"github.com/bokononistmonkey/Mosaic/pkg/tilemap"
	"golang.org/x/sync/errgroup"
)

// Source enumerates candidate images and fetches them by key.
// Implementations in source.go.
type Source interface {
	// Keys lists every candidate key, in the order the load-time
	// clustering will see them.
	Keys(ctx context.Context) ([]string, error)
	// Fetch returns the decoded image behind a key.
	Fetch(ctx context.Context, key string) (image.Image, error)
}

// Report sums up one load run.
type Report struct {
	Loaded  int
	Skipped int
	Elapsed time.Duration
}

// LoadArgs contain arguments for Load.
type LoadArgs struct {
	// Source yields the candidate images. Required.
	Source Source
	// Index receives one element per loaded candidate. Required, and
	// must not be balanced yet.
	Index *tilemap.BigBucket
	// TileSize is the side length candidates are normalized to.
	TileSize int
	// Workers bounds the parallel fetch+decode stage. Values below 1
	// mean 1.
	Workers int
	// Average selects how a tile is squashed to one color (tile.go).
	Average AverageMode
	// BlurSigma > 0 applies a gaussian pre-blur during normalization.
	BlurSigma float32
	// Cache, if set, is consulted before fetching. Cache errors degrade
	// to uncached operation.
	Cache TileCache
	// Log defaults to slog.Default().
	Log *slog.Logger
}

func (args *LoadArgs) check() error {
	if args.Source == nil {
		return errors.New("corpus: nil source")
	}
	if args.Index == nil {
		return errors.New("corpus: nil index")
	}
	if args.TileSize < 1 {
		return fmt.Errorf("corpus: tile size %v is below 1", args.TileSize)
	}
	return nil
}

func (args *LoadArgs) workers() int {
	if args.Workers < 1 {
		return 1
	}
	return args.Workers
}

func (args *LoadArgs) logger() *slog.Logger {
	log := args.Log
	if log == nil {
		log = slog.Default()
	}
	return log.With("component", "corpus")
}

// Load runs the full pipeline and returns how it went. Per-candidate
// failures are skip-and-count events; a context cancellation aborts the
// load and is returned.
func Load(ctx context.Context, args LoadArgs) (Report, error) {
	start := time.Now()
	if err := args.check(); err != nil {
		return Report{}, err
	}
	log := args.logger()

	keys, err := args.Source.Keys(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("corpus: listing keys: %w", err)
	}

	type candidate struct {
		avg colorutils.RGB
		img image.Image
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan candidate, args.workers())
	g, wctx := errgroup.WithContext(ctx)
	g.SetLimit(args.workers())

	// Feed the workers from a separate goroutine; the loop below is the
	// single consumer that talks to the index.
	go func() {
		for _, key := range keys {
			key := key
			g.Go(func() error {
				tile, err := fetchTile(wctx, &args, log, key)
				if err != nil {
					if wctx.Err() != nil {
						return wctx.Err()
					}
					log.Debug("skipping candidate", "key", key, "err", err)
					return nil
				}
				avg, err := averageColor(tile, args.Average)
				if err != nil {
					log.Debug("skipping candidate", "key", key, "err", err)
					return nil
				}
				select {
				case ch <- candidate{avg: avg, img: tile}:
				case <-wctx.Done():
					return wctx.Err()
				}
				return nil
			})
		}
		g.Wait()
		close(ch)
	}()

	rep := Report{}
	var addErr error
	for c := range ch {
		// Drain after a failure so the feeder can finish.
		if addErr != nil {
			continue
		}
		e := tilemap.NewElement(c.avg.R, c.avg.G, c.avg.B, c.img)
		if _, err := args.Index.AddElement(e); err != nil {
			addErr = fmt.Errorf("corpus: inserting element: %w", err)
			cancel()
			continue
		}
		rep.Loaded++
	}
	if addErr != nil {
		return rep, addErr
	}
	if err := g.Wait(); err != nil {
		return rep, err
	}

	rep.Skipped = len(keys) - rep.Loaded
	rep.Elapsed = time.Since(start)
	log.Info("corpus loaded",
		"loaded", rep.Loaded, "skipped", rep.Skipped, "elapsed", rep.Elapsed)
	return rep, nil
}

// fetchTile returns the normalized tile for a key, going through the
// cache when one is configured. Cache failures never fail the load.
func fetchTile(ctx context.Context, args *LoadArgs, log *slog.Logger, key string) (image.Image, error) {
	ck := cacheKey(key, args.TileSize)
	if args.Cache != nil {
		tile, err := args.Cache.Get(ctx, ck)
		if err == nil {
			return tile, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			log.Debug("tile cache get failed", "key", key, "err", err)
		}
	}

	img, err := args.Source.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	tile := Normalize(img, args.TileSize, args.BlurSigma)

	if args.Cache != nil {
		if err := args.Cache.Set(ctx, ck, tile); err != nil {
			log.Debug("tile cache set failed", "key", key, "err", err)
		}
	}
	return tile, nil
}
