/*
Entrypoint for the mosaic service. Two modes:

Single image:

	mosaic -corpus ./images -in photo.jpg -out mosaic.png

Stream (paced render loop + http preview api):

	mosaic -corpus ./images -synthetic
	mosaic -corpus ./images -frames ./frames -loop -listen localhost:3501

The corpus can come from a directory or an s3/minio bucket, with an
optional redis cache for the normalized tiles. Defaults live in cfg/.
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/bokononistmonkey/Mosaic/cfg"
	"github.com/bokononistmonkey/Mosaic/core/api"
	"github.com/bokononistmonkey/Mosaic/core/corpus"
	"github.com/bokononistmonkey/Mosaic/core/render"
	"github.com/bokononistmonkey/Mosaic/core/stream"
	"github.com/bokononistmonkey/Mosaic/pkg/tilemap"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
)

// Corpus flags.
var (
	corpusDir  = flag.String("corpus", "", "directory of candidate images (required unless -s3-bucket is set)")
	s3Bucket   = flag.String("s3-bucket", "", "read the corpus from this s3/minio bucket instead of -corpus")
	s3Prefix   = flag.String("s3-prefix", "", "key prefix inside -s3-bucket")
	s3Endpoint = flag.String("s3-endpoint", cfg.S3Endpoint, "s3/minio endpoint")
	cacheRedis = flag.Bool("cache-redis", false, "cache normalized tiles in redis")
	redisAddr  = flag.String("redis-addr", cfg.RedisAddr, "redis addr for -cache-redis")
	avgMode    = flag.String("avg", "mean", "per-tile average mode: mean or dominant")
	blurSigma  = flag.Float64("blur", float64(cfg.BlurSigma), "gaussian pre-blur sigma for corpus tiles, 0 is off")
)

// Engine flags, defaults from cfg.Index.
var (
	distThreshold  = flag.Float64("threshold", cfg.Index.DistanceThreshold, "bucket routing distance threshold")
	minBucketSize  = flag.Int("min", cfg.Index.MinBucketSize, "bucket size floor for balancing")
	maxBucketSize  = flag.Int("max", cfg.Index.MaxBucketSize, "bucket size ceiling for balancing")
	mergeThreshold = flag.Float64("merge", cfg.Index.MergeThreshold, "merge distance threshold for balancing")
	splitStyle     = flag.String("split", "contiguous", "balance split style: contiguous or kmeans")
)

// Render + mode flags.
var (
	tileSize      = flag.Int("tile", cfg.TileSize, "tile side length in px")
	loadWorkers   = flag.Int("load-workers", cfg.LoadWorkers, "parallel corpus load workers")
	renderWorkers = flag.Int("render-workers", cfg.RenderWorkers, "parallel cell render workers")

	inPath  = flag.String("in", "", "single-image mode: source image path")
	outPath = flag.String("out", "mosaic.png", "single-image mode: output path")

	framesDir  = flag.String("frames", "", "stream mode: directory of frame images")
	loopFrames = flag.Bool("loop", false, "stream mode: replay -frames forever")
	synthetic  = flag.Bool("synthetic", false, "stream mode: synthetic gradient frames")
	width      = flag.Int("width", 640, "synthetic frame width")
	height     = flag.Int("height", 480, "synthetic frame height")
	fps        = flag.Int("fps", cfg.FPS, "stream frame rate cap")
	statsEvery = flag.Int("stats-every", cfg.StatsEveryNFrames, "log index stats every n frames")
	record     = flag.String("record", "", "stream mode: also write every frame as PNG into this dir")
	listen     = flag.String("listen", cfg.LocalAddrAPI.ToStr(), "api listen addr (host:port)")

	verbose = flag.Bool("v", false, "debug logging")
)

func main() {
	flag.Parse()

	lvl := slog.LevelInfo
	if *verbose {
		lvl = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	r, err := setupEngine(ctx)
	if err != nil {
		return err
	}
	if *inPath != "" {
		return runSingle(ctx, r)
	}
	return runStream(ctx, r)
}

// setupEngine loads + balances the index and wraps it in a renderer.
func setupEngine(ctx context.Context) (*render.Renderer, error) {
	args := cfg.Index
	args.DistanceThreshold = *distThreshold
	args.MinBucketSize = *minBucketSize
	args.MaxBucketSize = *maxBucketSize
	args.MergeThreshold = *mergeThreshold
	switch *splitStyle {
	case "contiguous":
		args.SplitStyle = tilemap.SplitContiguous
	case "kmeans":
		args.SplitStyle = tilemap.SplitKMeans
	default:
		return nil, fmt.Errorf("unknown -split %q", *splitStyle)
	}

	idx, err := tilemap.NewBigBucket(args)
	if err != nil {
		return nil, err
	}

	src, err := corpusSource()
	if err != nil {
		return nil, err
	}
	mode, err := averageMode()
	if err != nil {
		return nil, err
	}

	rep, err := corpus.Load(ctx, corpus.LoadArgs{
		Source:    src,
		Index:     idx,
		TileSize:  *tileSize,
		Workers:   *loadWorkers,
		Average:   mode,
		BlurSigma: float32(*blurSigma),
		Cache:     tileCache(),
	})
	if err != nil {
		return nil, err
	}
	if rep.Loaded == 0 {
		return nil, errors.New("corpus produced no usable images")
	}

	if err := idx.Balance(); err != nil {
		return nil, err
	}
	s := idx.Summarize()
	slog.Info("index ready", "buckets", s.Buckets, "elements", s.Elements)

	return render.NewRenderer(render.NewRendererArgs{
		Index:    idx,
		TileSize: *tileSize,
		Workers:  *renderWorkers,
	})
}

func corpusSource() (corpus.Source, error) {
	switch {
	case *s3Bucket != "":
		mc, err := minio.New(*s3Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
			Secure: cfg.S3UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to %s: %w", *s3Endpoint, err)
		}
		return corpus.ObjectSource{Client: mc, Bucket: *s3Bucket, Prefix: *s3Prefix}, nil
	case *corpusDir != "":
		return corpus.DirSource{Dir: *corpusDir}, nil
	default:
		return nil, errors.New("need a corpus: set -corpus or -s3-bucket")
	}
}

func tileCache() corpus.TileCache {
	if !*cacheRedis {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: *redisAddr})
	return &corpus.RedisCache{Client: client, TTL: cfg.TileCacheTTL}
}

func averageMode() (corpus.AverageMode, error) {
	switch *avgMode {
	case "mean":
		return corpus.AverageMean, nil
	case "dominant":
		return corpus.AverageDominant, nil
	default:
		return 0, fmt.Errorf("unknown -avg %q", *avgMode)
	}
}

func runSingle(ctx context.Context, r *render.Renderer) error {
	f, err := os.Open(*inPath)
	if err != nil {
		return err
	}
	src, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("decoding %s: %w", *inPath, err)
	}

	frame, err := r.Render(ctx, src)
	if err != nil {
		return err
	}

	out, err := os.Create(*outPath)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := png.Encode(out, frame.Image); err != nil {
		return err
	}

	slog.Info("mosaic written", "path", *outPath,
		"cells", len(frame.Grid)*len(frame.Grid[0]), "elapsed", frame.Elapsed)
	return nil
}

func runStream(ctx context.Context, r *render.Renderer) error {
	src, err := frameSource()
	if err != nil {
		return err
	}

	var latest stream.Latest
	sinks := []stream.FrameSink{&latest}
	if *record != "" {
		if err := os.MkdirAll(*record, 0o755); err != nil {
			return err
		}
		sinks = append(sinks, &stream.PNGWriter{Dir: *record})
	}

	loop := stream.LoopConfig{
		Source:     src,
		Renderer:   r,
		Sinks:      sinks,
		FPS:        *fps,
		StatsEvery: *statsEvery,
	}

	host, port, err := net.SplitHostPort(*listen)
	if err != nil {
		return fmt.Errorf("bad -listen addr: %w", err)
	}
	go func() {
		err := api.Start(api.Config{
			Addr:         cfg.Addr{Host: host, Port: port},
			ReadTimeout:  cfg.APIReadTimeout,
			WriteTimeout: cfg.APIWriteTimeout,
			Renderer:     r,
			Latest:       &latest,
			Counters:     loop.Counters,
		})
		slog.Error("api server stopped", "err", err)
	}()

	return stream.Run(ctx, &loop)
}

func frameSource() (stream.FrameSource, error) {
	switch {
	case *framesDir != "":
		return stream.NewSequenceSource(*framesDir, *loopFrames)
	case *synthetic:
		return &stream.SyntheticSource{W: *width, H: *height}, nil
	default:
		return nil, errors.New("need frames: set -frames or -synthetic")
	}
}
