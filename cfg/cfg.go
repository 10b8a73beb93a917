/*
This pkg is a system-wide configuration, no detail is too large or small,
all inclusive and nicely global. cmd/mosaic layers flags on top of these
defaults.

*/
package cfg

import (
	"time"

	"github.com/bokononistmonkey/Mosaic/pkg/tilemap"
)

// Addr is a host+port pair for listen addresses.
type Addr struct {
	Host string
	Port string
}

func (a Addr) ToStr() string { return a.Host + ":" + a.Port }

/*
--------------------------------------------------------------------------------
	Addresses. Only the API listens; everything else in this system is
	in-process.
--------------------------------------------------------------------------------
*/

// Address for the API / web server used as a user-facing interface.
var LocalAddrAPI = Addr{"localhost", "3501"}

// Timeout for reading API request headers+bodies.
var APIReadTimeout = time.Second * 5

// Timeout for writing API responses. Keep at 0 while the MJPEG stream
// endpoint is in use -- a write timeout cuts long-lived streams short.
var APIWriteTimeout = time.Duration(0)

/*
--------------------------------------------------------------------------------
	Index tuning, basically the entire point of the system (color
	bucketing + closest-element retrieval).
--------------------------------------------------------------------------------
*/

// Config for tilemap.NewBigBucket.
var Index = tilemap.NewBigBucketArgs{
	// Max color distance at which a corpus image still joins its nearest
	// existing bucket during load. Lower means more, tighter buckets.
	DistanceThreshold: 12,
	// Buckets below this size become merge candidates when Balance runs.
	MinBucketSize: 4,
	// Buckets above this size get split when Balance runs. Also roughly
	// bounds per-query scan cost, so don't go wild here.
	MaxBucketSize: 64,
	// Max distance between two undersized buckets' averages for them to
	// be combined during Balance. Deliberately looser than
	// DistanceThreshold, otherwise nothing ever merges.
	MergeThreshold: 24,
	// SplitContiguous is cheap and deterministic. SplitKMeans groups by
	// color instead and changes clustering output, so it's opt-in.
	SplitStyle: tilemap.SplitContiguous,
	// Rough expected corpus size, just a capacity hint.
	InitCap: 4096,
}

/*
--------------------------------------------------------------------------------
	Corpus loading + rendering.
--------------------------------------------------------------------------------
*/

// Side length (px) of normalized corpus tiles and of output mosaic cells.
var TileSize = 16

// Parallel fetch+decode workers during corpus load.
var LoadWorkers = 10

// Parallel cell workers per rendered frame.
var RenderWorkers = 10

// Gaussian pre-blur sigma for corpus tiles; 0 disables. Softens noisy
// corpus material, at some sharpness cost.
var BlurSigma = float32(0)

/*
--------------------------------------------------------------------------------
	Stream loop.
--------------------------------------------------------------------------------
*/

// Frame rate cap for the stream loop.
var FPS = 24

// Log an index summary every Nth frame. 24 is about once a second at
// the default FPS.
var StatsEveryNFrames = 24

/*
--------------------------------------------------------------------------------
	Optional external services. Only used when the matching flags are
	set; nothing here is dialed by default.
--------------------------------------------------------------------------------
*/

// Redis addr for the decoded-tile cache.
var RedisAddr = "localhost:6379"

// How long cached tiles live in redis.
var TileCacheTTL = time.Hour * 24

// S3/minio connection details for object-storage corpora.
var S3Endpoint = "localhost:9000"
var S3AccessKey = "minioadmin"
var S3SecretKey = "minioadmin"
var S3UseSSL = false
