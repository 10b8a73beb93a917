package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bokononistmonkey/Mosaic/core/render"
	"github.com/bokononistmonkey/Mosaic/core/stream"
	"github.com/bokononistmonkey/Mosaic/pkg/tilemap"
	"github.com/klauspost/compress/gzhttp"
)

// mjpegBoundary separates parts on the /api/stream wire.
const mjpegBoundary = "mosaicframe"

// streamPollInterval is how often /api/stream checks for a new frame.
// Comfortably above any realistic frame rate.
const streamPollInterval = 20 * time.Millisecond

type handler struct {
	// renderer answers queries and summaries under the index lock, so
	// API traffic interleaves safely with in-flight frames.
	renderer *render.Renderer
	// latest is where the stream loop publishes; nil when no loop runs.
	latest *stream.Latest
	// counters reports loop progress for /api/stats; nil when no loop.
	counters func() stream.Counters
	log      *slog.Logger
}

func (h *handler) routes() http.Handler {
	mux := http.NewServeMux()
	routes := map[string]http.Handler{
		"/api/query":  http.HandlerFunc(h.query),
		"/api/stats":  gzhttp.GzipHandler(http.HandlerFunc(h.stats)),
		"/api/frame":  http.HandlerFunc(h.frame),
		"/api/stream": http.HandlerFunc(h.stream),
	}
	for k, v := range routes {
		mux.Handle(k, v)
		h.log.Info("route up", "route", k)
	}
	return mux
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func (h *handler) writeErr(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, ErrResp{Error: msg})
}

// tryUnpackRequestBody will try to unmarshal the request body into
// <target>. If the task fails, then an automatic bad request response
// is sent to the requester and false is returned. Else, nothing is
// written to the requester and the return is true.
func (h *handler) tryUnpackRequestBody(w http.ResponseWriter, r *http.Request, target any) bool {
	// Error is not necessary to check, if it's not nil then the body
	// with the JSON request isn't going to work anyway.
	body, _ := io.ReadAll(r.Body)
	if err := json.Unmarshal(body, target); err != nil {
		h.writeErr(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

// POST /api/query: one closest-element lookup.
func (h *handler) query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeErr(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	var req QueryReq
	if !h.tryUnpackRequestBody(w, r, &req) {
		return
	}

	e, b, err := h.renderer.QueryDetailed(req.toRGB())
	if errors.Is(err, tilemap.ErrEmptyIndex) {
		h.writeErr(w, http.StatusConflict, "index holds no elements")
		return
	}
	if err != nil {
		h.writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, QueryResp{
		ID:        e.ID(),
		Color:     rgbToView(e.Color()),
		BucketAvg: rgbToView(b.Avg()),
		Uses:      e.Uses(),
	})
}

// GET /api/stats: index summary + loop counters.
func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResp{Index: summaryToView(h.renderer.Summary())}
	if h.counters != nil {
		resp.Loop = countersToView(h.counters())
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GET /api/frame: the latest rendered frame as PNG.
func (h *handler) frame(w http.ResponseWriter, r *http.Request) {
	f := h.latestFrame()
	if f == nil {
		h.writeErr(w, http.StatusNotFound, "no frame rendered yet")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, f.Image); err != nil {
		h.log.Debug("frame write failed", "err", err)
	}
}

// GET /api/stream: MJPEG multipart, one part per new frame, until the
// client goes away.
func (h *handler) stream(w http.ResponseWriter, r *http.Request) {
	if h.latest == nil {
		h.writeErr(w, http.StatusNotFound, "no stream running")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeErr(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mjpegBoundary)

	tick := time.NewTicker(streamPollInterval)
	defer tick.Stop()

	var seen uint64
	for {
		select {
		case <-r.Context().Done():
			return
		case <-tick.C:
		}

		f, seq := h.latest.Frame()
		if f == nil || seq == seen {
			continue
		}
		seen = seq

		if err := writeMJPEGPart(w, f.Image); err != nil {
			// Client went away mid-part; nothing to salvage.
			h.log.Debug("stream write failed", "err", err)
			return
		}
		flusher.Flush()
	}
}

func (h *handler) latestFrame() *render.Frame {
	if h.latest == nil {
		return nil
	}
	f, _ := h.latest.Frame()
	return f
}

func writeMJPEGPart(w io.Writer, img image.Image) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		return err
	}

	head := "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n"
	if _, err := fmt.Fprintf(w, head, mjpegBoundary, buf.Len()); err != nil {
		return err
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}
