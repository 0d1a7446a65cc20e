package resource

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // tile decoders
	_ "image/png"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"

	"github.com/Everpoint/sGis-sub002/logger"
	"github.com/Everpoint/sGis-sub002/metrics"
)

// HTTPOptions configures an HTTPLoader.
type HTTPOptions struct {
	// Workers bounds the number of concurrent requests.
	Workers int
	// Delay is slept by a worker before each request.
	Delay time.Duration
	// UserAgent is sent with every request when set.
	UserAgent string
	// Client defaults to http.DefaultClient. No timeout is imposed by the loader itself.
	Client *http.Client
}

type completion struct {
	future *Future
	img    image.Image
	err    error
}

// HTTPLoader fetches and decodes images on background goroutines and hands the
// results back through Dispatch.
type HTTPLoader struct {
	client    *http.Client
	userAgent string
	delay     time.Duration
	workers   chan struct{}
	group     singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	queue   []completion
	pending atomic.Int64
}

// NewHTTPLoader creates a loader. Close it to abort outstanding requests.
func NewHTTPLoader(opts HTTPOptions) *HTTPLoader {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &HTTPLoader{
		client:    client,
		userAgent: opts.UserAgent,
		delay:     opts.Delay,
		workers:   make(chan struct{}, opts.Workers),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Load starts fetching url.
func (l *HTTPLoader) Load(url string) *Future {
	f := NewFuture(url)
	l.pending.Add(1)
	l.wg.Add(1)
	go l.fetch(f)
	return f
}

func (l *HTTPLoader) fetch(f *Future) {
	defer l.wg.Done()
	start := time.Now()

	select {
	case l.workers <- struct{}{}:
	case <-l.ctx.Done():
		l.complete(f, nil, l.ctx.Err())
		return
	}
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	v, err, shared := l.group.Do(f.url, func() (interface{}, error) {
		return l.get(f.url)
	})
	<-l.workers

	var img image.Image
	if err == nil {
		img = v.(image.Image)
	}
	l.complete(f, img, err)

	status := "ok"
	if err != nil {
		status = "error"
		logger.L().Debugf("fetch %s error, details: %s", f.url, err)
	} else {
		logger.L().Debugf("fetch %s, %dms, shared: %v", f.url, time.Since(start).Milliseconds(), shared)
	}
	metrics.ImageLoads.WithLabelValues(status).Inc()
	metrics.ImageLoadDuration.Observe(float64(time.Since(start).Milliseconds()))
}

func (l *HTTPLoader) get(url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(l.ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status code %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if len(body) == 0 {
		return nil, ErrEmpty
	}
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return img, nil
}

func (l *HTTPLoader) complete(f *Future, img image.Image, err error) {
	l.mu.Lock()
	l.queue = append(l.queue, completion{future: f, img: img, err: err})
	l.mu.Unlock()
}

// Dispatch settles every finished load on the calling goroutine.
func (l *HTTPLoader) Dispatch() int {
	l.mu.Lock()
	queue := l.queue
	l.queue = nil
	l.mu.Unlock()
	l.pending.Add(-int64(len(queue)))
	for _, c := range queue {
		c.future.settle(c.img, c.err)
	}
	return len(queue)
}

// Pending counts loads not yet settled by Dispatch.
func (l *HTTPLoader) Pending() int {
	return int(l.pending.Load())
}

// Wait blocks until every started load has queued its completion.
func (l *HTTPLoader) Wait() {
	l.wg.Wait()
}

// Close aborts outstanding requests. Their futures fail on the next Dispatch.
func (l *HTTPLoader) Close() error {
	l.cancel()
	l.wg.Wait()
	return nil
}
