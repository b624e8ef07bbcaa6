// Package cache implements the frame cache: a bounded, predictive cache
// over a finite ordered frame sequence, with a moving window sized from
// image and host-memory state (§4.B of the specification this repo
// implements).
package cache

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"animaframe/internal/debug"
	"animaframe/internal/frame"
	"animaframe/internal/perf"

	"golang.org/x/sync/errgroup"
)

// decodeJob is one entry in the serial decode queue. Ordering of jobs on
// the channel is the ordering guarantee §4.B and §5 rely on for WebP
// blending: frame j-1 is requested (and therefore queued) before frame j
// whenever the prefetch window enumerates them in ascending order.
type decodeJob struct {
	index int
}

// Cache is the frame cache owned by an AnimatedImage. The display thread
// only calls Get, which marks indexes as requested and evicts frames
// outside the retention set; a single decode worker goroutine inserts
// decoded frames. Both sides touch cached/requested only under mu.
type Cache struct {
	source     frame.Source
	frameCount int
	frameBytes uint64
	budget     Budget
	capacityMax int

	poster      frame.Image
	posterIndex int

	delegate debug.Delegate
	monitor  *perf.DecodeMonitor
	predraw  *perf.PredrawMonitor

	mu               sync.RWMutex
	cachedFrames     map[int]frame.Image
	requestedFrames  map[int]struct{}
	capacityCurrent  int
	mostRecentIndex  int
	pressured        bool
	stats            frame.Stats

	jobs   chan decodeJob
	done   chan struct{}
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithCapacityMax caps capacity_current at max frames regardless of tier
// choice. 0 (the default) means no user cap.
func WithCapacityMax(max int) Option {
	return func(c *Cache) { c.capacityMax = max }
}

// WithBudget overrides the default memory-tier thresholds.
func WithBudget(b Budget) Option {
	return func(c *Cache) { c.budget = b }
}

// WithDelegate attaches a debug observer. Purely observational: nothing it
// returns feeds back into eviction or timing decisions (§9).
func WithDelegate(d debug.Delegate) Option {
	return func(c *Cache) { c.delegate = d }
}

// New constructs a Cache for an image of frameCount frames, frameBytes
// bytes each, with poster already decoded at posterIndex. It starts the
// serial decode worker goroutine immediately.
//
// Follows the original FLAnimatedImageFrameCache initializer's parameter
// list (frameCount, frameBytes, poster image, poster index, and the data
// source the worker decodes through) minus its skippedFrameCount: no
// skipped-frame count is taken here or kept by the caller.
func New(src frame.Source, frameCount int, frameBytes uint64, poster frame.Image, posterIndex int, opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)

	c := &Cache{
		source:          src,
		frameCount:      frameCount,
		frameBytes:      frameBytes,
		budget:          DefaultBudget(),
		poster:          poster,
		posterIndex:     posterIndex,
		delegate:        debug.Nop{},
		monitor:         perf.NewDecodeMonitor(frameCount),
		predraw:         perf.NewPredrawMonitor(),
		cachedFrames:    make(map[int]frame.Image),
		requestedFrames: make(map[int]struct{}),
		mostRecentIndex: posterIndex,
		jobs:            make(chan decodeJob, frameCount),
		done:            make(chan struct{}),
		group:           group,
		ctx:             gctx,
		cancel:          cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.capacityCurrent = c.computeWindow(c.tierLocked())

	c.group.Go(func() error {
		c.runWorker(gctx)
		return nil
	})

	return c
}

// Get serves a synchronous, non-blocking frame lookup (§4.B responsibility
// 1), advances the predictive window, and evicts frames that fall outside
// it. It always returns immediately: a miss never blocks waiting on a
// decode. The requested index itself is enqueued for decode alongside its
// prefetch window — a miss on index must make index resident, not merely
// the frames ahead of it.
func (c *Cache) Get(index int) (frame.Image, bool) {
	c.delegate.DidRequestCachedFrame(index)

	c.mu.Lock()
	c.mostRecentIndex = index

	if index == c.posterIndex {
		c.mu.Unlock()
		return c.poster, true
	}

	img, hit := c.cachedFrames[index]

	window := c.predictiveWindowLocked(index)
	requestSet := append([]int{index}, window...)
	toEnqueue := c.markRequestedLocked(requestSet)
	c.evictLocked(index, window)
	c.mu.Unlock()

	for _, j := range toEnqueue {
		select {
		case c.jobs <- decodeJob{index: j}:
		case <-c.ctx.Done():
		}
	}

	return img, hit
}

// predictiveWindowLocked computes W = {(i+1)%n, ..., (i+capacityCurrent-1)%n}.
// Caller must hold c.mu.
func (c *Cache) predictiveWindowLocked(i int) []int {
	if c.frameCount <= 1 {
		return nil
	}
	n := c.capacityCurrent - 1
	if n > c.frameCount-1 {
		n = c.frameCount - 1
	}
	window := make([]int, 0, n)
	for k := 1; k <= n; k++ {
		window = append(window, (i+k)%c.frameCount)
	}
	return window
}

// markRequestedLocked enqueues every index in the given set (the requested
// index plus its prefetch window) that isn't already cached or in flight,
// returning the indexes that the caller must hand to the worker. Caller
// must hold c.mu.
func (c *Cache) markRequestedLocked(indexes []int) []int {
	var toEnqueue []int
	for _, j := range indexes {
		if j == c.posterIndex {
			continue
		}
		if _, cached := c.cachedFrames[j]; cached {
			continue
		}
		if _, inFlight := c.requestedFrames[j]; inFlight {
			continue
		}
		c.requestedFrames[j] = struct{}{}
		toEnqueue = append(toEnqueue, j)
	}
	return toEnqueue
}

// evictLocked drops any cached frame outside the retention set R = {i} ∪ W
// until the cache is back within capacityCurrent. The poster is never a
// candidate; it is never stored in cachedFrames. Caller must hold c.mu.
func (c *Cache) evictLocked(i int, window []int) {
	retain := make(map[int]struct{}, len(window)+1)
	retain[i] = struct{}{}
	for _, j := range window {
		retain[j] = struct{}{}
	}

	if len(c.cachedFrames) <= c.capacityCurrent {
		return
	}

	var evicted []int
	for idx := range c.cachedFrames {
		if len(c.cachedFrames) <= c.capacityCurrent {
			break
		}
		if _, keep := retain[idx]; keep {
			continue
		}
		delete(c.cachedFrames, idx)
		c.stats.Evicted++
		evicted = append(evicted, idx)
	}
	if len(evicted) > 0 {
		c.notifyCacheChangedLocked()
	}
}

// notifyCacheChangedLocked reports the current resident index set to the
// debug delegate. Caller must hold c.mu; the delegate is called while the
// lock is still held.
func (c *Cache) notifyCacheChangedLocked() {
	indexes := make([]int, 0, len(c.cachedFrames))
	for idx := range c.cachedFrames {
		indexes = append(indexes, idx)
	}
	c.delegate.DidUpdateCachedFrames(indexes)
}

// runWorker is the single serial decode goroutine (§5 "Decode worker").
// It is the only goroutine that ever calls into frame.Source.
func (c *Cache) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-c.jobs:
			c.decodeOne(ctx, job.index)
		}
	}
}

// decodeOne decodes a single frame, blending against its predecessor when
// the source requires it, and inserts the result into the cache.
func (c *Cache) decodeOne(ctx context.Context, index int) {
	start := time.Now()
	img, err := c.source.Decode(ctx, index)
	elapsed := time.Since(start)
	c.monitor.RecordDecode(elapsed)
	c.predraw.Observe(elapsed)

	if err != nil {
		log.Printf("cache: decode of frame %d failed: %v", index, err)
		c.mu.Lock()
		delete(c.requestedFrames, index)
		c.mu.Unlock()
		return
	}

	if c.source.RequiresBlending(index) {
		prev, err := c.resolvePredecessor(ctx, index)
		if err != nil {
			log.Printf("cache: predecessor resolution for frame %d failed: %v", index, err)
			c.mu.Lock()
			delete(c.requestedFrames, index)
			c.mu.Unlock()
			return
		}
		blended, err := c.source.Blend(img, prev, index)
		if err != nil {
			log.Printf("cache: blend of frame %d failed: %v", index, err)
			c.mu.Lock()
			delete(c.requestedFrames, index)
			c.mu.Unlock()
			return
		}
		img = blended
	}

	c.mu.Lock()
	delete(c.requestedFrames, index)
	select {
	case <-ctx.Done():
		c.mu.Unlock()
		return
	default:
	}
	c.cachedFrames[index] = img
	c.stats.Cached++
	c.notifyCacheChangedLocked()
	c.mu.Unlock()
}

// resolvePredecessor returns the decoded image immediately before index,
// walking backward to the nearest resident frame or the poster when the
// direct predecessor has already been evicted (§4.B: "bounded by
// capacity_current in practice because the serial queue processes indices
// in ascending order").
func (c *Cache) resolvePredecessor(ctx context.Context, index int) (frame.Image, error) {
	prevIndex := index - 1
	if prevIndex < 0 {
		prevIndex = c.frameCount - 1
	}

	if prevIndex == c.posterIndex {
		return c.poster, nil
	}

	c.mu.RLock()
	img, ok := c.cachedFrames[prevIndex]
	c.mu.RUnlock()
	if ok {
		return img, nil
	}

	// Predecessor isn't resident; walk backward decoding the chain until
	// we hit a resident frame or the poster, bounded by capacityCurrent
	// so a single blend request cannot unboundedly re-decode the whole
	// sequence.
	c.mu.RLock()
	limit := c.capacityCurrent
	c.mu.RUnlock()
	if limit < 1 {
		limit = 1
	}

	chain := []int{prevIndex}
	cursor := prevIndex
	for steps := 0; steps < limit; steps++ {
		if cursor == c.posterIndex {
			break
		}
		cursor--
		if cursor < 0 {
			cursor = c.frameCount - 1
		}
		c.mu.RLock()
		_, cached := c.cachedFrames[cursor]
		c.mu.RUnlock()
		if cached || cursor == c.posterIndex {
			chain = append(chain, cursor)
			break
		}
		chain = append(chain, cursor)
	}

	var base frame.Image
	baseIndex := chain[len(chain)-1]
	if baseIndex == c.posterIndex {
		base = c.poster
	} else {
		c.mu.RLock()
		cachedBase, ok := c.cachedFrames[baseIndex]
		c.mu.RUnlock()
		if !ok {
			decoded, err := c.source.Decode(ctx, baseIndex)
			if err != nil {
				return nil, fmt.Errorf("resolve predecessor chain at %d: %w", baseIndex, err)
			}
			cachedBase = decoded
		}
		base = cachedBase
	}

	for k := len(chain) - 2; k >= 0; k-- {
		idx := chain[k]
		decoded, err := c.source.Decode(ctx, idx)
		if err != nil {
			return nil, fmt.Errorf("resolve predecessor chain at %d: %w", idx, err)
		}
		if c.source.RequiresBlending(idx) {
			blended, err := c.source.Blend(decoded, base, idx)
			if err != nil {
				return nil, fmt.Errorf("resolve predecessor chain blend at %d: %w", idx, err)
			}
			base = blended
		} else {
			base = decoded
		}
	}

	return base, nil
}

// tierLocked classifies this image's memory tier given its size and
// whether it is currently under external memory pressure. Caller must
// hold c.mu (or call before concurrent access begins, as in New).
func (c *Cache) tierLocked() Tier {
	return classify(c.budget, c.frameCount, c.frameBytes, c.pressured)
}

// computeWindow applies §4.B's "capacity_current = min(tier_choice,
// capacity_max if > 0 else ∞, frame_count)".
func (c *Cache) computeWindow(tier Tier) int {
	window := windowFor(c.budget, tier, c.frameCount)
	if c.capacityMax > 0 && window > c.capacityMax {
		window = c.capacityMax
	}
	if window > c.frameCount {
		window = c.frameCount
	}
	if window < 1 {
		window = 1
	}
	return window
}

// OnMemoryPressure handles an external memory-pressure notification
// (§5): it immediately sets capacity_current to 1, evicts down to the
// retention set anchored at the most recently requested index, and marks
// the cache pressured until ResetPressure is called (conventionally on
// the next playback loop boundary, §4.D).
func (c *Cache) OnMemoryPressure() {
	c.mu.Lock()
	c.pressured = true
	c.capacityCurrent = 1
	window := c.predictiveWindowLocked(c.mostRecentIndex)
	c.evictLocked(c.mostRecentIndex, window)
	c.mu.Unlock()
}

// ResetPressure clears the pressured flag and immediately recomputes
// capacity_current from the ordinary size-based tier. Called by
// the playback engine at a loop boundary (§4.B, §5).
func (c *Cache) ResetPressure() {
	c.mu.Lock()
	c.pressured = false
	c.capacityCurrent = c.computeWindow(c.tierLocked())
	c.mu.Unlock()
}

// CapacityCurrent returns the cache's current window size.
func (c *Cache) CapacityCurrent() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capacityCurrent
}

// CapacityMax returns the configured hard cap, or 0 if unset.
func (c *Cache) CapacityMax() int {
	return c.capacityMax
}

// Stats returns observational counters (§3.1 supplement). Never consulted
// by cache or playback logic itself.
func (c *Cache) Stats() frame.Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// PosterImage returns the always-resident poster frame.
func (c *Cache) PosterImage() frame.Image {
	return c.poster
}

// PredrawSlowdownFactor reports the host's observed decode-latency
// multiplier, the same read-only instrumentation a debug.Delegate's
// PredrawingSlowdownFactor exposes to tests, derived here from real
// decode timings instead of an artificial override.
func (c *Cache) PredrawSlowdownFactor() float64 {
	return c.predraw.SlowdownFactor()
}

// Close cancels the decode worker and waits for it to exit. Any decode in
// flight is allowed to finish; its result is discarded because the
// context is already cancelled by the time it would be inserted.
func (c *Cache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.group.Wait()
		close(c.done)
	})
	return err
}
