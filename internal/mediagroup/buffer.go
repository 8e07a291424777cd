// Package mediagroup correlates images that arrive as separate updates but
// belong to the same chat media group, and combines them once two are present.
package mediagroup

import (
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultTTL is how long an incomplete group is kept.
	DefaultTTL = 10 * time.Minute
	// DefaultMaxGroups bounds the number of incomplete groups held at once.
	DefaultMaxGroups = 1024
)

// ErrNoGroup is returned when Add is called without a group id.
var ErrNoGroup = errors.New("media group id is empty")

// CombineFunc merges two images. base is the first image that arrived.
type CombineFunc func(base, other image.Image, direction, side string) (image.Image, error)

// Outcome is the result of adding an image to a group.
type Outcome struct {
	// Done is false while the group is still buffering.
	Done bool
	// Image is the combined image when Done is true.
	Image image.Image
	// Buffered is the number of images held for the group after the call.
	Buffered int
}

type group struct {
	images    []image.Image
	direction string
	side      string
	consumed  atomic.Bool
}

// Buffer holds incomplete media groups. It is safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	groups  *expirable.LRU[string, *group]
	combine CombineFunc
	logger  *slog.Logger
}

// Config configures a Buffer.
type Config struct {
	TTL       time.Duration
	MaxGroups int
}

// NewBuffer creates a Buffer that combines completed groups with combine.
func NewBuffer(combine CombineFunc, cfg Config, logger *slog.Logger) *Buffer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxGroups <= 0 {
		cfg.MaxGroups = DefaultMaxGroups
	}

	b := &Buffer{
		combine: combine,
		logger:  logger.With("component", "media_group_buffer"),
	}
	b.groups = expirable.NewLRU[string, *group](cfg.MaxGroups, b.onEvict, cfg.TTL)
	return b
}

// Add records img under groupID. The first image of a group is buffered.
// Once a group holds two images they are combined in arrival order and the
// group is deleted whether or not combining succeeds; a later image with the
// same id starts a fresh group. direction and side are taken from the first
// image that carries them.
func (b *Buffer) Add(groupID string, img image.Image, direction, side string) (Outcome, error) {
	if groupID == "" {
		return Outcome{}, ErrNoGroup
	}

	base, other, g, count := b.record(groupID, img, direction, side)
	if other == nil {
		b.logger.Debug("Buffered media group image", "media_group_id", groupID, "count", count)
		return Outcome{Buffered: count}, nil
	}

	b.logger.Debug("Combining media group",
		"media_group_id", groupID, "direction", g.direction, "side", g.side)

	combined, err := b.combine(base, other, g.direction, g.side)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Done: true, Image: combined}, nil
}

// record appends img to its group and, when the group is complete, removes
// it and returns its first two images.
func (b *Buffer) record(groupID string, img image.Image, direction, side string) (base, other image.Image, g *group, count int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	g, ok := b.groups.Get(groupID)
	if !ok {
		g = &group{}
		b.groups.Add(groupID, g)
	}

	g.images = append(g.images, img)
	if g.direction == "" {
		g.direction = direction
	}
	if g.side == "" {
		g.side = side
	}

	if len(g.images) < 2 {
		return nil, nil, g, len(g.images)
	}

	g.consumed.Store(true)
	b.groups.Remove(groupID)
	return g.images[0], g.images[1], g, len(g.images)
}

func (b *Buffer) onEvict(groupID string, g *group) {
	if g.consumed.Load() {
		return
	}
	b.logger.Info("Discarding incomplete media group", "media_group_id", groupID)
}

// Len returns the number of incomplete groups.
func (b *Buffer) Len() int {
	return b.groups.Len()
}

// Purge drops every incomplete group.
func (b *Buffer) Purge() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.groups.Purge()
}
