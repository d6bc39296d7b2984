package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"GamePartner/pkg/types"
)

// DefaultDirName is the scratch directory created under Config.Parent. Only
// this directory is ever cleared or removed.
const DefaultDirName = "ai_game_partner_screenshots"

// ErrNoScreenshots is returned when the store is empty.
var ErrNoScreenshots = errors.New("no screenshots available")

// Grabber takes a single picture of the screen.
type Grabber interface {
	Grab() (image.Image, error)
}

// Config controls the capture loop.
type Config struct {
	Interval       time.Duration
	MaxScreenshots int
	// Parent holds the scratch directory. Defaults to the OS temp dir.
	Parent string
}

// ScreenCapture periodically grabs the screen into a bounded Store backed by
// PNG files in a scratch directory.
type ScreenCapture struct {
	cfg     Config
	dir     string
	grabber Grabber
	store   *Store
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New recreates the scratch directory empty and returns a stopped capture loop.
func New(cfg Config, grabber Grabber) (*ScreenCapture, error) {
	if grabber == nil {
		return nil, errors.New("grabber is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Parent == "" {
		cfg.Parent = os.TempDir()
	}
	dir := filepath.Join(cfg.Parent, DefaultDirName)

	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("failed to clear screenshot directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	c := &ScreenCapture{
		cfg:     cfg,
		dir:     dir,
		grabber: grabber,
		store:   NewStore(cfg.MaxScreenshots),
		logger:  slog.Default().With("component", "capture"),
		now:     time.Now,
	}
	c.logger.Info("using screenshot directory", "dir", dir)
	return c, nil
}

// Dir returns the scratch directory.
func (c *ScreenCapture) Dir() string {
	return c.dir
}

// Start launches the capture loop. Calling Start on a running loop is a no-op.
func (c *ScreenCapture) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		c.loop(ctx)
	}(c.done)
	c.logger.Info("screen capture started", "interval", c.cfg.Interval)
}

// Stop ends the capture loop, waiting at most timeout for it to exit.
// It reports whether the loop exited in time.
func (c *ScreenCapture) Stop(timeout time.Duration) bool {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return true
	}
	cancel()

	select {
	case <-done:
		c.logger.Info("screen capture stopped")
		return true
	case <-time.After(timeout):
		c.logger.Warn("capture loop did not stop in time", "timeout", timeout)
		return false
	}
}

func (c *ScreenCapture) loop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := c.CaptureOnce(); err != nil {
			c.logger.Warn("failed to capture screenshot", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// CaptureOnce grabs the screen, writes it to the scratch directory and adds
// it to the store. Evicted screenshots have their files removed.
func (c *ScreenCapture) CaptureOnce() error {
	img, err := c.grabber.Grab()
	if err != nil {
		return fmt.Errorf("failed to capture screen: %w", err)
	}

	at := c.now()
	name := fmt.Sprintf("screenshot_%d_%s.png", at.Unix(), uuid.NewString()[:8])
	path := filepath.Join(c.dir, name)

	size, err := writePNG(path, img)
	if err != nil {
		return err
	}
	c.logger.Debug("screenshot saved", "file", name, "size", humanize.Bytes(uint64(size)))

	for _, old := range c.store.Add(types.Screenshot{Path: path, CapturedAt: at}) {
		if err := os.Remove(old.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Error("error removing old screenshot", "file", filepath.Base(old.Path), "error", err)
		}
	}
	return nil
}

func writePNG(path string, img image.Image) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create screenshot file: %w", err)
	}

	if err := png.Encode(file, img); err != nil {
		file.Close()
		os.Remove(path)
		return 0, fmt.Errorf("failed to encode screenshot as PNG: %w", err)
	}

	var size int64
	if info, err := file.Stat(); err == nil {
		size = info.Size()
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("failed to close screenshot file: %w", err)
	}
	return size, nil
}

// GetRecentScreenshots returns up to count screenshots, most recent last.
func (c *ScreenCapture) GetRecentScreenshots(count int) []types.Screenshot {
	return c.store.Recent(count)
}

// GetScreenshotCount returns the number of retained screenshots.
func (c *ScreenCapture) GetScreenshotCount() int {
	return c.store.Len()
}

// Latest returns the most recent screenshot or ErrNoScreenshots.
func (c *ScreenCapture) Latest() (types.Screenshot, error) {
	shot, ok := c.store.Latest()
	if !ok {
		return types.Screenshot{}, ErrNoScreenshots
	}
	return shot, nil
}

// Cleanup empties the store and removes the scratch directory.
func (c *ScreenCapture) Cleanup() error {
	c.store.Reset()
	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("error cleaning up screenshot directory: %w", err)
	}
	c.logger.Info("cleaned up screenshot directory")
	return nil
}
