// Package snapshot writes the current frame of every channel to disk.
package snapshot

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/smazurov/camsync/internal/decode"
	"github.com/smazurov/camsync/internal/events"
	"github.com/smazurov/camsync/internal/logging"
	"github.com/smazurov/camsync/internal/pipeline"
)

// Format is an image file format.
type Format string

// Supported formats.
const (
	JPEG Format = "jpg"
	PNG  Format = "png"
	BMP  Format = "bmp"
	TIFF Format = "tiff"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 90

// ErrNoFrame is returned when a channel has not delivered a frame yet.
var ErrNoFrame = errors.New("snapshot: no frame captured yet")

// ParseFormat accepts a format name or file extension. An empty string
// selects JPEG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "jpg", "jpeg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "bmp":
		return BMP, nil
	case "tif", "tiff":
		return TIFF, nil
	}
	return "", fmt.Errorf("unsupported snapshot format %q", s)
}

// Filename returns the file name used for a channel's frame of a round.
func Filename(round uint64, channel int, format Format) string {
	return fmt.Sprintf("image-%d_cam-%d.%s", round, channel, format)
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format Format, quality int) error {
	switch format {
	case JPEG:
		if quality <= 0 {
			quality = DefaultQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case PNG:
		return png.Encode(w, img)
	case BMP:
		return bmp.Encode(w, img)
	case TIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	}
	return fmt.Errorf("unsupported snapshot format %q", format)
}

// Options configures a Saver.
type Options struct {
	Dir     string
	Format  Format
	Quality int
	Events  *events.Bus
	Logger  *slog.Logger
}

// Saver writes frames into a directory.
type Saver struct {
	dir     string
	format  Format
	quality int
	events  *events.Bus
	logger  *slog.Logger
}

// New creates the output directory if needed.
func New(opts Options) (*Saver, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.Format == "" {
		opts.Format = JPEG
	}
	if _, err := ParseFormat(string(opts.Format)); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("snapshot")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &Saver{
		dir:     opts.Dir,
		format:  opts.Format,
		quality: opts.Quality,
		events:  opts.Events,
		logger:  opts.Logger,
	}, nil
}

// Dir returns the output directory.
func (s *Saver) Dir() string { return s.dir }

// SaveFrame writes one frame and returns the path written. Three-channel
// images are interpreted in the given channel order.
func (s *Saver) SaveFrame(f *pipeline.Frame, order decode.Order) (string, error) {
	if f == nil || f.Image == nil {
		return "", ErrNoFrame
	}
	path := filepath.Join(s.dir, Filename(f.Round, f.Channel, s.format))
	if err := s.write(path, f.Image.Std(order)); err != nil {
		return "", err
	}

	s.logger.Debug("Frame saved", "path", path, "round", f.Round, "channel", f.Channel)
	if s.events != nil {
		s.events.Publish(events.FrameSavedEvent{
			Round:     f.Round,
			Channel:   f.Channel,
			Path:      path,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
	return path, nil
}

func (s *Saver) write(path string, img image.Image) error {
	tmp, err := os.CreateTemp(s.dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, img, s.format, s.quality); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Save writes the latest frame of every channel of a. Channels without a
// frame are skipped; the paths written are returned in channel order along
// with any errors joined.
func (s *Saver) Save(a *pipeline.Acquisition) ([]string, error) {
	order := a.Decoder().Order()
	var (
		paths []string
		errs  []error
	)
	for ch := 0; ch < a.Session().NumCameras(); ch++ {
		f, err := a.Image(ch)
		if err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %w", ch, ErrNoFrame))
			continue
		}
		path, err := s.SaveFrame(f, order)
		if err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %w", ch, err))
			continue
		}
		paths = append(paths, path)
	}
	if len(errs) > 0 {
		s.logger.Warn("Snapshot incomplete", "saved", len(paths), "error", errors.Join(errs...))
	} else {
		s.logger.Info("Snapshot saved", "frames", len(paths), "dir", s.dir)
	}
	return paths, errors.Join(errs...)
}
