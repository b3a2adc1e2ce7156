package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ppiankov/clinmetrics/internal/cache"
	"github.com/ppiankov/clinmetrics/internal/model"
)

// ErrFileTooLarge is returned for inputs above the configured size limit
var ErrFileTooLarge = errors.New("input file too large")

// Loader reads input files through a cache
type Loader struct {
	cache    cache.Cache
	ttl      time.Duration
	maxBytes int64
}

// NewLoader creates a Loader. A nil cache disables caching.
func NewLoader(c cache.Cache, ttl time.Duration, maxBytes int64) *Loader {
	if c == nil {
		c = cache.Nop{}
	}
	return &Loader{
		cache:    c,
		ttl:      ttl,
		maxBytes: maxBytes,
	}
}

// LoadResult contains the raw file and its metadata
type LoadResult struct {
	Data []byte
	Meta model.SourceMeta
}

// Load returns the contents of src.Path
func (l *Loader) Load(ctx context.Context, src model.Source) (*LoadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(src.Path)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("input %s is a directory", src.Path)
	}

	key := cache.FileKey(src.Path, info.Size(), info.ModTime())
	if data, ok := l.cache.Get(key); ok {
		return &LoadResult{Data: data, Meta: meta(src, data, true)}, nil
	}

	data, err := l.read(src.Path)
	if err != nil {
		return nil, err
	}

	if err := l.cache.Set(key, data, l.ttl); err != nil {
		return nil, fmt.Errorf("cache input: %w", err)
	}

	return &LoadResult{Data: data, Meta: meta(src, data, false)}, nil
}

func (l *Loader) read(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if l.maxBytes > 0 {
		// One extra byte tells an exact fit from an overflow.
		r = io.LimitReader(f, l.maxBytes+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if l.maxBytes > 0 && int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, path, l.maxBytes)
	}

	return data, nil
}

func meta(src model.Source, data []byte, cached bool) model.SourceMeta {
	sum := sha256.Sum256(data)
	return model.SourceMeta{
		Path:   src.Path,
		Format: src.Format,
		Bytes:  len(data),
		SHA256: hex.EncodeToString(sum[:]),
		Cached: cached,
	}
}
