package imaging

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"sync"
)

// PlaneOptions selects how a decoded image is turned into tracker planes.
type PlaneOptions struct {
	Convert  ConvertOptions
	Gradient GradientOperator
}

// Planes is the tracker-ready form of an image: its intensity plane and
// the gradient field of that plane. Planes are read-only once built and
// may be shared between concurrent tracking calls.
type Planes struct {
	Image    *FloatImage
	Gradient *GradientField
}

type planeKey struct {
	path string
	opts PlaneOptions
}

// ImageCache provides thread-safe caching of decoded images and of the
// planes derived from them.
//
// Decoded images are keyed by file path. Planes are keyed by path and
// PlaneOptions, so the same file converted with a different luma model or
// blur radius gets its own entry. Evicting a path drops both.
//
// Entries are built outside the lock. A build that races with Evict or
// Clear still returns its result to the caller but is not stored, so an
// evicted path never reappears from a load that started before the evict.
//
// # Example Usage
//
//	cache := imaging.NewImageCache()
//	planes, err := cache.LoadPlanes("/path/to/frame1.png", imaging.PlaneOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// Track points against planes.Image and planes.Gradient...
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]image.Image
	planes map[planeKey]*Planes

	// epoch counts Clear calls, gens counts Evict calls per path.
	epoch uint64
	gens  map[string]uint64
}

// cacheGen identifies the cache state a build started from.
type cacheGen struct {
	epoch uint64
	path  uint64
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]image.Image),
		planes: make(map[planeKey]*Planes),
		gens:   make(map[string]uint64),
	}
}

// generation snapshots the state entries for path are stored against.
// Callers must hold c.mu.
func (c *ImageCache) generation(path string) cacheGen {
	return cacheGen{epoch: c.epoch, path: c.gens[path]}
}

// storeImage caches img unless path was evicted or the cache cleared
// since gen was taken. It reports whether img was stored.
func (c *ImageCache) storeImage(path string, img image.Image, gen cacheGen) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation(path) != gen {
		return false
	}
	c.images[path] = img
	return true
}

// storePlanes is storeImage for planes.
func (c *ImageCache) storePlanes(key planeKey, p *Planes, gen cacheGen) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation(key.path) != gen {
		return false
	}
	c.planes[key] = p
	return true
}

// Load retrieves an image from the cache or decodes it from disk.
//
// Supported formats are PNG, JPEG, and GIF. The image is cached using the
// exact path string provided; relative and absolute paths to the same file
// are separate entries.
func (c *ImageCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	gen := c.generation(path)
	c.mu.RUnlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	c.storeImage(path, img, gen)
	return img, nil
}

// LoadPlanes returns the intensity plane and gradient field of the image
// at path, building and caching them on first use.
func (c *ImageCache) LoadPlanes(path string, opts PlaneOptions) (*Planes, error) {
	key := planeKey{path: path, opts: opts}

	c.mu.RLock()
	if p, ok := c.planes[key]; ok {
		c.mu.RUnlock()
		return p, nil
	}
	gen := c.generation(path)
	c.mu.RUnlock()

	img, err := c.Load(path)
	if err != nil {
		return nil, err
	}
	p, err := BuildPlanes(img, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to build planes for %s: %w", filepath.Base(path), err)
	}

	c.storePlanes(key, p, gen)
	return p, nil
}

// BuildPlanes converts img and computes its gradient field.
func BuildPlanes(img image.Image, opts PlaneOptions) (*Planes, error) {
	op, err := ParseGradientOperator(string(opts.Gradient))
	if err != nil {
		return nil, err
	}
	f, err := ToFloat(img, opts.Convert)
	if err != nil {
		return nil, err
	}
	g, err := ComputeGradient(f, op)
	if err != nil {
		return nil, err
	}
	return &Planes{Image: f, Gradient: g}, nil
}

// Clear removes all images and planes from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.planes = make(map[planeKey]*Planes)
	c.gens = make(map[string]uint64)
	c.epoch++
	c.mu.Unlock()
}

// Evict removes an image and every plane derived from it.
// If the path is not in the cache, this method does nothing.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	c.gens[path]++
	delete(c.images, path)
	for k := range c.planes {
		if k.path == path {
			delete(c.planes, k)
		}
	}
	c.mu.Unlock()
}

// ImageInfo contains metadata about a loaded image file.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the detected image format: "png", "jpeg", "gif", or "unknown".
	// Detection is based on file extension, not file contents.
	Format string `json:"format"`

	// ColorDepth indicates the bit depth per channel: "8-bit" or "16-bit".
	ColorDepth string `json:"color_depth"`

	// Grayscale is true when the decoded image is already single-channel,
	// in which case both luma models agree up to rounding.
	Grayscale bool `json:"grayscale"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image into the cache and returns its metadata.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format := "unknown"
	switch filepath.Ext(path) {
	case ".png":
		format = "png"
	case ".jpg", ".jpeg":
		format = "jpeg"
	case ".gif":
		format = "gif"
	}

	colorDepth := "8-bit"
	grayscale := false
	switch img.(type) {
	case *image.RGBA64, *image.NRGBA64:
		colorDepth = "16-bit"
	case *image.Gray16:
		colorDepth = "16-bit"
		grayscale = true
	case *image.Gray:
		grayscale = true
	}

	return &ImageInfo{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Format:        format,
		ColorDepth:    colorDepth,
		Grayscale:     grayscale,
		FileSizeBytes: stat.Size(),
	}, nil
}

// DimensionsResult contains the width and height of an image.
type DimensionsResult struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GetDimensions returns the dimensions of an image without additional metadata.
func GetDimensions(cache *ImageCache, path string) (*DimensionsResult, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return &DimensionsResult{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
