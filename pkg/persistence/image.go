package persistence

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// ImageVersion is the current version of the image file format.
const ImageVersion = 1

// ErrVersion indicates an image written by an incompatible version.
var ErrVersion = errors.New("unsupported image version")

// MemoryImage is a snapshot of a simulated target's memory.
type MemoryImage struct {
	// Version is the image file format version.
	Version int `cbor:"1,keyasint"`

	// SavedAt is when the image was last saved.
	SavedAt time.Time `cbor:"2,keyasint"`

	// Target is the registry ID of the target node.
	Target string `cbor:"3,keyasint"`

	// Regions holds the memory content per region.
	Regions []RegionImage `cbor:"4,keyasint"`
}

// RegionImage is the content of one memory region.
type RegionImage struct {
	ExtendedAddress uint8  `cbor:"1,keyasint"`
	Address         uint32 `cbor:"2,keyasint"`
	Data            []byte `cbor:"3,keyasint"`
}

// ImageStore reads and writes a memory image file.
type ImageStore struct {
	mu   sync.Mutex
	path string
}

// NewImageStore creates a store for the image at path.
func NewImageStore(path string) *ImageStore {
	return &ImageStore{path: path}
}

// Path returns the image file path.
func (s *ImageStore) Path() string {
	return s.path
}

// Save writes the image. The file is replaced atomically.
func (s *ImageStore) Save(img *MemoryImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	img.Version = ImageVersion
	if img.SavedAt.IsZero() {
		img.SavedAt = time.Now()
	}

	data, err := cbor.Marshal(img)
	if err != nil {
		return fmt.Errorf("encode image: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".image-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load reads the image. It returns nil, nil if the file does not exist.
func (s *ImageStore) Load() (*MemoryImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	img := &MemoryImage{}
	if err := cbor.Unmarshal(data, img); err != nil {
		return nil, fmt.Errorf("decode image %s: %w", s.path, err)
	}
	if img.Version != ImageVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, img.Version)
	}
	return img, nil
}

// Clear removes the image file.
func (s *ImageStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
