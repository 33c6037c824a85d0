package persistence

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
)

func TestImageStoreSaveLoad(t *testing.T) {
	store := NewImageStore(filepath.Join(t.TempDir(), "sub", "target.img"))

	img := &MemoryImage{
		Target: "SampleRMAPTargetNode",
		Regions: []RegionImage{
			{Address: 0x20000000, Data: []byte{0x00, 0x00, 0x20, 0x00}},
			{ExtendedAddress: 1, Address: 0x100, Data: []byte{0xde, 0xad}},
		},
	}
	if err := store.Save(img); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if img.Version != ImageVersion || img.SavedAt.IsZero() {
		t.Errorf("Save did not stamp the image: %+v", img)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Target != img.Target || len(got.Regions) != 2 {
		t.Fatalf("loaded %+v", got)
	}
	if got.Regions[1].ExtendedAddress != 1 || string(got.Regions[1].Data) != "\xde\xad" {
		t.Errorf("region 1 = %+v", got.Regions[1])
	}
	if !got.SavedAt.Equal(img.SavedAt) {
		t.Errorf("SavedAt = %v, want %v", got.SavedAt, img.SavedAt)
	}
}

func TestImageStoreLoadMissing(t *testing.T) {
	store := NewImageStore(filepath.Join(t.TempDir(), "none.img"))
	img, err := store.Load()
	if err != nil || img != nil {
		t.Errorf("Load() = %v, %v; want nil, nil", img, err)
	}
}

func TestImageStoreRejectsOtherVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.img")
	data, _ := cbor.Marshal(MemoryImage{Version: 99, SavedAt: time.Now()})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := NewImageStore(path).Load()
	if !errors.Is(err, ErrVersion) {
		t.Errorf("Load() = %v, want ErrVersion", err)
	}
}

func TestImageStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.img")
	if err := os.WriteFile(path, []byte{0xff, 0x00}, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewImageStore(path).Load(); err == nil {
		t.Error("expected decode error")
	}
}

func TestImageStoreClear(t *testing.T) {
	store := NewImageStore(filepath.Join(t.TempDir(), "t.img"))
	if err := store.Clear(); err != nil {
		t.Errorf("Clear() on missing file = %v", err)
	}
	if err := store.Save(&MemoryImage{}); err != nil {
		t.Fatal(err)
	}
	if err := store.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Error("image still exists")
	}
}
