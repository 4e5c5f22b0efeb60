package nvm

import (
	"fmt"
	"os"
)

// File is a device backed by a fixed-size image file, used on hosts without
// an EEPROM. A new image is filled with Erased bytes.
type File struct {
	f    *os.File
	size int
}

// OpenFile opens or creates the image at path and grows it to size bytes.
func OpenFile(path string, size int) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage image %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat storage image %s: %w", path, err)
	}

	if cur := int(info.Size()); cur < size {
		pad := make([]byte, size-cur)
		for i := range pad {
			pad[i] = Erased
		}
		if _, err := f.WriteAt(pad, int64(cur)); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to initialize storage image %s: %w", path, err)
		}
	}

	return &File{f: f, size: size}, nil
}

// Size returns the capacity in bytes.
func (d *File) Size() int { return d.size }

// Load reads the byte at addr.
func (d *File) Load(addr int) (byte, error) {
	if err := checkRange(addr, d.size); err != nil {
		return 0, err
	}
	var buf [1]byte
	if _, err := d.f.ReadAt(buf[:], int64(addr)); err != nil {
		return 0, fmt.Errorf("failed to read storage at %d: %w", addr, err)
	}
	return buf[0], nil
}

// Store writes the byte at addr.
func (d *File) Store(addr int, b byte) error {
	if err := checkRange(addr, d.size); err != nil {
		return err
	}
	if _, err := d.f.WriteAt([]byte{b}, int64(addr)); err != nil {
		return fmt.Errorf("failed to write storage at %d: %w", addr, err)
	}
	return nil
}

// Close flushes and closes the image.
func (d *File) Close() error {
	if err := d.f.Sync(); err != nil {
		d.f.Close()
		return fmt.Errorf("failed to sync storage image: %w", err)
	}
	return d.f.Close()
}
