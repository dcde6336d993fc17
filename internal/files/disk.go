// Package files stores attachment bytes on local disk. The core never
// inspects file contents; it only saves, opens, and deletes by locator.
package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/TaherBala2507/mini-crm/internal/ids"
)

// Disk writes files under a base directory, sharded by the first two
// characters of the generated locator.
type Disk struct {
	base string
}

// NewDisk creates the base directory if needed.
func NewDisk(base string) (*Disk, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return nil, errors.New("files: base directory is required")
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("files: create base dir: %w", err)
	}
	return &Disk{base: base}, nil
}

// Save writes data under a fresh locator and returns it. The original file
// name only contributes its extension; the path is never caller-controlled.
func (d *Disk) Save(data []byte, name string) (string, error) {
	ext := filepath.Ext(name)
	if len(ext) > 16 {
		ext = ""
	}
	locator := ids.New() + ext
	dir := filepath.Join(d.base, shard(locator))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("files: create shard dir: %w", err)
	}
	path := filepath.Join(dir, locator)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("files: write: %w", err)
	}
	return locator, nil
}

// Open reads the bytes behind a locator.
func (d *Disk) Open(locator string) ([]byte, error) {
	path, err := d.resolve(locator)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("files: read: %w", err)
	}
	return data, nil
}

// Delete removes the file behind a locator. Deleting a locator that is
// already gone is not an error.
func (d *Disk) Delete(locator string) error {
	path, err := d.resolve(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("files: remove: %w", err)
	}
	return nil
}

func (d *Disk) resolve(locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" || strings.ContainsAny(locator, `/\`) || strings.Contains(locator, "..") {
		return "", errors.New("files: invalid locator")
	}
	return filepath.Join(d.base, shard(locator), locator), nil
}

func shard(locator string) string {
	if len(locator) < 2 {
		return "00"
	}
	return strings.ToLower(locator[:2])
}
