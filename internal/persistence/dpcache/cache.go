// Package dpcache keeps the last data package game section per server URL,
// zstd-compressed on disk, so a reconnect can reconcile before the server
// answers GetDataPackage.
package dpcache

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"celestetracker.ai/internal/protocol"
)

const Version = 1

type Header struct {
	Version  int    `json:"version"`
	URL      string `json:"url"`
	Game     string `json:"game"`
	Checksum string `json:"checksum,omitempty"`
	SavedAt  string `json:"saved_at"`
}

type Cache struct {
	dir string
}

func New(dir string) *Cache {
	return &Cache{dir: dir}
}

// PathFor is the cache file for a server URL.
func (c *Cache) PathFor(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:8])+".json.zst")
}

// Save writes the game section for url, replacing any earlier copy.
func (c *Cache) Save(url string, data protocol.GameData) error {
	path := c.PathFor(url)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeFile(tmp, Header{
		Version:  Version,
		URL:      url,
		Game:     protocol.Game,
		Checksum: data.Checksum,
		SavedAt:  time.Now().UTC().Format(time.RFC3339),
	}, data); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeFile(path string, h Header, data protocol.GameData) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if err := encode(enc, h, data); err != nil {
		_ = enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func encode(enc *zstd.Encoder, h Header, data protocol.GameData) error {
	bw := bufio.NewWriter(enc)
	hb, _ := json.Marshal(h)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := json.NewEncoder(bw).Encode(data); err != nil {
		return fmt.Errorf("encode data package: %w", err)
	}
	return bw.Flush()
}

// Load returns the cached game section for url. A missing file reports
// false with a nil error.
func (c *Cache) Load(url string) (protocol.GameData, Header, bool, error) {
	f, err := os.Open(c.PathFor(url))
	if errors.Is(err, os.ErrNotExist) {
		return protocol.GameData{}, Header{}, false, nil
	}
	if err != nil {
		return protocol.GameData{}, Header{}, false, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return protocol.GameData{}, Header{}, false, err
	}
	defer dec.Close()

	br := bufio.NewReader(dec)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return protocol.GameData{}, Header{}, false, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return protocol.GameData{}, Header{}, false, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version || h.URL != url {
		return protocol.GameData{}, h, false, nil
	}
	var data protocol.GameData
	if err := json.NewDecoder(br).Decode(&data); err != nil {
		return protocol.GameData{}, h, false, fmt.Errorf("decode data package: %w", err)
	}
	return data, h, true, nil
}

// Package wraps cached game data as the message the dispatcher expects.
func Package(data protocol.GameData) protocol.DataPackage {
	return protocol.DataPackage{Data: protocol.DataPackageData{
		Games: map[string]protocol.GameData{protocol.Game: data},
	}}
}
