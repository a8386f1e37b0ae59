package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/ternarybob/relay/pkg/resource"
)

// ScanSnapshot is the persisted record of a completed scan: when it ran,
// how long it took, the freshness window, and a fingerprint per
// discovered file so a later run can tell whether anything changed
// without re-parsing it.
type ScanSnapshot struct {
	ScannedAt      time.Time         `json:"scanned_at"`
	ScanDurationMS int64             `json:"scan_duration_ms"`
	TTLSeconds     int               `json:"ttl_seconds"`
	Fingerprints   map[string]string `json:"fingerprints"`
}

// Store persists a Registry's scan results to <dir>/last_scan.json and
// <dir>/resources_snapshot.json, and loads them back, adapted from the
// teacher's load/save-with-mkdir JSON pattern generalized with fingerprint
// and TTL freshness checking.
type Store struct {
	dir string
	ttl time.Duration
}

// NewStore returns a Store rooted at dir with the given freshness window.
func NewStore(dir string, ttl time.Duration) *Store {
	return &Store{dir: dir, ttl: ttl}
}

func (s *Store) scanPath() string {
	return filepath.Join(s.dir, "last_scan.json")
}

func (s *Store) snapshotPath() string {
	return filepath.Join(s.dir, "resources_snapshot.json")
}

// Fingerprint returns a fast, non-cryptographic content hash for a file,
// enough to detect change, not to resist collision attacks.
func Fingerprint(content []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(content))
}

// LoadOrScan returns a Registry built from the persisted snapshot if it is
// still fresh (see IsFresh), or calls scan and persists the result if not.
// scan is expected to already know which roots and resource types to walk
// (typically resource.Discover bound via closure).
func (s *Store) LoadOrScan(scan func() ([]*resource.Resource, error)) (*Registry, error) {
	if snapshot, resources, err := s.loadFresh(); err == nil && snapshot != nil {
		reg := New()
		for _, r := range resources {
			reg.Register(r)
		}
		return reg, nil
	}

	start := time.Now()
	resources, err := scan()
	if err != nil {
		return nil, fmt.Errorf("scan resources: %w", err)
	}

	reg := New()
	for _, r := range resources {
		reg.Register(r)
	}

	fingerprints, err := fingerprintFiles(resources)
	if err != nil {
		return nil, err
	}

	snapshot := ScanSnapshot{
		ScannedAt:      time.Now(),
		ScanDurationMS: time.Since(start).Milliseconds(),
		TTLSeconds:     int(s.ttl.Seconds()),
		Fingerprints:   fingerprints,
	}

	if err := s.save(snapshot, resources); err != nil {
		return nil, err
	}

	return reg, nil
}

// IsFresh reports whether the persisted snapshot is still usable: the TTL
// hasn't elapsed and every fingerprinted file's current content still
// matches.
func (s *Store) IsFresh() bool {
	snapshot, err := s.readScan()
	if err != nil {
		return false
	}
	return s.snapshotMatches(snapshot)
}

func (s *Store) snapshotMatches(snapshot *ScanSnapshot) bool {
	if time.Since(snapshot.ScannedAt) >= time.Duration(snapshot.TTLSeconds)*time.Second {
		return false
	}
	for path, want := range snapshot.Fingerprints {
		content, err := os.ReadFile(path)
		if err != nil {
			return false
		}
		if Fingerprint(content) != want {
			return false
		}
	}
	return true
}

func (s *Store) loadFresh() (*ScanSnapshot, []*resource.Resource, error) {
	snapshot, err := s.readScan()
	if err != nil {
		return nil, nil, err
	}
	if !s.snapshotMatches(snapshot) {
		return nil, nil, fmt.Errorf("stale snapshot")
	}

	resources, err := s.readSnapshot()
	if err != nil {
		return nil, nil, err
	}
	return snapshot, resources, nil
}

func (s *Store) readScan() (*ScanSnapshot, error) {
	data, err := os.ReadFile(s.scanPath())
	if err != nil {
		return nil, err
	}
	var snapshot ScanSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parse last_scan.json: %w", err)
	}
	return &snapshot, nil
}

func (s *Store) readSnapshot() ([]*resource.Resource, error) {
	data, err := os.ReadFile(s.snapshotPath())
	if err != nil {
		return nil, err
	}
	var resources []*resource.Resource
	if err := json.Unmarshal(data, &resources); err != nil {
		return nil, fmt.Errorf("parse resources_snapshot.json: %w", err)
	}
	return resources, nil
}

func (s *Store) save(snapshot ScanSnapshot, resources []*resource.Resource) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create registry state dir: %w", err)
	}
	if err := writeJSONAtomic(s.scanPath(), snapshot); err != nil {
		return err
	}
	if err := writeJSONAtomic(s.snapshotPath(), resources); err != nil {
		return err
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s into place: %w", path, err)
	}
	return nil
}

func fingerprintFiles(resources []*resource.Resource) (map[string]string, error) {
	fingerprints := make(map[string]string, len(resources))
	seen := make(map[string]bool)
	for _, r := range resources {
		if r.Path == "" || seen[r.Path] {
			continue
		}
		seen[r.Path] = true
		content, err := os.ReadFile(r.Path)
		if err != nil {
			return nil, fmt.Errorf("fingerprint %s: %w", r.Path, err)
		}
		fingerprints[r.Path] = Fingerprint(content)
	}
	return fingerprints, nil
}

// Invalidate removes the persisted snapshot, forcing the next LoadOrScan
// to rescan.
func (s *Store) Invalidate() error {
	for _, path := range []string{s.scanPath(), s.snapshotPath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("invalidate %s: %w", path, err)
		}
	}
	return nil
}

// Stats summarizes the persisted snapshot's freshness and scan cost.
// Status is one of "cached" (a valid snapshot is in place), "no_cache" (no
// scan has ever been persisted), or "invalid" (a snapshot exists but is
// stale or unreadable).
type Stats struct {
	Status         string    `json:"status"`
	ScannedAt      time.Time `json:"scanned_at,omitempty"`
	ScanDurationMS int64     `json:"scan_duration_ms,omitempty"`
	AgeSeconds     float64   `json:"age_seconds,omitempty"`
	TotalResources int       `json:"total_resources"`
	IsValid        bool      `json:"is_valid"`
}

// GetStats reports on the currently persisted snapshot, if any. A missing
// snapshot is the common first-run case, not an error: it is reported as
// Stats{Status: "no_cache"}.
func (s *Store) GetStats() Stats {
	snapshot, err := s.readScan()
	if err != nil {
		if os.IsNotExist(err) {
			return Stats{Status: "no_cache"}
		}
		return Stats{Status: "invalid"}
	}

	valid := s.snapshotMatches(snapshot)
	status := "cached"
	if !valid {
		status = "invalid"
	}

	total := len(snapshot.Fingerprints)
	if resources, err := s.readSnapshot(); err == nil {
		total = len(resources)
	}

	return Stats{
		Status:         status,
		ScannedAt:      snapshot.ScannedAt,
		ScanDurationMS: snapshot.ScanDurationMS,
		AgeSeconds:     time.Since(snapshot.ScannedAt).Seconds(),
		TotalResources: total,
		IsValid:        valid,
	}
}
