package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var (
	// ErrDuplicateID is returned when a freshly allocated release id
	// already exists. Structurally impossible under monotonic id
	// derivation, but checked anyway.
	ErrDuplicateID = errors.New("duplicate release id")

	// ErrInvalidTransition is returned when SetStatus requests a status
	// not reachable from the current one.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotHealthy is returned when promoting a release whose status
	// is not Healthy.
	ErrNotHealthy = errors.New("release is not healthy")

	// ErrProtectedRelease is returned when deleting the release the
	// current pointer references.
	ErrProtectedRelease = errors.New("release is referenced by the current pointer")

	// ErrReleaseNotFound is returned when the requested release id does
	// not exist in the store.
	ErrReleaseNotFound = errors.New("release not found")

	// ErrSharedConfigMissing is returned by Materialize when the shared
	// configuration source does not exist.
	ErrSharedConfigMissing = errors.New("shared config source missing")
)

const (
	releasesDirName = "releases"
	currentLinkName = "current"
	sharedDirName   = "shared"
	recordFileName  = "release.json"

	idTimeLayout = "20060102150405"
)

// Store is the contract the orchestration layer consumes.
//
// # Description
//
// A Store owns release records and the atomic "current" indirection.
// It never starts or stops runtimes; it only tracks state and the
// materialized per-release configuration on disk.
//
// # Thread Safety
//
// Implementations need not be safe for concurrent mutation; callers
// hold the exclusive deployment lock around all mutating operations.
// Current() must remain safe against a concurrent Promote() from
// another process (the atomicity contract of the pointer).
type Store interface {
	// Create allocates a fresh ordinal id strictly greater than all
	// existing ids, creates the release directory, and persists the
	// record with status Pending.
	Create(artifactRef string) (*Release, error)

	// Get loads a single release record by id.
	Get(id string) (*Release, error)

	// SetStatus applies a forward lifecycle transition and persists it.
	SetStatus(id string, status Status) error

	// Promote atomically rewrites the current pointer to id.
	// The release must be Healthy.
	Promote(id string) error

	// Current returns the release referenced by the current pointer,
	// or (nil, nil) when the pointer is unset.
	Current() (*Release, error)

	// List returns all releases ordered oldest first.
	List() ([]*Release, error)

	// Delete removes a release directory. The current release is
	// protected.
	Delete(id string) error

	// Materialize renders the release's runtime configuration: the
	// shared config source copied into the release directory plus a
	// .env binding the artifact reference.
	Materialize(id string, artifactRef string) error

	// ReleaseDir returns the absolute path of a release directory.
	ReleaseDir(id string) string
}

// FilesystemStore implements Store on a plain directory tree.
//
// See the package documentation for the on-disk layout. All record
// writes go through a temp-file-then-rename so a crash mid-write never
// leaves a truncated release.json.
type FilesystemStore struct {
	root      string
	sharedDir string

	// now is overridable for id-generation tests.
	now func() time.Time
}

// FilesystemStoreConfig configures a FilesystemStore.
type FilesystemStoreConfig struct {
	// Root is the deployment target root directory. Required.
	Root string

	// SharedDir is the release-independent configuration source.
	// Default: <Root>/shared
	SharedDir string
}

// NewFilesystemStore creates a store rooted at cfg.Root.
//
// The releases directory is created eagerly so that List on a fresh
// target returns an empty slice rather than an error.
func NewFilesystemStore(cfg FilesystemStoreConfig) (*FilesystemStore, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("store root is required")
	}
	if cfg.SharedDir == "" {
		cfg.SharedDir = filepath.Join(cfg.Root, sharedDirName)
	}

	if err := os.MkdirAll(filepath.Join(cfg.Root, releasesDirName), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create releases directory: %w", err)
	}

	return &FilesystemStore{
		root:      cfg.Root,
		sharedDir: cfg.SharedDir,
		now:       time.Now,
	}, nil
}

// Create allocates a release id, creates its directory, and writes the
// Pending record.
func (s *FilesystemStore) Create(artifactRef string) (*Release, error) {
	if artifactRef == "" {
		return nil, fmt.Errorf("artifact reference is required")
	}

	existing, err := s.listIDs()
	if err != nil {
		return nil, err
	}

	id, err := s.nextID(existing)
	if err != nil {
		return nil, err
	}

	dir := s.ReleaseDir(id)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		return nil, fmt.Errorf("failed to create release directory: %w", err)
	}

	rel := &Release{
		ID:          id,
		ArtifactRef: artifactRef,
		CreatedAt:   s.now().UTC(),
		Status:      StatusPending,
	}
	if err := s.writeRecord(rel); err != nil {
		return nil, err
	}

	return rel, nil
}

// Get loads a release record by id.
func (s *FilesystemStore) Get(id string) (*Release, error) {
	return s.readRecord(id)
}

// SetStatus applies a forward transition and persists the record.
func (s *FilesystemStore) SetStatus(id string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}

	rel, err := s.readRecord(id)
	if err != nil {
		return err
	}

	if !rel.Status.CanTransition(status) {
		return fmt.Errorf("%w: %s -> %s for release %s", ErrInvalidTransition, rel.Status, status, id)
	}

	rel.Status = status
	return s.writeRecord(rel)
}

// Promote atomically swaps the current pointer to id.
//
// The swap is symlink-to-temp-name followed by rename. Rename over an
// existing path is atomic on POSIX, so a concurrent reader resolves
// either the old target or the new one, never a partial state.
func (s *FilesystemStore) Promote(id string) error {
	rel, err := s.readRecord(id)
	if err != nil {
		return err
	}
	if !rel.Promotable() {
		return fmt.Errorf("%w: release %s is %s", ErrNotHealthy, id, rel.Status)
	}

	target := filepath.Join(releasesDirName, id)
	tmp := filepath.Join(s.root, fmt.Sprintf(".%s.tmp-%d", currentLinkName, os.Getpid()))

	// Stale temp link from a crashed prior run.
	os.Remove(tmp)

	if err := os.Symlink(target, tmp); err != nil {
		return fmt.Errorf("failed to stage current pointer: %w", err)
	}
	if err := os.Rename(tmp, s.currentPath()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to swap current pointer: %w", err)
	}

	return nil
}

// Current resolves the current pointer, or returns (nil, nil) if unset.
func (s *FilesystemStore) Current() (*Release, error) {
	target, err := os.Readlink(s.currentPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read current pointer: %w", err)
	}

	return s.readRecord(filepath.Base(target))
}

// List returns all releases ordered oldest first.
func (s *FilesystemStore) List() ([]*Release, error) {
	ids, err := s.listIDs()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	releases := make([]*Release, 0, len(ids))
	for _, id := range ids {
		rel, err := s.readRecord(id)
		if err != nil {
			return nil, err
		}
		releases = append(releases, rel)
	}
	return releases, nil
}

// Delete removes a release directory. The current release is protected
// for any retention policy.
func (s *FilesystemStore) Delete(id string) error {
	cur, err := s.Current()
	if err != nil {
		return err
	}
	if cur != nil && cur.ID == id {
		return fmt.Errorf("%w: %s", ErrProtectedRelease, id)
	}

	dir := s.ReleaseDir(id)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrReleaseNotFound, id)
		}
		return fmt.Errorf("failed to stat release %s: %w", id, err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete release %s: %w", id, err)
	}
	return nil
}

// Materialize copies the shared config source into the release
// directory and writes the .env binding the artifact reference.
//
// The shared source is mounted read-only into every release in the
// sense that materialization copies it; later edits to shared/ never
// mutate an existing release.
func (s *FilesystemStore) Materialize(id string, artifactRef string) error {
	if _, err := os.Stat(s.sharedDir); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSharedConfigMissing, s.sharedDir)
		}
		return fmt.Errorf("failed to stat shared config: %w", err)
	}

	dir := s.ReleaseDir(id)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrReleaseNotFound, id)
		}
		return err
	}

	if err := copyTree(s.sharedDir, dir); err != nil {
		return fmt.Errorf("failed to materialize config for %s: %w", id, err)
	}

	env := fmt.Sprintf("SLIPWAY_RELEASE_ID=%s\nSLIPWAY_IMAGE=%s\n", id, artifactRef)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o644); err != nil {
		return fmt.Errorf("failed to write release env: %w", err)
	}

	return nil
}

// ReleaseDir returns the absolute path of a release directory.
func (s *FilesystemStore) ReleaseDir(id string) string {
	return filepath.Join(s.root, releasesDirName, id)
}

// SharedDir returns the shared configuration source path.
func (s *FilesystemStore) SharedDir() string {
	return s.sharedDir
}

func (s *FilesystemStore) currentPath() string {
	return filepath.Join(s.root, currentLinkName)
}

// nextID derives a fresh id strictly greater than every existing id.
//
// The base is the current UTC second. If that does not sort after the
// newest existing id (same second, or clock skew), suffixes -01..-99
// on the newest base are tried instead, so ordering never regresses.
func (s *FilesystemStore) nextID(existing []string) (string, error) {
	candidate := s.now().UTC().Format(idTimeLayout)

	last := ""
	if len(existing) > 0 {
		sorted := append([]string(nil), existing...)
		sort.Strings(sorted)
		last = sorted[len(sorted)-1]
	}

	if last == "" || candidate > last {
		return candidate, nil
	}

	base := last
	if i := strings.IndexByte(base, '-'); i >= 0 {
		base = base[:i]
	}
	if candidate < base {
		// Clock moved backwards; keep ordering by deriving from the
		// newest existing base.
		candidate = base
	}

	taken := make(map[string]bool, len(existing))
	for _, id := range existing {
		taken[id] = true
	}

	for i := 1; i < 100; i++ {
		next := fmt.Sprintf("%s-%02d", candidate, i)
		if !taken[next] && next > last {
			return next, nil
		}
	}

	return "", fmt.Errorf("%w: exhausted suffixes for base %s", ErrDuplicateID, candidate)
}

func (s *FilesystemStore) listIDs() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, releasesDirName))
	if err != nil {
		return nil, fmt.Errorf("failed to read releases directory: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}

func (s *FilesystemStore) recordPath(id string) string {
	return filepath.Join(s.ReleaseDir(id), recordFileName)
}

func (s *FilesystemStore) readRecord(id string) (*Release, error) {
	data, err := os.ReadFile(s.recordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrReleaseNotFound, id)
		}
		return nil, fmt.Errorf("failed to read release record %s: %w", id, err)
	}

	var rel Release
	if err := json.Unmarshal(data, &rel); err != nil {
		return nil, fmt.Errorf("corrupt release record %s: %w", id, err)
	}
	if _, err := ParseStatus(string(rel.Status)); err != nil {
		return nil, fmt.Errorf("corrupt release record %s: %w", id, err)
	}

	return &rel, nil
}

func (s *FilesystemStore) writeRecord(rel *Release) error {
	data, err := json.MarshalIndent(rel, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode release record: %w", err)
	}

	path := s.recordPath(rel.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write release record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit release record: %w", err)
	}
	return nil
}

// copyTree copies src into dst recursively. Symlinks inside the shared
// source are not followed; regular files and directories only.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}

		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Compile-time interface satisfaction check
var _ Store = (*FilesystemStore)(nil)
