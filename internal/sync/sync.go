// Package sync reconciles registered deck sources into the card store.
package sync

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/conorfennell/spacedrep/internal/deck"
	"github.com/conorfennell/spacedrep/internal/gitsource"
	"github.com/conorfennell/spacedrep/internal/knol"
	"github.com/conorfennell/spacedrep/internal/parser"
	"github.com/conorfennell/spacedrep/internal/storage"
)

// FetchFunc brings a local checkout of a git URL up to date.
type FetchFunc func(ctx context.Context, url, localPath string) error

// Syncer manages sources and imports their cards through the deck service.
type Syncer struct {
	db       *storage.DB
	cards    *deck.Service
	reposDir string
	fetch    FetchFunc
}

// New creates a Syncer that checks git sources out under reposDir.
func New(db *storage.DB, cards *deck.Service, reposDir string) *Syncer {
	return &Syncer{
		db:       db,
		cards:    cards,
		reposDir: reposDir,
		fetch: func(ctx context.Context, url, localPath string) error {
			return gitsource.Sync(ctx, url, localPath, io.Discard)
		},
	}
}

// WithFetch replaces the git fetcher.
func (s *Syncer) WithFetch(fetch FetchFunc) *Syncer {
	s.fetch = fetch
	return s
}

// Result summarises one source's reconciliation.
type Result struct {
	SourceID int64    `json:"source_id"`
	Path     string   `json:"path"`
	Parsed   int      `json:"parsed"`
	Inserted int      `json:"inserted"`
	Removed  int      `json:"removed"`
	Errors   []string `json:"errors,omitempty"`
}

// AddSource registers a local directory or git URL. Registering the same
// location twice returns the existing source. Locations that cannot be
// synced are rejected with deck.ErrInvalidSource.
func (s *Syncer) AddSource(ctx context.Context, location string) (*storage.Source, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("%w: location is empty", deck.ErrInvalidSource)
	}

	sourceType := storage.SourceLocal
	if isGitURL(location) {
		sourceType = storage.SourceGit
		if _, err := gitUrlToLocalPath(s.reposDir, location); err != nil {
			return nil, fmt.Errorf("%w: %v", deck.ErrInvalidSource, err)
		}
	} else {
		abs, err := filepath.Abs(location)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to resolve path %s: %v", deck.ErrInvalidSource, location, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", deck.ErrInvalidSource, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s is not a directory", deck.ErrInvalidSource, abs)
		}
		location = abs
	}

	existing, err := s.db.FindSourceByPath(ctx, location)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	id, err := s.db.InsertSource(ctx, location, sourceType)
	if err != nil {
		return nil, err
	}
	slog.Info("Source added", "id", id, "type", sourceType, "path", location)
	return &storage.Source{ID: id, Path: location, Type: sourceType}, nil
}

// ListSources returns every registered source.
func (s *Syncer) ListSources(ctx context.Context) ([]storage.Source, error) {
	return s.db.GetAllSources(ctx)
}

// RemoveSource unregisters a source and deletes the cards imported from it.
func (s *Syncer) RemoveSource(ctx context.Context, id int64) error {
	ok, err := s.db.DeleteSource(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", deck.ErrSourceNotFound, id)
	}
	slog.Info("Source removed", "id", id)
	return nil
}

// RunSync iterates over all sources and reconciles them. A failing source
// is logged and reported; the others still sync.
func (s *Syncer) RunSync(ctx context.Context) ([]Result, error) {
	slog.Info("Starting sync process for all sources...")
	sources, err := s.db.GetAllSources(ctx)
	if err != nil {
		return nil, err
	}

	if len(sources) == 0 {
		slog.Info("No sources configured. Add one with: spacedrep source add <path/or/url.git>")
		return nil, nil
	}

	results := make([]Result, 0, len(sources))
	for _, source := range sources {
		res, err := s.SyncSource(ctx, source)
		if err != nil {
			slog.Error("Error syncing source", "id", source.ID, "path", source.Path, "error", err)
			res = Result{SourceID: source.ID, Path: source.Path, Errors: []string{err.Error()}}
		}
		results = append(results, res)
	}
	slog.Info("Sync process complete.")
	return results, nil
}

// SyncSource reconciles a single source, fetching it first when it is a git URL.
func (s *Syncer) SyncSource(ctx context.Context, source storage.Source) (Result, error) {
	slog.Info("Syncing source", "id", source.ID, "type", source.Type, "path", source.Path)

	dir := source.Path
	if source.Type == storage.SourceGit {
		localRepoPath, err := gitUrlToLocalPath(s.reposDir, source.Path)
		if err != nil {
			return Result{}, err
		}
		if err := os.MkdirAll(filepath.Dir(localRepoPath), 0o755); err != nil {
			return Result{}, fmt.Errorf("failed to create repos directory: %w", err)
		}
		if err := s.fetch(ctx, source.Path, localRepoPath); err != nil {
			return Result{}, err
		}
		dir = localRepoPath
	}
	return s.reconcile(ctx, source, dir)
}

func (s *Syncer) reconcile(ctx context.Context, source storage.Source, dir string) (Result, error) {
	res := Result{SourceID: source.ID, Path: source.Path}
	foundCardHashes := make(map[string]bool)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		fileCards, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("parsing %s: %v", path, parseErr))
		}
		for _, card := range fileCards {
			hash := knol.Hash(card.Content)
			res.Parsed++
			if foundCardHashes[hash] {
				continue
			}
			foundCardHashes[hash] = true

			existing, err := s.db.FindCardByHash(ctx, hash)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			slog.Info("New card found, inserting...", "hash", hash)
			if _, err := s.cards.ImportCard(ctx, card.Content, card.Tags, source.ID); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("db insert for %s: %v", hash, err))
				continue
			}
			res.Inserted++
		}
		return nil
	})
	if walkErr != nil {
		return res, fmt.Errorf("failed to walk directory %s: %w", dir, walkErr)
	}

	dbCards, err := s.db.GetCardsBySourceID(ctx, source.ID)
	if err != nil {
		return res, err
	}
	for _, dbCard := range dbCards {
		if foundCardHashes[dbCard.Hash] {
			continue
		}
		slog.Info("Orphaned card, deleting", "hash", dbCard.Hash)
		if _, err := s.db.DeleteCardByID(ctx, dbCard.ID); err != nil {
			slog.Warn("Failed to delete orphaned card", "id", dbCard.ID, "error", err)
			continue
		}
		res.Removed++
	}

	if err := s.db.UpdateSourceLastScanned(ctx, source.ID, s.cards.Now()); err != nil {
		slog.Warn("Failed to update last scanned for source", "source_id", source.ID, "error", err)
	}

	slog.Info("reconciliation complete",
		"path", source.Path,
		"parsed_cards", res.Parsed,
		"inserted", res.Inserted,
		"orphaned_deleted", res.Removed,
		"errors", len(res.Errors),
	)
	return res, nil
}

// isGitURL reports whether location names a remote repository, either as a
// URL with a host or in scp form (user@host:path).
func isGitURL(location string) bool {
	if u, err := url.Parse(location); err == nil && u.Host != "" {
		switch u.Scheme {
		case "http", "https", "ssh", "git":
			return true
		}
		return false
	}
	return isSCPLike(location)
}

func isSCPLike(location string) bool {
	if strings.Contains(location, "://") || filepath.IsAbs(location) {
		return false
	}
	at := strings.Index(location, "@")
	colon := strings.Index(location, ":")
	return at > 0 && colon > at+1 && colon < len(location)-1
}

// gitUrlToLocalPath maps a repository URL to <baseDir>/<host>/<path>.
func gitUrlToLocalPath(baseDir, repoURL string) (string, error) {
	var host, repoPath string
	if u, err := url.Parse(repoURL); err == nil && u.Host != "" {
		switch u.Scheme {
		case "http", "https", "ssh", "git":
			host, repoPath = u.Hostname(), u.Path
		}
	} else if isSCPLike(repoURL) {
		userHost, p, _ := strings.Cut(repoURL, ":")
		_, host, _ = strings.Cut(userHost, "@")
		repoPath = p
	}
	repoPath = strings.TrimSuffix(strings.Trim(repoPath, "/"), ".git")
	if host == "" || repoPath == "" {
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	localPath := filepath.Join(baseDir, host, repoPath)
	rel, err := filepath.Rel(filepath.Join(baseDir, host), localPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("git URL %s escapes the repos directory", repoURL)
	}
	return localPath, nil
}
