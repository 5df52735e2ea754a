// Package catalogimport loads library, episode, and user records from a JSON
// export into the catalog database the party service reads from.
package catalogimport

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/soundleaf/soundleaf/internal/services/catalog/storage"
	storagesqlite "github.com/soundleaf/soundleaf/internal/services/catalog/storage/sqlite"
)

// Config holds configuration for the catalog importer.
type Config struct {
	Path   string
	DBPath string
	DryRun bool
}

// ParseConfig parses CLI flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{
		DBPath: filepath.Join("data", "catalog.db"),
	}

	fs.StringVar(&cfg.Path, "path", "", "catalog export JSON file")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "catalog database path")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "validate without writing to the database")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.Path) == "" {
		return Config{}, errors.New("path is required")
	}
	return cfg, nil
}

// catalogWriter is the subset of the catalog store the importer writes with.
type catalogWriter interface {
	PutLibraryItem(ctx context.Context, record storage.LibraryItemRecord) error
	PutEpisode(ctx context.Context, record storage.EpisodeRecord) error
	PutUser(ctx context.Context, record storage.UserRecord) error
}

// exportPayload mirrors the JSON export layout.
type exportPayload struct {
	LibraryItems []libraryItemPayload `json:"libraryItems"`
	Episodes     []episodePayload     `json:"episodes"`
	Users        []userPayload        `json:"users"`
}

type libraryItemPayload struct {
	ID          string   `json:"id"`
	LibraryID   string   `json:"libraryId"`
	MediaType   string   `json:"mediaType"`
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	CoverPath   string   `json:"coverPath"`
	DurationSec *float64 `json:"durationSec"`
}

type episodePayload struct {
	ID            string   `json:"id"`
	LibraryItemID string   `json:"libraryItemId"`
	Title         string   `json:"title"`
	DurationSec   *float64 `json:"durationSec"`
}

type userPayload struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	IsActive     bool     `json:"isActive"`
	AllLibraries bool     `json:"allLibraries"`
	LibraryIDs   []string `json:"libraryIds"`
}

// Run executes the importer using the provided Config.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if out == nil {
		out = io.Discard
	}

	payload, err := readExport(cfg.Path)
	if err != nil {
		return err
	}
	if err := validateExport(payload); err != nil {
		return err
	}

	if cfg.DryRun {
		fmt.Fprintf(out, "validated %d items, %d episodes, %d users (dry run)\n",
			len(payload.LibraryItems), len(payload.Episodes), len(payload.Users))
		return nil
	}

	store, err := storagesqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open catalog store: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := importExport(ctx, store, payload); err != nil {
		return err
	}
	fmt.Fprintf(out, "imported %d items, %d episodes, %d users\n",
		len(payload.LibraryItems), len(payload.Episodes), len(payload.Users))
	return nil
}

func readExport(path string) (exportPayload, error) {
	file, err := os.Open(path)
	if err != nil {
		return exportPayload{}, fmt.Errorf("open export: %w", err)
	}
	defer func() { _ = file.Close() }()

	var payload exportPayload
	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		return exportPayload{}, fmt.Errorf("decode export: %w", err)
	}
	return payload, nil
}

func validateExport(payload exportPayload) error {
	itemIDs := make(map[string]struct{}, len(payload.LibraryItems))
	for _, item := range payload.LibraryItems {
		if strings.TrimSpace(item.ID) == "" {
			return errors.New("library item id is required")
		}
		if strings.TrimSpace(item.LibraryID) == "" {
			return fmt.Errorf("library item %s: library id is required", item.ID)
		}
		if _, dup := itemIDs[item.ID]; dup {
			return fmt.Errorf("duplicate library item id %s", item.ID)
		}
		itemIDs[item.ID] = struct{}{}
	}
	for _, episode := range payload.Episodes {
		if strings.TrimSpace(episode.ID) == "" {
			return errors.New("episode id is required")
		}
		if _, ok := itemIDs[episode.LibraryItemID]; !ok {
			return fmt.Errorf("episode %s: unknown library item %s", episode.ID, episode.LibraryItemID)
		}
	}
	userIDs := make(map[string]struct{}, len(payload.Users))
	for _, user := range payload.Users {
		if strings.TrimSpace(user.ID) == "" {
			return errors.New("user id is required")
		}
		if strings.TrimSpace(user.Username) == "" {
			return fmt.Errorf("user %s: username is required", user.ID)
		}
		if _, dup := userIDs[user.ID]; dup {
			return fmt.Errorf("duplicate user id %s", user.ID)
		}
		userIDs[user.ID] = struct{}{}
	}
	return nil
}

func importExport(ctx context.Context, store catalogWriter, payload exportPayload) error {
	for _, item := range payload.LibraryItems {
		record := storage.LibraryItemRecord{
			ID:        item.ID,
			LibraryID: item.LibraryID,
			MediaType: item.MediaType,
			Title:     item.Title,
			Author:    item.Author,
			CoverPath: item.CoverPath,
			Duration:  item.DurationSec,
		}
		if err := store.PutLibraryItem(ctx, record); err != nil {
			return fmt.Errorf("put library item %s: %w", item.ID, err)
		}
	}
	for _, episode := range payload.Episodes {
		record := storage.EpisodeRecord{
			ID:            episode.ID,
			LibraryItemID: episode.LibraryItemID,
			Title:         episode.Title,
			Duration:      episode.DurationSec,
		}
		if err := store.PutEpisode(ctx, record); err != nil {
			return fmt.Errorf("put episode %s: %w", episode.ID, err)
		}
	}
	for _, user := range payload.Users {
		record := storage.UserRecord{
			ID:           user.ID,
			Username:     user.Username,
			IsActive:     user.IsActive,
			AllLibraries: user.AllLibraries,
			LibraryIDs:   append([]string{}, user.LibraryIDs...),
		}
		if err := store.PutUser(ctx, record); err != nil {
			return fmt.Errorf("put user %s: %w", user.ID, err)
		}
	}
	return nil
}
