package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"invoicecam/internal/config"
	"invoicecam/internal/model"
	"invoicecam/internal/repository"
	"invoicecam/internal/repository/sqlite"
	"invoicecam/internal/service/storage"
)

func main() {
	cfg := config.Load()
	snapshotsDir := flag.String("snapshots", cfg.SnapshotDirectory, "Directory containing snapshots")
	dbPath := flag.String("db", cfg.DatabasePath, "Database path")
	flag.Parse()

	fmt.Printf("Indexing snapshots from %s into database %s\n", *snapshotsDir, *dbPath)

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	inserted, skipped, err := indexSnapshots(*snapshotsDir, sqlite.NewSnapshotRepository(db))
	if err != nil {
		log.Fatalf("Failed to index snapshots: %v", err)
	}

	fmt.Printf("Indexed %d snapshots, skipped %d\n", inserted, skipped)
}

// indexSnapshots records every snapshot file in dir that the repository does
// not know yet. Files whose names do not parse are skipped.
func indexSnapshots(dir string, repo repository.SnapshotRepository) (int, int, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("read snapshots directory: %w", err)
	}

	inserted, skipped := 0, 0
	for _, file := range files {
		if file.IsDir() || !strings.EqualFold(filepath.Ext(file.Name()), ".jpg") {
			continue
		}

		existing, err := repo.GetByFilename(file.Name())
		if err != nil {
			return inserted, skipped, err
		}
		if existing != nil {
			skipped++
			continue
		}

		timestamp, session, tonaj, err := storage.ParseSnapshotFilename(file.Name())
		if err != nil {
			log.Printf("Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}

		info, err := file.Info()
		if err != nil {
			log.Printf("Failed to get info for %s: %v", file.Name(), err)
			skipped++
			continue
		}

		_, err = repo.Insert(&model.Snapshot{
			Filename:  file.Name(),
			SessionID: session,
			Tonaj:     tonaj,
			Timestamp: timestamp,
			FilePath:  filepath.Join(dir, file.Name()),
			FileSize:  info.Size(),
		})
		if err != nil {
			return inserted, skipped, err
		}
		inserted++
	}

	return inserted, skipped, nil
}
