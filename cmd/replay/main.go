// Command replay re-runs the parse, clean and upsert stages over raw payload
// files already on disk. After a parser or cleaning fix, replaying brings the
// database back in line with everything ever fetched, without touching the
// network. Upserts are idempotent, so replaying on top of live data is safe.
//
// Usage:
//
//	go run ./cmd/replay -raw data/raw -db data/meteo.db
//	go run ./cmd/replay -raw data/raw -db data/meteo.db -location paris-france -endpoint archive
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/vigimeteo/meteo-etl/internal/adapter/store"
	"github.com/vigimeteo/meteo-etl/internal/observability"
	"github.com/vigimeteo/meteo-etl/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	rawDir := flag.String("raw", "data/raw", "directory holding raw payload files")
	dbPath := flag.String("db", "data/meteo.db", "path to the SQLite database")
	location := flag.String("location", "", "only replay payloads for this location slug")
	endpoint := flag.String("endpoint", "", "only replay payloads from this endpoint (forecast or archive)")
	flag.Parse()

	logger := observability.NewLogger("warn", "text")
	metrics := observability.NewMetrics()

	rawStore, err := store.NewRaw(*rawDir, logger)
	if err != nil {
		return fmt.Errorf("open raw payload dir: %w", err)
	}
	db, err := store.Open(*dbPath, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	names, err := rawStore.List()
	if err != nil {
		return fmt.Errorf("list raw payloads: %w", err)
	}

	// Replay never fetches and never exports; the stored rows are the point.
	ingestor := pipeline.NewIngestor(nil, rawStore, db, nil, logger, metrics)

	ctx := context.Background()
	var replayed, skipped, failed int
	var hourly, daily, historical, dropped int

	for _, name := range names {
		p, err := rawStore.Read(name)
		if err != nil {
			log.Printf("%s: unreadable: %v", name, err)
			failed++
			continue
		}
		if (*location != "" && p.LocationSlug != *location) ||
			(*endpoint != "" && p.Endpoint != *endpoint) {
			skipped++
			continue
		}

		res, err := ingestor.Replay(ctx, p)
		if err != nil {
			log.Printf("%s: %v", name, err)
			failed++
			continue
		}
		replayed++
		hourly += res.HourlyRows
		daily += res.DailyRows
		historical += res.HistoricalRows
		dropped += res.RowsDropped
		log.Printf("%s: %d hourly, %d daily, %d historical, %d dropped",
			name, res.HourlyRows, res.DailyRows, res.HistoricalRows, res.RowsDropped)
	}

	log.Printf("replayed %d payload(s) (%d skipped, %d failed): %d hourly, %d daily, %d historical rows upserted, %d dropped",
		replayed, skipped, failed, hourly, daily, historical, dropped)
	if failed > 0 {
		return fmt.Errorf("%d payload(s) failed to replay", failed)
	}
	return nil
}
