// Command vigireport prints the vigilance outlook for ingested locations,
// straight from the local database. Levels are recomputed from the stored
// daily records on every run; nothing here calls the network.
//
// Usage:
//
//	go run ./cmd/vigireport -db data/meteo.db
//	go run ./cmd/vigireport -db data/meteo.db -location paris-france -days 7 -history
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/vigimeteo/meteo-etl/internal/adapter/store"
	"github.com/vigimeteo/meteo-etl/internal/domain"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorOrange = "\033[1;33m"
	colorRed    = "\033[31m"
)

var noColor bool

func main() {
	dbPath := flag.String("db", "data/meteo.db", "path to the SQLite database")
	location := flag.String("location", "", "report a single location slug (default: all)")
	days := flag.Int("days", 7, "outlook horizon in days")
	history := flag.Bool("history", false, "append climate statistics from archived rows")
	flag.BoolVar(&noColor, "no-color", false, "disable ANSI colors")
	flag.Parse()

	if *days < 1 {
		fmt.Fprintln(os.Stderr, "FATAL: -days must be at least 1")
		os.Exit(1)
	}
	os.Exit(run(*dbPath, *location, *days, *history))
}

func run(dbPath, slug string, days int, history bool) int {
	db, err := store.Open(dbPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open database: %v\n", err)
		return 1
	}
	defer db.Close()

	ctx := context.Background()
	locations, err := selectLocations(ctx, db, slug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	if len(locations) == 0 {
		fmt.Println("Aucune localité en base. Lancez meteod d'abord.")
		return 0
	}

	for _, loc := range locations {
		reportLocation(ctx, db, loc, days, history)
	}

	fmt.Println("Niveaux indicatifs calculés localement, sans valeur d'alerte officielle.")
	return 0
}

func selectLocations(ctx context.Context, db *store.DB, slug string) ([]domain.Location, error) {
	if slug == "" {
		return db.Locations(ctx)
	}
	loc, err := db.Location(ctx, slug)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, fmt.Errorf("location %q not found", slug)
	}
	return []domain.Location{*loc}, nil
}

func reportLocation(ctx context.Context, db *store.DB, loc domain.Location, days int, history bool) {
	fmt.Printf("\n── %s ──\n", loc.Label())

	printCurrent(ctx, db, loc.Slug())

	today := domain.Today()
	rows, err := db.DailyRange(ctx, loc.Slug(), today, today.AddDate(0, 0, days-1))
	if err != nil {
		fmt.Printf("  erreur lecture prévisions: %v\n", err)
		return
	}
	if len(rows) == 0 {
		fmt.Println("  Aucune prévision en base pour la période demandée.")
		return
	}

	ratings := domain.EvaluateDays(rows, domain.DefaultVigilanceRules())
	for i, day := range rows {
		printDay(day, ratings[i])
	}

	worst := domain.WorstRating(ratings)
	fmt.Printf("  Synthèse: %s", colored(worst.Level, worst.Level.Label()))
	if worst.Level > domain.LevelNone {
		fmt.Printf(" le %s (%s)", worst.Date.Format(domain.DateLayout), worst.Reason)
	}
	fmt.Println()

	if worst.Level > domain.LevelNone {
		printRaisedHours(ctx, db, loc.Slug(), today)
	}

	if history {
		printHistory(ctx, db, loc.Slug(), today)
	}
}

func printCurrent(ctx context.Context, db *store.DB, slug string) {
	current, err := db.Current(ctx, slug)
	if err != nil || current == nil {
		return
	}
	visual, err := domain.TranslateWeatherCode(current.WeatherCode, current.IsDay)
	if err != nil {
		visual = domain.WeatherVisual{Label: fmt.Sprintf("code %d", current.WeatherCode), Icon: "❓"}
	}
	fmt.Printf("  Actuellement (%s): %s %s, %.1f°C",
		current.ObservedAt.Format(domain.TimeLayout), visual.Icon, visual.Label, current.Temperature)
	if current.WindSpeed != nil {
		fmt.Printf(", vent %.0f km/h", *current.WindSpeed)
	}
	fmt.Println()
}

func printDay(day domain.DailyRecord, rating domain.VigilanceRating) {
	line := fmt.Sprintf("  %s  %s  %5.1f°C … %5.1f°C  pluie %4.1f mm",
		day.Date.Format(domain.DateLayout),
		colored(rating.Level, badge(rating.Level)),
		day.TemperatureMin, day.TemperatureMax, day.PrecipitationSum)
	if rating.Level > domain.LevelNone {
		line += "  " + rating.Reason
	}
	fmt.Println(line)
}

// printRaisedHours lists the individual hours behind a raised day, over today
// and tomorrow.
func printRaisedHours(ctx context.Context, db *store.DB, slug string, today time.Time) {
	rows, err := db.HourlyRange(ctx, slug, today, today.AddDate(0, 0, 2))
	if err != nil {
		return
	}
	printed := 0
	for _, hour := range rows {
		rating := domain.EvaluateHour(hour, domain.DefaultHourlyRules())
		if rating.Level == domain.LevelNone {
			continue
		}
		if printed == 0 {
			fmt.Println("  Heures à surveiller:")
		}
		if printed == 6 {
			fmt.Println("    ...")
			break
		}
		fmt.Printf("    %s  %s  %s\n",
			hour.Timestamp.Format(domain.TimeLayout),
			colored(rating.Level, badge(rating.Level)),
			rating.Reason)
		printed++
	}
}

// printHistory summarizes the archived year behind today.
func printHistory(ctx context.Context, db *store.DB, slug string, today time.Time) {
	rows, err := db.HistoricalRange(ctx, slug, today.AddDate(-1, 0, 0), today)
	if err != nil {
		fmt.Printf("  erreur lecture archive: %v\n", err)
		return
	}
	if len(rows) == 0 {
		fmt.Println("  Pas d'historique archivé (ARCHIVE_BACKFILL_DAYS=0 ?).")
		return
	}

	maxes := make([]float64, 0, len(rows))
	mins := make([]float64, 0, len(rows))
	for _, r := range rows {
		maxes = append(maxes, r.TemperatureMax)
		mins = append(mins, r.TemperatureMin)
	}
	if stats, ok := domain.ComputeTemperatureStats(maxes); ok {
		fmt.Printf("  Historique (%d jours): max moyen %.1f°C (σ %.1f), record %.1f°C\n",
			stats.Count, stats.Mean, stats.Std, stats.Max)
	}
	if stats, ok := domain.ComputeTemperatureStats(mins); ok {
		fmt.Printf("                         min moyen %.1f°C (σ %.1f), record %.1f°C\n",
			stats.Mean, stats.Std, stats.Min)
	}
	for _, m := range domain.MonthlyMeans(rows) {
		fmt.Printf("    %s  %5.1f°C sur %d jours\n", m.Month.Format("2006-01"), m.Mean, m.Days)
	}
}

func badge(l domain.Level) string {
	switch l {
	case domain.LevelYellow:
		return "[JAUNE ]"
	case domain.LevelOrange:
		return "[ORANGE]"
	case domain.LevelRed:
		return "[ROUGE ]"
	default:
		return "[VERT  ]"
	}
}

func colored(l domain.Level, s string) string {
	if noColor {
		return s
	}
	switch l {
	case domain.LevelYellow:
		return colorYellow + s + colorReset
	case domain.LevelOrange:
		return colorOrange + s + colorReset
	case domain.LevelRed:
		return colorRed + s + colorReset
	default:
		return colorGreen + s + colorReset
	}
}
