// Command proxy-import ingests a vendor proxy export (JSON array) into the
// proxy pool, upserting by proxy id.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/robgallardof/multig/internal/database"
	"github.com/robgallardof/multig/internal/domain"
	"github.com/robgallardof/multig/internal/logging"
)

type vendorProxy struct {
	ID          string `json:"id"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Label       string `json:"label"`
	CountryCode string `json:"country_code"`
	CityName    string `json:"city_name"`
	Source      string `json:"source"`
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <export.json>\n", os.Args[0])
		os.Exit(2)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	logging.InitLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	records, err := readExport(os.Args[1])
	if err != nil {
		slog.Error("Failed to read export", "path", os.Args[1], "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, databaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	proxies := database.NewProxyRepo(pool)
	if err := proxies.UpsertMany(ctx, records); err != nil {
		slog.Error("Failed to import proxies", "error", err)
		os.Exit(1)
	}

	counts, err := proxies.Counts(ctx)
	if err != nil {
		slog.Error("Failed to read pool counts", "error", err)
		os.Exit(1)
	}

	fmt.Printf("imported %d proxies (pool: %d total, %d available)\n",
		len(records), counts.Total, counts.Available)
}

func readExport(path string) ([]domain.Proxy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading export file: %w", err)
	}

	var raw []vendorProxy
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing export file: %w", err)
	}

	records := make([]domain.Proxy, 0, len(raw))
	for i, r := range raw {
		if r.ID == "" || r.Host == "" || r.Port == 0 {
			return nil, fmt.Errorf("record %d: missing id, host or port", i)
		}
		records = append(records, domain.Proxy{
			ID:          r.ID,
			Host:        r.Host,
			Port:        r.Port,
			Label:       r.Label,
			CountryCode: r.CountryCode,
			CityName:    r.CityName,
			Source:      r.Source,
		})
	}
	return records, nil
}
