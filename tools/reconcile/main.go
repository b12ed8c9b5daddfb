// Command reconcile recomputes every farmer balance from the supply and
// payment documents and reports drift against the stored balance field.
// Balance increments are fire and forget, so a crashed process can leave a
// farmer's balance behind its records; this tool finds and optionally
// repairs that.
package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"gopkg.in/yaml.v3"
)

type config struct {
	DatabaseURL string  `yaml:"database_url"`
	OutDir      string  `yaml:"out_dir"`
	FamilyID    string  `yaml:"family_id"`
	Threshold   float64 `yaml:"threshold"`
	Apply       bool    `yaml:"apply"`
}

type farmerBalance struct {
	FarmerID   string
	FamilyID   string
	Name       string
	Stored     float64
	Supplies   float64
	Payments   float64
	EntryCount int
}

func (b farmerBalance) expected() float64 {
	return b.Supplies - b.Payments
}

func (b farmerBalance) drift() float64 {
	return b.Stored - b.expected()
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile: %v\n", err)
		os.Exit(2)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile: open db: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	balances, err := loadBalances(ctx, db, cfg.FamilyID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile: load balances: %v\n", err)
		os.Exit(1)
	}

	var drifted []farmerBalance
	for _, b := range balances {
		if math.Abs(b.drift()) > cfg.Threshold {
			drifted = append(drifted, b)
		}
	}
	sort.Slice(drifted, func(i, j int) bool {
		return math.Abs(drifted[i].drift()) > math.Abs(drifted[j].drift())
	})

	reportPath, err := writeReport(cfg.OutDir, drifted)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile: write report: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("checked %d farmers, %d drifted (threshold %s)\n",
		len(balances), len(drifted), formatFloat(cfg.Threshold))
	if reportPath != "" {
		fmt.Printf("report written to %s\n", reportPath)
	}

	if cfg.Apply && len(drifted) > 0 {
		applied, err := applyCorrections(ctx, db, drifted)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reconcile: apply: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("applied %d corrections\n", applied)
	}

	if len(drifted) > 0 && !cfg.Apply {
		os.Exit(3)
	}
}

func parseFlags() (config, error) {
	cfg := config{
		DatabaseURL: getenvDefault("DATABASE_URL", os.Getenv("PG_DSN")),
		OutDir:      getenvDefault("RECONCILE_OUT_DIR", "var/reports/reconcile"),
		Threshold:   0.01,
	}
	if path := os.Getenv("RECONCILE_CONFIG"); path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return cfg, err
		}
	}

	var configPath string
	flag.StringVar(&configPath, "config", "", "path to yaml config")
	flag.StringVar(&cfg.DatabaseURL, "db", cfg.DatabaseURL, "postgres connection string")
	flag.StringVar(&cfg.OutDir, "out", cfg.OutDir, "directory for the drift report")
	flag.StringVar(&cfg.FamilyID, "family", cfg.FamilyID, "limit the run to one family")
	flag.Float64Var(&cfg.Threshold, "threshold", cfg.Threshold, "absolute drift below this is ignored")
	flag.BoolVar(&cfg.Apply, "apply", cfg.Apply, "write corrective increments for drifted balances")
	flag.Parse()

	if configPath != "" {
		if err := loadYAML(configPath, &cfg); err != nil {
			return cfg, err
		}
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("database url required (use -db or DATABASE_URL)")
	}
	return cfg, nil
}

func loadYAML(path string, cfg *config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// loadBalances joins the three collections in one pass: stored balances
// from farmer documents, expected balances recomputed from completed
// supply entries and payments. Drafts never count.
func loadBalances(ctx context.Context, db *sql.DB, familyID string) ([]farmerBalance, error) {
	query := `
SELECT
	f.id,
	f.doc ->> 'familyId',
	COALESCE(f.doc ->> 'name', ''),
	COALESCE((f.doc ->> 'balance')::numeric, 0),
	COALESCE(s.total, 0),
	COALESCE(p.total, 0),
	COALESCE(s.entries, 0) + COALESCE(p.entries, 0)
FROM documents f
LEFT JOIN (
	SELECT doc ->> 'farmerId' AS farmer_id,
	       SUM((doc ->> 'amount')::numeric) AS total,
	       COUNT(*) AS entries
	FROM documents
	WHERE collection = 'supply_entries' AND doc ->> 'status' = 'completed'
	GROUP BY 1
) s ON s.farmer_id = f.id
LEFT JOIN (
	SELECT doc ->> 'farmerId' AS farmer_id,
	       SUM((doc ->> 'amount')::numeric) AS total,
	       COUNT(*) AS entries
	FROM documents
	WHERE collection = 'payments'
	GROUP BY 1
) p ON p.farmer_id = f.id
WHERE f.collection = 'farmers'`
	args := []any{}
	if familyID != "" {
		args = append(args, familyID)
		query += ` AND f.doc ->> 'familyId' = $1`
	}
	query += ` ORDER BY f.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []farmerBalance
	for rows.Next() {
		var b farmerBalance
		if err := rows.Scan(&b.FarmerID, &b.FamilyID, &b.Name,
			&b.Stored, &b.Supplies, &b.Payments, &b.EntryCount); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func writeReport(outDir string, drifted []farmerBalance) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outDir, fmt.Sprintf("drift-%s.csv", time.Now().UTC().Format("20060102-150405")))
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{"farmerId", "familyId", "name", "storedBalance", "supplies", "payments", "expectedBalance", "drift", "records"}
	if err := writer.Write(header); err != nil {
		return "", err
	}
	for _, b := range drifted {
		record := []string{
			b.FarmerID,
			b.FamilyID,
			b.Name,
			formatFloat(b.Stored),
			formatFloat(b.Supplies),
			formatFloat(b.Payments),
			formatFloat(b.expected()),
			formatFloat(b.drift()),
			strconv.Itoa(b.EntryCount),
		}
		if err := writer.Write(record); err != nil {
			return "", err
		}
	}
	writer.Flush()
	return path, writer.Error()
}

// applyCorrections issues the same jsonb_set increment the service uses,
// with the drift negated. Running the tool twice is safe: a corrected
// farmer has zero drift on the second pass.
func applyCorrections(ctx context.Context, db *sql.DB, drifted []farmerBalance) (int, error) {
	applied := 0
	for _, b := range drifted {
		result, err := db.ExecContext(ctx, `
UPDATE documents
SET doc = jsonb_set(doc, ARRAY['balance'], to_jsonb(COALESCE((doc ->> 'balance')::numeric, 0) + $2::numeric)),
	updated_at = now()
WHERE collection = 'farmers' AND id = $1`,
			b.FarmerID, -b.drift())
		if err != nil {
			return applied, fmt.Errorf("farmer %s: %w", b.FarmerID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return applied, err
		}
		if affected > 0 {
			applied++
			fmt.Printf("corrected %s (%s): %s -> %s\n",
				b.FarmerID, b.Name, formatFloat(b.Stored), formatFloat(b.expected()))
		}
	}
	return applied, nil
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
