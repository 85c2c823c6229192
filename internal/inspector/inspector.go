// Package inspector summarizes a cutout directory: the monthly compound
// files, their row counts, variables and time coverage.
package inspector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"
)

var monthFileRegex = regexp.MustCompile(`^(\d{6})\.parquet$`)

type monthSummary struct {
	stem     string
	path     string
	rowCount int64
	varCount int64
	minTime  sql.NullInt64
	maxTime  sql.NullInt64
	statsErr error
}

// InspectCutout prints a per-month summary of the compound files in dir.
// Files that do not follow the canonical YYYYMM naming are reported and
// skipped.
func InspectCutout(ctx context.Context, logger *slog.Logger, dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	if err != nil {
		return fmt.Errorf("scan cutout directory %s: %w", dir, err)
	}
	if len(files) == 0 {
		logger.Info("no parquet files found", slog.String("dir", dir))
		return nil
	}

	var months []*monthSummary
	var strayErr error
	for _, fp := range files {
		m := monthFileRegex.FindStringSubmatch(filepath.Base(fp))
		if m == nil {
			logger.Warn("skipping file with non-canonical name", slog.String("file", filepath.Base(fp)))
			strayErr = errors.Join(strayErr, fmt.Errorf("unexpected file %s in cutout directory", filepath.Base(fp)))
			continue
		}
		months = append(months, &monthSummary{stem: m[1], path: fp})
	}
	if len(months) == 0 {
		logger.Info("no compound monthly files found", slog.String("dir", dir))
		return strayErr
	}
	sort.Slice(months, func(i, j int) bool { return months[i].stem < months[j].stem })

	conn, err := sql.Open("duckdb", "")
	if err != nil {
		return fmt.Errorf("open duckdb: %w", err)
	}
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, `INSTALL parquet; LOAD parquet;`); err != nil {
		logger.Warn("failed to install/load parquet extension", "error", err)
	}

	for _, ms := range months {
		statsSQL := fmt.Sprintf(
			`SELECT COUNT(*), COUNT(DISTINCT variable), MIN(time), MAX(time) FROM read_parquet('%s');`,
			strings.ReplaceAll(ms.path, "'", "''"),
		)
		if err := conn.QueryRowContext(ctx, statsSQL).Scan(&ms.rowCount, &ms.varCount, &ms.minTime, &ms.maxTime); err != nil {
			ms.statsErr = err
			logger.Error("failed to gather statistics", slog.String("file", filepath.Base(ms.path)), "error", err)
		}
	}

	variables, varErr := distinctVariables(ctx, conn, months)
	if varErr != nil {
		logger.Warn("failed to list variables", "error", varErr)
	}

	fmt.Printf("\n--- Cutout Summary: %s ---\n", dir)
	if len(variables) > 0 {
		fmt.Printf("Variables: %s\n\n", strings.Join(variables, ", "))
	}
	fmt.Printf("%-10s | %-12s | %-10s | %-25s | %-25s | %s\n", "Month", "Rows", "Variables", "Min Time (UTC)", "Max Time (UTC)", "Errors")
	fmt.Println(strings.Repeat("-", 110))

	var finalErr error = errors.Join(strayErr, varErr)
	for _, ms := range months {
		minStr, maxStr := "static", "static"
		if ms.minTime.Valid {
			minStr = time.UnixMilli(ms.minTime.Int64).UTC().Format(time.RFC3339)
		}
		if ms.maxTime.Valid {
			maxStr = time.UnixMilli(ms.maxTime.Int64).UTC().Format(time.RFC3339)
		}
		errStr := ""
		if ms.statsErr != nil {
			errStr = "stats error"
			finalErr = errors.Join(finalErr, ms.statsErr)
		}
		fmt.Printf("%-10s | %-12d | %-10d | %-25s | %-25s | %s\n", ms.stem, ms.rowCount, ms.varCount, minStr, maxStr, errStr)
	}
	fmt.Println(strings.Repeat("-", 110))
	return finalErr
}

func distinctVariables(ctx context.Context, conn *sql.DB, months []*monthSummary) ([]string, error) {
	escaped := make([]string, 0, len(months))
	for _, ms := range months {
		escaped = append(escaped, "'"+strings.ReplaceAll(ms.path, "'", "''")+"'")
	}
	query := fmt.Sprintf(`SELECT DISTINCT variable FROM read_parquet([%s]) ORDER BY variable;`, strings.Join(escaped, ", "))
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var variables []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		variables = append(variables, v)
	}
	return variables, rows.Err()
}
