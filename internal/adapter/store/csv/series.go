// Package csv exports reduced time series as CSV.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.ngs.io/flat10/internal/domain"
)

var header = []string{"time", "year", "month", "value"}

// WriteSeries writes s as CSV. NaN values are written as empty fields.
func WriteSeries(w io.Writer, s domain.Series) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, p := range s.Points {
		value := ""
		if !math.IsNaN(p.Value) {
			value = strconv.FormatFloat(p.Value, 'g', -1, 64)
		}
		record := []string{
			p.Time.String(),
			strconv.Itoa(p.Time.Year),
			strconv.Itoa(p.Time.Month),
			value,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// WriteSeriesFile writes s to path, creating parent directories.
func WriteSeriesFile(path string, s domain.Series) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	//nolint:gosec // G304: path comes from the command line.
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteSeries(file, s); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// ReadSeries parses a CSV produced by WriteSeries. Only the time and
// value columns are restored.
func ReadSeries(r io.Reader) ([]domain.SeriesPoint, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	got, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(got) != len(header) {
		return nil, fmt.Errorf("invalid CSV header: expected %v, got %v", header, got)
	}
	for i, h := range got {
		if h != header[i] {
			return nil, fmt.Errorf("invalid CSV header: expected column %d to be %s, got %s", i, header[i], h)
		}
	}

	points := make([]domain.SeriesPoint, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		var p domain.SeriesPoint
		if _, err := fmt.Sscanf(record[0], "%d-%d-%d %d:%d:%d",
			&p.Time.Year, &p.Time.Month, &p.Time.Day, &p.Time.Hour, &p.Time.Minute, &p.Time.Second); err != nil {
			return nil, fmt.Errorf("invalid time %q: %w", record[0], err)
		}
		valueStr := strings.TrimSpace(record[3])
		if valueStr == "" {
			p.Value = math.NaN()
		} else if p.Value, err = strconv.ParseFloat(valueStr, 64); err != nil {
			return nil, fmt.Errorf("invalid value at %s: %w", record[0], err)
		}
		points = append(points, p)
	}
	return points, nil
}
