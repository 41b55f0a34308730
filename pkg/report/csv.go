// Package report writes trajectories as CSV, PNG plots and JSON summaries.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go-fuzzy-elevator/pkg/elevator"
)

var csvHeader = []string{"time_s", "position_m", "error_m", "delta_error_m", "motor_power_pct"}

// WriteCSV writes one row per tick.
func WriteCSV(w io.Writer, tr elevator.Trajectory) error {
	n := tr.Len()
	if len(tr.Position) != n || len(tr.Error) != n || len(tr.DeltaError) != n || len(tr.MotorPower) != n {
		return fmt.Errorf("CSV: column size mismatch")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("CSV: cannot write header: %w", err)
	}
	cols := [][]float64{tr.Time, tr.Position, tr.Error, tr.DeltaError, tr.MotorPower}
	row := make([]string, len(cols))
	for r := 0; r < n; r++ {
		for c := range cols {
			row[c] = strconv.FormatFloat(cols[c][r], 'g', 15, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("CSV: cannot write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the trajectory to path, creating parent directories.
func SaveCSV(path string, tr elevator.Trajectory) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("CSV: cannot create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("CSV: cannot open %s: %w", path, err)
	}
	if err := WriteCSV(f, tr); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
