// Command fuzzy-sim runs offline elevator movements and writes their
// trajectories, plots and an acceptance summary.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"go-fuzzy-elevator/pkg/elevator"
	"go-fuzzy-elevator/pkg/logging"
	"go-fuzzy-elevator/pkg/report"

	"github.com/joho/godotenv"
)

type options struct {
	from, to   string
	configPath string
	outDir     string
	plots      bool
	maxTime    time.Duration
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.from, "from", "", "origin floor (runs the standard scenarios when empty)")
	flag.StringVar(&o.to, "to", "", "target floor")
	flag.StringVar(&o.configPath, "config", os.Getenv("ELEVATOR_CONFIG"), "YAML config file")
	flag.StringVar(&o.outDir, "out", "results", "output directory")
	flag.BoolVar(&o.plots, "plots", true, "write PNG plots")
	flag.DurationVar(&o.maxTime, "max-time", 0, "per-run simulated time limit (0 uses the config timeout)")
	flag.Parse()
	return o
}

func loadConfig(path string) (elevator.Config, error) {
	if path == "" {
		return elevator.DefaultConfig(), nil
	}
	return elevator.LoadConfig(path)
}

func scenarios(o options) ([]report.Scenario, error) {
	switch {
	case o.from == "" && o.to == "":
		return report.StandardScenarios(), nil
	case o.from == "" || o.to == "":
		return nil, fmt.Errorf("-from and -to must be given together")
	}
	return []report.Scenario{{Origin: o.from, Target: o.to}}, nil
}

func main() {
	_ = godotenv.Load() // .env is optional
	logging.Setup(os.Stderr, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	o := parseFlags()

	cfg, err := loadConfig(o.configPath)
	if err != nil {
		log.Fatal(err)
	}
	runs, err := scenarios(o)
	if err != nil {
		log.Fatal(err)
	}

	var trs []elevator.Trajectory
	for _, sc := range runs {
		tr, err := elevator.Simulate(cfg, sc.Origin, sc.Target, o.maxTime)
		if err != nil {
			slog.Error("Simulation rejected", "scenario", sc.String(), "error", err)
			continue
		}
		slog.Info("Simulation finished",
			"scenario", sc.String(),
			"reason", tr.Reason,
			"duration", tr.Duration,
			"final_error_mm", tr.FinalErrMM,
		)
		trs = append(trs, tr)

		name := sc.Origin + "_to_" + sc.Target
		if err := report.SaveCSV(filepath.Join(o.outDir, name+".csv"), tr); err != nil {
			slog.Error("Failed to write CSV", "scenario", sc.String(), "error", err)
		}
		if o.plots {
			if _, err := report.SavePlots(filepath.Join(o.outDir, "plots"), name, tr); err != nil {
				slog.Error("Failed to write plots", "scenario", sc.String(), "error", err)
			}
		}
	}
	if len(trs) == 0 {
		log.Fatal("no simulation completed")
	}

	summary := report.Summarize(trs)
	printSummary(summary)

	if err := report.SaveJSON(filepath.Join(o.outDir, "results.json"), summary); err != nil {
		slog.Error("Failed to write results", "error", err)
	}
	if o.plots {
		if err := report.SaveComparisonPlot(filepath.Join(o.outDir, "plots", "comparison.png"), trs); err != nil {
			slog.Error("Failed to write comparison plot", "error", err)
		}
		if m, err := elevator.NewMovement(cfg); err == nil {
			if _, err := report.SaveMembershipPlot(filepath.Join(o.outDir, "plots"), m.Engine()); err != nil {
				slog.Error("Failed to write membership plots", "error", err)
			}
		}
	}

	if !summary.Approved {
		os.Exit(1)
	}
}

func printSummary(s report.Summary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCENARIO\tRESULT\tREASON\tTIME (s)\tERROR (mm)\tPEAK POWER (%)\tOVERSHOOT (%)")
	for _, r := range s.Results {
		result := "FAIL"
		if r.Success {
			result = "OK"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%.1f\t%.1f\t%.2f\n",
			r.Scenario, result, r.Reason, r.Duration, r.FinalErrMM, r.PeakPower, r.Overshoot)
	}
	w.Flush()

	verdict := "REJECTED"
	if s.Approved {
		verdict = "APPROVED"
	}
	fmt.Printf("\nruns: %d  success: %.0f%%  mean time: %.1fs  mean error: %.1fmm  mean peak power: %.1f%%  max power: %.1f%%  -> %s\n",
		s.Runs, s.SuccessRate, s.MeanDuration, s.MeanErrorMM, s.MeanPeakPower, s.MaxPower, verdict)
}
