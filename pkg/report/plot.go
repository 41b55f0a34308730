package report

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"go-fuzzy-elevator/pkg/elevator"
	"go-fuzzy-elevator/pkg/fuzzy"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// DPI of saved PNGs.
const DPI = 150

type series struct {
	label  string
	xs, ys []float64
}

func stylePlot(p *plot.Plot) {
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.Title.Padding = vg.Points(8)
	p.X.Label.TextStyle.Font.Size = vg.Points(13)
	p.Y.Label.TextStyle.Font.Size = vg.Points(13)
	p.X.Tick.Label.Font.Size = vg.Points(11)
	p.Y.Tick.Label.Font.Size = vg.Points(11)
	p.Add(plotter.NewGrid())
}

func newPlot(title, xlabel, ylabel string, lines ...series) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	stylePlot(p)

	for i, s := range lines {
		if len(s.xs) != len(s.ys) || len(s.xs) == 0 {
			return nil, fmt.Errorf("plot %q: series %q has invalid data", title, s.label)
		}
		pts := make(plotter.XYs, len(s.xs))
		for j := range s.xs {
			pts[j].X = s.xs[j]
			pts[j].Y = s.ys[j]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.LineStyle.Width = vg.Points(2)
		line.LineStyle.Color = plotutil.Color(i)
		p.Add(line)
		if s.label != "" {
			p.Legend.Add(s.label, line)
		}
	}
	p.Legend.Top = true
	return p, nil
}

func savePNG(p *plot.Plot, widthIn, heightIn float64, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch),
		vgimg.UseDPI(DPI),
	)
	p.Draw(draw.New(c))

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(bw); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return bw.Flush()
}

// SavePlots writes position, error, motor power and delta error plots for
// one trajectory to dir, prefixed by name. It returns the written paths.
func SavePlots(dir, name string, tr elevator.Trajectory) ([]string, error) {
	if tr.Len() == 0 {
		return nil, fmt.Errorf("trajectory %s has no samples", name)
	}
	title := fmt.Sprintf("%s -> %s", tr.Origin, tr.Target)
	target := make([]float64, tr.Len())
	for i := range target {
		target[i] = tr.Goal
	}

	plots := []struct {
		file   string
		title  string
		ylabel string
		lines  []series
	}{
		{"position", "Position " + title, "position (m)", []series{
			{"position", tr.Time, tr.Position},
			{"target", tr.Time, target},
		}},
		{"error", "Error " + title, "error (m)", []series{{"", tr.Time, tr.Error}}},
		{"motor_power", "Motor power " + title, "power (%)", []series{{"", tr.Time, tr.MotorPower}}},
		{"delta_error", "Delta error " + title, "delta error (m)", []series{{"", tr.Time, tr.DeltaError}}},
	}

	var written []string
	for _, pl := range plots {
		p, err := newPlot(pl.title, "time (s)", pl.ylabel, pl.lines...)
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", name, pl.file))
		if err := savePNG(p, 8, 5, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// SaveComparisonPlot overlays the position of several trajectories.
func SaveComparisonPlot(path string, trs []elevator.Trajectory) error {
	lines := make([]series, 0, len(trs))
	for _, tr := range trs {
		if tr.Len() == 0 {
			continue
		}
		lines = append(lines, series{tr.Origin + " -> " + tr.Target, tr.Time, tr.Position})
	}
	if len(lines) == 0 {
		return fmt.Errorf("no trajectories to compare")
	}
	p, err := newPlot("Position trajectories", "time (s)", "position (m)", lines...)
	if err != nil {
		return err
	}
	return savePNG(p, 10, 6, path)
}

// SaveMembershipPlot writes one PNG per linguistic variable of the engine's
// rule base into dir.
func SaveMembershipPlot(dir string, e *fuzzy.Engine) ([]string, error) {
	base := e.Base()
	var written []string
	for _, v := range []fuzzy.Variable{base.Error, base.Delta, base.Power} {
		lines := make([]series, 0, len(v.Sets))
		for _, s := range v.Sets {
			xs, ys := sampleSet(s, v.Min, v.Max, 400)
			lines = append(lines, series{s.Name, xs, ys})
		}
		p, err := newPlot("Membership: "+v.Name, v.Name, "membership", lines...)
		if err != nil {
			return written, err
		}
		p.Y.Min, p.Y.Max = 0, 1.05
		path := filepath.Join(dir, "membership_"+v.Name+".png")
		if err := savePNG(p, 8, 4, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func sampleSet(s fuzzy.Set, lo, hi float64, n int) (xs, ys []float64) {
	xs = make([]float64, n)
	ys = make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range xs {
		x := math.Min(hi, lo+float64(i)*step)
		xs[i] = x
		ys[i] = s.Membership(x)
	}
	return xs, ys
}
