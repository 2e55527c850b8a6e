package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/gaze.intent/internal/gaze"
	"github.com/banshee-data/gaze.intent/internal/gaze/calibration"
)

// ErrNoScores is returned when there are no samples to histogram.
var ErrNoScores = errors.New("no samples to plot")

const histogramBins = 30

var bucketColors = map[gaze.ClassLabel]color.Color{
	gaze.ClassLeft:   color.RGBA{R: 62, G: 73, B: 137, A: 160},
	gaze.ClassCenter: color.RGBA{R: 53, G: 183, B: 121, A: 160},
	gaze.ClassRight:  color.RGBA{R: 200, G: 170, B: 20, A: 160},
}

// ScoreHistogram builds a plot of fitted scores per bucket with vertical
// lines at +/- the deadzone.
func ScoreHistogram(profile gaze.CalibrationProfile, pools calibration.LabeledPools) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Calibration scores (deadzone %.3f)", profile.DeadzoneScore)
	p.X.Label.Text = "Score"
	p.Y.Label.Text = "Samples"
	p.Legend.Top = true

	total := 0
	ymax := 0.0
	for _, label := range []gaze.ClassLabel{gaze.ClassLeft, gaze.ClassCenter, gaze.ClassRight} {
		samples := pools.Get(label)
		if len(samples) == 0 {
			continue
		}
		vals := make(plotter.Values, len(samples))
		for i, s := range samples {
			vals[i] = profile.Regression.Score(s.X)
		}
		h, err := plotter.NewHist(vals, histogramBins)
		if err != nil {
			return nil, fmt.Errorf("histogram %s: %w", label, err)
		}
		h.FillColor = bucketColors[label]
		h.LineStyle.Width = vg.Points(0.5)
		p.Add(h)
		p.Legend.Add(string(label), h)
		total += len(samples)
		if _, _, _, top := h.DataRange(); top > ymax {
			ymax = top
		}
	}
	if total == 0 {
		return nil, ErrNoScores
	}

	if ymax <= 0 {
		ymax = 1
	}
	for _, x := range []float64{-profile.DeadzoneScore, profile.DeadzoneScore} {
		l, err := plotter.NewLine(plotter.XYs{{X: x, Y: 0}, {X: x, Y: ymax}})
		if err != nil {
			return nil, fmt.Errorf("deadzone line: %w", err)
		}
		l.Color = color.RGBA{R: 200, A: 255}
		l.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		l.Width = vg.Points(1)
		p.Add(l)
	}
	return p, nil
}

// WriteScoreHistogramPNG renders the histogram as a PNG to w.
func WriteScoreHistogramPNG(w io.Writer, profile gaze.CalibrationProfile, pools calibration.LabeledPools) error {
	p, err := ScoreHistogram(profile, pools)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// ScoreHistogramPNG writes the histogram to path.
func ScoreHistogramPNG(path string, profile gaze.CalibrationProfile, pools calibration.LabeledPools) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteScoreHistogramPNG(f, profile, pools); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
