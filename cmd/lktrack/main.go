/*
Lktrack tracks points from one image into another with the window
Lucas-Kanade matcher and prints the results as JSON.

	lktrack -a frame1.png -b frame2.png -points "40,40 60,52,1.5,0.5"

Each point is x,y with an optional predicted translation px,py.
*/
package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/ironsheep/point-tracker-mcp/internal/imaging"
	"github.com/ironsheep/point-tracker-mcp/internal/lk"
)

var pathA, pathB, pointList, overlayName string
var luma, gradient string
var windowSize int
var minEV, blurRadius, magnify float64
var legacyResidual bool

func init() {
	flag.StringVar(&pathA, "a", "", "The reference image")
	flag.StringVar(&pathB, "b", "", "The target image")
	flag.StringVar(&pointList, "points", "", "Points to track: space or ';' separated x,y[,px,py]")
	flag.StringVar(&overlayName, "overlay", "", "Write a PNG with the flow drawn onto the target image")
	flag.StringVar(&luma, "luma", "bt601", "Intensity model: bt601 or lab")
	flag.StringVar(&gradient, "gradient", "sobel", "Gradient operator: sobel or central")
	flag.IntVar(&windowSize, "window", lk.DefaultWindowSize, "Odd window side, 1-31")
	flag.Float64Var(&minEV, "min-ev", 1e-3, "Caller eigenvalue floor")
	flag.Float64Var(&blurRadius, "blur", 0, "Gaussian pre-smoothing radius")
	flag.Float64Var(&magnify, "magnify", 1, "Vector length multiplier for -overlay")
	flag.BoolVar(&legacyResidual, "legacy-residual", false, "Index residual samples with the half-width stride")
}

type trackPoint struct {
	p, prediction lk.Vec2
}

// parsePoints reads "x,y[,px,py]" entries separated by spaces or ';'.
func parsePoints(s string) ([]trackPoint, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
	points := make([]trackPoint, 0, len(fields))
	for _, f := range fields {
		parts := strings.Split(f, ",")
		if len(parts) != 2 && len(parts) != 4 {
			return nil, fmt.Errorf("point %q: want x,y or x,y,px,py", f)
		}
		vals := make([]float64, len(parts))
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("point %q: %w", f, err)
			}
			vals[i] = v
		}
		tp := trackPoint{p: lk.Vec2{X: vals[0], Y: vals[1]}}
		if len(vals) == 4 {
			tp.prediction = lk.Vec2{X: vals[2], Y: vals[3]}
		}
		points = append(points, tp)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no points given")
	}
	return points, nil
}

func planeOptions() (imaging.PlaneOptions, error) {
	l, err := imaging.ParseLumaModel(luma)
	if err != nil {
		return imaging.PlaneOptions{}, err
	}
	g, err := imaging.ParseGradientOperator(gradient)
	if err != nil {
		return imaging.PlaneOptions{}, err
	}
	return imaging.PlaneOptions{
		Convert:  imaging.ConvertOptions{Luma: l, BlurRadius: blurRadius},
		Gradient: g,
	}, nil
}

func main() {
	flag.Parse()
	log.SetFlags(0)

	if pathA == "" || pathB == "" {
		flag.Usage()
		os.Exit(2)
	}
	points, err := parsePoints(pointList)
	if err != nil {
		log.Fatal(err)
	}
	opts, err := planeOptions()
	if err != nil {
		log.Fatal(err)
	}
	m, err := lk.NewMatcher(lk.WithWindowSize(windowSize), lk.WithLegacyResidualStride(legacyResidual))
	if err != nil {
		log.Fatal(err)
	}

	cache := imaging.NewImageCache()
	a, err := cache.LoadPlanes(pathA, opts)
	if err != nil {
		log.Fatal(err)
	}
	b, err := cache.LoadPlanes(pathB, opts)
	if err != nil {
		log.Fatal(err)
	}

	tracks := make([]imaging.TrackResult, len(points))
	results := make([]lk.Result, len(points))
	for i, tp := range points {
		results[i] = imaging.TrackPoint(m, a, b, tp.p, tp.prediction, minEV)
		tracks[i] = imaging.NewTrackResult(tp.p, tp.prediction, results[i])
	}

	if overlayName != "" {
		img, err := cache.Load(pathB)
		if err != nil {
			log.Fatal(err)
		}
		overlay, err := imaging.DrawFlow(img, tracks, imaging.OverlayOptions{Magnify: magnify, Labels: true})
		if err != nil {
			log.Fatal(err)
		}
		data, err := base64.StdEncoding.DecodeString(overlay.ImageBase64)
		if err != nil {
			log.Fatal(err)
		}
		if err := os.WriteFile(overlayName, data, 0o644); err != nil {
			log.Fatal(err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	err = enc.Encode(struct {
		Tracks  []imaging.TrackResult `json:"tracks"`
		Summary imaging.FlowSummary   `json:"summary"`
	}{tracks, imaging.SummarizeFlow(results)})
	if err != nil {
		log.Fatal(err)
	}
}
