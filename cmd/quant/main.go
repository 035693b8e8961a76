// Command quant reduces the number of distinct colors in images.
//
// It quantizes a single image, every image under a directory, or, with
// --watch, keeps a directory quantized as files arrive. Outputs default
// to "<stem>_quantized_<count><ext>" next to the input.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/setanarut/quant"
	"github.com/setanarut/quant/imgio"
	"github.com/setanarut/quant/suggest"
)

type options struct {
	input      string
	output     string
	count      int
	mode       string
	seed       int64
	restarts   int
	maxIter    int
	workers    int
	method     string
	swatch     string
	configPath string
	info       bool
	suggest    bool
	jsonOut    bool
	watch      bool

	// config-only settings
	swatchTile int
	debounce   time.Duration
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var o options

	flag.StringVar(&o.output, "o", "", "Output file or directory")
	flag.StringVar(&o.output, "output", "", "Output file or directory")
	flag.IntVar(&o.count, "colors", 16, "Palette size (kmeans) or shades per channel (uniform)")
	flag.IntVar(&o.count, "shades", 16, "Alias of -colors")
	flag.StringVar(&o.mode, "mode", "kmeans", "Quantization mode: kmeans or uniform")
	flag.Int64Var(&o.seed, "seed", 42, "Random seed for kmeans")
	flag.IntVar(&o.restarts, "restarts", 10, "Independent kmeans initializations")
	flag.IntVar(&o.maxIter, "max-iter", 300, "Iteration cap per kmeans restart")
	flag.IntVar(&o.workers, "workers", 0, "Worker cap, 0 = all CPUs")
	flag.StringVar(&o.method, "method", "dominant", "Palette suggestion method: dominant or kmeans")
	flag.StringVar(&o.swatch, "swatch", "", "Also write a palette swatch image to this path")
	flag.StringVar(&o.configPath, "config", "quant.toml", "Path to config file (TOML)")
	flag.BoolVar(&o.info, "info", false, "Print image statistics instead of quantizing")
	flag.BoolVar(&o.suggest, "suggest", false, "Print a suggested palette instead of quantizing")
	flag.BoolVar(&o.jsonOut, "json", false, "Emit JSON instead of text")
	flag.BoolVar(&o.watch, "watch", false, "Watch the input path and quantize files as they change")
	flag.Parse()

	cfg, err := LoadConfig(o.configPath)
	if err != nil {
		return err
	}
	applyConfig(&o, cfg, setFlags())

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: quant [flags] <input image or directory>")
		flag.PrintDefaults()
		return fmt.Errorf("expected exactly one input path, got %d", flag.NArg())
	}
	o.input = flag.Arg(0)

	mode, err := parseMode(o.mode)
	if err != nil {
		return err
	}

	info, err := os.Stat(o.input)
	if err != nil {
		return fmt.Errorf("input path %q does not exist", o.input)
	}

	switch {
	case o.watch:
		return runWatch(&o, mode, info.IsDir())
	case o.info:
		return printInfo(&o)
	case o.suggest:
		return printSuggestion(&o)
	case info.IsDir():
		return processDirectory(&o, mode)
	default:
		return processFile(context.Background(), &o, o.input, o.outputFor(o.input, false), mode, true)
	}
}

// setFlags records which flags were given explicitly, so config file
// values only fill the gaps.
func setFlags() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func applyConfig(o *options, cfg *Config, set map[string]bool) {
	if !set["colors"] && !set["shades"] {
		o.count = cfg.Colors
	}
	if !set["mode"] {
		o.mode = cfg.Mode
	}
	if !set["seed"] {
		o.seed = cfg.Seed
	}
	if !set["restarts"] {
		o.restarts = cfg.Restarts
	}
	if !set["max-iter"] {
		o.maxIter = cfg.MaxIter
	}
	if !set["workers"] {
		o.workers = cfg.Workers
	}
	if !set["method"] {
		o.method = cfg.Method
	}
	o.swatchTile = cfg.SwatchTile
	o.debounce = cfg.Debounce()
}

func parseMode(s string) (quant.Mode, error) {
	switch s {
	case "kmeans":
		return quant.ModeKMeans, nil
	case "uniform":
		return quant.ModeUniform, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want kmeans or uniform)", s)
	}
}

// deriveOutputPath builds "<stem>_quantized_<count><ext>" next to the
// input. Decode-only formats fall back to PNG output.
func deriveOutputPath(input string, count int) string {
	ext := filepath.Ext(input)
	stem := strings.TrimSuffix(input, ext)
	if strings.EqualFold(ext, ".webp") {
		ext = ".png"
	}
	return fmt.Sprintf("%s_quantized_%d%s", stem, count, ext)
}

// outputFor maps a source image to its output path, honoring -o when
// set. In directory mode the input's directory layout is mirrored
// under the output directory.
func (o *options) outputFor(path string, dirMode bool) string {
	if dirMode {
		outDir := o.output
		if outDir == "" {
			outDir = o.input
		}
		rel, err := filepath.Rel(o.input, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		return filepath.Join(outDir, deriveOutputPath(rel, o.count))
	}
	if o.output == "" {
		return deriveOutputPath(path, o.count)
	}
	if st, err := os.Stat(o.output); err == nil && st.IsDir() {
		return filepath.Join(o.output, filepath.Base(deriveOutputPath(path, o.count)))
	}
	return o.output
}

func (o *options) quantOptions(mode quant.Mode) quant.Options {
	return quant.Options{
		Mode:          mode,
		Count:         o.count,
		Seed:          o.seed,
		Restarts:      o.restarts,
		MaxIterations: o.maxIter,
		Workers:       o.workers,
	}
}

func processFile(ctx context.Context, o *options, input, output string, mode quant.Mode, verbose bool) error {
	start := time.Now()

	buf, err := imgio.Load(input)
	if err != nil {
		return err
	}
	res, err := quant.Quantize(ctx, buf, o.quantOptions(mode))
	if err != nil {
		return err
	}
	if err := imgio.Save(res.Buffer, output); err != nil {
		return err
	}

	if o.swatch != "" {
		if len(res.Palette) == 0 {
			fmt.Fprintln(os.Stderr, "No palette to render in uniform mode, skipping swatch.")
		} else if err := imgio.SaveSwatch(res.Palette.Colors(), o.swatchTile, o.swatch); err != nil {
			return err
		}
	}

	if !verbose {
		return nil
	}
	if o.jsonOut {
		return writeJSON(struct {
			Input   string       `json:"input"`
			Output  string       `json:"output"`
			Mode    string       `json:"mode"`
			Count   int          `json:"count"`
			Report  quant.Report `json:"report"`
			Palette []string     `json:"palette,omitempty"`
			Seconds float64      `json:"seconds"`
		}{
			Input:   input,
			Output:  output,
			Mode:    mode.String(),
			Count:   o.count,
			Report:  res.Report,
			Palette: res.Palette.Hexes(),
			Seconds: time.Since(start).Seconds(),
		})
	}
	fmt.Printf("Quantized '%s' -> '%s' (%d -> %d colors, %.2fs)\n",
		input, output, res.Report.OriginalColors, res.Report.QuantizedColors, time.Since(start).Seconds())
	return nil
}

func processDirectory(o *options, mode quant.Mode) error {
	if o.output != "" {
		if st, err := os.Stat(o.output); err == nil && !st.IsDir() {
			return fmt.Errorf("input is a directory, but output %q is a file", o.output)
		}
	}

	var jobs []string
	err := filepath.WalkDir(o.input, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !quantizable(path) {
			return nil
		}
		jobs = append(jobs, path)
		return nil
	})
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("No images found. Exiting.")
		return nil
	}

	fmt.Printf("Found %d images to quantize.\n", len(jobs))
	start := time.Now()

	var (
		completed atomic.Int64
		wg        sync.WaitGroup
	)
	total := int64(len(jobs))
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	errCh := make(chan string, len(jobs))

	for _, input := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer func() { <-sem; wg.Done() }()
			out := o.outputFor(input, true)
			if err := processFile(context.Background(), o, input, out, mode, false); err != nil {
				errCh <- fmt.Sprintf("failed to quantize %q: %v", input, err)
			}
			n := completed.Add(1)
			fmt.Printf("\r[%d/%d] Quantized %s", n, total, filepath.Base(input))
		}()
	}
	wg.Wait()
	close(errCh)

	fmt.Println()
	failed := 0
	for msg := range errCh {
		fmt.Fprintln(os.Stderr, msg)
		failed++
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(jobs))
	}
	fmt.Printf("Quantized %d images in %.2fs\n", len(jobs), time.Since(start).Seconds())
	return nil
}

// quantizable filters directory entries down to decodable images that
// are not themselves quantizer outputs.
func quantizable(path string) bool {
	ext := filepath.Ext(path)
	if !imgio.DecodableExtension(ext) {
		return false
	}
	return !strings.Contains(strings.TrimSuffix(filepath.Base(path), ext), "_quantized_")
}

func printInfo(o *options) error {
	if st, err := os.Stat(o.input); err == nil && st.IsDir() {
		return fmt.Errorf("-info needs a single image, but %q is a directory", o.input)
	}
	buf, err := imgio.Load(o.input)
	if err != nil {
		return err
	}
	s := quant.Analyze(buf)

	if o.jsonOut {
		return writeJSON(s)
	}
	fmt.Printf("%s: %dx%d, %d channels\n", o.input, s.Width, s.Height, s.Channels)
	fmt.Printf("Distinct colors: %d (entropy %.2f bits)\n", s.DistinctColors, s.EntropyBits)
	fmt.Printf("Top color: %s (%.1f%% of pixels)\n", s.TopColor.Hex(), s.TopColorShare*100)
	for i, name := range [3]string{"R", "G", "B"} {
		cs := s.Channel[i]
		fmt.Printf("  %s: min %3d max %3d mean %6.1f stddev %5.1f\n", name, cs.Min, cs.Max, cs.Mean, cs.StdDev)
	}
	return nil
}

func printSuggestion(o *options) error {
	if st, err := os.Stat(o.input); err == nil && st.IsDir() {
		return fmt.Errorf("-suggest needs a single image, but %q is a directory", o.input)
	}
	method, err := suggest.ParseMethod(o.method)
	if err != nil {
		return err
	}
	img, err := imgio.LoadImage(o.input)
	if err != nil {
		return err
	}

	palette := suggest.Extract(img, o.count, method)
	suggest.SortByLuminance(palette)

	if o.swatch != "" {
		if err := imgio.SaveSwatch(palette, o.swatchTile, o.swatch); err != nil {
			return err
		}
	}

	hexes := make([]string, len(palette))
	for i, c := range palette {
		hexes[i] = c.Hex()
	}
	if o.jsonOut {
		return writeJSON(struct {
			Input   string   `json:"input"`
			Method  string   `json:"method"`
			Palette []string `json:"palette"`
		}{Input: o.input, Method: method.String(), Palette: hexes})
	}
	for _, h := range hexes {
		fmt.Println(h)
	}
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
