package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/ironsheep/raw-alchemy/internal/config"
	"github.com/ironsheep/raw-alchemy/internal/develop"
	"github.com/ironsheep/raw-alchemy/internal/export"
	"github.com/ironsheep/raw-alchemy/internal/histogram"
	"github.com/ironsheep/raw-alchemy/internal/imaging"
	"github.com/ironsheep/raw-alchemy/internal/lens"
	"github.com/ironsheep/raw-alchemy/internal/lut"
	"github.com/ironsheep/raw-alchemy/internal/metering"
	"github.com/ironsheep/raw-alchemy/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const usageTemplate = `raw-alchemy - photo develop engine with an MCP server front end

Usage: raw-alchemy [command] [options]

Commands:
  serve                         Run the MCP server on stdin/stdout (default)
  export [options] SRC DST      Develop one image at full resolution
  batch [options] -out DIR SRC...
                                Develop many images into DIR
  histogram [options] SRC       Print the histogram of a preview render
  luts [DIR]                    List .cube files (default: lut_folder)

Develop options (export, batch, histogram):
  -params FILE      YAML file of adjustments, applied over the defaults
  -exposure EV      Manual exposure in stops (switches off metering)
  -metering MODE    %s
  -log SPACE        Camera log space, or None
  -lut PATH         .cube file, or a name inside lut_folder
  -format FORMAT    jpeg, png or tiff (default: from the file extension)
  -quality N        JPEG quality

Options:
  --version, -v    Print version information
  --help, -h       Print this help message

Environment variables:
  RAW_ALCHEMY_CONFIG=PATH        Settings file (default ~/.config/raw-alchemy/config.yaml)
  RAW_ALCHEMY_LOG_LEVEL=debug    Enable debug logging
`

// usage returns the help text. Metering names come from the metering
// package so the text always matches what -metering accepts.
func usage() string {
	names := make([]string, len(metering.Modes))
	for i, m := range metering.Modes {
		names[i] = string(m)
	}
	return fmt.Sprintf(usageTemplate, strings.Join(names, ", "))
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("raw-alchemy %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Print(usage())
			return
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	debug := os.Getenv("RAW_ALCHEMY_LOG_LEVEL") == "debug"
	if debug {
		log.Printf("raw-alchemy v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	settings, err := config.LoadDefault()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if debug && settings.Source != "" {
		log.Printf("Settings loaded from %s", settings.Source)
	}

	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		err = serve(&settings, debug)
	case "export":
		err = exportOne(&settings, args)
	case "batch":
		err = exportBatch(&settings, args)
	case "histogram":
		err = printHistogram(&settings, args)
	case "luts":
		err = listLUTs(&settings, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage())
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func serve(settings *config.Settings, debug bool) error {
	opts := server.Options{Settings: settings}
	if settings.ParamStore != "" {
		store, err := config.OpenParamStore(settings.ParamStore)
		if err != nil {
			return err
		}
		opts.Store = store
		if debug {
			log.Printf("Parameter store %s holds %d images", store.Path(), store.Len())
		}
	}
	if !debug {
		opts.Logf = func(string, ...interface{}) {}
	}

	srv, err := server.New(opts)
	if err != nil {
		return err
	}
	return srv.Run()
}

// developFlags registers the shared adjustment flags on fs.
type developFlags struct {
	params   string
	exposure string
	metering string
	logSpace string
	lut      string
	format   string
	quality  int
}

func newDevelopFlags(fs *flag.FlagSet, settings *config.Settings) *developFlags {
	f := &developFlags{}
	fs.StringVar(&f.params, "params", "", "YAML file of adjustments")
	fs.StringVar(&f.exposure, "exposure", "", "manual exposure in stops")
	fs.StringVar(&f.metering, "metering", "", "metering mode")
	fs.StringVar(&f.logSpace, "log", "", "camera log space")
	fs.StringVar(&f.lut, "lut", "", "LUT file or name")
	fs.StringVar(&f.format, "format", "", "output format")
	fs.IntVar(&f.quality, "quality", settings.JPEGQuality, "JPEG quality")
	return f
}

// resolve builds Params from the settings defaults, the -params file and
// the individual flags, in that order.
func (f *developFlags) resolve(settings *config.Settings) (develop.Params, error) {
	p := settings.Defaults
	if f.params != "" {
		data, err := os.ReadFile(f.params)
		if err != nil {
			return p, err
		}
		if err := yaml.Unmarshal(data, &p); err != nil {
			return p, fmt.Errorf("%s: %w", f.params, err)
		}
	}
	if f.exposure != "" {
		ev, err := strconv.ParseFloat(f.exposure, 64)
		if err != nil {
			return p, fmt.Errorf("invalid -exposure: %w", err)
		}
		p.ExposureMode = develop.ExposureManual
		p.Exposure = ev
	}
	if f.metering != "" {
		m, err := metering.ParseMode(f.metering)
		if err != nil {
			return p, err
		}
		p.ExposureMode = develop.ExposureAuto
		p.Metering = m
	}
	if f.logSpace != "" {
		p.LogSpace = f.logSpace
	}
	if f.lut != "" {
		p.LUTPath = f.lut
	}
	p.LUTPath = settings.ResolveLUT(p.LUTPath)
	return p, p.Validate()
}

func (f *developFlags) formatFor(dst string) (export.Format, error) {
	if f.format != "" {
		return export.ParseFormat(f.format)
	}
	return export.FormatFromPath(dst)
}

func exportOptions(settings *config.Settings, quality int) (develop.ExportOptions, error) {
	luts, err := lut.NewCache(settings.LUTCacheSize)
	if err != nil {
		return develop.ExportOptions{}, err
	}
	return develop.ExportOptions{
		Corrector:   lens.NewVignetting(settings.LensDatabase),
		LUTs:        luts,
		JPEGQuality: quality,
	}, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func exportOne(settings *config.Settings, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	df := newDevelopFlags(fs, settings)
	fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: raw-alchemy export [options] SRC DST")
	}
	src, dst := fs.Arg(0), fs.Arg(1)

	p, err := df.resolve(settings)
	if err != nil {
		return err
	}
	format, err := df.formatFor(dst)
	if err != nil {
		return err
	}
	opts, err := exportOptions(settings, df.quality)
	if err != nil {
		return err
	}

	report, err := develop.ExportImage(src, dst, p, format, opts)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func exportBatch(settings *config.Settings, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	df := newDevelopFlags(fs, settings)
	outDir := fs.String("out", "", "output folder")
	fs.Parse(args)
	if *outDir == "" || fs.NArg() == 0 {
		return fmt.Errorf("usage: raw-alchemy batch [options] -out DIR SRC...")
	}

	p, err := df.resolve(settings)
	if err != nil {
		return err
	}
	if df.format == "" {
		df.format = string(export.JPEG)
	}
	format, err := export.ParseFormat(df.format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}
	opts, err := exportOptions(settings, df.quality)
	if err != nil {
		return err
	}

	jobs := make([]develop.ExportJob, fs.NArg())
	for i, src := range fs.Args() {
		name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)) + format.Ext()
		jobs[i] = develop.ExportJob{Source: src, Output: filepath.Join(*outDir, name), Params: p, Format: format}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	_, err = develop.ExportBatch(ctx, jobs, opts, func(done, total int, r *develop.ExportReport, err error) {
		if err != nil {
			log.Printf("[%d/%d] failed: %v", done, total, err)
			return
		}
		log.Printf("[%d/%d] %s (%dx%d, %s)", done, total, r.Output, r.Width, r.Height, r.Elapsed)
	})
	return err
}

func printHistogram(settings *config.Settings, args []string) error {
	fs := flag.NewFlagSet("histogram", flag.ExitOnError)
	df := newDevelopFlags(fs, settings)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: raw-alchemy histogram [options] SRC")
	}

	p, err := df.resolve(settings)
	if err != nil {
		return err
	}
	opts, err := exportOptions(settings, df.quality)
	if err != nil {
		return err
	}

	dec, err := imaging.FileDecoder{}.Decode(fs.Arg(0), imaging.DecodeOptions{HalfSize: true})
	if err != nil {
		return err
	}
	chain := &develop.Chain{Corrector: opts.Corrector, LUTs: opts.LUTs, Logf: log.Printf}
	buf, _, err := chain.Run(imaging.FitBuffer(dec.Buffer, settings.PreviewMaxDim), dec.Exif, p)
	if err != nil {
		return err
	}
	return printJSON(histogram.Compute(buf, settings.HistogramBins, settings.HistogramStride))
}

func listLUTs(settings *config.Settings, args []string) error {
	dir := settings.LUTFolder
	if len(args) > 0 {
		dir = args[0]
	}
	if dir == "" {
		return fmt.Errorf("no LUT folder configured; pass one or set lut_folder")
	}
	paths, err := lut.ListDir(dir)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println(filepath.Base(p))
	}
	return nil
}
