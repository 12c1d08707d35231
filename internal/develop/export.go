package develop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ironsheep/raw-alchemy/internal/export"
	"github.com/ironsheep/raw-alchemy/internal/imaging"
	"github.com/ironsheep/raw-alchemy/internal/lens"
)

// ExportOptions configures the uncached export path.
type ExportOptions struct {
	Decoder   Decoder
	Corrector lens.Corrector
	LUTs      LUTLoader

	JPEGQuality int

	Logf    func(format string, args ...interface{})
	Observe func(Stage)
}

// ExportReport summarizes one exported file.
type ExportReport struct {
	Source   string        `json:"source"`
	Output   string        `json:"output"`
	Format   export.Format `json:"format"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Gain     float64       `json:"gain"`
	Stages   []Stage       `json:"stages"`
	Warnings []string      `json:"warnings,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// ExportImage develops src at full resolution with params and writes it to
// dst. Nothing is cached: decode, lens correction and the full chain run
// every call.
func ExportImage(src, dst string, params Params, format export.Format, opts ExportOptions) (*ExportReport, error) {
	start := time.Now()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if opts.Decoder == nil {
		opts.Decoder = imaging.FileDecoder{}
	}
	logf := opts.Logf
	if logf == nil {
		logf = log.Printf
	}

	dec, err := opts.Decoder.Decode(src, imaging.DecodeOptions{})
	if err != nil {
		return nil, err
	}
	if dec == nil || dec.Buffer.Validate() != nil {
		return nil, fmt.Errorf("%w: %s: decoder returned no usable buffer", imaging.ErrDecode, src)
	}

	chain := &Chain{
		Corrector: opts.Corrector,
		LUTs:      opts.LUTs,
		Logf:      logf,
		Observe:   opts.Observe,
	}
	buf, out, err := chain.Run(dec.Buffer, dec.Exif, params)
	if err != nil {
		return nil, fmt.Errorf("develop %s: %w", src, err)
	}

	if err := export.Write(buf, dst, format, export.Options{JPEGQuality: opts.JPEGQuality}); err != nil {
		return nil, err
	}

	return &ExportReport{
		Source:   src,
		Output:   dst,
		Format:   format,
		Width:    buf.Width,
		Height:   buf.Height,
		Gain:     out.Gain,
		Stages:   out.Stages,
		Warnings: out.Warnings,
		Elapsed:  time.Since(start),
	}, nil
}

// ExportJob is one file of a batch.
type ExportJob struct {
	Source string
	Output string
	Params Params
	Format export.Format
}

// ExportBatch exports jobs in order. A failing file is reported and the
// batch continues; the returned error joins every failure. Cancelling ctx
// stops before the next file.
func ExportBatch(ctx context.Context, jobs []ExportJob, opts ExportOptions, progress func(done, total int, r *ExportReport, err error)) ([]*ExportReport, error) {
	var (
		reports []*ExportReport
		errs    []error
	)
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		r, err := ExportImage(job.Source, job.Output, job.Params, job.Format, opts)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", job.Source, err))
		} else {
			reports = append(reports, r)
		}
		if progress != nil {
			progress(i+1, len(jobs), r, err)
		}
	}
	return reports, errors.Join(errs...)
}
