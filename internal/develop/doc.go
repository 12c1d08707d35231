// Package develop sequences the operator library into an interactive
// pipeline and a one-shot export path.
//
// # Operator Chain
//
// Every render runs the same fixed order:
//
//	lens → exposure → white balance → highlight/shadow →
//	saturation/contrast → gamut + log encode → LUT → display
//
// Stages whose parameters are neutral are skipped, never reordered. Chain
// implements the sequence; ExportImage runs it uncached at full resolution.
//
// # Pipeline
//
// A Pipeline caches the decoded buffer and the lens-corrected buffer of one
// image. The corrected buffer is recomputed only when the LensKey (enable
// flag and custom database) changes, so exposure and color edits never
// rerun lens correction.
//
// Requests go into a single pending slot: a new request replaces one that
// has not started. One worker goroutine executes requests to completion and
// exits after an idle timeout; the next request restarts it. There is no
// mid-request cancellation.
//
// # Session
//
// Session pairs a live pipeline with a baseline pipeline and filters their
// results, dropping any whose image is no longer selected or whose request
// id is not the latest on its pipeline.
package develop
