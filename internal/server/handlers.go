package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ironsheep/raw-alchemy/internal/colormath"
	"github.com/ironsheep/raw-alchemy/internal/develop"
	"github.com/ironsheep/raw-alchemy/internal/export"
	"github.com/ironsheep/raw-alchemy/internal/histogram"
	"github.com/ironsheep/raw-alchemy/internal/imaging"
	"github.com/ironsheep/raw-alchemy/internal/lut"
	"github.com/ironsheep/raw-alchemy/internal/metering"
)

// errNoImage is returned by tools that need a selected image.
var errNoImage = errors.New("no image selected; call develop_load first")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "develop_load", "develop_update").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
// Rendering tools answer as soon as the request is queued; the rendered
// image follows as a notifications/develop/result notification.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	// Session
	case "develop_load":
		return s.handleDevelopLoad(args)
	case "develop_update":
		return s.handleDevelopUpdate(args)
	case "develop_get_params":
		return s.handleDevelopGetParams(args)
	case "develop_set_params":
		return s.handleDevelopSetParams(args)
	case "develop_save_baseline":
		return s.handleDevelopSaveBaseline(args)
	case "develop_status":
		return s.handleDevelopStatus(args)

	// Output
	case "develop_export":
		return s.handleDevelopExport(args)
	case "develop_list_luts":
		return s.handleDevelopListLUTs(args)

	// Inspection of the latest rendering
	case "develop_histogram":
		return s.handleDevelopHistogram(args)
	case "develop_preview":
		return s.handleDevelopPreview(args)
	case "develop_crop":
		return s.handleDevelopCrop(args)
	case "develop_sample":
		return s.handleDevelopSample(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// overlay decodes a partial parameter object over base. Fields missing from
// raw keep their value in base.
func overlay(base develop.Params, raw json.RawMessage) (develop.Params, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return base, nil
	}
	if err := json.Unmarshal(raw, &base); err != nil {
		return base, fmt.Errorf("invalid params: %w", err)
	}
	return base, nil
}

// resolve fills in path-valued parameters from the settings.
func (s *Server) resolve(p develop.Params) develop.Params {
	p.LUTPath = s.settings.ResolveLUT(p.LUTPath)
	return p
}

// selectedOr returns path, or the selected image when path is empty.
func (s *Server) selectedOr(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if sel := s.session.Selected(); sel != "" {
		return sel, nil
	}
	return "", errNoImage
}

// latest returns the newest rendering of the selected image on pipeline.
// For the live pipeline the original preview stands in until the first
// parameter render arrives.
func (s *Server) latest(pipeline string) (*develop.Result, error) {
	sel := s.session.Selected()
	if sel == "" {
		return nil, errNoImage
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var candidates []*develop.Result
	switch pipeline {
	case "", develop.LivePipeline:
		candidates = []*develop.Result{s.current, s.original}
	case develop.BaselinePipeline:
		candidates = []*develop.Result{s.baseline}
	default:
		return nil, fmt.Errorf("unknown pipeline: %s", pipeline)
	}
	for _, r := range candidates {
		if r != nil && r.ImageID == sel && r.Image != nil {
			return r, nil
		}
	}
	return nil, fmt.Errorf("no %s rendering of %s yet", orLive(pipeline), filepath.Base(sel))
}

func orLive(pipeline string) string {
	if pipeline == "" {
		return develop.LivePipeline
	}
	return pipeline
}

// === Notification payload ===

// resultPayload is the params object of a notifications/develop/result
// notification.
type resultPayload struct {
	Pipeline  string               `json:"pipeline"`
	Kind      string               `json:"kind"`
	RequestID uint64               `json:"request_id"`
	ImageID   string               `json:"image_id"`
	Gain      float64              `json:"gain,omitempty"`
	Stages    []develop.Stage      `json:"stages,omitempty"`
	Warnings  []string             `json:"warnings,omitempty"`
	Exif      *imaging.Exif        `json:"exif,omitempty"`
	Histogram *histogram.Histogram `json:"histogram,omitempty"`
	Preview   *imaging.CropResult  `json:"preview,omitempty"`
	Error     string               `json:"error,omitempty"`
}

func newResultPayload(r develop.Result) *resultPayload {
	p := &resultPayload{
		Pipeline:  r.Pipeline,
		Kind:      r.Kind.String(),
		RequestID: r.RequestID,
		ImageID:   r.ImageID,
		Gain:      r.Gain,
		Histogram: r.Histogram,
	}
	if r.Err != nil {
		p.Error = r.Err.Error()
		return p
	}
	if r.Outcome != nil {
		p.Stages = r.Outcome.Stages
		p.Warnings = r.Outcome.Warnings
	}
	if !r.Exif.Empty() {
		exif := r.Exif
		p.Exif = &exif
	}
	if preview, err := imaging.Preview(r.Image, imaging.DefaultPreviewSize); err == nil {
		p.Preview = preview
	} else {
		p.Error = err.Error()
	}
	return p
}

// === Session Handlers ===

type developLoadArgs struct {
	Path string `json:"path"`
}

type requestResult struct {
	RequestID uint64             `json:"request_id"`
	ImageID   string             `json:"image_id"`
	Pipeline  string             `json:"pipeline"`
	Params    develop.Params     `json:"params"`
	Info      *imaging.ImageInfo `json:"info,omitempty"`
}

func (s *Server) handleDevelopLoad(args json.RawMessage) (interface{}, error) {
	var a developLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	info, err := imaging.LoadImageInfo(a.Path)
	if err != nil {
		return nil, err
	}

	id, err := s.session.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return &requestResult{
		RequestID: id,
		ImageID:   a.Path,
		Pipeline:  develop.LivePipeline,
		Params:    s.session.Params(),
		Info:      info,
	}, nil
}

type developUpdateArgs struct {
	Path   string          `json:"path"`
	Params json.RawMessage `json:"params"`
}

func (s *Server) handleDevelopUpdate(args json.RawMessage) (interface{}, error) {
	var a developUpdateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	path, err := s.selectedOr(a.Path)
	if err != nil {
		return nil, err
	}
	// Another image starts from its own remembered params. One never seen
	// inherits the current ones, as it would through develop_load.
	base := s.session.Params()
	if path != s.session.Selected() {
		if remembered, ok := s.session.ParamsFor(path); ok {
			base = remembered
		}
	}
	p, err := overlay(base, a.Params)
	if err != nil {
		return nil, err
	}
	p = s.resolve(p)

	id, err := s.session.UpdatePreview(path, p)
	if err != nil {
		return nil, err
	}
	return &requestResult{RequestID: id, ImageID: path, Pipeline: develop.LivePipeline, Params: p}, nil
}

type developGetParamsArgs struct {
	Path string `json:"path"`
}

type paramsResult struct {
	ImageID string         `json:"image_id,omitempty"`
	Params  develop.Params `json:"params"`
	Stored  bool           `json:"stored"`
}

func (s *Server) handleDevelopGetParams(args json.RawMessage) (interface{}, error) {
	var a developGetParamsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	sel := s.session.Selected()
	if a.Path == "" || a.Path == sel {
		return &paramsResult{ImageID: sel, Params: s.session.Params(), Stored: sel != ""}, nil
	}
	if p, ok := s.session.ParamsFor(a.Path); ok {
		return &paramsResult{ImageID: a.Path, Params: p, Stored: true}, nil
	}
	return &paramsResult{ImageID: a.Path, Params: s.settings.Defaults}, nil
}

type developSetParamsArgs struct {
	Params json.RawMessage `json:"params"`
}

func (s *Server) handleDevelopSetParams(args json.RawMessage) (interface{}, error) {
	var a developSetParamsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	p, err := overlay(s.session.Params(), a.Params)
	if err != nil {
		return nil, err
	}
	p = s.resolve(p)
	if err := s.session.SetParams(p); err != nil {
		return nil, err
	}
	return &paramsResult{ImageID: s.session.Selected(), Params: p, Stored: s.session.Selected() != ""}, nil
}

func (s *Server) handleDevelopSaveBaseline(args json.RawMessage) (interface{}, error) {
	var a developSetParamsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	p, err := overlay(s.session.Params(), a.Params)
	if err != nil {
		return nil, err
	}
	p = s.resolve(p)

	id, err := s.session.SaveBaseline(p)
	if err != nil {
		return nil, err
	}
	return &requestResult{RequestID: id, ImageID: s.session.Selected(), Pipeline: develop.BaselinePipeline, Params: p}, nil
}

type pipelineStatus struct {
	State    string `json:"state"`
	Running  bool   `json:"running"`
	LatestID uint64 `json:"latest_id"`
}

type statusResult struct {
	Selected      string          `json:"selected,omitempty"`
	Params        develop.Params  `json:"params"`
	SavedBaseline *develop.Params `json:"saved_baseline,omitempty"`

	Live     pipelineStatus `json:"live"`
	Baseline pipelineStatus `json:"baseline"`

	LogSpaces     []string        `json:"log_spaces"`
	MeteringModes []metering.Mode `json:"metering_modes"`
	Formats       []export.Format `json:"formats"`
	Stages        []develop.Stage `json:"stages"`
	LUTFolder     string          `json:"lut_folder,omitempty"`
	LUTsCached    int             `json:"luts_cached"`
	ConfigFile    string          `json:"config_file,omitempty"`
}

func statusOf(p *develop.Pipeline) pipelineStatus {
	return pipelineStatus{
		State:    p.State().String(),
		Running:  p.Running(),
		LatestID: p.LatestID(),
	}
}

func (s *Server) handleDevelopStatus(json.RawMessage) (interface{}, error) {
	st := &statusResult{
		Selected:      s.session.Selected(),
		Params:        s.session.Params(),
		Live:          statusOf(s.session.Live()),
		Baseline:      statusOf(s.session.Baseline()),
		LogSpaces:     append([]string{colormath.NoLogSpace}, colormath.LogSpaceNames()...),
		MeteringModes: metering.Modes,
		Formats:       export.Formats,
		Stages:        develop.StageOrder,
		LUTFolder:     s.settings.LUTFolder,
		LUTsCached:    s.luts.Len(),
		ConfigFile:    s.settings.Source,
	}
	if saved, ok := s.session.SavedBaseline(); ok {
		st.SavedBaseline = &saved
	}
	return st, nil
}

// === Output Handlers ===

type developExportArgs struct {
	Source      string          `json:"source"`
	Output      string          `json:"output"`
	Format      string          `json:"format"`
	Params      json.RawMessage `json:"params"`
	JPEGQuality int             `json:"jpeg_quality"`
}

func (s *Server) handleDevelopExport(args json.RawMessage) (interface{}, error) {
	var a developExportArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Output == "" {
		return nil, fmt.Errorf("output is required")
	}
	src, err := s.selectedOr(a.Source)
	if err != nil {
		return nil, err
	}

	var format export.Format
	if a.Format != "" {
		format, err = export.ParseFormat(a.Format)
	} else {
		format, err = export.FormatFromPath(a.Output)
	}
	if err != nil {
		return nil, err
	}

	base := s.settings.Defaults
	if src == s.session.Selected() {
		base = s.session.Params()
	} else if p, ok := s.session.ParamsFor(src); ok {
		base = p
	}
	p, err := overlay(base, a.Params)
	if err != nil {
		return nil, err
	}

	quality := a.JPEGQuality
	if quality == 0 {
		quality = s.settings.JPEGQuality
	}
	return develop.ExportImage(src, a.Output, s.resolve(p), format, develop.ExportOptions{
		Decoder:     s.decoder,
		Corrector:   s.lens,
		LUTs:        s.luts,
		JPEGQuality: quality,
		Logf:        s.logf,
	})
}

type developListLUTsArgs struct {
	Folder string `json:"folder"`
}

type lutListResult struct {
	Folder string   `json:"folder"`
	Names  []string `json:"names"`
	Paths  []string `json:"paths"`
}

func (s *Server) handleDevelopListLUTs(args json.RawMessage) (interface{}, error) {
	var a developListLUTsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	folder := a.Folder
	if folder == "" {
		folder = s.settings.LUTFolder
	}
	if folder == "" {
		return nil, fmt.Errorf("no LUT folder configured; pass folder or set lut_folder")
	}

	paths, err := lut.ListDir(folder)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return &lutListResult{Folder: folder, Names: names, Paths: paths}, nil
}

// === Inspection Handlers ===

type pipelineArgs struct {
	Pipeline string `json:"pipeline"`
}

type histogramResult struct {
	Pipeline   string       `json:"pipeline"`
	RequestID  uint64       `json:"request_id"`
	ImageID    string       `json:"image_id"`
	Bins       int          `json:"bins"`
	Samples    int          `json:"samples"`
	Peak       int          `json:"peak"`
	Counts     [3][]int     `json:"counts,omitempty"`
	Normalized [3][]float64 `json:"normalized,omitempty"`
}

func (s *Server) handleDevelopHistogram(args json.RawMessage) (interface{}, error) {
	var a struct {
		pipelineArgs
		Normalized bool `json:"normalized"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	r, err := s.latest(a.Pipeline)
	if err != nil {
		return nil, err
	}
	h := r.Histogram
	if h == nil {
		h = histogram.Compute(r.Image, s.settings.HistogramBins, s.settings.HistogramStride)
	}

	out := &histogramResult{
		Pipeline:  r.Pipeline,
		RequestID: r.RequestID,
		ImageID:   r.ImageID,
		Bins:      h.Bins,
		Samples:   h.Samples,
		Peak:      h.Peak(),
	}
	if a.Normalized {
		out.Normalized = h.Normalized()
	} else {
		out.Counts = h.Counts
	}
	return out, nil
}

func (s *Server) handleDevelopPreview(args json.RawMessage) (interface{}, error) {
	var a struct {
		pipelineArgs
		MaxDim int `json:"max_dim"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	r, err := s.latest(a.Pipeline)
	if err != nil {
		return nil, err
	}
	return imaging.Preview(r.Image, a.MaxDim)
}

type developCropArgs struct {
	pipelineArgs
	X1     int     `json:"x1"`
	Y1     int     `json:"y1"`
	X2     int     `json:"x2"`
	Y2     int     `json:"y2"`
	Region string  `json:"region"`
	Scale  float64 `json:"scale"`
}

func (s *Server) handleDevelopCrop(args json.RawMessage) (interface{}, error) {
	var a developCropArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	r, err := s.latest(a.Pipeline)
	if err != nil {
		return nil, err
	}
	if a.Region != "" {
		return imaging.CropQuadrant(r.Image, a.Region, a.Scale)
	}
	return imaging.Crop(r.Image, a.X1, a.Y1, a.X2, a.Y2, a.Scale)
}

type developSampleArgs struct {
	pipelineArgs
	Points []imaging.LabeledPoint `json:"points"`
}

func (s *Server) handleDevelopSample(args json.RawMessage) (interface{}, error) {
	var a developSampleArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if len(a.Points) == 0 {
		return nil, fmt.Errorf("points array is required")
	}
	r, err := s.latest(a.Pipeline)
	if err != nil {
		return nil, err
	}
	return imaging.SampleColorsMulti(r.Image, a.Points)
}
