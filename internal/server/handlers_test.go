package server

import (
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ironsheep/raw-alchemy/internal/develop"
)

// createTestImageFile writes a gradient PNG into a temp dir and returns its
// path.
func createTestImageFile(t *testing.T, width, height int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(40 + 160*x/width)
			img.Set(x, y, color.RGBA{v, v, uint8(100 + y), 255})
		}
	}

	path := filepath.Join(t.TempDir(), "handler-test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// callTool runs a tools/call request and decodes the JSON text content.
func callTool(t *testing.T, s *Server, name string, args interface{}) (map[string]interface{}, *MCPError) {
	t.Helper()

	params := map[string]interface{}{"name": name, "arguments": args}
	paramsJSON, _ := json.Marshal(params)
	resp := s.handleToolsCall(&MCPRequest{JSONRPC: "2.0", ID: 1, Params: paramsJSON})
	if resp.Error != nil {
		return nil, resp.Error
	}

	content := resp.Result.(map[string]interface{})["content"].([]map[string]interface{})
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), &out); err != nil {
		t.Fatalf("tool %s returned invalid JSON: %v", name, err)
	}
	return out, nil
}

func mustCall(t *testing.T, s *Server, name string, args interface{}) map[string]interface{} {
	t.Helper()
	out, mcpErr := callTool(t, s, name, args)
	if mcpErr != nil {
		t.Fatalf("%s failed: %s: %v", name, mcpErr.Message, mcpErr.Data)
	}
	return out
}

// waitRendered waits until a rendering of the selected image is available
// on pipeline.
func waitRendered(t *testing.T, s *Server, pipeline string, kind develop.ResultKind) *develop.Result {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if r, err := s.latest(pipeline); err == nil && r.Kind == kind {
			return r
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no %s rendering on %s pipeline", kind, pipeline)
	return nil
}

// loadImage selects a fresh test image and waits for its first full render.
func loadImage(t *testing.T, s *Server) string {
	t.Helper()
	path := createTestImageFile(t, 64, 48)
	out := mustCall(t, s, "develop_load", map[string]interface{}{"path": path})
	if out["image_id"] != path {
		t.Fatalf("image_id: got %v", out["image_id"])
	}
	waitRendered(t, s, develop.LivePipeline, develop.ResultCurrent)
	return path
}

func TestDevelopLoad(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 64, 48)

	out := mustCall(t, s, "develop_load", map[string]interface{}{"path": path})
	info := out["info"].(map[string]interface{})
	if info["width"] != float64(64) || info["height"] != float64(48) {
		t.Errorf("info: got %v", info)
	}
	if out["request_id"].(float64) < 1 {
		t.Errorf("request_id: got %v", out["request_id"])
	}

	// Previews are decoded at half size.
	r := waitRendered(t, s, develop.LivePipeline, develop.ResultCurrent)
	if r.Image.Width != 32 || r.Image.Height != 24 {
		t.Errorf("rendered size: got %dx%d", r.Image.Width, r.Image.Height)
	}
}

func TestDevelopLoad_Errors(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing path", map[string]interface{}{}},
		{"nonexistent file", map[string]interface{}{"path": "/nonexistent/image.png"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, mcpErr := callTool(t, s, "develop_load", tt.args); mcpErr == nil || mcpErr.Code != -32000 {
				t.Errorf("expected tool error, got %+v", mcpErr)
			}
		})
	}
	if s.session.Selected() != "" {
		t.Error("a failed load must not change the selection")
	}
}

func TestDevelopUpdate(t *testing.T) {
	s := newTestServer(t)

	if _, mcpErr := callTool(t, s, "develop_update", map[string]interface{}{}); mcpErr == nil {
		t.Error("update without a selected image should fail")
	}

	loadImage(t, s)
	out := mustCall(t, s, "develop_update", map[string]interface{}{
		"params": map[string]interface{}{"exposure_mode": "manual", "exposure": 1.5},
	})
	params := out["params"].(map[string]interface{})
	if params["exposure"] != 1.5 || params["saturation"] != 1.25 {
		t.Errorf("partial params should merge over current ones: %v", params)
	}

	id := uint64(out["request_id"].(float64))
	deadline := time.Now().Add(5 * time.Second)
	for {
		if r, err := s.latest(""); err == nil && r.RequestID == id {
			if math.Abs(r.Gain-math.Pow(2, 1.5)) > 1e-9 {
				t.Errorf("gain: got %v, want 2^1.5", r.Gain)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("update never rendered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	_, mcpErr := callTool(t, s, "develop_update", map[string]interface{}{
		"params": map[string]interface{}{"saturation": 9},
	})
	if mcpErr == nil || !strings.Contains(mcpErr.Data.(string), "invalid") {
		t.Errorf("out of range saturation: got %+v", mcpErr)
	}
}

func TestDevelopUpdate_OtherPathKeepsItsParams(t *testing.T) {
	s := newTestServer(t)

	first := loadImage(t, s)
	mustCall(t, s, "develop_set_params", map[string]interface{}{
		"params": map[string]interface{}{"wb_temp": 30},
	})
	second := loadImage(t, s)
	mustCall(t, s, "develop_set_params", map[string]interface{}{
		"params": map[string]interface{}{"wb_temp": -20},
	})

	out := mustCall(t, s, "develop_update", map[string]interface{}{
		"path":   first,
		"params": map[string]interface{}{"exposure_mode": "manual", "exposure": 1},
	})
	if out["image_id"] != first {
		t.Fatalf("image_id: got %v, want %s", out["image_id"], first)
	}
	params := out["params"].(map[string]interface{})
	if params["wb_temp"] != float64(30) || params["exposure"] != float64(1) {
		t.Errorf("update should merge over %s's own params: %v", first, params)
	}

	got := mustCall(t, s, "develop_get_params", map[string]interface{}{"path": second})
	if wb := got["params"].(map[string]interface{})["wb_temp"]; wb != float64(-20) {
		t.Errorf("%s wb_temp: got %v, want -20", second, wb)
	}
	got = mustCall(t, s, "develop_get_params", map[string]interface{}{"path": first})
	if wb := got["params"].(map[string]interface{})["wb_temp"]; wb != float64(30) {
		t.Errorf("%s wb_temp: got %v, want 30", first, wb)
	}
}

func TestDevelopParams(t *testing.T) {
	s := newTestServer(t)
	path := loadImage(t, s)

	out := mustCall(t, s, "develop_set_params", map[string]interface{}{
		"params": map[string]interface{}{"wb_temp": 30, "log_space": "S-Log3"},
	})
	if out["image_id"] != path {
		t.Errorf("image_id: got %v", out["image_id"])
	}

	got := mustCall(t, s, "develop_get_params", map[string]interface{}{})
	params := got["params"].(map[string]interface{})
	if params["wb_temp"] != float64(30) || params["log_space"] != "S-Log3" {
		t.Errorf("params: got %v", params)
	}

	other := mustCall(t, s, "develop_get_params", map[string]interface{}{"path": "/never/seen.tif"})
	if other["stored"] != false {
		t.Errorf("unseen image should report defaults: %v", other)
	}

	if _, mcpErr := callTool(t, s, "develop_set_params", map[string]interface{}{
		"params": map[string]interface{}{"log_space": "Bogus-Log"},
	}); mcpErr == nil {
		t.Error("unknown log space should be rejected")
	}
}

func TestDevelopSaveBaseline(t *testing.T) {
	s := newTestServer(t)
	loadImage(t, s)

	out := mustCall(t, s, "develop_save_baseline", map[string]interface{}{
		"params": map[string]interface{}{"saturation": 0.5},
	})
	if out["pipeline"] != develop.BaselinePipeline {
		t.Errorf("pipeline: got %v", out["pipeline"])
	}
	waitRendered(t, s, develop.BaselinePipeline, develop.ResultCurrent)

	hist := mustCall(t, s, "develop_histogram", map[string]interface{}{"pipeline": "baseline"})
	if hist["pipeline"] != develop.BaselinePipeline || hist["samples"].(float64) == 0 {
		t.Errorf("baseline histogram: got %v", hist)
	}

	status := mustCall(t, s, "develop_status", nil)
	if status["saved_baseline"] == nil {
		t.Error("status should report the saved baseline")
	}
}

func TestDevelopInspection(t *testing.T) {
	s := newTestServer(t)

	if _, mcpErr := callTool(t, s, "develop_histogram", nil); mcpErr == nil {
		t.Error("histogram without an image should fail")
	}

	loadImage(t, s)

	hist := mustCall(t, s, "develop_histogram", map[string]interface{}{"normalized": true})
	norm := hist["normalized"].([]interface{})
	if len(norm) != 3 || len(norm[0].([]interface{})) != 100 {
		t.Errorf("normalized histogram shape: got %d channels", len(norm))
	}

	preview := mustCall(t, s, "develop_preview", map[string]interface{}{"max_dim": 16})
	if preview["width"] != float64(16) || preview["height"] != float64(12) {
		t.Errorf("preview size: got %vx%v", preview["width"], preview["height"])
	}

	crop := mustCall(t, s, "develop_crop", map[string]interface{}{"region": "center"})
	if crop["width"] != float64(16) || crop["mime_type"] != "image/png" {
		t.Errorf("crop: got %v", crop)
	}
	if _, mcpErr := callTool(t, s, "develop_crop", map[string]interface{}{"x1": 0, "y1": 0, "x2": 500, "y2": 10}); mcpErr == nil {
		t.Error("out of bounds crop should fail")
	}

	sample := mustCall(t, s, "develop_sample", map[string]interface{}{
		"points": []map[string]interface{}{{"x": 0, "y": 0, "label": "left"}, {"x": 31, "y": 23}},
	})
	samples := sample["samples"].([]interface{})
	if len(samples) != 2 || samples[0].(map[string]interface{})["label"] != "left" {
		t.Errorf("samples: got %v", samples)
	}
	if _, mcpErr := callTool(t, s, "develop_sample", map[string]interface{}{}); mcpErr == nil {
		t.Error("sample without points should fail")
	}
	if _, mcpErr := callTool(t, s, "develop_preview", map[string]interface{}{"pipeline": "archive"}); mcpErr == nil {
		t.Error("unknown pipeline should fail")
	}
}

func TestDevelopExport(t *testing.T) {
	s := newTestServer(t)
	path := loadImage(t, s)
	dir := t.TempDir()

	tests := []struct {
		name   string
		args   map[string]interface{}
		output string
	}{
		{"format from extension", map[string]interface{}{"output": filepath.Join(dir, "a.tif")}, "a.tif"},
		{"explicit format", map[string]interface{}{"output": filepath.Join(dir, "b.out"), "format": "jpg", "jpeg_quality": 70}, "b.out"},
		{"explicit source", map[string]interface{}{"source": path, "output": filepath.Join(dir, "c.png"), "params": map[string]interface{}{"log_space": "V-Log"}}, "c.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := mustCall(t, s, "develop_export", tt.args)
			if report["width"] != float64(64) {
				t.Errorf("report: got %v", report)
			}
			if _, err := os.Stat(filepath.Join(dir, tt.output)); err != nil {
				t.Errorf("output missing: %v", err)
			}
		})
	}

	if _, mcpErr := callTool(t, s, "develop_export", map[string]interface{}{"output": filepath.Join(dir, "d.webp")}); mcpErr == nil {
		t.Error("unsupported format should fail")
	}
	if _, mcpErr := callTool(t, s, "develop_export", map[string]interface{}{}); mcpErr == nil {
		t.Error("missing output should fail")
	}
}

func TestDevelopListLUTs(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	for _, name := range []string{"b.cube", "A.CUBE", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("LUT_3D_SIZE 2\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	out := mustCall(t, s, "develop_list_luts", map[string]interface{}{"folder": dir})
	names := out["names"].([]interface{})
	if len(names) != 2 || names[0] != "A.CUBE" || names[1] != "b.cube" {
		t.Errorf("names: got %v", names)
	}

	if _, mcpErr := callTool(t, s, "develop_list_luts", nil); mcpErr == nil {
		t.Error("listing without a configured folder should fail")
	}
}

func TestDevelopStatus(t *testing.T) {
	s := newTestServer(t)
	out := mustCall(t, s, "develop_status", nil)

	live := out["live"].(map[string]interface{})
	if live["state"] != "unloaded" || live["running"] != false {
		t.Errorf("idle live pipeline: got %v", live)
	}
	if len(out["log_spaces"].([]interface{})) < 2 || len(out["metering_modes"].([]interface{})) != 5 {
		t.Errorf("option sets: got %v / %v", out["log_spaces"], out["metering_modes"])
	}
	stages := out["stages"].([]interface{})
	if stages[0] != "lens" || stages[len(stages)-1] != "display" {
		t.Errorf("stages: got %v", stages)
	}
}

func TestExecuteTool_Unknown(t *testing.T) {
	s := newTestServer(t)
	_, mcpErr := callTool(t, s, "image_ocr_full", nil)
	if mcpErr == nil || !strings.Contains(mcpErr.Data.(string), "unknown tool") {
		t.Errorf("got %+v", mcpErr)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleToolsCall(&MCPRequest{JSONRPC: "2.0", ID: 1, Params: json.RawMessage(`[1,2]`)})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("got %+v", resp.Error)
	}
}

func TestNewResultPayload(t *testing.T) {
	s := newTestServer(t)
	loadImage(t, s)
	r, err := s.latest("")
	if err != nil {
		t.Fatal(err)
	}

	p := newResultPayload(*r)
	if p.Kind != "current" || p.Preview == nil || p.Histogram == nil || p.Error != "" {
		t.Errorf("payload: %+v", p)
	}
	if len(p.Stages) == 0 || p.Stages[len(p.Stages)-1] != develop.StageDisplay {
		t.Errorf("stages: got %v", p.Stages)
	}

	failed := newResultPayload(develop.Result{Pipeline: "live", Kind: develop.ResultCurrent, Err: os.ErrNotExist})
	if failed.Error == "" || failed.Preview != nil {
		t.Errorf("failed payload: %+v", failed)
	}
}
