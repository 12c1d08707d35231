package server

import (
	"testing"

	"github.com/ironsheep/raw-alchemy/internal/colormath"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	if len(tools) == 0 {
		t.Fatal("GetToolDefinitions returned empty slice")
	}

	expectedTools := []string{
		"develop_load",
		"develop_update",
		"develop_get_params",
		"develop_set_params",
		"develop_save_baseline",
		"develop_status",
		"develop_export",
		"develop_list_luts",
		"develop_histogram",
		"develop_preview",
		"develop_crop",
		"develop_sample",
	}

	toolMap := make(map[string]Tool)
	for _, tool := range tools {
		if _, dup := toolMap[tool.Name]; dup {
			t.Errorf("Duplicate tool %s", tool.Name)
		}
		toolMap[tool.Name] = tool
	}

	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
	if len(tools) != len(expectedTools) {
		t.Errorf("got %d tools, want %d", len(tools), len(expectedTools))
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("InputSchema type: got %v, want 'object'", tool.InputSchema["type"])
			}
			props, ok := tool.InputSchema["properties"].(map[string]interface{})
			if !ok {
				t.Fatal("InputSchema properties should be a map")
			}

			// Every required field must be a declared property
			if required, ok := tool.InputSchema["required"].([]string); ok {
				for _, field := range required {
					if _, ok := props[field]; !ok {
						t.Errorf("required field %s is not a property", field)
					}
				}
			}
		})
	}
}

func TestToolDefinitions_ExecutorCoverage(t *testing.T) {
	s := newTestServer(t)
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			// Errors are expected without a selected image; an unknown
			// tool means the dispatcher is missing a case.
			_, err := s.executeTool(tool.Name, []byte(`{"path":"/nonexistent.png","output":"/nonexistent/out.png","folder":"/nonexistent","points":[{"x":0,"y":0}]}`))
			if err != nil && err.Error() == "unknown tool: "+tool.Name {
				t.Errorf("tool %s has no executor", tool.Name)
			}
		})
	}
}

func TestParamsSchema(t *testing.T) {
	props := paramsSchema()["properties"].(map[string]interface{})

	for _, field := range []string{
		"exposure_mode", "exposure", "metering", "wb_temp", "wb_tint",
		"highlight", "shadow", "saturation", "contrast", "log_space",
		"lut_path", "lens_correct", "lens_database",
	} {
		if _, ok := props[field]; !ok {
			t.Errorf("params schema missing %s", field)
		}
	}

	logSpaces := props["log_space"].(map[string]interface{})["enum"].([]string)
	if logSpaces[0] != colormath.NoLogSpace {
		t.Errorf("first log space: got %s, want %s", logSpaces[0], colormath.NoLogSpace)
	}
	if len(logSpaces) != len(colormath.LogSpaceNames())+1 {
		t.Errorf("got %d log spaces", len(logSpaces))
	}

	modes := props["metering"].(map[string]interface{})["enum"].([]string)
	if len(modes) != 5 {
		t.Errorf("got %d metering modes, want 5", len(modes))
	}
}
