package server

import (
	"github.com/ironsheep/raw-alchemy/internal/colormath"
	"github.com/ironsheep/raw-alchemy/internal/metering"
)

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// paramsSchema describes develop.Params. Every field is optional; omitted
// fields keep the image's current value.
func paramsSchema() map[string]interface{} {
	modes := make([]string, len(metering.Modes))
	for i, m := range metering.Modes {
		modes[i] = string(m)
	}
	return map[string]interface{}{
		"type":        "object",
		"description": "Adjustments to apply. Omitted fields keep their current value.",
		"properties": map[string]interface{}{
			"exposure_mode": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"auto", "manual"},
				"description": "auto meters the image; manual applies exposure in EV",
			},
			"exposure": map[string]interface{}{
				"type":        "number",
				"minimum":     -5,
				"maximum":     5,
				"description": "Manual exposure in stops",
			},
			"metering": map[string]interface{}{
				"type":        "string",
				"enum":        modes,
				"description": "Metering mode used when exposure_mode is auto",
			},
			"wb_temp": map[string]interface{}{
				"type":        "number",
				"minimum":     -100,
				"maximum":     100,
				"description": "White balance temperature offset (positive is warmer)",
			},
			"wb_tint": map[string]interface{}{
				"type":        "number",
				"minimum":     -100,
				"maximum":     100,
				"description": "White balance tint offset (positive is more magenta)",
			},
			"highlight": map[string]interface{}{
				"type":    "number",
				"minimum": -100,
				"maximum": 100,
			},
			"shadow": map[string]interface{}{
				"type":    "number",
				"minimum": -100,
				"maximum": 100,
			},
			"saturation": map[string]interface{}{
				"type":        "number",
				"minimum":     0,
				"maximum":     3,
				"description": "Chroma multiplier, 1 is neutral",
			},
			"contrast": map[string]interface{}{
				"type":        "number",
				"minimum":     0,
				"maximum":     3,
				"description": "Power around mid-gray, 1 is neutral",
			},
			"log_space": map[string]interface{}{
				"type":        "string",
				"enum":        append([]string{colormath.NoLogSpace}, colormath.LogSpaceNames()...),
				"description": "Camera log encoding, or None for a display rendering",
			},
			"lut_path": map[string]interface{}{
				"type":        "string",
				"description": "A .cube file, or a bare file name inside the configured LUT folder. Empty for none.",
			},
			"lens_correct": map[string]interface{}{
				"type":        "boolean",
				"description": "Apply vignetting correction from the lens database",
			},
			"lens_database": map[string]interface{}{
				"type":        "string",
				"description": "Custom lens database (YAML); empty uses the configured one",
			},
		},
	}
}

func pipelineSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        []string{"live", "baseline"},
		"description": "Which rendering to inspect. Default live.",
		"default":     "live",
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Session
		{
			Name:        "develop_load",
			Description: "Select an image and start decoding it. Returns immediately with the request id; an 'original' preview and then a rendering with the image's adjustments arrive as notifications/develop/result.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "develop_update",
			Description: "Render the selected image with changed adjustments. Superseded requests are dropped; only the newest rendering is delivered.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Image to render. Defaults to the selected image.",
					},
					"params": paramsSchema(),
				},
			},
		},
		{
			Name:        "develop_get_params",
			Description: "Get the adjustments of the selected image, or those remembered for another image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Image path. Defaults to the selected image.",
					},
				},
			},
		},
		{
			Name:        "develop_set_params",
			Description: "Change the adjustments of the selected image without rendering.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"params": paramsSchema(),
				},
				"required": []string{"params"},
			},
		},
		{
			Name:        "develop_save_baseline",
			Description: "Render the selected image on the baseline pipeline as a reference for comparison. Reuses the decoded image of the live pipeline.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"params": paramsSchema(),
				},
			},
		},
		{
			Name:        "develop_status",
			Description: "Report the selected image, current adjustments, pipeline states and the available log spaces, metering modes and export formats.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},

		// Output
		{
			Name:        "develop_export",
			Description: "Develop an image at full resolution and write it to disk. Runs synchronously without the preview cache.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"source": map[string]interface{}{
						"type":        "string",
						"description": "Source image. Defaults to the selected image.",
					},
					"output": map[string]interface{}{
						"type":        "string",
						"description": "Absolute output path",
					},
					"format": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"jpeg", "png", "tiff"},
						"description": "Output format. Defaults to the output file extension.",
					},
					"jpeg_quality": map[string]interface{}{
						"type":        "integer",
						"minimum":     1,
						"maximum":     100,
						"description": "JPEG quality. Defaults to the configured quality.",
					},
					"params": paramsSchema(),
				},
				"required": []string{"output"},
			},
		},
		{
			Name:        "develop_list_luts",
			Description: "List the .cube files in the LUT folder.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"folder": map[string]interface{}{
						"type":        "string",
						"description": "Folder to list. Defaults to the configured lut_folder.",
					},
				},
			},
		},

		// Inspection
		{
			Name:        "develop_histogram",
			Description: "Get the RGB histogram of the latest rendering.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"pipeline": pipelineSchema(),
					"normalized": map[string]interface{}{
						"type":        "boolean",
						"description": "Scale each channel to a peak of 1 instead of returning counts",
						"default":     false,
					},
				},
			},
		},
		{
			Name:        "develop_preview",
			Description: "Get the latest rendering as a base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"pipeline": pipelineSchema(),
					"max_dim": map[string]interface{}{
						"type":        "integer",
						"description": "Long side limit in pixels. Default 1024.",
						"default":     1024,
					},
				},
			},
		},
		{
			Name:        "develop_crop",
			Description: "Crop a region of the latest rendering and return it as base64-encoded PNG. Use this to inspect detail at preview resolution.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"pipeline": pipelineSchema(),
					"x1": map[string]interface{}{
						"type":        "integer",
						"description": "Left edge X coordinate (0-based)",
					},
					"y1": map[string]interface{}{
						"type":        "integer",
						"description": "Top edge Y coordinate (0-based)",
					},
					"x2": map[string]interface{}{
						"type":        "integer",
						"description": "Right edge X coordinate (exclusive)",
					},
					"y2": map[string]interface{}{
						"type":        "integer",
						"description": "Bottom edge Y coordinate (exclusive)",
					},
					"region": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"top-left", "top-right", "bottom-left", "bottom-right", "top-half", "bottom-half", "left-half", "right-half", "center"},
						"description": "Named region; overrides the coordinates",
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor. Default 1.0",
						"default":     1.0,
					},
				},
			},
		},
		{
			Name:        "develop_sample",
			Description: "Sample pixel values of the latest rendering at one or more points.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"pipeline": pipelineSchema(),
					"points": map[string]interface{}{
						"type":        "array",
						"description": "Points to sample",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"x":     map[string]interface{}{"type": "integer"},
								"y":     map[string]interface{}{"type": "integer"},
								"label": map[string]interface{}{"type": "string"},
							},
							"required": []string{"x", "y"},
						},
					},
				},
				"required": []string{"points"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
