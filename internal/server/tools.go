package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// trackingProperties returns the schema of the options shared by every
// tool that builds tracker planes.
func trackingProperties() map[string]interface{} {
	return map[string]interface{}{
		"window_size": map[string]interface{}{
			"type":        "integer",
			"description": "Odd window side in pixels, 1-31 (default from server config, normally 9)",
		},
		"min_eigenvalue": map[string]interface{}{
			"type":        "number",
			"description": "Caller eigenvalue floor. Values below 0.0001 reject every window (default from server config)",
		},
		"blur_radius": map[string]interface{}{
			"type":        "number",
			"description": "Gaussian pre-smoothing radius, 0 to disable (default from server config)",
		},
		"luma": map[string]interface{}{
			"type":        "string",
			"description": "Intensity model",
			"enum":        []string{"bt601", "lab"},
		},
		"gradient": map[string]interface{}{
			"type":        "string",
			"description": "Gradient operator",
			"enum":        []string{"sobel", "central"},
		},
	}
}

func withTracking(props map[string]interface{}) map[string]interface{} {
	for k, v := range trackingProperties() {
		props[k] = v
	}
	return props
}

func pointsProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": "Points to track, in reference image coordinates",
		"items": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"x":            map[string]interface{}{"type": "number"},
				"y":            map[string]interface{}{"type": "number"},
				"prediction_x": map[string]interface{}{"type": "number", "description": "Predicted X translation (default 0)"},
				"prediction_y": map[string]interface{}{"type": "number", "description": "Predicted Y translation (default 0)"},
			},
			"required": []string{"x", "y"},
		},
	}
}

func imagePairProperties() map[string]interface{} {
	return map[string]interface{}{
		"path_a": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the reference image",
		},
		"path_b": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the target image",
		},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions and format.",
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
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
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

		// Tracking
		{
			Name: "track_point",
			Description: "Track one point from a reference image into a target image with a Lucas-Kanade window matcher. " +
				"Returns the displacement, the mean absolute intensity residual and a status: ok, ill_conditioned " +
				"(window lacks texture), diverged or out_of_bounds. Failed tracks report displacement (-1,-1).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withTracking(map[string]interface{}{
					"path_a": imagePairProperties()["path_a"],
					"path_b": imagePairProperties()["path_b"],
					"x": map[string]interface{}{
						"type":        "number",
						"description": "X coordinate in the reference image (0-based, sub-pixel allowed)",
					},
					"y": map[string]interface{}{
						"type":        "number",
						"description": "Y coordinate in the reference image (0-based, sub-pixel allowed)",
					},
					"prediction_x": map[string]interface{}{
						"type":        "number",
						"description": "Predicted X translation (default 0)",
					},
					"prediction_y": map[string]interface{}{
						"type":        "number",
						"description": "Predicted Y translation (default 0)",
					},
				}),
				"required": []string{"path_a", "path_b", "x", "y"},
			},
		},
		{
			Name:        "track_points",
			Description: "Track several points between two images. Each point is matched independently; a summary reports the mean displacement and its spread over successful tracks.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withTracking(map[string]interface{}{
					"path_a": imagePairProperties()["path_a"],
					"path_b": imagePairProperties()["path_b"],
					"points": pointsProperty(),
				}),
				"required": []string{"path_a", "path_b", "points"},
			},
		},
		{
			Name:        "point_texture",
			Description: "Report the structure tensor and its eigenvalues for the window around a point, and whether the tracker would accept it.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withTracking(map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
					"x": map[string]interface{}{"type": "number", "description": "X coordinate (0-based)"},
					"y": map[string]interface{}{"type": "number", "description": "Y coordinate (0-based)"},
				}),
				"required": []string{"path", "x", "y"},
			},
		},
		{
			Name:        "track_window_preview",
			Description: "Crop the tracking window around a point in the reference image and around its displaced position in the target image, enlarged for visual comparison. Returns two base64 PNGs.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path_a": imagePairProperties()["path_a"],
					"path_b": imagePairProperties()["path_b"],
					"x":      map[string]interface{}{"type": "number", "description": "X coordinate in the reference image"},
					"y":      map[string]interface{}{"type": "number", "description": "Y coordinate in the reference image"},
					"dx":     map[string]interface{}{"type": "number", "description": "Displacement X (default 0)"},
					"dy":     map[string]interface{}{"type": "number", "description": "Displacement Y (default 0)"},
					"window_size": map[string]interface{}{
						"type":        "integer",
						"description": "Window side in pixels (default from server config)",
					},
					"scale": map[string]interface{}{
						"type":        "integer",
						"description": "Integer enlargement factor (default 8)",
						"default":     8,
					},
				},
				"required": []string{"path_a", "path_b", "x", "y"},
			},
		},
		{
			Name:        "track_overlay",
			Description: "Track points and draw the result onto the target image: green vectors for successful tracks, red crosses for failures. Returns a base64 PNG and the flow summary.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withTracking(map[string]interface{}{
					"path_a": imagePairProperties()["path_a"],
					"path_b": imagePairProperties()["path_b"],
					"points": pointsProperty(),
					"magnify": map[string]interface{}{
						"type":        "number",
						"description": "Vector length multiplier, at most 1000 (default 1)",
						"default":     1.0,
					},
					"labels": map[string]interface{}{
						"type":        "boolean",
						"description": "Label each point with its index",
						"default":     true,
					},
					"vector_color": map[string]interface{}{
						"type":        "string",
						"description": "Hex color of successful tracks (default #00FF00)",
						"default":     "#00FF00",
					},
					"failure_color": map[string]interface{}{
						"type":        "string",
						"description": "Hex color of failed tracks (default #FF0000)",
						"default":     "#FF0000",
					},
				}),
				"required": []string{"path_a", "path_b", "points"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: jsonrpcVersion,
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
