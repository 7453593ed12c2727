package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironsheep/point-tracker-mcp/internal/imaging"
	"github.com/ironsheep/point-tracker-mcp/internal/lk"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "track_point").
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
// A track that fails to match is not an execution error; its status is
// part of the result.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: jsonrpcVersion,
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
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Resolves optional tracking parameters against the server config
//  3. Loads images or tracker planes from cache as needed
//  4. Calls the appropriate lk/imaging function
//  5. Returns the result or error
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)

	// Tracking
	case "track_point":
		return s.handleTrackPoint(args)
	case "track_points":
		return s.handleTrackPoints(args)
	case "point_texture":
		return s.handlePointTexture(args)

	// Visualization
	case "track_window_preview":
		return s.handleTrackWindowPreview(args)
	case "track_overlay":
		return s.handleTrackOverlay(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
// An empty data is omitted.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	e := &MCPError{Code: code, Message: message}
	if data != "" {
		e.Data = data
	}
	return &MCPResponse{
		JSONRPC: jsonrpcVersion,
		ID:      id,
		Error:   e,
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// === Tracking Handlers ===

// trackOptions are the per-call overrides of Config. Pointers distinguish
// an omitted argument from an explicit zero.
type trackOptions struct {
	WindowSize    *int     `json:"window_size"`
	MinEigenvalue *float64 `json:"min_eigenvalue"`
	BlurRadius    *float64 `json:"blur_radius"`
	Luma          *string  `json:"luma"`
	Gradient      *string  `json:"gradient"`
}

// tracker is a resolved tracking setup for one tool call.
type tracker struct {
	matcher *lk.Matcher
	planes  imaging.PlaneOptions
	minEV   float64
}

func (s *Server) newTracker(o trackOptions) (*tracker, error) {
	size := s.cfg.WindowSize
	if o.WindowSize != nil {
		size = *o.WindowSize
	}
	m, err := lk.NewMatcher(lk.WithWindowSize(size), lk.WithLegacyResidualStride(s.cfg.LegacyResidualStride))
	if err != nil {
		return nil, fmt.Errorf("window_size %d: %w", size, err)
	}

	minEV := s.cfg.MinEigenvalue
	if o.MinEigenvalue != nil {
		minEV = *o.MinEigenvalue
	}

	blurRadius := s.cfg.BlurRadius
	if o.BlurRadius != nil {
		blurRadius = *o.BlurRadius
	}

	lumaName := s.cfg.Luma
	if o.Luma != nil {
		lumaName = *o.Luma
	}
	luma, err := imaging.ParseLumaModel(lumaName)
	if err != nil {
		return nil, err
	}

	gradName := s.cfg.Gradient
	if o.Gradient != nil {
		gradName = *o.Gradient
	}
	grad, err := imaging.ParseGradientOperator(gradName)
	if err != nil {
		return nil, err
	}

	return &tracker{
		matcher: m,
		minEV:   minEV,
		planes: imaging.PlaneOptions{
			Convert:  imaging.ConvertOptions{Luma: luma, BlurRadius: blurRadius},
			Gradient: grad,
		},
	}, nil
}

// loadPair loads the planes of both images with the tracker's options.
func (s *Server) loadPair(t *tracker, pathA, pathB string) (*imaging.Planes, *imaging.Planes, error) {
	a, err := s.cache.LoadPlanes(pathA, t.planes)
	if err != nil {
		return nil, nil, fmt.Errorf("reference image: %w", err)
	}
	b, err := s.cache.LoadPlanes(pathB, t.planes)
	if err != nil {
		return nil, nil, fmt.Errorf("target image: %w", err)
	}
	return a, b, nil
}

type trackPointArgs struct {
	PathA       string  `json:"path_a"`
	PathB       string  `json:"path_b"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	PredictionX float64 `json:"prediction_x"`
	PredictionY float64 `json:"prediction_y"`
	trackOptions
}

func (s *Server) handleTrackPoint(args json.RawMessage) (interface{}, error) {
	var a trackPointArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	t, err := s.newTracker(a.trackOptions)
	if err != nil {
		return nil, err
	}
	pa, pb, err := s.loadPair(t, a.PathA, a.PathB)
	if err != nil {
		return nil, err
	}

	p := lk.Vec2{X: a.X, Y: a.Y}
	pred := lk.Vec2{X: a.PredictionX, Y: a.PredictionY}
	res := imaging.TrackPoint(t.matcher, pa, pb, p, pred, t.minEV)
	return imaging.NewTrackResult(p, pred, res), nil
}

type pointArg struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	PredictionX float64 `json:"prediction_x"`
	PredictionY float64 `json:"prediction_y"`
}

type trackPointsArgs struct {
	PathA  string     `json:"path_a"`
	PathB  string     `json:"path_b"`
	Points []pointArg `json:"points"`
	trackOptions
}

// TrackPointsResult is the result of track_points.
type TrackPointsResult struct {
	WindowSize int                   `json:"window_size"`
	Tracks     []imaging.TrackResult `json:"tracks"`
	Summary    imaging.FlowSummary   `json:"summary"`
}

// trackAll matches every point in order and returns both the reported
// and the raw results.
func (s *Server) trackAll(t *tracker, pathA, pathB string, points []pointArg) ([]imaging.TrackResult, []lk.Result, error) {
	if len(points) == 0 {
		return nil, nil, errors.New("at least one point is required")
	}
	pa, pb, err := s.loadPair(t, pathA, pathB)
	if err != nil {
		return nil, nil, err
	}

	tracks := make([]imaging.TrackResult, len(points))
	results := make([]lk.Result, len(points))
	for i, pt := range points {
		p := lk.Vec2{X: pt.X, Y: pt.Y}
		pred := lk.Vec2{X: pt.PredictionX, Y: pt.PredictionY}
		results[i] = imaging.TrackPoint(t.matcher, pa, pb, p, pred, t.minEV)
		tracks[i] = imaging.NewTrackResult(p, pred, results[i])
	}
	return tracks, results, nil
}

func (s *Server) handleTrackPoints(args json.RawMessage) (interface{}, error) {
	var a trackPointsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	t, err := s.newTracker(a.trackOptions)
	if err != nil {
		return nil, err
	}
	tracks, results, err := s.trackAll(t, a.PathA, a.PathB, a.Points)
	if err != nil {
		return nil, err
	}
	return &TrackPointsResult{
		WindowSize: t.matcher.WindowSize(),
		Tracks:     tracks,
		Summary:    imaging.SummarizeFlow(results),
	}, nil
}

type pointTextureArgs struct {
	Path string  `json:"path"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	trackOptions
}

// TextureResult describes how well the window around a point constrains a
// match.
type TextureResult struct {
	Point      lk.Vec2 `json:"point"`
	WindowSize int     `json:"window_size"`

	// GXX, GXY and GYY are the structure tensor entries.
	GXX     float64 `json:"gxx"`
	GXY     float64 `json:"gxy"`
	GYY     float64 `json:"gyy"`
	Samples int     `json:"samples"`

	Eigenvalues      [2]float64 `json:"eigenvalues"`
	MinAbsEigenvalue float64    `json:"min_abs_eigenvalue"`

	// Threshold is min(min_eigenvalue, MinAbsEigenvalue), the value the
	// matcher compares against its degeneracy floor.
	Threshold float64 `json:"threshold"`
	Trackable bool    `json:"trackable"`
}

func (s *Server) handlePointTexture(args json.RawMessage) (interface{}, error) {
	var a pointTextureArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	t, err := s.newTracker(a.trackOptions)
	if err != nil {
		return nil, err
	}
	planes, err := s.cache.LoadPlanes(a.Path, t.planes)
	if err != nil {
		return nil, err
	}

	p := lk.Vec2{X: a.X, Y: a.Y}
	tensor := lk.StructureTensor(t.matcher, p, planes.Image, planes.Gradient)
	minAbs := tensor.MinAbsEigenvalue()
	threshold := min(t.minEV, minAbs)

	return &TextureResult{
		Point:            p,
		WindowSize:       t.matcher.WindowSize(),
		GXX:              tensor.XX,
		GXY:              tensor.XY,
		GYY:              tensor.YY,
		Samples:          tensor.Samples,
		Eigenvalues:      tensor.Eigenvalues(),
		MinAbsEigenvalue: minAbs,
		Threshold:        threshold,
		Trackable:        threshold >= lk.MinEigenvalue,
	}, nil
}

// === Visualization Handlers ===

type trackWindowPreviewArgs struct {
	PathA      string  `json:"path_a"`
	PathB      string  `json:"path_b"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	DX         float64 `json:"dx"`
	DY         float64 `json:"dy"`
	WindowSize int     `json:"window_size"`
	Scale      int     `json:"scale"`
}

// WindowPreviewResult pairs the reference and target windows of a match.
type WindowPreviewResult struct {
	Reference *imaging.PatchResult `json:"reference"`
	Target    *imaging.PatchResult `json:"target"`
}

func (s *Server) handleTrackWindowPreview(args json.RawMessage) (interface{}, error) {
	var a trackWindowPreviewArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.WindowSize == 0 {
		a.WindowSize = s.cfg.WindowSize
	}
	if a.Scale == 0 {
		a.Scale = 8
	}

	imgA, err := s.cache.Load(a.PathA)
	if err != nil {
		return nil, fmt.Errorf("reference image: %w", err)
	}
	imgB, err := s.cache.Load(a.PathB)
	if err != nil {
		return nil, fmt.Errorf("target image: %w", err)
	}

	p := lk.Vec2{X: a.X, Y: a.Y}
	ref, err := imaging.WindowPatch(imgA, p, a.WindowSize, a.Scale)
	if err != nil {
		return nil, fmt.Errorf("reference window: %w", err)
	}
	target, err := imaging.WindowPatch(imgB, p.Add(lk.Vec2{X: a.DX, Y: a.DY}), a.WindowSize, a.Scale)
	if err != nil {
		return nil, fmt.Errorf("target window: %w", err)
	}
	return &WindowPreviewResult{Reference: ref, Target: target}, nil
}

type trackOverlayArgs struct {
	PathA        string     `json:"path_a"`
	PathB        string     `json:"path_b"`
	Points       []pointArg `json:"points"`
	Magnify      float64    `json:"magnify"`
	Labels       *bool      `json:"labels"`
	VectorColor  string     `json:"vector_color"`
	FailureColor string     `json:"failure_color"`
	trackOptions
}

// TrackOverlayResult is the result of track_overlay.
type TrackOverlayResult struct {
	*imaging.OverlayResult
	Tracks  []imaging.TrackResult `json:"tracks"`
	Summary imaging.FlowSummary   `json:"summary"`
}

func (s *Server) handleTrackOverlay(args json.RawMessage) (interface{}, error) {
	var a trackOverlayArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	labels := true
	if a.Labels != nil {
		labels = *a.Labels
	}

	t, err := s.newTracker(a.trackOptions)
	if err != nil {
		return nil, err
	}
	tracks, results, err := s.trackAll(t, a.PathA, a.PathB, a.Points)
	if err != nil {
		return nil, err
	}

	imgB, err := s.cache.Load(a.PathB)
	if err != nil {
		return nil, err
	}
	overlay, err := imaging.DrawFlow(imgB, tracks, imaging.OverlayOptions{
		VectorColor:  a.VectorColor,
		FailureColor: a.FailureColor,
		Magnify:      a.Magnify,
		Labels:       labels,
	})
	if err != nil {
		return nil, err
	}

	return &TrackOverlayResult{
		OverlayResult: overlay,
		Tracks:        tracks,
		Summary:       imaging.SummarizeFlow(results),
	}, nil
}
