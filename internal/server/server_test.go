package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"image/color"
	"math"
	"strings"
	"testing"

	"github.com/ironsheep/point-tracker-mcp/internal/imaging"
	"github.com/ironsheep/point-tracker-mcp/internal/lk"
)

// serve runs lines through Serve and decodes every response written.
func serve(t *testing.T, s *Server, lines ...string) []MCPResponse {
	t.Helper()

	var out bytes.Buffer
	if err := s.Serve(strings.NewReader(strings.Join(lines, "\n")), &out); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	var responses []MCPResponse
	scanner := bufio.NewScanner(&out)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRequestBytes)
	for scanner.Scan() {
		var resp MCPResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response %q: %v", scanner.Text(), err)
		}
		responses = append(responses, resp)
	}
	return responses
}

// toolCallLine encodes a tools/call request.
func toolCallLine(t *testing.T, id int, name string, args map[string]interface{}) string {
	t.Helper()

	line, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params":  map[string]interface{}{"name": name, "arguments": args},
	})
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	return string(line)
}

// decodeContent unmarshals the text content of a decoded tools/call
// response into v.
func decodeContent(t *testing.T, resp MCPResponse, v interface{}) {
	t.Helper()

	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("Result should be an object, got %T", resp.Result)
	}
	content, ok := result["content"].([]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("Result should hold one content item, got %v", result["content"])
	}
	item, _ := content[0].(map[string]interface{})
	if item["type"] != "text" {
		t.Errorf("content type: got %v, want text", item["type"])
	}
	text, _ := item["text"].(string)
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("Failed to unmarshal content %q: %v", text, err)
	}
}

func TestNew(t *testing.T) {
	s := New(DefaultConfig())
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.cache == nil {
		t.Fatal("New() did not initialize cache")
	}
}

func TestHandleRequest_Ping(t *testing.T) {
	s := New(DefaultConfig())
	req := &MCPRequest{
		JSONRPC: "2.0",
		ID:      "ping-1",
		Method:  "ping",
	}

	resp := s.handleRequest(req)

	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}
	if resp.ID != "ping-1" {
		t.Errorf("ID: got %v, want ping-1", resp.ID)
	}
}

func TestHandleRequest_ToolsList(t *testing.T) {
	s := New(DefaultConfig())
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/list"})

	if resp == nil || resp.Error != nil {
		t.Fatalf("tools/list failed: %+v", resp)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	tools, ok := result["tools"].([]Tool)
	if !ok {
		t.Fatal("tools should be a slice of Tool")
	}

	tracking := map[string]bool{"track_point": true, "track_points": true, "point_texture": true, "track_overlay": true}
	seen := 0
	for _, tool := range tools {
		if !tracking[tool.Name] {
			continue
		}
		seen++
		props, _ := tool.InputSchema["properties"].(map[string]interface{})
		for _, opt := range []string{"window_size", "min_eigenvalue", "blur_radius", "luma", "gradient"} {
			if _, ok := props[opt]; !ok {
				t.Errorf("%s: schema lacks tracking option %s", tool.Name, opt)
			}
		}
	}
	if seen != len(tracking) {
		t.Errorf("tools/list: found %d of %d tracking tools", seen, len(tracking))
	}
}

func TestHandleRequest_Notifications(t *testing.T) {
	s := New(DefaultConfig())

	for _, method := range []string{"notifications/initialized", "notifications/cancelled"} {
		if resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", Method: method}); resp != nil {
			t.Errorf("%s should return nil response, got %+v", method, resp)
		}
	}
}

func TestHandleRequest_MethodNotFound(t *testing.T) {
	s := New(DefaultConfig())
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "nonexistent/method"})

	if resp == nil || resp.Error == nil {
		t.Fatal("Expected error for unknown method")
	}
	if resp.Error.Code != codeMethodNotFound {
		t.Errorf("Error code: got %d, want %d", resp.Error.Code, codeMethodNotFound)
	}
}

func TestHandleInitialize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowSize = 11
	s := New(cfg)

	resp := s.handleInitialize(&MCPRequest{JSONRPC: "2.0", ID: "init-1"})

	if resp.ID != "init-1" {
		t.Errorf("ID: got %v, want init-1", resp.ID)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	if result["protocolVersion"] != protocolVersion {
		t.Errorf("protocolVersion: got %v", result["protocolVersion"])
	}

	serverInfo, ok := result["serverInfo"].(map[string]interface{})
	if !ok {
		t.Fatal("serverInfo should be a map")
	}
	if serverInfo["name"] != "point-tracker-mcp" {
		t.Errorf("serverInfo.name: got %v", serverInfo["name"])
	}

	instructions, _ := result["instructions"].(string)
	if !strings.Contains(instructions, "window 11x11") {
		t.Errorf("instructions should carry the configured window: %q", instructions)
	}
}

func TestServe(t *testing.T) {
	s := New(DefaultConfig())
	responses := serve(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`not json`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"nope"}`,
		`{"jsonrpc":"2.0","id":4}`,
	)

	// The notification and the blank line get no reply
	if len(responses) != 5 {
		t.Fatalf("Expected 5 responses, got %d", len(responses))
	}

	wantIDs := []interface{}{float64(1), nil, float64(2), float64(3), float64(4)}
	for i, resp := range responses {
		if resp.ID != wantIDs[i] {
			t.Errorf("response %d: ID got %v, want %v", i, resp.ID, wantIDs[i])
		}
	}
	if responses[0].Error != nil || responses[2].Error != nil {
		t.Error("initialize and tools/list should succeed")
	}

	wantCodes := map[int]int{1: codeParseError, 3: codeMethodNotFound, 4: codeInvalidRequest}
	for i, code := range wantCodes {
		if responses[i].Error == nil || responses[i].Error.Code != code {
			t.Errorf("response %d: got error %+v, want code %d", i, responses[i].Error, code)
		}
	}
}

func TestServe_TrackPoint(t *testing.T) {
	s := New(DefaultConfig())
	pathA := createTextureFile(t, 100, 100, 0, 0)
	pathB := createTextureFile(t, 100, 100, 3, -2)
	flat := createTestImageFile(t, 100, 100, color.Gray{Y: 120})

	responses := serve(t, s,
		toolCallLine(t, 1, "track_point", map[string]interface{}{
			"path_a": pathA, "path_b": pathB, "x": 50, "y": 50,
			"prediction_x": 2.5, "prediction_y": -1.5,
		}),
		toolCallLine(t, 2, "track_point", map[string]interface{}{
			"path_a": flat, "path_b": flat, "x": 50, "y": 50,
		}),
		toolCallLine(t, 3, "track_point", map[string]interface{}{
			"path_a": pathA, "path_b": pathB, "x": 50, "y": 50, "window_size": 8,
		}),
	)
	if len(responses) != 3 {
		t.Fatalf("Expected 3 responses, got %d", len(responses))
	}

	var ok imaging.TrackResult
	decodeContent(t, responses[0], &ok)
	if ok.Status != "ok" {
		t.Fatalf("Status: got %s, want ok", ok.Status)
	}
	if math.Abs(ok.Displacement.X-3) > 0.15 || math.Abs(ok.Displacement.Y+2) > 0.15 {
		t.Errorf("Displacement: got %+v, want about (3, -2)", ok.Displacement)
	}

	// An untrackable point is a result, not a protocol error.
	var flatTrack imaging.TrackResult
	decodeContent(t, responses[1], &flatTrack)
	if flatTrack.Status != "ill_conditioned" || flatTrack.Displacement != lk.NoMatch {
		t.Errorf("uniform window: got status %s displacement %+v", flatTrack.Status, flatTrack.Displacement)
	}
	if flatTrack.Error != lk.IllConditionedError {
		t.Errorf("uniform window Error: got %v, want %v", flatTrack.Error, lk.IllConditionedError)
	}

	if responses[2].Error == nil || responses[2].Error.Code != codeToolFailed {
		t.Errorf("even window: got error %+v, want code %d", responses[2].Error, codeToolFailed)
	}
}

func TestServe_PointTextureAndTrackPoints(t *testing.T) {
	s := New(DefaultConfig())
	pathA := createTextureFile(t, 80, 80, 0, 0)
	pathB := createTextureFile(t, 80, 80, 1, 1)

	responses := serve(t, s,
		toolCallLine(t, 1, "point_texture", map[string]interface{}{"path": pathA, "x": 40, "y": 40, "window_size": 7}),
		toolCallLine(t, 2, "track_points", map[string]interface{}{
			"path_a": pathA, "path_b": pathB,
			"points": []map[string]interface{}{
				{"x": 30, "y": 30, "prediction_x": 0.5, "prediction_y": 0.5},
				{"x": 40, "y": 45, "prediction_x": 0.5, "prediction_y": 0.5},
				{"x": 40, "y": 40, "prediction_x": 500},
			},
		}),
	)
	if len(responses) != 2 {
		t.Fatalf("Expected 2 responses, got %d", len(responses))
	}

	var texture TextureResult
	decodeContent(t, responses[0], &texture)
	if texture.WindowSize != 7 || texture.Samples != 49 {
		t.Errorf("point_texture: got window %d with %d samples, want 7 and 49", texture.WindowSize, texture.Samples)
	}
	if !texture.Trackable {
		t.Errorf("textured window should be trackable: %+v", texture)
	}

	var points TrackPointsResult
	decodeContent(t, responses[1], &points)
	if len(points.Tracks) != 3 {
		t.Fatalf("Tracks: got %d, want 3", len(points.Tracks))
	}
	if points.Tracks[2].Status != "out_of_bounds" {
		t.Errorf("third track: got status %s, want out_of_bounds", points.Tracks[2].Status)
	}
	if points.Summary.Tracked != 2 {
		t.Errorf("Summary.Tracked: got %d, want 2", points.Summary.Tracked)
	}
}

func TestServe_TrackOverlayRejectsHugeMagnify(t *testing.T) {
	s := New(DefaultConfig())
	texture := createTextureFile(t, 60, 60, 0, 0)

	args := func(magnify float64) map[string]interface{} {
		return map[string]interface{}{
			"path_a": texture, "path_b": texture, "magnify": magnify,
			"points": []map[string]interface{}{{"x": 30, "y": 30}},
		}
	}
	responses := serve(t, s,
		toolCallLine(t, 1, "track_overlay", args(1e9)),
		toolCallLine(t, 2, "track_overlay", args(imaging.MaxMagnify)),
	)
	if len(responses) != 2 {
		t.Fatalf("Expected 2 responses, got %d", len(responses))
	}

	rejected := responses[0].Error
	if rejected == nil || rejected.Code != codeToolFailed {
		t.Fatalf("magnify 1e9: got error %+v, want code %d", rejected, codeToolFailed)
	}
	if data, _ := rejected.Data.(string); !strings.Contains(data, "magnify") {
		t.Errorf("error data should name magnify: %v", rejected.Data)
	}

	var overlay TrackOverlayResult
	decodeContent(t, responses[1], &overlay)
	if overlay.Drawn != 1 || overlay.ImageBase64 == "" {
		t.Errorf("overlay at the magnify limit: drawn %d, image empty %v", overlay.Drawn, overlay.ImageBase64 == "")
	}
}

func TestServe_DebugLogging(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Debug = true
	s := New(cfg)

	responses := serve(t, s,
		`{"jsonrpc":"2.0","id":"p","method":"ping"}`,
		toolCallLine(t, 2, "track_point", map[string]interface{}{"path_a": "/missing/a.png", "path_b": "/missing/b.png"}),
	)
	if len(responses) != 2 || responses[0].ID != "p" {
		t.Fatalf("unexpected responses: %+v", responses)
	}
	if responses[1].Error == nil {
		t.Error("missing images should fail the call")
	}
}
