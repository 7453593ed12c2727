// Package server implements the MCP (Model Context Protocol) server for
// sub-pixel point tracking between two images.
//
// This package provides a JSON-RPC 2.0 server that exposes the Lucas-Kanade
// matcher of package lk, together with a few inspection helpers, through
// the MCP protocol.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Basic Image Information:
//   - image_load: Load image and get metadata
//   - image_dimensions: Get width and height
//
// Tracking:
//   - track_point: Match one point from image A into image B
//   - track_points: Match a list of points, with a flow summary
//   - point_texture: Structure tensor and trackability of a window
//
// Visualization:
//   - track_window_preview: Enlarged windows around a match in A and B
//   - track_overlay: Flow vectors drawn onto image B
//
// A point that cannot be tracked is not an error. Its result carries a
// status of ill_conditioned, diverged or out_of_bounds together with the
// displacement (-1,-1) and the sentinel error value.
//
// # Configuration
//
// Tracking defaults come from Config, normally built by ConfigFromEnv. Each
// tracking tool accepts window_size, min_eigenvalue, blur_radius, luma and
// gradient arguments that override the defaults for that call.
//
// # Image Caching
//
// The server keeps decoded images and their derived tracker planes in an
// imaging.ImageCache for the lifetime of the process. Planes are cached per
// set of conversion options, so repeated calls against the same frames only
// pay for decoding and gradient computation once.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//     (-32700 for a line that is not JSON, -32600 for a request without a
//     method, -32601 for an unknown method, -32602 for bad tools/call params)
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// # Usage
//
//	cfg, err := server.ConfigFromEnv(os.Getenv)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := server.New(cfg).Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
