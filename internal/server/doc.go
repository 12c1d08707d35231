// Package server implements the MCP (Model Context Protocol) server that
// drives an interactive develop session.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses and notifications on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Session:
//   - develop_load: Select an image and decode it
//   - develop_update: Render with changed adjustments
//   - develop_get_params / develop_set_params: Read or change adjustments
//   - develop_save_baseline: Render a reference on the baseline pipeline
//   - develop_status: Pipeline states and the closed option sets
//
// Output:
//   - develop_export: Full-resolution synchronous export
//   - develop_list_luts: List .cube files in the LUT folder
//
// Inspection of the latest rendering:
//   - develop_histogram, develop_preview, develop_crop, develop_sample
//
// # Asynchronous Results
//
// develop_load, develop_update and develop_save_baseline answer as soon as
// the request is queued. The rendering itself is pushed later as a
// notification:
//
//	{"jsonrpc":"2.0","method":"notifications/develop/result","params":{
//	  "pipeline":"live","kind":"current","request_id":7,"image_id":"/a.tif",
//	  "gain":1.8,"stages":[...],"histogram":{...},"preview":{...}}}
//
// Only results for the selected image and the newest request of their
// pipeline are delivered; superseded renderings are dropped silently.
// Responses and notifications share stdout and are written one whole line
// at a time.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// A failed rendering is delivered as a notification with an error field.
//
// # Usage
//
//	srv, err := server.New(server.Options{Settings: &settings, Store: store})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
