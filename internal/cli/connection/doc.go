// Package connection is the HTTP client deltamesh-cli uses to reach a
// server's admin and session API. It unwraps the server's response
// envelope and turns error answers into *APIError.
package connection
