// Package output renders deltamesh-cli results.
//
// Every command hands its decoded response to a Formatter:
//
//   - table: aligned columns for people, with --wide adding more
//   - json: indented JSON, the server payload unchanged
//   - yaml: the same document as YAML
//
// Spinner gives feedback while a command polls the server.
package output
