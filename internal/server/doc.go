// Package server implements the HTTP API: health, session status, asset
// export/import and Prometheus metrics endpoints.
package server
