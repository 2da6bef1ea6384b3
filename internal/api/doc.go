// Package api exposes the studio over HTTP: direct agent calls, the studio
// views, queued generation jobs, health and Prometheus metrics.
package api
