// Package testutil provides in-process stand-ins for the edge cache's
// external collaborators: an S3-compatible bucket, the origin server and a
// clock-driven hot cache.
package testutil
