package storage

import (
	"strings"
	"time"
)

const keyDateLayout = "2006-01-02"

// BuildRunKey returns runs/<date>/<scenario>/<runID>/<filename>.
func BuildRunKey(date time.Time, scenario, runID, filename string) string {
	return strings.Join([]string{
		"runs",
		date.UTC().Format(keyDateLayout),
		sanitizeSegment(scenario),
		sanitizeSegment(runID),
		filename,
	}, "/")
}

// BuildBatchKey returns batches/<date>/<batchID>/<filename>.
func BuildBatchKey(date time.Time, batchID, filename string) string {
	return strings.Join([]string{
		"batches",
		date.UTC().Format(keyDateLayout),
		sanitizeSegment(batchID),
		filename,
	}, "/")
}

var segmentReplacer = strings.NewReplacer("/", "_", "\\", "_", "..", "_", " ", "_")

func sanitizeSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unnamed"
	}
	return segmentReplacer.Replace(s)
}
