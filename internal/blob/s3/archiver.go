package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
)

const jsonlContentType = "application/x-ndjson"

// multipartThreshold is the payload size above which runs are uploaded with
// the multipart manager instead of a single PutObject.
const multipartThreshold = 8 * 1024 * 1024

// Archiver implements domain.LeaderboardArchiver by writing each run as one
// JSONL object, one line per ranked entry.
type Archiver struct {
	writer domain.BlobWriter
}

// NewArchiver creates an Archiver on top of writer.
func NewArchiver(writer domain.BlobWriter) *Archiver {
	return &Archiver{writer: writer}
}

// archiveLine is the JSONL row written for every ranked entry. Run metadata
// is repeated on each line so objects can be queried without a manifest.
type archiveLine struct {
	RunID       string  `json:"runId"`
	Metric      string  `json:"metric"`
	Coin        string  `json:"coin,omitempty"`
	BuilderOnly bool    `json:"builderOnly"`
	FromMs      *int64  `json:"fromMs,omitempty"`
	ToMs        *int64  `json:"toMs,omitempty"`
	ComputedAt  string  `json:"computedAt"`
	Rank        int     `json:"rank"`
	User        string  `json:"user"`
	MetricValue float64 `json:"metricValue"`
	TradeCount  int     `json:"tradeCount"`
	Tainted     bool    `json:"tainted"`
}

// Archive uploads run and returns the object path. Empty runs are still
// written so that every computation leaves a trace.
func (a *Archiver) Archive(ctx context.Context, run domain.LeaderboardRun) (string, error) {
	if run.ID == "" {
		return "", fmt.Errorf("s3blob: archive run: missing id")
	}

	lines := make([]archiveLine, 0, len(run.Records))
	computedAt := run.ComputedAt.UTC().Format(time.RFC3339Nano)
	for _, r := range run.Records {
		lines = append(lines, archiveLine{
			RunID:       run.ID,
			Metric:      string(run.Metric),
			Coin:        run.Coin,
			BuilderOnly: run.BuilderOnly,
			FromMs:      run.FromMs,
			ToMs:        run.ToMs,
			ComputedAt:  computedAt,
			Rank:        r.Rank,
			User:        r.User,
			MetricValue: r.MetricValue,
			TradeCount:  r.TradeCount,
			Tainted:     r.Tainted,
		})
	}

	buf, err := marshalJSONL(lines)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive run %s marshal: %w", run.ID, err)
	}

	path := archivePath(run)
	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: archive run %s upload: %w", run.ID, err)
	}
	return path, nil
}

// archivePath partitions runs by metric and UTC day of computation:
//
//	leaderboards/pnl/2025/01/31/<runID>.jsonl
func archivePath(run domain.LeaderboardRun) string {
	t := run.ComputedAt.UTC()
	return fmt.Sprintf("leaderboards/%s/%04d/%02d/%02d/%s.jsonl",
		run.Metric, t.Year(), int(t.Month()), t.Day(), run.ID)
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.LeaderboardArchiver = (*Archiver)(nil)
