// Package tradelog is the durable trade journal: one JSON line per closed trade
// in a daily file, with an optional SQLite mirror for querying.
package tradelog

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pivot-itm-bot/internal/interfaces"
	"pivot-itm-bot/internal/logger"
	"pivot-itm-bot/internal/types"
)

var _ interfaces.Journal = (*Journal)(nil)

// DecisionEntry is one strategy decision (pivot computed, bias locked).
type DecisionEntry struct {
	Time      string             `json:"time"`
	Kind      string             `json:"kind"`
	Decision  string             `json:"decision"`
	Reference float64            `json:"reference"`
	Reason    string             `json:"reason"`
	Values    map[string]float64 `json:"values,omitempty"`
}

type Journal struct {
	dir    string
	loc    *time.Location
	now    func() time.Time
	mirror *SQLiteStore

	mu sync.Mutex
}

type Option func(*Journal)

// WithSQLite mirrors every appended trade into s.
func WithSQLite(s *SQLiteStore) Option { return func(j *Journal) { j.mirror = s } }

func WithClock(now func() time.Time) Option { return func(j *Journal) { j.now = now } }

func New(dir string, loc *time.Location, opts ...Option) *Journal {
	if dir == "" {
		dir = "logs"
	}
	if loc == nil {
		loc = time.FixedZone("IST", 19800)
	}
	j := &Journal{dir: dir, loc: loc, now: time.Now}
	for _, o := range opts {
		o(j)
	}
	return j
}

func (j *Journal) Dir() string { return j.dir }

func (j *Journal) dailyFilepath(date string) string {
	return filepath.Join(j.dir, date+".txt")
}

func (j *Journal) decisionsFilepath(date string) string {
	return filepath.Join(j.dir, "decisions", date+".txt")
}

// AppendTradeRecord writes rec to the file of its trade date. The SQLite
// mirror is best effort: a mirror failure is logged, not returned.
func (j *Journal) AppendTradeRecord(ctx context.Context, rec types.TradeRecord) error {
	if rec.Date == "" {
		rec.Date = rec.ExitTime.In(j.loc).Format("2006-01-02")
	}
	if err := j.appendLine(j.dailyFilepath(rec.Date), rec); err != nil {
		return fmt.Errorf("journal append: %w", err)
	}
	if j.mirror != nil {
		if err := j.mirror.Insert(ctx, rec); err != nil {
			logger.ErrorWithErr(ctx, "SQLite journal mirror insert failed", err, "symbol", rec.Symbol)
		}
	}
	return nil
}

func (j *Journal) AppendDecision(e DecisionEntry) error {
	now := j.now().In(j.loc)
	e.Time = now.Format("2006-01-02 15:04:05")
	return j.appendLine(j.decisionsFilepath(now.Format("2006-01-02")), e)
}

func (j *Journal) appendLine(p string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// ReadDay returns the trades journaled for date (YYYY-MM-DD). A missing file
// yields no trades. Unparseable lines are skipped.
func (j *Journal) ReadDay(date string) ([]types.TradeRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.dailyFilepath(date))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []types.TradeRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec types.TradeRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}

// CompressOlder gzips daily files whose modification time is older than
// retentionDays and removes the originals.
func (j *Journal) CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := j.now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(j.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, er := d.Info()
		if er != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, e2 := os.Stat(gz); e2 == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			logger.Warn(context.Background(), "Journal compression failed", "file", p, "error", err)
			return nil
		}
		_ = os.Remove(p)
		return nil
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
