package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Prathameshworks247/AGILITY/internal/domain"
	"github.com/Prathameshworks247/AGILITY/internal/events"
)

// maxInParams keeps batched IN clauses under SQLite's bound-parameter limit.
const maxInParams = 500

var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// newReviewID returns a ULID. Ids minted in the same millisecond still sort
// in mint order, which makes them a stable secondary key for created_at.
func newReviewID(t time.Time) string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), idEntropy).String()
}

const reviewColumns = `id,task_id,developer_id,status,summary,findings_json,created_at`

// InsertReview persists a review and its review.created event in one
// transaction. ID and CreatedAt on the input are ignored; both are assigned
// here.
func (r Repo) InsertReview(ctx context.Context, projectID string, rv domain.Review) (domain.Review, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	ts := now()
	rv.ID = newReviewID(ts)
	rv.CreatedAt = Timestamp(ts)
	if rv.Findings == nil {
		rv.Findings = domain.Findings{}
	}
	findings, err := json.Marshal(rv.Findings)
	if err != nil {
		return domain.Review{}, fmt.Errorf("marshal findings: %w", err)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Review{}, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT INTO reviews(`+reviewColumns+`) VALUES (?,?,?,?,?,?,?)`,
		rv.ID, rv.TaskID, rv.DeveloperID, string(rv.Status), rv.Summary, string(findings), rv.CreatedAt); err != nil {
		return domain.Review{}, fmt.Errorf("insert review: %w", err)
	}
	w := events.Writer{DB: r.DB, Now: func() time.Time { return ts }}
	if err := w.Append(ctx, tx, events.ReviewCreated, projectID, "task", rv.TaskID, rv.DeveloperID, events.Payload{
		"reviewId": rv.ID,
		"status":   rv.Status,
	}); err != nil {
		return domain.Review{}, fmt.Errorf("append event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Review{}, err
	}
	return rv, nil
}

func scanReview(row rowScanner) (domain.Review, error) {
	var (
		rv       domain.Review
		status   string
		findings string
	)
	if err := row.Scan(&rv.ID, &rv.TaskID, &rv.DeveloperID, &status, &rv.Summary, &findings, &rv.CreatedAt); err != nil {
		return rv, err
	}
	rv.Status = domain.Verdict(status)
	var decoded any
	if err := json.Unmarshal([]byte(findings), &decoded); err != nil {
		return rv, fmt.Errorf("decode findings for review %s: %w", rv.ID, err)
	}
	rv.Findings = domain.NormalizeFindings(decoded)
	return rv, nil
}

func (r Repo) GetReview(ctx context.Context, id string) (domain.Review, error) {
	rv, err := scanReview(r.DB.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return rv, ErrNotFound
	}
	return rv, err
}

// ReviewHistory returns up to limit reviews for a task, newest first.
func (r Repo) ReviewHistory(ctx context.Context, taskID string, limit int) ([]domain.Review, error) {
	if limit <= 0 {
		return []domain.Review{}, nil
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE task_id=? ORDER BY created_at DESC, id DESC LIMIT ?`, taskID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rv)
	}
	return res, rows.Err()
}

// LatestReviewsForTasks returns the newest review per task. Tasks without
// reviews have no entry in the map.
func (r Repo) LatestReviewsForTasks(ctx context.Context, taskIDs []string) (map[string]domain.Review, error) {
	latest := make(map[string]domain.Review, len(taskIDs))
	ids := dedupe(taskIDs)
	for start := 0; start < len(ids); start += maxInParams {
		end := start + maxInParams
		if end > len(ids) {
			end = len(ids)
		}
		if err := r.latestReviewsBatch(ctx, ids[start:end], latest); err != nil {
			return nil, err
		}
	}
	return latest, nil
}

func (r Repo) latestReviewsBatch(ctx context.Context, ids []string, into map[string]domain.Review) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE task_id IN (%s) ORDER BY task_id, created_at DESC, id DESC`, reviewColumns, placeholders)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return err
		}
		if _, seen := into[rv.TaskID]; seen {
			continue
		}
		into[rv.TaskID] = rv
	}
	return rows.Err()
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
