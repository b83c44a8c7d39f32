package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Prathameshworks247/AGILITY/internal/db"
	"github.com/Prathameshworks247/AGILITY/internal/domain"
	"github.com/Prathameshworks247/AGILITY/internal/migrate"
	"github.com/Prathameshworks247/AGILITY/internal/repo"
)

type fixture struct {
	repo  repo.Repo
	ctx   context.Context
	clock *time.Time
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	clock := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	r := repo.Repo{DB: conn, Now: func() time.Time { return clock }}
	ctx := context.Background()

	require.NoError(t, r.EnsureOrg(ctx, nil, "org-1", "Org One"))
	require.NoError(t, r.EnsureUser(ctx, nil, "dev-1", "Dev One"))
	require.NoError(t, r.AddMember(ctx, nil, "org-1", "dev-1", "member"))
	_, err = r.InsertProject(ctx, domain.Project{ID: "proj-1", OrgID: "org-1", Name: "Board"})
	require.NoError(t, err)
	for _, id := range []string{"t1", "t2", "t3"} {
		_, err := r.InsertTask(ctx, domain.Task{ID: id, ProjectID: "proj-1", Title: "task " + id})
		require.NoError(t, err)
	}
	return fixture{repo: r, ctx: ctx, clock: &clock}
}

func (f fixture) insertAt(t *testing.T, at time.Time, taskID string, status domain.Verdict, summary string) domain.Review {
	t.Helper()
	*f.clock = at
	rv, err := f.repo.InsertReview(f.ctx, "proj-1", domain.Review{
		TaskID:      taskID,
		DeveloperID: "dev-1",
		Status:      status,
		Summary:     summary,
		Findings:    domain.Findings{map[string]any{"message": summary}},
	})
	require.NoError(t, err)
	return rv
}

func TestInsertReviewAssignsIDAndCreatedAt(t *testing.T) {
	f := newFixture(t)
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	*f.clock = at
	rv, err := f.repo.InsertReview(f.ctx, "proj-1", domain.Review{
		ID:          "client-id",
		TaskID:      "t1",
		DeveloperID: "dev-1",
		Status:      domain.VerdictPass,
		Summary:     "ok",
		CreatedAt:   "1999-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "client-id", rv.ID)
	assert.Len(t, rv.ID, 26)
	assert.Equal(t, repo.Timestamp(at), rv.CreatedAt)
	assert.Equal(t, domain.Findings{}, rv.Findings)

	evts, err := f.repo.EventsAfter(f.ctx, 10, 0, "review.created")
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, "t1", evts[0].EntityID)
	assert.Equal(t, "proj-1", evts[0].ProjectID)
}

func TestReviewHistoryNewestFirst(t *testing.T) {
	f := newFixture(t)
	early := f.insertAt(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), "t1", domain.VerdictWarn, "first")
	late := f.insertAt(t, time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC), "t1", domain.VerdictPass, "second")

	all, err := f.repo.ReviewHistory(f.ctx, "t1", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, late.ID, all[0].ID)
	assert.Equal(t, early.ID, all[1].ID)

	one, err := f.repo.ReviewHistory(f.ctx, "t1", 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, late.ID, one[0].ID)

	none, err := f.repo.ReviewHistory(f.ctx, "t2", 10)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestReviewRoundTripPreservesSummaryAndFindings(t *testing.T) {
	f := newFixture(t)
	summary := "  multi\nline summary with unicode é and \"quotes\"  "
	findings := domain.Findings{
		map[string]any{"message": "b", "severity": "high", "startLine": 3.0, "extra": map[string]any{"k": "v"}},
		map[string]any{"message": "a", "severity": "low"},
	}
	*f.clock = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.repo.InsertReview(f.ctx, "proj-1", domain.Review{
		TaskID: "t1", DeveloperID: "dev-1", Status: domain.VerdictFail, Summary: summary, Findings: findings,
	})
	require.NoError(t, err)

	got, err := f.repo.ReviewHistory(f.ctx, "t1", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, summary, got[0].Summary)
	assert.Equal(t, findings, got[0].Findings)
	assert.Equal(t, domain.VerdictFail, got[0].Status)
}

func TestLatestReviewsForTasks(t *testing.T) {
	f := newFixture(t)
	f.insertAt(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), "t1", domain.VerdictFail, "old")
	newest := f.insertAt(t, time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC), "t1", domain.VerdictPass, "new")
	t3 := f.insertAt(t, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), "t3", domain.VerdictWarn, "only")

	latest, err := f.repo.LatestReviewsForTasks(f.ctx, []string{"t1", "t2", "t3", "t1"})
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, newest.ID, latest["t1"].ID)
	assert.Equal(t, t3.ID, latest["t3"].ID)
	_, ok := latest["t2"]
	assert.False(t, ok)
}

func TestLatestReviewsTieBreakIsDeterministic(t *testing.T) {
	f := newFixture(t)
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	f.insertAt(t, at, "t1", domain.VerdictPass, "a")
	second := f.insertAt(t, at, "t1", domain.VerdictWarn, "b")

	for i := 0; i < 3; i++ {
		latest, err := f.repo.LatestReviewsForTasks(f.ctx, []string{"t1"})
		require.NoError(t, err)
		assert.Equal(t, second.ID, latest["t1"].ID)
		history, err := f.repo.ReviewHistory(f.ctx, "t1", 1)
		require.NoError(t, err)
		assert.Equal(t, second.ID, history[0].ID)
	}
}

func TestLatestReviewsEmptyInput(t *testing.T) {
	f := newFixture(t)
	latest, err := f.repo.LatestReviewsForTasks(f.ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestMembership(t *testing.T) {
	f := newFixture(t)
	ok, err := f.repo.IsOrgMember(f.ctx, "org-1", "dev-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.repo.IsOrgMember(f.ctx, "org-1", "stranger")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.repo.RemoveMember(f.ctx, "org-1", "dev-1"))
	ok, err = f.repo.IsOrgMember(f.ctx, "org-1", "dev-1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.repo.GetUser(f.ctx, "stranger")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}
