package memory

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karsov/opsloop/internal/db"
	"github.com/karsov/opsloop/internal/llm"
)

type stubClient struct {
	reply string
	err   error
	calls []llm.Request
}

func (c *stubClient) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	c.calls = append(c.calls, req)
	if c.err != nil {
		return llm.Response{}, c.err
	}
	return llm.Response{Content: c.reply}, nil
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	handle, err := db.Open(filepath.Join(t.TempDir(), "opsloop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = handle.Close() })
	return NewStore(handle)
}

func strptr(s string) *string { return &s }

func TestStore_Rotation(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	project := strptr("proj-1")

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < ShortTermCap+5; i++ {
		_, err := store.Insert(ctx, Entry{
			Role:      "backend",
			Content:   fmt.Sprintf("note %d", i),
			Type:      TypeShortTerm,
			ProjectID: project,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
		require.NoError(t, store.Prune(ctx, "backend", project, ShortTermCap))
	}

	remaining, err := store.RecentShortTerm(ctx, "backend", project, ShortTermCap*2)
	require.NoError(t, err)
	require.Len(t, remaining, ShortTermCap)

	// Exactly the CAP most recently created notes survive.
	kept := make(map[string]bool, len(remaining))
	for _, e := range remaining {
		kept[e.Content] = true
	}
	for i := 5; i < ShortTermCap+5; i++ {
		assert.Truef(t, kept[fmt.Sprintf("note %d", i)], "note %d should survive rotation", i)
	}
}

func TestStore_DeleteByRoleScoping(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	seed := []Entry{
		{Role: "backend", Content: "a", Type: TypeShortTerm, ProjectID: strptr("proj-1")},
		{Role: "backend", Content: "b", Type: TypeLesson, ProjectID: strptr("proj-1")},
		{Role: "backend", Content: "c", Type: TypeShortTerm, ProjectID: strptr("proj-2")},
		{Role: "operations", Content: "d", Type: TypeShortTerm, ProjectID: strptr("proj-1")},
	}
	for _, e := range seed {
		_, err := store.Insert(ctx, e)
		require.NoError(t, err)
	}

	// Project-scoped: only backend notes in proj-1 go.
	n, err := store.DeleteByRole(ctx, "backend", strptr("proj-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := store.List(ctx, "backend", 10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "c", left[0].Content)

	// Unscoped: the rest of the role's notes go, other roles untouched.
	n, err = store.DeleteByRole(ctx, "backend", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ops, err := store.List(ctx, "operations", 10)
	require.NoError(t, err)
	assert.Len(t, ops, 1)
}

func TestStore_ShortTermScopedByRoleAndProject(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, Entry{Role: "backend", Content: "a", Type: TypeShortTerm, ProjectID: strptr("p1")})
	require.NoError(t, err)
	_, err = store.Insert(ctx, Entry{Role: "backend", Content: "b", Type: TypeShortTerm, ProjectID: strptr("p2")})
	require.NoError(t, err)
	_, err = store.Insert(ctx, Entry{Role: "quality", Content: "c", Type: TypeShortTerm, ProjectID: strptr("p1")})
	require.NoError(t, err)
	_, err = store.Insert(ctx, Entry{Role: "backend", Content: "d", Type: TypeShortTerm})
	require.NoError(t, err)

	got, err := store.RecentShortTerm(ctx, "backend", strptr("p1"), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Content)

	got, err = store.RecentShortTerm(ctx, "backend", nil, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d", got[0].Content)
}

func TestStore_OrderedByImportanceThenRecency(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	project := strptr("p")
	base := time.Now().UTC()

	_, err := store.Insert(ctx, Entry{Role: "data", Content: "old important", Type: TypeShortTerm, Importance: 90, ProjectID: project, CreatedAt: base.Add(-time.Hour)})
	require.NoError(t, err)
	_, err = store.Insert(ctx, Entry{Role: "data", Content: "new plain", Type: TypeShortTerm, Importance: 50, ProjectID: project, CreatedAt: base})
	require.NoError(t, err)

	got, err := store.RecentShortTerm(ctx, "data", project, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "old important", got[0].Content)
}

func TestStore_PromoteAndLessons(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.Insert(ctx, Entry{Role: "operations", Content: "never deploy on friday", Type: TypeShortTerm, Importance: 80})
	require.NoError(t, err)
	require.NoError(t, store.Promote(ctx, id))

	lessons, err := store.Lessons(ctx, "operations")
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, TypeLesson, lessons[0].Type)

	// Promoting twice fails: the note is no longer short-term.
	assert.Error(t, store.Promote(ctx, id))
}

func TestStore_SummaryUpsertInPlace(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertSummary(ctx, "p1", "first digest", 5))
	require.NoError(t, store.UpsertSummary(ctx, "p1", "second digest", 10))

	got, err := store.Summary(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "second digest", got.Content)
	assert.Equal(t, 10, got.TaskCount)

	missing, err := store.Summary(ctx, "absent")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestService_RecallFormatting(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	project := strptr("p1")

	id, err := store.Insert(ctx, Entry{Role: "backend", Content: "staging db is shared", Type: TypeShortTerm, Importance: 90})
	require.NoError(t, err)
	require.NoError(t, store.Promote(ctx, id))
	_, err = store.Insert(ctx, Entry{Role: "backend", Content: "added auth endpoint", Type: TypeShortTerm, ProjectID: project, CreatedAt: time.Now().UTC().Add(-3 * time.Hour)})
	require.NoError(t, err)
	require.NoError(t, store.UpsertSummary(ctx, "p1", "auth service taking shape", 3))

	svc := NewService(store, &stubClient{reply: "unused"})
	block := svc.Recall(ctx, "backend", project)

	lessonIdx := strings.Index(block, "staging db is shared")
	summaryIdx := strings.Index(block, "auth service taking shape")
	noteIdx := strings.Index(block, "added auth endpoint")
	require.GreaterOrEqual(t, lessonIdx, 0)
	require.Greater(t, summaryIdx, lessonIdx)
	require.Greater(t, noteIdx, summaryIdx)
	assert.Contains(t, block, "hours ago")
}

func TestService_RecallEmpty(t *testing.T) {
	t.Parallel()

	svc := NewService(openTestStore(t), &stubClient{})
	assert.Empty(t, svc.Recall(context.Background(), "backend", nil))
}

func TestService_RecordSummarizeFallback(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	svc := NewService(store, &stubClient{err: errors.New("provider down")})
	ctx := context.Background()

	svc.Record(ctx, RecordInput{
		TaskID:      "t1",
		Role:        "backend",
		Request:     "add endpoint",
		PlanSummary: strings.Repeat("long plan summary ", 30),
		Results:     []string{"done"},
	})

	notes, err := store.RecentShortTerm(ctx, "backend", nil, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.LessOrEqual(t, len(notes[0].Content), noteCharCap)
	assert.Contains(t, notes[0].Content, "long plan summary")
}

func TestService_RecordRefreshesDigestEveryN(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	client := &stubClient{reply: "merged digest"}
	svc := NewService(store, client)
	ctx := context.Background()
	project := strptr("p1")

	for i := 0; i < summaryEvery; i++ {
		svc.Record(ctx, RecordInput{
			TaskID:      fmt.Sprintf("t%d", i),
			Role:        "backend",
			ProjectID:   project,
			Request:     "req",
			PlanSummary: "plan",
		})
	}

	got, err := store.Summary(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "merged digest", got.Content)
	assert.Equal(t, summaryEvery, got.TaskCount)

	// One summarize call per record plus one digest merge.
	assert.Len(t, client.calls, summaryEvery+1)
}
