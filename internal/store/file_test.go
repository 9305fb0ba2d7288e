package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/riotswitch/internal/model"
)

func openTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "accounts.json")
	st, err := OpenFile(path)
	require.NoError(t, err)
	return st, path
}

func readDoc(t *testing.T, path string) map[string]json.RawMessage {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestOpenFileCreatesEmptyDocument(t *testing.T) {
	st, path := openTestFileStore(t)
	ctx := context.Background()

	all, err := st.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	speed, err := st.Speed(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.SpeedDefault, speed)

	doc := readDoc(t, path)
	assert.JSONEq(t, `[]`, string(doc["accounts"]))
	assert.JSONEq(t, `{"speed":1}`, string(doc["settings"]))
}

func TestRoundTripPreservesOrderAndSettings(t *testing.T) {
	st, path := openTestFileStore(t)
	ctx := context.Background()

	for _, acc := range []model.Account{
		{Username: "zed", Password: "1", Region: "KR"},
		{Username: "alice", Password: "2", Region: "NA"},
		{Username: "mid", Password: "3", Region: "EUW"},
	} {
		_, err := st.Upsert(ctx, acc.Username, acc.Password, acc.Region)
		require.NoError(t, err)
	}
	require.NoError(t, st.SetSpeed(ctx, model.SpeedFast))
	want, err := st.All(ctx)
	require.NoError(t, err)

	fresh, err := OpenFile(path)
	require.NoError(t, err)
	got, err := fresh.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, []string{"zed", "alice", "mid"}, usernames(got))
	speed, err := fresh.Speed(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.SpeedFast, speed)
}

func TestUpsertIsIdempotent(t *testing.T) {
	st, _ := openTestFileStore(t)
	ctx := context.Background()

	isUpdate, err := st.Upsert(ctx, "u", "p", "NA")
	require.NoError(t, err)
	assert.False(t, isUpdate)
	isUpdate, err = st.Upsert(ctx, "u", "p", "NA")
	require.NoError(t, err)
	assert.True(t, isUpdate)

	all, err := st.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpsertOverwritesInPlace(t *testing.T) {
	st, _ := openTestFileStore(t)
	ctx := context.Background()

	_, err := st.Upsert(ctx, "alice", "x", "NA")
	require.NoError(t, err)
	_, err = st.Upsert(ctx, "bob", "b", "BR")
	require.NoError(t, err)
	_, err = st.Upsert(ctx, "alice", "y", "EUW")
	require.NoError(t, err)

	acc, err := st.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "y", acc.Password)
	assert.Equal(t, "EUW", acc.Region)

	all, err := st.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, usernames(all))
}

func TestGetIsCaseSensitive(t *testing.T) {
	st, _ := openTestFileStore(t)
	ctx := context.Background()
	_, err := st.Upsert(ctx, "Alice", "x", "NA")
	require.NoError(t, err)

	_, err = st.Get(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSemantics(t *testing.T) {
	st, path := openTestFileStore(t)
	ctx := context.Background()

	found, err := st.Delete(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, found)
	assert.JSONEq(t, `[]`, string(readDoc(t, path)["accounts"]))

	for _, u := range []string{"a", "b", "c"} {
		_, err := st.Upsert(ctx, u, "p", "NA")
		require.NoError(t, err)
	}
	found, err = st.Delete(ctx, "b")
	require.NoError(t, err)
	assert.True(t, found)

	all, err := st.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, usernames(all))

	fresh, err := OpenFile(path)
	require.NoError(t, err)
	all, err = fresh.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, usernames(all))
}

func TestUpsertValidation(t *testing.T) {
	st, path := openTestFileStore(t)
	ctx := context.Background()
	_, err := st.Upsert(ctx, "keep", "p", "NA")
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	cases := [][3]string{
		{"", "p", "NA"},
		{"u", "", "NA"},
		{"u", "p", ""},
	}
	for _, c := range cases {
		_, err := st.Upsert(ctx, c[0], c[1], c[2])
		assert.ErrorIs(t, err, ErrValidation, "args %v", c)
	}

	all, err := st.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, usernames(all))
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLegacyArrayIsMigrated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"username":"a","password":"p","region":"NA"}]`), 0o600))

	st, err := OpenFile(path)
	require.NoError(t, err)
	all, err := st.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)

	doc := readDoc(t, path)
	assert.JSONEq(t, `[{"username":"a","password":"p","region":"NA"}]`, string(doc["accounts"]))
	assert.JSONEq(t, `{"speed":1}`, string(doc["settings"]))
}

func TestMissingRegionDefaultsToNA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"accounts":[{"username":"a","password":"p"}]}`), 0o600))

	st, err := OpenFile(path)
	require.NoError(t, err)
	acc, err := st.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultRegion, acc.Region)
	speed, err := st.Speed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.SpeedDefault, speed)
}

func TestDuplicateUsernamesCollapseOnLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	data := `{"accounts":[
		{"username":"a","password":"old","region":"NA"},
		{"username":"b","password":"p","region":"NA"},
		{"username":"a","password":"new","region":"KR"}
	],"settings":{"speed":0}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	st, err := OpenFile(path)
	require.NoError(t, err)
	all, err := st.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Account{
		{Username: "a", Password: "new", Region: "KR"},
		{Username: "b", Password: "p", Region: "NA"},
	}, all)
}

func TestCorruptDocumentDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"accounts": [`), 0o600))

	st, err := OpenFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	require.NotNil(t, st)

	all, err := st.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	speed, err := st.Speed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.SpeedDefault, speed)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"accounts": [`, string(raw))
}

func TestEmptyDocumentDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	st, err := OpenFile(path)
	assert.ErrorIs(t, err, ErrPersistence)
	all, err := st.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestTemplateSeedsFirstRun(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "template.json")
	require.NoError(t, os.WriteFile(tmpl, []byte(`{"accounts":[{"username":"seed","password":"s","region":"OCE"}],"settings":{"speed":2}}`), 0o600))
	path := filepath.Join(dir, "data", "accounts.json")

	st, err := OpenFile(path, WithTemplate(tmpl))
	require.NoError(t, err)
	ctx := context.Background()
	all, err := st.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"seed"}, usernames(all))
	speed, err := st.Speed(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.SpeedFast, speed)

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestTemplateIgnoredWhenDocumentExists(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "template.json")
	require.NoError(t, os.WriteFile(tmpl, []byte(`[{"username":"seed","password":"s","region":"OCE"}]`), 0o600))
	path := filepath.Join(dir, "accounts.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"accounts":[],"settings":{"speed":1}}`), 0o600))

	st, err := OpenFile(path, WithTemplate(tmpl))
	require.NoError(t, err)
	all, err := st.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestBrokenTemplateFallsBackToEmpty(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "template.json")
	require.NoError(t, os.WriteFile(tmpl, []byte(`not json`), 0o600))

	st, err := OpenFile(filepath.Join(dir, "accounts.json"), WithTemplate(tmpl))
	require.NoError(t, err)
	all, err := st.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSetSpeedPersistsAndValidates(t *testing.T) {
	st, path := openTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetSpeed(ctx, model.SpeedSlow))
	assert.JSONEq(t, `{"speed":0}`, string(readDoc(t, path)["settings"]))

	err := st.SetSpeed(ctx, model.Speed(5))
	assert.ErrorIs(t, err, ErrValidation)
	speed, err := st.Speed(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.SpeedSlow, speed)
}

func TestFailedWriteKeepsMemoryState(t *testing.T) {
	st, path := openTestFileStore(t)
	ctx := context.Background()
	_, err := st.Upsert(ctx, "a", "p", "NA")
	require.NoError(t, err)

	// A directory at the document path makes the final rename fail.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.MkdirAll(filepath.Join(path, "blocker"), 0o700))

	_, err = st.Upsert(ctx, "b", "p", "NA")
	assert.ErrorIs(t, err, ErrPersistence)
	found, err := st.Delete(ctx, "a")
	assert.ErrorIs(t, err, ErrPersistence)
	assert.False(t, found)

	all, err := st.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, usernames(all))
}

func TestAllReturnsCopy(t *testing.T) {
	st, _ := openTestFileStore(t)
	ctx := context.Background()
	_, err := st.Upsert(ctx, "a", "p", "NA")
	require.NoError(t, err)

	all, err := st.All(ctx)
	require.NoError(t, err)
	all[0].Password = "mutated"

	acc, err := st.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "p", acc.Password)
}

func usernames(accounts []model.Account) []string {
	out := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, acc.Username)
	}
	return out
}
