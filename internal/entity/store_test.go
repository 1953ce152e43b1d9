package entity

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeRaw(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestStoreListSkipsReserved(t *testing.T) {
	root := t.TempDir()
	writeRaw(t, root, "Projects/Growth_Platform.md", "---\nschema_version: 2\nid: entity/project/growth-platform\ntype: project\nversion: 1\ncreated: 2024-01-01T00:00:00Z\nupdated: 2024-01-01T00:00:00Z\nname: Growth Platform\nconfidence: 1\n---\nbody\n")
	writeRaw(t, root, "README.md", "not an entity")
	writeRaw(t, root, ".snapshots/2024-01-01/snapshot-000000.json", "{}")

	s := New(root)
	paths, err := s.List()
	require.NoError(t, err)
	require.Equal(t, []string{"Projects/Growth_Platform.md"}, paths)
}

func TestStoreReadWriteRoundTrip(t *testing.T) {
	root := t.TempDir()
	raw := "---\nschema_version: 2\nid: entity/project/growth-platform\ntype: project\nversion: 1\ncreated: 2024-01-01T00:00:00Z\nupdated: 2024-01-01T00:00:00Z\nname: Growth Platform\naliases:\n    - Growth Platform\n    - FF\nconfidence: 1\ncustom_field: kept\n---\nSome body text.\n"
	writeRaw(t, root, "Projects/Growth_Platform.md", raw)

	s := New(root)
	e, node, err := s.Read("Projects/Growth_Platform.md")
	require.NoError(t, err)
	require.Equal(t, "entity/project/growth-platform", e.Header.ID)
	require.Equal(t, []string{"Growth Platform", "FF"}, e.Header.Aliases)
	require.Equal(t, "kept", e.Header.Extra["custom_field"])

	require.NoError(t, s.Write("Projects/Growth_Platform.md", e, node))
	data, err := os.ReadFile(filepath.Join(root, "Projects/Growth_Platform.md"))
	require.NoError(t, err)
	require.Contains(t, string(data), "custom_field: kept")
	require.Contains(t, string(data), "Some body text.")
}

func TestStoreReadMalformedHeader(t *testing.T) {
	root := t.TempDir()
	writeRaw(t, root, "broken.md", "no front matter here")

	s := New(root)
	_, _, err := s.Read("broken.md")
	require.Error(t, err)
}

func TestStoreExists(t *testing.T) {
	root := t.TempDir()
	writeRaw(t, root, "a.md", "---\nschema_version: 2\nid: entity/person/jane\ntype: person\nversion: 1\ncreated: "+time.Now().UTC().Format(time.RFC3339)+"\nupdated: "+time.Now().UTC().Format(time.RFC3339)+"\nname: Jane\nconfidence: 1\n---\n")
	s := New(root)

	ok, err := s.Exists("entity/person/jane")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Exists("entity/person/nobody")
	require.NoError(t, err)
	require.False(t, ok)
}
