package resource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestDiscover_FlatLayout(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "skills", "reviewer.md"), "# reviewer\ndescription: reviews code\n")

	resources, err := Discover(root, []string{"skill"})

	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "reviewer", resources[0].Name)
	assert.Equal(t, "skill:reviewer", resources[0].Namespace)
	assert.Equal(t, "skill", resources[0].Type)
	assert.NotContains(t, resources[0].Config, "category")
}

func TestDiscover_CategorisedLayout(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "skills", "devops", "deploy.md"), "# deploy\ndescription: ships code\n")

	resources, err := Discover(root, []string{"skill"})

	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "deploy", resources[0].Name)
	assert.Equal(t, "skill:deploy", resources[0].Namespace)
	assert.Equal(t, "Devops", resources[0].Config["category"])
}

func TestDiscover_DirectoryBasedLayout(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "skills", "doc-writer", "SKILL.md"), "# doc-writer\ndescription: writes docs\n")

	resources, err := Discover(root, []string{"skill"})

	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "doc-writer", resources[0].Name)
	assert.Equal(t, "skill:doc-writer", resources[0].Namespace)
}

func TestDiscover_MultipleTypes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "skills", "a.md"), "# a\n")
	writeFile(t, filepath.Join(root, "commands", "b.md"), "# b\n")

	resources, err := Discover(root, []string{"skill", "command"})

	require.NoError(t, err)
	require.Len(t, resources, 2)
}

func TestDiscover_MissingTypeDirIsSkipped(t *testing.T) {
	root := t.TempDir()

	resources, err := Discover(root, []string{"skill"})

	require.NoError(t, err)
	assert.Empty(t, resources)
}
