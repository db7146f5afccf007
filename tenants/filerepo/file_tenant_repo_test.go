package filerepo_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-authenticator/tenants"
	"github.com/jrsteele09/go-authenticator/tenants/filerepo"
	"github.com/stretchr/testify/require"
)

const tenantsYAML = `
tenants:
  - tenant_id: t1
    base_url: https://t1.example.org
    admins: [admin]
  - tenant_id: t2
    base_url: https://t2.example.org
    custom_idp_configuration: '{"ext_type":"github","github":{"client_id":"gh","client_secret":"s"}}'
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tenants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAndUpsert(t *testing.T) {
	path := writeFile(t, tenantsYAML)
	repo, err := filerepo.Load(path)
	require.NoError(t, err)

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)

	t2, err := repo.Get(context.Background(), "t2")
	require.NoError(t, err)
	ext, err := t2.ExtensionType()
	require.NoError(t, err)
	require.Equal(t, "github", ext)

	require.NoError(t, repo.Upsert(context.Background(), &tenants.Tenant{ID: "t3", BaseURL: "https://t3.example.org"}))

	reloaded, err := filerepo.Load(path)
	require.NoError(t, err)
	_, err = reloaded.Get(context.Background(), "t3")
	require.NoError(t, err)
}

func TestLoadRejectsInvalidDocuments(t *testing.T) {
	_, err := filerepo.Load(writeFile(t, "tenants:\n  - tenant_id: t1\n    base_url: nope\n"))
	require.Error(t, err)

	_, err = filerepo.Load(writeFile(t, "tenants:\n  - tenant_id: t1\n    base_url: https://a\n  - tenant_id: t1\n    base_url: https://b\n"))
	require.Error(t, err)

	_, err = filerepo.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
