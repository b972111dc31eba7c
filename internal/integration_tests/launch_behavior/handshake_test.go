package integration_tests

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/fragmesh/internal/comm"
	"github.com/vk/fragmesh/internal/config"
	"github.com/vk/fragmesh/internal/launch"
	"github.com/vk/fragmesh/internal/objstore"
	"github.com/vk/fragmesh/internal/testutil"
)

// Test for: everything the supervisor hands a worker round-trips through the
// worker's own config loading. The plan's args, env, and rendered config for
// every rank must reassemble into a consistent group view.
func TestLaunchBehavior_PlannedHandoff_LoadsAsWorkerConfig(t *testing.T) {
	// --- Arrange ---
	dir := t.TempDir()
	templatePath := testutil.WriteFile(t, dir, "worker.hcl.tpl", `
		object_id  = "{OBJECT_ID}"
		worker_num = {WORKER_NUM}
		extension  = "property"
	`)

	oid := objstore.ObjectID(0xfe)
	spec := launch.Spec{
		ObjectID:     oid,
		Workers:      3,
		BaseRank:     2,
		SocketPath:   "mem://",
		TemplatePath: templatePath,
		WorkDir:      dir,
		WorkerBin:    "/usr/local/bin/fragmesh-executor",
	}

	plan, err := launch.BuildPlan(spec)
	require.NoError(t, err)
	require.Len(t, plan.Workers, 3)

	rendered, err := config.RenderTemplateFile(templatePath, oid.String(), spec.Workers)
	require.NoError(t, err)

	// --- Act / Assert --- one handoff per rank.
	for _, wp := range plan.Workers {
		t.Run(fmt.Sprintf("rank %d", wp.Rank), func(t *testing.T) {
			// Materialize the config exactly where the plan says it goes.
			require.NoError(t, os.MkdirAll(filepath.Dir(wp.ConfigPath), 0755))
			require.NoError(t, os.WriteFile(wp.ConfigPath, rendered, 0644))

			// The worker binary would see the plan's environment.
			for _, kv := range wp.Env {
				key, val, ok := strings.Cut(kv, "=")
				require.True(t, ok, "malformed env entry %q", kv)
				if strings.HasPrefix(key, "FRAGMESH_") {
					t.Setenv(key, val)
				}
			}

			// The positional contract: --config <path> <flagToken> <rank>.
			require.Equal(t, "--config", wp.Args[0])
			require.Equal(t, wp.ConfigPath, wp.Args[1])
			tokenOID, err := comm.ParseFlagToken(wp.Args[2])
			require.NoError(t, err)
			assert.Equal(t, oid, tokenOID)
			rank, err := strconv.Atoi(wp.Args[3])
			require.NoError(t, err)
			assert.Equal(t, wp.Rank, rank)

			// The worker's own loader accepts the handoff.
			worker, err := config.LoadWorker(context.Background(), wp.ConfigPath)
			require.NoError(t, err)
			assert.Equal(t, oid.String(), worker.ObjectID)
			assert.Equal(t, 3, worker.WorkerNum)
			assert.Equal(t, 2, worker.BaseRank, "base rank arrives via the environment")
			assert.Equal(t, "mem://", worker.StoreSocket, "socket arrives via the environment")
			assert.Equal(t, wp.LogDir, worker.LogDir)

			// And the group view the worker would build is coherent.
			group, err := comm.NewSpecWithBase(rank, worker.BaseRank, worker.WorkerNum)
			require.NoError(t, err)
			assert.Equal(t, []int{2, 3, 4}, group.Ranks())
		})
	}
}

// Test for: a worker started against the wrong group's config refuses the
// handoff at the earliest possible moment.
func TestLaunchBehavior_WorkerCountDisagreement_IsRejected(t *testing.T) {
	// --- Arrange ---
	dir := t.TempDir()
	templatePath := testutil.WriteFile(t, dir, "worker.hcl.tpl", `
		object_id  = "{OBJECT_ID}"
		worker_num = {WORKER_NUM}
	`)
	oid := objstore.RandomObjectID()

	rendered, err := config.RenderTemplateFile(templatePath, oid.String(), 4)
	require.NoError(t, err)
	configPath := filepath.Join(dir, "worker.hcl")
	require.NoError(t, os.WriteFile(configPath, rendered, 0644))

	// A stale supervisor claims the group has 8 workers.
	t.Setenv(config.EnvWorkerNum, "8")

	// --- Act ---
	_, err = config.LoadWorker(context.Background(), configPath)

	// --- Assert ---
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disagrees with configured worker_num")
}
