package launch

import (
	"fmt"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/fragmesh/internal/fmerr"
	"github.com/vk/fragmesh/internal/objstore"
)

func baseSpec(workDir string) Spec {
	return Spec{
		ObjectID:       objstore.ObjectID(0xff),
		Workers:        4,
		BaseRank:       2,
		SocketPath:     "/tmp/fragmesh.sock",
		TemplatePath:   "/tmp/template.hcl",
		WorkDir:        workDir,
		WorkerBin:      "/usr/local/bin/fragmesh-executor",
		HealthBasePort: 19000,
	}
}

func TestBuildPlan(t *testing.T) {
	spec := baseSpec("/work")
	spec.ExtraEnv = []string{"FOO=bar"}

	plan, err := BuildPlan(spec)
	require.NoError(t, err)
	assert.Equal(t, spec.ObjectID, plan.ObjectID)
	require.Len(t, plan.Workers, 4)

	oid := spec.ObjectID.String()
	logDirs := make(map[string]bool)
	configs := make(map[string]bool)
	for i, wp := range plan.Workers {
		rank := 2 + i
		assert.Equal(t, rank, wp.Rank)

		ident := fmt.Sprintf("executor_%s_%d", oid, rank)
		assert.Equal(t, filepath.Join("/work", "logs", ident), wp.LogDir)
		assert.Equal(t, filepath.Join("/work", "conf", ident+".hcl"), wp.ConfigPath)
		logDirs[wp.LogDir] = true
		configs[wp.ConfigPath] = true

		assert.Equal(t, []string{"--config", wp.ConfigPath, "graph." + oid, strconv.Itoa(rank)}, wp.Args)
		assert.Contains(t, wp.Env, "FRAGMESH_IPC_SOCKET=/tmp/fragmesh.sock")
		assert.Contains(t, wp.Env, "FRAGMESH_WORKER_NUM=4")
		assert.Contains(t, wp.Env, "FRAGMESH_LOG_DIR="+wp.LogDir)
		assert.Contains(t, wp.Env, "FRAGMESH_BASE_RANK=2")
		assert.Contains(t, wp.Env, "GOTRACEBACK=all")
		assert.Contains(t, wp.Env, "FOO=bar")

		assert.Equal(t, 19000+rank, wp.HealthPort)
	}
	assert.Len(t, logDirs, 4, "every worker needs its own log directory")
	assert.Len(t, configs, 4, "every worker needs its own config file")
}

func TestBuildPlanDefaults(t *testing.T) {
	spec := baseSpec("/work")
	spec.BaseRank = 0
	spec.HealthBasePort = 0

	plan, err := BuildPlan(spec)
	require.NoError(t, err)
	for i, wp := range plan.Workers {
		assert.Equal(t, i, wp.Rank)
		assert.Zero(t, wp.HealthPort)
	}
}

func TestBuildPlanValidation(t *testing.T) {
	cases := map[string]struct {
		mutate func(*Spec)
		want   string
	}{
		"nil object id":      {func(s *Spec) { s.ObjectID = objstore.NilObject }, "needs an object id"},
		"zero workers":       {func(s *Spec) { s.Workers = 0 }, "must be at least 1"},
		"negative base rank": {func(s *Spec) { s.BaseRank = -1 }, "must not be negative"},
		"missing binary":     {func(s *Spec) { s.WorkerBin = "" }, "needs a worker binary"},
		"missing template":   {func(s *Spec) { s.TemplatePath = "" }, "needs a config template"},
		"missing work dir":   {func(s *Spec) { s.WorkDir = "" }, "needs a work directory"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			spec := baseSpec("/work")
			tc.mutate(&spec)
			_, err := BuildPlan(spec)
			require.Error(t, err)
			assert.Equal(t, fmerr.KindInvalidArgument, fmerr.KindOf(err))
			assert.ErrorContains(t, err, tc.want)
		})
	}
}
