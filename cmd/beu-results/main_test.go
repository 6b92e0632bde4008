package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/beu-results/internal/testutil"
	"github.com/Sternrassler/beu-results/pkg/config"
	"github.com/Sternrassler/beu-results/pkg/planner"
	"github.com/Sternrassler/beu-results/pkg/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) string { return "" }

func execute(t *testing.T, getenv func(string) string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(getenv)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, portal *testutil.MockPortal) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "beu.json5")
	content := fmt.Sprintf(`{
		portal: { years: { "2023": %q } },
		retry: { max_attempts: 2, initial_backoff: "1ms" },
		edge: { local: true },
		log: { level: "error" },
	}`, portal.URL())
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPlanCmd_Core(t *testing.T) {
	out, err := execute(t, noEnv, "plan", "22104134010")
	require.NoError(t, err)
	assert.Equal(t, "22104134010 22104134011 22104134012 22104134013 22104134014\n", out)
}

func TestPlanCmd_Extended(t *testing.T) {
	out, err := execute(t, noEnv, "plan", "--extended", "23104134905")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 17)
	assert.True(t, strings.HasPrefix(lines[0], "23104134901 "))
	assert.True(t, strings.HasPrefix(lines[5], "22104134001 "))
	assert.True(t, strings.HasSuffix(lines[16], " 22104134060"))
}

func TestPlanCmd_Flat(t *testing.T) {
	out, err := execute(t, noEnv, "plan", "--flat", "22104134010")
	require.NoError(t, err)
	assert.Equal(t, "22104134010\n22104134011\n22104134012\n22104134013\n22104134014\n", out)

	out, err = execute(t, noEnv, "plan", "--extended", "--flat", "23104134905")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 85)
	assert.Equal(t, "23104134901", lines[0])
	assert.Equal(t, "22104134060", lines[84])
}

func TestPlanCmd_Invalid(t *testing.T) {
	_, err := execute(t, noEnv, "plan", "--extended", "22104134500")
	assert.ErrorIs(t, err, planner.ErrInvalidSuffix)

	_, err = execute(t, noEnv, "plan")
	assert.Error(t, err)
}

func TestFetchCmd_JSON(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()
	portal.SetPage("22104134011", testutil.SamplePage("22104134011"))

	out, err := execute(t, noEnv, "--config", writeConfig(t, portal),
		"fetch", "--year", "2023", "--reg-no", "22104134010")
	require.NoError(t, err)

	var entries []result.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	records := result.Records(entries)
	require.Len(t, records, 1)
	assert.Equal(t, "22104134011", records[0].RegistrationNo)
	assert.Equal(t, 5, portal.TotalRequests())
}

func TestFetchCmd_Table(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()
	portal.SetPage("22104134010", testutil.SamplePage("22104134010"))
	portal.FailTimes("22104134012", -1)

	out, err := execute(t, noEnv, "--config", writeConfig(t, portal),
		"fetch", "--year", "2023", "--reg-no", "22104134010", "--table")
	require.NoError(t, err)

	assert.Contains(t, out, "STUDENT 22104134010")
	assert.Contains(t, out, "8.12")
	assert.Contains(t, out, "ERROR")
	assert.Contains(t, out, "PASS")
	assert.Contains(t, strings.ToUpper(out), "1 (0 FAILING, 1 ERRORS)")
}

func TestFetchCmd_TableMarksFailingStudents(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()

	failing := testutil.SamplePage("22104134011")
	failing.Theory[1].Grade = "F"
	portal.SetPage("22104134010", testutil.SamplePage("22104134010"))
	portal.SetPage("22104134011", failing)

	out, err := execute(t, noEnv, "--config", writeConfig(t, portal),
		"fetch", "--year", "2023", "--reg-no", "22104134010", "--table")
	require.NoError(t, err)

	var failRow string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "22104134011") {
			failRow = line
		}
	}
	require.NotEmpty(t, failRow)
	assert.Contains(t, failRow, "FAIL")
	assert.Contains(t, failRow, "Physics")
	assert.Contains(t, strings.ToUpper(out), "2 (1 FAILING, 0 ERRORS)")
}

func TestFetchCmd_Edge(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()
	portal.SetPage("24104134925", testutil.SamplePage("24104134925"))

	out, err := execute(t, noEnv, "--config", writeConfig(t, portal),
		"fetch", "--edge", "--sem", "1st", "--year", "2023", "--reg-no", "23104134010")
	require.NoError(t, err)

	var entries []result.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, result.Records(entries), 1)
	assert.Equal(t, "24104134925", result.Records(entries)[0].RegistrationNo)
}

func TestFetchCmd_UnknownYear(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()

	_, err := execute(t, noEnv, "--config", writeConfig(t, portal),
		"fetch", "--year", "2019", "--reg-no", "22104134010")
	require.Error(t, err)
	assert.Equal(t, 0, portal.TotalRequests())
}

func TestFetchCmd_RequiresFlags(t *testing.T) {
	_, err := execute(t, noEnv, "fetch", "--year", "2023")
	assert.Error(t, err)
}

func TestLoadConfig_Env(t *testing.T) {
	env := map[string]string{"MODE": "edge", "PORT": "9000", "LOG_LEVEL": "error"}
	cfg, err := loadConfig("", func(k string) string { return env[k] })
	require.NoError(t, err)
	assert.Equal(t, config.ModeEdge, cfg.Server.Mode)
	assert.Equal(t, ":9000", cfg.Server.Addr)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := loadConfig("", func(k string) string {
		if k == "MODE" {
			return "proxy"
		}
		return ""
	})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
