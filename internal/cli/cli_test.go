package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/telhawk-systems/telhawk-sensor/internal/models"
	"github.com/telhawk-systems/telhawk-sensor/internal/rules"
)

const cliRule = `alert tcp any any -> any 80 (msg:"HTTP inbound"; sid:1000001; rev:1;)`

type fakeRunner struct {
	calls  [][]string
	stdout string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return []byte(f.stdout), nil, f.err
}

type cliEnv struct {
	rulesDir string
	runner   *fakeRunner
}

func setupEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SURICATA_RULES_DIR", dir)
	t.Setenv("SURICATA_CUSTOM_RULE_FILENAME", "custom.rules")
	t.Setenv("LOG_DIR", filepath.Join(dir, "logs"))
	t.Setenv("SKIP_SURICATA", "true")
	t.Setenv("NETWORK_INTERFACE", "eth0")
	return &cliEnv{rulesDir: dir, runner: &fakeRunner{}}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(&app{stdout: &stdout, stderr: &stderr, runner: e.runner})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestCommandsRegistered(t *testing.T) {
	root := NewRootCommand()

	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "rules", "suricata"} {
		assert.True(t, names[want], "expected command %q", want)
	}

	for _, flag := range []string{"config", "output"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "expected global flag %q", flag)
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	root := NewRootCommand()

	expected := map[string][]string{
		"rules":    {"list", "show", "add", "delete", "validate", "id"},
		"suricata": {"status", "stats", "iface", "reload"},
	}
	for parent, children := range expected {
		cmd, _, err := root.Find([]string{parent})
		require.NoError(t, err)
		got := map[string]bool{}
		for _, sub := range cmd.Commands() {
			got[sub.Name()] = true
		}
		for _, child := range children {
			assert.True(t, got[child], "%s should have %q", parent, child)
		}
	}
}

func TestRulesAddListShowDelete(t *testing.T) {
	env := setupEnv(t)
	id := rules.ID(cliRule)

	stdout, _, err := env.run(t, "rules", "add", cliRule)
	require.NoError(t, err)
	assert.Contains(t, stdout, id)

	data, err := os.ReadFile(filepath.Join(env.rulesDir, "custom.rules"))
	require.NoError(t, err)
	assert.Equal(t, cliRule+"\n", string(data))

	stdout, _, err = env.run(t, "rules", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, id)
	assert.Contains(t, stdout, "HTTP inbound")

	stdout, _, err = env.run(t, "--output", "json", "rules", "list")
	require.NoError(t, err)
	var list models.RulesList
	require.NoError(t, json.Unmarshal([]byte(stdout), &list))
	assert.Equal(t, 1, list.Count)

	stdout, _, err = env.run(t, "-o", "yaml", "rules", "show", id)
	require.NoError(t, err)
	var rule models.Rule
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &rule))
	assert.Equal(t, "1000001", rule.SID)
	assert.Equal(t, cliRule, rule.Content)

	stdout, _, err = env.run(t, "rules", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Removed 1 rule(s)")

	_, _, err = env.run(t, "rules", "show", id)
	assert.ErrorIs(t, err, rules.ErrRuleNotFound)

	assert.Empty(t, env.runner.calls, "reload is not requested when suricata is skipped")
}

func TestRulesAddReloadsWhenEnabled(t *testing.T) {
	env := setupEnv(t)
	t.Setenv("SKIP_SURICATA", "false")

	_, _, err := env.run(t, "rules", "add", cliRule)
	require.NoError(t, err)
	require.Len(t, env.runner.calls, 1)
	assert.Equal(t, []string{"docker", "exec", "suricata", "suricatasc", "-c", "reload-rules"}, env.runner.calls[0])

	_, _, err = env.run(t, "rules", "delete", "--no-reload", rules.ID(cliRule))
	require.NoError(t, err)
	assert.Len(t, env.runner.calls, 1)
}

func TestRulesAddInvalid(t *testing.T) {
	env := setupEnv(t)

	_, _, err := env.run(t, "rules", "add", "drop", "tcp", "any", "any", "->", "any", "80", "(msg:\"x\";)")
	var validationErr *rules.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "Missing required option: sid", validationErr.Message)

	_, err = os.Stat(filepath.Join(env.rulesDir, "custom.rules"))
	assert.True(t, os.IsNotExist(err))
}

func TestRulesAddUnquotedWords(t *testing.T) {
	env := setupEnv(t)
	t.Setenv("SKIP_SURICATA", "false")

	args := append([]string{"rules", "add", "--no-reload"}, strings.Fields(cliRule)...)
	stdout, _, err := env.run(t, args...)
	require.NoError(t, err)
	assert.Contains(t, stdout, rules.ID(cliRule))
	assert.Empty(t, env.runner.calls)

	data, err := os.ReadFile(filepath.Join(env.rulesDir, "custom.rules"))
	require.NoError(t, err)
	assert.Equal(t, cliRule+"\n", string(data))

	args = append([]string{"rules", "validate"}, strings.Fields(cliRule)...)
	_, _, err = env.run(t, args...)
	assert.NoError(t, err)

	args = append([]string{"rules", "id"}, strings.Fields(cliRule)...)
	stdout, _, err = env.run(t, args...)
	require.NoError(t, err)
	assert.Equal(t, rules.ID(cliRule), strings.TrimSpace(stdout))
}

func TestRulesValidateAndID(t *testing.T) {
	env := setupEnv(t)

	stdout, _, err := env.run(t, "rules", "validate", cliRule)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Rule is valid")

	_, _, err = env.run(t, "rules", "validate", "alert tcp any any -> any 80 (msg:\"x\"; sid:1;")
	assert.Error(t, err)

	stdout, _, err = env.run(t, "rules", "id", "  "+cliRule+"  ")
	require.NoError(t, err)
	assert.Equal(t, rules.ID(cliRule), strings.TrimSpace(stdout))
}

func TestRulesListEmpty(t *testing.T) {
	env := setupEnv(t)

	stdout, _, err := env.run(t, "rules", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No rules found")
}

func TestSuricataCommands(t *testing.T) {
	env := setupEnv(t)
	env.runner.stdout = `{"message": 3600, "return": "OK"}`

	stdout, _, err := env.run(t, "suricata", "status")
	require.NoError(t, err)
	assert.Equal(t, env.runner.stdout, stdout)

	stdout, _, err = env.run(t, "-o", "json", "suricata", "stats")
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"ruleset-stats","output":"{\"message\": 3600, \"return\": \"OK\"}"}`, stdout)

	_, _, err = env.run(t, "suricata", "iface", "wlan0")
	require.NoError(t, err)

	_, _, err = env.run(t, "suricata", "reload")
	require.NoError(t, err)

	require.Len(t, env.runner.calls, 4)
	assert.Equal(t, []string{"docker", "exec", "suricata", "suricatasc", "-c", "uptime"}, env.runner.calls[0])
	assert.Equal(t, []string{"docker", "exec", "suricata", "suricatasc", "-c", "iface-stat wlan0"}, env.runner.calls[2])
	assert.Equal(t, []string{"docker", "exec", "suricata", "suricatasc", "-c", "reload-rules"}, env.runner.calls[3])
}

func TestSuricataIfaceRejectsInvalidName(t *testing.T) {
	env := setupEnv(t)

	_, _, err := env.run(t, "suricata", "iface", "eth0;rm -rf /")
	require.Error(t, err)
	assert.Equal(t, "Invalid interface name", err.Error())
	assert.Empty(t, env.runner.calls)
}

func TestUnknownOutputFormat(t *testing.T) {
	env := setupEnv(t)

	_, _, err := env.run(t, "-o", "xml", "rules", "list")
	assert.Error(t, err)
}
