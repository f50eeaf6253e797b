package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botherd/internal/config"
	"botherd/internal/instances"
)

func writeSettings(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "settings.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := writeSettings(t, t.TempDir(), "settings.json", `{"Instances": [`)

	_, err := Load(path)
	require.Error(t, err)

	var cfgErr config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "parse", cfgErr.ErrorType)
}

func TestParse_SingleInstance(t *testing.T) {
	dir := t.TempDir()
	path := writeSettings(t, dir, "settings.json", `{"Credentials": {"Universe": "Andromeda"}}`)

	doc, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, KindSingle, doc.Kind)
	assert.Empty(t, doc.Instances)

	targets := doc.Targets()
	require.Len(t, targets, 1)
	assert.Equal(t, MainAlias, targets[0].Alias)
	assert.Equal(t, instances.Identity(path), targets[0].Identity)
}

func TestParse_NullInstancesIsEmptyMulti(t *testing.T) {
	doc, err := Parse("/cfg/settings.json", []byte(`{"Instances": null}`))
	require.NoError(t, err)
	assert.Equal(t, KindMulti, doc.Kind)
	assert.Empty(t, doc.Instances)
	assert.Empty(t, doc.Targets(), "the root document never runs as an instance once Instances is present")
}

func TestParse_MultiInstance(t *testing.T) {
	content := `{
		"Instances": [
			{"Settings": "p1.json", "Alias": "alice"},
			{"Settings": "sub/p2.json", "Alias": "bob"},
			{"Settings": "/abs/p3.json", "Alias": "carol"}
		]
	}`
	doc, err := Parse("/cfg/settings.json", []byte(content))
	require.NoError(t, err)

	assert.Equal(t, KindMulti, doc.Kind)
	require.Len(t, doc.Instances, 3)
	assert.False(t, doc.Malformed.HasErrors())

	targets := doc.Targets()
	require.Len(t, targets, 3)
	assert.Equal(t, Target{Identity: instances.Identity(filepath.Clean("/cfg/p1.json")), Alias: "alice"}, targets[0])
	assert.Equal(t, Target{Identity: instances.Identity(filepath.Clean("/cfg/sub/p2.json")), Alias: "bob"}, targets[1])
	assert.Equal(t, Target{Identity: instances.Identity(filepath.Clean("/abs/p3.json")), Alias: "carol"}, targets[2])
}

func TestParse_MalformedEntriesSkippedAndCollected(t *testing.T) {
	content := `{
		"Instances": [
			{"Settings": "ok.json", "Alias": "ok"},
			{"Settings": "no-alias.json"},
			{"Alias": "no-settings"},
			{},
			"not an object",
			{"Settings": 12, "Alias": "numeric"},
			{"Settings": "  ", "Alias": "blank"}
		]
	}`
	doc, err := Parse("/cfg/settings.json", []byte(content))
	require.NoError(t, err)

	require.Len(t, doc.Instances, 1)
	assert.Equal(t, "ok", doc.Instances[0].Alias)

	require.Equal(t, 6, doc.Malformed.Count())
	indexes := []int{}
	for _, e := range doc.Malformed.GetErrorsByCategory("instances") {
		indexes = append(indexes, e.Index)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, indexes)
}

func TestParse_ZeroValidDescriptors(t *testing.T) {
	doc, err := Parse("/cfg/settings.json", []byte(`{"Instances": [{"Alias": "x"}]}`))
	require.NoError(t, err)
	assert.Equal(t, KindMulti, doc.Kind)
	assert.Empty(t, doc.Targets())
}

func TestParse_InstancesNotArray(t *testing.T) {
	_, err := Parse("/cfg/settings.json", []byte(`{"Instances": {"Settings": "a.json"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Instances must be an array")
}

func TestTargets_DuplicateIdentityCollapses(t *testing.T) {
	content := `{
		"Instances": [
			{"Settings": "p1.json", "Alias": "first"},
			{"Settings": "p2.json", "Alias": "other"},
			{"Settings": "./sub/../p1.json", "Alias": "second"}
		]
	}`
	doc, err := Parse("/cfg/settings.json", []byte(content))
	require.NoError(t, err)

	targets := doc.Targets()
	require.Len(t, targets, 2)
	assert.Equal(t, instances.Identity(filepath.Clean("/cfg/p1.json")), targets[0].Identity)
	assert.Equal(t, "second", targets[0].Alias)
	assert.Equal(t, "other", targets[1].Alias)
}

func TestParse_YAMLAccepted(t *testing.T) {
	content := `
Instances:
  - Settings: p1.yaml
    Alias: alice
`
	doc, err := Parse("/cfg/settings.yaml", []byte(content))
	require.NoError(t, err)
	require.Len(t, doc.Instances, 1)
	assert.Equal(t, "alice", doc.Instances[0].Alias)
}

func TestParse_Messenger(t *testing.T) {
	content := `{
		"TelegramMessenger": {
			"Active": true,
			"API": "123:abc",
			"ChatId": 424242,
			"TelegramAutoPing": {"Active": true, "EveryHours": 6}
		}
	}`
	doc, err := Parse("/cfg/settings.json", []byte(content))
	require.NoError(t, err)

	assert.Equal(t, MessengerSettings{
		Active: true,
		API:    "123:abc",
		ChatID: "424242",
		AutoPing: AutoPing{
			Active:     true,
			EveryHours: 6,
		},
	}, doc.Messenger)
}

func TestParse_MessengerWrongTypes(t *testing.T) {
	content := `{
		"TelegramMessenger": {
			"Active": "yes",
			"TelegramAutoPing": {"Active": true, "EveryHours": "often"}
		}
	}`
	doc, err := Parse("/cfg/settings.json", []byte(content))
	require.NoError(t, err)

	assert.False(t, doc.Messenger.Active)
	assert.True(t, doc.Messenger.AutoPing.Active)
	assert.Equal(t, int64(0), doc.Messenger.AutoPing.EveryHours)
	assert.Equal(t, 2, len(doc.Malformed.GetErrorsByCategory("settings")))
}

func TestParse_MessengerEveryHoursOutOfRange(t *testing.T) {
	tests := []struct {
		name      string
		hours     string
		want      int64
		malformed int
	}{
		{"largest representable", "2562047", MaxPingHours, 0},
		{"just past the range", "3000000", MaxPingHours, 1},
		{"would wrap to a short interval", "5124096", MaxPingHours, 1},
		{"huge", "1e300", MaxPingHours, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := `{"TelegramMessenger": {"Active": true, "API": "1:a", "ChatId": 1,
				"TelegramAutoPing": {"Active": true, "EveryHours": ` + tt.hours + `}}}`
			doc, err := Parse("/cfg/settings.json", []byte(content))
			require.NoError(t, err)

			assert.Equal(t, tt.want, doc.Messenger.AutoPing.EveryHours)
			assert.Len(t, doc.Malformed.GetErrorsByCategory("settings"), tt.malformed)
		})
	}
}

func TestDocument_IsSet(t *testing.T) {
	content := `{
		"TelegramMessenger": {
			"Active": false,
			"API": null,
			"TelegramAutoPing": {"EveryHours": 0}
		}
	}`
	doc, err := Parse("/cfg/settings.json", []byte(content))
	require.NoError(t, err)

	tests := []struct {
		keys     []string
		expected bool
	}{
		{[]string{"TelegramMessenger"}, true},
		{[]string{"TelegramMessenger", "Active"}, true},
		{[]string{"TelegramMessenger", "API"}, false},
		{[]string{"TelegramMessenger", "TelegramAutoPing", "EveryHours"}, true},
		{[]string{"TelegramMessenger", "Active", "Nested"}, false},
		{[]string{"Instances"}, false},
		{nil, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, doc.IsSet(tt.keys...), "IsSet(%v)", tt.keys)
	}
}

func TestSameCredentials(t *testing.T) {
	a := MessengerSettings{API: "t1", ChatID: "c1", Active: true}
	b := MessengerSettings{API: "t1", ChatID: "c1", AutoPing: AutoPing{Active: true}}
	c := MessengerSettings{API: "t2", ChatID: "c1"}

	assert.True(t, a.SameCredentials(b))
	assert.False(t, a.SameCredentials(c))
}
