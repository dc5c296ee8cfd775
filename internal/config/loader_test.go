package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powermand/engine/internal/action"
	"github.com/powermand/engine/internal/common"
	"github.com/powermand/engine/internal/device"
)

type nopNotifier struct{}

func (nopNotifier) Reply(*action.Action)                  {}
func (nopNotifier) ErrMsg(*action.Action, common.ErrCode) {}

const sampleTOML = `
[[protocols]]
name = "apc"

  [protocols.scripts]
  LOG_IN = [
    { kind = "send", template = "login\r\n" },
    { kind = "expect", regex = "^ok\r\n" },
  ]
  POWER_ON = [
    { kind = "send", template = "on %s\r\n" },
    { kind = "expect", regex = "^done\r\n" },
  ]
  UPDATE_PLUGS = [
    { kind = "send", template = "status %s\r\n" },
    { kind = "expect", regex = "^state:(\\S+)\r\n", interpretations = [
        { capture = 1, plug = 0 },
      ] },
  ]

[[devices]]
name = "rack1"
type = "tcp"
protocol = "apc"
all_shorthand = "ALL"
on_regex = "^on$"
off_regex = "^off$"
per_command_timeout = "2s"

  [devices.tcp]
  host = "10.0.0.5"
  service = "23"

  [[devices.plugs]]
  name = "p1"
  node = "n1"

  [[devices.plugs]]
  name = "p2"
  node = "n2"
`

func writeSample(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "devices.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadBuildsRegistryFromTOML(t *testing.T) {
	path := writeSample(t, sampleTOML)

	reg, err := Load(path, nopNotifier{}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())

	d := reg.ByName("rack1")
	require.NotNil(t, d)
	assert.Equal(t, device.TransportTCP, d.Kind)
	assert.Equal(t, "ALL", d.AllShorthand)
	assert.Equal(t, 2, len(d.Plugs))
	assert.Equal(t, "n1", d.Plugs[0].Node)

	script, ok := d.Protocol.ScriptFor(int(common.PmPowerOn))
	require.True(t, ok)
	require.Len(t, script, 2)
}

func TestLoadRejectsUnknownProtocolReference(t *testing.T) {
	body := sampleTOML + "\n[[devices]]\nname = \"rack2\"\ntype = \"tcp\"\nprotocol = \"missing\"\non_regex = \"^on$\"\noff_regex=\"^off$\"\nper_command_timeout=\"1s\"\n\n  [devices.tcp]\n  host=\"x\"\n  service=\"23\"\n"
	path := writeSample(t, body)

	_, err := Load(path, nopNotifier{}, nil)
	assert.Error(t, err)
}

func TestLoadRejectsBadSendTemplateSlotCount(t *testing.T) {
	body := `
[[protocols]]
name = "bad"

  [protocols.scripts]
  POWER_ON = [
    { kind = "send", template = "on\r\n" },
  ]

[[devices]]
name = "rack1"
type = "tcp"
protocol = "bad"
on_regex = "^on$"
off_regex = "^off$"
per_command_timeout = "1s"

  [devices.tcp]
  host = "x"
  service = "23"
`
	path := writeSample(t, body)
	_, err := Load(path, nopNotifier{}, nil)
	assert.Error(t, err, "POWER_ON requires a target so its template must carry exactly one %s slot")
}

func TestLoadRejectsMissingTransportTable(t *testing.T) {
	body := `
[[protocols]]
name = "apc2"

  [protocols.scripts]
  LOG_IN = [{ kind = "send", template = "login\r\n" }]

[[devices]]
name = "rack1"
type = "serial"
protocol = "apc2"
on_regex = "^on$"
off_regex = "^off$"
per_command_timeout = "1s"
`
	path := writeSample(t, body)
	_, err := Load(path, nopNotifier{}, nil)
	assert.Error(t, err)
}
