package notify

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alxayo/go-galaxy-sia/internal/config"
	"github.com/alxayo/go-galaxy-sia/internal/sia/event"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func routedConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Accounts = map[string]config.AccountConfig{
		"023456": {
			SiteName: "Main House",
			Ntfy: config.NtfyConfig{
				Enabled:  true,
				TopicURL: "https://ntfy.sh/main-house",
				Title:    "Galaxy FLEX",
			},
		},
		"758432": {
			SiteName: "Cabin",
			Ntfy: config.NtfyConfig{
				Enabled:  true,
				TopicURL: "https://ntfy.sh/cabin",
				Title:    "Galaxy FLEX",
			},
		},
	}
	return cfg
}

func TestFormatArmedEvent(t *testing.T) {
	ev := &event.Event{
		Account:    "023456",
		SiteName:   "Main House",
		Time:       "16:38",
		UserID:     "001",
		Partition:  "010",
		EventCode:  "CL",
		EventDescr: "Closing Report (User Armed)",
	}
	n, ok := Format(ev, routedConfig(t), discard())
	require.True(t, ok)
	assert.Equal(t, "Galaxy FLEX: Main House", n.Title)
	assert.Equal(t, "16:38 Event: CL (Closing Report (User Armed)) User: 001 Partition: 010", n.Body)
	assert.Equal(t, 3, n.Priority)
	assert.Equal(t, "https://ntfy.sh/main-house", n.TopicURL)
}

func TestFormatActionTextWins(t *testing.T) {
	ev := &event.Event{
		Account:    "023456",
		SiteName:   "Main House",
		Time:       "02:15",
		EventCode:  "BA",
		EventDescr: "Burglary Alarm",
		Zone:       "1012",
		ActionText: "BURGLARY ALARM ZONE 1012",
	}
	n, ok := Format(ev, routedConfig(t), discard())
	require.True(t, ok)
	// Zone digits already occur in the text, so no suffix.
	assert.Equal(t, "02:15 BURGLARY ALARM ZONE 1012", n.Body)
	assert.Equal(t, 5, n.Priority)
}

func TestFormatZoneSuffix(t *testing.T) {
	ev := &event.Event{
		Account:    "023456",
		SiteName:   "Main House",
		Time:       "02:15",
		EventCode:  "BA",
		EventDescr: "Burglary Alarm",
		Zone:       "1012",
		ActionText: "INBROTT HALL",
	}
	n, ok := Format(ev, routedConfig(t), discard())
	require.True(t, ok)
	assert.Equal(t, "02:15 INBROTT HALL (Zone 1012)", n.Body)
}

func TestFormatMissingTime(t *testing.T) {
	ev := &event.Event{
		Account:    "023456",
		SiteName:   "Main House",
		EventCode:  "RP",
		EventDescr: "Automatic Test",
	}
	n, ok := Format(ev, routedConfig(t), discard())
	require.True(t, ok)
	assert.Equal(t, "?? Event: RP (Automatic Test)", n.Body)
	assert.Equal(t, 2, n.Priority)
}

func TestFormatSkipsWithoutCode(t *testing.T) {
	ev := &event.Event{Account: "023456", SiteName: "Main House", Time: "10:00"}
	_, ok := Format(ev, routedConfig(t), discard())
	assert.False(t, ok)
}

func TestFormatSkipsUnroutedAccount(t *testing.T) {
	ev := &event.Event{
		Account:    "999999",
		SiteName:   "999999",
		EventCode:  "BA",
		EventDescr: "Burglary Alarm",
	}
	_, ok := Format(ev, routedConfig(t), discard())
	assert.False(t, ok, "no topic and no default entry")
}

func TestFormatFallsBackToAccountAndDefaultTitle(t *testing.T) {
	cfg := routedConfig(t)
	cfg.Accounts[config.DefaultAccount] = config.AccountConfig{
		Ntfy: config.NtfyConfig{Enabled: true, TopicURL: "https://ntfy.sh/fallback"},
	}
	ev := &event.Event{
		Account:    "555555",
		SiteName:   "555555",
		Time:       "09:00",
		EventCode:  "OP",
		EventDescr: "Opening Report (User Disarmed)",
	}
	n, ok := Format(ev, cfg, discard())
	require.True(t, ok)
	assert.Equal(t, "Galaxy Alarm: 555555", n.Title)
	assert.Equal(t, "https://ntfy.sh/fallback", n.TopicURL)
}

func TestFormatDistinctTitlesPerAccount(t *testing.T) {
	cfg := routedConfig(t)
	first := &event.Event{Account: "023456", SiteName: "Main House", Time: "10:00", EventCode: "OP", EventDescr: "Opening Report (User Disarmed)"}
	second := &event.Event{Account: "758432", SiteName: "Cabin", Time: "10:01", EventCode: "CL", EventDescr: "Closing Report (User Armed)"}

	n1, ok := Format(first, cfg, discard())
	require.True(t, ok)
	n2, ok := Format(second, cfg, discard())
	require.True(t, ok)
	assert.NotEqual(t, n1.Title, n2.Title)
	assert.NotEqual(t, n1.TopicURL, n2.TopicURL)
}
