package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesShippedScene(t *testing.T) {
	d := Default()
	assert.Equal(t, 0.1, d.Transfer.Amount)
	assert.Equal(t, 5.0, d.Transfer.Multiplier)
	assert.Equal(t, 0.05, d.Transfer.ReturnFraction)
	assert.Equal(t, 1.0, d.Transfer.Duration)
	assert.Equal(t, 75.0, d.Behavior.WanderAbove)
	assert.Equal(t, 25.0, d.Behavior.ApproachAbove)
	assert.Equal(t, 1.0, d.Behavior.BlockAbove)
	assert.Equal(t, 6.0, d.Behavior.SafeDistance)
	assert.Equal(t, 2.0, d.Behavior.StopDistance)
	assert.Equal(t, Speeds{Wander: 1.5, Approach: 4, Block: 2, Flee: 5}, d.Speeds)
	require.Len(t, d.Themes, 4)
	assert.Equal(t, 0.8, d.Themes[1].Pitch)
}

func TestLoadFillsDefaultsAndSortsThemes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tick_rate_hz: 60
transfer:
  amount: 0.3
  multiplier: 5
behavior:
  safe_distance: 9
player_themes:
  - {above: 0, clip: Low}
  - {above: 50, clip: High, volume: 0.5}
`), 0o644))

	tn, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 60, tn.TickRateHz)
	assert.Equal(t, 60, tn.ReportEvery)
	assert.Equal(t, 0.3, tn.Transfer.Amount)
	assert.Equal(t, 1.0, tn.Transfer.Duration)
	assert.Equal(t, 9.0, tn.Behavior.SafeDistance)
	require.Len(t, tn.Themes, 2)
	assert.Equal(t, "High", tn.Themes[0].Clip)
	assert.Equal(t, 1.0, tn.Themes[1].Pitch)
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"unknown key":     "speedz: 3\n",
		"return above 1":  "transfer: {return_fraction: 1.5}\n",
		"negative amount": "transfer: {amount: -1}\n",
		"tiny duration":   "transfer: {duration: 0.001}\n",
		"percent > 100":   "behavior: {wander_above: 120}\n",
		"theme w/o clip":  "player_themes: [{above: 10}]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParseEmptyDocumentIsDefault(t *testing.T) {
	tn, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), tn)
}

func TestLiveSettersClampLikeRuntimeControls(t *testing.T) {
	l := NewLive(Default())

	l.SetTransferAmount(-3)
	l.SetMultiplier(-1)
	l.SetReturnFraction(4)
	l.SetTransferDuration(0)

	got := l.Get().Transfer
	assert.Equal(t, 0.0, got.Amount)
	assert.Equal(t, 0.0, got.Multiplier)
	assert.Equal(t, 1.0, got.ReturnFraction)
	assert.Equal(t, MinTransferDuration, got.Duration)
	assert.Equal(t, uint64(4), l.Version())

	l.SetTransferParameters(0.2, 3, 0, 2)
	assert.Equal(t, Transfer{Amount: 0.2, Multiplier: 3, ReturnFraction: 0, Duration: 2}, l.Get().Transfer)
}

func TestLivePatchJSON(t *testing.T) {
	l := NewLive(Default())

	applied, err := l.PatchJSON([]byte(`{"transfer":{"amount":0.4},"behavior":{"safe_distance":12}}`))
	require.NoError(t, err)
	assert.Equal(t, 0.4, applied.Transfer.Amount)
	assert.Equal(t, 5.0, applied.Transfer.Multiplier, "absent fields keep their value")
	assert.Equal(t, 12.0, l.Get().Behavior.SafeDistance)

	_, err = l.PatchJSON([]byte(`{"behavior":{"block_above":90}}`))
	assert.Error(t, err)
	_, err = l.PatchJSON([]byte(`{`))
	assert.Error(t, err)

	before := l.Version()
	for _, patch := range []string{
		`{"detection_range":-5}`,
		`{"report_every_ticks":0}`,
		`{"gauge_transition_rate":0}`,
		`{"transfer":{"return_fraction":4}}`,
		`{"behavior":{"safe_distance":-1}}`,
		`{"unknown":1}`,
	} {
		_, err := l.PatchJSON([]byte(patch))
		assert.Error(t, err, patch)
	}
	assert.Equal(t, before, l.Version(), "rejected patches change nothing")
	assert.Equal(t, 10.0, l.Get().DetectionRange)
	assert.Equal(t, 30, l.Get().ReportEvery)
}

func TestLiveGetCopiesThemes(t *testing.T) {
	l := NewLive(Default())
	got := l.Get()
	got.Themes[0].Clip = "mutated"
	assert.Equal(t, "Main1", l.Get().Themes[0].Clip)
}
