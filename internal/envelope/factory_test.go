package envelope

import (
	"testing"
	"time"

	"usagestats/internal/model"

	"github.com/stretchr/testify/assert"
)

var testIdentity = model.Identity{
	DataContextID:         "00000000-0000-0000-0000-000000000002",
	DataContextInstanceID: "10000000-0000-0000-0000-000000000002",
}

func TestWrap(t *testing.T) {
	fixed := time.Date(2020, 8, 4, 22, 50, 58, 837_400_000, time.FixedZone("KST", 9*3600))
	f := NewFactory(testIdentity, "0.13.18.manual_testing", WithClock(func() time.Time { return fixed }))

	ev := f.Wrap("cli.checkpoint.new.end", model.Payload{"api_version": "v3"}, false)

	assert.Equal(t, model.EventName("cli.checkpoint.new.end"), ev.Event)
	assert.Equal(t, "1.0.0", ev.Version)
	assert.Equal(t, "2020-08-04T13:50:58.837Z", ev.EventTime)
	assert.False(t, ev.Success)
	assert.Equal(t, testIdentity.DataContextID, ev.DataContextID)
	assert.Equal(t, testIdentity.DataContextInstanceID, ev.DataContextInstanceID)
	assert.Equal(t, "0.13.18.manual_testing", ev.GEVersion)
}

func TestWrap_CapturesTimeAtCall(t *testing.T) {
	before := time.Now().UTC().Truncate(time.Millisecond)
	ev := NewFactory(testIdentity, "0.13.0").Wrap("cli.init.create", nil, true)
	after := time.Now().UTC()

	got, err := time.Parse(model.EventTimeLayout, ev.EventTime)
	assert.NoError(t, err)
	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))
	assert.Equal(t, model.Payload{}, ev.EventPayload)
}

func TestOverlay_DoesNotMutateInputs(t *testing.T) {
	base := model.Message{
		"success":       true,
		"version":       "1.0.0",
		"event_payload": map[string]any{"api_version": "v2"},
	}
	stub := model.Message{
		"event":         "cli.checkpoint.new",
		"event_payload": map[string]any{"api_version": "v3"},
	}

	out := Overlay(base, stub)
	out["event_payload"].(map[string]any)["cancelled"] = true

	assert.Equal(t, "cli.checkpoint.new", out["event"])
	assert.Equal(t, true, out["success"])
	assert.Equal(t, map[string]any{"api_version": "v2"}, base["event_payload"])
	assert.Equal(t, map[string]any{"api_version": "v3"}, stub["event_payload"])
	assert.NotContains(t, base, "event")
}

func TestOverlayAll(t *testing.T) {
	base := model.Message{"success": true, "version": "1.0.0"}
	stubs := []model.Message{
		{"event": "cli.checkpoint.new", "ge_version": "0.11.9.manual_testing"},
		{"event": "cli.checkpoint.new.end", "success": false, "ge_version": "0.13.18.manual_testing"},
	}

	out := OverlayAll(base, stubs)

	assert.Equal(t, []model.Message{
		{"success": true, "version": "1.0.0", "event": "cli.checkpoint.new", "ge_version": "0.11.9.manual_testing"},
		{"success": false, "version": "1.0.0", "event": "cli.checkpoint.new.end", "ge_version": "0.13.18.manual_testing"},
	}, out)
	assert.Equal(t, model.Message{"success": true, "version": "1.0.0"}, base)
}
