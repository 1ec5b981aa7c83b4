package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDashboard_SnapshotOnOpenAndRefresh(t *testing.T) {
	store, authn := sessionAuth(t, "alice", "bob")
	d, err := NewDashboard(zap.NewNop(), authn, time.Hour, "")
	require.NoError(t, err)
	srv := serve(t, d, store)

	alice := connect(t, srv, "alice")
	snap := alice.expect("dashboard")
	assert.EqualValues(t, 1, snap.Get("data.online").Int())
	assert.JSONEq(t, `["alice"]`, snap.Get("data.users").Raw)
	assert.NotEmpty(t, snap.Get("data.version").String())
	_, err = time.Parse(time.RFC3339, snap.Get("data.time").String())
	assert.NoError(t, err)

	connect(t, srv, "bob", "dashboard")
	alice.send(`{"command":"refresh"}`)
	snap = alice.expect("dashboard")
	assert.EqualValues(t, 2, snap.Get("data.online").Int())
	assert.JSONEq(t, `["alice","bob"]`, snap.Get("data.users").Raw)
}

func TestDashboard_PeriodicPush(t *testing.T) {
	store, authn := sessionAuth(t, "alice")
	d, err := NewDashboard(zap.NewNop(), authn, 30*time.Millisecond, `{"command":"dashboard","data":{"online":{{ .Online }}}}`)
	require.NoError(t, err)
	srv := serve(t, d, store)

	alice := connect(t, srv, "alice", "dashboard")
	for range 3 {
		assert.EqualValues(t, 1, alice.expect("dashboard").Get("data.online").Int())
	}
}

func TestDashboard_BadTemplate(t *testing.T) {
	_, err := NewDashboard(zap.NewNop(), nil, time.Second, "{{ .Online ")
	assert.Error(t, err)
}
