package app

import (
	"testing"
	"time"

	"github.com/kamshory/wsbridge/internal/common/cnst"
	"github.com/kamshory/wsbridge/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	cfg := &config.Config{}

	a, err := New(zap.NewNop(), cfg, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &Chat{}, a)

	cfg.App.Mode = string(cnst.AppModeBroker)
	_, err = New(zap.NewNop(), cfg, nil, nil)
	assert.Error(t, err, "broker needs a signing secret")

	cfg.JWT.SecretKey = testSecret
	cfg.JWT.Duration = time.Minute
	a, err = New(zap.NewNop(), cfg, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &Broker{}, a)

	cfg.App.Mode = string(cnst.AppModeDashboard)
	a, err = New(zap.NewNop(), cfg, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &Dashboard{}, a)

	cfg.App.Dashboard.Template = "{{ broken"
	a, err = New(zap.NewNop(), cfg, nil, nil)
	assert.Error(t, err)
	assert.Nil(t, a)

	cfg.App.Mode = "karaoke"
	_, err = New(zap.NewNop(), cfg, nil, nil)
	assert.ErrorIs(t, err, cnst.ErrInvalidAppMode)
}
