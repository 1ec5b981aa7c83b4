package app

import (
	"text/template"
	"time"

	"github.com/kamshory/wsbridge/internal/auth"
	"github.com/kamshory/wsbridge/internal/core"
	"github.com/kamshory/wsbridge/pkg/utils"
	"github.com/kamshory/wsbridge/pkg/version"

	"go.uber.org/zap"
)

// DefaultDashboardTemplate renders the snapshot as a JSON envelope
const DefaultDashboardTemplate = `{"command":"dashboard","data":{"online":{{ .Online }},` +
	`"users":{{ .Users | toJson }},"uptime":{{ .Uptime.String | quote }},` +
	`"version":{{ .Version | trim | quote }},"time":{{ .Time | date "2006-01-02T15:04:05Z07:00" | quote }}}}`

const defaultDashboardInterval = 5 * time.Second

// Snapshot is the data handed to the dashboard template
type Snapshot struct {
	Online  int
	Users   []string
	Uptime  time.Duration
	Version string
	Time    time.Time
}

// Dashboard pushes a rendered snapshot to every client on a fixed interval.
// Clients may ask for an immediate copy with the refresh command.
type Dashboard struct {
	base
	interval time.Duration
	tmpl     *template.Template
}

var _ Application = (*Dashboard)(nil)

// NewDashboard parses tmpl (DefaultDashboardTemplate when empty). Sprig
// functions are available to the template.
func NewDashboard(logger *zap.Logger, authn *auth.Authenticator, interval time.Duration, tmpl string) (*Dashboard, error) {
	if tmpl == "" {
		tmpl = DefaultDashboardTemplate
	}
	t, err := utils.NewTemplate("dashboard", tmpl)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = defaultDashboardInterval
	}
	d := &Dashboard{
		base:     newBase(logger.Named("dashboard"), authn, nil),
		interval: interval,
		tmpl:     t,
	}
	d.handlers[CmdRefresh] = d.refresh
	return d, nil
}

func (d *Dashboard) Bind(hub Hub) {
	d.base.Bind(hub)
	hub.Every(d.interval, d.push)
}

func (d *Dashboard) OnOpen(c *core.Connection) {
	d.sendSnapshot(c, time.Now())
}

func (d *Dashboard) snapshot(now time.Time) Snapshot {
	reg := d.hub.Registry()
	users := reg.Identities()
	if users == nil {
		users = []string{}
	}
	return Snapshot{
		Online:  reg.Len(),
		Users:   users,
		Uptime:  now.Sub(d.hub.StartedAt()).Round(time.Second),
		Version: version.Get(),
		Time:    now,
	}
}

func (d *Dashboard) render(now time.Time) ([]byte, bool) {
	out, err := utils.Execute(d.tmpl, d.snapshot(now))
	if err != nil {
		d.logger.Error("render dashboard", zap.Error(err))
		return nil, false
	}
	return []byte(out), true
}

func (d *Dashboard) push(now time.Time) {
	if d.hub.Registry().Len() == 0 {
		return
	}
	if msg, ok := d.render(now); ok {
		d.hub.Broadcast(msg)
	}
}

func (d *Dashboard) sendSnapshot(c *core.Connection, now time.Time) {
	msg, ok := d.render(now)
	if !ok {
		return
	}
	if err := c.Send(msg); err != nil {
		d.logger.Error("send dashboard", zap.Uint64("conn_id", c.ID()), zap.Error(err))
	}
}

func (d *Dashboard) refresh(c *core.Connection, _ *Command) {
	d.sendSnapshot(c, time.Now())
}
