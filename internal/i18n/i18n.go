// Package i18n localizes the error messages sent to WebSocket clients.
// Translations are TOML files embedded from locales/.
package i18n

import (
	"embed"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/kamshory/wsbridge/internal/common/cnst"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// Message IDs
const (
	MsgInvalidCommand              = "InvalidCommand"
	MsgMissingCommand              = "MissingCommand"
	MsgMessageRequired             = "MessageRequired"
	MsgMessageAndReceiversRequired = "MessageAndReceiversRequired"
	MsgReceiverRequired            = "ReceiverRequired"
	MsgHistoryUnavailable          = "HistoryUnavailable"
	MsgHistoryFailed               = "HistoryFailed"
	MsgChannelRequired             = "ChannelRequired"
	MsgTokenRequired               = "TokenRequired"
	MsgTokenNotIssued              = "TokenNotIssued"
	MsgInvalidToken                = "InvalidToken"
	MsgSignFailed                  = "SignFailed"
)

//go:embed locales/*.toml
var locales embed.FS

var (
	defaultOnce       sync.Once
	defaultTranslator *Translator
	defaultErr        error
)

// Translator looks messages up in a bundle, falling back to English
type Translator struct {
	bundle *i18n.Bundle
}

// New loads the embedded translations
func New() (*Translator, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	entries, err := locales.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("failed to read translations: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		if _, err := bundle.LoadMessageFileFS(locales, path.Join("locales", e.Name())); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", e.Name(), err)
		}
	}
	return &Translator{bundle: bundle}, nil
}

// Default returns a process wide translator over the embedded files
func Default() *Translator {
	defaultOnce.Do(func() {
		defaultTranslator, defaultErr = New()
	})
	if defaultErr != nil {
		// only reachable with broken embedded files
		panic(defaultErr)
	}
	return defaultTranslator
}

// Languages returns the tags with a translation file
func (t *Translator) Languages() []string {
	tags := t.bundle.LanguageTags()
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		out = append(out, tag.String())
	}
	return out
}

// Translate localizes msgID for the given preferences, which may be plain
// tags ("id") or Accept-Language values ("id-ID,id;q=0.9"). Unknown IDs are
// returned unchanged.
func (t *Translator) Translate(msgID string, data map[string]any, prefs ...string) string {
	langs := append(append([]string{}, prefs...), cnst.LangDefault)
	localizer := i18n.NewLocalizer(t.bundle, langs...)
	lc := &i18n.LocalizeConfig{MessageID: msgID}
	if len(data) > 0 {
		lc.TemplateData = data
	}
	msg, err := localizer.Localize(lc)
	if err != nil {
		return msgID
	}
	return msg
}

// Headers is the part of a handshake request that carries a language choice
type Headers interface {
	Header(name string) string
	QueryParam(name string) string
}

// Preferences returns the language choices of a client, most specific first:
// the X-Lang header, the lang query parameter, then Accept-Language.
func Preferences(h Headers) []string {
	var prefs []string
	for _, v := range []string{h.Header(cnst.XLang), h.QueryParam("lang"), h.Header("Accept-Language")} {
		if v = strings.TrimSpace(v); v != "" {
			prefs = append(prefs, v)
		}
	}
	return prefs
}
