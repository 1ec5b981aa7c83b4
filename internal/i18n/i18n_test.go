package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type headers map[string]string

func (h headers) Header(name string) string     { return h[name] }
func (h headers) QueryParam(name string) string { return h["?"+name] }

func TestTranslate(t *testing.T) {
	tr, err := New()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"en", "id", "zh"}, tr.Languages())

	assert.Equal(t, "message is required", tr.Translate(MsgMessageRequired, nil))
	assert.Equal(t, "pesan wajib diisi", tr.Translate(MsgMessageRequired, nil, "id"))
	assert.Equal(t, "消息不能为空", tr.Translate(MsgMessageRequired, nil, "zh-CN,zh;q=0.9"))
	assert.Equal(t, "message is required", tr.Translate(MsgMessageRequired, nil, "fr-FR"))

	assert.Equal(t, "call: penerima wajib diisi",
		tr.Translate(MsgReceiverRequired, map[string]any{"Command": "call"}, "id-ID,id;q=0.8,en;q=0.5"))
	assert.Equal(t, "invalid token: expired",
		tr.Translate(MsgInvalidToken, map[string]any{"Reason": "expired"}))

	assert.Equal(t, "NoSuchMessage", tr.Translate("NoSuchMessage", nil, "id"))
}

func TestEveryMessageIsTranslated(t *testing.T) {
	tr := Default()
	ids := []string{
		MsgInvalidCommand, MsgMissingCommand, MsgMessageRequired, MsgMessageAndReceiversRequired,
		MsgReceiverRequired, MsgHistoryUnavailable, MsgHistoryFailed, MsgChannelRequired,
		MsgTokenRequired, MsgTokenNotIssued, MsgInvalidToken, MsgSignFailed,
	}
	for _, lang := range tr.Languages() {
		for _, id := range ids {
			assert.NotEqual(t, id, tr.Translate(id, map[string]any{"Command": "x", "Reason": "y"}, lang), "%s/%s", lang, id)
		}
	}
}

func TestPreferences(t *testing.T) {
	assert.Empty(t, Preferences(headers{}))
	assert.Equal(t, []string{"zh", "id", "en-US,en;q=0.9"}, Preferences(headers{
		"X-Lang":          "zh",
		"?lang":           " id ",
		"Accept-Language": "en-US,en;q=0.9",
	}))
}
