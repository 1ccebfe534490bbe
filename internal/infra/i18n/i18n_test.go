package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"zh", "zh"},
		{"zh-CN", "zh"},
		{"en", "en"},
		{"en-US", "en"},
		{"fr", "zh"},
		{"not a tag!", "zh"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Match(tt.in), "Match(%q)", tt.in)
	}
}

func TestTranslate(t *testing.T) {
	tr, err := New("en")
	require.NoError(t, err)

	assert.Equal(t, "Show Window", tr.T("tray.showWindow"))
	assert.Equal(t, "Created Time", tr.T("menu.conversation.sortByCreateTime"))
	assert.Equal(t, "no.such.key", tr.T("no.such.key"))
	assert.Equal(t, "", tr.T(""))

	tr.SetLanguage("zh-CN")
	assert.Equal(t, "zh", tr.Language())
	assert.Equal(t, "退出", tr.T("tray.exit"))
}

func TestCatalogsHaveSameKeys(t *testing.T) {
	tr, err := New(Default)
	require.NoError(t, err)
	zh, en := tr.catalogs["zh"], tr.catalogs["en"]
	require.NotEmpty(t, zh)
	for k := range zh {
		_, ok := en[k]
		assert.True(t, ok, "en catalog missing %q", k)
	}
	assert.Len(t, en, len(zh))
}
