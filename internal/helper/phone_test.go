package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "5511999998888", DigitsOnly("+55 (11) 99999-8888"))
	assert.Equal(t, "5511999998888", DigitsOnly("5511999998888"))
	assert.Equal(t, "", DigitsOnly("no digits"))
}

func TestExtractPhoneFromJID(t *testing.T) {
	tests := []struct {
		jid  string
		want string
	}{
		{"5511999998888@s.whatsapp.net", "5511999998888"},
		{"5511999998888:43@s.whatsapp.net", "5511999998888"},
		{"5511999998888", "5511999998888"},
		{"", ""},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, ExtractPhoneFromJID(tc.jid), tc.jid)
	}
}
