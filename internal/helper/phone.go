package helper

import (
	"regexp"
	"strings"
)

var nonDigits = regexp.MustCompile(`\D`)

// DigitsOnly strips everything but digits from a phone number.
func DigitsOnly(number string) string {
	return nonDigits.ReplaceAllString(number, "")
}

// ExtractPhoneFromJID pulls the bare number out of a full JID.
// "5511999998888:43@s.whatsapp.net" -> "5511999998888"
func ExtractPhoneFromJID(jid string) string {
	atSplit := strings.SplitN(jid, "@", 2)
	if len(atSplit) == 0 {
		return jid
	}
	beforeAt := atSplit[0]
	colonSplit := strings.SplitN(beforeAt, ":", 2)
	return colonSplit[0]
}
