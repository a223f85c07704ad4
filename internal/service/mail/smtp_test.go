package mail

import (
	"bytes"
	"io"
	"mime/quotedprintable"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func renderMessage(t *testing.T, msg Message) string {
	t.Helper()
	m, err := buildMessage(msg, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestBuildMessageWrapsLongBody(t *testing.T) {
	long := strings.Repeat("a", 3000)
	raw := renderMessage(t, Message{
		From:    "noreply@diagnobuddy.test",
		To:      "a@b.com",
		Subject: "Résumé ✓",
		HTML:    "<p>" + long + "</p>",
	})

	for _, line := range strings.Split(raw, "\r\n") {
		require.LessOrEqual(t, len(line), 998, "line exceeds RFC 5322 limit")
	}
	require.Contains(t, raw, "Content-Transfer-Encoding: quoted-printable")

	_, body, found := strings.Cut(raw, "\r\n\r\n")
	require.True(t, found)
	decoded, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(body)))
	require.NoError(t, err)
	require.Contains(t, string(decoded), long)
}

func TestBuildMessageEncodesSubject(t *testing.T) {
	raw := renderMessage(t, Message{
		From:    "noreply@diagnobuddy.test",
		To:      "a@b.com",
		Subject: "Résumé ✓",
		HTML:    "<p>hi</p>",
	})

	for i := 0; i < len(raw); i++ {
		require.Less(t, raw[i], byte(0x80), "raw 8-bit byte at offset %d", i)
	}
	require.NotContains(t, raw, "Subject: Résumé")
	require.Contains(t, strings.ToLower(raw), "subject: =?utf-8?q?")
}

func TestBuildMessageRejectsBadAddress(t *testing.T) {
	_, err := buildMessage(Message{From: "not an address", To: "a@b.com", Subject: Subject, HTML: "x"}, time.Now())
	require.Error(t, err)
}

func TestClientOptionsAuthOnlyWithUsername(t *testing.T) {
	anon := NewSMTPSender("smtp.diagnobuddy.test", 587, "", "")
	authed := NewSMTPSender("smtp.diagnobuddy.test", 587, "user", "pass")
	require.Len(t, authed.clientOptions(), len(anon.clientOptions())+3)
}
