package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFormatReport(t *testing.T) {
	assert.Equal(t, "", FormatReport(nil))
	assert.Equal(t,
		"<br><b>1</b>. first<br><b>2</b>. second",
		FormatReport([]string{"first", "second"}),
	)
}

func TestSMTPNotifierBuildsMail(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{
		Addr:     "mail.example.com:587",
		Host:     "mail.example.com",
		Username: "user",
		Password: "pass",
		From:     "trader@example.com",
		To:       "desk@example.com",
	}, zap.NewNop())

	var gotAddr string
	var gotTo []string
	var gotMsg string
	n.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		assert.NotNil(t, a)
		return nil
	}

	require.NoError(t, n.Notify(context.Background(), "<br><b>1</b>. ok"))
	assert.Equal(t, "mail.example.com:587", gotAddr)
	assert.Equal(t, []string{"desk@example.com"}, gotTo)
	assert.True(t, strings.Contains(gotMsg, "Subject: "+Subject+"\r\n"))
	assert.True(t, strings.Contains(gotMsg, "Content-Type: text/html"))
	assert.True(t, strings.HasSuffix(gotMsg, "<br><b>1</b>. ok\r\n"))
}

func TestSMTPNotifierWrapsFailure(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{Addr: "localhost:25", To: "x@example.com"}, zap.NewNop())
	n.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := n.Notify(context.Background(), "report")
	assert.ErrorIs(t, err, ErrNotificationFailed)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, NewLogNotifier(zap.NewNop()).Notify(context.Background(), "report"))
}
