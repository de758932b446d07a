package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"bloghub/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMailer(send sendFunc) *SMTPMailer {
	m := NewSMTPMailer(&config.Config{SMTPHost: "smtp.example.com", SMTPPort: 587, SMTPFrom: "BlogHub <noreply@example.com>"})
	m.send = send
	return m
}

func TestSMTPMailer_Send(t *testing.T) {
	var gotAddr string
	var gotMsg []byte
	m := testMailer(func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		assert.Equal(t, "BlogHub <noreply@example.com>", from)
		assert.Equal(t, []string{"ada@example.com"}, to)
		return nil
	})

	require.NoError(t, m.Send(context.Background(), "ada@example.com", "Reset your password", "<p>hi</p>"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	body := string(gotMsg)
	assert.Contains(t, body, "Subject: Reset your password\r\n")
	assert.Contains(t, body, "Content-Type: text/html")
	assert.True(t, strings.HasSuffix(body, "<p>hi</p>"))
}

func TestSMTPMailer_InvalidRecipient(t *testing.T) {
	called := false
	m := testMailer(func(string, smtp.Auth, string, []string, []byte) error {
		called = true
		return nil
	})
	assert.Error(t, m.Send(context.Background(), "not an address", "s", "b"))
	assert.False(t, called)
}

func TestSMTPMailer_BreakerOpensAfterFailures(t *testing.T) {
	calls := 0
	relayDown := errors.New("connection refused")
	m := testMailer(func(string, smtp.Auth, string, []string, []byte) error {
		calls++
		return relayDown
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := m.Send(ctx, "ada@example.com", "s", "b")
		assert.ErrorIs(t, err, relayDown)
	}
	err := m.Send(ctx, "ada@example.com", "s", "b")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, calls)
}

func TestNew_FallsBackToLogMailer(t *testing.T) {
	m := New(&config.Config{})
	assert.IsType(t, LogMailer{}, m)
	assert.NoError(t, m.Send(context.Background(), "a@example.com", "s", "b"))
}
