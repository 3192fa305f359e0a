package email

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"elms/internal/platform/config"
)

func TestBuildMessageStripsHeaderInjection(t *testing.T) {
	msg := string(BuildMessage("a@example.com", "b@example.com", "hello\r\nBcc: evil@example.com", "body"))
	assert.Contains(t, msg, "Subject: hello  Bcc: evil@example.com\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nbody"))
}

func TestNewWithoutSMTPDropsMessages(t *testing.T) {
	sender := New(config.Config{EmailEnabled: true}, zap.NewNop())
	assert.NoError(t, sender.Send(context.Background(), "a@example.com", "b@example.com", "s", "b"))
}
