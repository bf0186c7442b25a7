package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailMessage_Render(t *testing.T) {
	conf := NewTestConfig()

	t.Run("password reset", func(t *testing.T) {
		msg := &EmailMessage{
			TemplateName: TmplPasswordReset,
			TemplateData: map[string]string{"Name": "Alice", "UID": "dWlk", "Token": "tok-en"},
		}
		require.NoError(t, msg.Render(conf))
		assert.Contains(t, msg.TextContent, "Hello Alice,")
		assert.Contains(t, msg.TextContent, "http://localhost:3000/password-reset/dWlk/tok-en")
		assert.Contains(t, msg.TextContent, "The TeachHub team")
		assert.Contains(t, msg.HTMLContent, "<title>TeachHub</title>")
		assert.Contains(t, msg.HTMLContent, "dWlk/tok-en")
	})

	t.Run("payment receipt", func(t *testing.T) {
		msg := &EmailMessage{
			TemplateName: TmplPaymentReceipt,
			TemplateData: map[string]string{
				"Name":      "<Brian>",
				"Amount":    "KES 1,500.00",
				"Method":    "MPESA",
				"Reference": "QAB1",
				"PaidAt":    "2025-01-05 10:00",
				"Balance":   "KES 500.00",
			},
		}
		require.NoError(t, msg.Render(conf))
		assert.Contains(t, msg.TextContent, "Hello <Brian>,")
		assert.Contains(t, msg.TextContent, "KES 1,500.00 (MPESA, ref. QAB1)")
		assert.Contains(t, msg.TextContent, "Your balance is now KES 500.00.")
		assert.Contains(t, msg.HTMLContent, "Hello &lt;Brian&gt;,")
		assert.Contains(t, msg.HTMLContent, "<strong>KES 500.00</strong>")
	})

	t.Run("missing data", func(t *testing.T) {
		msg := &EmailMessage{TemplateName: TmplPaymentReceipt, TemplateData: map[string]string{"Name": "Brian"}}
		assert.Error(t, msg.Render(conf))
	})

	t.Run("unknown template", func(t *testing.T) {
		msg := &EmailMessage{TemplateName: "welcome"}
		assert.EqualError(t, msg.Render(conf), `unknown email template "welcome"`)
	})

	t.Run("plain body", func(t *testing.T) {
		msg := &EmailMessage{BodyStr: "hi"}
		require.NoError(t, msg.Render(conf))
		assert.Equal(t, "hi", msg.TextContent)
		assert.Empty(t, msg.HTMLContent)
	})
}
