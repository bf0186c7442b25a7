package core

import (
	"bytes"
	"embed"
	htmltmpl "html/template"
	"net/mail"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

// Email templates
const (
	TmplPasswordReset  = "password_reset"
	TmplPaymentReceipt = "payment_receipt"
)

//go:embed templates/email/*
var emailFS embed.FS

var (
	mailTemplates map[string]mailTemplate
	tmplInit      sync.Once
	tmplErr       error
)

type (
	// mailTemplate is a name.txt & name.gohtml pair, each wrapped by its _base layout.
	mailTemplate struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}

	Attachment struct {
		Content     *bytes.Buffer
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

func (m *EmailMessage) getContextData(conf *Config) ContextData {
	return ContextData{
		AppName:         conf.AppName,
		FrontendBaseURL: conf.FrontendBaseURL,
		Data:            m.TemplateData,
	}
}

// Render executes the message template, if any. Templates are parsed once, on first use.
// BodyStr, when set, is sent as the text content.
func (m *EmailMessage) Render(conf *Config) error {
	if m.TemplateName == "" {
		m.TextContent = m.BodyStr
		return nil
	}

	tmplInit.Do(func() { mailTemplates, tmplErr = parseTemplates(conf.Debug || conf.TestMode) })
	if tmplErr != nil {
		return tmplErr
	}
	tmpl, ok := mailTemplates[m.TemplateName]
	if !ok {
		return errors.Errorf("unknown email template %q", m.TemplateName)
	}

	data := m.getContextData(conf)
	var text, html bytes.Buffer
	if m.BodyStr != "" {
		text.WriteString(m.BodyStr)
	} else if err := tmpl.text.Execute(&text, data); err != nil {
		return errors.Wrapf(err, "rendering %s.txt", m.TemplateName)
	}
	if err := tmpl.html.Execute(&html, data); err != nil {
		return errors.Wrapf(err, "rendering %s.gohtml", m.TemplateName)
	}
	m.TextContent = text.String()
	m.HTMLContent = html.String()
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

func parseTemplates(strict bool) (map[string]mailTemplate, error) {
	const dir = "templates/email/"
	tmpls := make(map[string]mailTemplate, 2)
	for _, name := range []string{TmplPasswordReset, TmplPaymentReceipt} {
		text, err := texttmpl.ParseFS(emailFS, dir+"_base.txt", dir+name+".txt")
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s.txt", name)
		}
		html, err := htmltmpl.ParseFS(emailFS, dir+"_base.gohtml", dir+name+".gohtml")
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s.gohtml", name)
		}
		if strict {
			text = text.Option("missingkey=error")
			html = html.Option("missingkey=error")
		}
		tmpls[name] = mailTemplate{text: text, html: html}
	}
	return tmpls, nil
}
