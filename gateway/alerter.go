// Copyright 2025 PromptGate
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"

	"promptgate/platform/gateway/enforcement"
	"promptgate/platform/shared/logger"
)

// severityColors maps violation severity to Slack attachment colors.
var severityColors = map[string]string{
	"critical": "#d00000",
	"high":     "#e85d04",
	"medium":   "#ffba08",
	"low":      "#8d99ae",
}

// Alerter fans violation events out to the configured sinks: a
// Slack-compatible incoming webhook and an SMTP email recipient. Sinks
// run in parallel and a failing sink only logs; alerting never affects
// the client response.
type Alerter struct {
	webhookURL    string
	webhookClient *http.Client

	smtpHost  string
	smtpPort  string
	smtpUser  string
	smtpPass  string
	emailFrom string
	emailTo   string

	log *logger.Logger
}

// NewAlerter creates an alerter from the gateway config. Empty sink
// settings disable that sink.
func NewAlerter(cfg Config) *Alerter {
	return &Alerter{
		webhookURL:    cfg.AlertWebhookURL,
		webhookClient: &http.Client{Timeout: 10 * time.Second},
		smtpHost:      cfg.SMTPHost,
		smtpPort:      cfg.SMTPPort,
		smtpUser:      cfg.SMTPUser,
		smtpPass:      cfg.SMTPPassword,
		emailFrom:     cfg.AlertEmailFrom,
		emailTo:       cfg.AlertEmailTo,
		log:           logger.New("alerter"),
	}
}

// WebhookEnabled reports whether the webhook sink is configured.
func (a *Alerter) WebhookEnabled() bool {
	return a.webhookURL != ""
}

// emailEnabled requires a host plus both addresses; a missing sender or
// recipient leaves the sink off.
func (a *Alerter) emailEnabled() bool {
	return a.smtpHost != "" && a.emailFrom != "" && a.emailTo != ""
}

// SendAlert delivers the violation to every configured sink in parallel
// and waits for them to finish. Callers run it on a background goroutine.
func (a *Alerter) SendAlert(ctx context.Context, v enforcement.Violation) {
	var wg sync.WaitGroup

	if a.webhookURL != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.sendWebhook(ctx, v); err != nil {
				a.log.Error(v.OrgID, v.RequestID, "webhook alert failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}()
	}

	if a.emailEnabled() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.sendEmail(v); err != nil {
				a.log.Error(v.OrgID, v.RequestID, "email alert failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}()
	}

	wg.Wait()
}

// sendWebhook posts a severity-coloured attachment to the webhook.
func (a *Alerter) sendWebhook(ctx context.Context, v enforcement.Violation) error {
	color, ok := severityColors[v.Severity]
	if !ok {
		color = severityColors["medium"]
	}

	msg := &slack.WebhookMessage{
		Text: fmt.Sprintf("Policy violation: %s", v.ViolationType),
		Attachments: []slack.Attachment{
			{
				Color: color,
				Title: fmt.Sprintf("Request %s %s", v.RequestID, v.ActionTaken),
				Fields: []slack.AttachmentField{
					{Title: "Severity", Value: v.Severity, Short: true},
					{Title: "Action", Value: v.ActionTaken, Short: true},
					{Title: "Org", Value: orDash(v.OrgID), Short: true},
					{Title: "App", Value: orDash(v.AppID), Short: true},
					{Title: "User", Value: orDash(v.UserID), Short: true},
					{Title: "Model", Value: v.Model, Short: true},
					{Title: "Violations", Value: strings.Join(v.Violations, ", "), Short: false},
				},
				Footer: "promptgate-gateway",
				Ts:     jsonNumber(v.Timestamp.Unix()),
			},
		},
	}

	return slack.PostWebhookCustomHTTPContext(ctx, a.webhookURL, a.webhookClient, msg)
}

// sendEmail delivers an HTML alert over authenticated SMTP with STARTTLS.
func (a *Alerter) sendEmail(v enforcement.Violation) error {
	subject := fmt.Sprintf("[PromptGate] %s violation (%s)", v.Severity, v.ViolationType)

	body := fmt.Sprintf(
		"<html><body>"+
			"<h2>Policy Violation</h2>"+
			"<table border=\"0\" cellpadding=\"4\">"+
			"<tr><td><b>Request ID</b></td><td>%s</td></tr>"+
			"<tr><td><b>Type</b></td><td>%s</td></tr>"+
			"<tr><td><b>Severity</b></td><td>%s</td></tr>"+
			"<tr><td><b>Action</b></td><td>%s</td></tr>"+
			"<tr><td><b>Org</b></td><td>%s</td></tr>"+
			"<tr><td><b>App</b></td><td>%s</td></tr>"+
			"<tr><td><b>User</b></td><td>%s</td></tr>"+
			"<tr><td><b>Model</b></td><td>%s</td></tr>"+
			"<tr><td><b>Violations</b></td><td>%s</td></tr>"+
			"<tr><td><b>Timestamp</b></td><td>%s</td></tr>"+
			"</table></body></html>",
		v.RequestID, v.ViolationType, v.Severity, v.ActionTaken,
		orDash(v.OrgID), orDash(v.AppID), orDash(v.UserID), v.Model,
		strings.Join(v.Violations, ", "), v.Timestamp.UTC().Format(time.RFC3339),
	)

	msg := strings.Join([]string{
		"From: " + a.emailFrom,
		"To: " + a.emailTo,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")

	addr := a.smtpHost + ":" + a.smtpPort
	var auth smtp.Auth
	if a.smtpUser != "" {
		auth = smtp.PlainAuth("", a.smtpUser, a.smtpPass, a.smtpHost)
	}

	// smtp.SendMail negotiates STARTTLS when the server offers it
	return smtp.SendMail(addr, auth, a.emailFrom, strings.Split(a.emailTo, ","), []byte(msg))
}

func jsonNumber(n int64) json.Number {
	return json.Number(strconv.FormatInt(n, 10))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
