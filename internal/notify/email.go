// Package notify delivers opportunity digests and system alerts via
// email and webhooks.
package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"html"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/david/rfp-harvester/internal/config"
	"github.com/david/rfp-harvester/internal/models"
)

// EmailChannel sends digests and alerts over SMTP with STARTTLS
// implied by the standard auth flow.
type EmailChannel struct {
	cfg config.EmailConfig
	// send is swappable for tests; defaults to smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailChannel(cfg config.EmailConfig) *EmailChannel {
	return &EmailChannel{cfg: cfg, send: smtp.SendMail}
}

func (e *EmailChannel) Name() string { return "email" }

func (e *EmailChannel) configured() bool {
	return e.cfg.SMTPServer != "" && e.cfg.SenderEmail != "" && e.cfg.RecipientEmail != ""
}

// Send delivers a single alert as a plain-text email.
func (e *EmailChannel) Send(_ context.Context, alert models.Alert) error {
	if !e.configured() {
		return fmt.Errorf("email channel not configured")
	}

	subject := fmt.Sprintf("[%s] RFP Harvester: %s", strings.ToUpper(alert.Severity), alert.Metric)
	body := fmt.Sprintf("%s\r\n\r\nMetric: %s\r\nValue: %.2f\r\nTime: %s\r\n",
		alert.Message, alert.Metric, alert.Value, alert.Timestamp.Format(time.RFC3339))

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", e.cfg.SenderEmail)
	fmt.Fprintf(&msg, "To: %s\r\n", e.cfg.RecipientEmail)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	return e.deliver(msg.Bytes())
}

// SendDigest emails the scored opportunities as an HTML table with the
// full data set attached as CSV.
func (e *EmailChannel) SendDigest(_ context.Context, opps []models.Opportunity) error {
	if !e.configured() {
		return fmt.Errorf("email channel not configured")
	}
	if len(opps) == 0 {
		return nil
	}

	var msg bytes.Buffer
	writer := multipart.NewWriter(&msg)

	fmt.Fprintf(&msg, "From: %s\r\n", e.cfg.SenderEmail)
	fmt.Fprintf(&msg, "To: %s\r\n", e.cfg.RecipientEmail)
	fmt.Fprintf(&msg, "Subject: RFP Digest: %d opportunities (%s)\r\n", len(opps), time.Now().Format("2006-01-02"))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", writer.Boundary())

	htmlPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=utf-8"},
	})
	if err != nil {
		return fmt.Errorf("building digest body: %w", err)
	}
	if _, err := htmlPart.Write([]byte(digestHTML(opps))); err != nil {
		return fmt.Errorf("writing digest body: %w", err)
	}

	csvPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/csv; charset=utf-8"},
		"Content-Disposition":       {`attachment; filename="opportunities.csv"`},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return fmt.Errorf("building digest attachment: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(digestCSV(opps))
	if _, err := csvPart.Write([]byte(encoded)); err != nil {
		return fmt.Errorf("writing digest attachment: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalizing digest: %w", err)
	}

	return e.deliver(msg.Bytes())
}

func (e *EmailChannel) deliver(msg []byte) error {
	addr := fmt.Sprintf("%s:%d", e.cfg.SMTPServer, e.cfg.SMTPPort)
	var auth smtp.Auth
	if e.cfg.SenderPassword != "" {
		auth = smtp.PlainAuth("", e.cfg.SenderEmail, e.cfg.SenderPassword, e.cfg.SMTPServer)
	}
	if err := e.send(addr, auth, e.cfg.SenderEmail, []string{e.cfg.RecipientEmail}, msg); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

func digestHTML(opps []models.Opportunity) string {
	var b strings.Builder
	b.WriteString("<html><body><h2>New RFP Opportunities</h2>")
	b.WriteString("<table border=\"1\" cellpadding=\"6\" cellspacing=\"0\">")
	b.WriteString("<tr><th>Score</th><th>Title</th><th>Agency</th><th>Deadline</th><th>Value</th><th>Urgency</th></tr>")
	for _, opp := range opps {
		fmt.Fprintf(&b, "<tr><td>%.1f</td><td><a href=%q>%s</a></td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
			opp.Score,
			opp.URL,
			html.EscapeString(opp.Title),
			html.EscapeString(opp.Agency),
			html.EscapeString(opp.Deadline),
			html.EscapeString(opp.Value),
			html.EscapeString(opp.Urgency),
		)
	}
	b.WriteString("</table></body></html>")
	return b.String()
}

func digestCSV(opps []models.Opportunity) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"title", "agency", "deadline", "value", "urgency", "score", "url", "keywords"})
	for _, opp := range opps {
		w.Write([]string{
			opp.Title,
			opp.Agency,
			opp.Deadline,
			opp.Value,
			opp.Urgency,
			strconv.FormatFloat(opp.Score, 'f', 1, 64),
			opp.URL,
			strings.Join(opp.Keywords, " "),
		})
	}
	w.Flush()
	return buf.Bytes()
}
