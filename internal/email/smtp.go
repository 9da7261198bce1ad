// Package email envía notificaciones operativas por SMTP.
package email

import (
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail"

	"github.com/dropDatabas3/donpedro/internal/observability/logger"
)

// Sender abstrae el transporte de mail.
type Sender interface {
	Send(to, subject, htmlBody, textBody string) error
}

// SMTPSender implementa Sender sobre go-mail.
type SMTPSender struct {
	Host string
	Port int
	From string
	User string
	Pass string
	// TLSMode: "auto" (STARTTLS oportunista), "starttls", "ssl" (TLS
	// implícito) o "none".
	TLSMode            string
	InsecureSkipVerify bool
}

func NewSMTPSender(host string, port int, from, user, pass string) *SMTPSender {
	return &SMTPSender{Host: host, Port: port, From: from, User: user, Pass: pass, TLSMode: "auto"}
}

func (s *SMTPSender) dialer() *mail.Dialer {
	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	tc := &tls.Config{ServerName: s.Host, InsecureSkipVerify: s.InsecureSkipVerify}
	switch s.TLSMode {
	case "ssl":
		d.SSL = true
		d.TLSConfig = tc
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: s.InsecureSkipVerify}
	default:
		// auto/starttls: go-mail negocia STARTTLS cuando el server lo ofrece
		d.TLSConfig = tc
	}
	return d
}

// Send arma un mensaje multipart/alternative cuando hay ambos cuerpos.
func (s *SMTPSender) Send(to, subject, htmlBody, textBody string) error {
	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)

	switch {
	case textBody != "" && htmlBody != "":
		m.SetBody("text/plain", textBody)
		m.AddAlternative("text/html", htmlBody)
	case htmlBody != "":
		m.SetBody("text/html", htmlBody)
	default:
		m.SetBody("text/plain", textBody)
	}

	log := logger.Named("smtp").With(logger.String("host", s.Host), logger.String("to", to))
	if err := s.dialer().DialAndSend(m); err != nil {
		log.Error("smtp send failed", logger.Err(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	log.Debug("email sent")
	return nil
}
