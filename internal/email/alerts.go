package email

import (
	"fmt"
	"time"

	"github.com/dropDatabas3/donpedro/internal/observability/logger"
)

// SecurityAlerter manda alertas de seguridad a un buzón operativo.
// El envío es asincrónico y best-effort: una alerta perdida nunca
// bloquea ni falla el request que la originó.
type SecurityAlerter struct {
	sender Sender
	to     string
}

// NewSecurityAlerter devuelve nil si falta sender o destinatario;
// los call sites tratan nil como "alertas apagadas".
func NewSecurityAlerter(sender Sender, to string) *SecurityAlerter {
	if sender == nil || to == "" {
		return nil
	}
	return &SecurityAlerter{sender: sender, to: to}
}

// RefreshReuse alerta la detección de reuso de un refresh token.
func (a *SecurityAlerter) RefreshReuse(clientID, subjectID string, revoked int64) {
	if a == nil {
		return
	}
	subject := "[donpedro] refresh token reuse detected"
	text := fmt.Sprintf(
		"Refresh token reuse detected at %s\n\nclient_id: %s\nsubject: %s\ntokens revoked: %d\n\nThe whole chain was revoked; the subject must authenticate again.\n",
		time.Now().UTC().Format(time.RFC3339), clientID, subjectID, revoked,
	)
	go func() {
		if err := a.sender.Send(a.to, subject, "", text); err != nil {
			logger.Named("alerts").Warn("security alert not delivered", logger.Err(err))
		}
	}()
}
