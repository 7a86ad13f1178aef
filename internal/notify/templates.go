package notify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/google/uuid"

	"github.com/laala/laala-api/internal/domain"
)

// Email kinds queued in the outbox.
const (
	KindCoManagerWelcome = "co_manager_welcome"
	KindAccountApproved  = "account_approved"
	KindAccountRejected  = "account_rejected"
)

type emailTemplate struct {
	subject string
	body    *template.Template
}

var templates = map[string]emailTemplate{
	KindCoManagerWelcome: {
		subject: "Vous êtes co-gestionnaire sur La-à-La",
		body: template.Must(template.New(KindCoManagerWelcome).Parse(`Bonjour {{.Name}},

{{.OwnerName}} vous a ajouté comme co-gestionnaire de son espace La-à-La.

Identifiant : {{.Email}}
Mot de passe : {{.Password}}

Connectez-vous sur {{.DashboardURL}} et changez ce mot de passe dès votre première connexion.
`)),
	},
	KindAccountApproved: {
		subject: "Votre demande de compte La-à-La est approuvée",
		body: template.Must(template.New(KindAccountApproved).Parse(`Bonjour,

Votre demande de compte pour {{.Email}} a été approuvée.

Mot de passe temporaire : {{.Password}}

Connectez-vous sur {{.DashboardURL}} avec ce mot de passe temporaire. Vous choisirez votre mot de passe définitif à la première connexion.
{{if .Comment}}
Message de l'équipe : {{.Comment}}
{{end}}`)),
	},
	KindAccountRejected: {
		subject: "Votre demande de compte La-à-La",
		body: template.Must(template.New(KindAccountRejected).Parse(`Bonjour,

Votre demande de compte pour {{.Email}} n'a pas été retenue.

Motif : {{.Comment}}
`)),
	},
}

// EmailData fills the email templates. Unused fields are ignored.
type EmailData struct {
	Name         string
	OwnerName    string
	Email        string
	Password     string
	Comment      string
	DashboardURL string
}

// Composer renders outbox messages.
type Composer struct {
	dashboardURL string
}

// NewComposer creates a composer linking to dashboardURL
func NewComposer(dashboardURL string) *Composer {
	return &Composer{dashboardURL: strings.TrimRight(dashboardURL, "/")}
}

// Compose renders kind for recipient into a pending outbox message.
func (c *Composer) Compose(kind, recipient string, data EmailData) (*domain.OutboxMessage, error) {
	tpl, ok := templates[kind]
	if !ok {
		return nil, fmt.Errorf("unknown email kind %q", kind)
	}
	if data.DashboardURL == "" {
		data.DashboardURL = c.dashboardURL
	}
	if data.Email == "" {
		data.Email = recipient
	}

	var body bytes.Buffer
	if err := tpl.body.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("failed to render %s email: %w", kind, err)
	}
	return &domain.OutboxMessage{
		ID:        uuid.NewString(),
		Kind:      kind,
		Recipient: recipient,
		Subject:   tpl.subject,
		Body:      body.String(),
		Status:    domain.OutboxPending,
	}, nil
}
