package mailer

// Mailer sends transactional email on behalf of the identity service.
type Mailer interface {
	SendEmailConfirmation(toEmail, toName, code string) error
}
