// Package mailer is the email-send collaborator: the engine hands it a
// fully rendered message and treats any non-nil error as a failed send.
// Transport mechanics live behind this interface.
package mailer

// EmailJob is the payload handed to whichever transport delivers it.
type EmailJob struct {
	AccountID int    `json:"account_id"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

type Sender interface {
	Send(accountID int, to, subject, body string) error
}

// SenderFunc adapts a plain function to the Sender interface, mostly
// for tests.
type SenderFunc func(accountID int, to, subject, body string) error

func (f SenderFunc) Send(accountID int, to, subject, body string) error {
	return f(accountID, to, subject, body)
}
