// Package email composes and sends the lifecycle emails the workflow
// produces. Delivery is logged; wiring a real SMTP or SES sender only
// requires swapping the send step.
package email

import (
	"fmt"

	"github.com/mozilla-services/experimenter-api/pkg/experiments"
	"github.com/mozilla-services/experimenter-api/pkg/logger"
	"github.com/mozilla-services/experimenter-api/pkg/models"
)

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Service handles email sending.
type Service struct {
	fromEmail string
	fromName  string
	log       logger.Logger

	// Sent collects delivered messages when capture is enabled in tests.
	capture bool
	Sent    []Message
}

// NewService creates a new email service.
func NewService(fromEmail, fromName string, log logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{fromEmail: fromEmail, fromName: fromName, log: log}
}

// NewCaptureService returns a service that records messages instead of
// sending them.
func NewCaptureService() *Service {
	return &Service{capture: true, log: logger.NopLogger{}}
}

// SendIntentToShip announces that an experiment is ready to ship. A
// non-empty attention note marks the request as needing expedited review.
func (s *Service) SendIntentToShip(exp *models.Experiment, attention string) error {
	subject := subjectFor(experiments.IntentToShipEmailSubject, exp)
	body := fmt.Sprintf(
		"The experiment %s is ready to ship.\n\nTargeting: %s\n",
		exp.Name, exp.PopulationLabel())
	if attention != "" {
		body += fmt.Sprintf("\n%s\n\n%s\n", experiments.AttentionMessage, attention)
	}
	return s.send(exp.Owner, subject, body)
}

// SendLaunch announces that an experiment has gone live.
func (s *Service) SendLaunch(exp *models.Experiment) error {
	subject := subjectFor(experiments.LaunchEmailSubject, exp)
	body := fmt.Sprintf("The experiment %s is now live.\n", exp.Name)
	return s.send(exp.Owner, subject, body)
}

// SendEnding warns the owner that an experiment ends in the next few days.
func (s *Service) SendEnding(exp *models.Experiment) error {
	subject := subjectFor(experiments.EndingEmailSubject, exp)
	body := fmt.Sprintf(
		"The experiment %s is scheduled to end soon. Please prepare to record results.\n",
		exp.Name)
	return s.send(exp.Owner, subject, body)
}

// SendEnrollmentPause asks the owner to verify that enrollment has ended.
func (s *Service) SendEnrollmentPause(exp *models.Experiment) error {
	subject := subjectFor(experiments.PauseEmailSubject, exp)
	body := fmt.Sprintf(
		"The enrollment period for %s has elapsed. Please verify that enrollment is paused.\n",
		exp.Name)
	return s.send(exp.Owner, subject, body)
}

func subjectFor(template string, exp *models.Experiment) string {
	return fmt.Sprintf(template, exp.Name, exp.FirefoxMinVersion, string(exp.FirefoxChannel))
}

func (s *Service) send(to, subject, body string) error {
	if s.capture {
		s.Sent = append(s.Sent, Message{To: to, Subject: subject, Body: body})
		return nil
	}
	s.log.Info("email sent",
		"to", to,
		"from", fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail),
		"subject", subject,
		"body", body,
	)
	return nil
}
