// Package sms is the Twilio transport: TwiML replies to inbound webhooks and
// REST sends for outbound alerts.
package sms

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/twilio/twilio-go/twiml"
)

// ContentType is the media type of RenderReply output.
const ContentType = "text/xml; charset=utf-8"

// RenderReply returns a TwiML document that sends text back to the sender.
// Empty text yields a bare <Response>, which tells Twilio to send nothing.
func RenderReply(text string) (string, error) {
	var verbs []twiml.Element
	if strings.TrimSpace(text) != "" {
		verbs = append(verbs, &twiml.MessagingMessage{Body: text})
	}
	return twiml.Messages(verbs)
}

// EmptyReply is the TwiML returned when rendering itself fails.
const EmptyReply = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// Sender sends one SMS.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// messageCreator is the slice of the Twilio API the sender needs.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender sends messages through the Twilio REST API.
type TwilioSender struct {
	api  messageCreator
	from string
}

// NewTwilioSender creates a sender for the given account, sending from `from`.
func NewTwilioSender(accountSID, authToken, from string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{api: client.Api, from: from}
}

// Send creates the message. The SDK call is not context-aware, so ctx only
// bounds how long Send waits for it.
func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	if to == "" {
		return fmt.Errorf("no destination number")
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	type result struct {
		sid string
		err error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := s.api.CreateMessage(params)
		r := result{err: err}
		if err == nil && resp != nil && resp.Sid != nil {
			r.sid = *resp.Sid
		}
		done <- r
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("twilio create message: %w", r.err)
		}
		log.Printf("sms: sent %s to %s", r.sid, to)
		return nil
	}
}

// LogSender only logs messages. Used when Twilio credentials are not configured.
type LogSender struct{}

// Send logs the message.
func (LogSender) Send(_ context.Context, to, body string) error {
	log.Printf("sms: (not sent, twilio not configured) to=%s body=%q", to, body)
	return nil
}
