// Package notify delivers a report or alert to a recipient over email (SES)
// or SMS (SNS).
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"analytics-orchestrator/internal/capability"
	"analytics-orchestrator/internal/common/logger"
)

const Name = "notify"

var (
	ErrSendFailed     = errors.New("NOTIFICATION_SEND_FAILED")
	ErrUnknownChannel = errors.New("unknown notification channel")
)

// EmailSender is satisfied by the SES client wrapper.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SMSSender is satisfied by the SNS client wrapper.
type SMSSender interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

type Config struct {
	FromEmail string
	SenderID  string
}

type Capability struct {
	config Config
	email  EmailSender
	sms    SMSSender
	logger logger.Logger
}

func New(config Config, email EmailSender, sms SMSSender, log logger.Logger) *Capability {
	return &Capability{
		config: config,
		email:  email,
		sms:    sms,
		logger: log.WithFields(map[string]interface{}{
			"capability": Name,
		}),
	}
}

func (c *Capability) Describe() capability.Descriptor {
	return capability.Descriptor{
		Name:     Name,
		Category: "delivery",
		Purpose:  "Send a summary or alert to a recipient by email or SMS",
		InputSchema: map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"channel", "to", "message"},
			"properties": map[string]interface{}{
				"channel": map[string]interface{}{
					"type": "string",
					"enum": []interface{}{"email", "sms"},
				},
				"to":      map[string]interface{}{"type": "string"},
				"subject": map[string]interface{}{"type": "string"},
				"message": map[string]interface{}{"type": "string"},
			},
		},
		OutputShape: map[string]interface{}{
			"delivered": "boolean",
			"channel":   "string",
		},
		Examples: []string{
			"email this summary to ops@example.com",
			"text me when the report is ready",
		},
	}
}

func (c *Capability) Execute(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	channel, _ := input["channel"].(string)
	to, _ := input["to"].(string)
	message, _ := input["message"].(string)

	var err error
	switch channel {
	case "email":
		subject, _ := input["subject"].(string)
		if subject == "" {
			subject = "Analytics report"
		}
		err = c.sendEmail(ctx, to, subject, message)
	case "sms":
		err = c.sendSMS(ctx, to, message)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	c.logger.Info("notification delivered", map[string]interface{}{
		"channel": channel,
	})
	return map[string]interface{}{
		"delivered": true,
		"channel":   channel,
	}, nil
}

func (c *Capability) sendEmail(ctx context.Context, to, subject, message string) error {
	if c.email == nil {
		return fmt.Errorf("email channel is not configured")
	}
	_, err := c.email.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(c.config.FromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(message)},
			},
		},
	})
	return err
}

func (c *Capability) sendSMS(ctx context.Context, to, message string) error {
	if c.sms == nil {
		return fmt.Errorf("sms channel is not configured")
	}
	input := &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	}
	_, err := c.sms.Publish(ctx, input)
	return err
}
