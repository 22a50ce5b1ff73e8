package mailer

import (
	"context"
	"fmt"
	"html"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/wangwalon/myname-world/internal/aws"
)

const downloadSubject = "Your name image is ready"

// Mailer sends the delivery email with the download link over SESv2.
type Mailer struct {
	client aws.SESAPI
	from   string
}

// NewMailer returns a Mailer sending from the given verified address.
func NewMailer(client aws.SESAPI, from string) *Mailer {
	return &Mailer{client: client, from: from}
}

// SendDownloadLink emails the customer their image URL. The caller decides
// what a failure means for the order row.
func (m *Mailer) SendDownloadLink(ctx context.Context, to, name, pngURL string) error {
	if to == "" {
		return fmt.Errorf("no recipient address on order")
	}

	textBody := fmt.Sprintf(
		"Hello %s,\n\nYour personalized name image is ready.\nDownload it here: %s\n\nThank you for your order!\n",
		displayName(name), pngURL)
	// name comes from checkout metadata, so it is customer-controlled
	htmlBody := fmt.Sprintf(
		`<p>Hello %s,</p><p>Your personalized name image is ready.</p><p><a href="%s">Download your image</a></p><p>Thank you for your order!</p>`,
		html.EscapeString(displayName(name)), html.EscapeString(pngURL))

	subject := downloadSubject
	_, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &m.from,
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: &subject},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: &textBody},
					Html: &sestypes.Content{Data: &htmlBody},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func displayName(name string) string {
	if name == "" {
		return "there"
	}
	return name
}
