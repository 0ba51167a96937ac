package sending_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/sending"
)

type fakeSES struct{ input *sesv2.SendEmailInput }

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func TestSESSendTags(t *testing.T) {
	f := &fakeSES{}
	s := sending.NewSESSender(f, "announce-events")
	res, err := s.Send(context.Background(), &domain.EmailMessage{
		To: "a@x.io", FromName: "Comms", FromEmail: "c@co.io", Subject: "S", HTML: "<p/>",
		Tags: map[string]string{domain.TagCampaignID: "c1", domain.TagContactID: "k1"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.MessageID != "ses-1" {
		t.Fatalf("message id %q", res.MessageID)
	}
	in := f.input
	if aws.ToString(in.FromEmailAddress) != "Comms <c@co.io>" {
		t.Fatalf("from %q", aws.ToString(in.FromEmailAddress))
	}
	if aws.ToString(in.ConfigurationSetName) != "announce-events" {
		t.Fatal("configuration set not applied")
	}
	if len(in.EmailTags) != 2 || aws.ToString(in.EmailTags[0].Name) != "campaign_id" || aws.ToString(in.EmailTags[0].Value) != "c1" {
		t.Fatalf("unexpected tags %+v", in.EmailTags)
	}
}
