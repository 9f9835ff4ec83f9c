package sns

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/go-account-api/internal/config"
)

// ErrNoTopic is returned by NewAlerter when ALERT_TOPIC_ARN is unset.
var ErrNoTopic = errors.New("alert topic not configured")

// SNS caps subjects at 100 characters.
const maxSubjectLen = 100

// Alerter publishes operational alerts to an SNS topic.
type Alerter interface {
	Alert(ctx context.Context, subject, message string) error
}

type publisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type alerter struct {
	client   publisher
	topicARN string
}

func NewAlerter(ctx context.Context, cfg *config.Config) (Alerter, error) {
	if cfg.AlertTopicARN == "" {
		return nil, ErrNoTopic
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SNSRegion))
	if err != nil {
		return nil, fmt.Errorf("load AWS config for SNS: %w", err)
	}
	var opts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		opts = append(opts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return &alerter{client: sns.NewFromConfig(awsCfg, opts...), topicARN: cfg.AlertTopicARN}, nil
}

func (a *alerter) Alert(ctx context.Context, subject, message string) error {
	if len(subject) > maxSubjectLen {
		subject = subject[:maxSubjectLen]
	}
	_, err := a.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(a.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}
