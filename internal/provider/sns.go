package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/smithy-go"

	"github.com/ricirt/chatpulse/internal/domain"
)

// Publisher is the subset of *sns.Client the provider calls.
type Publisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSConfig selects the region and, for LocalStack, the endpoint and static
// credentials.
type SNSConfig struct {
	Region      string
	EndpointURL string
	AccessKeyID string
	SecretKey   string
}

// SNSProvider publishes to SNS mobile platform endpoints. The job's
// delivery token is the endpoint ARN.
type SNSProvider struct {
	client Publisher
}

func NewSNSProvider(ctx context.Context, cfg SNSConfig) (*SNSProvider, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var clientOpts []func(*sns.Options)
	if cfg.EndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		})
	}
	return NewSNSProviderWithClient(sns.NewFromConfig(awsCfg, clientOpts...)), nil
}

func NewSNSProviderWithClient(client Publisher) *SNSProvider {
	return &SNSProvider{client: client}
}

type gcmNotification struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	ChannelID string `json:"android_channel_id,omitempty"`
	Sound     string `json:"sound,omitempty"`
}

type gcmPayload struct {
	Notification gcmNotification  `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	Priority     string            `json:"priority"`
}

type apsAlert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type aps struct {
	Alert apsAlert `json:"alert"`
	Badge int      `json:"badge,omitempty"`
	Sound string   `json:"sound,omitempty"`
}

// buildMessage renders the per-platform JSON document SNS expects when
// MessageStructure is "json". Platform payloads are themselves strings.
func buildMessage(msg *domain.PushMessage) (string, error) {
	gcm, err := json.Marshal(gcmPayload{
		Notification: gcmNotification{
			Title:     msg.Title,
			Body:      msg.Body,
			ChannelID: msg.Hints.AndroidChannel,
			Sound:     msg.Hints.Sound,
		},
		Data:     msg.Data,
		Priority: string(msg.Hints.Priority),
	})
	if err != nil {
		return "", err
	}

	apnsDoc := map[string]any{
		"aps": aps{
			Alert: apsAlert{Title: msg.Title, Body: msg.Body},
			Badge: msg.Hints.BadgeIncrement,
			Sound: msg.Hints.Sound,
		},
	}
	for k, v := range msg.Data {
		if k != "aps" {
			apnsDoc[k] = v
		}
	}
	apns, err := json.Marshal(apnsDoc)
	if err != nil {
		return "", err
	}

	doc, err := json.Marshal(map[string]string{
		"default":      msg.Body,
		"GCM":          string(gcm),
		"APNS":         string(apns),
		"APNS_SANDBOX": string(apns),
	})
	if err != nil {
		return "", err
	}
	return string(doc), nil
}

func (p *SNSProvider) Send(ctx context.Context, msg *domain.PushMessage) (*SendResponse, error) {
	body, err := buildMessage(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal sns message: %w", err)
	}

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TargetArn:        aws.String(msg.Token),
		Message:          aws.String(body),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		return nil, classifySNSError(err)
	}
	return &SendResponse{MessageID: aws.ToString(out.MessageId), Status: "published"}, nil
}

// classifySNSError maps SNS API error codes onto transport errors.
// A disabled or missing endpoint means the device token is dead.
func classifySNSError(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return unavailable("sns publish", err)
	}
	switch apiErr.ErrorCode() {
	case "EndpointDisabled", "NotFound":
		return &domain.TransportError{Code: domain.CodeUnregistered, Message: apiErr.ErrorMessage()}
	case "InvalidParameter", "InvalidParameterValue":
		// Only a rejected target means the token is dead. A too-long or
		// malformed message fails the same way and must keep the token.
		if targetRejected(apiErr.ErrorMessage()) {
			return &domain.TransportError{Code: domain.CodeInvalidToken, Message: apiErr.ErrorMessage()}
		}
		return &domain.TransportError{Code: apiErr.ErrorCode(), Message: apiErr.ErrorMessage()}
	case "Throttled", "Throttling", "InternalError", "KMSThrottling", "ServiceUnavailable":
		return unavailable("sns publish", err)
	}
	if apiErr.ErrorFault() == smithy.FaultServer {
		return unavailable("sns publish", err)
	}
	return &domain.TransportError{Code: apiErr.ErrorCode(), Message: apiErr.ErrorMessage()}
}

func targetRejected(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "targetarn") || strings.Contains(msg, "endpoint")
}

var _ Provider = (*SNSProvider)(nil)
