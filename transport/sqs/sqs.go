// Package sqs builds the Amazon SQS client the reporter sends through.
// It honours a configured region, optional static credentials and a custom
// endpoint for LocalStack-style development setups.
package sqs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	wmsqs "github.com/ThreeDotsLabs/watermill-aws/sqs"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	amazonsqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	smithyendpoints "github.com/aws/smithy-go/endpoints"
)

const (
	localstackAccountID = "000000000000"
	awsAccountIDLength  = 12
)

// Config provides the settings the transport needs.
type Config interface {
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}

// Client is the subset of the SQS API used by the reporter.
type Client interface {
	SendMessage(ctx context.Context, params *amazonsqs.SendMessageInput, optFns ...func(*amazonsqs.Options)) (*amazonsqs.SendMessageOutput, error)
	GetQueueUrl(ctx context.Context, params *amazonsqs.GetQueueUrlInput, optFns ...func(*amazonsqs.Options)) (*amazonsqs.GetQueueUrlOutput, error)
}

// DefaultConfigLoader allows overriding the AWS config loader for testing.
var DefaultConfigLoader = awsconfig.LoadDefaultConfig

// ClientFactory allows overriding client construction for testing.
var ClientFactory = func(cfg aws.Config, optFns ...func(*amazonsqs.Options)) Client {
	return amazonsqs.NewFromConfig(cfg, optFns...)
}

// NewClient loads AWS configuration and returns an SQS client.
func NewClient(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Client, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	awsCfg, err := createAWSConfig(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	opts, err := endpointOptions(cfg, awsCfg)
	if err != nil {
		logger.Error("Failed to parse SQS endpoint", err, watermill.LogFields{})
		return nil, err
	}

	logger.Info("Created SQS client", watermill.LogFields{
		"region":          awsCfg.Region,
		"custom_endpoint": len(opts) > 0,
	})
	return ClientFactory(*awsCfg, opts...), nil
}

func createAWSConfig(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (*aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg != nil {
		region := cfg.GetAWSRegion()
		accessKey := cfg.GetAWSAccessKeyID()
		secretKey := cfg.GetAWSSecretAccessKey()

		if region != "" {
			logger.Info("Setting AWS region from config", watermill.LogFields{"region": region})
			opts = append(opts, awsconfig.WithRegion(region))
		}
		if accessKey != "" && secretKey != "" {
			logger.Info("Using static AWS credentials from config", watermill.LogFields{})
			opts = append(opts, awsconfig.WithCredentialsProvider(staticCredentialsProvider(accessKey, secretKey)))
		}
	}

	awsCfg, err := DefaultConfigLoader(ctx, opts...)
	if err != nil {
		fields := watermill.LogFields{}
		if cfg != nil && cfg.GetAWSRegion() != "" {
			fields["requested_region"] = cfg.GetAWSRegion()
		}
		logger.Error("Failed to load AWS default config", err, fields)
		return nil, err
	}

	// Ensure region is set even if the loader ignores options
	if cfg != nil && cfg.GetAWSRegion() != "" {
		awsCfg.Region = cfg.GetAWSRegion()
	}
	return &awsCfg, nil
}

// endpointOptions prefers the configured endpoint and falls back to a base
// endpoint picked up by the AWS loader (AWS_ENDPOINT_URL).
func endpointOptions(cfg Config, awsCfg *aws.Config) ([]func(*amazonsqs.Options), error) {
	raw := ""
	if cfg != nil {
		raw = cfg.GetAWSEndpoint()
	}
	if raw == "" && awsCfg != nil && awsCfg.BaseEndpoint != nil {
		raw = *awsCfg.BaseEndpoint
	}
	if raw == "" {
		return nil, nil
	}

	parsedURL, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse AWS endpoint: %w", err)
	}
	return []func(*amazonsqs.Options){
		amazonsqs.WithEndpointResolverV2(wmsqs.OverrideEndpointResolver{
			Endpoint: smithyendpoints.Endpoint{
				URI: *parsedURL,
			},
		}),
	}, nil
}

// IsQueueURL reports whether queue already is a full queue URL rather than a
// bare queue name.
func IsQueueURL(queue string) bool {
	u, err := url.Parse(queue)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// ResolveQueueURL returns queue unchanged when it is already a URL and
// otherwise looks the name up with GetQueueUrl.
func ResolveQueueURL(ctx context.Context, client Client, cfg Config, queue string, logger watermill.LoggerAdapter) (string, error) {
	if IsQueueURL(queue) {
		return queue, nil
	}
	if client == nil {
		return "", errors.New("sqs client is required to resolve a queue name")
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	input := &amazonsqs.GetQueueUrlInput{QueueName: aws.String(queue)}
	if accountID := resolveAccountID(cfg, logger); accountID != "" {
		input.QueueOwnerAWSAccountId = aws.String(accountID)
	}

	out, err := client.GetQueueUrl(ctx, input)
	if err != nil {
		logger.Error("Failed to resolve queue URL", err, watermill.LogFields{"queue": queue})
		return "", fmt.Errorf("resolve queue %q: %w", queue, err)
	}
	resolved := aws.ToString(out.QueueUrl)
	logger.Info("Resolved queue URL", watermill.LogFields{"queue": queue, "queue_url": resolved})
	return resolved, nil
}

func resolveAccountID(cfg Config, logger watermill.LoggerAdapter) string {
	if cfg == nil {
		return ""
	}
	accountID := strings.Trim(cfg.GetAWSAccountID(), "\"' ")
	local := cfg.GetAWSEndpoint() != ""

	if accountID == "" && local {
		logger.Info("AWS account ID empty; using LocalStack default", watermill.LogFields{"accountID": localstackAccountID})
		return localstackAccountID
	}
	if accountID != "" && len(accountID) != awsAccountIDLength && local {
		logger.Info("Invalid AWS account ID; falling back to LocalStack default", watermill.LogFields{"accountID": accountID})
		return localstackAccountID
	}
	return accountID
}

func staticCredentialsProvider(accessKeyID, secretAccessKey string) aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
		}, nil
	})
}
