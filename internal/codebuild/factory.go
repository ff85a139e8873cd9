package codebuild

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/google/uuid"

	builderrors "github.com/narvanalabs/codebuild-runner/internal/builder/errors"
	"github.com/narvanalabs/codebuild-runner/internal/models"
)

// Credentials selects how the service clients authenticate.
type Credentials struct {
	Profile      string
	AccessKey    string
	SecretKey    string
	SessionToken string
	RoleARN      string
	ExternalID   string
	ProxyHost    string
	ProxyPort    string
	Region       string
}

// CredentialsFromConfig extracts the credential fields of cfg.
func CredentialsFromConfig(cfg models.BuildConfig) Credentials {
	return Credentials{
		Profile:      cfg.CredentialsProfile,
		AccessKey:    cfg.AccessKey,
		SecretKey:    cfg.SecretKey,
		SessionToken: cfg.SessionToken,
		RoleARN:      cfg.IAMRoleARN,
		ExternalID:   cfg.ExternalID,
		ProxyHost:    cfg.ProxyHost,
		ProxyPort:    cfg.ProxyPort,
		Region:       cfg.Region,
	}
}

// Descriptor summarizes the credentials for the operator log. Secrets are
// never included and access keys are masked.
func (c Credentials) Descriptor() string {
	var b strings.Builder
	switch {
	case c.AccessKey != "":
		fmt.Fprintf(&b, "Using AWS access key %s", MaskKey(c.AccessKey))
	case c.Profile != "":
		fmt.Fprintf(&b, "Using credentials profile %s", c.Profile)
	default:
		b.WriteString("Using the default AWS credentials chain")
	}
	if c.RoleARN != "" {
		fmt.Fprintf(&b, " to assume role %s", c.RoleARN)
	}
	if c.Region != "" {
		fmt.Fprintf(&b, " in region %s", c.Region)
	}
	if c.ProxyHost != "" {
		fmt.Fprintf(&b, " through proxy %s", c.proxyAddr())
	}
	return b.String()
}

func (c Credentials) proxyAddr() string {
	if c.ProxyPort == "" {
		return c.ProxyHost
	}
	return net.JoinHostPort(c.ProxyHost, c.ProxyPort)
}

// MaskKey keeps the last four characters of an access key.
func MaskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

// SecretResolver turns a configured secret into its plaintext form.
type SecretResolver func(secret string) (string, error)

// AWSFactory builds clients with aws-sdk-go-v2.
type AWSFactory struct {
	callTimeout   time.Duration
	resolveSecret SecretResolver
	verify        bool
	logger        *slog.Logger
}

// FactoryOption configures an AWSFactory.
type FactoryOption func(*AWSFactory)

// WithCallTimeout bounds each build service call.
func WithCallTimeout(d time.Duration) FactoryOption {
	return func(f *AWSFactory) {
		f.callTimeout = d
	}
}

// WithSecretResolver decodes the secret key before use.
func WithSecretResolver(fn SecretResolver) FactoryOption {
	return func(f *AWSFactory) {
		f.resolveSecret = fn
	}
}

// WithVerify retrieves credentials while building so bad credentials fail
// before any build is submitted.
func WithVerify(verify bool) FactoryOption {
	return func(f *AWSFactory) {
		f.verify = verify
	}
}

// WithFactoryLogger sets the logger handed to the clients.
func WithFactoryLogger(logger *slog.Logger) FactoryOption {
	return func(f *AWSFactory) {
		f.logger = logger
	}
}

// NewAWSFactory creates a client factory.
func NewAWSFactory(opts ...FactoryOption) *AWSFactory {
	f := &AWSFactory{
		callTimeout: DefaultCallTimeout,
		verify:      true,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Build loads AWS configuration for creds and constructs the clients. Any
// failure is an authorization error.
func (f *AWSFactory) Build(ctx context.Context, creds Credentials) (*Clients, error) {
	cfg, err := f.loadConfig(ctx, creds)
	if err != nil {
		return nil, builderrors.New(builderrors.KindAuth, builderrors.MsgAuthorization).
			WithSecondary(err.Error()).
			WithCause(err)
	}

	return &Clients{
		Builds:     NewBuildClient(codebuild.NewFromConfig(cfg), f.callTimeout, f.logger),
		Objects:    NewObjectClient(s3.NewFromConfig(cfg)),
		Logs:       NewLogClient(cloudwatchlogs.NewFromConfig(cfg)),
		Descriptor: creds.Descriptor(),
	}, nil
}

func (f *AWSFactory) loadConfig(ctx context.Context, creds Credentials) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(creds.Region),
	}

	if creds.ProxyHost != "" {
		proxyURL, err := url.Parse("http://" + creds.proxyAddr())
		if err != nil {
			return aws.Config{}, fmt.Errorf("parsing proxy address: %w", err)
		}
		client := awshttp.NewBuildableClient().WithTransportOptions(func(tr *http.Transport) {
			tr.Proxy = http.ProxyURL(proxyURL)
		})
		opts = append(opts, config.WithHTTPClient(client))
	}

	switch {
	case creds.AccessKey != "":
		secret := creds.SecretKey
		if f.resolveSecret != nil {
			var err error
			if secret, err = f.resolveSecret(secret); err != nil {
				return aws.Config{}, fmt.Errorf("resolving secret key: %w", err)
			}
		}
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKey, secret, creds.SessionToken),
		))
	case creds.Profile != "":
		opts = append(opts, config.WithSharedConfigProfile(creds.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading aws config: %w", err)
	}

	if creds.RoleARN != "" {
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), creds.RoleARN, func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = "codebuild-runner-" + uuid.NewString()[:8]
			if creds.ExternalID != "" {
				o.ExternalID = aws.String(creds.ExternalID)
			}
		})
		cfg.Credentials = aws.NewCredentialsCache(provider)
	}

	if f.verify {
		if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
			return aws.Config{}, fmt.Errorf("retrieving credentials: %w", err)
		}
	}

	return cfg, nil
}
