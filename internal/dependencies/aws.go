package dependencies

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/charmbracelet/log"
)

// Aws lazily loads the default credential chain; nothing touches AWS unless an
// S3 export store or an SSM key parameter is configured.
type Aws struct {
	cfg    aws.Config
	loaded bool
}

func NewAws() *Aws {
	return &Aws{}
}

func (a *Aws) config(ctx context.Context) (aws.Config, error) {
	if a.loaded {
		return a.cfg, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("error loading aws config: %w", err)
	}
	a.cfg = cfg
	a.loaded = true
	return cfg, nil
}

func (a *Aws) S3(ctx context.Context) (*s3.Client, error) {
	cfg, err := a.config(ctx)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg), nil
}

// GetParameterAPI is the slice of the SSM client FetchParameter needs.
type GetParameterAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

func (a *Aws) SSM(ctx context.Context) (*ssm.Client, error) {
	cfg, err := a.config(ctx)
	if err != nil {
		return nil, err
	}
	return ssm.NewFromConfig(cfg), nil
}

// FetchParameter reads a (possibly SecureString) parameter value.
func FetchParameter(ctx context.Context, client GetParameterAPI, path string) (string, error) {
	log.With("component", "aws", "path", path).Info("fetching parameter")

	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(path),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("error fetching parameter %s: %w", path, err)
	}
	if out.Parameter == nil {
		return "", fmt.Errorf("parameter %s has no value", path)
	}
	return aws.ToString(out.Parameter.Value), nil
}
