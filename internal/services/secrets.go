package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"sitepilot/internal/config"
	"sitepilot/internal/utils/logger"
)

type secretsAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerSource reads the LLM API key from a JSON secret in AWS Secrets Manager.
type SecretsManagerSource struct {
	api      secretsAPI
	secretID string
	keyField string
	log      *logger.Logger
}

// NewSecretsManagerSource uses the default AWS credential chain.
func NewSecretsManagerSource(ctx context.Context, cfg config.SecretsConfig) (*SecretsManagerSource, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return newSecretsManagerSource(secretsmanager.NewFromConfig(awsCfg), cfg.SecretID, cfg.KeyField), nil
}

func newSecretsManagerSource(api secretsAPI, secretID, keyField string) *SecretsManagerSource {
	return &SecretsManagerSource{
		api:      api,
		secretID: secretID,
		keyField: keyField,
		log:      logger.New("secrets"),
	}
}

func (s *SecretsManagerSource) FetchSecret(ctx context.Context) (string, error) {
	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(s.secretID),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", s.secretID, err)
	}

	raw := strings.TrimSpace(aws.ToString(out.SecretString))
	if raw == "" {
		return "", fmt.Errorf("secret %s has no string value", s.secretID)
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return "", fmt.Errorf("secret %s is not a JSON object: %w", s.secretID, err)
	}
	key, _ := fields[s.keyField].(string)
	if key == "" {
		return "", fmt.Errorf("secret %s has no %s field", s.secretID, s.keyField)
	}
	s.log.Debug("Fetched %s from secret %s", s.keyField, s.secretID)
	return key, nil
}
