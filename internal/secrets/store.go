package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Store fetches a named secret payload from a remote secret manager.
type Store interface {
	GetSecret(ctx context.Context, name string) (map[string]string, error)
}

// ManagerStore implements Store against AWS Secrets Manager.
type ManagerStore struct {
	client *secretsmanager.Client
}

// NewManagerStore builds a Secrets Manager client for the provided region.
func NewManagerStore(ctx context.Context, region string) (*ManagerStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &ManagerStore{client: secretsmanager.NewFromConfig(awsCfg)}, nil
}

// GetSecret retrieves and decodes a secret value. JSON object secrets are
// returned as flat key/value maps; anything else (bare auth tokens) is exposed
// under the "value" key.
func (s *ManagerStore) GetSecret(ctx context.Context, name string) (map[string]string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("get secret %q: %w", name, err)
	}

	raw := aws.ToString(out.SecretString)
	if raw == "" && len(out.SecretBinary) > 0 {
		raw = string(out.SecretBinary)
	}

	return decodePayload(raw), nil
}

func decodePayload(raw string) map[string]string {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return map[string]string{"value": raw}
	}

	payload := make(map[string]string, len(decoded))
	for key, value := range decoded {
		switch v := value.(type) {
		case string:
			payload[key] = v
		case float64:
			payload[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			payload[key] = strconv.FormatBool(v)
		case nil:
			payload[key] = ""
		default:
			// Nested structures are not used by any consumer; keep the raw JSON.
			b, _ := json.Marshal(v)
			payload[key] = string(b)
		}
	}
	return payload
}
