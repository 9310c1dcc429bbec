package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/patrickmn/go-cache"
)

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter is the interface that wraps GetParameter.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client wraps an AWS SSM API for parameter retrieval. Decrypted values are
// kept for the lifetime of the process.
type Client struct {
	api    ssmAPI
	values *cache.Cache
}

// New creates a Client with the given SSM API implementation.
func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api, values: cache.New(cache.NoExpiration, 0)}, nil
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	if v, ok := c.values.Get(name); ok {
		return v.(string), nil
	}

	withDecryption := true
	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}

	c.values.Set(name, *out.Parameter.Value, cache.NoExpiration)
	return *out.Parameter.Value, nil
}

// Resolve fills every empty entry of secrets from "<prefix>/<key>". Entries
// that already hold a value are left untouched.
func Resolve(ctx context.Context, g Getter, prefix string, secrets map[string]*string) error {
	if g == nil {
		return errors.New("paramstore: getter must not be nil")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return errors.New("paramstore: parameter prefix must not be empty")
	}
	for key, dst := range secrets {
		if dst == nil || *dst != "" {
			continue
		}
		v, err := g.GetParameter(ctx, prefix+"/"+key)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(v)
	}
	return nil
}
