package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// SSMClient is the subset of SSM Parameter Store operations used by the
// config source. Narrow on purpose so tests can stub it.
type SSMClient interface {
	GetParameter(
		ctx context.Context,
		params *ssm.GetParameterInput,
		optFns ...func(*ssm.Options),
	) (*ssm.GetParameterOutput, error)
}

// SSMSource fetches policy documents from SSM Parameter Store. Documents
// live under a common prefix, e.g. /costgov/config/cleanup-policy.
// Parameter Store versions parameters natively, which satisfies the
// versioned-document contract.
type SSMSource struct {
	client SSMClient
	prefix string
}

// NewSSMSource returns a Source reading parameters under prefix.
func NewSSMSource(client SSMClient, prefix string) *SSMSource {
	return &SSMSource{client: client, prefix: prefix}
}

// FetchDocument implements Source.
func (s *SSMSource) FetchDocument(ctx context.Context, name string) ([]byte, error) {
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name: aws.String(s.prefix + "/" + name),
	})
	if err != nil {
		return nil, fmt.Errorf("GetParameter %s/%s: %w", s.prefix, name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return nil, fmt.Errorf("GetParameter %s/%s: empty parameter", s.prefix, name)
	}
	return []byte(*out.Parameter.Value), nil
}

// FileSource reads policy documents from <dir>/<name>.yaml. Used for local
// runs and tests where no Parameter Store is available.
type FileSource struct {
	dir string
}

// NewFileSource returns a Source reading documents from dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// FetchDocument implements Source.
func (f *FileSource) FetchDocument(_ context.Context, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(f.dir, name+".yaml"))
}
