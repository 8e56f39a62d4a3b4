package retrieval

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/brainos/retrieval/blobstore"
	miniostore "github.com/brainos/retrieval/blobstore/minio"
	s3store "github.com/brainos/retrieval/blobstore/s3"
	"github.com/brainos/retrieval/config"
	"github.com/brainos/retrieval/embedding"
	ollamaembed "github.com/brainos/retrieval/embedding/ollama"
	openaiembed "github.com/brainos/retrieval/embedding/openai"
	"github.com/brainos/retrieval/synthesis"
	ollamasynth "github.com/brainos/retrieval/synthesis/ollama"
)

// newEmbedder builds the embedding capability the config names.
// capabilities.mock wins over the provider so offline runs never dial out.
func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	if cfg.Capabilities.Mock || cfg.Embedding.Provider == "deterministic" {
		return embedding.NewDeterministic(cfg.Collection.DenseDimension), nil
	}

	timeout := time.Duration(cfg.Embedding.TimeoutSecs) * time.Second

	var inner embedding.Embedder
	switch cfg.Embedding.Provider {
	case "ollama":
		inner = ollamaembed.New(ollamaembed.Config{
			BaseURL:    cfg.Embedding.Ollama.BaseURL(),
			Model:      cfg.Embedding.Model,
			Timeout:    timeout,
			Dimensions: cfg.Collection.DenseDimension,
		})
	case "openai":
		client, err := openaiembed.New(openaiembed.Config{
			APIKey:  os.Getenv(cfg.Embedding.OpenAI.APIKeyEnv),
			BaseURL: cfg.Embedding.OpenAI.BaseURL,
			Model:   cfg.Embedding.Model,
			Timeout: timeout,
		})
		if err != nil {
			return nil, err
		}
		inner = client
	default:
		return nil, fmt.Errorf("retrieval: unknown embedding provider %q", cfg.Embedding.Provider)
	}

	rl := cfg.Embedding.RateLimit
	if rl.RequestsPerSecond > 0 || rl.MaxConcurrent > 0 {
		inner = embedding.NewRateLimited(inner, embedding.Limits{
			RequestsPerSecond: rl.RequestsPerSecond,
			MaxConcurrent:     int64(rl.MaxConcurrent),
		})
	}
	return inner, nil
}

// newSynthesizer builds the synthesis capability. capabilities.mock selects
// the deterministic stand-in.
func newSynthesizer(cfg *config.Config) synthesis.Synthesizer {
	if cfg.Capabilities.Mock {
		return synthesis.NewStatic()
	}
	return ollamasynth.New(ollamasynth.Config{
		BaseURL: cfg.Synthesis.Ollama.BaseURL(),
		Model:   cfg.Synthesis.Model,
		Timeout: time.Duration(cfg.Synthesis.TimeoutSecs) * time.Second,
	})
}

// OpenBridge builds the bridge blob store and pointer store the config
// names. The stores are rooted at the backend's top level; the snapshot
// layer owns the key layout under bridge.prefix, so pass that prefix to the
// publisher and subscriber rather than baking it in here.
//
// The local and minio backends keep the Latest Pointer as a regular blob.
// The s3 backend can guard it with DynamoDB conditional writes when
// bridge.s3.pointer_table is set, which turns a racing second publisher
// into a visible error instead of silent pointer loss.
func OpenBridge(ctx context.Context, cfg config.BridgeConfig) (blobstore.BlobStore, blobstore.PointerStore, error) {
	switch cfg.Backend {
	case "local":
		bs := blobstore.NewLocalStore(cfg.Local.Dir)
		return bs, blobstore.KeyPointer{Store: bs}, nil

	case "minio":
		bs, err := miniostore.Connect(ctx, miniostore.Options{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: os.Getenv(cfg.MinIO.AccessKeyEnv),
			SecretKey: os.Getenv(cfg.MinIO.SecretKeyEnv),
			Secure:    cfg.MinIO.Secure,
			Bucket:    cfg.MinIO.Bucket,
		})
		if err != nil {
			return nil, nil, err
		}
		return bs, blobstore.KeyPointer{Store: bs}, nil

	case "s3":
		bs, err := s3store.New(ctx, cfg.S3.Bucket, s3store.WithRegion(cfg.S3.Region))
		if err != nil {
			return nil, nil, err
		}
		if cfg.S3.PointerTable == "" {
			return bs, blobstore.KeyPointer{Store: bs}, nil
		}

		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.S3.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.S3.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, nil, err
		}
		namespace := "s3://" + path.Join(cfg.S3.Bucket, cfg.Prefix)
		pointers := s3store.NewDDBPointerStore(dynamodb.NewFromConfig(awsCfg), cfg.S3.PointerTable, namespace)
		return bs, pointers, nil

	default:
		return nil, nil, fmt.Errorf("retrieval: unknown bridge backend %q", cfg.Backend)
	}
}
