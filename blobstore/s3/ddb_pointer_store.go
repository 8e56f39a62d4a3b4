package s3

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/brainos/retrieval/blobstore"
)

// ErrConcurrentModification is returned when two writers race on the same
// pointer version. The loser should reload and retry.
var ErrConcurrentModification = errors.New("s3: concurrent pointer modification")

// DDBClient is the subset of the DynamoDB API the pointer store uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DDBPointerStore implements blobstore.PointerStore with DynamoDB
// conditional writes, giving the Latest Pointer the compare-and-swap
// guarantee that plain S3 puts lack. A single writer role never needs it,
// but it turns an accidental second publisher from silent data loss into a
// visible ErrConcurrentModification.
//
// Each save appends a row with a monotonically increasing version; loads
// query the highest version. Table schema:
//   - Partition key: pointer (string), the namespace-qualified pointer name
//   - Sort key: version (number)
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name brainos-pointers \
//	  --attribute-definitions AttributeName=pointer,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=pointer,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBPointerStore struct {
	client    DDBClient
	tableName string
	namespace string // partition key prefix, e.g. "s3://bucket/bridge"
}

// NewDDBPointerStore creates a pointer store over the given table. namespace
// scopes pointer names so several bridge roots can share one table.
func NewDDBPointerStore(client DDBClient, tableName, namespace string) *DDBPointerStore {
	return &DDBPointerStore{
		client:    client,
		tableName: tableName,
		namespace: namespace,
	}
}

func (s *DDBPointerStore) partition(name string) string {
	return path.Join(s.namespace, name)
}

// LoadPointer returns the payload of the highest committed version.
func (s *DDBPointerStore) LoadPointer(ctx context.Context, name string) ([]byte, error) {
	_, data, err := s.latest(ctx, name)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, blobstore.ErrNotFound
	}
	return data, nil
}

// SavePointer commits the payload as version latest+1. The conditional put
// fails if another writer committed that version first.
func (s *DDBPointerStore) SavePointer(ctx context.Context, name string, data []byte) error {
	version, _, err := s.latest(ctx, name)
	if err != nil {
		return err
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"pointer": &types.AttributeValueMemberS{Value: s.partition(name)},
			"version": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", version+1)},
			"payload": &types.AttributeValueMemberB{Value: data},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("s3: commit pointer %s: %w", name, err)
	}
	return nil
}

// latest queries the highest version row. Returns version 0 and nil payload
// when the pointer was never written.
func (s *DDBPointerStore) latest(ctx context.Context, name string) (uint64, []byte, error) {
	resp, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("pointer = :p"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p": &types.AttributeValueMemberS{Value: s.partition(name)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, nil, fmt.Errorf("s3: query pointer %s: %w", name, err)
	}
	if len(resp.Items) == 0 {
		return 0, nil, nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, nil, errors.New("s3: pointer row has no numeric version")
	}
	payloadAttr, ok := item["payload"].(*types.AttributeValueMemberB)
	if !ok {
		return 0, nil, errors.New("s3: pointer row has no payload")
	}

	var version uint64
	if _, err := fmt.Sscanf(versionAttr.Value, "%d", &version); err != nil {
		return 0, nil, fmt.Errorf("s3: parse pointer version: %w", err)
	}
	return version, payloadAttr.Value, nil
}

var _ blobstore.PointerStore = (*DDBPointerStore)(nil)
