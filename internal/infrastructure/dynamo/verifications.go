package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-account-api/internal/domain"
)

// DefaultCodeRetention is how long a record lives before DynamoDB TTL
// removes it. Freshness is enforced by the caller, not by TTL.
const DefaultCodeRetention = 24 * time.Hour

// VerificationRepo stores one verification code per email.
// PK: email. GSI code-index serves lookups by code.
type VerificationRepo struct {
	client    *dynamodb.Client
	tableName string
	retention time.Duration
}

func NewVerificationRepo(client *dynamodb.Client, tableName string) *VerificationRepo {
	return &VerificationRepo{client: client, tableName: tableName, retention: DefaultCodeRetention}
}

// Upsert overwrites the code and updated_at for email, creating the record
// when absent. Any failure is ErrNotAcknowledged.
func (r *VerificationRepo) Upsert(ctx context.Context, email, code string, at time.Time) error {
	at = at.UTC()
	now, err := attributevalue.Marshal(at)
	if err != nil {
		return fmt.Errorf("marshal timestamp: %w", err)
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey(fieldEmail, email),
		UpdateExpression: aws.String("SET #code = :code, #updated = :now, #expires = :exp, #created = if_not_exists(#created, :now)"),
		ExpressionAttributeNames: map[string]string{
			"#code":    fieldCode,
			"#updated": fieldUpdatedAt,
			"#created": fieldCreatedAt,
			"#expires": fieldExpiresAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":code": &types.AttributeValueMemberS{Value: code},
			":now":  now,
			":exp":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", at.Add(r.retention).Unix())},
		},
	})
	if err != nil {
		return fmt.Errorf("upsert verification code: %w: %w", domain.ErrNotAcknowledged, err)
	}
	return nil
}

func (r *VerificationRepo) GetByEmail(ctx context.Context, email string) (*domain.VerificationRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldEmail, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get verification code: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("verification code not found: %w", domain.ErrNotFound)
	}
	var rec domain.VerificationRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal verification code: %w", err)
	}
	return &rec, nil
}

// GetByCode returns the record holding code. When several emails were
// issued the same code, the most recently issued record wins.
func (r *VerificationRepo) GetByCode(ctx context.Context, code string) (*domain.VerificationRecord, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(indexCode),
		KeyConditionExpression:    aws.String("#c = :c"),
		ExpressionAttributeNames:  map[string]string{"#c": fieldCode},
		ExpressionAttributeValues: map[string]types.AttributeValue{":c": &types.AttributeValueMemberS{Value: code}},
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", indexCode, err)
	}
	var recs []domain.VerificationRecord
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &recs); err != nil {
		return nil, fmt.Errorf("unmarshal verification codes: %w", err)
	}
	rec := latestRecord(recs)
	if rec == nil {
		return nil, fmt.Errorf("verification code not found: %w", domain.ErrNotFound)
	}
	return rec, nil
}

func latestRecord(recs []domain.VerificationRecord) *domain.VerificationRecord {
	var latest *domain.VerificationRecord
	for i := range recs {
		if latest == nil || recs[i].UpdatedAt.After(latest.UpdatedAt) {
			latest = &recs[i]
		}
	}
	return latest
}
