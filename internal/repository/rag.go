package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"waba-admin/internal/domain"
)

const ragPhoneIndex = "phone_number_id-index"

// ErrNotFound is returned when no record matches the lookup.
var ErrNotFound = errors.New("repository: not found")

// RAGClient wraps the DynamoDB table holding per-business knowledge text.
type RAGClient struct {
	api       dynamodbAPI
	tableName string
}

func NewRAG(api dynamodbAPI, tableName string) (*RAGClient, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &RAGClient{api: api, tableName: tableName}, nil
}

// Get returns the first record for the phone number, or nil when none exists.
func (c *RAGClient) Get(ctx context.Context, phoneNumberID string) (*domain.RAGRecord, error) {
	out, err := c.api.Query(ctx, c.byPhoneQuery(phoneNumberID))
	if err != nil {
		return nil, fmt.Errorf("repository: RAG Get query: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	rec, err := itemToRAG(out.Items[0])
	if err != nil {
		return nil, fmt.Errorf("repository: RAG Get unmarshal: %w", err)
	}
	return &rec, nil
}

// Save creates or replaces the record keyed by business id.
func (c *RAGClient) Save(ctx context.Context, rec domain.RAGRecord) error {
	if rec.BusinessID == "" {
		return errors.New("repository: RAG Save: business_id is required")
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"business_id":     strValue(rec.BusinessID),
			"phone_number_id": strValue(rec.PhoneNumberID),
			"rag_data":        strValue(rec.RAGData),
		},
	})
	if err != nil {
		return fmt.Errorf("repository: RAG Save: %w", err)
	}
	return nil
}

// Delete resolves the business id through the phone number index and removes
// that record. Returns ErrNotFound when nothing matches.
func (c *RAGClient) Delete(ctx context.Context, phoneNumberID string) error {
	rec, err := c.Get(ctx, phoneNumberID)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNotFound
	}
	_, err = c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"business_id": strValue(rec.BusinessID),
		},
	})
	if err != nil {
		return fmt.Errorf("repository: RAG Delete: %w", err)
	}
	return nil
}

func (c *RAGClient) byPhoneQuery(phoneNumberID string) *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		IndexName:              aws.String(ragPhoneIndex),
		KeyConditionExpression: aws.String("phone_number_id = :phoneNumberId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":phoneNumberId": strValue(phoneNumberID),
		},
	}
}

func itemToRAG(item map[string]types.AttributeValue) (domain.RAGRecord, error) {
	businessID, err := strAttr(item, "business_id")
	if err != nil {
		return domain.RAGRecord{}, err
	}
	phoneID, _ := strAttr(item, "phone_number_id")
	data, _ := strAttr(item, "rag_data")
	return domain.RAGRecord{BusinessID: businessID, PhoneNumberID: phoneID, RAGData: data}, nil
}
