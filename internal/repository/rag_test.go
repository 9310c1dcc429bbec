package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"waba-admin/internal/domain"
)

func ragItem(businessID, phoneID, data string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"business_id":     &types.AttributeValueMemberS{Value: businessID},
		"phone_number_id": &types.AttributeValueMemberS{Value: phoneID},
		"rag_data":        &types.AttributeValueMemberS{Value: data},
	}
}

func mustNewRAG(t *testing.T, db *fakeDynamo) *RAGClient {
	t.Helper()
	c, err := NewRAG(db, "BusinessRAG")
	require.NoError(t, err)
	return c
}

func TestRAGGet_Found(t *testing.T) {
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{{
		Items: []map[string]types.AttributeValue{ragItem("biz-1", "123", "Toko buka 08.00")},
	}}}
	c := mustNewRAG(t, db)

	rec, err := c.Get(context.Background(), "123")
	require.NoError(t, err)
	require.Equal(t, &domain.RAGRecord{BusinessID: "biz-1", PhoneNumberID: "123", RAGData: "Toko buka 08.00"}, rec)
	require.Equal(t, "phone_number_id-index", *db.lastQueryIn.IndexName)
}

func TestRAGGet_NotFound(t *testing.T) {
	c := mustNewRAG(t, &fakeDynamo{})
	rec, err := c.Get(context.Background(), "123")
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestRAGSave(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewRAG(t, db)

	err := c.Save(context.Background(), domain.RAGRecord{BusinessID: "biz-1", PhoneNumberID: "123", RAGData: "x"})
	require.NoError(t, err)
	require.Equal(t, "biz-1", db.lastPutInput.Item["business_id"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "x", db.lastPutInput.Item["rag_data"].(*types.AttributeValueMemberS).Value)
}

func TestRAGSave_MissingBusinessID(t *testing.T) {
	c := mustNewRAG(t, &fakeDynamo{})
	require.Error(t, c.Save(context.Background(), domain.RAGRecord{PhoneNumberID: "123"}))
}

func TestRAGDelete_ResolvesBusinessID(t *testing.T) {
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{{
		Items: []map[string]types.AttributeValue{ragItem("biz-9", "123", "x")},
	}}}
	c := mustNewRAG(t, db)

	require.NoError(t, c.Delete(context.Background(), "123"))
	require.Equal(t, "biz-9", db.lastDeleteInput.Key["business_id"].(*types.AttributeValueMemberS).Value)
}

func TestRAGDelete_NotFound(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewRAG(t, db)

	err := c.Delete(context.Background(), "123")
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, db.lastDeleteInput)
}

func TestRAGDelete_DynamoError(t *testing.T) {
	db := &fakeDynamo{
		queryOuts: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{ragItem("biz-9", "123", "x")}}},
		deleteErr: errors.New("boom"),
	}
	c := mustNewRAG(t, db)
	err := c.Delete(context.Background(), "123")
	require.Error(t, err)
	require.Contains(t, err.Error(), "RAG Delete")
}

func TestNewRAG_Validation(t *testing.T) {
	_, err := NewRAG(nil, "t")
	require.Error(t, err)
	_, err = NewRAG(&fakeDynamo{}, "")
	require.Error(t, err)
}
