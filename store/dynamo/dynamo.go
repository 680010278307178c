// Package dynamo implements the user store and server registry on DynamoDB.
package dynamo

import (
	"context"
	"errors"
	"fmt"

	"serverboi-provisioner/store"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

const (
	DefaultUserTable   = "ServerBoi-User-List"
	DefaultServerTable = "ServerBoi-Server-List"
)

// API is the subset of the DynamoDB client used here.
type API interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

type UserStore struct {
	client API
	table  string
}

var _ store.UserStore = (*UserStore)(nil)

func NewUserStore(client API, table string) *UserStore {
	if table == "" {
		table = DefaultUserTable
	}
	return &UserStore{client: client, table: table}
}

func (s *UserStore) QueryUsers(ctx context.Context, userID string) ([]store.User, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("UserID").Equal(expression.Value(userID))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build user query: %w", err)
	}
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("query %s for user %s: %w", s.table, userID, err)
	}
	var users []store.User
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &users); err != nil {
		return nil, fmt.Errorf("decode user items: %w", err)
	}
	log.Debug().Str("userId", userID).Int("matches", len(users)).Msg("dynamo: user query")
	return users, nil
}

type ServerRegistry struct {
	client API
	table  string
}

var _ store.ServerRegistry = (*ServerRegistry)(nil)

func NewServerRegistry(client API, table string) *ServerRegistry {
	if table == "" {
		table = DefaultServerTable
	}
	return &ServerRegistry{client: client, table: table}
}

// PutServer writes rec only if no record exists under its ServerID, so an
// identifier collision fails instead of overwriting another user's server.
func (r *ServerRegistry) PutServer(ctx context.Context, rec *store.ServerRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("encode server %s: %w", rec.ServerID, err)
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("ServerID"))).
		Build()
	if err != nil {
		return fmt.Errorf("build put condition: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.table),
		Item:                     item,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("server %s: %w", rec.ServerID, store.ErrConflict)
		}
		return fmt.Errorf("put server %s into %s: %w", rec.ServerID, r.table, err)
	}
	return nil
}
