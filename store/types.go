// Package store holds the persisted user and server entities.
package store

import (
	"context"
	"errors"
)

// ErrConflict is returned when a server record already exists under the same key.
var ErrConflict = errors.New("record already exists")

// User is one row of the user table. AccountID is empty until the user links
// an AWS account.
type User struct {
	UserID    string `dynamodbav:"UserID"`
	AccountID string `dynamodbav:"AWSAccountID,omitempty"`
}

// ServerRecord is written once after a successful launch and never mutated here.
type ServerRecord struct {
	ServerID   string `dynamodbav:"ServerID"`
	OwnerID    string `dynamodbav:"OwnerID"`
	Owner      string `dynamodbav:"Owner"`
	Game       string `dynamodbav:"Game"`
	ServerName string `dynamodbav:"ServerName"`
	Password   string `dynamodbav:"Password"`
	Service    string `dynamodbav:"Service"`
	AccountID  string `dynamodbav:"AccountID"`
	Region     string `dynamodbav:"Region"`
	InstanceID string `dynamodbav:"InstanceID"`
	Port       int    `dynamodbav:"Port"`
}

// UserStore returns every user matching userID; callers decide what a count
// other than one means.
type UserStore interface {
	QueryUsers(ctx context.Context, userID string) ([]User, error)
}

// ServerRegistry persists server records keyed by ServerID.
type ServerRegistry interface {
	PutServer(ctx context.Context, rec *ServerRecord) error
}
