// Package awscloud provisions game servers in a user's AWS account through an
// assumed cross-account role.
package awscloud

import (
	"context"
	"fmt"

	"serverboi-provisioner/cloud"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog/log"
)

const (
	DefaultRoleName = "ServerBoi-Resource.Assumed-Role"
	roleSessionName = "ServerBoiValidateAWSAccount"
)

// STSAPI is the subset of the STS client used here.
type STSAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// Delegator assumes the provisioning role in the target account and hands
// back an EC2-backed cloud.Compute scoped to those credentials.
type Delegator struct {
	sts      STSAPI
	base     aws.Config
	roleName string

	// newEC2 is replaced in tests.
	newEC2 func(cfg aws.Config) EC2API
}

var _ cloud.Delegator = (*Delegator)(nil)

func NewDelegator(base aws.Config, roleName string) *Delegator {
	if roleName == "" {
		roleName = DefaultRoleName
	}
	return &Delegator{
		sts:      sts.NewFromConfig(base),
		base:     base,
		roleName: roleName,
		newEC2: func(cfg aws.Config) EC2API {
			return ec2.NewFromConfig(cfg)
		},
	}
}

// RoleARN is the well-known role every linked account must allow us to assume.
func RoleARN(accountID, roleName string) string {
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, roleName)
}

// Delegate fails when the role cannot be assumed; no call is ever made with
// missing or stale credentials.
func (d *Delegator) Delegate(ctx context.Context, accountID, region string) (cloud.Compute, error) {
	arn := RoleARN(accountID, d.roleName)
	out, err := d.sts.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(arn),
		RoleSessionName: aws.String(roleSessionName),
	})
	if err != nil {
		return nil, fmt.Errorf("assume role %s: %w", arn, err)
	}
	if out.Credentials == nil {
		return nil, fmt.Errorf("assume role %s: no credentials returned", arn)
	}
	log.Debug().Str("accountId", accountID).Str("region", region).Msg("delegate: account verified")

	cfg := d.base.Copy()
	cfg.Region = region
	cfg.Credentials = aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
		aws.ToString(out.Credentials.AccessKeyId),
		aws.ToString(out.Credentials.SecretAccessKey),
		aws.ToString(out.Credentials.SessionToken),
	))
	return NewCompute(d.newEC2(cfg), region), nil
}
