package awscloud

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"time"

	"serverboi-provisioner/cloud"
	"serverboi-provisioner/network"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/rs/zerolog/log"
)

// EC2API is the subset of the EC2 client used here.
type EC2API interface {
	CreateSecurityGroup(ctx context.Context, params *ec2.CreateSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error)
	AuthorizeSecurityGroupEgress(ctx context.Context, params *ec2.AuthorizeSecurityGroupEgressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupEgressOutput, error)
	AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error)
	DeleteSecurityGroup(ctx context.Context, params *ec2.DeleteSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error)
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
	RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
	TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
}

// DefaultTerminateWait bounds how long TerminateInstance waits for the
// instance to reach the terminated state.
const DefaultTerminateWait = 5 * time.Minute

// Compute implements cloud.Compute on EC2.
type Compute struct {
	client EC2API
	region string

	// terminateWait of zero returns as soon as termination is requested.
	terminateWait time.Duration
}

var _ cloud.Compute = (*Compute)(nil)

func NewCompute(client EC2API, region string) *Compute {
	return &Compute{client: client, region: region, terminateWait: DefaultTerminateWait}
}

func (c *Compute) CreateSecurityGroup(ctx context.Context, name, description string, tags map[string]string) (string, error) {
	out, err := c.client.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(name),
		Description: aws.String(description),
		TagSpecifications: []types.TagSpecification{
			{ResourceType: types.ResourceTypeSecurityGroup, Tags: toTags(tags)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("create security group %q: %w", name, err)
	}
	groupID := aws.ToString(out.GroupId)
	log.Debug().Str("groupId", groupID).Str("groupName", name).Str("region", c.region).Msg("ec2: security group created")
	return groupID, nil
}

func (c *Compute) AuthorizeEgress(ctx context.Context, groupID string, rules []network.Rule) error {
	_, err := c.client.AuthorizeSecurityGroupEgress(ctx, &ec2.AuthorizeSecurityGroupEgressInput{
		GroupId:       aws.String(groupID),
		IpPermissions: toPermissions(rules),
	})
	if err != nil {
		return fmt.Errorf("authorize egress on %s: %w", groupID, err)
	}
	return nil
}

func (c *Compute) AuthorizeIngress(ctx context.Context, groupID string, rules []network.Rule) error {
	_, err := c.client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:       aws.String(groupID),
		IpPermissions: toPermissions(rules),
	})
	if err != nil {
		return fmt.Errorf("authorize ingress on %s: %w", groupID, err)
	}
	return nil
}

func (c *Compute) DeleteSecurityGroup(ctx context.Context, groupID string) error {
	if _, err := c.client.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: aws.String(groupID)}); err != nil {
		return fmt.Errorf("delete security group %s: %w", groupID, err)
	}
	return nil
}

// FindImage returns the first image matching filter. The filter is expected
// to be selective enough that the first match is the only one.
func (c *Compute) FindImage(ctx context.Context, filter cloud.ImageFilter) (string, error) {
	out, err := c.client.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners: []string{filter.Owner},
		Filters: []types.Filter{
			{Name: aws.String("description"), Values: []string{filter.Description}},
			{Name: aws.String("architecture"), Values: []string{filter.Architecture}},
			{Name: aws.String("virtualization-type"), Values: []string{filter.VirtualizationType}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("describe images in %s: %w", c.region, err)
	}
	if len(out.Images) == 0 {
		return "", fmt.Errorf("%w: %q in %s", cloud.ErrNoImage, filter.Description, c.region)
	}
	return aws.ToString(out.Images[0].ImageId), nil
}

func (c *Compute) RunInstance(ctx context.Context, spec cloud.InstanceSpec) (*cloud.Instance, error) {
	out, err := c.client.RunInstances(ctx, &ec2.RunInstancesInput{
		ImageId:          aws.String(spec.ImageID),
		InstanceType:     types.InstanceType(spec.InstanceType),
		MinCount:         aws.Int32(1),
		MaxCount:         aws.Int32(1),
		SecurityGroupIds: []string{spec.SecurityGroupID},
		UserData:         aws.String(base64.StdEncoding.EncodeToString([]byte(spec.UserData))),
		TagSpecifications: []types.TagSpecification{
			{ResourceType: types.ResourceTypeInstance, Tags: toTags(spec.Tags)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("run instance: %w", err)
	}
	if len(out.Instances) == 0 {
		return nil, fmt.Errorf("run instance: no instance returned")
	}
	inst := out.Instances[0]
	return &cloud.Instance{
		ID:       aws.ToString(inst.InstanceId),
		PublicIP: aws.ToString(inst.PublicIpAddress),
	}, nil
}

// TerminateInstance waits for the instance to be gone, because its security
// group cannot be deleted while the instance still references it.
func (c *Compute) TerminateInstance(ctx context.Context, instanceID string) error {
	if _, err := c.client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{instanceID}}); err != nil {
		return fmt.Errorf("terminate instance %s: %w", instanceID, err)
	}
	if c.terminateWait <= 0 {
		return nil
	}
	waiter := ec2.NewInstanceTerminatedWaiter(c.client)
	if err := waiter.Wait(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{instanceID}}, c.terminateWait); err != nil {
		return fmt.Errorf("wait for instance %s to terminate: %w", instanceID, err)
	}
	log.Debug().Str("instanceId", instanceID).Str("region", c.region).Msg("ec2: instance terminated")
	return nil
}

func toPermissions(rules []network.Rule) []types.IpPermission {
	perms := make([]types.IpPermission, 0, len(rules))
	for _, r := range rules {
		perms = append(perms, types.IpPermission{
			IpProtocol: aws.String(r.Protocol),
			FromPort:   aws.Int32(int32(r.FromPort)),
			ToPort:     aws.Int32(int32(r.ToPort)),
			IpRanges:   []types.IpRange{{CidrIp: aws.String(r.CIDR)}},
		})
	}
	return perms
}

// toTags sorts by key so requests are deterministic.
func toTags(tags map[string]string) []types.Tag {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]types.Tag, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}
