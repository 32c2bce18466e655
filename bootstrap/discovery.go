//go:generate go run go.uber.org/mock/mockgen -source=discovery.go -destination=../mocks/mock_discovery.go -package=mocks

// Package bootstrap finds the grid members a client or node connects to.
package bootstrap

import (
	"budget-grid/contract"
	"budget-grid/errors"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/samber/lo"
)

const (
	DefaultPort          = 5701
	DefaultSecurityGroup = "jclouds#hazelcast"
)

// StaticDiscoverer returns a fixed member list.
type StaticDiscoverer struct {
	addresses []string
}

var _ contract.Discoverer = StaticDiscoverer{}

// NewStaticDiscoverer normalizes addresses to host:port, adding port when missing.
func NewStaticDiscoverer(addresses []string, port int) (StaticDiscoverer, error) {
	normalized := make([]string, 0, len(addresses))
	for _, raw := range addresses {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		address, err := withPort(raw, port)
		if err != nil {
			return StaticDiscoverer{}, err
		}
		normalized = append(normalized, address)
	}
	if len(normalized) == 0 {
		return StaticDiscoverer{}, errors.ErrNoMembers
	}
	return StaticDiscoverer{addresses: lo.Uniq(normalized)}, nil
}

func (d StaticDiscoverer) Discover(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]string(nil), d.addresses...), nil
}

func withPort(address string, port int) (string, error) {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address, nil
	}
	if strings.Contains(address, "]") || strings.Count(address, ":") == 1 {
		return "", fmt.Errorf("%w: member address %q", errors.ErrInvalidArgument, address)
	}
	return net.JoinHostPort(address, strconv.Itoa(port)), nil
}

// EC2API is the part of the EC2 client used for discovery.
type EC2API interface {
	DescribeAvailabilityZonesWithContext(ctx aws.Context, input *ec2.DescribeAvailabilityZonesInput, opts ...request.Option) (*ec2.DescribeAvailabilityZonesOutput, error)
	DescribeInstancesPagesWithContext(ctx aws.Context, input *ec2.DescribeInstancesInput, fn func(*ec2.DescribeInstancesOutput, bool) bool, opts ...request.Option) error
}

// EC2Discoverer lists the public addresses of the running instances
// that belong to the grid's security group.
type EC2Discoverer struct {
	log   *slog.Logger
	api   EC2API
	group string
	port  int
}

var _ contract.Discoverer = (*EC2Discoverer)(nil)

// NewEC2Discoverer builds the EC2 client from the shared AWS configuration.
// An empty profile uses the environment credentials.
func NewEC2Discoverer(log *slog.Logger, region, profile, group string, port int) (*EC2Discoverer, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            aws.Config{Region: aws.String(region)},
		Profile:           profile,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return NewEC2DiscovererWithAPI(log, ec2.New(sess), group, port), nil
}

func NewEC2DiscovererWithAPI(log *slog.Logger, api EC2API, group string, port int) *EC2Discoverer {
	if group == "" {
		group = DefaultSecurityGroup
	}
	if port <= 0 {
		port = DefaultPort
	}
	return &EC2Discoverer{log: log, api: api, group: group, port: port}
}

func (d *EC2Discoverer) Discover(ctx context.Context) ([]string, error) {
	zones, err := d.api.DescribeAvailabilityZonesWithContext(ctx, &ec2.DescribeAvailabilityZonesInput{})
	if err != nil {
		return nil, fmt.Errorf("describe availability zones: %w", err)
	}
	d.log.Info(fmt.Sprintf("You have access to %d Availability Zones.", len(zones.AvailabilityZones)))

	input := &ec2.DescribeInstancesInput{
		Filters: []*ec2.Filter{
			{Name: aws.String("instance.group-name"), Values: aws.StringSlice([]string{d.group})},
			{Name: aws.String("instance-state-name"), Values: aws.StringSlice([]string{ec2.InstanceStateNameRunning})},
		},
	}
	var addresses []string
	err = d.api.DescribeInstancesPagesWithContext(ctx, input, func(page *ec2.DescribeInstancesOutput, _ bool) bool {
		for _, reservation := range page.Reservations {
			for _, instance := range reservation.Instances {
				if !d.inGroup(instance) || aws.StringValue(instance.PublicIpAddress) == "" {
					continue
				}
				ip := aws.StringValue(instance.PublicIpAddress)
				d.log.Info("EC2 instance " + ip)
				addresses = append(addresses, net.JoinHostPort(ip, strconv.Itoa(d.port)))
			}
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("describe instances: %w", err)
	}
	if len(addresses) == 0 {
		return nil, fmt.Errorf("%w: security group %s", errors.ErrNoMembers, d.group)
	}
	return lo.Uniq(addresses), nil
}

func (d *EC2Discoverer) inGroup(instance *ec2.Instance) bool {
	return lo.ContainsBy(instance.SecurityGroups, func(g *ec2.GroupIdentifier) bool {
		return aws.StringValue(g.GroupName) == d.group
	})
}
