// Package provisioner launches a game server in the requesting user's account
// and records it in the server registry.
package provisioner

import (
	"context"
	"fmt"
	"time"

	"serverboi-provisioner/bootstrap"
	"serverboi-provisioner/catalog"
	"serverboi-provisioner/cloud"
	"serverboi-provisioner/metrics"
	"serverboi-provisioner/network"
	"serverboi-provisioner/notify"
	"serverboi-provisioner/queues"
	"serverboi-provisioner/store"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	WorkflowName = "Provision-Server"
	Stage        = "Provision"
)

var tracer = otel.Tracer("serverboi-provisioner/provisioner")

// Profiles looks up the build profile of a game.
type Profiles interface {
	Lookup(game string) (catalog.BuildProfile, error)
}

// Deps are the external collaborators of a Controller. Publisher, NewServerID
// and Image are optional.
type Deps struct {
	Users     store.UserStore
	Servers   store.ServerRegistry
	Delegator cloud.Delegator
	Profiles  Profiles
	Router    bootstrap.Router
	Notifier  notify.Notifier
	Publisher queues.Publisher

	NewServerID func() string
	Image       cloud.ImageFilter
}

// Controller runs the provision stage of the workflow, one request at a time
// per call. Calls for different requests may run concurrently.
type Controller struct {
	users       store.UserStore
	servers     store.ServerRegistry
	delegator   cloud.Delegator
	profiles    Profiles
	router      bootstrap.Router
	notifier    notify.Notifier
	publisher   queues.Publisher
	newServerID func() string
	image       cloud.ImageFilter
	inflight    *InFlight
}

func NewController(d Deps) *Controller {
	c := &Controller{
		users:       d.Users,
		servers:     d.Servers,
		delegator:   d.Delegator,
		profiles:    d.Profiles,
		router:      d.Router,
		notifier:    d.Notifier,
		publisher:   d.Publisher,
		newServerID: d.NewServerID,
		image:       d.Image,
		inflight:    NewInFlight(),
	}
	if c.newServerID == nil {
		c.newServerID = NewServerID
	}
	if c.image == (cloud.ImageFilter{}) {
		c.image = cloud.DebianImage
	}
	return c
}

// AccountBinding is the result of account resolution. Linked is false when
// the user exists but has not linked an account; that is an expected outcome,
// not a lookup failure.
type AccountBinding struct {
	UserID    string
	AccountID string
	Linked    bool
}

// InFlight exposes the requests this controller is handling through Handle.
func (c *Controller) InFlight() *InFlight {
	return c.inflight
}

// Handle provisions req and forwards the result to the next stage. A
// redelivery of an execution that is still running is dropped.
func (c *Controller) Handle(ctx context.Context, req *queues.ProvisionRequest) error {
	if req != nil && req.ExecutionName != "" {
		if !c.inflight.Begin(req) {
			log.Warn().Str("executionName", req.ExecutionName).Msg("provisioner: duplicate delivery of running execution; dropping")
			return nil
		}
		defer c.inflight.Done(req.ExecutionName)
	}
	res, err := c.Provision(ctx, req)
	if err != nil {
		return err
	}
	if c.publisher == nil {
		return nil
	}
	if err := c.publisher.PublishResult(ctx, res); err != nil {
		// The server exists and is registered; only the hand-off failed.
		log.Error().Err(err).Str("serverId", res.ServerID).Str("executionName", req.ExecutionName).Msg("provisioner: failed to publish result")
		return fmt.Errorf("publish result for server %s: %w", res.ServerID, err)
	}
	return nil
}

// Provision runs the whole stage: report running, resolve the account, launch
// the instance behind its own access-control group and register the server.
// Any failure after the running report reports failed, undoes the cloud
// resources created so far and returns an error wrapping one of the Err kinds.
func (c *Controller) Provision(ctx context.Context, req *queues.ProvisionRequest) (*queues.ProvisionResult, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		c.observe("", start, err)
		log.Error().Err(err).Msg("provisioner: rejected request")
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "provision", trace.WithAttributes(
		attribute.String("game", req.Game),
		attribute.String("region", req.Region),
		attribute.String("execution_name", req.ExecutionName),
	))
	defer span.End()

	c.report(ctx, req, notify.StateRunning)

	// Assigned before anything is created so every resource name carries it.
	serverID := c.newServerID()
	span.SetAttributes(attribute.String("server_id", serverID))
	logger := log.With().
		Str("serverId", serverID).
		Str("executionName", req.ExecutionName).
		Str("game", req.Game).
		Str("userId", req.UserID).
		Logger()
	logger.Info().Str("region", req.Region).Msg("provisioner: handling provision request")

	res, err := c.provision(ctx, req, serverID, logger)
	c.observe(req.Game, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Kind(err))
		logger.Error().Err(err).Str("kind", Kind(err)).Dur("duration", time.Since(start)).Msg("provisioner: provisioning failed")
		c.report(ctx, req, notify.StateFailed)
		return nil, err
	}

	logger.Info().
		Str("instanceId", res.InstanceID).
		Str("instanceIp", res.InstanceIP).
		Int("port", res.ServerPort).
		Dur("duration", time.Since(start)).
		Msg("provisioner: server provisioned")
	return res, nil
}

func (c *Controller) provision(ctx context.Context, req *queues.ProvisionRequest, serverID string, logger zerolog.Logger) (res *queues.ProvisionResult, err error) {
	var undo rollback
	defer func() {
		if err != nil {
			undo.run(ctx, logger)
		}
	}()

	var binding AccountBinding
	if err := c.step(ctx, "resolve_account", func(ctx context.Context) error {
		var err error
		binding, err = c.resolveAccount(ctx, req.UserID)
		return err
	}); err != nil {
		return nil, err
	}
	if !binding.Linked {
		return nil, fmt.Errorf("%w: user %s", ErrUnlinkedAccount, req.UserID)
	}

	profile, err := c.profiles.Lookup(req.Game)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	launch, err := c.router.Route(req.Game, bootstrap.LaunchParams{
		ProvisionRequest: *req,
		ServerID:         serverID,
		Port:             profile.Ports.Low,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	userData, err := bootstrap.Compose(launch)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	var compute cloud.Compute
	if err := c.step(ctx, "delegate", func(ctx context.Context) error {
		var err error
		compute, err = c.delegator.Delegate(ctx, binding.AccountID, req.Region)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDelegation, err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	var imageID string
	if err := c.step(ctx, "resolve_image", func(ctx context.Context) error {
		var err error
		imageID, err = compute.FindImage(ctx, c.image)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrResolution, err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	tags := map[string]string{
		cloud.ManagedByKey: cloud.ManagedByValue,
		"ServerID":         serverID,
	}

	var groupID string
	if err := c.step(ctx, "apply_network_rules", func(ctx context.Context) error {
		rules := network.Derive(profile)
		var err error
		groupID, err = compute.CreateSecurityGroup(ctx,
			network.GroupName(req.Game, req.Name, serverID),
			network.GroupDescription(req.Game, req.Name),
			tags,
		)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrProvisioning, err)
		}
		undo.push("delete_security_group", func(ctx context.Context) error {
			return compute.DeleteSecurityGroup(ctx, groupID)
		})
		// Both rule sets are in place before the instance exists, so its
		// bootstrap never runs behind a half-open group.
		if err := compute.AuthorizeEgress(ctx, groupID, rules.Egress); err != nil {
			return fmt.Errorf("%w: %w", ErrProvisioning, err)
		}
		if err := compute.AuthorizeIngress(ctx, groupID, rules.Ingress); err != nil {
			return fmt.Errorf("%w: %w", ErrProvisioning, err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	logger.Debug().Str("groupId", groupID).Msg("provisioner: network rules applied")

	var instance *cloud.Instance
	if err := c.step(ctx, "launch_instance", func(ctx context.Context) error {
		var err error
		instance, err = compute.RunInstance(ctx, cloud.InstanceSpec{
			ImageID:         imageID,
			InstanceType:    profile.AWS.InstanceType,
			SecurityGroupID: groupID,
			UserData:        userData,
			Tags:            tags,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrProvisioning, err)
		}
		undo.push("terminate_instance", func(ctx context.Context) error {
			return compute.TerminateInstance(ctx, instance.ID)
		})
		return nil
	}); err != nil {
		return nil, err
	}
	logger.Debug().Str("instanceId", instance.ID).Msg("provisioner: instance launched")

	record := &store.ServerRecord{
		ServerID:   serverID,
		OwnerID:    req.UserID,
		Owner:      req.Username,
		Game:       req.Game,
		ServerName: req.Name,
		Password:   req.Password,
		Service:    req.Service,
		AccountID:  binding.AccountID,
		Region:     req.Region,
		InstanceID: instance.ID,
		Port:       profile.Ports.Low,
	}
	if err := c.step(ctx, "register_server", func(ctx context.Context) error {
		if err := c.servers.PutServer(ctx, record); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return &queues.ProvisionResult{
		ProvisionRequest: *req,
		ServerID:         serverID,
		AccountID:        binding.AccountID,
		WaitTime:         profile.BuildTime,
		ServerPort:       profile.Ports.Low,
		InstanceID:       instance.ID,
		InstanceIP:       instance.PublicIP,
	}, nil
}

// resolveAccount requires exactly one user record.
func (c *Controller) resolveAccount(ctx context.Context, userID string) (AccountBinding, error) {
	users, err := c.users.QueryUsers(ctx, userID)
	if err != nil {
		return AccountBinding{}, fmt.Errorf("%w: %w", ErrAccountLookup, err)
	}
	if len(users) != 1 {
		return AccountBinding{}, fmt.Errorf("%w: %d users with id %s", ErrAmbiguousAccount, len(users), userID)
	}
	acct := users[0].AccountID
	return AccountBinding{UserID: userID, AccountID: acct, Linked: acct != ""}, nil
}

func (c *Controller) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "provision."+name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// report is fire-and-forget: a delivery failure never changes the outcome.
func (c *Controller) report(ctx context.Context, req *queues.ProvisionRequest, state notify.State) {
	if c.notifier == nil {
		return
	}
	err := c.notifier.Notify(ctx,
		notify.Target{ApplicationID: req.ApplicationID, InteractionToken: req.InteractionToken},
		notify.Status{
			Workflow:    WorkflowName,
			Description: fmt.Sprintf("Workflow ID: %s", req.ExecutionName),
			State:       state,
			Stage:       Stage,
			Color:       notify.ColorFor(state),
		},
	)
	if err != nil {
		metrics.NotificationErrorsTotal.Inc()
		log.Warn().Err(err).Str("executionName", req.ExecutionName).Str("state", string(state)).Msg("provisioner: status notification failed")
	}
}

func (c *Controller) observe(game string, start time.Time, err error) {
	metrics.ProvisionDuration.Observe(time.Since(start).Seconds())
	metrics.ProvisionsTotal.WithLabelValues(Kind(err), game).Inc()
}
