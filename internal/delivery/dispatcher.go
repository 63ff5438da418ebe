package delivery

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	masterdata "metering-dashboard/internal/masterdata/domain"
	reports "metering-dashboard/internal/reports/domain"
)

const defaultConcurrency = 8

// Result aggregates one dispatch.
type Result struct {
	Channel    Kind
	Attempted  int
	Succeeded  int
	Failed     int
	Failures   []*DeliveryError
	Skipped    []string
	Unresolved []*masterdata.ResolutionError
}

// Dispatcher fans an artifact out to recipients with bounded concurrency.
type Dispatcher struct {
	directory   masterdata.RecipientDirectory
	concurrency int
	logger      *zap.Logger
}

// DispatcherOption configures the dispatcher.
type DispatcherOption func(*Dispatcher)

// WithConcurrency bounds in-flight sends per dispatch.
func WithConcurrency(limit int) DispatcherOption {
	return func(d *Dispatcher) {
		if limit > 0 {
			d.concurrency = limit
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(directory masterdata.RecipientDirectory, opts ...DispatcherOption) (*Dispatcher, error) {
	if directory == nil {
		return nil, errors.New("dispatcher: nil recipient directory")
	}
	d := &Dispatcher{directory: directory, concurrency: defaultConcurrency, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

type target struct {
	recipient masterdata.Recipient
	address   string
}

// Dispatch sends the artifact to every recipient that has an address on the
// channel. Individual failures are collected in the result; an error is
// returned only when nobody could be attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, channel Channel, set masterdata.RecipientSet, artifact reports.Artifact, msg Message) (Result, error) {
	if channel == nil {
		return Result{}, ErrNilChannel
	}
	result := Result{Channel: channel.Kind()}
	recipients, unresolved := d.expand(ctx, set)
	result.Unresolved = unresolved

	targets := make([]target, 0, len(recipients))
	for _, recipient := range recipients {
		address, ok := channel.Address(recipient)
		if !ok {
			result.Skipped = append(result.Skipped, recipient.ID)
			continue
		}
		targets = append(targets, target{recipient: recipient, address: address})
	}
	if len(targets) == 0 {
		return result, fmt.Errorf("%w: %s", ErrNoValidRecipients, channel.Kind())
	}

	outcomes := make([]error, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, t := range targets {
		g.Go(func() error {
			outcomes[i] = channel.Send(gctx, t.address, artifact, msg)
			return nil
		})
	}
	_ = g.Wait()

	result.Attempted = len(targets)
	for i, err := range outcomes {
		if err == nil {
			result.Succeeded++
			continue
		}
		result.Failed++
		failure := &DeliveryError{
			Channel:     channel.Kind(),
			RecipientID: targets[i].recipient.ID,
			Address:     targets[i].address,
			Err:         err,
		}
		result.Failures = append(result.Failures, failure)
		d.logger.Warn("delivery failed",
			zap.String("channel", string(channel.Kind())),
			zap.String("recipient_id", failure.RecipientID),
			zap.Error(err),
		)
	}
	return result, nil
}

// expand resolves explicit ids then group members, deduplicated by id.
func (d *Dispatcher) expand(ctx context.Context, set masterdata.RecipientSet) ([]masterdata.Recipient, []*masterdata.ResolutionError) {
	var (
		recipients []masterdata.Recipient
		unresolved []*masterdata.ResolutionError
	)
	seen := make(map[string]struct{})
	add := func(recipient masterdata.Recipient) {
		if _, dup := seen[recipient.ID]; dup {
			return
		}
		seen[recipient.ID] = struct{}{}
		recipients = append(recipients, recipient)
	}

	for _, id := range set.IDs {
		if _, dup := seen[id]; dup {
			continue
		}
		recipient, err := d.directory.GetRecipient(ctx, id)
		if err != nil {
			d.logger.Warn("recipient lookup failed", zap.String("recipient_id", id), zap.Error(err))
		}
		if err != nil || recipient == nil {
			unresolved = append(unresolved, &masterdata.ResolutionError{Kind: masterdata.RefKindRecipient, Ref: id})
			continue
		}
		add(*recipient)
	}
	if set.GroupID != "" {
		members, err := d.directory.ListGroupMembers(ctx, set.GroupID)
		if err != nil {
			d.logger.Warn("group expansion failed", zap.String("group_id", set.GroupID), zap.Error(err))
			unresolved = append(unresolved, &masterdata.ResolutionError{Kind: masterdata.RefKindGroup, Ref: set.GroupID})
		}
		for _, member := range members {
			add(member)
		}
	}
	return recipients, unresolved
}
