// Package order imports remote marketplace orders into the storefront and
// reports their shipments back.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/connection"
	"github.com/marketsync/backend/internal/domain/order"
)

// Builder turns one remote order into one local order. Every attempt is
// guarded by a ledger claim, so concurrent runs import an order at most once.
type Builder struct {
	ledger  order.LedgerRepository
	options catalog.OptionRepository
	store   catalog.Store
	orders  order.LocalOrderStore
	logger  *zap.Logger
	now     func() time.Time
}

// NewBuilder creates a new Builder
func NewBuilder(
	ledger order.LedgerRepository,
	options catalog.OptionRepository,
	store catalog.Store,
	orders order.LocalOrderStore,
	logger *zap.Logger,
) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		ledger:  ledger,
		options: options,
		store:   store,
		orders:  orders,
		logger:  logger,
		now:     time.Now,
	}
}

// Import imports a single remote order. Per-order problems come back as a
// failed outcome; the returned error is reserved for storage failures that
// happen before the claim.
func (b *Builder) Import(ctx context.Context, conn *connection.Connection, remote *order.RemoteOrder) (order.Outcome, error) {
	log := b.logger.With(zap.String("remote_order_number", remote.Number))

	existing, err := b.ledger.FindByRemoteNumber(ctx, remote.Number)
	switch {
	case err == nil:
		if existing.IsInFlight() {
			return order.Skipped(order.SkipAlreadyImporting), nil
		}
		return order.Skipped(order.SkipAlreadyImported), nil
	case !errors.Is(err, order.ErrLedgerEntryNotFound):
		return order.Outcome{}, fmt.Errorf("look up ledger entry: %w", err)
	}

	if order.FulfilmentMismatch(conn.Import.FulfilmentFilter, remote) {
		log.Info("Order skipped, fulfilment does not match the connection filter.",
			zap.String("status", remote.Status),
			zap.Bool("external_fulfilment", remote.IsExternallyFulfilled()),
		)
		return order.Skipped(order.SkipFulfilmentMismatch), nil
	}

	won, err := b.ledger.Claim(ctx, order.NewClaim(conn.ID, remote, b.now()))
	if err != nil {
		return order.Outcome{}, fmt.Errorf("claim remote order: %w", err)
	}
	if !won {
		return order.Skipped(order.SkipAlreadyImporting), nil
	}

	var shell *order.LocalOrderRef
	ref, err := b.build(ctx, conn, remote, func(s *order.LocalOrderRef) { shell = s })
	if err != nil {
		b.fail(ctx, log, remote.Number, shell, err)
		return order.Failed(err), nil
	}

	if err := b.ledger.MarkImportSucceeded(ctx, remote.Number); err != nil {
		log.Error("Failed to mark import succeeded.", zap.Error(err))
	}
	log.Info("Order imported.", zap.Int64("order_id", ref.ID))
	return order.Imported(ref), nil
}

// build validates the mappings, creates the shell and writes the order into it.
// onShell is called as soon as a shell exists so the caller can roll it back.
func (b *Builder) build(
	ctx context.Context,
	conn *connection.Connection,
	remote *order.RemoteOrder,
	onShell func(*order.LocalOrderRef),
) (*order.LocalOrderRef, error) {
	paymentTitle, err := b.resolveMappings(ctx, conn)
	if err != nil {
		return nil, err
	}

	local, err := b.assemble(ctx, conn, remote)
	if err != nil {
		return nil, err
	}
	local.PaymentMethodTitle = paymentTitle

	shell, err := b.orders.CreateShell(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create order: %v", order.ErrOrderImportFailed, err)
	}
	onShell(shell)

	if err := b.ledger.AttachOrder(ctx, remote.Number, shell.ID); err != nil {
		return nil, fmt.Errorf("%w: attach order: %v", order.ErrOrderImportFailed, err)
	}

	ref, err := b.orders.Complete(ctx, shell.ID, local)
	if err != nil {
		return nil, fmt.Errorf("%w: complete order: %v", order.ErrOrderImportFailed, err)
	}
	return ref, nil
}

// resolveMappings checks the payment, carrier and status ids configured on
// the connection. Returns the payment method title.
func (b *Builder) resolveMappings(ctx context.Context, conn *connection.Connection) (string, error) {
	gateways, err := b.orders.PaymentGateways(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: load payment gateways: %v", order.ErrOrderImportFailed, err)
	}
	title, ok := gateways[conn.Import.PaymentMethodID]
	if !ok || conn.Import.PaymentMethodID == "" {
		return "", fmt.Errorf("%w: payment method [%s] not found", order.ErrPaymentMethodNotFound, conn.Import.PaymentMethodID)
	}

	methods, err := b.orders.ShippingMethods(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: load shipping methods: %v", order.ErrOrderImportFailed, err)
	}
	if name := methods[conn.Import.CarrierID]; name == "" {
		return "", fmt.Errorf("%w: shipment method [%s] not found", order.ErrCarrierNotFound, conn.Import.CarrierID)
	}

	statuses, err := b.orders.OrderStatuses(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: load order statuses: %v", order.ErrOrderImportFailed, err)
	}
	status := conn.Import.OrderStatus
	_, raw := statuses[status]
	_, prefixed := statuses[order.NormalizeStatus(status)]
	if status == "" || (!raw && !prefixed) {
		return "", fmt.Errorf("%w: order status [%s] not found", order.ErrOrderStatusNotFound, status)
	}
	return title, nil
}

// assemble maps the remote order onto the local order model
func (b *Builder) assemble(ctx context.Context, conn *connection.Connection, remote *order.RemoteOrder) (*order.LocalOrder, error) {
	lines, err := b.lines(ctx, remote)
	if err != nil {
		return nil, err
	}

	local := &order.LocalOrder{
		Billing:       localAddress(remote.BillingAddress, true),
		Shipping:      localAddress(remote.ShippingAddress, false),
		Meta:          orderMeta(remote),
		Lines:         lines,
		Currency:      remote.Currency,
		PaymentMethod: conn.Import.PaymentMethodID,
		Status:        conn.Import.OrderStatus,
		StatusNote:    remote.Status,
		SetPaid:       true,
		SendEmails:    conn.Import.SendEmails,
		SkipTaxes:     conn.Import.SkipTaxes,
	}

	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Total)
	}

	shippingTotal := decimal.Zero
	addFees := func(fees []order.Fee) {
		for _, f := range fees {
			switch f.Type {
			case order.FeeTypeCommission:
				// commission is charged to the merchant, not the customer
			case order.FeeTypeShipping:
				shippingTotal = shippingTotal.Add(f.Amount)
			default:
				local.FeeLines = append(local.FeeLines, order.FeeLine{Name: f.Type, Total: f.Amount})
				total = total.Add(f.Amount)
			}
		}
	}
	for _, l := range remote.Lines {
		addFees(l.Fees)
	}
	addFees(remote.Fees)

	local.ShippingLines = []order.ShippingLine{{
		MethodID:    conn.Import.CarrierID,
		MethodTitle: fmt.Sprintf("Marketplace channel `%s` (%s)", remote.ChannelTitle, remote.ChannelNumber),
		Total:       shippingTotal,
	}}
	local.ShippingTotal = shippingTotal
	local.Total = total.Add(shippingTotal)
	return local, nil
}

// lines groups the remote lines by option identifier in first-seen order.
// Each group becomes one local line with the group size as quantity.
func (b *Builder) lines(ctx context.Context, remote *order.RemoteOrder) ([]order.LocalLine, error) {
	if len(remote.Lines) == 0 {
		return nil, order.ErrNoOrderLines
	}

	index := make(map[int64]int)
	var out []order.LocalLine
	for _, rl := range remote.Lines {
		if i, ok := index[rl.ProductIdentifier]; ok {
			out[i].Quantity++
			out[i].Total = out[i].Total.Add(rl.Amount)
			continue
		}

		line, err := b.line(ctx, rl)
		if err != nil {
			return nil, err
		}
		index[rl.ProductIdentifier] = len(out)
		out = append(out, line)
	}
	return out, nil
}

func (b *Builder) line(ctx context.Context, rl order.RemoteOrderLine) (order.LocalLine, error) {
	opt, err := b.options.FindByID(ctx, rl.ProductIdentifier)
	if err != nil {
		if errors.Is(err, catalog.ErrOptionNotFound) {
			return order.LocalLine{}, fmt.Errorf("%w: product [%d] not found", order.ErrOptionNotFound, rl.ProductIdentifier)
		}
		return order.LocalLine{}, fmt.Errorf("%w: look up option [%d]: %v", order.ErrOrderImportFailed, rl.ProductIdentifier, err)
	}

	id := opt.ProductID
	if opt.VariationID != nil && *opt.VariationID > 0 {
		id = *opt.VariationID
	}
	p, err := b.store.GetProduct(ctx, id)
	if err != nil || p == nil {
		return order.LocalLine{}, fmt.Errorf("%w: product [%d] could not be loaded", order.ErrProductNotLoaded, id)
	}

	line := order.LocalLine{
		ProductID: opt.ProductID,
		Name:      p.Title(),
		Quantity:  1,
		Total:     rl.Amount,
	}
	if opt.VariationID != nil && *opt.VariationID > 0 {
		vid := *opt.VariationID
		line.VariationID = &vid
	}

	snapshot, err := catalog.DecodeSnapshot(opt.AttributeData)
	if err != nil {
		return order.LocalLine{}, fmt.Errorf("%w: decode attributes of option [%d]: %v", order.ErrOrderImportFailed, opt.OptionID, err)
	}
	if len(snapshot) > 0 {
		line.Attributes = make(map[string]string, len(snapshot))
		for key, values := range snapshot {
			line.Attributes[key] = strings.Join(values, ", ")
		}
	}
	return line, nil
}

// fail rolls back the shell and records the failure on the ledger
func (b *Builder) fail(ctx context.Context, log *zap.Logger, remoteNumber string, shell *order.LocalOrderRef, cause error) {
	ctx = context.WithoutCancel(ctx)
	log.Warn("Order import failed.", zap.Error(cause))

	if shell != nil {
		if err := b.orders.DeleteOrder(ctx, shell.ID); err != nil {
			log.Error("Order rollback failed.",
				zap.Int64("order_id", shell.ID),
				zap.Error(fmt.Errorf("%w: %v", order.ErrRollbackFailed, err)),
			)
		}
	}
	if err := b.ledger.MarkImportFailed(ctx, remoteNumber, cause.Error()); err != nil {
		log.Error("Failed to mark import failed.", zap.Error(err))
	}
}

// localAddress joins street, house number and extension into the first
// address line. The shipping address has no email field.
func localAddress(a order.Address, withEmail bool) order.LocalAddress {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Street, a.HouseNumber, a.HouseNumberExtension} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	out := order.LocalAddress{
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Company:   a.Company,
		Address1:  strings.Join(parts, " "),
		Address2:  a.AddressNote,
		Postcode:  a.Zipcode,
		City:      a.City,
		State:     a.State,
		Country:   a.Country,
		Phone:     a.Phone,
	}
	if withEmail {
		out.Email = a.Email
	}
	return out
}

func orderMeta(remote *order.RemoteOrder) []order.MetaEntry {
	external := "No"
	if remote.IsExternallyFulfilled() {
		external = "Yes"
	}
	return []order.MetaEntry{
		{Key: order.MetaOrderSource, Value: order.OrderSourceValue},
		{Key: order.MetaRemoteOrderNumber, Value: remote.Number},
		{Key: order.MetaChannelOrderNumber, Value: remote.ChannelNumber},
		{Key: order.MetaChannelName, Value: remote.ChannelTitle},
		{Key: order.MetaChannelType, Value: remote.ChannelTypeLabel()},
		{Key: order.MetaExternalFulfillment, Value: external},
	}
}
