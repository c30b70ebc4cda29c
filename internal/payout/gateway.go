package payout

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/opencivic/sdcrs/internal/logging"
	"github.com/opencivic/sdcrs/pkg/ports"
)

// LoopbackGateway is a PaymentGateway stand-in for deployments without a
// real UPI provider: every initiated payout settles successfully after a
// short delay, with a synthetic UTR. The callback travels through the same
// ingress a real provider webhook would use.
type LoopbackGateway struct {
	bridge *Bridge
	delay  time.Duration
	logger *slog.Logger
	seq    atomic.Int64
}

// NewLoopbackGateway creates the gateway. The bridge receives the settlement
// callbacks; delay simulates provider latency.
func NewLoopbackGateway(delay time.Duration, logger *slog.Logger) *LoopbackGateway {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LoopbackGateway{delay: delay, logger: logger}
}

// Bind attaches the callback bridge. Must be called before the first payout;
// split from construction because the bridge itself needs a gateway.
func (g *LoopbackGateway) Bind(bridge *Bridge) {
	g.bridge = bridge
}

var _ ports.PaymentGateway = (*LoopbackGateway)(nil)

// InitiatePayout settles asynchronously, as a real provider would.
func (g *LoopbackGateway) InitiatePayout(ctx context.Context, caseID string, amount int64, payeeRef string) error {
	utr := fmt.Sprintf("LOOP%d%06d", time.Now().UTC().Year(), g.seq.Add(1))
	g.logger.Info("loopback payout initiated",
		"case_id", caseID,
		"amount", amount,
		"payee_ref", payeeRef,
		"utr", utr,
	)

	go func() {
		if g.delay > 0 {
			time.Sleep(g.delay)
		}
		if _, err := g.bridge.Callback(context.Background(), caseID, true, utr, ""); err != nil {
			g.logger.Error("loopback settlement callback failed", "case_id", caseID, "err", err)
		}
	}()
	return nil
}
