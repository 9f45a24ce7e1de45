package sim

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/rs/zerolog/log"

	"talos/internal/book"
	"talos/internal/bots"
	"talos/internal/config"
	"talos/internal/ledger"
	"talos/internal/matching"
	"talos/internal/risk"
)

const varWindow = 20 // fixed sigma window for risk.VAR; not a config key (spec.md §6 enumerates none for it)

// pendingLiquidation is a ForcedLiquidation deferred to the start of the
// tick after the one that triggered it (spec.md §4.3 step 10).
type pendingLiquidation struct {
	risk.ForcedLiquidation
}

// Simulator owns the single mutable tick state: the book, the ledger,
// the risk manager, the bot roster, the fair-value schedule, and the
// session RNG. It is driven by one goroutine calling Tick; everything
// else talks to it through SubmitCommand's MPSC queue (spec.md §5).
type Simulator struct {
	cfg config.Config

	book     *book.OrderBook
	engine   *matching.Engine
	ledger   *ledger.Ledger
	risk     *risk.Manager
	roster   *bots.Roster
	schedule *Schedule
	rng      *rand.Rand

	now             int64
	nextOrder       uint64
	tape            []matching.TradePrint
	recentMids      []int64 // bounded window for realized volatility / VAR sigma
	riskCoefficient float64

	pendingLiq []pendingLiquidation
	fatal      error

	mu    sync.Mutex
	queue []queuedCommand

	subscribers []chan MarketSnapshot
	onSnapshot  func(MarketSnapshot)
	onCommand   func(tick int64, cmd Command, result CommandResult)
	onEvent     func(matching.MatchEvent)
}

type queuedCommand struct {
	cmd    Command
	result chan CommandResult
}

// New constructs a simulator at the given seed and starting fair value.
func New(cfg config.Config, seed int64, startPrice int64) *Simulator {
	return &Simulator{
		cfg:      cfg,
		book:     book.New(),
		engine:   matching.New(),
		ledger:   ledger.New(cfg.ToxicityAlpha),
		risk: risk.New(risk.Config{
			MaxOrderQty:        cfg.MaxOrderQty,
			PositionLimit:      cfg.PositionLimit,
			ConcentrationFrac:  cfg.ConcentrationFrac,
			LossLimit:          cfg.LossLimit,
			MarginThreshold:    cfg.MarginThreshold,
			MarginPenaltyTicks: cfg.MarginPenaltyTicks,
			VARCoefficient:     1.0,
		}),
		roster:          bots.NewRoster(cfg.BotLatencyMultiplier),
		schedule:        NewSchedule(startPrice, cfg.MinTickSize*3, 0.05, cfg.VolatilityCap, 0.001),
		rng:             rand.New(rand.NewSource(seed)),
		riskCoefficient: 1.0,
	}
}

// RegisterBot adds a bot to the fixed dispatch roster before the session
// starts running.
func (s *Simulator) RegisterBot(b bots.Bot, baseLatency, jitter int64) {
	s.roster.Register(b, baseLatency, jitter)
}

// Subscribe registers a channel that receives every published snapshot.
// Publishing never blocks on a slow subscriber: a full channel drops the
// snapshot for that subscriber.
func (s *Simulator) Subscribe(buf int) <-chan MarketSnapshot {
	ch := make(chan MarketSnapshot, buf)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// EnqueueCommand enqueues a command from any producer goroutine and
// returns immediately with a channel that receives its result once the
// tick that processes it has run. Most callers want SubmitCommand;
// EnqueueCommand exists for callers (replay) that need to enqueue and
// then drive the tick themselves, single-threaded, without a second
// goroutine.
func (s *Simulator) EnqueueCommand(cmd Command) <-chan CommandResult {
	result := make(chan CommandResult, 1)
	s.mu.Lock()
	s.queue = append(s.queue, queuedCommand{cmd: cmd, result: result})
	s.mu.Unlock()
	return result
}

// SubmitCommand enqueues a command from any producer goroutine and blocks
// until the tick that processes it has produced a result (spec.md §5:
// "many producers, one consumer, synchronous result").
func (s *Simulator) SubmitCommand(cmd Command) CommandResult {
	return <-s.EnqueueCommand(cmd)
}

func (s *Simulator) drainQueue() []queuedCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	drained := s.queue
	s.queue = nil
	return drained
}

// Fatal reports the invariant-violation error that poisoned the
// simulator, if any. Once set, Tick is a no-op.
func (s *Simulator) Fatal() error { return s.fatal }

// Tick advances the simulation by exactly one step, implementing the
// eleven-stage pipeline of spec.md §4.3. It is never called concurrently
// with itself.
func (s *Simulator) Tick() MarketSnapshot {
	if s.fatal != nil {
		return MarketSnapshot{Tick: s.now, Fatal: s.fatal.Error()}
	}

	s.now++
	now := s.now

	// 1. Expire GTC orders whose time has come.
	s.book.Expire(now)

	// 2. Inject forced liquidations deferred from the previous tick, ahead
	// of any new order flow, so they get fair queue position.
	s.injectLiquidations(now)

	// 3. Advance the fair-value schedule. Exactly one RNG draw here, before
	// any bot or human order touches the RNG, to keep draw order fixed.
	fairValue, uncertainty := s.schedule.Next(now, s.rng)

	// 4. Dispatch the bot roster in fixed registration order.
	mid := s.currentMid(fairValue)
	decisions := s.roster.Dispatch(now, s.viewFor(mid, fairValue, uncertainty), s.rng)
	for _, d := range decisions {
		s.applyDecision(now, d.TraderID, d.Decision, mid)
	}

	// 5. Drain and apply queued human/API commands in arrival order.
	queued := s.drainQueue()
	for _, qc := range queued {
		res := s.applyCommand(now, qc.cmd, mid)
		qc.result <- res
		if s.onCommand != nil {
			s.onCommand(now, qc.cmd, res)
		}
	}

	// 6. Run matching to exhaustion.
	events := s.engine.Match(s.book, now)

	// 7. Apply fills to the ledger and extend the tape.
	for _, e := range events {
		ledger.ApplyMatchEvent(s.ledger, e, s.cfg.MakerFee, s.cfg.TakerFee)
		s.appendTape(e.Print())
		if s.onEvent != nil {
			s.onEvent(e)
		}
	}

	// 8. Clean up any IOC remainder left resting after matching: IOC
	// orders never rest, so anything of theirs still in the book at this
	// point (nothing crossed it) is canceled.
	s.cancelIOCRemainder()

	// 9. Recompute mid, track the rolling window, resolve one-tick-delayed
	// toxicity measurements.
	mid = s.currentMid(fairValue)
	s.recordMid(mid)
	s.ledger.ResolvePending(now, mid)

	// 10. Run the post-tick margin check over every known trader, in
	// sorted order, deferring any liquidation to the next tick.
	for _, traderID := range s.ledger.TraderIDs() {
		t := s.ledger.Get(traderID)
		if fl := s.risk.PostTickCheck(t, s.book, mid); fl != nil {
			s.pendingLiq = append(s.pendingLiq, pendingLiquidation{*fl})
		}
	}

	// 11. Check invariants; a violation poisons the simulator rather than
	// risk emitting a corrupted snapshot.
	if err := s.book.CheckInvariants(); err != nil {
		s.fatal = err
		log.Error().Err(err).Int64("tick", now).Msg("invariant violation: simulator poisoned")
	}

	snap := s.buildSnapshot(now, mid, fairValue)
	s.publish(snap)
	return snap
}

func (s *Simulator) injectLiquidations(now int64) {
	pending := s.pendingLiq
	s.pendingLiq = nil
	for _, p := range pending {
		order := &book.Order{
			ID: s.allocOrderID(), TraderID: p.TraderID, Side: p.Side,
			Price: p.PenaltyPrice, OriginalQty: p.Qty, RemainingQty: p.Qty,
			Timestamp: now, TimeInForce: book.IOC,
		}
		if err := s.book.Insert(order); err != nil {
			log.Error().Err(err).Str("trader_id", p.TraderID).Msg("forced liquidation insert failed")
		}
	}
}

func (s *Simulator) allocOrderID() uint64 {
	s.nextOrder++
	return s.nextOrder
}

func (s *Simulator) currentMid(fairValue int64) int64 {
	bb, bbok := s.book.BestBid()
	ba, baok := s.book.BestAsk()
	switch {
	case bbok && baok:
		return (bb + ba) / 2
	case bbok:
		return bb
	case baok:
		return ba
	default:
		return fairValue
	}
}

func (s *Simulator) appendTape(t matching.TradePrint) {
	s.tape = append(s.tape, t)
	if len(s.tape) > s.cfg.TapeWindow {
		s.tape = s.tape[len(s.tape)-s.cfg.TapeWindow:]
	}
}

func (s *Simulator) recordMid(mid int64) {
	s.recentMids = append(s.recentMids, mid)
	if len(s.recentMids) > varWindow {
		s.recentMids = s.recentMids[len(s.recentMids)-varWindow:]
	}
}

// sigma is the sample standard deviation of recent mid-to-mid moves, the
// realized-volatility input to both the snapshot's Volatility field and
// risk.VAR.
func (s *Simulator) sigma() float64 {
	if len(s.recentMids) < 2 {
		return 0
	}
	deltas := make([]float64, 0, len(s.recentMids)-1)
	var sum float64
	for i := 1; i < len(s.recentMids); i++ {
		d := float64(s.recentMids[i] - s.recentMids[i-1])
		deltas = append(deltas, d)
		sum += d
	}
	mean := sum / float64(len(deltas))
	var variance float64
	for _, d := range deltas {
		variance += (d - mean) * (d - mean)
	}
	variance /= float64(len(deltas))
	return math.Sqrt(variance)
}

func (s *Simulator) viewFor(mid, fairValue int64, uncertainty float64) func(string) bots.View {
	sigma := s.sigma()
	bids, asks := s.book.Depth(s.cfg.SnapshotDepthN)
	return func(traderID string) bots.View {
		t := s.ledger.GetOrCreate(traderID)
		return bots.View{
			Now: s.now, Bids: bids, Asks: asks, Tape: append([]matching.TradePrint(nil), s.tape...),
			FairValue: fairValue, Uncertainty: uncertainty, Volatility: sigma,
			Position: t.Position, RealizedPnL: t.RealizedPnL, UnrealizedPnL: t.UnrealizedPnL(mid),
			Toxicity: t.Toxicity, OwnOrders: s.book.OrdersOf(traderID),
		}
	}
}

// applyDecision applies one bot's Decision: cancels first, then new
// resting quotes, then IOC crosses, per the cancels-before-new-orders
// resolution of spec.md §9's Open Question.
func (s *Simulator) applyDecision(now int64, traderID string, d bots.Decision, mid int64) {
	for _, id := range d.Cancels {
		s.book.Cancel(id)
	}
	t := s.ledger.GetOrCreate(traderID)
	for _, q := range d.Quotes {
		order := &book.Order{
			ID: s.allocOrderID(), TraderID: traderID, Side: q.Side, Price: q.Price,
			OriginalQty: q.Qty, RemainingQty: q.Qty, Timestamp: now,
			TimeInForce: book.GTC, ExpiresAt: q.ExpiresAt,
		}
		if err := s.risk.CheckOrder(t, order, s.book, mid); err != nil {
			continue
		}
		if err := s.book.Insert(order); err != nil {
			log.Error().Err(err).Msg("bot quote insert failed")
		}
	}
	for _, ioc := range d.IOC {
		price := s.iocPrice(ioc.Side)
		order := &book.Order{
			ID: s.allocOrderID(), TraderID: traderID, Side: ioc.Side, Price: price,
			OriginalQty: ioc.Qty, RemainingQty: ioc.Qty, Timestamp: now,
			TimeInForce: book.IOC,
		}
		if err := s.risk.CheckOrder(t, order, s.book, mid); err != nil {
			continue
		}
		if err := s.book.Insert(order); err != nil {
			log.Error().Err(err).Msg("bot IOC insert failed")
		}
	}
}

// iocPrice prices a bot's IOC market order to guarantee it crosses:
// 1,000,000 ticks through the opposite touch, or through the current
// fair value if that side of the book is empty (sell prices floored at 1).
func (s *Simulator) iocPrice(side book.Side) int64 {
	const sweepTicks = 1_000_000
	if side == book.Buy {
		if ask, ok := s.book.BestAsk(); ok {
			return ask + sweepTicks
		}
		return s.schedule.current + sweepTicks
	}
	if bid, ok := s.book.BestBid(); ok {
		price := bid - sweepTicks
		if price < 1 {
			price = 1
		}
		return price
	}
	price := s.schedule.current - sweepTicks
	if price < 1 {
		price = 1
	}
	return price
}

// applyCommand applies one external Command and returns its synchronous
// result.
func (s *Simulator) applyCommand(now int64, cmd Command, mid int64) CommandResult {
	switch cmd.Kind {
	case CmdCancel:
		if _, err := s.book.Cancel(cmd.OrderID); err != nil {
			return CommandResult{Kind: Rejected, Reason: UnknownOrder}
		}
		return CommandResult{Kind: Accepted, OrderID: cmd.OrderID}

	case CmdCancelAll:
		s.book.CancelAll(cmd.TraderID)
		return CommandResult{Kind: Accepted}

	case CmdSetParam:
		if err := config.SetParam(&s.cfg, cmd.ParamKey, cmd.ParamValue); err != nil {
			return CommandResult{Kind: Rejected, Reason: err.Error()}
		}
		return CommandResult{Kind: Accepted}

	case CmdPause, CmdResume, CmdTick:
		// Session lifecycle commands are handled by the runtime driver
		// loop, not the tick pipeline; acknowledge them here so callers
		// using SubmitCommand for everything get a uniform contract.
		return CommandResult{Kind: Accepted}

	case CmdSubmit:
		if cmd.Qty <= 0 {
			return CommandResult{Kind: Rejected, Reason: BadQty}
		}
		if cmd.Price <= 0 || cmd.Price%s.cfg.MinTickSize != 0 {
			return CommandResult{Kind: Rejected, Reason: BadPrice}
		}
		order := &book.Order{
			ID: s.allocOrderID(), TraderID: cmd.TraderID, Side: cmd.Side, Price: cmd.Price,
			OriginalQty: cmd.Qty, RemainingQty: cmd.Qty, Timestamp: now,
			TimeInForce: cmd.TimeInForce,
		}
		if cmd.TimeInForce == book.GTC {
			order.ExpiresAt = now + s.cfg.QuoteLifetime
		}
		t := s.ledger.GetOrCreate(cmd.TraderID)
		if err := s.risk.CheckOrder(t, order, s.book, mid); err != nil {
			return CommandResult{Kind: Rejected, Reason: err.(risk.RejectError).Kind.String()}
		}
		if err := s.book.Insert(order); err != nil {
			return CommandResult{Kind: Rejected, Reason: fmt.Sprint(err)}
		}
		return CommandResult{Kind: Accepted, OrderID: order.ID}

	default:
		return CommandResult{Kind: Rejected, Reason: "UnknownCommand"}
	}
}

// cancelIOCRemainder removes any IOC order left resting after matching.
// IOC orders cross what they can in step 6 and never rest; walking the
// book for them here, rather than tracking ids emitted during insertion,
// keeps the cleanup correct even when self-trade prevention dropped an
// IOC order before it ever reached the matching loop proper.
func (s *Simulator) cancelIOCRemainder() {
	for _, id := range s.book.IOCOrderIDs() {
		s.book.Cancel(id)
	}
}

func (s *Simulator) buildSnapshot(now, mid, fairValue int64) MarketSnapshot {
	bids, asks := s.book.Depth(s.cfg.SnapshotDepthN)
	bestBid, hasBestBid := s.book.BestBid()
	bestAsk, hasBestAsk := s.book.BestAsk()

	var lastTrade *matching.TradePrint
	if len(s.tape) > 0 {
		last := s.tape[len(s.tape)-1]
		lastTrade = &last
	}

	sigma := s.sigma()
	traderIDs := s.ledger.TraderIDs()
	traders := make([]TraderView, 0, len(traderIDs))
	for _, id := range traderIDs {
		t := s.ledger.Get(id)
		traders = append(traders, TraderView{
			TraderID: id, Position: t.Position, RealizedPnL: t.RealizedPnL,
			UnrealizedPnL: t.UnrealizedPnL(mid), Toxicity: t.Toxicity,
			VAR: risk.VAR(s.riskCoefficient, sigma, t.Position),
		})
	}

	fatal := ""
	if s.fatal != nil {
		fatal = s.fatal.Error()
	}

	return MarketSnapshot{
		Tick: now, Bids: bids, Asks: asks,
		BestBid: bestBid, HasBestBid: hasBestBid,
		BestAsk: bestAsk, HasBestAsk: hasBestAsk,
		Mid: mid, LastTrade: lastTrade, FairValue: fairValue,
		Volatility: sigma, Traders: traders, Fatal: fatal,
	}
}

func (s *Simulator) publish(snap MarketSnapshot) {
	if s.onSnapshot != nil {
		s.onSnapshot(snap)
	}
	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			log.Warn().Int64("tick", snap.Tick).Msg("snapshot subscriber channel full, dropping")
		}
	}
}

// OnSnapshot installs a synchronous callback invoked with every published
// snapshot, ahead of channel fan-out. Used by the journal writer to
// queue the snapshot for persistence; fan-out does not wait for that
// write.
func (s *Simulator) OnSnapshot(f func(MarketSnapshot)) {
	s.onSnapshot = f
}

// OnCommand installs a synchronous callback invoked once per processed
// command, with the tick it was applied on and its result. Used by the
// journal writer to record the command stream a replay re-derives
// events from.
func (s *Simulator) OnCommand(f func(tick int64, cmd Command, result CommandResult)) {
	s.onCommand = f
}

// OnMatchEvent installs a synchronous callback invoked once per match
// event produced during a tick's matching pass.
func (s *Simulator) OnMatchEvent(f func(matching.MatchEvent)) {
	s.onEvent = f
}
